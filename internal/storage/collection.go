package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/miruna26/aicore-data-collection/internal/vehicle"
	"github.com/miruna26/aicore-data-collection/logger"
	"github.com/miruna26/aicore-data-collection/pkg/errors"
)

// LoadAll reads a JSON array of {id, uuid, data} objects and rebuilds the
// vehicles in file order
func LoadAll(path string, opts ...vehicle.Option) ([]*vehicle.Vehicle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIO("", fmt.Sprintf("open collection %s", path), err)
	}
	defer f.Close()

	return ReadAll(f, opts...)
}

// ReadAll is LoadAll over a reader
func ReadAll(r io.Reader, opts ...vehicle.Option) ([]*vehicle.Vehicle, error) {
	var elements []json.RawMessage
	if err := json.NewDecoder(r).Decode(&elements); err != nil {
		return nil, errors.NewMalformedInput(fmt.Sprintf("collection is not a JSON array: %v", err))
	}

	vehicles := make([]*vehicle.Vehicle, 0, len(elements))
	for i, raw := range elements {
		where := fmt.Sprintf("element %d", i)
		var el map[string]json.RawMessage
		if err := json.Unmarshal(raw, &el); err != nil || el == nil {
			return nil, errors.NewMalformedInput(fmt.Sprintf("%s: not a JSON object", where))
		}
		v, err := decodeElement(where, el, opts)
		if err != nil {
			return nil, err
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, nil
}

// LoadDir rebuilds every vehicle saved under basePath by a Materializer,
// ordered by directory name. Directories without data.json are skipped.
func LoadDir(basePath string, opts ...vehicle.Option) ([]*vehicle.Vehicle, error) {
	entries, err := os.ReadDir(basePath)
	if err != nil {
		return nil, errors.NewIO("", fmt.Sprintf("read directory %s", basePath), err)
	}

	var vehicles []*vehicle.Vehicle
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(basePath, entry.Name(), DataFileName)
		raw, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			logger.ForMaterializer().Debug().Str("dir", entry.Name()).Msg("No data.json, skipping")
			continue
		}
		if err != nil {
			return nil, errors.NewIO(entry.Name(), "read data.json", err)
		}

		var el map[string]json.RawMessage
		if err := json.Unmarshal(raw, &el); err != nil {
			return nil, errors.NewMalformedInput(fmt.Sprintf("%s: not a JSON object: %v", path, err))
		}
		v, err := decodeElement(path, el, opts)
		if err != nil {
			return nil, err
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, nil
}

// WriteCollection writes the vehicles as a JSON array readable by LoadAll
func WriteCollection(path string, vehicles []*vehicle.Vehicle) error {
	snapshots := make([]vehicle.Snapshot, 0, len(vehicles))
	for _, v := range vehicles {
		snapshots = append(snapshots, v.Snapshot())
	}

	payload, err := encodeSnapshot(snapshots)
	if err != nil {
		return errors.NewIO("", "encode collection", err)
	}
	if err := writeFileAtomic(filepath.Dir(path), filepath.Base(path), payload); err != nil {
		return errors.NewIO("", fmt.Sprintf("write collection %s", path), err)
	}
	return nil
}

func decodeElement(where string, el map[string]json.RawMessage, opts []vehicle.Option) (*vehicle.Vehicle, error) {
	id, err := requireString(where, el, "id")
	if err != nil {
		return nil, err
	}
	uuid, err := requireString(where, el, "uuid")
	if err != nil {
		return nil, err
	}

	rawData, ok := el["data"]
	if !ok || string(rawData) == "null" {
		return nil, errors.NewMalformedInput(fmt.Sprintf("%s: missing key %q", where, "data"))
	}
	var data map[string]any
	if err := json.Unmarshal(rawData, &data); err != nil {
		return nil, errors.NewMalformedInput(fmt.Sprintf("%s: %q must be an object", where, "data"))
	}

	vopts := make([]vehicle.Option, 0, len(opts)+1)
	vopts = append(vopts, opts...)
	vopts = append(vopts, vehicle.WithUUID(uuid))

	v := vehicle.New(id, vopts...)
	if err := v.Update(vehicle.Updates(data)); err != nil {
		return nil, fmt.Errorf("%s: %w", where, err)
	}
	return v, nil
}

func requireString(where string, el map[string]json.RawMessage, key string) (string, error) {
	raw, ok := el[key]
	if !ok {
		return "", errors.NewMalformedInput(fmt.Sprintf("%s: missing key %q", where, key))
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return "", errors.NewMalformedInput(fmt.Sprintf("%s: %q must be a non-empty string", where, key))
	}
	return s, nil
}
