package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/miruna26/aicore-data-collection/internal/vehicle"
	"github.com/miruna26/aicore-data-collection/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietOpts() []vehicle.Option {
	return []vehicle.Option{vehicle.WithObserver(&vehicle.Recorder{})}
}

func TestWriteCollectionLoadAllRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "collection.json")

	a := newTestVehicle(t, "AT1", "http://x/1.jpg", "http://x/2.jpg")
	b := vehicle.New("AT2", vehicle.WithUUID("uuid-AT2"), vehicle.WithObserver(&vehicle.Recorder{}))
	require.NoError(t, b.Update(vehicle.Updates{"title": "Caterham Seven"}))

	require.NoError(t, WriteCollection(path, []*vehicle.Vehicle{a, b}))

	loaded, err := LoadAll(path, quietOpts()...)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, a.Snapshot(), loaded[0].Snapshot())
	assert.Equal(t, b.Snapshot(), loaded[1].Snapshot())
	assert.Equal(t, []string{"http://x/1.jpg", "http://x/2.jpg"}, loaded[0].Images())
}

func TestLoadAllEmptyArray(t *testing.T) {
	loaded, err := ReadAll(strings.NewReader(`[]`), quietOpts()...)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestLoadAllMissingFile(t *testing.T) {
	_, err := LoadAll(filepath.Join(t.TempDir(), "nope.json"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeIO))
}

func TestLoadAllMalformedInput(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		message string
	}{
		{
			name:    "not an array",
			input:   `{"id": "AT1"}`,
			message: "JSON array",
		},
		{
			name:    "element not an object",
			input:   `[1]`,
			message: "element 0: not a JSON object",
		},
		{
			name:    "null second element",
			input:   `[{"id": "AT1", "uuid": "u1", "data": {}}, null]`,
			message: "element 1: not a JSON object",
		},
		{
			name:    "missing id",
			input:   `[{"uuid": "u", "data": {}}]`,
			message: `element 0: missing key "id"`,
		},
		{
			name:    "missing uuid in second element",
			input:   `[{"id": "AT1", "uuid": "u1", "data": {}}, {"id": "AT2", "data": {}}]`,
			message: `element 1: missing key "uuid"`,
		},
		{
			name:    "missing data",
			input:   `[{"id": "AT1", "uuid": "u1"}]`,
			message: `element 0: missing key "data"`,
		},
		{
			name:    "null data",
			input:   `[{"id": "AT1", "uuid": "u1", "data": null}]`,
			message: `missing key "data"`,
		},
		{
			name:    "data not an object",
			input:   `[{"id": "AT1", "uuid": "u1", "data": []}]`,
			message: "must be an object",
		},
		{
			name:    "empty id",
			input:   `[{"id": "", "uuid": "u1", "data": {}}]`,
			message: "non-empty string",
		},
		{
			name:    "numeric uuid",
			input:   `[{"id": "AT1", "uuid": 7, "data": {}}]`,
			message: "non-empty string",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadAll(strings.NewReader(tt.input), quietOpts()...)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeMalformedInput))
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestLoadAllPropagatesFieldErrors(t *testing.T) {
	_, err := ReadAll(strings.NewReader(
		`[{"id": "AT1", "uuid": "u1", "data": {"colour": "red"}}]`), quietOpts()...)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnknownField))
	assert.Contains(t, err.Error(), "element 0")

	_, err = ReadAll(strings.NewReader(
		`[{"id": "AT1", "uuid": "u1", "data": {"price": 30000}}]`), quietOpts()...)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidArgument))
}

func TestLoadAllKeepsUUID(t *testing.T) {
	loaded, err := ReadAll(strings.NewReader(
		`[{"id": "AT1", "uuid": "fixed-uuid", "data": {"price": null, "images": []}}]`), quietOpts()...)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "fixed-uuid", loaded[0].UUID())
	_, ok := loaded[0].Get(vehicle.FieldPrice)
	assert.False(t, ok)
}

func TestLoadDirSkipsDirectoriesWithoutData(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "empty"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "stray.txt"), []byte("x"), 0o644))

	m, _ := quietMaterializer(NewMockFetcher(nil))
	for _, id := range []string{"B2", "A1"} {
		_, err := m.Save(context.Background(), newTestVehicle(t, id), base)
		require.NoError(t, err)
	}

	loaded, err := LoadDir(base, quietOpts()...)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "A1", loaded[0].ID())
	assert.Equal(t, "B2", loaded[1].ID())
}

func TestLoadDirMalformedDataFile(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "AT1"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "AT1", DataFileName), []byte("not json"), 0o644))

	_, err := LoadDir(base, quietOpts()...)
	assert.True(t, errors.IsType(err, errors.ErrorTypeMalformedInput))
}
