package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/miruna26/aicore-data-collection/internal/vehicle"
	"github.com/miruna26/aicore-data-collection/logger"
	"github.com/miruna26/aicore-data-collection/pkg/errors"

	"golang.org/x/time/rate"
)

const (
	// DataFileName is the snapshot file written in every vehicle directory
	DataFileName = "data.json"
	// ImagesDirName is the image subdirectory of every vehicle directory
	ImagesDirName = "images"

	defaultImageTimeout = 30 * time.Second
)

// Fetcher downloads the bytes behind a URL
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Materializer writes vehicles to base/<id>/{data.json,images/<id>_<n>.jpg}
type Materializer struct {
	fetcher      Fetcher
	imageTimeout time.Duration
	limiter      *rate.Limiter
	log          *logger.Logger
}

// Option configures a Materializer
type Option func(*Materializer)

// WithImageTimeout bounds each image request
func WithImageTimeout(d time.Duration) Option {
	return func(m *Materializer) {
		if d > 0 {
			m.imageTimeout = d
		}
	}
}

// WithRateLimit paces image requests across all saves sharing the materializer
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(m *Materializer) {
		if burst < 1 {
			burst = 1
		}
		m.limiter = rate.NewLimiter(r, burst)
	}
}

// WithLogger replaces the component logger
func WithLogger(l *logger.Logger) Option {
	return func(m *Materializer) {
		m.log = l
	}
}

// NewMaterializer creates a materializer downloading images through fetcher
func NewMaterializer(fetcher Fetcher, opts ...Option) *Materializer {
	m := &Materializer{
		fetcher:      fetcher,
		imageTimeout: defaultImageTimeout,
		limiter:      rate.NewLimiter(rate.Inf, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Materializer) logger() *logger.Logger {
	if m.log != nil {
		return m.log
	}
	return logger.ForMaterializer()
}

// SaveResult describes what a Save wrote
type SaveResult struct {
	Dir      string
	DataPath string
	Images   []string
	// Existed is true when the vehicle directory was already present
	Existed bool
}

// ImagePath returns the file an image at index is written to
func ImagePath(basePath, id string, index int) string {
	return filepath.Join(basePath, id, ImagesDirName, fmt.Sprintf("%s_%d.jpg", id, index))
}

// Save writes the vehicle snapshot and downloads its images.
//
// data.json is replaced atomically. Images are downloaded into a staging
// directory that then replaces images/, so a shorter list never leaves stale
// files behind. Image downloads are best-effort: every URL is attempted and
// failures are returned together as errors.DownloadErrors alongside the
// result. A URL that fails but was saved before keeps its previous file.
// Directory and file write failures abort with an io error.
func (m *Materializer) Save(ctx context.Context, v *vehicle.Vehicle, basePath string) (*SaveResult, error) {
	id := v.ID()
	if !safeID(id) {
		return nil, errors.NewInvalidArgument(id, "vehicle id cannot be used as a directory name")
	}

	log := m.logger()
	dir := filepath.Join(basePath, id)
	res := &SaveResult{
		Dir:      dir,
		DataPath: filepath.Join(dir, DataFileName),
	}

	if fi, err := os.Stat(dir); err == nil {
		if !fi.IsDir() {
			return nil, errors.NewIO(id, fmt.Sprintf("%s exists and is not a directory", dir), nil)
		}
		res.Existed = true
		log.Warn().
			Str("vehicle_id", id).
			Str("dir", dir).
			Msg("Vehicle directory already exists, overwriting")
	} else if !os.IsNotExist(err) {
		return nil, errors.NewIO(id, "stat vehicle directory", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.NewIO(id, "create vehicle directory", err)
	}

	imagesDir := filepath.Join(dir, ImagesDirName)
	previous := previousImages(res.DataPath)

	payload, err := encodeSnapshot(v.Snapshot())
	if err != nil {
		return nil, errors.NewIO(id, "encode data.json", err)
	}
	if err := writeFileAtomic(dir, DataFileName, payload); err != nil {
		return nil, errors.NewIO(id, "write data.json", err)
	}

	staging, err := os.MkdirTemp(dir, "."+ImagesDirName+".tmp-*")
	if err != nil {
		return res, errors.NewIO(id, "create image staging directory", err)
	}
	defer os.RemoveAll(staging)
	if err := os.Chmod(staging, 0o755); err != nil {
		return res, errors.NewIO(id, "create image staging directory", err)
	}

	var failures errors.DownloadErrors
	for i, url := range v.Images() {
		data, err := m.fetch(ctx, url)
		if err != nil {
			failures = append(failures, errors.NewDownload(id, url, err))
			kept, ok := keptImage(imagesDir, id, previous, url)
			log.Warn().
				Str("vehicle_id", id).
				Str("url", url).
				Bool("kept_previous", ok).
				Err(err).
				Msg("Image download failed")
			if !ok {
				continue
			}
			data = kept
		}

		path := ImagePath(basePath, id, i)
		if err := os.WriteFile(filepath.Join(staging, filepath.Base(path)), data, 0o644); err != nil {
			return res, errors.NewIO(id, fmt.Sprintf("write image %d", i), err)
		}
		res.Images = append(res.Images, path)
	}

	if err := replaceDir(staging, imagesDir); err != nil {
		return res, errors.NewIO(id, "replace images directory", err)
	}

	log.Debug().
		Str("vehicle_id", id).
		Int("images", len(res.Images)).
		Int("failed_images", len(failures)).
		Msg("Vehicle saved")

	if len(failures) > 0 {
		return res, failures
	}
	return res, nil
}

// previousImages returns the image URLs of an earlier data.json by index,
// or nil when there is none
func previousImages(dataPath string) map[string]int {
	raw, err := os.ReadFile(dataPath)
	if err != nil {
		return nil
	}
	var snapshot vehicle.Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil
	}
	urls := make(map[string]int, len(snapshot.Data.Images))
	for i, u := range snapshot.Data.Images {
		if _, ok := urls[u]; !ok {
			urls[u] = i
		}
	}
	return urls
}

// keptImage reads the file an earlier save wrote for url
func keptImage(imagesDir, id string, previous map[string]int, url string) ([]byte, bool) {
	i, ok := previous[url]
	if !ok {
		return nil, false
	}
	data, err := os.ReadFile(filepath.Join(imagesDir, fmt.Sprintf("%s_%d.jpg", id, i)))
	if err != nil {
		return nil, false
	}
	return data, true
}

// fetch downloads one image, giving up after the image timeout even if the
// fetcher ignores its context
func (m *Materializer) fetch(ctx context.Context, url string) ([]byte, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	fctx, cancel := context.WithTimeout(ctx, m.imageTimeout)
	defer cancel()

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		data, err := m.fetcher.Fetch(fctx, url)
		done <- result{data: data, err: err}
	}()

	select {
	case r := <-done:
		return r.data, r.err
	case <-fctx.Done():
		return nil, fmt.Errorf("image request abandoned after %v: %w", m.imageTimeout, fctx.Err())
	}
}

// encodeSnapshot renders the 4-space indented JSON written to data.json
func encodeSnapshot(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
