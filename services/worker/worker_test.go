package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/miruna26/aicore-data-collection/helpers"
	"github.com/miruna26/aicore-data-collection/internal/crawler"
	"github.com/miruna26/aicore-data-collection/internal/storage"
	"github.com/miruna26/aicore-data-collection/internal/vehicle"
	"github.com/miruna26/aicore-data-collection/logger"
	"github.com/miruna26/aicore-data-collection/services/cache"
	"github.com/miruna26/aicore-data-collection/services/publisher"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockCollector implements the crawler.Collector interface for testing
type MockCollector struct {
	name     string
	vehicles []*vehicle.Vehicle
	err      error
	calls    int
}

// Ensure MockCollector implements crawler.Collector
var _ crawler.Collector = (*MockCollector)(nil)

func (m *MockCollector) Collect(ctx context.Context) ([]*vehicle.Vehicle, error) {
	m.calls++
	return m.vehicles, m.err
}

func (m *MockCollector) GetName() string {
	return m.name
}

// MockPublisher implements the publisher.Publisher interface for testing
type MockPublisher struct {
	mu       sync.Mutex
	messages map[string][]byte
	trims    int
}

// Ensure MockPublisher implements publisher.Publisher
var _ publisher.Publisher = (*MockPublisher)(nil)

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		messages: make(map[string][]byte),
	}
}

func (m *MockPublisher) Publish(key string, message []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Copy the message to ensure thread safety
	messageCopy := make([]byte, len(message))
	copy(messageCopy, message)

	m.messages[key] = messageCopy
	return nil
}

func (m *MockPublisher) TrimStreams() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trims++
	return nil
}

func (m *MockPublisher) Close() error {
	return nil
}

// MockLogger implements the helpers.LoggerInterface for testing
type MockLogger struct {
	mu     sync.Mutex
	errors []string
	infos  []string
}

// Ensure MockLogger implements helpers.LoggerInterface
var _ helpers.LoggerInterface = (*MockLogger)(nil)

func NewMockLogger() *MockLogger {
	return &MockLogger{
		errors: make([]string, 0),
		infos:  make([]string, 0),
	}
}

func (m *MockLogger) LogError(component string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, component+": "+err.Error())
}

func (m *MockLogger) LogInfo(format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, fmt.Sprintf(format, args...))
}

// MockFetcher serves images from memory
type MockFetcher struct {
	images map[string][]byte
}

func (m *MockFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if data, ok := m.images[url]; ok {
		return data, nil
	}
	return nil, errors.New("unexpected status code: 404")
}

// MockSink records the tables it receives
type MockSink struct {
	tables []*storage.Table
}

func (m *MockSink) Write(ctx context.Context, t *storage.Table) error {
	m.tables = append(m.tables, t)
	return nil
}

func newVehicle(t *testing.T, id string, images ...string) *vehicle.Vehicle {
	t.Helper()
	v := vehicle.New(id, vehicle.WithUUID("uuid-"+id), vehicle.WithObserver(&vehicle.Recorder{}))
	require.NoError(t, v.Update(vehicle.Updates{
		"href":   "https://example.com/car-details/" + id,
		"title":  "Lotus Exige",
		"images": images,
	}))
	return v
}

func newMaterializer(images map[string][]byte) *storage.Materializer {
	return storage.NewMaterializer(&MockFetcher{images: images},
		storage.WithLogger(logger.New(io.Discard)))
}

// TestWorkerRunOnce tests a full round over distinct vehicles
func TestWorkerRunOnce(t *testing.T) {
	outputDir := t.TempDir()
	mockLogger := NewMockLogger()
	mockPublisher := NewMockPublisher()
	sink := &MockSink{}
	seen := cache.NewSeenStore(cache.NewMemoryCache(), time.Hour)

	collector := &MockCollector{
		name: "TestCollector",
		vehicles: []*vehicle.Vehicle{
			newVehicle(t, "AT1", "http://img/1.jpg"),
			newVehicle(t, "AT2", "http://img/2.jpg", "http://img/missing.jpg"),
			newVehicle(t, "AT3"),
		},
	}

	w := NewWorker(
		context.Background(),
		collector,
		newMaterializer(map[string][]byte{
			"http://img/1.jpg": []byte("one"),
			"http://img/2.jpg": []byte("two"),
		}),
		mockPublisher,
		seen,
		mockLogger,
		Options{OutputDir: outputDir, SaveConcurrency: 2, Sink: sink, Verbose: true},
	)

	summary, err := w.RunOnce()
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Collected)
	assert.Equal(t, 3, summary.Saved)
	assert.Equal(t, 0, summary.Skipped)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 1, summary.ImageFailures)

	// Verify files on disk
	for _, id := range []string{"AT1", "AT2", "AT3"} {
		assert.FileExists(t, filepath.Join(outputDir, id, "data.json"))
	}
	assert.FileExists(t, storage.ImagePath(outputDir, "AT2", 0))
	assert.NoFileExists(t, storage.ImagePath(outputDir, "AT2", 1))

	// Verify the snapshots were published under their ids
	require.Contains(t, mockPublisher.messages, "AT1")
	var snapshot vehicle.Snapshot
	require.NoError(t, json.Unmarshal(mockPublisher.messages["AT1"], &snapshot))
	assert.Equal(t, "uuid-AT1", snapshot.UUID)
	assert.Len(t, mockPublisher.messages, 3)

	// Verify the sink got one table in collection order
	require.Len(t, sink.tables, 1)
	assert.Equal(t, 3, sink.tables[0].Len())
	assert.Equal(t, "AT1", sink.tables[0].Rows[0].ID)

	assert.True(t, seen.Seen("AT1"))
	assert.Empty(t, mockLogger.errors, "No errors should have been logged")
	require.NotEmpty(t, mockLogger.infos)
	assert.Contains(t, mockLogger.infos[0], "Crawled vehicle")
}

// TestWorkerSkipsSeenVehicles tests that a second round does not save again
func TestWorkerSkipsSeenVehicles(t *testing.T) {
	outputDir := t.TempDir()
	mockPublisher := NewMockPublisher()
	seen := cache.NewSeenStore(cache.NewMemoryCache(), time.Hour)
	collector := &MockCollector{
		name:     "TestCollector",
		vehicles: []*vehicle.Vehicle{newVehicle(t, "AT1"), newVehicle(t, "AT2")},
	}

	w := NewWorker(context.Background(), collector, newMaterializer(nil),
		mockPublisher, seen, NewMockLogger(), Options{OutputDir: outputDir})

	first, err := w.RunOnce()
	require.NoError(t, err)
	assert.Equal(t, 2, first.Saved)

	collector.vehicles = append(collector.vehicles, newVehicle(t, "AT3"))
	second, err := w.RunOnce()
	require.NoError(t, err)
	assert.Equal(t, 3, second.Collected)
	assert.Equal(t, 2, second.Skipped)
	assert.Equal(t, 1, second.Saved)
}

// TestWorkerWithError tests error handling in the worker
func TestWorkerWithError(t *testing.T) {
	mockLogger := NewMockLogger()
	mockPublisher := NewMockPublisher()

	collector := &MockCollector{
		name: "ErrorCollector",
		err:  errors.New("test error"),
	}

	w := NewWorker(context.Background(), collector, newMaterializer(nil),
		mockPublisher, nil, mockLogger, Options{OutputDir: t.TempDir()})

	_, err := w.RunOnce()
	require.Error(t, err)

	// Verify that the error was logged
	require.NotEmpty(t, mockLogger.errors, "An error should have been logged")
	assert.Contains(t, mockLogger.errors[0], "ErrorCollector", "Error should mention the collector name")
	assert.Contains(t, mockLogger.errors[0], "test error", "Error should contain the error message")

	// Verify that no messages were published
	assert.Empty(t, mockPublisher.messages, "No messages should have been published")
}

// TestWorkerSaveFailure tests that an unsaveable vehicle is neither published nor marked
func TestWorkerSaveFailure(t *testing.T) {
	mockLogger := NewMockLogger()
	mockPublisher := NewMockPublisher()
	seen := cache.NewSeenStore(cache.NewMemoryCache(), time.Hour)

	collector := &MockCollector{
		name:     "TestCollector",
		vehicles: []*vehicle.Vehicle{newVehicle(t, "../escape"), newVehicle(t, "AT1")},
	}

	w := NewWorker(context.Background(), collector, newMaterializer(nil),
		mockPublisher, seen, mockLogger, Options{OutputDir: t.TempDir()})

	summary, err := w.RunOnce()
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Saved)
	assert.Equal(t, 1, summary.Failed)
	assert.NotContains(t, mockPublisher.messages, "../escape")
	assert.False(t, seen.Seen("../escape"))
	require.Len(t, mockLogger.errors, 1)
	assert.Contains(t, mockLogger.errors[0], "../escape")
}

// TestWorkerCancelledRoundLeavesVehiclesUnmarked tests that a shutdown mid-round
// neither publishes nor marks the interrupted vehicles
func TestWorkerCancelledRoundLeavesVehiclesUnmarked(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mockPublisher := NewMockPublisher()
	seen := cache.NewSeenStore(cache.NewMemoryCache(), time.Hour)
	collector := &MockCollector{
		name:     "TestCollector",
		vehicles: []*vehicle.Vehicle{newVehicle(t, "AT1", "http://img/1.jpg")},
	}

	w := NewWorker(ctx, collector,
		newMaterializer(map[string][]byte{"http://img/1.jpg": []byte("one")}),
		mockPublisher, seen, NewMockLogger(), Options{OutputDir: t.TempDir()})

	summary, err := w.RunOnce()
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Saved)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.ImageFailures)
	assert.Empty(t, mockPublisher.messages)
	assert.False(t, seen.Seen("AT1"))
}

// TestWorkerRetriesVehicleWithoutImages tests that a vehicle whose images all
// failed is saved but picked up again next round
func TestWorkerRetriesVehicleWithoutImages(t *testing.T) {
	outputDir := t.TempDir()
	images := map[string][]byte{}
	seen := cache.NewSeenStore(cache.NewMemoryCache(), time.Hour)
	collector := &MockCollector{
		name:     "TestCollector",
		vehicles: []*vehicle.Vehicle{newVehicle(t, "AT1", "http://img/1.jpg")},
	}

	w := NewWorker(context.Background(), collector, newMaterializer(images),
		NewMockPublisher(), seen, NewMockLogger(), Options{OutputDir: outputDir})

	summary, err := w.RunOnce()
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Saved)
	assert.Equal(t, 1, summary.ImageFailures)
	assert.False(t, seen.Seen("AT1"))

	images["http://img/1.jpg"] = []byte("one")
	summary, err = w.RunOnce()
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Skipped)
	assert.Equal(t, 1, summary.Saved)
	assert.Equal(t, 0, summary.ImageFailures)
	assert.True(t, seen.Seen("AT1"))
	assert.FileExists(t, storage.ImagePath(outputDir, "AT1", 0))
}

// TestWorkerStartStopsOnCancel tests the loop exits and trims streams
func TestWorkerStartStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	mockPublisher := NewMockPublisher()
	collector := &MockCollector{name: "TestCollector"}

	w := NewWorker(ctx, collector, newMaterializer(nil), mockPublisher, nil,
		NewMockLogger(), Options{OutputDir: t.TempDir(), CrawlInterval: 10 * time.Millisecond})

	done := make(chan error, 1)
	go func() {
		done <- w.Start()
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}

	mockPublisher.mu.Lock()
	defer mockPublisher.mu.Unlock()
	assert.GreaterOrEqual(t, mockPublisher.trims, 1)
	assert.GreaterOrEqual(t, collector.calls, 1)

	// nothing was written for an empty round
	entries, _ := os.ReadDir(w.opts.OutputDir)
	assert.Empty(t, entries)
}
