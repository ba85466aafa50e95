package worker

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"time"

	"github.com/miruna26/aicore-data-collection/helpers"
	"github.com/miruna26/aicore-data-collection/internal/crawler"
	"github.com/miruna26/aicore-data-collection/internal/storage"
	"github.com/miruna26/aicore-data-collection/internal/vehicle"
	"github.com/miruna26/aicore-data-collection/logger"
	"github.com/miruna26/aicore-data-collection/pkg/errors"
	"github.com/miruna26/aicore-data-collection/services/publisher"
)

// Saver materializes one vehicle under a base directory
type Saver interface {
	Save(ctx context.Context, v *vehicle.Vehicle, basePath string) (*storage.SaveResult, error)
}

// SeenTracker remembers listings saved in earlier rounds
type SeenTracker interface {
	Seen(id string) bool
	Mark(id, uuid string) error
}

// TableSink receives the flattened table of every round's saved vehicles
type TableSink interface {
	Write(ctx context.Context, t *storage.Table) error
}

// Options tunes a Worker
type Options struct {
	OutputDir       string
	SaveConcurrency int
	CrawlInterval   time.Duration
	// Sink is optional
	Sink TableSink
	// Verbose logs a sample snapshot every round
	Verbose bool
}

// Summary reports one crawl round
type Summary struct {
	Collected int
	Skipped   int
	Saved     int
	Failed    int
	// ImageFailures counts images that could not be downloaded for saved vehicles
	ImageFailures int
	Duration      time.Duration
}

// Worker handles the crawling, saving and publishing process
type Worker struct {
	ctx       context.Context
	collector crawler.Collector
	saver     Saver
	publisher publisher.Publisher
	seen      SeenTracker
	logger    helpers.LoggerInterface
	opts      Options
}

// NewWorker creates a new worker. publisher and seen may be nil.
func NewWorker(
	ctx context.Context,
	collector crawler.Collector,
	saver Saver,
	pub publisher.Publisher,
	seen SeenTracker,
	logger helpers.LoggerInterface,
	opts Options,
) *Worker {
	if opts.SaveConcurrency < 1 {
		opts.SaveConcurrency = 1
	}
	if opts.CrawlInterval <= 0 {
		opts.CrawlInterval = time.Hour
	}
	return &Worker{
		ctx:       ctx,
		collector: collector,
		saver:     saver,
		publisher: pub,
		seen:      seen,
		logger:    logger,
		opts:      opts,
	}
}

// Start runs a round every CrawlInterval until the context is cancelled
func (w *Worker) Start() error {
	for {
		summary, err := w.RunOnce()
		if err == nil {
			w.logger.LogInfo("Crawl round took %s: %d collected, %d saved, %d skipped, %d failed",
				summary.Duration, summary.Collected, summary.Saved, summary.Skipped, summary.Failed)
		}

		// Trim all streams after crawling
		if w.publisher != nil {
			if err := w.publisher.TrimStreams(); err != nil {
				w.logger.LogError("StreamTrimming", err)
			}
		}

		select {
		case <-w.ctx.Done():
			return nil
		case <-time.After(w.opts.CrawlInterval):
		}
	}
}

// RunOnce collects listings and materializes the ones not seen before.
// Saves run concurrently, each on a distinct vehicle. A vehicle whose images
// partly failed still counts as saved.
func (w *Worker) RunOnce() (Summary, error) {
	start := time.Now()
	log := logger.ForWorker()
	name := w.collector.GetName()

	vehicles, err := w.collector.Collect(w.ctx)
	if err != nil {
		w.logger.LogError(name, err)
		return Summary{Duration: time.Since(start)}, err
	}

	summary := Summary{Collected: len(vehicles)}
	pending := make([]*vehicle.Vehicle, 0, len(vehicles))
	for _, v := range vehicles {
		if w.seen != nil && w.seen.Seen(v.ID()) {
			summary.Skipped++
			continue
		}
		pending = append(pending, v)
	}

	saved := make([]bool, len(pending))
	imageFailures := make([]int, len(pending))

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, w.opts.SaveConcurrency)
	for i, v := range pending {
		wg.Add(1)
		go func(i int, v *vehicle.Vehicle) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			saved[i], imageFailures[i] = w.process(v)
		}(i, v)
	}
	wg.Wait()

	var savedVehicles []*vehicle.Vehicle
	for i, v := range pending {
		summary.ImageFailures += imageFailures[i]
		if saved[i] {
			summary.Saved++
			savedVehicles = append(savedVehicles, v)
		} else {
			summary.Failed++
		}
	}

	if w.opts.Sink != nil && len(savedVehicles) > 0 {
		if err := w.opts.Sink.Write(w.ctx, storage.ToTable(savedVehicles)); err != nil {
			w.logger.LogError("TableSink", err)
		}
	}

	if w.opts.Verbose && len(savedVehicles) > 0 {
		w.logSample(savedVehicles[0])
	}

	summary.Duration = time.Since(start)
	log.Info().
		Str("collector", name).
		Int("collected", summary.Collected).
		Int("skipped", summary.Skipped).
		Int("saved", summary.Saved).
		Int("failed", summary.Failed).
		Int("image_failures", summary.ImageFailures).
		Dur("duration", summary.Duration).
		Msg("Crawl round finished")

	return summary, nil
}

// process saves, publishes and marks one vehicle. It reports whether the
// vehicle was saved and how many of its images failed.
//
// A save cut short by cancellation counts as failed. A vehicle whose every
// image failed is saved and published but not marked, so the next round
// retries it.
func (w *Worker) process(v *vehicle.Vehicle) (bool, int) {
	id := v.ID()

	_, err := w.saver.Save(w.ctx, v, w.opts.OutputDir)
	failedImages := 0
	if err != nil {
		var downloads errors.DownloadErrors
		if !stderrors.As(err, &downloads) {
			w.logger.LogError(id, err)
			return false, 0
		}
		failedImages = len(downloads)
	}

	if ctxErr := w.ctx.Err(); ctxErr != nil {
		logger.ForVehicle(id).Warn().
			Err(ctxErr).
			Msg("Save interrupted by shutdown, vehicle left unmarked")
		return false, failedImages
	}

	if failedImages > 0 {
		logger.ForVehicle(id).Warn().
			Int("failed", failedImages).
			Int("images", len(v.Images())).
			Msg("Vehicle saved with missing images")
	}

	if w.publisher != nil {
		snapshot, err := json.Marshal(v.Snapshot())
		if err != nil {
			w.logger.LogError(id, err)
		} else if err := w.publisher.Publish(id, snapshot); err != nil {
			w.logger.LogError(id, err)
		}
	}

	if w.seen != nil && (failedImages == 0 || failedImages < len(v.Images())) {
		if err := w.seen.Mark(id, v.UUID()); err != nil {
			w.logger.LogError(id, errors.NewCache(id, "mark seen", err))
		}
	}
	return true, failedImages
}

// logSample logs one saved snapshot with the image list collapsed to a count
func (w *Worker) logSample(v *vehicle.Vehicle) {
	flat := v.Flatten()
	sample := map[string]any{
		"id":     flat.ID,
		"url":    v.URL(),
		"images": len(flat.Images),
	}
	if title, ok := v.Get(vehicle.FieldTitle); ok {
		sample["title"] = title
	}
	if price, ok := v.Get(vehicle.FieldPrice); ok {
		sample["price"] = price
	}
	data, err := json.Marshal(sample)
	if err != nil {
		w.logger.LogError(v.ID(), err)
		return
	}
	w.logger.LogInfo("Crawled vehicle: %s", string(data))
}
