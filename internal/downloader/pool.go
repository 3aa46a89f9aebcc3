package downloader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"describer/pkg/logger"
	"describer/pkg/ratelimit"
)

// DownloadJob is one media file to fetch into the harvest folder
type DownloadJob struct {
	URL        string
	FileName   string
	ScreenName string
	StatusID   string
}

// DownloadResult is the outcome of a DownloadJob
type DownloadResult struct {
	Job      DownloadJob
	Success  bool
	Skipped  bool
	Error    error
	Duration time.Duration
	Size     int
}

// Fetcher downloads a URL into memory
type Fetcher interface {
	GetBytes(ctx context.Context, url string, maxBytes int64) ([]byte, error)
}

// MediaStorage is where downloaded files end up
type MediaStorage interface {
	IsDownloaded(name string) bool
	Save(r io.Reader, name string) error
}

// WorkerPool downloads media concurrently
type WorkerPool struct {
	numWorkers  int
	maxBytes    int64
	jobQueue    chan DownloadJob
	resultQueue chan DownloadResult
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	fetcher     Fetcher
	storage     MediaStorage
	rateLimiter ratelimit.Limiter
	logger      logger.Logger
}

// NewWorkerPool creates a pool bound to ctx. maxBytes caps a single download;
// zero means no cap.
func NewWorkerPool(
	ctx context.Context,
	numWorkers int,
	fetcher Fetcher,
	storage MediaStorage,
	rateLimiter ratelimit.Limiter,
	maxBytes int64,
	log logger.Logger,
) *WorkerPool {
	ctx, cancel := context.WithCancel(ctx)

	if log == nil {
		log = logger.GetLogger()
	}
	if numWorkers <= 0 {
		numWorkers = 1
	}

	return &WorkerPool{
		numWorkers:  numWorkers,
		maxBytes:    maxBytes,
		jobQueue:    make(chan DownloadJob, numWorkers*2),
		resultQueue: make(chan DownloadResult, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		fetcher:     fetcher,
		storage:     storage,
		rateLimiter: rateLimiter,
		logger:      log.WithField("component", "download_pool"),
	}
}

// Start launches the workers
func (wp *WorkerPool) Start() {
	wp.logger.DebugWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop stops accepting jobs, waits for queued ones and closes Results
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()

	wp.logger.Debug("Worker pool stopped")
}

// Submit queues a job, blocking while the queue is full
func (wp *WorkerPool) Submit(job DownloadJob) error {
	if err := wp.ctx.Err(); err != nil {
		return fmt.Errorf("worker pool is shutting down: %w", err)
	}

	select {
	case wp.jobQueue <- job:
		wp.logger.DebugWithFields("Job submitted to queue", map[string]interface{}{
			"file":        job.FileName,
			"screen_name": job.ScreenName,
		})
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down: %w", wp.ctx.Err())
	}
}

// Results streams one result per submitted job
func (wp *WorkerPool) Results() <-chan DownloadResult {
	return wp.resultQueue
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		var result DownloadResult
		if err := wp.ctx.Err(); err != nil {
			result = DownloadResult{Job: job, Error: err}
		} else {
			result = wp.processJob(job, id)
		}

		// Results must be drained even after cancellation so Stop can return
		wp.resultQueue <- result
	}
}

func (wp *WorkerPool) processJob(job DownloadJob, workerID int) DownloadResult {
	start := time.Now()
	result := DownloadResult{Job: job}

	if wp.storage.IsDownloaded(job.FileName) {
		wp.logger.DebugWithFields("Media already downloaded", map[string]interface{}{
			"worker_id": workerID,
			"file":      job.FileName,
		})
		result.Success = true
		result.Skipped = true
		result.Duration = time.Since(start)
		return result
	}

	if wp.rateLimiter != nil {
		if err := wp.rateLimiter.Wait(wp.ctx); err != nil {
			result.Error = fmt.Errorf("rate limiter: %w", err)
			result.Duration = time.Since(start)
			return result
		}
	}

	data, err := wp.fetcher.GetBytes(wp.ctx, job.URL, wp.maxBytes)
	if err != nil {
		result.Error = fmt.Errorf("download failed: %w", err)
		result.Duration = time.Since(start)

		wp.logger.ErrorWithFields("Worker failed to download media", map[string]interface{}{
			"worker_id": workerID,
			"file":      job.FileName,
			"error":     err.Error(),
			"duration":  result.Duration,
		})
		return result
	}

	result.Size = len(data)

	if err := wp.storage.Save(bytes.NewReader(data), job.FileName); err != nil {
		result.Error = fmt.Errorf("save failed: %w", err)
		result.Duration = time.Since(start)

		wp.logger.ErrorWithFields("Worker failed to save media", map[string]interface{}{
			"worker_id": workerID,
			"file":      job.FileName,
			"error":     err.Error(),
			"size":      result.Size,
		})
		return result
	}

	result.Success = true
	result.Duration = time.Since(start)

	wp.logger.DebugWithFields("Worker completed job", map[string]interface{}{
		"worker_id": workerID,
		"file":      job.FileName,
		"size":      result.Size,
		"duration":  result.Duration,
	})

	return result
}

// QueueSize returns the number of jobs waiting for a worker
func (wp *WorkerPool) QueueSize() int {
	return len(wp.jobQueue)
}
