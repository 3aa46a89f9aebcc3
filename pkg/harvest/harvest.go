// Package harvest fills the folder source with the photos posted by a set of
// accounts. Timelines are paged concurrently, one goroutine per account, and
// the media is fetched through the download worker pool.
package harvest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"describer/internal/downloader"
	"describer/pkg/checkpoint"
	"describer/pkg/config"
	"describer/pkg/logger"
	"describer/pkg/ratelimit"
	"describer/pkg/source"
	"describer/pkg/twitter"
)

// Timeline is the read side of the social API
type Timeline interface {
	GetUser(ctx context.Context, screenName string) (*twitter.User, error)
	GetUserTimeline(ctx context.Context, screenName string, count int, maxID int64) ([]twitter.Tweet, error)
}

// Checkpoints persists the timeline position of each account
type Checkpoints interface {
	Load(screenName string) (*checkpoint.Checkpoint, error)
	Create(screenName, userID string) (*checkpoint.Checkpoint, error)
	Advance(cp *checkpoint.Checkpoint, maxID int64, statuses, media int) error
	Delete(screenName string) error
}

// Summary counts what a harvest did
type Summary struct {
	Accounts   int
	Resumed    int
	Statuses   int
	Media      int
	Downloaded int
	Skipped    int
	Failed     int
	Bytes      int64
	Duration   time.Duration
}

// Harvester downloads account media into a folder
type Harvester struct {
	timeline    Timeline
	checkpoints Checkpoints
	fetcher     downloader.Fetcher
	storage     downloader.MediaStorage
	limiter     ratelimit.Limiter
	reads       ratelimit.Limiter // timeline budget shared by every account
	pageSize    int
	workers     int
	maxBytes    int64
	logger      logger.Logger
}

// New creates a Harvester. workers is the download pool size.
func New(cfg config.HarvestConfig, timeline Timeline, fetcher downloader.Fetcher, storage downloader.MediaStorage, limiter ratelimit.Limiter, workers int, maxBytes int64, log logger.Logger) *Harvester {
	if log == nil {
		log = logger.NewNopLogger()
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > twitter.MaxTimelinePage {
		pageSize = twitter.MaxTimelinePage
	}
	var reads ratelimit.Limiter
	if cfg.TimelineRequests > 0 && cfg.TimelineWindow > 0 {
		reads = ratelimit.NewSlidingWindow(cfg.TimelineRequests, cfg.TimelineWindow)
	}
	return &Harvester{
		timeline: timeline,
		reads:    reads,
		fetcher:  fetcher,
		storage:  storage,
		limiter:  limiter,
		pageSize: pageSize,
		workers:  workers,
		maxBytes: maxBytes,
		logger:   log.WithField("component", "harvest"),
	}
}

// WithCheckpoints makes the harvester resume accounts from cp and record
// progress after every page
func (h *Harvester) WithCheckpoints(cp Checkpoints) *Harvester {
	h.checkpoints = cp
	return h
}

// Run harvests every account in screenNames. Download failures are counted,
// not returned; a failing timeline read stops the harvest.
func (h *Harvester) Run(ctx context.Context, screenNames []string) (*Summary, error) {
	start := time.Now()
	summary := &Summary{Accounts: len(screenNames)}

	pool := downloader.NewWorkerPool(ctx, h.workers, h.fetcher, h.storage, h.limiter, h.maxBytes, h.logger)
	pool.Start()

	var collected sync.WaitGroup
	collected.Add(1)
	go func() {
		defer collected.Done()
		for result := range pool.Results() {
			switch {
			case result.Skipped:
				summary.Skipped++
			case result.Success:
				summary.Downloaded++
				summary.Bytes += int64(result.Size)
			default:
				summary.Failed++
				h.logger.WithError(result.Error).WarnWithFields("media download failed", map[string]interface{}{
					"file": result.Job.FileName,
					"url":  result.Job.URL,
				})
			}
		}
	}()

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range screenNames {
		g.Go(func() error {
			statuses, media, resumed, err := h.harvestAccount(gctx, name, pool)
			mu.Lock()
			summary.Statuses += statuses
			summary.Media += media
			if resumed {
				summary.Resumed++
			}
			mu.Unlock()
			return err
		})
	}
	err := g.Wait()

	pool.Stop()
	collected.Wait()
	summary.Duration = time.Since(start)

	h.logger.InfoWithFields("harvest complete", map[string]interface{}{
		"accounts":   summary.Accounts,
		"statuses":   summary.Statuses,
		"media":      summary.Media,
		"downloaded": summary.Downloaded,
		"skipped":    summary.Skipped,
		"failed":     summary.Failed,
		"duration":   summary.Duration,
	})
	return summary, err
}

func (h *Harvester) waitRead(ctx context.Context) error {
	if h.reads == nil {
		return nil
	}
	if err := h.reads.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for timeline budget: %w", err)
	}
	return nil
}

// harvestAccount pages backwards through the timeline of screenName and
// queues every photo. The number of pages is bounded by the account's status
// count so a misbehaving max_id cannot loop forever.
func (h *Harvester) harvestAccount(ctx context.Context, screenName string, pool *downloader.WorkerPool) (statuses, media int, resumed bool, err error) {
	if err := h.waitRead(ctx); err != nil {
		return 0, 0, false, err
	}
	user, err := h.timeline.GetUser(ctx, screenName)
	if err != nil {
		return 0, 0, false, err
	}

	pages := (user.StatusesCount + h.pageSize - 1) / h.pageSize
	log := h.logger.WithField("screen_name", screenName)

	var maxID int64
	startPage := 0
	cp := h.loadCheckpoint(screenName, user.IDStr, log)
	if cp != nil && cp.Pages > 0 {
		maxID = cp.MaxID
		startPage = cp.Pages
		resumed = true
	}

	log.InfoWithFields("harvesting account", map[string]interface{}{
		"statuses_count": user.StatusesCount,
		"pages":          pages,
		"start_page":     startPage,
	})

	for page := startPage; page < pages; page++ {
		if err := h.waitRead(ctx); err != nil {
			return statuses, media, resumed, err
		}
		batch, err := h.timeline.GetUserTimeline(ctx, screenName, h.pageSize, maxID)
		if err != nil {
			return statuses, media, resumed, err
		}
		if len(batch) == 0 {
			break
		}
		statuses += len(batch)

		queued := 0
		for _, tweet := range batch {
			for _, photo := range tweet.Photos() {
				job := downloader.DownloadJob{
					URL:        photo.MediaURLHTTPS,
					FileName:   source.MediaFileName(screenName, tweet.IDStr, photo.IDStr, "jpg"),
					ScreenName: screenName,
					StatusID:   tweet.IDStr,
				}
				if err := pool.Submit(job); err != nil {
					return statuses, media, resumed, fmt.Errorf("queue %s: %w", job.FileName, err)
				}
				queued++
			}
		}
		media += queued

		// max_id is inclusive
		maxID = batch[len(batch)-1].ID - 1

		if cp != nil {
			if err := h.checkpoints.Advance(cp, maxID, len(batch), queued); err != nil {
				log.WithError(err).Warn("failed to save checkpoint")
			}
		}

		log.DebugWithFields("timeline page fetched", map[string]interface{}{
			"page":   page + 1,
			"tweets": len(batch),
			"max_id": maxID,
		})

		if maxID <= 0 {
			break
		}
	}

	if cp != nil {
		if err := h.checkpoints.Delete(screenName); err != nil {
			log.WithError(err).Warn("failed to delete checkpoint")
		}
	}
	return statuses, media, resumed, nil
}

// loadCheckpoint returns the checkpoint to continue from, creating one when
// none matches the account. Checkpoint errors never stop a harvest.
func (h *Harvester) loadCheckpoint(screenName, userID string, log logger.Logger) *checkpoint.Checkpoint {
	if h.checkpoints == nil {
		return nil
	}

	cp, err := h.checkpoints.Load(screenName)
	if err != nil {
		log.WithError(err).Warn("failed to load checkpoint, starting over")
		cp = nil
	}
	if cp != nil && cp.UserID == userID {
		log.InfoWithFields("resuming from checkpoint", map[string]interface{}{
			"pages":  cp.Pages,
			"max_id": cp.MaxID,
		})
		return cp
	}

	cp, err = h.checkpoints.Create(screenName, userID)
	if err != nil {
		log.WithError(err).Warn("failed to create checkpoint")
		return nil
	}
	return cp
}
