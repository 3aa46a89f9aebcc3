package bot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"describer/pkg/archive"
	"describer/pkg/config"
	errs "describer/pkg/errors"
	"describer/pkg/geocode"
	"describer/pkg/history"
	"describer/pkg/imaging"
	"describer/pkg/logger"
	"describer/pkg/models"
	"describer/pkg/retry"
	"describer/pkg/source"
	"describer/pkg/twitter"
	"describer/pkg/vision"
)

// maxDownloadBytes caps a single candidate download. Oversized images are
// still fetched so they can be shrunk; this only guards against runaway bodies.
const maxDownloadBytes = 64 << 20

// Fetcher downloads remote candidates
type Fetcher interface {
	GetBytes(ctx context.Context, url string, maxBytes int64) ([]byte, error)
}

// Social is the part of the social API a publish run needs
type Social interface {
	VerifyCredentials(ctx context.Context) (*twitter.User, error)
	UploadMedia(ctx context.Context, data []byte, filename string) (string, error)
	PostUpdate(ctx context.Context, u twitter.Update) (*twitter.Tweet, error)
}

// Deps are the collaborators of a Bot. Geocoder and Archiver are optional.
type Deps struct {
	Source    source.Source
	Fetcher   Fetcher
	Captioner vision.Captioner
	Geocoder  geocode.Geocoder
	Social    Social
	Archiver  archive.Archiver
}

// Bot runs one publish job: pick an image, caption it, post it
type Bot struct {
	cfg    config.Config
	deps   Deps
	logger logger.Logger
	sleep  func(ctx context.Context, d time.Duration) error
	now    func() time.Time

	verified bool
}

// New checks deps and returns a Bot for cfg
func New(cfg config.Config, deps Deps, log logger.Logger) (*Bot, error) {
	if deps.Source == nil {
		return nil, errors.New("bot needs a candidate source")
	}
	if deps.Captioner == nil {
		return nil, errors.New("bot needs a captioner")
	}
	if deps.Social == nil && !cfg.Bot.DryRun {
		return nil, errors.New("bot needs a social client unless running dry")
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Bot{
		cfg:    cfg,
		deps:   deps,
		logger: log.WithField("source", deps.Source.Name()),
		sleep:  retry.Wait,
		now:    time.Now,
	}, nil
}

// Run performs a single publish job. On success the candidate id is appended
// to the history ledger, except on dry runs.
func (b *Bot) Run(ctx context.Context) (*models.PublishedRecord, error) {
	start := b.now()

	if err := b.startDelay(ctx); err != nil {
		return nil, err
	}

	ledger, err := history.Load(b.cfg.Bot.HistoryFile, b.logger)
	if err != nil {
		return nil, err
	}

	filter := source.NewFilter(b.cfg.Bot.AllowedExtensions, ledger, b.logger)
	supplier := source.NewSupplier(b.deps.Source, filter, b.logger)

	var published *models.Artifact
	controller := retry.NewController(b.controllerConfig(func(state retry.AttemptState) {
		if state.State == retry.StateSucceeded {
			published = state.Artifact
		}
	}))

	record, err := controller.Run(ctx, supplier, b.acquire, imaging.Shrink, b.publish)
	if err != nil {
		return nil, err
	}
	record.DryRun = b.cfg.Bot.DryRun

	if !record.DryRun {
		ledger.Add(record.CandidateID)
		if err := ledger.Save(); err != nil {
			return record, fmt.Errorf("posted %s but failed to update history: %w", record.StatusID, err)
		}
		b.archive(ctx, record, published)
	}

	b.logger.InfoWithFields("run complete", map[string]interface{}{
		"candidate_id": record.CandidateID,
		"status_id":    record.StatusID,
		"attempts":     record.Attempts,
		"tried":        supplier.Tried(),
		"dry_run":      record.DryRun,
		"took":         b.now().Sub(start),
	})
	return record, nil
}

func (b *Bot) controllerConfig(onAttempt func(retry.AttemptState)) retry.ControllerConfig {
	cc := retry.ControllerConfig{
		MaxAttempts:  b.cfg.Retry.MaxAttempts,
		MaxSizeBytes: b.cfg.Retry.MaxSizeBytes,
		ResizeFactor: b.cfg.Retry.ResizeFactor,
		RetryIf:      retry.RetryAll,
		OnAttempt:    onAttempt,
		Logger:       b.logger,
	}
	if b.cfg.Retry.StopOnPermanent {
		cc.RetryIf = retry.StopOnPermanent
	}
	cc.Backoff = retry.NewBackoff(b.cfg.Retry.Backoff, b.cfg.Retry.Delay, b.cfg.Retry.MaxDelay)
	return cc
}

func (b *Bot) startDelay(ctx context.Context) error {
	if b.cfg.Bot.SkipDelay {
		b.logger.Debug("start delay skipped")
		return nil
	}

	delay, found, err := ReadDelay(b.cfg.Bot.DelayFile)
	if err != nil {
		return err
	}
	if !found {
		b.logger.DebugWithFields("no delay file, starting immediately", map[string]interface{}{
			"path": b.cfg.Bot.DelayFile,
		})
		return nil
	}
	if delay <= 0 {
		return nil
	}

	b.logger.InfoWithFields("delaying start", map[string]interface{}{"delay": delay})
	if err := b.sleep(ctx, delay); err != nil {
		return fmt.Errorf("start delay interrupted: %w", err)
	}
	return nil
}

// acquire downloads a remote candidate or reads a local one
func (b *Bot) acquire(ctx context.Context, c models.Candidate) (*models.Artifact, error) {
	var (
		data []byte
		err  error
	)
	if isRemote(c.Locator) {
		if b.deps.Fetcher == nil {
			return nil, errors.New("no fetcher configured for remote candidates")
		}
		data, err = b.deps.Fetcher.GetBytes(ctx, c.Locator, maxDownloadBytes)
	} else {
		data, err = os.ReadFile(c.Locator)
	}
	if err != nil {
		return nil, err
	}

	artifact, err := imaging.NewArtifact(c.ID, data)
	if err != nil {
		return nil, err
	}

	b.logger.DebugWithFields("candidate acquired", map[string]interface{}{
		"candidate_id": c.ID,
		"bytes":        artifact.Size(),
		"width":        artifact.Width,
		"height":       artifact.Height,
		"format":       artifact.Format,
	})
	return artifact, nil
}

// publish captions the artifact, looks up a location and posts it
func (b *Bot) publish(ctx context.Context, a *models.Artifact, c models.Candidate) (*models.PublishedRecord, error) {
	img := vision.Image{Data: a.Data, MIMEType: a.MIMEType()}
	if isRemote(c.Locator) {
		img.URL = c.Locator
	}

	caption, err := b.deps.Captioner.Describe(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("caption: %w", err)
	}
	if strings.TrimSpace(caption) == "" {
		return nil, fmt.Errorf("caption: %w", vision.ErrNoCaption)
	}

	text := StatusText(c, caption)
	location := b.locate(ctx, c)

	record := &models.PublishedRecord{
		CandidateID: c.ID,
		Text:        text,
		Location:    location,
		Bytes:       a.Size(),
		CreatedAt:   b.now(),
	}

	if b.cfg.Bot.DryRun {
		b.logger.InfoWithFields("dry run, not posting", map[string]interface{}{
			"candidate_id": c.ID,
			"text":         text,
			"located":      location != nil,
		})
		return record, nil
	}

	if err := b.verify(ctx); err != nil {
		return nil, err
	}

	mediaID, err := b.deps.Social.UploadMedia(ctx, a.Data, "image."+extension(a.Format))
	if err != nil {
		return nil, err
	}
	record.MediaID = mediaID

	tweet, err := b.deps.Social.PostUpdate(ctx, twitter.Update{
		Status:   text,
		MediaIDs: []string{mediaID},
		Location: location,
	})
	if err != nil {
		return nil, err
	}

	record.StatusID = tweet.IDStr
	if tweet.CreatedAt != "" {
		if t, err := time.Parse(time.RubyDate, tweet.CreatedAt); err == nil {
			record.CreatedAt = t
		}
	}
	return record, nil
}

// verify checks the credentials once per run
func (b *Bot) verify(ctx context.Context) error {
	if b.verified {
		return nil
	}
	user, err := b.deps.Social.VerifyCredentials(ctx)
	if err != nil {
		return err
	}
	b.verified = true

	b.logger.InfoWithFields("logged in", map[string]interface{}{
		"screen_name": user.ScreenName,
		"user_id":     user.IDStr,
	})
	return nil
}

// locate resolves the candidate title to coordinates. Failures only cost the
// post its location.
func (b *Bot) locate(ctx context.Context, c models.Candidate) *models.Location {
	if b.deps.Geocoder == nil || !b.cfg.Geocode.Enabled || c.Title == "" {
		return nil
	}

	query := geocode.ParseQuery(c.Title)
	if query == "" {
		return nil
	}

	loc, err := b.deps.Geocoder.Lookup(ctx, query)
	if err != nil {
		b.logger.WithError(err).WarnWithFields("location lookup failed, posting without coordinates", map[string]interface{}{
			"candidate_id": c.ID,
			"query":        query,
		})
		return nil
	}
	if loc == nil {
		b.logger.DebugWithFields("no location found", map[string]interface{}{"query": query})
	}
	return loc
}

func (b *Bot) archive(ctx context.Context, record *models.PublishedRecord, artifact *models.Artifact) {
	if b.deps.Archiver == nil || artifact == nil {
		return
	}
	if err := b.deps.Archiver.Archive(ctx, record, artifact); err != nil {
		b.logger.WithError(err).WarnWithFields("failed to archive post", map[string]interface{}{
			"candidate_id": record.CandidateID,
		})
	}
}

// StatusText is the text posted with the image. Folder candidates link back
// to the post the image was harvested from.
func StatusText(c models.Candidate, caption string) string {
	caption = strings.TrimSpace(caption)
	if c.Source == config.SourceFolder && c.PostURL != "" {
		return vision.Sentence(caption) + " " + c.PostURL
	}
	return caption
}

// ExitCode maps the outcome of Run to the process exit status
func ExitCode(err error) int {
	switch {
	case err == nil, errs.IsFatal(err):
		return 0
	case errs.IsGiveUp(err):
		return 2
	default:
		return 1
	}
}

func isRemote(locator string) bool {
	return strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://")
}

func extension(format string) string {
	switch format {
	case "png":
		return "png"
	case "gif":
		return "gif"
	default:
		return "jpg"
	}
}
