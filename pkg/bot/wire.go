package bot

import (
	"context"
	"fmt"
	"strings"

	"describer/internal/httpclient"
	"describer/pkg/archive"
	"describer/pkg/config"
	"describer/pkg/geocode"
	"describer/pkg/logger"
	"describer/pkg/ratelimit"
	"describer/pkg/source"
	"describer/pkg/twitter"
	"describer/pkg/vision"
)

// FromConfig builds a Bot with the production clients described by cfg
func FromConfig(ctx context.Context, cfg config.Config, log logger.Logger) (*Bot, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	limiter := ratelimit.FromConfig(cfg.RateLimit)
	common := []httpclient.Option{
		httpclient.WithLimiter(limiter),
		httpclient.WithAttempts(cfg.Retry.HTTPAttempts),
	}
	withAgent := func(opts []httpclient.Option) []httpclient.Option {
		if cfg.Bot.UserAgent == "" {
			return opts
		}
		return append(opts, httpclient.WithHeader("User-Agent", cfg.Bot.UserAgent))
	}

	fetcher := httpclient.New("download", cfg.Download.Timeout, log, withAgent(common)...)

	var src source.Source
	switch strings.ToLower(cfg.Bot.Source) {
	case config.SourceReddit:
		src = source.NewReddit(cfg.Reddit, httpclient.New("reddit", cfg.Download.Timeout, log, withAgent(common)...))
	case config.SourceUnsplash:
		src = source.NewUnsplash(cfg.Unsplash, httpclient.New("unsplash", cfg.Download.Timeout, log, withAgent(common)...))
	case config.SourceFolder:
		src = source.NewFolder(cfg.Folder)
	default:
		return nil, fmt.Errorf("unknown source %q", cfg.Bot.Source)
	}

	captioner, err := vision.New(ctx, cfg.Vision, httpclient.New("vision", cfg.Vision.Timeout, log, common...), log)
	if err != nil {
		return nil, fmt.Errorf("failed to create captioner: %w", err)
	}

	deps := Deps{
		Source:    src,
		Fetcher:   fetcher,
		Captioner: captioner,
	}

	if cfg.Geocode.Enabled && cfg.Geocode.APIKey != "" {
		google := geocode.NewGoogle(cfg.Geocode, httpclient.New("geocode", cfg.Download.Timeout, log, common...), log)
		cached, err := geocode.NewCached(google, cfg.Geocode.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create geocode cache: %w", err)
		}
		deps.Geocoder = cached
	}

	if !cfg.Bot.DryRun {
		if !cfg.HasTwitterCredentials() {
			return nil, fmt.Errorf("twitter credentials are missing; run 'describer auth login' or set DESCRIBER_CONSUMER_KEY and friends")
		}
		deps.Social = twitter.NewClient(ctx, cfg.Twitter, cfg.Download.Timeout, log, common...)
	}

	if cfg.Archive.Enabled {
		store, err := archive.NewStore(cfg.Archive, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create archive: %w", err)
		}
		deps.Archiver = store
	}

	logger.LogComponentStart(log, "bot", map[string]interface{}{
		"source":   src.Name(),
		"vision":   cfg.Vision.Provider,
		"geocode":  deps.Geocoder != nil,
		"archive":  deps.Archiver != nil,
		"dry_run":  cfg.Bot.DryRun,
		"attempts": cfg.Retry.MaxAttempts,
	})

	return New(cfg, deps, log)
}
