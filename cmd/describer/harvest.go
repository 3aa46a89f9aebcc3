package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"describer/internal/httpclient"
	"describer/pkg/auth"
	"describer/pkg/checkpoint"
	"describer/pkg/harvest"
	"describer/pkg/ratelimit"
	"describer/pkg/storage"
	"describer/pkg/twitter"
	"describer/pkg/ui"
)

const harvestMaxBytes = 64 << 20

var (
	harvestDir     string
	harvestRestart bool
)

// harvestCmd represents the harvest command
var harvestCmd = &cobra.Command{
	Use:   "harvest [screen_name...]",
	Short: "Download account media for the folder source",
	Long: `Walk the timelines of the given accounts and download every attached photo
into the folder source directory. Files already present are skipped, so the
command can be rerun to pick up new posts. An interrupted harvest resumes at
the timeline page it stopped on unless --restart is given.

Without arguments the accounts listed under harvest.screen_names are used.`,
	Example: `  # Harvest the configured accounts
  describer harvest

  # Harvest one account into a specific folder
  describer harvest cursedimages --image-dir ./images`,
	Run: runHarvest,
}

func init() {
	rootCmd.AddCommand(harvestCmd)

	harvestCmd.Flags().StringVar(&harvestDir, "image-dir", "", "directory to download into")
	harvestCmd.Flags().BoolVar(&harvestRestart, "restart", false, "ignore saved checkpoints and walk timelines from the newest post")
	harvestCmd.Flags().StringVarP(&accountName, "account", "a", "", "use specific stored account")
}

func runHarvest(cmd *cobra.Command, args []string) {
	flags := make(map[string]interface{})
	if harvestDir != "" {
		flags["image-dir"] = harvestDir
	}
	if accountName != "" {
		flags["account"] = accountName
	}

	cfg, log, err := loadConfig(flags)
	if err != nil {
		fatal("Failed to load configuration", err)
	}

	manager, err := auth.NewManager()
	if err != nil {
		log.WithError(err).Warn("credential store unavailable")
	}
	if err := resolveCredentials(cfg, manager); err != nil {
		fatal("No credentials", fmt.Errorf("%w; run 'describer auth login'", err))
	}

	screenNames := cfg.Harvest.ScreenNames
	if len(args) > 0 {
		screenNames = args
	}
	if len(screenNames) == 0 {
		ui.PrintError("No accounts to harvest")
		return
	}

	store, err := storage.NewManager(cfg.Folder.Directory, cfg.Bot.AllowedExtensions...)
	if err != nil {
		fatal("Failed to open image folder", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	limiter := ratelimit.FromConfig(cfg.RateLimit)
	opts := []httpclient.Option{
		httpclient.WithLimiter(limiter),
		httpclient.WithAttempts(cfg.Retry.HTTPAttempts),
	}
	timeline := twitter.NewClient(ctx, cfg.Twitter, cfg.Download.Timeout, log, opts...)
	fetcher := httpclient.New("media", cfg.Download.Timeout, log, httpclient.WithAttempts(cfg.Retry.HTTPAttempts))

	ui.PrintInfo("Image folder", store.Dir())
	ui.PrintInfo("Already downloaded", fmt.Sprint(store.Count()))

	h := harvest.New(cfg.Harvest, timeline, fetcher, store, limiter, cfg.Download.ConcurrentDownloads, harvestMaxBytes, log)

	checkpoints, err := checkpoint.NewDefaultManager(log)
	if err != nil {
		ui.PrintWarning("Checkpoints disabled", err)
	} else {
		if harvestRestart {
			for _, name := range screenNames {
				if err := checkpoints.Delete(name); err != nil {
					ui.PrintWarning("Failed to reset checkpoint", err)
				}
			}
		}
		h.WithCheckpoints(checkpoints)
	}

	summary, err := h.Run(ctx, screenNames)
	if summary != nil {
		printSummary(summary)
	}
	if err != nil {
		fatal("Harvest failed", err)
	}
}

func printSummary(s *harvest.Summary) {
	ui.PrintSuccess("Harvest finished")
	ui.PrintInfo("Accounts", fmt.Sprint(s.Accounts))
	if s.Resumed > 0 {
		ui.PrintInfo("Resumed", fmt.Sprint(s.Resumed))
	}
	ui.PrintInfo("Statuses", fmt.Sprint(s.Statuses))
	ui.PrintInfo("Photos", fmt.Sprint(s.Media))
	ui.PrintInfo("Downloaded", fmt.Sprintf("%d (%s)", s.Downloaded, ui.FormatBytes(s.Bytes)))
	ui.PrintInfo("Skipped", fmt.Sprint(s.Skipped))
	if s.Failed > 0 {
		ui.PrintWarning("Failed", s.Failed)
	}
	ui.PrintInfo("Took", ui.FormatDuration(s.Duration.Round(time.Second)))
}
