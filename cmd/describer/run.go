package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"describer/pkg/auth"
	"describer/pkg/bot"
	"describer/pkg/config"
	"describer/pkg/ui"
)

var (
	// Run command flags
	historyFile string
	delayFile   string
	imageDir    string
	subreddit   string
	accountName string
	maxAttempts int
	dryRun      bool
	noDelay     bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [reddit|unsplash|folder]",
	Short: "Caption and post one image",
	Long: `Pick one image from the selected source, caption it and post it.

Posting credentials are taken from, in order:
  - the configuration file and DESCRIBER_* environment variables
  - stored credentials (use 'describer auth login' to store)

Exit status is 0 when an image was posted or no candidate was left, 2 when the
attempt budget ran out and 1 on any other error.`,
	Example: `  # Post the top image of the configured subreddit
  describer run reddit

  # Caption a harvested image without posting
  describer run folder --image-dir ./images --dry-run

  # Skip the start delay and use a stored account
  describer run unsplash --no-delay --account mybot`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{config.SourceReddit, config.SourceUnsplash, config.SourceFolder},
	Run:       runBot,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&historyFile, "history-file", "", "file of already posted candidate ids")
	runCmd.Flags().StringVar(&delayFile, "delay-file", "", "file holding the start delay in seconds")
	runCmd.Flags().StringVar(&imageDir, "image-dir", "", "folder source directory")
	runCmd.Flags().StringVar(&subreddit, "subreddit", "", "subreddit for the reddit source")
	runCmd.Flags().StringVarP(&accountName, "account", "a", "", "use specific stored account")
	runCmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "publish attempt budget")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "caption without posting")
	runCmd.Flags().BoolVar(&noDelay, "no-delay", false, "ignore the start delay file")
}

func runFlags(cmd *cobra.Command, args []string) map[string]interface{} {
	flags := make(map[string]interface{})
	if len(args) > 0 {
		flags["source"] = strings.ToLower(args[0])
	}
	if historyFile != "" {
		flags["history-file"] = historyFile
	}
	if delayFile != "" {
		flags["delay-file"] = delayFile
	}
	if imageDir != "" {
		flags["image-dir"] = imageDir
	}
	if subreddit != "" {
		flags["subreddit"] = subreddit
	}
	if accountName != "" {
		flags["account"] = accountName
	}
	if maxAttempts > 0 {
		flags["max-attempts"] = maxAttempts
	}
	if cmd.Flags().Changed("dry-run") {
		flags["dry-run"] = dryRun
	}
	if cmd.Flags().Changed("no-delay") {
		flags["no-delay"] = noDelay
	}
	return flags
}

func runBot(cmd *cobra.Command, args []string) {
	cfg, log, err := loadConfig(runFlags(cmd, args))
	if err != nil {
		fatal("Failed to load configuration", err)
	}

	if !cfg.Bot.DryRun {
		manager, err := auth.NewManager()
		if err != nil {
			log.WithError(err).Warn("credential store unavailable")
		}
		if err := resolveCredentials(cfg, manager); err != nil {
			fatal("No posting credentials", fmt.Errorf("%w; run 'describer auth login'", err))
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	ui.PrintInfo("Source", cfg.Bot.Source)

	b, err := bot.FromConfig(ctx, *cfg, log)
	if err != nil {
		fatal("Failed to initialize bot", err)
	}

	record, err := b.Run(ctx)
	code := bot.ExitCode(err)
	switch {
	case err == nil:
		ui.PrintRecord(record)
	case code == 0:
		ui.PrintWarning("Nothing to post", err)
	default:
		// a record with an error means the post went out but history was not saved
		ui.PrintRecord(record)
		ui.PrintError("Run failed", err.Error())
	}

	cancel()
	os.Exit(code)
}
