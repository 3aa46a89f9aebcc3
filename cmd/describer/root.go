package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"describer/pkg/auth"
	"describer/pkg/config"
	"describer/pkg/logger"
	"describer/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	noColor    bool
	quiet      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "describer",
	Short: "Bots that post captioned images",
	Long: `describer picks an image from a source, asks a vision service to caption it
and posts the image with its caption.

Sources:
  - reddit    top posts of a subreddit
  - unsplash  a random stock photo
  - folder    images collected with 'describer harvest'

Each run posts at most one image. Images that fail are shrunk and retried,
then replaced by the next candidate until the attempt budget runs out.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.SetNoColor(noColor)
		if quiet || logLevel == "error" {
			ui.SetQuietMode(true)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./.describer.yaml or ~/.config/describer/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")

	rootCmd.SetVersionTemplate(`describer {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig loads the layered configuration and initializes the global logger
func loadConfig(flags map[string]interface{}) (*config.Config, logger.Logger, error) {
	if flags == nil {
		flags = make(map[string]interface{})
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, nil, err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger.GetLogger(), nil
}

// resolveCredentials fills missing Twitter credentials from the credential
// store. Credentials already present in cfg win.
func resolveCredentials(cfg *config.Config, manager *auth.Manager) error {
	if cfg.HasTwitterCredentials() {
		return nil
	}
	if manager == nil {
		return auth.ErrCredentialsNotFound
	}

	account, err := manager.RetrieveDefault(cfg.Twitter.Account)
	if err != nil {
		return err
	}
	if err := account.Validate(); err != nil {
		return err
	}
	account.Apply(&cfg.Twitter)
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func fatal(msg string, err error) {
	ui.PrintError(msg, err.Error())
	os.Exit(1)
}
