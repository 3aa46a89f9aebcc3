package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"describer/pkg/bot"
	"describer/pkg/config"
	"describer/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage describer configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (DESCRIBER_*, also read from .env)
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file with the default values",
	Long: `Create a configuration file holding every option at its default value.

The file will be created in the current directory as '.describer.yaml'
unless a different path is specified with the --config flag.`,
	Run: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the effective configuration after merging every source.

Credentials and API keys are masked.`,
	Run: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Validate the effective configuration and check that the files and folders
it names are usable.`,
	Run: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) {
	configPath := configFile
	if configPath == "" {
		configPath = ".describer.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		ui.PrintError("Configuration file already exists", configPath)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", configPath)
		os.Exit(1)
	}

	if err := config.DefaultConfig().Save(configPath); err != nil {
		fatal("Failed to create configuration file", err)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Set the vision endpoint and key, or export DESCRIBER_VISION_API_KEY")
	fmt.Println("2. Run 'describer auth login' to store the bot account")
	fmt.Println("3. Run 'describer config validate' to check the configuration")
	fmt.Println("4. Try a post with 'describer run reddit --dry-run'")
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, _, err := loadConfig(nil)
	if err != nil {
		fatal("Failed to load configuration", err)
	}

	data, err := yaml.Marshal(maskConfig(*cfg))
	if err != nil {
		fatal("Failed to format configuration", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (DESCRIBER_*)")
	if configFile != "" {
		fmt.Printf("3. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("3. Configuration file: (searched in standard locations)")
	}
	fmt.Println("4. Default values")
}

func runConfigValidate(cmd *cobra.Command, args []string) {
	cfg, _, err := loadConfig(nil)
	if err != nil {
		fatal("Configuration validation failed", err)
	}

	problems, warnings := checkConfig(cfg)

	if len(problems) > 0 {
		ui.PrintError("Configuration has errors:")
		for _, p := range problems {
			fmt.Printf("  - %s\n", p)
		}
		os.Exit(1)
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
		fmt.Println()
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Source: %s\n", cfg.Bot.Source)
	fmt.Printf("  Vision provider: %s\n", cfg.Vision.Provider)
	fmt.Printf("  Max attempts: %d\n", cfg.Retry.MaxAttempts)
	fmt.Printf("  Max image size: %s\n", ui.FormatBytes(cfg.Retry.MaxSizeBytes))
	fmt.Printf("  Rate limit: %d requests/minute\n", cfg.RateLimit.RequestsPerMinute)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
}

// checkConfig runs the checks Validate cannot do without touching the filesystem
func checkConfig(cfg *config.Config) (problems, warnings []string) {
	if cfg.Vision.APIKey == "" {
		warnings = append(warnings, "vision API key not configured")
	}
	if !cfg.Bot.DryRun && !cfg.HasTwitterCredentials() {
		warnings = append(warnings, "posting credentials not configured; stored credentials will be used")
	}
	if cfg.Geocode.Enabled && cfg.Geocode.APIKey == "" {
		warnings = append(warnings, "geocoding is enabled without an API key and will be skipped")
	}

	if cfg.Bot.Source == config.SourceFolder {
		if info, err := os.Stat(cfg.Folder.Directory); err != nil || !info.IsDir() {
			problems = append(problems, fmt.Sprintf("image folder %q is not a directory", cfg.Folder.Directory))
		}
	}

	for _, file := range []string{cfg.Bot.HistoryFile, cfg.Logging.File} {
		if file == "" {
			continue
		}
		if dir := filepath.Dir(file); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				problems = append(problems, fmt.Sprintf("cannot create directory for %s: %v", file, err))
			}
		}
	}

	if _, _, err := bot.ReadDelay(cfg.Bot.DelayFile); err != nil {
		problems = append(problems, fmt.Sprintf("delay file: %v", err))
	}

	return problems, warnings
}

// maskConfig hides every secret in cfg
func maskConfig(cfg config.Config) config.Config {
	for _, s := range []*string{
		&cfg.Vision.APIKey,
		&cfg.Geocode.APIKey,
		&cfg.Twitter.ConsumerKey,
		&cfg.Twitter.ConsumerSecret,
		&cfg.Twitter.AccessToken,
		&cfg.Twitter.AccessSecret,
		&cfg.Archive.AccessKey,
		&cfg.Archive.SecretKey,
	} {
		*s = mask(*s)
	}
	return cfg
}

func mask(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) > 8:
		return s[:4] + "..." + s[len(s)-4:]
	default:
		return "***"
	}
}
