package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Source names accepted by bot.source
const (
	SourceReddit   = "reddit"
	SourceUnsplash = "unsplash"
	SourceFolder   = "folder"
)

// Pause shapes accepted by retry.backoff
const (
	BackoffConstant    = "constant"
	BackoffLinear      = "linear"
	BackoffExponential = "exponential"
)

// Caption providers accepted by vision.provider
const (
	VisionAzure  = "azure"
	VisionGemini = "gemini"
)

// Config holds all configuration for a describer bot. It is passed by value
// into the components that need it; nothing reads package-level state.
type Config struct {
	Bot       BotConfig       `yaml:"bot" json:"bot"`
	Reddit    RedditConfig    `yaml:"reddit" json:"reddit"`
	Unsplash  UnsplashConfig  `yaml:"unsplash" json:"unsplash"`
	Folder    FolderConfig    `yaml:"folder" json:"folder"`
	Vision    VisionConfig    `yaml:"vision" json:"vision"`
	Geocode   GeocodeConfig   `yaml:"geocode" json:"geocode"`
	Twitter   TwitterConfig   `yaml:"twitter" json:"twitter"`
	Retry     RetryConfig     `yaml:"retry" json:"retry"`
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
	Download  DownloadConfig  `yaml:"download" json:"download"`
	Harvest   HarvestConfig   `yaml:"harvest" json:"harvest"`
	Archive   ArchiveConfig   `yaml:"archive" json:"archive"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// BotConfig holds settings shared by every source
type BotConfig struct {
	Source            string   `yaml:"source" json:"source"`
	UserAgent         string   `yaml:"user_agent" json:"user_agent"`
	HistoryFile       string   `yaml:"history_file" json:"history_file"`
	DelayFile         string   `yaml:"delay_file" json:"delay_file"`
	AllowedExtensions []string `yaml:"allowed_extensions" json:"allowed_extensions"`
	DryRun            bool     `yaml:"dry_run" json:"dry_run"`
	SkipDelay         bool     `yaml:"skip_delay" json:"skip_delay"`
}

// RedditConfig selects the subreddit listing used as candidate source
type RedditConfig struct {
	BaseURL   string `yaml:"base_url" json:"base_url"`
	Subreddit string `yaml:"subreddit" json:"subreddit"`
	Listing   string `yaml:"listing" json:"listing"`
}

// UnsplashConfig points at the random stock photo endpoint
type UnsplashConfig struct {
	RandomURL string `yaml:"random_url" json:"random_url"`
}

// FolderConfig points at a folder of previously harvested images
type FolderConfig struct {
	Directory       string `yaml:"directory" json:"directory"`
	StatusURLFormat string `yaml:"status_url_format" json:"status_url_format"`
}

// VisionConfig configures the captioning service
type VisionConfig struct {
	Provider    string        `yaml:"provider" json:"provider"`
	Endpoint    string        `yaml:"endpoint" json:"endpoint"`
	APIKey      string        `yaml:"api_key" json:"api_key"`
	Language    string        `yaml:"language" json:"language"`
	Details     string        `yaml:"details" json:"details"`
	GeminiModel string        `yaml:"gemini_model" json:"gemini_model"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
}

// GeocodeConfig configures the best-effort location lookup
type GeocodeConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Endpoint  string `yaml:"endpoint" json:"endpoint"`
	APIKey    string `yaml:"api_key" json:"api_key"`
	CacheSize int    `yaml:"cache_size" json:"cache_size"`
}

// TwitterConfig holds the publishing account credentials and endpoints
type TwitterConfig struct {
	Account            string `yaml:"account" json:"account"`
	ConsumerKey        string `yaml:"consumer_key" json:"consumer_key"`
	ConsumerSecret     string `yaml:"consumer_secret" json:"consumer_secret"`
	AccessToken        string `yaml:"access_token" json:"access_token"`
	AccessSecret       string `yaml:"access_secret" json:"access_secret"`
	APIBaseURL         string `yaml:"api_base_url" json:"api_base_url"`
	UploadBaseURL      string `yaml:"upload_base_url" json:"upload_base_url"`
	DisplayCoordinates bool   `yaml:"display_coordinates" json:"display_coordinates"`
}

// RetryConfig drives the publish retry controller and per-request HTTP retries
type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts" json:"max_attempts"`
	MaxSizeBytes    int64         `yaml:"max_size_bytes" json:"max_size_bytes"`
	ResizeFactor    float64       `yaml:"resize_factor" json:"resize_factor"`
	Delay           time.Duration `yaml:"delay" json:"delay"`
	Backoff         string        `yaml:"backoff" json:"backoff"`
	MaxDelay        time.Duration `yaml:"max_delay" json:"max_delay"`
	StopOnPermanent bool          `yaml:"stop_on_permanent" json:"stop_on_permanent"`
	HTTPAttempts    int           `yaml:"http_attempts" json:"http_attempts"`
}

// RateLimitConfig bounds outgoing API requests
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int `yaml:"burst_size" json:"burst_size"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	Timeout             time.Duration `yaml:"timeout" json:"timeout"`
	ConcurrentDownloads int           `yaml:"concurrent_downloads" json:"concurrent_downloads"`
}

// HarvestConfig lists the accounts whose media is collected into the folder source
type HarvestConfig struct {
	ScreenNames      []string      `yaml:"screen_names" json:"screen_names"`
	PageSize         int           `yaml:"page_size" json:"page_size"`
	TimelineRequests int           `yaml:"timeline_requests" json:"timeline_requests"`
	TimelineWindow   time.Duration `yaml:"timeline_window" json:"timeline_window"`
}

// ArchiveConfig configures the optional S3-compatible archive of published posts
type ArchiveConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Endpoint  string `yaml:"endpoint" json:"endpoint"`
	Region    string `yaml:"region" json:"region"`
	AccessKey string `yaml:"access_key" json:"access_key"`
	SecretKey string `yaml:"secret_key" json:"secret_key"`
	Bucket    string `yaml:"bucket" json:"bucket"`
	UseSSL    bool   `yaml:"use_ssl" json:"use_ssl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	File   string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config with the production defaults
func DefaultConfig() *Config {
	return &Config{
		Bot: BotConfig{
			Source:            SourceReddit,
			UserAgent:         "describer/1.0 (image caption bot)",
			HistoryFile:       "history.txt",
			DelayFile:         "delay.tmp",
			AllowedExtensions: []string{"jpg", "png"},
		},
		Reddit: RedditConfig{
			BaseURL:   "https://www.reddit.com",
			Subreddit: "cityporn",
			Listing:   "top",
		},
		Unsplash: UnsplashConfig{
			RandomURL: "https://source.unsplash.com/random",
		},
		Folder: FolderConfig{
			Directory:       "img",
			StatusURLFormat: "https://twitter.com/%s/status/%s",
		},
		Vision: VisionConfig{
			Provider:    VisionAzure,
			Endpoint:    "https://westcentralus.api.cognitive.microsoft.com/vision/v1.0/analyze",
			Language:    "en",
			Details:     "Landmarks",
			GeminiModel: "gemini-2.5-flash",
			Timeout:     30 * time.Second,
		},
		Geocode: GeocodeConfig{
			Enabled:   true,
			Endpoint:  "https://maps.googleapis.com/maps/api/geocode/json",
			CacheSize: 256,
		},
		Twitter: TwitterConfig{
			APIBaseURL:         "https://api.twitter.com/1.1",
			UploadBaseURL:      "https://upload.twitter.com/1.1",
			DisplayCoordinates: true,
		},
		Retry: RetryConfig{
			MaxAttempts:  6,
			MaxSizeBytes: 3_000_000,
			ResizeFactor: 0.9,
			Backoff:      BackoffConstant,
			MaxDelay:     time.Minute,
			HTTPAttempts: 3,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
			BurstSize:         5,
		},
		Download: DownloadConfig{
			Timeout:             30 * time.Second,
			ConcurrentDownloads: 3,
		},
		Harvest: HarvestConfig{
			ScreenNames:      []string{"cursedimages", "cursedimages_2"},
			PageSize:         200,
			TimelineRequests: 900,
			TimelineWindow:   15 * time.Minute,
		},
		Archive: ArchiveConfig{
			Region: "us-east-1",
			UseSSL: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadFromEnv loads configuration from DESCRIBER_* environment variables
func (c *Config) LoadFromEnv() error {
	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}

	setString("DESCRIBER_SOURCE", &c.Bot.Source)
	setString("DESCRIBER_USER_AGENT", &c.Bot.UserAgent)
	setString("DESCRIBER_HISTORY_FILE", &c.Bot.HistoryFile)
	setString("DESCRIBER_DELAY_FILE", &c.Bot.DelayFile)
	setString("DESCRIBER_SUBREDDIT", &c.Reddit.Subreddit)
	setString("DESCRIBER_IMAGE_DIR", &c.Folder.Directory)

	setString("DESCRIBER_VISION_PROVIDER", &c.Vision.Provider)
	setString("DESCRIBER_VISION_ENDPOINT", &c.Vision.Endpoint)
	setString("DESCRIBER_VISION_API_KEY", &c.Vision.APIKey)
	setString("DESCRIBER_GEOCODE_API_KEY", &c.Geocode.APIKey)

	setString("DESCRIBER_TWITTER_ACCOUNT", &c.Twitter.Account)
	setString("DESCRIBER_CONSUMER_KEY", &c.Twitter.ConsumerKey)
	setString("DESCRIBER_CONSUMER_SECRET", &c.Twitter.ConsumerSecret)
	setString("DESCRIBER_ACCESS_TOKEN", &c.Twitter.AccessToken)
	setString("DESCRIBER_ACCESS_SECRET", &c.Twitter.AccessSecret)

	setString("DESCRIBER_ARCHIVE_ENDPOINT", &c.Archive.Endpoint)
	setString("DESCRIBER_ARCHIVE_BUCKET", &c.Archive.Bucket)
	setString("DESCRIBER_ARCHIVE_ACCESS_KEY", &c.Archive.AccessKey)
	setString("DESCRIBER_ARCHIVE_SECRET_KEY", &c.Archive.SecretKey)

	setString("DESCRIBER_RETRY_BACKOFF", &c.Retry.Backoff)

	setString("DESCRIBER_LOG_LEVEL", &c.Logging.Level)
	setString("DESCRIBER_LOG_FORMAT", &c.Logging.Format)

	if v := os.Getenv("DESCRIBER_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DESCRIBER_MAX_ATTEMPTS: %w", err)
		}
		c.Retry.MaxAttempts = n
	}
	if v := os.Getenv("DESCRIBER_MAX_SIZE_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("DESCRIBER_MAX_SIZE_BYTES: %w", err)
		}
		c.Retry.MaxSizeBytes = n
	}
	if v := os.Getenv("DESCRIBER_DRY_RUN"); v != "" {
		c.Bot.DryRun = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("DESCRIBER_ARCHIVE_ENABLED"); v != "" {
		c.Archive.Enabled = strings.EqualFold(v, "true") || v == "1"
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".describer.yaml",
		".describer.yml",
		filepath.Join(home, ".config", "describer", "config.yaml"),
		filepath.Join(home, ".config", "describer", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.Bot.Source) {
	case SourceReddit, SourceUnsplash, SourceFolder:
	default:
		errs = append(errs, fmt.Errorf("unknown source %q", c.Bot.Source))
	}
	if len(c.Bot.AllowedExtensions) == 0 {
		errs = append(errs, errors.New("at least one allowed extension is required"))
	}

	switch strings.ToLower(c.Vision.Provider) {
	case VisionAzure, VisionGemini:
	default:
		errs = append(errs, fmt.Errorf("unknown vision provider %q", c.Vision.Provider))
	}

	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, errors.New("retry max attempts must be positive"))
	}
	if c.Retry.MaxSizeBytes <= 0 {
		errs = append(errs, errors.New("retry max size must be positive"))
	}
	if c.Retry.ResizeFactor <= 0 || c.Retry.ResizeFactor >= 1 {
		errs = append(errs, errors.New("retry resize factor must be between 0 and 1"))
	}
	switch strings.ToLower(c.Retry.Backoff) {
	case "", BackoffConstant, BackoffLinear, BackoffExponential:
	default:
		errs = append(errs, fmt.Errorf("unknown retry backoff %q", c.Retry.Backoff))
	}
	if c.Retry.HTTPAttempts <= 0 {
		errs = append(errs, errors.New("http attempts must be positive"))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.RateLimit.BurstSize <= 0 {
		errs = append(errs, errors.New("burst size must be positive"))
	}

	if c.Harvest.TimelineRequests < 0 || c.Harvest.TimelineWindow < 0 {
		errs = append(errs, errors.New("harvest timeline budget must not be negative"))
	}

	if c.Download.Timeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Download.ConcurrentDownloads <= 0 || c.Download.ConcurrentDownloads > 10 {
		errs = append(errs, errors.New("concurrent downloads must be between 1 and 10"))
	}

	if c.Archive.Enabled && (c.Archive.Endpoint == "" || c.Archive.Bucket == "") {
		errs = append(errs, errors.New("archive endpoint and bucket are required when archive is enabled"))
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	return errors.Join(errs...)
}

// HasTwitterCredentials reports whether all four OAuth1 values are present
func (c *Config) HasTwitterCredentials() bool {
	return c.Twitter.ConsumerKey != "" && c.Twitter.ConsumerSecret != "" &&
		c.Twitter.AccessToken != "" && c.Twitter.AccessSecret != ""
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["source"].(string); ok && v != "" {
		c.Bot.Source = v
	}
	if v, ok := flags["history-file"].(string); ok && v != "" {
		c.Bot.HistoryFile = v
	}
	if v, ok := flags["delay-file"].(string); ok && v != "" {
		c.Bot.DelayFile = v
	}
	if v, ok := flags["image-dir"].(string); ok && v != "" {
		c.Folder.Directory = v
	}
	if v, ok := flags["subreddit"].(string); ok && v != "" {
		c.Reddit.Subreddit = v
	}
	if v, ok := flags["account"].(string); ok && v != "" {
		c.Twitter.Account = v
	}
	if v, ok := flags["max-attempts"].(int); ok && v > 0 {
		c.Retry.MaxAttempts = v
	}
	if v, ok := flags["dry-run"].(bool); ok {
		c.Bot.DryRun = v
	}
	if v, ok := flags["no-delay"].(bool); ok {
		c.Bot.SkipDelay = v
	}
	if v, ok := flags["concurrent"].(int); ok && v > 0 {
		c.Download.ConcurrentDownloads = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".describer.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
