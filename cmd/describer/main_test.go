package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"describer/pkg/auth"
	"describer/pkg/config"
)

func storedAccount(name string) *auth.Account {
	return &auth.Account{
		ScreenName:     name,
		ConsumerKey:    "ck-" + name,
		ConsumerSecret: "cs-" + name,
		AccessToken:    "at-" + name,
		AccessSecret:   "as-" + name,
	}
}

func TestResolveCredentials(t *testing.T) {
	t.Run("config credentials win", func(t *testing.T) {
		manager, store := auth.NewMockManager()
		require.NoError(t, store.Store(storedAccount("stored")))

		cfg := config.DefaultConfig()
		cfg.Twitter.ConsumerKey = "a"
		cfg.Twitter.ConsumerSecret = "b"
		cfg.Twitter.AccessToken = "c"
		cfg.Twitter.AccessSecret = "d"

		require.NoError(t, resolveCredentials(cfg, manager))
		assert.Equal(t, "a", cfg.Twitter.ConsumerKey)
	})

	t.Run("named stored account", func(t *testing.T) {
		manager, store := auth.NewMockManager()
		require.NoError(t, store.Store(storedAccount("one")))
		require.NoError(t, store.Store(storedAccount("two")))

		cfg := config.DefaultConfig()
		cfg.Twitter.Account = "two"

		require.NoError(t, resolveCredentials(cfg, manager))
		assert.Equal(t, "ck-two", cfg.Twitter.ConsumerKey)
		assert.Equal(t, "as-two", cfg.Twitter.AccessSecret)
		assert.True(t, cfg.HasTwitterCredentials())
	})

	t.Run("unknown account", func(t *testing.T) {
		manager, _ := auth.NewMockManager()
		cfg := config.DefaultConfig()
		cfg.Twitter.Account = "ghost"

		err := resolveCredentials(cfg, manager)
		assert.ErrorIs(t, err, auth.ErrCredentialsNotFound)
	})

	t.Run("no manager", func(t *testing.T) {
		err := resolveCredentials(config.DefaultConfig(), nil)
		assert.ErrorIs(t, err, auth.ErrCredentialsNotFound)
	})
}

func TestMaskConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Vision.APIKey = "0123456789abcdef"
	cfg.Twitter.AccessSecret = "short"

	masked := maskConfig(*cfg)

	assert.Equal(t, "0123...cdef", masked.Vision.APIKey)
	assert.Equal(t, "***", masked.Twitter.AccessSecret)
	assert.Empty(t, masked.Archive.SecretKey)
	assert.Equal(t, "0123456789abcdef", cfg.Vision.APIKey, "original untouched")
}

func TestRunFlags(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "")
	cmd.Flags().BoolVar(&noDelay, "no-delay", false, "")
	require.NoError(t, cmd.Flags().Parse([]string{"--dry-run"}))

	subreddit = "EarthPorn"
	maxAttempts = 4
	t.Cleanup(func() {
		subreddit, maxAttempts, dryRun, noDelay = "", 0, false, false
	})

	flags := runFlags(cmd, []string{"Folder"})

	assert.Equal(t, map[string]interface{}{
		"source":       "folder",
		"subreddit":    "EarthPorn",
		"max-attempts": 4,
		"dry-run":      true,
	}, flags)
}

func TestCheckConfig(t *testing.T) {
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Bot.Source = config.SourceFolder
	cfg.Folder.Directory = filepath.Join(dir, "missing")
	cfg.Bot.HistoryFile = filepath.Join(dir, "state", "history.txt")
	cfg.Bot.DelayFile = filepath.Join(dir, "delay.tmp")
	require.NoError(t, os.WriteFile(cfg.Bot.DelayFile, []byte("soon"), 0644))

	problems, warnings := checkConfig(cfg)

	assert.Len(t, problems, 2)
	assert.Contains(t, warnings, "vision API key not configured")
	assert.DirExists(t, filepath.Join(dir, "state"))
}
