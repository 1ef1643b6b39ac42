package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			Mode:            "local",
			IntervalCron:    "*/5 * * * *",
			Timezone:        "Asia/Kolkata",
			RunTimeout:      time.Minute,
			MaxConcurrency:  4,
			TickConcurrency: 2,
		},
		Dedup:   DedupConfig{Window: 50, Threshold: 0.7},
		Storage: StorageConfig{Driver: "memory"},
	}
}

func TestValidate_Accepts(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]func(c *Config){
		"cron":         func(c *Config) { c.Scheduler.IntervalCron = "every five minutes" },
		"timezone":     func(c *Config) { c.Scheduler.Timezone = "Mars/Olympus" },
		"mode":         func(c *Config) { c.Scheduler.Mode = "kubernetes" },
		"concurrency":  func(c *Config) { c.Scheduler.MaxConcurrency = 0 },
		"serial ticks": func(c *Config) { c.Scheduler.TickConcurrency = 1 },
		"window":       func(c *Config) { c.Dedup.Window = 0 },
		"threshold":    func(c *Config) { c.Dedup.Threshold = 1.5 },
		"driver":       func(c *Config) { c.Storage.Driver = "mongo" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_SharedSecretHasNoDefault(t *testing.T) {
	t.Setenv("SHARED_SECRET", "")
	t.Setenv("STORAGE_DRIVER", "memory")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.Auth.SharedSecret)
	assert.Equal(t, "*/5 * * * *", cfg.Scheduler.IntervalCron)
	assert.Equal(t, 3, cfg.Scheduler.TickConcurrency)
	assert.Equal(t, 50, cfg.Dedup.Window)
	assert.InDelta(t, 0.7, cfg.Dedup.Threshold, 1e-9)
}

func TestLoad_FileSecret(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secret")
	require.NoError(t, os.WriteFile(path, []byte("  s3cret\n"), 0o600))
	t.Setenv("SHARED_SECRET", "")
	t.Setenv("SHARED_SECRET_FILE", path)
	t.Setenv("STORAGE_DRIVER", "memory")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Auth.SharedSecret)
}
