package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  postgresDsn: "host=localhost dbname=dupcheck"
  redisAddr: "localhost:6379"
dupcheck:
  fileNumberThreshold: 20
`)

	config, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "host=localhost dbname=dupcheck", config.Server.PostgresDsn)
	assert.Equal(t, ":8000", config.Server.ListenAddr)
	assert.Equal(t, 20, config.Dupcheck.FileNumberThreshold)
	assert.Equal(t, []string{"R"}, config.Dupcheck.EligibleCategories)
	assert.Len(t, config.Dupcheck.Rules, 4)
	assert.Equal(t, 10*time.Minute, config.Dupcheck.Interval)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "server:\n  postgresDsn: from-file\n")
	t.Setenv("DUPCHECK_POSTGRES_DSN", "from-env")
	t.Setenv("DUPCHECK_FILE_NUMBER_THRESHOLD", "7")
	t.Setenv("DUPCHECK_CYCLE_TIMEOUT", "90s")

	config, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", config.Server.PostgresDsn)
	assert.Equal(t, 7, config.Dupcheck.FileNumberThreshold)
	assert.Equal(t, 90*time.Second, config.Dupcheck.CycleTimeout)
}

func TestLoadRejectsMalformedEnv(t *testing.T) {
	path := writeConfig(t, "server: {}\n")
	t.Setenv("DUPCHECK_FILE_NUMBER_THRESHOLD", "many")

	_, err := Load(path)
	assert.ErrorContains(t, err, "DUPCHECK_FILE_NUMBER_THRESHOLD")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "zero threshold", mutate: func(c *Config) { c.Dupcheck.FileNumberThreshold = 0 }, wantErr: "fileNumberThreshold"},
		{name: "no categories", mutate: func(c *Config) { c.Dupcheck.EligibleCategories = nil }, wantErr: "eligibleCategories"},
		{name: "unknown rule", mutate: func(c *Config) { c.Dupcheck.Rules = []string{"title"} }, wantErr: "unknown matching rule"},
		{name: "no rules", mutate: func(c *Config) { c.Dupcheck.Rules = nil }, wantErr: "at least one"},
		{name: "timeout beyond lock", mutate: func(c *Config) { c.Dupcheck.CycleTimeout = time.Hour }, wantErr: "must not exceed lockTTL"},
		{name: "zero interval", mutate: func(c *Config) { c.Dupcheck.Interval = 0 }, wantErr: "interval"},
		{name: "bad log level", mutate: func(c *Config) { c.Server.LogLevel = "loud" }, wantErr: "log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestDomainConversion(t *testing.T) {
	d := Default().Domain()
	assert.Equal(t, 50, d.FileNumberThreshold)
	assert.Len(t, d.Rules, 4)
	assert.Equal(t, 5*time.Minute, d.CycleTimeout)
}

func TestSetupLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dupcheck.log")
	logger, cleanup := SetupLogger(path, slog.LevelInfo)
	logger.Info("hello", slog.String("module", "test"))
	require.NoError(t, cleanup())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
}
