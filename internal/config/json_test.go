package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenNoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.DatabaseDSN)
	assert.Contains(t, cfg.PIDProviders, "doi")
}

func TestLoadOverlaysJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"database_dsn": "sqlite:repo.db",
		"token_validity": "15m",
		"pid_providers": {"doi": ["unmanaged"], "urn": ["urn-provider"]}
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite:repo.db", cfg.DatabaseDSN)
	assert.Equal(t, 15*time.Minute, cfg.TokenValidity)
	assert.Equal(t, []string{"unmanaged"}, cfg.PIDProviders["doi"])
	// keys absent from the file keep their defaults
	assert.Equal(t, "repository", cfg.S3Bucket)
}

func TestLoadRejectsInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}
