package config

import (
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
	path := writeConfig(t, "model:\n  path: models/heart.json\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Http.Port)
	assert.Equal(t, DefaultTimeout, cfg.Http.Timeout)
	assert.Equal(t, []string{"*"}, cfg.Http.AllowedOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, DefaultModelType, cfg.Model.Type)
	assert.Equal(t, DefaultCacheSize, cfg.Cache.Size)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "models", "heart.json"), cfg.Model.Path)
}

func TestLoadReadsValues(t *testing.T) {
	path := writeConfig(t, `
http:
  port: 9090
  timeout: 5s
log:
  level: debug
  format: json
model:
  type: logistic_regression
  path: /srv/models/lr.json
  watch: true
cache:
  size: 0
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Http.Port)
	assert.Equal(t, 5*time.Second, cfg.Http.Timeout)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "logistic_regression", cfg.Model.Type)
	assert.Equal(t, "/srv/models/lr.json", cfg.Model.Path)
	assert.True(t, cfg.Model.Watch)
	assert.Equal(t, 0, cfg.Cache.Size)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "model:\n  path: models/heart.json\n")
	t.Setenv("HEART_MODEL_PATH", "/tmp/other.json")
	t.Setenv("HEART_HTTP_PORT", "7000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/other.json", cfg.Model.Path)
	assert.Equal(t, 7000, cfg.Http.Port)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"unknown model type": "model:\n  type: random_forest\n",
		"bad port":           "http:\n  port: 70000\n",
		"negative cache":     "cache:\n  size: -1\n",
		"malformed yaml":     "http: [\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, os.IsNotExist(err))
}
