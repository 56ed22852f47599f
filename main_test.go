package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parbi/classify"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	config, err := loadConfig(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, 8501, config.HTTP.Port)
	assert.Equal(t, "resources", config.Models.Dir)
	assert.Equal(t, filepath.Join("resources", "count_vect.json"), config.Resources.Vectorizer)
	assert.Equal(t, "resources/train.csv", config.Resources.Dataset)
	assert.Equal(t, "info", config.Log.Level)
	assert.True(t, config.CacheOptions().Enabled)
	assert.Empty(t, config.History.Path)
}

func TestLoadConfigValues(t *testing.T) {
	config, err := loadConfig(writeConfig(t, `
http:
  port: 9000
  request_timeout: 3s
models:
  dir: artifacts
  cache: false
  cache_size: 2
  paths:
    svm: /tmp/custom_svm.json
history:
  path: history.db
log:
  level: debug
  format: console
`))
	require.NoError(t, err)

	assert.Equal(t, 9000, config.HTTP.Port)
	assert.Equal(t, 3*time.Second, config.HTTP.RequestTimeout)
	assert.Equal(t, filepath.Join("artifacts", "count_vect.json"), config.Resources.Vectorizer)
	assert.False(t, config.CacheOptions().Enabled)
	assert.Equal(t, 2, config.CacheOptions().Size)
	assert.Equal(t, "history.db", config.History.Path)
	assert.Equal(t, "console", config.Log.Format)

	paths, err := config.ModelPaths()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom_svm.json", paths[classify.SVM])
	assert.Equal(t, filepath.Join("artifacts", classify.LogisticRegression.DefaultFile()), paths[classify.LogisticRegression])
}

func TestLoadConfigPortFromEnv(t *testing.T) {
	t.Setenv(envHTTPPort, "7000")
	config, err := loadConfig(writeConfig(t, "http:\n  port: 9000\n"))
	require.NoError(t, err)
	assert.Equal(t, 7000, config.HTTP.Port)

	t.Setenv(envHTTPPort, "not-a-port")
	_, err = loadConfig(writeConfig(t, "{}\n"))
	assert.Error(t, err)
}

func TestModelPathsUnknownModel(t *testing.T) {
	config, err := loadConfig(writeConfig(t, "models:\n  paths:\n    naive-bayes: nb.json\n"))
	require.NoError(t, err)

	_, err = config.ModelPaths()
	assert.ErrorIs(t, err, classify.ErrInvalidSelection)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestConfigPathFromEnvFile(t *testing.T) {
	t.Setenv(envConfig, "")
	os.Unsetenv(envConfig)
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("PARBI_CONFIG=custom.yaml\n"), 0o644))

	path, err := configPath(envFile)
	require.NoError(t, err)
	assert.Equal(t, "custom.yaml", path)
	os.Unsetenv(envConfig)

	path, err = configPath(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "config.yaml", path)
}
