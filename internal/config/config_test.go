package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/me/oblig/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	home := t.TempDir()
	c, err := config.Load(home)
	require.NoError(t, err)

	assert.Equal(t, home, c.Home)
	assert.Equal(t, filepath.Join(home, "oblig.db"), c.DBPath)
	assert.Equal(t, "no", c.Locale)
	assert.Equal(t, "info", c.Log.Level)
	assert.Equal(t, "text", c.Log.Format)
	assert.Equal(t, 200, c.Canvas.PageSize)
	assert.Equal(t, 3, c.Canvas.RetryMax)
	assert.Equal(t, config.Default(home), c)
}

func TestLoad_FileAndEnv(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.WriteFile(config.Path(home), []byte(`
locale: en
grading_path: /srv/grading
canvas:
  base_url: https://hvl.instructure.com/api/v1
  token: from-file
log:
  level: debug
`), 0o600))
	t.Setenv("OBLIG_CANVAS_TOKEN", "from-env")
	t.Setenv("OBLIG_LLM_API_KEY", "llm-key")

	c, err := config.Load(home)
	require.NoError(t, err)
	assert.Equal(t, "en", c.Locale)
	assert.Equal(t, "/srv/grading", c.GradingPath)
	assert.Equal(t, "https://hvl.instructure.com/api/v1", c.Canvas.BaseURL)
	assert.Equal(t, "from-env", c.Canvas.Token)
	assert.Equal(t, "llm-key", c.LLM.APIKey)
	assert.Equal(t, "debug", c.Log.Level)
}

func TestLoad_Invalid(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.WriteFile(config.Path(home), []byte("locale: fr\n"), 0o600))
	_, err := config.Load(home)
	assert.Error(t, err)
}

func TestSetSaveLoad(t *testing.T) {
	home := t.TempDir()
	c := config.Default(home)

	require.NoError(t, c.Set(config.GitHubToken, "ghp_secret"))
	require.NoError(t, c.Set(config.CanvasPageSize, "50"))
	require.NoError(t, c.Set(config.Locale, "de"))
	require.NoError(t, c.Save())

	info, err := os.Stat(config.Path(home))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := config.Load(home)
	require.NoError(t, err)
	assert.Equal(t, "ghp_secret", loaded.GitHub.Token)
	assert.Equal(t, 50, loaded.Canvas.PageSize)
	assert.Equal(t, "de", loaded.Locale)

	v, err := loaded.Get(config.CanvasPageSize)
	require.NoError(t, err)
	assert.Equal(t, "50", v)
}

func TestSet_Rejects(t *testing.T) {
	c := config.Default(t.TempDir())

	assert.Error(t, c.Set("no.such.key", "x"))
	assert.Error(t, c.Set(config.CanvasPageSize, "many"))
	assert.Error(t, c.Set(config.Locale, "fr"))
	assert.Error(t, c.Set(config.CanvasBaseURL, "not a url"))
	assert.Equal(t, "no", c.Locale, "rejected values leave the config unchanged")
}

func TestRedacted(t *testing.T) {
	c := config.Default(t.TempDir())
	require.NoError(t, c.Set(config.CanvasToken, "1234567890"))

	r := c.Redacted()
	assert.Equal(t, "1234********", r.Canvas.Token)
	assert.Empty(t, r.GitHub.Token)
	assert.Equal(t, "1234567890", c.Canvas.Token, "original untouched")
}

func TestKeys(t *testing.T) {
	keys := config.Keys()
	assert.Contains(t, keys, config.CanvasToken)
	assert.Contains(t, keys, config.LLMModel)
	assert.IsIncreasing(t, keys)
}
