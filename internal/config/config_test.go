package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"BROWSER", "SITEPILOT_FRAMEWORK", "SITEPILOT_HEADLESS", "SITEPILOT_URL", "CI"} {
		t.Setenv(key, "")
	}
}

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	assert.Equal(t, "rod", s.Browser.Framework)
	assert.Equal(t, 1920, s.Browser.Width)
	assert.Equal(t, 1080, s.Browser.Height)
	assert.True(t, s.Dev)
	assert.True(t, s.Interactive)
	assert.Equal(t, DefaultURL, s.StartURL())
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	s, err := Load(filepath.Join(t.TempDir(), FileName))
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)
}

func TestSaveLoad(t *testing.T) {
	clearEnv(t)
	path := Path(t.TempDir())

	s := DefaultSettings()
	s.Browser.Name = "chrome"
	s.Browser.Stealth = true
	s.Aliases = map[string]string{"www.example.com": "example.com"}
	s.Remember("https://example.com/login", 1280, 800)
	s.Dev = false
	require.NoError(t, s.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, s, loaded)
	assert.Equal(t, "https://example.com/login", loaded.StartURL())
	assert.Equal(t, 1280, loaded.Browser.Width)
}

func TestLoadFillsMissingFields(t *testing.T) {
	clearEnv(t)
	path := Path(t.TempDir())
	require.NoError(t, os.WriteFile(path, []byte("browser:\n  name: firefox\ndev: true\n"), 0644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "firefox", s.Browser.Name)
	assert.Equal(t, "rod", s.Browser.Framework)
	assert.Equal(t, 1920, s.Browser.Width)
	assert.Equal(t, "secrets.db", s.SecretsDB)
}

func TestLoadInvalidYAML(t *testing.T) {
	clearEnv(t)
	path := Path(t.TempDir())
	require.NoError(t, os.WriteFile(path, []byte("browser: [\n"), 0644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Run("browser and framework", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("BROWSER", "Chrome")
		t.Setenv("SITEPILOT_FRAMEWORK", "Playwright")
		t.Setenv("SITEPILOT_HEADLESS", "true")
		t.Setenv("SITEPILOT_URL", "https://example.org")

		s, err := Load(filepath.Join(t.TempDir(), FileName))
		require.NoError(t, err)
		assert.Equal(t, "chrome", s.Browser.Name)
		assert.Equal(t, "playwright", s.Browser.Framework)
		assert.True(t, s.Browser.Headless)
		assert.Equal(t, "https://example.org", s.URL)
		assert.True(t, s.Interactive)
	})

	t.Run("CI disables prompts", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CI", "true")
		s, err := Load(filepath.Join(t.TempDir(), FileName))
		require.NoError(t, err)
		assert.False(t, s.Interactive)
		assert.True(t, s.Browser.Headless)
	})

	t.Run("unparseable headless is ignored", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SITEPILOT_HEADLESS", "sometimes")
		s, err := Load(filepath.Join(t.TempDir(), FileName))
		require.NoError(t, err)
		assert.False(t, s.Browser.Headless)
	})
}

func TestAlias(t *testing.T) {
	s := DefaultSettings()
	s.Aliases = map[string]string{"www.example.com": "example.com", "blank.com": ""}
	assert.Equal(t, "example.com", s.Alias("www.example.com"))
	assert.Equal(t, "example.org", s.Alias("example.org"))
	assert.Equal(t, "blank.com", s.Alias("blank.com"))
}

func TestRememberIgnoresEmpty(t *testing.T) {
	s := DefaultSettings()
	s.Remember("", 0, 0)
	assert.Empty(t, s.URL)
	assert.Equal(t, 1920, s.Browser.Width)
}

func TestSecretsPath(t *testing.T) {
	s := DefaultSettings()
	assert.Equal(t, filepath.Join("root", "secrets.db"), s.SecretsPath("root"))
	s.SecretsDB = ":memory:"
	assert.Equal(t, ":memory:", s.SecretsPath("root"))
}

func TestLoggingCategories(t *testing.T) {
	c := LoggingConfig{Categories: map[string]bool{"browser": false}}
	assert.False(t, c.IsCategoryEnabled("browser"))
	assert.True(t, c.IsCategoryEnabled("model"))
}
