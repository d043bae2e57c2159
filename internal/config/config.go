// Package config reads and writes sitepilot.yml, the settings file kept in
// the working root next to the sites directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the settings file name inside the working root.
const FileName = "sitepilot.yml"

// DefaultURL is opened when no URL was remembered and no terminal can ask.
const DefaultURL = "http://example.com"

// Settings holds everything sitepilot remembers between runs.
type Settings struct {
	Browser BrowserConfig `yaml:"browser"`

	// URL is the last page the browser showed.
	URL string `yaml:"url,omitempty"`

	// Aliases maps a domain to the domain whose site files it shares.
	Aliases map[string]string `yaml:"aliases,omitempty"`

	// Dev enables automatic placeholder actions and locators.
	Dev bool `yaml:"dev"`

	// SecretsDB is the SQLite file holding per-domain secrets, relative to
	// the working root.
	SecretsDB string `yaml:"secrets_db"`

	Logging LoggingConfig `yaml:"logging,omitempty"`

	// Interactive is false on CI; it is never persisted.
	Interactive bool `yaml:"-"`
}

// BrowserConfig selects and sizes the browser.
type BrowserConfig struct {
	Name      string `yaml:"name,omitempty"`
	Framework string `yaml:"framework"`
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	Headless  bool   `yaml:"headless"`
	Stealth   bool   `yaml:"stealth"`
}

// DefaultSettings returns the settings used when no file exists.
func DefaultSettings() *Settings {
	return &Settings{
		Browser: BrowserConfig{
			Framework: "rod",
			Width:     1920,
			Height:    1080,
		},
		Dev:         true,
		SecretsDB:   "secrets.db",
		Interactive: true,
	}
}

// Path returns the settings file inside root.
func Path(root string) string {
	return filepath.Join(root, FileName)
}

// Load reads settings from path. A missing file yields the defaults.
// Environment overrides are applied either way.
func Load(path string) (*Settings, error) {
	s := DefaultSettings()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read settings: %w", err)
	default:
		if err := yaml.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("failed to parse settings: %w", err)
		}
	}

	s.applyDefaults()
	s.applyEnvOverrides()
	return s, nil
}

// Save writes settings to path.
func (s *Settings) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}

func (s *Settings) applyDefaults() {
	d := DefaultSettings()
	if s.Browser.Framework == "" {
		s.Browser.Framework = d.Browser.Framework
	}
	if s.Browser.Width <= 0 || s.Browser.Height <= 0 {
		s.Browser.Width, s.Browser.Height = d.Browser.Width, d.Browser.Height
	}
	if s.SecretsDB == "" {
		s.SecretsDB = d.SecretsDB
	}
	s.Interactive = true
}

// applyEnvOverrides applies environment variable overrides.
func (s *Settings) applyEnvOverrides() {
	if name := os.Getenv("BROWSER"); name != "" {
		s.Browser.Name = strings.ToLower(name)
	}
	if fw := os.Getenv("SITEPILOT_FRAMEWORK"); fw != "" {
		s.Browser.Framework = strings.ToLower(fw)
	}
	if v := os.Getenv("SITEPILOT_HEADLESS"); v != "" {
		if headless, err := strconv.ParseBool(v); err == nil {
			s.Browser.Headless = headless
		}
	}
	if url := os.Getenv("SITEPILOT_URL"); url != "" {
		s.URL = url
	}
	if ci, _ := strconv.ParseBool(os.Getenv("CI")); ci {
		s.Interactive = false
		s.Browser.Headless = true
	}
}

// Alias returns the domain whose site files domain uses.
func (s *Settings) Alias(domain string) string {
	if alias, ok := s.Aliases[domain]; ok && alias != "" {
		return alias
	}
	return domain
}

// Remember records where the browser was and how large it was.
func (s *Settings) Remember(url string, width, height int) {
	if url != "" {
		s.URL = url
	}
	if width > 0 && height > 0 {
		s.Browser.Width, s.Browser.Height = width, height
	}
}

// StartURL returns the URL to open, falling back to DefaultURL.
func (s *Settings) StartURL() string {
	if s.URL != "" {
		return s.URL
	}
	return DefaultURL
}

// SecretsPath resolves the secrets database relative to root.
func (s *Settings) SecretsPath(root string) string {
	if filepath.IsAbs(s.SecretsDB) || s.SecretsDB == ":memory:" {
		return s.SecretsDB
	}
	return filepath.Join(root, s.SecretsDB)
}
