package config

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level,omitempty"` // debug, info, warn, error
	JSON       bool            `yaml:"json,omitempty"`
	File       string          `yaml:"file,omitempty"`
	Categories map[string]bool `yaml:"categories,omitempty"` // per-category toggles
}

// IsCategoryEnabled reports whether category logs. Unlisted categories do.
func (c *LoggingConfig) IsCategoryEnabled(category string) bool {
	enabled, exists := c.Categories[category]
	return !exists || enabled
}
