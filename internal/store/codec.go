// Package store persists page definitions as hand-editable YAML documents,
// one per (domain, path, variant), under sites/<domain>/<path>/<variant>.yml.
package store

import (
	"bytes"
	"fmt"

	"sitepilot/internal/model"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when no page is stored under a key.
var ErrNotFound = model.ErrPageNotFound

// Encode renders a page document.
func Encode(p *model.Page) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return nil, fmt.Errorf("encode %s: %w", p, err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses a page document stored under key.
func Decode(key model.Key, data []byte) (*model.Page, error) {
	p := model.PageFor(key)
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return p, nil
}
