package browser

import (
	"fmt"
	"strings"
)

// Mode is a strategy for locating elements. The zero value is ModeNone,
// which marks an unconfigured locator.
type Mode string

const (
	ModeNone        Mode = ""
	ModeName        Mode = "name"
	ModeID          Mode = "id"
	ModeText        Mode = "text"
	ModePartialText Mode = "text (partial)"
	ModeValue       Mode = "value"
	ModeARIALabel   Mode = "aria-label"
	ModeCSS         Mode = "css"
	ModeTag         Mode = "tag"
	ModeXPath       Mode = "xpath"
)

var modes = []Mode{
	ModeName, ModeID, ModeText, ModePartialText, ModeValue,
	ModeARIALabel, ModeCSS, ModeTag, ModeXPath,
}

// Hand-edited site files use these spellings too.
var modeAliases = map[string]Mode{
	"partial_text":   ModePartialText,
	"partial-text":   ModePartialText,
	"text_partial":   ModePartialText,
	"aria_label":     ModeARIALabel,
	"label":          ModeARIALabel,
	"selector":       ModeCSS,
	"tag_name":       ModeTag,
	"text (partial)": ModePartialText,
}

// Modes lists every supported mode in prompt order.
func Modes() []Mode {
	return append([]Mode(nil), modes...)
}

// ParseMode normalizes a mode name.
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ModeNone, nil
	}
	for _, m := range modes {
		if string(m) == s {
			return m, nil
		}
	}
	if m, ok := modeAliases[s]; ok {
		return m, nil
	}
	return ModeNone, fmt.Errorf("%w: %q", ErrUnsupportedMode, s)
}

// Valid reports whether m is a supported, configured mode.
func (m Mode) Valid() bool {
	for _, known := range modes {
		if m == known {
			return true
		}
	}
	return false
}

// UnmarshalText accepts aliases; unknown names are kept verbatim so that a
// hand-edited file still round-trips.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		*m = Mode(strings.TrimSpace(string(text)))
		return nil
	}
	*m = parsed
	return nil
}

// Selector is an engine-neutral element query.
type Selector struct {
	XPath bool
	Expr  string
}

func (s Selector) String() string {
	if s.XPath {
		return "xpath=" + s.Expr
	}
	return "css=" + s.Expr
}

// Selector translates (mode, value) into a CSS or XPath query.
func (m Mode) Selector(value string) (Selector, error) {
	switch m {
	case ModeName, ModeID, ModeValue:
		return Selector{Expr: fmt.Sprintf("[%s=%s]", m, cssString(value))}, nil
	case ModeARIALabel:
		return Selector{Expr: "[aria-label=" + cssString(value) + "]"}, nil
	case ModeText:
		return Selector{XPath: true, Expr: "//*[normalize-space(text())=" + xpathLiteral(value) + "]"}, nil
	case ModePartialText:
		return Selector{XPath: true, Expr: "//a[contains(normalize-space(.), " + xpathLiteral(value) + ")]"}, nil
	case ModeCSS, ModeTag:
		return Selector{Expr: value}, nil
	case ModeXPath:
		return Selector{XPath: true, Expr: value}, nil
	}
	return Selector{}, fmt.Errorf("%w: %q", ErrUnsupportedMode, string(m))
}

func cssString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, `'`) {
		return `'` + s + `'`
	}
	parts := strings.Split(s, `"`)
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = `"` + p + `"`
	}
	return "concat(" + strings.Join(quoted, `, '"', `) + ")"
}
