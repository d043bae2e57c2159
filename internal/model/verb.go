package model

import (
	"fmt"
	"regexp"
	"strings"

	"sitepilot/internal/browser"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Verb is what an action does to its element.
type Verb string

const (
	VerbClick  Verb = "click"
	VerbFill   Verb = "fill"
	VerbSelect Verb = "select"
	VerbChoose Verb = "choose"
	VerbType   Verb = "type"
)

var verbs = []Verb{VerbClick, VerbFill, VerbSelect, VerbChoose, VerbType}

// Verbs returns every recognized verb.
func Verbs() []Verb { return append([]Verb(nil), verbs...) }

// Known reports whether v is a recognized verb.
func (v Verb) Known() bool {
	for _, known := range verbs {
		if v == known {
			return true
		}
	}
	return false
}

// ParseVerb looks up a verb by name.
func ParseVerb(s string) (Verb, error) {
	v := Verb(strings.ToLower(strings.TrimSpace(s)))
	if !v.Known() {
		return "", fmt.Errorf("%w: %q", ErrInvalidVerb, s)
	}
	return v, nil
}

// ValidateAction checks that verb is recognized and, for type actions, that
// every segment of name is a keyboard key.
func ValidateAction(verb Verb, name string) error {
	if !verb.Known() {
		return fmt.Errorf("%w: %q", ErrInvalidVerb, string(verb))
	}
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrUnknownAction)
	}
	if verb == VerbType {
		if _, err := browser.ParseKeys(name); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidVerb, err)
		}
	}
	return nil
}

// Humanized is the progressive form used in logs: "Clicking", "Filling".
func (v Verb) Humanized() string {
	s := title(string(v)) + "ing"
	return strings.Replace(s, "eing", "ing", 1)
}

// Navigates reports whether the verb is expected to change the page.
func (v Verb) Navigates() bool {
	return v == VerbClick || v == VerbType
}

// TakesValue reports whether the verb needs an input value.
func (v Verb) TakesValue() bool {
	return v == VerbFill || v == VerbSelect
}

// DefaultLocators guesses locators from an action name using common label
// and form-field naming conventions.
func (v Verb) DefaultLocators(name string) []*Locator {
	var out []*Locator
	add := func(mode browser.Mode, value string) {
		out = append(out, &Locator{Mode: mode, Value: value})
	}
	switch v {
	case VerbClick:
		for _, mode := range []browser.Mode{browser.ModeText, browser.ModeValue, browser.ModePartialText} {
			add(mode, titleize(name))
			add(mode, humanize(name))
			add(mode, strings.ReplaceAll(name, "_", " "))
		}
	case VerbFill, VerbSelect:
		add(browser.ModeName, name)
		add(browser.ModeName, dasherize(name))
		add(browser.ModeID, name)
		add(browser.ModeID, dasherize(name))
		add(browser.ModeARIALabel, titleize(name))
		add(browser.ModeCSS, fmt.Sprintf(`[placeholder="%s"]`, titleize(name)))
		add(browser.ModeID, strings.ReplaceAll(titleize(name), " ", ""))
	}
	return out
}

var idSuffixRE = regexp.MustCompile(`_id$`)

// Casers keep state between calls.
func title(s string) string {
	return cases.Title(language.English).String(s)
}

// humanize turns "send_email" into "Send email".
func humanize(name string) string {
	s := idSuffixRE.ReplaceAllString(name, "")
	s = strings.TrimSpace(strings.ReplaceAll(s, "_", " "))
	if s == "" {
		return s
	}
	s = strings.ToLower(s)
	return strings.ToUpper(s[:1]) + s[1:]
}

// titleize turns "send_email" into "Send Email".
func titleize(name string) string {
	return title(humanize(name))
}

func dasherize(name string) string {
	return strings.ReplaceAll(name, "_", "-")
}
