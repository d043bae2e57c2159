package model

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"sitepilot/internal/browser"

	"go.uber.org/zap"
)

const (
	defaultCeiling = 9
	defaultFloor   = -1
)

// Locator finds one element and remembers how well that has worked. A
// locator with an empty mode or value is a placeholder: it is persisted so
// the site file can be filled in by hand, but it is never evaluated.
type Locator struct {
	Mode  browser.Mode `yaml:"mode"`
	Value string       `yaml:"value"`
	Index int          `yaml:"index"`
	Uses  int          `yaml:"uses"`
}

// Placeholder reports whether the locator is unconfigured.
func (l *Locator) Placeholder() bool {
	return l.Mode == browser.ModeNone || l.Value == ""
}

func (l *Locator) String() string {
	return fmt.Sprintf("%s=%s[%d]", l.Mode, l.Value, l.Index)
}

// Find returns the element at the locator's index, or nil when nothing
// matches. When the first match is hidden the second one is used instead
// and the index is remembered. Errors other than a missing element are
// returned for the caller to score.
func (l *Locator) Find(ctx context.Context, rt *Runtime) (browser.Element, error) {
	logger := rt.log().With(zap.Stringer("locator", l))
	if l.Placeholder() {
		return nil, nil
	}

	elements, err := rt.Browser.Find(ctx, l.Mode, l.Value)
	if errors.Is(err, browser.ErrNoSuchElement) {
		logger.Debug("Unable to find element")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	index := l.Index
	if index >= len(elements) {
		logger.Debug("Unable to find element", zap.Int("found", len(elements)))
		return nil, nil
	}
	element := elements[index]

	if index == 0 {
		visible, err := element.Visible(ctx)
		if errors.Is(err, browser.ErrNoSuchElement) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if !visible {
			html, _ := element.OuterHTML(ctx)
			logger.Debug("Found invisible element", zap.String("html", html))
			index = 1
			if index >= len(elements) {
				return nil, nil
			}
			element = elements[index]
		}
	}

	l.Index = index
	if ce := logger.Check(zap.DebugLevel, "Found element"); ce != nil {
		html, _ := element.OuterHTML(ctx)
		ce.Write(zap.String("html", html))
	}
	return element, nil
}

// Score moves Uses by delta toward limit and reports whether it changed.
// A zero limit means the default ceiling (9) or floor (-1). Scoring never
// moves a locator past its current value in the wrong direction: success
// cannot lower a score that is already above the ceiling, and failure
// cannot raise one already below the floor.
func (l *Locator) Score(delta, limit int) bool {
	previous := l.Uses
	switch {
	case delta > 0:
		if limit == 0 {
			limit = defaultCeiling
		}
		l.Uses = max(previous, min(limit, max(1, previous+delta)))
	case delta < 0:
		if limit == 0 {
			limit = defaultFloor
		}
		l.Uses = min(previous, max(limit, previous+delta))
	}
	return l.Uses != previous
}

// sortLocators orders configured locators best first. Ties keep their
// stored order.
func sortLocators(locators []*Locator) []*Locator {
	out := make([]*Locator, 0, len(locators))
	for _, l := range locators {
		if l != nil && !l.Placeholder() {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Uses > out[j].Uses })
	return out
}

// ceilingFor is the success limit for l: twice the best sibling score, but
// never below the default ceiling.
func ceilingFor(l *Locator, locators []*Locator) int {
	best, ok := siblingScore(l, locators, func(a, b int) bool { return a > b })
	if !ok {
		return defaultCeiling
	}
	return max(defaultCeiling, 2*best)
}

// floorFor is the failure limit for l: twice the worst sibling score (at
// most -1). A locator with no configured siblings bottoms out at -2.
func floorFor(l *Locator, locators []*Locator) int {
	worst, ok := siblingScore(l, locators, func(a, b int) bool { return a < b })
	if !ok {
		return 2 * defaultFloor
	}
	return 2 * min(defaultFloor, worst)
}

func siblingScore(l *Locator, locators []*Locator, better func(a, b int) bool) (int, bool) {
	var score int
	var found bool
	for _, s := range locators {
		if s == l || s == nil || s.Placeholder() {
			continue
		}
		if !found || better(s.Uses, score) {
			score, found = s.Uses, true
		}
	}
	return score, found
}

// removeUnused drops locators with Uses <= 0 when forced or when any
// locator has been proven (Uses > 1). It returns the kept locators and the
// number removed.
func removeUnused(locators []*Locator, force bool) ([]*Locator, int) {
	proven := force
	unused := 0
	for _, l := range locators {
		if l.Uses <= 0 {
			unused++
		}
		if l.Uses > 1 {
			proven = true
		}
	}
	if !proven || unused == 0 {
		return locators, 0
	}
	kept := locators[:0:0]
	for _, l := range locators {
		if l.Uses > 0 {
			kept = append(kept, l)
		}
	}
	return kept, unused
}
