package model

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Locators decide whether a page is showing: every inclusion must find an
// element and no exclusion may.
type Locators struct {
	Inclusions []*Locator `yaml:"inclusions"`
	Exclusions []*Locator `yaml:"exclusions"`
}

// SortedInclusions returns configured inclusions best first.
func (ls *Locators) SortedInclusions() []*Locator { return sortLocators(ls.Inclusions) }

// SortedExclusions returns configured exclusions best first.
func (ls *Locators) SortedExclusions() []*Locator { return sortLocators(ls.Exclusions) }

// Match checks the predicates against the live page, stopping at the first
// failure. Every locator that finds its element is reinforced and changed
// scores are handed to save at once.
func (ls *Locators) Match(ctx context.Context, rt *Runtime, save func()) (bool, error) {
	logger := rt.log()

	for _, l := range ls.SortedInclusions() {
		element, err := l.Find(ctx, rt)
		if err != nil {
			return false, fmt.Errorf("inclusion %s: %w", l, err)
		}
		if element == nil {
			logger.Debug("Expected element missing", zap.Stringer("locator", l))
			return false, nil
		}
		if l.Score(+1, 0) && save != nil {
			save()
		}
	}

	for _, l := range ls.SortedExclusions() {
		element, err := l.Find(ctx, rt)
		if err != nil {
			return false, fmt.Errorf("exclusion %s: %w", l, err)
		}
		if element != nil {
			if l.Score(+1, 0) && save != nil {
				save()
			}
			logger.Debug("Unexpected element found", zap.Stringer("locator", l))
			return false, nil
		}
	}
	return true, nil
}

// Clean prunes unused inclusions and exclusions. Both lists share one
// proven gate.
func (ls *Locators) Clean(force bool, logger *zap.Logger) int {
	all := append(append([]*Locator(nil), ls.Inclusions...), ls.Exclusions...)
	proven := force
	for _, l := range all {
		if l.Uses > 1 {
			proven = true
		}
	}

	var removed int
	var n int
	ls.Inclusions, n = removeUnused(ls.Inclusions, proven)
	removed += n
	ls.Exclusions, n = removeUnused(ls.Exclusions, proven)
	removed += n

	if removed > 0 && logger != nil {
		logger.Info("Removed unused page locators", zap.Int("count", removed))
	}
	return removed
}
