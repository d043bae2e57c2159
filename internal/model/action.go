package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sitepilot/internal/browser"

	"go.uber.org/zap"
)

// Action is a named operation on a page backed by candidate locators. An
// action with an empty verb or name is a placeholder kept for hand editing.
type Action struct {
	Verb     Verb       `yaml:"verb"`
	Name     string     `yaml:"name"`
	Locators []*Locator `yaml:"locators"`
}

// NewAction builds an action with a placeholder locator and, in dev mode,
// the default guesses for its verb.
func NewAction(verb Verb, name string, dev bool) *Action {
	a := &Action{Verb: verb, Name: name, Locators: []*Locator{{}}}
	a.materialize(dev, nil)
	return a
}

func (a *Action) materialize(dev bool, logger *zap.Logger) {
	if a.Placeholder() || a.Verb == VerbType || len(a.SortedLocators()) > 0 {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if !dev {
		logger.Debug("Placeholder locators are disabled", zap.Stringer("action", a))
		return
	}
	logger.Info("Adding placeholder locators", zap.Stringer("action", a))
	a.Locators = append(a.Locators, a.Verb.DefaultLocators(a.Name)...)
}

// Placeholder reports whether the action is unconfigured.
func (a *Action) Placeholder() bool {
	return a.Verb == "" || a.Name == ""
}

func (a *Action) String() string {
	return string(a.Verb) + "_" + a.Name
}

// Humanized describes the action for logs: "Filling email".
func (a *Action) Humanized() string {
	return a.Verb.Humanized() + " " + strings.ReplaceAll(a.Name, "_", " ")
}

// SortedLocators returns the locators to try, best first. When every
// locator is failing all of them are returned. A new locator ranked just
// above a failing one is tried alone. Otherwise failing locators are left
// out.
func (a *Action) SortedLocators() []*Locator {
	locators := sortLocators(a.Locators)

	allFailing := true
	for _, l := range locators {
		if l.Uses >= 0 {
			allFailing = false
			break
		}
	}
	if allFailing {
		return locators
	}

	if len(locators) > 1 && locators[0].Uses == 0 && locators[1].Uses < 0 {
		return locators[:1]
	}

	kept := locators[:0:0]
	for _, l := range locators {
		if l.Uses >= 0 {
			kept = append(kept, l)
		}
	}
	return kept
}

// Locator is the best candidate. An action with none falls back to a
// stand-in that finds nothing.
func (a *Action) Locator() *Locator {
	if sorted := a.SortedLocators(); len(sorted) > 0 {
		return sorted[0]
	}
	return &Locator{Mode: browser.ModeID, Value: "placeholder"}
}

// Valid reports whether the best candidate is not failing.
func (a *Action) Valid() bool {
	return a.Locator().Uses >= 0
}

// CallOptions tune the wait after an action.
type CallOptions struct {
	// Delay is slept before waiting for navigation.
	Delay time.Duration
	// Wait overrides the navigation timeout; zero disables waiting.
	Wait *time.Duration
}

// Invoke performs the action on page with args as input values and returns
// the page the browser is on afterwards. When no locator works, an
// interactive run asks the operator for a new one and retries; otherwise
// the action gives up and page resolution continues from the unchanged
// browser.
func (a *Action) Invoke(ctx context.Context, rt *Runtime, page *Page, opts CallOptions, args ...string) (*Page, error) {
	logger := rt.log().With(zap.Stringer("action", a))

	for {
		done, err := a.try(ctx, rt, opts, args)
		if err != nil {
			return nil, err
		}
		if done {
			break
		}
		logger.Error("No locators able to find element", zap.String("name", a.Name))
		if !rt.interactive() {
			break
		}
		mode, value, err := rt.Prompt.Locator(ctx, a.String())
		if err != nil {
			return nil, fmt.Errorf("prompt for locator: %w", err)
		}
		if mode == browser.ModeNone || value == "" {
			break
		}
		a.Locators = append(a.Locators, &Locator{Mode: mode, Value: value})
	}

	rt.save(page)

	var next *Page
	if page != nil && !a.Verb.Navigates() {
		next = page
	} else {
		var err error
		if next, err = Auto(ctx, rt); err != nil {
			return nil, err
		}
	}
	if _, err := next.Clean(rt, false); err != nil {
		logger.Warn("Unable to clean page", zap.Stringer("page", next), zap.Error(err))
	}
	return next, nil
}

// try runs one pass over the candidate locators and reports whether the
// action was performed.
func (a *Action) try(ctx context.Context, rt *Runtime, opts CallOptions, args []string) (bool, error) {
	logger := rt.log().With(zap.Stringer("action", a))

	if a.Verb == VerbType {
		keys, err := browser.ParseKeys(a.Name)
		if err != nil {
			return false, err
		}
		a.perform(ctx, rt, opts, func() error { return rt.Browser.Press(ctx, keys) })
		return true, nil
	}

	for _, l := range a.SortedLocators() {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		logger.Debug("Using locator", zap.Stringer("locator", l))
		element, err := l.Find(ctx, rt)
		if err != nil {
			logger.Debug("Locator failed", zap.Stringer("locator", l), zap.Error(err))
		}
		if element != nil {
			ok := a.perform(ctx, rt, opts, func() error { return a.apply(ctx, element, args) })
			if ok {
				l.Score(+1, ceilingFor(l, a.Locators))
				return true, nil
			}
		}
		l.Score(-1, floorFor(l, a.Locators))
	}
	return false, nil
}

func (a *Action) apply(ctx context.Context, element browser.Element, args []string) error {
	var value string
	if len(args) > 0 {
		value = args[0]
	}
	switch a.Verb {
	case VerbClick:
		return element.Click(ctx)
	case VerbFill:
		return element.Fill(ctx, value)
	case VerbSelect:
		return element.Select(ctx, value)
	case VerbChoose:
		return element.Choose(ctx, value)
	}
	return fmt.Errorf("%w: %q", ErrInvalidVerb, string(a.Verb))
}

// perform runs fn between the verb's pre- and post-action hooks. Driver
// failures are logged and reported as false.
func (a *Action) perform(ctx context.Context, rt *Runtime, opts CallOptions, fn func() error) bool {
	logger := rt.log().With(zap.Stringer("action", a))
	previous, _ := rt.Browser.URL(ctx)

	if a.Verb == VerbClick {
		if err := rt.Browser.Execute(ctx, browser.RemoveBlankTargets); err != nil {
			logger.Debug("Unable to remove link targets", zap.Error(err))
		}
	}

	if err := fn(); err != nil {
		switch {
		case errors.Is(err, browser.ErrNoSuchElement), errors.Is(err, browser.ErrNotInteractable):
			logger.Warn("Action failed", zap.Error(err))
		default:
			logger.Debug("Action failed", zap.Error(err))
		}
		return false
	}

	a.settle(ctx, rt, previous, opts)
	return true
}

// settle waits for the URL to move away from previous after navigating
// verbs. The wait always ends at the timeout.
func (a *Action) settle(ctx context.Context, rt *Runtime, previous string, opts CallOptions) {
	logger := rt.log()
	s := rt.Settle.withDefaults()

	if opts.Delay > 0 {
		logger.Info("Waiting before continuing", zap.Duration("delay", opts.Delay))
		if !sleep(ctx, opts.Delay) {
			return
		}
	}

	wait := time.Duration(0)
	if a.Verb.Navigates() {
		wait = s.Timeout
	}
	if opts.Wait != nil {
		wait = *opts.Wait
	}
	if wait <= 0 {
		return
	}
	logger.Debug("Waiting for URL to change", zap.String("from", previous), zap.Duration("wait", wait))

	start := time.Now()
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	logged := false
	for time.Since(start) < wait {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		current, err := rt.Browser.URL(ctx)
		if err == nil && current != previous {
			logger.Debug("URL changed", zap.String("to", current), zap.Duration("after", time.Since(start)))
			grace := s.Grace
			if opts.Delay > 0 {
				grace = opts.Delay
			}
			sleep(ctx, grace)
			return
		}
		if !logged && time.Since(start) > s.LogAfter {
			logger.Info("Waiting for the URL to change", zap.Duration("up_to", wait))
			logged = true
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Clean removes locators that never worked once the action has a proven
// locator, or unconditionally when forced. It returns the number removed.
func (a *Action) Clean(force bool, logger *zap.Logger) int {
	kept, removed := removeUnused(a.Locators, force)
	if removed > 0 && logger != nil {
		logger.Info("Removed unused locators", zap.Stringer("action", a), zap.Int("count", removed))
	}
	a.Locators = kept
	return removed
}
