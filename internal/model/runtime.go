// Package model holds the self-learning page engine: persisted page
// definitions, the actions available on them and the scored locators that
// back each action.
package model

import (
	"context"
	"errors"
	"time"

	"sitepilot/internal/browser"
	"sitepilot/internal/urlpattern"

	"go.uber.org/zap"
)

var (
	// ErrPageNotFound is returned by a Store when no page is persisted under a key.
	ErrPageNotFound = errors.New("page not found")
	// ErrInvalidVerb is returned when an action name has no recognized verb.
	ErrInvalidVerb = errors.New("invalid verb")
	// ErrUnknownAction is returned for names that are not "verb_name".
	ErrUnknownAction = errors.New("unknown action")
)

// Store persists pages by key.
type Store interface {
	Load(key Key) (*Page, error)
	Save(page *Page) error
	// List returns every page for a domain in a stable order.
	List(domain string) ([]*Page, error)
}

// Secrets holds per-domain values for fill and select actions.
type Secrets interface {
	Get(ctx context.Context, domain, name string) (string, error)
	Set(ctx context.Context, domain, name, value string) error
}

// Prompter asks the operator for input when the engine cannot proceed alone.
type Prompter interface {
	Interactive() bool
	// Locator asks for a new (mode, value) to find the element for action.
	// An empty mode or value means the operator gave up.
	Locator(ctx context.Context, action string) (browser.Mode, string, error)
	Value(ctx context.Context, name string) (string, error)
}

// Settle bounds the wait for navigation after an action.
type Settle struct {
	Timeout  time.Duration
	Interval time.Duration
	LogAfter time.Duration
	// Grace is slept once the URL changes so the new DOM can render.
	Grace time.Duration
}

// DefaultSettle is used for zero fields.
var DefaultSettle = Settle{
	Timeout:  5 * time.Second,
	Interval: 100 * time.Millisecond,
	LogAfter: time.Second,
	Grace:    500 * time.Millisecond,
}

func (s Settle) withDefaults() Settle {
	if s.Timeout == 0 {
		s.Timeout = DefaultSettle.Timeout
	}
	if s.Interval <= 0 {
		s.Interval = DefaultSettle.Interval
	}
	if s.LogAfter == 0 {
		s.LogAfter = DefaultSettle.LogAfter
	}
	if s.Grace == 0 {
		s.Grace = DefaultSettle.Grace
	}
	return s
}

// Runtime carries the collaborators every engine operation needs. One
// Runtime exists per run and owns nothing; the browser session owns the
// adapter.
type Runtime struct {
	Browser browser.Adapter
	Store   Store
	Secrets Secrets
	Prompt  Prompter
	Logger  *zap.Logger

	// Dev enables automatic creation of actions and default locators.
	Dev bool
	// Aliases maps live domains to the domain their pages are stored under.
	Aliases map[string]string
	Settle  Settle
}

func (rt *Runtime) log() *zap.Logger {
	if rt.Logger == nil {
		return zap.NewNop()
	}
	return rt.Logger
}

func (rt *Runtime) interactive() bool {
	return rt.Prompt != nil && rt.Prompt.Interactive()
}

// Domain maps a live domain to its alias, if any.
func (rt *Runtime) Domain(domain string) string {
	if alias, ok := rt.Aliases[domain]; ok && alias != "" {
		rt.log().Debug("Mapped domain to alias", zap.String("domain", domain), zap.String("alias", alias))
		return alias
	}
	return domain
}

// liveURL is the browser's current URL, parsed.
func (rt *Runtime) liveURL(ctx context.Context) (string, urlpattern.URL, error) {
	raw, err := rt.Browser.URL(ctx)
	if err != nil {
		return "", urlpattern.URL{}, err
	}
	return raw, urlpattern.Parse(raw), nil
}

func (rt *Runtime) save(p *Page) {
	if rt.Store == nil || p == nil {
		return
	}
	if err := rt.Store.Save(p); err != nil {
		rt.log().Warn("Unable to save page", zap.Stringer("page", p), zap.Error(err))
	}
}
