package model

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sitepilot/internal/urlpattern"

	"go.uber.org/zap"
)

// DefaultVariant names the page shape used when a URL has no fragment.
const DefaultVariant = "default"

// Key identifies a persisted page.
type Key struct {
	Domain  string
	Path    string
	Variant string
}

func (k Key) String() string {
	return k.Domain + "/" + k.Path + "/" + k.Variant
}

// Page is what one URL pattern looks like: the predicates that confirm it is
// showing and the actions available on it. The key is not part of the
// stored document; it is derived from where the document lives.
type Page struct {
	key Key

	Locators Locators  `yaml:"locators"`
	Actions  []*Action `yaml:"actions"`
}

// NewPage returns a fresh page with placeholder predicates and a
// placeholder action.
func NewPage(key Key) *Page {
	p := PageFor(key)
	p.Locators = Locators{
		Inclusions: []*Locator{{}},
		Exclusions: []*Locator{{}},
	}
	p.Actions = []*Action{{Locators: []*Locator{{}}}}
	return p
}

// PageFor returns an empty page for key, ready to be decoded into.
func PageFor(key Key) *Page {
	if key.Path == "" {
		key.Path = urlpattern.Root
	}
	if key.Variant == "" {
		key.Variant = DefaultVariant
	}
	return &Page{key: key}
}

func (p *Page) Key() Key        { return p.key }
func (p *Page) Domain() string  { return p.key.Domain }
func (p *Page) Path() string    { return p.key.Path }
func (p *Page) Variant() string { return p.key.Variant }

// URLPattern is the page's URL, possibly with placeholders.
func (p *Page) URLPattern() urlpattern.URL {
	return urlpattern.New(p.key.Domain, p.key.Path)
}

// Exact reports whether the page path has no placeholder.
func (p *Page) Exact() bool { return p.URLPattern().Exact() }

func (p *Page) String() string {
	if p.key.Variant == DefaultVariant {
		return p.URLPattern().String()
	}
	return fmt.Sprintf("%s (%s)", p.URLPattern(), p.key.Variant)
}

// At visits url unless the browser is already there and returns the page
// for wherever the browser lands. A non-empty variant overrides the one
// taken from the URL fragment.
func At(ctx context.Context, rt *Runtime, url, variant string) (*Page, error) {
	logger := rt.log()

	current, err := rt.Browser.URL(ctx)
	if err != nil {
		return nil, fmt.Errorf("read browser url: %w", err)
	}
	if current != url {
		logger.Info("Visiting", zap.String("url", url))
		if err := rt.Browser.Visit(ctx, url); err != nil {
			return nil, err
		}
	}

	live, u, err := rt.liveURL(ctx)
	if err != nil {
		return nil, fmt.Errorf("read browser url: %w", err)
	}
	if live != url {
		logger.Info("Redirected", zap.String("url", live))
	}

	if variant == "" {
		variant = u.Fragment()
	}
	key := Key{Domain: rt.Domain(u.Domain()), Path: u.Path(), Variant: variant}
	page, err := load(rt, key)
	if err != nil {
		return nil, err
	}
	logger.Debug("Loaded page", zap.Stringer("page", page), zap.String("url", live))
	return page, nil
}

func load(rt *Runtime, key Key) (*Page, error) {
	fresh := NewPage(key)
	if rt.Store == nil {
		return fresh, nil
	}
	page, err := rt.Store.Load(fresh.Key())
	if errors.Is(err, ErrPageNotFound) {
		return fresh, nil
	}
	if err != nil {
		return nil, err
	}
	return page, nil
}

// Active reports whether the browser is showing this page. Browser errors
// make the page inactive.
func (p *Page) Active(ctx context.Context, rt *Runtime) bool {
	logger := rt.log().With(zap.Stringer("page", p))

	_, u, err := rt.liveURL(ctx)
	if err != nil {
		logger.Warn("Unable to read browser url", zap.Error(err))
		return false
	}
	live := urlpattern.New(rt.Domain(u.Domain()), u.Path())
	if !p.URLPattern().Matches(live) {
		logger.Debug("Page is inactive: URL not matched")
		return false
	}

	ok, err := p.Locators.Match(ctx, rt, func() { rt.save(p) })
	if err != nil {
		logger.Warn("Page is inactive: locator check failed", zap.Error(err))
		return false
	}
	if !ok {
		logger.Debug("Page is inactive: locators not matched")
		return false
	}
	logger.Debug("Page is active")
	return true
}

// reload replaces in-memory state with the persisted page, if one exists.
func (p *Page) reload(rt *Runtime) {
	if rt.Store == nil {
		return
	}
	stored, err := rt.Store.Load(p.key)
	if err != nil {
		if !errors.Is(err, ErrPageNotFound) {
			rt.log().Warn("Unable to reload page", zap.Stringer("page", p), zap.Error(err))
		}
		return
	}
	p.Locators = stored.Locators
	p.Actions = stored.Actions
}

// GetOrCreateAction returns the action for (verb, name), creating it when
// it does not exist yet. New actions are added to the page only in dev
// mode; otherwise they are returned without being stored.
func (p *Page) GetOrCreateAction(rt *Runtime, verb Verb, name string) (*Action, error) {
	p.reload(rt)

	for _, a := range p.Actions {
		if a.Verb == verb && a.Name == name {
			a.materialize(rt.Dev, rt.log())
			return a, nil
		}
	}

	if err := ValidateAction(verb, name); err != nil {
		return nil, err
	}
	a := NewAction(verb, name, rt.Dev)
	if rt.Dev {
		p.Actions = append(p.Actions, a)
	} else {
		rt.log().Debug("Automatic actions are disabled", zap.Stringer("action", a))
	}
	return a, nil
}

// Lookup resolves "verb_name" to an action.
func (p *Page) Lookup(rt *Runtime, actionName string) (*Action, error) {
	verb, name, ok := strings.Cut(actionName, "_")
	if !ok || verb == "" || name == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, actionName)
	}
	v, err := ParseVerb(verb)
	if err != nil {
		return nil, err
	}
	return p.GetOrCreateAction(rt, v, name)
}

// ActionNames lists the usable actions as "verb_name". In dev mode a page
// without a placeholder action gets one so the site file shows where to
// add more.
func (p *Page) ActionNames(rt *Runtime) []string {
	var names []string
	hasPlaceholder := false
	for _, a := range p.Actions {
		if a.Placeholder() {
			hasPlaceholder = true
			continue
		}
		if a.Verb.Known() && a.Valid() {
			names = append(names, a.String())
		}
	}
	if !hasPlaceholder {
		if rt.Dev {
			rt.log().Info("Adding placeholder action", zap.Stringer("page", p))
			p.Actions = append(p.Actions, &Action{Locators: []*Locator{{}}})
		} else {
			rt.log().Debug("Placeholder actions are disabled")
		}
	}
	return names
}

// Perform runs the named action and returns the resulting page and whether
// it differs from p. Fill and select values come from value, then the
// secret store, then the operator; a prompted value is stored.
func (p *Page) Perform(ctx context.Context, rt *Runtime, actionName, value string) (*Page, bool, error) {
	logger := rt.log()

	action, err := p.Lookup(rt, actionName)
	if err != nil {
		return nil, false, err
	}

	var next *Page
	if action.Verb.TakesValue() {
		secret := false
		if value == "" {
			value, secret, err = p.secret(ctx, rt, action.Name)
			if err != nil {
				return nil, false, err
			}
		}
		shown := value
		if secret {
			shown = strings.Repeat("*", len(value))
		}
		logger.Info(action.Humanized(), zap.String("value", shown))
		next, err = action.Invoke(ctx, rt, p, CallOptions{}, value)
	} else {
		logger.Info(action.Humanized())
		next, err = action.Invoke(ctx, rt, p, CallOptions{})
	}
	if err != nil {
		return nil, false, err
	}
	return next, next.Key() != p.Key(), nil
}

func (p *Page) secret(ctx context.Context, rt *Runtime, name string) (string, bool, error) {
	_, u, err := rt.liveURL(ctx)
	if err != nil {
		return "", false, fmt.Errorf("read browser url: %w", err)
	}
	domain := u.Domain()

	if rt.Secrets != nil {
		v, err := rt.Secrets.Get(ctx, domain, name)
		if err == nil && v != "" {
			return v, true, nil
		}
		rt.log().Info("Secret not set", zap.String("name", name), zap.String("domain", domain))
	}

	if !rt.interactive() {
		return "", false, nil
	}
	v, err := rt.Prompt.Value(ctx, name)
	if err != nil {
		return "", false, fmt.Errorf("prompt for %s: %w", name, err)
	}
	if v != "" && rt.Secrets != nil {
		if err := rt.Secrets.Set(ctx, domain, name, v); err != nil {
			rt.log().Warn("Unable to store secret", zap.String("name", name), zap.Error(err))
		}
	}
	return v, false, nil
}

// Clean prunes unused locators from the predicates and every action. A
// forced clean also drops actions none of whose locators ever worked. The
// page is saved when anything was removed or the clean was forced.
func (p *Page) Clean(rt *Runtime, force bool) (int, error) {
	logger := rt.log().With(zap.Stringer("page", p))
	count := p.Locators.Clean(force, logger)

	if force {
		kept := p.Actions[:0:0]
		for _, a := range p.Actions {
			if a.Verb != VerbType && unused(a) {
				logger.Info("Removed unused action", zap.Stringer("action", a))
				count++
				continue
			}
			kept = append(kept, a)
		}
		p.Actions = kept
	}

	for _, a := range p.Actions {
		count += a.Clean(force, logger)
	}

	if count > 0 || force {
		if rt.Store != nil {
			if err := rt.Store.Save(p); err != nil {
				return count, fmt.Errorf("save %s: %w", p, err)
			}
		}
	}
	return count, nil
}

func unused(a *Action) bool {
	for _, l := range a.Locators {
		if l.Uses > 0 {
			return false
		}
	}
	return true
}
