package model

import (
	"context"
	"errors"
	"fmt"

	"sitepilot/internal/urlpattern"

	"go.uber.org/zap"
)

// Auto returns the page the browser is showing. Exact pages win over pattern
// pages; several matches are logged and the first is used. When nothing
// matches, a numeric path segment suggests a new pattern page, otherwise a
// new exact page is created for the live URL.
func Auto(ctx context.Context, rt *Runtime) (*Page, error) {
	return auto(ctx, rt, true)
}

func auto(ctx context.Context, rt *Runtime, detect bool) (*Page, error) {
	logger := rt.log()

	live, u, err := rt.liveURL(ctx)
	if err != nil {
		return nil, fmt.Errorf("read browser url: %w", err)
	}
	domain := rt.Domain(u.Domain())

	var pages []*Page
	if rt.Store != nil {
		if pages, err = rt.Store.List(domain); err != nil {
			return nil, fmt.Errorf("list pages for %s: %w", domain, err)
		}
	}

	var matches []*Page
	exact := false
	for _, p := range pages {
		if p.Active(ctx, rt) {
			matches = append(matches, p)
			exact = exact || p.Exact()
		}
	}

	if exact {
		logger.Debug("Removing pattern pages from matches")
		kept := matches[:0]
		for _, p := range matches {
			if p.Exact() {
				kept = append(kept, p)
			}
		}
		matches = kept
	}

	if len(matches) > 0 {
		if len(matches) > 1 {
			for _, p := range matches {
				logger.Warn("Multiple pages matched", zap.Stringer("page", p))
			}
		}
		return matches[0], nil
	}

	if detect {
		if pattern, ok := urlpattern.DetectPatterns(u); ok {
			key := Key{Domain: domain, Path: pattern.Path(), Variant: DefaultVariant}
			if rt.Store != nil {
				_, err := rt.Store.Load(PageFor(key).Key())
				switch {
				case errors.Is(err, ErrPageNotFound):
					page := NewPage(key)
					logger.Info("Creating new page", zap.Stringer("page", page))
					if err := rt.Store.Save(page); err != nil {
						return nil, fmt.Errorf("save %s: %w", page, err)
					}
				case err != nil:
					return nil, err
				}
			}
			return auto(ctx, rt, false)
		}
	}

	logger.Info("Creating new page", zap.String("url", live))
	page, err := At(ctx, rt, live, "")
	if err != nil {
		return nil, err
	}
	if rt.Store != nil {
		if err := rt.Store.Save(page); err != nil {
			return nil, fmt.Errorf("save %s: %w", page, err)
		}
	}
	return page, nil
}
