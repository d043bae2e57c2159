package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sitepilot/internal/browser"
	"sitepilot/internal/config"
	"sitepilot/internal/logging"
	"sitepilot/internal/model"
	"sitepilot/internal/prompt"
	"sitepilot/internal/secrets"
	"sitepilot/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app is everything one command run needs: the browser session, the site
// files, the secrets database and the engine runtime built on them.
type app struct {
	settings *config.Settings
	prompt   prompt.Prompter
	store    *store.FileStore
	secrets  *secrets.Store
	session  *browser.Session
	rt       *model.Runtime
}

// openStore builds the parts of an app that need no browser.
func openStore() *app {
	fs := store.NewFileStore(root, logging.For(logger, logging.CategoryStore))
	return &app{
		settings: settings,
		store:    fs,
		rt: &model.Runtime{
			Store:   fs,
			Logger:  logging.For(logger, logging.CategoryModel),
			Dev:     settings.Dev,
			Aliases: settings.Aliases,
		},
	}
}

// openApp applies flags to the settings, asks for anything still missing
// and launches the browser at the start URL.
func openApp(cmd *cobra.Command) (*app, error) {
	ctx := cmd.Context()
	a := openStore()
	applyFlags(a.settings)

	a.prompt = prompt.New(a.settings.Interactive && prompt.Interactive(),
		logging.For(logger, logging.CategoryPrompt))
	if err := a.promptForBrowserIfUnset(ctx); err != nil {
		return nil, err
	}
	if err := a.promptForURLIfUnset(ctx); err != nil {
		return nil, err
	}

	sec, err := secrets.Open(a.settings.SecretsPath(root), logging.For(logger, logging.CategorySecrets))
	if err != nil {
		return nil, err
	}
	a.secrets = sec

	b := a.settings.Browser
	a.session = browser.NewSession(browser.Options{
		Name:      b.Name,
		Framework: b.Framework,
		Headless:  b.Headless,
		Stealth:   b.Stealth,
		Size:      browser.Size{Width: b.Width, Height: b.Height},
	}, logging.For(logger, logging.CategorySession)).WithLauncher(launchBrowser)

	adapter, err := a.session.Open(ctx, a.settings.StartURL())
	if err != nil {
		_ = sec.Close()
		if browser.Fatal(err) {
			return nil, err
		}
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	a.rt.Browser = adapter
	a.rt.Secrets = sec
	a.rt.Prompt = a.prompt
	return a, nil
}

func applyFlags(s *config.Settings) {
	if browserName != "" {
		s.Browser.Name = strings.ToLower(browserName)
	}
	if framework != "" {
		s.Browser.Framework = strings.ToLower(framework)
	}
	if headless {
		s.Browser.Headless = true
	}
	if domain != "" {
		s.URL = "https://" + strings.TrimPrefix(strings.TrimPrefix(domain, "https://"), "http://")
	}
}

func (a *app) promptForBrowserIfUnset(ctx context.Context) error {
	b := &a.settings.Browser
	if b.Name != "" {
		return nil
	}
	choices := browser.Browsers(b.Framework)
	if len(choices) == 0 {
		return fmt.Errorf("%w: %s", browser.ErrUnsupportedFramework, b.Framework)
	}
	if !a.prompt.Interactive() {
		b.Name = choices[0]
		return nil
	}
	name, err := a.prompt.Choose(ctx, "Browser", choices)
	if errors.Is(err, prompt.ErrCancelled) {
		name, err = choices[0], nil
	}
	if err != nil {
		return err
	}
	b.Name = name
	return nil
}

func (a *app) promptForURLIfUnset(ctx context.Context) error {
	if a.settings.URL != "" || !a.prompt.Interactive() {
		return nil
	}
	url, err := a.prompt.Text(ctx, "Starting URL", "https://")
	if errors.Is(err, prompt.ErrCancelled) {
		return nil
	}
	if err != nil {
		return err
	}
	if url = strings.TrimSpace(url); url != "" && url != "https://" {
		a.settings.URL = url
	}
	return nil
}

// ensure relaunches the browser when it was closed and points the runtime
// at the live adapter.
func (a *app) ensure(ctx context.Context) error {
	adapter, err := a.session.Ensure(ctx, a.settings.StartURL())
	if err != nil {
		return err
	}
	a.rt.Browser = adapter
	return nil
}

// Close quits the browser and remembers where it was. Failures are logged.
func (a *app) Close(ctx context.Context) {
	if a.session != nil {
		state := a.session.Close(context.WithoutCancel(ctx))
		a.settings.Remember(state.URL, state.Size.Width, state.Size.Height)
		if err := a.settings.Save(config.Path(root)); err != nil {
			logger.Warn("Unable to save settings", zap.Error(err))
		}
	}
	if a.secrets != nil {
		if err := a.secrets.Close(); err != nil {
			logger.Debug("Unable to close secrets database", zap.Error(err))
		}
	}
}
