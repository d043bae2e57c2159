package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

var playwrightKeys = map[Key]string{
	"backspace": "Backspace",
	"tab":       "Tab",
	"enter":     "Enter",
	"return":    "Enter",
	"shift":     "Shift",
	"control":   "Control",
	"alt":       "Alt",
	"meta":      "Meta",
	"command":   "Meta",
	"escape":    "Escape",
	"space":     "Space",
	"end":       "End",
	"home":      "Home",
	"left":      "ArrowLeft",
	"up":        "ArrowUp",
	"right":     "ArrowRight",
	"down":      "ArrowDown",
	"insert":    "Insert",
	"delete":    "Delete",
}

func playwrightKey(k Key) string {
	if name, ok := playwrightKeys[k]; ok {
		return name
	}
	// f1..f12
	return strings.ToUpper(string(k))
}

type playwrightAdapter struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
	timeout time.Duration
	logger  *zap.Logger
}

func launchPlaywright(_ context.Context, opts Options, logger *zap.Logger) (Adapter, error) {
	engine := opts.Name
	if engine == "chrome" {
		engine = "chromium"
	}
	switch engine {
	case "chromium", "firefox", "webkit":
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBrowser, opts.Name)
	}

	pw, err := playwright.Run()
	if err != nil {
		logger.Info("Installing playwright driver", zap.String("browser", engine))
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{engine}}); err != nil {
			return nil, fmt.Errorf("install playwright: %w", err)
		}
		if pw, err = playwright.Run(); err != nil {
			return nil, fmt.Errorf("start playwright: %w", err)
		}
	}

	var bt playwright.BrowserType
	switch engine {
	case "firefox":
		bt = pw.Firefox
	case "webkit":
		bt = pw.WebKit
	default:
		bt = pw.Chromium
	}

	b, err := bt.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch %s: %w", engine, err)
	}

	page, err := b.NewPage(playwright.BrowserNewPageOptions{
		Viewport: &playwright.Size{Width: opts.Size.Width, Height: opts.Size.Height},
	})
	if err != nil {
		_ = b.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("create page: %w", err)
	}
	page.SetDefaultTimeout(float64(opts.Timeout.Milliseconds()))

	return &playwrightAdapter{
		pw:      pw,
		browser: b,
		page:    page,
		timeout: opts.Timeout,
		logger:  logger,
	}, nil
}

func (a *playwrightAdapter) Framework() string { return FrameworkPlaywright }

func (a *playwrightAdapter) Visit(_ context.Context, url string) error {
	if _, err := a.page.Goto(url, playwright.PageGotoOptions{
		Timeout: playwright.Float(float64((3 * a.timeout).Milliseconds())),
	}); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

func (a *playwrightAdapter) URL(context.Context) (string, error) {
	return a.page.URL(), nil
}

func (a *playwrightAdapter) Title(context.Context) (string, error) {
	return a.page.Title()
}

func (a *playwrightAdapter) HTML(context.Context) (string, error) {
	return a.page.Content()
}

func (a *playwrightAdapter) Find(_ context.Context, mode Mode, value string) ([]Element, error) {
	sel, err := mode.Selector(value)
	if err != nil {
		return nil, err
	}
	handles, err := a.page.QuerySelectorAll(sel.String())
	if err != nil {
		return nil, playwrightError(err)
	}
	elements := make([]Element, 0, len(handles))
	for _, h := range handles {
		elements = append(elements, &playwrightElement{h: h, timeout: a.timeout})
	}
	return elements, nil
}

func (a *playwrightAdapter) Press(_ context.Context, keys Keys) error {
	combo := playwrightKey(keys.Key)
	if keys.Modifier != "" {
		combo = playwrightKey(keys.Modifier) + "+" + combo
	}
	return a.page.Keyboard().Press(combo)
}

func (a *playwrightAdapter) Execute(_ context.Context, script string) error {
	if _, err := a.page.Evaluate(script); err != nil {
		return fmt.Errorf("execute script: %w", err)
	}
	return nil
}

func (a *playwrightAdapter) Size(context.Context) (Size, error) {
	vp := a.page.ViewportSize()
	if vp == nil {
		return Size{}, errors.New("viewport size unavailable")
	}
	return Size{Width: vp.Width, Height: vp.Height}, nil
}

func (a *playwrightAdapter) Resize(_ context.Context, size Size) error {
	return a.page.SetViewportSize(size.Width, size.Height)
}

func (a *playwrightAdapter) Healthy(context.Context) error {
	if !a.browser.IsConnected() {
		return errors.New("browser disconnected")
	}
	return nil
}

func (a *playwrightAdapter) Quit(context.Context) error {
	var errs []error
	if err := a.browser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close browser: %w", err))
	}
	if err := a.pw.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop playwright: %w", err))
	}
	return errors.Join(errs...)
}

type playwrightElement struct {
	h       playwright.ElementHandle
	timeout time.Duration
}

func (e *playwrightElement) ms() *float64 {
	return playwright.Float(float64(e.timeout.Milliseconds()))
}

func (e *playwrightElement) Visible(context.Context) (bool, error) {
	ok, err := e.h.IsVisible()
	return ok, playwrightError(err)
}

func (e *playwrightElement) OuterHTML(context.Context) (string, error) {
	v, err := e.h.Evaluate("e => e.outerHTML")
	if err != nil {
		return "", playwrightError(err)
	}
	html, _ := v.(string)
	return html, nil
}

func (e *playwrightElement) Click(context.Context) error {
	return playwrightError(e.h.Click(playwright.ElementHandleClickOptions{Timeout: e.ms()}))
}

func (e *playwrightElement) Fill(_ context.Context, value string) error {
	return playwrightError(e.h.Fill(value, playwright.ElementHandleFillOptions{Timeout: e.ms()}))
}

func (e *playwrightElement) Select(_ context.Context, value string) error {
	_, err := e.h.SelectOption(playwright.SelectOptionValues{Labels: &[]string{value}},
		playwright.ElementHandleSelectOptionOptions{Timeout: e.ms()})
	return playwrightError(err)
}

func (e *playwrightElement) Choose(context.Context, string) error {
	return playwrightError(e.h.Check(playwright.ElementHandleCheckOptions{Timeout: e.ms()}))
}

func playwrightError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case errors.Is(err, playwright.ErrTimeout):
		return fmt.Errorf("%w: %v", ErrNotInteractable, err)
	case strings.Contains(msg, "not attached to the DOM"), strings.Contains(msg, "Element is detached"):
		return fmt.Errorf("%w: %v", ErrNoSuchElement, err)
	case strings.Contains(msg, "not visible"), strings.Contains(msg, "not enabled"):
		return fmt.Errorf("%w: %v", ErrNotInteractable, err)
	}
	return err
}
