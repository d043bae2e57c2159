package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"
)

var rodKeys = map[Key]input.Key{
	"backspace": input.Backspace,
	"tab":       input.Tab,
	"enter":     input.Enter,
	"return":    input.Enter,
	"shift":     input.ShiftLeft,
	"control":   input.ControlLeft,
	"alt":       input.AltLeft,
	"meta":      input.MetaLeft,
	"command":   input.MetaLeft,
	"escape":    input.Escape,
	"space":     input.Space,
	"end":       input.End,
	"home":      input.Home,
	"left":      input.ArrowLeft,
	"up":        input.ArrowUp,
	"right":     input.ArrowRight,
	"down":      input.ArrowDown,
	"insert":    input.Insert,
	"delete":    input.Delete,
	"f1":        input.F1,
	"f2":        input.F2,
	"f3":        input.F3,
	"f4":        input.F4,
	"f5":        input.F5,
	"f6":        input.F6,
	"f7":        input.F7,
	"f8":        input.F8,
	"f9":        input.F9,
	"f10":       input.F10,
	"f11":       input.F11,
	"f12":       input.F12,
}

// rodAdapter drives a local Chromium over the DevTools protocol.
type rodAdapter struct {
	launch  *launcher.Launcher
	browser *rod.Browser
	page    *rod.Page
	timeout time.Duration
	logger  *zap.Logger
}

func launchRod(_ context.Context, opts Options, logger *zap.Logger) (Adapter, error) {
	switch opts.Name {
	case "chrome", "chromium":
	default:
		return nil, fmt.Errorf("%w: %s (rod drives chrome only)", ErrUnsupportedBrowser, opts.Name)
	}

	l := launcher.New().
		Headless(opts.Headless).
		Set("disable-blink-features", "AutomationControlled").
		Set("window-size", fmt.Sprintf("%d,%d", opts.Size.Width, opts.Size.Height))
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	// The browser outlives the launching context; Quit tears it down.
	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	var page *rod.Page
	if opts.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		_ = b.Close()
		l.Cleanup()
		return nil, fmt.Errorf("create page: %w", err)
	}

	return &rodAdapter{
		launch:  l,
		browser: b,
		page:    page,
		timeout: opts.Timeout,
		logger:  logger,
	}, nil
}

func (a *rodAdapter) Framework() string { return FrameworkRod }

func (a *rodAdapter) Visit(ctx context.Context, url string) error {
	page := a.page.Context(ctx).Timeout(3 * a.timeout)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		a.logger.Debug("Page load did not finish", zap.String("url", url), zap.Error(err))
	}
	return nil
}

func (a *rodAdapter) URL(ctx context.Context) (string, error) {
	info, err := a.page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("page info: %w", err)
	}
	return info.URL, nil
}

func (a *rodAdapter) Title(ctx context.Context) (string, error) {
	info, err := a.page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("page info: %w", err)
	}
	return info.Title, nil
}

func (a *rodAdapter) HTML(ctx context.Context) (string, error) {
	html, err := a.page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("page html: %w", err)
	}
	return html, nil
}

func (a *rodAdapter) Find(ctx context.Context, mode Mode, value string) ([]Element, error) {
	sel, err := mode.Selector(value)
	if err != nil {
		return nil, err
	}
	page := a.page.Context(ctx)
	var found rod.Elements
	if sel.XPath {
		found, err = page.ElementsX(sel.Expr)
	} else {
		found, err = page.Elements(sel.Expr)
	}
	if err != nil {
		return nil, rodError(err)
	}
	elements := make([]Element, 0, len(found))
	for _, el := range found {
		elements = append(elements, &rodElement{el: el, timeout: a.timeout})
	}
	return elements, nil
}

func (a *rodAdapter) Press(ctx context.Context, keys Keys) error {
	key, ok := rodKeys[keys.Key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, keys.Key)
	}
	kb := a.page.Keyboard
	if keys.Modifier == "" {
		return kb.Type(key)
	}
	mod, ok := rodKeys[keys.Modifier]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, keys.Modifier)
	}
	if err := kb.Press(mod); err != nil {
		return err
	}
	defer func() { _ = kb.Release(mod) }()
	return kb.Type(key)
}

func (a *rodAdapter) Execute(ctx context.Context, script string) error {
	if _, err := a.page.Context(ctx).Evaluate(rod.Eval(script)); err != nil {
		return fmt.Errorf("execute script: %w", err)
	}
	return nil
}

func (a *rodAdapter) Size(ctx context.Context) (Size, error) {
	bounds, err := a.page.Context(ctx).GetWindow()
	if err != nil {
		return Size{}, fmt.Errorf("window bounds: %w", err)
	}
	var s Size
	if bounds.Width != nil {
		s.Width = *bounds.Width
	}
	if bounds.Height != nil {
		s.Height = *bounds.Height
	}
	return s, nil
}

func (a *rodAdapter) Resize(ctx context.Context, size Size) error {
	w, h := size.Width, size.Height
	return a.page.Context(ctx).SetWindow(&proto.BrowserBounds{
		Width:       &w,
		Height:      &h,
		WindowState: proto.BrowserWindowStateNormal,
	})
}

func (a *rodAdapter) Healthy(ctx context.Context) error {
	_, err := a.browser.Context(ctx).Version()
	return err
}

func (a *rodAdapter) Quit(ctx context.Context) error {
	var errs []error
	if a.page != nil {
		if err := a.page.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close page: %w", err))
		}
	}
	if err := a.browser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close browser: %w", err))
	}
	a.launch.Cleanup()
	return errors.Join(errs...)
}

type rodElement struct {
	el      *rod.Element
	timeout time.Duration
}

func (e *rodElement) with(ctx context.Context) *rod.Element {
	return e.el.Context(ctx).Timeout(e.timeout)
}

func (e *rodElement) Visible(ctx context.Context) (bool, error) {
	ok, err := e.with(ctx).Visible()
	return ok, rodError(err)
}

func (e *rodElement) OuterHTML(ctx context.Context) (string, error) {
	html, err := e.with(ctx).HTML()
	return html, rodError(err)
}

func (e *rodElement) Click(ctx context.Context) error {
	return rodError(e.with(ctx).Click(proto.InputMouseButtonLeft, 1))
}

func (e *rodElement) Fill(ctx context.Context, value string) error {
	el := e.with(ctx)
	if err := el.SelectAllText(); err != nil {
		return rodError(err)
	}
	return rodError(el.Input(value))
}

func (e *rodElement) Select(ctx context.Context, value string) error {
	return rodError(e.with(ctx).Select([]string{value}, true, rod.SelectorTypeText))
}

func (e *rodElement) Choose(ctx context.Context, _ string) error {
	el := e.with(ctx)
	checked, err := el.Property("checked")
	if err == nil && checked.Bool() {
		return nil
	}
	return rodError(el.Click(proto.InputMouseButtonLeft, 1))
}

func rodError(err error) error {
	if err == nil {
		return nil
	}
	var notFound *rod.ElementNotFoundError
	var gone *rod.ObjectNotFoundError
	if errors.As(err, &notFound) || errors.As(err, &gone) {
		return fmt.Errorf("%w: %v", ErrNoSuchElement, err)
	}
	var invisible *rod.InvisibleShapeError
	var covered *rod.NoPointerEventsError
	if errors.As(err, &invisible) || errors.As(err, &covered) {
		return fmt.Errorf("%w: %v", ErrNotInteractable, err)
	}
	return err
}
