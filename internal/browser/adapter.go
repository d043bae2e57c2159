// Package browser wraps the browser engines sitepilot drives behind a small
// capability interface. Two engines are supported: go-rod (the default) and
// Playwright. Exactly one Adapter is live per run and is owned by a Session.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrNoSuchElement is the expected miss when a locator finds nothing.
	ErrNoSuchElement = errors.New("no such element")
	// ErrNotInteractable is returned when an element cannot receive input.
	ErrNotInteractable = errors.New("element not interactable")

	ErrUnsupportedMode      = errors.New("unsupported locator mode")
	ErrUnknownKey           = errors.New("unknown key")
	ErrTooManyModifiers     = errors.New("at most one modifier key is supported")
	ErrUnsupportedBrowser   = errors.New("unsupported browser")
	ErrUnsupportedFramework = errors.New("unsupported framework")
)

// Element is a located DOM element.
type Element interface {
	Visible(ctx context.Context) (bool, error)
	OuterHTML(ctx context.Context) (string, error)
	Click(ctx context.Context) error
	Fill(ctx context.Context, value string) error
	Select(ctx context.Context, value string) error
	Choose(ctx context.Context, value string) error
}

// Size is a browser window size.
type Size struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Adapter is the browser capability consumed by the page engine.
type Adapter interface {
	Framework() string
	Visit(ctx context.Context, url string) error
	URL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	// Find returns every element matching (mode, value) in document order.
	Find(ctx context.Context, mode Mode, value string) ([]Element, error)
	Press(ctx context.Context, keys Keys) error
	// Execute evaluates a JavaScript function expression in the page.
	Execute(ctx context.Context, script string) error
	Size(ctx context.Context) (Size, error)
	Resize(ctx context.Context, size Size) error
	// Healthy returns an error when the underlying browser is gone.
	Healthy(ctx context.Context) error
	Quit(ctx context.Context) error
}

// Options configures a browser launch.
type Options struct {
	Name      string
	Framework string
	Headless  bool
	Stealth   bool
	Size      Size
	Timeout   time.Duration
}

func (o *Options) defaults() {
	o.Name = strings.ToLower(strings.TrimSpace(o.Name))
	o.Framework = strings.ToLower(strings.TrimSpace(o.Framework))
	if o.Framework == "" {
		o.Framework = FrameworkRod
	}
	if o.Size.Width <= 0 {
		o.Size.Width = 1920
	}
	if o.Size.Height <= 0 {
		o.Size.Height = 1080
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
}

// LaunchFunc starts a browser for one framework.
type LaunchFunc func(ctx context.Context, opts Options, logger *zap.Logger) (Adapter, error)

const (
	FrameworkRod        = "rod"
	FrameworkPlaywright = "playwright"
)

var launchers = map[string]LaunchFunc{
	FrameworkRod:        launchRod,
	FrameworkPlaywright: launchPlaywright,
}

// Frameworks lists the registered framework names.
func Frameworks() []string {
	names := make([]string, 0, len(launchers))
	for name := range launchers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var browsers = map[string][]string{
	FrameworkRod:        {"chrome", "chromium"},
	FrameworkPlaywright: {"firefox", "chromium", "webkit"},
}

// Browsers lists the browser names framework can drive, preferred first.
func Browsers(framework string) []string {
	return append([]string(nil), browsers[strings.ToLower(framework)]...)
}

// Launch starts the browser selected by opts.Framework.
func Launch(ctx context.Context, opts Options, logger *zap.Logger) (Adapter, error) {
	opts.defaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Name == "" {
		return nil, fmt.Errorf("%w: no browser specified", ErrUnsupportedBrowser)
	}
	launch, ok := launchers[opts.Framework]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFramework, opts.Framework)
	}
	logger.Info("Launching browser",
		zap.String("browser", opts.Name),
		zap.String("framework", opts.Framework),
		zap.Bool("headless", opts.Headless))
	return launch(ctx, opts, logger)
}

// Fatal reports whether err is a startup condition that should stop the run.
func Fatal(err error) bool {
	return errors.Is(err, ErrUnsupportedBrowser) || errors.Is(err, ErrUnsupportedFramework)
}

// RemoveBlankTargets keeps link navigation inside the controlled tab.
const RemoveBlankTargets = `() => {
	Array.from(document.querySelectorAll('a[target="_blank"]'))
		.forEach(link => link.removeAttribute('target'));
}`
