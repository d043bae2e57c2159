package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State is what a session remembers about the browser when it closes.
type State struct {
	URL  string
	Size Size
}

// Session owns the single live Adapter of a run. It relaunches the browser
// when the user closed it and reports the final URL and window size on
// Close so they can be restored next time.
type Session struct {
	ID        string
	CreatedAt time.Time

	opts   Options
	launch LaunchFunc
	logger *zap.Logger

	mu      sync.Mutex
	adapter Adapter
}

// NewSession prepares a session; the browser starts on Open.
func NewSession(opts Options, logger *zap.Logger) *Session {
	opts.defaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.NewString()
	return &Session{
		ID:        id,
		CreatedAt: time.Now(),
		opts:      opts,
		launch:    Launch,
		logger:    logger.With(zap.String("session", id[:8])),
	}
}

// WithAdapter returns a session around an already running adapter.
func WithAdapter(a Adapter, logger *zap.Logger) *Session {
	s := NewSession(Options{Name: "chrome", Framework: a.Framework()}, logger)
	s.adapter = a
	s.launch = func(context.Context, Options, *zap.Logger) (Adapter, error) { return a, nil }
	return s
}

// WithLauncher replaces the function that starts the browser.
func (s *Session) WithLauncher(launch LaunchFunc) *Session {
	s.launch = launch
	return s
}

// Options returns the launch options after defaults.
func (s *Session) Options() Options { return s.opts }

// Open launches the browser, sizes the window and visits url when given.
func (s *Session) Open(ctx context.Context, url string) (Adapter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.adapter == nil {
		if err := s.start(ctx); err != nil {
			return nil, err
		}
	}
	if url != "" {
		if err := s.adapter.Visit(ctx, url); err != nil {
			return nil, err
		}
	}
	return s.adapter, nil
}

func (s *Session) start(ctx context.Context) error {
	a, err := s.launch(ctx, s.opts, s.logger)
	if err != nil {
		return err
	}
	if err := a.Resize(ctx, s.opts.Size); err != nil {
		s.logger.Warn("Unable to resize browser window", zap.Error(err))
	}
	s.adapter = a
	return nil
}

// Adapter returns the live adapter, or nil before Open.
func (s *Session) Adapter() Adapter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adapter
}

// Ensure checks the browser is still alive and relaunches it at url if not.
func (s *Session) Ensure(ctx context.Context, url string) (Adapter, error) {
	s.mu.Lock()
	a := s.adapter
	s.mu.Unlock()
	if a != nil {
		err := a.Healthy(ctx)
		if err == nil {
			return a, nil
		}
		s.logger.Warn("Browser connection lost, relaunching", zap.Error(err))
		_ = a.Quit(ctx)
		s.mu.Lock()
		s.adapter = nil
		s.mu.Unlock()
	}
	return s.Open(ctx, url)
}

// Close quits the browser and returns its last URL and size. Errors are
// logged; a browser the user already closed is not a failure.
func (s *Session) Close(ctx context.Context) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := State{Size: s.opts.Size}
	if s.adapter == nil {
		return state
	}

	if err := s.adapter.Healthy(ctx); err == nil {
		if u, err := s.adapter.URL(ctx); err == nil {
			state.URL = u
		}
		if size, err := s.adapter.Size(ctx); err == nil && size.Width > 0 && size.Height > 0 {
			state.Size = size
		}
	}

	s.logger.Info("Closing browser", zap.String("url", state.URL))
	if err := s.adapter.Quit(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Debug("Browser already closed", zap.Error(err))
	}
	s.adapter = nil
	return state
}

func (s *Session) String() string {
	return fmt.Sprintf("%s/%s (%s)", s.opts.Framework, s.opts.Name, s.ID[:8])
}
