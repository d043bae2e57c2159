// Package server exposes the page model over HTTP. Every request drives the
// one shared browser, so requests are handled one at a time.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"sitepilot/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// PageView is the JSON body returned for a page.
type PageView struct {
	Page    string   `json:"page"`
	Actions []string `json:"actions"`
	Text    string   `json:"text"`
}

// Server serves pages and performs actions named in query strings.
type Server struct {
	rt     *model.Runtime
	logger *zap.Logger
	router *chi.Mux

	// The browser can only be on one page at a time.
	mu sync.Mutex
}

// New builds a server around rt.
func New(rt *model.Runtime, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{rt: rt, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/", s.handleIndex)
	r.Get("/favicon.ico", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/*", s.handlePage)
	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server started", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Stopping server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	<-errCh
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	page, err := model.Auto(r.Context(), s.rt)
	if err != nil {
		s.fail(w, r, http.StatusBadGateway, err)
		return
	}
	http.Redirect(w, r, "/"+page.Domain(), http.StatusFound)
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx := r.Context()

	target := "https://" + chi.URLParam(r, "*")
	page, err := model.At(ctx, s.rt, target, "")
	if err != nil {
		s.fail(w, r, http.StatusBadGateway, err)
		return
	}

	args, err := orderedQuery(r.URL.RawQuery)
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, err)
		return
	}
	for _, arg := range args {
		page, _, err = page.Perform(ctx, s.rt, arg.name, arg.value)
		if err != nil {
			status := http.StatusBadGateway
			if errors.Is(err, model.ErrInvalidVerb) || errors.Is(err, model.ErrUnknownAction) {
				status = http.StatusBadRequest
			}
			s.fail(w, r, status, err)
			return
		}
	}

	if len(args) > 0 {
		live, err := s.rt.Browser.URL(ctx)
		if err != nil {
			s.fail(w, r, http.StatusBadGateway, err)
			return
		}
		if _, rest, ok := strings.Cut(live, "://"); ok {
			live = rest
		}
		http.Redirect(w, r, "/"+live, http.StatusFound)
		return
	}

	text, err := page.Text(ctx, s.rt)
	if err != nil {
		s.logger.Warn("Unable to read page text", zap.Stringer("page", page), zap.Error(err))
	}
	view := PageView{Page: page.String(), Actions: page.ActionNames(s.rt), Text: text}
	if view.Actions == nil {
		view.Actions = []string{}
	}
	s.writeJSON(w, http.StatusOK, view)
}

type queryArg struct {
	name, value string
}

// orderedQuery parses a query string keeping the order actions were given
// in, which url.Values loses.
func orderedQuery(raw string) ([]queryArg, error) {
	var args []queryArg
	for _, part := range strings.Split(raw, "&") {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		name, err := url.QueryUnescape(k)
		if err != nil {
			return nil, fmt.Errorf("invalid query key %q: %w", k, err)
		}
		value, err := url.QueryUnescape(v)
		if err != nil {
			return nil, fmt.Errorf("invalid query value for %q: %w", name, err)
		}
		args = append(args, queryArg{name: name, value: value})
	}
	return args, nil
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, err error) {
	s.logger.Error("Request failed",
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Error(err))
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("Unable to write response", zap.Error(err))
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("Request",
			zap.String("method", r.Method),
			zap.String("url", r.URL.String()),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
