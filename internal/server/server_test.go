package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sitepilot/internal/browser"
	"sitepilot/internal/model"
	"sitepilot/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const loginURL = "https://example.com/login"

type fixture struct {
	fake   *browser.Fake
	store  *store.MemoryStore
	server *Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fake := browser.NewFake(loginURL)
	fake.Page(loginURL).HTML = "<html><body><h1>Sign in</h1></body></html>"
	s := store.NewMemoryStore()
	rt := &model.Runtime{
		Browser: fake,
		Store:   s,
		Logger:  zaptest.NewLogger(t),
		Dev:     true,
		Settle: model.Settle{
			Timeout:  20 * time.Millisecond,
			Interval: time.Millisecond,
			Grace:    time.Millisecond,
		},
	}
	return &fixture{fake: fake, store: s, server: New(rt, zaptest.NewLogger(t))}
}

func (f *fixture) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func (f *fixture) seedLogin(t *testing.T) {
	t.Helper()
	page := model.NewPage(model.Key{Domain: "example.com", Path: "login"})
	page.Actions = append(page.Actions, &model.Action{
		Verb:     model.VerbFill,
		Name:     "email",
		Locators: []*model.Locator{{Mode: browser.ModeName, Value: "email", Uses: 2}},
	})
	require.NoError(t, f.store.Save(page))
}

func TestFavicon(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusNoContent, f.get(t, "/favicon.ico").Code)
}

func TestIndexRedirectsToDomain(t *testing.T) {
	f := newFixture(t)
	rec := f.get(t, "/")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/example.com", rec.Header().Get("Location"))
}

func TestPageView(t *testing.T) {
	f := newFixture(t)
	f.seedLogin(t)

	rec := f.get(t, "/example.com/login")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var view PageView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	assert.Equal(t, PageView{
		Page:    loginURL,
		Actions: []string{"fill_email"},
		Text:    "Sign in",
	}, view)
	assert.Empty(t, f.fake.Visits)
}

func TestPageViewVisits(t *testing.T) {
	f := newFixture(t)
	rec := f.get(t, "/example.com/about")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"https://example.com/about"}, f.fake.Visits)

	var view PageView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	assert.Equal(t, "https://example.com/about", view.Page)
	assert.Equal(t, []string{}, view.Actions)
}

func TestActionsRunInQueryOrder(t *testing.T) {
	f := newFixture(t)
	f.seedLogin(t)
	email := f.fake.Add(loginURL, browser.ModeName, "email", nil)
	submit := f.fake.Add(loginURL, browser.ModeText, "Sign In",
		&browser.FakeElement{Navigate: "https://example.com/home"})

	rec := f.get(t, "/example.com/login?fill_email=a%40example.com&click_sign_in=")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/example.com/home", rec.Header().Get("Location"))
	assert.Equal(t, []string{"a@example.com"}, email.Values)
	assert.Equal(t, 1, submit.Clicks)
}

func TestInvalidAction(t *testing.T) {
	f := newFixture(t)
	rec := f.get(t, "/example.com/login?hover_menu=1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Contains(t, body["error"], "invalid verb")
}

func TestOrderedQuery(t *testing.T) {
	args, err := orderedQuery("b=2&a=1&&c&d=x%20y")
	require.NoError(t, err)
	assert.Equal(t, []queryArg{{"b", "2"}, {"a", "1"}, {"c", ""}, {"d", "x y"}}, args)

	_, err = orderedQuery("a=%zz")
	assert.Error(t, err)
}

func TestServeStopsWithContext(t *testing.T) {
	f := newFixture(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.server.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/favicon.ico")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	http.DefaultClient.CloseIdleConnections()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
