package browser

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestSession(t *testing.T, launches *int) (*Session, []*Fake) {
	t.Helper()
	var fakes []*Fake
	s := NewSession(Options{Name: "chrome", Size: Size{Width: 800, Height: 600}}, zap.NewNop()).
		WithLauncher(func(context.Context, Options, *zap.Logger) (Adapter, error) {
			*launches++
			f := NewFake("about:blank")
			fakes = append(fakes, f)
			return f, nil
		})
	return s, fakes
}

func TestSessionOpen(t *testing.T) {
	var launches int
	s, _ := newTestSession(t, &launches)
	ctx := context.Background()

	a, err := s.Open(ctx, "https://example.com")
	require.NoError(t, err)
	f := a.(*Fake)
	assert.Equal(t, "https://example.com", f.CurrentURL)
	assert.Equal(t, Size{Width: 800, Height: 600}, f.Window)

	_, err = s.Open(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, launches)
}

func TestSessionEnsureRelaunches(t *testing.T) {
	var launches int
	s, _ := newTestSession(t, &launches)
	ctx := context.Background()

	a, err := s.Open(ctx, "")
	require.NoError(t, err)

	same, err := s.Ensure(ctx, "https://example.com")
	require.NoError(t, err)
	assert.Same(t, a, same)

	a.(*Fake).Down = true
	next, err := s.Ensure(ctx, "https://example.com/login")
	require.NoError(t, err)
	assert.NotSame(t, a, next)
	assert.True(t, a.(*Fake).Closed)
	assert.Equal(t, "https://example.com/login", next.(*Fake).CurrentURL)
	assert.Equal(t, 2, launches)
}

func TestSessionClose(t *testing.T) {
	var launches int
	s, _ := newTestSession(t, &launches)
	ctx := context.Background()

	assert.Equal(t, State{Size: Size{Width: 800, Height: 600}}, s.Close(ctx))

	a, err := s.Open(ctx, "https://example.com/a")
	require.NoError(t, err)
	require.NoError(t, a.Resize(ctx, Size{Width: 1000, Height: 700}))

	state := s.Close(ctx)
	assert.Equal(t, "https://example.com/a", state.URL)
	assert.Equal(t, Size{Width: 1000, Height: 700}, state.Size)
	assert.Nil(t, s.Adapter())
}

func TestSessionCloseAfterUserQuit(t *testing.T) {
	var launches int
	s, _ := newTestSession(t, &launches)
	ctx := context.Background()

	a, err := s.Open(ctx, "https://example.com/a")
	require.NoError(t, err)
	a.(*Fake).Down = true

	state := s.Close(ctx)
	assert.Empty(t, state.URL)
	assert.Equal(t, Size{Width: 800, Height: 600}, state.Size)
}

func TestLaunchRejectsUnknownFramework(t *testing.T) {
	_, err := Launch(context.Background(), Options{Name: "chrome", Framework: "selenium"}, nil)
	assert.ErrorIs(t, err, ErrUnsupportedFramework)
	assert.True(t, Fatal(err))

	_, err = Launch(context.Background(), Options{Framework: "rod"}, nil)
	assert.ErrorIs(t, err, ErrUnsupportedBrowser)

	_, err = Launch(context.Background(), Options{Name: "firefox", Framework: "rod"}, nil)
	assert.ErrorIs(t, err, ErrUnsupportedBrowser)
	assert.False(t, Fatal(errors.New("boom")))
}

func TestFakeFind(t *testing.T) {
	ctx := context.Background()
	f := NewFake("https://example.com")
	f.Add("https://example.com", ModeName, "email", &FakeElement{HTML: "<input>"})
	f.Add("https://example.com/next", ModeName, "email", nil)

	found, err := f.Find(ctx, ModeName, "email")
	require.NoError(t, err)
	require.Len(t, found, 1)
	html, err := found[0].OuterHTML(ctx)
	require.NoError(t, err)
	assert.Equal(t, "<input>", html)

	found, err = f.Find(ctx, ModeID, "email")
	require.NoError(t, err)
	assert.Empty(t, found)

	_, err = f.Find(ctx, Mode("bogus"), "x")
	assert.ErrorIs(t, err, ErrUnsupportedMode)
}

func TestBrowsers(t *testing.T) {
	assert.Equal(t, []string{"chrome", "chromium"}, Browsers("rod"))
	assert.Equal(t, "firefox", Browsers("Playwright")[0])
	assert.Empty(t, Browsers("selenium"))
	assert.Equal(t, []string{"playwright", "rod"}, Frameworks())
}
