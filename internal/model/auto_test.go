package model_test

import (
	"context"
	"testing"

	"sitepilot/internal/browser"
	"sitepilot/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoPrefersExactPages(t *testing.T) {
	e := newEnv(t, "https://example.com/p/42")
	require.NoError(t, e.store.Save(model.NewPage(key("example.com", "p/{id}"))))
	require.NoError(t, e.store.Save(model.NewPage(key("example.com", "p/42"))))

	p, err := model.Auto(context.Background(), e.rt)
	require.NoError(t, err)
	assert.Equal(t, "p/42", p.Path())
	assert.True(t, p.Exact())
}

func TestAutoUsesPatternPages(t *testing.T) {
	e := newEnv(t, "https://example.com/p/7")
	require.NoError(t, e.store.Save(model.NewPage(key("example.com", "p/{id}"))))
	require.NoError(t, e.store.Save(model.NewPage(key("example.com", "p/{id}/extra"))))

	p, err := model.Auto(context.Background(), e.rt)
	require.NoError(t, err)
	assert.Equal(t, "p/{id}", p.Path())
}

func TestAutoAmbiguousTakesFirst(t *testing.T) {
	url := "https://example.com/login"
	e := newEnv(t, url)
	require.NoError(t, e.store.Save(model.NewPage(model.Key{Domain: "example.com", Path: "login", Variant: "a"})))
	require.NoError(t, e.store.Save(model.NewPage(model.Key{Domain: "example.com", Path: "login", Variant: "b"})))

	p, err := model.Auto(context.Background(), e.rt)
	require.NoError(t, err)
	assert.Equal(t, "a", p.Variant())
}

func TestAutoUsesLocatorsToPickVariant(t *testing.T) {
	url := "https://example.com/"
	e := newEnv(t, url)
	e.fake.Add(url, browser.ModeID, "logout", nil)

	out := model.NewPage(model.Key{Domain: "example.com", Path: "@", Variant: "anonymous"})
	out.Locators.Exclusions = append(out.Locators.Exclusions, &model.Locator{Mode: browser.ModeID, Value: "logout"})
	in := model.NewPage(model.Key{Domain: "example.com", Path: "@", Variant: "signed_in"})
	in.Locators.Inclusions = append(in.Locators.Inclusions, &model.Locator{Mode: browser.ModeID, Value: "logout"})
	require.NoError(t, e.store.Save(out))
	require.NoError(t, e.store.Save(in))

	p, err := model.Auto(context.Background(), e.rt)
	require.NoError(t, err)
	assert.Equal(t, "signed_in", p.Variant())
}

func TestAutoCreatesExactPage(t *testing.T) {
	e := newEnv(t, "https://example.com/about")
	p, err := model.Auto(context.Background(), e.rt)
	require.NoError(t, err)
	assert.Equal(t, key("example.com", "about"), p.Key())

	_, err = e.store.Load(p.Key())
	assert.NoError(t, err)
}

func TestAutoDetectsPatterns(t *testing.T) {
	e := newEnv(t, "https://example.com/orders/1234")
	p, err := model.Auto(context.Background(), e.rt)
	require.NoError(t, err)
	assert.Equal(t, "orders/{id}", p.Path())

	_, err = e.store.Load(key("example.com", "orders/{id}"))
	assert.NoError(t, err)
}

func TestAutoAliases(t *testing.T) {
	e := newEnv(t, "https://www.example.com/login")
	e.rt.Aliases = map[string]string{"www.example.com": "example.com"}
	require.NoError(t, e.store.Save(model.NewPage(key("example.com", "login"))))

	p, err := model.Auto(context.Background(), e.rt)
	require.NoError(t, err)
	assert.Equal(t, key("example.com", "login"), p.Key())
}

func TestPerform(t *testing.T) {
	ctx := context.Background()

	t.Run("fill with an explicit value stays on the page", func(t *testing.T) {
		url := "https://example.com/login"
		e := newEnv(t, url)
		el := e.fake.Add(url, browser.ModeName, "email", nil)
		p, err := model.At(ctx, e.rt, url, "")
		require.NoError(t, err)

		next, transitioned, err := p.Perform(ctx, e.rt, "fill_email", "x@example.com")
		require.NoError(t, err)
		assert.False(t, transitioned)
		assert.Same(t, p, next)
		assert.Equal(t, []string{"x@example.com"}, el.Values)

		stored, err := e.store.Load(p.Key())
		require.NoError(t, err)
		a, err := stored.Lookup(e.rt, "fill_email")
		require.NoError(t, err)
		assert.Equal(t, 1, a.Locator().Uses)
		assert.Equal(t, "email", a.Locator().Value)
	})

	t.Run("fill uses the stored secret", func(t *testing.T) {
		url := "https://example.com/login"
		e := newEnv(t, url)
		el := e.fake.Add(url, browser.ModeName, "password", nil)
		require.NoError(t, e.rt.Secrets.Set(ctx, "example.com", "password", "hunter2"))
		p, err := model.At(ctx, e.rt, url, "")
		require.NoError(t, err)

		_, _, err = p.Perform(ctx, e.rt, "fill_password", "")
		require.NoError(t, err)
		assert.Equal(t, []string{"hunter2"}, el.Values)
		assert.Empty(t, e.prompt.asked)
	})

	t.Run("fill prompts and remembers the value", func(t *testing.T) {
		url := "https://example.com/login"
		e := newEnv(t, url)
		e.prompt.interactive = true
		e.prompt.values["username"] = "alice"
		el := e.fake.Add(url, browser.ModeName, "username", nil)
		p, err := model.At(ctx, e.rt, url, "")
		require.NoError(t, err)

		_, _, err = p.Perform(ctx, e.rt, "fill_username", "")
		require.NoError(t, err)
		assert.Equal(t, []string{"alice"}, el.Values)

		v, err := e.rt.Secrets.Get(ctx, "example.com", "username")
		require.NoError(t, err)
		assert.Equal(t, "alice", v)
	})

	t.Run("click transitions", func(t *testing.T) {
		url := "https://example.com/login"
		e := newEnv(t, url)
		e.fake.Add(url, browser.ModeText, "Sign In", &browser.FakeElement{Navigate: "https://example.com/home"})
		p, err := model.At(ctx, e.rt, url, "")
		require.NoError(t, err)

		next, transitioned, err := p.Perform(ctx, e.rt, "click_sign_in", "")
		require.NoError(t, err)
		assert.True(t, transitioned)
		assert.Equal(t, key("example.com", "home"), next.Key())
	})

	t.Run("exhausted locators prompt for a new one", func(t *testing.T) {
		url := "https://example.com/login"
		e := newEnv(t, url)
		e.prompt.interactive = true
		e.prompt.mode, e.prompt.value = browser.ModeCSS, "button.primary"
		btn := e.fake.Add(url, browser.ModeCSS, "button.primary", nil)
		p, err := model.At(ctx, e.rt, url, "")
		require.NoError(t, err)

		_, _, err = p.Perform(ctx, e.rt, "click_submit", "")
		require.NoError(t, err)
		assert.Equal(t, 1, btn.Clicks)
		assert.Equal(t, []string{"click_submit"}, e.prompt.asked)

		stored, err := e.store.Load(p.Key())
		require.NoError(t, err)
		a, err := stored.Lookup(e.rt, "click_submit")
		require.NoError(t, err)
		assert.Equal(t, "button.primary", a.Locator().Value)
	})

	t.Run("exhausted locators give up without a terminal", func(t *testing.T) {
		url := "https://example.com/login"
		e := newEnv(t, url)
		p, err := model.At(ctx, e.rt, url, "")
		require.NoError(t, err)

		next, transitioned, err := p.Perform(ctx, e.rt, "click_submit", "")
		require.NoError(t, err)
		assert.False(t, transitioned)
		assert.Equal(t, p.Key(), next.Key())
	})

	t.Run("type presses keys", func(t *testing.T) {
		url := "https://example.com/login"
		e := newEnv(t, url)
		p, err := model.At(ctx, e.rt, url, "")
		require.NoError(t, err)

		_, _, err = p.Perform(ctx, e.rt, "type_enter", "")
		require.NoError(t, err)
		assert.Equal(t, []browser.Keys{{Key: "enter"}}, e.fake.Pressed)
	})

	t.Run("unknown action", func(t *testing.T) {
		e := newEnv(t, "https://example.com")
		p, err := model.At(ctx, e.rt, "https://example.com", "")
		require.NoError(t, err)
		_, _, err = p.Perform(ctx, e.rt, "hover_menu", "")
		assert.ErrorIs(t, err, model.ErrInvalidVerb)
	})
}

func TestPageText(t *testing.T) {
	text, err := model.PageText(`<html><head><style>p{}</style><script>var x</script></head>
<body><h1>Welcome</h1>
  <p>Sign in  to continue</p></body></html>`)
	require.NoError(t, err)
	assert.Equal(t, "Welcome\nSign in\nto continue", text)
	assert.Equal(t, int('a'+'b'), model.Identity("ab"))
}
