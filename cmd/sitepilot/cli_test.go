package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"sitepilot/internal/browser"
	"sitepilot/internal/config"
	"sitepilot/internal/model"
	"sitepilot/internal/secrets"
	"sitepilot/internal/store"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// setup points the globals at a fresh root the way PersistentPreRunE would.
func setup(t *testing.T) string {
	t.Helper()
	for _, key := range []string{"BROWSER", "SITEPILOT_FRAMEWORK", "SITEPILOT_HEADLESS", "SITEPILOT_URL"} {
		t.Setenv(key, "")
	}
	t.Setenv("CI", "true")

	root = t.TempDir()
	var err error
	settings, err = config.Load(config.Path(root))
	require.NoError(t, err)
	logger = zap.NewNop()

	t.Cleanup(func() {
		root, browserName, framework, domain = ".", "", "", ""
		headless, execJSON = false, false
		launchBrowser = browser.Launch
	})
	return root
}

func command(t *testing.T) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	cmd.SetOut(&out)
	return cmd, &out
}

func useFake(fake *browser.Fake) {
	launchBrowser = func(context.Context, browser.Options, *zap.Logger) (browser.Adapter, error) {
		return fake, nil
	}
}

func TestExec(t *testing.T) {
	dir := setup(t)
	domain = "example.com/login"
	fake := browser.NewFake("about:blank")
	email := fake.Add("https://example.com/login", browser.ModeName, "email", nil)
	useFake(fake)

	cmd, out := command(t)
	require.NoError(t, runExec(cmd, []string{"fill_email=me@example.com"}))

	assert.Equal(t, []string{"me@example.com"}, email.Values)
	assert.Contains(t, out.String(), "https://example.com/login")
	assert.True(t, fake.Closed)

	saved, err := config.Load(config.Path(dir))
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/login", saved.URL)
	assert.Equal(t, "chrome", saved.Browser.Name)

	page, err := store.NewFileStore(dir, nil).Load(model.Key{Domain: "example.com", Path: "login", Variant: model.DefaultVariant})
	require.NoError(t, err)
	action, err := page.Lookup(&model.Runtime{}, "fill_email")
	require.NoError(t, err)
	assert.Equal(t, 1, action.Locator().Uses)
}

func TestExecUsesStoredSecret(t *testing.T) {
	dir := setup(t)
	domain = "example.com/login"

	sec, err := secrets.Open(settings.SecretsPath(dir), nil)
	require.NoError(t, err)
	require.NoError(t, sec.Set(context.Background(), "example.com", "password", "hunter2"))
	require.NoError(t, sec.Close())

	fake := browser.NewFake("about:blank")
	password := fake.Add("https://example.com/login", browser.ModeName, "password", nil)
	useFake(fake)

	execJSON = true
	cmd, out := command(t)
	require.NoError(t, runExec(cmd, []string{"fill_password"}))
	assert.Equal(t, []string{"hunter2"}, password.Values)

	var body map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &body))
	assert.Equal(t, "https://example.com/login", body["page"])
	assert.Equal(t, []any{"fill_password"}, body["actions"])
}

func TestExecRejectsUnknownFramework(t *testing.T) {
	setup(t)
	framework = "selenium"
	cmd, _ := command(t)
	err := runExec(cmd, nil)
	assert.ErrorIs(t, err, browser.ErrUnsupportedFramework)
}

func TestShellNeedsTerminal(t *testing.T) {
	setup(t)
	useFake(browser.NewFake("about:blank"))
	cmd, _ := command(t)
	assert.Error(t, runShell(cmd, nil))
}

func TestPagesAndClean(t *testing.T) {
	dir := setup(t)
	fs := store.NewFileStore(dir, nil)

	page := model.NewPage(model.Key{Domain: "example.com", Path: "login"})
	page.Actions = append(page.Actions,
		&model.Action{Verb: model.VerbClick, Name: "sign_in", Locators: []*model.Locator{
			{Mode: browser.ModeText, Value: "Sign In", Uses: 3},
			{Mode: browser.ModeText, Value: "Log In", Uses: -1},
		}},
		&model.Action{Verb: model.VerbFill, Name: "nickname", Locators: []*model.Locator{
			{Mode: browser.ModeName, Value: "nickname", Uses: -2},
		}},
	)
	require.NoError(t, fs.Save(page))
	require.NoError(t, fs.Save(model.NewPage(model.Key{Domain: "example.org"})))

	cmd, out := command(t)
	require.NoError(t, runPages(cmd, nil))
	assert.Equal(t, "https://example.com/login\t2 actions\nhttps://example.org\t0 actions\n", out.String())

	cmd, out = command(t)
	require.NoError(t, runClean(cmd, []string{"example.com"}))
	assert.Contains(t, out.String(), "https://example.com/login")

	cleaned, err := fs.Load(page.Key())
	require.NoError(t, err)
	require.Len(t, cleaned.Actions, 1)
	assert.Equal(t, "click_sign_in", cleaned.Actions[0].String())
	assert.Len(t, cleaned.Actions[0].Locators, 1)
	assert.Empty(t, cleaned.Locators.Inclusions)

	_, err = os.Stat(filepath.Join(dir, "sites", "example.org", "@", "default.yml"))
	assert.NoError(t, err)
}

func TestParseStep(t *testing.T) {
	action, value := parseStep("fill_email=a=b")
	assert.Equal(t, "fill_email", action)
	assert.Equal(t, "a=b", value)

	action, value = parseStep(" click_go ")
	assert.Equal(t, "click_go", action)
	assert.Empty(t, value)
}

func TestApplyFlags(t *testing.T) {
	setup(t)
	browserName, framework, domain, headless = "Firefox", "PLAYWRIGHT", "http://example.com/x", true
	s := config.DefaultSettings()
	applyFlags(s)
	assert.Equal(t, "firefox", s.Browser.Name)
	assert.Equal(t, "playwright", s.Browser.Framework)
	assert.True(t, s.Browser.Headless)
	assert.Equal(t, "https://example.com/x", s.URL)
}
