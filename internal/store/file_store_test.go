package store

import (
	"os"
	"path/filepath"
	"testing"

	"sitepilot/internal/browser"
	"sitepilot/internal/model"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func samplePage() *model.Page {
	p := model.NewPage(model.Key{Domain: "example.com", Path: "login", Variant: "default"})
	p.Locators.Inclusions = append(p.Locators.Inclusions, &model.Locator{Mode: browser.ModeID, Value: "login-form", Uses: 3})
	p.Actions = append(p.Actions, &model.Action{
		Verb: model.VerbFill,
		Name: "email",
		Locators: []*model.Locator{
			{Mode: browser.ModeName, Value: "email", Uses: 6},
			{Mode: browser.ModeID, Value: "email", Index: 1, Uses: -1},
		},
	})
	return p
}

func TestFileStoreRoundTrip(t *testing.T) {
	s := NewFileStore(t.TempDir(), zaptest.NewLogger(t))
	want := samplePage()
	require.NoError(t, s.Save(want))

	assert.FileExists(t, filepath.Join(s.Dir(), "example.com", "login", "default.yml"))

	got, err := s.Load(want.Key())
	require.NoError(t, err)
	assert.Equal(t, want.Key(), got.Key())
	if diff := cmp.Diff(want, got, cmpopts.IgnoreUnexported(model.Page{})); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestFileStoreLoadMissing(t *testing.T) {
	s := NewFileStore(t.TempDir(), nil)
	_, err := s.Load(model.Key{Domain: "example.com", Path: "@", Variant: "default"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, model.ErrPageNotFound)
}

func TestFileStoreList(t *testing.T) {
	s := NewFileStore(t.TempDir(), nil)
	for _, key := range []model.Key{
		{Domain: "example.com", Path: "p/{id}", Variant: "default"},
		{Domain: "example.com", Path: "@", Variant: "default"},
		{Domain: "example.com", Path: "signup", Variant: "step_2"},
		{Domain: "other.com", Path: "@", Variant: "default"},
	} {
		require.NoError(t, s.Save(model.NewPage(key)))
	}

	pages, err := s.List("example.com")
	require.NoError(t, err)
	var keys []string
	for _, p := range pages {
		keys = append(keys, p.Key().String())
	}
	assert.Equal(t, []string{
		"example.com/@/default",
		"example.com/p/{id}/default",
		"example.com/signup/step_2",
	}, keys)

	pages, err = s.List("missing.com")
	require.NoError(t, err)
	assert.Empty(t, pages)

	domains, err := s.Domains()
	require.NoError(t, err)
	assert.Equal(t, []string{"example.com", "other.com"}, domains)
}

func TestFileStoreHandEdited(t *testing.T) {
	s := NewFileStore(t.TempDir(), nil)
	key := model.Key{Domain: "example.com", Path: "@", Variant: "default"}
	path := s.Path(key)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(`
actions:
  - verb: click
    name: sign_in
    locators:
      - mode: partial_text
        value: Sign
        uses: 2
`), 0o644))

	p, err := s.Load(key)
	require.NoError(t, err)
	require.Len(t, p.Actions, 1)
	assert.Equal(t, browser.ModePartialText, p.Actions[0].Locators[0].Mode)
	assert.Equal(t, 2, p.Actions[0].Locators[0].Uses)
	assert.Empty(t, p.Locators.Inclusions)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	p := samplePage()
	require.NoError(t, s.Save(p))
	assert.Equal(t, 1, s.Saves())

	got, err := s.Load(p.Key())
	require.NoError(t, err)
	assert.NotSame(t, p, got)
	got.Actions[1].Locators[0].Uses = 9

	again, err := s.Load(p.Key())
	require.NoError(t, err)
	assert.Equal(t, 6, again.Actions[1].Locators[0].Uses)

	_, err = s.Load(model.Key{Domain: "x", Path: "@", Variant: "default"})
	assert.ErrorIs(t, err, ErrNotFound)
}
