package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeys(t *testing.T) {
	k, err := ParseKeys("tab")
	require.NoError(t, err)
	assert.Equal(t, Keys{Key: "tab"}, k)

	k, err = ParseKeys("shift_tab")
	require.NoError(t, err)
	assert.Equal(t, Keys{Modifier: "shift", Key: "tab"}, k)
	assert.Equal(t, "shift+tab", k.String())

	k, err = ParseKeys("F5")
	require.NoError(t, err)
	assert.Equal(t, Key("f5"), k.Key)
}

func TestParseKeysErrors(t *testing.T) {
	_, err := ParseKeys("shift_control_tab")
	assert.ErrorIs(t, err, ErrTooManyModifiers)

	_, err = ParseKeys("hyper")
	assert.ErrorIs(t, err, ErrUnknownKey)

	_, err = ParseKeys("tab_enter")
	assert.ErrorIs(t, err, ErrUnknownKey)
}

func TestKeyTables(t *testing.T) {
	for name := range keyNames {
		_, ok := rodKeys[name]
		assert.True(t, ok, "rod has no mapping for %s", name)
		assert.NotEmpty(t, playwrightKey(name))
	}
	assert.Equal(t, "F12", playwrightKey("f12"))
	assert.Equal(t, "ArrowLeft", playwrightKey("left"))
}
