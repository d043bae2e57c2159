package browser

import (
	"fmt"
	"strings"
)

// Key is a lowercase keyboard key name as used in "type" action names.
type Key string

var keyNames = map[Key]bool{
	"backspace": false, "tab": false, "enter": false, "return": false,
	"escape": false, "space": false, "end": false, "home": false,
	"left": false, "up": false, "right": false, "down": false,
	"insert": false, "delete": false,
	"f1": false, "f2": false, "f3": false, "f4": false, "f5": false, "f6": false,
	"f7": false, "f8": false, "f9": false, "f10": false, "f11": false, "f12": false,
	// modifiers
	"shift": true, "control": true, "alt": true, "meta": true, "command": true,
}

// IsKey reports whether name is a known key.
func IsKey(name string) bool {
	_, ok := keyNames[Key(strings.ToLower(name))]
	return ok
}

// IsModifier reports whether name is a known modifier key.
func IsModifier(name string) bool {
	return keyNames[Key(strings.ToLower(name))]
}

// Keys is a key press with at most one held modifier.
type Keys struct {
	Modifier Key
	Key      Key
}

func (k Keys) String() string {
	if k.Modifier == "" {
		return string(k.Key)
	}
	return string(k.Modifier) + "+" + string(k.Key)
}

// ParseKeys decodes a "type" action name: "tab" or "shift_tab".
func ParseKeys(name string) (Keys, error) {
	parts := strings.Split(strings.ToLower(name), "_")
	for _, p := range parts {
		if !IsKey(p) {
			return Keys{}, fmt.Errorf("%w: %q", ErrUnknownKey, p)
		}
	}
	switch len(parts) {
	case 1:
		return Keys{Key: Key(parts[0])}, nil
	case 2:
		if !IsModifier(parts[0]) {
			return Keys{}, fmt.Errorf("%w: %q is not a modifier", ErrUnknownKey, parts[0])
		}
		return Keys{Modifier: Key(parts[0]), Key: Key(parts[1])}, nil
	}
	return Keys{}, fmt.Errorf("%w: %q", ErrTooManyModifiers, name)
}
