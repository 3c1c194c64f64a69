package hotkey

import (
	"context"
	"fmt"
	"strings"
)

type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}

const DefaultCombo = "ctrl+space"

// Combo is a parsed key combination such as "ctrl+shift+space".
type Combo struct {
	Ctrl  bool
	Shift bool
	Alt   bool
	Super bool
	Key   string
}

// ParseCombo accepts modifier names joined with '+' followed by exactly one key.
func ParseCombo(s string) (Combo, error) {
	var c Combo
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "+")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return Combo{}, fmt.Errorf("hotkey %q: empty component", s)
		}
		last := i == len(parts)-1
		switch p {
		case "ctrl", "control":
			c.Ctrl = true
		case "shift":
			c.Shift = true
		case "alt", "option":
			c.Alt = true
		case "super", "cmd", "win", "meta":
			c.Super = true
		default:
			if !last {
				return Combo{}, fmt.Errorf("hotkey %q: %q is not a modifier", s, p)
			}
			if !knownKey(p) {
				return Combo{}, fmt.Errorf("hotkey %q: unknown key %q", s, p)
			}
			c.Key = p
		}
	}
	if c.Key == "" {
		return Combo{}, fmt.Errorf("hotkey %q: missing key", s)
	}
	return c, nil
}

func (c Combo) String() string {
	var parts []string
	if c.Ctrl {
		parts = append(parts, "ctrl")
	}
	if c.Shift {
		parts = append(parts, "shift")
	}
	if c.Alt {
		parts = append(parts, "alt")
	}
	if c.Super {
		parts = append(parts, "super")
	}
	return strings.Join(append(parts, c.Key), "+")
}

var namedKeys = map[string]bool{
	"space": true, "tab": true, "enter": true, "escape": true,
	"f1": true, "f2": true, "f3": true, "f4": true, "f5": true, "f6": true,
	"f7": true, "f8": true, "f9": true, "f10": true, "f11": true, "f12": true,
}

func knownKey(k string) bool {
	if len(k) == 1 {
		return (k[0] >= 'a' && k[0] <= 'z') || (k[0] >= '0' && k[0] <= '9')
	}
	return namedKeys[k]
}

// Sink receives press and release events. Implementations must not block.
type Sink interface {
	HotkeyDown()
	HotkeyUp()
}

// Forward relays hk events to sink until ctx is done. While the key is up a
// pending press wins over a pending release, and the reverse while it is held,
// so a quick tap is never delivered as release-then-press.
func Forward(ctx context.Context, hk Hotkey, sink Sink) {
	held := false
	for {
		first, second := hk.Keydown(), hk.Keyup()
		if held {
			first, second = second, first
		}
		var gotFirst bool
		select {
		case <-first:
			gotFirst = true
		default:
			select {
			case <-ctx.Done():
				return
			case <-first:
				gotFirst = true
			case <-second:
			}
		}
		pressed := gotFirst != held
		if pressed {
			sink.HotkeyDown()
		} else {
			sink.HotkeyUp()
		}
		held = pressed
	}
}
