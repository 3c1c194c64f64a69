//go:build linux

package hotkey

import "testing"

func pending(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestLinuxComboMatching(t *testing.T) {
	c, _ := ParseCombo("ctrl+shift+space")
	h := New(c).(*linuxHotkey)
	var mods modifiers
	var held bool

	// Space alone does nothing.
	h.handle(&mods, &held, keyCodes["space"], keyPress)
	h.handle(&mods, &held, keyCodes["space"], keyRelease)
	if pending(h.Keydown()) || pending(h.Keyup()) {
		t.Fatal("space without modifiers triggered the hotkey")
	}

	h.handle(&mods, &held, keyLCtrl, keyPress)
	h.handle(&mods, &held, keyRShift, keyPress)
	h.handle(&mods, &held, keyCodes["space"], keyPress)
	if !pending(h.Keydown()) {
		t.Fatal("expected keydown")
	}

	// Auto-repeat and an early modifier release must not end the press.
	h.handle(&mods, &held, keyCodes["space"], 2)
	h.handle(&mods, &held, keyLCtrl, keyRelease)
	if pending(h.Keyup()) || pending(h.Keydown()) {
		t.Fatal("unexpected event while key held")
	}

	h.handle(&mods, &held, keyCodes["space"], keyRelease)
	if !pending(h.Keyup()) {
		t.Fatal("expected keyup")
	}
}
