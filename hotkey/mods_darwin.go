//go:build darwin

package hotkey

import "golang.design/x/hotkey"

func xModifiers(c Combo) []hotkey.Modifier {
	var mods []hotkey.Modifier
	if c.Ctrl {
		mods = append(mods, hotkey.ModCtrl)
	}
	if c.Shift {
		mods = append(mods, hotkey.ModShift)
	}
	if c.Alt {
		mods = append(mods, hotkey.ModOption)
	}
	if c.Super {
		mods = append(mods, hotkey.ModCmd)
	}
	return mods
}
