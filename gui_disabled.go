//go:build !gui

package main

import "murmur/widget"

func initGUI() {
	panic("murmur: built without GUI support (rebuild with -tags gui)")
}

// Never reached: guiMode is only set by initGUI.
func guiRenderer(widget.Callbacks, func()) widget.Renderer { return widget.Discard{} }

func guiQuit() {}
