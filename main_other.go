//go:build !linux

package main

import (
	"runtime"

	"golang.design/x/hotkey/mainthread"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	initCrashLog()

	// the overlay runs run() itself once fyne owns the main thread
	if wantsGUI() {
		initGUI()
		return
	}
	mainthread.Init(run)
}
