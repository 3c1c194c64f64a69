//go:build gui

package main

import (
	"fmt"
	"os"
	"runtime"

	"murmur/overlay"
	"murmur/widget"
)

var guiApp *overlay.App

// initGUI takes the main thread for fyne and runs the pipeline once the
// window exists.
func initGUI() {
	guiMode = true

	runtime.LockOSThread()

	guiApp = overlay.NewApp(run)
	if err := overlay.Run(guiApp); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	gracefulShutdown()
}

func guiRenderer(cb widget.Callbacks, onQuit func()) widget.Renderer {
	guiApp.SetCallbacks(cb, onQuit)
	return guiApp
}

func guiQuit() { guiApp.Quit() }
