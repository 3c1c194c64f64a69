//go:build gui

// Package overlay shows the recording indicator as a frameless, always on
// top desktop window.
package overlay

import (
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/driver/desktop"
	"github.com/go-gl/glfw/v3.3/glfw"

	view "murmur/widget"
)

type App struct {
	fyneApp fyne.App
	window  fyne.Window
	ind     *Indicator
	onReady func()

	mu       sync.Mutex
	cb       view.Callbacks
	onQuit   func()
	posX     int
	posY     int
	dragging bool
	shown    bool
}

// NewApp prepares the overlay. onReady runs on its own goroutine once the
// window exists.
func NewApp(onReady func()) *App {
	return &App{onReady: onReady}
}

// SetCallbacks wires the drag and tray actions. OnMove receives the position
// after a drag; onQuit runs when Quit is picked from the tray.
func (a *App) SetCallbacks(cb view.Callbacks, onQuit func()) {
	a.mu.Lock()
	a.cb = cb
	a.onQuit = onQuit
	a.mu.Unlock()
}

// Run blocks in the fyne event loop and must be called on the main thread.
func Run(a *App) error {
	a.fyneApp = app.NewWithID("io.murmur.overlay")
	a.fyneApp.Settings().SetTheme(&darkTheme{})

	if desk, ok := a.fyneApp.(desktop.App); ok {
		menu := fyne.NewMenu("murmur",
			fyne.NewMenuItem("Abort recording", func() {
				a.mu.Lock()
				abort := a.cb.OnAbort
				a.mu.Unlock()
				if abort != nil {
					abort()
				}
			}),
			fyne.NewMenuItemSeparator(),
			fyne.NewMenuItem("Quit", func() {
				a.mu.Lock()
				quit := a.onQuit
				a.mu.Unlock()
				if quit != nil {
					quit()
				}
				a.fyneApp.Quit()
			}),
		)
		desk.SetSystemTrayMenu(menu)
		desk.SetSystemTrayIcon(trayIcon())
	}

	if drv, ok := a.fyneApp.Driver().(desktop.Driver); ok {
		a.window = drv.CreateSplashWindow()
	} else {
		a.window = a.fyneApp.NewWindow("murmur")
	}

	a.ind = NewIndicator()
	a.ind.onDrag = a.drag
	a.ind.onDragEnd = a.dragEnd

	a.window.SetContent(a.ind)
	a.window.SetFixedSize(true)
	a.window.SetPadded(false)
	a.window.Resize(a.ind.MinSize())

	go a.onReady()

	a.fyneApp.Run()
	return nil
}

func (a *App) Quit() {
	if a.fyneApp != nil {
		fyne.Do(a.fyneApp.Quit)
	}
}

// Render implements widget.Renderer.
func (a *App) Render(s view.State) {
	fyne.Do(func() {
		if a.window == nil {
			return
		}
		a.ind.SetState(s)
		a.window.Resize(a.ind.MinSize())

		a.mu.Lock()
		if !a.dragging {
			a.posX, a.posY = s.X, s.Y
		}
		x, y := a.posX, a.posY
		a.mu.Unlock()

		if !s.Visible {
			a.hide()
			return
		}
		a.show(x, y)
	})
}

// show positions the window and raises it without taking focus.
func (a *App) show(x, y int) {
	if glfwWin := glfw.GetCurrentContext(); glfwWin != nil {
		glfwWin.SetPos(x, y)
		glfwWin.SetAttrib(glfw.FocusOnShow, glfw.False)
		glfwWin.SetAttrib(glfw.Floating, glfw.True)
		if !a.shown {
			glfwWin.Show()
		}
	} else if !a.shown {
		a.window.Show()
	}
	a.shown = true
}

func (a *App) hide() {
	if a.shown {
		a.window.Hide()
		a.shown = false
	}
}

func (a *App) drag(dx, dy float32) {
	a.mu.Lock()
	a.dragging = true
	a.posX = max(a.posX+int(dx), 0)
	a.posY = max(a.posY+int(dy), 0)
	x, y := a.posX, a.posY
	a.mu.Unlock()

	if glfwWin := glfw.GetCurrentContext(); glfwWin != nil {
		glfwWin.SetPos(x, y)
	}
}

func (a *App) dragEnd() {
	a.mu.Lock()
	moved := a.dragging
	a.dragging = false
	x, y := a.posX, a.posY
	onMove := a.cb.OnMove
	a.mu.Unlock()

	if moved && onMove != nil {
		go onMove(x, y)
	}
}
