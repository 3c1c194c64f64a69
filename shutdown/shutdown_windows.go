//go:build windows

package shutdown

import (
	"os"
	"os/signal"
)

func Notify(ch chan os.Signal) {
	signal.Notify(ch, os.Interrupt)
}

// NotifyReload is a no-op; the config watcher covers reloads on Windows.
func NotifyReload(chan os.Signal) {}
