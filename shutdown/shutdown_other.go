//go:build !windows

// Package shutdown maps OS signals onto the process lifecycle.
package shutdown

import (
	"os"
	"os/signal"
	"syscall"
)

func Notify(ch chan os.Signal) {
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
}

// NotifyReload delivers SIGHUP, which asks for the config file to be re-read.
func NotifyReload(ch chan os.Signal) {
	signal.Notify(ch, syscall.SIGHUP)
}
