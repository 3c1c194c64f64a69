//go:build linux

package main

func main() {
	initCrashLog()

	if wantsGUI() {
		initGUI()
		return
	}
	run()
}
