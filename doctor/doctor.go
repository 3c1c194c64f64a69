// Package doctor walks the user through the hardware and backend checks a
// dictation session depends on.
package doctor

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"murmur/audio"
	"murmur/clipboard"
	"murmur/config"
	"murmur/encoder"
	"murmur/hotkey"
	"murmur/transcriber"
)

const recordFor = 3 * time.Second

// Run executes interactive diagnostic checks and returns an exit code (0=all pass, 1=any fail).
func Run(cfg config.Config, d *transcriber.Dispatcher) int {
	resetTerminal()
	setupInterruptHandler()

	fmt.Println("murmur doctor - interactive system diagnostics")
	fmt.Println("==============================================")

	allPass := checkHotkey(cfg.Hotkey)
	if !checkBackend(cfg, d) {
		allPass = false
	}
	if allPass && !checkMicAndTranscription(cfg, d) {
		allPass = false
	}
	if !checkInjection() {
		allPass = false
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
		return 0
	}
	fmt.Println("Some checks failed. See details above.")
	return 1
}

func checkHotkey(combo string) bool {
	fmt.Println()
	fmt.Println("[1/4] Hotkey detection")

	c, err := hotkey.ParseCombo(combo)
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	if msg, err := hotkey.Diagnose(); err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	} else if msg != "" {
		fmt.Printf("  %s\n", msg)
	}

	fmt.Printf("Press %s...\n", c)
	hk := hotkey.New(c)
	if err := hk.Register(); err != nil {
		fmt.Printf("  FAIL: could not register hotkey: %v\n", err)
		return false
	}
	defer hk.Unregister()

	select {
	case <-hk.Keydown():
		fmt.Println("  PASS: hotkey detected")
		// wait for the release so it does not leak into the next step
		select {
		case <-hk.Keyup():
		case <-time.After(5 * time.Second):
		}
		resetTerminal()
		return true
	case <-time.After(10 * time.Second):
		fmt.Println("  FAIL: timeout waiting for hotkey")
		return false
	}
}

func checkBackend(cfg config.Config, d *transcriber.Dispatcher) bool {
	fmt.Println()
	fmt.Printf("[2/4] Transcription backend (%s)\n", cfg.Mode)

	if err := d.Ready(transcriber.Mode(cfg.Mode), localConfig(cfg), remoteConfig(cfg)); err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		if cfg.Mode == config.ModeRemote {
			fmt.Println("  Set remote.url in the config file and store a token with -set-token")
		} else {
			fmt.Println("  Install whisper-cli and download a ggml model into the models directory")
		}
		return false
	}
	fmt.Println("  PASS: backend ready")
	return true
}

func checkMicAndTranscription(cfg config.Config, d *transcriber.Dispatcher) bool {
	fmt.Println()
	fmt.Println("[3/4] Microphone and transcription")

	actx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("  FAIL: cannot connect to audio: %v\n", err)
		return false
	}
	defer actx.Close()

	dev, err := audio.FindDevice(actx, cfg.Audio.Device)
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	fmt.Printf("Using device: %s\n", dev.Name)

	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("Press Enter and speak for %d seconds...", int(recordFor.Seconds()))
	reader.ReadString('\n')

	buf, err := audio.Open(actx, dev, audio.CaptureConfig{
		SampleRate: uint32(cfg.Audio.SampleRate),
		Channels:   uint32(cfg.Audio.Channels),
	})
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}

	fmt.Print("  Recording")
	ticker := time.NewTicker(500 * time.Millisecond)
	deadline := time.After(recordFor)
loop:
	for {
		select {
		case <-ticker.C:
			fmt.Print(".")
		case <-deadline:
			break loop
		}
	}
	ticker.Stop()
	samples := buf.Close()
	fmt.Println(" done")

	if len(samples) == 0 {
		fmt.Println("  FAIL: no audio captured")
		return false
	}
	if rms := audio.RMS(samples); rms < 1e-4 {
		fmt.Printf("  WARN: input is nearly silent (rms %.5f)\n", rms)
	}

	wav, err := encoder.EncodeWAV(samples, buf.SampleRate(), buf.Channels())
	if err != nil {
		fmt.Printf("  FAIL: encode: %v\n", err)
		return false
	}
	fmt.Printf("  Recorded %.1f KB, transcribing...\n", float64(len(wav))/1024)

	text, err := d.Dispatch(context.Background(), transcriber.Request{
		SessionID: "doctor",
		Audio:     wav,
		AudioS:    buf.Duration().Seconds(),
		Mode:      transcriber.Mode(cfg.Mode),
		Local:     localConfig(cfg),
		Remote:    remoteConfig(cfg),
	})
	if err != nil {
		fmt.Printf("  FAIL: transcription error: %v\n", err)
		return false
	}

	fmt.Printf("\n  Transcribed text: %s\n\n", text)

	// fresh reader to drop anything typed during recording
	confirmReader := bufio.NewReader(os.Stdin)
	fmt.Print("Is this correct? [y/n]: ")
	confirm, _ := confirmReader.ReadString('\n')
	confirm = strings.TrimSpace(strings.ToLower(confirm))

	if confirm == "y" || confirm == "yes" {
		fmt.Println("  PASS: transcription verified by user")
		return true
	}
	fmt.Println("  FAIL: transcription not confirmed")
	return false
}

func checkInjection() bool {
	fmt.Println()
	fmt.Println("[4/4] Keystroke output")

	msg, err := clipboard.Verify()
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		fmt.Println("  On Linux fix with: sudo chmod 660 /dev/uinput && sudo chgrp input /dev/uinput")
		return false
	}
	fmt.Printf("  PASS: %s\n", msg)
	return true
}

func localConfig(cfg config.Config) transcriber.LocalConfig {
	return transcriber.LocalConfig{Model: cfg.Local.Model, Binary: cfg.Local.Binary, Language: cfg.Local.Language}
}

func remoteConfig(cfg config.Config) transcriber.RemoteConfig {
	return transcriber.RemoteConfig{URL: cfg.Remote.URL, Token: cfg.Remote.Token, Timeout: cfg.Remote.Timeout}
}
