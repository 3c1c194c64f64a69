package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"murmur/audio"
	"murmur/beep"
	"murmur/config"
	"murmur/health"
	"murmur/hotkey"
	"murmur/insert"
	"murmur/log"
	"murmur/notify"
	"murmur/recorder"
	"murmur/transcriber"
)

const waitTimeout = 60 * time.Second

// stdoutInjector prints what would have been typed.
type stdoutInjector struct {
	mu *sync.Mutex
}

func (stdoutInjector) Ready() error { return nil }

func (s stdoutInjector) Type(text string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(os.Stdout, "INSERT %s\n", text)
	return err
}

// runTestMode replays wavPath as the microphone and drives the hotkey from
// stdin, one command per line: KEYDOWN, KEYUP, ABORT, WAIT, WAIT_AUDIO_DONE,
// SLEEP <ms>, QUIT. Insertions, notifications and settled states go to stdout.
func runTestMode(wavPath string, store *config.Store, dispatcher *transcriber.Dispatcher) int {
	beep.Disable()

	fakeCtx, err := audio.NewFakeContext(wavPath, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading WAV: %v\n", err)
		return 1
	}

	var outMu sync.Mutex
	notifier := &notify.Writer{W: os.Stdout}
	monitor := health.NewMonitor(micProbe(fakeCtx, store), backendProbe(dispatcher, store))
	monitor.Refresh()

	// settled receives the label of every Idle or Error reached from a busy state
	settled := make(chan string, 16)
	var prev recorder.State
	ctrl := recorder.New(recorder.Deps{
		Audio:      fakeCtx,
		Config:     store,
		Health:     monitor,
		Cue:        beep.New(false, ""),
		Dispatcher: dispatcher,
		Inserter:   insert.NewPipeline(stdoutInjector{mu: &outMu}, &insert.FakeClipboard{}, notifier),
		Notifier:   notifier,
		Observe: func(s recorder.Snapshot) {
			if prev != s.State && (s.State == recorder.Idle || s.State == recorder.Error) && prev != recorder.Error {
				select {
				case settled <- s.Label():
				default:
				}
			}
			prev = s.State
		},
	})

	ctx, cancel := context.WithCancel(context.Background())

	hk := hotkey.NewFake()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); ctrl.Run(ctx) }()
	go func() { defer wg.Done(); hotkey.Forward(ctx, hk, ctrl) }()
	defer func() {
		cancel()
		wg.Wait()
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		cmd := strings.TrimSpace(scanner.Text())
		switch cmd {
		case "":
		case "KEYDOWN":
			hk.SimKeydown()
		case "KEYUP":
			hk.SimKeyup()
		case "ABORT":
			ctrl.Abort()
		case "WAIT":
			select {
			case label := <-settled:
				outMu.Lock()
				fmt.Printf("STATE %s\n", label)
				outMu.Unlock()
			case <-time.After(waitTimeout):
				log.Error("test mode: timed out waiting for the session to settle")
				return 1
			}
		case "WAIT_AUDIO_DONE":
			<-fakeCtx.AudioDone()
		case "QUIT":
			return 0
		default:
			if ms, ok := strings.CutPrefix(cmd, "SLEEP "); ok {
				if n, err := strconv.Atoi(ms); err == nil {
					time.Sleep(time.Duration(n) * time.Millisecond)
				}
				continue
			}
			fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		}
	}
	return 0
}
