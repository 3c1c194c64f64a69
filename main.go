package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"

	"murmur/audio"
	"murmur/beep"
	"murmur/config"
	"murmur/doctor"
	"murmur/health"
	"murmur/hotkey"
	"murmur/insert"
	"murmur/log"
	"murmur/notify"
	"murmur/recorder"
	"murmur/shutdown"
	"murmur/textproc"
	"murmur/transcriber"
	"murmur/widget"
)

var version = "dev"

var guiMode bool

// healthInterval is how often microphone and backend readiness are re-probed
// while idle.
const healthInterval = 10 * time.Second

var (
	shutdownOnce sync.Once
	cancelRun    context.CancelFunc = func() {}
)

func gracefulShutdown() {
	shutdownOnce.Do(func() {
		cancelRun()
	})
}

// initCrashLog routes runtime crash output to the log directory before any
// cgo code runs. The directory is resolved again once flags are parsed.
func initCrashLog() {
	dir, err := log.ResolveDir(logPathArg())
	if err != nil {
		return
	}
	log.SetDir(dir)
	if err := log.EnsureDir(); err != nil {
		return
	}
	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(crashFile, debug.CrashOptions{})
}

// logPathArg scans the raw arguments for -logpath, ahead of flag.Parse.
func logPathArg() string {
	args := os.Args[1:]
	for i, a := range args {
		a = strings.TrimLeft(a, "-")
		if a == "logpath" && i+1 < len(args) {
			return args[i+1]
		}
		if v, ok := strings.CutPrefix(a, "logpath="); ok {
			return v
		}
	}
	return ""
}

// wantsGUI reports whether the overlay was requested. It runs before
// flag.Parse because fyne has to own the main thread from the start.
func wantsGUI() bool {
	for _, a := range os.Args[1:] {
		switch strings.TrimLeft(a, "-") {
		case "gui", "gui=true":
			return true
		}
	}
	return false
}

func run() {
	configFlag := flag.String("config", "", "config file (default: $MURMUR_CONFIG or the user config dir)")
	envFlag := flag.String("env", "", "extra .env file to load")
	setupFlag := flag.Bool("setup", false, "Select microphone device for this run")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	setTokenFlag := flag.Bool("set-token", false, "Read the remote token from stdin, store it in the keyring and exit")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	profileFlag := flag.String("profile", "", "Enable pprof profiling server (e.g., :6060 or localhost:6060)")
	testFlag := flag.Bool("test", false, "Test mode (headless, stdin-driven)")
	flag.Bool("gui", false, "Show the widget as a desktop overlay (requires -tags gui)")
	flag.Parse()

	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	if *profileFlag != "" {
		go func() {
			fmt.Fprintf(os.Stderr, "pprof server listening on http://%s/debug/pprof/\n", *profileFlag)
			if err := http.ListenAndServe(*profileFlag, nil); err != nil {
				fmt.Fprintf(os.Stderr, "pprof server error: %v\n", err)
			}
		}()
	}

	if *versionFlag {
		fmt.Printf("murmur %s\n", version)
		os.Exit(0)
	}

	if *setTokenFlag {
		os.Exit(setToken())
	}

	// -setup and -device override audio.device for this run only
	if *setupFlag && *deviceFlag == "" && !*testFlag {
		if name := pickDevice(); name != "" {
			*deviceFlag = name
		}
	}
	if *deviceFlag != "" {
		os.Setenv(config.EnvPrefix+"_AUDIO_DEVICE", *deviceFlag)
	}

	store, err := config.Load(config.Options{ConfigFile: *configFlag, EnvFile: *envFlag})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg := store.Snapshot()

	remote := transcriber.NewRemote()
	dispatcher := transcriber.NewDispatcher(
		transcriber.NewLocal(filepath.Join(filepath.Dir(store.Path()), "models")),
		remote,
	)

	if *doctorFlag {
		os.Exit(doctor.Run(cfg, dispatcher))
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()
	log.Infof("murmur %s starting, config %s, mode %s", version, store.Path(), cfg.Mode)

	if *testFlag {
		args := flag.Args()
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "Usage: murmur -test <wav-file>")
			os.Exit(1)
		}
		code := runTestMode(args[0], store, dispatcher)
		log.Close()
		os.Exit(code)
	}

	combo, err := hotkey.ParseCombo(cfg.Hotkey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	actx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing audio context: %v\n", err)
		os.Exit(1)
	}
	defer actx.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cancelRun = cancel

	monitor := health.NewMonitor(micProbe(actx, store), backendProbe(dispatcher, store))
	monitor.Refresh()

	cues := beep.New(cfg.Cues.Enabled, cfg.Cues.Dir)
	notifier := notify.NewDesktop("")
	inserter := insert.NewPipeline(insert.System{}, insert.SystemClipboard{}, notifier)
	inserter.SetTypeDelay(cfg.Insert.TypeDelay)
	if err := (insert.System{}).Ready(); err != nil {
		log.Warnf("keystroke injection unavailable, transcripts will go to the clipboard: %v", err)
	}
	text := textproc.New(cfg.Text.Keywords)

	var presenter *widget.Presenter
	ctrl := recorder.New(recorder.Deps{
		Audio:      actx,
		Config:     store,
		Health:     monitor,
		Cue:        cues,
		Dispatcher: dispatcher,
		Inserter:   inserter,
		Notifier:   notifier,
		Text:       text,
		Observe: func(s recorder.Snapshot) {
			if presenter != nil {
				presenter.Publish(s)
			}
		},
	})

	callbacks := widget.Callbacks{
		OnMove: func(x, y int) {
			if err := store.SaveWidgetPosition(x, y); err != nil {
				log.Warnf("save widget position: %v", err)
			}
			presenter.Refresh()
		},
		OnAbort: ctrl.Abort,
	}

	var (
		renderer widget.Renderer = widget.Discard{}
		tui      *widget.TUI
	)
	switch {
	case guiMode:
		renderer = guiRenderer(callbacks, gracefulShutdown)
	case cfg.Widget.Renderer == "tui":
		tui = widget.NewTUI(combo.String(), callbacks)
		renderer = tui
	case cfg.Widget.Renderer == "overlay":
		log.Warn("widget.renderer is overlay but -gui was not given, running without a widget")
	}
	presenter = widget.NewPresenter(monitor, store, renderer)

	store.OnChange(func(old, cur config.Config) {
		log.Info("config reloaded")
		if cur.NeedsAbort(old) {
			ctrl.Abort()
		}
		cues.Configure(cur.Cues.Enabled, cur.Cues.Dir)
		inserter.SetTypeDelay(cur.Insert.TypeDelay)
		text.SetKeywords(cur.Text.Keywords)
		if cur.Hotkey != old.Hotkey {
			log.Warn("hotkey changes take effect after a restart")
		}
		monitor.Refresh()
		presenter.Refresh()
	})
	store.Watch(func(err error) {
		log.Warnf("config reload rejected: %v", err)
	})

	hk := hotkey.New(combo)
	if err := hk.Register(); err != nil {
		log.Errorf("hotkey register error: %v", err)
		fmt.Fprintf(os.Stderr, "Error registering hotkey: %v\n", err)
		os.Exit(1)
	}
	defer hk.Unregister()

	if cfg.Mode == config.ModeRemote && cfg.Remote.URL != "" {
		go func() {
			d := remote.Warm(cfg.Remote.URL)
			log.Infof("remote connection warmed in %s", d)
		}()
	}

	var wg sync.WaitGroup
	wg.Add(4)
	go func() { defer wg.Done(); ctrl.Run(ctx) }()
	go func() { defer wg.Done(); presenter.Run(ctx) }()
	go func() { defer wg.Done(); hotkey.Forward(ctx, hk, ctrl) }()
	go func() { defer wg.Done(); watchHealth(ctx, monitor, ctrl) }()

	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	reloadChan := make(chan os.Signal, 1)
	shutdown.NotifyReload(reloadChan)
	go func() {
		for {
			select {
			case <-reloadChan:
				if err := store.Reload(); err != nil {
					log.Warnf("config reload rejected: %v", err)
				}
			case <-sigChan:
				gracefulShutdown()
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	if tui != nil {
		go func() {
			<-ctx.Done()
			tui.Quit()
		}()
		if err := tui.Run(); err != nil {
			log.Errorf("TUI error: %v", err)
		}
		gracefulShutdown()
	}

	<-ctx.Done()
	wg.Wait()
	log.Info("shutdown complete")
	if guiMode {
		guiQuit()
	}
}

// watchHealth re-probes readiness periodically. The microphone is left alone
// while a session holds it.
func watchHealth(ctx context.Context, m *health.Monitor, ctrl *recorder.Controller) {
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctrl.Snapshot().State.Busy() {
				continue
			}
			m.Refresh()
		}
	}
}

func micProbe(actx audio.Context, cfg config.Source) health.Probe {
	return func() error {
		dev, err := audio.FindDevice(actx, cfg.Snapshot().Audio.Device)
		if err != nil {
			return err
		}
		return audio.Probe(actx, dev)
	}
}

func backendProbe(d *transcriber.Dispatcher, src config.Source) health.Probe {
	return func() error {
		cfg := src.Snapshot()
		return d.Ready(transcriber.Mode(cfg.Mode),
			transcriber.LocalConfig{Model: cfg.Local.Model, Binary: cfg.Local.Binary, Language: cfg.Local.Language},
			transcriber.RemoteConfig{URL: cfg.Remote.URL, Token: cfg.Remote.Token, Timeout: cfg.Remote.Timeout},
		)
	}
}

func pickDevice() string {
	actx, err := audio.NewContext()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing audio: %v\n", err)
		os.Exit(1)
	}
	defer actx.Close()

	dev, err := audio.SelectDevice(actx, "")
	if err != nil {
		if !errors.Is(err, audio.ErrSelectionCancelled) {
			fmt.Printf("Warning: device selection failed: %v\n", err)
		}
		fmt.Println("Falling back to the configured device")
		return ""
	}
	return dev.Name
}

func setToken() int {
	fmt.Fprint(os.Stderr, "Remote token (empty to clear): ")
	var token string
	if term.IsTerminal(int(os.Stdin.Fd())) {
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		token = string(b)
	} else {
		fmt.Scanln(&token)
	}
	if err := config.SetToken(strings.TrimSpace(token)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintln(os.Stderr, "Token saved.")
	return 0
}
