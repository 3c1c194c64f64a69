package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

const DiagnosticsFile = "diagnostics_log.txt"

var (
	diagLog  zerolog.Logger
	diagFile *os.File
	logMu    sync.Mutex
	logReady atomic.Bool
	pid      int
	dir      string
)

// DispatchMetrics describes one transcription attempt. Transcript text is never logged.
type DispatchMetrics struct {
	SessionID  string
	Mode       string
	Backend    string
	Kind       string
	AudioS     float64
	PayloadKB  float64
	EncodeMs   float64
	DNSTimeMs  float64
	TLSTimeMs  float64
	TTFBMs     float64
	TotalMs    float64
	StatusCode int
	ConnReused bool
	TLSProto   string
	RequestID  string
}

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		return absolute(flagPath)
	}

	// Priority 2: MURMUR_LOG_PATH environment variable
	if envPath := os.Getenv("MURMUR_LOG_PATH"); envPath != "" {
		return absolute(envPath)
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func absolute(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	f, err := os.OpenFile(filepath.Join(dir, DiagnosticsFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	diagFile = f

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady.Store(true)
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	logReady.Store(false)
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
}

func Info(msg string) {
	if logReady.Load() {
		diagLog.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if logReady.Load() {
		diagLog.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if logReady.Load() {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady.Load() {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady.Load() {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady.Load() {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func SessionStart(id, mode, device string) {
	if !logReady.Load() {
		return
	}
	diagLog.Info().
		Str("session", id).
		Str("mode", mode).
		Str("device", device).
		Msg("session_start")
}

// SessionEnd records how a capture session finished: dispatched, short, aborted or failed.
func SessionEnd(id, outcome string, audioS float64) {
	if !logReady.Load() {
		return
	}
	diagLog.Info().
		Str("session", id).
		Str("outcome", outcome).
		Float64("audio_s", audioS).
		Msg("session_end")
}

func Transition(id, from, to string) {
	if !logReady.Load() {
		return
	}
	diagLog.Debug().
		Str("session", id).
		Str("from", from).
		Str("to", to).
		Msg("transition")
}

func Dispatch(m DispatchMetrics) {
	if !logReady.Load() {
		return
	}

	connStatus := "new"
	if m.ConnReused {
		connStatus = "reused"
	}

	ev := diagLog.Info()
	if m.Kind != "" {
		ev = diagLog.Warn().Str("kind", m.Kind)
	}
	ev = ev.Str("session", m.SessionID).
		Str("mode", m.Mode).
		Str("backend", m.Backend)
	if m.Mode == "remote" {
		ev = ev.Str("conn", connStatus).Int("status", m.StatusCode)
		if m.TLSProto != "" {
			ev = ev.Str("tls_proto", m.TLSProto)
		}
		if m.RequestID != "" && m.RequestID != "?" {
			ev = ev.Str("request_id", m.RequestID)
		}
		ev = ev.Float64("dns_ms", m.DNSTimeMs).
			Float64("tls_ms", m.TLSTimeMs).
			Float64("ttfb_ms", m.TTFBMs)
	}
	ev.Float64("audio_s", m.AudioS).
		Float64("payload_kb", m.PayloadKB).
		Float64("encode_ms", m.EncodeMs).
		Float64("total_ms", m.TotalMs).
		Msg("dispatch")
}

func Insertion(id, outcome string, chars int) {
	if !logReady.Load() {
		return
	}
	diagLog.Info().
		Str("session", id).
		Str("outcome", outcome).
		Int("chars", chars).
		Msg("insertion")
}
