package transcriber

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

type Mode string

const (
	ModeLocal  Mode = "local"
	ModeRemote Mode = "remote"
)

type NetworkMetrics struct {
	DNS        time.Duration
	ConnWait   time.Duration
	TCP        time.Duration
	TLS        time.Duration
	ReqHeaders time.Duration
	ReqBody    time.Duration
	TTFB       time.Duration
	Download   time.Duration
	Total      time.Duration

	ConnReused  bool
	TLSProtocol string
	StatusCode  int
	RequestID   string
}

func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.TLS + m.ReqHeaders + m.ReqBody + m.TTFB + m.Download
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}

// Kind classifies a failed dispatch.
type Kind string

const (
	KindBackendUnavailable Kind = "backend_unavailable"
	KindNetwork            Kind = "network"
	KindAuth               Kind = "auth"
	KindServer             Kind = "server"
	KindEmpty              Kind = "empty_transcript"
)

type Error struct {
	Kind       Kind
	Message    string
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func newError(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf extracts the Kind of err, or "" when err is not a dispatch error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

type LocalConfig struct {
	Model    string
	Binary   string
	Language string
}

type RemoteConfig struct {
	URL     string
	Token   string
	Timeout time.Duration
}

// Request is one finalized clip plus a snapshot of the backend settings taken
// when it was built. It is never modified afterwards.
type Request struct {
	SessionID string
	Audio     []byte
	AudioS    float64
	EncodeMs  float64
	Mode      Mode
	Local     LocalConfig
	Remote    RemoteConfig
}

// LocalBackend runs inference in-process or on this machine.
// Available returns nil when the configured model can be used.
type LocalBackend interface {
	Name() string
	Available(cfg LocalConfig) error
	Transcribe(ctx context.Context, cfg LocalConfig, wav []byte) (string, error)
}

type RemoteBackend interface {
	Transcribe(ctx context.Context, cfg RemoteConfig, wav []byte) (string, *NetworkMetrics, error)
}
