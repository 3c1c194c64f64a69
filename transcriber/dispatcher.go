package transcriber

import (
	"context"
	"strings"
	"time"

	"murmur/log"
)

// Dispatcher sends each request to exactly one backend, chosen by the
// request's mode. It never falls back to the other backend and never retries.
type Dispatcher struct {
	local  LocalBackend
	remote RemoteBackend
}

func NewDispatcher(local LocalBackend, remote RemoteBackend) *Dispatcher {
	return &Dispatcher{local: local, remote: remote}
}

// Ready reports whether a request in mode would reach a usable backend.
func (d *Dispatcher) Ready(mode Mode, local LocalConfig, remote RemoteConfig) error {
	switch mode {
	case ModeLocal:
		if d.local == nil {
			return newError(KindBackendUnavailable, nil, "no local backend in this build")
		}
		if err := d.local.Available(local); err != nil {
			return newError(KindBackendUnavailable, err, "local model unavailable")
		}
		return nil
	case ModeRemote:
		if remote.URL == "" {
			return newError(KindBackendUnavailable, nil, "remote.url is not configured")
		}
		if remote.Token == "" {
			return newError(KindBackendUnavailable, nil, "remote token is not configured")
		}
		if d.remote == nil {
			return newError(KindBackendUnavailable, nil, "no remote backend")
		}
		return nil
	}
	return newError(KindBackendUnavailable, nil, "unknown mode %q", mode)
}

// Dispatch returns the trimmed transcript or an *Error.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	m := log.DispatchMetrics{
		SessionID: req.SessionID,
		Mode:      string(req.Mode),
		AudioS:    req.AudioS,
		PayloadKB: float64(len(req.Audio)) / 1024,
		EncodeMs:  req.EncodeMs,
	}

	text, err := d.dispatch(ctx, req, &m)
	if err == nil {
		text = strings.TrimSpace(text)
		if text == "" {
			err = newError(KindEmpty, nil, "no speech detected")
		}
	}
	if err != nil {
		if k := KindOf(err); k != "" {
			m.Kind = string(k)
		} else {
			m.Kind = string(KindNetwork)
			err = newError(KindNetwork, err, "transcription failed")
		}
		text = ""
	}
	m.TotalMs = float64(time.Since(start).Microseconds()) / 1000
	log.Dispatch(m)
	return text, err
}

func (d *Dispatcher) dispatch(ctx context.Context, req Request, m *log.DispatchMetrics) (string, error) {
	if err := d.Ready(req.Mode, req.Local, req.Remote); err != nil {
		return "", err
	}

	if req.Mode == ModeLocal {
		m.Backend = d.local.Name()
		text, err := d.local.Transcribe(ctx, req.Local, req.Audio)
		if err != nil && KindOf(err) == "" {
			err = newError(KindBackendUnavailable, err, "local inference failed")
		}
		return text, err
	}

	m.Backend = "http"
	text, nm, err := d.remote.Transcribe(ctx, req.Remote, req.Audio)
	if nm != nil {
		m.DNSTimeMs = ms(nm.DNS)
		m.TLSTimeMs = ms(nm.TLS)
		m.TTFBMs = ms(nm.TTFB)
		m.StatusCode = nm.StatusCode
		m.ConnReused = nm.ConnReused
		m.TLSProto = nm.TLSProtocol
		m.RequestID = nm.RequestID
	}
	return text, err
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
