package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

const (
	DefaultTimeout = 30 * time.Second

	audioField    = "audio"
	audioFilename = "audio.wav"
	audioMIME     = "audio/wav"
)

// Remote posts the clip to a user-configured HTTP endpoint.
type Remote struct {
	client *TracedClient
}

func NewRemote() *Remote {
	return &Remote{client: NewTracedClient()}
}

func (r *Remote) Warm(url string) time.Duration { return r.client.Warm(url) }

// Ready reports whether cfg has everything a request needs.
func (r *Remote) Ready(cfg RemoteConfig) error {
	if cfg.URL == "" {
		return newError(KindBackendUnavailable, nil, "remote.url is not configured")
	}
	if cfg.Token == "" {
		return newError(KindBackendUnavailable, nil, "remote token is not configured (murmur -set-token)")
	}
	return nil
}

func (r *Remote) Transcribe(ctx context.Context, cfg RemoteConfig, wav []byte) (string, *NetworkMetrics, error) {
	if err := r.Ready(cfg); err != nil {
		return "", nil, err
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, audioField, audioFilename))
	h.Set("Content-Type", audioMIME)
	part, err := writer.CreatePart(h)
	if err != nil {
		return "", nil, err
	}
	if _, err := part.Write(wav); err != nil {
		return "", nil, err
	}
	if err := writer.Close(); err != nil {
		return "", nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, &body)
	if err != nil {
		return "", nil, newError(KindBackendUnavailable, err, "invalid remote.url")
	}
	req.Header.Set("Authorization", "Bearer "+cfg.Token)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := r.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", nil, newError(KindNetwork, err, "no response within %s", timeout)
		}
		return "", nil, newError(KindNetwork, err, "request failed")
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		e := newError(KindAuth, nil, "server rejected the token (HTTP %d)", resp.StatusCode)
		e.StatusCode = resp.StatusCode
		return "", resp.Metrics, e
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		e := newError(KindServer, nil, "HTTP %d: %s", resp.StatusCode, snippet(resp.Body))
		e.StatusCode = resp.StatusCode
		return "", resp.Metrics, e
	}

	text := parseTranscript(resp.Body)
	if text == "" {
		return "", resp.Metrics, newError(KindEmpty, nil, "no speech detected")
	}
	return text, resp.Metrics, nil
}

// parseTranscript accepts a JSON object carrying text, transcription or
// message (first non-empty wins), a bare JSON string, or plain text.
func parseTranscript(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}
	switch trimmed[0] {
	case '{':
		var obj struct {
			Text          string `json:"text"`
			Transcription string `json:"transcription"`
			Message       string `json:"message"`
		}
		if err := json.Unmarshal(trimmed, &obj); err == nil {
			for _, s := range []string{obj.Text, obj.Transcription, obj.Message} {
				if s = strings.TrimSpace(s); s != "" {
					return s
				}
			}
			return ""
		}
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return strings.TrimSpace(s)
		}
	}
	return string(trimmed)
}

func snippet(body []byte) string {
	const max = 200
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
