package transcriber

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"murmur/encoder"
)

func TestNetworkMetricsSum(t *testing.T) {
	m := &NetworkMetrics{
		ConnWait:   10 * time.Millisecond,
		DNS:        20 * time.Millisecond,
		TCP:        30 * time.Millisecond,
		TLS:        40 * time.Millisecond,
		ReqHeaders: 5 * time.Millisecond,
		ReqBody:    15 * time.Millisecond,
		TTFB:       50 * time.Millisecond,
		Download:   25 * time.Millisecond,
	}
	got := m.Sum()
	want := 195 * time.Millisecond
	if got != want {
		t.Errorf("Sum() = %v, want %v", got, want)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	h := http.Header{}
	h.Set("X-Request-Id", "abc")

	if got := firstNonEmpty(h, "X-Missing", "X-Request-Id"); got != "abc" {
		t.Errorf("got %q, want %q", got, "abc")
	}
	if got := firstNonEmpty(h, "X-A", "X-B"); got != "?" {
		t.Errorf("got %q, want %q", got, "?")
	}
}

func testWAV(t *testing.T) []byte {
	t.Helper()
	wav, err := encoder.EncodeWAV(make([]int16, 16000), 16000, 1)
	if err != nil {
		t.Fatal(err)
	}
	return wav
}

func remoteRequest(url string, wav []byte) Request {
	return Request{
		SessionID: "s1",
		Audio:     wav,
		AudioS:    1,
		Mode:      ModeRemote,
		Remote:    RemoteConfig{URL: url, Token: "secret", Timeout: 2 * time.Second},
	}
}

func TestRemoteRequestShape(t *testing.T) {
	wav := testWAV(t)
	var gotAuth, gotFilename, gotType string
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		f, hdr, err := r.FormFile("audio")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		gotFilename = hdr.Filename
		gotType = hdr.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(f)
		w.Write([]byte(`{"text":"hello world"}`))
	}))
	defer srv.Close()

	d := NewDispatcher(&FakeLocal{}, NewRemote())
	text, err := d.Dispatch(context.Background(), remoteRequest(srv.URL, wav))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if text != "hello world" {
		t.Errorf("text = %q", text)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotFilename != "audio.wav" || gotType != "audio/wav" {
		t.Errorf("part = %q %q", gotFilename, gotType)
	}
	if string(gotBody) != string(wav) {
		t.Errorf("uploaded %d bytes, want %d", len(gotBody), len(wav))
	}
}

func TestRemoteStatusMapping(t *testing.T) {
	for _, tt := range []struct {
		status int
		want   Kind
	}{
		{http.StatusUnauthorized, KindAuth},
		{http.StatusForbidden, KindAuth},
		{http.StatusInternalServerError, KindServer},
		{http.StatusBadGateway, KindServer},
		{http.StatusNotFound, KindServer},
	} {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"text":"ignored"}`))
			}))
			defer srv.Close()

			d := NewDispatcher(nil, NewRemote())
			text, err := d.Dispatch(context.Background(), remoteRequest(srv.URL, testWAV(t)))
			if text != "" {
				t.Errorf("text = %q, want empty", text)
			}
			if got := KindOf(err); got != tt.want {
				t.Errorf("kind = %q, want %q (err=%v)", got, tt.want, err)
			}
			var de *Error
			if errors.As(err, &de) && de.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", de.StatusCode, tt.status)
			}
		})
	}
}

func TestRemoteNetworkErrors(t *testing.T) {
	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		d := NewDispatcher(nil, NewRemote())
		_, err := d.Dispatch(context.Background(), remoteRequest(url, testWAV(t)))
		if KindOf(err) != KindNetwork {
			t.Errorf("kind = %q, want network (err=%v)", KindOf(err), err)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(release)

		req := remoteRequest(srv.URL, testWAV(t))
		req.Remote.Timeout = 50 * time.Millisecond
		d := NewDispatcher(nil, NewRemote())
		start := time.Now()
		_, err := d.Dispatch(context.Background(), req)
		if KindOf(err) != KindNetwork {
			t.Errorf("kind = %q, want network (err=%v)", KindOf(err), err)
		}
		if time.Since(start) > time.Second {
			t.Errorf("timeout took %v", time.Since(start))
		}
	})
}

func TestRemoteNotConfigured(t *testing.T) {
	remote := &FakeRemote{Text: "x"}
	d := NewDispatcher(nil, remote)

	req := remoteRequest("", nil)
	if _, err := d.Dispatch(context.Background(), req); KindOf(err) != KindBackendUnavailable {
		t.Errorf("missing url: kind = %q", KindOf(err))
	}
	req = remoteRequest("http://localhost:1", nil)
	req.Remote.Token = ""
	if _, err := d.Dispatch(context.Background(), req); KindOf(err) != KindBackendUnavailable {
		t.Errorf("missing token: kind = %q", KindOf(err))
	}
	if remote.Calls() != 0 {
		t.Errorf("remote called %d times", remote.Calls())
	}
}

func TestParseTranscript(t *testing.T) {
	for _, tt := range []struct{ name, body, want string }{
		{"text", `{"text":" hi "}`, "hi"},
		{"transcription", `{"transcription":"bonjour"}`, "bonjour"},
		{"message", `{"message":"salut"}`, "salut"},
		{"text wins", `{"text":"a","message":"b"}`, "a"},
		{"empty text falls through", `{"text":"","transcription":"b"}`, "b"},
		{"no known key", `{"other":"x"}`, ""},
		{"json string", `"quoted"`, "quoted"},
		{"plain", "plain words\n", "plain words"},
		{"blank", "  \n", ""},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseTranscript([]byte(tt.body)); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRemoteEmptyTranscript(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"text":"   "}`))
	}))
	defer srv.Close()

	d := NewDispatcher(nil, NewRemote())
	text, err := d.Dispatch(context.Background(), remoteRequest(srv.URL, testWAV(t)))
	if text != "" || KindOf(err) != KindEmpty {
		t.Errorf("got %q, %v; want empty transcript error", text, err)
	}
}

func TestLocalUnavailableNeverFallsBack(t *testing.T) {
	local := &FakeLocal{Unavailable: errors.New("no model")}
	remote := &FakeRemote{Text: "from remote"}
	d := NewDispatcher(local, remote)

	req := remoteRequest("http://example.invalid", testWAV(t))
	req.Mode = ModeLocal
	text, err := d.Dispatch(context.Background(), req)
	if text != "" {
		t.Errorf("text = %q", text)
	}
	if KindOf(err) != KindBackendUnavailable {
		t.Errorf("kind = %q", KindOf(err))
	}
	if local.Calls() != 0 || remote.Calls() != 0 {
		t.Errorf("calls local=%d remote=%d", local.Calls(), remote.Calls())
	}
}

func TestLocalDispatch(t *testing.T) {
	local := &FakeLocal{Text: "  local text \n"}
	remote := &FakeRemote{}
	d := NewDispatcher(local, remote)

	text, err := d.Dispatch(context.Background(), Request{Mode: ModeLocal, Audio: testWAV(t)})
	if err != nil {
		t.Fatal(err)
	}
	if text != "local text" {
		t.Errorf("text = %q", text)
	}
	if remote.Calls() != 0 {
		t.Errorf("remote called")
	}

	local.Err = errors.New("boom")
	if _, err := d.Dispatch(context.Background(), Request{Mode: ModeLocal}); KindOf(err) != KindBackendUnavailable {
		t.Errorf("inference failure kind = %q", KindOf(err))
	}
}

func TestDispatchNoRetry(t *testing.T) {
	remote := &FakeRemote{Err: newError(KindServer, nil, "HTTP 503")}
	d := NewDispatcher(nil, remote)
	_, err := d.Dispatch(context.Background(), remoteRequest("http://x", nil))
	if KindOf(err) != KindServer {
		t.Errorf("kind = %q", KindOf(err))
	}
	if remote.Calls() != 1 {
		t.Errorf("calls = %d, want 1", remote.Calls())
	}
}

func TestResolveModel(t *testing.T) {
	dir := filepath.Join("cfg", "models")
	if got := ResolveModel(dir, "small"); got != filepath.Join(dir, "ggml-small.bin") {
		t.Errorf("got %q", got)
	}
	if got := ResolveModel(dir, ""); got != filepath.Join(dir, "ggml-base.bin") {
		t.Errorf("default got %q", got)
	}
	abs := filepath.Join(string(os.PathSeparator), "opt", "m.bin")
	if got := ResolveModel(dir, abs); got != abs {
		t.Errorf("path got %q", got)
	}
}

func TestWhisperCLIAvailable(t *testing.T) {
	dir := t.TempDir()
	w := NewWhisperCLI(dir)
	w.lookPath = func(string) (string, error) { return "", errors.New("not found") }

	if err := w.Available(LocalConfig{Model: "base"}); err == nil {
		t.Error("expected error without binary")
	}

	bin := filepath.Join(dir, "whisper-cli")
	os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755)
	if err := w.Available(LocalConfig{Model: "base", Binary: bin}); err == nil {
		t.Error("expected error without model")
	}
	os.WriteFile(filepath.Join(dir, "ggml-base.bin"), []byte("x"), 0o644)
	if err := w.Available(LocalConfig{Model: "base", Binary: bin}); err != nil {
		t.Errorf("Available: %v", err)
	}
}

func TestCleanCLIOutput(t *testing.T) {
	got := cleanCLIOutput("\n Hello there.\n[BLANK_AUDIO]\n second line \n")
	if got != "Hello there. second line" {
		t.Errorf("got %q", got)
	}
	if got := cleanCLIOutput("[BLANK_AUDIO]"); got != "" {
		t.Error("blank marker should vanish")
	}
}
