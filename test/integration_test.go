//go:build integration

package test_test

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testBinary string

func TestMain(m *testing.M) {
	testBinary = os.Getenv("MURMUR_TEST_BIN")
	if testBinary == "" {
		fmt.Fprintln(os.Stderr, "MURMUR_TEST_BIN not set; run: go build -o /tmp/murmur . && MURMUR_TEST_BIN=/tmp/murmur go test -tags integration ./test")
		os.Exit(1)
	}

	dir, err := os.MkdirTemp("", "murmur-it")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	tonePath = filepath.Join(dir, "tone.wav")
	if err := generateToneWAV(tonePath, 16000, 1.0); err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate tone.wav: %v\n", err)
		os.Exit(1)
	}
	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

var tonePath string

func generateToneWAV(path string, sampleRate int, durationS float64) error {
	const headerSize = 44
	numSamples := int(float64(sampleRate) * durationS)
	dataSize := numSamples * 2

	buf := make([]byte, headerSize+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(headerSize-8+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(buf[32:34], 2)  // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16) // bits per sample
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))

	for i := 0; i < numSamples; i++ {
		v := int16(8000 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
		binary.LittleEndian.PutUint16(buf[headerSize+2*i:], uint16(v))
	}
	return os.WriteFile(path, buf, 0644)
}

func cmds(parts ...string) string {
	return strings.Join(parts, "\n") + "\n"
}

type server struct {
	*httptest.Server
	requests atomic.Int32
}

func newServer(t *testing.T, status int, body string) *server {
	s := &server{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		f, hdr, err := r.FormFile("audio")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if hdr.Filename != "audio.wav" || string(data[:4]) != "RIFF" {
			http.Error(w, "bad audio part", http.StatusBadRequest)
			return
		}
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(s.Close)
	return s
}

type result struct {
	stdout string
	logDir string
}

func runMurmur(t *testing.T, srv *server, stdin string, args ...string) result {
	t.Helper()
	logDir := t.TempDir()
	cmdArgs := append([]string{"-logpath", logDir, "-config", filepath.Join(t.TempDir(), "config.yaml")}, args...)

	cmd := exec.Command(testBinary, cmdArgs...)
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Env = append(os.Environ(),
		"MURMUR_MODE=remote",
		"MURMUR_REMOTE_URL="+srv.URL,
		"MURMUR_REMOTE_TOKEN=test-token",
		"MURMUR_MIN_DURATION=300ms",
	)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	require.NoError(t, err, "stderr: %s", stderr.String())
	return result{stdout: string(out), logDir: logDir}
}

func readLog(t *testing.T, logDir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(logDir, "diagnostics_log.txt"))
	if os.IsNotExist(err) {
		return ""
	}
	require.NoError(t, err)
	return string(data)
}

func TestDictation(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{"text":" hello world "}`)
	res := runMurmur(t, srv, cmds("KEYDOWN", "WAIT_AUDIO_DONE", "KEYUP", "WAIT", "QUIT"), "-test", tonePath)

	assert.Contains(t, res.stdout, "INSERT hello world")
	assert.Contains(t, res.stdout, "STATE idle")
	assert.NotContains(t, res.stdout, "NOTIFY")
	assert.EqualValues(t, 1, srv.requests.Load())

	diag := readLog(t, res.logDir)
	assert.Contains(t, diag, "session_start")
	assert.Contains(t, diag, "dispatch")
	assert.Contains(t, diag, "insertion")
}

func TestTwoSessions(t *testing.T) {
	srv := newServer(t, http.StatusOK, "plain text reply")
	res := runMurmur(t, srv, cmds(
		"KEYDOWN", "WAIT_AUDIO_DONE", "KEYUP", "WAIT",
		"KEYDOWN", "WAIT_AUDIO_DONE", "KEYUP", "WAIT",
		"QUIT"), "-test", tonePath)

	assert.Equal(t, 2, strings.Count(res.stdout, "INSERT plain text reply"))
	assert.EqualValues(t, 2, srv.requests.Load())
}

func TestShortPressIsDiscarded(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{"text":"never"}`)
	res := runMurmur(t, srv, cmds("KEYDOWN", "SLEEP 50", "KEYUP", "WAIT", "QUIT"), "-test", tonePath)

	assert.Contains(t, res.stdout, "STATE idle")
	assert.NotContains(t, res.stdout, "INSERT")
	assert.NotContains(t, res.stdout, "NOTIFY")
	assert.Zero(t, srv.requests.Load())
}

func TestRejectedToken(t *testing.T) {
	srv := newServer(t, http.StatusUnauthorized, `{"error":"bad token"}`)
	res := runMurmur(t, srv, cmds("KEYDOWN", "WAIT_AUDIO_DONE", "KEYUP", "WAIT", "QUIT"), "-test", tonePath)

	assert.Contains(t, res.stdout, "STATE error(auth)")
	assert.Equal(t, 1, strings.Count(res.stdout, "NOTIFY"))
	assert.NotContains(t, res.stdout, "INSERT")
	assert.EqualValues(t, 1, srv.requests.Load(), "failed requests are not retried")
}

func TestAbortWhileRecording(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{"text":"never"}`)
	res := runMurmur(t, srv, cmds("KEYDOWN", "SLEEP 500", "ABORT", "WAIT", "KEYUP", "QUIT"), "-test", tonePath)

	assert.Contains(t, res.stdout, "STATE idle")
	assert.NotContains(t, res.stdout, "INSERT")
	assert.Zero(t, srv.requests.Load())
}
