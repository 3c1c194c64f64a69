//go:build whispercpp

package transcriber

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"murmur/encoder"
)

// WhisperCpp runs inference in-process through the whisper.cpp bindings.
// The loaded model is cached until a different model path is requested.
type WhisperCpp struct {
	modelDir string

	mu    sync.Mutex
	path  string
	model whisper.Model
}

func NewWhisperCpp(modelDir string) *WhisperCpp {
	return &WhisperCpp{modelDir: modelDir}
}

func (w *WhisperCpp) Name() string { return "whisper.cpp" }

func (w *WhisperCpp) Available(cfg LocalConfig) error {
	path := ResolveModel(w.modelDir, cfg.Model)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("model %s: %w", path, err)
	}
	return nil
}

func (w *WhisperCpp) load(path string) (whisper.Model, error) {
	if w.model != nil && w.path == path {
		return w.model, nil
	}
	if w.model != nil {
		w.model.Close()
		w.model = nil
	}
	m, err := whisper.New(path)
	if err != nil {
		return nil, err
	}
	w.model, w.path = m, path
	return m, nil
}

func (w *WhisperCpp) Transcribe(ctx context.Context, cfg LocalConfig, wav []byte) (string, error) {
	pcm, err := encoder.DecodeWAV(wav)
	if err != nil {
		return "", err
	}
	floats := monoFloats(pcm)

	// ggml contexts are not safe for concurrent Process calls.
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	model, err := w.load(ResolveModel(w.modelDir, cfg.Model))
	if err != nil {
		return "", newError(KindBackendUnavailable, err, "load model")
	}
	wctx, err := model.NewContext()
	if err != nil {
		return "", newError(KindBackendUnavailable, err, "whisper context")
	}
	lang := cfg.Language
	if lang == "" {
		lang = "auto"
	}
	if err := wctx.SetLanguage(lang); err != nil {
		return "", newError(KindBackendUnavailable, err, "language %q", lang)
	}
	wctx.SetTranslate(false)

	var sb strings.Builder
	segment := func(s whisper.Segment) { sb.WriteString(s.Text) }
	if err := wctx.Process(floats, nil, segment, nil); err != nil {
		return "", newError(KindBackendUnavailable, err, "whisper process")
	}
	text := strings.TrimSpace(sb.String())
	if text == "[BLANK_AUDIO]" {
		return "", nil
	}
	return text, nil
}

func (w *WhisperCpp) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.model != nil {
		w.model.Close()
		w.model = nil
	}
}

const whisperRate = 16000

func monoFloats(pcm encoder.PCM) []float32 {
	ch := pcm.Channels
	if ch < 1 {
		ch = 1
	}
	out := make([]float32, len(pcm.Samples)/ch)
	for i := range out {
		var sum int
		for c := 0; c < ch; c++ {
			sum += int(pcm.Samples[i*ch+c])
		}
		out[i] = float32(sum) / float32(ch) / 32768
	}
	if pcm.SampleRate == whisperRate || pcm.SampleRate <= 0 {
		return out
	}
	n := int(int64(len(out)) * whisperRate / int64(pcm.SampleRate))
	res := make([]float32, n)
	step := float64(pcm.SampleRate) / whisperRate
	for i := range res {
		pos := float64(i) * step
		j := int(pos)
		if j+1 >= len(out) {
			res[i] = out[len(out)-1]
			continue
		}
		frac := float32(pos - float64(j))
		res[i] = out[j]*(1-frac) + out[j+1]*frac
	}
	return res
}
