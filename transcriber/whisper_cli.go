package transcriber

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

var binaryNames = []string{"whisper-cli", "whisper-cpp", "whisper", "main"}

// WhisperCLI runs a whisper.cpp binary over a temporary WAV file.
type WhisperCLI struct {
	modelDir string
	lookPath func(string) (string, error)
}

func NewWhisperCLI(modelDir string) *WhisperCLI {
	return &WhisperCLI{modelDir: modelDir, lookPath: exec.LookPath}
}

func (w *WhisperCLI) Name() string { return "whisper-cli" }

// ResolveModel maps a bare model name such as "base" to
// <modelDir>/ggml-base.bin. Paths are returned unchanged.
func ResolveModel(modelDir, model string) string {
	if model == "" {
		model = "base"
	}
	if strings.ContainsRune(model, os.PathSeparator) || strings.HasSuffix(model, ".bin") {
		return model
	}
	return filepath.Join(modelDir, "ggml-"+model+".bin")
}

func (w *WhisperCLI) binary(cfg LocalConfig) (string, error) {
	if cfg.Binary != "" {
		if _, err := os.Stat(cfg.Binary); err != nil {
			return "", err
		}
		return cfg.Binary, nil
	}
	for _, name := range binaryNames {
		if p, err := w.lookPath(name); err == nil {
			return p, nil
		}
	}
	return "", errors.New("whisper.cpp binary not found in PATH")
}

func (w *WhisperCLI) Available(cfg LocalConfig) error {
	if _, err := w.binary(cfg); err != nil {
		return err
	}
	model := ResolveModel(w.modelDir, cfg.Model)
	if _, err := os.Stat(model); err != nil {
		return fmt.Errorf("model %s: %w", model, err)
	}
	return nil
}

func (w *WhisperCLI) Transcribe(ctx context.Context, cfg LocalConfig, wav []byte) (string, error) {
	bin, err := w.binary(cfg)
	if err != nil {
		return "", newError(KindBackendUnavailable, err, "local model unavailable")
	}
	model := ResolveModel(w.modelDir, cfg.Model)
	if _, err := os.Stat(model); err != nil {
		return "", newError(KindBackendUnavailable, err, "local model unavailable")
	}

	f, err := os.CreateTemp("", "murmur-*.wav")
	if err != nil {
		return "", err
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(wav); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	args := []string{"-m", model, "-f", f.Name(), "-nt", "-np"}
	if cfg.Language != "" {
		args = append(args, "-l", cfg.Language)
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", newError(KindBackendUnavailable, err, "%s failed: %s", filepath.Base(bin), snippet(stderr.Bytes()))
	}
	return cleanCLIOutput(stdout.String()), nil
}

// cleanCLIOutput joins the printed lines and drops whisper's blank markers.
func cleanCLIOutput(out string) string {
	var parts []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == "[BLANK_AUDIO]" {
			continue
		}
		parts = append(parts, line)
	}
	return strings.Join(parts, " ")
}
