//go:build whispercpp

package transcriber

func NewLocal(modelDir string) LocalBackend {
	return NewWhisperCpp(modelDir)
}
