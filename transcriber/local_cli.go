//go:build !whispercpp

package transcriber

// NewLocal returns the local backend compiled into this build.
func NewLocal(modelDir string) LocalBackend {
	return NewWhisperCLI(modelDir)
}
