//go:build linux && nativeclipboard

package clipboard

import "time"

func Typeable(string) int { return -1 }

// Type copies text to the system clipboard and pastes it via Ctrl+V.
func Type(text string, _ time.Duration) error {
	return PasteText(text)
}
