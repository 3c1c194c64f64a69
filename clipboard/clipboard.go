package clipboard

import (
	"errors"
	"time"

	cb "github.com/atotto/clipboard"

	"murmur/log"
)

// ErrUnsupported is returned by Type when text contains characters that
// cannot be produced as keystrokes on this platform.
var ErrUnsupported = errors.New("text cannot be typed")

// restoreDelay is how long the pasted text stays on the clipboard before the
// previous contents are put back.
const restoreDelay = 100 * time.Millisecond

func Read() (string, error) {
	return cb.ReadAll()
}

func Copy(text string) error {
	return cb.WriteAll(text)
}

// PasteText places text on the clipboard, sends the paste shortcut, then
// restores whatever the clipboard held before.
func PasteText(text string) error {
	prev, readErr := Read()
	if err := Copy(text); err != nil {
		return err
	}
	if err := Paste(); err != nil {
		return err
	}
	if readErr == nil {
		time.Sleep(restoreDelay)
		restore(prev, Copy)
	}
	return nil
}

// restore puts prev back through write. The paste already happened, so a
// failure is only logged.
func restore(prev string, write func(string) error) {
	if err := write(prev); err != nil {
		log.Warnf("clipboard: restore previous contents: %v", err)
	}
}
