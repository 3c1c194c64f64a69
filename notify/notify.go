package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/gen2brain/beeep"
)

const Title = "murmur"

type Notifier interface {
	Notify(msg string) error
}

// Desktop raises an OS notification.
type Desktop struct {
	Icon string
}

func NewDesktop(icon string) *Desktop {
	beeep.AppName = Title
	return &Desktop{Icon: icon}
}

func (d *Desktop) Notify(msg string) error {
	if err := beeep.Notify(Title, msg, d.Icon); err != nil {
		return fmt.Errorf("desktop notification: %w", err)
	}
	return nil
}

// Writer prints notifications as lines, used by the headless test mode.
type Writer struct {
	mu sync.Mutex
	W  io.Writer
}

func (w *Writer) Notify(msg string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := fmt.Fprintf(w.W, "NOTIFY %s\n", msg)
	return err
}

// Recorder keeps every message; Notified is signalled once per message.
type Recorder struct {
	mu       sync.Mutex
	msgs     []string
	Err      error
	Notified chan string
}

func NewRecorder() *Recorder {
	return &Recorder{Notified: make(chan string, 16)}
}

func (r *Recorder) Notify(msg string) error {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	err := r.Err
	r.mu.Unlock()
	select {
	case r.Notified <- msg:
	default:
	}
	return err
}

func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.msgs...)
}

func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}
