// Package insert delivers a finished transcript to the focused application,
// falling back to the clipboard when keystroke injection is not possible.
package insert

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"murmur/clipboard"
	"murmur/log"
	"murmur/notify"
)

var ErrInjectionFailed = errors.New("injection failed")

const DefaultTypeDelay = 10 * time.Millisecond

const (
	fallbackMessage    = "Could not type into the focused window. The transcript was copied to the clipboard."
	undeliveredMessage = "Could not insert the transcript or copy it to the clipboard."
)

type Outcome int

const (
	Inserted Outcome = iota
	CopiedToClipboard
	// Undelivered means neither injection nor the clipboard took the text.
	// Insert pairs it with a non-nil error.
	Undelivered
)

func (o Outcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case CopiedToClipboard:
		return "copied_to_clipboard"
	case Undelivered:
		return "undelivered"
	}
	return "unknown"
}

// Injector types text into whatever window has keyboard focus.
type Injector interface {
	Ready() error
	Type(text string, delay time.Duration) error
}

type Clipboard interface {
	Copy(text string) error
}

// Pipeline tries the injector once. Any failure puts the text on the
// clipboard and raises exactly one notification.
type Pipeline struct {
	injector  Injector
	clipboard Clipboard
	notifier  notify.Notifier
	delay     atomic.Int64
}

func NewPipeline(inj Injector, cb Clipboard, n notify.Notifier) *Pipeline {
	p := &Pipeline{injector: inj, clipboard: cb, notifier: n}
	p.delay.Store(int64(DefaultTypeDelay))
	return p
}

func (p *Pipeline) SetTypeDelay(d time.Duration) {
	if d < 0 {
		d = 0
	}
	p.delay.Store(int64(d))
}

// Insert returns an error only when the clipboard fallback itself fails,
// and the outcome is then Undelivered.
func (p *Pipeline) Insert(text string) (Outcome, error) {
	err := p.inject(text)
	if err == nil {
		return Inserted, nil
	}
	log.Warnf("insert: %v", err)

	if cerr := p.clipboard.Copy(text); cerr != nil {
		p.notify(undeliveredMessage)
		return Undelivered, fmt.Errorf("clipboard: %w", cerr)
	}
	p.notify(fallbackMessage)
	return CopiedToClipboard, nil
}

func (p *Pipeline) notify(msg string) {
	if err := p.notifier.Notify(msg); err != nil {
		log.Warnf("notify: %v", err)
	}
}

func (p *Pipeline) inject(text string) error {
	if p.injector == nil {
		return fmt.Errorf("%w: no injector", ErrInjectionFailed)
	}
	if err := p.injector.Ready(); err != nil {
		return fmt.Errorf("%w: %v", ErrInjectionFailed, err)
	}
	if err := p.injector.Type(text, time.Duration(p.delay.Load())); err != nil {
		return fmt.Errorf("%w: %v", ErrInjectionFailed, err)
	}
	return nil
}

// System injects through the platform keystroke layer. Text the keyboard
// map cannot produce is pasted instead of typed.
type System struct{}

func (System) Ready() error { return clipboard.Ready() }

func (System) Type(text string, delay time.Duration) error {
	if clipboard.Typeable(text) >= 0 {
		return clipboard.PasteText(text)
	}
	return clipboard.Type(text, delay)
}

type SystemClipboard struct{}

func (SystemClipboard) Copy(text string) error { return clipboard.Copy(text) }
