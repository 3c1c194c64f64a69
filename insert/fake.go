package insert

import (
	"sync"
	"time"
)

type FakeInjector struct {
	ReadyErr error
	TypeErr  error

	mu    sync.Mutex
	typed []string
}

func (f *FakeInjector) Ready() error { return f.ReadyErr }

func (f *FakeInjector) Type(text string, _ time.Duration) error {
	if f.TypeErr != nil {
		return f.TypeErr
	}
	f.mu.Lock()
	f.typed = append(f.typed, text)
	f.mu.Unlock()
	return nil
}

func (f *FakeInjector) Typed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.typed...)
}

// FakeClipboard stores copied text in memory.
type FakeClipboard struct {
	Err error

	mu   sync.Mutex
	text string
}

func (c *FakeClipboard) Copy(text string) error {
	if c.Err != nil {
		return c.Err
	}
	c.mu.Lock()
	c.text = text
	c.mu.Unlock()
	return nil
}

func (c *FakeClipboard) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}
