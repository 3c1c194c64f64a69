package transcriber

import (
	"context"
	"sync/atomic"
)

// FakeLocal is a LocalBackend with canned results.
type FakeLocal struct {
	Unavailable error
	Text        string
	Err         error

	calls atomic.Int32
}

func (f *FakeLocal) Name() string                { return "fake-local" }
func (f *FakeLocal) Available(LocalConfig) error { return f.Unavailable }
func (f *FakeLocal) Calls() int                  { return int(f.calls.Load()) }

func (f *FakeLocal) Transcribe(ctx context.Context, _ LocalConfig, _ []byte) (string, error) {
	f.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.Text, f.Err
}

// FakeRemote is a RemoteBackend with canned results. When Block is set,
// Transcribe waits for it to close or for ctx to end.
type FakeRemote struct {
	Text  string
	Err   error
	Block chan struct{}

	calls atomic.Int32
}

func (f *FakeRemote) Calls() int { return int(f.calls.Load()) }

func (f *FakeRemote) Transcribe(ctx context.Context, _ RemoteConfig, _ []byte) (string, *NetworkMetrics, error) {
	f.calls.Add(1)
	if f.Block != nil {
		select {
		case <-f.Block:
		case <-ctx.Done():
			return "", nil, newError(KindNetwork, ctx.Err(), "cancelled")
		}
	}
	return f.Text, &NetworkMetrics{}, f.Err
}
