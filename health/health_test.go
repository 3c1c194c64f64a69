package health

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefresh(t *testing.T) {
	micErr := errors.New("no microphone")
	m := NewMonitor(func() error { return micErr }, func() error { return nil })

	s := m.Refresh()
	assert.False(t, s.MicrophoneAvailable)
	assert.True(t, s.BackendReady)
	assert.False(t, s.OK())
	assert.Equal(t, "no microphone", s.Reason)
	assert.Equal(t, s, m.Status())

	micErr = nil
	assert.True(t, m.Refresh().OK())
}

func TestRefreshJoinsReasons(t *testing.T) {
	m := NewMonitor(
		func() error { return errors.New("mic gone") },
		func() error { return errors.New("model missing") },
	)
	assert.Equal(t, "mic gone; model missing", m.Refresh().Reason)
}

func TestZeroStatusBeforeRefresh(t *testing.T) {
	m := NewMonitor(nil, nil)
	assert.False(t, m.Status().MicrophoneAvailable)
	assert.True(t, m.Refresh().OK())
}

func TestSetProbes(t *testing.T) {
	m := NewMonitor(nil, func() error { return errors.New("remote.url not set") })
	require.False(t, m.Refresh().BackendReady)

	m.SetProbes(nil, nil)
	assert.True(t, m.Refresh().BackendReady)
}

func TestSubscribeLatestWins(t *testing.T) {
	m := NewMonitor(nil, nil)
	ch := m.Subscribe()

	m.Set(Status{Reason: "first"})
	m.Set(Status{Reason: "second"})

	got := <-ch
	assert.Equal(t, "second", got.Reason)
	select {
	case extra := <-ch:
		t.Fatalf("unexpected extra status %+v", extra)
	default:
	}
}

func TestConcurrentReadersSeeWholeValues(t *testing.T) {
	m := NewMonitor(nil, nil)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			if i%2 == 0 {
				m.Set(Status{MicrophoneAvailable: true, BackendReady: true, Reason: "ok"})
			} else {
				m.Set(Status{Reason: "down"})
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			s := m.Status()
			if s.Reason == "ok" && !s.OK() || s.Reason == "down" && s.MicrophoneAvailable {
				t.Errorf("torn status %+v", s)
				return
			}
		}
	}()
	wg.Wait()
}
