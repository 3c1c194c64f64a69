// Package health publishes whether a recording can start and be transcribed.
package health

import (
	"sync"
	"sync/atomic"
	"time"
)

type Status struct {
	MicrophoneAvailable bool
	BackendReady        bool
	Reason              string
	CheckedAt           time.Time
}

func (s Status) OK() bool { return s.MicrophoneAvailable && s.BackendReady }

// Probe returns nil when the checked resource is usable.
type Probe func() error

// Monitor recomputes Status on demand and publishes it by pointer swap, so
// readers never observe a half-updated value.
type Monitor struct {
	mic     Probe
	backend Probe
	cur     atomic.Pointer[Status]

	mu   sync.Mutex
	subs []chan Status
}

func NewMonitor(mic, backend Probe) *Monitor {
	m := &Monitor{mic: mic, backend: backend}
	m.cur.Store(&Status{})
	return m
}

func (m *Monitor) Status() Status { return *m.cur.Load() }

// Refresh runs both probes and publishes the result.
func (m *Monitor) Refresh() Status {
	m.mu.Lock()
	mic, backend := m.mic, m.backend
	m.mu.Unlock()

	s := Status{MicrophoneAvailable: true, BackendReady: true, CheckedAt: time.Now()}
	var reasons []string
	if mic != nil {
		if err := mic(); err != nil {
			s.MicrophoneAvailable = false
			reasons = append(reasons, err.Error())
		}
	}
	if backend != nil {
		if err := backend(); err != nil {
			s.BackendReady = false
			reasons = append(reasons, err.Error())
		}
	}
	for i, r := range reasons {
		if i > 0 {
			s.Reason += "; "
		}
		s.Reason += r
	}
	m.Set(s)
	return s
}

// SetProbes swaps the probes, e.g. after the backend mode changed.
func (m *Monitor) SetProbes(mic, backend Probe) {
	m.mu.Lock()
	m.mic, m.backend = mic, backend
	m.mu.Unlock()
}

// Set publishes s directly.
func (m *Monitor) Set(s Status) {
	m.cur.Store(&s)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subs {
		// latest wins
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}
}

// Subscribe returns a channel carrying the most recent Status after each change.
func (m *Monitor) Subscribe() <-chan Status {
	ch := make(chan Status, 1)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()
	return ch
}
