// Package recorder runs the push-to-talk state machine: capture while the
// hotkey is held, transcribe the clip, insert the text, recover from errors.
package recorder

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"murmur/audio"
	"murmur/config"
	"murmur/encoder"
	"murmur/health"
	"murmur/insert"
	"murmur/log"
	"murmur/notify"
	"murmur/transcriber"
)

const (
	// TickInterval paces snapshots while recording.
	TickInterval = 33 * time.Millisecond
	// WaveformWindow is how much amplitude history a snapshot carries.
	WaveformWindow = time.Second

	queueSize = 32
)

type Cue interface {
	PlayStart()
	PlayStop()
	PlayError()
}

type Dispatcher interface {
	Dispatch(ctx context.Context, req transcriber.Request) (string, error)
}

type Inserter interface {
	Insert(text string) (insert.Outcome, error)
}

type HealthSource interface {
	Status() health.Status
}

// TextProcessor rewrites a transcript before insertion.
type TextProcessor interface {
	Process(text string) string
}

type Deps struct {
	Audio      audio.Context
	Config     config.Source
	Health     HealthSource
	Cue        Cue
	Dispatcher Dispatcher
	Inserter   Inserter
	Notifier   notify.Notifier
	Text       TextProcessor
	// Observe is called on the controller goroutine and must not block.
	Observe func(Snapshot)
}

type eventKind int

const (
	evDown eventKind = iota
	evUp
	evAbort
	evEncoded
	evDispatched
	evInserted
	evHoldExpired
)

type event struct {
	kind    eventKind
	session string
	wav     []byte
	audioS  float64
	encMs   float64
	text    string
	outcome insert.Outcome
	err     error
}

// session is owned by the Run goroutine.
type session struct {
	id      string
	started time.Time
	buf     *audio.Buffer
	device  string
	audioS  float64
}

type Controller struct {
	deps   Deps
	events chan event // worker results
	done   chan struct{}

	// inbox holds hotkey and abort events in arrival order; wake signals it
	// is non-empty.
	inMu  sync.Mutex
	inbox []event
	wake  chan struct{}

	runCtx context.Context
	now    func() time.Time
	tick   time.Duration

	state     State
	errKind   ErrorKind
	sess      *session
	holdTimer *time.Timer
	holdFor   string

	mu   sync.Mutex
	snap Snapshot
}

func New(deps Deps) *Controller {
	if deps.Notifier == nil {
		deps.Notifier = notify.NewRecorder()
	}
	return &Controller{
		deps:   deps,
		events: make(chan event, queueSize),
		done:   make(chan struct{}),
		wake:   make(chan struct{}, 1),
		runCtx: context.Background(),
		now:    time.Now,
		tick:   TickInterval,
	}
}

// HotkeyDown, HotkeyUp and Abort never block. With a full inbox a press is
// dropped with a warning; a release or abort displaces a queued press instead.
func (c *Controller) HotkeyDown() { c.post(event{kind: evDown}) }
func (c *Controller) HotkeyUp()   { c.post(event{kind: evUp}) }
func (c *Controller) Abort()      { c.post(event{kind: evAbort}) }

func (c *Controller) post(e event) {
	c.inMu.Lock()
	if len(c.inbox) >= queueSize && !c.makeRoom(e.kind) {
		c.inMu.Unlock()
		log.Warnf("recorder: input queue full, dropped event %d", e.kind)
		return
	}
	c.inbox = append(c.inbox, e)
	c.inMu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// makeRoom frees one inbox slot for kind. A release or abort removes the
// newest queued press; an abort may also replace the newest queued release.
// A release arriving at a queue of only releases and aborts is redundant.
// Must hold inMu.
func (c *Controller) makeRoom(kind eventKind) bool {
	victims := []eventKind{evDown}
	switch kind {
	case evDown:
		return false
	case evAbort:
		victims = append(victims, evUp)
	}
	for _, v := range victims {
		for i := len(c.inbox) - 1; i >= 0; i-- {
			if c.inbox[i].kind == v {
				c.inbox = append(c.inbox[:i], c.inbox[i+1:]...)
				return true
			}
		}
	}
	return false
}

func (c *Controller) takeInbox() []event {
	c.inMu.Lock()
	defer c.inMu.Unlock()
	batch := c.inbox
	c.inbox = nil
	return batch
}

// reply delivers results from worker goroutines; these must not be dropped.
func (c *Controller) reply(e event) {
	select {
	case c.events <- e:
	case <-c.done:
	}
}

// Snapshot returns the most recently published snapshot.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.snap
	s.Levels = append([]float64(nil), s.Levels...)
	return s
}

// Run processes events until ctx is done. A session still open at that point
// is discarded and its device released. Cancelling ctx also cancels an
// in-flight dispatch; Abort does not.
func (c *Controller) Run(ctx context.Context) {
	c.runCtx = ctx
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()
	defer close(c.done)

	c.publish()
	for {
		select {
		case <-ctx.Done():
			c.abort("shutdown")
			c.stopHold()
			return
		case <-c.wake:
			for _, e := range c.takeInbox() {
				c.handle(e)
			}
		case e := <-c.events:
			c.handle(e)
		case <-ticker.C:
			if c.state == Recording {
				c.publish()
			}
		}
	}
}

func (c *Controller) handle(e event) {
	switch e.kind {
	case evDown:
		c.onDown()
	case evUp:
		c.onUp()
	case evAbort:
		c.abort("aborted")
	case evEncoded:
		c.onEncoded(e)
	case evDispatched:
		c.onDispatched(e)
	case evInserted:
		c.onInserted(e)
	case evHoldExpired:
		if c.state == Error && e.session == c.holdFor {
			c.holdTimer = nil
			c.transition(Idle)
		}
	}
}

func (c *Controller) onDown() {
	if c.state.Busy() || c.sess != nil {
		return
	}
	if st := c.deps.Health.Status(); !st.MicrophoneAvailable {
		log.Warnf("recorder: hotkey ignored, microphone unavailable: %s", st.Reason)
		return
	}

	cfg := c.deps.Config.Snapshot()
	id := uuid.NewString()

	dev, err := audio.FindDevice(c.deps.Audio, cfg.Audio.Device)
	if err != nil {
		c.fail(id, DeviceUnavailable, err)
		return
	}
	buf, err := audio.Open(c.deps.Audio, dev, audio.CaptureConfig{
		SampleRate: uint32(cfg.Audio.SampleRate),
		Channels:   uint32(cfg.Audio.Channels),
	})
	if err != nil {
		c.fail(id, DeviceUnavailable, err)
		return
	}

	c.sess = &session{
		id:      id,
		started: c.now(),
		buf:     buf,
		device:  buf.DeviceName(),
	}
	log.SessionStart(id, string(cfg.Mode), c.sess.device)
	c.deps.Cue.PlayStart()
	c.transition(Recording)
}

func (c *Controller) onUp() {
	if c.state != Recording || c.sess == nil {
		return
	}
	s := c.sess
	samples := s.buf.Close()
	c.deps.Cue.PlayStop()
	c.transition(Finalizing)

	rate, ch := s.buf.SampleRate(), s.buf.Channels()
	dur := s.buf.Duration()
	s.audioS = dur.Seconds()

	minDur := c.deps.Config.Snapshot().MinDuration
	if dur < minDur || len(samples) == 0 {
		log.Infof("recorder: clip of %s is below %s, not transcribed", dur, minDur)
		c.endSession("too_short")
		c.transition(Idle)
		return
	}

	go func(id string) {
		start := time.Now()
		wav, err := encoder.EncodeWAV(samples, rate, ch)
		c.reply(event{
			kind:    evEncoded,
			session: id,
			wav:     wav,
			audioS:  dur.Seconds(),
			encMs:   float64(time.Since(start).Microseconds()) / 1000,
			err:     err,
		})
	}(s.id)
}

func (c *Controller) onEncoded(e event) {
	// abort checkpoint before dispatch
	if c.state != Finalizing || c.sess == nil || c.sess.id != e.session {
		return
	}
	if e.err != nil {
		log.Errorf("recorder: encode: %v", e.err)
		c.endSession("encode_failed")
		c.transition(Idle)
		return
	}

	cfg := c.deps.Config.Snapshot()
	req := transcriber.Request{
		SessionID: e.session,
		Audio:     e.wav,
		AudioS:    e.audioS,
		EncodeMs:  e.encMs,
		Mode:      transcriber.Mode(cfg.Mode),
		Local: transcriber.LocalConfig{
			Model:    cfg.Local.Model,
			Binary:   cfg.Local.Binary,
			Language: cfg.Local.Language,
		},
		Remote: transcriber.RemoteConfig{
			URL:     cfg.Remote.URL,
			Token:   cfg.Remote.Token,
			Timeout: cfg.Remote.Timeout,
		},
	}

	c.transition(Dispatching)

	// Abort leaves the call running; its result is dropped by session id.
	go func(ctx context.Context) {
		text, err := c.deps.Dispatcher.Dispatch(ctx, req)
		c.reply(event{kind: evDispatched, session: req.SessionID, text: text, err: err})
	}(c.runCtx)
}

func (c *Controller) onDispatched(e event) {
	// abort checkpoint before insertion; stale results are dropped
	if c.state != Dispatching || c.sess == nil || c.sess.id != e.session {
		return
	}
	if e.err != nil {
		c.fail(e.session, kindFromDispatch(e.err), e.err)
		return
	}

	text := e.text
	if c.deps.Text != nil && c.deps.Config.Snapshot().Text.Enabled {
		text = c.deps.Text.Process(text)
	}
	if text == "" {
		c.fail(e.session, EmptyTranscript, errors.New("transcript empty after processing"))
		return
	}

	c.transition(Inserting)
	go func(id string) {
		outcome, err := c.deps.Inserter.Insert(text)
		c.reply(event{kind: evInserted, session: id, outcome: outcome, err: err, text: text})
	}(e.session)
}

func (c *Controller) onInserted(e event) {
	if c.state != Inserting || c.sess == nil || c.sess.id != e.session {
		return
	}
	if e.err != nil {
		log.Errorf("recorder: insert: %v", e.err)
	}
	log.Insertion(e.session, e.outcome.String(), len([]rune(e.text)))
	c.endSession(e.outcome.String())
	c.transition(Idle)
}

// fail is the single reporting point for session failures: one log entry,
// one notification, the error cue, then Error until error_hold elapses.
func (c *Controller) fail(id string, kind ErrorKind, err error) {
	log.Errorf("recorder: session %s failed (%s): %v", id, kind, err)
	if c.sess != nil {
		if c.sess.buf != nil {
			c.sess.buf.Abort()
		}
		c.endSession(string(kind))
	}
	if nerr := c.deps.Notifier.Notify(errorMessages[kind]); nerr != nil {
		log.Warnf("notify: %v", nerr)
	}
	c.deps.Cue.PlayError()

	c.errKind = kind
	c.transition(Error)

	c.stopHold()
	c.holdFor = id
	hold := c.deps.Config.Snapshot().ErrorHold
	c.holdTimer = time.AfterFunc(hold, func() {
		c.reply(event{kind: evHoldExpired, session: id})
	})
}

func (c *Controller) abort(reason string) {
	if c.state == Idle && c.sess == nil {
		return
	}
	if c.sess != nil {
		c.sess.buf.Abort()
		c.endSession(reason)
	}
	c.stopHold()
	c.transition(Idle)
}

func (c *Controller) stopHold() {
	if c.holdTimer != nil {
		c.holdTimer.Stop()
		c.holdTimer = nil
	}
	c.holdFor = ""
}

func (c *Controller) endSession(outcome string) {
	if c.sess == nil {
		return
	}
	log.SessionEnd(c.sess.id, outcome, c.sess.audioS)
	c.sess = nil
}

func (c *Controller) transition(to State) {
	from := c.state
	c.state = to
	if to != Error {
		c.errKind = ""
	}
	id := ""
	if c.sess != nil {
		id = c.sess.id
	}
	log.Transition(id, from.String(), c.label())
	c.publish()
}

func (c *Controller) label() string {
	return Snapshot{State: c.state, ErrorKind: c.errKind}.Label()
}

func (c *Controller) publish() {
	s := Snapshot{State: c.state, ErrorKind: c.errKind}
	if c.sess != nil {
		s.SessionID = c.sess.id
		s.Device = c.sess.device
		s.Elapsed = c.now().Sub(c.sess.started)
		if c.state == Recording {
			s.Levels = c.sess.buf.AmplitudeWindow(WaveformWindow)
		}
	}

	c.mu.Lock()
	c.snap = s
	c.mu.Unlock()

	if c.deps.Observe != nil {
		c.deps.Observe(s)
	}
}
