package audio

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"time"

	"murmur/encoder"
)

const fakeFrameSize = 1024

// FakeContext serves captures backed by in-memory PCM. In manual mode nothing
// is fed automatically and tests drive the callback with FakeCapture.Feed.
type FakeContext struct {
	pcm        []byte
	sampleRate int
	channels   int
	realtime   bool
	manual     bool

	mu          sync.Mutex
	unavailable bool
	active      int
	maxActive   int
	opened      int
	captures    []*FakeCapture
	audioDone   chan struct{}
	doneOnce    *sync.Once
}

// NewFakeContext loads a WAV file that every capture replays from the start.
func NewFakeContext(wavPath string, realtime bool) (*FakeContext, error) {
	data, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, err
	}
	pcm, err := encoder.DecodeWAV(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", wavPath, err)
	}
	f := NewManualFakeContext()
	f.manual = false
	f.realtime = realtime
	f.sampleRate = pcm.SampleRate
	f.channels = pcm.Channels
	f.pcm = samplesToBytes(pcm.Samples)
	return f, nil
}

func NewManualFakeContext() *FakeContext {
	return &FakeContext{
		manual:     true,
		sampleRate: encoder.SampleRate,
		channels:   encoder.Channels,
		audioDone:  make(chan struct{}),
		doneOnce:   new(sync.Once),
	}
}

// SetUnavailable simulates an unplugged microphone.
func (f *FakeContext) SetUnavailable(v bool) {
	f.mu.Lock()
	f.unavailable = v
	f.mu.Unlock()
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unavailable {
		return nil, nil
	}
	return []DeviceInfo{{ID: "fake", Name: "fake"}}, nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, cfg CaptureConfig) (CaptureDevice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unavailable {
		return nil, fmt.Errorf("%w: fake device unplugged", ErrDeviceUnavailable)
	}
	c := &FakeCapture{
		ctx:      f,
		pcm:      f.pcm,
		realtime: f.realtime,
		manual:   f.manual,
		channels: max(int(cfg.Channels), 1),
		rate:     max(int(cfg.SampleRate), 1),
	}
	f.opened++
	f.captures = append(f.captures, c)
	return c, nil
}

// Active is the number of started, not yet closed captures.
func (f *FakeContext) Active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

// MaxActive is the highest Active value ever observed.
func (f *FakeContext) MaxActive() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxActive
}

func (f *FakeContext) Opened() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened
}

func (f *FakeContext) LastCapture() *FakeCapture {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.captures) == 0 {
		return nil
	}
	return f.captures[len(f.captures)-1]
}

// AudioDone is closed once the current (or next) capture has replayed all of its PCM.
func (f *FakeContext) AudioDone() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.audioDone
}

func (f *FakeContext) finishAudio() {
	f.mu.Lock()
	once, ch := f.doneOnce, f.audioDone
	f.mu.Unlock()
	once.Do(func() { close(ch) })
}

func (f *FakeContext) started() {
	f.mu.Lock()
	f.active++
	f.maxActive = max(f.maxActive, f.active)
	f.mu.Unlock()
}

func (f *FakeContext) closed() {
	f.mu.Lock()
	f.active--
	f.audioDone = make(chan struct{})
	f.doneOnce = new(sync.Once)
	f.mu.Unlock()
}

type FakeCapture struct {
	ctx      *FakeContext
	pcm      []byte
	realtime bool
	manual   bool
	channels int
	rate     int

	mu       sync.Mutex
	cb       DataCallback
	running  bool
	counted  bool
	isClosed bool
	stopCh   chan struct{}
	feedDone chan struct{}
}

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) DeviceName() string { return "fake" }

func (f *FakeCapture) callback() DataCallback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cb
}

// Feed delivers interleaved samples to the callback synchronously.
func (f *FakeCapture) Feed(samples []int16) {
	if cb := f.callback(); cb != nil {
		cb(samplesToBytes(samples), uint32(len(samples)/f.channels))
	}
}

// FeedSilence delivers d worth of zero samples.
func (f *FakeCapture) FeedSilence(d time.Duration) {
	frames := int(d * time.Duration(f.rate) / time.Second)
	f.Feed(make([]int16, frames*f.channels))
}

func (f *FakeCapture) feedChunk(cb DataCallback, pos, chunkBytes int) int {
	end := min(pos+chunkBytes, len(f.pcm))
	chunk := make([]byte, end-pos)
	copy(chunk, f.pcm[pos:end])
	cb(chunk, uint32(len(chunk)/(2*f.channels)))
	return end
}

func (f *FakeCapture) Start() error {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return nil
	}
	f.running = true
	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})
	first := !f.counted
	f.counted = true
	f.mu.Unlock()
	if first {
		f.ctx.started()
	}

	if f.manual {
		close(f.feedDone)
		return nil
	}

	if len(f.pcm) == 0 {
		f.ctx.finishAudio()
	}
	chunkBytes := fakeFrameSize * 2 * f.channels
	interval := time.Duration(fakeFrameSize) * time.Second / time.Duration(f.rate)

	if !f.realtime {
		if cb := f.callback(); cb != nil {
			for pos := 0; pos < len(f.pcm); {
				pos = f.feedChunk(cb, pos, chunkBytes)
			}
		}
		f.ctx.finishAudio()
	}

	go func() {
		defer close(f.feedDone)
		pos := 0
		if !f.realtime {
			pos = len(f.pcm)
		}
		silence := make([]byte, chunkBytes)
		for {
			select {
			case <-f.stopCh:
				return
			case <-time.After(interval):
			}
			cb := f.callback()
			if cb == nil {
				continue
			}
			if pos < len(f.pcm) {
				pos = f.feedChunk(cb, pos, chunkBytes)
				if pos >= len(f.pcm) {
					f.ctx.finishAudio()
				}
				continue
			}
			cb(silence, fakeFrameSize)
		}
	}()
	return nil
}

func (f *FakeCapture) Stop() {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return
	}
	f.running = false
	close(f.stopCh)
	done := f.feedDone
	f.mu.Unlock()
	<-done
}

func (f *FakeCapture) Close() {
	f.Stop()
	f.mu.Lock()
	release := !f.isClosed && f.counted
	f.isClosed = true
	f.mu.Unlock()
	if release {
		f.ctx.closed()
	}
}

// Closed reports whether the device handle was released.
func (f *FakeCapture) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.isClosed
}

func samplesToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}
