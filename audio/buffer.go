package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

// ChunkFrames is the number of frames per storage chunk.
const ChunkFrames = 1024

// Buffer accumulates one capture session's PCM and owns its device handle
// until Close or Abort.
type Buffer struct {
	mu         sync.Mutex
	dev        CaptureDevice
	sampleRate int
	channels   int
	chunks     [][]int16
	samples    int
	frames     int
	levels     *levelRing
	closed     bool
	closeOnce  sync.Once
}

// Open acquires a capture device and starts streaming into a new Buffer.
// Any failure is reported as ErrDeviceUnavailable and leaves no device open.
func Open(ctx Context, device *DeviceInfo, cfg CaptureConfig) (*Buffer, error) {
	if cfg.SampleRate == 0 || cfg.Channels == 0 {
		return nil, fmt.Errorf("invalid capture config: %d Hz, %d channels", cfg.SampleRate, cfg.Channels)
	}
	dev, err := ctx.NewCapture(device, cfg)
	if err != nil {
		return nil, wrapUnavailable(err)
	}
	b := NewBuffer(int(cfg.SampleRate), int(cfg.Channels))
	b.dev = dev
	dev.SetCallback(b.PushFrame)
	if err := dev.Start(); err != nil {
		dev.ClearCallback()
		dev.Close()
		return nil, wrapUnavailable(err)
	}
	return b, nil
}

// NewBuffer returns a Buffer with no device attached; samples arrive via PushFrame.
func NewBuffer(sampleRate, channels int) *Buffer {
	return &Buffer{
		sampleRate: sampleRate,
		channels:   channels,
		levels:     newLevelRing(sampleRate, channels),
	}
}

func wrapUnavailable(err error) error {
	if errors.Is(err, ErrDeviceUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
}

// PushFrame appends interleaved int16 LE samples. Safe to call from the capture goroutine.
func (b *Buffer) PushFrame(data []byte, frameCount uint32) {
	n := len(data) / 2
	if n == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	chunkLen := ChunkFrames * b.channels
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(data[i*2:]))
		last := len(b.chunks) - 1
		if last < 0 || len(b.chunks[last]) == chunkLen {
			b.chunks = append(b.chunks, make([]int16, 0, chunkLen))
			last++
		}
		b.chunks[last] = append(b.chunks[last], s)
		b.levels.add(s)
	}
	b.samples += n
	b.frames = b.samples / b.channels
}

// AmplitudeWindow returns RMS levels (0..1) covering the last window of audio,
// oldest first. The result is a fresh copy.
func (b *Buffer) AmplitudeWindow(window time.Duration) []float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.levels.last(window)
}

func (b *Buffer) Frames() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frames
}

func (b *Buffer) Duration() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.duration()
}

func (b *Buffer) duration() time.Duration {
	if b.sampleRate == 0 {
		return 0
	}
	return time.Duration(b.frames) * time.Second / time.Duration(b.sampleRate)
}

func (b *Buffer) SampleRate() int { return b.sampleRate }
func (b *Buffer) Channels() int   { return b.channels }

func (b *Buffer) DeviceName() string {
	if b.dev == nil {
		return ""
	}
	return b.dev.DeviceName()
}

// Close releases the device and returns the captured samples. Subsequent calls return nil.
func (b *Buffer) Close() []int16 {
	var out []int16
	b.closeOnce.Do(func() {
		b.release()
		b.mu.Lock()
		defer b.mu.Unlock()
		b.closed = true
		out = make([]int16, 0, b.samples)
		for _, c := range b.chunks {
			out = append(out, c...)
		}
		b.chunks = nil
	})
	return out
}

// Abort releases the device and discards everything captured.
func (b *Buffer) Abort() {
	b.closeOnce.Do(func() {
		b.release()
		b.mu.Lock()
		defer b.mu.Unlock()
		b.closed = true
		b.chunks = nil
	})
}

func (b *Buffer) release() {
	if b.dev == nil {
		return
	}
	b.dev.Stop()
	b.dev.ClearCallback()
	b.dev.Close()
}

// RMS returns the normalized root mean square of int16 samples.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		f := float64(s) / 32768.0
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(samples)))
}
