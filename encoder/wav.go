package encoder

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var ErrNoSamples = errors.New("no samples to encode")

type WAVEncoder struct {
	buf         seekBuffer
	enc         *wav.Encoder
	sampleRate  int
	channels    int
	totalFrames uint64
	encodeTime  time.Duration
	closed      bool
	mu          sync.Mutex
}

func NewWAV(sampleRate, channels int) *WAVEncoder {
	e := &WAVEncoder{sampleRate: sampleRate, channels: channels}
	e.enc = wav.NewEncoder(&e.buf, sampleRate, BitsPerSample, channels, 1)
	return e
}

func (e *WAVEncoder) EncodeBlock(block []int16) error {
	if len(block) == 0 {
		return nil
	}
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return errors.New("wav encoder closed")
	}
	ib := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: e.channels, SampleRate: e.sampleRate},
		Data:           make([]int, len(block)),
		SourceBitDepth: BitsPerSample,
	}
	for i, s := range block {
		ib.Data[i] = int(s)
	}
	if err := e.enc.Write(ib); err != nil {
		return fmt.Errorf("wav write: %w", err)
	}
	e.totalFrames += uint64(len(block) / e.channels)
	e.encodeTime += time.Since(start)
	return nil
}

func (e *WAVEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	if e.totalFrames == 0 {
		return ErrNoSamples
	}
	if err := e.enc.Close(); err != nil {
		return fmt.Errorf("wav close: %w", err)
	}
	return nil
}

func (e *WAVEncoder) Bytes() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buf.Bytes()
}

func (e *WAVEncoder) TotalFrames() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalFrames
}

func (e *WAVEncoder) EncodeTime() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.encodeTime
}

// EncodeWAV encodes interleaved 16-bit samples as a complete WAV file.
func EncodeWAV(samples []int16, sampleRate, channels int) ([]byte, error) {
	return Encode(NewWAV(sampleRate, channels), samples)
}

// PCM is decoded 16-bit audio.
type PCM struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

func (p PCM) Frames() int {
	if p.Channels == 0 {
		return 0
	}
	return len(p.Samples) / p.Channels
}

func (p PCM) Duration() time.Duration {
	if p.SampleRate == 0 {
		return 0
	}
	return time.Duration(p.Frames()) * time.Second / time.Duration(p.SampleRate)
}

func DecodeWAV(data []byte) (PCM, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return PCM{}, errors.New("not a valid wav file")
	}
	ib, err := d.FullPCMBuffer()
	if err != nil {
		return PCM{}, fmt.Errorf("wav decode: %w", err)
	}
	shift := 0
	if d.BitDepth > 16 {
		shift = int(d.BitDepth) - 16
	}
	samples := make([]int16, len(ib.Data))
	for i, v := range ib.Data {
		if d.BitDepth == 8 {
			samples[i] = int16((v - 128) << 8)
			continue
		}
		samples[i] = int16(v >> shift)
	}
	return PCM{Samples: samples, SampleRate: int(d.SampleRate), Channels: int(d.NumChans)}, nil
}

// seekBuffer is an in-memory io.WriteSeeker; the wav encoder seeks back to patch chunk sizes.
type seekBuffer struct {
	data []byte
	pos  int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	end := b.pos + len(p)
	if end > len(b.data) {
		if end > cap(b.data) {
			grown := make([]byte, end, 2*end)
			copy(grown, b.data)
			b.data = grown
		} else {
			b.data = b.data[:end]
		}
	}
	copy(b.data[b.pos:], p)
	b.pos = end
	return len(p), nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(b.pos) + offset
	case io.SeekEnd:
		abs = int64(len(b.data)) + offset
	default:
		return 0, errors.New("seekBuffer: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("seekBuffer: negative position")
	}
	b.pos = int(abs)
	return abs, nil
}

func (b *seekBuffer) Bytes() []byte {
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}
