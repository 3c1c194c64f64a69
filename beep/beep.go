package beep

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"murmur/encoder"
	"murmur/log"
)

var disabled atomic.Bool

// Disable silences every Player in the process (headless test mode).
func Disable() { disabled.Store(true) }

const (
	sampleRate = 44100

	// Start cue: high pitch
	startFreq   = 800
	startVolume = 0.5
	startDecay  = 20

	// Stop cue: low pitch
	stopFreq   = 400
	stopVolume = 0.5
	stopDecay  = 20

	// Error cue: low double-beep
	errorFreq   = 350
	errorVolume = 0.6
	errorDecay  = 30

	cueDuration = 0.1

	StartFile = "start.wav"
	StopFile  = "end.wav"
)

// Player plays the start/stop/error cues. Every Play call returns immediately.
type Player struct {
	enabled atomic.Bool
	play    func([]int16)

	mu    sync.RWMutex
	start []int16
	stop  []int16
	fail  []int16
}

// New builds a Player using synthesized tones, replaced by start.wav / end.wav
// from dir when present.
func New(enabled bool, dir string) *Player {
	p := &Player{play: playSamples}
	p.Configure(enabled, dir)
	return p
}

func (p *Player) Configure(enabled bool, dir string) {
	start := Tone(startFreq, cueDuration, startVolume, startDecay)
	stop := Tone(stopFreq, cueDuration, stopVolume, stopDecay)
	fail := DoubleBeep(errorFreq, 0.08, 0.05, errorVolume, errorDecay)

	if dir != "" {
		if s, err := LoadCue(filepath.Join(dir, StartFile)); err == nil {
			start = s
		} else if !errors.Is(err, fs.ErrNotExist) {
			log.Warnf("start cue override: %v", err)
		}
		if s, err := LoadCue(filepath.Join(dir, StopFile)); err == nil {
			stop = s
		} else if !errors.Is(err, fs.ErrNotExist) {
			log.Warnf("stop cue override: %v", err)
		}
	}

	p.mu.Lock()
	p.start, p.stop, p.fail = start, stop, fail
	p.mu.Unlock()
	p.enabled.Store(enabled)
}

func (p *Player) PlayStart() { p.fire(func() []int16 { return p.start }) }
func (p *Player) PlayStop()  { p.fire(func() []int16 { return p.stop }) }
func (p *Player) PlayError() { p.fire(func() []int16 { return p.fail }) }

func (p *Player) fire(pick func() []int16) {
	if disabled.Load() || !p.enabled.Load() {
		return
	}
	p.mu.RLock()
	samples := pick()
	p.mu.RUnlock()
	go p.play(samples)
}

// Tone synthesizes a decaying sine tick as mono samples at the playback rate.
func Tone(freq, duration, volume, decay float64) []int16 {
	n := int(float64(sampleRate) * duration)
	samples := make([]int16, n)
	for i := range samples {
		t := float64(i) / float64(sampleRate)
		envelope := math.Exp(-t * decay)
		samples[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return samples
}

func DoubleBeep(freq, beepDur, gapDur, volume, decay float64) []int16 {
	beep := Tone(freq, beepDur, volume, decay)
	gap := make([]int16, int(float64(sampleRate)*gapDur))
	result := make([]int16, 0, len(beep)*2+len(gap))
	result = append(result, beep...)
	result = append(result, gap...)
	result = append(result, beep...)
	return result
}

// LoadCue decodes a WAV file into mono samples at the playback rate.
func LoadCue(path string) ([]int16, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pcm, err := encoder.DecodeWAV(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if pcm.Frames() == 0 {
		return nil, fmt.Errorf("%s: empty", filepath.Base(path))
	}
	return resample(downmix(pcm.Samples, pcm.Channels), pcm.SampleRate, sampleRate), nil
}

func downmix(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}
	out := make([]int16, len(samples)/channels)
	for i := range out {
		var sum int
		for c := 0; c < channels; c++ {
			sum += int(samples[i*channels+c])
		}
		out[i] = int16(sum / channels)
	}
	return out
}

// resample converts between rates with linear interpolation; good enough for short cues.
func resample(samples []int16, from, to int) []int16 {
	if from == to || from <= 0 || len(samples) == 0 {
		return samples
	}
	n := int(int64(len(samples)) * int64(to) / int64(from))
	out := make([]int16, n)
	step := float64(from) / float64(to)
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		if j >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := pos - float64(j)
		out[i] = int16(float64(samples[j])*(1-frac) + float64(samples[j+1])*frac)
	}
	return out
}
