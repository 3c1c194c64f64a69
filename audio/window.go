package audio

import (
	"math"
	"time"
)

const (
	// LevelPeriod is the span of audio summarized by one amplitude level.
	LevelPeriod = 20 * time.Millisecond
	// MaxWindow bounds how much amplitude history is retained.
	MaxWindow = 10 * time.Second
)

// levelRing keeps one RMS level per LevelPeriod in a fixed ring; older levels are overwritten.
type levelRing struct {
	levels  []float64
	head    int
	count   int
	per     int
	sumSq   float64
	pending int
}

func newLevelRing(sampleRate, channels int) *levelRing {
	per := max(sampleRate*channels*int(LevelPeriod/time.Millisecond)/1000, 1)
	return &levelRing{
		levels: make([]float64, int(MaxWindow/LevelPeriod)),
		per:    per,
	}
}

// add folds one sample in. Channels are averaged together, which is fine for a meter.
func (r *levelRing) add(s int16) {
	f := float64(s) / 32768.0
	r.sumSq += f * f
	r.pending++
	if r.pending < r.per {
		return
	}
	r.levels[r.head] = math.Sqrt(r.sumSq / float64(r.pending))
	r.head = (r.head + 1) % len(r.levels)
	if r.count < len(r.levels) {
		r.count++
	}
	r.sumSq = 0
	r.pending = 0
}

func (r *levelRing) last(window time.Duration) []float64 {
	n := int(window / LevelPeriod)
	if n > r.count {
		n = r.count
	}
	if n <= 0 {
		return []float64{}
	}
	out := make([]float64, n)
	start := (r.head - n + len(r.levels)) % len(r.levels)
	for i := range out {
		out[i] = r.levels[(start+i)%len(r.levels)]
	}
	return out
}
