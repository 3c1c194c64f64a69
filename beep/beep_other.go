//go:build !linux && !darwin

package beep

// No audio playback on this platform - cues are silent.
func playSamples([]int16) {}
