// Package widget turns controller snapshots into what the floating
// indicator shows. Project is pure; renderers only draw its output.
package widget

import (
	"time"

	"murmur/config"
	"murmur/health"
	"murmur/recorder"
)

const (
	MinimalSize    = 48
	ExpandedWidth  = 240
	ExpandedHeight = 80
	Levels         = 50

	ColorGreen = "#10B981"
	ColorRed   = "#EF4444"
)

type Mode int

const (
	Minimal Mode = iota
	Expanded
)

func (m Mode) String() string {
	if m == Expanded {
		return "expanded"
	}
	return "minimal"
}

type Status int

const (
	Green Status = iota
	Red
)

func (s Status) Color() string {
	if s == Red {
		return ColorRed
	}
	return ColorGreen
}

type State struct {
	Mode     Mode
	Status   Status
	X, Y     int
	Visible  bool
	Waveform []float64
	Elapsed  time.Duration
	Label    string
	Reason   string
}

// Width and Height are the widget's size in pixels.
func (s State) Width() int {
	if s.Mode == Expanded {
		return ExpandedWidth
	}
	return MinimalSize
}

func (s State) Height() int {
	if s.Mode == Expanded {
		return ExpandedHeight
	}
	return MinimalSize
}

// Project derives the widget state. It never mutates its inputs.
func Project(snap recorder.Snapshot, h health.Status, view config.Widget) State {
	st := State{
		Mode:    Minimal,
		Status:  Green,
		X:       view.X,
		Y:       view.Y,
		Visible: view.Visible,
		Label:   snap.Label(),
	}

	switch {
	case snap.State == recorder.Error:
		st.Status = Red
		st.Reason = string(snap.ErrorKind)
	case !h.OK():
		st.Status = Red
		st.Reason = h.Reason
	}

	if snap.State == recorder.Recording {
		st.Mode = Expanded
		st.Visible = true
		st.Elapsed = snap.Elapsed
		st.Waveform = waveform(snap.Levels)
	}
	return st
}

// waveform right-aligns the newest Levels values, clamped to [0, 1].
func waveform(levels []float64) []float64 {
	out := make([]float64, Levels)
	if len(levels) > Levels {
		levels = levels[len(levels)-Levels:]
	}
	off := Levels - len(levels)
	for i, l := range levels {
		out[off+i] = min(max(l, 0), 1)
	}
	return out
}
