//go:build gui

package overlay

import (
	"fmt"
	"image/color"
	"strconv"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	view "murmur/widget"
)

var (
	panelFill    = color.RGBA{30, 30, 30, 255}
	panelOutline = color.RGBA{58, 58, 58, 255}
	dotFill      = color.RGBA{255, 255, 255, 255}
	dotOutline   = color.RGBA{224, 224, 224, 255}
)

const (
	indicatorWidth = 3
	waveStartX     = 70
	waveMaxHeight  = 20
)

func hexColor(s string) color.Color {
	if len(s) != 7 || s[0] != '#' {
		return color.White
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return color.White
	}
	return color.RGBA{uint8(v >> 16), uint8(v >> 8), uint8(v), 255}
}

// Indicator draws a projected widget.State: a status dot when minimal, a bar
// with timer and waveform when expanded.
type Indicator struct {
	widget.BaseWidget
	mu sync.Mutex
	st view.State

	onDrag    func(dx, dy float32)
	onDragEnd func()
}

func NewIndicator() *Indicator {
	i := &Indicator{st: view.State{Visible: true}}
	i.ExtendBaseWidget(i)
	return i
}

func (i *Indicator) state() view.State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.st
}

// SetState must be called on the fyne goroutine.
func (i *Indicator) SetState(s view.State) {
	i.mu.Lock()
	i.st = s
	i.mu.Unlock()
	i.Refresh()
}

func (i *Indicator) MinSize() fyne.Size {
	st := i.state()
	return fyne.NewSize(float32(st.Width()), float32(st.Height()))
}

// Dragged and DragEnd implement fyne.Draggable. Only the minimal dot moves.
func (i *Indicator) Dragged(e *fyne.DragEvent) {
	if i.state().Mode != view.Minimal || i.onDrag == nil {
		return
	}
	i.onDrag(e.Dragged.DX, e.Dragged.DY)
}

func (i *Indicator) DragEnd() {
	if i.onDragEnd != nil {
		i.onDragEnd()
	}
}

func (i *Indicator) CreateRenderer() fyne.WidgetRenderer {
	r := &indicatorRenderer{
		ind:    i,
		ring:   canvas.NewCircle(dotFill),
		status: canvas.NewCircle(hexColor(view.ColorGreen)),
		panel:  canvas.NewRectangle(panelFill),
		edge:   canvas.NewRectangle(hexColor(view.ColorGreen)),
		timer:  canvas.NewText("00:00", color.White),
	}
	r.ring.StrokeColor = dotOutline
	r.ring.StrokeWidth = 2
	r.panel.StrokeColor = panelOutline
	r.panel.StrokeWidth = 1
	r.timer.TextSize = 11
	for n := range r.bars {
		r.bars[n] = canvas.NewRectangle(hexColor(view.ColorGreen))
	}
	return r
}

type indicatorRenderer struct {
	ind    *Indicator
	ring   *canvas.Circle
	status *canvas.Circle
	panel  *canvas.Rectangle
	edge   *canvas.Rectangle
	timer  *canvas.Text
	bars   [view.Levels]*canvas.Rectangle
}

func (r *indicatorRenderer) Layout(size fyne.Size) {
	st := r.ind.state()
	if st.Mode == view.Minimal {
		r.ring.Move(fyne.NewPos(4, 4))
		r.ring.Resize(fyne.NewSize(size.Width-8, size.Height-8))
		inner := size.Width / 3
		r.status.Move(fyne.NewPos((size.Width-inner)/2, (size.Height-inner)/2))
		r.status.Resize(fyne.NewSize(inner, inner))
		return
	}

	r.panel.Move(fyne.NewPos(0, 0))
	r.panel.Resize(size)
	r.edge.Move(fyne.NewPos(0, 0))
	r.edge.Resize(fyne.NewSize(indicatorWidth, size.Height))
	r.timer.Move(fyne.NewPos(15, size.Height/2-r.timer.MinSize().Height/2))

	centerY := size.Height / 2
	width := size.Width - waveStartX - 10
	barW := max(width/float32(view.Levels), 1)
	for n, bar := range r.bars {
		h := float32(0)
		if n < len(st.Waveform) {
			h = float32(st.Waveform[n]) * waveMaxHeight
		}
		bar.Move(fyne.NewPos(waveStartX+float32(n)*barW, centerY-h))
		bar.Resize(fyne.NewSize(max(barW-1, 1), 2*h))
	}
}

func (r *indicatorRenderer) MinSize() fyne.Size {
	return r.ind.MinSize()
}

func (r *indicatorRenderer) Refresh() {
	st := r.ind.state()
	c := hexColor(st.Status.Color())
	r.status.FillColor = c
	r.edge.FillColor = c
	for _, bar := range r.bars {
		bar.FillColor = c
	}
	secs := int(st.Elapsed.Seconds())
	r.timer.Text = fmt.Sprintf("%02d:%02d", secs/60, secs%60)

	expanded := st.Mode == view.Expanded
	for _, o := range []fyne.CanvasObject{r.ring, r.status} {
		o.Show()
		if expanded {
			o.Hide()
		}
	}
	for _, o := range r.expandedObjects() {
		o.Hide()
		if expanded {
			o.Show()
		}
	}

	r.Layout(r.ind.Size())
	for _, o := range r.Objects() {
		o.Refresh()
	}
}

func (r *indicatorRenderer) expandedObjects() []fyne.CanvasObject {
	objs := []fyne.CanvasObject{r.panel, r.edge, r.timer}
	for _, b := range r.bars {
		objs = append(objs, b)
	}
	return objs
}

func (r *indicatorRenderer) Objects() []fyne.CanvasObject {
	return append([]fyne.CanvasObject{r.ring, r.status}, r.expandedObjects()...)
}

func (r *indicatorRenderer) Destroy() {}
