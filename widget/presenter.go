package widget

import (
	"context"

	"murmur/config"
	"murmur/health"
	"murmur/recorder"
)

type Renderer interface {
	Render(State)
}

type RendererFunc func(State)

func (f RendererFunc) Render(s State) { f(s) }

type Discard struct{}

func (Discard) Render(State) {}

type HealthSource interface {
	Status() health.Status
	Subscribe() <-chan health.Status
}

// Presenter forwards projected states to a renderer. Publish never blocks:
// a snapshot that has not been drawn yet is replaced by a newer one.
type Presenter struct {
	health   HealthSource
	config   config.Source
	renderer Renderer

	mailbox chan recorder.Snapshot
	refresh chan struct{}
}

func NewPresenter(h HealthSource, cfg config.Source, r Renderer) *Presenter {
	return &Presenter{
		health:   h,
		config:   cfg,
		renderer: r,
		mailbox:  make(chan recorder.Snapshot, 1),
		refresh:  make(chan struct{}, 1),
	}
}

// Publish is suitable as recorder.Deps.Observe.
func (p *Presenter) Publish(s recorder.Snapshot) {
	for {
		select {
		case p.mailbox <- s:
			return
		default:
		}
		select {
		case <-p.mailbox:
		default:
		}
	}
}

// Refresh redraws the last snapshot, for example after a config change.
func (p *Presenter) Refresh() {
	select {
	case p.refresh <- struct{}{}:
	default:
	}
}

func (p *Presenter) Run(ctx context.Context) {
	var last recorder.Snapshot
	healthCh := p.health.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case last = <-p.mailbox:
		case <-healthCh:
		case <-p.refresh:
		}
		p.renderer.Render(Project(last, p.health.Status(), p.config.Snapshot().Widget))
	}
}
