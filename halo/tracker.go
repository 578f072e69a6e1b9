package halo

import (
	"context"
	"fmt"
	"sync"

	"github.com/notargets/meshloop/mesh"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Tracker is an in-process exchanger for partitions that share an address
// space. It keeps a stale flag per link: a link goes stale when its source is
// marked dirty and is refreshed the next time its target is requested.
// Values a loop writes into halo slots are overwritten by the next exchange.
type Tracker struct {
	mu        sync.Mutex
	links     map[int][]Link // Keyed by target dat ID
	stale     map[Link]bool
	exchanges int
}

// NewTracker creates a Tracker with no links
func NewTracker() *Tracker {
	return &Tracker{
		links: make(map[int][]Link),
		stale: make(map[Link]bool),
	}
}

// AddLinks registers links. New links start stale.
func (t *Tracker) AddLinks(links ...Link) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, l := range links {
		id := l.Target().ID()
		t.links[id] = append(t.links[id], l)
		t.stale[l] = true
	}
}

// Stale reports whether any halo copy of d is out of date
func (t *Tracker) Stale(d mesh.DatHandle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, l := range t.links[d.ID()] {
		if t.stale[l] {
			return true
		}
	}
	return false
}

// Exchanges returns the number of link transfers performed so far
func (t *Tracker) Exchanges() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.exchanges
}

// MarkDirty marks every link sourced from one of dats as stale
func (t *Tracker) MarkDirty(dats []mesh.DatHandle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make(map[int]bool, len(dats))
	for _, d := range dats {
		ids[d.ID()] = true
	}
	for l := range t.stale {
		if ids[l.Source().ID()] {
			t.stale[l] = true
		}
	}
}

// claim returns the stale links targeting dats and clears their flags
func (t *Tracker) claim(dats []mesh.DatHandle) []Link {
	t.mu.Lock()
	defer t.mu.Unlock()
	var todo []Link
	for _, d := range dats {
		for _, l := range t.links[d.ID()] {
			if t.stale[l] {
				t.stale[l] = false
				todo = append(todo, l)
			}
		}
	}
	t.exchanges += len(todo)
	return todo
}

// restore marks links stale again after a failed exchange
func (t *Tracker) restore(links []Link) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, l := range links {
		t.stale[l] = true
	}
}

// EnsureFresh refreshes the stale halo copies of dats
func (t *Tracker) EnsureFresh(ctx context.Context, dats []mesh.DatHandle) error {
	p, err := t.Start(ctx, dats)
	if err != nil {
		return err
	}
	return p.Wait()
}

// Start refreshes the stale halo copies of dats on background goroutines
func (t *Tracker) Start(ctx context.Context, dats []mesh.DatHandle) (Pending, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	todo := t.claim(dats)
	if len(todo) == 0 {
		return Done{}, nil
	}
	log.Debugf("halo: exchanging %d links", len(todo))

	g, gctx := errgroup.WithContext(ctx)
	for _, l := range todo {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := l.Exchange(); err != nil {
				return fmt.Errorf("halo exchange into %q: %w", l.Target().Name(), err)
			}
			return nil
		})
	}
	return &pending{group: g, onError: func() { t.restore(todo) }}, nil
}

type pending struct {
	group   *errgroup.Group
	onError func()
	once    sync.Once
	err     error
}

func (p *pending) Wait() error {
	p.once.Do(func() {
		p.err = p.group.Wait()
		if p.err != nil {
			p.onError()
		}
	})
	return p.err
}
