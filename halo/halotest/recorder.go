// Package halotest provides an exchanger that records the calls made on it
package halotest

import (
	"context"
	"sync"

	"github.com/notargets/meshloop/halo"
	"github.com/notargets/meshloop/mesh"
)

// Recorder logs every exchanger call as an event string: "fresh:<dat>",
// "start:<dat>", "wait" or "dirty:<dat>". Note adds caller events, so a
// kernel can interleave its own markers.
type Recorder struct {
	mu     sync.Mutex
	events []string

	// Err is returned by EnsureFresh, Start and Wait when set
	Err error
}

// NewRecorder creates a Recorder
func NewRecorder() *Recorder { return &Recorder{} }

// Note appends a caller event
func (r *Recorder) Note(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *Recorder) noteDats(prefix string, dats []mesh.DatHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range dats {
		r.events = append(r.events, prefix+d.Name())
	}
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// Reset forgets all events
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func (r *Recorder) EnsureFresh(_ context.Context, dats []mesh.DatHandle) error {
	r.noteDats("fresh:", dats)
	return r.Err
}

func (r *Recorder) MarkDirty(dats []mesh.DatHandle) {
	r.noteDats("dirty:", dats)
}

// SplitRecorder is a Recorder that also implements halo.Starter
type SplitRecorder struct {
	*Recorder
}

// NewSplitRecorder creates a SplitRecorder
func NewSplitRecorder() *SplitRecorder { return &SplitRecorder{Recorder: NewRecorder()} }

func (s *SplitRecorder) Start(_ context.Context, dats []mesh.DatHandle) (halo.Pending, error) {
	s.noteDats("start:", dats)
	return waiter{s.Recorder}, nil
}

type waiter struct{ r *Recorder }

func (w waiter) Wait() error {
	w.r.Note("wait")
	return w.r.Err
}

var (
	_ halo.Exchanger = (*Recorder)(nil)
	_ halo.Starter   = (*SplitRecorder)(nil)
)
