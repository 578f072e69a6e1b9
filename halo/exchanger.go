package halo

import (
	"context"

	"github.com/notargets/meshloop/mesh"
)

// Exchanger keeps the halo copies of dats consistent with their owners.
// EnsureFresh must bring every listed dat's halo up to date before it
// returns; MarkDirty tells the exchanger the owned values of the listed dats
// changed.
type Exchanger interface {
	EnsureFresh(ctx context.Context, dats []mesh.DatHandle) error
	MarkDirty(dats []mesh.DatHandle)
}

// Starter is implemented by exchangers that can overlap the exchange with
// execution of the core blocks of a loop
type Starter interface {
	Start(ctx context.Context, dats []mesh.DatHandle) (Pending, error)
}

// Pending is an exchange in flight
type Pending interface {
	Wait() error
}

// Noop is the exchanger of a single, unpartitioned process
type Noop struct{}

func (Noop) EnsureFresh(context.Context, []mesh.DatHandle) error { return nil }
func (Noop) MarkDirty([]mesh.DatHandle)                           {}

// Done is a Pending that has already completed with Err
type Done struct{ Err error }

func (d Done) Wait() error { return d.Err }
