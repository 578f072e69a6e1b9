// runner/types.go
package runner

import (
	"errors"

	"github.com/notargets/meshloop/runner/builder"
)

var (
	// ErrConfig marks loops rejected before execution
	ErrConfig = builder.ErrConfig
	// ErrKernel marks a kernel that panicked
	ErrKernel = errors.New("kernel failed")
)

// Access modes and map index sentinels, re-exported for loop call sites
const (
	Read  = builder.Read
	Write = builder.Write
	RW    = builder.RW
	Inc   = builder.Inc
	Min   = builder.Min
	Max   = builder.Max

	Direct = builder.Direct
	All    = builder.All
)

// Iter identifies the element a kernel invocation works on
type Iter struct {
	Elem  int // Element of the loop set
	Block int // Block the element belongs to
}

// Kernel is the per-element computation of a loop. It reaches its data
// through the views of the loop arguments.
type Kernel func(it *Iter)
