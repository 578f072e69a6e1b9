package mesh

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// DatHandle is the type-erased view of a Dat used by the plan and executor core
type DatHandle interface {
	ID() int
	Name() string
	Set() *Set
	Dim() int
	ElemSize() int64
	DataType() DataType
	IsTemp() bool
	Released() bool
}

// Dat is a fixed-dimension array of per-element values attached to a Set.
// Element i occupies Data()[i*Dim() : (i+1)*Dim()]; halo entries follow the
// owned range.
type Dat[T Number] struct {
	id   int
	name string
	set  *Set
	dim  int
	temp bool

	data     []T
	alloc    sync.Once
	released atomic.Bool
}

func newDat[T Number](id int, set *Set, dim int, name string, data []T, temp bool) (*Dat[T], error) {
	if set == nil {
		return nil, fmt.Errorf("dat %q: nil set", name)
	}
	if dim <= 0 {
		return nil, fmt.Errorf("dat %q: dim must be positive, got %d", name, dim)
	}
	full := set.Extent() * dim
	switch len(data) {
	case 0, full:
	case set.size * dim:
		// Owned values only; pad the halo region with zeros
		padded := make([]T, full)
		copy(padded, data)
		data = padded
	default:
		return nil, fmt.Errorf("dat %q: data length %d, expected %d or %d for %s with dim %d",
			name, len(data), set.size*dim, full, set.name, dim)
	}
	d := &Dat[T]{
		id:   id,
		name: name,
		set:  set,
		dim:  dim,
		temp: temp,
	}
	if len(data) == full && full > 0 {
		d.data = data
		d.alloc.Do(func() {})
	}
	return d, nil
}

// Data returns the backing storage. Temporaries are zero-filled on first use.
func (d *Dat[T]) Data() []T {
	d.alloc.Do(func() {
		d.data = make([]T, d.set.Extent()*d.dim)
	})
	return d.data
}

// Elem returns the dim values of element i
func (d *Dat[T]) Elem(i int) []T {
	data := d.Data()
	return data[i*d.dim : (i+1)*d.dim]
}

// Owned returns the values of the owned range, excluding the halo
func (d *Dat[T]) Owned() []T {
	return d.Data()[:d.set.size*d.dim]
}

func (d *Dat[T]) ID() int            { return d.id }
func (d *Dat[T]) Name() string       { return d.name }
func (d *Dat[T]) Set() *Set          { return d.set }
func (d *Dat[T]) Dim() int           { return d.dim }
func (d *Dat[T]) ElemSize() int64    { return SizeOfType(DataTypeOf[T]()) }
func (d *Dat[T]) DataType() DataType { return DataTypeOf[T]() }
func (d *Dat[T]) IsTemp() bool       { return d.temp }
func (d *Dat[T]) Released() bool     { return d.released.Load() }

func (d *Dat[T]) String() string {
	kind := "dat"
	if d.temp {
		kind = "temp"
	}
	return fmt.Sprintf("%s %s on %s (dim %d, %s)", kind, d.name, d.set.name, d.dim, d.DataType())
}
