// File: runner/kernel_arguments.go

package runner

import (
	"fmt"

	"github.com/notargets/meshloop/mesh"
	"github.com/notargets/meshloop/partitions"
	"github.com/notargets/meshloop/runner/builder"
)

// Arg is one argument of a loop, created with ArgDat, ArgDirect or ArgGbl.
// An Arg belongs to a single ParLoop call.
type Arg interface {
	Spec() builder.ArgSpec

	prepare(ex *execution, pos int) error
	stage(blk *partitions.Block)
	finish(blk *partitions.Block)
	complete()
}

// DatArg is a dat argument, direct or addressed through a map
type DatArg[T mesh.Number] struct {
	dat    *mesh.Dat[T]
	m      *mesh.Map
	idx    int
	access builder.Access

	// Bound per execution
	ex      *execution
	data    []T
	dim     int
	arity   int
	ind     int
	locMap  []int32
	owner   *DatArg[T] // Argument staging the shared indirect dataset
	scratch [][]T      // Per block staging buffers, owner only
}

// ArgDat addresses dat through entry idx of map m, or through all entries
// of m when idx is All. A nil map with idx Direct is a direct argument.
func ArgDat[T mesh.Number](dat *mesh.Dat[T], idx int, m *mesh.Map, access builder.Access) *DatArg[T] {
	return &DatArg[T]{dat: dat, m: m, idx: idx, access: access}
}

// ArgDirect addresses dat by the loop element itself
func ArgDirect[T mesh.Number](dat *mesh.Dat[T], access builder.Access) *DatArg[T] {
	return ArgDat(dat, Direct, nil, access)
}

func (a *DatArg[T]) Spec() builder.ArgSpec {
	if a == nil {
		return builder.ArgSpec{Idx: Direct}
	}
	spec := builder.ArgSpec{
		Map:      a.m,
		Idx:      a.idx,
		Access:   a.access,
		DataType: mesh.DataTypeOf[T](),
	}
	if a.dat != nil {
		spec.Dat = a.dat
		spec.Dim = a.dat.Dim()
	}
	return spec
}

// Dat returns the dat of the argument
func (a *DatArg[T]) Dat() *mesh.Dat[T] { return a.dat }

func (a *DatArg[T]) prepare(ex *execution, pos int) error {
	a.ex = ex
	a.dim = a.dat.Dim()
	a.data = a.dat.Data()
	a.ind = ex.plan.ArgInd[pos]
	a.arity = 1
	if a.ind < 0 {
		return nil
	}
	if a.idx == All {
		a.arity = a.m.Arity()
	}
	a.locMap = ex.plan.LocMap[pos]

	first := ex.plan.Inds[a.ind].Args[0]
	owner, ok := ex.args[first].(*DatArg[T])
	if !ok {
		return fmt.Errorf("%w: argument %d shares dat %q with an argument of another type",
			ErrConfig, pos, a.dat.Name())
	}
	a.owner = owner
	if owner == a {
		a.scratch = make([][]T, ex.plan.NumBlocks())
	}
	return nil
}

// View returns the values of the argument for the current element. For a
// vector argument it returns the first map entry; use Vec for the others.
func (a *DatArg[T]) View(it *Iter) []T {
	if a.ind < 0 {
		return a.data[it.Elem*a.dim : (it.Elem+1)*a.dim]
	}
	return a.Vec(it, 0)
}

// Vec returns the values reached through map entry j of the current element
func (a *DatArg[T]) Vec(it *Iter, j int) []T {
	slot := int(a.locMap[it.Elem*a.arity+j])
	buf := a.owner.scratch[it.Block]
	return buf[slot*a.dim : (slot+1)*a.dim]
}

func (a *DatArg[T]) stage(blk *partitions.Block) {
	if a.ind < 0 || a.owner != a {
		return
	}
	targets := a.ex.plan.BlockTargets(blk.ID, a.ind)
	buf := getScratch[T](a.ex.pools, len(targets)*a.dim)
	if a.access == Inc {
		clear(buf)
	} else {
		gather(buf, a.data, targets, a.dim)
	}
	a.scratch[blk.ID] = buf
}

func (a *DatArg[T]) finish(blk *partitions.Block) {
	if a.ind < 0 || a.owner != a {
		return
	}
	buf := a.scratch[blk.ID]
	targets := a.ex.plan.BlockTargets(blk.ID, a.ind)
	switch a.access {
	case Write, RW:
		scatter(a.data, buf, targets, a.dim)
	case Inc:
		scatterAdd(a.data, buf, targets, a.dim)
	}
	a.scratch[blk.ID] = nil
	putScratch(a.ex.pools, buf)
}

func (a *DatArg[T]) complete() {
	a.ex = nil
	a.scratch = nil
}

// GblArg is a global argument: a constant shared by all elements, or a
// reduction folded into the caller's slice when the loop completes
type GblArg[T mesh.Number] struct {
	values []T
	access builder.Access

	partial [][]T // Per block accumulators
	blocks  []partitions.Block
}

// ArgGbl passes values to every kernel invocation. With Inc, Min or Max the
// loop overwrites values with the reduced result.
func ArgGbl[T mesh.Number](values []T, access builder.Access) *GblArg[T] {
	return &GblArg[T]{values: values, access: access}
}

func (g *GblArg[T]) Spec() builder.ArgSpec {
	if g == nil {
		return builder.ArgSpec{Idx: Direct, Global: true}
	}
	return builder.ArgSpec{
		Idx:      Direct,
		Access:   g.access,
		Dim:      len(g.values),
		DataType: mesh.DataTypeOf[T](),
		Global:   true,
	}
}

// Values returns the caller's slice
func (g *GblArg[T]) Values() []T { return g.values }

func (g *GblArg[T]) prepare(ex *execution, _ int) error {
	if g.access == Read {
		return nil
	}
	dim := len(g.values)
	nb := ex.plan.NumBlocks()
	acc := make([]T, nb*dim)
	fillIdentity(acc, g.access)
	g.blocks = ex.plan.Blocks
	g.partial = make([][]T, nb)
	for b := range g.partial {
		g.partial[b] = acc[b*dim : (b+1)*dim]
	}
	return nil
}

// View returns the shared values, or for a reduction the accumulator of the
// current block
func (g *GblArg[T]) View(it *Iter) []T {
	if g.access == Read {
		return g.values
	}
	return g.partial[it.Block]
}

func (g *GblArg[T]) stage(*partitions.Block)  {}
func (g *GblArg[T]) finish(*partitions.Block) {}

func (g *GblArg[T]) complete() {
	if g.access == Read {
		return
	}
	result := make([]T, len(g.values))
	fillIdentity(result, g.access)
	// Exec halo blocks repeat work owned by another partition
	for b, p := range g.partial {
		if !g.blocks[b].Exec {
			combine(result, p, g.access)
		}
	}
	copy(g.values, result)
	g.partial = nil
	g.blocks = nil
}
