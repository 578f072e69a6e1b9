// File: runner/kernel_execution.go

package runner

import (
	"context"
	"fmt"

	"github.com/notargets/meshloop/halo"
	"github.com/notargets/meshloop/mesh"
	"github.com/notargets/meshloop/partitions"
	"golang.org/x/sync/errgroup"
)

// execution is the state of one ParLoop call
type execution struct {
	loop    string
	plan    *partitions.Plan
	args    []Arg
	kernel  Kernel
	workers int
	pools   *scratchPools
	started bool // A color has begun, dats may be partially written
}

func (ex *execution) bind() error {
	for pos, a := range ex.args {
		if err := a.prepare(ex, pos); err != nil {
			return err
		}
	}
	return nil
}

// run executes the colors in order, overlapping the halo exchange of the
// read dats with the core colors when the exchanger supports it
func (ex *execution) run(ctx context.Context, exchanger halo.Exchanger, reads []mesh.DatHandle) error {
	plan := ex.plan
	var pending halo.Pending

	starter, split := exchanger.(halo.Starter)
	switch {
	case len(reads) == 0:
	case split:
		p, err := starter.Start(ctx, reads)
		if err != nil {
			return fmt.Errorf("halo exchange: %w", err)
		}
		pending = p
	default:
		if err := exchanger.EnsureFresh(ctx, reads); err != nil {
			return fmt.Errorf("halo exchange: %w", err)
		}
	}

	wait := func() error {
		if pending == nil {
			return nil
		}
		p := pending
		pending = nil
		if err := p.Wait(); err != nil {
			return fmt.Errorf("halo exchange: %w", err)
		}
		return nil
	}

	for c := 0; c < plan.NColors; c++ {
		if c == plan.NColorsCore {
			if err := wait(); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			_ = wait()
			return err
		}
		ex.started = true
		if err := ex.runColor(ctx, c); err != nil {
			_ = wait()
			return err
		}
	}
	return wait()
}

// runColor executes the blocks of one color concurrently
func (ex *execution) runColor(ctx context.Context, c int) error {
	blocks := ex.plan.BlocksOfColor(c)
	if ex.workers == 1 || len(blocks) == 1 {
		for _, b := range blocks {
			if err := ex.runBlock(b); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ex.workers)
	for _, b := range blocks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return ex.runBlock(b)
		})
	}
	return g.Wait()
}

// runBlock stages the block's indirect data, runs the kernel over its
// elements in order and writes the results back
func (ex *execution) runBlock(b int) (err error) {
	blk := &ex.plan.Blocks[b]
	it := Iter{Block: b, Elem: blk.Offset}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: block %d, element %d: %v", ErrKernel, b, it.Elem, r)
		}
	}()

	for _, a := range ex.args {
		a.stage(blk)
	}
	end := blk.Offset + blk.NumElements
	for e := blk.Offset; e < end; e++ {
		it.Elem = e
		ex.kernel(&it)
	}
	for _, a := range ex.args {
		a.finish(blk)
	}
	return nil
}

func (ex *execution) complete() {
	for _, a := range ex.args {
		a.complete()
	}
}
