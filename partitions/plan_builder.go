package partitions

import (
	"fmt"
	"sort"

	"github.com/bits-and-blooms/bitset"
	"github.com/notargets/meshloop/mesh"
	"github.com/notargets/meshloop/runner/builder"
)

// ErrConfig is returned for loops whose arguments cannot be planned
var ErrConfig = builder.ErrConfig

// PlanBuilder constructs an execution plan from a loop's set and arguments
type PlanBuilder struct {
	Loop     string
	Set      *mesh.Set
	Args     []builder.ArgSpec
	PartSize int // Maximum elements per block
}

// Build is shorthand for constructing a PlanBuilder and calling BuildPlan
func Build(loop string, set *mesh.Set, partSize int, args []builder.ArgSpec) (*Plan, error) {
	pb := &PlanBuilder{
		Loop:     loop,
		Set:      set,
		Args:     args,
		PartSize: partSize,
	}
	return pb.BuildPlan()
}

// BuildPlan blocks, colors and indexes the loop. An empty set yields a plan
// with no blocks and no colors.
func (pb *PlanBuilder) BuildPlan() (*Plan, error) {
	if err := pb.validate(); err != nil {
		return nil, fmt.Errorf("loop %q: %w", pb.Loop, err)
	}

	inds, argInd, err := pb.groupIndirectArgs()
	if err != nil {
		return nil, fmt.Errorf("loop %q: %w", pb.Loop, err)
	}

	plan := &Plan{
		Loop:     pb.Loop,
		SetSize:  pb.Set.Size(),
		ExecSize: pb.Set.ExecSize(),
		PartSize: pb.PartSize,
		Inds:     inds,
		ArgInd:   argInd,
		LocMap:   make([][]int32, len(pb.Args)),
	}
	plan.Blocks = pb.createBlocks(len(inds))

	pb.buildAddressTables(plan)
	pb.classifyCore(plan)
	pb.colorBlocks(plan)
	pb.orderByColor(plan)
	pb.calculateTransfer(plan)

	return plan, nil
}

func (pb *PlanBuilder) validate() error {
	if pb.Set == nil {
		return fmt.Errorf("%w: loop has no set", ErrConfig)
	}
	if pb.PartSize <= 0 {
		return fmt.Errorf("%w: partition size must be positive, got %d", ErrConfig, pb.PartSize)
	}
	for i := range pb.Args {
		if err := pb.Args[i].Validate(pb.Set); err != nil {
			return fmt.Errorf("argument %d: %w", i, err)
		}
	}
	return nil
}

// groupIndirectArgs assigns every indirect argument to the dataset of its dat.
// All indirect arguments of one dat must share an access mode, and a dat
// written indirectly cannot also be accessed directly.
func (pb *PlanBuilder) groupIndirectArgs() ([]IndirectDataset, []int, error) {
	argInd := make([]int, len(pb.Args))
	byDat := make(map[int]int)
	var inds []IndirectDataset

	for i := range pb.Args {
		a := &pb.Args[i]
		argInd[i] = -1
		if !a.IsIndirect() {
			continue
		}
		idx, seen := byDat[a.Dat.ID()]
		if !seen {
			idx = len(inds)
			byDat[a.Dat.ID()] = idx
			inds = append(inds, IndirectDataset{
				Dat:    a.Dat,
				Access: a.Access,
			})
		}
		if inds[idx].Access != a.Access {
			return nil, nil, fmt.Errorf("%w: dat %q accessed indirectly as both %s and %s",
				ErrConfig, a.Dat.Name(), inds[idx].Access, a.Access)
		}
		inds[idx].Args = append(inds[idx].Args, i)
		argInd[i] = idx
	}

	for i := range pb.Args {
		a := &pb.Args[i]
		if !a.IsDirect() {
			continue
		}
		if idx, shared := byDat[a.Dat.ID()]; shared {
			if a.Writes() || inds[idx].Access != builder.Read {
				return nil, nil, fmt.Errorf("%w: dat %q accessed directly (%s) and indirectly (%s)",
					ErrConfig, a.Dat.Name(), a.Access, inds[idx].Access)
			}
		}
	}
	return inds, argInd, nil
}

// calculateNumBlocks determines how many blocks cover n elements
func (pb *PlanBuilder) calculateNumBlocks(n int) int {
	return (n + pb.PartSize - 1) / pb.PartSize
}

// createBlocks splits the core prefix, the halo-dependent tail and the exec
// halo separately so that no block straddles two of them
func (pb *PlanBuilder) createBlocks(numInds int) []Block {
	core := pb.Set.CoreSize()
	n := pb.Set.Size()
	exec := pb.Set.Iterated()
	blocks := make([]Block, 0, pb.calculateNumBlocks(core)+
		pb.calculateNumBlocks(n-core)+pb.calculateNumBlocks(exec-n))

	for _, r := range [][2]int{{0, core}, {core, n}, {n, exec}} {
		for start := r[0]; start < r[1]; start += pb.PartSize {
			count := min(pb.PartSize, r[1]-start)
			blocks = append(blocks, Block{
				ID:          len(blocks),
				Offset:      start,
				NumElements: count,
				Core:        start < n,
				Exec:        start >= n,
				IndSizes:    make([]int, numInds),
				IndOffsets:  make([]int, numInds),
			})
		}
	}
	return blocks
}

// buildAddressTables records, per block and dataset, the sorted distinct
// targets and the local slot of every element's map entries
func (pb *PlanBuilder) buildAddressTables(plan *Plan) {
	for i := range pb.Args {
		if plan.ArgInd[i] >= 0 {
			plan.LocMap[i] = make([]int32, plan.Iterated()*pb.Args[i].Arity())
		}
	}

	for ind := range plan.Inds {
		ds := &plan.Inds[ind]
		extent := ds.Dat.Set().Extent()
		stamp := make([]int, extent)
		for t := range stamp {
			stamp[t] = -1
		}
		local := make([]int32, extent)

		for b := range plan.Blocks {
			blk := &plan.Blocks[b]
			start := len(ds.Targets)

			for _, a := range ds.Args {
				arg := &pb.Args[a]
				for e := blk.Offset; e < blk.Offset+blk.NumElements; e++ {
					for _, t := range argEntries(arg, e) {
						if stamp[t] != b {
							stamp[t] = b
							ds.Targets = append(ds.Targets, t)
						}
					}
				}
			}

			targets := ds.Targets[start:]
			sort.Ints(targets)
			for k, t := range targets {
				local[t] = int32(k)
			}
			blk.IndOffsets[ind] = start
			blk.IndSizes[ind] = len(targets)
			ds.MaxSize = max(ds.MaxSize, len(targets))

			for _, a := range ds.Args {
				arg := &pb.Args[a]
				arity := arg.Arity()
				locMap := plan.LocMap[a]
				for e := blk.Offset; e < blk.Offset+blk.NumElements; e++ {
					for j, t := range argEntries(arg, e) {
						locMap[e*arity+j] = local[t]
					}
				}
			}
		}
	}
}

// argEntries returns the targets an indirect argument reaches from element e
func argEntries(arg *builder.ArgSpec, e int) []int {
	row := arg.Map.Row(e)
	if arg.Idx == builder.All {
		return row
	}
	return row[arg.Idx : arg.Idx+1]
}

// classifyCore demotes blocks that read halo entries of any dataset
func (pb *PlanBuilder) classifyCore(plan *Plan) {
	for b := range plan.Blocks {
		blk := &plan.Blocks[b]
		for ind := range plan.Inds {
			ds := &plan.Inds[ind]
			if ds.Access != builder.Read && ds.Access != builder.RW {
				continue
			}
			owned := ds.Dat.Set().Size()
			// Targets are sorted, so the last one decides
			targets := plan.BlockTargets(b, ind)
			if len(targets) > 0 && targets[len(targets)-1] >= owned {
				blk.Core = false
				break
			}
		}
	}
}

// colorBlocks colors core blocks first, then the remaining blocks starting
// after the last core color
func (pb *PlanBuilder) colorBlocks(plan *Plan) {
	var conflicting []int
	work := make([][]uint64, len(plan.Inds))
	for ind := range plan.Inds {
		if plan.Inds[ind].Conflicts() {
			conflicting = append(conflicting, ind)
			work[ind] = make([]uint64, plan.Inds[ind].Dat.Set().Extent())
		}
	}

	core := bitset.New(uint(len(plan.Blocks)))
	rest := bitset.New(uint(len(plan.Blocks)))
	for b := range plan.Blocks {
		if plan.Blocks[b].Core {
			core.Set(uint(b))
		} else {
			rest.Set(uint(b))
		}
	}

	plan.NColorsCore = colorPhase(plan, core, 0, conflicting, work)
	plan.NColors = colorPhase(plan, rest, plan.NColorsCore, conflicting, work)
}

// orderByColor builds the color-ordered block list
func (pb *PlanBuilder) orderByColor(plan *Plan) {
	plan.ColorOffsets = make([]int, plan.NColors+1)
	for _, blk := range plan.Blocks {
		plan.ColorOffsets[blk.Color+1]++
	}
	for c := 0; c < plan.NColors; c++ {
		plan.ColorOffsets[c+1] += plan.ColorOffsets[c]
	}
	plan.ColorBlocks = make([]int, len(plan.Blocks))
	next := make([]int, plan.NColors)
	copy(next, plan.ColorOffsets[:plan.NColors])
	for _, blk := range plan.Blocks {
		plan.ColorBlocks[next[blk.Color]] = blk.ID
		next[blk.Color]++
	}
}

// calculateTransfer sums the bytes each block gathers and scatters
func (pb *PlanBuilder) calculateTransfer(plan *Plan) {
	for b := range plan.Blocks {
		blk := &plan.Blocks[b]
		for ind := range plan.Inds {
			ds := &plan.Inds[ind]
			bytes := int64(blk.IndSizes[ind]) * int64(ds.Dat.Dim()) * ds.Dat.ElemSize()
			if ds.Access == builder.Read || ds.Access == builder.RW {
				blk.StageBytes += bytes
			}
			if ds.Access != builder.Read {
				blk.WriteBackBytes += bytes
			}
		}
		for i := range pb.Args {
			a := &pb.Args[i]
			if !a.IsDirect() {
				continue
			}
			bytes := int64(blk.NumElements) * a.Bytes()
			if a.Access != builder.Write {
				blk.StageBytes += bytes
			}
			if a.Writes() {
				blk.WriteBackBytes += bytes
			}
		}
		plan.Transfer += blk.StageBytes
		plan.Transfer2 += blk.WriteBackBytes
	}
}
