package partitions

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
	"github.com/notargets/meshloop/mesh"
	"github.com/notargets/meshloop/runner/builder"
)

// Block is a contiguous chunk of set elements executed as one parallel task
type Block struct {
	ID          int
	Offset      int // First element of the block
	NumElements int
	Color       int
	Core        bool // Reads no halo data, may run before the halo wait
	Exec        bool // Covers exec halo elements; never core, never reduced

	// Indirect footprint, one entry per indirect dataset of the plan.
	// The distinct targets of dataset i are
	// Plan.Inds[i].Targets[IndOffsets[i] : IndOffsets[i]+IndSizes[i]].
	IndSizes   []int
	IndOffsets []int

	StageBytes     int64 // Bytes gathered before the element loop
	WriteBackBytes int64 // Bytes scattered after the element loop
}

// IndirectDataset groups the indirect arguments that address one dat
type IndirectDataset struct {
	Dat    mesh.DatHandle
	Access builder.Access
	Args   []int // Argument positions addressing this dat

	// Per-block compact target lists, concatenated in block order
	Targets []int
	MaxSize int // Largest per-block target count
}

// Stages reports whether incoming values are gathered into scratch
func (ds *IndirectDataset) Stages() bool {
	return ds.Access != builder.Inc
}

// Conflicts reports whether the dataset constrains the coloring
func (ds *IndirectDataset) Conflicts() bool {
	return ds.Access != builder.Read
}

// Plan is an immutable execution schedule for one loop signature
type Plan struct {
	Loop     string
	SetSize  int // Owned elements
	ExecSize int // Exec halo elements executed after the owned range
	PartSize int

	Blocks      []Block
	NColors     int
	NColorsCore int // Colors [0, NColorsCore) contain only core blocks

	// Block IDs ordered by color; color c owns
	// ColorBlocks[ColorOffsets[c]:ColorOffsets[c+1]]
	ColorBlocks  []int
	ColorOffsets []int

	Inds   []IndirectDataset
	ArgInd []int // Per argument: index into Inds, or -1

	// Per indirect argument: local slot within the block's target list for
	// every (element, map entry). Arity entries per element; nil otherwise.
	LocMap [][]int32

	Transfer  int64 // Bytes read: staged indirect plus direct input
	Transfer2 int64 // Bytes written: write-back plus direct output
}

// BlocksOfColor returns the IDs of the blocks with color c
func (p *Plan) BlocksOfColor(c int) []int {
	return p.ColorBlocks[p.ColorOffsets[c]:p.ColorOffsets[c+1]]
}

// BlockTargets returns the distinct targets block b touches in dataset ind
func (p *Plan) BlockTargets(b, ind int) []int {
	blk := &p.Blocks[b]
	off := blk.IndOffsets[ind]
	return p.Inds[ind].Targets[off : off+blk.IndSizes[ind]]
}

// LocalSlot returns the block-local slot of map entry j of element e for
// argument arg
func (p *Plan) LocalSlot(arg, e, j, arity int) int {
	return int(p.LocMap[arg][e*arity+j])
}

// NumBlocks returns the number of blocks of the plan
func (p *Plan) NumBlocks() int { return len(p.Blocks) }

// References reports whether the plan stages the dat
func (p *Plan) References(datID int) bool {
	for i := range p.Inds {
		if p.Inds[i].Dat.ID() == datID {
			return true
		}
	}
	return false
}

// Iterated is the number of elements the plan executes, owned plus exec halo
func (p *Plan) Iterated() int { return p.SetSize + p.ExecSize }

// Verify checks that the blocks partition [0, Iterated()) exactly and that no
// two blocks of one color write the same target of a conflicting dataset
func (p *Plan) Verify() error {
	n := p.Iterated()
	covered := bitset.New(uint(n))
	for _, blk := range p.Blocks {
		if blk.Exec != (blk.Offset >= p.SetSize) {
			return fmt.Errorf("block %d: exec flag does not match offset %d", blk.ID, blk.Offset)
		}
		if blk.Exec && blk.Core {
			return fmt.Errorf("block %d: exec block marked core", blk.ID)
		}
		for e := blk.Offset; e < blk.Offset+blk.NumElements; e++ {
			if e < 0 || e >= n {
				return fmt.Errorf("block %d: element %d outside set of size %d", blk.ID, e, n)
			}
			if covered.Test(uint(e)) {
				return fmt.Errorf("block %d: element %d already covered by another block", blk.ID, e)
			}
			covered.Set(uint(e))
		}
	}
	if covered.Count() != uint(n) {
		return fmt.Errorf("blocks cover %d of %d elements", covered.Count(), n)
	}

	if len(p.ColorOffsets) != p.NColors+1 {
		return fmt.Errorf("color offsets length %d does not match %d colors", len(p.ColorOffsets), p.NColors)
	}
	for c := 0; c < p.NColors; c++ {
		for ind := range p.Inds {
			if !p.Inds[ind].Conflicts() {
				continue
			}
			owner := make(map[int]int)
			for _, b := range p.BlocksOfColor(c) {
				if p.Blocks[b].Color != c {
					return fmt.Errorf("block %d listed under color %d but colored %d", b, c, p.Blocks[b].Color)
				}
				for _, t := range p.BlockTargets(b, ind) {
					if other, taken := owner[t]; taken {
						return fmt.Errorf("color %d: blocks %d and %d both write %s[%d]",
							c, other, b, p.Inds[ind].Dat.Name(), t)
					}
					owner[t] = b
				}
			}
		}
	}
	for c := 0; c < p.NColorsCore; c++ {
		for _, b := range p.BlocksOfColor(c) {
			if !p.Blocks[b].Core {
				return fmt.Errorf("non-core block %d scheduled in core color %d", b, c)
			}
		}
	}
	return nil
}
