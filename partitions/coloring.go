package partitions

import (
	"math"
	"math/bits"

	"github.com/bits-and-blooms/bitset"
)

// colorsPerPass is the width of the per-target color mask
const colorsPerPass = 64

// colorPhase greedily colors the pending blocks, first fit, starting at color
// base. Each conflicting target keeps a mask of the colors already used by
// blocks writing it; a block takes the lowest color free on all its targets.
// Blocks that find all colors of a pass taken wait for the next pass.
// Returns one past the highest color assigned, or base if nothing was pending.
func colorPhase(plan *Plan, pending *bitset.BitSet, base int, conflicting []int, work [][]uint64) int {
	next := base
	for pending.Any() {
		for _, ind := range conflicting {
			clear(work[ind])
		}

		for b, ok := pending.NextSet(0); ok; b, ok = pending.NextSet(b + 1) {
			var mask uint64
			for _, ind := range conflicting {
				w := work[ind]
				for _, t := range plan.BlockTargets(int(b), ind) {
					mask |= w[t]
				}
			}
			if mask == math.MaxUint64 {
				continue
			}

			c := bits.TrailingZeros64(^mask)
			bit := uint64(1) << c
			for _, ind := range conflicting {
				w := work[ind]
				for _, t := range plan.BlockTargets(int(b), ind) {
					w[t] |= bit
				}
			}
			plan.Blocks[b].Color = base + c
			next = max(next, base+c+1)
			pending.Clear(b)
		}
		base += colorsPerPass
	}
	return next
}
