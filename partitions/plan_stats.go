package partitions

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// PlanStats summarises block sizes and the color structure of a plan
type PlanStats struct {
	NumBlocks     int
	NumColors     int
	NumColorsCore int
	CoreBlocks    int
	ExecBlocks    int

	MinElements int
	MaxElements int
	AvgElements float64
	StdElements float64
	Imbalance   float64 // MaxElements / AvgElements

	BlocksPerColor []int
	MaxFootprint   []int // Largest per-block target count, per indirect dataset

	Transfer  int64
	Transfer2 int64
}

// Stats computes load balance metrics for the plan
func (p *Plan) Stats() PlanStats {
	stats := PlanStats{
		NumBlocks:      len(p.Blocks),
		NumColors:      p.NColors,
		NumColorsCore:  p.NColorsCore,
		BlocksPerColor: make([]int, p.NColors),
		MaxFootprint:   make([]int, len(p.Inds)),
		Transfer:       p.Transfer,
		Transfer2:      p.Transfer2,
	}
	if len(p.Blocks) == 0 {
		return stats
	}

	sizes := make([]float64, len(p.Blocks))
	stats.MinElements = math.MaxInt32
	for i, blk := range p.Blocks {
		sizes[i] = float64(blk.NumElements)
		stats.MinElements = min(stats.MinElements, blk.NumElements)
		stats.MaxElements = max(stats.MaxElements, blk.NumElements)
		if blk.Core {
			stats.CoreBlocks++
		}
		if blk.Exec {
			stats.ExecBlocks++
		}
	}
	stats.AvgElements, stats.StdElements = stat.MeanStdDev(sizes, nil)
	if len(sizes) == 1 {
		stats.StdElements = 0
	}
	stats.Imbalance = float64(stats.MaxElements) / stats.AvgElements

	for c := 0; c < p.NColors; c++ {
		stats.BlocksPerColor[c] = p.ColorOffsets[c+1] - p.ColorOffsets[c]
	}
	for i := range p.Inds {
		stats.MaxFootprint[i] = p.Inds[i].MaxSize
	}
	return stats
}

func (s PlanStats) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("  Blocks: %d (%d core, %d exec)\n", s.NumBlocks, s.CoreBlocks, s.ExecBlocks))
	sb.WriteString(fmt.Sprintf("  Colors: %d (%d core)\n", s.NumColors, s.NumColorsCore))
	sb.WriteString(fmt.Sprintf("  Block size: min %d, max %d, mean %.1f, stddev %.1f, imbalance %.3f\n",
		s.MinElements, s.MaxElements, s.AvgElements, s.StdElements, s.Imbalance))
	sb.WriteString(fmt.Sprintf("  Blocks per color: %v\n", s.BlocksPerColor))
	if len(s.MaxFootprint) > 0 {
		sb.WriteString(fmt.Sprintf("  Max indirect footprint: %v\n", s.MaxFootprint))
	}
	sb.WriteString(fmt.Sprintf("  Transfer: %d bytes in, %d bytes out\n", s.Transfer, s.Transfer2))
	return sb.String()
}
