package halo

import (
	"fmt"

	"github.com/notargets/meshloop/mesh"
)

// Connector manages pick and place indices for one set of a partitioned mesh.
// Each partition numbers its owned elements first, in ascending global order,
// and its imported halo copies after them in the order they were listed.
type Connector struct {
	NumPartitions int
	N             int // Total elements of the global set

	Owner   []int   // Global element → owning partition
	Imports [][]int // [partition] global elements held as halo copies
	Exec    []int   // [partition] leading imports that loops execute

	ElemsPerPartition []int         // Owned elements per partition
	GlobalToLocalElem []map[int]int // [partition][globalElem] → local index, owned and halo
	LocalToGlobalElem [][]int       // [partition][localElem] → globalElem, owned then halo

	PickIndices  [][]PickBuffer  // [sourcePartition][targetPartition]
	PlaceIndices [][]PlaceBuffer // [targetPartition][sourcePartition]
}

// PickBuffer lists the owned elements a partition sends to TargetPartition
type PickBuffer struct {
	Indices         []int
	TargetPartition int
}

// PlaceBuffer lists the halo elements a partition fills from SourcePartition
type PlaceBuffer struct {
	Indices         []int
	SourcePartition int
}

// NewConnector builds the connector from the element ownership and the
// halo imports of every partition
func NewConnector(owner []int, imports [][]int) (*Connector, error) {
	numPartitions := len(imports)
	for g, p := range owner {
		if p < 0 {
			return nil, fmt.Errorf("element %d has negative partition %d", g, p)
		}
		numPartitions = max(numPartitions, p+1)
	}
	if len(imports) < numPartitions {
		padded := make([][]int, numPartitions)
		copy(padded, imports)
		imports = padded
	}

	c := &Connector{
		NumPartitions: numPartitions,
		N:             len(owner),
		Owner:         owner,
		Imports:       imports,
		Exec:          make([]int, numPartitions),
	}
	if err := c.buildPartitionMappings(); err != nil {
		return nil, err
	}
	c.initializeBuffers()
	c.buildIndices()
	return c, nil
}

// NewExecConnector builds a connector whose halo of partition p holds the
// exec imports exec[p] first and the read-only imports nonExec[p] after them
func NewExecConnector(owner []int, exec, nonExec [][]int) (*Connector, error) {
	n := max(len(exec), len(nonExec))
	imports := make([][]int, n)
	for p := range imports {
		if p < len(exec) {
			imports[p] = append(imports[p], exec[p]...)
		}
		if p < len(nonExec) {
			imports[p] = append(imports[p], nonExec[p]...)
		}
	}
	c, err := NewConnector(owner, imports)
	if err != nil {
		return nil, err
	}
	for p := range exec {
		c.Exec[p] = len(exec[p])
	}
	return c, nil
}

func (c *Connector) buildPartitionMappings() error {
	c.ElemsPerPartition = make([]int, c.NumPartitions)
	for _, p := range c.Owner {
		c.ElemsPerPartition[p]++
	}

	c.GlobalToLocalElem = make([]map[int]int, c.NumPartitions)
	c.LocalToGlobalElem = make([][]int, c.NumPartitions)
	for p := 0; p < c.NumPartitions; p++ {
		c.GlobalToLocalElem[p] = make(map[int]int)
		c.LocalToGlobalElem[p] = make([]int, 0, c.ElemsPerPartition[p]+len(c.Imports[p]))
	}

	for g, p := range c.Owner {
		c.GlobalToLocalElem[p][g] = len(c.LocalToGlobalElem[p])
		c.LocalToGlobalElem[p] = append(c.LocalToGlobalElem[p], g)
	}

	for p, imported := range c.Imports {
		for _, g := range imported {
			if g < 0 || g >= c.N {
				return fmt.Errorf("partition %d imports element %d outside [0, %d)", p, g, c.N)
			}
			if _, dup := c.GlobalToLocalElem[p][g]; dup {
				return fmt.Errorf("partition %d imports element %d it already holds", p, g)
			}
			c.GlobalToLocalElem[p][g] = len(c.LocalToGlobalElem[p])
			c.LocalToGlobalElem[p] = append(c.LocalToGlobalElem[p], g)
		}
	}
	return nil
}

func (c *Connector) initializeBuffers() {
	c.PickIndices = make([][]PickBuffer, c.NumPartitions)
	c.PlaceIndices = make([][]PlaceBuffer, c.NumPartitions)
	for p := 0; p < c.NumPartitions; p++ {
		c.PickIndices[p] = make([]PickBuffer, c.NumPartitions)
		c.PlaceIndices[p] = make([]PlaceBuffer, c.NumPartitions)
		for q := 0; q < c.NumPartitions; q++ {
			c.PickIndices[p][q] = PickBuffer{TargetPartition: q}
			c.PlaceIndices[p][q] = PlaceBuffer{SourcePartition: q}
		}
	}
}

func (c *Connector) buildIndices() {
	for p, imported := range c.Imports {
		for k, g := range imported {
			src := c.Owner[g]
			c.PickIndices[src][p].Indices = append(c.PickIndices[src][p].Indices, c.GlobalToLocalElem[src][g])
			c.PlaceIndices[p][src].Indices = append(c.PlaceIndices[p][src].Indices, c.ElemsPerPartition[p]+k)
		}
	}
}

// GetPickIndices returns the owned elements source sends to target
func (c *Connector) GetPickIndices(sourcePartition, targetPartition int) []int {
	if sourcePartition < 0 || sourcePartition >= c.NumPartitions ||
		targetPartition < 0 || targetPartition >= c.NumPartitions {
		return nil
	}
	return c.PickIndices[sourcePartition][targetPartition].Indices
}

// GetPlaceIndices returns the halo elements of target filled from source
func (c *Connector) GetPlaceIndices(targetPartition, sourcePartition int) []int {
	if targetPartition < 0 || targetPartition >= c.NumPartitions ||
		sourcePartition < 0 || sourcePartition >= c.NumPartitions {
		return nil
	}
	return c.PlaceIndices[targetPartition][sourcePartition].Indices
}

// Layout returns the set layout of partition p with every owned element core
func (c *Connector) Layout(p int) mesh.SetLayout {
	return mesh.SetLayout{
		Size:     c.ElemsPerPartition[p],
		CoreSize: c.ElemsPerPartition[p],
		HaloSize: len(c.Imports[p]),
		ExecSize: c.Exec[p],
	}
}

// Iterated returns the global elements partition p executes, owned then exec
func (c *Connector) Iterated(p int) []int {
	return c.LocalToGlobalElem[p][:c.ElemsPerPartition[p]+c.Exec[p]]
}

// Localize converts global element indices to the local numbering of p
func (c *Connector) Localize(p int, global []int) ([]int, error) {
	local := make([]int, len(global))
	for i, g := range global {
		l, ok := c.GlobalToLocalElem[p][g]
		if !ok {
			return nil, fmt.Errorf("partition %d holds no copy of element %d", p, g)
		}
		local[i] = l
	}
	return local, nil
}

// Distribute splits global dat values into per-partition owned plus halo arrays
func Distribute[T mesh.Number](c *Connector, global []T, dim int) [][]T {
	parts := make([][]T, c.NumPartitions)
	for p := range parts {
		parts[p] = make([]T, 0, len(c.LocalToGlobalElem[p])*dim)
		for _, g := range c.LocalToGlobalElem[p] {
			parts[p] = append(parts[p], global[g*dim:(g+1)*dim]...)
		}
	}
	return parts
}

// Verify checks index validity and that every import has exactly one sender
func (c *Connector) Verify() error {
	for p := 0; p < c.NumPartitions; p++ {
		owned := c.ElemsPerPartition[p]
		for q := 0; q < c.NumPartitions; q++ {
			for _, idx := range c.PickIndices[p][q].Indices {
				if idx < 0 || idx >= owned {
					return fmt.Errorf("invalid pick index %d for partition %d (max %d)", idx, p, owned-1)
				}
			}
			for _, idx := range c.PlaceIndices[p][q].Indices {
				if idx < owned || idx >= owned+len(c.Imports[p]) {
					return fmt.Errorf("invalid place index %d for partition %d (halo [%d, %d))",
						idx, p, owned, owned+len(c.Imports[p]))
				}
			}
		}
	}

	for p := 0; p < c.NumPartitions; p++ {
		for q := 0; q < c.NumPartitions; q++ {
			pickLen := len(c.PickIndices[p][q].Indices)
			placeLen := len(c.PlaceIndices[q][p].Indices)
			if pickLen != placeLen {
				return fmt.Errorf("length mismatch: pick[%d][%d]=%d, place[%d][%d]=%d",
					p, q, pickLen, q, p, placeLen)
			}
		}
	}

	totalPicks, totalImports := 0, 0
	for p := 0; p < c.NumPartitions; p++ {
		totalImports += len(c.Imports[p])
		for q := 0; q < c.NumPartitions; q++ {
			totalPicks += len(c.PickIndices[p][q].Indices)
		}
	}
	if totalPicks != totalImports {
		return fmt.Errorf("conservation error: total picks %d != total imports %d", totalPicks, totalImports)
	}
	return nil
}
