package mesh

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Declarations(t *testing.T) {
	reg := NewRegistry()

	nodes, err := reg.DeclSet("nodes", 4)
	require.NoError(t, err)
	cells, err := reg.DeclSet("cells", 2)
	require.NoError(t, err)
	assert.NotEqual(t, nodes.ID(), cells.ID())
	assert.Equal(t, 4, nodes.CoreSize(), "a set without halo is all core")
	assert.Equal(t, 4, nodes.Extent())

	t.Run("duplicate names are rejected", func(t *testing.T) {
		_, err := reg.DeclSet("nodes", 10)
		assert.Error(t, err)
		_, err = DeclDat[float64](reg, nodes, 1, "u", nil)
		require.NoError(t, err)
		_, err = DeclDat[float32](reg, cells, 1, "u", nil)
		assert.Error(t, err)
	})

	t.Run("map validation", func(t *testing.T) {
		m, err := reg.DeclMap("c2n", cells, nodes, 3, []int{0, 1, 2, 1, 2, 3})
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2, 3}, m.Row(1))
		assert.Equal(t, 2, m.Index(0, 2))

		_, err = reg.DeclMap("short", cells, nodes, 3, []int{0, 1, 2})
		assert.Error(t, err)
		_, err = reg.DeclMap("outside", cells, nodes, 1, []int{0, 4})
		assert.Error(t, err)
		_, err = reg.DeclMap("negative", cells, nodes, 1, []int{-1, 0})
		assert.Error(t, err)
		_, err = reg.DeclMap("zeroArity", cells, nodes, 0, nil)
		assert.Error(t, err)
	})

	t.Run("lookup", func(t *testing.T) {
		s, ok := reg.LookupSet("cells")
		assert.True(t, ok)
		assert.Same(t, cells, s)
		_, ok = reg.LookupMap("missing")
		assert.False(t, ok)
	})
}

func TestSetLayout(t *testing.T) {
	reg := NewRegistry()

	s, err := reg.DeclPartitionedSet("owned", SetLayout{Size: 10, CoreSize: 7, HaloSize: 3})
	require.NoError(t, err)
	assert.Equal(t, 10, s.Size())
	assert.Equal(t, 7, s.CoreSize())
	assert.Equal(t, 3, s.HaloSize())
	assert.Equal(t, 13, s.Extent())

	// Core of zero is honoured once a halo exists
	s, err = reg.DeclPartitionedSet("allHalo", SetLayout{Size: 5, HaloSize: 2})
	require.NoError(t, err)
	assert.Zero(t, s.CoreSize())

	_, err = reg.DeclPartitionedSet("bigCore", SetLayout{Size: 5, CoreSize: 6})
	assert.Error(t, err)
	_, err = reg.DeclPartitionedSet("negative", SetLayout{Size: -1})
	assert.Error(t, err)
	_, err = reg.DeclPartitionedSet("bigExec", SetLayout{Size: 5, HaloSize: 1, ExecSize: 2})
	assert.Error(t, err)
}

func TestSetLayout_ExecHalo(t *testing.T) {
	reg := NewRegistry()
	nodes, err := reg.DeclPartitionedSet("nodes", SetLayout{Size: 4, CoreSize: 2, HaloSize: 3, ExecSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, nodes.ExecSize())
	assert.Equal(t, 6, nodes.Iterated())
	assert.Equal(t, 7, nodes.Extent())

	// Exec elements need rows of their own
	_, err = reg.DeclMap("short", nodes, nodes, 1, []int{1, 2, 3, 0})
	assert.Error(t, err)
	m, err := reg.DeclMap("next", nodes, nodes, 1, []int{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)
	assert.Equal(t, []int{6}, m.Row(5))
}

func TestDat_Storage(t *testing.T) {
	reg := NewRegistry()
	set, err := reg.DeclPartitionedSet("cells", SetLayout{Size: 3, CoreSize: 3, HaloSize: 1})
	require.NoError(t, err)

	t.Run("owned values are padded with halo zeros", func(t *testing.T) {
		d, err := DeclDat(reg, set, 2, "q", []float64{1, 2, 3, 4, 5, 6})
		require.NoError(t, err)
		assert.Len(t, d.Data(), 8)
		assert.Equal(t, []float64{3, 4}, d.Elem(1))
		assert.Equal(t, []float64{0, 0}, d.Elem(3))
		assert.Len(t, d.Owned(), 6)
	})

	t.Run("nil data is zero filled", func(t *testing.T) {
		d, err := DeclDat[int32](reg, set, 1, "flags", nil)
		require.NoError(t, err)
		assert.Equal(t, []int32{0, 0, 0, 0}, d.Data())
		assert.Equal(t, INT32, d.DataType())
		assert.Equal(t, int64(4), d.ElemSize())
	})

	t.Run("wrong length is rejected", func(t *testing.T) {
		_, err := DeclDat(reg, set, 2, "bad", []float64{1, 2, 3})
		assert.Error(t, err)
		_, err = DeclDat[float64](reg, set, 0, "noDim", nil)
		assert.Error(t, err)
	})
}

func TestRegistry_ReleaseTemporary(t *testing.T) {
	reg := NewRegistry()
	set, err := reg.DeclSet("cells", 5)
	require.NoError(t, err)

	tmp, err := DeclTempDat[float32](reg, set, 3, "scratch")
	require.NoError(t, err)
	assert.True(t, tmp.IsTemp())
	assert.Len(t, tmp.Data(), 15)
	assert.True(t, reg.IsRegistered(tmp))

	require.NoError(t, reg.Release(tmp))
	assert.True(t, tmp.Released())
	assert.False(t, reg.IsRegistered(tmp))
	assert.Error(t, reg.Release(tmp), "second release")

	// The name can be reused after release
	again, err := DeclTempDat[float32](reg, set, 3, "scratch")
	require.NoError(t, err)
	assert.NotEqual(t, tmp.ID(), again.ID())

	perm, err := DeclDat[float64](reg, set, 1, "perm", nil)
	require.NoError(t, err)
	assert.Error(t, reg.Release(perm), "non-temporaries cannot be released")
}

func TestRegistry_Diagnostics(t *testing.T) {
	reg := NewRegistry()
	_, err := NewQuadGrid(reg, "g_", 2, 2)
	require.NoError(t, err)

	var buf bytes.Buffer
	reg.Diagnostics(&buf)
	out := buf.String()
	assert.Contains(t, out, "g_cells")
	assert.Contains(t, out, "g_pecell")
	assert.Contains(t, out, "g_p_x")
	assert.Contains(t, out, "double")
}

func TestQuadGrid(t *testing.T) {
	reg := NewRegistry()
	g, err := NewQuadGrid(reg, "", 3, 2)
	require.NoError(t, err)

	assert.Equal(t, 12, g.Nodes.Size())
	assert.Equal(t, 6, g.Cells.Size())
	// 2 interior vertical edges per row plus 3 interior horizontal edges
	assert.Equal(t, 2*2+3*1, g.Edges.Size())
	assert.Equal(t, 2*3+2*2, g.BEdges.Size())
	assert.Equal(t, []int{0, 1, 5, 4}, g.CellsToNodes.Row(0))
	assert.Equal(t, []int{0, 1}, g.EdgesToCells.Row(0))
	assert.Equal(t, []float64{1, 1}, g.Coords.Elem(11))

	// Every cell has four sides: interior edges count twice, boundary once
	sides := make([]int, g.Cells.Size())
	for _, c := range g.EdgesToCells.Table() {
		sides[c]++
	}
	for _, c := range g.BEdgesToCells.Table() {
		sides[c]++
	}
	for c, n := range sides {
		assert.Equal(t, 4, n, "cell %d", c)
	}

	_, err = NewQuadGrid(reg, "empty_", 0, 3)
	assert.Error(t, err)
}

func TestNumberLimits(t *testing.T) {
	assert.True(t, math.IsInf(float64(Lowest[float32]()), -1))
	assert.True(t, math.IsInf(Highest[float64](), 1))
	assert.Equal(t, int32(math.MinInt32), Lowest[int32]())
	assert.Equal(t, int32(math.MaxInt32), Highest[int32]())
	assert.Equal(t, int64(math.MinInt64), Lowest[int64]())
	assert.Equal(t, int64(math.MaxInt64), Highest[int64]())

	tests := []struct {
		dt   DataType
		size int64
		name string
		real bool
	}{
		{Float32, 4, "float", true},
		{Float64, 8, "double", true},
		{INT32, 4, "int", false},
		{INT64, 8, "long", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.size, SizeOfType(tt.dt))
			assert.Equal(t, tt.name, tt.dt.String())
			assert.Equal(t, tt.real, tt.dt.IsReal())
		})
	}
	assert.Equal(t, Float64, DataTypeOf[float64]())
	assert.Equal(t, INT64, DataTypeOf[int64]())
}
