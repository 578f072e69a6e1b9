package builder

import (
	"testing"

	"github.com/notargets/meshloop/mesh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgSpec_Classification(t *testing.T) {
	reg := mesh.NewRegistry()
	cells, err := reg.DeclSet("cells", 4)
	require.NoError(t, err)
	nodes, err := reg.DeclSet("nodes", 9)
	require.NoError(t, err)
	c2n, err := reg.DeclMap("c2n", cells, nodes, 4, []int{0, 1, 4, 3, 1, 2, 5, 4, 3, 4, 7, 6, 4, 5, 8, 7})
	require.NoError(t, err)
	x, err := mesh.DeclDat[float64](reg, nodes, 2, "x", nil)
	require.NoError(t, err)

	tests := []struct {
		name      string
		spec      ArgSpec
		indirect  bool
		conflicts bool
		arity     int
	}{
		{"direct read", ArgSpec{Dat: x, Idx: Direct, Access: Read}, false, false, 1},
		{"indirect read", ArgSpec{Dat: x, Map: c2n, Idx: 1, Access: Read}, true, false, 1},
		{"indirect inc", ArgSpec{Dat: x, Map: c2n, Idx: 1, Access: Inc}, true, true, 1},
		{"indirect write", ArgSpec{Dat: x, Map: c2n, Idx: 0, Access: Write}, true, true, 1},
		{"indirect rw", ArgSpec{Dat: x, Map: c2n, Idx: 0, Access: RW}, true, true, 1},
		{"vector inc", ArgSpec{Dat: x, Map: c2n, Idx: All, Access: Inc}, true, true, 4},
		{"global min", ArgSpec{Idx: Direct, Access: Min, Global: true}, false, false, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.indirect, tt.spec.IsIndirect())
			assert.Equal(t, tt.conflicts, tt.spec.Conflicts())
			assert.Equal(t, tt.arity, tt.spec.Arity())
		})
	}

	spec := ArgSpec{Dat: x, Map: c2n, Idx: All, Access: Read, Dim: 2, DataType: mesh.Float64}
	assert.NoError(t, spec.Validate(cells))
	assert.Equal(t, int64(16), spec.Bytes())
	assert.ErrorIs(t, spec.Validate(nodes), ErrConfig)
}

func TestAccess_String(t *testing.T) {
	assert.Equal(t, "READ", Read.String())
	assert.Equal(t, "INC", Inc.String())
	assert.Equal(t, "MAX", Max.String())
	assert.Equal(t, "Access(42)", Access(42).String())
}

func TestSignature(t *testing.T) {
	reg := mesh.NewRegistry()
	edges, err := reg.DeclSet("edges", 5)
	require.NoError(t, err)
	cells, err := reg.DeclSet("cells", 3)
	require.NoError(t, err)
	e2c, err := reg.DeclMap("e2c", edges, cells, 2, []int{0, 1, 1, 2, 2, 0, 0, 1, 1, 2})
	require.NoError(t, err)
	q, err := mesh.DeclDat[float64](reg, cells, 1, "q", nil)
	require.NoError(t, err)
	w, err := mesh.DeclDat[float64](reg, edges, 1, "w", nil)
	require.NoError(t, err)

	args := []ArgSpec{
		{Dat: q, Map: e2c, Idx: 0, Access: Read, Dim: 1, DataType: mesh.Float64},
		{Dat: w, Idx: Direct, Access: Write, Dim: 1, DataType: mesh.Float64},
		{Idx: Direct, Access: Inc, Dim: 1, DataType: mesh.Float64, Global: true},
	}
	a := GenerateSignature("flux", edges, 64, args)
	b := GenerateSignature("flux", edges, 64, args)
	assert.Equal(t, a, b)
	assert.True(t, a.References(q.ID()))
	assert.True(t, a.References(w.ID()))
	assert.False(t, a.References(cells.ID()))

	assert.NotEqual(t, a, GenerateSignature("flux", edges, 32, args), "partition size")
	assert.NotEqual(t, a, GenerateSignature("other", edges, 64, args), "loop name")

	changed := append([]ArgSpec(nil), args...)
	changed[0].Idx = 1
	assert.NotEqual(t, a, GenerateSignature("flux", edges, 64, changed), "map index")
	assert.Contains(t, a.String(), "flux")
}
