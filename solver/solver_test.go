package solver

import (
	"context"
	"math"
	"testing"

	"github.com/notargets/meshloop/mesh"
	"github.com/notargets/meshloop/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func newModel(t *testing.T, nx, ny int, cfg runner.Config) *ShallowWater {
	t.Helper()
	reg := mesh.NewRegistry()
	g, err := mesh.NewQuadGrid(reg, "", nx, ny)
	require.NoError(t, err)
	sw, err := NewShallowWater(context.Background(), runner.NewRunner(reg, cfg), g, DefaultParams())
	require.NoError(t, err)
	return sw
}

func TestGeometry(t *testing.T) {
	sw := newModel(t, 4, 2, runner.Config{PartSize: 3})
	geo := sw.Geo

	assert.InDelta(t, 1.0, floats.Sum(geo.Areas.Data()), 1e-14)
	for c := 0; c < sw.Grid.Cells.Size(); c++ {
		assert.InDelta(t, 0.125, geo.Areas.Elem(c)[0], 1e-15)
	}
	// Cell (1, 1)
	assert.InDeltaSlice(t, []float64{0.375, 0.75}, geo.Centers.Elem(5), 1e-15)

	for e := 0; e < sw.Grid.Edges.Size(); e++ {
		n := geo.Normals.Elem(e)
		assert.InDelta(t, 1.0, math.Hypot(n[0], n[1]), 1e-14)
		c0 := geo.Centers.Elem(sw.Grid.EdgesToCells.Index(e, 0))
		c1 := geo.Centers.Elem(sw.Grid.EdgesToCells.Index(e, 1))
		assert.Positive(t, n[0]*(c1[0]-c0[0])+n[1]*(c1[1]-c0[1]), "edge %d points from cell 0 to cell 1", e)
	}

	// Closed cells: outward normals weighted by length sum to zero
	sum := make([]float64, 2*sw.Grid.Cells.Size())
	for e := 0; e < sw.Grid.Edges.Size(); e++ {
		n := geo.Normals.Elem(e)
		c0, c1 := sw.Grid.EdgesToCells.Index(e, 0), sw.Grid.EdgesToCells.Index(e, 1)
		sum[2*c0] += n[0] * n[2]
		sum[2*c0+1] += n[1] * n[2]
		sum[2*c1] -= n[0] * n[2]
		sum[2*c1+1] -= n[1] * n[2]
	}
	for b := 0; b < sw.Grid.BEdges.Size(); b++ {
		n := geo.BNormals.Elem(b)
		c := sw.Grid.BEdgesToCells.Index(b, 0)
		sum[2*c] += n[0] * n[2]
		sum[2*c+1] += n[1] * n[2]
	}
	assert.InDelta(t, 0.0, floats.Norm(sum, math.Inf(1)), 1e-14)
}

func TestShallowWater_ConservesMass(t *testing.T) {
	sw := newModel(t, 24, 24, runner.Config{PartSize: 37, Workers: 4})
	ctx := context.Background()
	mass0, err := sw.Mass(ctx)
	require.NoError(t, err)

	reports, err := sw.Run(ctx, 20)
	require.NoError(t, err)
	require.Len(t, reports, 20)
	for _, r := range reports {
		assert.InDelta(t, mass0, r.Mass, 1e-12*mass0, "step %d", r.Step)
		assert.Positive(t, r.Dt)
		assert.Greater(t, r.MaxDepth, r.MinDepth)
	}
	last := reports[len(reports)-1]
	assert.InDelta(t, floats.Sum(dts(reports)), sw.Time(), 1e-15)
	assert.Equal(t, last.Time, sw.Time())
	assert.Less(t, last.MaxDepth, 1.2, "the hump spreads out")
	assert.Greater(t, last.MaxSpeed, math.Sqrt(9.81))
	require.NoError(t, sw.Close())
	require.NoError(t, sw.Close())
}

func dts(reports []StepReport) []float64 {
	out := make([]float64, len(reports))
	for i, r := range reports {
		out[i] = r.Dt
	}
	return out
}

func TestShallowWater_Symmetric(t *testing.T) {
	const n = 16
	sw := newModel(t, n, n, runner.Config{PartSize: 10})
	_, err := sw.Run(context.Background(), 10)
	require.NoError(t, err)

	// A centred hump stays mirror symmetric in x and y
	for j := 0; j < n; j++ {
		for i := 0; i < n/2; i++ {
			a := sw.Q.Elem(j*n + i)
			b := sw.Q.Elem(j*n + n - 1 - i)
			c := sw.Q.Elem((n-1-j)*n + i)
			assert.InDelta(t, a[0], b[0], 1e-12)
			assert.InDelta(t, a[1], -b[1], 1e-12)
			assert.InDelta(t, a[0], c[0], 1e-12)
			assert.InDelta(t, a[2], -c[2], 1e-12)
		}
	}
}

func TestShallowWater_WorkerCountsAgree(t *testing.T) {
	run := func(workers int) []float64 {
		sw := newModel(t, 20, 12, runner.Config{PartSize: 16, Workers: workers})
		_, err := sw.Run(context.Background(), 5)
		require.NoError(t, err)
		return sw.Q.Data()
	}
	base := run(1)
	for _, workers := range []int{2, 7} {
		assert.Equal(t, base, run(workers), "workers %d", workers)
	}
}

func TestShallowWater_TwoStageStep(t *testing.T) {
	sw := newModel(t, 8, 8, runner.Config{PartSize: 10})
	ctx := context.Background()
	mass0, err := sw.Mass(ctx)
	require.NoError(t, err)
	q0 := append([]float64(nil), sw.Q.Data()...)

	plans := sw.kr.NumPlans()
	_, err = sw.Step(ctx)
	require.NoError(t, err)
	// timestep, Euler predictor and corrector, flux and wall flux of both states
	assert.Equal(t, plans+7, sw.kr.NumPlans())
	assert.Zero(t, floats.Norm(sw.residual.Data(), math.Inf(1)), "both stages clear the residual")

	mid := sw.midpoint.Data()
	assert.NotEqual(t, q0, mid)
	assert.NotEqual(t, mid, sw.Q.Data())
	midMass := 0.0
	for c := 0; c < sw.Grid.Cells.Size(); c++ {
		midMass += mid[3*c] * sw.Geo.Areas.Elem(c)[0]
	}
	assert.InDelta(t, mass0, midMass, 1e-12*mass0, "the predictor conserves mass")

	plans = sw.kr.NumPlans()
	_, err = sw.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, plans, sw.kr.NumPlans(), "later steps reuse the plans")

	require.NoError(t, sw.Close())
	reg := sw.kr.Registry()
	assert.False(t, reg.IsRegistered(sw.residual))
	assert.False(t, reg.IsRegistered(sw.midpoint))
}

func TestShallowWater_InvalidParams(t *testing.T) {
	reg := mesh.NewRegistry()
	g, err := mesh.NewQuadGrid(reg, "", 2, 2)
	require.NoError(t, err)
	p := DefaultParams()
	p.Depth = 0
	_, err = NewShallowWater(context.Background(), runner.NewRunner(reg, runner.Config{}), g, p)
	assert.Error(t, err)
}

func TestShallowWater_Dry(t *testing.T) {
	reg := mesh.NewRegistry()
	g, err := mesh.NewQuadGrid(reg, "", 4, 4)
	require.NoError(t, err)
	p := DefaultParams()
	p.Amplitude = -2 * p.Depth
	p.Width = 0.3
	sw, err := NewShallowWater(context.Background(), runner.NewRunner(reg, runner.Config{}), g, p)
	require.NoError(t, err)
	_, err = sw.Step(context.Background())
	assert.ErrorIs(t, err, ErrDry)
}

func TestNormalFlux(t *testing.T) {
	var f [3]float64
	s := normalFlux(f[:], []float64{2, 2, 0}, 1, 0, 10)
	assert.InDeltaSlice(t, []float64{2, 2 + 20, 0}, f[:], 1e-15)
	assert.InDelta(t, 1+math.Sqrt(20), s, 1e-15)

	// Equal states give the physical flux
	q := []float64{1.5, 0.3, -0.2}
	var g [3]float64
	rusanov(f[:], q, q, 0.6, 0.8, 9.81)
	normalFlux(g[:], q, 0.6, 0.8, 9.81)
	assert.InDeltaSlice(t, g[:], f[:], 1e-15)
}

// cubeMesh splits the unit cube into six tetrahedra around its main diagonal
func cubeMesh(t *testing.T, reg *mesh.Registry) *mesh.VolumeMesh {
	t.Helper()
	var coords []float64
	for v := 0; v < 8; v++ {
		coords = append(coords, float64(v&1), float64(v>>1&1), float64(v>>2&1))
	}
	tets := []int{
		0, 1, 3, 7,
		0, 1, 5, 7,
		0, 2, 3, 7,
		0, 2, 6, 7,
		0, 4, 5, 7,
		0, 4, 6, 7,
	}
	vm := &mesh.VolumeMesh{}
	var err error
	vm.Nodes, err = reg.DeclSet("nodes", 8)
	require.NoError(t, err)
	vm.Cells, err = reg.DeclSet("cells", 6)
	require.NoError(t, err)
	vm.CellsToNodes, err = reg.DeclMap("cellsToNodes", vm.Cells, vm.Nodes, 4, tets)
	require.NoError(t, err)
	vm.Coords, err = mesh.DeclDat(reg, vm.Nodes, 3, "nodeCoords", coords)
	require.NoError(t, err)
	return vm
}

func TestMeasureVolume(t *testing.T) {
	for _, workers := range []int{1, 3} {
		reg := mesh.NewRegistry()
		vm := cubeMesh(t, reg)
		kr := runner.NewRunner(reg, runner.Config{PartSize: 2, Workers: workers})
		report, err := MeasureVolume(context.Background(), kr, vm)
		require.NoError(t, err)

		assert.InDelta(t, 1.0, report.Total, 1e-15)
		assert.InDelta(t, 1.0/6, report.MinCell, 1e-15)
		assert.InDelta(t, 1.0/6, report.MaxCell, 1e-15)
		assert.InDelta(t, report.Total, floats.Sum(report.NodalVolume.Data()), 1e-15)
		// Both ends of the diagonal touch all six tetrahedra
		assert.InDelta(t, 0.25, report.MaxNodal, 1e-15)
		assert.InDelta(t, 0.25, report.NodalVolume.Elem(7)[0], 1e-15)
		assert.Equal(t, 6, report.Cells)
		assert.Contains(t, report.String(), "6 cells, 8 nodes")
	}
}

func TestMeasureVolume_RejectsNonTets(t *testing.T) {
	reg := mesh.NewRegistry()
	g, err := mesh.NewQuadGrid(reg, "", 2, 2)
	require.NoError(t, err)
	vm := &mesh.VolumeMesh{Nodes: g.Nodes, Cells: g.Edges, CellsToNodes: g.EdgesToNodes, Coords: g.Coords}
	_, err = MeasureVolume(context.Background(), runner.NewRunner(reg, runner.Config{}), vm)
	assert.Error(t, err)
}
