package solver

import (
	"context"
	"fmt"
	"math"

	"github.com/notargets/meshloop/mesh"
	"github.com/notargets/meshloop/runner"
)

// VolumeReport summarises the cell volumes of a tetrahedral mesh
type VolumeReport struct {
	Cells, Nodes int
	Total        float64
	MinCell      float64
	MaxCell      float64
	MaxNodal     float64 // Largest share of volume gathered at one vertex

	CellVolume  *mesh.Dat[float64] // cells, dim 1
	NodalVolume *mesh.Dat[float64] // nodes, dim 1
}

// MeasureVolume computes the volume of every tetrahedron, lumps a quarter of
// it onto each of its vertices and reduces the totals
func MeasureVolume(ctx context.Context, kr *runner.Runner, vm *mesh.VolumeMesh) (VolumeReport, error) {
	if vm.CellsToNodes.Arity() != 4 {
		return VolumeReport{}, fmt.Errorf("volume measure needs tetrahedra, cells have %d vertices",
			vm.CellsToNodes.Arity())
	}
	reg := kr.Registry()
	cellVolume, err := mesh.DeclDat[float64](reg, vm.Cells, 1, "cellVolume", nil)
	if err != nil {
		return VolumeReport{}, err
	}
	nodalVolume, err := mesh.DeclDat[float64](reg, vm.Nodes, 1, "nodalVolume", nil)
	if err != nil {
		return VolumeReport{}, err
	}

	x := runner.ArgDat(vm.Coords, runner.All, vm.CellsToNodes, runner.Read)
	vol := runner.ArgDirect(cellVolume, runner.Write)
	nodal := runner.ArgDat(nodalVolume, runner.All, vm.CellsToNodes, runner.Inc)
	total := runner.ArgGbl([]float64{0}, runner.Inc)
	lo := runner.ArgGbl([]float64{math.Inf(1)}, runner.Min)
	hi := runner.ArgGbl([]float64{math.Inf(-1)}, runner.Max)
	err = kr.ParLoop(ctx, "cell_volume", vm.Cells, func(it *runner.Iter) {
		v := tetVolume(x.Vec(it, 0), x.Vec(it, 1), x.Vec(it, 2), x.Vec(it, 3))
		vol.View(it)[0] = v
		for j := 0; j < 4; j++ {
			nodal.Vec(it, j)[0] += 0.25 * v
		}
		total.View(it)[0] += v
		l, h := lo.View(it), hi.View(it)
		l[0] = min(l[0], v)
		h[0] = max(h[0], v)
	}, x, vol, nodal, total, lo, hi)
	if err != nil {
		return VolumeReport{}, err
	}

	nv := runner.ArgDirect(nodalVolume, runner.Read)
	peak := runner.ArgGbl([]float64{0}, runner.Max)
	err = kr.ParLoop(ctx, "nodal_volume_max", vm.Nodes, func(it *runner.Iter) {
		p := peak.View(it)
		p[0] = max(p[0], nv.View(it)[0])
	}, nv, peak)
	if err != nil {
		return VolumeReport{}, err
	}

	report := VolumeReport{
		Cells:    vm.Cells.Size(),
		Nodes:    vm.Nodes.Size(),
		Total:    total.Values()[0],
		MinCell:  lo.Values()[0],
		MaxCell:  hi.Values()[0],
		MaxNodal: peak.Values()[0],

		CellVolume:  cellVolume,
		NodalVolume: nodalVolume,
	}
	return report, nil
}

func tetVolume(a, b, c, d []float64) float64 {
	u := [3]float64{b[0] - a[0], b[1] - a[1], b[2] - a[2]}
	v := [3]float64{c[0] - a[0], c[1] - a[1], c[2] - a[2]}
	w := [3]float64{d[0] - a[0], d[1] - a[1], d[2] - a[2]}
	det := u[0]*(v[1]*w[2]-v[2]*w[1]) - u[1]*(v[0]*w[2]-v[2]*w[0]) + u[2]*(v[0]*w[1]-v[1]*w[0])
	return math.Abs(det) / 6
}

func (r VolumeReport) String() string {
	return fmt.Sprintf("%d cells, %d nodes, volume %.6g, cell volume [%.4g, %.4g], max nodal volume %.4g",
		r.Cells, r.Nodes, r.Total, r.MinCell, r.MaxCell, r.MaxNodal)
}
