package solver

import (
	"context"
	"math"

	"github.com/notargets/meshloop/mesh"
	"github.com/notargets/meshloop/runner"
)

// Geometry holds the cell and edge metrics of a quadrilateral grid
type Geometry struct {
	Centers  *mesh.Dat[float64] // cells, dim 2
	Areas    *mesh.Dat[float64] // cells, dim 1
	Normals  *mesh.Dat[float64] // interior edges: unit normal from cell 0 to cell 1, length
	BNormals *mesh.Dat[float64] // boundary edges: outward unit normal, length
}

// NewGeometry declares the metric dats and fills them with loops over the
// grid
func NewGeometry(ctx context.Context, kr *runner.Runner, g *mesh.QuadGrid) (*Geometry, error) {
	reg := kr.Registry()
	geo := &Geometry{}
	var err error
	if geo.Centers, err = mesh.DeclDat[float64](reg, g.Cells, 2, "cellCenters", nil); err != nil {
		return nil, err
	}
	if geo.Areas, err = mesh.DeclDat[float64](reg, g.Cells, 1, "cellVolumes", nil); err != nil {
		return nil, err
	}
	if geo.Normals, err = mesh.DeclDat[float64](reg, g.Edges, 3, "edgeNormals", nil); err != nil {
		return nil, err
	}
	if geo.BNormals, err = mesh.DeclDat[float64](reg, g.BEdges, 3, "bedgeNormals", nil); err != nil {
		return nil, err
	}

	// Centroid and shoelace area of each cell
	x := runner.ArgDat(g.Coords, runner.All, g.CellsToNodes, runner.Read)
	center := runner.ArgDirect(geo.Centers, runner.Write)
	area := runner.ArgDirect(geo.Areas, runner.Write)
	err = kr.ParLoop(ctx, "cell_geometry", g.Cells, func(it *runner.Iter) {
		var a, cx, cy float64
		n := g.CellsToNodes.Arity()
		for j := 0; j < n; j++ {
			p, q := x.Vec(it, j), x.Vec(it, (j+1)%n)
			cross := p[0]*q[1] - q[0]*p[1]
			a += cross
			cx += (p[0] + q[0]) * cross
			cy += (p[1] + q[1]) * cross
		}
		a *= 0.5
		c := center.View(it)
		c[0], c[1] = cx/(6*a), cy/(6*a)
		area.View(it)[0] = math.Abs(a)
	}, x, center, area)
	if err != nil {
		return nil, err
	}

	x0 := runner.ArgDat(g.Coords, 0, g.EdgesToNodes, runner.Read)
	x1 := runner.ArgDat(g.Coords, 1, g.EdgesToNodes, runner.Read)
	c0 := runner.ArgDat(geo.Centers, 0, g.EdgesToCells, runner.Read)
	c1 := runner.ArgDat(geo.Centers, 1, g.EdgesToCells, runner.Read)
	nrm := runner.ArgDirect(geo.Normals, runner.Write)
	err = kr.ParLoop(ctx, "edge_geometry", g.Edges, func(it *runner.Iter) {
		edgeNormal(nrm.View(it), x0.View(it), x1.View(it), c0.View(it), c1.View(it))
	}, x0, x1, c0, c1, nrm)
	if err != nil {
		return nil, err
	}

	// Boundary normals point away from the interior cell
	bx0 := runner.ArgDat(g.Coords, 0, g.BEdgesToNodes, runner.Read)
	bx1 := runner.ArgDat(g.Coords, 1, g.BEdgesToNodes, runner.Read)
	bc := runner.ArgDat(geo.Centers, 0, g.BEdgesToCells, runner.Read)
	bnrm := runner.ArgDirect(geo.BNormals, runner.Write)
	err = kr.ParLoop(ctx, "bedge_geometry", g.BEdges, func(it *runner.Iter) {
		p0, p1 := bx0.View(it), bx1.View(it)
		mid := []float64{0.5 * (p0[0] + p1[0]), 0.5 * (p0[1] + p1[1])}
		outside := []float64{2*mid[0] - bc.View(it)[0], 2*mid[1] - bc.View(it)[1]}
		edgeNormal(bnrm.View(it), p0, p1, bc.View(it), outside)
	}, bx0, bx1, bc, bnrm)
	if err != nil {
		return nil, err
	}
	return geo, nil
}

// edgeNormal stores the unit normal of segment p0-p1 oriented from a to b,
// followed by the segment length
func edgeNormal(out, p0, p1, a, b []float64) {
	tx, ty := p1[0]-p0[0], p1[1]-p0[1]
	length := math.Hypot(tx, ty)
	nx, ny := ty/length, -tx/length
	if nx*(b[0]-a[0])+ny*(b[1]-a[1]) < 0 {
		nx, ny = -nx, -ny
	}
	out[0], out[1], out[2] = nx, ny, length
}
