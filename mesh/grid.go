package mesh

import "fmt"

// QuadGrid is a structured nx by ny quadrilateral mesh expressed as
// unstructured sets and maps. It is used to drive loops in tests and demos.
type QuadGrid struct {
	NX, NY int

	Nodes  *Set
	Cells  *Set
	Edges  *Set // Interior edges, two cells each
	BEdges *Set // Boundary edges, one cell each

	CellsToNodes  *Map // arity 4, counter-clockwise
	EdgesToNodes  *Map // arity 2
	EdgesToCells  *Map // arity 2
	BEdgesToNodes *Map // arity 2
	BEdgesToCells *Map // arity 1

	Coords *Dat[float64] // Node coordinates, dim 2
}

// NewQuadGrid declares a unit-square grid in the registry. Names are prefixed
// with prefix so several grids can share one registry.
func NewQuadGrid(r *Registry, prefix string, nx, ny int) (*QuadGrid, error) {
	if nx < 1 || ny < 1 {
		return nil, fmt.Errorf("grid must have at least one cell in each direction, got %dx%d", nx, ny)
	}
	node := func(i, j int) int { return j*(nx+1) + i }
	cell := func(i, j int) int { return j*nx + i }

	coords := make([]float64, 0, 2*(nx+1)*(ny+1))
	for j := 0; j <= ny; j++ {
		for i := 0; i <= nx; i++ {
			coords = append(coords, float64(i)/float64(nx), float64(j)/float64(ny))
		}
	}

	c2n := make([]int, 0, 4*nx*ny)
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			c2n = append(c2n, node(i, j), node(i+1, j), node(i+1, j+1), node(i, j+1))
		}
	}

	var e2n, e2c, b2n, b2c []int
	// Vertical edges between cell (i-1,j) and (i,j)
	for j := 0; j < ny; j++ {
		for i := 0; i <= nx; i++ {
			n0, n1 := node(i, j), node(i, j+1)
			switch {
			case i == 0:
				b2n = append(b2n, n0, n1)
				b2c = append(b2c, cell(0, j))
			case i == nx:
				b2n = append(b2n, n0, n1)
				b2c = append(b2c, cell(nx-1, j))
			default:
				e2n = append(e2n, n0, n1)
				e2c = append(e2c, cell(i-1, j), cell(i, j))
			}
		}
	}
	// Horizontal edges between cell (i,j-1) and (i,j)
	for j := 0; j <= ny; j++ {
		for i := 0; i < nx; i++ {
			n0, n1 := node(i, j), node(i+1, j)
			switch {
			case j == 0:
				b2n = append(b2n, n0, n1)
				b2c = append(b2c, cell(i, 0))
			case j == ny:
				b2n = append(b2n, n0, n1)
				b2c = append(b2c, cell(i, ny-1))
			default:
				e2n = append(e2n, n0, n1)
				e2c = append(e2c, cell(i, j-1), cell(i, j))
			}
		}
	}

	g := &QuadGrid{NX: nx, NY: ny}
	var err error
	if g.Nodes, err = r.DeclSet(prefix+"nodes", (nx+1)*(ny+1)); err != nil {
		return nil, err
	}
	if g.Cells, err = r.DeclSet(prefix+"cells", nx*ny); err != nil {
		return nil, err
	}
	if g.Edges, err = r.DeclSet(prefix+"edges", len(e2c)/2); err != nil {
		return nil, err
	}
	if g.BEdges, err = r.DeclSet(prefix+"bedges", len(b2c)); err != nil {
		return nil, err
	}
	if g.CellsToNodes, err = r.DeclMap(prefix+"pcell", g.Cells, g.Nodes, 4, c2n); err != nil {
		return nil, err
	}
	if g.EdgesToNodes, err = r.DeclMap(prefix+"pedge", g.Edges, g.Nodes, 2, e2n); err != nil {
		return nil, err
	}
	if g.EdgesToCells, err = r.DeclMap(prefix+"pecell", g.Edges, g.Cells, 2, e2c); err != nil {
		return nil, err
	}
	if g.BEdgesToNodes, err = r.DeclMap(prefix+"pbedge", g.BEdges, g.Nodes, 2, b2n); err != nil {
		return nil, err
	}
	if g.BEdgesToCells, err = r.DeclMap(prefix+"pbecell", g.BEdges, g.Cells, 1, b2c); err != nil {
		return nil, err
	}
	if g.Coords, err = DeclDat(r, g.Nodes, 2, prefix+"p_x", coords); err != nil {
		return nil, err
	}
	return g, nil
}
