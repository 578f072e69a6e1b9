package mesh

import (
	"fmt"

	"github.com/notargets/gocfd/DG3D/mesh/readers"
)

// VolumeMesh is a simplicial mesh read from a mesh file, exposed as sets and
// maps for loops over cells and vertices
type VolumeMesh struct {
	Nodes        *Set
	Cells        *Set
	CellsToNodes *Map
	Coords       *Dat[float64] // dim 3
}

// LoadVolumeMesh reads a mesh file (Gambit .neu, Gmsh) and declares its
// vertices and cells in the registry
func LoadVolumeMesh(r *Registry, prefix, meshfile string) (*VolumeMesh, error) {
	msh, err := readers.ReadMeshFile(meshfile)
	if err != nil {
		return nil, fmt.Errorf("failed to read mesh %s: %w", meshfile, err)
	}
	if len(msh.EtoV) == 0 {
		return nil, fmt.Errorf("mesh %s has no elements", meshfile)
	}

	// Only uniform element types map onto a fixed-arity relation
	arity := len(msh.EtoV[0])
	table := make([]int, 0, arity*len(msh.EtoV))
	for k, ev := range msh.EtoV {
		if len(ev) != arity {
			return nil, fmt.Errorf("mesh %s: element %d has %d vertices, expected %d (mixed element types)",
				meshfile, k, len(ev), arity)
		}
		for _, v := range ev {
			table = append(table, int(v))
		}
	}

	coords := make([]float64, 0, 3*len(msh.Vertices))
	for _, v := range msh.Vertices {
		coords = append(coords, v[0], v[1], v[2])
	}

	vm := &VolumeMesh{}
	if vm.Nodes, err = r.DeclSet(prefix+"nodes", len(msh.Vertices)); err != nil {
		return nil, err
	}
	if vm.Cells, err = r.DeclSet(prefix+"cells", len(msh.EtoV)); err != nil {
		return nil, err
	}
	if vm.CellsToNodes, err = r.DeclMap(prefix+"cellsToNodes", vm.Cells, vm.Nodes, arity, table); err != nil {
		return nil, err
	}
	if vm.Coords, err = DeclDat(r, vm.Nodes, 3, prefix+"nodeCoords", coords); err != nil {
		return nil, err
	}
	return vm, nil
}
