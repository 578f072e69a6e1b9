package mesh

import "fmt"

// Set is a dense collection of homogeneous mesh elements indexed [0, Size)
type Set struct {
	id   int
	name string

	size     int // Owned elements, iterated by loops
	coreSize int // Prefix of owned elements that never reach halo data
	haloSize int // Imported halo entries stored after the owned range
	execSize int // Leading halo entries executed redundantly by loops
}

// SetLayout describes how a Set's index range splits under a halo exchange
type SetLayout struct {
	Size     int
	CoreSize int // 0 with Halo == 0 means "all core"
	HaloSize int
	// ExecSize leading halo entries are executed by loops over the set so
	// that their indirect Inc and Write reach owned targets
	ExecSize int
}

func newSet(id int, name string, layout SetLayout) (*Set, error) {
	if layout.Size < 0 || layout.HaloSize < 0 || layout.ExecSize < 0 {
		return nil, fmt.Errorf("set %q: negative size (size=%d, halo=%d)",
			name, layout.Size, layout.HaloSize)
	}
	core := layout.CoreSize
	if core == 0 && layout.HaloSize == 0 {
		core = layout.Size
	}
	if core < 0 || core > layout.Size {
		return nil, fmt.Errorf("set %q: core size %d outside [0, %d]",
			name, core, layout.Size)
	}
	if layout.ExecSize > layout.HaloSize {
		return nil, fmt.Errorf("set %q: exec size %d exceeds halo size %d",
			name, layout.ExecSize, layout.HaloSize)
	}
	return &Set{
		id:       id,
		name:     name,
		size:     layout.Size,
		coreSize: core,
		haloSize: layout.HaloSize,
		execSize: layout.ExecSize,
	}, nil
}

// ID returns the registry-unique identifier of the set
func (s *Set) ID() int { return s.id }

// Name returns the declared name
func (s *Set) Name() string { return s.name }

// Size returns the number of owned elements
func (s *Set) Size() int { return s.size }

// CoreSize returns the number of leading elements independent of halo data
func (s *Set) CoreSize() int { return s.coreSize }

// HaloSize returns the number of imported halo entries
func (s *Set) HaloSize() int { return s.haloSize }

// ExecSize returns the number of halo entries loops execute after the owned range
func (s *Set) ExecSize() int { return s.execSize }

// Iterated is the number of elements a loop over the set executes
func (s *Set) Iterated() int { return s.size + s.execSize }

// Extent is the number of addressable entries, owned plus halo
func (s *Set) Extent() int { return s.size + s.haloSize }

func (s *Set) String() string {
	if s.execSize > 0 {
		return fmt.Sprintf("%s[%d core=%d halo=%d exec=%d]", s.name, s.size, s.coreSize, s.haloSize, s.execSize)
	}
	return fmt.Sprintf("%s[%d core=%d halo=%d]", s.name, s.size, s.coreSize, s.haloSize)
}
