package mesh

import "fmt"

// Map is a fixed-arity relation from a source Set to a target Set. Every
// iterated source element, owned and exec halo, has a row.
// The table is stored row-major: entry j of element e is Table()[e*Arity()+j].
type Map struct {
	id    int
	name  string
	from  *Set
	to    *Set
	arity int
	table []int
}

func newMap(id int, name string, from, to *Set, arity int, table []int) (*Map, error) {
	if from == nil || to == nil {
		return nil, fmt.Errorf("map %q: nil set", name)
	}
	if arity <= 0 {
		return nil, fmt.Errorf("map %q: arity must be positive, got %d", name, arity)
	}
	// Exec halo elements of the source carry rows after the owned ones
	if rows := from.Iterated(); len(table) != arity*rows {
		return nil, fmt.Errorf("map %q: table length %d does not match arity %d x |%s| %d",
			name, len(table), arity, from.name, rows)
	}
	extent := to.Extent()
	for i, t := range table {
		if t < 0 || t >= extent {
			return nil, fmt.Errorf("map %q: entry %d (element %d, index %d) = %d outside target %s [0, %d)",
				name, i, i/arity, i%arity, t, to.name, extent)
		}
	}
	return &Map{
		id:    id,
		name:  name,
		from:  from,
		to:    to,
		arity: arity,
		table: table,
	}, nil
}

// ID returns the registry-unique identifier of the map
func (m *Map) ID() int { return m.id }

// Name returns the declared name
func (m *Map) Name() string { return m.name }

// From returns the source set
func (m *Map) From() *Set { return m.from }

// To returns the target set
func (m *Map) To() *Set { return m.to }

// Arity returns the number of targets per source element
func (m *Map) Arity() int { return m.arity }

// Index returns target j of source element e
func (m *Map) Index(e, j int) int { return m.table[e*m.arity+j] }

// Row returns all targets of source element e
func (m *Map) Row(e int) []int { return m.table[e*m.arity : (e+1)*m.arity] }

// Table returns the raw table; callers must not modify it
func (m *Map) Table() []int { return m.table }

func (m *Map) String() string {
	return fmt.Sprintf("%s: %s -> %s (arity %d)", m.name, m.from.name, m.to.name, m.arity)
}
