package mesh

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// Registry is the declaration surface for sets, maps and dats. It hands out
// identifiers and tracks which dats are still alive.
type Registry struct {
	mu     sync.Mutex
	nextID int

	sets map[string]*Set
	maps map[string]*Map
	dats map[string]DatHandle
}

// NewRegistry creates an empty Registry
func NewRegistry() *Registry {
	return &Registry{
		nextID: 1,
		sets:   make(map[string]*Set),
		maps:   make(map[string]*Map),
		dats:   make(map[string]DatHandle),
	}
}

func (r *Registry) allocID() int {
	id := r.nextID
	r.nextID++
	return id
}

// DeclSet declares a set of size elements with no halo
func (r *Registry) DeclSet(name string, size int) (*Set, error) {
	return r.DeclPartitionedSet(name, SetLayout{Size: size})
}

// DeclPartitionedSet declares a set that is one partition of a distributed mesh
func (r *Registry) DeclPartitionedSet(name string, layout SetLayout) (*Set, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sets[name]; exists {
		return nil, fmt.Errorf("set %q already declared", name)
	}
	s, err := newSet(r.allocID(), name, layout)
	if err != nil {
		return nil, err
	}
	r.sets[name] = s
	return s, nil
}

// DeclMap declares a relation from one set to another
func (r *Registry) DeclMap(name string, from, to *Set, arity int, table []int) (*Map, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.maps[name]; exists {
		return nil, fmt.Errorf("map %q already declared", name)
	}
	m, err := newMap(r.allocID(), name, from, to, arity, table)
	if err != nil {
		return nil, err
	}
	r.maps[name] = m
	return m, nil
}

// DeclDat declares a dat over set. data may be nil (zero-filled), hold the
// owned values only, or hold owned plus halo values.
func DeclDat[T Number](r *Registry, set *Set, dim int, name string, data []T) (*Dat[T], error) {
	return declDat(r, set, dim, name, data, false)
}

// DeclTempDat declares a scratch dat that is allocated on first use and may
// be released between uses
func DeclTempDat[T Number](r *Registry, set *Set, dim int, name string) (*Dat[T], error) {
	return declDat[T](r, set, dim, name, nil, true)
}

func declDat[T Number](r *Registry, set *Set, dim int, name string, data []T, temp bool) (*Dat[T], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.dats[name]; exists {
		return nil, fmt.Errorf("dat %q already declared", name)
	}
	d, err := newDat(r.allocID(), set, dim, name, data, temp)
	if err != nil {
		return nil, err
	}
	r.dats[name] = d
	return d, nil
}

// Release unregisters a temporary dat. Its storage is dropped and any later
// use is a configuration error.
func (r *Registry) Release(d DatHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	registered, ok := r.dats[d.Name()]
	if !ok || registered.ID() != d.ID() {
		return fmt.Errorf("dat %q is not registered", d.Name())
	}
	if !d.IsTemp() {
		return fmt.Errorf("dat %q is not a temporary", d.Name())
	}
	delete(r.dats, d.Name())
	if rel, ok := d.(interface{ release() }); ok {
		rel.release()
	}
	return nil
}

func (d *Dat[T]) release() {
	d.released.Store(true)
	d.data = nil
}

// IsRegistered reports whether d is a live dat of this registry
func (r *Registry) IsRegistered(d DatHandle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	registered, ok := r.dats[d.Name()]
	return ok && registered.ID() == d.ID()
}

// LookupSet returns a declared set by name
func (r *Registry) LookupSet(name string) (*Set, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sets[name]
	return s, ok
}

// LookupMap returns a declared map by name
func (r *Registry) LookupMap(name string) (*Map, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.maps[name]
	return m, ok
}

// Diagnostics writes a summary of every declaration
func (r *Registry) Diagnostics(w io.Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var sb strings.Builder
	sb.WriteString("=== Declarations ===\n")

	sb.WriteString("\n--- Sets ---\n")
	for _, name := range sortedKeys(r.sets) {
		s := r.sets[name]
		sb.WriteString(fmt.Sprintf("  %-24s size %8d  core %8d  halo %6d  exec %6d\n",
			s.name, s.size, s.coreSize, s.haloSize, s.execSize))
	}

	sb.WriteString("\n--- Maps ---\n")
	for _, name := range sortedKeys(r.maps) {
		m := r.maps[name]
		sb.WriteString(fmt.Sprintf("  %-24s %s -> %s  arity %d\n",
			m.name, m.from.name, m.to.name, m.arity))
	}

	sb.WriteString("\n--- Dats ---\n")
	for _, name := range sortedKeys(r.dats) {
		d := r.dats[name]
		kind := ""
		if d.IsTemp() {
			kind = " (temp)"
		}
		sb.WriteString(fmt.Sprintf("  %-24s on %-16s dim %d  %s%s\n",
			d.Name(), d.Set().Name(), d.Dim(), d.DataType(), kind))
	}
	fmt.Fprint(w, sb.String())
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
