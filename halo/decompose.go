package halo

import (
	"fmt"
	"math"
	"slices"

	"github.com/notargets/meshloop/mesh"
)

// Strategy selects how elements are assigned to partitions
type Strategy int

const (
	BlockPartition Strategy = iota // Consecutive elements
	RoundRobin                     // Distribute cyclically
)

func (s Strategy) String() string {
	switch s {
	case BlockPartition:
		return "block"
	case RoundRobin:
		return "round-robin"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// Decompose assigns n elements to numPartitions partitions and returns the
// owner of every element
func Decompose(n, numPartitions int, strategy Strategy) ([]int, error) {
	if n < 0 {
		return nil, fmt.Errorf("element count must not be negative, got %d", n)
	}
	if numPartitions < 1 {
		return nil, fmt.Errorf("need at least one partition, got %d", numPartitions)
	}
	owner := make([]int, n)
	switch strategy {
	case BlockPartition:
		perPartition := max(int(math.Ceil(float64(n)/float64(numPartitions))), 1)
		for i := range owner {
			owner[i] = min(i/perPartition, numPartitions-1)
		}
	case RoundRobin:
		for i := range owner {
			owner[i] = i % numPartitions
		}
	default:
		return nil, fmt.Errorf("unknown partition strategy %v", strategy)
	}
	return owner, nil
}

// ImportsFor lists, for every partition, the elements its owned elements
// reach through m that another partition owns. m must map the partitioned
// set onto itself.
func ImportsFor(owner []int, m *mesh.Map) ([][]int, error) {
	numPartitions, err := checkSelfMap(owner, m)
	if err != nil {
		return nil, err
	}
	seen := make([]map[int]bool, numPartitions)
	imports := make([][]int, numPartitions)
	for p := range seen {
		seen[p] = make(map[int]bool)
	}
	for e, p := range owner {
		for _, t := range m.Row(e) {
			if owner[t] != p && !seen[p][t] {
				seen[p][t] = true
				imports[p] = append(imports[p], t)
			}
		}
	}
	for p := range imports {
		slices.Sort(imports[p])
	}
	return imports, nil
}

// ExecImportsFor computes the halo a partition needs to run Inc or Write loops
// over m redundantly. exec[p] holds the foreign elements whose rows reach an
// element p owns; nonExec[p] holds the remaining foreign targets of the rows
// p executes. Both lists are sorted.
func ExecImportsFor(owner []int, m *mesh.Map) (exec, nonExec [][]int, err error) {
	numPartitions, err := checkSelfMap(owner, m)
	if err != nil {
		return nil, nil, err
	}
	exec = make([][]int, numPartitions)
	nonExec = make([][]int, numPartitions)
	for p := 0; p < numPartitions; p++ {
		inExec := make(map[int]bool)
		for e, q := range owner {
			if q == p {
				continue
			}
			for _, t := range m.Row(e) {
				if owner[t] == p {
					inExec[e] = true
					exec[p] = append(exec[p], e)
					break
				}
			}
		}

		seen := make(map[int]bool)
		visit := func(e int) {
			for _, t := range m.Row(e) {
				if owner[t] != p && !inExec[t] && !seen[t] {
					seen[t] = true
					nonExec[p] = append(nonExec[p], t)
				}
			}
		}
		for e, q := range owner {
			if q == p {
				visit(e)
			}
		}
		for _, e := range exec[p] {
			visit(e)
		}
		slices.Sort(nonExec[p])
	}
	return exec, nonExec, nil
}

func checkSelfMap(owner []int, m *mesh.Map) (int, error) {
	if m.From().Size() != len(owner) || m.To().Size() != len(owner) {
		return 0, fmt.Errorf("map %s relates %d to %d elements, ownership covers %d",
			m.Name(), m.From().Size(), m.To().Size(), len(owner))
	}
	numPartitions := 0
	for _, p := range owner {
		numPartitions = max(numPartitions, p+1)
	}
	return numPartitions, nil
}
