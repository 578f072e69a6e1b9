package timing

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// LoopStats accumulates the executions of one named loop
type LoopStats struct {
	Name      string
	Count     int
	Elapsed   time.Duration
	Transfer  int64 // Bytes read, summed over calls
	Transfer2 int64 // Bytes written, summed over calls

	Plans     int // Plans built for this loop
	PlanSetup time.Duration
}

// Bandwidth returns the effective GB/s over all recorded calls
func (s LoopStats) Bandwidth() float64 {
	secs := s.Elapsed.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(s.Transfer+s.Transfer2) / secs / 1e9
}

// Mean returns the average time per call
func (s LoopStats) Mean() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Elapsed / time.Duration(s.Count)
}

// Metrics records per-loop timing. It is safe for concurrent use.
type Metrics struct {
	mu    sync.Mutex
	loops map[string]*LoopStats
}

// New creates an empty Metrics
func New() *Metrics {
	return &Metrics{loops: make(map[string]*LoopStats)}
}

// Reset discards everything recorded so far
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loops = make(map[string]*LoopStats)
}

func (m *Metrics) entry(name string) *LoopStats {
	s, ok := m.loops[name]
	if !ok {
		s = &LoopStats{Name: name}
		m.loops[name] = s
	}
	return s
}

// Record adds one execution of loop name
func (m *Metrics) Record(name string, elapsed time.Duration, transfer, transfer2 int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.entry(name)
	s.Count++
	s.Elapsed += elapsed
	s.Transfer += transfer
	s.Transfer2 += transfer2
}

// PlanBuilt adds the setup time of a plan built for loop name
func (m *Metrics) PlanBuilt(name string, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.entry(name)
	s.Plans++
	s.PlanSetup += elapsed
}

// Lookup returns the statistics of one loop
func (m *Metrics) Lookup(name string) (LoopStats, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.loops[name]
	if !ok {
		return LoopStats{}, false
	}
	return *s, true
}

// Snapshot returns a copy of all statistics sorted by loop name
func (m *Metrics) Snapshot() []LoopStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]LoopStats, 0, len(m.loops))
	for _, s := range m.loops {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Dump writes a table of the recorded loops
func (m *Metrics) Dump(w io.Writer) error {
	stats := m.Snapshot()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-24s %8s %12s %12s %10s %6s %12s\n",
		"loop", "count", "time (s)", "mean (ms)", "GB/s", "plans", "setup (s)"))
	sb.WriteString(strings.Repeat("-", 90) + "\n")
	var total time.Duration
	for _, s := range stats {
		total += s.Elapsed
		sb.WriteString(fmt.Sprintf("%-24s %8d %12.6f %12.4f %10.3f %6d %12.6f\n",
			s.Name, s.Count, s.Elapsed.Seconds(),
			float64(s.Mean().Microseconds())/1000, s.Bandwidth(),
			s.Plans, s.PlanSetup.Seconds()))
	}
	sb.WriteString(fmt.Sprintf("%-24s %8s %12.6f\n", "total", "", total.Seconds()))
	_, err := io.WriteString(w, sb.String())
	return err
}
