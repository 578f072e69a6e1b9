// File: runner/kernel_config.go

package runner

import (
	"runtime"
	"strings"

	"github.com/notargets/meshloop/halo"
	"github.com/notargets/meshloop/timing"
)

// DefaultPartSize is the block size used when no partition size is configured
const DefaultPartSize = 2048

// Config holds the Runner tunables
type Config struct {
	PartSize     int            // Elements per block, DefaultPartSize if unset
	LoopPartSize map[string]int // Per loop overrides of PartSize, names match in any case
	Workers      int            // Concurrent blocks per color, GOMAXPROCS if unset

	// Diags above 1 re-verifies every plan after it is built
	Diags int

	Exchanger halo.Exchanger // halo.Noop if nil
	Metrics   *timing.Metrics
}

func (c Config) withDefaults() Config {
	if c.PartSize <= 0 {
		c.PartSize = DefaultPartSize
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.Exchanger == nil {
		c.Exchanger = halo.Noop{}
	}
	if c.Metrics == nil {
		c.Metrics = timing.New()
	}
	overrides := make(map[string]int, len(c.LoopPartSize))
	for name, size := range c.LoopPartSize {
		if size > 0 {
			overrides[strings.ToLower(name)] = size
		}
	}
	c.LoopPartSize = overrides
	return c
}

// PartSizeFor returns the partition size used for loop name
func (c Config) PartSizeFor(name string) int {
	if size, ok := c.LoopPartSize[strings.ToLower(name)]; ok && size > 0 {
		return size
	}
	for loop, size := range c.LoopPartSize {
		if size > 0 && strings.EqualFold(loop, name) {
			return size
		}
	}
	if c.PartSize > 0 {
		return c.PartSize
	}
	return DefaultPartSize
}
