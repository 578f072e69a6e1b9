// Package config reads runner settings from HCL files and the environment.
package config

import (
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/notargets/meshloop/runner"
	log "github.com/sirupsen/logrus"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// Environment variables read by ApplyEnv
const (
	EnvPartSize     = "MESHLOOP_PART_SIZE"
	EnvWorkers      = "MESHLOOP_WORKERS"
	EnvDiags        = "MESHLOOP_DIAGS"
	EnvLoopPartSize = "MESHLOOP_PART_SIZE_" // followed by the upper case loop name
)

// File is the decoded form of a settings file:
//
//	part_size = 256
//	workers   = num_cpus
//	diags     = 1
//
//	loop "flux" {
//	  part_size = 128
//	}
type File struct {
	PartSize int     `hcl:"part_size,optional"`
	Workers  int     `hcl:"workers,optional"`
	Diags    int     `hcl:"diags,optional"`
	Loops    []*Loop `hcl:"loop,block"`
}

// Loop overrides settings for one named loop
type Loop struct {
	Name     string `hcl:"name,label"`
	PartSize int    `hcl:"part_size"`
}

// evalContext exposes num_cpus and the min/max functions to expressions
func evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"num_cpus": cty.NumberIntVal(int64(runtime.NumCPU())),
		},
		Functions: map[string]function.Function{
			"min": stdlib.MinFunc,
			"max": stdlib.MaxFunc,
		},
	}
}

// Load parses and decodes the settings file at path
func Load(path string) (*File, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, diags)
	}
	return decode(path, file)
}

// Parse decodes settings from src, filename is used in diagnostics
func Parse(src []byte, filename string) (*File, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config %s: %w", filename, diags)
	}
	return decode(filename, file)
}

func decode(name string, file *hcl.File) (*File, error) {
	var f File
	if diags := gohcl.DecodeBody(file.Body, evalContext(), &f); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode config %s: %w", name, diags)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", name, err)
	}
	log.Debugf("loaded config %s: part size %d, workers %d, %d loop overrides",
		name, f.PartSize, f.Workers, len(f.Loops))
	return &f, nil
}

// Validate rejects negative settings and repeated loop blocks
func (f *File) Validate() error {
	if f.PartSize < 0 {
		return fmt.Errorf("part_size must not be negative, got %d", f.PartSize)
	}
	if f.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", f.Workers)
	}
	seen := make(map[string]bool, len(f.Loops))
	for _, l := range f.Loops {
		if l.PartSize <= 0 {
			return fmt.Errorf("loop %q: part_size must be positive, got %d", l.Name, l.PartSize)
		}
		if seen[l.Name] {
			return fmt.Errorf("loop %q declared more than once", l.Name)
		}
		seen[l.Name] = true
	}
	return nil
}

// Loop returns the override block for name, comparing names case insensitively
func (f *File) Loop(name string) (*Loop, bool) {
	for _, l := range f.Loops {
		if strings.EqualFold(l.Name, name) {
			return l, true
		}
	}
	return nil, false
}

// ApplyEnv overrides settings from environ, given as KEY=VALUE entries like
// os.Environ. A per loop variable without a matching loop block adds one
// named by the lower case suffix.
func (f *File) ApplyEnv(environ []string) error {
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, "MESHLOOP_") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("environment %s: %w", key, err)
		}
		switch {
		case key == EnvPartSize:
			f.PartSize = n
		case key == EnvWorkers:
			f.Workers = n
		case key == EnvDiags:
			f.Diags = n
		case strings.HasPrefix(key, EnvLoopPartSize):
			name := strings.TrimPrefix(key, EnvLoopPartSize)
			if name == "" {
				return fmt.Errorf("environment %s: missing loop name", key)
			}
			if l, ok := f.Loop(name); ok {
				l.PartSize = n
			} else {
				f.Loops = append(f.Loops, &Loop{Name: strings.ToLower(name), PartSize: n})
			}
		default:
			log.Warnf("ignoring unknown environment variable %s", key)
		}
	}
	return f.Validate()
}

// RunnerConfig converts the settings into runner tunables
func (f *File) RunnerConfig() runner.Config {
	cfg := runner.Config{
		PartSize: f.PartSize,
		Workers:  f.Workers,
		Diags:    f.Diags,
	}
	if len(f.Loops) > 0 {
		cfg.LoopPartSize = make(map[string]int, len(f.Loops))
		for _, l := range f.Loops {
			cfg.LoopPartSize[l.Name] = l.PartSize
		}
	}
	return cfg
}

// LogLevel maps the diagnostics level onto a logrus level
func (f *File) LogLevel() log.Level {
	switch {
	case f.Diags >= 2:
		return log.DebugLevel
	case f.Diags == 1:
		return log.InfoLevel
	default:
		return log.WarnLevel
	}
}

// LoopNames returns the names of the loop blocks in sorted order
func (f *File) LoopNames() []string {
	names := make([]string, 0, len(f.Loops))
	for _, l := range f.Loops {
		names = append(names, l.Name)
	}
	sort.Strings(names)
	return names
}
