package runner

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/notargets/meshloop/mesh"
	"github.com/notargets/meshloop/partitions"
	"github.com/notargets/meshloop/runner/builder"
	"github.com/notargets/meshloop/timing"
	log "github.com/sirupsen/logrus"
)

// Runner executes loops over the sets of one registry. Plans are built on
// first use and cached by loop signature.
type Runner struct {
	Config
	reg   *mesh.Registry
	pools *scratchPools

	mu    sync.Mutex
	plans map[builder.Signature]*partitions.Plan
}

// NewRunner creates a Runner for the declarations of reg
func NewRunner(reg *mesh.Registry, cfg Config) (kr *Runner) {
	kr = &Runner{
		Config: cfg.withDefaults(),
		reg:    reg,
		pools:  &scratchPools{},
		plans:  make(map[builder.Signature]*partitions.Plan),
	}
	return
}

// Metrics returns the timing collected by the Runner
func (kr *Runner) Metrics() *timing.Metrics { return kr.Config.Metrics }

// Registry returns the registry the Runner was created for
func (kr *Runner) Registry() *mesh.Registry { return kr.reg }

// NumPlans returns the number of cached plans
func (kr *Runner) NumPlans() int {
	kr.mu.Lock()
	defer kr.mu.Unlock()
	return len(kr.plans)
}

// ParLoop runs kernel once for every element of set. Elements sharing an
// indirectly written target never run concurrently, so kernels need no
// synchronisation. Global reductions are written to their slices when the
// loop returns.
func (kr *Runner) ParLoop(ctx context.Context, name string, set *mesh.Set, kernel Kernel, args ...Arg) error {
	start := time.Now()
	if set == nil {
		return fmt.Errorf("loop %q: %w: nil set", name, ErrConfig)
	}
	if kernel == nil {
		return fmt.Errorf("loop %q: %w: nil kernel", name, ErrConfig)
	}

	specs, err := kr.argSpecs(name, set, args)
	if err != nil {
		return err
	}
	plan, err := kr.lookupPlan(name, set, specs)
	if err != nil {
		return err
	}

	ex := &execution{
		loop:    name,
		plan:    plan,
		args:    args,
		kernel:  kernel,
		workers: kr.Workers,
		pools:   kr.pools,
	}
	if err := ex.bind(); err != nil {
		return fmt.Errorf("loop %q: %w", name, err)
	}

	runErr := ex.run(ctx, kr.Exchanger, haloReads(set, specs))
	// An aborted loop may still have written some blocks
	if written := writtenDats(specs); len(written) > 0 && ex.started {
		kr.Exchanger.MarkDirty(written)
	}
	if runErr != nil {
		return fmt.Errorf("loop %q: %w", name, runErr)
	}
	ex.complete()

	kr.Config.Metrics.Record(name, time.Since(start), plan.Transfer, plan.Transfer2)
	return nil
}

// PlanFor returns the plan ParLoop would use for the loop, building it if
// needed
func (kr *Runner) PlanFor(name string, set *mesh.Set, args ...Arg) (*partitions.Plan, error) {
	if set == nil {
		return nil, fmt.Errorf("loop %q: %w: nil set", name, ErrConfig)
	}
	specs, err := kr.argSpecs(name, set, args)
	if err != nil {
		return nil, err
	}
	return kr.lookupPlan(name, set, specs)
}

func (kr *Runner) argSpecs(name string, set *mesh.Set, args []Arg) ([]builder.ArgSpec, error) {
	specs := make([]builder.ArgSpec, len(args))
	for i, a := range args {
		if a == nil || reflect.ValueOf(a).IsNil() {
			return nil, fmt.Errorf("loop %q: %w: argument %d is nil", name, ErrConfig, i)
		}
		specs[i] = a.Spec()
		if err := specs[i].Validate(set); err != nil {
			return nil, fmt.Errorf("loop %q: argument %d: %w", name, i, err)
		}
	}
	return specs, nil
}

func (kr *Runner) lookupPlan(name string, set *mesh.Set, specs []builder.ArgSpec) (*partitions.Plan, error) {
	partSize := kr.PartSizeFor(name)
	sig := builder.GenerateSignature(name, set, partSize, specs)

	kr.mu.Lock()
	defer kr.mu.Unlock()
	if plan, ok := kr.plans[sig]; ok {
		return plan, nil
	}

	start := time.Now()
	plan, err := partitions.Build(name, set, partSize, specs)
	if err != nil {
		return nil, err
	}
	if kr.Diags > 1 {
		if err := plan.Verify(); err != nil {
			return nil, fmt.Errorf("loop %q: plan check failed: %w", name, err)
		}
	}
	elapsed := time.Since(start)
	kr.plans[sig] = plan
	kr.Config.Metrics.PlanBuilt(name, elapsed)

	log.Debugf("loop %s: plan for %d elements, %d blocks, %d colors (%d core), part size %d, built in %v",
		name, plan.SetSize, plan.NumBlocks(), plan.NColors, plan.NColorsCore, partSize, elapsed)
	return plan, nil
}

// ReleaseTemp releases a temporary dat. Plans that still reference it are
// dropped with a warning.
func (kr *Runner) ReleaseTemp(d mesh.DatHandle) error {
	if d == nil || !d.IsTemp() {
		return fmt.Errorf("%w: only temporary dats can be released", ErrConfig)
	}
	if d.Released() {
		return fmt.Errorf("%w: dat %q already released", ErrConfig, d.Name())
	}

	kr.mu.Lock()
	var dropped []string
	for sig := range kr.plans {
		if sig.References(d.ID()) {
			dropped = append(dropped, sig.Loop)
			delete(kr.plans, sig)
		}
	}
	kr.mu.Unlock()

	if len(dropped) > 0 {
		log.Warnf("releasing temporary dat %s still referenced by %d cached plans (loops %v)",
			d.Name(), len(dropped), dropped)
	}
	if err := kr.reg.Release(d); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return nil
}

// haloReads lists the dats whose halo values a loop may observe. Exec halo
// elements also read the halo entries of direct dats.
func haloReads(set *mesh.Set, specs []builder.ArgSpec) []mesh.DatHandle {
	var dats []mesh.DatHandle
	seen := make(map[int]bool)
	for i := range specs {
		s := &specs[i]
		if s.Global || !s.Reads() || seen[s.Dat.ID()] {
			continue
		}
		if s.IsIndirect() || set.ExecSize() > 0 {
			seen[s.Dat.ID()] = true
			dats = append(dats, s.Dat)
		}
	}
	return dats
}

// writtenDats lists the dats a loop modifies
func writtenDats(specs []builder.ArgSpec) []mesh.DatHandle {
	var dats []mesh.DatHandle
	seen := make(map[int]bool)
	for i := range specs {
		s := &specs[i]
		if !s.Global && s.Writes() && !seen[s.Dat.ID()] {
			seen[s.Dat.ID()] = true
			dats = append(dats, s.Dat)
		}
	}
	return dats
}
