// Package solver holds small finite volume models that drive the loop
// engine the way an application would.
package solver

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/notargets/meshloop/mesh"
	"github.com/notargets/meshloop/runner"
	log "github.com/sirupsen/logrus"
)

// ErrDry is returned when a cell loses all of its water
var ErrDry = errors.New("non-positive water depth")

// Params configures the shallow water model
type Params struct {
	Gravity   float64
	CFL       float64
	Depth     float64 // Still water depth
	Amplitude float64 // Height of the initial Gaussian hump
	Width     float64 // Radius of the hump
	CenterX   float64
	CenterY   float64
}

// DefaultParams is a hump in the middle of the unit square
func DefaultParams() Params {
	return Params{
		Gravity:   9.81,
		CFL:       0.4,
		Depth:     1,
		Amplitude: 0.2,
		Width:     0.1,
		CenterX:   0.5,
		CenterY:   0.5,
	}
}

// StepReport holds the global reductions of one time step
type StepReport struct {
	Step     int
	Time     float64
	Dt       float64
	Mass     float64 // Integral of the depth
	MinDepth float64
	MaxDepth float64
	MaxSpeed float64 // Largest wave speed seen by the edge fluxes
}

// ShallowWater integrates the shallow water equations on a quadrilateral
// grid with a first order Rusanov flux, reflective walls and a two stage
// Runge-Kutta step. State per cell is depth h and discharges hu, hv.
type ShallowWater struct {
	Params
	Grid *mesh.QuadGrid
	Geo  *Geometry
	Q    *mesh.Dat[float64] // cells, dim 3

	kr       *runner.Runner
	residual *mesh.Dat[float64] // Temporary, cells, dim 3
	midpoint *mesh.Dat[float64] // Temporary first stage state, cells, dim 3
	step     int
	time     float64
}

// NewShallowWater declares the model state on g and sets the initial
// condition
func NewShallowWater(ctx context.Context, kr *runner.Runner, g *mesh.QuadGrid, p Params) (*ShallowWater, error) {
	if p.Gravity <= 0 || p.CFL <= 0 || p.Depth <= 0 {
		return nil, fmt.Errorf("gravity, CFL and depth must be positive, got %g, %g and %g",
			p.Gravity, p.CFL, p.Depth)
	}
	geo, err := NewGeometry(ctx, kr, g)
	if err != nil {
		return nil, err
	}
	sw := &ShallowWater{Params: p, Grid: g, Geo: geo, kr: kr}
	reg := kr.Registry()
	if sw.Q, err = mesh.DeclDat[float64](reg, g.Cells, 3, "values", nil); err != nil {
		return nil, err
	}
	if sw.residual, err = mesh.DeclTempDat[float64](reg, g.Cells, 3, "residual"); err != nil {
		return nil, err
	}
	if sw.midpoint, err = mesh.DeclTempDat[float64](reg, g.Cells, 3, "midPointValues"); err != nil {
		return nil, err
	}

	center := runner.ArgDirect(geo.Centers, runner.Read)
	q := runner.ArgDirect(sw.Q, runner.Write)
	err = kr.ParLoop(ctx, "initial_condition", g.Cells, func(it *runner.Iter) {
		c := center.View(it)
		r2 := (c[0]-p.CenterX)*(c[0]-p.CenterX) + (c[1]-p.CenterY)*(c[1]-p.CenterY)
		v := q.View(it)
		v[0] = p.Depth + p.Amplitude*math.Exp(-r2/(p.Width*p.Width))
		v[1], v[2] = 0, 0
	}, center, q)
	if err != nil {
		return nil, err
	}
	return sw, nil
}

// Time returns the simulated time
func (sw *ShallowWater) Time() float64 { return sw.time }

// Step advances the model by one stable time step. The first stage writes
// the Euler predictor into the midpoint state, the second averages it with
// the old state and its own Euler update. Both stages reuse the residual.
func (sw *ShallowWater) Step(ctx context.Context) (StepReport, error) {
	dt, err := sw.timestep(ctx)
	if err != nil {
		return StepReport{}, err
	}
	speed1, err := sw.fluxes(ctx, sw.Q)
	if err != nil {
		return StepReport{}, err
	}
	if err := sw.predict(ctx, dt); err != nil {
		return StepReport{}, err
	}
	speed2, err := sw.fluxes(ctx, sw.midpoint)
	if err != nil {
		return StepReport{}, err
	}
	report, err := sw.correct(ctx, dt)
	if err != nil {
		return StepReport{}, err
	}
	sw.step++
	sw.time += dt
	report.Step, report.Time, report.Dt, report.MaxSpeed = sw.step, sw.time, dt, max(speed1, speed2)
	if !(report.MinDepth > 0) {
		return report, fmt.Errorf("step %d: %w: %g", sw.step, ErrDry, report.MinDepth)
	}
	log.Debugf("step %d: t=%.5f dt=%.3e mass=%.12f depth [%.6f, %.6f]",
		report.Step, report.Time, dt, report.Mass, report.MinDepth, report.MaxDepth)
	return report, nil
}

// Run advances the model steps times and returns the report of every step
func (sw *ShallowWater) Run(ctx context.Context, steps int) ([]StepReport, error) {
	reports := make([]StepReport, 0, steps)
	for s := 0; s < steps; s++ {
		r, err := sw.Step(ctx)
		if err != nil {
			return reports, err
		}
		reports = append(reports, r)
	}
	return reports, nil
}

// Close releases the temporary storage of the model
func (sw *ShallowWater) Close() error {
	for _, tmp := range []*mesh.Dat[float64]{sw.residual, sw.midpoint} {
		if tmp.Released() {
			continue
		}
		if err := sw.kr.ReleaseTemp(tmp); err != nil {
			return err
		}
	}
	return nil
}

func (sw *ShallowWater) timestep(ctx context.Context) (float64, error) {
	q := runner.ArgDirect(sw.Q, runner.Read)
	area := runner.ArgDirect(sw.Geo.Areas, runner.Read)
	dt := runner.ArgGbl([]float64{math.Inf(1)}, runner.Min)
	g, cfl := sw.Gravity, sw.CFL
	err := sw.kr.ParLoop(ctx, "compute_timestep", sw.Grid.Cells, func(it *runner.Iter) {
		v := q.View(it)
		h := max(v[0], 1e-12)
		u, w := v[1]/h, v[2]/h
		local := cfl * math.Sqrt(area.View(it)[0]) / (math.Hypot(u, w) + math.Sqrt(g*h))
		d := dt.View(it)
		d[0] = min(d[0], local)
	}, q, area, dt)
	if err != nil {
		return 0, err
	}
	return dt.Values()[0], nil
}

// fluxes accumulates the edge and wall fluxes of state into the residual
func (sw *ShallowWater) fluxes(ctx context.Context, state *mesh.Dat[float64]) (float64, error) {
	g := sw.Grid
	qL := runner.ArgDat(state, 0, g.EdgesToCells, runner.Read)
	qR := runner.ArgDat(state, 1, g.EdgesToCells, runner.Read)
	rL := runner.ArgDat(sw.residual, 0, g.EdgesToCells, runner.Inc)
	rR := runner.ArgDat(sw.residual, 1, g.EdgesToCells, runner.Inc)
	nrm := runner.ArgDirect(sw.Geo.Normals, runner.Read)
	speed := runner.ArgGbl([]float64{0}, runner.Max)
	grav := sw.Gravity
	err := sw.kr.ParLoop(ctx, "compute_flux", g.Edges, func(it *runner.Iter) {
		var f [3]float64
		n := nrm.View(it)
		s := rusanov(f[:], qL.View(it), qR.View(it), n[0], n[1], grav)
		l, r := rL.View(it), rR.View(it)
		for k := range f {
			l[k] -= n[2] * f[k]
			r[k] += n[2] * f[k]
		}
		sp := speed.View(it)
		sp[0] = max(sp[0], s)
	}, qL, qR, rL, rR, nrm, speed)
	if err != nil {
		return 0, err
	}

	// Reflective walls carry only the hydrostatic pressure
	qB := runner.ArgDat(state, 0, g.BEdgesToCells, runner.Read)
	rB := runner.ArgDat(sw.residual, 0, g.BEdgesToCells, runner.Inc)
	bnrm := runner.ArgDirect(sw.Geo.BNormals, runner.Read)
	err = sw.kr.ParLoop(ctx, "wall_flux", g.BEdges, func(it *runner.Iter) {
		n := bnrm.View(it)
		h := qB.View(it)[0]
		p := 0.5 * grav * h * h * n[2]
		r := rB.View(it)
		r[1] -= p * n[0]
		r[2] -= p * n[1]
	}, qB, rB, bnrm)
	if err != nil {
		return 0, err
	}
	return speed.Values()[0], nil
}

// predict sets midpoint = Q + dt*R(Q) and clears the residual
func (sw *ShallowWater) predict(ctx context.Context, dt float64) error {
	q := runner.ArgDirect(sw.Q, runner.Read)
	mid := runner.ArgDirect(sw.midpoint, runner.Write)
	res := runner.ArgDirect(sw.residual, runner.RW)
	area := runner.ArgDirect(sw.Geo.Areas, runner.Read)
	step := runner.ArgGbl([]float64{dt}, runner.Read)
	return sw.kr.ParLoop(ctx, "evolve_rk2_1", sw.Grid.Cells, func(it *runner.Iter) {
		v, m, r := q.View(it), mid.View(it), res.View(it)
		scale := step.View(it)[0] / area.View(it)[0]
		for k := range v {
			m[k] = v[k] + scale*r[k]
			r[k] = 0
		}
	}, q, mid, res, area, step)
}

// correct sets Q = (Q + midpoint + dt*R(midpoint)) / 2, clears the residual
// and reduces the new state
func (sw *ShallowWater) correct(ctx context.Context, dt float64) (StepReport, error) {
	q := runner.ArgDirect(sw.Q, runner.RW)
	mid := runner.ArgDirect(sw.midpoint, runner.Read)
	res := runner.ArgDirect(sw.residual, runner.RW)
	area := runner.ArgDirect(sw.Geo.Areas, runner.Read)
	step := runner.ArgGbl([]float64{dt}, runner.Read)
	mass := runner.ArgGbl([]float64{0}, runner.Inc)
	lo := runner.ArgGbl([]float64{math.Inf(1)}, runner.Min)
	hi := runner.ArgGbl([]float64{math.Inf(-1)}, runner.Max)
	err := sw.kr.ParLoop(ctx, "evolve_rk2_2", sw.Grid.Cells, func(it *runner.Iter) {
		v, m, r := q.View(it), mid.View(it), res.View(it)
		a := area.View(it)[0]
		scale := step.View(it)[0] / a
		for k := range v {
			v[k] = 0.5 * (v[k] + m[k] + scale*r[k])
			r[k] = 0
		}
		mass.View(it)[0] += v[0] * a
		l, h := lo.View(it), hi.View(it)
		l[0] = min(l[0], v[0])
		h[0] = max(h[0], v[0])
	}, q, mid, res, area, step, mass, lo, hi)
	if err != nil {
		return StepReport{}, err
	}
	return StepReport{Mass: mass.Values()[0], MinDepth: lo.Values()[0], MaxDepth: hi.Values()[0]}, nil
}

// Mass integrates the depth over the grid
func (sw *ShallowWater) Mass(ctx context.Context) (float64, error) {
	q := runner.ArgDirect(sw.Q, runner.Read)
	area := runner.ArgDirect(sw.Geo.Areas, runner.Read)
	mass := runner.ArgGbl([]float64{0}, runner.Inc)
	err := sw.kr.ParLoop(ctx, "mass", sw.Grid.Cells, func(it *runner.Iter) {
		mass.View(it)[0] += q.View(it)[0] * area.View(it)[0]
	}, q, area, mass)
	if err != nil {
		return 0, err
	}
	return mass.Values()[0], nil
}

// rusanov stores the numerical flux across an edge with unit normal (nx, ny)
// in f and returns the wave speed used for dissipation
func rusanov(f, qL, qR []float64, nx, ny, g float64) float64 {
	var fL, fR [3]float64
	sL := normalFlux(fL[:], qL, nx, ny, g)
	sR := normalFlux(fR[:], qR, nx, ny, g)
	s := max(sL, sR)
	for k := range f {
		f[k] = 0.5*(fL[k]+fR[k]) - 0.5*s*(qR[k]-qL[k])
	}
	return s
}

// normalFlux stores the physical flux of q along (nx, ny) and returns the
// fastest signal speed
func normalFlux(f, q []float64, nx, ny, g float64) float64 {
	h := q[0]
	un := (q[1]*nx + q[2]*ny) / h
	p := 0.5 * g * h * h
	f[0] = h * un
	f[1] = q[1]*un + p*nx
	f[2] = q[2]*un + p*ny
	return math.Abs(un) + math.Sqrt(g*h)
}
