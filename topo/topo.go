// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package topo implements the state and lifecycle of a topology optimization run:
// region classification, design fields, checkpoint/restart and the optimization loop
package topo

import (
	"context"
	goio "io"
	"log/slog"
	"math"
	"path/filepath"
	"time"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/io"
	"github.com/ljuillen/TopADD-2D-3D-Arbitrary-TopOpt-in-PETSc/comm"
	"github.com/ljuillen/TopADD-2D-3D-Arbitrary-TopOpt-in-PETSc/inp"
	"github.com/ljuillen/TopADD-2D-3D-Arbitrary-TopOpt-in-PETSc/mesh"
	"github.com/ljuillen/TopADD-2D-3D-Arbitrary-TopOpt-in-PETSc/out"
	"gonum.org/v1/gonum/floats"
)

// Collaborators holds the allocators of the external collaborators. Nil
// allocators are taken from the registries using the names in the input data
type Collaborators struct {
	Solver    SolverAllocator
	Filter    FilterAllocator
	Optimizer OptimizerAllocator
	Backend   FileBackend // nil => OSBackend
}

// Main holds all data for an optimization run
type Main struct {
	Sim     *inp.Simulation // simulation data
	Comm    comm.Comm       // communicator
	Log     *slog.Logger    // structured log; discards records on non-root ranks
	Verbose bool            // show messages (root only)

	Pair      *mesh.Pair  // grids
	Geos      *Geometries // region geometries
	Regions   *Regions    // classification and node densities
	Params    *Params     // parameters
	State     *State      // fields
	Restart   *Restart    // checkpoint/restart manager
	Solver    Solver      // FEM solver
	Filter    Filter      // density filter
	Optimizer Optimizer   // optimizer
	Summary   *Summary    // history of run

	Itr     int     // number of completed iterations
	GeoErrs []error // geometry problems found during setup
}

// NewMain sets up an optimization run: grids, regions, fields, restart and collaborators. Collective
func NewMain(sim *inp.Simulation, c comm.Comm, collab *Collaborators, log *slog.Logger) (o *Main, err error) {

	// new Main object
	if collab == nil {
		collab = new(Collaborators)
	}
	if log == nil {
		log = slog.Default()
	}
	o = &Main{Sim: sim, Comm: c, Log: log}
	if !comm.Root(c) {
		o.Log = slog.New(slog.NewTextHandler(goio.Discard, nil))
	}
	o.Verbose = sim.Data.Verbose && comm.Root(c)

	// parameters
	o.Params, err = NewParams(sim)
	if err != nil {
		return nil, err
	}

	// grids
	o.Pair, err = mesh.SetUp(sim.Mesh, c)
	if err != nil {
		return nil, err
	}
	stats := o.Pair.Stats()
	if o.Verbose {
		io.Pf("%v\n", o.Pair)
		io.Pf("elements per rank: min=%d max=%d imbalance=%.3f\n", stats.MinElements, stats.MaxElements, stats.Imbalance)
	}

	// regions
	var errs []error
	o.Geos, errs = LoadGeometries(sim, o.Log)
	o.GeoErrs = append(o.GeoErrs, errs...)
	o.Regions, errs, err = Classify(o.Pair, o.Geos, o.Params.Precedence, o.Log)
	if err != nil {
		return nil, err
	}
	o.GeoErrs = append(o.GeoErrs, errs...)
	if o.Verbose {
		io.Pf("regions: design=%d solid=%d fixed=%d load=%d\n", o.Regions.Count[Design], o.Regions.Count[Solid], o.Regions.Count[Fixed], o.Regions.Count[Load])
	}

	// fields
	o.State, err = Allocate(o.Pair, o.Regions, o.Params)
	if err != nil {
		return nil, err
	}

	// restart
	o.Restart = NewRestart(sim, c, collab.Backend, o.Log)
	hist, err := o.Restart.Begin(o.State)
	if err != nil {
		return nil, err
	}
	if hist != nil {
		o.Itr = hist.Itr
		if o.Verbose {
			io.Pfyel("restarting from iteration %d\n", o.Itr)
		}
	}

	// collaborators
	err = o.allocCollaborators(collab, hist)
	if err != nil {
		return nil, err
	}

	// summary
	o.Summary = &Summary{Nproc: c.Size(), Dirout: sim.DirOut, Fnkey: sim.Key}
	if hist != nil && comm.Root(c) {
		prev, e := ReadSum(sim.DirOut, sim.Key, sim.EncType)
		if e == nil {
			prev.Truncate(o.Itr)
			prev.Nproc = c.Size()
			o.Summary = prev
		} else {
			o.Log.Warn("cannot read previous summary; starting a new one", "err", e)
		}
		o.Summary.Restarts = append(o.Summary.Restarts, o.Itr)
	}
	return
}

// allocCollaborators allocates solver, filter and optimizer
func (o *Main) allocCollaborators(collab *Collaborators, hist *History) (err error) {
	salloc, falloc, oalloc := collab.Solver, collab.Filter, collab.Optimizer
	if salloc == nil {
		if salloc, err = GetSolver(o.Sim.Collab.Solver); err != nil {
			return
		}
	}
	if falloc == nil {
		if falloc, err = GetFilter(FilterName(o.Sim.Filter, o.Sim.Collab.Filter)); err != nil {
			return
		}
	}
	if oalloc == nil {
		if oalloc, err = GetOptimizer(o.Sim.Collab.Optimizer); err != nil {
			return
		}
	}
	if o.Solver, err = salloc(o.Pair, o.Regions, o.State); err != nil {
		return chk.Err("cannot allocate solver:\n%v", err)
	}
	if o.Filter, err = falloc(o.Pair, o.State); err != nil {
		return chk.Err("cannot allocate filter:\n%v", err)
	}
	if o.Optimizer, err = oalloc(o.State, hist); err != nil {
		return chk.Err("cannot allocate optimizer:\n%v", err)
	}
	return
}

// Run runs the optimization loop until MaxItr iterations are completed, the
// change falls below Tolx or ctx is cancelled on any rank. Cancellation is
// only checked between iterations. Collective
func (o *Main) Run(ctx context.Context) (err error) {

	// message
	st, prm, c := o.State, o.Params, o.Comm
	cputime := time.Now()
	if o.Verbose {
		io.Pf("\n%4s %13s %13s %11s %11s %9s\n", "itr", "f", "g0", "change", "volume", "beta")
	}

	// loop
	st.ContinueBeta(o.Itr)
	for o.Itr < prm.MaxItr {

		// stop?
		if comm.Any(c, ctx.Err() != nil) {
			err = ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			o.Log.Warn("optimization interrupted", "itr", o.Itr)
			break
		}

		// iterate
		start := time.Now()
		var change, volume float64
		change, volume, err = o.iterate()
		if err != nil {
			return
		}
		itr := o.Itr + 1
		o.Summary.Add(itr, st, change, volume)

		// checkpoint before advancing the counter
		if o.Restart.Due(itr) {
			err = o.Restart.Checkpoint(itr, st, o.Optimizer.History())
			if err != nil {
				o.Log.Error("checkpoint failed", "itr", itr, "err", err)
				return
			}
		}
		o.Itr = itr
		st.ContinueBeta(o.Itr)

		// messages and metrics
		if comm.Root(c) {
			iterationsTotal.Inc()
			iterationDurationHistogram.Observe(time.Since(start).Seconds())
			objectiveGauge.Set(st.Fx)
			changeGauge.Set(change)
			volumeGauge.Set(volume)
			betaGauge.Set(st.Beta)
		}
		if o.Verbose {
			io.Pf("%4d %13.6e %13.6e %11.4e %11.4e %9.3f\n", o.Itr, st.Fx, st.Gx[0], change, volume, st.Beta)
		}

		// converged?
		if prm.Tolx > 0 && change < prm.Tolx {
			break
		}
	}

	// results
	if e := o.SaveResults(); e != nil && err == nil {
		err = e
	}
	if o.Verbose {
		io.Pfblue2("cpu time = %v\n", time.Now().Sub(cputime))
	}
	return
}

// iterate performs one optimization iteration
func (o *Main) iterate() (change, volume float64, err error) {
	st, c := o.State, o.Comm

	// filter and projection
	if err = o.Filter.Apply(st.X, st.XTilde); err != nil {
		return
	}
	st.Project()

	// responses
	fx, err := o.Solver.Evaluate(st.XPhys, st.Dfdx, st.Gx, st.Dgdx)
	if err = agree(c, err, "solver"); err != nil {
		return
	}
	if st.Fscale == 0 {
		st.Fscale = 1
		if fx != 0 && !math.IsInf(fx, 0) && !math.IsNaN(fx) {
			st.Fscale = 1 / math.Abs(fx)
		}
	}
	st.Fx = fx * st.Fscale
	floats.Scale(st.Fscale, st.Dfdx)

	// sensitivities with respect to x
	st.ChainProjection()
	if err = o.Filter.Chain(st.Dfdx, st.Dgdx); err != nil {
		return
	}

	// update design
	st.Snapshot()
	if err = st.UpdateBounds(st.Xold, o.Params.Movlim); err != nil {
		return
	}
	err = o.Optimizer.Update(o.Itr, st.X, st.Xmin, st.Xmax, st.Fx, st.Dfdx, st.Gx, st.Dgdx)
	if err = agree(c, err, "optimizer"); err != nil {
		return
	}

	// monitoring
	change = st.Change()
	volume = st.Volume()
	err = o.Regions.UpdateNodeDensity(st.XPhys)
	return
}

// SaveResults saves the summary and, if requested, the VTK file with element
// fields and node densities. Collective
func (o *Main) SaveResults() (err error) {
	c := o.Comm
	var cells, points []out.Field
	if o.Sim.Data.Vtk {
		e, n := o.Pair.Elems, o.Pair.Nodes
		gather := func(da *mesh.DA, local []float64) []float64 {
			v := make([]float64, da.Nglobal())
			da.Gather(c, v, local)
			return v
		}
		kind := make([]float64, len(o.Regions.Kind))
		for i, k := range o.Regions.Kind {
			kind[i] = float64(k)
		}
		cells = []out.Field{
			{Name: "x", Values: gather(e, o.State.X)},
			{Name: "xPhys", Values: gather(e, o.State.XPhys)},
			{Name: "region", Values: gather(e, kind)},
			{Name: "passive", Values: gather(e, o.Regions.Passive())},
		}
		points = []out.Field{
			{Name: "density", Values: gather(n, o.Regions.NodeDensity)},
		}
	}
	if comm.Root(c) {
		err = o.Summary.Save(o.Sim.EncType)
		if err == nil && o.Sim.Data.Vtk {
			fn := filepath.Join(o.Sim.DirOut, o.Sim.Key+".vts")
			err = out.WriteVTS(fn, o.Pair, cells, points)
			if err == nil && o.Verbose {
				io.Pfblue2("file <%s> written\n", fn)
			}
		}
	}
	return agree(c, err, "saving results")
}
