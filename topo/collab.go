// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package topo

import (
	"sort"

	"github.com/cpmech/gosl/chk"
	"github.com/ljuillen/TopADD-2D-3D-Arbitrary-TopOpt-in-PETSc/inp"
	"github.com/ljuillen/TopADD-2D-3D-Arbitrary-TopOpt-in-PETSc/mesh"
)

// Solver evaluates the objective, the constraints and their sensitivities with
// respect to the physical densities. Collective
type Solver interface {
	Evaluate(xPhys, dfdx, gx []float64, dgdx [][]float64) (fx float64, err error)
}

// Filter maps design variables to filtered ones and chains sensitivities with
// respect to filtered variables back to design variables, in place. Collective
type Filter interface {
	Apply(x, xTilde []float64) error
	Chain(dfdx []float64, dgdx [][]float64) error
}

// Optimizer updates the design variables, in place, within [xmin, xmax]. Collective
type Optimizer interface {
	Update(itr int, x, xmin, xmax []float64, fx float64, dfdx, gx []float64, dgdx [][]float64) error
	History() *History
}

// History holds the internal state of the optimizer needed to resume a run
type History struct {
	Itr int       // number of completed iterations
	Xo1 []float64 // design variables one iteration ago
	Xo2 []float64 // design variables two iterations ago
	U   []float64 // upper asymptotes
	L   []float64 // lower asymptotes
}

// NewHistory returns a new history for nloc design variables, all equal to x
func NewHistory(x, xmin, xmax []float64) (o *History) {
	n := len(x)
	o = &History{Xo1: make([]float64, n), Xo2: make([]float64, n), U: make([]float64, n), L: make([]float64, n)}
	copy(o.Xo1, x)
	copy(o.Xo2, x)
	copy(o.U, xmax)
	copy(o.L, xmin)
	return
}

// Fields returns the history fields in file order
func (o *History) Fields() [][]float64 {
	return [][]float64{o.Xo1, o.Xo2, o.U, o.L}
}

// allocators
type (
	SolverAllocator    func(p *mesh.Pair, r *Regions, st *State) (Solver, error)
	FilterAllocator    func(p *mesh.Pair, st *State) (Filter, error)
	OptimizerAllocator func(st *State, h *History) (Optimizer, error)
)

// registries
var (
	solverallocators    = make(map[string]SolverAllocator)
	filterallocators    = make(map[string]FilterAllocator)
	optimizerallocators = make(map[string]OptimizerAllocator)
)

// RegisterSolver makes a solver available by name
func RegisterSolver(name string, a SolverAllocator) {
	solverallocators[name] = a
}

// RegisterFilter makes a filter available by name
func RegisterFilter(name string, a FilterAllocator) {
	filterallocators[name] = a
}

// RegisterOptimizer makes an optimizer available by name
func RegisterOptimizer(name string, a OptimizerAllocator) {
	optimizerallocators[name] = a
}

// GetSolver returns the solver allocator with the given name
func GetSolver(name string) (SolverAllocator, error) {
	if a, ok := solverallocators[name]; ok {
		return a, nil
	}
	return nil, chk.Err("cannot find solver named %q. options: %v", name, names(solverallocators))
}

// GetFilter returns the filter allocator with the given name
func GetFilter(name string) (FilterAllocator, error) {
	if a, ok := filterallocators[name]; ok {
		return a, nil
	}
	return nil, chk.Err("cannot find filter named %q. options: %v", name, names(filterallocators))
}

// GetOptimizer returns the optimizer allocator with the given name
func GetOptimizer(name string) (OptimizerAllocator, error) {
	if a, ok := optimizerallocators[name]; ok {
		return a, nil
	}
	return nil, chk.Err("cannot find optimizer named %q. options: %v", name, names(optimizerallocators))
}

// FilterName returns the registry name of the filter selected in data
func FilterName(data inp.FilterData, name string) string {
	if name != "" {
		return name
	}
	if data.Type == inp.FilterNone {
		return "none"
	}
	return "density"
}

func names[T any](m map[string]T) (keys []string) {
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return
}

// NoFilter sets xTilde = x and leaves sensitivities unchanged
type NoFilter struct{}

func (o NoFilter) Apply(x, xTilde []float64) error {
	if len(x) != len(xTilde) {
		return AllocationErr("xTilde has length %d; expected %d", len(xTilde), len(x))
	}
	copy(xTilde, x)
	return nil
}

func (o NoFilter) Chain(dfdx []float64, dgdx [][]float64) error { return nil }

func init() {
	RegisterFilter("none", func(p *mesh.Pair, st *State) (Filter, error) {
		return NoFilter{}, nil
	})
}
