// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package topo

import (
	"math"

	"github.com/ljuillen/TopADD-2D-3D-Arbitrary-TopOpt-in-PETSc/comm"
	"github.com/ljuillen/TopADD-2D-3D-Arbitrary-TopOpt-in-PETSc/inp"
	"github.com/ljuillen/TopADD-2D-3D-Arbitrary-TopOpt-in-PETSc/mesh"
	"gonum.org/v1/gonum/floats"
)

// State holds the fields of an optimization run. All element fields have the
// local length Nloc and follow the partitioning of the element grid.
// Collaborators may read and write the values of the fields but never
// reallocate them.
type State struct {
	Prm  *Params   // parameters
	Comm comm.Comm // communicator
	Grid *mesh.DA  // element grid

	// sizes
	Nloc int // number of owned elements
	N    int // global number of elements
	M    int // number of constraints

	// element fields
	X      []float64 // design variables
	XTilde []float64 // filtered design variables
	XPhys  []float64 // physical densities
	Xold   []float64 // design variables of the previous iteration
	Xmin   []float64 // lower bounds
	Xmax   []float64 // upper bounds
	Dfdx   []float64 // objective sensitivities

	// constraints
	Gx   []float64   // constraint values. [M]
	Dgdx [][]float64 // constraint sensitivities. [M][Nloc]

	// scalars
	Fx     float64 // objective value
	Fscale float64 // objective scaling
	Beta   float64 // current projection sharpness

	// pinned elements
	pinned []bool    // element bounds are fixed
	pin    []float64 // value of pinned elements
}

// Allocate allocates all fields and sets the initial design: volfrac in design
// elements, 1 in solid elements and 0 elsewhere. Passive elements are pinned:
// solid elements to 1; fixed and load elements as given by their policy.
//  Note: errors are of kind ErrAllocation or inp.ErrConfig
func Allocate(p *mesh.Pair, r *Regions, prm *Params) (o *State, err error) {

	// check
	if prm == nil {
		prm = DefaultParams()
	}
	if err = prm.Validate(); err != nil {
		return
	}
	nloc := p.Elems.Nlocal()
	if len(r.Kind) != nloc {
		return nil, AllocationErr("classification has %d elements but the element grid owns %d", len(r.Kind), nloc)
	}

	// new state
	o = &State{Prm: prm, Comm: p.Comm, Grid: p.Elems, Nloc: nloc, N: p.Elems.Nglobal(), M: prm.M}
	o.X = make([]float64, nloc)
	o.XTilde = make([]float64, nloc)
	o.XPhys = make([]float64, nloc)
	o.Xold = make([]float64, nloc)
	o.Xmin = make([]float64, nloc)
	o.Xmax = make([]float64, nloc)
	o.Dfdx = make([]float64, nloc)
	o.Gx = make([]float64, o.M)
	o.Dgdx = make([][]float64, o.M)
	for j := 0; j < o.M; j++ {
		o.Dgdx[j] = make([]float64, nloc)
	}
	o.Fscale = prm.Fscale
	o.Beta = prm.Beta
	o.pinned = make([]bool, nloc)
	o.pin = make([]float64, nloc)

	// initial values and pins
	for i, kind := range r.Kind {
		o.Xmin[i], o.Xmax[i] = prm.Xmin, prm.Xmax
		policy := inp.PolicyFree
		switch kind {
		case Design:
			o.X[i] = prm.Volfrac
		case Solid:
			policy = inp.PolicySolid
		case Fixed:
			policy = prm.FixedPolicy
		case Load:
			policy = prm.LoadPolicy
		}
		switch policy {
		case inp.PolicySolid:
			o.pinned[i], o.pin[i] = true, 1
		case inp.PolicyVoid:
			o.pinned[i], o.pin[i] = true, 0
		default:
			if kind != Design {
				o.X[i] = prm.Volfrac
			}
		}
		if o.pinned[i] {
			o.X[i], o.Xmin[i], o.Xmax[i] = o.pin[i], o.pin[i], o.pin[i]
		}
	}
	copy(o.XTilde, o.X)
	copy(o.XPhys, o.X)
	copy(o.Xold, o.X)
	return
}

// Pinned tells whether the bounds of element i are fixed
func (o *State) Pinned(i int) bool {
	return o.pinned[i]
}

// UpdateBounds sets the bounds of the unpinned elements to
//  xmin = max(Xmin, xold - movlim)   and   xmax = min(Xmax, xold + movlim)
// Pinned elements keep their pinned value.
func (o *State) UpdateBounds(xold []float64, movlim float64) error {
	if err := checkLen("xold", xold, o.Nloc); err != nil {
		return err
	}
	if movlim < 0 {
		return inp.ConfigErr("move limit must be non-negative. movlim=%g", movlim)
	}
	for i, v := range xold {
		if o.pinned[i] {
			o.Xmin[i], o.Xmax[i] = o.pin[i], o.pin[i]
			continue
		}
		o.Xmin[i] = math.Max(o.Prm.Xmin, v-movlim)
		o.Xmax[i] = math.Min(o.Prm.Xmax, v+movlim)
	}
	return nil
}

// SetDesign sets the design variables
func (o *State) SetDesign(x []float64) error {
	if err := checkLen("x", x, o.Nloc); err != nil {
		return err
	}
	copy(o.X, x)
	return nil
}

// SetFiltered sets the filtered and physical fields
func (o *State) SetFiltered(xTilde, xPhys []float64) error {
	if err := checkLen("xTilde", xTilde, o.Nloc); err != nil {
		return err
	}
	if err := checkLen("xPhys", xPhys, o.Nloc); err != nil {
		return err
	}
	copy(o.XTilde, xTilde)
	copy(o.XPhys, xPhys)
	return nil
}

// SetResponse sets the objective, the constraints and their sensitivities
func (o *State) SetResponse(fx float64, dfdx, gx []float64, dgdx [][]float64) error {
	if err := checkLen("dfdx", dfdx, o.Nloc); err != nil {
		return err
	}
	if err := checkLen("gx", gx, o.M); err != nil {
		return err
	}
	if len(dgdx) != o.M {
		return AllocationErr("dgdx has %d fields; expected %d", len(dgdx), o.M)
	}
	for j := range dgdx {
		if err := checkLen("dgdx", dgdx[j], o.Nloc); err != nil {
			return err
		}
	}
	o.Fx = fx
	copy(o.Dfdx, dfdx)
	copy(o.Gx, gx)
	for j := range dgdx {
		copy(o.Dgdx[j], dgdx[j])
	}
	return nil
}

// Snapshot copies the design variables into xold
func (o *State) Snapshot() {
	copy(o.Xold, o.X)
}

// Change returns the max absolute change of the design variables since the last snapshot. Collective
func (o *State) Change() float64 {
	local := 0.0
	if o.Nloc > 0 {
		local = floats.Distance(o.X, o.Xold, math.Inf(1))
	}
	return comm.Max(o.Comm, local)
}

// Volume returns the mean physical density. Collective
func (o *State) Volume() float64 {
	return comm.Sum(o.Comm, floats.Sum(o.XPhys)) / float64(o.N)
}

// Project computes the physical densities from the filtered ones. With the
// projection filter, the smooth Heaviside function is used:
//  xPhys = (tanh(β η) + tanh(β (xTilde - η))) / (tanh(β η) + tanh(β (1 - η)))
// Otherwise, xPhys = xTilde. Pinned elements keep their pinned value in both fields.
func (o *State) Project() {
	o.applyPins(o.XTilde)
	if o.Prm.Filter != inp.FilterProjection {
		copy(o.XPhys, o.XTilde)
		return
	}
	b, eta := o.Beta, o.Prm.Eta
	den := math.Tanh(b*eta) + math.Tanh(b*(1-eta))
	for i, xt := range o.XTilde {
		o.XPhys[i] = (math.Tanh(b*eta) + math.Tanh(b*(xt-eta))) / den
	}
	o.applyPins(o.XPhys)
}

// ChainProjection multiplies the sensitivities with respect to xPhys by
// dxPhys/dxTilde, giving the sensitivities with respect to xTilde. The
// sensitivities of pinned elements are zero
func (o *State) ChainProjection() {
	if o.Prm.Filter == inp.FilterProjection {
		b, eta := o.Beta, o.Prm.Eta
		den := math.Tanh(b*eta) + math.Tanh(b*(1-eta))
		for i, xt := range o.XTilde {
			t := math.Tanh(b * (xt - eta))
			d := b * (1 - t*t) / den
			o.Dfdx[i] *= d
			for j := range o.Dgdx {
				o.Dgdx[j][i] *= d
			}
		}
	}
	for i, pinned := range o.pinned {
		if pinned {
			o.Dfdx[i] = 0
			for j := range o.Dgdx {
				o.Dgdx[j][i] = 0
			}
		}
	}
}

// applyPins sets the pinned values into v
func (o *State) applyPins(v []float64) {
	for i, pinned := range o.pinned {
		if pinned {
			v[i] = o.pin[i]
		}
	}
}

// ContinueBeta sets the projection sharpness for iteration itr: beta doubles
// every BetaEvery iterations until BetaFinal. Returns true if beta changed
func (o *State) ContinueBeta(itr int) (changed bool) {
	if o.Prm.Filter != inp.FilterProjection || o.Prm.BetaEvery < 1 {
		return
	}
	beta := o.Prm.Beta * math.Pow(2, float64(itr/o.Prm.BetaEvery))
	beta = math.Min(beta, o.Prm.BetaFinal)
	changed = beta != o.Beta
	o.Beta = beta
	return
}

// checkLen checks the length of a field
func checkLen(name string, v []float64, n int) error {
	if len(v) != n {
		return AllocationErr("%s has length %d; expected %d", name, len(v), n)
	}
	return nil
}
