// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package topo

import (
	"github.com/ljuillen/TopADD-2D-3D-Arbitrary-TopOpt-in-PETSc/inp"
)

// Params holds the scalar parameters of an optimization run
type Params struct {

	// design variables
	Volfrac float64 // volume fraction; initial value of design elements
	Xmin    float64 // lower bound of design variables
	Xmax    float64 // upper bound of design variables
	Movlim  float64 // move limit

	// material
	Penal float64 // penalization exponent
	Emin  float64 // stiffness of void
	Emax  float64 // stiffness of solid
	Nu    float64 // Poisson's ratio

	// filter
	Filter    string  // filter type
	Rmin      float64 // filter radius
	Beta      float64 // initial projection sharpness
	BetaFinal float64 // final projection sharpness
	BetaEvery int     // double beta every n iterations; 0 => never
	Eta       float64 // projection threshold

	// loop
	M      int     // number of constraints
	MaxItr int     // max number of iterations
	Tolx   float64 // stop when change < Tolx
	Fscale float64 // objective scaling; 0 => 1/fx of the first iteration

	// passive elements
	FixedPolicy string   // pinning of fixed elements
	LoadPolicy  string   // pinning of load elements
	Precedence  []Region // classification order
}

// DefaultParams returns the default parameters
func DefaultParams() *Params {
	return &Params{
		Volfrac:     0.12,
		Xmin:        0,
		Xmax:        1,
		Movlim:      0.2,
		Penal:       3,
		Emin:        1e-9,
		Emax:        1,
		Nu:          0.3,
		Filter:      inp.FilterLinear,
		Rmin:        0.08,
		Beta:        0.1,
		BetaFinal:   48,
		Eta:         0,
		M:           1,
		MaxItr:      400,
		FixedPolicy: inp.PolicySolid,
		LoadPolicy:  inp.PolicySolid,
		Precedence:  DefaultPrecedence(),
	}
}

// NewParams returns the parameters given in the simulation data
//  Note: errors are of kind inp.ErrConfig
func NewParams(sim *inp.Simulation) (o *Params, err error) {
	o = &Params{
		Volfrac:     sim.Opt.Volfrac,
		Xmin:        sim.Opt.Xmin,
		Xmax:        sim.Opt.Xmax,
		Movlim:      sim.Opt.Movlim,
		Penal:       sim.Material.Penal,
		Emin:        sim.Material.Emin,
		Emax:        sim.Material.Emax,
		Nu:          sim.Material.Nu,
		Filter:      sim.Filter.Type,
		Rmin:        sim.Filter.Rmin,
		Beta:        sim.Filter.Beta,
		BetaFinal:   sim.Filter.BetaFinal,
		BetaEvery:   sim.Filter.BetaEvery,
		Eta:         sim.Filter.Eta,
		M:           sim.Opt.Nconstraint,
		MaxItr:      sim.Opt.MaxItr,
		Tolx:        sim.Opt.Tolx,
		Fscale:      sim.Opt.Fscale,
		FixedPolicy: sim.Regions.FixedPolicy,
		LoadPolicy:  sim.Regions.LoadPolicy,
	}
	o.Precedence, err = ParsePrecedence(sim.Regions.Precedence)
	if err != nil {
		return nil, err
	}
	if len(o.Precedence) == 0 {
		o.Precedence = DefaultPrecedence()
	}
	err = o.Validate()
	if err != nil {
		return nil, err
	}
	return
}

// Validate checks the parameters
//  Note: errors are of kind inp.ErrConfig
func (o *Params) Validate() error {
	if o.Volfrac <= 0 || o.Volfrac > 1 {
		return inp.ConfigErr("volume fraction must be in (0, 1]. volfrac=%g", o.Volfrac)
	}
	if o.Xmin < 0 || o.Xmax <= o.Xmin || o.Xmax > 1 {
		return inp.ConfigErr("design bounds must satisfy 0 <= xmin < xmax <= 1. xmin=%g xmax=%g", o.Xmin, o.Xmax)
	}
	if o.Movlim <= 0 {
		return inp.ConfigErr("move limit must be positive. movlim=%g", o.Movlim)
	}
	if o.Penal < 1 {
		return inp.ConfigErr("penalization exponent must be >= 1. penal=%g", o.Penal)
	}
	if o.Emin < 0 || o.Emax <= o.Emin {
		return inp.ConfigErr("stiffness bounds must satisfy 0 <= Emin < Emax. Emin=%g Emax=%g", o.Emin, o.Emax)
	}
	if o.M < 1 {
		return inp.ConfigErr("number of constraints must be at least 1. m=%d", o.M)
	}
	if o.MaxItr < 0 {
		return inp.ConfigErr("max number of iterations must be non-negative. maxitr=%d", o.MaxItr)
	}
	switch o.Filter {
	case inp.FilterNone, inp.FilterLinear:
	case inp.FilterProjection:
		if o.Beta <= 0 || o.BetaFinal < o.Beta {
			return inp.ConfigErr("projection sharpness must satisfy 0 < beta <= betafinal. beta=%g betafinal=%g", o.Beta, o.BetaFinal)
		}
		if o.Eta <= 0 || o.Eta >= 1 {
			return inp.ConfigErr("projection threshold must be in (0, 1). eta=%g", o.Eta)
		}
	default:
		return inp.ConfigErr("unknown filter type %q", o.Filter)
	}
	for _, pol := range []string{o.FixedPolicy, o.LoadPolicy} {
		switch pol {
		case inp.PolicySolid, inp.PolicyVoid, inp.PolicyFree:
		default:
			return inp.ConfigErr("unknown passive policy %q", pol)
		}
	}
	return nil
}
