// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package topo

import (
	"math"

	"github.com/ljuillen/TopADD-2D-3D-Arbitrary-TopOpt-in-PETSc/comm"
	"github.com/ljuillen/TopADD-2D-3D-Arbitrary-TopOpt-in-PETSc/mesh"
	"gonum.org/v1/gonum/floats"
)

// Springs evaluates the compliance of design elements acting as independent
// springs in series, with SIMP stiffness E(x) = Emin + x^p (Emax - Emin):
//  f = Σ w_i / E(x_i)
// and the volume constraint g_0 = Σ x_i / (volfrac N) - 1 <= 0.
// Further constraints are inactive (g_j = -1). It stands in for the FEM
// solver in tests and demonstrations.
type Springs struct {
	st *State
	w  []float64 // weights; zero for passive elements
}

// NewSprings returns a new springs solver
func NewSprings(r *Regions, st *State) (o *Springs) {
	o = &Springs{st: st, w: make([]float64, st.Nloc)}
	for i, kind := range r.Kind {
		if kind == Design {
			o.w[i] = 1
		}
	}
	return
}

// Evaluate computes the responses. Collective
func (o *Springs) Evaluate(xPhys, dfdx, gx []float64, dgdx [][]float64) (fx float64, err error) {
	prm, n := o.st.Prm, float64(o.st.N)
	local := 0.0
	for i, x := range xPhys {
		e := prm.Emin + math.Pow(x, prm.Penal)*(prm.Emax-prm.Emin)
		local += o.w[i] / e
		dfdx[i] = -o.w[i] * prm.Penal * math.Pow(x, prm.Penal-1) * (prm.Emax - prm.Emin) / (e * e)
	}
	fx = comm.Sum(o.st.Comm, local)
	vol := comm.Sum(o.st.Comm, floats.Sum(xPhys))
	gx[0] = vol/(prm.Volfrac*n) - 1
	for i := range dgdx[0] {
		dgdx[0][i] = 1 / (prm.Volfrac * n)
	}
	for j := 1; j < len(gx); j++ {
		gx[j] = -1
		for i := range dgdx[j] {
			dgdx[j][i] = 0
		}
	}
	return
}

func init() {
	RegisterSolver("springs", func(p *mesh.Pair, r *Regions, st *State) (Solver, error) {
		return NewSprings(r, st), nil
	})
}
