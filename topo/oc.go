// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package topo

import (
	"math"

	"github.com/cpmech/gosl/chk"
	"github.com/ljuillen/TopADD-2D-3D-Arbitrary-TopOpt-in-PETSc/comm"
)

// OC implements the optimality criteria update for problems whose first
// constraint is a volume-like constraint with positive sensitivities.
// Further constraints are ignored. The history records the previous iterates
// and the bounds used in the last update.
type OC struct {
	Damp   float64 // damping exponent
	Xsmall float64 // smallest value used to scale the update
	Tol    float64 // relative tolerance of the bisection on the Lagrange multiplier

	comm comm.Comm
	hist *History
	xnew []float64
}

// NewOC returns a new optimality criteria optimizer. h may be nil
func NewOC(st *State, h *History) (o *OC, err error) {
	if h == nil {
		h = NewHistory(st.X, st.Xmin, st.Xmax)
	}
	for _, f := range h.Fields() {
		if err = checkLen("history", f, st.Nloc); err != nil {
			return nil, err
		}
	}
	o = &OC{Damp: 0.5, Xsmall: 1e-3, Tol: 1e-6, comm: st.Comm, hist: h, xnew: make([]float64, st.Nloc)}
	return
}

// History returns the optimizer history
func (o *OC) History() *History {
	return o.hist
}

// Update updates x
func (o *OC) Update(itr int, x, xmin, xmax []float64, fx float64, dfdx, gx []float64, dgdx [][]float64) error {
	if len(gx) < 1 || len(dgdx) < 1 {
		return chk.Err("optimality criteria needs at least one constraint")
	}
	l1, l2 := 0.0, 1e9
	for it := 0; it < 200 && (l2-l1)/(l1+l2) > o.Tol; it++ {
		lmid := 0.5 * (l1 + l2)
		lin := 0.0
		for i, xi := range x {
			b := 0.0
			if dfdx[i] < 0 {
				b = -dfdx[i] / (lmid * math.Max(dgdx[0][i], 1e-30))
			}
			v := math.Max(xi, o.Xsmall) * math.Pow(b, o.Damp)
			o.xnew[i] = math.Min(xmax[i], math.Max(xmin[i], v))
			lin += dgdx[0][i] * (o.xnew[i] - xi)
		}
		if gx[0]+comm.Sum(o.comm, lin) > 0 {
			l1 = lmid
		} else {
			l2 = lmid
		}
	}
	h := o.hist
	copy(h.Xo2, h.Xo1)
	copy(h.Xo1, x)
	copy(h.U, xmax)
	copy(h.L, xmin)
	h.Itr = itr + 1
	copy(x, o.xnew)
	return nil
}

func init() {
	RegisterOptimizer("oc", func(st *State, h *History) (Optimizer, error) {
		return NewOC(st, h)
	})
}
