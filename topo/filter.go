// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package topo

import (
	"math"

	"github.com/cpmech/gosl/chk"
	"github.com/ljuillen/TopADD-2D-3D-Arbitrary-TopOpt-in-PETSc/mesh"
)

// DensityFilter implements the linear density filter
//  xTilde_i = Σ_j H_ij x_j / Σ_j H_ij   with   H_ij = max(0, rmin - |c_i - c_j|)
// where c are element centers. Neighbours owned by other ranks are reached
// through a global buffer.
type DensityFilter struct {
	pair *mesh.Pair
	nbrs [][]int     // [nloc][...] global indices of neighbours
	wts  [][]float64 // [nloc][...] weights H_ij
	hs   []float64   // [nloc] Σ_j H_ij
	glob []float64   // global buffer
	hsg  []float64   // global Σ_j H_ij
}

// NewDensityFilter returns a new density filter with radius rmin
func NewDensityFilter(p *mesh.Pair, rmin float64) (o *DensityFilter, err error) {
	if rmin <= 0 {
		return nil, chk.Err("filter radius must be positive. rmin=%g", rmin)
	}
	e := p.Elems
	o = &DensityFilter{pair: p, glob: make([]float64, e.Nglobal()), hsg: make([]float64, e.Nglobal())}
	o.nbrs = make([][]int, e.Nlocal())
	o.wts = make([][]float64, e.Nlocal())
	o.hs = make([]float64, e.Nlocal())
	var reach [3]int
	for d := 0; d < p.Ndim; d++ {
		reach[d] = int(math.Ceil(rmin/p.H[d])) - 1
		if reach[d] < 0 {
			reach[d] = 0
		}
	}
	e.Each(func(loc, i, j, k int) {
		ci := p.ElemCenter(i, j, k)
		for kk := imax(0, k-reach[2]); kk <= imin(e.M[2]-1, k+reach[2]); kk++ {
			for jj := imax(0, j-reach[1]); jj <= imin(e.M[1]-1, j+reach[1]); jj++ {
				for ii := imax(0, i-reach[0]); ii <= imin(e.M[0]-1, i+reach[0]); ii++ {
					cj := p.ElemCenter(ii, jj, kk)
					dist := math.Sqrt((ci[0]-cj[0])*(ci[0]-cj[0]) + (ci[1]-cj[1])*(ci[1]-cj[1]) + (ci[2]-cj[2])*(ci[2]-cj[2]))
					w := rmin - dist
					if w > 0 {
						o.nbrs[loc] = append(o.nbrs[loc], e.Index(ii, jj, kk))
						o.wts[loc] = append(o.wts[loc], w)
						o.hs[loc] += w
					}
				}
			}
		}
	})
	e.Gather(p.Comm, o.hsg, o.hs)
	return
}

// Apply computes xTilde = H x / Hs. Collective
func (o *DensityFilter) Apply(x, xTilde []float64) error {
	if err := agree(o.pair.Comm, o.check(x, xTilde), "filter"); err != nil {
		return err
	}
	o.pair.Elems.Gather(o.pair.Comm, o.glob, x)
	for i := range xTilde {
		sum := 0.0
		for n, g := range o.nbrs[i] {
			sum += o.wts[i][n] * o.glob[g]
		}
		xTilde[i] = sum / o.hs[i]
	}
	return nil
}

// Chain computes df/dx_j = Σ_i H_ij (df/dxTilde_i) / Hs_i, in place. Collective
func (o *DensityFilter) Chain(dfdx []float64, dgdx [][]float64) error {
	err := o.check(dfdx, dfdx)
	for _, v := range dgdx {
		if err == nil {
			err = o.check(dfdx, v)
		}
	}
	if err = agree(o.pair.Comm, err, "filter chain rule"); err != nil {
		return err
	}
	o.chain(dfdx)
	for _, v := range dgdx {
		o.chain(v)
	}
	return nil
}

// chain applies the transpose of the filter to one field
func (o *DensityFilter) chain(v []float64) {
	o.pair.Elems.Gather(o.pair.Comm, o.glob, v)
	for i := range v {
		sum := 0.0
		for n, g := range o.nbrs[i] {
			sum += o.wts[i][n] * o.glob[g] / o.hsg[g]
		}
		v[i] = sum
	}
}

func (o *DensityFilter) check(a, b []float64) error {
	n := len(o.hs)
	if len(a) != n || len(b) != n {
		return AllocationErr("filter fields have lengths %d and %d; expected %d", len(a), len(b), n)
	}
	return nil
}

func imin(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func imax(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func init() {
	RegisterFilter("density", func(p *mesh.Pair, st *State) (Filter, error) {
		return NewDensityFilter(p, st.Prm.Rmin)
	})
}
