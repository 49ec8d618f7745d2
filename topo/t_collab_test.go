// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package topo

import (
	"math"
	"testing"

	"github.com/cpmech/gosl/chk"
	"github.com/ljuillen/TopADD-2D-3D-Arbitrary-TopOpt-in-PETSc/comm"
	"github.com/ljuillen/TopADD-2D-3D-Arbitrary-TopOpt-in-PETSc/inp"
	"github.com/ljuillen/TopADD-2D-3D-Arbitrary-TopOpt-in-PETSc/mesh"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func Test_filter01(tst *testing.T) {

	//verbose()
	chk.PrintTitle("filter01. density filter")

	data := inp.MeshData{Xc: [6]float64{0, 2, 0, 1, 0, 0}, Nel: [3]int{16, 8, 0}, Nlvls: 1}
	for _, n := range []int{1, 2, 4} {
		err := comm.Run(n, func(c comm.Comm) error {
			p, err := mesh.SetUp(data, c)
			if err != nil {
				return err
			}
			f, err := NewDensityFilter(p, 0.3)
			if err != nil {
				return err
			}
			nloc := p.Elems.Nlocal()

			// constant fields are preserved
			xt := make([]float64, nloc)
			if err = f.Apply(uniform(nloc, 0.4), xt); err != nil {
				return err
			}
			for i, v := range xt {
				if math.Abs(v-0.4) > 1e-14 {
					return chk.Err("xTilde[%d] = %v", i, v)
				}
			}

			// chain rule is the transpose of the filter
			x, y := make([]float64, nloc), make([]float64, nloc)
			natural(p.Elems, x, 0)
			natural(p.Elems, y, 0.5)
			if err = f.Apply(x, xt); err != nil {
				return err
			}
			lhs := comm.Sum(c, floats.Dot(y, xt))
			g := [][]float64{append([]float64{}, y...)}
			dfdx := append([]float64{}, y...)
			if err = f.Chain(dfdx, g); err != nil {
				return err
			}
			rhs := comm.Sum(c, floats.Dot(dfdx, x))
			if math.Abs(lhs-rhs) > 1e-12 || !floats.Equal(dfdx, g[0]) {
				return chk.Err("filter is not consistent with its chain rule: %v != %v", lhs, rhs)
			}
			return nil
		})
		require.NoError(tst, err)
	}

	// errors
	p, err := mesh.SetUp(data, comm.Serial{})
	require.NoError(tst, err)
	_, err = NewDensityFilter(p, 0)
	require.Error(tst, err)
	f, err := NewDensityFilter(p, 0.2)
	require.NoError(tst, err)
	require.ErrorIs(tst, f.Apply(make([]float64, 3), make([]float64, 128)), ErrAllocation)
	require.ErrorIs(tst, f.Chain(make([]float64, 128), [][]float64{make([]float64, 3)}), ErrAllocation)
	require.ErrorIs(tst, NoFilter{}.Apply(make([]float64, 3), make([]float64, 2)), ErrAllocation)
}

func Test_collab01(tst *testing.T) {

	//verbose()
	chk.PrintTitle("collab01. registries")

	_, err := GetSolver("springs")
	require.NoError(tst, err)
	_, err = GetOptimizer("oc")
	require.NoError(tst, err)
	_, err = GetOptimizer("mma")
	require.Error(tst, err)
	for _, name := range []string{"none", "density"} {
		_, err = GetFilter(name)
		require.NoError(tst, err)
	}
	chk.String(tst, FilterName(inp.FilterData{Type: inp.FilterNone}, ""), "none")
	chk.String(tst, FilterName(inp.FilterData{Type: inp.FilterLinear}, ""), "density")
	chk.String(tst, FilterName(inp.FilterData{Type: inp.FilterProjection}, ""), "density")
	chk.String(tst, FilterName(inp.FilterData{Type: inp.FilterNone}, "custom"), "custom")
}

func Test_oc01(tst *testing.T) {

	//verbose()
	chk.PrintTitle("oc01. optimality criteria with springs")

	prm := DefaultParams()
	prm.Volfrac = 0.3
	data := inp.MeshData{Xc: [6]float64{0, 2, 0, 1, 0, 0}, Nel: [3]int{8, 4, 0}, Nlvls: 1}
	_, r, st, err := newState(comm.Serial{}, data, prm)
	require.NoError(tst, err)

	// make the right half stiffer
	for i := range st.X {
		if i%8 >= 4 {
			st.X[i] = 0.5
		}
	}
	copy(st.XPhys, st.X)

	s := NewSprings(r, st)
	fx, err := s.Evaluate(st.XPhys, st.Dfdx, st.Gx, st.Dgdx)
	require.NoError(tst, err)
	require.Greater(tst, fx, 0.0)
	chk.Float64(tst, "g0", 1e-14, st.Gx[0], (0.3*16+0.5*16)/(0.3*32)-1)

	oc, err := NewOC(st, nil)
	require.NoError(tst, err)
	st.Snapshot()
	require.NoError(tst, st.UpdateBounds(st.Xold, 0.2))
	err = oc.Update(0, st.X, st.Xmin, st.Xmax, fx, st.Dfdx, st.Gx, st.Dgdx)
	require.NoError(tst, err)

	// bounds and volume
	for i, x := range st.X {
		require.True(tst, x >= st.Xmin[i] && x <= st.Xmax[i])
	}
	chk.Float64(tst, "volume", 1e-4, floats.Sum(st.X)/32, 0.3)

	// history
	h := oc.History()
	chk.Int(tst, "itr", h.Itr, 1)
	chk.Array(tst, "xo1", 1e-15, h.Xo1, st.Xold)
	chk.Array(tst, "U", 1e-15, h.U, st.Xmax)
	chk.Array(tst, "L", 1e-15, h.L, st.Xmin)

	// history of the wrong size
	_, err = NewOC(st, &History{Xo1: make([]float64, 3)})
	require.ErrorIs(tst, err, ErrAllocation)
}
