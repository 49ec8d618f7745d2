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
)

func uniform(n int, v float64) (x []float64) {
	x = make([]float64, n)
	for i := range x {
		x[i] = v
	}
	return
}

func Test_state01(tst *testing.T) {

	//verbose()
	chk.PrintTitle("state01. uniform initial design")

	prm := DefaultParams()
	prm.Volfrac = 0.3
	data := inp.MeshData{Xc: [6]float64{0, 10, 0, 5, 0, 5}, Nel: [3]int{10, 5, 5}, Nlvls: 1}
	_, _, st, err := newState(comm.Serial{}, data, prm)
	require.NoError(tst, err)

	chk.Int(tst, "nloc", st.Nloc, 250)
	chk.Int(tst, "n", st.N, 250)
	chk.Int(tst, "m", st.M, 1)
	chk.Array(tst, "x", 1e-15, st.X, uniform(250, 0.3))
	chk.Array(tst, "xPhys", 1e-15, st.XPhys, uniform(250, 0.3))
	chk.Array(tst, "xmin", 1e-15, st.Xmin, uniform(250, 0))
	chk.Array(tst, "xmax", 1e-15, st.Xmax, uniform(250, 1))
	require.Len(tst, st.Dgdx, 1)
	require.Len(tst, st.Dgdx[0], 250)
	chk.Float64(tst, "volume", 1e-15, st.Volume(), 0.3)

	// move limits
	err = st.UpdateBounds(st.X, 0.2)
	require.NoError(tst, err)
	chk.Array(tst, "xmin", 1e-15, st.Xmin, uniform(250, 0.1))
	chk.Array(tst, "xmax", 1e-15, st.Xmax, uniform(250, 0.5))

	// idempotent
	err = st.UpdateBounds(st.X, 0.2)
	require.NoError(tst, err)
	chk.Array(tst, "xmin", 1e-15, st.Xmin, uniform(250, 0.1))
	chk.Array(tst, "xmax", 1e-15, st.Xmax, uniform(250, 0.5))

	// clipped by the global bounds
	err = st.UpdateBounds(uniform(250, 0.95), 0.2)
	require.NoError(tst, err)
	chk.Array(tst, "xmin", 1e-15, st.Xmin, uniform(250, 0.75))
	chk.Array(tst, "xmax", 1e-15, st.Xmax, uniform(250, 1))
}

func Test_state02(tst *testing.T) {

	//verbose()
	chk.PrintTitle("state02. solid elements are pinned")

	data := inp.MeshData{Xc: [6]float64{0, 10, 0, 1, 0, 0}, Nel: [3]int{10, 1, 0}, Nlvls: 1}
	g, err := inp.DecodeGeo([]byte(`{"shapes":[{"type":"box","min":[8,0],"max":[10,1]}]}`))
	require.NoError(tst, err)
	geos := new(Geometries)
	geos.Add(Solid, g)

	pair, err := mesh.SetUp(data, comm.Serial{})
	require.NoError(tst, err)
	r, errs, err := Classify(pair, geos, DefaultPrecedence(), quiet)
	require.NoError(tst, err)
	require.Empty(tst, errs)
	chk.Int(tst, "solid", r.Count[Solid], 2)
	chk.Int(tst, "design", r.Count[Design], 8)

	prm := DefaultParams()
	prm.Volfrac = 0.5
	st, err := Allocate(pair, r, prm)
	require.NoError(tst, err)
	chk.Array(tst, "x", 1e-15, st.X, []float64{0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 1, 1})
	require.False(tst, st.Pinned(0))
	require.True(tst, st.Pinned(8))
	require.True(tst, st.Pinned(9))

	err = st.UpdateBounds(st.X, 0.2)
	require.NoError(tst, err)
	chk.Array(tst, "xmin", 1e-15, st.Xmin, []float64{0.3, 0.3, 0.3, 0.3, 0.3, 0.3, 0.3, 0.3, 1, 1})
	chk.Array(tst, "xmax", 1e-15, st.Xmax, []float64{0.7, 0.7, 0.7, 0.7, 0.7, 0.7, 0.7, 0.7, 1, 1})

	// pins survive any previous design
	err = st.UpdateBounds(uniform(10, 0), 0.2)
	require.NoError(tst, err)
	chk.Array(tst, "xmin", 1e-15, st.Xmin[8:], []float64{1, 1})
	chk.Array(tst, "xmax", 1e-15, st.Xmax[8:], []float64{1, 1})

	// filtering blends neighbours but pinned elements stay solid
	prm.Rmin = 2.5
	f, err := NewDensityFilter(pair, prm.Rmin)
	require.NoError(tst, err)
	copy(st.X, []float64{0, 0, 0, 0, 0, 0, 0, 0, 1, 1})
	require.NoError(tst, f.Apply(st.X, st.XTilde))
	require.Less(tst, st.XTilde[8], 1.0)
	st.Project()
	chk.Array(tst, "xTilde", 1e-15, st.XTilde[8:], []float64{1, 1})
	chk.Array(tst, "xPhys", 1e-15, st.XPhys[8:], []float64{1, 1})
	require.Greater(tst, st.XPhys[7], 0.0)

	// and carry no sensitivities
	copy(st.Dfdx, uniform(10, -1))
	copy(st.Dgdx[0], uniform(10, 0.1))
	st.ChainProjection()
	chk.Array(tst, "dfdx", 1e-15, st.Dfdx[7:], []float64{-1, 0, 0})
	chk.Array(tst, "dgdx", 1e-15, st.Dgdx[0][7:], []float64{0.1, 0, 0})
}

func Test_state03(tst *testing.T) {

	//verbose()
	chk.PrintTitle("state03. passive policies")

	data := inp.MeshData{Xc: [6]float64{0, 4, 0, 1, 0, 0}, Nel: [3]int{4, 1, 0}, Nlvls: 1}
	fixed, err := inp.DecodeGeo([]byte(`{"shapes":[{"type":"box","min":[0,0],"max":[1,1]}]}`))
	require.NoError(tst, err)
	load, err := inp.DecodeGeo([]byte(`{"shapes":[{"type":"box","min":[3,0],"max":[4,1]}]}`))
	require.NoError(tst, err)
	geos := new(Geometries)
	geos.Add(Fixed, fixed)
	geos.Add(Load, load)
	pair, err := mesh.SetUp(data, comm.Serial{})
	require.NoError(tst, err)
	r, _, err := Classify(pair, geos, DefaultPrecedence(), quiet)
	require.NoError(tst, err)
	require.Equal(tst, []Region{Fixed, Design, Design, Load}, r.Kind)

	prm := DefaultParams()
	prm.Volfrac = 0.4
	prm.FixedPolicy = inp.PolicyVoid
	prm.LoadPolicy = inp.PolicyFree
	st, err := Allocate(pair, r, prm)
	require.NoError(tst, err)
	chk.Array(tst, "x", 1e-15, st.X, []float64{0, 0.4, 0.4, 0.4})
	require.True(tst, st.Pinned(0))
	require.False(tst, st.Pinned(3))
	chk.Float64(tst, "xmax[0]", 1e-15, st.Xmax[0], 0)
	chk.Float64(tst, "xmax[3]", 1e-15, st.Xmax[3], 1)
}

func Test_state04(tst *testing.T) {

	//verbose()
	chk.PrintTitle("state04. size errors")

	data := inp.MeshData{Xc: [6]float64{0, 4, 0, 2, 0, 0}, Nel: [3]int{4, 2, 0}, Nlvls: 1}
	pair, r, st, err := newState(comm.Serial{}, data, nil)
	require.NoError(tst, err)

	require.ErrorIs(tst, st.SetDesign(make([]float64, 7)), ErrAllocation)
	require.ErrorIs(tst, st.UpdateBounds(make([]float64, 9), 0.2), ErrAllocation)
	require.ErrorIs(tst, st.SetFiltered(make([]float64, 8), make([]float64, 3)), ErrAllocation)
	require.ErrorIs(tst, st.SetResponse(1, make([]float64, 8), make([]float64, 2), nil), ErrAllocation)
	require.ErrorIs(tst, st.UpdateBounds(make([]float64, 8), -1), inp.ErrConfig)

	require.NoError(tst, st.SetDesign(uniform(8, 0.25)))
	require.NoError(tst, st.SetFiltered(uniform(8, 0.5), uniform(8, 0.75)))
	require.NoError(tst, st.SetResponse(2, uniform(8, -1), []float64{-0.5}, [][]float64{uniform(8, 0.125)}))
	chk.Float64(tst, "fx", 1e-15, st.Fx, 2)
	chk.Float64(tst, "volume", 1e-15, st.Volume(), 0.75)
	st.Snapshot()
	chk.Float64(tst, "change", 1e-15, st.Change(), 0)

	// classification of another grid
	r.Kind = r.Kind[:5]
	_, err = Allocate(pair, r, nil)
	require.ErrorIs(tst, err, ErrAllocation)

	// invalid parameters
	prm := DefaultParams()
	prm.Volfrac = 0
	r.Kind = make([]Region, 8)
	_, err = Allocate(pair, r, prm)
	require.ErrorIs(tst, err, inp.ErrConfig)
}

func Test_state05(tst *testing.T) {

	//verbose()
	chk.PrintTitle("state05. projection and continuation")

	prm := DefaultParams()
	prm.Filter = inp.FilterProjection
	prm.Beta, prm.BetaFinal, prm.BetaEvery, prm.Eta = 1, 4, 2, 0.5
	data := inp.MeshData{Xc: [6]float64{0, 3, 0, 1, 0, 0}, Nel: [3]int{3, 1, 0}, Nlvls: 1}
	_, _, st, err := newState(comm.Serial{}, data, prm)
	require.NoError(tst, err)

	for _, c := range []struct {
		itr  int
		beta float64
	}{{0, 1}, {1, 1}, {2, 2}, {4, 4}, {10, 4}} {
		st.ContinueBeta(c.itr)
		chk.Float64(tst, "beta", 1e-15, st.Beta, c.beta)
	}

	copy(st.XTilde, []float64{0, 0.5, 1})
	st.Project()
	chk.Array(tst, "xPhys", 1e-15, st.XPhys, []float64{0, 0.5, 1})

	// derivative at the threshold
	copy(st.Dfdx, []float64{1, 1, 1})
	st.ChainProjection()
	chk.Float64(tst, "dxPhys/dxTilde", 1e-14, st.Dfdx[1], 4/(2*0.9640275800758169))
}

func Test_state06(tst *testing.T) {

	//verbose()
	chk.PrintTitle("state06. collective change and volume")

	data := inp.MeshData{Xc: [6]float64{0, 2, 0, 1, 0, 1}, Nel: [3]int{8, 4, 4}, Nlvls: 1}
	err := comm.Run(4, func(c comm.Comm) error {
		_, _, st, err := newState(c, data, nil)
		if err != nil {
			return err
		}
		copy(st.XPhys, uniform(st.Nloc, 1))
		st.Snapshot()
		if c.Rank() == 2 {
			st.X[0] += 0.25
		}
		vol, change := st.Volume(), st.Change()
		if math.Abs(vol-1) > 1e-15 || math.Abs(change-0.25) > 1e-15 {
			return chk.Err("rank %d: volume=%g change=%g", c.Rank(), vol, change)
		}
		return nil
	})
	require.NoError(tst, err)
}
