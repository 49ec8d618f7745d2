// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package topo

import (
	"math"
	"testing"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/io"
	"github.com/ljuillen/TopADD-2D-3D-Arbitrary-TopOpt-in-PETSc/comm"
	"github.com/ljuillen/TopADD-2D-3D-Arbitrary-TopOpt-in-PETSc/inp"
	"github.com/ljuillen/TopADD-2D-3D-Arbitrary-TopOpt-in-PETSc/mesh"
	"github.com/stretchr/testify/require"
)

func Test_regions01(tst *testing.T) {

	//verbose()
	chk.PrintTitle("regions01. precedence")

	data := inp.MeshData{Xc: [6]float64{0, 2, 0, 1, 0, 0}, Nel: [3]int{8, 4, 0}, Nlvls: 1}
	design, err := inp.DecodeGeo([]byte(`{"shapes":[{"type":"box","min":[0,0],"max":[2,1]}]}`))
	require.NoError(tst, err)
	fixed, err := inp.DecodeGeo([]byte(`{"shapes":[{"type":"box","min":[0,0],"max":[0.25,1]}]}`))
	require.NoError(tst, err)
	geos := new(Geometries)
	geos.Add(Design, design)
	geos.Add(Fixed, fixed)
	p, err := mesh.SetUp(data, comm.Serial{})
	require.NoError(tst, err)

	// fixed wins
	r, errs, err := Classify(p, geos, DefaultPrecedence(), quiet)
	require.NoError(tst, err)
	require.Empty(tst, errs)
	chk.Int(tst, "fixed", r.Count[Fixed], 4)
	chk.Int(tst, "design", r.Count[Design], 28)
	for j := 0; j < 4; j++ {
		loc := p.Elems.Local(0, j, 0)
		require.Equal(tst, Fixed, r.Kind[loc])
		chk.Float64(tst, "raw design", 1e-15, r.Design[loc], 1)
		chk.Float64(tst, "raw fixed", 1e-15, r.Fixed[loc], 1)
	}
	passive := r.Passive()
	chk.Float64(tst, "passive", 1e-15, passive[p.Elems.Local(0, 2, 0)], 1)
	chk.Float64(tst, "active", 1e-15, passive[p.Elems.Local(1, 2, 0)], 0)

	// design wins
	prec, err := ParsePrecedence([]string{"design", "fixed", "load", "solid"})
	require.NoError(tst, err)
	r, _, err = Classify(p, geos, prec, quiet)
	require.NoError(tst, err)
	chk.Int(tst, "fixed", r.Count[Fixed], 0)
	chk.Int(tst, "design", r.Count[Design], 32)

	// invalid lists
	_, err = ParsePrecedence([]string{"fixed", "fixed"})
	require.ErrorIs(tst, err, inp.ErrConfig)
	_, err = ParsePrecedence([]string{"wall"})
	require.ErrorIs(tst, err, inp.ErrConfig)
	_, _, err = Classify(p, geos, []Region{Fixed, Fixed}, quiet)
	require.ErrorIs(tst, err, inp.ErrConfig)
}

func Test_regions02(tst *testing.T) {

	//verbose()
	chk.PrintTitle("regions02. geometry files")

	sim, err := inp.ReadSim("../inp/data/cantilever.topo", "", false)
	require.NoError(tst, err)
	sim.Regions.Solid = []string{"missing.geo"}
	geos, errs := LoadGeometries(sim, quiet)
	require.Len(tst, errs, 1)
	require.ErrorIs(tst, errs[0], inp.ErrGeometry)
	require.True(tst, geos.Requested[Solid])
	require.Empty(tst, geos.Inputs[Solid])
	require.Len(tst, geos.Inputs[Fixed], 1)
	require.Len(tst, geos.Inputs[Load], 1)

	p, err := mesh.SetUp(sim.Mesh, comm.Serial{})
	require.NoError(tst, err)
	// the unreadable file was already reported
	r, errs, err := Classify(p, geos, DefaultPrecedence(), quiet)
	require.NoError(tst, err)
	require.Empty(tst, errs)
	io.Pforan("count = %v\n", r.Count)

	// fixture: first column of elements (x < 0.125)
	chk.Int(tst, "fixed", r.Count[Fixed], 8*8)
	chk.Int(tst, "solid", r.Count[Solid], 0)
	require.Greater(tst, r.Count[Load], 0)
	chk.Int(tst, "total", r.Count[Design]+r.Count[Solid]+r.Count[Fixed]+r.Count[Load], 16*8*8)

	// load elements lie inside the footprint and the z-range of the prism
	p.Elems.Each(func(loc, i, j, k int) {
		if r.Kind[loc] == Load {
			x := p.ElemCenter(i, j, k)
			require.GreaterOrEqual(tst, x[0], 1.8)
			require.LessOrEqual(tst, x[1], 0.3)
			require.True(tst, x[2] >= 0.4 && x[2] <= 0.6)
		}
	})

	// loaded geometry outside the domain
	outside, err := inp.DecodeGeo([]byte(`{"shapes":[{"type":"box","min":[5,5],"max":[6,6]}]}`))
	require.NoError(tst, err)
	geos.Add(Solid, outside)
	r, errs, err = Classify(p, geos, DefaultPrecedence(), quiet)
	require.NoError(tst, err)
	require.Len(tst, errs, 1)
	require.ErrorIs(tst, errs[0], inp.ErrGeometry)
	chk.Int(tst, "solid", r.Count[Solid], 0)
}

func Test_regions03(tst *testing.T) {

	//verbose()
	chk.PrintTitle("regions03. node density across ranks")

	data := inp.MeshData{Xc: [6]float64{0, 2, 0, 1, 0, 1}, Nel: [3]int{8, 4, 4}, Nlvls: 1}
	density := func(nranks int) (nodal []float64) {
		err := comm.Run(nranks, func(c comm.Comm) error {
			p, r, _, err := newState(c, data, nil)
			if err != nil {
				return err
			}
			xPhys := make([]float64, p.Elems.Nlocal())
			natural(p.Elems, xPhys, 0)
			if err = r.UpdateNodeDensity(xPhys); err != nil {
				return err
			}
			global := make([]float64, p.Nodes.Nglobal())
			p.Nodes.Gather(c, global, r.NodeDensity)

			// corner node touches one element
			if global[0] != 1.0/3.0 {
				return chk.Err("corner density = %v", global[0])
			}

			// uniform field
			if err = r.UpdateNodeDensity(uniform(len(xPhys), 0.7)); err != nil {
				return err
			}
			for i, v := range r.NodeDensity {
				if math.Abs(v-0.7) > 1e-15 {
					return chk.Err("rank %d: node %d has density %v", c.Rank(), i, v)
				}
			}
			if c.Rank() == 0 {
				nodal = global
			}
			return nil
		})
		require.NoError(tst, err)
		return
	}
	serial := density(1)
	for _, n := range []int{2, 4, 8} {
		chk.Array(tst, io.Sf("%d ranks", n), 1e-15, density(n), serial)
	}
}

func Test_regions04(tst *testing.T) {

	//verbose()
	chk.PrintTitle("regions04. node counts")

	data := inp.MeshData{Xc: [6]float64{0, 1, 0, 1, 0, 0}, Nel: [3]int{2, 2, 0}, Nlvls: 1}
	p, r, _, err := newState(comm.Serial{}, data, nil)
	require.NoError(tst, err)
	chk.Array(tst, "counts", 1e-15, r.NodeCounts, []float64{1, 2, 1, 2, 4, 2, 1, 2, 1})
	require.ErrorIs(tst, r.UpdateNodeDensity(make([]float64, 3)), ErrAllocation)
	require.Len(tst, r.NodeDensity, p.Nodes.Nlocal())
}
