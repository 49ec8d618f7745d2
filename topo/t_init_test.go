// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package topo

import (
	"errors"
	goio "io"
	"log/slog"
	"strings"
	"testing"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/io"
	"github.com/ljuillen/TopADD-2D-3D-Arbitrary-TopOpt-in-PETSc/comm"
	"github.com/ljuillen/TopADD-2D-3D-Arbitrary-TopOpt-in-PETSc/inp"
	"github.com/ljuillen/TopADD-2D-3D-Arbitrary-TopOpt-in-PETSc/mesh"
	"github.com/stretchr/testify/require"
)

func init() {
	io.Verbose = false
}

func verbose() {
	io.Verbose = true
	chk.Verbose = true
}

// quiet discards log records
var quiet = slog.New(slog.NewTextHandler(goio.Discard, nil))

// newSim returns default simulation data with the given mesh and output directory
func newSim(tst *testing.T, data inp.MeshData, dir string) *inp.Simulation {
	sim, err := inp.DecodeSim([]byte(`{"data":{"verbose":false}}`))
	require.NoError(tst, err)
	sim.Mesh = data
	sim.DirIn = dir
	sim.DirOut = dir
	sim.DirRestart = dir
	sim.Key = "test"
	sim.Restart.On = true
	return sim
}

// newState sets up grids, an empty classification and fields on one rank
func newState(c comm.Comm, data inp.MeshData, prm *Params) (p *mesh.Pair, r *Regions, st *State, err error) {
	p, err = mesh.SetUp(data, c)
	if err != nil {
		return
	}
	r, _, err = Classify(p, new(Geometries), DefaultPrecedence(), quiet)
	if err != nil {
		return
	}
	st, err = Allocate(p, r, prm)
	return
}

// natural fills v with a smooth function of the natural index of each owned point
func natural(da *mesh.DA, v []float64, shift float64) {
	for loc, g := range da.LocalToGlobal() {
		v[loc] = shift + 1.0/float64(g+3)
	}
}

// same returns an error if a and b are not bit-identical
func same(name string, a, b []float64) error {
	if len(a) != len(b) {
		return chk.Err("%s: lengths differ: %d != %d", name, len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			return chk.Err("%s: values differ at %d: %v != %v", name, i, a[i], b[i])
		}
	}
	return nil
}

// faultyBackend fails the second write to any file whose path contains match
type faultyBackend struct {
	OSBackend
	match string
}

func (o faultyBackend) OpenWrite(path string) (File, error) {
	f, err := o.OSBackend.OpenWrite(path)
	if err != nil || !strings.Contains(path, o.match) {
		return f, err
	}
	return &faultyFile{File: f}, nil
}

type faultyFile struct {
	File
	nwrites int
}

func (o *faultyFile) WriteAt(b []byte, off int64) (int, error) {
	o.nwrites++
	if o.nwrites > 1 {
		return 0, errors.New("no space left on device")
	}
	return o.File.WriteAt(b, off)
}
