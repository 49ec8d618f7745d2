// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// +build ignore

package main

import (
	"log/slog"

	"github.com/cpmech/gosl/io"
	"github.com/ljuillen/TopADD-2D-3D-Arbitrary-TopOpt-in-PETSc/comm"
	"github.com/ljuillen/TopADD-2D-3D-Arbitrary-TopOpt-in-PETSc/inp"
	"github.com/ljuillen/TopADD-2D-3D-Arbitrary-TopOpt-in-PETSc/topo"
)

func main() {

	// catch errors
	defer func() {
		if err := recover(); err != nil {
			io.Pfred("ERROR: %v\n", err)
		}
	}()

	// input data
	fnamepath, _ := io.ArgToFilename(0, "inp/data/cantilever", ".topo", true)
	alias := io.ArgToString(1, "")
	io.Pf("\n%-16s = %v\n%-16s = %v\n\n", "simulation file", fnamepath, "alias", alias)

	// simulation data
	sim, err := inp.ReadSim(fnamepath, alias, false)
	if err != nil {
		io.Pfred("cannot read simulation data:\n%v", err)
		return
	}
	rs := topo.NewRestart(sim, comm.Serial{}, nil, slog.Default())
	n := sim.Mesh.Nel[0] * sim.Mesh.Nel[1]
	if sim.Ndim == 3 {
		n *= sim.Mesh.Nel[2]
	}

	// headers
	io.Pf("%-40s %8s %8s %10s %12s\n", "file", "fields", "itr", "length", "fscale")
	for _, fn := range []string{rs.SlotPath(0), rs.SlotPath(1), rs.HistoryPath()} {
		if !rs.Backend.Exists(fn) {
			io.Pf("%-40s %s\n", fn, "missing")
			continue
		}
		hdr, err := topo.ReadHeader(rs.Backend, fn)
		if err != nil {
			io.Pfred("%-40s %v\n", fn, err)
			continue
		}
		if hdr.Length != int64(n) {
			io.Pfyel("%-40s %8d %8d %10d %12g  (mesh has %d elements)\n", fn, hdr.Nfields, hdr.Itr, hdr.Length, hdr.Fscale, n)
			continue
		}
		io.Pforan("%-40s %8d %8d %10d %12g\n", fn, hdr.Nfields, hdr.Itr, hdr.Length, hdr.Fscale)
	}
}
