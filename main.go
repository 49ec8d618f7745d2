// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/io"
	"github.com/ljuillen/TopADD-2D-3D-Arbitrary-TopOpt-in-PETSc/comm"
	"github.com/ljuillen/TopADD-2D-3D-Arbitrary-TopOpt-in-PETSc/inp"
	"github.com/ljuillen/TopADD-2D-3D-Arbitrary-TopOpt-in-PETSc/topo"
	"github.com/lmittmann/tint"
)

func main() {

	// communicator
	c := comm.Start()
	root := comm.Root(c)

	// catch errors
	defer func() {
		if err := recover(); err != nil {
			if root {
				io.Pfred("ERROR: %v\n", err)
			}
			comm.Stop()
			os.Exit(1)
		}
		comm.Stop()
	}()

	// read input parameters
	fnamepath, _ := io.ArgToFilename(0, "", ".topo", true)
	verbose := io.ArgToBool(1, true)
	erasePrev := io.ArgToBool(2, true)
	alias := io.ArgToString(3, "")

	// logger
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05",
	})))

	// message
	if root && verbose {
		io.Pf("\nTopADD -- topology optimization with checkpoint/restart\n\n")
		io.Pf("%-24s = %v\n", "filename path", fnamepath)
		io.Pf("%-24s = %v\n", "show messages", verbose)
		io.Pf("%-24s = %v\n", "erase previous results", erasePrev)
		io.Pf("%-24s = %v\n", "word to add to results", alias)
		io.Pf("%-24s = %v\n\n", "number of processes", c.Size())
	}

	// simulation data
	sim, err := inp.ReadSim(fnamepath, alias, erasePrev && root)
	if err != nil {
		chk.Panic("cannot read simulation data:\n%v", err)
	}
	sim.Data.Verbose = sim.Data.Verbose && verbose

	// monitoring
	if root {
		if srv := topo.ServeMetrics(sim.Metrics.Addr, slog.Default()); srv != nil {
			defer srv.Close()
		}
	}

	// stop between iterations on interrupt
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// run
	analysis, err := topo.NewMain(sim, c, nil, slog.Default())
	if err != nil {
		chk.Panic("cannot set up optimization:\n%v", err)
	}
	err = analysis.Run(ctx)
	if err != nil {
		chk.Panic("Run failed:\n%v", err)
	}
}
