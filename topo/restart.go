// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package topo

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/io"
	"github.com/ljuillen/TopADD-2D-3D-Arbitrary-TopOpt-in-PETSc/comm"
	"github.com/ljuillen/TopADD-2D-3D-Arbitrary-TopOpt-in-PETSc/inp"
)

// Phase is the phase of the restart manager
type Phase int

// phases
const (
	Fresh         Phase = iota // nothing done yet
	Restoring                  // reading checkpoints
	Running                    // optimization running
	Checkpointing              // writing checkpoints
)

func (o Phase) String() string {
	switch o {
	case Fresh:
		return "fresh"
	case Restoring:
		return "restoring"
	case Running:
		return "running"
	case Checkpointing:
		return "checkpointing"
	}
	return "unknown"
}

// number of rotating design slots
const nslots = 2

// Restart manages the checkpoint files of a run: two rotating design slots
// holding x and one file holding the optimizer history (xo1, xo2, U, L).
// A checkpoint writes the slot that does not hold the most recent valid
// snapshot, then the history file. On startup, the newest valid slot whose
// iteration matches the history file is restored.
type Restart struct {
	On       bool   // restore at startup if checkpoints exist
	Dir      string // directory with checkpoint files
	Key      string // filename key
	Interval int    // write checkpoints every Interval iterations; 0 => never
	Fallback string // what to do with inconsistent checkpoints: abort or fresh

	Comm    comm.Comm    // communicator
	Backend FileBackend  // file operations
	Log     *slog.Logger // logger

	Phase    Phase // current phase
	Restored bool  // state was restored from checkpoints
	last     int   // slot holding the most recent valid snapshot; -1 => none
}

// NewRestart returns a new restart manager
func NewRestart(sim *inp.Simulation, c comm.Comm, fb FileBackend, log *slog.Logger) (o *Restart) {
	if fb == nil {
		fb = OSBackend{}
	}
	return &Restart{
		On:       sim.Restart.On,
		Dir:      sim.DirRestart,
		Key:      sim.Key,
		Interval: sim.Restart.Interval,
		Fallback: sim.Restart.Fallback,
		Comm:     c,
		Backend:  fb,
		Log:      log,
		last:     -1,
	}
}

// SlotPath returns the path of design slot s
func (o *Restart) SlotPath(s int) string {
	return filepath.Join(o.Dir, io.Sf("%s_x%02d.dat", o.Key, s))
}

// HistoryPath returns the path of the optimizer history file
func (o *Restart) HistoryPath() string {
	return filepath.Join(o.Dir, io.Sf("%s_mma.dat", o.Key))
}

// Due tells whether a checkpoint must be written after itr completed iterations
func (o *Restart) Due(itr int) bool {
	return o.Interval > 0 && itr > 0 && itr%o.Interval == 0
}

// decisions taken by the root rank on startup
const (
	decideFresh   = 0
	decideRestore = 1
	decideBroken  = 2
)

// Begin restores the state from the checkpoint files, if requested and
// available, and moves to the Running phase. Returns the restored optimizer
// history or nil for a fresh start. Collective
//  Note: inconsistent checkpoints give an error of kind ErrRestart unless
//        Fallback is "fresh"
func (o *Restart) Begin(st *State) (h *History, err error) {
	if o.Phase != Fresh {
		return nil, chk.Err("restart manager already started. phase=%v", o.Phase)
	}
	if !o.On {
		o.startFresh("off")
		return nil, nil
	}

	// inspect files
	o.Phase = Restoring
	decision, slot, reason := o.inspect(st.N)
	switch decision {
	case decideFresh:
		o.startFresh("fresh")
		return nil, nil
	case decideRestore:
		h, err = o.restore(st, slot)
		if err == nil {
			return h, nil
		}
		reason = err.Error()
	}

	// inconsistent files
	e := RestartErr("checkpoints in %q are inconsistent: %s", o.Dir, reason)
	root := comm.Root(o.Comm)
	if o.Fallback != inp.FallbackFresh {
		o.count("failed")
		if root {
			o.Log.Error("cannot restart", "dir", o.Dir, "key", o.Key, "err", e)
		}
		return nil, e
	}
	if root {
		o.Log.Warn("starting from scratch", "dir", o.Dir, "key", o.Key, "err", e)
	}
	o.startFresh("fallback")
	return nil, nil
}

// inspect reads the headers on the root rank and broadcasts the decision
func (o *Restart) inspect(n int) (decision, slot int, reason string) {
	buf := make([]float64, 2)
	if comm.Root(o.Comm) {
		decision, slot, reason = o.decide(n)
		buf[0], buf[1] = float64(decision), float64(slot)
	}
	o.Comm.BcastFromRoot(buf)
	decision, slot = int(buf[0]), int(buf[1])
	if decision == decideBroken && reason == "" {
		reason = "see root rank"
	}
	return
}

// decide selects the slot to restore
func (o *Restart) decide(n int) (decision, slot int, reason string) {

	// nothing to restore
	fb := o.Backend
	hasHist := fb.Exists(o.HistoryPath())
	var hasSlot [nslots]bool
	for s := 0; s < nslots; s++ {
		hasSlot[s] = fb.Exists(o.SlotPath(s))
	}
	if !hasHist && !hasSlot[0] && !hasSlot[1] {
		return decideFresh, -1, ""
	}

	// history file
	if !hasHist {
		return decideBroken, -1, "design slot exists but optimizer history is missing"
	}
	hist, err := ReadHeader(fb, o.HistoryPath())
	if err != nil {
		return decideBroken, -1, io.Sf("optimizer history is corrupt: %v", err)
	}
	if hist.Length != int64(n) || hist.Nfields != 4 {
		return decideBroken, -1, io.Sf("optimizer history holds %d fields of length %d; expected 4 fields of length %d", hist.Nfields, hist.Length, n)
	}

	// newest valid slot matching the history
	slot = -1
	found := false
	for s := 0; s < nslots; s++ {
		if !hasSlot[s] {
			continue
		}
		found = true
		hdr, err := ReadHeader(fb, o.SlotPath(s))
		if err != nil {
			o.Log.Warn("ignoring design slot", "file", o.SlotPath(s), "err", err)
			continue
		}
		if hdr.Length != int64(n) || hdr.Nfields != 1 || hdr.Itr != hist.Itr {
			o.Log.Warn("ignoring design slot", "file", o.SlotPath(s), "itr", hdr.Itr, "length", hdr.Length, "history itr", hist.Itr)
			continue
		}
		slot = s
	}
	if !found {
		return decideBroken, -1, "optimizer history exists but no design slot"
	}
	if slot < 0 {
		return decideBroken, -1, io.Sf("no valid design slot matches iteration %d of the optimizer history", hist.Itr)
	}
	return decideRestore, slot, ""
}

// restore reads x from slot and the optimizer history
func (o *Restart) restore(st *State, slot int) (h *History, err error) {
	x := make([]float64, st.Nloc)
	xh, err := ReadFields(o.Comm, o.Backend, st.Grid, o.SlotPath(slot), x)
	if err != nil {
		return nil, err
	}
	h = &History{Xo1: make([]float64, st.Nloc), Xo2: make([]float64, st.Nloc), U: make([]float64, st.Nloc), L: make([]float64, st.Nloc)}
	hh, err := ReadFields(o.Comm, o.Backend, st.Grid, o.HistoryPath(), h.Fields()...)
	if err != nil {
		return nil, err
	}
	if xh.Itr != hh.Itr {
		return nil, chk.Err("design slot has iteration %d but optimizer history has %d", xh.Itr, hh.Itr)
	}
	h.Itr = int(hh.Itr)
	copy(st.X, x)
	copy(st.Xold, x)
	st.Fscale = hh.Fscale
	o.last = slot
	o.Restored = true
	o.Phase = Running
	o.count("restored")
	if comm.Root(o.Comm) {
		o.Log.Info("restarted", "slot", o.SlotPath(slot), "itr", h.Itr)
	}
	return
}

// startFresh moves to Running without restored state. Stale checkpoint files
// are removed when this run will write its own. outcome is "off", "fresh" or "fallback"
func (o *Restart) startFresh(outcome string) {
	o.Phase = Running
	o.last = -1
	if o.Interval > 0 && comm.Root(o.Comm) {
		for _, fn := range []string{o.SlotPath(0), o.SlotPath(1), o.HistoryPath()} {
			if o.Backend.Exists(fn) {
				if err := o.Backend.Remove(fn); err != nil {
					o.Log.Warn("cannot remove stale checkpoint", "file", fn, "err", err)
				} else {
					o.Log.Info("removed stale checkpoint", "file", fn)
				}
			}
		}
	}
	o.Comm.Barrier()
	o.count(outcome)
}

// Checkpoint writes x and the optimizer history after itr completed iterations.
// The design slot not holding the most recent valid snapshot is written
// first, then the history file. Collective
//  Note: errors are of kind ErrRestart
func (o *Restart) Checkpoint(itr int, st *State, h *History) (err error) {
	if o.Phase != Running {
		return RestartErr("cannot write checkpoint in phase %v", o.Phase)
	}
	if h == nil {
		return RestartErr("optimizer has no history to save")
	}
	start := time.Now()
	o.Phase = Checkpointing
	defer func() {
		o.Phase = Running
		if comm.Root(o.Comm) {
			observeCheckpoint(start, err)
		}
	}()
	next := (o.last + 1) % nslots
	if o.last < 0 {
		next = 0
	}
	err = WriteFields(o.Comm, o.Backend, st.Grid, o.SlotPath(next), itr, st.Fscale, st.X)
	if err != nil {
		return RestartErr("cannot write design slot: %v", err)
	}
	err = WriteFields(o.Comm, o.Backend, st.Grid, o.HistoryPath(), itr, st.Fscale, h.Fields()...)
	if err != nil {
		return RestartErr("cannot write optimizer history: %v", err)
	}
	o.last = next
	if comm.Root(o.Comm) {
		o.Log.Debug("checkpoint written", "slot", next, "itr", itr)
	}
	return
}

// Last returns the slot holding the most recent valid snapshot; -1 if none
func (o *Restart) Last() int {
	return o.last
}

// count records a restart outcome on the root rank
func (o *Restart) count(outcome string) {
	if comm.Root(o.Comm) {
		restartOutcomesTotal.WithLabelValues(outcome).Inc()
	}
}
