// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mesh

import (
	"github.com/cpmech/gosl/chk"
	"github.com/ljuillen/TopADD-2D-3D-Arbitrary-TopOpt-in-PETSc/comm"
)

// Gather fills global (natural ordering; len == Nglobal) with the owned values
// of all ranks. Collective
func (o *DA) Gather(c comm.Comm, global, local []float64) {
	if len(global) != o.Nglobal() || len(local) != o.Nlocal() {
		chk.Panic("Gather: wrong sizes. len(global)=%d (%d), len(local)=%d (%d)", len(global), o.Nglobal(), len(local), o.Nlocal())
	}
	for i := range global {
		global[i] = 0
	}
	o.Each(func(loc, i, j, k int) {
		global[o.Index(i, j, k)] = local[loc]
	})
	c.AllReduceSum(global, global)
}

// scatter copies the owned values of global (natural ordering) into local
func (o *DA) scatter(local, global []float64) {
	o.Each(func(loc, i, j, k int) {
		local[loc] = global[o.Index(i, j, k)]
	})
}
