// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !mpi

package comm

// Start returns the communicator of a serial run. Build with -tags mpi for parallel runs
func Start() Comm {
	return Serial{}
}

// Stop does nothing in serial runs
func Stop() {}
