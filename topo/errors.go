// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package topo

import (
	"errors"
	"fmt"

	"github.com/cpmech/gosl/io"
)

// state error kinds. test with errors.Is
var (

	// ErrRestart flags a corrupt or inconsistent checkpoint pair.
	// It is fatal unless the restart fallback is "fresh".
	ErrRestart = errors.New("restart error")

	// ErrAllocation flags a field whose size does not match the mesh
	ErrAllocation = errors.New("allocation error")
)

// RestartErr returns a new error of kind ErrRestart
func RestartErr(msg string, prm ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrRestart, io.Sf(msg, prm...))
}

// AllocationErr returns a new error of kind ErrAllocation
func AllocationErr(msg string, prm ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrAllocation, io.Sf(msg, prm...))
}
