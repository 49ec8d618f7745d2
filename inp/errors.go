// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package inp

import (
	"errors"
	"fmt"

	"github.com/cpmech/gosl/io"
)

// input error kinds. test with errors.Is
var (

	// ErrConfig flags invalid mesh, multigrid or optimization parameters.
	// It is fatal and always raised before any field is allocated.
	ErrConfig = errors.New("configuration error")

	// ErrGeometry flags a missing, unreadable or empty region input.
	// It is recoverable: the region is treated as empty.
	ErrGeometry = errors.New("geometry error")
)

// ConfigErr returns a new error of kind ErrConfig
func ConfigErr(msg string, prm ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConfig, io.Sf(msg, prm...))
}

// GeometryErr returns a new error of kind ErrGeometry
func GeometryErr(msg string, prm ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrGeometry, io.Sf(msg, prm...))
}
