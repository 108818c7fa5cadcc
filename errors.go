// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.14
//

package gofusion

import (
	"errors"
	"fmt"
)

// ErrNotConverged is matched by every non-convergence error of the nonlinear solver.
var ErrNotConverged = errors.New("gofusion: optimization did not converge")

// ConvergenceError is returned by Optimize when the damping exceeds its
// ceiling before any step has been accepted.
type ConvergenceError struct {
	Lambda     float64 // Damping when the solver gave up
	MaxLambda  float64 // Ceiling that was exceeded
	Iterations int     // Outer iterations performed
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("gofusion: lambda %g exceeded ceiling %g after %d iterations without an accepted step", e.Lambda, e.MaxLambda, e.Iterations)
}

func (e *ConvergenceError) Unwrap() error {
	return ErrNotConverged
}

// Programmer errors in graph assembly are not recoverable; they panic.
func fail(format string, a ...any) {
	panic(fmt.Sprintf("gofusion: "+format, a...))
}
