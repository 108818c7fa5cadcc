// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.14
//

package gofusion

const (
	CGLS_MAX_ITERATIONS = 400   // Inner iteration budget of CGLS
	CGLS_PRECISION      = 1e-12 // CGLS stops when |A^T r|^2 falls below this

	LM_MAX_ITERATIONS     = 50    // Outer (re-linearization) iterations
	LM_INITIAL_LAMBDA     = 1e-4  // Initial damping
	LM_LAMBDA_FACTOR      = 10.0  // Damping is multiplied/divided by this on reject/accept
	LM_MIN_LAMBDA         = 1e-16 // Floor of the damping
	LM_MAX_LAMBDA         = 1e5   // Ceiling of the damping, exceeding it ends the optimization
	LM_PRECISION          = 1e-12 // Total error regarded as converged
	LM_RELATIVE_TOLERANCE = 1e-10 // Relative error decrease regarded as converged

	MIN_CHUNK_SIZE = 64 // Smallest number of factors handed to one worker
)

// LM verbosity levels
const (
	SILENT     = iota // No per-iteration output
	SUMMARY           // One line per outer iteration
	TRY_LAMBDA        // Also every damped inner solve
)
