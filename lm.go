// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.18
//

package gofusion

import (
	"math"
)

// LMOpt contains options and parameters for Levenberg-Marquardt optimization
type LMOpt struct {
	MaxIterations     int      // Outer iterations, one linearization each
	InitialLambda     float64  // Initial damping
	LambdaFactor      float64  // Damping is divided by this on accept and multiplied on reject
	MinLambda         float64  // Floor of the damping
	MaxLambda         float64  // Ceiling of the damping
	Precision         float64  // Stop when the total error falls below this
	RelativeTolerance float64  // Stop when an accepted step decreases the error relatively less than this
	CGLS              *CGLSOpt // Options of the inner linear solver
	Logger            *Logger  // Destination of progress logs
	Verbosity         int      // SILENT, SUMMARY or TRY_LAMBDA
}

func NewLMOpt() *LMOpt {
	return &LMOpt{
		MaxIterations:     LM_MAX_ITERATIONS,
		InitialLambda:     LM_INITIAL_LAMBDA,
		LambdaFactor:      LM_LAMBDA_FACTOR,
		MinLambda:         LM_MIN_LAMBDA,
		MaxLambda:         LM_MAX_LAMBDA,
		Precision:         LM_PRECISION,
		RelativeTolerance: LM_RELATIVE_TOLERANCE,
		CGLS:              NewCGLSOpt(),
		Logger:            NoopLogger(),
		Verbosity:         SILENT,
	}
}

// LMState is the phase of the optimizer
type LMState int

const (
	LMLinearizing LMState = iota
	LMSolvingInner
	LMEvaluating
	LMAccepted
	LMRejected
	LMGaveUp
)

func (s LMState) String() string {
	switch s {
	case LMLinearizing:
		return "linearizing"
	case LMSolvingInner:
		return "solving-inner"
	case LMEvaluating:
		return "evaluating"
	case LMAccepted:
		return "accepted"
	case LMRejected:
		return "rejected"
	case LMGaveUp:
		return "gave-up"
	}
	return "unknown"
}

// LMSol contains the outcome of an optimization
type LMSol struct {
	Iterations      int     // Outer iterations performed
	Accepted        int     // Accepted steps
	Rejected        int     // Rejected steps
	InnerIterations int     // CGLS iterations over all inner solves
	Lambda          float64 // Damping at the end
	InitialError    float64 // Total error before the first step
	FinalError      float64 // Total error at the returned estimate
	State           LMState // Last state reached
}

// Optimize minimizes the error of g by Levenberg-Marquardt, moving x in place.
//
// Each outer iteration linearizes g at x and solves the damped linear problem
// by CGLS. A step is accepted when it decreases the error, and the damping
// shrinks; otherwise x is restored and the damping grows. When the damping
// exceeds opt.MaxLambda, Optimize returns a *ConvergenceError if no step was
// ever accepted, and the last accepted estimate otherwise.
func Optimize(g *FactorGraph, x *VariableAssignments, opt *LMOpt) (*LMSol, error) {
	if opt == nil {
		opt = NewLMOpt()
	}
	log := opt.Logger
	if log == nil {
		log = NoopLogger()
	}
	log.LogUnconstrained(g.Unconstrained(x))

	lambda := opt.InitialLambda
	errNow := g.Error(x)
	sol := &LMSol{InitialError: errNow, Lambda: lambda}
	accepted := false

	for sol.Iterations < opt.MaxIterations {
		if errNow < opt.Precision {
			break
		}
		sol.Iterations++
		errBefore := errNow

		sol.State = LMLinearizing
		gfg := g.Linearized(x)

		converged := false
	inner:
		for {
			sol.State = LMSolvingInner
			damped := gfg.Copy()
			damped.AddScalarJacobians(math.Sqrt(lambda))
			dx := damped.Zeros()
			oldLinear := damped.Error(dx)
			cg := SolveCGLS(damped, &dx, opt.CGLS)
			sol.InnerIterations += cg.Iterations
			newLinear := damped.Error(dx)

			sol.State = LMEvaluating
			old := x.Copy()
			x.Move(dx)
			errNew := g.Error(x)
			if opt.Verbosity >= TRY_LAMBDA {
				log.LogTry(sol.Iterations, lambda, cg.Iterations, oldLinear, newLinear, errNew)
			}

			if errNew < errNow && newLinear <= oldLinear {
				sol.State = LMAccepted
				sol.Accepted++
				accepted = true
				if errNow > 0 && (errNow-errNew)/errNow < opt.RelativeTolerance {
					converged = true
				}
				errNow = errNew
				lambda = max(lambda/opt.LambdaFactor, opt.MinLambda)
				break inner
			}

			sol.State = LMRejected
			sol.Rejected++
			x.assign(old)
			lambda *= opt.LambdaFactor
			if lambda > opt.MaxLambda {
				sol.State = LMGaveUp
				sol.Lambda = lambda
				sol.FinalError = errNow
				log.LogGaveUp(sol.Iterations, lambda, accepted)
				if !accepted {
					return sol, &ConvergenceError{Lambda: lambda, MaxLambda: opt.MaxLambda, Iterations: sol.Iterations}
				}
				return sol, nil
			}
		}

		if opt.Verbosity >= SUMMARY {
			log.LogIteration(sol.Iterations, sol.State, lambda, errBefore, errNow)
		}
		if converged {
			break
		}
	}

	sol.Lambda = lambda
	sol.FinalError = errNow
	return sol, nil
}
