// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.19
//

package gofusion

import (
	"fmt"
	"io"
	"os"
	"reflect"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ------------------------------------
// Mini functions
// ------------------------------------

// SquaredNorm returns the sum of squares of v.
func SquaredNorm(v []float64) float64 {
	return floats.Dot(v, v)
}

// typeKey returns the key under which values of type T are bucketed.
func typeKey[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}

// sortedKeys returns the keys of m ordered by type name, so that every walk
// over a heterogeneous table visits the buckets in the same order.
func sortedKeys[V any](m map[reflect.Type]V) []reflect.Type {
	keys := maps.Keys(m)
	slices.SortFunc(keys, func(a, b reflect.Type) int {
		as, bs := a.String(), b.String()
		switch {
		case as < bs:
			return -1
		case as > bs:
			return 1
		}
		return 0
	})
	return keys
}

// ------------------------------------
// Debug print function
// ------------------------------------

func formatMat(X mat.Matrix) string {
	r, c := X.Dims()
	fa := mat.Formatted(X, mat.Prefix(""), mat.Squeeze())
	return fmt.Sprintf("(%d x %d)\n%v\n", r, c, fa)
}

// Debug level: 0 (off) to 4 (matrix dumps)
var DBG_ int

var dbgOut io.Writer = os.Stderr

// Debug display
func PrintD(v int, format string, a ...any) {
	if DBG_ >= v {
		fmt.Fprintf(dbgOut, format, a...)
	}
}
