// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.14
//

package gofusion

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// chunkCount returns how many contiguous chunks n instances are split into.
func chunkCount(n int) int {
	if n <= 0 {
		return 0
	}
	c := (n + MIN_CHUNK_SIZE - 1) / MIN_CHUNK_SIZE
	return min(c, runtime.GOMAXPROCS(0))
}

// parallelFor calls fn once per chunk of [0, n), in parallel when there is
// more than one chunk. Chunk k covers [lo, hi) and k < chunkCount(n).
func parallelFor(n int, fn func(k, lo, hi int)) {
	c := chunkCount(n)
	switch c {
	case 0:
		return
	case 1:
		fn(0, 0, n)
		return
	}

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	size := (n + c - 1) / c
	for k := range c {
		lo := k * size
		hi := min(lo+size, n)
		if lo >= hi {
			break
		}
		g.Go(func() error {
			fn(k, lo, hi)
			return nil
		})
	}
	_ = g.Wait()
}
