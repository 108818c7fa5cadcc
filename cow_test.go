// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.18
//

package gofusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArrayBufferSnapshotIsolation(t *testing.T) {
	a := NewArrayBuffer(1, 2, 3)
	s := a.Snapshot()
	assert.True(t, a.sharesStorage(s))

	a.Set(0, 10)
	assert.Equal(t, []int{10, 2, 3}, a.Elements())
	assert.Equal(t, []int{1, 2, 3}, s.Elements())
	assert.False(t, a.sharesStorage(s))

	// The snapshot side copies too when it writes first
	b := NewArrayBuffer(1, 2)
	c := b.Snapshot()
	c.Append(3)
	assert.Equal(t, []int{1, 2}, b.Elements())
	assert.Equal(t, []int{1, 2, 3}, c.Elements())
}

func TestArrayBufferUniqueWritesInPlace(t *testing.T) {
	a := NewArrayBuffer("x")
	alias := a
	a.Set(0, "y")
	assert.Equal(t, "y", alias.At(0))
	assert.True(t, a.sharesStorage(alias))
}

func TestArrayBufferZeroValue(t *testing.T) {
	var a ArrayBuffer[float64]
	assert.Equal(t, 0, a.Len())
	assert.Nil(t, a.Elements())
	assert.Nil(t, a.Mutable())
	assert.Equal(t, 0, a.Snapshot().Len())

	assert.Equal(t, 0, a.Append(1.5))
	assert.Equal(t, 1, a.Append(2.5))
	assert.Equal(t, 2, a.Len())
}

func TestNewArrayBufferCopies(t *testing.T) {
	src := []int{1, 2}
	a := NewArrayBuffer(src...)
	src[0] = 5
	assert.Equal(t, 1, a.At(0))
}
