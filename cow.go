// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.15
//

package gofusion

// ArrayBuffer is a contiguous array with copy-on-write snapshots.
//
// Plain copies of an ArrayBuffer value alias each other like slices do.
// Snapshot returns an independent buffer in O(1): both buffers keep reading
// the same storage, and whichever side writes first copies it.
type ArrayBuffer[E any] struct {
	s *arrayStorage[E]
}

type arrayStorage[E any] struct {
	elems  []E
	shared bool // set by Snapshot, never cleared
}

// NewArrayBuffer returns a buffer holding a copy of elems.
func NewArrayBuffer[E any](elems ...E) ArrayBuffer[E] {
	c := make([]E, len(elems))
	copy(c, elems)
	return arrayBufferOf(c)
}

// arrayBufferOf takes ownership of elems.
func arrayBufferOf[E any](elems []E) ArrayBuffer[E] {
	return ArrayBuffer[E]{s: &arrayStorage[E]{elems: elems}}
}

func (b ArrayBuffer[E]) Len() int {
	if b.s == nil {
		return 0
	}
	return len(b.s.elems)
}

func (b ArrayBuffer[E]) At(i int) E {
	return b.s.elems[i]
}

// Elements returns the stored elements. The slice must not be modified.
func (b ArrayBuffer[E]) Elements() []E {
	if b.s == nil {
		return nil
	}
	return b.s.elems
}

// Snapshot returns a buffer with the current contents that no later write
// through b can change.
func (b ArrayBuffer[E]) Snapshot() ArrayBuffer[E] {
	if b.s == nil {
		return b
	}
	b.s.shared = true
	return ArrayBuffer[E]{s: b.s}
}

// Append adds e and returns its index.
func (b *ArrayBuffer[E]) Append(e E) int {
	if b.s == nil {
		b.s = &arrayStorage[E]{}
	}
	b.unique()
	b.s.elems = append(b.s.elems, e)
	return len(b.s.elems) - 1
}

func (b *ArrayBuffer[E]) Set(i int, e E) {
	b.Mutable()[i] = e
}

// Mutable returns the elements for in-place modification, copying the
// storage first if it is shared with a snapshot.
func (b *ArrayBuffer[E]) Mutable() []E {
	if b.s == nil {
		return nil
	}
	b.unique()
	return b.s.elems
}

func (b *ArrayBuffer[E]) unique() {
	if !b.s.shared {
		return
	}
	c := make([]E, len(b.s.elems), max(cap(b.s.elems), 1))
	copy(c, b.s.elems)
	b.s = &arrayStorage[E]{elems: c}
}

// sharesStorage reports whether b and o read the same storage.
func (b ArrayBuffer[E]) sharesStorage(o ArrayBuffer[E]) bool {
	return b.s != nil && b.s == o.s
}
