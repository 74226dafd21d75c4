// Package mmap provides the raw memory-mapping primitives the rest of this
// module builds on: map a file into the process address space, flush dirty
// pages back to disk, and unmap. It carries no knowledge of file formats,
// headers, or allocation strategy — those live in the parent package.
package mmap

import (
	"os"
)

type Options uint

const (
	// Writable opens the mapping for writing (otherwise it's read-only).
	Writable Options = 1 << 0

	// SequentialAccess hints aggressive read-ahead. Incompatible with
	// RandomAccess. Maps to MADV_SEQUENTIAL on Unix.
	SequentialAccess Options = 1 << 1

	// RandomAccess hints that read-ahead is not useful. Incompatible with
	// SequentialAccess. Maps to MADV_RANDOM on Unix.
	RandomAccess Options = 1 << 2

	// Prefault requests the whole mapping be faulted in eagerly. Maps to
	// MAP_POPULATE on Linux.
	Prefault Options = 1 << 3
)

func (o Options) Has(v Options) bool {
	return o&v != 0
}

// Map memory-maps size bytes of f starting at offset 0 and returns the
// mapped slice. The caller must have already extended f to at least size
// bytes (e.g. via Truncate). On Unix, Map never changes the file's length;
// on Windows, a Writable mapping first truncates f to size.
func Map(f *os.File, size int, opt Options) ([]byte, error) {
	return mmap(f, size, opt)
}

// Unmap unmaps a slice previously returned by Map.
func Unmap(b []byte) error {
	return munmap(b)
}

// Flush synchronizes the dirty pages backing b (or, if b is nil, f itself)
// to disk. If async is true the call may return before data is durable.
func Flush(f *os.File, b []byte, async bool) error {
	if async {
		return flushAsync(f, b)
	}
	return flushSync(f, b)
}
