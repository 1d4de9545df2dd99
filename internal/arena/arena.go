// Package arena supplies the raw, zeroed byte buffers that pools carve into
// slots. Buffers come from an anonymous mapping where the platform offers one
// and from the Go heap otherwise.
package arena

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfMemory indicates that the platform refused to supply the buffer.
	ErrOutOfMemory = errors.New("arena: out of memory")

	// ErrInvalidSize indicates a non-positive buffer size.
	ErrInvalidSize = errors.New("arena: size must be greater than zero")
)

// Func allocates a zeroed, writable buffer of exactly n bytes and returns a
// function that releases it. Map and Heap both satisfy it.
type Func func(n int) ([]byte, func() error, error)

// Heap allocates the buffer on the Go heap. The release function only drops
// the reference; the collector reclaims the memory.
func Heap(n int) (data []byte, release func() error, err error) {
	if n <= 0 {
		return nil, nil, fmt.Errorf("%w: %d", ErrInvalidSize, n)
	}
	defer func() {
		// make panics on lengths the runtime cannot represent.
		if r := recover(); r != nil {
			data, release = nil, nil
			err = fmt.Errorf("%w: %d bytes: %v", ErrOutOfMemory, n, r)
		}
	}()
	data = make([]byte, n)
	return data, func() error { return nil }, nil
}

// once wraps a release function so that a second call is a no-op.
func once(release func() error) func() error {
	done := false
	return func() error {
		if done {
			return nil
		}
		done = true
		return release()
	}
}
