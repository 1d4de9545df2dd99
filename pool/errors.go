package pool

import "errors"

var (
	// ErrOutOfMemory indicates that the arena or bitmap could not be allocated.
	ErrOutOfMemory = errors.New("pool: out of memory")

	// ErrInvalidSize indicates a non-positive capacity or slot size.
	ErrInvalidSize = errors.New("pool: capacity and slot size must be greater than zero")

	// ErrExhausted indicates that every slot is allocated.
	ErrExhausted = errors.New("pool: exhausted")

	// ErrInvalidAddress indicates an address outside the arena or not on a slot boundary.
	ErrInvalidAddress = errors.New("pool: address out of range")

	// ErrDoubleFree indicates a release of a slot that is already free.
	ErrDoubleFree = errors.New("pool: region is already free")

	// ErrDestroyed indicates use of a pool after Destroy.
	ErrDestroyed = errors.New("pool: destroyed")
)
