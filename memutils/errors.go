package memutils

import "github.com/pkg/errors"

var (
	// PowerOfTwoError is the error returned from CheckPow2 or other methods if the number being tested is not a power of two
	PowerOfTwoError error = errors.New("number must be a power of two")

	// ErrInvalidRequest is returned by an allocator asked for zero or a negative number of bytes
	ErrInvalidRequest = errors.New("allocation request must be at least one byte")
	// ErrOutOfMemory is returned by an allocator that has no free region large enough for a request
	ErrOutOfMemory = errors.New("no free region is large enough for the request")
	// ErrForeignChunk is returned when an allocator is asked to free a chunk it does not currently own
	ErrForeignChunk = errors.New("chunk is not owned by this allocator")
)
