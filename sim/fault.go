package sim

import (
	"fmt"
)

// Fault is a recoverable failure of a single allocator. The allocator's tracker stops
// forwarding operations to it until the end of the run, and the other allocators carry on.
type Fault struct {
	// Allocator is the display name of the allocator that faulted
	Allocator string
	// Message describes what went wrong
	Message string
	// Err is the error returned by the allocator, if there was one
	Err error

	// Bytes is the number of bytes the tracker held live when the fault occurred. The
	// allocation or free that faulted is never included.
	Bytes int
	// Chunks is the number of chunks the tracker held live when the fault occurred, excluding
	// the one that faulted
	Chunks int
}

func (f *Fault) String() string {
	return fmt.Sprintf("%s faulted with %d bytes in %d chunks: %s", f.Allocator, f.Bytes, f.Chunks, f.Message)
}

// FaultMessage is a distinct fault message and the number of times it was recorded
type FaultMessage struct {
	Message string
	Count   int
}
