package sim

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrIntegrityViolation marks errors that mean a strategy or the harness itself is broken:
	// overlapping chunks, trackers that disagree on the live chunk count, a failed allocator
	// self-check, or a fresh allocator that isn't empty. The comparison is no longer valid
	// once one occurs, so these errors should abort the simulation.
	ErrIntegrityViolation = errors.New("integrity violation")

	// ErrAllFaulted is returned by State.Allocate once every tracked allocator has faulted
	// during the current run
	ErrAllFaulted = errors.New("all allocators have faulted")
)

func integrityViolationf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrIntegrityViolation)
}

func wrapIntegrityViolation(err error, format string, args ...interface{}) error {
	return errors.Mark(errors.Wrapf(err, format, args...), ErrIntegrityViolation)
}

// IsIntegrityViolation returns true if err, or any error it wraps, is marked with
// ErrIntegrityViolation
func IsIntegrityViolation(err error) bool {
	return errors.Is(err, ErrIntegrityViolation)
}
