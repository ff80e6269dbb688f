package memutils

import (
	"math/bits"

	cerrors "github.com/cockroachdb/errors"
)

type Number interface {
	~int | ~uint
}

// CheckPow2 returns an error wrapping PowerOfTwoError if number is not a positive power of two
func CheckPow2[T Number](number T, name string) error {
	if number <= 0 || number&(number-1) != 0 {
		return cerrors.Wrapf(PowerOfTwoError, "%s is %d", name, number)
	}
	return nil
}

// RoundUp rounds value up to the next multiple of multiple, which does not need to be
// a power of two
func RoundUp(value int, multiple int) int {
	if multiple <= 1 {
		return value
	}
	return (value + multiple - 1) / multiple * multiple
}

// Log2Ceil returns the smallest k such that 1<<k >= value. Values below 2 return 0.
func Log2Ceil(value int) int {
	if value <= 1 {
		return 0
	}
	return bits.Len(uint(value - 1))
}
