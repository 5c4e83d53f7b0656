package memsim

import (
	"fmt"
	"math/bits"

	cerrors "github.com/cockroachdb/errors"
)

type Number interface {
	~int | ~uint
}

// CheckPow2 returns an error wrapping PowerOfTwoError if the provided number is not a positive
// power of two. The name parameter is included in the error message to identify the offending value.
func CheckPow2[T Number](number T, name string) error {
	if number < 1 || number&(number-1) != 0 {
		return cerrors.Wrapf(PowerOfTwoError, "%s is %d", name, number)
	}
	return nil
}

// NextPow2 returns the smallest power of two greater than or equal to size, or size itself
// if it is already a power of two. NextPow2(1) is 1. size must be positive.
func NextPow2(size int) int {
	if size < 1 {
		panic(fmt.Sprintf("cannot round a non-positive size: %d", size))
	}
	return 1 << bits.Len(uint(size-1))
}

// SizeOrder returns the base-2 logarithm of a power-of-two size, which is its index
// in an order-indexed free list. size must be a positive power of two.
func SizeOrder(size int) int {
	if err := CheckPow2(size, "size"); err != nil {
		panic(err)
	}
	return bits.TrailingZeros(uint(size))
}

func AlignDown(value int, alignment uint) int {
	DebugCheckPow2(alignment, "alignment")
	return value & int(^(alignment - 1))
}
