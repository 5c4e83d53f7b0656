package memsim

import "github.com/pkg/errors"

// PowerOfTwoError is the error returned from CheckPow2 or other methods if the number being tested is not a power of two
var PowerOfTwoError error = errors.New("number must be a power of two")

// RequestTooLargeError is returned from allocate or free operations when the requested size, after rounding
// up to the next power of two, is larger than the total managed memory
var RequestTooLargeError error = errors.New("requested size exceeds total memory")

// NoSuitableBlockError is returned from allocate operations when no free block large enough for the request
// exists, whether because memory is exhausted or because it is fragmented
var NoSuitableBlockError error = errors.New("no suitable block available for allocation")

// InvalidFreeError is returned from free operations when the provided address is not currently allocated,
// or when the provided size does not match the size recorded for it
var InvalidFreeError error = errors.New("invalid free operation, address and size do not match")
