package common

import (
	"errors"
	"math/bits"
)

// ErrArithmeticOverflow is returned when a checked operation would wrap.
var ErrArithmeticOverflow = errors.New("arithmetic overflow")

// CheckedAdd returns a+b, or ErrArithmeticOverflow if the sum does not fit in 64 bits.
func CheckedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrArithmeticOverflow
	}
	return sum, nil
}

// CheckedSub returns a-b, or ErrArithmeticOverflow if b > a.
func CheckedSub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrArithmeticOverflow
	}
	return diff, nil
}
