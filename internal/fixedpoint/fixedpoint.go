// Package fixedpoint provides overflow-checked unsigned integer arithmetic,
// including a 128-bit intermediate for multiply-before-divide.
package fixedpoint

import (
	"errors"
	"math/bits"
)

// ErrOverflow is returned when a result is not representable.
// Division by zero is reported the same way.
var ErrOverflow = errors.New("arithmetic overflow")

// Add returns a+b or ErrOverflow.
func Add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return sum, nil
}

// Sub returns a-b or ErrOverflow when b > a.
func Sub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrOverflow
	}
	return diff, nil
}

// Mul returns a*b or ErrOverflow.
func Mul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, ErrOverflow
	}
	return lo, nil
}

// Div returns a/b or ErrOverflow when b is zero.
func Div(a, b uint64) (uint64, error) {
	if b == 0 {
		return 0, ErrOverflow
	}
	return a / b, nil
}

// Pow10 returns 10^n or ErrOverflow when it does not fit in 64 bits.
func Pow10(n uint32) (uint64, error) {
	result := uint64(1)
	for i := uint32(0); i < n; i++ {
		var err error
		if result, err = Mul(result, 10); err != nil {
			return 0, err
		}
	}
	return result, nil
}

// Uint128 is an unsigned 128-bit integer used for widened intermediates.
type Uint128 struct {
	Hi, Lo uint64
}

// From64 widens v.
func From64(v uint64) Uint128 {
	return Uint128{Lo: v}
}

// Mul64Wide returns the full 128-bit product a*b. It cannot overflow.
func Mul64Wide(a, b uint64) Uint128 {
	hi, lo := bits.Mul64(a, b)
	return Uint128{Hi: hi, Lo: lo}
}

// Mul64 returns u*v or ErrOverflow when the product needs more than 128 bits.
func (u Uint128) Mul64(v uint64) (Uint128, error) {
	carry, lo := bits.Mul64(u.Lo, v)
	hh, hl := bits.Mul64(u.Hi, v)
	if hh != 0 {
		return Uint128{}, ErrOverflow
	}
	hi, c := bits.Add64(hl, carry, 0)
	if c != 0 {
		return Uint128{}, ErrOverflow
	}
	return Uint128{Hi: hi, Lo: lo}, nil
}

// Div64 returns u/v (floor) or ErrOverflow when v is zero.
func (u Uint128) Div64(v uint64) (Uint128, error) {
	if v == 0 {
		return Uint128{}, ErrOverflow
	}
	qHi, r := u.Hi/v, u.Hi%v
	qLo, _ := bits.Div64(r, u.Lo, v)
	return Uint128{Hi: qHi, Lo: qLo}, nil
}

// Cmp compares u and v and returns -1, 0 or +1.
func (u Uint128) Cmp(v Uint128) int {
	switch {
	case u.Hi < v.Hi:
		return -1
	case u.Hi > v.Hi:
		return 1
	case u.Lo < v.Lo:
		return -1
	case u.Lo > v.Lo:
		return 1
	default:
		return 0
	}
}

// Cmp64 compares u with a 64-bit value.
func (u Uint128) Cmp64(v uint64) int {
	return u.Cmp(From64(v))
}

// IsUint64 reports whether u fits in 64 bits.
func (u Uint128) IsUint64() bool {
	return u.Hi == 0
}

// Uint64 narrows u or returns ErrOverflow.
func (u Uint128) Uint64() (uint64, error) {
	if u.Hi != 0 {
		return 0, ErrOverflow
	}
	return u.Lo, nil
}

// MulDiv returns floor(a*b/d) computed through a 128-bit intermediate.
// ErrOverflow is returned for d == 0 or a quotient above 64 bits.
func MulDiv(a, b, d uint64) (uint64, error) {
	q, err := Mul64Wide(a, b).Div64(d)
	if err != nil {
		return 0, err
	}
	return q.Uint64()
}
