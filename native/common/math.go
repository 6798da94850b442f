package common

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

var (
	ErrOverflow       = fmt.Errorf("%w: uint256 overflow", ErrArithmetic)
	ErrUnderflow      = fmt.Errorf("%w: uint256 underflow", ErrArithmetic)
	ErrDivisionByZero = fmt.Errorf("%w: division by zero", ErrArithmetic)
)

// PercentDenominator is the denominator used for integer percentages.
const PercentDenominator = 100

// Zero returns a freshly allocated zero value.
func Zero() *uint256.Int { return new(uint256.Int) }

// Clone copies x, treating nil as zero.
func Clone(x *uint256.Int) *uint256.Int {
	if x == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(x)
}

// IsZero reports whether x is nil or zero.
func IsZero(x *uint256.Int) bool {
	return x == nil || x.IsZero()
}

// Min returns a copy of the smaller operand.
func Min(a, b *uint256.Int) *uint256.Int {
	if a.Cmp(b) <= 0 {
		return Clone(a)
	}
	return Clone(b)
}

// Add returns a+b or ErrOverflow.
func Add(a, b *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// Sub returns a-b or ErrUnderflow.
func Sub(a, b *uint256.Int) (*uint256.Int, error) {
	z, underflow := new(uint256.Int).SubOverflow(a, b)
	if underflow {
		return nil, ErrUnderflow
	}
	return z, nil
}

// Mul returns a*b or ErrOverflow.
func Mul(a, b *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// MulDiv returns floor(a*b/d) computed with a 512 bit intermediate product.
func MulDiv(a, b, d *uint256.Int) (*uint256.Int, error) {
	if IsZero(d) {
		return nil, ErrDivisionByZero
	}
	z, overflow := new(uint256.Int).MulDivOverflow(a, b, d)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// MulDivUp returns ceil(a*b/d).
func MulDivUp(a, b, d *uint256.Int) (*uint256.Int, error) {
	z, err := MulDiv(a, b, d)
	if err != nil {
		return nil, err
	}
	if new(uint256.Int).MulMod(a, b, d).IsZero() {
		return z, nil
	}
	return Add(z, uint256.NewInt(1))
}

// Percent returns floor(x*pct/100).
func Percent(x *uint256.Int, pct uint64) (*uint256.Int, error) {
	return MulDiv(x, uint256.NewInt(pct), uint256.NewInt(PercentDenominator))
}

// ParseAmount parses a base-10 amount. Empty strings parse as zero.
func ParseAmount(value string) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return new(uint256.Int), nil
	}
	out, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid amount %q: %v", ErrValidation, value, err)
	}
	return out, nil
}

// MustAmount parses a static decimal amount and panics on failure.
func MustAmount(value string) *uint256.Int {
	out, err := ParseAmount(value)
	if err != nil {
		panic(err)
	}
	return out
}

// Ether scales a whole token count by 10^18.
func Ether(units uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(units), uint256.NewInt(1_000_000_000_000_000_000))
}
