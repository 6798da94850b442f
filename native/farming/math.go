package farming

import (
	"github.com/holiman/uint256"

	nativecommon "levfinance/native/common"
)

const secondsPerYear = 365 * 24 * 60 * 60

var (
	ray           = nativecommon.MustAmount("1000000000000000000000000000") // 1e27 precision
	rayPerPercent = nativecommon.MustAmount("10000000000000000000000000")   // 1e25
)

// utilisation returns borrowed/supplied in ray. An empty pool reports zero.
func utilisation(borrowed, supplied *uint256.Int) *uint256.Int {
	if nativecommon.IsZero(borrowed) || nativecommon.IsZero(supplied) {
		return new(uint256.Int)
	}
	u, err := nativecommon.MulDiv(borrowed, ray, supplied)
	if err != nil {
		return nativecommon.Clone(ray)
	}
	return u
}

// owedAt values a loan at the supplied index.
func owedAt(principal, indexAtOpen, index *uint256.Int) (*uint256.Int, error) {
	if nativecommon.IsZero(principal) {
		return new(uint256.Int), nil
	}
	return nativecommon.MulDiv(principal, index, indexAtOpen)
}

// blendIndex returns the opening index that keeps the owed amount of an
// existing loan unchanged when it is topped up by amount at index.
func blendIndex(principal, indexAtOpen, amount, index *uint256.Int) (*uint256.Int, error) {
	if nativecommon.IsZero(principal) {
		return nativecommon.Clone(index), nil
	}
	total, err := nativecommon.Add(principal, amount)
	if err != nil {
		return nil, err
	}
	numerator, err := nativecommon.Mul(total, index)
	if err != nil {
		return nil, err
	}
	left, err := nativecommon.Mul(principal, index)
	if err != nil {
		return nil, err
	}
	right, err := nativecommon.Mul(amount, indexAtOpen)
	if err != nil {
		return nil, err
	}
	denominator, err := nativecommon.Add(left, right)
	if err != nil {
		return nil, err
	}
	return nativecommon.MulDiv(numerator, indexAtOpen, denominator)
}
