package farming

import (
	"fmt"

	"github.com/holiman/uint256"

	nativecommon "levfinance/native/common"
)

// CurvePoint anchors the borrow rate at a utilisation level. Both values are
// whole percentages.
type CurvePoint struct {
	Utilisation uint64
	RatePercent uint64
}

// InterestCurve is a piecewise linear borrow rate over utilisation with two
// kinks: (0, base), (u1, r1), (u2, r2), (100, max).
type InterestCurve struct {
	Base   uint64
	Kink1  CurvePoint
	Kink2  CurvePoint
	MaxAPR uint64
}

// DefaultInterestCurve keeps borrowing free while utilisation is low and turns
// steep once the pool is nearly exhausted.
func DefaultInterestCurve() InterestCurve {
	return InterestCurve{
		Base:   0,
		Kink1:  CurvePoint{Utilisation: 50, RatePercent: 10},
		Kink2:  CurvePoint{Utilisation: 95, RatePercent: 25},
		MaxAPR: 100,
	}
}

// Validate enforces 0 < u1 < u2 < 100 and non decreasing rates.
func (c InterestCurve) Validate() error {
	if c.Kink1.Utilisation == 0 || c.Kink1.Utilisation >= c.Kink2.Utilisation || c.Kink2.Utilisation >= 100 {
		return fmt.Errorf("%w: farming: curve kinks must satisfy 0 < u1 < u2 < 100, got %d and %d",
			nativecommon.ErrValidation, c.Kink1.Utilisation, c.Kink2.Utilisation)
	}
	if c.Base > c.Kink1.RatePercent || c.Kink1.RatePercent > c.Kink2.RatePercent || c.Kink2.RatePercent > c.MaxAPR {
		return fmt.Errorf("%w: farming: curve rates must be non-decreasing", nativecommon.ErrValidation)
	}
	return nil
}

func (c InterestCurve) points() [4]CurvePoint {
	return [4]CurvePoint{
		{Utilisation: 0, RatePercent: c.Base},
		c.Kink1,
		c.Kink2,
		{Utilisation: 100, RatePercent: c.MaxAPR},
	}
}

// Rate returns the annual borrow rate in ray for a utilisation expressed in
// ray. Utilisation above one is evaluated at the cap point.
func (c InterestCurve) Rate(utilisation *uint256.Int) *uint256.Int {
	u := nativecommon.Min(nativecommon.Clone(utilisation), ray)
	pts := c.points()
	for i := 1; i < len(pts); i++ {
		hi := percentToRay(pts[i].Utilisation)
		if u.Gt(hi) {
			continue
		}
		lo := percentToRay(pts[i-1].Utilisation)
		r0 := percentToRay(pts[i-1].RatePercent)
		r1 := percentToRay(pts[i].RatePercent)
		if r1.Eq(r0) || hi.Eq(lo) {
			return r0
		}
		span := new(uint256.Int).Sub(r1, r0)
		offset := new(uint256.Int).Sub(u, lo)
		width := new(uint256.Int).Sub(hi, lo)
		step, err := nativecommon.MulDiv(span, offset, width)
		if err != nil {
			return r0
		}
		return step.Add(step, r0)
	}
	return percentToRay(c.MaxAPR)
}

func percentToRay(pct uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(pct), rayPerPercent)
}
