package farming

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"

	nativecommon "levfinance/native/common"
)

// permille converts a utilisation or rate given in tenths of a percent to ray.
func permille(v uint64) *uint256.Int {
	return new(uint256.Int).Div(new(uint256.Int).Mul(uint256.NewInt(v), rayPerPercent), uint256.NewInt(10))
}

func TestInterestCurveRate(t *testing.T) {
	curve := DefaultInterestCurve()
	tests := []struct {
		name        string
		utilisation uint64
		rate        uint64
	}{
		{"idle", 0, 0},
		{"first slope", 250, 50},
		{"first kink", 500, 100},
		{"between kinks", 800, 200},
		{"second kink", 950, 250},
		{"steep region", 975, 625},
		{"exhausted", 1000, 1000},
		{"over levered", 1500, 1000},
	}
	for _, tc := range tests {
		got := curve.Rate(permille(tc.utilisation))
		if want := permille(tc.rate); !got.Eq(want) {
			t.Fatalf("%s: got %s want %s", tc.name, got, want)
		}
	}
}

func TestInterestCurveValidate(t *testing.T) {
	if err := DefaultInterestCurve().Validate(); err != nil {
		t.Fatalf("default curve invalid: %v", err)
	}
	inverted := DefaultInterestCurve()
	inverted.Kink1.Utilisation, inverted.Kink2.Utilisation = 95, 50
	if err := inverted.Validate(); !errors.Is(err, nativecommon.ErrValidation) {
		t.Fatalf("expected kink order validation error, got %v", err)
	}
	decreasing := DefaultInterestCurve()
	decreasing.Kink2.RatePercent = 5
	if err := decreasing.Validate(); !errors.Is(err, nativecommon.ErrValidation) {
		t.Fatalf("expected rate order validation error, got %v", err)
	}
	edge := DefaultInterestCurve()
	edge.Kink2.Utilisation = 100
	if err := edge.Validate(); !errors.Is(err, nativecommon.ErrValidation) {
		t.Fatalf("expected u2 < 100 validation error, got %v", err)
	}
}
