package metrics

import (
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveOperation(t *testing.T) {
	m := Protocol()
	require.Same(t, m, Protocol())

	m.ObserveOperation("lfi.transfer", "", time.Millisecond)
	m.ObserveOperation("lfi.transfer", "capacity", time.Millisecond)
	m.ObserveOperation("", "state", time.Millisecond)

	require.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("lfi.transfer", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("lfi.transfer", "error")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("lfi.transfer", "capacity")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("unknown", "state")))
}

func TestGaugesScaleFixedPoint(t *testing.T) {
	m := Protocol()
	supply, _ := uint256.FromDecimal("12500000000000000000000")
	m.SetSupply("lfi", supply)
	require.Equal(t, 12500.0, testutil.ToFloat64(m.supply.WithLabelValues("LFI")))

	index, _ := uint256.FromDecimal("1100000000000000000000000000")
	half, _ := uint256.FromDecimal("500000000000000000000000000")
	m.SetFarming(index, half, new(uint256.Int), nil)
	require.InDelta(t, 1.1, testutil.ToFloat64(m.interestIndex), 1e-12)
	require.InDelta(t, 0.5, testutil.ToFloat64(m.utilisation), 1e-12)
	require.Equal(t, 0.0, testutil.ToFloat64(m.totalBorrowed))

	m.SetEpochDsec("3", supply)
	require.Equal(t, 12500.0, testutil.ToFloat64(m.epochDsec.WithLabelValues("3")))

	var nilMetrics *ProtocolMetrics
	nilMetrics.SetTreasuryLiquidity(supply)
	nilMetrics.SetEpochDsec("0", supply)
}
