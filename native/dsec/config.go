package dsec

import (
	"fmt"
	"math/bits"

	"github.com/holiman/uint256"

	nativecommon "levfinance/native/common"
)

// Config describes the fixed epoch schedule and the per-epoch allocations.
type Config struct {
	Epoch0Start           uint64
	EpochDuration         uint64
	IntervalBetweenEpochs uint64
	TotalEpochs           uint64
	LPRewardPerEpoch      *uint256.Int
	TeamRewardPerEpoch    *uint256.Int
}

// DefaultConfig returns the launch schedule: ten fortnightly epochs separated
// by a one day gap.
func DefaultConfig() Config {
	return Config{
		Epoch0Start:           1641686400,
		EpochDuration:         14 * 86400,
		IntervalBetweenEpochs: 86400,
		TotalEpochs:           10,
		LPRewardPerEpoch:      nativecommon.Ether(6000),
		TeamRewardPerEpoch:    nativecommon.Ether(1500),
	}
}

// Validate checks the schedule can be materialised without overflowing the
// timestamp range.
func (c Config) Validate() error {
	if c.EpochDuration == 0 {
		return fmt.Errorf("%w: dsec: epoch duration must be positive", nativecommon.ErrValidation)
	}
	if c.TotalEpochs == 0 {
		return fmt.Errorf("%w: dsec: at least one epoch required", nativecommon.ErrValidation)
	}
	if _, err := c.scheduleEnd(); err != nil {
		return err
	}
	return nil
}

func (c Config) period() (uint64, error) {
	period, carry := bits.Add64(c.EpochDuration, c.IntervalBetweenEpochs, 0)
	if carry != 0 {
		return 0, fmt.Errorf("%w: dsec: epoch period overflows", nativecommon.ErrValidation)
	}
	return period, nil
}

func (c Config) scheduleEnd() (uint64, error) {
	period, err := c.period()
	if err != nil {
		return 0, err
	}
	hi, offset := bits.Mul64(c.TotalEpochs-1, period)
	if hi != 0 {
		return 0, fmt.Errorf("%w: dsec: schedule overflows", nativecommon.ErrValidation)
	}
	start, carry := bits.Add64(c.Epoch0Start, offset, 0)
	if carry != 0 {
		return 0, fmt.Errorf("%w: dsec: schedule overflows", nativecommon.ErrValidation)
	}
	end, carry := bits.Add64(start, c.EpochDuration, 0)
	if carry != 0 {
		return 0, fmt.Errorf("%w: dsec: schedule overflows", nativecommon.ErrValidation)
	}
	return end, nil
}
