package dsec

import (
	"fmt"
	"sort"

	"github.com/holiman/uint256"

	"levfinance/crypto"
	nativecommon "levfinance/native/common"
)

// EpochDsec is the dsec accumulated in a single epoch.
type EpochDsec struct {
	Epoch uint64
	Dsec  *uint256.Int
}

// StakerState is the persisted checkpoint of one staker.
type StakerState struct {
	Address crypto.Address
	Amount  *uint256.Int
	Last    uint64
	Dsec    []EpochDsec
}

// State captures the mutable part of the distributor. The schedule itself is
// rebuilt from configuration.
type State struct {
	Last        uint64
	TotalStaked *uint256.Int
	TotalDsec   []*uint256.Int
	Stakers     []StakerState
}

// Snapshot exports the distributor state ordered by staker address.
func (d *Distributor) Snapshot() State {
	totals := make([]*uint256.Int, len(d.totalDsec))
	for i, value := range d.totalDsec {
		totals[i] = nativecommon.Clone(value)
	}
	stakers := make([]StakerState, 0, len(d.stakers))
	for addr, rec := range d.stakers {
		entry := StakerState{Address: addr, Amount: nativecommon.Clone(rec.amount), Last: rec.last}
		for index, value := range rec.dsec {
			entry.Dsec = append(entry.Dsec, EpochDsec{Epoch: index, Dsec: nativecommon.Clone(value)})
		}
		sort.Slice(entry.Dsec, func(i, j int) bool { return entry.Dsec[i].Epoch < entry.Dsec[j].Epoch })
		stakers = append(stakers, entry)
	}
	sort.Slice(stakers, func(i, j int) bool { return stakers[i].Address.Less(stakers[j].Address) })
	return State{
		Last:        d.last,
		TotalStaked: nativecommon.Clone(d.totalStaked),
		TotalDsec:   totals,
		Stakers:     stakers,
	}
}

// Restore loads a snapshot taken from a distributor with the same schedule.
func (d *Distributor) Restore(state State) error {
	if len(state.TotalDsec) != len(d.epochs) {
		return fmt.Errorf("%w: dsec: snapshot has %d epochs, schedule has %d", nativecommon.ErrState, len(state.TotalDsec), len(d.epochs))
	}
	staked := new(uint256.Int)
	stakers := make(map[crypto.Address]*checkpoint, len(state.Stakers))
	for _, entry := range state.Stakers {
		if entry.Last > state.Last {
			return fmt.Errorf("%w: dsec: staker checkpoint after distributor checkpoint", nativecommon.ErrState)
		}
		rec := &checkpoint{amount: nativecommon.Clone(entry.Amount), last: entry.Last, dsec: make(map[uint64]*uint256.Int)}
		for _, item := range entry.Dsec {
			if item.Epoch >= uint64(len(d.epochs)) {
				return fmt.Errorf("%w %d", errUnknownEpoch, item.Epoch)
			}
			rec.dsec[item.Epoch] = nativecommon.Clone(item.Dsec)
		}
		var err error
		if staked, err = nativecommon.Add(staked, rec.amount); err != nil {
			return fmt.Errorf("dsec: restore: %w", err)
		}
		stakers[entry.Address] = rec
	}
	if !staked.Eq(nativecommon.Clone(state.TotalStaked)) {
		return fmt.Errorf("%w: dsec: restore total stake mismatch", nativecommon.ErrState)
	}
	totals := make([]*uint256.Int, len(state.TotalDsec))
	for i, value := range state.TotalDsec {
		totals[i] = nativecommon.Clone(value)
	}
	d.last = state.Last
	d.totalStaked = staked
	d.totalDsec = totals
	d.stakers = stakers
	return nil
}
