package farming

import (
	"fmt"

	"github.com/holiman/uint256"

	"levfinance/crypto"
	nativecommon "levfinance/native/common"
)

// State is a point in time copy of the pool.
type State struct {
	Pool      PoolState
	Positions []Position
}

// Snapshot exports the pool and its positions ordered by owner.
func (p *Pool) Snapshot() State {
	return State{Pool: p.state.Clone(), Positions: p.Positions()}
}

// Restore replaces the pool accounting with a snapshot. Aggregate collateral
// must match the positions.
func (p *Pool) Restore(state State) error {
	if nativecommon.IsZero(state.Pool.InterestIndex) || state.Pool.InterestIndex.Lt(ray) {
		return fmt.Errorf("%w: farming: restore index below one", nativecommon.ErrState)
	}
	supplied := new(uint256.Int)
	positions := make(map[crypto.Address]*Position, len(state.Positions))
	for _, pos := range state.Positions {
		stored := pos.Clone()
		if stored.empty() {
			continue
		}
		var err error
		if supplied, err = nativecommon.Add(supplied, stored.Collateral); err != nil {
			return fmt.Errorf("farming: restore: %w", err)
		}
		positions[stored.Owner] = &stored
	}
	if !supplied.Eq(nativecommon.Clone(state.Pool.TotalSupplied)) {
		return fmt.Errorf("%w: farming: restore supplied total mismatch", nativecommon.ErrState)
	}
	p.state = state.Pool.Clone()
	p.positions = positions
	return nil
}
