package lfi

import (
	"fmt"
	"sort"

	"github.com/holiman/uint256"

	"levfinance/crypto"
	nativecommon "levfinance/native/common"
)

// AccountBalance is the persisted form of a single holder. Included holders
// store their raw reflected balance; excluded holders store the effective one.
type AccountBalance struct {
	Address  crypto.Address
	Raw      *uint256.Int
	Excluded bool
}

// State is a point in time copy of the token ledger.
type State struct {
	TotalSupply   *uint256.Int
	ExcludedTotal *uint256.Int
	Reflected     *uint256.Int
	Accounts      []AccountBalance
}

// Snapshot exports the ledger ordered by address.
func (t *Token) Snapshot() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	accounts := make([]AccountBalance, 0, len(t.raw)+len(t.excluded))
	for addr, raw := range t.raw {
		accounts = append(accounts, AccountBalance{Address: addr, Raw: nativecommon.Clone(raw)})
	}
	for addr := range t.excluded {
		accounts = append(accounts, AccountBalance{Address: addr, Raw: nativecommon.Clone(t.owned[addr]), Excluded: true})
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Address.Less(accounts[j].Address) })
	return State{
		TotalSupply:   nativecommon.Clone(t.totalSupply),
		ExcludedTotal: nativecommon.Clone(t.excludedTotal),
		Reflected:     nativecommon.Clone(t.reflected),
		Accounts:      accounts,
	}
}

// Restore replaces the ledger with a previously exported snapshot after
// checking that the aggregates agree with the account entries.
func (t *Token) Restore(state State) error {
	supply := nativecommon.Clone(state.TotalSupply)
	if supply.Gt(t.cap) {
		return fmt.Errorf("%w: restore supply %s above %s", errCapExceeded, supply, t.cap)
	}
	raw := make(map[crypto.Address]*uint256.Int)
	owned := make(map[crypto.Address]*uint256.Int)
	excluded := make(map[crypto.Address]struct{})
	reflected := new(uint256.Int)
	excludedTotal := new(uint256.Int)
	for _, acct := range state.Accounts {
		if acct.Address.IsZero() {
			return errZeroAccount
		}
		var err error
		if acct.Excluded {
			excluded[acct.Address] = struct{}{}
			setOrDelete(owned, acct.Address, nativecommon.Clone(acct.Raw))
			excludedTotal, err = nativecommon.Add(excludedTotal, nativecommon.Clone(acct.Raw))
		} else {
			setOrDelete(raw, acct.Address, nativecommon.Clone(acct.Raw))
			reflected, err = nativecommon.Add(reflected, nativecommon.Clone(acct.Raw))
		}
		if err != nil {
			return fmt.Errorf("lfi: restore: %w", err)
		}
	}
	if !reflected.Eq(nativecommon.Clone(state.Reflected)) {
		return fmt.Errorf("%w: lfi: restore reflected total mismatch", nativecommon.ErrState)
	}
	if !excludedTotal.Eq(nativecommon.Clone(state.ExcludedTotal)) || excludedTotal.Gt(supply) {
		return fmt.Errorf("%w: lfi: restore excluded total mismatch", nativecommon.ErrState)
	}
	t.mu.Lock()
	t.totalSupply = supply
	t.excludedTotal = excludedTotal
	t.reflected = reflected
	t.raw = raw
	t.owned = owned
	t.excluded = excluded
	t.mu.Unlock()
	return nil
}
