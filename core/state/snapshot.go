package state

import (
	"levfinance/crypto"
	"levfinance/native/bank"
	"levfinance/native/dsec"
	"levfinance/native/farming"
	"levfinance/native/lfi"
	"levfinance/native/treasury"
	"levfinance/native/vault"
)

// LedgerState is the persisted form of a plain fungible ledger.
type LedgerState struct {
	Symbol   string
	Holdings []bank.Holding
}

// Snapshot captures every component of the protocol at a point in time.
type Snapshot struct {
	Version     uint32
	RunID       string
	Timestamp   uint64
	Token       lfi.State
	Distributor dsec.State
	Treasury    treasury.State
	Farming     farming.State
	Vault       []vault.Holding
	Ledgers     []LedgerState
}

// Ledger returns the ledger snapshot with the given symbol.
func (s *Snapshot) Ledger(symbol string) (LedgerState, bool) {
	if s == nil {
		return LedgerState{}, false
	}
	for _, ledger := range s.Ledgers {
		if ledger.Symbol == symbol {
			return ledger, true
		}
	}
	return LedgerState{}, false
}

// Accounts returns every address that holds a balance in any component.
func (s *Snapshot) Accounts() []crypto.Address {
	if s == nil {
		return nil
	}
	seen := make(map[crypto.Address]struct{})
	var out []crypto.Address
	add := func(addr crypto.Address) {
		if _, ok := seen[addr]; ok || addr.IsZero() {
			return
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	for _, acct := range s.Token.Accounts {
		add(acct.Address)
	}
	for _, ledger := range s.Ledgers {
		for _, h := range ledger.Holdings {
			add(h.Address)
		}
	}
	return out
}
