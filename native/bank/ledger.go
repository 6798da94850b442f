package bank

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/holiman/uint256"

	"levfinance/crypto"
	nativecommon "levfinance/native/common"
)

var (
	errInsufficientBalance = fmt.Errorf("%w: bank: insufficient balance", nativecommon.ErrValidation)
	errZeroRecipient       = fmt.Errorf("%w: bank: recipient is the zero address", nativecommon.ErrValidation)
	errNilAmount           = fmt.Errorf("%w: bank: amount required", nativecommon.ErrValidation)
)

// Ledger is a plain fungible balance book. It backs the underlying asset that
// liquidity providers deposit and the 1:1 receipt tokens (Ltoken, Btoken)
// minted by the pools.
type Ledger struct {
	mu          sync.RWMutex
	name        string
	symbol      string
	totalSupply *uint256.Int
	balances    map[crypto.Address]*uint256.Int
}

// NewLedger creates an empty ledger.
func NewLedger(name, symbol string) *Ledger {
	return &Ledger{
		name:        strings.TrimSpace(name),
		symbol:      strings.ToUpper(strings.TrimSpace(symbol)),
		totalSupply: new(uint256.Int),
		balances:    make(map[crypto.Address]*uint256.Int),
	}
}

// Name returns the ledger display name.
func (l *Ledger) Name() string { return l.name }

// Symbol returns the ledger ticker.
func (l *Ledger) Symbol() string { return l.symbol }

// TotalSupply returns the amount currently in circulation.
func (l *Ledger) TotalSupply() *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return nativecommon.Clone(l.totalSupply)
}

// BalanceOf returns the balance held by addr.
func (l *Ledger) BalanceOf(addr crypto.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return nativecommon.Clone(l.balances[addr])
}

// Mint credits amount to the recipient and grows the supply.
func (l *Ledger) Mint(to crypto.Address, amount *uint256.Int) error {
	if amount == nil {
		return errNilAmount
	}
	if to.IsZero() {
		return errZeroRecipient
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	supply, err := nativecommon.Add(l.totalSupply, amount)
	if err != nil {
		return fmt.Errorf("bank: mint %s: %w", l.symbol, err)
	}
	balance, err := nativecommon.Add(nativecommon.Clone(l.balances[to]), amount)
	if err != nil {
		return fmt.Errorf("bank: mint %s: %w", l.symbol, err)
	}
	l.totalSupply = supply
	l.balances[to] = balance
	return nil
}

// Burn destroys amount from the holder's balance.
func (l *Ledger) Burn(from crypto.Address, amount *uint256.Int) error {
	if amount == nil {
		return errNilAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	balance := nativecommon.Clone(l.balances[from])
	if balance.Lt(amount) {
		return errInsufficientBalance
	}
	supply, err := nativecommon.Sub(l.totalSupply, amount)
	if err != nil {
		return fmt.Errorf("bank: burn %s: %w", l.symbol, err)
	}
	l.totalSupply = supply
	l.setBalance(from, balance.Sub(balance, amount))
	return nil
}

// Transfer moves amount from the caller to the recipient.
func (l *Ledger) Transfer(from, to crypto.Address, amount *uint256.Int) error {
	return l.move(from, to, amount)
}

// TransferFrom moves amount on behalf of from. The execution environment is
// responsible for having authorised the spender.
func (l *Ledger) TransferFrom(from, to crypto.Address, amount *uint256.Int) error {
	return l.move(from, to, amount)
}

func (l *Ledger) move(from, to crypto.Address, amount *uint256.Int) error {
	if amount == nil {
		return errNilAmount
	}
	if to.IsZero() {
		return errZeroRecipient
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fromBalance := nativecommon.Clone(l.balances[from])
	if fromBalance.Lt(amount) {
		return errInsufficientBalance
	}
	if from == to {
		return nil
	}
	toBalance, err := nativecommon.Add(nativecommon.Clone(l.balances[to]), amount)
	if err != nil {
		return fmt.Errorf("bank: transfer %s: %w", l.symbol, err)
	}
	l.setBalance(from, fromBalance.Sub(fromBalance, amount))
	l.balances[to] = toBalance
	return nil
}

func (l *Ledger) setBalance(addr crypto.Address, amount *uint256.Int) {
	if amount.IsZero() {
		delete(l.balances, addr)
		return
	}
	l.balances[addr] = amount
}

// Holding is a single balance entry.
type Holding struct {
	Address crypto.Address
	Amount  *uint256.Int
}

// Holdings returns every non-zero balance ordered by address.
func (l *Ledger) Holdings() []Holding {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Holding, 0, len(l.balances))
	for addr, amount := range l.balances {
		out = append(out, Holding{Address: addr, Amount: nativecommon.Clone(amount)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address.Less(out[j].Address) })
	return out
}

// Restore replaces the ledger contents with the supplied holdings. The total
// supply is recomputed from the balances.
func (l *Ledger) Restore(holdings []Holding) error {
	balances := make(map[crypto.Address]*uint256.Int, len(holdings))
	supply := new(uint256.Int)
	for _, h := range holdings {
		if nativecommon.IsZero(h.Amount) {
			continue
		}
		next, err := nativecommon.Add(supply, h.Amount)
		if err != nil {
			return fmt.Errorf("bank: restore %s: %w", l.symbol, err)
		}
		supply = next
		balances[h.Address] = nativecommon.Clone(h.Amount)
	}
	l.mu.Lock()
	l.balances = balances
	l.totalSupply = supply
	l.mu.Unlock()
	return nil
}
