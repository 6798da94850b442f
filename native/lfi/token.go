package lfi

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/holiman/uint256"

	"levfinance/core/events"
	"levfinance/crypto"
	nativecommon "levfinance/native/common"
)

const moduleName = "lfi"

var (
	errInvalidAmount       = fmt.Errorf("%w: lfi: amount must be positive", nativecommon.ErrValidation)
	errZeroRecipient       = fmt.Errorf("%w: lfi: recipient is the zero address", nativecommon.ErrValidation)
	errZeroSender          = fmt.Errorf("%w: lfi: sender is the zero address", nativecommon.ErrValidation)
	errZeroAccount         = fmt.Errorf("%w: lfi: account is the zero address", nativecommon.ErrValidation)
	errInsufficientBalance = fmt.Errorf("%w: lfi: transfer amount exceeds balance", nativecommon.ErrValidation)
	errCapExceeded         = fmt.Errorf("%w: lfi: cap exceeded", nativecommon.ErrCapacity)
	errAlreadyExcluded     = fmt.Errorf("%w: lfi: account already excluded", nativecommon.ErrState)
	errNotExcluded         = fmt.Errorf("%w: lfi: account not excluded", nativecommon.ErrState)
	errNoReflectionHolder  = fmt.Errorf("%w: lfi: fee has no included holder to reflect onto", nativecommon.ErrState)
)

var (
	// reflectionScale is the raw units issued per token while no included
	// holder exists.
	reflectionScale = nativecommon.Ether(1)
	// FactorUnit is the fixed point unit of ReflectionFactor.
	FactorUnit = nativecommon.Ether(1)
)

// Token is the capped governance token. Included holders keep a raw balance
// whose effective value is raw * included / reflected, where included is the
// supply held outside excluded accounts and reflected is the sum of raw
// balances. Fees shrink the reflected total while the included supply stays
// constant, which raises every included balance pro rata.
type Token struct {
	mu            sync.RWMutex
	name          string
	symbol        string
	cap           *uint256.Int
	feePercentage uint64
	totalSupply   *uint256.Int
	excludedTotal *uint256.Int
	reflected     *uint256.Int
	raw           map[crypto.Address]*uint256.Int
	owned         map[crypto.Address]*uint256.Int
	excluded      map[crypto.Address]struct{}
	pauses        nativecommon.PauseView
	emitter       events.Emitter
}

// NewToken validates cfg, applies the genesis exclusions and pre-mints the
// team allocation.
func NewToken(cfg Config) (*Token, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	t := &Token{
		name:          strings.TrimSpace(cfg.Name),
		symbol:        strings.TrimSpace(cfg.Symbol),
		cap:           nativecommon.Clone(cfg.Cap),
		feePercentage: cfg.FeePercentage,
		totalSupply:   new(uint256.Int),
		excludedTotal: new(uint256.Int),
		reflected:     new(uint256.Int),
		raw:           make(map[crypto.Address]*uint256.Int),
		owned:         make(map[crypto.Address]*uint256.Int),
		excluded:      make(map[crypto.Address]struct{}),
		emitter:       events.NoopEmitter{},
	}
	for _, addr := range cfg.Excluded {
		if _, ok := t.excluded[addr]; ok {
			continue
		}
		t.excluded[addr] = struct{}{}
	}
	if !nativecommon.IsZero(cfg.TeamPreMinted) {
		if err := t.mint(cfg.TeamAccount, cfg.TeamPreMinted); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// SetPauses wires the pause view consulted before mutations.
func (t *Token) SetPauses(p nativecommon.PauseView) {
	if t == nil {
		return
	}
	t.pauses = p
}

// SetEmitter configures the event sink. A nil emitter discards events.
func (t *Token) SetEmitter(emitter events.Emitter) {
	if t == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	t.emitter = emitter
}

// Name returns the token display name.
func (t *Token) Name() string { return t.name }

// Symbol returns the token ticker.
func (t *Token) Symbol() string { return t.symbol }

// Decimals returns the display precision.
func (t *Token) Decimals() uint8 { return Decimals }

// Cap returns the maximum total supply.
func (t *Token) Cap() *uint256.Int { return nativecommon.Clone(t.cap) }

// FeePercentage returns the transfer fee in whole percent.
func (t *Token) FeePercentage() uint64 { return t.feePercentage }

// TotalSupply returns the amount minted so far.
func (t *Token) TotalSupply() *uint256.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return nativecommon.Clone(t.totalSupply)
}

// ExcludedSupply returns the sum of balances held by excluded accounts.
func (t *Token) ExcludedSupply() *uint256.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return nativecommon.Clone(t.excludedTotal)
}

// BalanceOf returns the effective balance of addr.
func (t *Token) BalanceOf(addr crypto.Address) *uint256.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.balanceOf(addr)
}

// IsExcluded reports whether addr is exempt from reflection.
func (t *Token) IsExcluded(addr crypto.Address) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.excluded[addr]
	return ok
}

// ExcludedAccounts returns the excluded accounts ordered by address.
func (t *Token) ExcludedAccounts() []crypto.Address {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]crypto.Address, 0, len(t.excluded))
	for addr := range t.excluded {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// ReflectionFactor returns the effective value of one raw unit relative to the
// genesis rate, scaled by FactorUnit. It starts at FactorUnit and only grows as
// fees are reflected.
func (t *Token) ReflectionFactor() *uint256.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.reflected.IsZero() {
		return nativecommon.Clone(FactorUnit)
	}
	scale := new(uint256.Int).Mul(FactorUnit, reflectionScale)
	factor, err := nativecommon.MulDiv(t.includedSupply(), scale, t.reflected)
	if err != nil {
		return nativecommon.Clone(FactorUnit)
	}
	return factor
}

// Mint creates amount new tokens for the recipient. The resulting supply may
// not exceed the cap.
func (t *Token) Mint(to crypto.Address, amount *uint256.Int) error {
	if err := nativecommon.Guard(t.pauses, moduleName); err != nil {
		return err
	}
	t.mu.Lock()
	err := t.mint(to, amount)
	t.mu.Unlock()
	if err != nil {
		return err
	}
	t.emit(newMintEvent(to, amount))
	return nil
}

// Transfer moves amount out of the sender's effective balance. Unless both
// parties are excluded a fee of FeePercentage is withheld from the recipient
// and reflected onto every included holder.
func (t *Token) Transfer(from, to crypto.Address, amount *uint256.Int) error {
	if err := nativecommon.Guard(t.pauses, moduleName); err != nil {
		return err
	}
	t.mu.Lock()
	fee, err := t.transfer(from, to, amount)
	t.mu.Unlock()
	if err != nil {
		return err
	}
	t.emit(newTransferEvent(from, to, amount, fee))
	return nil
}

// SetExcluded moves addr in or out of the reflection set. The account keeps
// its current effective balance across the switch.
func (t *Token) SetExcluded(addr crypto.Address, excluded bool) error {
	if err := nativecommon.Guard(t.pauses, moduleName); err != nil {
		return err
	}
	if addr.IsZero() {
		return errZeroAccount
	}
	t.mu.Lock()
	var err error
	if excluded {
		err = t.exclude(addr)
	} else {
		err = t.include(addr)
	}
	t.mu.Unlock()
	if err != nil {
		return err
	}
	t.emit(newExclusionEvent(addr, excluded))
	return nil
}

func (t *Token) includedSupply() *uint256.Int {
	return new(uint256.Int).Sub(t.totalSupply, t.excludedTotal)
}

func (t *Token) balanceOf(addr crypto.Address) *uint256.Int {
	if _, ok := t.excluded[addr]; ok {
		return nativecommon.Clone(t.owned[addr])
	}
	raw := t.raw[addr]
	if nativecommon.IsZero(raw) {
		return new(uint256.Int)
	}
	balance, err := nativecommon.MulDiv(raw, t.includedSupply(), t.reflected)
	if err != nil {
		return new(uint256.Int)
	}
	return balance
}

// toRaw converts an effective amount to raw units at the supplied rate.
func toRaw(amount, included, reflected *uint256.Int, roundUp bool) (*uint256.Int, error) {
	if reflected.IsZero() || included.IsZero() {
		return nativecommon.Mul(amount, reflectionScale)
	}
	if roundUp {
		return nativecommon.MulDivUp(amount, reflected, included)
	}
	return nativecommon.MulDiv(amount, reflected, included)
}

func (t *Token) mint(to crypto.Address, amount *uint256.Int) error {
	if nativecommon.IsZero(amount) {
		return errInvalidAmount
	}
	if to.IsZero() {
		return errZeroRecipient
	}
	supply, err := nativecommon.Add(t.totalSupply, amount)
	if err != nil {
		return fmt.Errorf("lfi: mint: %w", err)
	}
	if supply.Gt(t.cap) {
		return fmt.Errorf("%w: supply %s would exceed %s", errCapExceeded, supply, t.cap)
	}
	if _, ok := t.excluded[to]; ok {
		owned, err := nativecommon.Add(nativecommon.Clone(t.owned[to]), amount)
		if err != nil {
			return fmt.Errorf("lfi: mint: %w", err)
		}
		excludedTotal, err := nativecommon.Add(t.excludedTotal, amount)
		if err != nil {
			return fmt.Errorf("lfi: mint: %w", err)
		}
		t.owned[to] = owned
		t.excludedTotal = excludedTotal
		t.totalSupply = supply
		return nil
	}
	// Rounding up keeps the minted balance exact; the remainder only moves
	// sub-unit dust between included holders.
	credit, err := toRaw(amount, t.includedSupply(), t.reflected, true)
	if err != nil {
		return fmt.Errorf("lfi: mint: %w", err)
	}
	reflected, err := nativecommon.Add(t.reflected, credit)
	if err != nil {
		return fmt.Errorf("lfi: mint: %w", err)
	}
	raw, err := nativecommon.Add(nativecommon.Clone(t.raw[to]), credit)
	if err != nil {
		return fmt.Errorf("lfi: mint: %w", err)
	}
	t.raw[to] = raw
	t.reflected = reflected
	t.totalSupply = supply
	return nil
}

func (t *Token) transfer(from, to crypto.Address, amount *uint256.Int) (*uint256.Int, error) {
	if nativecommon.IsZero(amount) {
		return nil, errInvalidAmount
	}
	if from.IsZero() {
		return nil, errZeroSender
	}
	if to.IsZero() {
		return nil, errZeroRecipient
	}
	if t.balanceOf(from).Lt(amount) {
		return nil, errInsufficientBalance
	}
	_, fromExcluded := t.excluded[from]
	_, toExcluded := t.excluded[to]

	fee := new(uint256.Int)
	if !(fromExcluded && toExcluded) {
		var err error
		if fee, err = nativecommon.Percent(amount, t.feePercentage); err != nil {
			return nil, fmt.Errorf("lfi: transfer fee: %w", err)
		}
	}
	received := new(uint256.Int).Sub(amount, fee)

	// Both legs are priced at the pre-transfer rate. Working on copies keeps
	// the ledger untouched when a later step fails.
	included := t.includedSupply()
	reflected := nativecommon.Clone(t.reflected)
	excludedTotal := nativecommon.Clone(t.excludedTotal)
	raw := map[crypto.Address]*uint256.Int{from: nativecommon.Clone(t.raw[from])}
	owned := map[crypto.Address]*uint256.Int{from: nativecommon.Clone(t.owned[from])}
	if to != from {
		raw[to] = nativecommon.Clone(t.raw[to])
		owned[to] = nativecommon.Clone(t.owned[to])
	}

	if fromExcluded {
		owned[from].Sub(owned[from], amount)
		excludedTotal.Sub(excludedTotal, amount)
	} else {
		debit, err := toRaw(amount, included, t.reflected, true)
		if err != nil {
			return nil, fmt.Errorf("lfi: transfer debit: %w", err)
		}
		if debit.Gt(raw[from]) {
			debit = nativecommon.Clone(raw[from])
		}
		raw[from].Sub(raw[from], debit)
		reflected.Sub(reflected, debit)
	}

	if toExcluded {
		next, err := nativecommon.Add(owned[to], received)
		if err != nil {
			return nil, fmt.Errorf("lfi: transfer credit: %w", err)
		}
		owned[to] = next
		if excludedTotal, err = nativecommon.Add(excludedTotal, received); err != nil {
			return nil, fmt.Errorf("lfi: transfer credit: %w", err)
		}
	} else {
		credit, err := toRaw(received, included, t.reflected, false)
		if err != nil {
			return nil, fmt.Errorf("lfi: transfer credit: %w", err)
		}
		if raw[to], err = nativecommon.Add(raw[to], credit); err != nil {
			return nil, fmt.Errorf("lfi: transfer credit: %w", err)
		}
		if reflected, err = nativecommon.Add(reflected, credit); err != nil {
			return nil, fmt.Errorf("lfi: transfer credit: %w", err)
		}
	}

	if reflected.IsZero() && t.totalSupply.Gt(excludedTotal) {
		return nil, errNoReflectionHolder
	}

	for addr, value := range raw {
		if _, ok := t.excluded[addr]; ok {
			continue
		}
		setOrDelete(t.raw, addr, value)
	}
	for addr, value := range owned {
		if _, ok := t.excluded[addr]; !ok {
			continue
		}
		setOrDelete(t.owned, addr, value)
	}
	t.reflected = reflected
	t.excludedTotal = excludedTotal
	return fee, nil
}

func (t *Token) exclude(addr crypto.Address) error {
	if _, ok := t.excluded[addr]; ok {
		return errAlreadyExcluded
	}
	balance := t.balanceOf(addr)
	raw := nativecommon.Clone(t.raw[addr])
	excludedTotal, err := nativecommon.Add(t.excludedTotal, balance)
	if err != nil {
		return fmt.Errorf("lfi: exclude: %w", err)
	}
	t.reflected = new(uint256.Int).Sub(t.reflected, raw)
	t.excludedTotal = excludedTotal
	delete(t.raw, addr)
	setOrDelete(t.owned, addr, balance)
	t.excluded[addr] = struct{}{}
	return nil
}

func (t *Token) include(addr crypto.Address) error {
	if _, ok := t.excluded[addr]; !ok {
		return errNotExcluded
	}
	balance := nativecommon.Clone(t.owned[addr])
	raw, err := toRaw(balance, t.includedSupply(), t.reflected, true)
	if err != nil {
		return fmt.Errorf("lfi: include: %w", err)
	}
	reflected, err := nativecommon.Add(t.reflected, raw)
	if err != nil {
		return fmt.Errorf("lfi: include: %w", err)
	}
	t.reflected = reflected
	t.excludedTotal = new(uint256.Int).Sub(t.excludedTotal, balance)
	delete(t.owned, addr)
	delete(t.excluded, addr)
	setOrDelete(t.raw, addr, raw)
	return nil
}

func setOrDelete(m map[crypto.Address]*uint256.Int, addr crypto.Address, value *uint256.Int) {
	if nativecommon.IsZero(value) {
		delete(m, addr)
		return
	}
	m[addr] = value
}

func (t *Token) emit(evt events.Event) {
	if t == nil || t.emitter == nil || evt == nil {
		return
	}
	t.emitter.Emit(evt)
}
