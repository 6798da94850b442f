package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/holiman/uint256"

	"levfinance/config"
	"levfinance/core/events"
	"levfinance/crypto"
	nativecommon "levfinance/native/common"
)

// Operation names accepted by Apply.
const (
	OpAssetMint         = "asset.mint"
	OpAssetYield        = "asset.yield"
	OpLFITransfer       = "lfi.transfer"
	OpLFIExclude        = "lfi.exclude"
	OpLFIInclude        = "lfi.include"
	OpDsecCheckpoint    = "dsec.checkpoint"
	OpTreasuryDeposit   = "treasury.deposit"
	OpTreasuryWithdraw  = "treasury.withdraw"
	OpTreasuryClaim     = "treasury.claim"
	OpTreasuryTeamClaim = "treasury.team_claim"
	OpFarmingSupply     = "farming.supply"
	OpFarmingBorrow     = "farming.borrow"
	OpFarmingRepay      = "farming.repay"
	OpFarmingWithdraw   = "farming.withdraw"
	OpFarmingAccrue     = "farming.accrue"
)

var (
	errUnknownOp    = fmt.Errorf("%w: protocol: unknown operation", nativecommon.ErrValidation)
	errTimeReversed = fmt.Errorf("%w: protocol: timestamp precedes last operation", nativecommon.ErrState)
)

// Op is one externally submitted operation. Amounts are whole-token decimal
// strings. Accounts are bech32, 0x hex or a plain name resolved through
// ResolveAccount.
type Op struct {
	Op      string `json:"op"`
	Caller  string `json:"caller"`
	Account string `json:"account,omitempty"`
	Amount  string `json:"amount,omitempty"`
	Epoch   uint64 `json:"epoch,omitempty"`
	Ts      uint64 `json:"ts"`
}

// Result reports what a committed operation returned and emitted.
type Result struct {
	Op     string
	Amount *uint256.Int
	Events []events.Event
}

// ReadScript decodes a JSON array of operations from path, or from stdin when
// path is "-".
func ReadScript(path string) ([]Op, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var ops []Op
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ops); err != nil {
		return nil, fmt.Errorf("protocol: decode script: %w", err)
	}
	return ops, nil
}

// ResolveAccount parses a bech32 or hex address. Any other non-empty string is
// treated as a name and mapped to its deterministic address, so scripts can
// refer to "alice" or "team".
func ResolveAccount(value string) (crypto.Address, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return crypto.Address{}, fmt.Errorf("%w: protocol: account required", nativecommon.ErrValidation)
	}
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "0x") || strings.HasPrefix(lower, string(crypto.LevfPrefix)+"1") {
		addr, err := crypto.DecodeAddress(trimmed)
		if err != nil {
			return crypto.Address{}, fmt.Errorf("%w: %v", nativecommon.ErrValidation, err)
		}
		return addr, nil
	}
	return crypto.ModuleAddress(trimmed), nil
}

// Apply executes op atomically. On error every engine and ledger is restored
// to its state before the call and no events are forwarded.
func (p *Protocol) Apply(op Op) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	started := time.Now()
	result, err := p.apply(op)
	kind := nativecommon.Kind(err)
	p.metrics.ObserveOperation(op.Op, kind, time.Since(started))
	if err != nil {
		p.logger.Warn("operation rejected",
			"op", op.Op,
			"caller", op.Caller,
			"ts", op.Ts,
			"kind", kind,
			"error", err)
		return Result{Op: op.Op}, err
	}
	p.logger.Info("operation applied",
		"op", op.Op,
		"caller", op.Caller,
		"ts", op.Ts,
		"events", len(result.Events))
	p.observeState()
	return result, nil
}

func (p *Protocol) apply(op Op) (Result, error) {
	if op.Ts < p.last {
		return Result{}, fmt.Errorf("%w: %d before %d", errTimeReversed, op.Ts, p.last)
	}
	checkpoint := p.snapshot()
	amount, err := p.dispatch(op)
	if err != nil {
		p.pending.Drain()
		if restoreErr := p.restore(checkpoint); restoreErr != nil {
			return Result{}, errors.Join(err, fmt.Errorf("protocol: rollback: %w", restoreErr))
		}
		return Result{}, err
	}
	p.last = op.Ts
	return Result{Op: op.Op, Amount: amount, Events: p.flush()}, nil
}

func (p *Protocol) dispatch(op Op) (*uint256.Int, error) {
	// Operations that act on the protocol as a whole take no caller.
	switch op.Op {
	case OpAssetYield:
		return p.applyAssetYield(op)
	case OpFarmingAccrue:
		return nil, p.farming.Accrue(op.Ts)
	case OpLFIExclude, OpLFIInclude:
		return nil, p.applyLFIExclusion(op, op.Op == OpLFIExclude)
	}
	caller, err := ResolveAccount(op.Caller)
	if err != nil {
		return nil, err
	}
	switch op.Op {
	case OpAssetMint:
		return p.applyAssetMint(caller, op)
	case OpLFITransfer:
		return p.applyLFITransfer(caller, op)
	case OpDsecCheckpoint:
		return nil, p.distributor.Checkpoint(caller, op.Ts)
	case OpTreasuryDeposit:
		return p.withAmount(op, func(amount *uint256.Int) error { return p.treasury.Deposit(caller, amount, op.Ts) })
	case OpTreasuryWithdraw:
		return p.withAmount(op, func(amount *uint256.Int) error { return p.treasury.Withdraw(caller, amount, op.Ts) })
	case OpTreasuryClaim:
		return p.treasury.Claim(caller, op.Epoch, op.Ts)
	case OpTreasuryTeamClaim:
		return p.treasury.TeamClaim(caller, op.Epoch, op.Ts)
	case OpFarmingSupply:
		return p.withAmount(op, func(amount *uint256.Int) error { return p.farming.Supply(caller, amount, op.Ts) })
	case OpFarmingBorrow:
		return p.withAmount(op, func(amount *uint256.Int) error { return p.farming.Borrow(caller, amount, op.Ts) })
	case OpFarmingRepay:
		return p.applyFarmingRepay(caller, op)
	case OpFarmingWithdraw:
		return p.applyFarmingWithdraw(caller, op)
	}
	return nil, fmt.Errorf("%w: %q", errUnknownOp, op.Op)
}

func parseAmount(op Op) (*uint256.Int, error) {
	amount, err := config.ParseTokenAmount(op.Amount)
	if err != nil {
		return nil, fmt.Errorf("%w: protocol: %s: %v", nativecommon.ErrValidation, op.Op, err)
	}
	return amount, nil
}

func (p *Protocol) withAmount(op Op, fn func(*uint256.Int) error) (*uint256.Int, error) {
	amount, err := parseAmount(op)
	if err != nil {
		return nil, err
	}
	if err := fn(amount); err != nil {
		return nil, err
	}
	return amount, nil
}

// applyAssetMint credits the caller with underlying. It stands in for the
// stablecoin arriving from outside the protocol.
func (p *Protocol) applyAssetMint(caller crypto.Address, op Op) (*uint256.Int, error) {
	return p.withAmount(op, func(amount *uint256.Int) error { return p.underlying.Mint(caller, amount) })
}

// applyAssetYield credits the vault with underlying, raising the value of
// every vault share.
func (p *Protocol) applyAssetYield(op Op) (*uint256.Int, error) {
	return p.withAmount(op, func(amount *uint256.Int) error { return p.underlying.Mint(VaultAddress, amount) })
}

func (p *Protocol) applyLFITransfer(caller crypto.Address, op Op) (*uint256.Int, error) {
	to, err := ResolveAccount(op.Account)
	if err != nil {
		return nil, err
	}
	return p.withAmount(op, func(amount *uint256.Int) error { return p.token.Transfer(caller, to, amount) })
}

func (p *Protocol) applyLFIExclusion(op Op, excluded bool) error {
	target, err := ResolveAccount(op.Account)
	if err != nil {
		return err
	}
	return p.token.SetExcluded(target, excluded)
}

func (p *Protocol) applyFarmingRepay(caller crypto.Address, op Op) (*uint256.Int, error) {
	amount, err := parseAmount(op)
	if err != nil {
		return nil, err
	}
	return p.farming.Repay(caller, amount, op.Ts)
}

func (p *Protocol) applyFarmingWithdraw(caller crypto.Address, op Op) (*uint256.Int, error) {
	amount, err := parseAmount(op)
	if err != nil {
		return nil, err
	}
	result, err := p.farming.Withdraw(caller, amount, op.Ts)
	if err != nil {
		return nil, err
	}
	return result.Payout, nil
}
