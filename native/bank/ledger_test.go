package bank

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"levfinance/crypto"
	nativecommon "levfinance/native/common"
)

func addr(b byte) crypto.Address {
	var out crypto.Address
	out[19] = b
	return out
}

func TestLedgerMintTransferBurn(t *testing.T) {
	ledger := NewLedger("Underlying", "dai")
	if ledger.Symbol() != "DAI" {
		t.Fatalf("symbol should be normalised, got %s", ledger.Symbol())
	}
	if err := ledger.Mint(addr(1), uint256.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Transfer(addr(1), addr(2), uint256.NewInt(40)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if err := ledger.TransferFrom(addr(2), addr(3), uint256.NewInt(10)); err != nil {
		t.Fatalf("transferFrom: %v", err)
	}
	if err := ledger.Burn(addr(1), uint256.NewInt(60)); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if got := ledger.BalanceOf(addr(1)); !got.IsZero() {
		t.Fatalf("expected empty balance, got %s", got)
	}
	if got := ledger.BalanceOf(addr(2)); got.Uint64() != 30 {
		t.Fatalf("unexpected balance: %s", got)
	}
	if got := ledger.TotalSupply(); got.Uint64() != 40 {
		t.Fatalf("unexpected supply: %s", got)
	}
	if holdings := ledger.Holdings(); len(holdings) != 2 {
		t.Fatalf("expected 2 holdings, got %d", len(holdings))
	}
}

func TestLedgerRejectsOverdraftWithoutMutation(t *testing.T) {
	ledger := NewLedger("Underlying", "DAI")
	if err := ledger.Mint(addr(1), uint256.NewInt(5)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	err := ledger.Transfer(addr(1), addr(2), uint256.NewInt(6))
	if !errors.Is(err, nativecommon.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if ledger.BalanceOf(addr(1)).Uint64() != 5 || !ledger.BalanceOf(addr(2)).IsZero() {
		t.Fatalf("balances changed after failed transfer")
	}
	if err := ledger.Mint(crypto.ZeroAddress, uint256.NewInt(1)); !errors.Is(err, nativecommon.ErrValidation) {
		t.Fatalf("expected zero recipient rejection, got %v", err)
	}
	max := new(uint256.Int).SetAllOne()
	if err := ledger.Mint(addr(1), max); !errors.Is(err, nativecommon.ErrArithmetic) {
		t.Fatalf("expected overflow, got %v", err)
	}
}

func TestLedgerRestore(t *testing.T) {
	ledger := NewLedger("Receipt", "LT")
	err := ledger.Restore([]Holding{
		{Address: addr(1), Amount: uint256.NewInt(7)},
		{Address: addr(2), Amount: uint256.NewInt(0)},
		{Address: addr(3), Amount: uint256.NewInt(3)},
	})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if ledger.TotalSupply().Uint64() != 10 {
		t.Fatalf("unexpected supply after restore: %s", ledger.TotalSupply())
	}
	if len(ledger.Holdings()) != 2 {
		t.Fatalf("zero holdings must be skipped")
	}
}
