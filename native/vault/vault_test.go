package vault

import (
	"errors"
	"testing"

	"levfinance/crypto"
	"levfinance/native/bank"
	nativecommon "levfinance/native/common"
)

func TestAdapterRoundTripWithYield(t *testing.T) {
	asset := bank.NewLedger("Dai", "dai")
	pool := crypto.ModuleAddress("test/pool")
	other := crypto.ModuleAddress("test/other")
	v := NewVault(crypto.ModuleAddress("test/vault"), asset)
	adapter := NewAdapter(v, pool)

	if err := asset.Mint(pool, nativecommon.Ether(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := asset.Mint(other, nativecommon.Ether(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	shares, err := adapter.Deposit(nativecommon.Ether(100))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if !shares.Eq(nativecommon.Ether(100)) {
		t.Fatalf("first deposit should mint 1:1, got %s", shares)
	}

	// Yield lands directly on the vault account.
	if err := asset.Mint(v.Address(), nativecommon.Ether(100)); err != nil {
		t.Fatalf("yield: %v", err)
	}
	otherShares, err := v.Deposit(other, nativecommon.Ether(100))
	if err != nil {
		t.Fatalf("second deposit: %v", err)
	}
	if !otherShares.Eq(nativecommon.Ether(50)) {
		t.Fatalf("expected 50 shares after yield doubled the price, got %s", otherShares)
	}

	half := nativecommon.Ether(50)
	out, err := adapter.Withdraw(half)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if !out.Eq(nativecommon.Ether(100)) {
		t.Fatalf("expected 100 out, got %s", out)
	}
	if !adapter.Shares().Eq(half) {
		t.Fatalf("unexpected remaining shares %s", adapter.Shares())
	}
	if !asset.BalanceOf(pool).Eq(nativecommon.Ether(100)) {
		t.Fatalf("unexpected pool balance %s", asset.BalanceOf(pool))
	}
}

func TestAdapterPropagatesAssetErrors(t *testing.T) {
	asset := bank.NewLedger("Dai", "dai")
	v := NewVault(crypto.ModuleAddress("test/vault"), asset)
	adapter := NewAdapter(v, crypto.ModuleAddress("test/pool"))

	if _, err := adapter.Deposit(nativecommon.Ether(1)); !errors.Is(err, nativecommon.ErrValidation) {
		t.Fatalf("expected asset balance error, got %v", err)
	}
	if !v.TotalShares().IsZero() {
		t.Fatalf("failed deposit minted shares")
	}
	if _, err := adapter.Withdraw(nativecommon.Ether(1)); !errors.Is(err, nativecommon.ErrValidation) {
		t.Fatalf("expected insufficient shares, got %v", err)
	}
}
