package farming

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"levfinance/core/events"
	"levfinance/crypto"
	"levfinance/native/bank"
	nativecommon "levfinance/native/common"
	"levfinance/native/vault"
)

const t0 = uint64(1_700_000_000)

var (
	farmer    = crypto.ModuleAddress("test/farmer")
	poolAddr  = crypto.ModuleAddress("test/pool")
	vaultAddr = crypto.ModuleAddress("test/vault")
	treasury  = crypto.ModuleAddress("test/treasury")
	insurance = crypto.ModuleAddress("test/insurance")
)

type ledgerLender struct {
	asset     *bank.Ledger
	account   crypto.Address
	principal *uint256.Int
	interest  *uint256.Int
}

func (l *ledgerLender) Loan(borrower crypto.Address, amount *uint256.Int) error {
	return l.asset.Transfer(l.account, borrower, amount)
}

func (l *ledgerLender) RepayLoan(borrower crypto.Address, principal, interest *uint256.Int) error {
	total := new(uint256.Int).Add(principal, interest)
	if err := l.asset.TransferFrom(borrower, l.account, total); err != nil {
		return err
	}
	l.principal.Add(l.principal, principal)
	l.interest.Add(l.interest, interest)
	return nil
}

var errAdapterDown = errors.New("adapter offline")

type failingAdapter struct{}

func (failingAdapter) Deposit(*uint256.Int) (*uint256.Int, error)         { return nil, errAdapterDown }
func (failingAdapter) Withdraw(*uint256.Int) (*uint256.Int, error)        { return nil, errAdapterDown }
func (failingAdapter) PreviewWithdraw(*uint256.Int) (*uint256.Int, error) { return nil, errAdapterDown }

type fixture struct {
	asset  *bank.Ledger
	btoken *bank.Ledger
	vault  *vault.Vault
	lender *ledgerLender
	pool   *Pool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	asset := bank.NewLedger("Dai", "dai")
	if err := asset.Mint(treasury, uint256.NewInt(1_000_000)); err != nil {
		t.Fatalf("fund treasury: %v", err)
	}
	if err := asset.Mint(farmer, uint256.NewInt(10_000)); err != nil {
		t.Fatalf("fund farmer: %v", err)
	}
	v := vault.NewVault(vaultAddr, asset)
	lender := &ledgerLender{asset: asset, account: treasury, principal: new(uint256.Int), interest: new(uint256.Int)}
	btoken := bank.NewLedger("Levf Dai Btoken", "bdai")
	pool, err := NewPool(poolAddr, DefaultConfig(insurance, treasury), asset, btoken, lender, vault.NewAdapter(v, poolAddr))
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	return &fixture{asset: asset, btoken: btoken, vault: v, lender: lender, pool: pool}
}

func (f *fixture) supply(t *testing.T, amount uint64, now uint64) {
	t.Helper()
	if err := f.pool.Supply(farmer, uint256.NewInt(amount), now); err != nil {
		t.Fatalf("supply %d: %v", amount, err)
	}
}

func (f *fixture) borrow(t *testing.T, amount uint64, now uint64) {
	t.Helper()
	if err := f.pool.Borrow(farmer, uint256.NewInt(amount), now); err != nil {
		t.Fatalf("borrow %d: %v", amount, err)
	}
}

func TestBorrowRespectsLeverageBound(t *testing.T) {
	f := newFixture(t)
	f.supply(t, 1000, t0)

	err := f.pool.Borrow(farmer, uint256.NewInt(20001), t0)
	if !errors.Is(err, nativecommon.ErrCapacity) {
		t.Fatalf("expected capacity error, got %v", err)
	}
	if !f.pool.State().TotalBorrowed.IsZero() {
		t.Fatalf("rejected borrow changed pool state")
	}
	f.borrow(t, 20000, t0)
	if got := f.pool.OwedOf(farmer); got.Uint64() != 20000 {
		t.Fatalf("unexpected owed %s", got)
	}
	if got := f.vault.TotalAssets(); got.Uint64() != 21000 {
		t.Fatalf("expected collateral and loan in the vault, got %s", got)
	}
	if got := f.btoken.BalanceOf(farmer); got.Uint64() != 1000 {
		t.Fatalf("expected btoken for posted collateral, got %s", got)
	}
}

func TestBorrowWithoutCollateralFails(t *testing.T) {
	f := newFixture(t)
	f.supply(t, 1000, t0)
	other := crypto.ModuleAddress("test/other")
	if err := f.pool.Borrow(other, uint256.NewInt(1), t0); !errors.Is(err, nativecommon.ErrCapacity) {
		t.Fatalf("expected capacity error for uncollateralised borrow, got %v", err)
	}
}

func TestInterestIndexIsStrictlyIncreasing(t *testing.T) {
	f := newFixture(t)
	f.supply(t, 1000, t0)
	f.borrow(t, 500, t0)

	previous := f.pool.State().InterestIndex
	for _, dt := range []uint64{1, 1, 10, 3600, 86400} {
		now := f.pool.State().LastAccrual + dt
		if err := f.pool.Accrue(now); err != nil {
			t.Fatalf("accrue: %v", err)
		}
		index := f.pool.State().InterestIndex
		if !index.Gt(previous) {
			t.Fatalf("index did not grow after %ds: %s -> %s", dt, previous, index)
		}
		previous = index
	}
	if err := f.pool.Accrue(f.pool.State().LastAccrual); err != nil {
		t.Fatalf("accrue with dt=0: %v", err)
	}
	if !f.pool.State().InterestIndex.Eq(previous) {
		t.Fatalf("index moved without time passing")
	}
	if err := f.pool.Accrue(t0); !errors.Is(err, nativecommon.ErrState) {
		t.Fatalf("expected state error for time reversal, got %v", err)
	}
}

func TestAccrueOneYearAtTenPercent(t *testing.T) {
	f := newFixture(t)
	recorder := &events.Recorder{}
	f.pool.SetEmitter(recorder)
	f.supply(t, 1000, t0)
	f.borrow(t, 500, t0)

	if err := f.pool.Accrue(t0 + secondsPerYear); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	want := new(uint256.Int).Add(ray, new(uint256.Int).Div(ray, uint256.NewInt(10)))
	if got := f.pool.State().InterestIndex; !got.Eq(want) {
		t.Fatalf("index: got %s want %s", got, want)
	}
	if got := f.pool.OwedOf(farmer); got.Uint64() != 550 {
		t.Fatalf("owed: got %s want 550", got)
	}
	if got := f.pool.State().TotalBorrowed; got.Uint64() != 550 {
		t.Fatalf("total borrowed: got %s want 550", got)
	}
	types := recorder.Types()
	if types[len(types)-1] != EventTypeAccrue {
		t.Fatalf("expected accrue event, got %v", types)
	}
}

func TestRepayInterestFirstThenPrincipal(t *testing.T) {
	f := newFixture(t)
	f.supply(t, 1000, t0)
	f.borrow(t, 500, t0)
	later := t0 + secondsPerYear

	if _, err := f.pool.Repay(farmer, uint256.NewInt(551), later); !errors.Is(err, nativecommon.ErrValidation) {
		t.Fatalf("expected over-repayment validation error, got %v", err)
	}
	if f.lender.interest.Uint64() != 0 {
		t.Fatalf("rejected repayment reached the lender")
	}

	remaining, err := f.pool.Repay(farmer, uint256.NewInt(30), later)
	if err != nil {
		t.Fatalf("partial repay: %v", err)
	}
	if remaining.Uint64() != 520 || f.pool.OwedOf(farmer).Uint64() != 520 {
		t.Fatalf("unexpected remaining %s owed %s", remaining, f.pool.OwedOf(farmer))
	}
	if f.lender.interest.Uint64() != 30 || f.lender.principal.Uint64() != 0 {
		t.Fatalf("expected interest to be paid first, got principal=%s interest=%s", f.lender.principal, f.lender.interest)
	}

	remaining, err = f.pool.Repay(farmer, uint256.NewInt(520), later)
	if err != nil {
		t.Fatalf("full repay: %v", err)
	}
	if !remaining.IsZero() {
		t.Fatalf("expected loan to be fully repaid, %s left", remaining)
	}
	pos, ok := f.pool.Position(farmer)
	if !ok || !pos.Loan.Principal.IsZero() {
		t.Fatalf("expected collateral only position, got %+v", pos)
	}
	if f.lender.interest.Uint64() != 50 || f.lender.principal.Uint64() != 500 {
		t.Fatalf("unexpected lender totals principal=%s interest=%s", f.lender.principal, f.lender.interest)
	}
	if !f.pool.State().TotalBorrowed.IsZero() {
		t.Fatalf("total borrowed not cleared: %s", f.pool.State().TotalBorrowed)
	}
}

func TestTopUpKeepsOwedAmount(t *testing.T) {
	f := newFixture(t)
	f.supply(t, 1000, t0)
	f.borrow(t, 500, t0)
	later := t0 + secondsPerYear
	f.borrow(t, 100, later)

	if got := f.pool.OwedOf(farmer); got.Uint64() != 650 {
		t.Fatalf("owed after top-up: got %s want 650", got)
	}
	pos, _ := f.pool.Position(farmer)
	if pos.Loan.Principal.Uint64() != 600 {
		t.Fatalf("principal after top-up: %s", pos.Loan.Principal)
	}
	if !pos.Loan.IndexAtOpen.Gt(ray) || !pos.Loan.IndexAtOpen.Lt(f.pool.State().InterestIndex) {
		t.Fatalf("blended index %s outside (%s, %s)", pos.Loan.IndexAtOpen, ray, f.pool.State().InterestIndex)
	}
}

func TestWithdrawChargesPenaltyAndTax(t *testing.T) {
	f := newFixture(t)
	f.supply(t, 100, t0)
	f.borrow(t, 1900, t0)
	// External yield raises the vault from 2000 to 2400.
	if err := f.asset.Mint(vaultAddr, uint256.NewInt(400)); err != nil {
		t.Fatalf("yield: %v", err)
	}
	farmerBefore := f.asset.BalanceOf(farmer).Uint64()
	treasuryBefore := f.asset.BalanceOf(treasury).Uint64()

	result, err := f.pool.Withdraw(farmer, uint256.NewInt(100), t0)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if result.Proceeds.Uint64() != 2400 || result.DebtPaid.Uint64() != 1900 {
		t.Fatalf("unexpected settlement %+v", result)
	}
	if result.Penalty.Uint64() != 50 || result.Tax.Uint64() != 40 || result.Payout.Uint64() != 410 {
		t.Fatalf("unexpected fees penalty=%s tax=%s payout=%s", result.Penalty, result.Tax, result.Payout)
	}
	if got := f.asset.BalanceOf(insurance).Uint64(); got != 70 {
		t.Fatalf("insurance fund: got %d want 70", got)
	}
	if got := f.asset.BalanceOf(treasury).Uint64() - treasuryBefore; got != 1920 {
		t.Fatalf("treasury inflow: got %d want 1920", got)
	}
	if got := f.asset.BalanceOf(farmer).Uint64() - farmerBefore; got != 410 {
		t.Fatalf("farmer payout: got %d want 410", got)
	}
	if _, ok := f.pool.Position(farmer); ok {
		t.Fatalf("fully withdrawn position still open")
	}
	state := f.pool.State()
	if !state.TotalSupplied.IsZero() || !state.TotalBorrowed.IsZero() {
		t.Fatalf("pool totals not cleared: %+v", state)
	}
	if !f.asset.BalanceOf(poolAddr).IsZero() {
		t.Fatalf("pool kept %s", f.asset.BalanceOf(poolAddr))
	}
	if !f.btoken.BalanceOf(farmer).IsZero() {
		t.Fatalf("btoken not burned: %s", f.btoken.BalanceOf(farmer))
	}
}

func TestWithdrawRequiresReceipt(t *testing.T) {
	f := newFixture(t)
	f.supply(t, 100, t0)
	if err := f.btoken.Transfer(farmer, treasury, uint256.NewInt(60)); err != nil {
		t.Fatalf("move btoken: %v", err)
	}
	if _, err := f.pool.Withdraw(farmer, uint256.NewInt(50), t0); err == nil {
		t.Fatalf("expected withdrawal beyond receipt balance to fail")
	}
	if pos, _ := f.pool.Position(farmer); pos.Collateral.Uint64() != 100 {
		t.Fatalf("failed withdrawal changed collateral to %s", pos.Collateral)
	}
	if got := f.vault.TotalAssets(); got.Uint64() != 100 {
		t.Fatalf("failed withdrawal redeemed vault shares, vault holds %s", got)
	}
}

func TestUnderwaterWithdrawMovesNothing(t *testing.T) {
	f := newFixture(t)
	f.supply(t, 1000, t0)
	f.borrow(t, 20000, t0)
	before, _ := f.pool.Position(farmer)

	_, err := f.pool.Withdraw(farmer, uint256.NewInt(1000), t0+secondsPerYear)
	if !errors.Is(err, nativecommon.ErrState) {
		t.Fatalf("expected underwater state error, got %v", err)
	}
	if got := f.btoken.BalanceOf(farmer); got.Uint64() != 1000 {
		t.Fatalf("rejected withdrawal burned btoken, farmer holds %s", got)
	}
	if got := f.vault.SharesOf(poolAddr); !got.Eq(before.Shares) {
		t.Fatalf("rejected withdrawal redeemed vault shares: %s -> %s", before.Shares, got)
	}
	after, ok := f.pool.Position(farmer)
	if !ok || !after.Shares.Eq(before.Shares) || !after.Collateral.Eq(before.Collateral) {
		t.Fatalf("rejected withdrawal changed position %+v -> %+v", before, after)
	}
	if !f.asset.BalanceOf(poolAddr).IsZero() {
		t.Fatalf("rejected withdrawal left %s in the pool", f.asset.BalanceOf(poolAddr))
	}
	if got := f.pool.State().LastAccrual; got != t0 {
		t.Fatalf("rejected withdrawal committed accrual to %d", got)
	}
}

func TestAccrueOverflowFailsClosed(t *testing.T) {
	f := newFixture(t)
	huge := new(uint256.Int).Lsh(uint256.NewInt(1), 250)
	if err := f.asset.Mint(farmer, huge); err != nil {
		t.Fatalf("fund farmer: %v", err)
	}
	if err := f.asset.Mint(treasury, huge); err != nil {
		t.Fatalf("fund treasury: %v", err)
	}
	if err := f.pool.Supply(farmer, huge, t0); err != nil {
		t.Fatalf("supply: %v", err)
	}
	if err := f.pool.Borrow(farmer, huge, t0); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	before := f.pool.State()

	// A century at the cap rate grows the debt past 2^256.
	err := f.pool.Accrue(t0 + 100*secondsPerYear)
	if !errors.Is(err, nativecommon.ErrArithmetic) {
		t.Fatalf("expected arithmetic error, got %v", err)
	}
	after := f.pool.State()
	if !after.InterestIndex.Eq(before.InterestIndex) || !after.TotalBorrowed.Eq(before.TotalBorrowed) || after.LastAccrual != before.LastAccrual {
		t.Fatalf("failed accrual mutated state: %+v -> %+v", before, after)
	}
}

func TestPartialWithdrawRepaysProportionalDebt(t *testing.T) {
	f := newFixture(t)
	f.supply(t, 100, t0)
	f.borrow(t, 1000, t0)

	result, err := f.pool.Withdraw(farmer, uint256.NewInt(50), t0)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if result.Proceeds.Uint64() != 550 || result.DebtPaid.Uint64() != 500 || result.Payout.Uint64() != 50 {
		t.Fatalf("unexpected result %+v", result)
	}
	if !result.Penalty.IsZero() || !result.Tax.IsZero() {
		t.Fatalf("healthy loss-free withdrawal should be free, got penalty=%s tax=%s", result.Penalty, result.Tax)
	}
	pos, ok := f.pool.Position(farmer)
	if !ok {
		t.Fatalf("position closed early")
	}
	if pos.Collateral.Uint64() != 50 || pos.Shares.Uint64() != 550 || pos.Loan.Principal.Uint64() != 500 {
		t.Fatalf("unexpected remaining position %+v", pos)
	}
	if _, err := f.pool.Withdraw(farmer, uint256.NewInt(51), t0); !errors.Is(err, nativecommon.ErrValidation) {
		t.Fatalf("expected over-withdrawal validation error, got %v", err)
	}
}

func TestAdapterFailurePropagates(t *testing.T) {
	asset := bank.NewLedger("Dai", "dai")
	if err := asset.Mint(farmer, uint256.NewInt(100)); err != nil {
		t.Fatalf("fund: %v", err)
	}
	lender := &ledgerLender{asset: asset, account: treasury, principal: new(uint256.Int), interest: new(uint256.Int)}
	btoken := bank.NewLedger("Levf Dai Btoken", "bdai")
	pool, err := NewPool(poolAddr, DefaultConfig(insurance, treasury), asset, btoken, lender, failingAdapter{})
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	err = pool.Supply(farmer, uint256.NewInt(100), t0)
	if !errors.Is(err, errAdapterDown) {
		t.Fatalf("expected adapter error, got %v", err)
	}
	if _, ok := pool.Position(farmer); ok {
		t.Fatalf("failed supply opened a position")
	}
	if !pool.State().TotalSupplied.IsZero() {
		t.Fatalf("failed supply changed totals")
	}
	if !btoken.BalanceOf(farmer).IsZero() {
		t.Fatalf("failed supply minted a receipt")
	}
}

func TestPausedPoolRejectsMutations(t *testing.T) {
	f := newFixture(t)
	f.pool.SetPauses(nativecommon.StaticPauses{moduleName: true})
	if err := f.pool.Supply(farmer, uint256.NewInt(1), t0); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected paused error, got %v", err)
	}
}

func TestSnapshotRestore(t *testing.T) {
	f := newFixture(t)
	f.supply(t, 1000, t0)
	f.borrow(t, 300, t0)
	snap := f.pool.Snapshot()

	g := newFixture(t)
	if err := g.pool.Restore(snap); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !g.pool.OwedOf(farmer).Eq(f.pool.OwedOf(farmer)) {
		t.Fatalf("owed mismatch after restore")
	}
	snap.Pool.TotalSupplied = uint256.NewInt(1)
	if err := g.pool.Restore(snap); !errors.Is(err, nativecommon.ErrState) {
		t.Fatalf("expected mismatch error, got %v", err)
	}
}
