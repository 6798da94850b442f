package treasury

import (
	"errors"
	"fmt"
	"sort"

	"github.com/holiman/uint256"

	"levfinance/core/events"
	"levfinance/crypto"
	nativecommon "levfinance/native/common"
)

const moduleName = "treasury"

var (
	errNilCollaborator       = errors.New("treasury: asset, receipt, rewards and distributor are required")
	errZeroPoolAddress       = fmt.Errorf("%w: treasury: pool address required", nativecommon.ErrValidation)
	errInvalidAmount         = fmt.Errorf("%w: treasury: amount must be positive", nativecommon.ErrValidation)
	errZeroAccount           = fmt.Errorf("%w: treasury: account is the zero address", nativecommon.ErrValidation)
	errInsufficientReceipt   = fmt.Errorf("%w: treasury: withdrawal exceeds receipt balance", nativecommon.ErrValidation)
	errNotTeam               = fmt.Errorf("%w: treasury: caller is not the team account", nativecommon.ErrValidation)
	errUnknownBorrower       = fmt.Errorf("%w: treasury: borrower pool not registered", nativecommon.ErrValidation)
	errRepayExceedsLoan      = fmt.Errorf("%w: treasury: repayment exceeds outstanding principal", nativecommon.ErrValidation)
	errInsufficientLiquidity = fmt.Errorf("%w: treasury: insufficient idle liquidity", nativecommon.ErrCapacity)
	errAlreadyClaimed        = fmt.Errorf("%w: treasury: reward already claimed", nativecommon.ErrState)
	errEpochNotEnded         = fmt.Errorf("%w: treasury: epoch has not ended", nativecommon.ErrState)
)

type claimKey struct {
	addr  crypto.Address
	epoch uint64
}

// Pool custodies liquidity provider deposits, keeps the distributor stake in
// step with receipt balances, pays epoch rewards and lends idle liquidity to
// registered farming pools.
type Pool struct {
	address       crypto.Address
	cfg           Config
	asset         Asset
	receipt       ReceiptToken
	rewards       RewardMinter
	dist          Distributor
	claims        map[claimKey]struct{}
	teamClaims    map[uint64]struct{}
	borrowers     map[crypto.Address]struct{}
	loans         map[crypto.Address]*uint256.Int
	totalLoaned   *uint256.Int
	totalInterest *uint256.Int
	pauses        nativecommon.PauseView
	emitter       events.Emitter
}

// NewPool constructs a treasury that custodies liquidity at address.
func NewPool(address crypto.Address, cfg Config, asset Asset, receipt ReceiptToken, rewards RewardMinter, dist Distributor) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if address.IsZero() {
		return nil, errZeroPoolAddress
	}
	if asset == nil || receipt == nil || rewards == nil || dist == nil {
		return nil, errNilCollaborator
	}
	return &Pool{
		address:       address,
		cfg:           cfg,
		asset:         asset,
		receipt:       receipt,
		rewards:       rewards,
		dist:          dist,
		claims:        make(map[claimKey]struct{}),
		teamClaims:    make(map[uint64]struct{}),
		borrowers:     make(map[crypto.Address]struct{}),
		loans:         make(map[crypto.Address]*uint256.Int),
		totalLoaned:   new(uint256.Int),
		totalInterest: new(uint256.Int),
		emitter:       events.NoopEmitter{},
	}, nil
}

// SetPauses wires the pause view consulted before mutations.
func (p *Pool) SetPauses(pauses nativecommon.PauseView) {
	if p == nil {
		return
	}
	p.pauses = pauses
}

// SetEmitter configures the event sink. A nil emitter discards events.
func (p *Pool) SetEmitter(emitter events.Emitter) {
	if p == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	p.emitter = emitter
}

// RegisterBorrower allows a farming pool to draw liquidity.
func (p *Pool) RegisterBorrower(borrower crypto.Address) error {
	if borrower.IsZero() {
		return errZeroAccount
	}
	p.borrowers[borrower] = struct{}{}
	return nil
}

// Address returns the custody account.
func (p *Pool) Address() crypto.Address { return p.address }

// TeamAccount returns the account entitled to team rewards.
func (p *Pool) TeamAccount() crypto.Address { return p.cfg.TeamAccount }

// Liquidity returns the idle underlying held by the treasury.
func (p *Pool) Liquidity() *uint256.Int { return nativecommon.Clone(p.asset.BalanceOf(p.address)) }

// TotalLoaned returns the principal currently lent to farming pools.
func (p *Pool) TotalLoaned() *uint256.Int { return nativecommon.Clone(p.totalLoaned) }

// TotalInterestReceived returns the interest farming pools have paid back.
func (p *Pool) TotalInterestReceived() *uint256.Int { return nativecommon.Clone(p.totalInterest) }

// LoanedTo returns the outstanding principal of borrower.
func (p *Pool) LoanedTo(borrower crypto.Address) *uint256.Int {
	return nativecommon.Clone(p.loans[borrower])
}

// HasClaimed reports whether addr settled its reward for epoch.
func (p *Pool) HasClaimed(addr crypto.Address, epoch uint64) bool {
	_, ok := p.claims[claimKey{addr: addr, epoch: epoch}]
	return ok
}

// HasTeamClaimed reports whether the team reward for epoch was paid.
func (p *Pool) HasTeamClaimed(epoch uint64) bool {
	_, ok := p.teamClaims[epoch]
	return ok
}

// Deposit pulls amount of underlying from the provider, mints the same
// amount of receipt token and records the new receipt balance as stake.
func (p *Pool) Deposit(provider crypto.Address, amount *uint256.Int, now uint64) error {
	if err := p.precheck(provider, amount); err != nil {
		return err
	}
	stake, err := nativecommon.Add(p.receipt.BalanceOf(provider), amount)
	if err != nil {
		return fmt.Errorf("treasury: deposit: %w", err)
	}
	if err := p.asset.TransferFrom(provider, p.address, amount); err != nil {
		return fmt.Errorf("treasury: deposit transfer: %w", err)
	}
	if err := p.receipt.Mint(provider, amount); err != nil {
		return fmt.Errorf("treasury: deposit mint receipt: %w", err)
	}
	if err := p.dist.SetStake(provider, stake, now); err != nil {
		return fmt.Errorf("treasury: deposit stake: %w", err)
	}
	p.emit(newFlowEvent(EventTypeDeposit, provider, amount, stake))
	return nil
}

// Withdraw burns receipt tokens, lowers the stake and returns the underlying.
func (p *Pool) Withdraw(provider crypto.Address, amount *uint256.Int, now uint64) error {
	if err := p.precheck(provider, amount); err != nil {
		return err
	}
	held := nativecommon.Clone(p.receipt.BalanceOf(provider))
	if held.Lt(amount) {
		return fmt.Errorf("%w: %s requested, %s held", errInsufficientReceipt, amount, held)
	}
	if p.Liquidity().Lt(amount) {
		return fmt.Errorf("%w: %s requested, %s idle", errInsufficientLiquidity, amount, p.Liquidity())
	}
	stake := new(uint256.Int).Sub(held, amount)
	if err := p.receipt.Burn(provider, amount); err != nil {
		return fmt.Errorf("treasury: withdraw burn receipt: %w", err)
	}
	if err := p.dist.SetStake(provider, stake, now); err != nil {
		return fmt.Errorf("treasury: withdraw stake: %w", err)
	}
	if err := p.asset.Transfer(p.address, provider, amount); err != nil {
		return fmt.Errorf("treasury: withdraw transfer: %w", err)
	}
	p.emit(newFlowEvent(EventTypeWithdraw, provider, amount, stake))
	return nil
}

// Claim pays addr its share of the LP reward for a finished epoch. Each
// (account, epoch) pair settles once.
func (p *Pool) Claim(addr crypto.Address, epoch, now uint64) (*uint256.Int, error) {
	if err := nativecommon.Guard(p.pauses, moduleName); err != nil {
		return nil, err
	}
	if addr.IsZero() {
		return nil, errZeroAccount
	}
	key := claimKey{addr: addr, epoch: epoch}
	if _, ok := p.claims[key]; ok {
		return nil, fmt.Errorf("%w: epoch %d", errAlreadyClaimed, epoch)
	}
	share, err := p.dist.RewardShare(addr, epoch, now)
	if err != nil {
		return nil, err
	}
	if !share.IsZero() {
		if err := p.rewards.Mint(addr, share); err != nil {
			return nil, fmt.Errorf("treasury: claim mint reward: %w", err)
		}
	}
	p.claims[key] = struct{}{}
	p.emit(newClaimEvent(EventTypeClaim, addr, epoch, share))
	return share, nil
}

// TeamClaim pays the fixed team allocation of a finished epoch to the team
// account.
func (p *Pool) TeamClaim(caller crypto.Address, epoch, now uint64) (*uint256.Int, error) {
	if err := nativecommon.Guard(p.pauses, moduleName); err != nil {
		return nil, err
	}
	if caller != p.cfg.TeamAccount {
		return nil, errNotTeam
	}
	if _, ok := p.teamClaims[epoch]; ok {
		return nil, fmt.Errorf("%w: team epoch %d", errAlreadyClaimed, epoch)
	}
	window, err := p.dist.Epoch(epoch)
	if err != nil {
		return nil, err
	}
	if now < window.End {
		return nil, fmt.Errorf("%w: epoch %d ends at %d", errEpochNotEnded, epoch, window.End)
	}
	reward := nativecommon.Clone(window.TeamReward)
	if !reward.IsZero() {
		if err := p.rewards.Mint(caller, reward); err != nil {
			return nil, fmt.Errorf("treasury: team claim mint reward: %w", err)
		}
	}
	p.teamClaims[epoch] = struct{}{}
	p.emit(newClaimEvent(EventTypeTeamClaim, caller, epoch, reward))
	return reward, nil
}

// Loan sends idle liquidity to a registered borrower pool.
func (p *Pool) Loan(borrower crypto.Address, amount *uint256.Int) error {
	if err := p.precheck(borrower, amount); err != nil {
		return err
	}
	if _, ok := p.borrowers[borrower]; !ok {
		return errUnknownBorrower
	}
	if p.Liquidity().Lt(amount) {
		return fmt.Errorf("%w: %s requested, %s idle", errInsufficientLiquidity, amount, p.Liquidity())
	}
	outstanding, err := nativecommon.Add(nativecommon.Clone(p.loans[borrower]), amount)
	if err != nil {
		return fmt.Errorf("treasury: loan: %w", err)
	}
	total, err := nativecommon.Add(p.totalLoaned, amount)
	if err != nil {
		return fmt.Errorf("treasury: loan: %w", err)
	}
	if err := p.asset.Transfer(p.address, borrower, amount); err != nil {
		return fmt.Errorf("treasury: loan transfer: %w", err)
	}
	p.loans[borrower] = outstanding
	p.totalLoaned = total
	p.emit(newLoanEvent(borrower, amount, outstanding))
	return nil
}

// RepayLoan pulls principal plus interest back from a borrower pool.
func (p *Pool) RepayLoan(borrower crypto.Address, principal, interest *uint256.Int) error {
	if err := nativecommon.Guard(p.pauses, moduleName); err != nil {
		return err
	}
	if _, ok := p.borrowers[borrower]; !ok {
		return errUnknownBorrower
	}
	principal, interest = nativecommon.Clone(principal), nativecommon.Clone(interest)
	outstanding := nativecommon.Clone(p.loans[borrower])
	if principal.Gt(outstanding) {
		return fmt.Errorf("%w: %s repaid, %s outstanding", errRepayExceedsLoan, principal, outstanding)
	}
	total, err := nativecommon.Add(principal, interest)
	if err != nil {
		return fmt.Errorf("treasury: repay loan: %w", err)
	}
	earned, err := nativecommon.Add(p.totalInterest, interest)
	if err != nil {
		return fmt.Errorf("treasury: repay loan: %w", err)
	}
	if total.IsZero() {
		return errInvalidAmount
	}
	if err := p.asset.TransferFrom(borrower, p.address, total); err != nil {
		return fmt.Errorf("treasury: repay loan transfer: %w", err)
	}
	outstanding.Sub(outstanding, principal)
	if outstanding.IsZero() {
		delete(p.loans, borrower)
	} else {
		p.loans[borrower] = outstanding
	}
	p.totalLoaned = new(uint256.Int).Sub(p.totalLoaned, principal)
	p.totalInterest = earned
	p.emit(newLoanRepaidEvent(borrower, principal, interest, outstanding))
	return nil
}

func (p *Pool) precheck(account crypto.Address, amount *uint256.Int) error {
	if err := nativecommon.Guard(p.pauses, moduleName); err != nil {
		return err
	}
	if nativecommon.IsZero(amount) {
		return errInvalidAmount
	}
	if account.IsZero() {
		return errZeroAccount
	}
	return nil
}

func (p *Pool) emit(evt events.Event) {
	if p == nil || p.emitter == nil || evt == nil {
		return
	}
	p.emitter.Emit(evt)
}

// State is a point in time copy of the treasury bookkeeping.
type State struct {
	Claims        []ClaimRecord
	TeamClaims    []uint64
	Loans         []LoanRecord
	TotalInterest *uint256.Int
}

// Snapshot exports claims and loans in a deterministic order.
func (p *Pool) Snapshot() State {
	claims := make([]ClaimRecord, 0, len(p.claims))
	for key := range p.claims {
		claims = append(claims, ClaimRecord{Address: key.addr, Epoch: key.epoch})
	}
	sort.Slice(claims, func(i, j int) bool {
		if claims[i].Address == claims[j].Address {
			return claims[i].Epoch < claims[j].Epoch
		}
		return claims[i].Address.Less(claims[j].Address)
	})
	team := make([]uint64, 0, len(p.teamClaims))
	for epoch := range p.teamClaims {
		team = append(team, epoch)
	}
	sort.Slice(team, func(i, j int) bool { return team[i] < team[j] })
	loans := make([]LoanRecord, 0, len(p.loans))
	for borrower, amount := range p.loans {
		loans = append(loans, LoanRecord{Borrower: borrower, Outstanding: nativecommon.Clone(amount)})
	}
	sort.Slice(loans, func(i, j int) bool { return loans[i].Borrower.Less(loans[j].Borrower) })
	return State{Claims: claims, TeamClaims: team, Loans: loans, TotalInterest: nativecommon.Clone(p.totalInterest)}
}

// Restore replaces the bookkeeping with a snapshot. Borrowers with
// outstanding loans are registered implicitly.
func (p *Pool) Restore(state State) error {
	claims := make(map[claimKey]struct{}, len(state.Claims))
	for _, record := range state.Claims {
		claims[claimKey{addr: record.Address, epoch: record.Epoch}] = struct{}{}
	}
	team := make(map[uint64]struct{}, len(state.TeamClaims))
	for _, epoch := range state.TeamClaims {
		team[epoch] = struct{}{}
	}
	loans := make(map[crypto.Address]*uint256.Int, len(state.Loans))
	total := new(uint256.Int)
	for _, record := range state.Loans {
		if record.Borrower.IsZero() {
			return errZeroAccount
		}
		if nativecommon.IsZero(record.Outstanding) {
			continue
		}
		var err error
		if total, err = nativecommon.Add(total, record.Outstanding); err != nil {
			return fmt.Errorf("treasury: restore: %w", err)
		}
		loans[record.Borrower] = nativecommon.Clone(record.Outstanding)
	}
	for borrower := range loans {
		p.borrowers[borrower] = struct{}{}
	}
	p.claims = claims
	p.teamClaims = team
	p.loans = loans
	p.totalLoaned = total
	p.totalInterest = nativecommon.Clone(state.TotalInterest)
	return nil
}
