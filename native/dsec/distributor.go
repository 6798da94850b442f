package dsec

import (
	"fmt"
	"sort"

	"github.com/holiman/uint256"

	"levfinance/core/events"
	"levfinance/crypto"
	nativecommon "levfinance/native/common"
)

var (
	errUnknownEpoch   = fmt.Errorf("%w: dsec: unknown epoch", nativecommon.ErrValidation)
	errZeroStaker     = fmt.Errorf("%w: dsec: staker is the zero address", nativecommon.ErrValidation)
	errTimeReversed   = fmt.Errorf("%w: dsec: timestamp precedes last checkpoint", nativecommon.ErrState)
	errEpochNotEnded  = fmt.Errorf("%w: dsec: epoch has not ended", nativecommon.ErrState)
	errNilStakeAmount = fmt.Errorf("%w: dsec: stake amount required", nativecommon.ErrValidation)
)

// Epoch is one fixed accrual window [Start, End).
type Epoch struct {
	Index      uint64
	Start      uint64
	End        uint64
	LPReward   *uint256.Int
	TeamReward *uint256.Int
}

// Contains reports whether ts falls inside the window.
func (e Epoch) Contains(ts uint64) bool { return ts >= e.Start && ts < e.End }

// overlap returns the number of seconds [from, to) shares with the window.
func (e Epoch) overlap(from, to uint64) uint64 {
	lo, hi := from, to
	if e.Start > lo {
		lo = e.Start
	}
	if e.End < hi {
		hi = e.End
	}
	if hi <= lo {
		return 0
	}
	return hi - lo
}

type checkpoint struct {
	amount *uint256.Int
	last   uint64
	dsec   map[uint64]*uint256.Int
}

// Distributor accumulates duration weighted stake for every staker across the
// epoch schedule. The aggregate per epoch is settled globally on every
// checkpoint so epoch totals never depend on which stakers have been touched;
// individual stakers are settled lazily and their pending accrual is folded
// in on read.
type Distributor struct {
	epochs      []Epoch
	stakers     map[crypto.Address]*checkpoint
	totalStaked *uint256.Int
	totalDsec   []*uint256.Int
	last        uint64
	emitter     events.Emitter
}

// NewDistributor materialises the epoch schedule from cfg.
func NewDistributor(cfg Config) (*Distributor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	period, _ := cfg.period()
	epochs := make([]Epoch, cfg.TotalEpochs)
	totals := make([]*uint256.Int, cfg.TotalEpochs)
	for i := range epochs {
		start := cfg.Epoch0Start + uint64(i)*period
		epochs[i] = Epoch{
			Index:      uint64(i),
			Start:      start,
			End:        start + cfg.EpochDuration,
			LPReward:   nativecommon.Clone(cfg.LPRewardPerEpoch),
			TeamReward: nativecommon.Clone(cfg.TeamRewardPerEpoch),
		}
		totals[i] = new(uint256.Int)
	}
	return &Distributor{
		epochs:      epochs,
		stakers:     make(map[crypto.Address]*checkpoint),
		totalStaked: new(uint256.Int),
		totalDsec:   totals,
		emitter:     events.NoopEmitter{},
	}, nil
}

// SetEmitter configures the event sink. A nil emitter discards events.
func (d *Distributor) SetEmitter(emitter events.Emitter) {
	if d == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	d.emitter = emitter
}

// Epochs returns a copy of the schedule.
func (d *Distributor) Epochs() []Epoch {
	out := make([]Epoch, len(d.epochs))
	for i, epoch := range d.epochs {
		out[i] = epoch.clone()
	}
	return out
}

// Epoch returns the window with the supplied index.
func (d *Distributor) Epoch(index uint64) (Epoch, error) {
	if index >= uint64(len(d.epochs)) {
		return Epoch{}, fmt.Errorf("%w %d", errUnknownEpoch, index)
	}
	return d.epochs[index].clone(), nil
}

// EpochAt returns the latest epoch that started at or before ts and whether
// ts still falls inside it. ok is false before the first epoch starts.
func (d *Distributor) EpochAt(ts uint64) (index uint64, inWindow bool, ok bool) {
	i := sort.Search(len(d.epochs), func(i int) bool { return d.epochs[i].Start > ts })
	if i == 0 {
		return 0, false, false
	}
	epoch := d.epochs[i-1]
	return epoch.Index, epoch.Contains(ts), true
}

// IsGovernanceFormingPeriod reports whether ts lies before the first epoch or
// in a gap between two epochs. No dsec accrues during forming periods.
func (d *Distributor) IsGovernanceFormingPeriod(ts uint64) bool {
	index, inWindow, ok := d.EpochAt(ts)
	if !ok {
		return true
	}
	return !inWindow && index+1 < uint64(len(d.epochs))
}

// HasEpochEnded reports whether the epoch window closed at or before ts.
func (d *Distributor) HasEpochEnded(index, ts uint64) (bool, error) {
	epoch, err := d.Epoch(index)
	if err != nil {
		return false, err
	}
	return ts >= epoch.End, nil
}

// Stake returns the currently recorded stake of addr.
func (d *Distributor) Stake(addr crypto.Address) *uint256.Int {
	if rec := d.stakers[addr]; rec != nil {
		return nativecommon.Clone(rec.amount)
	}
	return new(uint256.Int)
}

// TotalStaked returns the sum of every recorded stake.
func (d *Distributor) TotalStaked() *uint256.Int { return nativecommon.Clone(d.totalStaked) }

// LastCheckpoint returns the latest timestamp the distributor has settled to.
func (d *Distributor) LastCheckpoint() uint64 { return d.last }

// DsecOf returns the dsec addr accumulated in the epoch up to ts.
func (d *Distributor) DsecOf(addr crypto.Address, index, ts uint64) (*uint256.Int, error) {
	epoch, err := d.Epoch(index)
	if err != nil {
		return nil, err
	}
	rec := d.stakers[addr]
	if rec == nil {
		return new(uint256.Int), nil
	}
	return settledView(rec.dsec[index], rec.amount, epoch, rec.last, ts)
}

// TotalDsec returns the dsec every staker accumulated in the epoch up to ts.
func (d *Distributor) TotalDsec(index, ts uint64) (*uint256.Int, error) {
	epoch, err := d.Epoch(index)
	if err != nil {
		return nil, err
	}
	return settledView(d.totalDsec[index], d.totalStaked, epoch, d.last, ts)
}

// Checkpoint settles the dsec of addr up to now.
func (d *Distributor) Checkpoint(addr crypto.Address, now uint64) error {
	if addr.IsZero() {
		return errZeroStaker
	}
	_, err := d.checkpoint(addr, now)
	return err
}

// SetStake checkpoints addr and then records its new stake amount.
func (d *Distributor) SetStake(addr crypto.Address, amount *uint256.Int, now uint64) error {
	if amount == nil {
		return errNilStakeAmount
	}
	if addr.IsZero() {
		return errZeroStaker
	}
	rec, err := d.checkpoint(addr, now)
	if err != nil {
		return err
	}
	total := new(uint256.Int).Sub(d.totalStaked, rec.amount)
	if total, err = nativecommon.Add(total, amount); err != nil {
		return fmt.Errorf("dsec: set stake: %w", err)
	}
	d.totalStaked = total
	rec.amount = nativecommon.Clone(amount)
	d.emit(newStakeEvent(addr, amount, now))
	return nil
}

// RewardShare returns dsec(addr) / totalDsec * lpReward for a finished epoch,
// truncated. An epoch nobody staked in pays nothing.
func (d *Distributor) RewardShare(addr crypto.Address, index, now uint64) (*uint256.Int, error) {
	epoch, err := d.Epoch(index)
	if err != nil {
		return nil, err
	}
	if now < epoch.End {
		return nil, fmt.Errorf("%w: epoch %d ends at %d", errEpochNotEnded, index, epoch.End)
	}
	total, err := d.TotalDsec(index, now)
	if err != nil {
		return nil, err
	}
	if total.IsZero() {
		return new(uint256.Int), nil
	}
	own, err := d.DsecOf(addr, index, now)
	if err != nil {
		return nil, err
	}
	return nativecommon.MulDiv(own, epoch.LPReward, total)
}

// checkpoint settles the aggregate and the staker to now. Every increment is
// computed before anything is written so a failure leaves no trace.
func (d *Distributor) checkpoint(addr crypto.Address, now uint64) (*checkpoint, error) {
	if now < d.last {
		return nil, fmt.Errorf("%w: %d < %d", errTimeReversed, now, d.last)
	}
	rec := d.stakers[addr]
	if rec == nil {
		rec = &checkpoint{amount: new(uint256.Int), last: now, dsec: make(map[uint64]*uint256.Int)}
	}
	totals := make(map[uint64]*uint256.Int)
	own := make(map[uint64]*uint256.Int)
	for i := range d.epochs {
		epoch := d.epochs[i]
		next, err := accrue(d.totalDsec[i], d.totalStaked, epoch, d.last, now)
		if err != nil {
			return nil, fmt.Errorf("dsec: checkpoint epoch %d: %w", i, err)
		}
		if next != nil {
			totals[epoch.Index] = next
		}
		mine, err := accrue(rec.dsec[epoch.Index], rec.amount, epoch, rec.last, now)
		if err != nil {
			return nil, fmt.Errorf("dsec: checkpoint epoch %d: %w", i, err)
		}
		if mine != nil {
			own[epoch.Index] = mine
		}
	}
	for index, value := range totals {
		d.totalDsec[index] = value
	}
	for index, value := range own {
		rec.dsec[index] = value
	}
	rec.last = now
	d.last = now
	d.stakers[addr] = rec
	return rec, nil
}

// accrue returns current + amount*overlap, or nil when nothing accrues.
func accrue(current, amount *uint256.Int, epoch Epoch, from, to uint64) (*uint256.Int, error) {
	if nativecommon.IsZero(amount) || from >= to {
		return nil, nil
	}
	seconds := epoch.overlap(from, to)
	if seconds == 0 {
		return nil, nil
	}
	delta, err := nativecommon.Mul(amount, uint256.NewInt(seconds))
	if err != nil {
		return nil, err
	}
	return nativecommon.Add(nativecommon.Clone(current), delta)
}

func settledView(current, amount *uint256.Int, epoch Epoch, from, to uint64) (*uint256.Int, error) {
	next, err := accrue(current, amount, epoch, from, to)
	if err != nil {
		return nil, err
	}
	if next == nil {
		return nativecommon.Clone(current), nil
	}
	return next, nil
}

func (e Epoch) clone() Epoch {
	e.LPReward = nativecommon.Clone(e.LPReward)
	e.TeamReward = nativecommon.Clone(e.TeamReward)
	return e
}

func (d *Distributor) emit(evt events.Event) {
	if d == nil || d.emitter == nil || evt == nil {
		return
	}
	d.emitter.Emit(evt)
}
