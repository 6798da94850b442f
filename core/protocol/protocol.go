package protocol

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"levfinance/config"
	"levfinance/core/events"
	"levfinance/core/state"
	"levfinance/crypto"
	"levfinance/native/bank"
	"levfinance/native/dsec"
	"levfinance/native/farming"
	"levfinance/native/lfi"
	"levfinance/native/treasury"
	"levfinance/native/vault"
	"levfinance/observability/metrics"
)

// Module custody accounts. Each is derived from its label so every
// deployment resolves the same addresses.
var (
	TreasuryAddress = crypto.ModuleAddress(config.ModuleTreasury)
	FarmingAddress  = crypto.ModuleAddress(config.ModuleFarming)
	VaultAddress    = crypto.ModuleAddress("vault")
)

// Protocol owns every engine and applies operations one at a time. A failed
// operation leaves every engine and ledger exactly as it was before.
type Protocol struct {
	mu sync.Mutex

	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.ProtocolMetrics
	emitter events.Emitter
	pending *events.Recorder
	last    uint64

	underlying  *bank.Ledger
	ltoken      *bank.Ledger
	btoken      *bank.Ledger
	token       *lfi.Token
	distributor *dsec.Distributor
	treasury    *treasury.Pool
	vault       *vault.Vault
	farming     *farming.Pool
}

// New wires the engines described by cfg. Committed events are forwarded to
// emitter; a nil emitter discards them.
func New(cfg *config.Config, logger *slog.Logger, emitter events.Emitter) (*Protocol, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	p := &Protocol{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.Protocol(),
		emitter: emitter,
		pending: &events.Recorder{},
	}

	symbol := cfg.Asset.Symbol
	p.underlying = bank.NewLedger(cfg.Asset.Name, symbol)
	p.ltoken = bank.NewLedger("Levf "+cfg.Asset.Name+" Ltoken", "L"+symbol)
	p.btoken = bank.NewLedger("Levf "+cfg.Asset.Name+" Btoken", "B"+symbol)

	tokenCfg, err := cfg.TokenConfig(TreasuryAddress, FarmingAddress)
	if err != nil {
		return nil, err
	}
	if p.token, err = lfi.NewToken(tokenCfg); err != nil {
		return nil, fmt.Errorf("protocol: token: %w", err)
	}

	distCfg, err := cfg.DistributorConfig()
	if err != nil {
		return nil, err
	}
	if p.distributor, err = dsec.NewDistributor(distCfg); err != nil {
		return nil, fmt.Errorf("protocol: distributor: %w", err)
	}

	team, err := cfg.TeamAccount()
	if err != nil {
		return nil, err
	}
	p.treasury, err = treasury.NewPool(TreasuryAddress, treasury.Config{TeamAccount: team}, p.underlying, p.ltoken, p.token, p.distributor)
	if err != nil {
		return nil, fmt.Errorf("protocol: treasury: %w", err)
	}
	if err := p.treasury.RegisterBorrower(FarmingAddress); err != nil {
		return nil, fmt.Errorf("protocol: treasury: %w", err)
	}

	p.vault = vault.NewVault(VaultAddress, p.underlying)
	farmCfg, err := cfg.FarmingConfig(TreasuryAddress)
	if err != nil {
		return nil, err
	}
	p.farming, err = farming.NewPool(FarmingAddress, farmCfg, p.underlying, p.btoken, p.treasury, vault.NewAdapter(p.vault, FarmingAddress))
	if err != nil {
		return nil, fmt.Errorf("protocol: farming: %w", err)
	}

	pauses := cfg.PauseView()
	p.token.SetPauses(pauses)
	p.treasury.SetPauses(pauses)
	p.farming.SetPauses(pauses)

	p.token.SetEmitter(p.pending)
	p.distributor.SetEmitter(p.pending)
	p.treasury.SetEmitter(p.pending)
	p.farming.SetEmitter(p.pending)
	p.observeState()
	return p, nil
}

// Underlying returns the stablecoin ledger.
func (p *Protocol) Underlying() *bank.Ledger { return p.underlying }

// Ltoken returns the treasury receipt ledger.
func (p *Protocol) Ltoken() *bank.Ledger { return p.ltoken }

// Btoken returns the farming receipt ledger.
func (p *Protocol) Btoken() *bank.Ledger { return p.btoken }

func (p *Protocol) Token() *lfi.Token { return p.token }

func (p *Protocol) Distributor() *dsec.Distributor { return p.distributor }

func (p *Protocol) Treasury() *treasury.Pool { return p.treasury }

func (p *Protocol) Vault() *vault.Vault { return p.vault }

func (p *Protocol) Farming() *farming.Pool { return p.farming }

// LastTimestamp is the timestamp of the last committed operation.
func (p *Protocol) LastTimestamp() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

func (p *Protocol) ledgers() []*bank.Ledger {
	return []*bank.Ledger{p.underlying, p.ltoken, p.btoken}
}

// Snapshot captures every engine and ledger.
func (p *Protocol) Snapshot() *state.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot()
}

func (p *Protocol) snapshot() *state.Snapshot {
	ledgers := make([]state.LedgerState, 0, 3)
	for _, ledger := range p.ledgers() {
		ledgers = append(ledgers, state.LedgerState{Symbol: ledger.Symbol(), Holdings: ledger.Holdings()})
	}
	return &state.Snapshot{
		Version:     state.StateVersion,
		Timestamp:   p.last,
		Token:       p.token.Snapshot(),
		Distributor: p.distributor.Snapshot(),
		Treasury:    p.treasury.Snapshot(),
		Farming:     p.farming.Snapshot(),
		Vault:       p.vault.Snapshot(),
		Ledgers:     ledgers,
	}
}

// Restore replaces every engine and ledger with snap.
func (p *Protocol) Restore(snap *state.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("protocol: nil snapshot")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.restore(snap); err != nil {
		return err
	}
	p.observeState()
	return nil
}

func (p *Protocol) restore(snap *state.Snapshot) error {
	for _, ledger := range p.ledgers() {
		held, _ := snap.Ledger(ledger.Symbol())
		if err := ledger.Restore(held.Holdings); err != nil {
			return err
		}
	}
	if err := p.token.Restore(snap.Token); err != nil {
		return err
	}
	if err := p.distributor.Restore(snap.Distributor); err != nil {
		return err
	}
	if err := p.treasury.Restore(snap.Treasury); err != nil {
		return err
	}
	if err := p.vault.Restore(snap.Vault); err != nil {
		return err
	}
	if err := p.farming.Restore(snap.Farming); err != nil {
		return err
	}
	p.last = snap.Timestamp
	return nil
}

// flush forwards events buffered by a committed operation.
func (p *Protocol) flush() []events.Event {
	committed := p.pending.Drain()
	for _, evt := range committed {
		p.emitter.Emit(evt)
	}
	return committed
}

func (p *Protocol) observeState() {
	m := p.metrics
	m.SetSupply(p.token.Symbol(), p.token.TotalSupply())
	for _, ledger := range p.ledgers() {
		m.SetSupply(ledger.Symbol(), ledger.TotalSupply())
	}
	m.SetReflectionFactor(p.token.ReflectionFactor())
	pool := p.farming.State()
	m.SetFarming(pool.InterestIndex, p.farming.Utilisation(), p.farming.BorrowRate(), pool.TotalBorrowed)
	m.SetTreasuryLiquidity(p.treasury.Liquidity())
	for _, epoch := range p.distributor.Epochs() {
		total, err := p.distributor.TotalDsec(epoch.Index, p.last)
		if err != nil {
			continue
		}
		m.SetEpochDsec(strconv.FormatUint(epoch.Index, 10), total)
	}
}
