package state

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"levfinance/crypto"
	"levfinance/native/bank"
	nativecommon "levfinance/native/common"
	"levfinance/native/dsec"
	"levfinance/native/lfi"
	"levfinance/storage"
)

func sampleSnapshot(t *testing.T) (*Snapshot, *lfi.Token) {
	t.Helper()
	team := crypto.ModuleAddress("team")
	alice := crypto.ModuleAddress("alice")

	token, err := lfi.NewToken(lfi.DefaultConfig(team))
	require.NoError(t, err)
	require.NoError(t, token.Transfer(team, alice, nativecommon.Ether(1000)))

	cfg := dsec.DefaultConfig()
	dist, err := dsec.NewDistributor(cfg)
	require.NoError(t, err)
	require.NoError(t, dist.SetStake(alice, nativecommon.Ether(4000), cfg.Epoch0Start))
	require.NoError(t, dist.Checkpoint(alice, cfg.Epoch0Start+3600))

	ledger := bank.NewLedger("Dai Stablecoin", "DAI")
	require.NoError(t, ledger.Mint(alice, nativecommon.Ether(250)))

	return &Snapshot{
		Timestamp:   cfg.Epoch0Start + 3600,
		Token:       token.Snapshot(),
		Distributor: dist.Snapshot(),
		Ledgers:     []LedgerState{{Symbol: ledger.Symbol(), Holdings: ledger.Holdings()}},
	}, token
}

func TestStoreRoundTrip(t *testing.T) {
	store := NewStore(storage.NewMemDB())
	_, err := store.Latest()
	require.ErrorIs(t, err, ErrNoSnapshot)

	snap, original := sampleSnapshot(t)
	alice := crypto.ModuleAddress("alice")
	runID, err := store.Save(snap)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, runID)
	require.Equal(t, runID.String(), snap.RunID)

	loaded, err := store.Latest()
	require.NoError(t, err)
	require.Equal(t, StateVersion, loaded.Version)
	require.Equal(t, snap.Timestamp, loaded.Timestamp)

	token, err := lfi.NewToken(lfi.DefaultConfig(crypto.ModuleAddress("team")))
	require.NoError(t, err)
	require.NoError(t, token.Restore(loaded.Token))
	require.Equal(t, original.BalanceOf(alice).String(), token.BalanceOf(alice).String())
	require.Equal(t, original.ReflectionFactor().String(), token.ReflectionFactor().String())

	dist, err := dsec.NewDistributor(dsec.DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, dist.Restore(loaded.Distributor))
	require.Equal(t, nativecommon.Ether(4000).String(), dist.TotalStaked().String())

	ledger, ok := loaded.Ledger("DAI")
	require.True(t, ok)
	require.Len(t, ledger.Holdings, 1)
	require.Equal(t, nativecommon.Ether(250).String(), ledger.Holdings[0].Amount.String())

	byRun, err := store.Run(runID)
	require.NoError(t, err)
	require.Equal(t, loaded.RunID, byRun.RunID)

	_, err = store.Run(uuid.New())
	require.ErrorIs(t, err, ErrNoSnapshot)
}

func TestStoreKeepsEarlierRuns(t *testing.T) {
	db, err := storage.NewLevelDB(filepath.Join(t.TempDir(), "snapshots"))
	require.NoError(t, err)
	defer db.Close()
	store := NewStore(db)

	first, err := store.Save(&Snapshot{Timestamp: 1})
	require.NoError(t, err)
	_, err = store.Save(&Snapshot{Timestamp: 2})
	require.NoError(t, err)

	latest, err := store.Latest()
	require.NoError(t, err)
	require.Equal(t, uint64(2), latest.Timestamp)

	earlier, err := store.Run(first)
	require.NoError(t, err)
	require.Equal(t, uint64(1), earlier.Timestamp)
}

func TestStoreRejectsBadRunID(t *testing.T) {
	store := NewStore(storage.NewMemDB())
	_, err := store.Save(&Snapshot{RunID: "not-a-uuid"})
	require.Error(t, err)
}

func TestSnapshotAccounts(t *testing.T) {
	snap, _ := sampleSnapshot(t)
	accounts := snap.Accounts()
	require.Contains(t, accounts, crypto.ModuleAddress("alice"))
	require.Contains(t, accounts, crypto.ModuleAddress("team"))
}
