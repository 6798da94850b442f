package state

import (
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/google/uuid"

	"levfinance/storage"
)

var (
	latestSnapshotKey = ethcrypto.Keccak256([]byte("levf/snapshot/latest"))

	// ErrNoSnapshot is returned when the database holds no snapshot yet.
	ErrNoSnapshot = errors.New("state: no snapshot stored")
)

func runSnapshotKey(runID uuid.UUID) []byte {
	return ethcrypto.Keccak256([]byte("levf/snapshot/run/"), runID[:])
}

// Store persists RLP encoded protocol snapshots. Every save is written twice:
// under the run identifier and under the latest pointer.
type Store struct {
	db storage.Database
}

// NewStore wraps db.
func NewStore(db storage.Database) *Store {
	return &Store{db: db}
}

// Save encodes snap and writes it for the run. A missing run identifier is
// generated.
func (s *Store) Save(snap *Snapshot) (uuid.UUID, error) {
	if s == nil || s.db == nil {
		return uuid.Nil, fmt.Errorf("state: store unavailable")
	}
	if snap == nil {
		return uuid.Nil, fmt.Errorf("state: nil snapshot")
	}
	runID := uuid.New()
	if snap.RunID != "" {
		parsed, err := uuid.Parse(snap.RunID)
		if err != nil {
			return uuid.Nil, fmt.Errorf("state: invalid run id %q: %w", snap.RunID, err)
		}
		runID = parsed
	}
	snap.RunID = runID.String()
	snap.Version = StateVersion
	encoded, err := rlp.EncodeToBytes(snap)
	if err != nil {
		return uuid.Nil, fmt.Errorf("state: encode snapshot: %w", err)
	}
	if err := s.db.Put(runSnapshotKey(runID), encoded); err != nil {
		return uuid.Nil, err
	}
	if err := s.db.Put(latestSnapshotKey, encoded); err != nil {
		return uuid.Nil, err
	}
	return runID, nil
}

// Latest loads the most recently saved snapshot.
func (s *Store) Latest() (*Snapshot, error) {
	return s.load(latestSnapshotKey)
}

// Run loads the snapshot saved for runID.
func (s *Store) Run(runID uuid.UUID) (*Snapshot, error) {
	return s.load(runSnapshotKey(runID))
}

func (s *Store) load(key []byte) (*Snapshot, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("state: store unavailable")
	}
	data, err := s.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, err
	}
	snap := new(Snapshot)
	if err := rlp.DecodeBytes(data, snap); err != nil {
		return nil, fmt.Errorf("state: decode snapshot: %w", err)
	}
	if snap.Version != StateVersion {
		return nil, fmt.Errorf("%w: on-disk=%d expected=%d", ErrStateVersionMismatch, snap.Version, StateVersion)
	}
	return snap, nil
}
