package storage

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"

	"orderbookd/pkg/engine"
	"orderbookd/pkg/snapshot"
)

// PebbleStore persists snapshots and executed trades. Snapshots are the
// recovery-critical payload and are written with pebble.Sync; trade history
// is a convenience projection and uses NoSync.
type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", path, err)
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Close() error { return s.db.Close() }

// SaveSnapshot durably writes one snapshot keyed by its WAL sequence.
func (s *PebbleStore) SaveSnapshot(snap *snapshot.Snapshot) error {
	val, err := encodeGzipJSON(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.db.Set(snapshotKey(snap.Sequence), val, pebble.Sync); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// LoadLatestSnapshot returns the snapshot with the highest sequence, or nil
// if none exists.
func (s *PebbleStore) LoadLatestSnapshot() (*snapshot.Snapshot, error) {
	prefix := snapshotPrefix()
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	defer iter.Close()

	if !iter.Last() {
		return nil, nil
	}

	var snap snapshot.Snapshot
	if err := decodeGzipJSON(iter.Value(), &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", iter.Key(), err)
	}
	return &snap, nil
}

// PruneSnapshots deletes all but the newest keep snapshots.
func (s *PebbleStore) PruneSnapshots(keep int) error {
	prefix := snapshotPrefix()
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return fmt.Errorf("iterate snapshots: %w", err)
	}
	defer iter.Close()

	var keys [][]byte
	for iter.First(); iter.Valid(); iter.Next() {
		k := make([]byte, len(iter.Key()))
		copy(k, iter.Key())
		keys = append(keys, k)
	}

	if len(keys) <= keep {
		return nil
	}
	for _, k := range keys[:len(keys)-keep] {
		if err := s.db.Delete(k, pebble.NoSync); err != nil {
			return fmt.Errorf("delete snapshot %s: %w", k, err)
		}
	}
	return nil
}

// SaveTrade appends one executed trade to the history, keyed by symbol,
// execution time and the WAL sequence of its audit entry.
func (s *PebbleStore) SaveTrade(seq uint64, t engine.Trade) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal trade: %w", err)
	}
	if err := s.db.Set(tradeKey(t.Symbol, t.ExecutedAt, seq), data, pebble.NoSync); err != nil {
		return fmt.Errorf("save trade: %w", err)
	}
	return nil
}

// LoadRecentTrades returns the most recent trades for a symbol, newest
// first.
func (s *PebbleStore) LoadRecentTrades(symbol string, limit int) ([]engine.Trade, error) {
	prefix := tradePrefix(symbol)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("iterate trades: %w", err)
	}
	defer iter.Close()

	var trades []engine.Trade
	for iter.Last(); iter.Valid() && len(trades) < limit; iter.Prev() {
		var t engine.Trade
		if err := json.Unmarshal(iter.Value(), &t); err != nil {
			continue
		}
		trades = append(trades, t)
	}
	return trades, nil
}

var _ snapshot.Store = (*PebbleStore)(nil)
