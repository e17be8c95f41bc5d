package recovery

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"orderbookd/pkg/engine"
	"orderbookd/pkg/snapshot"
	"orderbookd/pkg/wal"
)

// Coordinator rebuilds engine state at startup: load the latest snapshot,
// then replay the WAL tail through the matcher. Trades logged as
// ORDER_MATCHED are not applied directly — matching is deterministic, so
// replaying the placements re-derives them exactly.
type Coordinator struct {
	wal       *wal.WAL
	snapshots *snapshot.Manager
	engine    *engine.Engine
	log       *zap.Logger
}

// Stats summarizes one recovery run.
type Stats struct {
	SnapshotSeq uint64 // 0 when recovery started from an empty state
	Replayed    int
	Skipped     int
	LastSeq     uint64
}

func NewCoordinator(w *wal.WAL, snapshots *snapshot.Manager, eng *engine.Engine, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{wal: w, snapshots: snapshots, engine: eng, log: logger}
}

// Run executes the recovery protocol. Per-entry replay errors are logged
// and skipped; a single malformed historical entry must not block startup.
func (c *Coordinator) Run() (*Stats, error) {
	stats := &Stats{}

	snap, err := c.snapshots.LoadLatest()
	if err != nil {
		// A broken snapshot store costs replay time, not correctness:
		// fall back to full WAL replay.
		c.log.Warn("snapshot load failed, replaying full wal", zap.Error(err))
		snap = nil
	}

	if snap != nil {
		c.engine.RestoreState(snap.Books)
		stats.SnapshotSeq = snap.Sequence
		c.log.Info("restored from snapshot",
			zap.Uint64("sequence", snap.Sequence),
			zap.Int("books", len(snap.Books.Books)))
	} else {
		c.engine.RestoreState(nil)
	}

	entries, err := c.wal.ReadSince(stats.SnapshotSeq)
	if err != nil {
		return nil, fmt.Errorf("read wal tail: %w", err)
	}

	for _, e := range entries {
		if err := c.apply(e); err != nil {
			stats.Skipped++
			c.log.Warn("skipping unreplayable wal entry",
				zap.Uint64("seq", e.Seq),
				zap.String("type", string(e.Type)),
				zap.Error(err))
			continue
		}
		stats.Replayed++
	}

	stats.LastSeq = c.wal.CurrentSequence()
	c.log.Info("recovery complete",
		zap.Uint64("snapshot_seq", stats.SnapshotSeq),
		zap.Int("replayed", stats.Replayed),
		zap.Int("skipped", stats.Skipped),
		zap.Uint64("last_seq", stats.LastSeq))
	return stats, nil
}

func (c *Coordinator) apply(e wal.Entry) error {
	switch e.Type {
	case wal.OrderPlaced:
		var p wal.PlacedPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return fmt.Errorf("decode placed payload: %w", err)
		}
		o := p.Order
		o.Seq = e.Seq
		o.Filled = 0 // fills are re-derived by the matcher
		c.engine.Place(&o)
		return nil

	case wal.OrderCancelled:
		var p wal.CancelledPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return fmt.Errorf("decode cancelled payload: %w", err)
		}
		// A false return is normal here: the order may have been fully
		// filled by a later placement before this cancel was logged.
		c.engine.Cancel(p.Symbol, p.OrderID)
		return nil

	case wal.OrderMatched:
		// Audit record only; trades re-derive from placements.
		return nil
	}
	return fmt.Errorf("unknown entry type %q", e.Type)
}
