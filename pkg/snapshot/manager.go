package snapshot

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"orderbookd/pkg/engine"
)

// CaptureFunc returns a consistent (sequence, books) pair taken between two
// fully-completed operations. The order service implements it under its
// writer lock so a capture never races an in-flight append/apply unit.
type CaptureFunc func() (uint64, *engine.State)

// Manager periodically captures engine state to bound the WAL replay
// window at recovery time.
type Manager struct {
	store    Store
	interval time.Duration
	retain   int
	capture  CaptureFunc
	log      *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func NewManager(store Store, interval time.Duration, retain int, capture CaptureFunc, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retain < 1 {
		retain = 1
	}
	return &Manager{
		store:    store,
		interval: interval,
		retain:   retain,
		capture:  capture,
		log:      logger,
	}
}

// Start begins the fixed-interval snapshot job.
func (m *Manager) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.CaptureNow(); err != nil {
					m.log.Error("snapshot capture failed", zap.Error(err))
				}
			}
		}
	}()
}

// Stop cancels the timer and waits for a tick in flight to finish.
func (m *Manager) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
}

// CaptureNow takes and persists one snapshot, then prunes old ones.
func (m *Manager) CaptureNow() error {
	seq, books := m.capture()
	checksum, err := BooksChecksum(books)
	if err != nil {
		return err
	}

	snap := &Snapshot{
		Timestamp: time.Now().UnixMilli(),
		Sequence:  seq,
		Books:     books,
		Checksum:  checksum,
	}
	if err := m.store.SaveSnapshot(snap); err != nil {
		return fmt.Errorf("persist snapshot: %w", err)
	}
	m.log.Info("snapshot persisted",
		zap.Uint64("sequence", seq),
		zap.Int("books", len(books.Books)))

	if err := m.store.PruneSnapshots(m.retain); err != nil {
		// Retention failure costs disk, not correctness.
		m.log.Warn("snapshot prune failed", zap.Error(err))
	}
	return nil
}

// LoadLatest returns the most recent durable snapshot, or nil if none
// exists or the newest one fails verification. A nil result forces full
// WAL replay from sequence 0.
func (m *Manager) LoadLatest() (*Snapshot, error) {
	snap, err := m.store.LoadLatestSnapshot()
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if snap == nil {
		return nil, nil
	}
	ok, err := snap.Verify()
	if err != nil {
		return nil, err
	}
	if !ok {
		m.log.Warn("discarding snapshot with bad checksum",
			zap.Uint64("sequence", snap.Sequence))
		return nil, nil
	}
	return snap, nil
}
