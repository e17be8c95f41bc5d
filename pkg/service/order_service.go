package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"orderbookd/pkg/engine"
	"orderbookd/pkg/feed"
	"orderbookd/pkg/wal"
)

// TradeStore persists executed trades for the history endpoint.
// Implemented by storage.PebbleStore.
type TradeStore interface {
	SaveTrade(seq uint64, t engine.Trade) error
	LoadRecentTrades(symbol string, limit int) ([]engine.Trade, error)
}

// OrderService is the only write entry point into the system. One mutex
// serializes every WAL-append + engine-apply pair, which is what makes the
// engine's replay determinism hold under real threads: no two mutating
// operations ever interleave, and snapshot capture sees only fully-applied
// state.
type OrderService struct {
	mu     sync.Mutex
	engine *engine.Engine
	wal    *wal.WAL
	trades TradeStore
	feed   feed.Publisher
	log    *zap.Logger

	// OnTrade and OnBookUpdate, when set, are invoked after the write
	// lock is released (WebSocket broadcast hooks).
	OnTrade      func(t engine.Trade)
	OnBookUpdate func(symbol string)
}

func NewOrderService(eng *engine.Engine, w *wal.WAL, trades TradeStore, pub feed.Publisher, logger *zap.Logger) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pub == nil {
		pub = feed.Nop{}
	}
	return &OrderService{
		engine: eng,
		wal:    w,
		trades: trades,
		feed:   pub,
		log:    logger,
	}
}

// PlaceResult is everything the transport layer needs to answer a
// placement request.
type PlaceResult struct {
	Order          engine.Order
	Trades         []engine.Trade
	SequenceNumber uint64
	Status         string // accepted | partially_filled | filled
	Matched        bool
}

// PlaceOrder durably logs the order, then applies it to the engine. The
// WAL append happens strictly first: if it fails the order was never
// accepted. ORDER_MATCHED entries for the resulting trades are audit-only.
func (s *OrderService) PlaceOrder(ctx context.Context, o *engine.Order) (*PlaceResult, error) {
	s.mu.Lock()

	if o.ID == "" {
		// The WAL is gapless and this is the only appender, so the next
		// sequence number is a collision-free server order ID.
		o.ID = fmt.Sprintf("o-%d", s.wal.CurrentSequence()+1)
	}
	if o.CreatedAt == 0 {
		o.CreatedAt = time.Now().UnixMilli()
	}

	seq, err := s.wal.Append(wal.OrderPlaced, wal.PlacedPayload{Order: *o})
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("wal append: %w", err)
	}
	o.Seq = seq

	trades := s.engine.Place(o)

	for _, t := range trades {
		// The order itself is durable; matched entries and the history
		// store are derived data, so failures here are logged, not fatal.
		matchSeq, err := s.wal.Append(wal.OrderMatched, wal.MatchedPayload{Trade: t})
		if err != nil {
			s.log.Error("failed to log trade", zap.Error(err))
			continue
		}
		if s.trades != nil {
			if err := s.trades.SaveTrade(matchSeq, t); err != nil {
				s.log.Error("failed to persist trade", zap.Error(err))
			}
		}
	}

	result := &PlaceResult{
		Order:          *o,
		Trades:         trades,
		SequenceNumber: seq,
		Matched:        len(trades) > 0,
		Status:         orderStatus(o),
	}
	s.mu.Unlock()

	for _, t := range trades {
		if err := s.feed.PublishTrade(ctx, t); err != nil {
			s.log.Warn("trade feed publish failed", zap.Error(err))
		}
		if s.OnTrade != nil {
			s.OnTrade(t)
		}
	}
	if s.OnBookUpdate != nil {
		s.OnBookUpdate(o.Symbol)
	}

	return result, nil
}

// CancelOrder logs the cancellation intent, then removes the resting
// order. Returns false when no such order rests (already filled, unknown,
// or a market order).
func (s *OrderService) CancelOrder(ctx context.Context, symbol, orderID string) (bool, error) {
	s.mu.Lock()

	_, err := s.wal.Append(wal.OrderCancelled, wal.CancelledPayload{
		Symbol:  symbol,
		OrderID: orderID,
	})
	if err != nil {
		s.mu.Unlock()
		return false, fmt.Errorf("wal append: %w", err)
	}

	removed := s.engine.Cancel(symbol, orderID)
	s.mu.Unlock()

	if removed && s.OnBookUpdate != nil {
		s.OnBookUpdate(symbol)
	}
	return removed, nil
}

// Depth returns the aggregated book for one symbol plus the WAL position
// it corresponds to.
func (s *OrderService) Depth(symbol string) (bids, asks []engine.PriceLevel, lastSeq uint64) {
	bids, asks = s.engine.Depth(symbol)
	return bids, asks, s.wal.CurrentSequence()
}

// RecentTrades serves the trade history endpoint.
func (s *OrderService) RecentTrades(symbol string, limit int) ([]engine.Trade, error) {
	if s.trades == nil {
		return nil, nil
	}
	return s.trades.LoadRecentTrades(symbol, limit)
}

// CurrentSequence is the highest WAL sequence issued so far.
func (s *OrderService) CurrentSequence() uint64 {
	return s.wal.CurrentSequence()
}

// CaptureState returns a consistent (sequence, books) pair for the
// snapshot manager. Taking the writer lock guarantees the capture sits
// between two fully-completed operations.
func (s *OrderService) CaptureState() (uint64, *engine.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wal.CurrentSequence(), s.engine.FullState()
}

func orderStatus(o *engine.Order) string {
	switch {
	case o.IsFilled():
		return "filled"
	case o.Filled > 0:
		return "partially_filled"
	default:
		return "accepted"
	}
}
