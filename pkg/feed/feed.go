package feed

import (
	"context"

	"orderbookd/pkg/engine"
)

// Publisher pushes executed trades to an external feed. Publishing is
// fire-and-forget from the matching path's point of view: a feed outage
// must never fail an order.
type Publisher interface {
	PublishTrade(ctx context.Context, t engine.Trade) error
	Close() error
}

// Nop is used when no feed is configured.
type Nop struct{}

func (Nop) PublishTrade(context.Context, engine.Trade) error { return nil }
func (Nop) Close() error                                     { return nil }
