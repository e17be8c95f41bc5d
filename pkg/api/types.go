package api

import (
	"errors"

	"orderbookd/pkg/engine"
)

// Request/response types for the REST endpoints. Prices and quantities
// cross this boundary as decimals; everything behind it is fixed-point.

type PlaceOrderRequest struct {
	OrderID  string   `json:"order_id,omitempty"`
	UserID   string   `json:"user_id"`
	Symbol   string   `json:"symbol"`
	Side     string   `json:"side"`
	Type     string   `json:"type"`
	Price    *float64 `json:"price,omitempty"`
	Quantity float64  `json:"quantity"`
}

// ToOrder validates the request and converts it to a domain order.
// Validation lives here so malformed requests never reach the WAL.
func (r *PlaceOrderRequest) ToOrder() (*engine.Order, error) {
	if r.Symbol == "" {
		return nil, errors.New("missing symbol")
	}
	if r.UserID == "" {
		return nil, errors.New("missing user_id")
	}
	side, err := engine.ParseSide(r.Side)
	if err != nil {
		return nil, err
	}
	otype, err := engine.ParseOrderType(r.Type)
	if err != nil {
		return nil, err
	}
	if r.Quantity <= 0 {
		return nil, errors.New("quantity must be positive")
	}
	qty := engine.QtyToLots(r.Quantity)
	if qty <= 0 {
		// Overflowed int64 or rounded to zero lots.
		return nil, errors.New("quantity out of representable range")
	}

	var price int64
	switch otype {
	case engine.Limit:
		if r.Price == nil {
			return nil, errors.New("limit order requires a price")
		}
		price = engine.PriceToTicks(*r.Price)
		if price <= 0 {
			return nil, errors.New("price must be positive")
		}
	case engine.Market:
		if r.Price != nil {
			return nil, errors.New("market order must not carry a price")
		}
	}

	return &engine.Order{
		ID:     r.OrderID,
		UserID: r.UserID,
		Symbol: r.Symbol,
		Side:   side,
		Type:   otype,
		Price:  price,
		Qty:    qty,
	}, nil
}

type TradeInfo struct {
	Symbol        string  `json:"symbol"`
	BuyerOrderID  string  `json:"buyer_order_id"`
	SellerOrderID string  `json:"seller_order_id"`
	Price         float64 `json:"price"`
	Quantity      float64 `json:"quantity"`
	TakerSide     string  `json:"taker_side"`
	ExecutedAt    int64   `json:"executed_at"`
}

func toTradeInfo(t engine.Trade) TradeInfo {
	return TradeInfo{
		Symbol:        t.Symbol,
		BuyerOrderID:  t.BuyOrderID,
		SellerOrderID: t.SellOrderID,
		Price:         engine.TicksToPrice(t.Price),
		Quantity:      engine.LotsToQty(t.Qty),
		TakerSide:     t.TakerSide.String(),
		ExecutedAt:    t.ExecutedAt,
	}
}

type PlaceOrderResponse struct {
	ServerOrderID  string      `json:"server_order_id"`
	Status         string      `json:"status"` // accepted | partially_filled | filled
	Matched        bool        `json:"matched"`
	Trades         []TradeInfo `json:"trades"`
	SequenceNumber uint64      `json:"sequence_number"`
}

type CancelOrderRequest struct {
	OrderID string `json:"order_id"`
	Symbol  string `json:"symbol"`
}

type CancelOrderResponse struct {
	Status string `json:"status"` // cancelled | not_found
}

type DepthLevel struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

func toDepthLevels(levels []engine.PriceLevel) []DepthLevel {
	out := make([]DepthLevel, len(levels))
	for i, l := range levels {
		out[i] = DepthLevel{
			Price:    engine.TicksToPrice(l.Price),
			Quantity: engine.LotsToQty(l.Qty),
		}
	}
	return out
}

type SnapshotResponse struct {
	Symbol       string       `json:"symbol"`
	Bids         []DepthLevel `json:"bids"`
	Asks         []DepthLevel `json:"asks"`
	LastSequence uint64       `json:"last_sequence"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Sequence  uint64 `json:"sequence"`
	Timestamp int64  `json:"timestamp"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WebSocket message types.

type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // subscribe | unsubscribe
	Channels []string `json:"channels"` // e.g. ["trades:BTC-USD", "orderbook:BTC-USD"]
}

type TradeUpdate struct {
	Type  string    `json:"type"` // "trade"
	Trade TradeInfo `json:"trade"`
}

type OrderbookUpdate struct {
	Type         string       `json:"type"` // "orderbook"
	Symbol       string       `json:"symbol"`
	Bids         []DepthLevel `json:"bids"`
	Asks         []DepthLevel `json:"asks"`
	LastSequence uint64       `json:"last_sequence"`
}
