package engine

import (
	"encoding/json"
	"fmt"
	"math"
)

// Prices and quantities are fixed-point integers so that matching and
// replay compare exactly on every platform. One tick is 0.01 of the quote
// asset, one lot is 1e-8 of the base asset.
const (
	PriceScale = 100
	QtyScale   = 100_000_000
)

// PriceToTicks converts a decimal price from the API boundary into ticks.
func PriceToTicks(p float64) int64 { return int64(math.Round(p * PriceScale)) }

// TicksToPrice converts ticks back into a decimal price for responses.
func TicksToPrice(t int64) float64 { return float64(t) / PriceScale }

// QtyToLots converts a decimal quantity into lots.
func QtyToLots(q float64) int64 { return int64(math.Round(q * QtyScale)) }

// LotsToQty converts lots back into a decimal quantity.
func LotsToQty(l int64) float64 { return float64(l) / QtyScale }

type Side int8

const (
	Buy  Side = 1
	Sell Side = -1
)

func ParseSide(s string) (Side, error) {
	switch s {
	case "buy":
		return Buy, nil
	case "sell":
		return Sell, nil
	}
	return 0, fmt.Errorf("invalid side %q", s)
}

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

func (s Side) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

func (s *Side) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	v, err := ParseSide(raw)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

type OrderType int8

const (
	Limit OrderType = iota
	Market
)

func ParseOrderType(s string) (OrderType, error) {
	switch s {
	case "limit":
		return Limit, nil
	case "market":
		return Market, nil
	}
	return 0, fmt.Errorf("invalid order type %q", s)
}

func (t OrderType) String() string {
	if t == Market {
		return "market"
	}
	return "limit"
}

func (t OrderType) MarshalJSON() ([]byte, error) { return json.Marshal(t.String()) }

func (t *OrderType) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	v, err := ParseOrderType(raw)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Order is owned by the book that holds it while resting. Seq is the WAL
// sequence assigned at acceptance and doubles as the FIFO tie-break key:
// replaying entries in sequence order reproduces the exact queue positions
// without consulting the clock.
type Order struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Symbol    string    `json:"symbol"`
	Side      Side      `json:"side"`
	Type      OrderType `json:"type"`
	Price     int64     `json:"price"` // ticks, 0 for market orders
	Qty       int64     `json:"qty"`   // lots
	Filled    int64     `json:"filled"`
	Seq       uint64    `json:"seq"`
	CreatedAt int64     `json:"created_at"` // unix ms at submission, informational
}

func (o *Order) Remaining() int64 { return o.Qty - o.Filled }
func (o *Order) IsFilled() bool   { return o.Filled >= o.Qty }

// Trade is an immutable fact produced by matching. Execution price is
// always the resting (maker) order's price. ExecutedAt is copied from the
// taker's submission time so matching never reads the clock.
type Trade struct {
	Symbol      string `json:"symbol"`
	BuyOrderID  string `json:"buy_order_id"`
	SellOrderID string `json:"sell_order_id"`
	Price       int64  `json:"price"`
	Qty         int64  `json:"qty"`
	TakerSide   Side   `json:"taker_side"`
	ExecutedAt  int64  `json:"executed_at"`
}

// PriceLevel is an aggregated depth entry: total resting quantity at one
// price.
type PriceLevel struct {
	Price int64 `json:"price"`
	Qty   int64 `json:"qty"`
}
