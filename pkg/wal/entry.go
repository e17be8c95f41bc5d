package wal

import (
	"encoding/json"

	"orderbookd/pkg/engine"
)

type EntryType string

const (
	OrderPlaced    EntryType = "ORDER_PLACED"
	OrderMatched   EntryType = "ORDER_MATCHED"
	OrderCancelled EntryType = "ORDER_CANCELLED"
)

// Entry is one line of the log. Sequence numbers are assigned by the WAL
// itself, start at 1 and are gapless for entries actually appended.
//
// ORDER_MATCHED entries exist for audit only; recovery re-derives trades by
// replaying the placements and cancellations through the matcher.
type Entry struct {
	Seq     uint64          `json:"seq"`
	TS      int64           `json:"ts"` // unix ms at append time
	Type    EntryType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type PlacedPayload struct {
	Order engine.Order `json:"order"`
}

type MatchedPayload struct {
	Trade engine.Trade `json:"trade"`
}

type CancelledPayload struct {
	Symbol  string `json:"symbol"`
	OrderID string `json:"order_id"`
}
