package storage

import "fmt"

// Pebble key schema:
//
//   snap:<seq>                 → gzipped JSON snapshot
//   trade:<symbol>:<ts>:<seq>  → JSON trade
//
// Sequence and timestamp components are zero-padded so lexicographic key
// order equals numeric order; prefix iteration then yields snapshots and
// trades oldest-first.
const (
	prefixSnapshot = "snap:"
	prefixTrade    = "trade:"
)

func snapshotKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixSnapshot, seq))
}

func snapshotPrefix() []byte {
	return []byte(prefixSnapshot)
}

func tradeKey(symbol string, executedAt int64, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d:%020d", prefixTrade, symbol, executedAt, seq))
}

func tradePrefix(symbol string) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixTrade, symbol))
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
