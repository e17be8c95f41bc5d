package engine

import (
	"sort"
	"sync"
)

// Engine is the in-memory matching state machine: one book per symbol.
//
// Matching is a pure function of call order. Given the same sequence of
// Place/Cancel calls the engine produces identical state and identical
// trades; recovery relies on this to re-derive trades instead of replaying
// them. Nothing in here reads the clock or any external state.
//
// The RWMutex keeps concurrent Depth/FullState reads consistent. Mutating
// callers must additionally be serialized against the WAL by the order
// service; the engine alone cannot enforce write-ahead ordering.
type Engine struct {
	mu    sync.RWMutex
	books map[string]*OrderBook
}

func New() *Engine {
	return &Engine{books: make(map[string]*OrderBook)}
}

// Place matches the order and rests any limit remainder. The engine takes
// ownership of o; callers must not mutate it afterwards. The order is
// assumed well-formed — validation happens at the API boundary.
func (e *Engine) Place(o *Order) []Trade {
	e.mu.Lock()
	defer e.mu.Unlock()

	book, ok := e.books[o.Symbol]
	if !ok {
		book = newOrderBook(o.Symbol)
		e.books[o.Symbol] = book
	}
	return book.place(o)
}

// Cancel removes a resting order. Returns false if the order is unknown,
// already filled, or was a market order (those never rest).
func (e *Engine) Cancel(symbol, orderID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	book, ok := e.books[symbol]
	if !ok {
		return false
	}
	return book.cancel(orderID)
}

// Depth returns the aggregated price levels for one symbol, bids high to
// low and asks low to high. Unknown symbols yield empty sides.
func (e *Engine) Depth(symbol string) (bids, asks []PriceLevel) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	book, ok := e.books[symbol]
	if !ok {
		return nil, nil
	}
	return book.depth()
}

// State is the complete serialized engine state, consumed by the snapshot
// manager and the recovery coordinator. Books are sorted by symbol so the
// serialized form is stable.
type State struct {
	Books []BookState `json:"books"`
}

// FullState deep-copies every book.
func (e *Engine) FullState() *State {
	e.mu.RLock()
	defer e.mu.RUnlock()

	symbols := make([]string, 0, len(e.books))
	for s := range e.books {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	st := &State{Books: make([]BookState, 0, len(symbols))}
	for _, s := range symbols {
		st.Books = append(st.Books, e.books[s].state())
	}
	return st
}

// RestoreState replaces all books with the given state. A nil state resets
// the engine to empty.
func (e *Engine) RestoreState(st *State) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.books = make(map[string]*OrderBook)
	if st == nil {
		return
	}
	for _, bs := range st.Books {
		e.books[bs.Symbol] = restoreOrderBook(bs)
	}
}

// Symbols lists the symbols with a live book, sorted.
func (e *Engine) Symbols() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]string, 0, len(e.books))
	for s := range e.books {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
