package engine

import (
	"container/heap"
	"sort"
)

// OrderBook holds the resting orders for one symbol. Only limit orders with
// remaining quantity rest. FIFO order within a price level is insertion
// order, which under the single-writer rule is WAL sequence order.
//
// The book has no lock of its own; Engine serializes access.
type OrderBook struct {
	symbol string

	// Heap-based best price tracking (O(1) peek).
	bidHeap *priceHeap
	askHeap *priceHeap

	// Price level queues, FIFO matching at each price.
	bids map[int64][]*Order
	asks map[int64][]*Order

	// Order index for O(1) cancellation: order ID -> resting price.
	orderIndex map[string]int64
}

func newOrderBook(symbol string) *OrderBook {
	return &OrderBook{
		symbol:     symbol,
		bidHeap:    newBidHeap(),
		askHeap:    newAskHeap(),
		bids:       make(map[int64][]*Order),
		asks:       make(map[int64][]*Order),
		orderIndex: make(map[string]int64),
	}
}

func (b *OrderBook) bestBid() (int64, bool) {
	if b.bidHeap.Len() == 0 {
		return 0, false
	}
	return b.bidHeap.peek(), true
}

func (b *OrderBook) bestAsk() (int64, bool) {
	if b.askHeap.Len() == 0 {
		return 0, false
	}
	return b.askHeap.peek(), true
}

func (b *OrderBook) addBid(p int64, o *Order) {
	if len(b.bids[p]) == 0 {
		heap.Push(b.bidHeap, p)
	}
	b.bids[p] = append(b.bids[p], o)
	b.orderIndex[o.ID] = p
}

func (b *OrderBook) addAsk(p int64, o *Order) {
	if len(b.asks[p]) == 0 {
		heap.Push(b.askHeap, p)
	}
	b.asks[p] = append(b.asks[p], o)
	b.orderIndex[o.ID] = p
}

// place matches the order against the opposite side and rests any limit
// remainder. Market remainders are discarded: market orders only consume
// liquidity that exists right now.
func (b *OrderBook) place(o *Order) []Trade {
	var trades []Trade

	if o.Side == Buy {
		for o.Remaining() > 0 {
			askP, ok := b.bestAsk()
			if !ok || (o.Type != Market && askP > o.Price) {
				break
			}
			level := b.asks[askP]
			if len(level) == 0 {
				delete(b.asks, askP)
				b.askHeap.remove(askP)
				continue
			}
			maker := level[0]
			match := min64(o.Remaining(), maker.Remaining())
			o.Filled += match
			maker.Filled += match
			trades = append(trades, Trade{
				Symbol:      b.symbol,
				BuyOrderID:  o.ID,
				SellOrderID: maker.ID,
				Price:       askP,
				Qty:         match,
				TakerSide:   Buy,
				ExecutedAt:  o.CreatedAt,
			})
			if maker.IsFilled() {
				b.asks[askP] = level[1:]
				delete(b.orderIndex, maker.ID)
				if len(b.asks[askP]) == 0 {
					delete(b.asks, askP)
					b.askHeap.remove(askP)
				}
			}
		}
		if o.Remaining() > 0 && o.Type == Limit {
			b.addBid(o.Price, o)
		}
	} else {
		for o.Remaining() > 0 {
			bidP, ok := b.bestBid()
			if !ok || (o.Type != Market && bidP < o.Price) {
				break
			}
			level := b.bids[bidP]
			if len(level) == 0 {
				delete(b.bids, bidP)
				b.bidHeap.remove(bidP)
				continue
			}
			maker := level[0]
			match := min64(o.Remaining(), maker.Remaining())
			o.Filled += match
			maker.Filled += match
			trades = append(trades, Trade{
				Symbol:      b.symbol,
				BuyOrderID:  maker.ID,
				SellOrderID: o.ID,
				Price:       bidP,
				Qty:         match,
				TakerSide:   Sell,
				ExecutedAt:  o.CreatedAt,
			})
			if maker.IsFilled() {
				b.bids[bidP] = level[1:]
				delete(b.orderIndex, maker.ID)
				if len(b.bids[bidP]) == 0 {
					delete(b.bids, bidP)
					b.bidHeap.remove(bidP)
				}
			}
		}
		if o.Remaining() > 0 && o.Type == Limit {
			b.addAsk(o.Price, o)
		}
	}

	return trades
}

// cancel removes a resting order. Already-matched quantity is unaffected.
func (b *OrderBook) cancel(id string) bool {
	price, ok := b.orderIndex[id]
	if !ok {
		return false
	}

	if arr, exists := b.bids[price]; exists {
		for i, o := range arr {
			if o.ID == id {
				b.bids[price] = append(arr[:i], arr[i+1:]...)
				if len(b.bids[price]) == 0 {
					delete(b.bids, price)
					b.bidHeap.remove(price)
				}
				delete(b.orderIndex, id)
				return true
			}
		}
	}

	if arr, exists := b.asks[price]; exists {
		for i, o := range arr {
			if o.ID == id {
				b.asks[price] = append(arr[:i], arr[i+1:]...)
				if len(b.asks[price]) == 0 {
					delete(b.asks, price)
					b.askHeap.remove(price)
				}
				delete(b.orderIndex, id)
				return true
			}
		}
	}

	return false
}

// depth aggregates remaining quantity per price level, bids high to low and
// asks low to high.
func (b *OrderBook) depth() (bids, asks []PriceLevel) {
	for price, orders := range b.bids {
		var total int64
		for _, o := range orders {
			total += o.Remaining()
		}
		if total > 0 {
			bids = append(bids, PriceLevel{Price: price, Qty: total})
		}
	}
	sort.Slice(bids, func(i, j int) bool { return bids[i].Price > bids[j].Price })

	for price, orders := range b.asks {
		var total int64
		for _, o := range orders {
			total += o.Remaining()
		}
		if total > 0 {
			asks = append(asks, PriceLevel{Price: price, Qty: total})
		}
	}
	sort.Slice(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })

	return bids, asks
}

// BookState is the raw serialized form of one symbol's book: order values
// in matching priority (price-major, FIFO within each level).
type BookState struct {
	Symbol string  `json:"symbol"`
	Bids   []Order `json:"bids"`
	Asks   []Order `json:"asks"`
}

func (b *OrderBook) state() BookState {
	st := BookState{Symbol: b.symbol}

	bidPrices := make([]int64, 0, len(b.bids))
	for p := range b.bids {
		bidPrices = append(bidPrices, p)
	}
	sort.Slice(bidPrices, func(i, j int) bool { return bidPrices[i] > bidPrices[j] })
	for _, p := range bidPrices {
		for _, o := range b.bids[p] {
			st.Bids = append(st.Bids, *o)
		}
	}

	askPrices := make([]int64, 0, len(b.asks))
	for p := range b.asks {
		askPrices = append(askPrices, p)
	}
	sort.Slice(askPrices, func(i, j int) bool { return askPrices[i] < askPrices[j] })
	for _, p := range askPrices {
		for _, o := range b.asks[p] {
			st.Asks = append(st.Asks, *o)
		}
	}

	return st
}

func restoreOrderBook(st BookState) *OrderBook {
	b := newOrderBook(st.Symbol)
	for i := range st.Bids {
		o := st.Bids[i]
		b.addBid(o.Price, &o)
	}
	for i := range st.Asks {
		o := st.Asks[i]
		b.addAsk(o.Price, &o)
	}
	return b
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
