package engine

import "container/heap"

// priceHeap tracks the occupied price levels for one side of a book so the
// best price is an O(1) peek. With asc set the lowest price sits on top
// (asks); otherwise the highest does (bids).
type priceHeap struct {
	prices []int64
	asc    bool
}

func newBidHeap() *priceHeap { return &priceHeap{} }
func newAskHeap() *priceHeap { return &priceHeap{asc: true} }

func (h *priceHeap) Len() int { return len(h.prices) }

func (h *priceHeap) Less(i, j int) bool {
	if h.asc {
		return h.prices[i] < h.prices[j]
	}
	return h.prices[i] > h.prices[j]
}

func (h *priceHeap) Swap(i, j int) { h.prices[i], h.prices[j] = h.prices[j], h.prices[i] }

func (h *priceHeap) Push(x interface{}) { h.prices = append(h.prices, x.(int64)) }

func (h *priceHeap) Pop() interface{} {
	old := h.prices
	n := len(old)
	x := old[n-1]
	h.prices = old[:n-1]
	return x
}

// peek returns the best price. Callers must check Len first.
func (h *priceHeap) peek() int64 { return h.prices[0] }

// remove drops one occurrence of price, wherever it sits in the heap.
func (h *priceHeap) remove(price int64) {
	for i := range h.prices {
		if h.prices[i] == price {
			heap.Remove(h, i)
			return
		}
	}
}
