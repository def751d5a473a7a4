package matching

import (
	"fmt"
	"sort"

	"auctionbft/types"
)

// OrderBook is the scratch matching input for one pool: bids sorted
// descending by price (volume, then id tie-break), asks ascending. It is
// built once per solve attempt from the quorum-filtered order union and
// discarded with the matcher.
type OrderBook struct {
	pool types.PoolID
	amm  *AmmSnapshot
	bids []types.Order
	asks []types.Order
}

// NewOrderBook partitions nothing: callers pass bids and asks already split.
// Both sides are copied and canonically sorted here so the book's sortedness
// invariant holds by construction.
func NewOrderBook(pool types.PoolID, amm *AmmSnapshot, bids, asks []types.Order) *OrderBook {
	b := make([]types.Order, len(bids))
	copy(b, bids)
	a := make([]types.Order, len(asks))
	copy(a, asks)
	sortBids(b)
	sortAsks(a)
	return &OrderBook{pool: pool, amm: amm, bids: b, asks: a}
}

func sortBids(orders []types.Order) {
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].Price != orders[j].Price {
			return orders[i].Price > orders[j].Price
		}
		if orders[i].Quantity != orders[j].Quantity {
			return orders[i].Quantity > orders[j].Quantity
		}
		return orders[i].ID().String() < orders[j].ID().String()
	})
}

func sortAsks(orders []types.Order) {
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].Price != orders[j].Price {
			return orders[i].Price < orders[j].Price
		}
		if orders[i].Quantity != orders[j].Quantity {
			return orders[i].Quantity > orders[j].Quantity
		}
		return orders[i].ID().String() < orders[j].ID().String()
	})
}

func (b *OrderBook) Pool() types.PoolID  { return b.pool }
func (b *OrderBook) AMM() *AmmSnapshot   { return b.amm }
func (b *OrderBook) Bids() []types.Order { return b.bids }
func (b *OrderBook) Asks() []types.Order { return b.asks }

// Validate checks the sortedness invariant: bid prices non-increasing, ask
// prices non-decreasing.
func (b *OrderBook) Validate() error {
	for i := 1; i < len(b.bids); i++ {
		if b.bids[i].Price > b.bids[i-1].Price {
			return fmt.Errorf("bid sequence increases at index %d", i)
		}
	}
	for i := 1; i < len(b.asks); i++ {
		if b.asks[i].Price < b.asks[i-1].Price {
			return fmt.Errorf("ask sequence decreases at index %d", i)
		}
	}
	return nil
}
