package orderpool

import (
	"auctionbft/types"
)

// OrderPool holds submitted orders between rounds. It is shared between the
// rpc surface (writes) and the consensus state machine (reads/removals), so
// implementations synchronize internally.
type OrderPool interface {
	// AddOrder admits a new order into the pool.
	AddOrder(order types.Order, info OrderInfo) error

	// ReapEligible returns the orders eligible for the round at the given
	// height: limit orders and searcher orders, keyed per pool. The returned
	// slices are copies.
	ReapEligible(height uint64) (limit, searcher map[types.PoolID][]types.Order)

	// Update removes orders resolved by the round's solutions and drops
	// killable orders the round left unfilled.
	// NOTE: caller is responsible for Lock/Unlock.
	Update(height uint64, solutions []types.PoolSolution) error

	// Requeue reinstates orders after a chain reorganization.
	Requeue(orders []types.Order) error

	// Lock must be held around Update.
	Lock()
	Unlock()

	// Flush drops every order.
	Flush()

	Size() int
}

// PreCheckFunc runs admission checks before an order enters the pool.
type PreCheckFunc func(types.Order) error

// OrderInfo are parameters that get passed when attempting to add an order to
// the pool.
type OrderInfo struct {
	// SenderID is the internal peer ID used to identify the sender, storing 2
	// bytes with each order instead of the full peer identity.
	SenderID uint16
}
