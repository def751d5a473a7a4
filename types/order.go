package types

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"

	tmjson "github.com/tendermint/tendermint/libs/json"
)

// PricePrecision is the fixed-point scale of prices: a price of 1.0 quote per
// base is stored as 1e8.
const PricePrecision = uint64(100_000_000)

type OrderKind uint8

const (
	// StandingOrder survives an unmatched round and may be carried into the
	// next one.
	StandingOrder = OrderKind(0x01)
	// KillableOrder is cancelled when the round it entered produces no fill
	// for it.
	KillableOrder = OrderKind(0x02)
	// SearcherOrder is a top-of-block order competing on tip; exactly one per
	// pool wins a round.
	SearcherOrder = OrderKind(0x03)
)

func (k OrderKind) String() string {
	switch k {
	case StandingOrder:
		return "Standing"
	case KillableOrder:
		return "Killable"
	case SearcherOrder:
		return "Searcher"
	default:
		return fmt.Sprintf("UnknownKind(%d)", k)
	}
}

// Order is one signed user intent: buy (bid) or sell (ask) Quantity units of
// the pool's base asset at a limit Price (quote per base, scaled by
// PricePrecision). Searcher orders additionally carry a Tip bid for
// top-of-block priority.
type Order struct {
	Pool     PoolID    `json:"pool"`
	IsBid    bool      `json:"is_bid"`
	Kind     OrderKind `json:"kind"`
	Price    uint64    `json:"price"`
	Quantity uint64    `json:"quantity"`
	Tip      uint64    `json:"tip"`
	Nonce    uint64    `json:"nonce"`
	Owner    Address   `json:"owner"`
}

func (o *Order) ValidateBasic() error {
	if o.Pool == "" {
		return errors.New("order without pool")
	}
	if o.Quantity == 0 {
		return errors.New("order with zero quantity")
	}
	switch o.Kind {
	case StandingOrder, KillableOrder:
		if o.Price == 0 {
			return errors.New("limit order with zero price")
		}
		if o.Tip != 0 {
			return errors.New("limit order with tip")
		}
	case SearcherOrder:
	default:
		return fmt.Errorf("unknown order kind %d", o.Kind)
	}
	return nil
}

// ID returns the order's content hash. Two orders are the same order iff
// their IDs are equal.
func (o *Order) ID() OrderID {
	bz, err := tmjson.Marshal(o)
	if err != nil {
		panic(err)
	}
	h := sha256.Sum256(bz)
	return h[:]
}

func (o *Order) String() string {
	side := "ask"
	if o.IsBid {
		side = "bid"
	}
	return fmt.Sprintf("Order{%s %s %v %d@%d}", o.Pool, side, o.Kind, o.Quantity, o.Price)
}

// SortOrders orders a slice canonically by order ID.
func SortOrders(orders []Order) {
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].ID().String() < orders[j].ID().String()
	})
}

// PoolOrders is the canonical flattened form of one pool's entry in an order
// map: used wherever pool-keyed maps must serialize deterministically.
type PoolOrders struct {
	Pool   PoolID  `json:"pool"`
	Orders []Order `json:"orders"`
}

// CanonicalPoolOrders flattens a pool-keyed order map into a slice sorted by
// pool id, each pool's orders sorted by order ID.
func CanonicalPoolOrders(m map[PoolID][]Order) []PoolOrders {
	pools := make([]PoolID, 0, len(m))
	for pool := range m {
		pools = append(pools, pool)
	}
	sort.Slice(pools, func(i, j int) bool { return pools[i] < pools[j] })

	out := make([]PoolOrders, 0, len(pools))
	for _, pool := range pools {
		orders := make([]Order, len(m[pool]))
		copy(orders, m[pool])
		SortOrders(orders)
		out = append(out, PoolOrders{Pool: pool, Orders: orders})
	}
	return out
}
