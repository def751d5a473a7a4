package types

import (
	"bytes"
	"fmt"
	"sort"
)

type OrderFillKind uint8

const (
	Unfilled     = OrderFillKind(0x01)
	PartialFill  = OrderFillKind(0x02)
	CompleteFill = OrderFillKind(0x03)
)

func (k OrderFillKind) String() string {
	switch k {
	case Unfilled:
		return "Unfilled"
	case PartialFill:
		return "PartialFill"
	case CompleteFill:
		return "CompleteFill"
	default:
		return fmt.Sprintf("UnknownFillKind(%d)", k)
	}
}

// OrderFillState is the per-order outcome of a solve. CompleteFill is
// terminal; a PartialFill may be refined to CompleteFill by a later match in
// the same pass but never regresses to Unfilled.
type OrderFillState struct {
	Kind   OrderFillKind `json:"kind"`
	Filled uint64        `json:"filled"` // PartialFill only
}

func UnfilledState() OrderFillState {
	return OrderFillState{Kind: Unfilled}
}

// WithPartial accumulates a partial fill of the given quantity onto the
// state. A CompleteFill is returned unchanged.
func (s OrderFillState) WithPartial(quantity uint64) OrderFillState {
	switch s.Kind {
	case Unfilled:
		return OrderFillState{Kind: PartialFill, Filled: quantity}
	case PartialFill:
		return OrderFillState{Kind: PartialFill, Filled: s.Filled + quantity}
	default:
		return s
	}
}

// Complete marks the state completely filled.
func (s OrderFillState) Complete() OrderFillState {
	return OrderFillState{Kind: CompleteFill}
}

func (s OrderFillState) Equal(other OrderFillState) bool {
	return s.Kind == other.Kind && s.Filled == other.Filled
}

func (s OrderFillState) String() string {
	if s.Kind == PartialFill {
		return fmt.Sprintf("PartialFill(%d)", s.Filled)
	}
	return s.Kind.String()
}

// OrderOutcome pairs a resting order with its final fill state.
type OrderOutcome struct {
	ID    OrderID        `json:"id"`
	State OrderFillState `json:"state"`
}

func (o OrderOutcome) Equal(other OrderOutcome) bool {
	return bytes.Equal(o.ID, other.ID) && o.State.Equal(other.State)
}

// NetAmmOrder is the net quantity a solve traded against the AMM curve,
// direction-tagged: IsBid means the AMM acted on the bid side (bought base).
type NetAmmOrder struct {
	IsBid bool   `json:"is_bid"`
	Base  uint64 `json:"base"`
	Quote uint64 `json:"quote"`
}

func (n *NetAmmOrder) Equal(other *NetAmmOrder) bool {
	if n == nil || other == nil {
		return n == other
	}
	return n.IsBid == other.IsBid && n.Base == other.Base && n.Quote == other.Quote
}

// AddQuantity accumulates further volume traded against the curve.
func (n *NetAmmOrder) AddQuantity(base, quote uint64) {
	n.Base += base
	n.Quote += quote
}

// PoolSolution is the clearing result for one pool: the uniform clearing
// price, the net AMM trade, the winning searcher order (if any) and the fill
// state of every resting order in bid-then-ask book order.
type PoolSolution struct {
	Pool          PoolID         `json:"pool"`
	ClearingPrice uint64         `json:"clearing_price"`
	AMM           *NetAmmOrder   `json:"amm"`
	SearcherID    OrderID        `json:"searcher_id"`
	Limit         []OrderOutcome `json:"limit"`
}

func (sol *PoolSolution) Equal(other *PoolSolution) bool {
	if sol.Pool != other.Pool || sol.ClearingPrice != other.ClearingPrice {
		return false
	}
	if !sol.AMM.Equal(other.AMM) {
		return false
	}
	if !bytes.Equal(sol.SearcherID, other.SearcherID) {
		return false
	}
	if len(sol.Limit) != len(other.Limit) {
		return false
	}
	for i := range sol.Limit {
		if !sol.Limit[i].Equal(other.Limit[i]) {
			return false
		}
	}
	return true
}

func (sol *PoolSolution) String() string {
	return fmt.Sprintf("PoolSolution{%s ucp=%d orders=%d}", sol.Pool, sol.ClearingPrice, len(sol.Limit))
}

// SortSolutions orders solutions by their canonical key (pool id). Both the
// leader's claimed solutions and a verifier's recomputed ones are sorted this
// way before the element-wise comparison.
func SortSolutions(sols []PoolSolution) {
	sort.Slice(sols, func(i, j int) bool { return sols[i].Pool < sols[j].Pool })
}

// SolutionsEqual compares two canonically sorted solution lists element-wise.
func SolutionsEqual(a, b []PoolSolution) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(&b[i]) {
			return false
		}
	}
	return true
}
