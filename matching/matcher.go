package matching

import (
	"fmt"

	"auctionbft/types"
)

// EndReason says why a volume-fill pass stopped. Every pass ends with exactly
// one of these.
type EndReason uint8

const (
	NoMoreBids = EndReason(0x01)
	NoMoreAsks = EndReason(0x02)
	// BothSidesAMM: both candidates resolved to synthetic AMM orders, so no
	// genuine counterparty remains.
	BothSidesAMM  = EndReason(0x03)
	NoLongerCross = EndReason(0x04)
	ZeroQuantity  = EndReason(0x05)
)

func (r EndReason) String() string {
	switch r {
	case NoMoreBids:
		return "NoMoreBids"
	case NoMoreAsks:
		return "NoMoreAsks"
	case BothSidesAMM:
		return "BothSidesAMM"
	case NoLongerCross:
		return "NoLongerCross"
	case ZeroQuantity:
		return "ZeroQuantity"
	default:
		return fmt.Sprintf("UnknownEndReason(%d)", r)
	}
}

// orderRef is one side's candidate for a matching step: a resting book order,
// the carried partial fragment of one, or a synthetic AMM counter-order. AMM
// refs carry no resting-order identity and never appear in the outcome list.
type orderRef struct {
	isAMM    bool
	isBid    bool
	price    uint64
	quantity uint64
	index    int // book index, valid when !isAMM
	kind     types.OrderKind
	// bookBound is the next same-side resting price an AMM ref must not move
	// past (0 when the side has no resting orders left)
	bookBound uint64
}

type partialFragment struct {
	isBid     bool
	index     int
	kind      types.OrderKind
	price     uint64
	remaining uint64
}

type solveStats struct {
	totalVolume uint64
	ammVolume   uint64
	price       uint64
	priceSet    bool
}

// VolumeFillMatcher runs a single greedy price-time crossing pass over one
// book, interleaving the AMM curve when it prices better than the next
// resting order. The pass is deterministic: a fixed book solves to the same
// PoolSolution on every validator.
type VolumeFillMatcher struct {
	book        *OrderBook
	bidIdx      int
	askIdx      int
	bidOutcomes []types.OrderFillState
	askOutcomes []types.OrderFillState
	amm         *AmmSnapshot
	ammOutcome  *types.NetAmmOrder
	partial     *partialFragment
	stats       solveStats
	steps       int

	// checkpoint is the last structurally consistent state, restored before
	// assembling the solution. Flat: a checkpoint never contains another.
	checkpoint *matcherSnapshot
}

type matcherSnapshot struct {
	bidIdx      int
	askIdx      int
	bidOutcomes []types.OrderFillState
	askOutcomes []types.OrderFillState
	amm         *AmmSnapshot
	ammOutcome  *types.NetAmmOrder
	partial     *partialFragment
	stats       solveStats
}

func NewVolumeFillMatcher(book *OrderBook) *VolumeFillMatcher {
	m := &VolumeFillMatcher{
		book:        book,
		bidOutcomes: make([]types.OrderFillState, len(book.bids)),
		askOutcomes: make([]types.OrderFillState, len(book.asks)),
		amm:         book.amm.Copy(),
	}
	for i := range m.bidOutcomes {
		m.bidOutcomes[i] = types.UnfilledState()
	}
	for i := range m.askOutcomes {
		m.askOutcomes[i] = types.UnfilledState()
	}
	// the initial state is a valid stopping point
	m.saveCheckpoint()
	return m
}

func (m *VolumeFillMatcher) saveCheckpoint() {
	cp := &matcherSnapshot{
		bidIdx:      m.bidIdx,
		askIdx:      m.askIdx,
		bidOutcomes: append([]types.OrderFillState(nil), m.bidOutcomes...),
		askOutcomes: append([]types.OrderFillState(nil), m.askOutcomes...),
		amm:         m.amm.Copy(),
		stats:       m.stats,
	}
	if m.ammOutcome != nil {
		out := *m.ammOutcome
		cp.ammOutcome = &out
	}
	if m.partial != nil {
		frag := *m.partial
		cp.partial = &frag
	}
	m.checkpoint = cp
}

func (m *VolumeFillMatcher) restoreCheckpoint() {
	cp := m.checkpoint
	if cp == nil {
		return
	}
	m.bidIdx = cp.bidIdx
	m.askIdx = cp.askIdx
	m.bidOutcomes = cp.bidOutcomes
	m.askOutcomes = cp.askOutcomes
	m.amm = cp.amm
	m.ammOutcome = cp.ammOutcome
	m.partial = cp.partial
	m.stats = cp.stats
	m.checkpoint = nil
}

// Steps reports how many matching steps the pass took.
func (m *VolumeFillMatcher) Steps() int { return m.steps }

// Fill runs the pass to termination. A counted step consumes at least one
// resting order: a curve sweep that only runs to the next resting price on
// its own side folds into the same step as the order it uncovers, keeping the
// pass within len(bids)+len(asks)+1 steps.
func (m *VolumeFillMatcher) Fill() EndReason {
	for {
		m.steps++
		for {
			reason, done, swept := m.matchOnce()
			if done {
				return reason
			}
			if !swept {
				break
			}
		}
	}
}

// matchOnce matches one pair of candidates. done carries the end reason;
// swept reports a curve fill that stopped at the same-side book bound rather
// than the opposing price.
func (m *VolumeFillMatcher) matchOnce() (EndReason, bool, bool) {
	bid, ok := m.side(true)
	if !ok {
		return NoMoreBids, true, false
	}
	ask, ok := m.side(false)
	if !ok {
		return NoMoreAsks, true, false
	}

	if bid.isAMM && ask.isAMM {
		return BothSidesAMM, true, false
	}
	if ask.price > bid.price {
		return NoLongerCross, true, false
	}

	// AMM refs only offer what the curve can profitably trade at the
	// opposing price; resting orders ignore it
	askQ := m.refQuantity(ask, bid.price)
	bidQ := m.refQuantity(bid, ask.price)
	if askQ == 0 || bidQ == 0 {
		return ZeroQuantity, true, false
	}

	matched := askQ
	if bidQ < matched {
		matched = bidQ
	}
	m.stats.totalVolume += matched

	if bid.isAMM || ask.isAMM {
		dBase, dQuote := m.amm.Fill(matched, bid.isAMM)
		m.stats.ammVolume += matched
		if m.ammOutcome == nil {
			m.ammOutcome = &types.NetAmmOrder{IsBid: bid.isAMM}
		}
		m.ammOutcome.AddQuantity(dBase, dQuote)
	}

	switch {
	case bidQ == askQ:
		// annihilation: settle at the midpoint of the crossing prices
		// (bid >= ask here, so this cannot overflow)
		m.setPrice(ask.price + (bid.price-ask.price)/2)
		if !ask.isAMM {
			m.askOutcomes[ask.index] = m.askOutcomes[ask.index].Complete()
		}
		if !bid.isAMM {
			m.bidOutcomes[bid.index] = m.bidOutcomes[bid.index].Complete()
		}
		m.partial = nil
	case bidQ > askQ:
		// ask fully consumed, remainder carried on the bid
		m.setPrice(ask.price)
		if !ask.isAMM {
			m.askOutcomes[ask.index] = m.askOutcomes[ask.index].Complete()
		}
		if !bid.isAMM {
			m.bidOutcomes[bid.index] = m.bidOutcomes[bid.index].WithPartial(matched)
			m.partial = &partialFragment{
				isBid:     true,
				index:     bid.index,
				kind:      bid.kind,
				price:     bid.price,
				remaining: bidQ - matched,
			}
		} else {
			m.partial = nil
		}
	default:
		// bid fully consumed, remainder carried on the ask
		m.setPrice(bid.price)
		if !bid.isAMM {
			m.bidOutcomes[bid.index] = m.bidOutcomes[bid.index].Complete()
		}
		if !ask.isAMM {
			m.askOutcomes[ask.index] = m.askOutcomes[ask.index].WithPartial(matched)
			m.partial = &partialFragment{
				isBid:     false,
				index:     ask.index,
				kind:      ask.kind,
				price:     ask.price,
				remaining: askQ - matched,
			}
		} else {
			m.partial = nil
		}
	}

	// a carried remainder is a valid stopping point only for orders that
	// may rest partially filled
	if m.partial == nil || m.partial.kind == types.StandingOrder {
		m.saveCheckpoint()
	}

	swept := (ask.isAMM && matched == askQ && ask.bookBound != 0 && ask.bookBound < bid.price) ||
		(bid.isAMM && matched == bidQ && bid.bookBound > ask.price)
	return 0, false, swept
}

// side returns the next candidate for one side: the carried partial fragment
// if it belongs to this side, otherwise the next unfilled resting order or a
// synthetic AMM order when the curve prices strictly better.
func (m *VolumeFillMatcher) side(isBid bool) (orderRef, bool) {
	if m.partial != nil && m.partial.isBid == isBid {
		p := m.partial
		return orderRef{
			isBid:    isBid,
			price:    p.price,
			quantity: p.remaining,
			index:    p.index,
			kind:     p.kind,
		}, true
	}

	var (
		book     []types.Order
		outcomes []types.OrderFillState
		idx      int
	)
	if isBid {
		book, outcomes, idx = m.book.bids, m.bidOutcomes, m.bidIdx
	} else {
		book, outcomes, idx = m.book.asks, m.askOutcomes, m.askIdx
	}
	for idx < len(outcomes) && outcomes[idx].Kind != types.Unfilled {
		idx++
	}

	if m.amm != nil {
		spot := m.amm.Price()
		better := idx >= len(book) ||
			(isBid && spot > book[idx].Price) ||
			(!isBid && spot < book[idx].Price)
		if better && spot > 0 {
			ref := orderRef{isAMM: true, isBid: isBid, price: spot}
			if idx < len(book) {
				ref.bookBound = book[idx].Price
			}
			// cursor stays: the resting order is still next after the AMM
			return ref, true
		}
	}

	if idx >= len(book) {
		return orderRef{}, false
	}
	if isBid {
		m.bidIdx = idx
	} else {
		m.askIdx = idx
	}
	o := book[idx]
	return orderRef{
		isBid:    isBid,
		price:    o.Price,
		quantity: o.Quantity,
		index:    idx,
		kind:     o.Kind,
	}, true
}

func (m *VolumeFillMatcher) refQuantity(ref orderRef, opposingPrice uint64) uint64 {
	if !ref.isAMM {
		return ref.quantity
	}
	target := opposingPrice
	if ref.isBid {
		// buying base: price falls, stop at the higher bound
		if ref.bookBound > target {
			target = ref.bookBound
		}
		return m.amm.QuantityToPrice(target, true)
	}
	// selling base: price rises, stop at the lower bound
	if ref.bookBound != 0 && ref.bookBound < target {
		target = ref.bookBound
	}
	return m.amm.QuantityToPrice(target, false)
}

func (m *VolumeFillMatcher) setPrice(price uint64) {
	m.stats.price = price
	m.stats.priceSet = true
}

// Solution restores the last checkpoint and assembles the pool's solution:
// every resting order's identifier zipped with its final fill state, bids
// before asks.
func (m *VolumeFillMatcher) Solution(searcher *types.Order) types.PoolSolution {
	m.restoreCheckpoint()

	limit := make([]types.OrderOutcome, 0, len(m.book.bids)+len(m.book.asks))
	for i := range m.book.bids {
		limit = append(limit, types.OrderOutcome{
			ID:    m.book.bids[i].ID(),
			State: m.bidOutcomes[i],
		})
	}
	for i := range m.book.asks {
		limit = append(limit, types.OrderOutcome{
			ID:    m.book.asks[i].ID(),
			State: m.askOutcomes[i],
		})
	}

	sol := types.PoolSolution{
		Pool:          m.book.pool,
		ClearingPrice: m.stats.price,
		AMM:           m.ammOutcome,
		Limit:         limit,
	}
	if searcher != nil {
		sol.SearcherID = searcher.ID()
	}
	return sol
}
