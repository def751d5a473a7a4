package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendermint/tendermint/crypto/ed25519"

	"auctionbft/types"
)

const testPool = types.PoolID("ETH/USDC")

func price(p uint64) uint64 { return p * types.PricePrecision }

func limitOrder(isBid bool, p, quantity uint64, kind types.OrderKind) types.Order {
	return types.Order{
		Pool:     testPool,
		IsBid:    isBid,
		Kind:     kind,
		Price:    price(p),
		Quantity: quantity,
		Owner:    types.Address(ed25519.GenPrivKey().PubKey().Address()),
	}
}

func solve(t *testing.T, book *OrderBook) (types.PoolSolution, EndReason) {
	t.Helper()
	require.NoError(t, book.Validate())
	m := NewVolumeFillMatcher(book)
	reason := m.Fill()
	return m.Solution(nil), reason
}

func TestEmptyBook(t *testing.T) {
	sol, reason := solve(t, NewOrderBook(testPool, nil, nil, nil))

	assert.Equal(t, NoMoreBids, reason)
	assert.Empty(t, sol.Limit)
	assert.Nil(t, sol.AMM)
	assert.Zero(t, sol.ClearingPrice)
}

func TestExactCross(t *testing.T) {
	bid := limitOrder(true, 100, 10, types.StandingOrder)
	ask := limitOrder(false, 100, 10, types.StandingOrder)
	book := NewOrderBook(testPool, nil, []types.Order{bid}, []types.Order{ask})

	m := NewVolumeFillMatcher(book)
	reason := m.Fill()
	sol := m.Solution(nil)

	// both sides annihilated; the next iteration finds no bids left
	assert.Equal(t, NoMoreBids, reason)
	assert.Equal(t, price(100), sol.ClearingPrice)
	require.Len(t, sol.Limit, 2)
	assert.Equal(t, types.CompleteFill, sol.Limit[0].State.Kind)
	assert.Equal(t, types.CompleteFill, sol.Limit[1].State.Kind)
	assert.Equal(t, uint64(10), m.stats.totalVolume)
}

func TestPartialRemainder(t *testing.T) {
	bid := limitOrder(true, 100, 10, types.StandingOrder)
	ask := limitOrder(false, 100, 4, types.StandingOrder)
	book := NewOrderBook(testPool, nil, []types.Order{bid}, []types.Order{ask})

	sol, reason := solve(t, book)

	assert.Equal(t, NoMoreAsks, reason)
	require.Len(t, sol.Limit, 2)
	// bids come before asks in the outcome list
	assert.Equal(t, types.OrderFillState{Kind: types.PartialFill, Filled: 4}, sol.Limit[0].State)
	assert.Equal(t, types.CompleteFill, sol.Limit[1].State.Kind)
	assert.Equal(t, price(100), sol.ClearingPrice)
}

func TestKillablePartialRolledBack(t *testing.T) {
	// a carried killable remainder is not a valid stopping point: the last
	// checkpoint has the killable bid untouched
	bid := limitOrder(true, 100, 10, types.KillableOrder)
	ask := limitOrder(false, 100, 4, types.StandingOrder)
	book := NewOrderBook(testPool, nil, []types.Order{bid}, []types.Order{ask})

	sol, _ := solve(t, book)

	require.Len(t, sol.Limit, 2)
	assert.Equal(t, types.Unfilled, sol.Limit[0].State.Kind)
	assert.Equal(t, types.Unfilled, sol.Limit[1].State.Kind)
	assert.Zero(t, sol.ClearingPrice)
}

func TestNoCross(t *testing.T) {
	bid := limitOrder(true, 99, 10, types.StandingOrder)
	ask := limitOrder(false, 101, 10, types.StandingOrder)
	book := NewOrderBook(testPool, nil, []types.Order{bid}, []types.Order{ask})

	sol, reason := solve(t, book)

	assert.Equal(t, NoLongerCross, reason)
	for _, outcome := range sol.Limit {
		assert.Equal(t, types.Unfilled, outcome.State.Kind)
	}
}

func TestMidpointPriceOnEqualQuantities(t *testing.T) {
	bid := limitOrder(true, 102, 10, types.StandingOrder)
	ask := limitOrder(false, 100, 10, types.StandingOrder)
	book := NewOrderBook(testPool, nil, []types.Order{bid}, []types.Order{ask})

	sol, _ := solve(t, book)
	assert.Equal(t, price(101), sol.ClearingPrice)
}

func TestConsumedSidePrice(t *testing.T) {
	// ask fully consumed: the step settles at the ask's price
	bid := limitOrder(true, 102, 10, types.StandingOrder)
	ask := limitOrder(false, 100, 4, types.StandingOrder)
	book := NewOrderBook(testPool, nil, []types.Order{bid}, []types.Order{ask})

	sol, _ := solve(t, book)
	assert.Equal(t, price(100), sol.ClearingPrice)
}

func TestMultiLevelBook(t *testing.T) {
	bids := []types.Order{
		limitOrder(true, 101, 5, types.StandingOrder),
		limitOrder(true, 100, 5, types.StandingOrder),
		limitOrder(true, 98, 5, types.StandingOrder),
	}
	asks := []types.Order{
		limitOrder(false, 99, 6, types.StandingOrder),
		limitOrder(false, 100, 4, types.StandingOrder),
	}
	book := NewOrderBook(testPool, nil, bids, asks)

	m := NewVolumeFillMatcher(book)
	reason := m.Fill()
	sol := m.Solution(nil)

	assert.Equal(t, NoMoreAsks, reason)
	require.Len(t, sol.Limit, 5)
	// 101-bid filled 5 against the 99-ask, 100-bid fills the remaining 1 and
	// then 4 from the 100-ask
	assert.Equal(t, types.CompleteFill, sol.Limit[0].State.Kind)
	assert.Equal(t, types.CompleteFill, sol.Limit[1].State.Kind)
	assert.Equal(t, types.Unfilled, sol.Limit[2].State.Kind)
	assert.Equal(t, types.CompleteFill, sol.Limit[3].State.Kind)
	assert.Equal(t, types.CompleteFill, sol.Limit[4].State.Kind)
	assert.Equal(t, uint64(10), m.stats.totalVolume)
}

func TestDeterminism(t *testing.T) {
	bids := []types.Order{
		limitOrder(true, 101, 7, types.StandingOrder),
		limitOrder(true, 100, 3, types.KillableOrder),
		limitOrder(true, 99, 9, types.StandingOrder),
	}
	asks := []types.Order{
		limitOrder(false, 98, 5, types.StandingOrder),
		limitOrder(false, 100, 8, types.StandingOrder),
	}
	amm := NewAmmSnapshot(1_000_000, 1_000_000*100)

	solveOnce := func() (types.PoolSolution, EndReason) {
		book := NewOrderBook(testPool, amm.Copy(), bids, asks)
		m := NewVolumeFillMatcher(book)
		reason := m.Fill()
		return m.Solution(nil), reason
	}

	solA, reasonA := solveOnce()
	solB, reasonB := solveOnce()
	assert.Equal(t, reasonA, reasonB)
	assert.True(t, solA.Equal(&solB))
}

func TestTerminationBound(t *testing.T) {
	bids := []types.Order{
		limitOrder(true, 105, 13, types.StandingOrder),
		limitOrder(true, 104, 2, types.StandingOrder),
		limitOrder(true, 103, 7, types.StandingOrder),
		limitOrder(true, 101, 1, types.StandingOrder),
	}
	asks := []types.Order{
		limitOrder(false, 100, 4, types.StandingOrder),
		limitOrder(false, 102, 9, types.StandingOrder),
		limitOrder(false, 104, 11, types.StandingOrder),
	}
	book := NewOrderBook(testPool, nil, bids, asks)

	m := NewVolumeFillMatcher(book)
	m.Fill()
	assert.LessOrEqual(t, m.Steps(), len(bids)+len(asks)+1)
}

func TestTerminationBoundWithCurve(t *testing.T) {
	// the curve (spot 80) interposes before each resting ask; every sweep to
	// the next ask price folds into the step that consumes that ask
	bids := []types.Order{
		limitOrder(true, 100, 200_000, types.StandingOrder),
	}
	asks := []types.Order{
		limitOrder(false, 90, 1, types.StandingOrder),
		limitOrder(false, 95, 1, types.StandingOrder),
	}
	amm := NewAmmSnapshot(1_000_000, 1_000_000*80)
	book := NewOrderBook(testPool, amm, bids, asks)

	m := NewVolumeFillMatcher(book)
	m.Fill()
	sol := m.Solution(nil)

	assert.LessOrEqual(t, m.Steps(), len(bids)+len(asks)+1)
	require.Len(t, sol.Limit, 3)
	assert.Equal(t, types.CompleteFill, sol.Limit[1].State.Kind)
	assert.Equal(t, types.CompleteFill, sol.Limit[2].State.Kind)
	require.NotNil(t, sol.AMM)
	assert.False(t, sol.AMM.IsBid)
}

func TestBookSortedness(t *testing.T) {
	bids := []types.Order{
		limitOrder(true, 99, 1, types.StandingOrder),
		limitOrder(true, 101, 1, types.StandingOrder),
		limitOrder(true, 100, 1, types.StandingOrder),
	}
	asks := []types.Order{
		limitOrder(false, 103, 1, types.StandingOrder),
		limitOrder(false, 102, 1, types.StandingOrder),
	}
	book := NewOrderBook(testPool, nil, bids, asks)
	require.NoError(t, book.Validate())

	assert.Equal(t, price(101), book.Bids()[0].Price)
	assert.Equal(t, price(99), book.Bids()[2].Price)
	assert.Equal(t, price(102), book.Asks()[0].Price)
}

func TestAmmAbsorbsAsk(t *testing.T) {
	// no bids at all: the curve (spot 100) buys the 99-ask
	ask := limitOrder(false, 99, 10, types.StandingOrder)
	amm := NewAmmSnapshot(1_000_000, 1_000_000*100)
	book := NewOrderBook(testPool, amm, nil, []types.Order{ask})

	m := NewVolumeFillMatcher(book)
	reason := m.Fill()
	sol := m.Solution(nil)

	// the ask is absorbed, then both candidates are AMM
	assert.Equal(t, BothSidesAMM, reason)
	require.Len(t, sol.Limit, 1)
	assert.Equal(t, types.CompleteFill, sol.Limit[0].State.Kind)
	require.NotNil(t, sol.AMM)
	assert.True(t, sol.AMM.IsBid)
	assert.Equal(t, uint64(10), sol.AMM.Base)
}

func TestBothSidesAMMOnEmptyBookWithCurve(t *testing.T) {
	amm := NewAmmSnapshot(1_000_000, 1_000_000*100)
	_, reason := solve(t, NewOrderBook(testPool, amm, nil, nil))
	assert.Equal(t, BothSidesAMM, reason)
}
