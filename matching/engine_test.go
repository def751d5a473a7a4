package matching

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auctionbft/types"
)

func waitReady(t *testing.T, fut *SolveFuture) *SolveResult {
	t.Helper()
	select {
	case <-fut.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("solve did not complete")
	}
	res, ok := fut.Result()
	require.True(t, ok)
	return res
}

func TestManagerSolveSortsSolutions(t *testing.T) {
	mm := NewMatchingManager()

	limit := map[types.PoolID][]types.Order{
		"B/C": {limitOrder(true, 100, 5, types.StandingOrder)},
		"A/B": {limitOrder(true, 100, 5, types.StandingOrder)},
	}
	res := waitReady(t, mm.Solve(limit, nil, nil))

	require.Len(t, res.Solutions, 2)
	assert.Equal(t, types.PoolID("A/B"), res.Solutions[0].Pool)
	assert.Equal(t, types.PoolID("B/C"), res.Solutions[1].Pool)
	assert.Equal(t, NoMoreAsks, res.Reasons["A/B"])
}

func TestManagerSolveMatchesPools(t *testing.T) {
	mm := NewMatchingManager()

	limit := map[types.PoolID][]types.Order{
		testPool: {
			limitOrder(true, 100, 10, types.StandingOrder),
			limitOrder(false, 100, 10, types.StandingOrder),
		},
	}
	res := waitReady(t, mm.Solve(limit, nil, nil))

	require.Len(t, res.Solutions, 1)
	sol := res.Solutions[0]
	assert.Equal(t, price(100), sol.ClearingPrice)
	for _, outcome := range sol.Limit {
		assert.Equal(t, types.CompleteFill, outcome.State.Kind)
	}
}

func TestManagerSolveSearcherOnlyPool(t *testing.T) {
	mm := NewMatchingManager()

	// a pool with no limit orders and no curve still reports its searcher
	// winner
	tob := types.Order{Pool: testPool, IsBid: true, Kind: types.SearcherOrder, Quantity: 3, Tip: 50}
	searcher := map[types.PoolID][]types.Order{testPool: {tob}}
	res := waitReady(t, mm.Solve(nil, searcher, nil))

	require.Len(t, res.Solutions, 1)
	sol := res.Solutions[0]
	assert.Equal(t, testPool, sol.Pool)
	assert.Empty(t, sol.Limit)
	assert.Equal(t, tob.ID(), sol.SearcherID)
	assert.Equal(t, NoMoreBids, res.Reasons[testPool])
}

func TestSolveFutureCancel(t *testing.T) {
	fut := newSolveFuture()
	fut.Cancel()
	fut.complete(&SolveResult{})

	assert.False(t, fut.Ready())
	_, ok := fut.Result()
	assert.False(t, ok)
	select {
	case <-fut.Done():
		t.Fatal("canceled future became done")
	default:
	}
}

func TestSelectSearcher(t *testing.T) {
	assert.Nil(t, SelectSearcher(nil))

	low := types.Order{Pool: testPool, IsBid: true, Kind: types.SearcherOrder, Quantity: 1, Tip: 10}
	high := types.Order{Pool: testPool, IsBid: true, Kind: types.SearcherOrder, Quantity: 2, Tip: 30}
	winner := SelectSearcher([]types.Order{low, high})
	require.NotNil(t, winner)
	assert.Equal(t, high.ID(), winner.ID())

	// deterministic tie-break by order id
	tied := high
	tied.Nonce = 1
	want := high.ID().String()
	if tied.ID().String() < want {
		want = tied.ID().String()
	}
	winner = SelectSearcher([]types.Order{high, tied})
	assert.Equal(t, want, winner.ID().String())
}
