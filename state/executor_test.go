package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cfg "github.com/tendermint/tendermint/config"
	"github.com/tendermint/tendermint/libs/log"
	memdb "github.com/tendermint/tm-db/memdb"

	"auctionbft/orderpool"
	"auctionbft/store"
	"auctionbft/types"
)

func newTestExecutor(t *testing.T) (*Executor, *orderpool.ListPool, store.Store) {
	t.Helper()
	pool := orderpool.NewListPool(cfg.TestMempoolConfig(), 0)
	db := store.NewKVStoreWithDB(memdb.NewDB(), log.TestingLogger())
	exec := NewExecutor(MakeGenesisState(testGenesisDoc(t)), pool, db)
	exec.SetLogger(log.TestingLogger())
	return exec, pool, db
}

func applyTestProposal(t *testing.T, exec *Executor, height uint64, sols []types.PoolSolution) *types.Proposal {
	t.Helper()
	pre := types.PreProposal{Height: height, Validator: make(types.Address, 20)}
	proposal := types.NewProposal(height, make(types.Address, 20), []types.PreProposal{pre}, sols)
	require.NoError(t, exec.ApplyRound(height, proposal))
	return proposal
}

func TestApplyRoundPersistsAndAdvances(t *testing.T) {
	exec, pool, db := newTestExecutor(t)

	bid := types.Order{Pool: "eth-usdc", IsBid: true, Kind: types.StandingOrder, Price: 102, Quantity: 5}
	require.NoError(t, pool.AddOrder(bid, orderpool.OrderInfo{}))

	sols := []types.PoolSolution{{
		Pool:          "eth-usdc",
		ClearingPrice: 101,
		Limit: []types.OrderOutcome{
			{ID: bid.ID(), State: types.OrderFillState{Kind: types.CompleteFill}},
		},
	}}
	proposal := applyTestProposal(t, exec, 1, sols)

	// the filled order left the pool
	assert.Equal(t, 0, pool.Size())

	// the round and the refreshed snapshot were persisted
	record, err := db.LoadRound(1)
	require.NoError(t, err)
	assert.Equal(t, proposal.Hash().String(), record.ProposalHash.String())

	snapshot, err := db.LoadState()
	require.NoError(t, err)
	assert.EqualValues(t, 1, snapshot.Height)

	s := exec.State()
	assert.EqualValues(t, 1, s.Height)
	assert.Equal(t, proposal.Hash().String(), s.LastProposalHash.String())
}

func TestApplyRoundMovesReserves(t *testing.T) {
	exec, _, _ := newTestExecutor(t)

	// the curve sold 100 base for 12_000 quote
	sols := []types.PoolSolution{{
		Pool:          "eth-usdc",
		ClearingPrice: 120,
		AMM:           &types.NetAmmOrder{IsBid: false, Base: 100, Quote: 12_000},
	}}
	applyTestProposal(t, exec, 1, sols)

	s := exec.State()
	assert.EqualValues(t, 900, s.Pools["eth-usdc"].ReserveBase)
	assert.EqualValues(t, 112_000, s.Pools["eth-usdc"].ReserveQuote)

	// and bought some back the next round
	sols = []types.PoolSolution{{
		Pool:          "eth-usdc",
		ClearingPrice: 110,
		AMM:           &types.NetAmmOrder{IsBid: true, Base: 50, Quote: 5_500},
	}}
	applyTestProposal(t, exec, 2, sols)

	s = exec.State()
	assert.EqualValues(t, 950, s.Pools["eth-usdc"].ReserveBase)
	assert.EqualValues(t, 106_500, s.Pools["eth-usdc"].ReserveQuote)
}

func TestApplyRoundRejectsStaleHeight(t *testing.T) {
	exec, _, _ := newTestExecutor(t)

	applyTestProposal(t, exec, 1, nil)

	pre := types.PreProposal{Height: 1, Validator: make(types.Address, 20)}
	stale := types.NewProposal(1, make(types.Address, 20), []types.PreProposal{pre}, nil)
	assert.Error(t, exec.ApplyRound(1, stale))
}

func TestReportViolationPersists(t *testing.T) {
	exec, _, db := newTestExecutor(t)

	leader := make(types.Address, 20)
	claimed := []types.PoolSolution{{Pool: "eth-usdc", ClearingPrice: 42}}
	exec.ReportViolation(3, leader, claimed, nil)

	records, err := db.LoadViolations(3)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.EqualValues(t, 42, records[0].Claimed[0].ClearingPrice)
}
