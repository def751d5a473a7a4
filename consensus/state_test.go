package consensus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cfg "github.com/tendermint/tendermint/config"
	"github.com/tendermint/tendermint/crypto/ed25519"
	"github.com/tendermint/tendermint/libs/log"
	tmtime "github.com/tendermint/tendermint/types/time"

	"auctionbft/matching"
	"auctionbft/orderpool"
	"auctionbft/types"
)

const testChainID = "auction-test-chain"

func testConsensusConfig() *cfg.ConsensusConfig {
	config := cfg.DefaultConsensusConfig()
	config.TimeoutPropose = 10 * time.Millisecond
	config.TimeoutPrevote = 300 * time.Millisecond
	config.TimeoutPrecommit = 500 * time.Millisecond
	config.TimeoutCommit = 10 * time.Millisecond
	return config
}

type testSuite struct {
	config *cfg.ConsensusConfig
	vals   *types.ValidatorSet
	pvs    map[string]*types.MockPV // validator address -> signer
	pool   *orderpool.ListPool
	sm     *RoundStateMachine
}

// newTestSuite builds a round state machine running as the validator at
// localIdx of the address-sorted roster of n validators.
func newTestSuite(t *testing.T, n, localIdx int, options ...RoundOption) *testSuite {
	t.Helper()

	pvs := make(map[string]*types.MockPV, n)
	valz := make([]*types.Validator, 0, n)
	for i := 0; i < n; i++ {
		priv := ed25519.GenPrivKey()
		val := types.NewValidator(priv.PubKey())
		valz = append(valz, val)
		pvs[val.Address.String()] = types.NewMockPV(priv)
	}
	vals := types.NewValidatorSet(valz)

	localAddr := vals.Validators[localIdx].Address
	pool := orderpool.NewListPool(cfg.TestMempoolConfig(), 0)
	engine := matching.NewMatchingManager()

	sm := NewRoundStateMachine(
		testConsensusConfig(), testChainID, vals, pvs[localAddr.String()], pool, engine, nil,
		options...,
	)
	sm.SetLogger(log.TestingLogger())
	return &testSuite{
		config: testConsensusConfig(),
		vals:   vals,
		pvs:    pvs,
		pool:   pool,
		sm:     sm,
	}
}

func (ts *testSuite) signerFor(idx int) (types.Address, *types.MockPV) {
	addr := ts.vals.Validators[idx].Address
	return addr, ts.pvs[addr.String()]
}

// advanceUntil polls Advance until the machine reaches the wanted phase,
// returning every message drained along the way.
func advanceUntil(t *testing.T, sm *RoundStateMachine, phase Phase) []Message {
	t.Helper()
	var msgs []Message
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		msgs = append(msgs, sm.Advance()...)
		if sm.CurrentPhase() == phase {
			return msgs
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for phase %v, stuck in %v", phase, sm.CurrentPhase())
	return nil
}

type testReporter struct {
	mtx      sync.Mutex
	calls    int
	leader   types.Address
	claimed  []types.PoolSolution
	computed []types.PoolSolution
}

func (r *testReporter) ReportViolation(height uint64, leader types.Address, claimed, computed []types.PoolSolution) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.calls++
	r.leader = leader
	r.claimed = claimed
	r.computed = computed
}

func (r *testReporter) Calls() int {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return r.calls
}

//-----------------------------------------------------------------------------

func TestSoloLeaderRoundCompletes(t *testing.T) {
	ts := newTestSuite(t, 1, 0)
	addr, _ := ts.signerFor(0)

	bid := types.Order{Pool: "eth-usdc", IsBid: true, Kind: types.StandingOrder, Price: 102, Quantity: 5, Owner: addr}
	ask := types.Order{Pool: "eth-usdc", IsBid: false, Kind: types.StandingOrder, Price: 100, Quantity: 5, Owner: addr, Nonce: 1}
	require.NoError(t, ts.pool.AddOrder(bid, orderpool.OrderInfo{}))
	require.NoError(t, ts.pool.AddOrder(ask, orderpool.OrderInfo{}))

	require.NoError(t, ts.sm.Reset(1, nil))
	assert.True(t, ts.sm.IsLeader())

	msgs := advanceUntil(t, ts.sm, PhaseCompleted)

	var pres, aggs, props, commits int
	var submission *SubmissionMessage
	for _, msg := range msgs {
		switch m := msg.(type) {
		case *PreProposalMessage:
			pres++
		case *AggregationMessage:
			aggs++
		case *ProposalMessage:
			props++
		case *CommitMessage:
			commits++
		case *SubmissionMessage:
			submission = m
		}
	}
	assert.Equal(t, 1, pres)
	assert.Equal(t, 1, aggs)
	assert.Equal(t, 1, props)
	assert.Equal(t, 1, commits)

	require.NotNil(t, submission)
	assert.EqualValues(t, 1, submission.Height)
	require.Len(t, submission.Solutions, 1)
	require.Len(t, submission.Commits, 1)

	sol := submission.Solutions[0]
	assert.EqualValues(t, "eth-usdc", sol.Pool)
	// equal quantities clear at the midpoint
	assert.EqualValues(t, 101, sol.ClearingPrice)
	require.Len(t, sol.Limit, 2)
	for _, outcome := range sol.Limit {
		assert.Equal(t, types.CompleteFill, outcome.State.Kind)
	}
}

func TestNonLeaderHappyPath(t *testing.T) {
	// height 2 with 2 validators puts the leader at roster index 0
	reporter := &testReporter{}
	ts := newTestSuite(t, 2, 1, SetViolationReporter(reporter))
	leaderAddr, leaderPV := ts.signerFor(0)

	require.NoError(t, ts.sm.Reset(2, nil))
	assert.False(t, ts.sm.IsLeader())

	advanceUntil(t, ts.sm, PhasePreProposalAggregation)

	leaderPre := &types.PreProposal{Height: 2, Validator: leaderAddr}
	require.NoError(t, leaderPV.SignPreProposal(testChainID, leaderPre))
	require.NoError(t, ts.sm.Deliver(&PreProposalMessage{PreProposal: leaderPre}))

	advanceUntil(t, ts.sm, PhaseProposalWait)

	proposal := types.NewProposal(2, leaderAddr, []types.PreProposal{*leaderPre}, nil)
	require.NoError(t, leaderPV.SignProposal(testChainID, proposal))
	require.NoError(t, ts.sm.Deliver(&ProposalMessage{Proposal: proposal}))

	msgs := advanceUntil(t, ts.sm, PhaseCommit)
	var ownVote *types.CommitVote
	for _, msg := range msgs {
		if m, ok := msg.(*CommitMessage); ok {
			ownVote = m.Vote
		}
	}
	require.NotNil(t, ownVote)
	assert.Equal(t, types.SupportCommit, ownVote.Type)
	assert.Equal(t, proposal.Hash().String(), ownVote.ProposalHash.String())

	leaderVote := &types.CommitVote{
		Height:       2,
		Type:         types.SupportCommit,
		ProposalHash: proposal.Hash(),
		Validator:    leaderAddr,
		Timestamp:    tmtime.Now(),
	}
	require.NoError(t, leaderPV.SignCommit(testChainID, leaderVote))
	require.NoError(t, ts.sm.Deliver(&CommitMessage{Vote: leaderVote}))

	advanceUntil(t, ts.sm, PhaseCompleted)
	assert.Equal(t, 0, reporter.Calls())

	accepted, ok := ts.sm.AcceptedProposal()
	require.True(t, ok)
	assert.Equal(t, proposal.Hash().String(), accepted.Hash().String())
}

func TestNonLeaderReplayMismatch(t *testing.T) {
	reporter := &testReporter{}
	ts := newTestSuite(t, 2, 1, SetViolationReporter(reporter))
	leaderAddr, leaderPV := ts.signerFor(0)

	require.NoError(t, ts.sm.Reset(2, nil))
	advanceUntil(t, ts.sm, PhasePreProposalAggregation)

	leaderPre := &types.PreProposal{Height: 2, Validator: leaderAddr}
	require.NoError(t, leaderPV.SignPreProposal(testChainID, leaderPre))
	require.NoError(t, ts.sm.Deliver(&PreProposalMessage{PreProposal: leaderPre}))
	advanceUntil(t, ts.sm, PhaseProposalWait)

	// the replay over the embedded pre-proposals yields no solutions, so a
	// fabricated one must be caught
	bogus := []types.PoolSolution{{Pool: "eth-usdc", ClearingPrice: 42}}
	proposal := types.NewProposal(2, leaderAddr, []types.PreProposal{*leaderPre}, bogus)
	require.NoError(t, leaderPV.SignProposal(testChainID, proposal))
	require.NoError(t, ts.sm.Deliver(&ProposalMessage{Proposal: proposal}))

	advanceUntil(t, ts.sm, PhaseCommit)

	leaderVote := &types.CommitVote{
		Height:       2,
		Type:         types.SupportCommit,
		ProposalHash: proposal.Hash(),
		Validator:    leaderAddr,
		Timestamp:    tmtime.Now(),
	}
	require.NoError(t, leaderPV.SignCommit(testChainID, leaderVote))
	require.NoError(t, ts.sm.Deliver(&CommitMessage{Vote: leaderVote}))

	advanceUntil(t, ts.sm, PhaseCompleted)

	require.Equal(t, 1, reporter.Calls())
	assert.Equal(t, leaderAddr.String(), reporter.leader.String())
	assert.True(t, types.SolutionsEqual(bogus, reporter.claimed))
	assert.Empty(t, reporter.computed)

	// a round with a recorded disagreement must never surface its proposal
	// for application
	_, ok := ts.sm.AcceptedProposal()
	assert.False(t, ok)
}

func TestAcceptedProposalNeedsQuorum(t *testing.T) {
	// height 3 with 3 validators puts the leader at roster index 0; only this
	// node's own commit vote arrives, one short of quorum(3) = 2
	ts := newTestSuite(t, 3, 1)
	leaderAddr, leaderPV := ts.signerFor(0)

	require.NoError(t, ts.sm.Reset(3, nil))
	advanceUntil(t, ts.sm, PhasePreProposalAggregation)

	leaderPre := &types.PreProposal{Height: 3, Validator: leaderAddr}
	require.NoError(t, leaderPV.SignPreProposal(testChainID, leaderPre))
	require.NoError(t, ts.sm.Deliver(&PreProposalMessage{PreProposal: leaderPre}))
	advanceUntil(t, ts.sm, PhaseProposalWait)

	proposal := types.NewProposal(3, leaderAddr, []types.PreProposal{*leaderPre}, nil)
	require.NoError(t, leaderPV.SignProposal(testChainID, proposal))
	require.NoError(t, ts.sm.Deliver(&ProposalMessage{Proposal: proposal}))

	// the commit phase drains on its deadline without further votes
	advanceUntil(t, ts.sm, PhaseCompleted)

	require.NotNil(t, ts.sm.Proposal())
	_, ok := ts.sm.AcceptedProposal()
	assert.False(t, ok)
}

func TestDuplicatePreProposalRebroadcastOnce(t *testing.T) {
	// height 4 with 4 validators puts the leader at roster index 0
	ts := newTestSuite(t, 4, 1)
	peerAddr, peerPV := ts.signerFor(2)

	require.NoError(t, ts.sm.Reset(4, nil))
	advanceUntil(t, ts.sm, PhasePreProposalAggregation)

	pre := &types.PreProposal{
		Height:    4,
		Validator: peerAddr,
		Limit: map[types.PoolID][]types.Order{
			"eth-usdc": {{Pool: "eth-usdc", IsBid: true, Kind: types.StandingOrder, Price: 100, Quantity: 1}},
		},
	}
	require.NoError(t, peerPV.SignPreProposal(testChainID, pre))

	require.NoError(t, ts.sm.Deliver(&PreProposalMessage{PreProposal: pre}))
	first := ts.sm.Advance()
	rebroadcasts := 0
	for _, msg := range first {
		if m, ok := msg.(*PreProposalMessage); ok && m.PreProposal.Hash().String() == pre.Hash().String() {
			rebroadcasts++
		}
	}
	assert.Equal(t, 1, rebroadcasts)

	// the duplicate is dropped silently and not re-broadcast again
	require.NoError(t, ts.sm.Deliver(&PreProposalMessage{PreProposal: pre}))
	for _, msg := range ts.sm.Advance() {
		if m, ok := msg.(*PreProposalMessage); ok {
			assert.NotEqual(t, pre.Hash().String(), m.PreProposal.Hash().String())
		}
	}
	assert.Len(t, ts.sm.ctx.preProposals, 2) // own plus peer
}

func TestDeliverRejectsBadSenders(t *testing.T) {
	ts := newTestSuite(t, 2, 0)
	otherAddr, otherPV := ts.signerFor(1)

	require.NoError(t, ts.sm.Reset(2, nil))
	advanceUntil(t, ts.sm, PhasePreProposalAggregation)

	// stale height
	stale := &types.PreProposal{Height: 1, Validator: otherAddr}
	require.NoError(t, otherPV.SignPreProposal(testChainID, stale))
	assert.Equal(t, ErrHeightMismatch, ts.sm.Deliver(&PreProposalMessage{PreProposal: stale}))

	// signer outside the roster
	strangerPriv := ed25519.GenPrivKey()
	stranger := types.NewMockPV(strangerPriv)
	foreign := &types.PreProposal{Height: 2, Validator: types.GetAddress(strangerPriv.PubKey())}
	require.NoError(t, stranger.SignPreProposal(testChainID, foreign))
	assert.Equal(t, ErrUnknownSender, ts.sm.Deliver(&PreProposalMessage{PreProposal: foreign}))

	// roster member with a signature that does not verify
	forged := &types.PreProposal{Height: 2, Validator: otherAddr}
	require.NoError(t, stranger.SignPreProposal(testChainID, forged))
	assert.Equal(t, ErrInvalidSignature, ts.sm.Deliver(&PreProposalMessage{PreProposal: forged}))
}

func TestResetDiscardsRound(t *testing.T) {
	ts := newTestSuite(t, 2, 1)
	leaderAddr, leaderPV := ts.signerFor(0)

	require.NoError(t, ts.sm.Reset(2, nil))
	advanceUntil(t, ts.sm, PhasePreProposalAggregation)

	pre := &types.PreProposal{Height: 2, Validator: leaderAddr}
	require.NoError(t, leaderPV.SignPreProposal(testChainID, pre))
	require.NoError(t, ts.sm.Deliver(&PreProposalMessage{PreProposal: pre}))

	require.NoError(t, ts.sm.Reset(3, nil))
	assert.EqualValues(t, 3, ts.sm.Height())
	assert.Equal(t, PhaseBidAggregation, ts.sm.CurrentPhase())
	assert.Nil(t, ts.sm.Proposal())
	assert.Empty(t, ts.sm.ctx.preProposals)

	// payloads from the superseded round no longer verify against the height
	advanceUntil(t, ts.sm, PhasePreProposalAggregation)
	assert.Equal(t, ErrHeightMismatch, ts.sm.Deliver(&PreProposalMessage{PreProposal: pre}))
}

func TestProposalOnlyFromLeader(t *testing.T) {
	// height 3 with 3 validators puts the leader at roster index 0
	ts := newTestSuite(t, 3, 1)
	leaderAddr, leaderPV := ts.signerFor(0)
	otherAddr, otherPV := ts.signerFor(2)

	require.NoError(t, ts.sm.Reset(3, nil))
	advanceUntil(t, ts.sm, PhasePreProposalAggregation)

	for _, signer := range []struct {
		addr types.Address
		pv   *types.MockPV
	}{{leaderAddr, leaderPV}, {otherAddr, otherPV}} {
		pre := &types.PreProposal{Height: 3, Validator: signer.addr}
		require.NoError(t, signer.pv.SignPreProposal(testChainID, pre))
		require.NoError(t, ts.sm.Deliver(&PreProposalMessage{PreProposal: pre}))
	}
	advanceUntil(t, ts.sm, PhaseProposalWait)

	imposterPre := &types.PreProposal{Height: 3, Validator: otherAddr}
	require.NoError(t, otherPV.SignPreProposal(testChainID, imposterPre))
	imposter := types.NewProposal(3, otherAddr, []types.PreProposal{*imposterPre}, nil)
	require.NoError(t, otherPV.SignProposal(testChainID, imposter))

	assert.Equal(t, ErrNotLeader, ts.sm.Deliver(&ProposalMessage{Proposal: imposter}))
	assert.Nil(t, ts.sm.Proposal())
}
