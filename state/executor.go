package state

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/tendermint/tendermint/libs/log"
	tmtime "github.com/tendermint/tendermint/types/time"

	"auctionbft/matching"
	"auctionbft/orderpool"
	"auctionbft/store"
	"auctionbft/types"
)

// Executor owns the running state: it applies finalized rounds, persists
// them, updates the order pool and supplies AMM snapshots to the round state
// machine.
type Executor struct {
	mtx sync.Mutex

	state State

	pool orderpool.OrderPool
	db   store.Store

	logger log.Logger
}

func NewExecutor(state State, pool orderpool.OrderPool, db store.Store) *Executor {
	return &Executor{
		state:  state,
		pool:   pool,
		db:     db,
		logger: log.NewNopLogger(),
	}
}

func (exec *Executor) SetLogger(logger log.Logger) {
	exec.logger = logger
}

// State returns a copy of the current state.
func (exec *Executor) State() State {
	exec.mtx.Lock()
	defer exec.mtx.Unlock()
	return exec.state.Copy()
}

// AmmSnapshots implements consensus.AmmSource.
func (exec *Executor) AmmSnapshots() map[types.PoolID]*matching.AmmSnapshot {
	exec.mtx.Lock()
	defer exec.mtx.Unlock()
	return exec.state.AmmSnapshots()
}

// ApplyRound commits a finalized round: the record is persisted, completed
// orders leave the pool and each pool's reserves move by the net AMM trade.
// Implements consensus.Applier.
func (exec *Executor) ApplyRound(height uint64, proposal *types.Proposal) error {
	exec.mtx.Lock()
	defer exec.mtx.Unlock()

	if height <= exec.state.Height {
		return errors.Errorf("round height %d not beyond applied height %d", height, exec.state.Height)
	}

	record := &store.RoundRecord{
		Height:       height,
		ProposalHash: proposal.Hash(),
		Leader:       proposal.Leader,
		Solutions:    proposal.Solutions,
	}
	if err := exec.db.SaveRound(record); err != nil {
		return errors.Wrap(err, "saving round")
	}

	exec.pool.Lock()
	if err := exec.pool.Update(height, proposal.Solutions); err != nil {
		exec.pool.Unlock()
		return errors.Wrap(err, "updating order pool")
	}
	exec.pool.Unlock()

	newState := exec.state.Copy()
	for _, sol := range proposal.Solutions {
		applyAmmTrade(newState.Pools[sol.Pool], sol.AMM)
	}
	newState.Height = height
	newState.LastProposalHash = proposal.Hash()
	newState.LastRoundTime = tmtime.Now()

	if err := exec.db.SaveState(newState.Record()); err != nil {
		return errors.Wrap(err, "saving state snapshot")
	}
	exec.state = newState

	exec.logger.Info("applied round", "height", height,
		"proposal", record.ProposalHash, "solutions", len(proposal.Solutions))
	return nil
}

// applyAmmTrade moves the pool reserves by the solve's net AMM order. IsBid
// means the curve bought base against quote.
func applyAmmTrade(pool *PoolState, amm *types.NetAmmOrder) {
	if pool == nil || amm == nil {
		return
	}
	if amm.IsBid {
		pool.ReserveBase += amm.Base
		if amm.Quote > pool.ReserveQuote {
			pool.ReserveQuote = 0
			return
		}
		pool.ReserveQuote -= amm.Quote
		return
	}
	pool.ReserveQuote += amm.Quote
	if amm.Base > pool.ReserveBase {
		pool.ReserveBase = 0
		return
	}
	pool.ReserveBase -= amm.Base
}

// ReportViolation persists solve-disagreement evidence. Implements
// consensus.ViolationReporter; enforcement stays outside this module.
func (exec *Executor) ReportViolation(height uint64, leader types.Address, claimed, computed []types.PoolSolution) {
	record := &store.ViolationRecord{
		Height:   height,
		Leader:   leader,
		Claimed:  claimed,
		Computed: computed,
	}
	if err := exec.db.SaveViolation(record); err != nil {
		exec.logger.Error("failed to persist violation", "height", height, "err", err)
		return
	}
	exec.logger.Error("recorded solve violation", "height", height, "leader", leader)
}
