package matching

import (
	"sort"
	"sync"
	"time"

	metrics "github.com/rcrowley/go-metrics"
	"github.com/tendermint/tendermint/libs/log"

	"auctionbft/types"
)

// Engine produces clearing solutions. A solve runs off the caller's
// goroutine; the returned future is polled, never waited on, by the round
// state machine.
type Engine interface {
	SetLogger(log.Logger)

	// Solve clears every pool in the limit map against its AMM snapshot and
	// picks the winning searcher order per pool.
	Solve(limit, searcher map[types.PoolID][]types.Order, amms map[types.PoolID]*AmmSnapshot) *SolveFuture
}

// SolveResult is the outcome of one full solve: canonically sorted solutions
// plus the per-pool reason the matcher stopped.
type SolveResult struct {
	Solutions []types.PoolSolution
	Reasons   map[types.PoolID]EndReason
}

// SolveFuture is the poll handle for an in-flight solve.
type SolveFuture struct {
	mtx      sync.Mutex
	done     bool
	canceled bool
	result   *SolveResult
	doneCh   chan struct{}
}

func newSolveFuture() *SolveFuture {
	return &SolveFuture{doneCh: make(chan struct{})}
}

func (f *SolveFuture) complete(res *SolveResult) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	if f.done || f.canceled {
		return
	}
	f.done = true
	f.result = res
	close(f.doneCh)
}

// Cancel discards the solve's eventual result. A canceled future never
// becomes ready.
func (f *SolveFuture) Cancel() {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	if f.done || f.canceled {
		return
	}
	f.canceled = true
}

// Ready reports whether the result can be taken. Never blocks.
func (f *SolveFuture) Ready() bool {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return f.done
}

// Result returns the solve result once ready.
func (f *SolveFuture) Result() (*SolveResult, bool) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	if !f.done {
		return nil, false
	}
	return f.result, true
}

// Done is closed when the result is available. Canceled futures never close
// it.
func (f *SolveFuture) Done() <-chan struct{} {
	return f.doneCh
}

//-----------------------------------------------------------------------------

// MatchingManager is the production Engine: one VolumeFillMatcher pass per
// pool per solve.
type MatchingManager struct {
	logger     log.Logger
	solveTimer metrics.Timer
}

var _ Engine = (*MatchingManager)(nil)

func NewMatchingManager() *MatchingManager {
	return &MatchingManager{
		logger:     log.NewNopLogger(),
		solveTimer: metrics.GetOrRegisterTimer("matching.solve", metrics.DefaultRegistry),
	}
}

func (mm *MatchingManager) SetLogger(logger log.Logger) {
	mm.logger = logger
}

func (mm *MatchingManager) Solve(
	limit, searcher map[types.PoolID][]types.Order,
	amms map[types.PoolID]*AmmSnapshot,
) *SolveFuture {
	fut := newSolveFuture()
	go func() {
		start := time.Now()

		books := BuildBooks(limit, searcher, amms)
		solutions := make([]types.PoolSolution, 0, len(books))
		reasons := make(map[types.PoolID]EndReason, len(books))
		for _, book := range books {
			matcher := NewVolumeFillMatcher(book)
			reason := matcher.Fill()
			reasons[book.Pool()] = reason
			sol := matcher.Solution(SelectSearcher(searcher[book.Pool()]))
			solutions = append(solutions, sol)
			mm.logger.Debug("solved pool",
				"pool", book.Pool(), "reason", reason, "ucp", sol.ClearingPrice)
		}
		types.SortSolutions(solutions)

		mm.solveTimer.UpdateSince(start)
		fut.complete(&SolveResult{Solutions: solutions, Reasons: reasons})
	}()
	return fut
}

// BuildBooks turns the per-pool order maps into sorted books, one per pool in
// canonical pool order. Pools that only have an AMM snapshot or a searcher
// candidate still get a book, so their solution is reported.
func BuildBooks(
	limit, searcher map[types.PoolID][]types.Order,
	amms map[types.PoolID]*AmmSnapshot,
) []*OrderBook {
	poolSet := make(map[types.PoolID]struct{}, len(limit))
	for pool := range limit {
		poolSet[pool] = struct{}{}
	}
	for pool := range searcher {
		poolSet[pool] = struct{}{}
	}
	for pool := range amms {
		poolSet[pool] = struct{}{}
	}
	pools := make([]types.PoolID, 0, len(poolSet))
	for pool := range poolSet {
		pools = append(pools, pool)
	}
	sort.Slice(pools, func(i, j int) bool { return pools[i] < pools[j] })

	books := make([]*OrderBook, 0, len(pools))
	for _, pool := range pools {
		var bids, asks []types.Order
		for _, o := range limit[pool] {
			if o.IsBid {
				bids = append(bids, o)
			} else {
				asks = append(asks, o)
			}
		}
		books = append(books, NewOrderBook(pool, amms[pool], bids, asks))
	}
	return books
}

// SelectSearcher picks the winning top-of-block order: highest tip, order id
// as the deterministic tie-break. Returns nil when there are no candidates.
func SelectSearcher(orders []types.Order) *types.Order {
	var best *types.Order
	for i := range orders {
		o := &orders[i]
		if o.Kind != types.SearcherOrder {
			continue
		}
		if best == nil || o.Tip > best.Tip ||
			(o.Tip == best.Tip && o.ID().String() < best.ID().String()) {
			best = o
		}
	}
	return best
}
