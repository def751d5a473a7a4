package orderpool

import (
	"sync"
	"sync/atomic"

	cfg "github.com/tendermint/tendermint/config"
	"github.com/tendermint/tendermint/libs/clist"
	"github.com/tendermint/tendermint/libs/log"

	"auctionbft/types"
)

// ListPool is a concurrent linked-list order pool: a clist holds insertion
// order, a sync.Map keyed by order id backs dedup and removal.
type ListPool struct {
	height int64 // the last height Update()'d to, accessed atomically

	config *cfg.MempoolConfig

	updateMtx sync.RWMutex
	preCheck  PreCheckFunc

	orders    *clist.CList
	ordersMap sync.Map // order id string -> *clist.CElement

	logger log.Logger
}

var _ OrderPool = (*ListPool)(nil)

type ListPoolOption func(*ListPool)

// SetPreCheck installs the admission check run before an order enters the
// pool.
func SetPreCheck(precheck PreCheckFunc) ListPoolOption {
	return func(pool *ListPool) {
		pool.preCheck = precheck
	}
}

func NewListPool(config *cfg.MempoolConfig, height uint64, options ...ListPoolOption) *ListPool {
	pool := &ListPool{
		height: int64(height),
		config: config,
		orders: clist.New(),
		logger: log.NewNopLogger(),
	}
	for _, option := range options {
		option(pool)
	}
	return pool
}

func (pool *ListPool) SetLogger(logger log.Logger) {
	pool.logger = logger
}

type poolOrder struct {
	height  int64 // height the order entered the pool at
	order   types.Order
	senders sync.Map
}

func (pool *ListPool) AddOrder(order types.Order, info OrderInfo) error {
	pool.updateMtx.RLock()
	defer pool.updateMtx.RUnlock()

	if err := order.ValidateBasic(); err != nil {
		return err
	}
	if pool.preCheck != nil {
		if err := pool.preCheck(order); err != nil {
			return err
		}
	}
	if pool.config.Size > 0 && pool.orders.Len() >= pool.config.Size {
		return ErrPoolFull
	}

	key := order.ID().String()
	if _, ok := pool.ordersMap.Load(key); ok {
		return ErrOrderInPool
	}

	memOrder := &poolOrder{
		height: atomic.LoadInt64(&pool.height),
		order:  order,
	}
	memOrder.senders.Store(info.SenderID, struct{}{})

	e := pool.orders.PushBack(memOrder)
	pool.ordersMap.Store(key, e)

	pool.logger.Debug("added order", "order", order.String(), "sender", info.SenderID)
	return nil
}

func (pool *ListPool) ReapEligible(height uint64) (limit, searcher map[types.PoolID][]types.Order) {
	pool.updateMtx.RLock()
	defer pool.updateMtx.RUnlock()

	limit = make(map[types.PoolID][]types.Order)
	searcher = make(map[types.PoolID][]types.Order)
	for e := pool.orders.Front(); e != nil; e = e.Next() {
		memOrder := e.Value.(*poolOrder)
		o := memOrder.order
		if o.Kind == types.SearcherOrder {
			searcher[o.Pool] = append(searcher[o.Pool], o)
		} else {
			limit[o.Pool] = append(limit[o.Pool], o)
		}
	}
	return limit, searcher
}

// Update applies a finished round: completely filled orders leave the pool,
// partially filled standing orders rest with their remainder, killable orders
// leave regardless of outcome, and every searcher order of a solved pool is
// dropped (they compete for one block only).
func (pool *ListPool) Update(height uint64, solutions []types.PoolSolution) error {
	atomic.StoreInt64(&pool.height, int64(height))

	solvedPools := make(map[types.PoolID]struct{}, len(solutions))
	outcomes := make(map[string]types.OrderFillState)
	for _, sol := range solutions {
		solvedPools[sol.Pool] = struct{}{}
		for _, outcome := range sol.Limit {
			outcomes[outcome.ID.String()] = outcome.State
		}
	}

	var remove []*clist.CElement
	var rest []types.Order
	for e := pool.orders.Front(); e != nil; e = e.Next() {
		memOrder := e.Value.(*poolOrder)
		o := memOrder.order
		if _, solved := solvedPools[o.Pool]; !solved {
			continue
		}
		if o.Kind == types.SearcherOrder {
			remove = append(remove, e)
			continue
		}
		state, inRound := outcomes[o.ID().String()]
		if !inRound {
			continue
		}
		switch {
		case state.Kind == types.CompleteFill:
			remove = append(remove, e)
		case o.Kind == types.KillableOrder:
			remove = append(remove, e)
		case state.Kind == types.PartialFill:
			// re-key the standing remainder
			remove = append(remove, e)
			remainder := o
			remainder.Quantity = o.Quantity - state.Filled
			if remainder.Quantity > 0 {
				rest = append(rest, remainder)
			}
		}
	}

	for _, e := range remove {
		memOrder := e.Value.(*poolOrder)
		pool.orders.Remove(e)
		e.DetachPrev()
		pool.ordersMap.Delete(memOrder.order.ID().String())
	}
	for _, o := range rest {
		memOrder := &poolOrder{height: int64(height), order: o}
		e := pool.orders.PushBack(memOrder)
		pool.ordersMap.Store(o.ID().String(), e)
	}
	return nil
}

// Requeue reinstates orders dropped by a reorganized block. Duplicates are
// ignored.
func (pool *ListPool) Requeue(orders []types.Order) error {
	for _, o := range orders {
		if err := pool.AddOrder(o, OrderInfo{}); err != nil && err != ErrOrderInPool {
			return err
		}
	}
	return nil
}

func (pool *ListPool) Lock() {
	pool.updateMtx.Lock()
}

func (pool *ListPool) Unlock() {
	pool.updateMtx.Unlock()
}

func (pool *ListPool) Flush() {
	pool.updateMtx.Lock()
	defer pool.updateMtx.Unlock()

	for e := pool.orders.Front(); e != nil; e = e.Next() {
		pool.orders.Remove(e)
		e.DetachPrev()
	}
	pool.ordersMap.Range(func(key, _ interface{}) bool {
		pool.ordersMap.Delete(key)
		return true
	})
}

func (pool *ListPool) Size() int {
	return pool.orders.Len()
}

// OrdersFront exposes the head of the list for consumers that want to watch
// arrivals.
func (pool *ListPool) OrdersFront() *clist.CElement {
	return pool.orders.Front()
}

// OrdersWaitChan is closed once the pool becomes non-empty.
func (pool *ListPool) OrdersWaitChan() <-chan struct{} {
	return pool.orders.WaitChan()
}
