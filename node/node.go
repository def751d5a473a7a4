package node

import (
	"net"
	"time"

	cfg "github.com/tendermint/tendermint/config"
	"github.com/tendermint/tendermint/libs/log"
	"github.com/tendermint/tendermint/libs/service"

	"auctionbft/blockwatch"
	"auctionbft/consensus"
	"auctionbft/libs/metric"
	"auctionbft/matching"
	"auctionbft/orderpool"
	"auctionbft/privval"
	"auctionbft/rpc"
	"auctionbft/state"
	"auctionbft/store"
	"auctionbft/types"
)

const defaultRoundInterval = time.Second

// Provider builds a node from config.
type Provider func(*cfg.Config, log.Logger) (*Node, error)

// Node assembles the sequencer: order pool, matching engine, round state
// machine, executor, store, block watcher and rpc.
type Node struct {
	service.BaseService

	config *cfg.Config
	genDoc *types.GenesisDoc

	db        store.Store
	pool      *orderpool.ListPool
	executor  *state.Executor
	sm        *consensus.RoundStateMachine
	reactor   *consensus.Reactor
	watcher   *blockwatch.Watcher
	metricSet *metric.MetricSet

	rpcListener net.Listener
}

type nodeOptions struct {
	db          store.Store
	broadcaster consensus.Broadcaster
	source      blockwatch.HeightSource
}

type Option func(*nodeOptions)

// WithStore overrides the default on-disk store.
func WithStore(db store.Store) Option {
	return func(o *nodeOptions) { o.db = db }
}

// WithBroadcaster installs the network layer's outbound side. Without it the
// node runs standalone and outbound messages are dropped.
func WithBroadcaster(b consensus.Broadcaster) Option {
	return func(o *nodeOptions) { o.broadcaster = b }
}

// WithHeightSource overrides the interval-driven round clock.
func WithHeightSource(src blockwatch.HeightSource) Option {
	return func(o *nodeOptions) { o.source = src }
}

// nopBroadcaster drops outbound messages; the standalone default.
type nopBroadcaster struct {
	logger log.Logger
}

func (b nopBroadcaster) Broadcast(msg consensus.Message) error {
	b.logger.Debug("dropping outbound message, no network layer", "msg", msg)
	return nil
}

// DefaultNewNode builds a node from the files named in config: genesis doc
// and privval key.
func DefaultNewNode(config *cfg.Config, logger log.Logger) (*Node, error) {
	genDoc, err := types.GenesisDocFromFile(config.GenesisFile())
	if err != nil {
		return nil, err
	}
	pv := privval.LoadOrGenFilePV(config.PrivValidatorKeyFile())
	return NewNode(config, genDoc, pv, logger)
}

func NewNode(
	config *cfg.Config,
	genDoc *types.GenesisDoc,
	pv types.PrivValidator,
	logger log.Logger,
	options ...Option,
) (*Node, error) {
	if err := genDoc.ValidateAndComplete(); err != nil {
		return nil, err
	}

	opts := &nodeOptions{}
	for _, option := range options {
		option(opts)
	}

	db := opts.db
	if db == nil {
		kv, err := store.NewKVStore("auction", config.DBDir(), logger.With("module", "store"))
		if err != nil {
			return nil, err
		}
		db = kv
	}

	st, err := loadOrGenState(db, genDoc)
	if err != nil {
		return nil, err
	}

	pool := orderpool.NewListPool(config.Mempool, st.Height)
	pool.SetLogger(logger.With("module", "orderpool"))

	engine := matching.NewMatchingManager()
	engine.SetLogger(logger.With("module", "matching"))

	executor := state.NewExecutor(st, pool, db)
	executor.SetLogger(logger.With("module", "state"))

	sm := consensus.NewRoundStateMachine(
		config.Consensus, genDoc.ChainID, genDoc.ValidatorSet(), pv, pool, engine, executor,
		consensus.SetViolationReporter(executor),
	)

	broadcaster := opts.broadcaster
	if broadcaster == nil {
		broadcaster = nopBroadcaster{logger: logger.With("module", "broadcast")}
	}
	reactor := consensus.NewReactor(sm,
		consensus.SetBroadcaster(broadcaster),
		consensus.SetApplier(executor),
	)
	reactor.SetLogger(logger.With("module", "consensus"))

	source := opts.source
	if source == nil {
		interval := config.Consensus.CreateEmptyBlocksInterval
		if interval <= 0 {
			interval = defaultRoundInterval
		}
		source = blockwatch.NewIntervalSource(interval, st.Height)
	}
	watcher := blockwatch.NewWatcher(source, func(height uint64) {
		reactor.OnNewHeight(height, nil)
	})
	watcher.SetLogger(logger.With("module", "blockwatch"))

	metricSet := metric.NewMetricSet()
	if err := metricSet.SetMetrics("consensus", sm.Metric()); err != nil {
		return nil, err
	}

	node := &Node{
		config:    config,
		genDoc:    genDoc,
		db:        db,
		pool:      pool,
		executor:  executor,
		sm:        sm,
		reactor:   reactor,
		watcher:   watcher,
		metricSet: metricSet,
	}
	node.BaseService = *service.NewBaseService(logger, "Node", node)
	return node, nil
}

func loadOrGenState(db store.Store, genDoc *types.GenesisDoc) (state.State, error) {
	record, err := db.LoadState()
	switch err {
	case nil:
		return state.StateFromRecord(record), nil
	case store.ErrStateNotFound:
		return state.MakeGenesisState(genDoc), nil
	default:
		return state.State{}, err
	}
}

func (n *Node) OnStart() error {
	if err := n.reactor.Start(); err != nil {
		return err
	}
	if err := n.watcher.Start(); err != nil {
		return err
	}

	if addr := n.config.RPC.ListenAddress; addr != "" {
		rpc.SetEnvironment(&rpc.Environment{
			Pool:      n.pool,
			Round:     n.sm,
			Executor:  n.executor,
			Store:     n.db,
			MetricSet: n.metricSet,
		})
		listener, err := rpc.StartHTTPServer(addr, n.Logger.With("module", "rpc"))
		if err != nil {
			return err
		}
		n.rpcListener = listener
	}

	n.Logger.Info("node started", "chain_id", n.genDoc.ChainID, "height", n.executor.State().Height)
	return nil
}

func (n *Node) OnStop() {
	if n.rpcListener != nil {
		if err := n.rpcListener.Close(); err != nil {
			n.Logger.Error("failed to close rpc listener", "err", err)
		}
	}
	if err := n.watcher.Stop(); err != nil {
		n.Logger.Error("failed to stop block watcher", "err", err)
	}
	if err := n.reactor.Stop(); err != nil {
		n.Logger.Error("failed to stop consensus reactor", "err", err)
	}
	if err := n.db.Close(); err != nil {
		n.Logger.Error("failed to close store", "err", err)
	}
}

// Reactor exposes the consensus reactor so a network layer can feed inbound
// messages.
func (n *Node) Reactor() *consensus.Reactor {
	return n.reactor
}

// OrderPool exposes the order pool.
func (n *Node) OrderPool() orderpool.OrderPool {
	return n.pool
}

// Executor exposes the state executor.
func (n *Node) Executor() *state.Executor {
	return n.executor
}
