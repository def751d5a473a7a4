package consensus

import (
	"time"

	"github.com/tendermint/tendermint/libs/events"
	"github.com/tendermint/tendermint/libs/log"
	"github.com/tendermint/tendermint/libs/service"

	"auctionbft/types"
)

const (
	// events fired on the reactor's event switch
	EventNewProposal    = "NewProposal"
	EventRoundCompleted = "RoundCompleted"

	defaultPollInterval = 50 * time.Millisecond

	peerMsgQueueSize = 1000
)

// Applier consumes a completed round's outcome; the state executor
// implements it.
type Applier interface {
	ApplyRound(height uint64, proposal *types.Proposal) error
}

// Reactor owns the round state machine. It runs the poll loop that drives
// Advance, feeds inbound messages from the network layer, hands outbound
// messages to the Broadcaster and resets the round when a new chain height is
// observed.
type Reactor struct {
	service.BaseService

	sm *RoundStateMachine

	broadcaster Broadcaster
	applier     Applier
	eventSwitch events.EventSwitch

	pollInterval time.Duration

	peerMsgQueue chan Message
	heightQueue  chan heightInfo

	// set once the completed round was handed to the applier
	applied bool
}

type heightInfo struct {
	height     uint64
	validators *types.ValidatorSet
}

type ReactorOption func(*Reactor)

func SetBroadcaster(b Broadcaster) ReactorOption {
	return func(conR *Reactor) {
		conR.broadcaster = b
	}
}

func SetApplier(a Applier) ReactorOption {
	return func(conR *Reactor) {
		conR.applier = a
	}
}

func SetPollInterval(d time.Duration) ReactorOption {
	return func(conR *Reactor) {
		conR.pollInterval = d
	}
}

func NewReactor(sm *RoundStateMachine, options ...ReactorOption) *Reactor {
	conR := &Reactor{
		sm:           sm,
		eventSwitch:  events.NewEventSwitch(),
		pollInterval: defaultPollInterval,
		peerMsgQueue: make(chan Message, peerMsgQueueSize),
		heightQueue:  make(chan heightInfo, 1),
	}
	conR.BaseService = *service.NewBaseService(nil, "CONSENSUS", conR)

	for _, option := range options {
		option(conR)
	}
	return conR
}

func (conR *Reactor) SetLogger(logger log.Logger) {
	conR.Logger = logger
	conR.sm.SetLogger(logger.With("module", "round"))
}

// EventSwitch exposes the reactor's event switch so other components can
// subscribe to round events.
func (conR *Reactor) EventSwitch() events.EventSwitch {
	return conR.eventSwitch
}

func (conR *Reactor) OnStart() error {
	if err := conR.eventSwitch.Start(); err != nil {
		return err
	}
	go conR.pollRoutine()
	conR.Logger.Info("consensus reactor started")
	return nil
}

func (conR *Reactor) OnStop() {
	if err := conR.eventSwitch.Stop(); err != nil {
		conR.Logger.Error("failed to stop event switch", "err", err)
	}
	conR.Logger.Info("consensus reactor stopped")
}

// Deliver hands an inbound peer message to the round. Never blocks the
// network layer: the message is dropped with a log line when the queue is
// full.
func (conR *Reactor) Deliver(msg Message) {
	select {
	case conR.peerMsgQueue <- msg:
	default:
		conR.Logger.Error("peer message queue full, dropping message", "msg", msg)
	}
}

// OnNewHeight signals the next chain block: the running round is discarded
// and a fresh one armed. A nil validator set keeps the roster.
func (conR *Reactor) OnNewHeight(height uint64, validators *types.ValidatorSet) {
	select {
	case conR.heightQueue <- heightInfo{height: height, validators: validators}:
	default:
		// a pending reset is superseded
		select {
		case <-conR.heightQueue:
		default:
		}
		conR.heightQueue <- heightInfo{height: height, validators: validators}
	}
}

func (conR *Reactor) pollRoutine() {
	ticker := time.NewTicker(conR.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-conR.Quit():
			return
		case msg := <-conR.peerMsgQueue:
			before := conR.sm.Proposal()
			if err := conR.sm.Deliver(msg); err == nil {
				if after := conR.sm.Proposal(); before == nil && after != nil {
					conR.eventSwitch.FireEvent(EventNewProposal, after)
				}
			}
			conR.step()
		case info := <-conR.heightQueue:
			if err := conR.sm.Reset(info.height, info.validators); err != nil {
				conR.Logger.Error("round reset failed", "height", info.height, "err", err)
				continue
			}
			conR.applied = false
			conR.step()
		case <-ticker.C:
			conR.step()
		}
	}
}

// step advances the machine, flushes outbound messages and applies the round
// once it completes.
func (conR *Reactor) step() {
	for _, msg := range conR.sm.Advance() {
		if conR.broadcaster == nil {
			continue
		}
		if err := conR.broadcaster.Broadcast(msg); err != nil {
			conR.Logger.Error("broadcast failed", "msg", msg, "err", err)
		}
	}

	if conR.applied || conR.sm.CurrentPhase() != PhaseCompleted {
		return
	}
	conR.applied = true
	height := conR.sm.Height()
	if proposal, ok := conR.sm.AcceptedProposal(); ok && conR.applier != nil {
		if err := conR.applier.ApplyRound(height, proposal); err != nil {
			conR.Logger.Error("failed to apply round", "height", height, "err", err)
		}
	} else if !ok {
		conR.Logger.Info("round completed without an accepted proposal", "height", height)
	}
	conR.eventSwitch.FireEvent(EventRoundCompleted, height)
}
