package consensus

import (
	"fmt"
	"sync"
	"time"

	cfg "github.com/tendermint/tendermint/config"
	"github.com/tendermint/tendermint/libs/log"
	tmtime "github.com/tendermint/tendermint/types/time"

	"auctionbft/matching"
	"auctionbft/orderpool"
	"auctionbft/types"
)

// Phase is the round state machine's position. The set is closed; a round
// walks it strictly forward and only Reset rewinds.
type Phase uint8

const (
	PhaseBidAggregation         = Phase(0x01)
	PhasePreProposalAggregation = Phase(0x02)
	PhaseProposalWait           = Phase(0x03)
	PhaseCommit                 = Phase(0x04)
	// PhaseSubmit is entered by the leader only.
	PhaseSubmit = Phase(0x05)
	// PhaseFinalization is entered by non-leaders only.
	PhaseFinalization = Phase(0x06)
	PhaseCompleted    = Phase(0x07)
)

func (p Phase) String() string {
	switch p {
	case PhaseBidAggregation:
		return "BidAggregation"
	case PhasePreProposalAggregation:
		return "PreProposalAggregation"
	case PhaseProposalWait:
		return "ProposalWait"
	case PhaseCommit:
		return "Commit"
	case PhaseSubmit:
		return "Submit"
	case PhaseFinalization:
		return "Finalization"
	case PhaseCompleted:
		return "Completed"
	default:
		return fmt.Sprintf("UnknownPhase(%d)", p)
	}
}

// advance never loops more than the phase count plus one
const maxTransitionsPerAdvance = 8

// RoundStateMachine drives one round per chain block through the phase
// sequence. It is poll-driven and single-threaded: Deliver routes inbound
// messages to the active phase, Advance evaluates transitions and drains the
// outbound queue, Reset rewinds everything for a new height. None of the
// three ever block; timers are plain deadlines checked on poll, and the solve
// runs behind a polled future.
type RoundStateMachine struct {
	mtx sync.Mutex

	config  *cfg.ConsensusConfig
	chainID string

	validators *types.ValidatorSet
	privVal    types.PrivValidator
	pool       orderpool.OrderPool
	engine     matching.Engine
	amms       AmmSource
	reporter   ViolationReporter

	phase Phase
	ctx   *RoundContext

	bidDeadline      time.Time
	aggDeadline      time.Time
	proposalDeadline time.Time
	commitDeadline   time.Time
	submitDeadline   time.Time

	metric *roundMetric
	logger log.Logger
}

type RoundOption func(*RoundStateMachine)

// SetViolationReporter installs the finalization mismatch hook.
func SetViolationReporter(reporter ViolationReporter) RoundOption {
	return func(sm *RoundStateMachine) {
		sm.reporter = reporter
	}
}

func NewRoundStateMachine(
	config *cfg.ConsensusConfig,
	chainID string,
	validators *types.ValidatorSet,
	privVal types.PrivValidator,
	pool orderpool.OrderPool,
	engine matching.Engine,
	amms AmmSource,
	options ...RoundOption,
) *RoundStateMachine {
	sm := &RoundStateMachine{
		config:     config,
		chainID:    chainID,
		validators: validators,
		privVal:    privVal,
		pool:       pool,
		engine:     engine,
		amms:       amms,
		phase:      PhaseCompleted,
		metric:     newRoundMetric(),
		logger:     log.NewNopLogger(),
	}
	for _, option := range options {
		option(sm)
	}
	return sm
}

func (sm *RoundStateMachine) SetLogger(logger log.Logger) {
	sm.mtx.Lock()
	defer sm.mtx.Unlock()
	sm.logger = logger
}

func (sm *RoundStateMachine) Height() uint64 {
	sm.mtx.Lock()
	defer sm.mtx.Unlock()
	if sm.ctx == nil {
		return 0
	}
	return sm.ctx.height
}

func (sm *RoundStateMachine) CurrentPhase() Phase {
	sm.mtx.Lock()
	defer sm.mtx.Unlock()
	return sm.phase
}

func (sm *RoundStateMachine) IsLeader() bool {
	sm.mtx.Lock()
	defer sm.mtx.Unlock()
	return sm.ctx != nil && sm.ctx.isLeader()
}

// Proposal returns the round's accepted proposal, nil before acceptance.
func (sm *RoundStateMachine) Proposal() *types.Proposal {
	sm.mtx.Lock()
	defer sm.mtx.Unlock()
	if sm.ctx == nil {
		return nil
	}
	return sm.ctx.proposal
}

// AcceptedProposal returns the round's proposal once it carries a commit
// quorum and replay verification found no disagreement. The returned flag is
// false while the round is still running, when the round drained without a
// proposal or quorum, and after a recorded solve disagreement.
func (sm *RoundStateMachine) AcceptedProposal() (*types.Proposal, bool) {
	sm.mtx.Lock()
	defer sm.mtx.Unlock()
	ctx := sm.ctx
	if ctx == nil || ctx.proposal == nil || ctx.replayMismatch {
		return nil, false
	}
	if !ctx.commits.HasQuorum(ctx.proposal.Hash()) {
		return nil, false
	}
	return ctx.proposal, true
}

// Metric exposes the round metric item for the status registry.
func (sm *RoundStateMachine) Metric() *roundMetric {
	return sm.metric
}

// Reset discards the running round, including any in-flight solve, and arms a
// fresh round for the given height. A nil validator set keeps the current
// roster.
func (sm *RoundStateMachine) Reset(height uint64, validators *types.ValidatorSet) error {
	sm.mtx.Lock()
	defer sm.mtx.Unlock()

	if validators != nil {
		sm.validators = validators
	}
	if sm.ctx != nil {
		sm.ctx.cancelFutures()
	}

	ctx, err := newRoundContext(
		sm.chainID, height, sm.validators, sm.privVal, sm.pool, sm.engine, sm.amms, sm.logger,
	)
	if err != nil {
		return err
	}
	sm.ctx = ctx
	sm.phase = PhaseBidAggregation
	sm.bidDeadline = time.Now().Add(sm.config.TimeoutPropose)

	sm.metric.MarkHeight(height)
	sm.metric.MarkPhase(sm.phase.String())
	sm.metric.MarkIsLeader(ctx.isLeader())
	if ctx.leader != nil {
		sm.metric.MarkLeaderAddr(ctx.leader.Address.String())
	}
	sm.logger.Info("round reset", "height", height,
		"leader", ctx.leader, "is_leader", ctx.isLeader())
	return nil
}

// Deliver routes an inbound message to the active phase. Messages the phase
// does not expect are ignored; validation failures are logged and dropped,
// duplicates dropped silently. Never blocks.
func (sm *RoundStateMachine) Deliver(msg Message) error {
	sm.mtx.Lock()
	defer sm.mtx.Unlock()

	if sm.ctx == nil {
		return nil
	}
	if err := msg.ValidateBasic(); err != nil {
		sm.logger.Info("dropping malformed message", "msg", msg, "err", err)
		return err
	}

	switch m := msg.(type) {
	case *PreProposalMessage:
		if sm.phase != PhasePreProposalAggregation {
			return nil
		}
		return sm.deliverPreProposal(m)
	case *AggregationMessage:
		if sm.phase != PhasePreProposalAggregation {
			return nil
		}
		return sm.deliverAggregation(m)
	case *ProposalMessage:
		if sm.phase != PhaseProposalWait || sm.ctx.isLeader() {
			return nil
		}
		return sm.deliverProposal(m)
	case *CommitMessage:
		if sm.phase != PhaseCommit && sm.phase != PhaseSubmit {
			return nil
		}
		return sm.deliverCommit(m)
	default:
		return nil
	}
}

func (sm *RoundStateMachine) deliverPreProposal(msg *PreProposalMessage) error {
	novel, err := sm.ctx.addPreProposal(msg.PreProposal)
	if err != nil {
		sm.logMsgErr("pre-proposal", msg.PreProposal.Validator, err)
		return err
	}
	if novel {
		// re-broadcast exactly once
		sm.ctx.enqueue(msg)
		sm.metric.MarkPreProposalsSeen(len(sm.ctx.preProposals))
	}
	return nil
}

func (sm *RoundStateMachine) deliverAggregation(msg *AggregationMessage) error {
	novel, err := sm.ctx.addAggregation(msg.Aggregation)
	if err != nil {
		sm.logMsgErr("aggregation", msg.Aggregation.Validator, err)
		return err
	}
	if novel {
		sm.ctx.enqueue(msg)
		sm.metric.MarkPreProposalsSeen(len(sm.ctx.preProposals))
	}
	return nil
}

func (sm *RoundStateMachine) deliverProposal(msg *ProposalMessage) error {
	novel, err := sm.ctx.setProposal(msg.Proposal)
	if err != nil {
		sm.logMsgErr("proposal", msg.Proposal.Leader, err)
		return err
	}
	if !novel {
		return nil
	}
	sm.ctx.enqueue(msg)
	sm.metric.MarkProposalReceived(true)

	// kick off the independent replay solve from the proposal's own embedded
	// pre-proposals; finalization polls it
	limit, searcher := quorumOrders(msg.Proposal.PreProposals, sm.validators.Quorum())
	sm.ctx.verifyFut = sm.ctx.engine.Solve(limit, searcher, sm.ammSnapshots())
	return nil
}

func (sm *RoundStateMachine) deliverCommit(msg *CommitMessage) error {
	if err := sm.ctx.addCommit(msg.Vote); err != nil {
		if err == ErrDuplicateVote {
			return nil
		}
		sm.logMsgErr("commit", msg.Vote.Validator, err)
		return err
	}
	sm.ctx.enqueue(msg)
	sm.metric.MarkCommitsSeen(sm.ctx.commits.Size())
	return nil
}

func (sm *RoundStateMachine) logMsgErr(kind string, sender types.Address, err error) {
	switch err {
	case ErrUnknownSender:
		sm.logger.Error("unauthorized sender", "kind", kind, "sender", sender)
	default:
		sm.logger.Info("dropping invalid payload", "kind", kind, "sender", sender, "err", err)
	}
}

// Advance evaluates the current phase's transition condition, swapping phases
// until no transition is immediately available, then drains the outbound
// queue. Polled by the surrounding loop; never blocks.
func (sm *RoundStateMachine) Advance() []Message {
	sm.mtx.Lock()
	defer sm.mtx.Unlock()

	if sm.ctx == nil {
		return nil
	}
	now := time.Now()
	for i := 0; i < maxTransitionsPerAdvance; i++ {
		next, ok := sm.transition(now)
		if !ok {
			break
		}
		sm.enterPhase(next, now)
	}
	return sm.ctx.drain()
}

// transition reports the successor phase when the active phase is ready.
func (sm *RoundStateMachine) transition(now time.Time) (Phase, bool) {
	ctx := sm.ctx
	switch sm.phase {
	case PhaseBidAggregation:
		if now.Before(sm.bidDeadline) {
			return 0, false
		}
		sm.broadcastOwnPreProposal()
		return PhasePreProposalAggregation, true

	case PhasePreProposalAggregation:
		if ctx.validatorsSeen() < sm.validators.Quorum() && now.Before(sm.aggDeadline) {
			return 0, false
		}
		if ctx.isLeader() {
			sm.broadcastOwnAggregation()
			limit, searcher := quorumOrders(ctx.distinctPreProposals(), sm.validators.Quorum())
			ctx.solveFut = ctx.engine.Solve(limit, searcher, sm.ammSnapshots())
		}
		return PhaseProposalWait, true

	case PhaseProposalWait:
		if ctx.isLeader() {
			res, ok := ctx.solveFut.Result()
			if !ok {
				return 0, false
			}
			sm.broadcastOwnProposal(res)
			return PhaseCommit, true
		}
		if ctx.proposal != nil {
			return PhaseCommit, true
		}
		if now.Before(sm.proposalDeadline) {
			return 0, false
		}
		sm.logger.Info("leader produced no proposal before the deadline", "height", ctx.height)
		return PhaseCommit, true

	case PhaseCommit:
		if ctx.isLeader() {
			quorum := ctx.proposal != nil && ctx.commits.HasQuorum(ctx.proposal.Hash())
			if quorum || !now.Before(sm.commitDeadline) {
				return PhaseSubmit, true
			}
			return 0, false
		}
		if ctx.commits.Size() >= sm.validators.Quorum() || !now.Before(sm.commitDeadline) {
			return PhaseFinalization, true
		}
		return 0, false

	case PhaseSubmit:
		if now.Before(sm.submitDeadline) {
			return 0, false
		}
		sm.submit()
		return PhaseCompleted, true

	case PhaseFinalization:
		return sm.finalize()

	default: // PhaseCompleted
		return 0, false
	}
}

func (sm *RoundStateMachine) enterPhase(next Phase, now time.Time) {
	sm.logger.Debug("phase transition", "height", sm.ctx.height,
		"from", sm.phase, "to", next)
	sm.phase = next
	sm.metric.MarkPhase(next.String())

	switch next {
	case PhasePreProposalAggregation:
		sm.aggDeadline = now.Add(sm.config.TimeoutPrevote)
	case PhaseProposalWait:
		sm.proposalDeadline = now.Add(sm.config.TimeoutPrecommit)
	case PhaseCommit:
		sm.commitDeadline = now.Add(sm.config.TimeoutPrecommit)
		sm.castCommit()
	case PhaseSubmit:
		sm.submitDeadline = now.Add(sm.config.TimeoutCommit)
	}
}

func (sm *RoundStateMachine) broadcastOwnPreProposal() {
	ctx := sm.ctx
	limit, searcher := ctx.pool.ReapEligible(ctx.height)
	pre := &types.PreProposal{
		Height:    ctx.height,
		Validator: ctx.address,
		Limit:     limit,
		Searcher:  searcher,
	}
	if err := ctx.privVal.SignPreProposal(sm.chainID, pre); err != nil {
		sm.logger.Error("failed to sign pre-proposal", "err", err)
		return
	}
	ctx.preProposals[pre.Hash().String()] = pre
	ctx.enqueue(&PreProposalMessage{PreProposal: pre})
	sm.metric.MarkPreProposalsSeen(len(ctx.preProposals))
}

func (sm *RoundStateMachine) broadcastOwnAggregation() {
	ctx := sm.ctx
	agg := &types.PreProposalAggregation{
		Height:       ctx.height,
		Validator:    ctx.address,
		PreProposals: ctx.distinctPreProposals(),
	}
	if err := ctx.privVal.SignAggregation(sm.chainID, agg); err != nil {
		sm.logger.Error("failed to sign aggregation", "err", err)
		return
	}
	ctx.aggregations[agg.Hash().String()] = agg
	ctx.enqueue(&AggregationMessage{Aggregation: agg})
}

func (sm *RoundStateMachine) broadcastOwnProposal(res *matching.SolveResult) {
	ctx := sm.ctx
	proposal := types.NewProposal(ctx.height, ctx.address, ctx.distinctPreProposals(), res.Solutions)
	if err := ctx.privVal.SignProposal(sm.chainID, proposal); err != nil {
		sm.logger.Error("failed to sign proposal", "err", err)
		return
	}
	ctx.proposal = proposal
	ctx.enqueue(&ProposalMessage{Proposal: proposal})
	sm.metric.MarkProposalReceived(true)
}

// castCommit signs and broadcasts this node's commit vote: support for the
// accepted proposal, nil on timeout or on an already-known replay mismatch.
func (sm *RoundStateMachine) castCommit() {
	ctx := sm.ctx
	vote := &types.CommitVote{
		Height:         ctx.height,
		Type:           types.NilCommit,
		Validator:      ctx.address,
		ValidatorIndex: ctx.valIndex,
		Timestamp:      tmtime.Now(),
	}
	if ctx.proposal != nil && !sm.replayMismatchKnown() {
		vote.Type = types.SupportCommit
		vote.ProposalHash = ctx.proposal.Hash()
	}
	if err := ctx.privVal.SignCommit(sm.chainID, vote); err != nil {
		sm.logger.Error("failed to sign commit vote", "err", err)
		return
	}
	if err := ctx.commits.AddVote(vote); err != nil {
		sm.logger.Error("failed to record own commit vote", "err", err)
		return
	}
	ctx.enqueue(&CommitMessage{Vote: vote})
	sm.metric.MarkCommitsSeen(ctx.commits.Size())
}

// replayMismatchKnown reports whether the verification solve already finished
// and disagrees with the leader's claim.
func (sm *RoundStateMachine) replayMismatchKnown() bool {
	ctx := sm.ctx
	if ctx.proposal == nil || ctx.verifyFut == nil {
		return false
	}
	res, ok := ctx.verifyFut.Result()
	if !ok {
		return false
	}
	return !types.SolutionsEqual(ctx.proposal.Solutions, res.Solutions)
}

func (sm *RoundStateMachine) submit() {
	ctx := sm.ctx
	if ctx.proposal == nil {
		sm.logger.Info("no proposal to submit", "height", ctx.height)
		return
	}
	hash := ctx.proposal.Hash()
	if !ctx.commits.HasQuorum(hash) {
		sm.logger.Info("not enough commits to submit",
			"height", ctx.height, "commits", ctx.commits.Count(hash), "needed", sm.validators.Quorum())
		return
	}
	ctx.enqueue(&SubmissionMessage{
		Height:       ctx.height,
		ProposalHash: hash,
		Solutions:    ctx.proposal.Solutions,
		Commits:      ctx.commits.Votes(hash),
	})
	sm.metric.MarkSubmitted(true)
	sm.logger.Info("submitted round result", "height", ctx.height, "proposal", hash)
}

// finalize runs the replay verification to completion: the solutions the
// leader claimed must equal the ones recomputed from the proposal's embedded
// pre-proposals.
func (sm *RoundStateMachine) finalize() (Phase, bool) {
	ctx := sm.ctx
	if ctx.proposal == nil || ctx.verifyFut == nil {
		return PhaseCompleted, true
	}
	res, ok := ctx.verifyFut.Result()
	if !ok {
		return 0, false
	}
	if !types.SolutionsEqual(ctx.proposal.Solutions, res.Solutions) {
		ctx.replayMismatch = true
		sm.metric.MarkViolation()
		sm.logger.Error("solve disagreement: leader solutions do not match replay",
			"height", ctx.height, "leader", ctx.proposal.Leader)
		if sm.reporter != nil {
			sm.reporter.ReportViolation(ctx.height, ctx.proposal.Leader, ctx.proposal.Solutions, res.Solutions)
		}
	} else {
		sm.logger.Info("replay verification agreed", "height", ctx.height)
	}
	return PhaseCompleted, true
}

func (sm *RoundStateMachine) ammSnapshots() map[types.PoolID]*matching.AmmSnapshot {
	if sm.amms == nil {
		return nil
	}
	return sm.amms.AmmSnapshots()
}
