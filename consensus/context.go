package consensus

import (
	"fmt"

	"github.com/tendermint/tendermint/libs/log"

	"auctionbft/matching"
	"auctionbft/orderpool"
	"auctionbft/types"
)

// AmmSource supplies the per-pool AMM curve snapshots a round solves against.
// The surrounding system refreshes them from chain state between rounds.
type AmmSource interface {
	AmmSnapshots() map[types.PoolID]*matching.AmmSnapshot
}

// ViolationReporter receives solve disagreements found during finalization.
// Slashing is not enforced; the reporter is the hook where evidence handling
// would go.
type ViolationReporter interface {
	ReportViolation(height uint64, leader types.Address, claimed, computed []types.PoolSolution)
}

// RoundContext is the shared mutable state of one round. It is owned by the
// round state machine and recreated wholesale on every reset; phases never
// outlive it.
type RoundContext struct {
	chainID    string
	height     uint64
	leader     *types.Validator
	validators *types.ValidatorSet

	privVal  types.PrivValidator
	address  types.Address
	valIndex int32

	pool   orderpool.OrderPool
	engine matching.Engine
	amms   AmmSource

	// outbound FIFO, drained by Advance
	out []Message

	preProposals map[string]*types.PreProposal            // content hash -> pre-proposal
	aggregations map[string]*types.PreProposalAggregation // content hash -> aggregation
	proposal     *types.Proposal
	commits      *CommitSet

	solveFut  *matching.SolveFuture
	verifyFut *matching.SolveFuture

	// set when finalization found the leader's solutions diverging from the
	// replay; an apply must never follow
	replayMismatch bool

	logger log.Logger
}

func newRoundContext(
	chainID string,
	height uint64,
	validators *types.ValidatorSet,
	privVal types.PrivValidator,
	pool orderpool.OrderPool,
	engine matching.Engine,
	amms AmmSource,
	logger log.Logger,
) (*RoundContext, error) {
	pub, err := privVal.GetPubKey()
	if err != nil {
		return nil, fmt.Errorf("cannot get validator pubkey: %w", err)
	}
	address := types.GetAddress(pub)
	valIndex, _ := validators.GetByAddress(address)

	return &RoundContext{
		chainID:      chainID,
		height:       height,
		leader:       validators.GetLeader(height),
		validators:   validators,
		privVal:      privVal,
		address:      address,
		valIndex:     valIndex,
		pool:         pool,
		engine:       engine,
		amms:         amms,
		preProposals: make(map[string]*types.PreProposal),
		aggregations: make(map[string]*types.PreProposalAggregation),
		commits:      NewCommitSet(height, validators),
		logger:       logger,
	}, nil
}

func (ctx *RoundContext) isLeader() bool {
	return ctx.leader != nil && ctx.address.Equal(ctx.leader.Address)
}

func (ctx *RoundContext) enqueue(msg Message) {
	ctx.out = append(ctx.out, msg)
}

func (ctx *RoundContext) drain() []Message {
	out := ctx.out
	ctx.out = nil
	return out
}

// cancelFutures discards any in-flight solve; called on reset so no result
// from a superseded round is ever surfaced.
func (ctx *RoundContext) cancelFutures() {
	if ctx.solveFut != nil {
		ctx.solveFut.Cancel()
	}
	if ctx.verifyFut != nil {
		ctx.verifyFut.Cancel()
	}
}

// verifySigner runs the roster and signature checks shared by every payload
// kind.
func (ctx *RoundContext) verifySigner(signer types.Address, signBytes, signature []byte) error {
	_, val := ctx.validators.GetByAddress(signer)
	if val == nil {
		return ErrUnknownSender
	}
	if !val.PubKey.VerifySignature(signBytes, signature) {
		return ErrInvalidSignature
	}
	return nil
}

// addPreProposal runs the generic acceptance sequence on a pre-proposal:
// roster, height, signature, dedup. Returns true when the item is novel and
// was recorded.
func (ctx *RoundContext) addPreProposal(pre *types.PreProposal) (bool, error) {
	if pre.Height != ctx.height {
		return false, ErrHeightMismatch
	}
	if err := ctx.verifySigner(pre.Validator, pre.SignBytes(ctx.chainID), pre.Signature); err != nil {
		return false, err
	}
	key := pre.Hash().String()
	if _, seen := ctx.preProposals[key]; seen {
		return false, nil
	}
	ctx.preProposals[key] = pre
	return true, nil
}

// addAggregation verifies the aggregation envelope and every member, records
// the novel members, and reports whether the aggregation itself is novel.
func (ctx *RoundContext) addAggregation(agg *types.PreProposalAggregation) (bool, error) {
	if agg.Height != ctx.height {
		return false, ErrHeightMismatch
	}
	if err := ctx.verifySigner(agg.Validator, agg.SignBytes(ctx.chainID), agg.Signature); err != nil {
		return false, err
	}
	key := agg.Hash().String()
	if _, seen := ctx.aggregations[key]; seen {
		return false, nil
	}
	// every member must stand on its own before the unit is accepted
	for i := range agg.PreProposals {
		member := &agg.PreProposals[i]
		if member.Height != ctx.height {
			return false, ErrHeightMismatch
		}
		if err := ctx.verifySigner(member.Validator, member.SignBytes(ctx.chainID), member.Signature); err != nil {
			return false, err
		}
	}
	ctx.aggregations[key] = agg
	for i := range agg.PreProposals {
		member := &agg.PreProposals[i]
		memberKey := member.Hash().String()
		if _, seen := ctx.preProposals[memberKey]; !seen {
			ctx.preProposals[memberKey] = member
		}
	}
	return true, nil
}

// setProposal accepts the leader's proposal: source must be the round leader,
// content must belong to this round, signature must verify. Returns true when
// novel.
func (ctx *RoundContext) setProposal(proposal *types.Proposal) (bool, error) {
	if ctx.leader == nil || !proposal.Leader.Equal(ctx.leader.Address) {
		return false, ErrNotLeader
	}
	if !proposal.IsValid(ctx.height) {
		return false, ErrHeightMismatch
	}
	if !ctx.leader.PubKey.VerifySignature(proposal.SignBytes(ctx.chainID), proposal.Signature) {
		return false, ErrInvalidSignature
	}
	if ctx.proposal != nil {
		return false, nil
	}
	ctx.proposal = proposal
	return true, nil
}

// addCommit verifies and records a commit vote.
func (ctx *RoundContext) addCommit(vote *types.CommitVote) error {
	if vote.Height != ctx.height {
		return ErrHeightMismatch
	}
	if err := ctx.verifySigner(vote.Validator, vote.SignBytes(ctx.chainID), vote.Signature); err != nil {
		return err
	}
	return ctx.commits.AddVote(vote)
}

// validatorsSeen counts the distinct validators whose pre-proposal this node
// holds.
func (ctx *RoundContext) validatorsSeen() int {
	seen := make(map[string]struct{})
	for _, pre := range ctx.preProposals {
		seen[pre.Validator.String()] = struct{}{}
	}
	return len(seen)
}

// distinctPreProposals returns the recorded pre-proposals in canonical
// (content hash) order.
func (ctx *RoundContext) distinctPreProposals() []types.PreProposal {
	pres := make([]types.PreProposal, 0, len(ctx.preProposals))
	for _, pre := range ctx.preProposals {
		pres = append(pres, *pre)
	}
	types.SortPreProposals(pres)
	return pres
}

// quorumOrders flattens pre-proposals into per-pool order sets, keeping only
// orders independently observed by at least quorum(n) distinct validators.
// Pre-proposals are deduplicated by content hash before counting, so a
// re-signed copy of the same view never double-counts.
func quorumOrders(pres []types.PreProposal, quorum int) (limit, searcher map[types.PoolID][]types.Order) {
	type sighting struct {
		order      types.Order
		validators map[string]struct{}
	}
	distinct := make(map[string]types.PreProposal, len(pres))
	for _, pre := range pres {
		distinct[pre.Hash().String()] = pre
	}

	count := func(m map[types.PoolID][]types.Order, pre *types.PreProposal, sightings map[string]*sighting) {
		for _, orders := range m {
			for _, o := range orders {
				key := o.ID().String()
				s, ok := sightings[key]
				if !ok {
					s = &sighting{order: o, validators: make(map[string]struct{})}
					sightings[key] = s
				}
				s.validators[pre.Validator.String()] = struct{}{}
			}
		}
	}

	limitSightings := make(map[string]*sighting)
	searcherSightings := make(map[string]*sighting)
	for _, pre := range distinct {
		p := pre
		count(p.Limit, &p, limitSightings)
		count(p.Searcher, &p, searcherSightings)
	}

	filter := func(sightings map[string]*sighting) map[types.PoolID][]types.Order {
		out := make(map[types.PoolID][]types.Order)
		for _, s := range sightings {
			if len(s.validators) >= quorum {
				out[s.order.Pool] = append(out[s.order.Pool], s.order)
			}
		}
		for pool := range out {
			types.SortOrders(out[pool])
		}
		return out
	}
	return filter(limitSightings), filter(searcherSightings)
}
