package consensus

import (
	"sort"

	"auctionbft/types"
)

// CommitSet collects the commit votes of one round: at most one vote per
// validator, counted per proposal hash (nil commits under the empty hash).
type CommitSet struct {
	height     uint64
	validators *types.ValidatorSet

	votes  map[string]*types.CommitVote // validator address -> vote
	counts map[string]int               // proposal hash -> vote count
}

func NewCommitSet(height uint64, validators *types.ValidatorSet) *CommitSet {
	return &CommitSet{
		height:     height,
		validators: validators,
		votes:      make(map[string]*types.CommitVote),
		counts:     make(map[string]int),
	}
}

// AddVote records a verified commit vote. A second vote from the same
// validator is rejected regardless of content.
func (cs *CommitSet) AddVote(vote *types.CommitVote) error {
	if vote.Height != cs.height {
		return ErrHeightMismatch
	}
	if !cs.validators.HasAddress(vote.Validator) {
		return ErrUnknownSender
	}
	key := vote.Validator.String()
	if _, ok := cs.votes[key]; ok {
		return ErrDuplicateVote
	}
	cs.votes[key] = vote
	cs.counts[vote.ProposalHash.String()]++
	return nil
}

func (cs *CommitSet) Size() int {
	return len(cs.votes)
}

// Count returns how many validators committed to the given proposal hash.
func (cs *CommitSet) Count(proposalHash []byte) int {
	return cs.counts[types.OrderID(proposalHash).String()]
}

// HasQuorum reports whether ceil(2n/3) validators committed to the hash.
func (cs *CommitSet) HasQuorum(proposalHash []byte) bool {
	return cs.Count(proposalHash) >= cs.validators.Quorum()
}

// Votes returns the recorded votes for the given proposal hash, ordered by
// validator address.
func (cs *CommitSet) Votes(proposalHash []byte) []types.CommitVote {
	want := types.OrderID(proposalHash).String()
	votes := make([]types.CommitVote, 0, len(cs.votes))
	for _, vote := range cs.votes {
		if vote.ProposalHash.String() == want {
			votes = append(votes, *vote)
		}
	}
	sort.Slice(votes, func(i, j int) bool {
		return votes[i].Validator.String() < votes[j].Validator.String()
	})
	return votes
}
