package consensus

import (
	"fmt"

	tmbytes "github.com/tendermint/tendermint/libs/bytes"

	"auctionbft/types"
)

// Message is a round protocol message, inbound from peers or queued for
// broadcast.
type Message interface {
	ValidateBasic() error
	String() string
}

// Broadcaster delivers an outbound message to the full validator set. The
// network layer supplies the implementation.
type Broadcaster interface {
	Broadcast(msg Message) error
}

//-----------------------------------------------------------------------------

type PreProposalMessage struct {
	PreProposal *types.PreProposal
}

func (m *PreProposalMessage) ValidateBasic() error {
	if m.PreProposal == nil {
		return errNilPayload
	}
	return m.PreProposal.ValidateBasic()
}

func (m *PreProposalMessage) String() string {
	return fmt.Sprintf("[PrePropose %v]", m.PreProposal)
}

type AggregationMessage struct {
	Aggregation *types.PreProposalAggregation
}

func (m *AggregationMessage) ValidateBasic() error {
	if m.Aggregation == nil {
		return errNilPayload
	}
	return m.Aggregation.ValidateBasic()
}

func (m *AggregationMessage) String() string {
	return fmt.Sprintf("[PreProposeAgg %v]", m.Aggregation)
}

type ProposalMessage struct {
	Proposal *types.Proposal
}

func (m *ProposalMessage) ValidateBasic() error {
	if m.Proposal == nil {
		return errNilPayload
	}
	return m.Proposal.ValidateBasic()
}

func (m *ProposalMessage) String() string {
	return fmt.Sprintf("[Proposal %v]", m.Proposal)
}

type CommitMessage struct {
	Vote *types.CommitVote
}

func (m *CommitMessage) ValidateBasic() error {
	if m.Vote == nil {
		return errNilPayload
	}
	return m.Vote.ValidateBasic()
}

func (m *CommitMessage) String() string {
	return fmt.Sprintf("[Commit %v]", m.Vote)
}

// SubmissionMessage relays the round's agreed result toward the chain. Only
// the leader emits it, and only with a commit quorum behind the proposal.
type SubmissionMessage struct {
	Height       uint64               `json:"height"`
	ProposalHash tmbytes.HexBytes     `json:"proposal_hash"`
	Solutions    []types.PoolSolution `json:"solutions"`
	Commits      []types.CommitVote   `json:"commits"`
}

func (m *SubmissionMessage) ValidateBasic() error {
	if len(m.ProposalHash) == 0 {
		return errNilPayload
	}
	return nil
}

func (m *SubmissionMessage) String() string {
	return fmt.Sprintf("[RelaySubmission %d %X commits=%d]", m.Height, m.ProposalHash, len(m.Commits))
}
