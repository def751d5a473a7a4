package types

import (
	"github.com/tendermint/tendermint/crypto"
)

// PrivValidator signs consensus payloads on behalf of this node's validator
// identity. Implementations sign over the payload's canonical sign bytes and
// write the signature back into the payload.
type PrivValidator interface {
	GetPubKey() (crypto.PubKey, error)

	SignPreProposal(chainID string, pre *PreProposal) error
	SignAggregation(chainID string, agg *PreProposalAggregation) error
	SignProposal(chainID string, proposal *Proposal) error
	SignCommit(chainID string, commit *CommitVote) error
}

//----------------------------------------
// MockPV

// MockPV implements PrivValidator without any double-sign protection or
// persistence. For use in testing.
type MockPV struct {
	PrivKey crypto.PrivKey
}

func NewMockPV(privKey crypto.PrivKey) *MockPV {
	return &MockPV{PrivKey: privKey}
}

func (pv *MockPV) GetPubKey() (crypto.PubKey, error) {
	return pv.PrivKey.PubKey(), nil
}

func (pv *MockPV) SignPreProposal(chainID string, pre *PreProposal) error {
	sig, err := pv.PrivKey.Sign(pre.SignBytes(chainID))
	if err != nil {
		return err
	}
	pre.Signature = sig
	return nil
}

func (pv *MockPV) SignAggregation(chainID string, agg *PreProposalAggregation) error {
	sig, err := pv.PrivKey.Sign(agg.SignBytes(chainID))
	if err != nil {
		return err
	}
	agg.Signature = sig
	return nil
}

func (pv *MockPV) SignProposal(chainID string, proposal *Proposal) error {
	sig, err := pv.PrivKey.Sign(proposal.SignBytes(chainID))
	if err != nil {
		return err
	}
	proposal.Signature = sig
	return nil
}

func (pv *MockPV) SignCommit(chainID string, commit *CommitVote) error {
	sig, err := pv.PrivKey.Sign(commit.SignBytes(chainID))
	if err != nil {
		return err
	}
	commit.Signature = sig
	return nil
}
