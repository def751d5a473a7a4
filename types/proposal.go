package types

import (
	"crypto/sha256"
	"errors"
	"fmt"

	tmbytes "github.com/tendermint/tendermint/libs/bytes"
	tmjson "github.com/tendermint/tendermint/libs/json"
)

// Proposal is the round leader's signed claim for a round: the distinct
// pre-proposals it aggregated and the per-pool clearing solutions it computed
// from their quorum-filtered union. Every other validator recomputes the
// solutions from the embedded pre-proposals and compares.
type Proposal struct {
	Height       uint64           `json:"height"`
	Leader       Address          `json:"leader"`
	PreProposals []PreProposal    `json:"pre_proposals"`
	Solutions    []PoolSolution   `json:"solutions"`
	Signature    tmbytes.HexBytes `json:"signature"`
}

// NewProposal assembles an unsigned proposal with its pre-proposals and
// solutions in canonical order.
func NewProposal(height uint64, leader Address, pres []PreProposal, sols []PoolSolution) *Proposal {
	members := make([]PreProposal, len(pres))
	copy(members, pres)
	SortPreProposals(members)

	solutions := make([]PoolSolution, len(sols))
	copy(solutions, sols)
	SortSolutions(solutions)

	return &Proposal{
		Height:       height,
		Leader:       leader,
		PreProposals: members,
		Solutions:    solutions,
	}
}

type canonicalProposal struct {
	ChainID      string             `json:"chain_id"`
	Height       uint64             `json:"height"`
	Leader       Address            `json:"leader"`
	PreProposals []tmbytes.HexBytes `json:"pre_proposals"`
	Solutions    []PoolSolution     `json:"solutions"`
}

func (p *Proposal) canonical(chainID string) canonicalProposal {
	members := make([]tmbytes.HexBytes, 0, len(p.PreProposals))
	for i := range p.PreProposals {
		members = append(members, p.PreProposals[i].Hash())
	}

	solutions := make([]PoolSolution, len(p.Solutions))
	copy(solutions, p.Solutions)
	SortSolutions(solutions)

	return canonicalProposal{
		ChainID:      chainID,
		Height:       p.Height,
		Leader:       p.Leader,
		PreProposals: members,
		Solutions:    solutions,
	}
}

func (p *Proposal) SignBytes(chainID string) []byte {
	bz, err := tmjson.Marshal(p.canonical(chainID))
	if err != nil {
		panic(err)
	}
	return bz
}

func (p *Proposal) Hash() tmbytes.HexBytes {
	h := sha256.Sum256(p.SignBytes(""))
	return h[:]
}

func (p *Proposal) ValidateBasic() error {
	if p == nil {
		return errors.New("nil proposal")
	}
	if len(p.Leader) == 0 {
		return errors.New("proposal without leader")
	}
	if len(p.PreProposals) == 0 {
		return errors.New("proposal without pre-proposals")
	}
	for i := range p.PreProposals {
		if err := p.PreProposals[i].ValidateBasic(); err != nil {
			return fmt.Errorf("invalid pre-proposal #%d: %w", i, err)
		}
	}
	return nil
}

// IsValid reports whether the proposal and all of its embedded pre-proposals
// belong to the round at the given height.
func (p *Proposal) IsValid(height uint64) bool {
	if p == nil || p.Height != height || p.ValidateBasic() != nil {
		return false
	}
	for i := range p.PreProposals {
		if !p.PreProposals[i].IsValid(height) {
			return false
		}
	}
	return true
}

func (p *Proposal) String() string {
	return fmt.Sprintf("Proposal{%d %v pres=%d sols=%d}",
		p.Height, p.Leader, len(p.PreProposals), len(p.Solutions))
}
