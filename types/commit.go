package types

import (
	"errors"
	"fmt"
	"time"

	tmbytes "github.com/tendermint/tendermint/libs/bytes"
	tmjson "github.com/tendermint/tendermint/libs/json"
)

type CommitType uint8

const (
	SupportCommit = CommitType(0x01)
	NilCommit     = CommitType(0x02)
)

func (t CommitType) String() string {
	switch t {
	case SupportCommit:
		return "SupportCommit"
	case NilCommit:
		return "NilCommit"
	default:
		return fmt.Sprintf("UnknownCommit(%d)", t)
	}
}

// CommitVote is a validator's vote on the proposal it accepted for a round.
// A NilCommit carries an empty proposal hash and is cast on verification
// mismatch or proposal timeout.
type CommitVote struct {
	Height         uint64           `json:"height"`
	Type           CommitType       `json:"type"`
	ProposalHash   tmbytes.HexBytes `json:"proposal_hash"`
	Validator      Address          `json:"validator"`
	ValidatorIndex int32            `json:"validator_index"`
	Timestamp      time.Time        `json:"timestamp"`
	Signature      tmbytes.HexBytes `json:"signature"`
}

type canonicalCommit struct {
	ChainID        string           `json:"chain_id"`
	Height         uint64           `json:"height"`
	Type           CommitType       `json:"type"`
	ProposalHash   tmbytes.HexBytes `json:"proposal_hash"`
	Validator      Address          `json:"validator"`
	ValidatorIndex int32            `json:"validator_index"`
	Timestamp      time.Time        `json:"timestamp"`
}

func (c *CommitVote) SignBytes(chainID string) []byte {
	bz, err := tmjson.Marshal(canonicalCommit{
		ChainID:        chainID,
		Height:         c.Height,
		Type:           c.Type,
		ProposalHash:   c.ProposalHash,
		Validator:      c.Validator,
		ValidatorIndex: c.ValidatorIndex,
		Timestamp:      c.Timestamp,
	})
	if err != nil {
		panic(err)
	}
	return bz
}

func (c *CommitVote) ValidateBasic() error {
	if c == nil {
		return errors.New("nil commit vote")
	}
	if len(c.Validator) == 0 {
		return errors.New("commit vote without validator")
	}
	switch c.Type {
	case SupportCommit:
		if len(c.ProposalHash) == 0 {
			return errors.New("support commit without proposal hash")
		}
	case NilCommit:
		if len(c.ProposalHash) != 0 {
			return errors.New("nil commit with proposal hash")
		}
	default:
		return fmt.Errorf("unknown commit type %d", c.Type)
	}
	return nil
}

func (c *CommitVote) String() string {
	return fmt.Sprintf("CommitVote{%d %v %v}", c.Height, c.Type, c.Validator)
}
