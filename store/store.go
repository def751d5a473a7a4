package store

import (
	tmbytes "github.com/tendermint/tendermint/libs/bytes"

	"auctionbft/types"
)

// RoundRecord is the persisted outcome of one finalized round.
type RoundRecord struct {
	Height       uint64               `json:"height"`
	ProposalHash tmbytes.HexBytes     `json:"proposal_hash"`
	Leader       types.Address        `json:"leader"`
	Solutions    []types.PoolSolution `json:"solutions"`
	Commits      []types.CommitVote   `json:"commits"`
}

// PoolRecord is one pool's persisted AMM reserves.
type PoolRecord struct {
	ID           types.PoolID `json:"id"`
	ReserveBase  uint64       `json:"reserve_base"`
	ReserveQuote uint64       `json:"reserve_quote"`
}

// StateRecord is the persisted chain-state snapshot written after every
// applied round.
type StateRecord struct {
	ChainID string       `json:"chain_id"`
	Height  uint64       `json:"height"`
	Pools   []PoolRecord `json:"pools"`
}

// ViolationRecord is the persisted evidence of one solve disagreement.
type ViolationRecord struct {
	Height   uint64               `json:"height"`
	Leader   types.Address        `json:"leader"`
	Claimed  []types.PoolSolution `json:"claimed"`
	Computed []types.PoolSolution `json:"computed"`
}

// Store persists finalized rounds and the running state snapshot.
type Store interface {
	SaveRound(record *RoundRecord) error
	LoadRound(height uint64) (*RoundRecord, error)
	// LatestHeight returns the highest saved round height; ok is false when no
	// round was saved yet.
	LatestHeight() (height uint64, ok bool, err error)

	SaveState(record *StateRecord) error
	LoadState() (*StateRecord, error)

	SaveViolation(record *ViolationRecord) error
	LoadViolations(height uint64) ([]ViolationRecord, error)

	Close() error
}
