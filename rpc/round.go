package rpc

import (
	tmbytes "github.com/tendermint/tendermint/libs/bytes"
	rpctypes "github.com/tendermint/tendermint/rpc/jsonrpc/types"

	"auctionbft/store"
	"auctionbft/types"
)

type ResultStatus struct {
	ChainID       string           `json:"chain_id"`
	AppliedHeight uint64           `json:"applied_height"`
	RoundHeight   uint64           `json:"round_height"`
	Phase         string           `json:"phase"`
	IsLeader      bool             `json:"is_leader"`
	LastProposal  tmbytes.HexBytes `json:"last_proposal"`
	PoolSize      int              `json:"pool_size"`
}

// Status reports where the node stands: the applied chain state and the
// running round.
func Status(ctx *rpctypes.Context) (*ResultStatus, error) {
	s := env.Executor.State()
	return &ResultStatus{
		ChainID:       s.ChainID,
		AppliedHeight: s.Height,
		RoundHeight:   env.Round.Height(),
		Phase:         env.Round.CurrentPhase().String(),
		IsLeader:      env.Round.IsLeader(),
		LastProposal:  s.LastProposalHash,
		PoolSize:      env.Pool.Size(),
	}, nil
}

type ResultRound struct {
	Height       uint64               `json:"height"`
	ProposalHash tmbytes.HexBytes     `json:"proposal_hash"`
	Leader       types.Address        `json:"leader"`
	Solutions    []types.PoolSolution `json:"solutions"`
}

func resultFromRecord(record *store.RoundRecord) *ResultRound {
	return &ResultRound{
		Height:       record.Height,
		ProposalHash: record.ProposalHash,
		Leader:       record.Leader,
		Solutions:    record.Solutions,
	}
}

// Round returns the persisted outcome of the round at the given height.
func Round(ctx *rpctypes.Context, height uint64) (*ResultRound, error) {
	record, err := env.Store.LoadRound(height)
	if err != nil {
		return nil, err
	}
	return resultFromRecord(record), nil
}

// LatestRound returns the most recently persisted round.
func LatestRound(ctx *rpctypes.Context) (*ResultRound, error) {
	height, ok, err := env.Store.LatestHeight()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, store.ErrRoundNotFound
	}
	record, err := env.Store.LoadRound(height)
	if err != nil {
		return nil, err
	}
	return resultFromRecord(record), nil
}

type ResultViolations struct {
	Violations []store.ViolationRecord `json:"violations"`
}

// Violations returns the solve-disagreement evidence recorded at a height.
func Violations(ctx *rpctypes.Context, height uint64) (*ResultViolations, error) {
	records, err := env.Store.LoadViolations(height)
	if err != nil {
		return nil, err
	}
	return &ResultViolations{Violations: records}, nil
}
