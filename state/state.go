package state

import (
	"sort"
	"time"

	tmbytes "github.com/tendermint/tendermint/libs/bytes"

	"auctionbft/matching"
	"auctionbft/store"
	"auctionbft/types"
)

// PoolState is one pool's AMM reserves as of the last applied round.
type PoolState struct {
	ID           types.PoolID
	ReserveBase  uint64
	ReserveQuote uint64
}

// State is the chain-side view the sequencer tracks: the last applied round
// and the per-pool AMM reserves every subsequent solve prices against.
type State struct {
	ChainID string

	// last applied round
	Height           uint64
	LastProposalHash tmbytes.HexBytes
	LastRoundTime    time.Time

	Pools map[types.PoolID]*PoolState
}

// MakeGenesisState builds the initial state from a validated genesis doc.
func MakeGenesisState(genDoc *types.GenesisDoc) State {
	pools := make(map[types.PoolID]*PoolState, len(genDoc.Pools))
	for _, p := range genDoc.Pools {
		pools[p.ID] = &PoolState{
			ID:           p.ID,
			ReserveBase:  p.ReserveBase,
			ReserveQuote: p.ReserveQuote,
		}
	}
	return State{
		ChainID:       genDoc.ChainID,
		Height:        genDoc.InitialHeight,
		LastRoundTime: genDoc.GenesisTime,
		Pools:         pools,
	}
}

// StateFromRecord rebuilds a state from its persisted snapshot.
func StateFromRecord(record *store.StateRecord) State {
	pools := make(map[types.PoolID]*PoolState, len(record.Pools))
	for _, p := range record.Pools {
		pools[p.ID] = &PoolState{
			ID:           p.ID,
			ReserveBase:  p.ReserveBase,
			ReserveQuote: p.ReserveQuote,
		}
	}
	return State{
		ChainID: record.ChainID,
		Height:  record.Height,
		Pools:   pools,
	}
}

// Copy returns a deep copy of the state.
func (state State) Copy() State {
	pools := make(map[types.PoolID]*PoolState, len(state.Pools))
	for id, p := range state.Pools {
		cp := *p
		pools[id] = &cp
	}
	newState := State{
		ChainID:          state.ChainID,
		Height:           state.Height,
		LastProposalHash: make(tmbytes.HexBytes, len(state.LastProposalHash)),
		LastRoundTime:    state.LastRoundTime,
		Pools:            pools,
	}
	copy(newState.LastProposalHash, state.LastProposalHash)
	return newState
}

// AmmSnapshots materializes the per-pool curve snapshots a solve runs
// against. Pools with an empty reserve are skipped; they cannot quote.
func (state State) AmmSnapshots() map[types.PoolID]*matching.AmmSnapshot {
	out := make(map[types.PoolID]*matching.AmmSnapshot, len(state.Pools))
	for id, p := range state.Pools {
		if p.ReserveBase == 0 || p.ReserveQuote == 0 {
			continue
		}
		out[id] = matching.NewAmmSnapshot(p.ReserveBase, p.ReserveQuote)
	}
	return out
}

// Record flattens the state into its persisted form, pools sorted by id.
func (state State) Record() *store.StateRecord {
	pools := make([]store.PoolRecord, 0, len(state.Pools))
	for _, p := range state.Pools {
		pools = append(pools, store.PoolRecord{
			ID:           p.ID,
			ReserveBase:  p.ReserveBase,
			ReserveQuote: p.ReserveQuote,
		})
	}
	sort.Slice(pools, func(i, j int) bool { return pools[i].ID < pools[j].ID })
	return &store.StateRecord{
		ChainID: state.ChainID,
		Height:  state.Height,
		Pools:   pools,
	}
}
