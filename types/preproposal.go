package types

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"

	tmbytes "github.com/tendermint/tendermint/libs/bytes"
	tmjson "github.com/tendermint/tendermint/libs/json"
)

// PreProposal is a single validator's local view of the eligible limit and
// searcher orders for one round, keyed per pool.
//
// A PreProposal is immutable once signed. Equality and hashing are defined
// over the canonical content only (height, validator, sorted order maps) and
// never over the signature: signature schemes need not be deterministic, so
// two independently signed instances with the same semantic content must
// still compare equal.
type PreProposal struct {
	Height    uint64             `json:"height"`
	Validator Address            `json:"validator"`
	Limit     map[PoolID][]Order `json:"limit"`
	Searcher  map[PoolID][]Order `json:"searcher"`
	Signature tmbytes.HexBytes   `json:"signature"`
}

// canonicalPreProposal is the deterministic serialization of a PreProposal's
// semantic content: pool-keyed maps flattened sorted by key, signature
// excluded.
type canonicalPreProposal struct {
	ChainID   string       `json:"chain_id"`
	Height    uint64       `json:"height"`
	Validator Address      `json:"validator"`
	Limit     []PoolOrders `json:"limit"`
	Searcher  []PoolOrders `json:"searcher"`
}

func (p *PreProposal) canonical(chainID string) canonicalPreProposal {
	return canonicalPreProposal{
		ChainID:   chainID,
		Height:    p.Height,
		Validator: p.Validator,
		Limit:     CanonicalPoolOrders(p.Limit),
		Searcher:  CanonicalPoolOrders(p.Searcher),
	}
}

// SignBytes returns the canonical byte serialization the signature covers.
func (p *PreProposal) SignBytes(chainID string) []byte {
	bz, err := tmjson.Marshal(p.canonical(chainID))
	if err != nil {
		panic(err)
	}
	return bz
}

// Hash returns the content hash used for dedup and equality inside a round.
// The chain ID is deliberately excluded: a round never sees foreign-chain
// payloads past signature verification.
func (p *PreProposal) Hash() tmbytes.HexBytes {
	h := sha256.Sum256(p.SignBytes(""))
	return h[:]
}

func (p *PreProposal) ValidateBasic() error {
	if p == nil {
		return errors.New("nil pre-proposal")
	}
	if len(p.Validator) == 0 {
		return errors.New("pre-proposal without source validator")
	}
	for pool, orders := range p.Limit {
		for _, o := range orders {
			if o.Kind == SearcherOrder {
				return fmt.Errorf("searcher order in limit map of pool %s", pool)
			}
			if err := o.ValidateBasic(); err != nil {
				return err
			}
		}
	}
	for pool, orders := range p.Searcher {
		for _, o := range orders {
			if o.Kind != SearcherOrder {
				return fmt.Errorf("%v order in searcher map of pool %s", o.Kind, pool)
			}
			if err := o.ValidateBasic(); err != nil {
				return err
			}
		}
	}
	return nil
}

// IsValid reports whether the pre-proposal belongs to the round at the given
// height.
func (p *PreProposal) IsValid(height uint64) bool {
	return p != nil && p.Height == height && p.ValidateBasic() == nil
}

func (p *PreProposal) String() string {
	return fmt.Sprintf("PreProposal{%d %v pools=%d/%d}",
		p.Height, p.Validator, len(p.Limit), len(p.Searcher))
}

// SortPreProposals orders pre-proposals by content hash so that every
// validator serializes the same set to identical bytes.
func SortPreProposals(pres []PreProposal) {
	sort.Slice(pres, func(i, j int) bool {
		return pres[i].Hash().String() < pres[j].Hash().String()
	})
}

//-----------------------------------------------------------------------------

// PreProposalAggregation is a set of PreProposals a validator has collected
// and forwards as one unit. It is the quorum input unit: the leader solves
// over the union of the aggregations it accepted.
type PreProposalAggregation struct {
	Height       uint64           `json:"height"`
	Validator    Address          `json:"validator"`
	PreProposals []PreProposal    `json:"pre_proposals"`
	Signature    tmbytes.HexBytes `json:"signature"`
}

// canonicalAggregation covers the member pre-proposals by their content
// hashes, not their transported bytes, so that re-signed but semantically
// identical members do not change the aggregation's identity.
type canonicalAggregation struct {
	ChainID   string             `json:"chain_id"`
	Height    uint64             `json:"height"`
	Validator Address            `json:"validator"`
	Members   []tmbytes.HexBytes `json:"members"`
}

func (agg *PreProposalAggregation) canonical(chainID string) canonicalAggregation {
	members := make([]tmbytes.HexBytes, 0, len(agg.PreProposals))
	for _, pre := range agg.PreProposals {
		members = append(members, pre.Hash())
	}
	sort.Slice(members, func(i, j int) bool {
		return members[i].String() < members[j].String()
	})
	return canonicalAggregation{
		ChainID:   chainID,
		Height:    agg.Height,
		Validator: agg.Validator,
		Members:   members,
	}
}

func (agg *PreProposalAggregation) SignBytes(chainID string) []byte {
	bz, err := tmjson.Marshal(agg.canonical(chainID))
	if err != nil {
		panic(err)
	}
	return bz
}

func (agg *PreProposalAggregation) Hash() tmbytes.HexBytes {
	h := sha256.Sum256(agg.SignBytes(""))
	return h[:]
}

func (agg *PreProposalAggregation) ValidateBasic() error {
	if agg == nil {
		return errors.New("nil pre-proposal aggregation")
	}
	if len(agg.Validator) == 0 {
		return errors.New("aggregation without source validator")
	}
	if len(agg.PreProposals) == 0 {
		return errors.New("empty aggregation")
	}
	for i := range agg.PreProposals {
		if err := agg.PreProposals[i].ValidateBasic(); err != nil {
			return fmt.Errorf("invalid member #%d: %w", i, err)
		}
	}
	return nil
}

// IsValid reports whether the aggregation and all of its members belong to
// the round at the given height.
func (agg *PreProposalAggregation) IsValid(height uint64) bool {
	if agg == nil || agg.Height != height || agg.ValidateBasic() != nil {
		return false
	}
	for i := range agg.PreProposals {
		if !agg.PreProposals[i].IsValid(height) {
			return false
		}
	}
	return true
}

func (agg *PreProposalAggregation) String() string {
	return fmt.Sprintf("PreProposalAggregation{%d %v members=%d}",
		agg.Height, agg.Validator, len(agg.PreProposals))
}
