// fork from github.com/tendermint/tendermint/types/validator_set.go
package types

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ValidatorSet represents the fixed roster of validators for a round.
//
// The roster is ordered by address (ascending) and never mutated in place: it
// is replaced wholesale when the surrounding system resets the round. The
// round leader is derived from the block height by round-robin over the
// leader-eligible validators.
//
// NOTE: Not goroutine-safe.
// NOTE: All get/set to validators should copy the value for safety.
type ValidatorSet struct {
	// NOTE: persisted via reflect, must be exported.
	Validators []*Validator `json:"validators"`
}

// NewValidatorSet initializes a ValidatorSet by copying over the values from
// `valz`, a list of Validators, sorted by address. If valz is nil or empty,
// the new ValidatorSet will have an empty list of Validators.
func NewValidatorSet(valz []*Validator) *ValidatorSet {
	vals := &ValidatorSet{}
	vals.Validators = validatorListCopy(valz)

	sort.Slice(vals.Validators, func(i, j int) bool {
		return bytes.Compare(vals.Validators[i].Address, vals.Validators[j].Address) < 0
	})

	return vals
}

func (vals *ValidatorSet) ValidateBasic() error {
	if vals.IsNilOrEmpty() {
		return errors.New("validator set is nil or empty")
	}

	for idx, val := range vals.Validators {
		if err := val.ValidateBasic(); err != nil {
			return fmt.Errorf("invalid validator #%d: %w", idx, err)
		}
	}

	return nil
}

// IsNilOrEmpty returns true if validator set is nil or empty.
func (vals *ValidatorSet) IsNilOrEmpty() bool {
	return vals == nil || len(vals.Validators) == 0
}

// Makes a copy of the validator list.
func validatorListCopy(valsList []*Validator) []*Validator {
	if valsList == nil {
		return nil
	}
	valsCopy := make([]*Validator, len(valsList))
	for i, val := range valsList {
		valsCopy[i] = val.Copy()
	}
	return valsCopy
}

// Copy each validator into a new ValidatorSet.
func (vals *ValidatorSet) Copy() *ValidatorSet {
	return &ValidatorSet{
		Validators: validatorListCopy(vals.Validators),
	}
}

// HasAddress returns true if address given is in the validator set, false -
// otherwise.
func (vals *ValidatorSet) HasAddress(address Address) bool {
	for _, val := range vals.Validators {
		if address.Equal(val.Address) {
			return true
		}
	}
	return false
}

// GetByAddress returns an index of the validator with address and validator
// itself (copy) if found. Otherwise, -1 and nil are returned.
func (vals *ValidatorSet) GetByAddress(address Address) (index int32, val *Validator) {
	for idx, val := range vals.Validators {
		if address.Equal(val.Address) {
			return int32(idx), val.Copy()
		}
	}
	return -1, nil
}

// GetByIndex returns the validator's address and validator itself (copy) by
// index.
// It returns nil values if index is less than 0 or greater or equal to
// len(ValidatorSet.Validators).
func (vals *ValidatorSet) GetByIndex(index int32) (address Address, val *Validator) {
	if index < 0 || int(index) >= len(vals.Validators) {
		return nil, nil
	}
	val = vals.Validators[index]
	return val.Address, val.Copy()
}

// Size returns the length of the validator set.
func (vals *ValidatorSet) Size() int {
	return len(vals.Validators)
}

// Quorum returns the ceil(2n/3) acceptance threshold over the roster. It is
// the threshold both for an order to be eligible for matching and for commit
// votes to close a round.
func (vals *ValidatorSet) Quorum() int {
	return QuorumCount(len(vals.Validators))
}

// QuorumCount returns ceil(2n/3) for a roster of n validators.
func QuorumCount(n int) int {
	return (2*n + 2) / 3
}

// GetLeader returns the validator (copy) designated to lead the round for the
// given block height: round-robin by height over the leader-eligible subset.
// Returns nil if no validator is leader-eligible.
func (vals *ValidatorSet) GetLeader(height uint64) *Validator {
	eligible := make([]*Validator, 0, len(vals.Validators))
	for _, val := range vals.Validators {
		if val.LeaderEligible {
			eligible = append(eligible, val)
		}
	}
	if len(eligible) == 0 {
		return nil
	}
	return eligible[height%uint64(len(eligible))].Copy()
}

func (vals *ValidatorSet) String() string {
	return vals.StringIndented("")
}

// StringIndented returns an intended String.
func (vals *ValidatorSet) StringIndented(indent string) string {
	if vals == nil {
		return "nil-ValidatorSet"
	}
	valStrings := make([]string, 0, len(vals.Validators))
	for _, val := range vals.Validators {
		valStrings = append(valStrings, val.String())
	}
	return fmt.Sprintf(`ValidatorSet{
%s  Validators:
%s    %v
%s}`,
		indent, indent, strings.Join(valStrings, "\n"+indent+"    "),
		indent)
}
