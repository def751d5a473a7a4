package types

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendermint/tendermint/crypto/ed25519"
)

func newTestValidatorSet(n int) *ValidatorSet {
	vals := make([]*Validator, 0, n)
	for i := 0; i < n; i++ {
		vals = append(vals, NewValidator(ed25519.GenPrivKey().PubKey()))
	}
	return NewValidatorSet(vals)
}

func TestQuorumCount(t *testing.T) {
	cases := []struct {
		n, quorum int
	}{
		{1, 1},
		{2, 2},
		{3, 2},
		{4, 3},
		{5, 4},
		{6, 4},
		{7, 5},
		{10, 7},
		{100, 67},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.quorum, QuorumCount(tc.n), "n=%d", tc.n)
	}
}

func TestValidatorSetSortedByAddress(t *testing.T) {
	vals := newTestValidatorSet(10)
	for i := 1; i < vals.Size(); i++ {
		assert.True(t, bytes.Compare(vals.Validators[i-1].Address, vals.Validators[i].Address) < 0)
	}
}

func TestValidatorSetGetByAddress(t *testing.T) {
	vals := newTestValidatorSet(4)

	idx, val := vals.GetByAddress(vals.Validators[2].Address)
	require.NotNil(t, val)
	assert.EqualValues(t, 2, idx)
	assert.True(t, val.Address.Equal(vals.Validators[2].Address))

	idx, val = vals.GetByAddress(Address(ed25519.GenPrivKey().PubKey().Address()))
	assert.EqualValues(t, -1, idx)
	assert.Nil(t, val)
}

func TestGetLeaderRoundRobin(t *testing.T) {
	vals := newTestValidatorSet(3)

	seen := map[string]int{}
	for h := uint64(1); h <= 6; h++ {
		leader := vals.GetLeader(h)
		require.NotNil(t, leader)
		seen[leader.Address.String()]++
	}
	// every eligible validator leads the same number of rounds
	assert.Len(t, seen, 3)
	for _, count := range seen {
		assert.Equal(t, 2, count)
	}
}

func TestGetLeaderSkipsIneligible(t *testing.T) {
	vals := newTestValidatorSet(3)
	vals.Validators[0].LeaderEligible = false

	for h := uint64(0); h < 10; h++ {
		leader := vals.GetLeader(h)
		require.NotNil(t, leader)
		assert.False(t, leader.Address.Equal(vals.Validators[0].Address))
	}
}

func TestGetLeaderNoneEligible(t *testing.T) {
	vals := newTestValidatorSet(2)
	for _, val := range vals.Validators {
		val.LeaderEligible = false
	}
	assert.Nil(t, vals.GetLeader(1))
}
