package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendermint/tendermint/crypto/ed25519"

	"auctionbft/types"
)

func testGenesisDoc(t *testing.T) *types.GenesisDoc {
	t.Helper()
	genDoc := &types.GenesisDoc{
		ChainID: "auction-test",
		Validators: []types.GenesisValidator{
			{PubKey: ed25519.GenPrivKey().PubKey()},
		},
		Pools: []types.GenesisPool{
			{ID: "eth-usdc", ReserveBase: 1000, ReserveQuote: 100_000},
			{ID: "wbtc-usdc", ReserveBase: 10, ReserveQuote: 500_000},
		},
	}
	require.NoError(t, genDoc.ValidateAndComplete())
	return genDoc
}

func TestMakeGenesisState(t *testing.T) {
	s := MakeGenesisState(testGenesisDoc(t))

	assert.Equal(t, "auction-test", s.ChainID)
	assert.EqualValues(t, 0, s.Height)
	require.Len(t, s.Pools, 2)
	assert.EqualValues(t, 1000, s.Pools["eth-usdc"].ReserveBase)
	assert.EqualValues(t, 500_000, s.Pools["wbtc-usdc"].ReserveQuote)
}

func TestStateCopyIsDeep(t *testing.T) {
	s := MakeGenesisState(testGenesisDoc(t))
	cp := s.Copy()

	cp.Pools["eth-usdc"].ReserveBase = 1
	cp.Height = 99

	assert.EqualValues(t, 1000, s.Pools["eth-usdc"].ReserveBase)
	assert.EqualValues(t, 0, s.Height)
}

func TestAmmSnapshotsSkipEmptyReserves(t *testing.T) {
	s := MakeGenesisState(testGenesisDoc(t))
	s.Pools["dead-pool"] = &PoolState{ID: "dead-pool", ReserveBase: 0, ReserveQuote: 500}

	snaps := s.AmmSnapshots()
	require.Len(t, snaps, 2)
	assert.Nil(t, snaps["dead-pool"])
	assert.NotNil(t, snaps["eth-usdc"])
}

func TestStateRecordRoundtrip(t *testing.T) {
	s := MakeGenesisState(testGenesisDoc(t))
	s.Height = 12

	record := s.Record()
	require.Len(t, record.Pools, 2)
	// pools come out sorted by id
	assert.EqualValues(t, "eth-usdc", record.Pools[0].ID)
	assert.EqualValues(t, "wbtc-usdc", record.Pools[1].ID)

	restored := StateFromRecord(record)
	assert.Equal(t, s.ChainID, restored.ChainID)
	assert.Equal(t, s.Height, restored.Height)
	assert.EqualValues(t, 1000, restored.Pools["eth-usdc"].ReserveBase)
}
