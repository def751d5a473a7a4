package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	tmos "github.com/tendermint/tendermint/libs/os"
	tmtime "github.com/tendermint/tendermint/types/time"

	"auctionbft/crypto/bls"
	"auctionbft/types"
)

var clusterCount int

// GenGenesisCmd generates a genesis file for a deterministic local cluster:
// validator i gets the key seeded with seed+i.
var GenGenesisCmd = &cobra.Command{
	Use:     "gen-genesis",
	Aliases: []string{"gen_genesis"},
	Short:   "Generate a genesis file for a local cluster",
	PreRun:  deprecateSnakeCase,
	RunE:    genGenesisFile,
}

func init() {
	GenGenesisCmd.Flags().StringVar(&chainID, "chain-id", "auction-chain", "chain id")
	GenGenesisCmd.Flags().Int64Var(&seed, "seed", 1, "base seed for the cluster's validator keys")
	GenGenesisCmd.Flags().IntVar(&clusterCount, "cluster-count", 4, "number of validators")
	GenGenesisCmd.Flags().StringArrayVar(&pools, "pool", nil,
		"trading pool as id:reserve_base:reserve_quote, repeatable")
}

func genGenesisFile(cmd *cobra.Command, args []string) error {
	genFile := config.GenesisFile()
	if tmos.FileExists(genFile) {
		logger.Info("Found genesis file, exiting", "path", genFile)
		return nil
	}
	if clusterCount <= 0 {
		return fmt.Errorf("cluster-count must be positive, got %d", clusterCount)
	}

	valList := make([]types.GenesisValidator, clusterCount)
	for id := 1; id <= clusterCount; id++ {
		priv := bls.GenPrivKeyWithSeed(seed + int64(id))
		pub := priv.PubKey()
		valList[id-1] = types.GenesisValidator{
			Address:        pub.Address(),
			PubKey:         pub,
			LeaderEligible: true,
			Name:           fmt.Sprintf("validator-%v", id),
		}
	}

	genesisPools, err := parseGenesisPools(pools)
	if err != nil {
		return err
	}

	genDoc := types.GenesisDoc{
		ChainID:     chainID,
		GenesisTime: tmtime.Now(),
		Validators:  valList,
		Pools:       genesisPools,
	}
	if err := genDoc.ValidateAndComplete(); err != nil {
		return err
	}
	if err := genDoc.SaveAs(genFile); err != nil {
		return err
	}
	logger.Info("Generated genesis file", "path", genFile, "validators", clusterCount)
	return nil
}
