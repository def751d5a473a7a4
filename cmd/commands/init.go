package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	cfg "github.com/tendermint/tendermint/config"
	tmos "github.com/tendermint/tendermint/libs/os"
	tmrand "github.com/tendermint/tendermint/libs/rand"
	tmtime "github.com/tendermint/tendermint/types/time"

	"auctionbft/privval"
	"auctionbft/types"
)

var pools []string

// InitFilesCmd initialises a fresh standalone sequencer node: validator key
// plus a single-validator genesis file.
var InitFilesCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a standalone sequencer node",
	RunE:  initFiles,
}

func init() {
	InitFilesCmd.Flags().StringVar(&chainID, "chain-id", "", "chain id, a random one is generated when empty")
	InitFilesCmd.Flags().StringArrayVar(&pools, "pool", nil,
		"trading pool as id:reserve_base:reserve_quote, repeatable")
}

func initFiles(cmd *cobra.Command, args []string) error {
	return initFilesWithConfig(config)
}

func initFilesWithConfig(config *cfg.Config) error {
	// private validator
	privValKeyFile := config.PrivValidatorKeyFile()

	var pv *privval.FilePV
	if tmos.FileExists(privValKeyFile) {
		pv = privval.LoadFilePV(privValKeyFile)
		logger.Info("Found private validator", "keyFile", privValKeyFile)
	} else {
		pv = privval.GenFilePV(privValKeyFile)
		pv.Save()
		logger.Info("Generated private validator", "keyFile", privValKeyFile)
	}

	// genesis file
	genFile := config.GenesisFile()
	if tmos.FileExists(genFile) {
		logger.Info("Found genesis file", "path", genFile)
		return nil
	}

	if chainID == "" {
		chainID = fmt.Sprintf("auction-chain-%v", tmrand.Str(6))
	}
	genesisPools, err := parseGenesisPools(pools)
	if err != nil {
		return err
	}

	pubKey, err := pv.GetPubKey()
	if err != nil {
		return fmt.Errorf("can't get pubkey: %w", err)
	}
	genDoc := types.GenesisDoc{
		ChainID:     chainID,
		GenesisTime: tmtime.Now(),
		Validators: []types.GenesisValidator{{
			Address:        pubKey.Address(),
			PubKey:         pubKey,
			LeaderEligible: true,
		}},
		Pools: genesisPools,
	}
	if err := genDoc.ValidateAndComplete(); err != nil {
		return err
	}
	if err := genDoc.SaveAs(genFile); err != nil {
		return err
	}
	logger.Info("Generated genesis file", "path", genFile)
	return nil
}

// parseGenesisPools parses id:reserve_base:reserve_quote declarations.
func parseGenesisPools(decls []string) ([]types.GenesisPool, error) {
	out := make([]types.GenesisPool, 0, len(decls))
	for _, decl := range decls {
		parts := strings.Split(decl, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid pool declaration %q, want id:reserve_base:reserve_quote", decl)
		}
		base, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid reserve_base in pool %q: %w", decl, err)
		}
		quote, err := strconv.ParseUint(parts[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid reserve_quote in pool %q: %w", decl, err)
		}
		out = append(out, types.GenesisPool{
			ID:           types.PoolID(parts[0]),
			ReserveBase:  base,
			ReserveQuote: quote,
		})
	}
	return out, nil
}
