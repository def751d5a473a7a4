package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	tmos "github.com/tendermint/tendermint/libs/os"

	"auctionbft/privval"
)

// GenValidatorCmd generates a validator keypair for this node.
var GenValidatorCmd = &cobra.Command{
	Use:     "gen-validator",
	Aliases: []string{"gen_validator"},
	Short:   "Generate new validator keypair",
	PreRun:  deprecateSnakeCase,
	Run:     genValidator,
}

func init() {
	GenValidatorCmd.Flags().Int64Var(&seed, "seed", 0, "deterministic key seed, 0 draws a random key")
}

func genValidator(cmd *cobra.Command, args []string) {
	privValKeyFile := config.PrivValidatorKeyFile()
	if tmos.FileExists(privValKeyFile) {
		logger.Info("Found private validator", "keyFile", privValKeyFile)
		return
	}

	var pv *privval.FilePV
	if seed != 0 {
		pv = privval.GenFilePVWithSeed(privValKeyFile, seed)
	} else {
		pv = privval.GenFilePV(privValKeyFile)
	}
	jsbz, err := json.Marshal(pv)
	if err != nil {
		panic(err)
	}
	pv.Save()

	fmt.Printf("%v\n", string(jsbz))
}
