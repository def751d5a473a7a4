package main

import (
	"os"
	"path/filepath"

	cfg "github.com/tendermint/tendermint/config"
	"github.com/tendermint/tendermint/libs/cli"

	cmd "auctionbft/cmd/commands"
	nm "auctionbft/node"
)

func main() {
	cfg.DefaultTendermintDir = ".auctionbft"
	rootCmd := cmd.RootCmd

	rootCmd.AddCommand(
		cmd.InitFilesCmd,
		cmd.GenValidatorCmd,
		cmd.ShowValidatorCmd,
		cmd.GenGenesisCmd,
		cmd.NewRunNodeCmd(nm.DefaultNewNode),
		cli.NewCompletionCmd(rootCmd, true),
	)

	baseCmd := cli.PrepareBaseCmd(rootCmd, "AUCTION",
		os.ExpandEnv(filepath.Join("$HOME", cfg.DefaultTendermintDir)))
	if err := baseCmd.Execute(); err != nil {
		panic(err)
	}
}
