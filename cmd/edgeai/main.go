// Package main is the EDGEAI prediction booster: Telegram bot, HTTP API and
// signal broadcaster in one process, plus a few operator commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "edgeai",
	Short: "Premium-gated prediction market booster",
	Long: `edgeai boosts Polymarket probabilities with text sentiment and spot-price
momentum, gates premium features on an on-chain subscription account, and
pushes strong signals to subscribed Telegram users.`,
	SilenceUsage: true,
}

func init() {
	bindGlobalFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(deriveCmd)
	rootCmd.AddCommand(boostCmd)
	rootCmd.AddCommand(migrateCmd)
}

func bindGlobalFlags(fs *pflag.FlagSet) {
	fs.StringVar(&configPath, "config", "", "Path to YAML config (default $EDGEAI_CONFIG or ./config.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
