package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"edgeai-booster/internal/account"
	"edgeai-booster/internal/domain"
	"edgeai-booster/internal/solana"
)

var commandTimeout time.Duration

var verifyCmd = &cobra.Command{
	Use:   "verify <wallet>",
	Short: "Report a wallet's premium status from the ledger",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerify,
}

var deriveCmd = &cobra.Command{
	Use:   "derive [wallet]",
	Short: "Print the config address and, with a wallet, its subscription address",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDerive,
}

var boostCmd = &cobra.Command{
	Use:   "boost <market-slug> [probability]",
	Short: "Boost one market and print the result as JSON",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runBoost,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply storage migrations for the configured backends",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func init() {
	for _, c := range []*cobra.Command{verifyCmd, boostCmd, migrateCmd} {
		c.Flags().DurationVar(&commandTimeout, "timeout", 30*time.Second, "Overall command timeout")
	}
}

func runVerify(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	wallet := args[0]
	if _, err := solana.ParsePublicKey(wallet); err != nil {
		return fmt.Errorf("wallet: %w", err)
	}

	premium, expiresAt := a.verifier.IsPremium(ctx, wallet)
	out := cmd.OutOrStdout()
	if !premium {
		fmt.Fprintf(out, "%s: free\n", wallet)
		return nil
	}
	fmt.Fprintf(out, "%s: premium until %s\n", wallet, expiresAt.UTC().Format(time.RFC3339))
	return nil
}

func runDerive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	programID, err := solana.ParsePublicKey(cfg.ProgramID)
	if err != nil {
		return fmt.Errorf("program id: %w", err)
	}

	out := cmd.OutOrStdout()
	cfgAddr, cfgBump, err := account.ConfigAddress(programID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "program:      %s\n", programID)
	fmt.Fprintf(out, "config:       %s (bump %d)\n", cfgAddr, cfgBump)

	if len(args) == 0 {
		return nil
	}
	wallet, err := solana.ParsePublicKey(args[0])
	if err != nil {
		return fmt.Errorf("wallet: %w", err)
	}
	subAddr, subBump, err := account.SubscriptionAddress(wallet, programID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "subscription: %s (bump %d)\n", subAddr, subBump)
	return nil
}

type boostOutput struct {
	MarketSlug     string  `json:"market_slug"`
	Question       string  `json:"question,omitempty"`
	MarketProb     float64 `json:"market_prob"`
	BoostedProb    float64 `json:"boosted_prob"`
	Signal         string  `json:"signal"`
	SentimentScore float64 `json:"sentiment_score"`
	PriceMomentum  float64 `json:"price_momentum"`
	Symbol         string  `json:"symbol"`
}

func runBoost(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	slug := args[0]
	var (
		question string
		prob     float64
	)
	m, err := a.markets.FindBySlug(ctx, slug)
	switch {
	case err == nil:
		question, prob = m.Question, m.YesProbability
	case len(args) == 2:
	case errors.Is(err, domain.ErrNotFound):
		return fmt.Errorf("market %q not found", slug)
	default:
		return err
	}
	if len(args) == 2 {
		prob, err = strconv.ParseFloat(args[1], 64)
		if err != nil || prob < 0 || prob > 1 {
			return fmt.Errorf("probability must be between 0 and 1, got %q", args[1])
		}
	}

	res := a.engine.Boost(ctx, slug, question, prob)
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(boostOutput{
		MarketSlug:     res.MarketSlug,
		Question:       question,
		MarketProb:     res.MarketProbability,
		BoostedProb:    res.BoostedProbability,
		Signal:         res.Signal.String(),
		SentimentScore: res.SentimentScore,
		PriceMomentum:  res.PriceMomentum,
		Symbol:         res.Symbol,
	})
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	if _, err := a.openRegistry(ctx); err != nil {
		return err
	}
	if _, err := a.openDeliveryLog(ctx); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (driver %s, clickhouse %t)\n", a.cfg.Storage.Driver, a.cfg.Storage.ClickhouseDSN != "")
	return nil
}
