package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alejandrodnm/polyamm/internal/domain"
)

func newQuoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Quote a hypothetical trade on a freshly seeded market",
		RunE:  runQuote,
	}
	cmd.Flags().String("model", "", "amm model (default: pool.amm_model)")
	cmd.Flags().Uint64("liquidity", 200_000, "collateral injected into the market (split YES/NO)")
	cmd.Flags().String("side", "buy", "buy|sell")
	cmd.Flags().String("outcome", "yes", "yes|no")
	cmd.Flags().Uint64("amount", 1_000, "outcome units to trade")
	return cmd
}

func runQuote(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if m, _ := cmd.Flags().GetString("model"); m != "" {
		model, err := domain.ParseAMMModel(m)
		if err != nil {
			return err
		}
		cfg.Pool.AMMModel = model
		if err := cfg.Pool.Validate(); err != nil {
			return err
		}
	}
	isBuy, outcome, err := sideAndOutcome(cmd)
	if err != nil {
		return err
	}
	liquidity, _ := cmd.Flags().GetUint64("liquidity")
	amount, _ := cmd.Flags().GetUint64("amount")

	// quote es una cotización local: siempre custody en memoria, sin journal
	cfg.Custody.URL = ""
	cfg.Storage.DSN = ""

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	const maker = "quote-maker"
	a.memory.Fund(maker, liquidity)
	if err := a.pool.AddMarketLiquidity(ctx, maker, "quote", liquidity); err != nil {
		return err
	}

	res, err := a.pool.Quote("quote", isBuy, outcome, amount)
	if err != nil {
		return err
	}
	a.console.PrintQuote(res)
	return nil
}

func sideAndOutcome(cmd *cobra.Command) (bool, domain.Outcome, error) {
	side, _ := cmd.Flags().GetString("side")
	var isBuy bool
	switch side {
	case "buy":
		isBuy = true
	case "sell":
	default:
		return false, 0, fmt.Errorf("side must be buy or sell, got %q", side)
	}
	o, _ := cmd.Flags().GetString("outcome")
	outcome, err := domain.ParseOutcome(o)
	if err != nil {
		return false, 0, err
	}
	return isBuy, outcome, nil
}
