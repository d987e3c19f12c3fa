package main

import (
	"github.com/spf13/cobra"

	"github.com/alejandrodnm/polyamm/internal/adapters/notify"
	"github.com/alejandrodnm/polyamm/internal/domain"
	"github.com/alejandrodnm/polyamm/internal/pricing"
)

func newModelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Compare the price every model gives for the same trade",
		RunE:  runModels,
	}
	cmd.Flags().Uint64("yes", 100_000, "YES reserve")
	cmd.Flags().Uint64("no", 100_000, "NO reserve")
	cmd.Flags().String("side", "buy", "buy|sell")
	cmd.Flags().String("outcome", "yes", "yes|no")
	cmd.Flags().Uint64("amount", 0, "outcome units (0 = marginal price)")
	return cmd
}

func runModels(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	isBuy, outcome, err := sideAndOutcome(cmd)
	if err != nil {
		return err
	}
	yes, _ := cmd.Flags().GetUint64("yes")
	no, _ := cmd.Flags().GetUint64("no")
	amount, _ := cmd.Flags().GetUint64("amount")

	m := domain.MarketReserve{
		MarketID:       "cmp",
		YesReserve:     yes,
		NoReserve:      no,
		TotalLiquidity: yes + no,
	}

	var rows []notify.ModelRow
	for _, model := range []domain.AMMModel{domain.ModelLMSR, domain.ModelPMAMM, domain.ModelL2AMM, domain.ModelHybrid} {
		m.AMMModel = model
		p, err := pricing.Price(cfg.Pool, m, isBuy, outcome, amount)
		rows = append(rows, notify.ModelRow{Model: model, Price: p, Err: err})
	}
	notify.NewConsole().PrintModels(rows)
	return nil
}
