package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/alejandrodnm/polyamm/internal/adapters/notify"
	"github.com/alejandrodnm/polyamm/internal/adapters/storage"
	"github.com/alejandrodnm/polyamm/internal/analytics"
	"github.com/alejandrodnm/polyamm/internal/domain"
	"github.com/alejandrodnm/polyamm/internal/ports"
	"github.com/alejandrodnm/polyamm/internal/pricing"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print journaled events and the last known state of each market",
		RunE:  runHistory,
	}
	cmd.Flags().String("market", "", "only events of this market")
	cmd.Flags().Int("limit", 20, "max events to print")
	cmd.Flags().Duration("twap", 0, "also print the time-weighted average price of --market over this window")
	cmd.Flags().String("outcome", "yes", "side used by --twap: yes | no")
	cmd.Flags().Int("twap-limit", 1000, "max journaled events read for --twap")
	return cmd
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Storage.DSN == "" {
		return fmt.Errorf("storage.dsn (or STORAGE_DSN) is required for history")
	}
	market, _ := cmd.Flags().GetString("market")
	limit, _ := cmd.Flags().GetInt("limit")

	ctx := context.Background()
	j, err := storage.Open(ctx, cfg.Storage.DSN)
	if err != nil {
		return err
	}
	defer j.Close()

	events, err := j.Events(ctx, market, limit)
	if err != nil {
		return err
	}
	console := notify.NewConsole()
	// más antiguo primero, como un log
	for i := len(events) - 1; i >= 0; i-- {
		if err := console.Publish(ctx, events[i]); err != nil {
			return err
		}
	}

	snaps, err := j.Snapshots(ctx)
	if err != nil {
		return err
	}
	rows := make([]notify.MarketRow, 0, len(snaps))
	for _, m := range snaps {
		yes, _ := pricing.Probe(cfg.Pool, m, domain.OutcomeYes)
		no, _ := pricing.Probe(cfg.Pool, m, domain.OutcomeNo)
		rows = append(rows, notify.MarketRow{Market: m, YesPrice: yes, NoPrice: no})
	}
	console.PrintMarkets(rows)

	window, _ := cmd.Flags().GetDuration("twap")
	if window <= 0 {
		return nil
	}
	return printTWAP(ctx, cmd, j, console, market, window)
}

// printTWAP calcula el TWAP de --market a partir de los TradeExecuted del journal.
func printTWAP(ctx context.Context, cmd *cobra.Command, j ports.Journal, console *notify.Console, market string, window time.Duration) error {
	if market == "" {
		return fmt.Errorf("--twap needs --market")
	}
	side, _ := cmd.Flags().GetString("outcome")
	outcome, err := domain.ParseOutcome(side)
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("twap-limit")
	twap, n, err := analytics.JournalTWAP(ctx, j, market, outcome, window, limit)
	if err != nil {
		return err
	}
	console.PrintTWAP(market, outcome, window, twap, n)
	return nil
}
