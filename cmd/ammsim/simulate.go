package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/alejandrodnm/polyamm/internal/domain"
	"github.com/alejandrodnm/polyamm/internal/simulator"
)

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Seed a pool from config and run random trades against it",
		RunE:  runSimulate,
	}
	cmd.Flags().Int("trades", 0, "number of trades (overrides config)")
	cmd.Flags().Int("workers", 4, "concurrent trading goroutines")
	cmd.Flags().Int64("seed", 0, "random seed (overrides config)")
	cmd.Flags().Bool("events", false, "print every pool event")
	cmd.Flags().String("switch-model", "", "after the run, switch every market to this model (admin)")
	cmd.Flags().String("as", "", "principal used for admin actions (default: first admin/operator in config)")
	cmd.Flags().Bool("reset-counters", false, "after the run, reset 24h counters (operator)")
	cmd.Flags().Bool("hold", false, "keep serving /metrics until interrupted")
	return cmd
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetInt("trades"); v > 0 {
		cfg.Simulation.Trades = v
	}
	if v, _ := cmd.Flags().GetInt64("seed"); v != 0 {
		cfg.Simulation.Seed = v
	}
	workers, _ := cmd.Flags().GetInt("workers")
	echo, _ := cmd.Flags().GetBool("events")
	hold, _ := cmd.Flags().GetBool("hold")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, appOptions{echoEvents: echo})
	if err != nil {
		return err
	}
	defer a.Close()

	slog.Info("ammsim starting",
		"amm_model", cfg.Pool.AMMModel,
		"fee_bps", cfg.Pool.FeeBps,
		"dynamic_fees", cfg.Pool.DynamicFeesEnabled,
		"trades", cfg.Simulation.Trades,
		"workers", workers,
		"seed", cfg.Simulation.Seed,
		"journal", cfg.Storage.DSN != "",
	)

	sc := cfg.Simulation
	var funder simulator.Funder
	if a.memory != nil {
		funder = a.memory
	}
	sim, err := simulator.New(simulator.Config{
		Seed:            sc.Seed,
		Trades:          sc.Trades,
		Workers:         workers,
		Markets:         sc.Markets,
		MarketLiquidity: sc.MarketLiquidity,
		Providers:       sc.Providers,
		ProviderDeposit: sc.ProviderDeposit,
		Traders:         sc.Traders,
		TraderBalance:   sc.TraderBalance,
		MaxTradeAmount:  sc.MaxTradeAmount,
	}, a.pool, funder, slog.Default())
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	metricsCtx, stopMetrics := context.WithCancel(gctx)
	defer stopMetrics()
	if cfg.Metrics.Listen != "" {
		g.Go(func() error { return serveMetrics(metricsCtx, cfg.Metrics.Listen, a.metrics.Handler()) })
	}

	g.Go(func() error {
		defer func() {
			if !hold {
				stopMetrics()
			}
		}()
		if err := sim.Seed(gctx); err != nil {
			return err
		}
		rep, err := sim.Run(gctx)
		if err != nil {
			return err
		}
		if err := adminActions(gctx, cmd, a); err != nil {
			return err
		}
		printReport(a, rep)
		if hold && cfg.Metrics.Listen != "" {
			slog.Info("holding for metrics scrape; Ctrl-C to exit")
		}
		return nil
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	slog.Info("ammsim stopped cleanly")
	return nil
}

// adminActions aplica los cambios administrativos pedidos por flags usando la
// capability que el config otorga al principal elegido.
func adminActions(ctx context.Context, cmd *cobra.Command, a *app) error {
	switchTo, _ := cmd.Flags().GetString("switch-model")
	reset, _ := cmd.Flags().GetBool("reset-counters")
	if switchTo == "" && !reset {
		return nil
	}

	as, _ := cmd.Flags().GetString("as")
	if as == "" {
		as = defaultPrincipal(a)
	}
	grant := a.policy.Grant(as)

	if switchTo != "" {
		model, err := domain.ParseAMMModel(switchTo)
		if err != nil {
			return err
		}
		for _, id := range a.pool.Markets() {
			if err := a.pool.SetMarketAMMModel(ctx, grant, id, model); err != nil {
				return err
			}
		}
	}
	if reset {
		if err := a.pool.ResetDailyCounters(ctx, grant, ""); err != nil {
			return err
		}
	}
	return nil
}

// defaultPrincipal devuelve el primer principal con rol admin u operator.
func defaultPrincipal(a *app) string {
	for _, who := range a.policy.Principals() {
		if a.policy.Grant(who).Has(domain.RoleAdmin) {
			return who
		}
	}
	for _, who := range a.policy.Principals() {
		if a.policy.Grant(who).Has(domain.RoleOperator) {
			return who
		}
	}
	return ""
}

func printReport(a *app, rep simulator.Report) {
	out := a.console
	out.PrintPoolStats(a.pool.GetPoolStats())
	out.PrintMarkets(a.marketRows())
	out.PrintPositions(a.positionRows())

	kinds := make([]domain.ErrorKind, 0, len(rep.Rejected))
	for k := range rep.Rejected {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	fmt.Printf("\n  Trades: %d attempted, %d settled in %s\n", rep.Attempted, rep.Settled, rep.Elapsed.Round(time.Millisecond))
	for _, k := range kinds {
		fmt.Printf("    rejected (%s): %d\n", k, rep.Rejected[k])
	}

	if a.memory != nil {
		fmt.Printf("\n  Balances:\n")
		for _, acct := range a.memory.Accounts() {
			fmt.Printf("    %-12s %d\n", acct, a.memory.Balance(acct))
		}
	}
	fmt.Println()
}
