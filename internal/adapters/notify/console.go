// Package notify imprime la actividad del pool: una línea por evento y
// tablas de resumen para el simulador.
package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/polyamm/internal/domain"
)

// Console implementa ports.EventSink escribiendo a un io.Writer.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// Publish imprime el evento en una línea compacta.
func (c *Console) Publish(_ context.Context, ev domain.Event) error {
	line := formatEvent(ev)
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.out, line)
	return err
}

func formatEvent(ev domain.Event) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %-22s", ev.OccurredAt.Format("15:04:05"), ev.Type)

	switch ev.Type {
	case domain.EventLiquidityAdded, domain.EventLiquidityRemoved:
		fmt.Fprintf(&sb, " %s amount=%d shares=%d pool=%d/%d",
			ev.Account, ev.Amount, ev.Shares, ev.TotalLiquidity, ev.TotalShares)
	case domain.EventTradeExecuted:
		fmt.Fprintf(&sb, " %s %s %s %s x%d @%s settle=%d fee=%d",
			ev.MarketID, ev.Account, domain.Side(ev.IsBuy), ev.Outcome,
			ev.Amount, Price(ev.Price), ev.Cost, ev.Fee)
		fmt.Fprintf(&sb, " | yes=%d no=%d", ev.YesReserve, ev.NoReserve)
	case domain.EventFeesDistributed:
		fmt.Fprintf(&sb, " %s fee=%d treasury=%d lp=%d", ev.MarketID, ev.Fee, ev.TreasuryFee, ev.LPFee)
	case domain.EventPoolConfigUpdated:
		fmt.Fprintf(&sb, " by=%s model=%s", ev.Account, ev.AMMModel)
	default:
		fmt.Fprintf(&sb, " %s model=%s yes=%d no=%d liq=%d",
			ev.MarketID, ev.AMMModel, ev.YesReserve, ev.NoReserve, ev.TotalLiquidity)
		if ev.Amount > 0 {
			fmt.Fprintf(&sb, " +%d by %s", ev.Amount, ev.Account)
		}
	}
	return sb.String()
}

// PrintPoolStats imprime los totales del pool.
func (c *Console) PrintPoolStats(stats domain.PoolStats) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.out, "\n=== POOL ===\n")
	fmt.Fprintf(c.out, "  Liquidity:       %d\n", stats.TotalLiquidity)
	fmt.Fprintf(c.out, "  Shares:          %d\n", stats.TotalShares)
	fmt.Fprintf(c.out, "  Redemption rate: %s per share\n", Price(stats.RedemptionRate()))
	fmt.Fprintf(c.out, "  Volume:          %d\n", stats.TotalVolume)
	fmt.Fprintf(c.out, "  Fees:            %d\n", stats.TotalFees)
	fmt.Fprintf(c.out, "  Markets:         %d | Providers: %d\n\n", stats.Markets, stats.Providers)
}

// MarketRow es una fila de la tabla de mercados: reservas más precios marginales.
type MarketRow struct {
	Market   domain.MarketReserve
	YesPrice uint64
	NoPrice  uint64
}

// PrintMarkets imprime la tabla de mercados.
func (c *Console) PrintMarkets(rows []MarketRow) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(rows) == 0 {
		fmt.Fprintln(c.out, "  (no markets)")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Market", "Model", "YES", "NO", "Liquidity", "P(YES)", "P(NO)", "Vol 24h", "Fees 24h")
	for _, r := range rows {
		m := r.Market
		table.Append(
			m.MarketID,
			m.AMMModel.String(),
			fmt.Sprintf("%d", m.YesReserve),
			fmt.Sprintf("%d", m.NoReserve),
			fmt.Sprintf("%d", m.TotalLiquidity),
			Price(r.YesPrice),
			Price(r.NoPrice),
			fmt.Sprintf("%d", m.Volume24h),
			fmt.Sprintf("%d", m.Fees24h),
		)
	}
	table.Render()
}

// PrintPositions imprime la posición de cada provider por mercado.
func (c *Console) PrintPositions(rows []domain.MarketPosition) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(rows) == 0 {
		return
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("Market", "Provider", "Contributed", "Entry P(YES)", "P(YES)", "IL bps")
	for _, r := range rows {
		table.Append(
			r.MarketID,
			r.Provider,
			fmt.Sprintf("%d", r.Contributed),
			Price(r.EntryYesPrice),
			Price(r.YesPrice),
			fmt.Sprintf("%d", r.ImpermanentLossBps),
		)
	}
	table.Render()
}

// PrintTWAP imprime el TWAP de un lado de un mercado.
func (c *Console) PrintTWAP(marketID string, o domain.Outcome, window time.Duration, twap uint64, trades int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "\n  TWAP %s %s over %s: %s (%d trades)\n", marketID, o, window, Price(twap), trades)
}

// PrintQuote imprime el desglose de un trade cotizado o ejecutado.
func (c *Console) PrintQuote(res domain.TradeResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.out, "\n=== %s %s x%d on %s (%s) ===\n",
		strings.ToUpper(domain.Side(res.IsBuy)), res.Outcome, res.Amount, res.MarketID, res.Market.AMMModel)
	fmt.Fprintf(c.out, "  Price:        %s (probe %s, impact %d bps)\n",
		Price(res.Price), Price(res.ProbePrice), res.PriceImpactBps)
	fmt.Fprintf(c.out, "  Cost:         %d\n", res.Cost)
	fmt.Fprintf(c.out, "  Fee:          %d (%d bps → treasury %d, LPs %d)\n",
		res.Fee, res.FeeBps, res.TreasuryFee, res.LPFee)
	if res.IsBuy {
		fmt.Fprintf(c.out, "  Total cost:   %d\n", res.TotalCost)
	} else {
		fmt.Fprintf(c.out, "  Proceeds:     %d\n", res.Proceeds)
	}
	fmt.Fprintf(c.out, "  Reserves:     yes=%d no=%d\n\n", res.Market.YesReserve, res.Market.NoReserve)
}

// ModelRow compara el precio de un mismo trade bajo cada modelo.
type ModelRow struct {
	Model domain.AMMModel
	Price uint64
	Err   error
}

// PrintModels imprime la comparación de modelos.
func (c *Console) PrintModels(rows []ModelRow) {
	c.mu.Lock()
	defer c.mu.Unlock()

	table := tablewriter.NewWriter(c.out)
	table.Header("Model", "Price", "Note")
	for _, r := range rows {
		price, note := Price(r.Price), ""
		if r.Err != nil {
			price, note = "-", r.Err.Error()
		}
		table.Append(r.Model.String(), price, note)
	}
	table.Render()
}

// Price formatea un precio en punto fijo como decimal con 4 cifras.
func Price(p uint64) string {
	return fmt.Sprintf("%d.%04d", p/domain.Precision, p%domain.Precision)
}
