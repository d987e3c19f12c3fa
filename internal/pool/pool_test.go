package pool_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polyamm/internal/adapters/custody"
	"github.com/alejandrodnm/polyamm/internal/adapters/storage"
	"github.com/alejandrodnm/polyamm/internal/domain"
	"github.com/alejandrodnm/polyamm/internal/pool"
	"github.com/alejandrodnm/polyamm/internal/ports"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// flakyCustody envuelve Memory y falla las transferencias que fail indique.
// También guarda la clave de idempotencia de cada llamada.
type flakyCustody struct {
	*custody.Memory
	mu   sync.Mutex
	fail func(debit bool, account string) error
	keys []string
}

func (f *flakyCustody) check(ctx context.Context, debit bool, account string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, ports.TransferKey(ctx))
	if f.fail == nil {
		return nil
	}
	return f.fail(debit, account)
}

func (f *flakyCustody) failWith(fn func(debit bool, account string) error) {
	f.mu.Lock()
	f.fail = fn
	f.mu.Unlock()
}

func (f *flakyCustody) transferKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.keys...)
}

func (f *flakyCustody) Debit(ctx context.Context, account string, amount uint64) error {
	if err := f.check(ctx, true, account); err != nil {
		return err
	}
	return f.Memory.Debit(ctx, account, amount)
}

func (f *flakyCustody) Credit(ctx context.Context, account string, amount uint64) error {
	if err := f.check(ctx, false, account); err != nil {
		return err
	}
	return f.Memory.Credit(ctx, account, amount)
}

type recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recorder) Publish(_ context.Context, ev domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) types() []domain.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

type fixture struct {
	pool    *pool.Pool
	custody *flakyCustody
	clock   *clock
	events  *recorder
}

func testConfig() domain.PoolConfig {
	return domain.PoolConfig{
		AMMModel:        domain.ModelLMSR,
		FeeBps:          100,
		SubsidyFactor:   100_000,
		MinLiquidity:    100,
		TreasuryAccount: "treasury",
	}
}

func newFixture(t *testing.T, cfg domain.PoolConfig) *fixture {
	t.Helper()
	f := &fixture{
		custody: &flakyCustody{Memory: custody.NewMemory("pool")},
		clock:   &clock{now: t0},
		events:  &recorder{},
	}
	for _, acct := range []string{"alice", "bob", "carol", "trader"} {
		f.custody.Fund(acct, 1_000_000)
	}
	p, err := pool.New(cfg, f.custody,
		pool.WithClock(f.clock.Now),
		pool.WithEventSink(f.events),
	)
	require.NoError(t, err)
	f.pool = p
	return f
}

// withMarket deja "m1" con reservas 100000/100000.
func withMarket(t *testing.T, f *fixture) {
	t.Helper()
	require.NoError(t, f.pool.AddMarketLiquidity(context.Background(), "alice", "m1", 200_000))
}

func buyYes(amount uint64) domain.TradeRequest {
	return domain.TradeRequest{
		Trader:   "trader",
		MarketID: "m1",
		IsBuy:    true,
		Outcome:  domain.OutcomeYes,
		Amount:   amount,
		MaxPrice: domain.Precision,
	}
}

func admin() domain.Capability {
	return domain.Grant{Who: "root", Roles: []domain.Role{domain.RoleAdmin}}
}

func operator() domain.Capability {
	return domain.Grant{Who: "cron", Roles: []domain.Role{domain.RoleOperator}}
}

// --- New ---

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.FeeBps = 20_000
	_, err := pool.New(cfg, custody.NewMemory("pool"))
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = pool.New(testConfig(), nil)
	assert.Error(t, err)
}

// --- LP shares ---

func TestAddLiquidity_SharesAreProportional(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()

	shares, err := f.pool.AddLiquidity(ctx, "alice", 1000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), shares)

	shares, err = f.pool.AddLiquidity(ctx, "bob", 500)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), shares)

	stats := f.pool.GetPoolStats()
	assert.Equal(t, uint64(1500), stats.TotalLiquidity)
	assert.Equal(t, uint64(1500), stats.TotalShares)
	assert.Equal(t, 2, stats.Providers)

	assert.Equal(t, uint64(999_000), f.custody.Balance("alice"))
	assert.Equal(t, uint64(1500), f.custody.Balance("pool"))

	pos, err := f.pool.GetLPPosition("bob")
	require.NoError(t, err)
	assert.Equal(t, uint64(500), pos.ShareBalance)
	assert.Equal(t, uint64(500), pos.ContributedLiquidity)
	assert.Equal(t, t0, pos.DepositTime)
}

func TestAddLiquidity_BelowMinimum(t *testing.T) {
	f := newFixture(t, testConfig())

	_, err := f.pool.AddLiquidity(context.Background(), "alice", 99)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.pool.AddLiquidity(context.Background(), "alice", 0)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.pool.AddLiquidity(context.Background(), "", 1000)
	assert.ErrorIs(t, err, domain.ErrValidation)

	assert.Equal(t, uint64(0), f.pool.GetPoolStats().TotalShares)
	assert.Empty(t, f.events.types())
}

func TestAddLiquidity_CustodyFailureLeavesNoState(t *testing.T) {
	f := newFixture(t, testConfig())
	f.custody.failWith(func(bool, string) error { return errors.New("custody down") })

	_, err := f.pool.AddLiquidity(context.Background(), "alice", 1000)
	assert.ErrorIs(t, err, domain.ErrTransfer)

	_, err = f.pool.GetLPPosition("alice")
	assert.ErrorIs(t, err, domain.ErrState)
	assert.Equal(t, domain.PoolStats{}, f.pool.GetPoolStats())
}

func TestAddLiquidity_InsufficientFunds(t *testing.T) {
	f := newFixture(t, testConfig())

	_, err := f.pool.AddLiquidity(context.Background(), "alice", 2_000_000)
	assert.ErrorIs(t, err, domain.ErrTransfer)
	assert.ErrorIs(t, err, custody.ErrInsufficientFunds)
}

// --- lock y retiro ---

func TestRemoveLiquidity_LockBoundary(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()

	_, err := f.pool.AddLiquidity(ctx, "alice", 1000)
	require.NoError(t, err)

	f.clock.Advance(domain.LockPeriod - time.Second)
	_, err = f.pool.RemoveLiquidity(ctx, "alice", 100)
	require.ErrorIs(t, err, domain.ErrState)
	assert.Contains(t, err.Error(), "lock period")

	f.clock.Advance(time.Second)
	amount, err := f.pool.RemoveLiquidity(ctx, "alice", 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), amount)
	assert.Equal(t, uint64(999_100), f.custody.Balance("alice"))
}

func TestRemoveLiquidity_NewDepositRestartsLock(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()

	_, err := f.pool.AddLiquidity(ctx, "alice", 1000)
	require.NoError(t, err)
	f.clock.Advance(20 * time.Hour)
	_, err = f.pool.AddLiquidity(ctx, "alice", 1000)
	require.NoError(t, err)

	f.clock.Advance(5 * time.Hour)
	_, err = f.pool.RemoveLiquidity(ctx, "alice", 100)
	assert.ErrorIs(t, err, domain.ErrState)
}

func TestRemoveLiquidity_Errors(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()
	_, err := f.pool.AddLiquidity(ctx, "alice", 1000)
	require.NoError(t, err)
	f.clock.Advance(domain.LockPeriod)

	_, err = f.pool.RemoveLiquidity(ctx, "alice", 0)
	assert.ErrorIs(t, err, domain.ErrState)

	_, err = f.pool.RemoveLiquidity(ctx, "alice", 1001)
	assert.ErrorIs(t, err, domain.ErrState)

	_, err = f.pool.RemoveLiquidity(ctx, "nobody", 1)
	assert.ErrorIs(t, err, domain.ErrState)
}

func TestRemoveLiquidity_ReducesContributionProRata(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()
	_, err := f.pool.AddLiquidity(ctx, "alice", 1000)
	require.NoError(t, err)
	f.clock.Advance(domain.LockPeriod)

	_, err = f.pool.RemoveLiquidity(ctx, "alice", 250)
	require.NoError(t, err)

	pos, err := f.pool.GetLPPosition("alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(750), pos.ShareBalance)
	assert.Equal(t, uint64(750), pos.ContributedLiquidity)
	assert.Equal(t, f.clock.Now(), pos.LastClaimTime)
}

// --- reservas de mercado ---

func TestAddMarketLiquidity_SplitsHalfAndHalf(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()

	require.NoError(t, f.pool.AddMarketLiquidity(ctx, "alice", "m1", 1001))

	m, err := f.pool.GetMarketLiquidity("m1")
	require.NoError(t, err)
	assert.Equal(t, uint64(501), m.YesReserve, "el resto va a YES")
	assert.Equal(t, uint64(500), m.NoReserve)
	assert.Equal(t, uint64(1001), m.TotalLiquidity)
	assert.Equal(t, domain.ModelLMSR, m.AMMModel)
	assert.Equal(t, uint64(1001), f.pool.GetMarketContribution("m1", "alice"))
	assert.Equal(t, []string{"m1"}, f.pool.Markets())

	require.NoError(t, f.pool.AddMarketLiquidity(ctx, "bob", "m1", 1000))
	m, err = f.pool.GetMarketLiquidity("m1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1001), m.YesReserve)
	assert.Equal(t, uint64(1000), m.NoReserve)
}

func TestAddMarketLiquidity_ZeroAmount(t *testing.T) {
	f := newFixture(t, testConfig())

	err := f.pool.AddMarketLiquidity(context.Background(), "alice", "m1", 0)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.pool.GetMarketLiquidity("m1")
	assert.ErrorIs(t, err, domain.ErrState)
}

func TestAddMarketLiquidity_CustodyFailureDoesNotCreateMarket(t *testing.T) {
	f := newFixture(t, testConfig())
	f.custody.failWith(func(bool, string) error { return errors.New("boom") })

	err := f.pool.AddMarketLiquidity(context.Background(), "alice", "m1", 1000)
	assert.ErrorIs(t, err, domain.ErrTransfer)
	assert.Empty(t, f.pool.Markets())
	assert.Equal(t, 0, f.pool.GetPoolStats().Markets)
}

func TestGetMarketPosition_TracksEntryAndLoss(t *testing.T) {
	cfg := testConfig()
	cfg.AMMModel = domain.ModelPMAMM
	f := newFixture(t, cfg)
	ctx := context.Background()
	withMarket(t, f)

	pos, err := f.pool.GetMarketPosition("m1", "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(5000), pos.EntryYesPrice)
	assert.Equal(t, uint64(5000), pos.YesPrice)
	assert.Zero(t, pos.ImpermanentLossBps)
	assert.Equal(t, uint64(200_000), pos.Contributed)

	_, err = f.pool.Trade(ctx, buyYes(50_000))
	require.NoError(t, err)

	pos, err = f.pool.GetMarketPosition("m1", "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(5000), pos.EntryYesPrice)
	assert.Greater(t, pos.YesPrice, uint64(5000))
	assert.Positive(t, pos.ImpermanentLossBps)
	moved := pos.YesPrice

	// bob entra al precio actual: sin pérdida
	require.NoError(t, f.pool.AddMarketLiquidity(ctx, "bob", "m1", 100_000))
	bob, err := f.pool.GetMarketPosition("m1", "bob")
	require.NoError(t, err)
	assert.Equal(t, bob.YesPrice, bob.EntryYesPrice)
	assert.Zero(t, bob.ImpermanentLossBps)

	// un segundo aporte de alice promedia su entrada hacia el precio actual
	require.NoError(t, f.pool.AddMarketLiquidity(ctx, "alice", "m1", 200_000))
	pos, err = f.pool.GetMarketPosition("m1", "alice")
	require.NoError(t, err)
	assert.Greater(t, pos.EntryYesPrice, uint64(5000))
	assert.Less(t, pos.EntryYesPrice, moved)
}

func TestGetMarketPosition_Unknown(t *testing.T) {
	f := newFixture(t, testConfig())
	withMarket(t, f)

	_, err := f.pool.GetMarketPosition("m2", "alice")
	assert.ErrorIs(t, err, domain.ErrState)

	_, err = f.pool.GetMarketPosition("m1", "bob")
	assert.ErrorIs(t, err, domain.ErrState)
}

// --- trades ---

func TestTrade_BuyYes(t *testing.T) {
	f := newFixture(t, testConfig())
	withMarket(t, f)

	res, err := f.pool.Trade(context.Background(), buyYes(10_000))
	require.NoError(t, err)

	assert.NotEmpty(t, res.TradeID)
	assert.Equal(t, uint64(5232), res.Price)
	assert.Equal(t, uint64(5000), res.ProbePrice)
	assert.Equal(t, uint64(464), res.PriceImpactBps)
	assert.Equal(t, uint64(5232), res.Cost)
	assert.Equal(t, uint64(52), res.Fee)
	assert.Equal(t, uint64(10), res.TreasuryFee)
	assert.Equal(t, uint64(42), res.LPFee)
	assert.Equal(t, uint64(5284), res.TotalCost)

	m, err := f.pool.GetMarketLiquidity("m1")
	require.NoError(t, err)
	assert.Equal(t, uint64(90_000), m.YesReserve)
	assert.Equal(t, uint64(105_232), m.NoReserve)
	assert.Equal(t, uint64(10_000), m.Volume24h)
	assert.Equal(t, uint64(52), m.Fees24h)

	assert.Equal(t, uint64(1_000_000-5284), f.custody.Balance("trader"))
	assert.Equal(t, uint64(10), f.custody.Balance("treasury"))

	stats := f.pool.GetPoolStats()
	assert.Equal(t, uint64(10_000), stats.TotalVolume)
	assert.Equal(t, uint64(52), stats.TotalFees)
	assert.Equal(t, uint64(42), stats.TotalLiquidity)
}

func TestTrade_SellAfterBuyLMSR(t *testing.T) {
	f := newFixture(t, testConfig())
	withMarket(t, f)
	ctx := context.Background()

	buy, err := f.pool.Trade(ctx, buyYes(10_000))
	require.NoError(t, err)

	sell, err := f.pool.Trade(ctx, domain.TradeRequest{
		Trader:   "trader",
		MarketID: "m1",
		Outcome:  domain.OutcomeYes,
		Amount:   10_000,
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(4405), sell.Price)
	assert.Equal(t, uint64(4361), sell.Proceeds)
	assert.Less(t, sell.Proceeds, buy.TotalCost)

	m, err := f.pool.GetMarketLiquidity("m1")
	require.NoError(t, err)
	assert.Equal(t, uint64(100_000), m.YesReserve)
	assert.Equal(t, uint64(100_827), m.NoReserve)
}

var allModels = []domain.AMMModel{domain.ModelLMSR, domain.ModelPMAMM, domain.ModelL2AMM, domain.ModelHybrid}

func TestTrade_RoundTripNeverProfits(t *testing.T) {
	for _, model := range allModels {
		for _, outcome := range []domain.Outcome{domain.OutcomeYes, domain.OutcomeNo} {
			for _, amount := range []uint64{1, 250, 10_000} {
				t.Run(fmt.Sprintf("%s/%s/%d", model, outcome, amount), func(t *testing.T) {
					cfg := testConfig()
					cfg.AMMModel = model
					f := newFixture(t, cfg)
					withMarket(t, f)
					ctx := context.Background()

					buy, err := f.pool.Trade(ctx, domain.TradeRequest{
						Trader:   "trader",
						MarketID: "m1",
						IsBuy:    true,
						Outcome:  outcome,
						Amount:   amount,
						MaxPrice: domain.Precision,
					})
					require.NoError(t, err)

					sell, err := f.pool.Trade(ctx, domain.TradeRequest{
						Trader:   "trader",
						MarketID: "m1",
						Outcome:  outcome,
						Amount:   amount,
					})
					require.NoError(t, err)

					assert.LessOrEqual(t, sell.Price, buy.Price)
					assert.LessOrEqual(t, sell.Proceeds, buy.TotalCost)
					assert.LessOrEqual(t, f.custody.Balance("trader"), uint64(1_000_000))
				})
			}
		}
	}
}

func TestTrade_RedemptionRateNeverDecreases(t *testing.T) {
	for _, model := range allModels {
		t.Run(model.String(), func(t *testing.T) {
			cfg := testConfig()
			cfg.AMMModel = model
			f := newFixture(t, cfg)
			ctx := context.Background()
			_, err := f.pool.AddLiquidity(ctx, "bob", 10_000)
			require.NoError(t, err)
			withMarket(t, f)

			rate := f.pool.GetPoolStats().RedemptionRate()
			for i := 0; i < 12; i++ {
				req := domain.TradeRequest{
					Trader:   "trader",
					MarketID: "m1",
					IsBuy:    i%3 != 2,
					Outcome:  domain.Outcome(i % 2),
					Amount:   1_000,
				}
				if req.IsBuy {
					req.MaxPrice = domain.Precision
				}
				_, err := f.pool.Trade(ctx, req)
				require.NoError(t, err)

				next := f.pool.GetPoolStats().RedemptionRate()
				assert.GreaterOrEqual(t, next, rate, "trade %d", i)
				rate = next
			}

			f.clock.Advance(domain.LockPeriod)
			amount, err := f.pool.RemoveLiquidity(ctx, "bob", 10_000)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, amount, uint64(10_000))
		})
	}
}

func TestTrade_SlippageLimits(t *testing.T) {
	f := newFixture(t, testConfig())
	withMarket(t, f)
	ctx := context.Background()

	req := buyYes(10_000)
	req.MaxPrice = 5000
	_, err := f.pool.Trade(ctx, req)
	assert.ErrorIs(t, err, domain.ErrSlippage)

	sell := domain.TradeRequest{Trader: "trader", MarketID: "m1", Outcome: domain.OutcomeYes, Amount: 10_000, MaxPrice: 6000}
	_, err = f.pool.Trade(ctx, sell)
	assert.ErrorIs(t, err, domain.ErrSlippage)

	m, err := f.pool.GetMarketLiquidity("m1")
	require.NoError(t, err)
	assert.Equal(t, uint64(100_000), m.YesReserve)
	assert.Equal(t, uint64(0), m.Volume24h)
}

func TestTrade_MaxSlippageBpsCapsImpact(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSlippageBps = 400
	f := newFixture(t, cfg)
	withMarket(t, f)

	_, err := f.pool.Trade(context.Background(), buyYes(10_000))
	require.ErrorIs(t, err, domain.ErrSlippage)
	assert.Equal(t, uint64(464), err.(*domain.Error).Quantity)

	_, err = f.pool.Trade(context.Background(), buyYes(100))
	assert.NoError(t, err)
}

func TestTrade_Validation(t *testing.T) {
	f := newFixture(t, testConfig())
	withMarket(t, f)
	ctx := context.Background()

	_, err := f.pool.Trade(ctx, buyYes(0))
	assert.ErrorIs(t, err, domain.ErrValidation)

	req := buyYes(10)
	req.Trader = ""
	_, err = f.pool.Trade(ctx, req)
	assert.ErrorIs(t, err, domain.ErrValidation)

	req = buyYes(10)
	req.MarketID = "unknown"
	_, err = f.pool.Trade(ctx, req)
	require.ErrorIs(t, err, domain.ErrState)
	assert.Contains(t, err.Error(), "NoLiquidity")
}

func TestTrade_BuyingWholeReserveFails(t *testing.T) {
	cfg := testConfig()
	cfg.AMMModel = domain.ModelPMAMM
	f := newFixture(t, cfg)
	withMarket(t, f)

	_, err := f.pool.Trade(context.Background(), buyYes(100_000))
	assert.ErrorIs(t, err, domain.ErrState)
}

func TestTrade_TreasuryFailureCompensatesTrader(t *testing.T) {
	f := newFixture(t, testConfig())
	withMarket(t, f)
	before, err := f.pool.GetMarketLiquidity("m1")
	require.NoError(t, err)
	eventsBefore := len(f.events.types())

	f.custody.failWith(func(debit bool, account string) error {
		if account == "treasury" {
			return errors.New("treasury frozen")
		}
		return nil
	})

	_, err = f.pool.Trade(context.Background(), buyYes(10_000))
	require.ErrorIs(t, err, domain.ErrTransfer)

	after, err := f.pool.GetMarketLiquidity("m1")
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, uint64(1_000_000), f.custody.Balance("trader"), "el debit se revierte")
	assert.Equal(t, uint64(0), f.custody.Balance("treasury"))
	assert.Equal(t, uint64(0), f.pool.GetPoolStats().TotalVolume)
	assert.Len(t, f.events.types(), eventsBefore)
}

func TestTrade_CustodyKeysFollowRequestID(t *testing.T) {
	f := newFixture(t, testConfig())
	withMarket(t, f)
	ctx := context.Background()
	skip := len(f.custody.transferKeys())

	req := buyYes(1_000)
	req.RequestID = "req-1"
	res, err := f.pool.Trade(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "req-1", res.TradeID)
	assert.Equal(t, []string{"req-1:trader", "req-1:treasury"}, f.custody.transferKeys()[skip:])

	// el treasury falla: el reverso del trader lleva su propia clave
	f.custody.failWith(func(debit bool, account string) error {
		if account == "treasury" {
			return errors.New("treasury offline")
		}
		return nil
	})
	skip = len(f.custody.transferKeys())
	req.RequestID = "req-2"
	_, err = f.pool.Trade(ctx, req)
	require.ErrorIs(t, err, domain.ErrTransfer)
	assert.Equal(t, []string{"req-2:trader", "req-2:treasury", "req-2:trader:reverse"}, f.custody.transferKeys()[skip:])

	// sin RequestID cada trade genera un TradeID propio
	f.custody.failWith(nil)
	a, err := f.pool.Trade(ctx, buyYes(10))
	require.NoError(t, err)
	b, err := f.pool.Trade(ctx, buyYes(10))
	require.NoError(t, err)
	assert.NotEqual(t, a.TradeID, b.TradeID)
}

func TestTrade_TraderWithoutFunds(t *testing.T) {
	f := newFixture(t, testConfig())
	withMarket(t, f)

	req := buyYes(10_000)
	req.Trader = "broke"
	_, err := f.pool.Trade(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrTransfer)
	assert.ErrorIs(t, err, custody.ErrInsufficientFunds)
}

func TestTrade_CountersRollAfterWindow(t *testing.T) {
	f := newFixture(t, testConfig())
	withMarket(t, f)
	ctx := context.Background()

	_, err := f.pool.Trade(ctx, buyYes(10_000))
	require.NoError(t, err)

	f.clock.Advance(domain.CounterWindow)
	_, err = f.pool.Trade(ctx, buyYes(100))
	require.NoError(t, err)

	m, err := f.pool.GetMarketLiquidity("m1")
	require.NoError(t, err)
	assert.Equal(t, uint64(100), m.Volume24h)
	assert.Equal(t, f.clock.Now(), m.WindowStart)
	assert.Equal(t, uint64(10_100), f.pool.GetPoolStats().TotalVolume)
}

func TestTrade_FeesRaiseRedemptionRate(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()
	_, err := f.pool.AddLiquidity(ctx, "bob", 10_000)
	require.NoError(t, err)
	withMarket(t, f)

	rate := f.pool.GetPoolStats().RedemptionRate()
	for i := 0; i < 5; i++ {
		_, err := f.pool.Trade(ctx, buyYes(1000))
		require.NoError(t, err)
		next := f.pool.GetPoolStats().RedemptionRate()
		assert.GreaterOrEqual(t, next, rate)
		rate = next
	}
	assert.Greater(t, rate, domain.Precision)

	f.clock.Advance(domain.LockPeriod)
	amount, err := f.pool.RemoveLiquidity(ctx, "bob", 10_000)
	require.NoError(t, err)
	assert.Greater(t, amount, uint64(10_000))
}

func TestTrade_EmitsEvents(t *testing.T) {
	f := newFixture(t, testConfig())
	withMarket(t, f)

	res, err := f.pool.Trade(context.Background(), buyYes(10_000))
	require.NoError(t, err)

	assert.Equal(t, []domain.EventType{
		domain.EventMarketLiquidityUpdated,
		domain.EventTradeExecuted,
		domain.EventFeesDistributed,
	}, f.events.types())

	f.events.mu.Lock()
	defer f.events.mu.Unlock()
	traded := f.events.events[1]
	assert.NotEmpty(t, traded.ID)
	assert.Equal(t, res.TradeID, traded.TradeID)
	assert.Equal(t, uint64(5284), traded.Cost)
	assert.Equal(t, uint64(90_000), traded.YesReserve)
	// mismo reloj que el alta del mercado: el stamp lo deja 1ns después
	assert.Equal(t, t0.Add(time.Nanosecond), traded.OccurredAt)

	fees := f.events.events[2]
	assert.Equal(t, traded.OccurredAt, fees.OccurredAt)
	assert.NotEqual(t, traded.ID, fees.ID)
	assert.Equal(t, uint64(10), fees.TreasuryFee)
	assert.Equal(t, uint64(42), fees.LPFee)
}

// holdingSink retiene la publicación del primer TradeExecuted hasta que se
// cierre release.
type holdingSink struct {
	next    ports.EventSink
	once    sync.Once
	held    chan struct{}
	release chan struct{}
}

func (h *holdingSink) Publish(ctx context.Context, ev domain.Event) error {
	if ev.Type == domain.EventTradeExecuted {
		first := false
		h.once.Do(func() { first = true })
		if first {
			close(h.held)
			<-h.release
		}
	}
	return h.next.Publish(ctx, ev)
}

func TestTrade_LatePublishDoesNotRewindJournalSnapshot(t *testing.T) {
	ctx := context.Background()
	journal, err := storage.NewSQLiteJournal(":memory:")
	require.NoError(t, err)
	defer journal.Close()

	sink := &holdingSink{next: journal, held: make(chan struct{}), release: make(chan struct{})}
	mem := custody.NewMemory("pool")
	mem.Fund("alice", 1_000_000)
	mem.Fund("trader", 1_000_000)
	// reloj fijo: dos commits seguidos comparten now
	p, err := pool.New(testConfig(), mem,
		pool.WithClock(func() time.Time { return t0 }),
		pool.WithEventSink(sink),
	)
	require.NoError(t, err)
	require.NoError(t, p.AddMarketLiquidity(ctx, "alice", "m1", 200_000))

	done := make(chan error, 1)
	go func() {
		_, err := p.Trade(ctx, buyYes(1_000))
		done <- err
	}()
	<-sink.held

	_, err = p.Trade(ctx, buyYes(2_000))
	require.NoError(t, err)
	close(sink.release)
	require.NoError(t, <-done)

	live, err := p.GetMarketLiquidity("m1")
	require.NoError(t, err)
	snaps, err := journal.Snapshots(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, live.YesReserve, snaps[0].YesReserve)
	assert.Equal(t, live.NoReserve, snaps[0].NoReserve)

	events, err := journal.Events(ctx, "m1", 10)
	require.NoError(t, err)
	var trades []domain.Event
	for _, ev := range events {
		if ev.Type == domain.EventTradeExecuted {
			trades = append(trades, ev)
		}
	}
	require.Len(t, trades, 2)
	assert.Equal(t, uint64(2_000), trades[0].Amount, "el más reciente es el último commit")
	assert.True(t, trades[0].OccurredAt.After(trades[1].OccurredAt))
}

func TestTrade_ConcurrentConservesCollateral(t *testing.T) {
	cfg := testConfig()
	cfg.AMMModel = domain.ModelHybrid
	f := newFixture(t, cfg)
	ctx := context.Background()
	require.NoError(t, f.pool.AddMarketLiquidity(ctx, "alice", "m1", 200_000))
	require.NoError(t, f.pool.AddMarketLiquidity(ctx, "bob", "m2", 200_000))

	total := func() uint64 {
		var sum uint64
		for _, a := range f.custody.Accounts() {
			sum += f.custody.Balance(a)
		}
		return sum
	}
	start := total()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			market := "m1"
			if i%2 == 1 {
				market = "m2"
			}
			for j := 0; j < 20; j++ {
				req := domain.TradeRequest{
					Trader:   "trader",
					MarketID: market,
					IsBuy:    j%3 != 2,
					Outcome:  domain.Outcome(j % 2),
					Amount:   50,
				}
				if req.IsBuy {
					req.MaxPrice = domain.Precision
				}
				_, _ = f.pool.Trade(ctx, req)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, start, total())
	for _, id := range []string{"m1", "m2"} {
		m, err := f.pool.GetMarketLiquidity(id)
		require.NoError(t, err)
		assert.Positive(t, m.YesReserve)
		assert.Positive(t, m.NoReserve)
	}
}

// --- lecturas ---

func TestQuote_DoesNotMutate(t *testing.T) {
	f := newFixture(t, testConfig())
	withMarket(t, f)

	q, err := f.pool.Quote("m1", true, domain.OutcomeYes, 10_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(5284), q.TotalCost)
	assert.Empty(t, q.TradeID)

	p, err := f.pool.GetPrice("m1", true, domain.OutcomeYes, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(5000), p)

	m, err := f.pool.GetMarketLiquidity("m1")
	require.NoError(t, err)
	assert.Equal(t, uint64(100_000), m.YesReserve)

	_, err = f.pool.GetPrice("nope", true, domain.OutcomeYes, 0)
	assert.ErrorIs(t, err, domain.ErrState)
}
