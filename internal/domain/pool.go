package domain

import "time"

// PoolConfig es la política administrable de un pool.
// Solo cambia a través de una actualización con capability de admin.
type PoolConfig struct {
	AMMModel           AMMModel `yaml:"amm_model"`
	FeeBps             uint64   `yaml:"fee_bps"`
	SubsidyFactor      uint64   `yaml:"subsidy_factor"`      // parámetro b de LMSR, en unidades de colateral
	LiquidityParameter uint64   `yaml:"liquidity_parameter"` // constante de ajuste de PM-AMM
	MaxSlippageBps     uint64   `yaml:"max_slippage_bps"`    // 0 = sin límite de impacto
	MinLiquidity       uint64   `yaml:"min_liquidity"`
	DynamicFeesEnabled bool     `yaml:"dynamic_fees_enabled"`

	// TreasuryAccount es la cuenta de custody que recibe el 20% de cada fee.
	TreasuryAccount string `yaml:"treasury_account"`
}

// Validate rechaza configuraciones que el engine no puede honrar.
func (c PoolConfig) Validate() error {
	const op = "domain.PoolConfig.Validate"
	if !c.AMMModel.Valid() {
		return ValidationError(op, "unknown amm model", uint64(c.AMMModel))
	}
	if c.FeeBps > Precision {
		return ValidationError(op, "fee_bps above 10000", c.FeeBps)
	}
	if c.MaxSlippageBps > Precision {
		return ValidationError(op, "max_slippage_bps above 10000", c.MaxSlippageBps)
	}
	if c.SubsidyFactor == 0 && c.AMMModel.UsesLMSR() {
		return ValidationError(op, "subsidy_factor is required for "+c.AMMModel.String(), 0)
	}
	if c.TreasuryAccount == "" {
		return ValidationError(op, "treasury_account is required", 0)
	}
	return nil
}

// MarketReserve es el estado de reservas YES/NO de un mercado dentro del pool.
type MarketReserve struct {
	MarketID       string
	TotalLiquidity uint64
	YesReserve     uint64
	NoReserve      uint64
	Volume24h      uint64
	Fees24h        uint64
	LastUpdate     time.Time
	WindowStart    time.Time // inicio de la ventana actual de volume24h/fees24h
	AMMModel       AMMModel
}

// Reserve devuelve la reserva del lado dado.
func (m MarketReserve) Reserve(o Outcome) uint64 {
	if o == OutcomeNo {
		return m.NoReserve
	}
	return m.YesReserve
}

// WithReserves devuelve una copia con las reservas del lado o y del opuesto reemplazadas.
func (m MarketReserve) WithReserves(o Outcome, side, other uint64) MarketReserve {
	if o == OutcomeNo {
		m.NoReserve, m.YesReserve = side, other
	} else {
		m.YesReserve, m.NoReserve = side, other
	}
	return m
}

// WindowExpired devuelve true si la ventana de contadores terminó en now.
func (m MarketReserve) WindowExpired(now time.Time) bool {
	return !m.WindowStart.IsZero() && !now.Before(m.WindowStart.Add(CounterWindow))
}

// LPPosition es la participación de un proveedor de liquidez en el pool.
type LPPosition struct {
	Provider             string
	ContributedLiquidity uint64
	ShareBalance         uint64
	DepositTime          time.Time
	LastClaimTime        time.Time
	AccruedFees          uint64
}

// UnlockTime es el primer instante en el que se pueden retirar shares.
func (p LPPosition) UnlockTime() time.Time {
	return p.DepositTime.Add(LockPeriod)
}

// Unlocked devuelve true si now >= DepositTime + LockPeriod.
func (p LPPosition) Unlocked(now time.Time) bool {
	return !now.Before(p.UnlockTime())
}

// MarketPosition es lo que un provider aportó a las reservas de un mercado.
// EntryYesPrice es el precio YES medio al que entró, ponderado por aporte.
type MarketPosition struct {
	MarketID           string
	Provider           string
	Contributed        uint64
	EntryYesPrice      uint64
	YesPrice           uint64
	ImpermanentLossBps uint64
}

// PoolStats son los totales del pool.
type PoolStats struct {
	TotalLiquidity uint64
	TotalShares    uint64
	TotalVolume    uint64
	TotalFees      uint64
	Markets        int
	Providers      int
}

// RedemptionRate devuelve liquidez por share escalada por Precision (0 sin shares).
func (s PoolStats) RedemptionRate() uint64 {
	if s.TotalShares == 0 {
		return 0
	}
	r, err := MulDiv(s.TotalLiquidity, Precision, s.TotalShares)
	if err != nil {
		return 0
	}
	return r
}
