package domain

import "time"

// EventType identifica las notificaciones que emite el pool.
type EventType string

const (
	EventLiquidityAdded         EventType = "LiquidityAdded"
	EventLiquidityRemoved       EventType = "LiquidityRemoved"
	EventMarketLiquidityUpdated EventType = "MarketLiquidityUpdated"
	EventTradeExecuted          EventType = "TradeExecuted"
	EventFeesDistributed        EventType = "FeesDistributed"
	EventPoolConfigUpdated      EventType = "PoolConfigUpdated"
	EventMarketModelUpdated     EventType = "MarketModelUpdated"
	EventCountersReset          EventType = "CountersReset"
)

// Event es una notificación con las cantidades posteriores a la operación.
// Los campos que no aplican al tipo quedan en cero.
type Event struct {
	ID         string // UUID
	Type       EventType
	OccurredAt time.Time

	Account  string // provider o trader
	MarketID string
	TradeID  string

	IsBuy   bool
	Outcome Outcome
	Amount  uint64 // colateral depositado/retirado o tamaño del trade
	Shares  uint64
	Price   uint64
	Cost    uint64 // totalCost (buy) o proceeds (sell)
	Fee     uint64

	TreasuryFee uint64
	LPFee       uint64

	YesReserve     uint64
	NoReserve      uint64
	TotalLiquidity uint64 // del mercado en eventos de mercado, del pool en el resto
	TotalShares    uint64
	AMMModel       AMMModel
}

// TradeRequest es la entrada de Pool.Trade.
type TradeRequest struct {
	// RequestID opcional: si viene, es el TradeID y la base de las claves de
	// idempotencia de custody, así un reintento del caller se puede deduplicar.
	RequestID string

	Trader   string
	MarketID string
	IsBuy    bool
	Outcome  Outcome
	Amount   uint64
	MaxPrice uint64 // buy: precio máximo aceptado; sell: precio mínimo aceptado
}

// TradeResult describe un trade liquidado (o cotizado, en Quote).
type TradeResult struct {
	TradeID        string
	MarketID       string
	IsBuy          bool
	Outcome        Outcome
	Amount         uint64
	Price          uint64
	ProbePrice     uint64
	PriceImpactBps uint64
	Cost           uint64
	Fee            uint64
	FeeBps         uint64
	TotalCost      uint64 // buy: cost + fee
	Proceeds       uint64 // sell: cost - fee
	TreasuryFee    uint64
	LPFee          uint64
	Market         MarketReserve // estado posterior
}

// Settlement devuelve lo que el trader paga (buy) o recibe (sell).
func (r TradeResult) Settlement() uint64 {
	if r.IsBuy {
		return r.TotalCost
	}
	return r.Proceeds
}
