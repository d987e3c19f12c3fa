package pool

import (
	"context"
	"errors"
	"fmt"

	"github.com/alejandrodnm/polyamm/internal/domain"
	"github.com/alejandrodnm/polyamm/internal/ports"
)

// transfer es un movimiento de colateral pedido a custody. key es la clave de
// idempotencia que recibe custody.
type transfer struct {
	debit   bool
	account string
	amount  uint64
	key     string
}

func (t transfer) String() string {
	dir := "credit"
	if t.debit {
		dir = "debit"
	}
	return fmt.Sprintf("%s %s %d", dir, t.account, t.amount)
}

// settlementPlan lista las transferencias de un trade en orden:
// primero el trader (debit en buy, credit en sell), después el treasury.
// Las claves son <tradeID>:trader y <tradeID>:treasury.
func settlementPlan(cfg domain.PoolConfig, trader string, res domain.TradeResult) []transfer {
	plan := make([]transfer, 0, 2)
	traderKey := res.TradeID + ":trader"
	if res.IsBuy {
		plan = append(plan, transfer{debit: true, account: trader, amount: res.TotalCost, key: traderKey})
	} else {
		plan = append(plan, transfer{account: trader, amount: res.Proceeds, key: traderKey})
	}
	plan = append(plan, transfer{account: cfg.TreasuryAccount, amount: res.TreasuryFee, key: res.TradeID + ":treasury"})
	return plan
}

// execute aplica el plan. Si una transferencia falla, revierte las anteriores
// en orden inverso y devuelve TransferError; el caller no debe hacer commit.
func (p *Pool) execute(ctx context.Context, op string, plan []transfer) error {
	for i, t := range plan {
		if t.amount == 0 {
			continue
		}
		if err := p.apply(ctx, t); err != nil {
			if cerr := p.compensate(ctx, plan[:i]); cerr != nil {
				err = errors.Join(err, cerr)
			}
			return domain.TransferError(op, t.amount, err)
		}
	}
	return nil
}

func (p *Pool) apply(ctx context.Context, t transfer) error {
	if t.key != "" {
		ctx = ports.WithTransferKey(ctx, t.key)
	}
	if t.debit {
		return p.custody.Debit(ctx, t.account, t.amount)
	}
	return p.custody.Credit(ctx, t.account, t.amount)
}

// compensate deshace transferencias ya aplicadas. Usa un contexto sin
// cancelación: si el trade se abortó por timeout, la reversión igual debe salir.
func (p *Pool) compensate(ctx context.Context, done []transfer) error {
	ctx = context.WithoutCancel(ctx)
	var errs []error
	for i := len(done) - 1; i >= 0; i-- {
		t := done[i]
		if t.amount == 0 {
			continue
		}
		reverse := transfer{debit: !t.debit, account: t.account, amount: t.amount, key: t.key + ":reverse"}
		if err := p.apply(ctx, reverse); err != nil {
			p.log.Error("custody compensation failed",
				"transfer", t.String(),
				"err", err,
			)
			errs = append(errs, fmt.Errorf("compensate %s: %w", t, err))
		}
	}
	return errors.Join(errs...)
}
