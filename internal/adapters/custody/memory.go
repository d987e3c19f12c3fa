package custody

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrInsufficientFunds se devuelve cuando la cuenta origen no cubre el importe.
var ErrInsufficientFunds = errors.New("insufficient funds")

// Memory es una custody en memoria: un mapa de saldos y una cuenta del pool.
// Debit mueve de la cuenta al pool; Credit del pool a la cuenta. Sirve para el
// simulador y para tests.
type Memory struct {
	mu       sync.Mutex
	pool     string
	balances map[string]uint64
	moves    int
}

// NewMemory crea una custody cuyo pool vive en la cuenta poolAccount.
func NewMemory(poolAccount string) *Memory {
	return &Memory{
		pool:     poolAccount,
		balances: make(map[string]uint64),
	}
}

// Fund acredita amount a account sin pasar por el pool (faucet).
func (m *Memory) Fund(account string, amount uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[account] += amount
}

// Balance devuelve el saldo de account.
func (m *Memory) Balance(account string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[account]
}

// Moves devuelve cuántas transferencias se aplicaron.
func (m *Memory) Moves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.moves
}

// Accounts devuelve las cuentas con saldo, ordenadas.
func (m *Memory) Accounts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.balances))
	for a, b := range m.balances {
		if b > 0 {
			out = append(out, a)
		}
	}
	sort.Strings(out)
	return out
}

// Debit implementa ports.Custody.
func (m *Memory) Debit(ctx context.Context, account string, amount uint64) error {
	return m.move(ctx, account, m.pool, amount)
}

// Credit implementa ports.Custody.
func (m *Memory) Credit(ctx context.Context, account string, amount uint64) error {
	return m.move(ctx, m.pool, account, amount)
}

func (m *Memory) move(ctx context.Context, from, to string, amount uint64) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("custody.Memory: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[from] < amount {
		return fmt.Errorf("custody.Memory: %s has %d, needs %d: %w", from, m.balances[from], amount, ErrInsufficientFunds)
	}
	m.balances[from] -= amount
	m.balances[to] += amount
	m.moves++
	return nil
}
