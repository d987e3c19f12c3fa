package fees_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polyamm/internal/domain"
	"github.com/alejandrodnm/polyamm/internal/fees"
)

func TestEffectiveFeeBps_Static(t *testing.T) {
	e := fees.New(domain.PoolConfig{FeeBps: 30})
	assert.Equal(t, uint64(30), e.EffectiveFeeBps(0))
	assert.Equal(t, uint64(30), e.EffectiveFeeBps(5_000_000))
}

func TestEffectiveFeeBps_Dynamic(t *testing.T) {
	e := fees.New(domain.PoolConfig{FeeBps: 30, DynamicFeesEnabled: true})

	// 30 - min(250000/100000, 10) = 30 - 2
	assert.Equal(t, uint64(28), e.EffectiveFeeBps(250_000))
	assert.Equal(t, uint64(30), e.EffectiveFeeBps(99_999))
	// el descuento tiene tope en 10 bps
	assert.Equal(t, uint64(20), e.EffectiveFeeBps(50_000_000))
}

func TestEffectiveFeeBps_DynamicFloor(t *testing.T) {
	e := fees.New(domain.PoolConfig{FeeBps: 5, DynamicFeesEnabled: true})
	assert.Equal(t, uint64(1), e.EffectiveFeeBps(900_000))

	e = fees.New(domain.PoolConfig{FeeBps: 0, DynamicFeesEnabled: true})
	assert.Equal(t, uint64(1), e.EffectiveFeeBps(0))
}

func TestCalculateFee(t *testing.T) {
	e := fees.New(domain.PoolConfig{FeeBps: 30})

	fee, err := e.CalculateFee(1_000_000, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(3_000), fee)

	// floor: 90 · 30 / 10000 = 0.27
	fee, err = e.CalculateFee(90, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), fee)
}

func TestUpdateConfig(t *testing.T) {
	e := fees.New(domain.PoolConfig{FeeBps: 30})
	e.UpdateConfig(domain.PoolConfig{FeeBps: 100, DynamicFeesEnabled: true})
	assert.Equal(t, uint64(99), e.EffectiveFeeBps(100_000))
}

func TestSplit(t *testing.T) {
	treasury, lp := fees.Split(1_000)
	assert.Equal(t, uint64(200), treasury)
	assert.Equal(t, uint64(800), lp)

	treasury, lp = fees.Split(7)
	assert.Equal(t, uint64(1), treasury)
	assert.Equal(t, uint64(6), lp)

	treasury, lp = fees.Split(0)
	assert.Zero(t, treasury)
	assert.Zero(t, lp)
}
