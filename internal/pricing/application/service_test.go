package application

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/optionescrow/internal/pricing/domain"
	"github.com/wyfcoding/optionescrow/pkg/fixedpoint"
)

type mapCache struct {
	mu      sync.Mutex
	entries map[string]*domain.Quote
	gets    int
	failGet bool
}

func (m *mapCache) Get(_ context.Context, key string) (*domain.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.failGet {
		return nil, errors.New("cache down")
	}
	return m.entries[key], nil
}

func (m *mapCache) Set(_ context.Context, key string, q *domain.Quote, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = q
	return nil
}

var atm = domain.BlackScholesInput{
	Spot:                100_000000,
	Strike:              100_000000,
	TimeToExpirySeconds: domain.SecondsPerYear,
	RiskFreeRate:        50_000,
	Volatility:          200_000,
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestPricer_QuoteUsesCache(t *testing.T) {
	cache := &mapCache{entries: map[string]*domain.Quote{}}
	p := NewPricer(domain.FormulaDiscounted, cache, time.Minute, discard())

	q, err := p.Quote(context.Background(), atm, "")
	require.NoError(t, err)
	assert.Equal(t, uint64(10_709_144), q.Premium)
	assert.Equal(t, "0.35", q.D1)
	assert.Equal(t, "0.95123", q.Discount)
	assert.Len(t, cache.entries, 1)

	cache.entries[domain.QuoteKey(atm, domain.FormulaDiscounted)] = &domain.Quote{Premium: 1}
	q, err = p.Quote(context.Background(), atm, domain.FormulaDiscounted)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), q.Premium)
}

func TestPricer_CacheFailureIsNotFatal(t *testing.T) {
	cache := &mapCache{entries: map[string]*domain.Quote{}, failGet: true}
	p := NewPricer(domain.FormulaLegacy, cache, time.Minute, discard())

	q, err := p.Quote(context.Background(), atm, "")
	require.NoError(t, err)
	assert.Equal(t, domain.FormulaLegacy, q.Formula)
	assert.Zero(t, q.Premium)
}

func TestPricer_Errors(t *testing.T) {
	p := NewPricer(domain.FormulaDiscounted, nil, 0, discard())

	bad := atm
	bad.Spot = 90_000000
	_, err := p.Quote(context.Background(), bad, "")
	assert.ErrorIs(t, err, fixedpoint.ErrArithmeticFault)

	_, err = p.Quote(context.Background(), atm, "black-76")
	assert.ErrorIs(t, err, domain.ErrUnknownFormula)

	premium, formula, err := p.Price(atm)
	require.NoError(t, err)
	assert.Equal(t, uint64(10_709_144), premium)
	assert.Equal(t, domain.FormulaDiscounted, formula)
}
