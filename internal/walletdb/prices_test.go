package walletdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walletstore/internal/platform/sqlite"
	"walletstore/internal/shared"
)

func TestPrices_DefaultsToZero(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	prices, err := s.Prices.Prices(ctx)
	require.NoError(t, err)
	assert.Len(t, prices, len(Currencies()))
	for c, v := range prices {
		assert.Zero(t, v, c.String())
	}
}

func TestPrices_SetAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Prices.SetPrices(ctx, map[Currency]float64{USD: 5.25, EUR: 4.8}))

	usd, err := s.Prices.Price(ctx, USD)
	require.NoError(t, err)
	assert.InDelta(t, 5.25, usd, 1e-9)

	// partial update keeps the rest
	require.NoError(t, s.Prices.SetPrices(ctx, map[Currency]float64{USD: 6}))

	prices, err := s.Prices.Prices(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 6.0, prices[USD], 1e-9)
	assert.InDelta(t, 4.8, prices[EUR], 1e-9)
	assert.Zero(t, prices[JPY])
}

func TestPrices_CacheServesReadsUntilWrite(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Prices.SetPrices(ctx, map[Currency]float64{RUB: 100}))
	v, err := s.Prices.Price(ctx, RUB)
	require.NoError(t, err)
	require.InDelta(t, 100.0, v, 1e-9)

	// out-of-band change is invisible while cached
	sqlite.MustExec(t, s.DB(), "UPDATE fiatPrices SET rub = 200 WHERE tokenId = 0")
	v, err = s.Prices.Price(ctx, RUB)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, v, 1e-9)

	// a write through the DAO drops the cache
	require.NoError(t, s.Prices.SetPrices(ctx, map[Currency]float64{USD: 1}))
	v, err = s.Prices.Price(ctx, RUB)
	require.NoError(t, err)
	assert.InDelta(t, 200.0, v, 1e-9)
}

func TestPrices_UnknownCurrency(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Prices.Price(ctx, Currency("xyz"))
	assert.True(t, shared.IsValidation(err))

	err = s.Prices.SetPrices(ctx, map[Currency]float64{USD: 1, Currency("xyz"): 2})
	assert.True(t, shared.IsValidation(err))

	usd, err := s.Prices.Price(ctx, USD)
	require.NoError(t, err)
	assert.Zero(t, usd)
}

func TestPrices_EmptyUpdateIsNoop(t *testing.T) {
	s := newTestStore(t)
	before := s.DB().Stats().Writer.Granted

	assert.NoError(t, s.Prices.SetPrices(context.Background(), nil))
	assert.Equal(t, before, s.DB().Stats().Writer.Granted)
}
