package walletdb

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"walletstore/internal/platform/sqlite"
	"walletstore/internal/shared"
)

// Prices serves fiat prices of the native coin. Reads go through an in-memory
// cache that is dropped on every write.
type Prices struct {
	store *Store
	cache *gocache.Cache
	// generation is bumped after each committed write; a load started before
	// the bump must not repopulate the cache
	mu         sync.Mutex
	generation uint64
}

func newPrices(s *Store, ttl time.Duration) *Prices {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	cleanup := 2 * ttl
	if ttl == gocache.NoExpiration {
		cleanup = 0
	}
	return &Prices{
		store: s,
		cache: gocache.New(ttl, cleanup),
	}
}

// Price returns the price of the native coin in currency c.
func (p *Prices) Price(ctx context.Context, c Currency) (float64, error) {
	if !c.Valid() {
		return 0, shared.Validationf("unsupported fiat currency %q", string(c))
	}
	if v, ok := p.cache.Get(string(c)); ok {
		return v.(float64), nil
	}

	prices, err := p.load(ctx)
	if err != nil {
		return 0, err
	}
	return prices[c], nil
}

// Prices returns a snapshot of every currency.
func (p *Prices) Prices(ctx context.Context) (map[Currency]float64, error) {
	out := make(map[Currency]float64, len(currencies))
	for _, c := range currencies {
		v, ok := p.cache.Get(string(c.code))
		if !ok {
			return p.load(ctx)
		}
		out[c.code] = v.(float64)
	}
	return out, nil
}

// SetPrices updates the given currencies. Currencies missing from the map keep their value.
func (p *Prices) SetPrices(ctx context.Context, prices map[Currency]float64) error {
	if len(prices) == 0 {
		return nil
	}

	sets := make([]string, 0, len(prices))
	args := make([]any, 0, len(prices)+1)
	for _, c := range currencies {
		v, ok := prices[c.code]
		if !ok {
			continue
		}
		sets = append(sets, string(c.code)+" = ?")
		args = append(args, v)
	}
	if len(sets) != len(prices) {
		for c := range prices {
			if !c.Valid() {
				return shared.Validationf("unsupported fiat currency %q", string(c))
			}
		}
	}
	args = append(args, nativeTokenID)

	query := "UPDATE fiatPrices SET " + strings.Join(sets, ", ") + " WHERE tokenId = ?"
	err := p.store.write(ctx, func(ctx context.Context, tx *sqlite.Tx) error {
		res, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return err
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: fiat prices row", shared.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("set prices: %w", err)
	}

	p.mu.Lock()
	p.generation++
	p.cache.Flush()
	p.mu.Unlock()
	p.store.log.Debug("fiat prices updated", "currencies", len(sets))
	return nil
}

func (p *Prices) load(ctx context.Context) (map[Currency]float64, error) {
	p.mu.Lock()
	gen := p.generation
	p.mu.Unlock()

	rs, err := p.store.db.Read(ctx,
		"SELECT "+strings.Join(fiatPricesTable.ColumnNames()[1:], ", ")+" FROM fiatPrices WHERE tokenId = ?",
		nativeTokenID)
	if err != nil {
		return nil, fmt.Errorf("load prices: %w", err)
	}
	if rs.Len() == 0 {
		return nil, fmt.Errorf("%w: fiat prices row", shared.ErrNotFound)
	}

	out := make(map[Currency]float64, len(currencies))
	for _, c := range currencies {
		v, err := rs.Float64(0, string(c.code))
		if err != nil {
			return nil, err
		}
		out[c.code] = v
	}

	p.mu.Lock()
	if p.generation == gen {
		for c, v := range out {
			p.cache.SetDefault(string(c), v)
		}
	}
	p.mu.Unlock()
	return out, nil
}
