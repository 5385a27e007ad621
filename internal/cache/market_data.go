package cache

import (
	"context"

	"crypto-gap-scanner/internal/binance"
)

// KlineFetcher is the upstream source the cache sits in front of.
type KlineFetcher interface {
	GetKlines(symbol, interval string, limit int) ([]binance.Kline, error)
}

// CachedMarketData wraps a kline fetcher with the Redis cache. A nil cache
// passes every call straight through.
type CachedMarketData struct {
	fetcher KlineFetcher
	cache   *KlineCache
}

func NewCachedMarketData(fetcher KlineFetcher, cache *KlineCache) *CachedMarketData {
	return &CachedMarketData{fetcher: fetcher, cache: cache}
}

// GetKlines serves from cache when possible, otherwise fetches upstream and
// stores the result.
func (c *CachedMarketData) GetKlines(symbol, interval string, limit int) ([]binance.Kline, error) {
	if c.cache == nil {
		return c.fetcher.GetKlines(symbol, interval, limit)
	}

	ctx := context.Background()
	if klines, ok := c.cache.Get(ctx, symbol, interval, limit); ok {
		return klines, nil
	}

	klines, err := c.fetcher.GetKlines(symbol, interval, limit)
	if err != nil {
		return nil, err
	}

	c.cache.Put(ctx, symbol, interval, limit, klines)
	return klines, nil
}
