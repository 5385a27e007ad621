// Package cache provides a Redis-backed kline cache so repeated scans
// within a short window do not refetch identical candle history.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"crypto-gap-scanner/config"
	"crypto-gap-scanner/internal/binance"
)

// KlineCache caches candle history in Redis with graceful degradation.
// When Redis is unavailable the cache reports misses and callers fetch
// from the exchange as usual.
type KlineCache struct {
	client  *redis.Client
	baseTTL time.Duration

	mu           sync.RWMutex
	healthy      bool
	failureCount int
	lastCheck    time.Time

	maxFailures   int
	checkInterval time.Duration
}

// NewKlineCache connects to Redis and returns the cache. A failed initial
// connection is not an error: the cache starts in degraded mode and probes
// for recovery in the background.
func NewKlineCache(cfg config.RedisConfig) (*KlineCache, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("redis is not enabled in configuration")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	kc := &KlineCache{
		client:        client,
		baseTTL:       cfg.KlineTTL(),
		maxFailures:   3,
		checkInterval: 30 * time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Str("address", cfg.Address).Msg("redis connection failed, cache degraded")
		return kc, nil
	}

	kc.healthy = true
	kc.lastCheck = time.Now()
	log.Info().Str("address", cfg.Address).Msg("redis kline cache connected")

	return kc, nil
}

// IsHealthy returns whether Redis is currently available.
func (kc *KlineCache) IsHealthy() bool {
	kc.mu.RLock()
	defer kc.mu.RUnlock()
	return kc.healthy
}

func (kc *KlineCache) recordFailure() {
	kc.mu.Lock()
	defer kc.mu.Unlock()

	kc.failureCount++
	if kc.failureCount >= kc.maxFailures {
		if kc.healthy {
			log.Warn().Int("failures", kc.failureCount).Msg("redis marked unhealthy")
		}
		kc.healthy = false
	}
}

func (kc *KlineCache) recordSuccess() {
	kc.mu.Lock()
	defer kc.mu.Unlock()

	if !kc.healthy {
		log.Info().Msg("redis recovered")
	}
	kc.healthy = true
	kc.failureCount = 0
	kc.lastCheck = time.Now()
}

// checkHealth probes Redis in the background once the check interval has
// passed since the last successful operation.
func (kc *KlineCache) checkHealth() {
	kc.mu.RLock()
	shouldCheck := !kc.healthy && time.Since(kc.lastCheck) >= kc.checkInterval
	kc.mu.RUnlock()

	if !shouldCheck {
		return
	}

	go func() {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := kc.client.Ping(pingCtx).Err(); err == nil {
			kc.recordSuccess()
		}
	}()
}

func klineKey(symbol, interval string, limit int) string {
	return fmt.Sprintf("klines:%s:%s:%d", symbol, interval, limit)
}

// ttlFor scales the TTL with the candle interval: intraday candles churn
// and expire at the base TTL, daily history is stable for much longer.
func (kc *KlineCache) ttlFor(interval string) time.Duration {
	switch interval {
	case "1d", "3d", "1w":
		return 12 * kc.baseTTL
	case "1h", "2h", "4h":
		return 4 * kc.baseTTL
	default:
		return kc.baseTTL
	}
}

// Get returns cached klines, or (nil, false) on a miss or when Redis is
// unavailable.
func (kc *KlineCache) Get(ctx context.Context, symbol, interval string, limit int) ([]binance.Kline, bool) {
	kc.checkHealth()

	if !kc.IsHealthy() {
		return nil, false
	}

	data, err := kc.client.Get(ctx, klineKey(symbol, interval, limit)).Result()
	if err != nil {
		if err != redis.Nil {
			kc.recordFailure()
		}
		return nil, false
	}

	var klines []binance.Kline
	if err := json.Unmarshal([]byte(data), &klines); err != nil {
		// Corrupt entry, drop it.
		kc.client.Del(ctx, klineKey(symbol, interval, limit))
		return nil, false
	}

	kc.recordSuccess()
	return klines, true
}

// Put stores klines under the interval-scaled TTL. Failures are logged and
// swallowed: the cache is never load-bearing.
func (kc *KlineCache) Put(ctx context.Context, symbol, interval string, limit int, klines []binance.Kline) {
	kc.checkHealth()

	if !kc.IsHealthy() {
		return
	}

	data, err := json.Marshal(klines)
	if err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("kline cache marshal failed")
		return
	}

	if err := kc.client.Set(ctx, klineKey(symbol, interval, limit), data, kc.ttlFor(interval)).Err(); err != nil {
		kc.recordFailure()
		log.Warn().Err(err).Str("symbol", symbol).Msg("kline cache write failed")
		return
	}

	kc.recordSuccess()
}

// Flush removes all cached klines.
func (kc *KlineCache) Flush(ctx context.Context) error {
	if !kc.IsHealthy() {
		return fmt.Errorf("redis unavailable")
	}

	iter := kc.client.Scan(ctx, 0, "klines:*", 100).Iterator()
	for iter.Next(ctx) {
		if err := kc.client.Del(ctx, iter.Val()).Err(); err != nil {
			kc.recordFailure()
			return fmt.Errorf("redis delete failed: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		kc.recordFailure()
		return fmt.Errorf("redis scan failed: %w", err)
	}

	kc.recordSuccess()
	return nil
}

// Close closes the Redis connection.
func (kc *KlineCache) Close() error {
	if kc.client != nil {
		return kc.client.Close()
	}
	return nil
}
