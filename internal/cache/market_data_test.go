package cache

import (
	"testing"

	"crypto-gap-scanner/internal/binance"
)

type countingFetcher struct {
	calls int
}

func (f *countingFetcher) GetKlines(symbol, interval string, limit int) ([]binance.Kline, error) {
	f.calls++
	return []binance.Kline{{Close: 100}}, nil
}

func TestCachedMarketDataNilCachePassesThrough(t *testing.T) {
	fetcher := &countingFetcher{}
	md := NewCachedMarketData(fetcher, nil)

	for i := 0; i < 3; i++ {
		klines, err := md.GetKlines("BTCUSDT", "1h", 100)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(klines) != 1 || klines[0].Close != 100 {
			t.Fatalf("unexpected klines: %+v", klines)
		}
	}

	if fetcher.calls != 3 {
		t.Errorf("expected 3 upstream calls, got %d", fetcher.calls)
	}
}

func TestKlineKeyIncludesAllParameters(t *testing.T) {
	a := klineKey("BTCUSDT", "1h", 100)
	b := klineKey("BTCUSDT", "1h", 200)
	c := klineKey("BTCUSDT", "5m", 100)
	d := klineKey("ETHUSDT", "1h", 100)

	keys := map[string]bool{a: true, b: true, c: true, d: true}
	if len(keys) != 4 {
		t.Errorf("expected 4 distinct keys, got %d: %v", len(keys), keys)
	}
}

func TestTTLScalesWithInterval(t *testing.T) {
	kc := &KlineCache{baseTTL: 60}

	if got := kc.ttlFor("5m"); got != 60 {
		t.Errorf("5m ttl = %v, want base", got)
	}
	if got := kc.ttlFor("1h"); got != 240 {
		t.Errorf("1h ttl = %v, want 4x base", got)
	}
	if got := kc.ttlFor("1d"); got != 720 {
		t.Errorf("1d ttl = %v, want 12x base", got)
	}
}
