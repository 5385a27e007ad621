package positioning

import (
	"testing"
	"time"

	"crypto-gap-scanner/internal/analysis"
	"crypto-gap-scanner/internal/binance"
)

func liqEvent(side binance.LiquidationSide, price, usd float64) binance.LiquidationEvent {
	return binance.LiquidationEvent{
		Symbol:    "BTCUSDT",
		Side:      side,
		Price:     price,
		USDVolume: usd,
		Time:      time.Now().UnixMilli(),
	}
}

// TestFindClustersGroupsNearbyPrices: events within the tolerance
// bucket merge, and sub-$100k groups are dropped.
func TestFindClustersGroupsNearbyPrices(t *testing.T) {
	events := []binance.LiquidationEvent{
		liqEvent(binance.LongLiquidation, 100.0, 80_000),
		liqEvent(binance.LongLiquidation, 100.1, 70_000),
		liqEvent(binance.ShortLiquidation, 110.0, 50_000), // alone, below floor
	}

	clusters := FindClusters(events, 0.5)
	if len(clusters) != 1 {
		t.Fatalf("Expected 1 cluster, got %d", len(clusters))
	}
	c := clusters[0]
	if c.VolumeUSD != 150_000 {
		t.Errorf("Expected $150k volume, got %f", c.VolumeUSD)
	}
	if c.Side != binance.LongLiquidation {
		t.Errorf("Expected LONG_LIQ side, got %s", c.Side)
	}
	if c.Events != 2 {
		t.Errorf("Expected 2 events, got %d", c.Events)
	}
	if c.Intensity != 1.0 {
		t.Errorf("Expected intensity 1.0 for the largest cluster, got %f", c.Intensity)
	}
}

// TestFindClustersLastSeen: the cluster timestamp is the newest event
// in the bucket, converted from the stream's millisecond epoch.
func TestFindClustersLastSeen(t *testing.T) {
	older := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	newer := older.Add(45 * time.Second)

	a := liqEvent(binance.LongLiquidation, 100.0, 90_000)
	a.Time = newer.UnixMilli()
	b := liqEvent(binance.LongLiquidation, 100.1, 90_000)
	b.Time = older.UnixMilli()

	clusters := FindClusters([]binance.LiquidationEvent{a, b}, 0.5)
	if len(clusters) != 1 {
		t.Fatalf("Expected 1 cluster, got %d", len(clusters))
	}
	if !clusters[0].LastSeen.Equal(newer) {
		t.Errorf("Expected last seen %v, got %v", newer, clusters[0].LastSeen)
	}
}

func TestFindClustersEmpty(t *testing.T) {
	if c := FindClusters(nil, 0.5); c != nil {
		t.Errorf("Expected nil for empty input, got %v", c)
	}
}

// TestNearestClusters orders by distance from the current price.
func TestNearestClusters(t *testing.T) {
	clusters := []Cluster{
		{Price: 120, VolumeUSD: 900_000},
		{Price: 101, VolumeUSD: 200_000},
	}
	nearest := NearestClusters(clusters, 100, 5)
	if len(nearest) != 2 {
		t.Fatalf("Expected 2 clusters, got %d", len(nearest))
	}
	if nearest[0].Price != 101 {
		t.Errorf("Expected 101 first, got %f", nearest[0].Price)
	}
	if nearest[0].DistancePct != 1.0 {
		t.Errorf("Expected distance 1%%, got %f", nearest[0].DistancePct)
	}
}

// TestGapConfluenceTiers walks the volume tiers for a short fill.
func TestGapConfluenceTiers(t *testing.T) {
	cases := []struct {
		name      string
		longUSD   float64
		shortUSD  float64
		wantBoost float64
	}{
		{"dominant longs over $1M", 1_200_000, 100_000, 2.0},
		{"long majority over $1M", 700_000, 600_000, 1.2},
		{"dominant shorts over $1M", 100_000, 1_200_000, 0.5},
		{"dominant longs over $500k", 500_000, 100_000, 1.5},
		{"mixed over $500k", 300_000, 300_000, 0.8},
		{"anything over $250k", 200_000, 60_000, 0.5},
		{"below floor", 100_000, 50_000, 0.0},
	}
	for _, c := range cases {
		events := []binance.LiquidationEvent{
			liqEvent(binance.LongLiquidation, 100.0, c.longUSD),
			liqEvent(binance.ShortLiquidation, 100.1, c.shortUSD),
		}
		res := GapConfluence(100, analysis.GapShortToFill, events, 0.4)
		if res.Boost != c.wantBoost {
			t.Errorf("%s: expected boost %.1f, got %.1f", c.name, c.wantBoost, res.Boost)
		}
	}
}

// TestGapConfluenceMirrorsForLong: for a long fill the confirming
// side is liquidated shorts.
func TestGapConfluenceMirrorsForLong(t *testing.T) {
	events := []binance.LiquidationEvent{
		liqEvent(binance.ShortLiquidation, 100.0, 1_500_000),
	}
	res := GapConfluence(100, analysis.GapLongToFill, events, 0.4)
	if res.Boost != 2.0 {
		t.Errorf("Expected boost 2.0, got %f", res.Boost)
	}
	if res.DominantSide != string(binance.ShortLiquidation) {
		t.Errorf("Expected SHORT_LIQ dominant, got %s", res.DominantSide)
	}
}

// TestGapConfluenceIgnoresDistantEvents: flow outside the tolerance
// band does not count.
func TestGapConfluenceIgnoresDistantEvents(t *testing.T) {
	events := []binance.LiquidationEvent{
		liqEvent(binance.LongLiquidation, 105, 5_000_000), // 5% away
	}
	res := GapConfluence(100, analysis.GapShortToFill, events, 0.4)
	if res.HasConfluence || res.Boost != 0 {
		t.Errorf("Expected no confluence, got %+v", res)
	}
}
