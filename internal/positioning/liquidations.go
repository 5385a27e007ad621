package positioning

import (
	"fmt"
	"math"
	"sort"
	"time"

	"crypto-gap-scanner/internal/analysis"
	"crypto-gap-scanner/internal/binance"
)

// Cluster is a group of liquidation events at nearby prices.
type Cluster struct {
	Price       float64               `json:"price"`
	VolumeUSD   float64               `json:"volume_usd"`
	Side        binance.LiquidationSide `json:"side"`
	Intensity   float64               `json:"intensity"`
	Events      int                   `json:"events"`
	LastSeen    time.Time             `json:"last_seen"`
	DistancePct float64               `json:"distance_pct"`
}

// clusterSignificanceUSD is the minimum grouped volume for a cluster
// to be reported.
const clusterSignificanceUSD = 100_000

// FindClusters groups liquidation events whose prices fall inside the
// same tolerancePct-wide bucket and keeps the ten largest groups above
// the significance floor, sorted by USD volume. Intensity is each
// cluster's volume relative to the largest one.
func FindClusters(events []binance.LiquidationEvent, tolerancePct float64) []Cluster {
	if len(events) == 0 || tolerancePct <= 0 {
		return nil
	}
	type bucket struct {
		volume   float64
		priceSum float64
		count    int
		longVol  float64
		shortVol float64
		lastSeen time.Time
	}
	// Bucket width is anchored on the first event so the grid stays
	// fixed across the whole set.
	var width float64
	for _, ev := range events {
		if analysis.Finite(ev.Price) && ev.Price > 0 {
			width = ev.Price * tolerancePct / 100
			break
		}
	}
	if width <= 0 {
		return nil
	}
	buckets := make(map[int64]*bucket)
	for _, ev := range events {
		if !analysis.Finite(ev.Price) || ev.Price <= 0 {
			continue
		}
		key := int64(math.Round(ev.Price / width))
		b := buckets[key]
		if b == nil {
			b = &bucket{}
			buckets[key] = b
		}
		b.volume += ev.USDVolume
		b.priceSum += ev.Price
		b.count++
		if ev.Side == binance.LongLiquidation {
			b.longVol += ev.USDVolume
		} else {
			b.shortVol += ev.USDVolume
		}
		if t := time.UnixMilli(ev.Time); t.After(b.lastSeen) {
			b.lastSeen = t
		}
	}

	var clusters []Cluster
	maxVol := 0.0
	for _, b := range buckets {
		if b.volume <= clusterSignificanceUSD {
			continue
		}
		side := binance.LongLiquidation
		if b.shortVol > b.longVol {
			side = binance.ShortLiquidation
		}
		clusters = append(clusters, Cluster{
			Price:     b.priceSum / float64(b.count),
			VolumeUSD: b.volume,
			Side:      side,
			Events:    b.count,
			LastSeen:  b.lastSeen,
		})
		if b.volume > maxVol {
			maxVol = b.volume
		}
	}
	if len(clusters) == 0 {
		return nil
	}
	for i := range clusters {
		clusters[i].Intensity = clusters[i].VolumeUSD / maxVol
	}
	sort.Slice(clusters, func(a, b int) bool {
		return clusters[a].VolumeUSD > clusters[b].VolumeUSD
	})
	if len(clusters) > 10 {
		clusters = clusters[:10]
	}
	return clusters
}

// NearestClusters annotates clusters with their distance from price
// and returns up to n of them ordered by proximity.
func NearestClusters(clusters []Cluster, currentPrice float64, n int) []Cluster {
	if currentPrice <= 0 || len(clusters) == 0 {
		return nil
	}
	out := make([]Cluster, len(clusters))
	copy(out, clusters)
	for i := range out {
		out[i].DistancePct = (out[i].Price - currentPrice) / currentPrice * 100
	}
	sort.Slice(out, func(a, b int) bool {
		return math.Abs(out[a].DistancePct) < math.Abs(out[b].DistancePct)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// ConfluenceResult is the outcome of matching liquidation flow against
// a gap fill target.
type ConfluenceResult struct {
	HasConfluence bool     `json:"has_confluence"`
	Boost         float64  `json:"boost"`
	TotalVolume   float64  `json:"total_volume"`
	LongVolume    float64  `json:"long_volume"`
	ShortVolume   float64  `json:"short_volume"`
	Events        int      `json:"events"`
	DominantSide  string   `json:"dominant_side"` // LONG_LIQ, SHORT_LIQ, MIXED, NEUTRAL
	Details       []string `json:"details"`
}

// GapConfluence measures liquidation flow within tolerancePct of the
// gap fill level and converts it into a confidence boost.
//
// A short toward the gap is confirmed by liquidated longs (and the
// mirror for a long): at $1M+ of volume a dominant opposing side is
// worth 2.0, a mere majority 1.2 and mixed flow 0.5; at $500k+ a
// dominant opposing side is worth 1.5, anything else 0.8; at $250k+
// the boost is a flat 0.5. One side dominates when it carries 1.5x the
// other's volume.
func GapConfluence(gapPrice float64, signal analysis.GapSignal, events []binance.LiquidationEvent, tolerancePct float64) ConfluenceResult {
	result := ConfluenceResult{DominantSide: "NEUTRAL"}
	if !analysis.Finite(gapPrice) || gapPrice <= 0 || len(events) == 0 {
		return result
	}
	margin := gapPrice * tolerancePct / 100
	for _, ev := range events {
		if ev.Price < gapPrice-margin || ev.Price > gapPrice+margin {
			continue
		}
		result.TotalVolume += ev.USDVolume
		result.Events++
		if ev.Side == binance.LongLiquidation {
			result.LongVolume += ev.USDVolume
		} else {
			result.ShortVolume += ev.USDVolume
		}
	}
	if result.Events == 0 {
		return result
	}

	switch {
	case result.LongVolume > result.ShortVolume*1.5:
		result.DominantSide = string(binance.LongLiquidation)
	case result.ShortVolume > result.LongVolume*1.5:
		result.DominantSide = string(binance.ShortLiquidation)
	default:
		result.DominantSide = "MIXED"
	}

	opposing := string(binance.LongLiquidation)
	opposingVol, sameVol := result.LongVolume, result.ShortVolume
	if signal == analysis.GapLongToFill {
		opposing = string(binance.ShortLiquidation)
		opposingVol, sameVol = result.ShortVolume, result.LongVolume
	} else if signal != analysis.GapShortToFill {
		return result
	}

	switch {
	case result.TotalVolume >= 1_000_000:
		result.HasConfluence = true
		switch {
		case result.DominantSide == opposing:
			result.Boost = 2.0
			result.Details = append(result.Details, "perfect confluence: massive opposing liquidations ($1M+)")
		case opposingVol > sameVol:
			result.Boost = 1.2
			result.Details = append(result.Details, "strong confluence: opposing side majority")
		default:
			result.Boost = 0.5
			result.Details = append(result.Details, "weak confluence: mixed liquidations")
		}
	case result.TotalVolume >= 500_000:
		result.HasConfluence = true
		if result.DominantSide == opposing {
			result.Boost = 1.5
			result.Details = append(result.Details, "strong confluence: opposing liquidations ($500k+)")
		} else {
			result.Boost = 0.8
			result.Details = append(result.Details, "moderate confluence: partial direction")
		}
	case result.TotalVolume >= 250_000:
		result.HasConfluence = true
		result.Boost = 0.5
		result.Details = append(result.Details, "moderate confluence: medium volume ($250k+)")
	}
	result.Details = append(result.Details,
		fmt.Sprintf("total liquidation volume $%.0f across %d events", result.TotalVolume, result.Events))
	return result
}
