package analysis

import (
	"fmt"

	"crypto-gap-scanner/internal/binance"
)

// PivotLevels holds the classic floor-trader pivots computed from the
// last completed daily candle.
type PivotLevels struct {
	PP float64 `json:"pp"`
	R1 float64 `json:"r1"`
	S1 float64 `json:"s1"`
}

// PivotPoints computes PP, R1 and S1 from the second-to-last daily
// candle (the last one still forming). Errors when fewer than two
// candles are available or the candle carries non-finite values.
func PivotPoints(daily []binance.Kline) (PivotLevels, error) {
	if len(daily) < 2 {
		return PivotLevels{}, fmt.Errorf("pivot points need at least 2 daily candles, got %d", len(daily))
	}
	ref := daily[len(daily)-2]
	if !Finite(ref.High) || !Finite(ref.Low) || !Finite(ref.Close) {
		return PivotLevels{}, fmt.Errorf("pivot reference candle has non-finite values")
	}
	pp := (ref.High + ref.Low + ref.Close) / 3
	return PivotLevels{
		PP: pp,
		R1: 2*pp - ref.Low,
		S1: 2*pp - ref.High,
	}, nil
}

// HistoricalResistance returns the nearest high above the current
// price inside the lookback window, excluding the two most recent
// candles. The second return is false when no such level exists.
func HistoricalResistance(daily []binance.Kline, currentPrice float64, lookbackDays int) (float64, bool) {
	window := historicalWindow(daily, lookbackDays)
	best, found := 0.0, false
	for _, k := range window {
		if Finite(k.High) && k.High > currentPrice && (!found || k.High < best) {
			best, found = k.High, true
		}
	}
	return best, found
}

// HistoricalSupport returns the nearest low below the current price
// inside the lookback window, excluding the two most recent candles.
func HistoricalSupport(daily []binance.Kline, currentPrice float64, lookbackDays int) (float64, bool) {
	best, found := 0.0, false
	for _, k := range historicalWindow(daily, lookbackDays) {
		if Finite(k.Low) && k.Low > 0 && k.Low < currentPrice && (!found || k.Low > best) {
			best, found = k.Low, true
		}
	}
	return best, found
}

// historicalWindow slices daily to the candles [-lookback, -2).
func historicalWindow(daily []binance.Kline, lookbackDays int) []binance.Kline {
	if len(daily) < 3 || lookbackDays < 3 {
		return nil
	}
	start := len(daily) - lookbackDays
	if start < 0 {
		start = 0
	}
	return daily[start : len(daily)-2]
}

// IsStrongLevel reports whether price sits within 1% of level, which
// marks the level as actionable on its own.
func IsStrongLevel(price, level float64) bool {
	if !Finite(price) || !Finite(level) || price == 0 {
		return false
	}
	dist := price - level
	if dist < 0 {
		dist = -dist
	}
	return dist/price < 0.01
}
