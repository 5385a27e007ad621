// Package analysis provides the deterministic market analysis core:
// technical indicators, pivot levels, gap detection, Wyckoff-style
// market structure classification and cross-asset correlation.
//
// All functions are pure: they operate on candle slices already fetched
// from the exchange and never perform I/O. Degenerate numeric input
// (NaN, Inf, empty series) always yields an explicit "not available"
// result, never a panic or a poisoned value downstream.
package analysis

import (
	"math"

	"crypto-gap-scanner/internal/binance"
)

// Finite reports whether v is a usable number (not NaN, not Inf).
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// SafeFloat coerces v to a usable number. The second return is false
// when v is NaN or infinite, in which case the first return is 0.
func SafeFloat(v float64) (float64, bool) {
	if !Finite(v) {
		return 0, false
	}
	return v, true
}

// Closes extracts the close series from a candle slice.
func Closes(klines []binance.Kline) []float64 {
	out := make([]float64, len(klines))
	for i, k := range klines {
		out[i] = k.Close
	}
	return out
}

// Volumes extracts the volume series from a candle slice.
func Volumes(klines []binance.Kline) []float64 {
	out := make([]float64, len(klines))
	for i, k := range klines {
		out[i] = k.Volume
	}
	return out
}

// LastClose returns the close of the most recent candle. The second
// return is false when the series is empty or the close is not finite.
func LastClose(klines []binance.Kline) (float64, bool) {
	if len(klines) == 0 {
		return 0, false
	}
	return SafeFloat(klines[len(klines)-1].Close)
}

// PctChange returns the percent change series of values: out[i] is the
// change from values[i] to values[i+1] expressed as a fraction.
// Elements with a non-finite or zero base are skipped as NaN.
func PctChange(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		prev := values[i-1]
		if !Finite(prev) || prev == 0 || !Finite(values[i]) {
			out[i-1] = math.NaN()
			continue
		}
		out[i-1] = (values[i] - prev) / prev
	}
	return out
}

// mean returns the arithmetic mean of values. NaN when values is empty
// or contains a non-finite element.
func mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range values {
		if !Finite(v) {
			return math.NaN()
		}
		sum += v
	}
	return sum / float64(len(values))
}

// stdDev returns the population standard deviation of values.
func stdDev(values []float64) float64 {
	m := mean(values)
	if !Finite(m) || len(values) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}
