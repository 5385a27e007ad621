package analysis

import (
	"math"
	"sort"

	"crypto-gap-scanner/internal/binance"
)

// GapSignal is the tradeable direction implied by an open gap: price
// is expected to travel back toward the gap level.
type GapSignal string

const (
	GapShortToFill GapSignal = "SHORT_TO_FILL"
	GapLongToFill  GapSignal = "LONG_TO_FILL"
	GapNone        GapSignal = "NO_GAP"
)

// GapDirection records which way price jumped to create the gap.
type GapDirection string

const (
	GapUp   GapDirection = "GAP_UP"
	GapDown GapDirection = "GAP_DOWN"
)

// GapStrength buckets a gap by its size.
type GapStrength string

const (
	GapStrong GapStrength = "STRONG" // > 2%
	GapMedium GapStrength = "MEDIUM" // > 1%
	GapWeak   GapStrength = "WEAK"
)

// Gap is one unfilled gap in the daily series.
type Gap struct {
	Level     float64      `json:"level"` // midpoint for inventory gaps, fill target for recent gaps
	Bottom    float64      `json:"bottom"`
	Top       float64      `json:"top"`
	Direction GapDirection `json:"direction"`
	AgeBars   int          `json:"age_bars"`
	SizePct   float64      `json:"size_pct"`
	Strength  GapStrength  `json:"strength"`
}

// DetectActiveGap is the coarse single-candle variant: it compares the
// current price against the last completed daily close and reports a
// fill signal when the distance exceeds thresholdPct percent. The
// returned level is that reference close.
func DetectActiveGap(daily []binance.Kline, currentPrice, thresholdPct float64) (GapSignal, float64) {
	if len(daily) < 2 || !Finite(currentPrice) {
		return GapNone, math.NaN()
	}
	refClose, ok := SafeFloat(daily[len(daily)-2].Close)
	if !ok || refClose == 0 {
		return GapNone, math.NaN()
	}
	diffPct := (currentPrice - refClose) / refClose * 100
	switch {
	case diffPct > thresholdPct:
		return GapShortToFill, refClose
	case diffPct < -thresholdPct:
		return GapLongToFill, refClose
	default:
		return GapNone, math.NaN()
	}
}

// DetectRecentGaps is the strict variant: it scans the last
// lookbackDays daily candles for true range gaps (current low above
// previous high, or current high below previous low) larger than
// thresholdPct percent, discards any gap a later candle has already
// traded back through, and keeps only gaps the current price has moved
// past (so a fill implies a move toward the level). It returns the
// signal for the gap nearest the current price, that gap's fill level,
// and all surviving candidates sorted by proximity.
func DetectRecentGaps(daily []binance.Kline, currentPrice, thresholdPct float64, lookbackDays int) (GapSignal, float64, []Gap) {
	if len(daily) < 5 || !Finite(currentPrice) {
		return GapNone, math.NaN(), nil
	}
	var candidates []Gap
	n := len(daily)
	for off := -lookbackDays; off < 0; off++ {
		i := n + off
		if i < 1 {
			continue
		}
		prev, curr := daily[i-1], daily[i]
		if !candleFinite(prev) || !candleFinite(curr) {
			continue
		}

		if curr.Low > prev.High {
			// Upward jump: the fill target is the previous high,
			// reachable only if price is still above it.
			sizePct := (curr.Low - prev.High) / prev.High * 100
			if sizePct > thresholdPct && !lowTouched(daily[i:], prev.High) && prev.High < currentPrice {
				candidates = append(candidates, Gap{
					Level:     prev.High,
					Bottom:    prev.High,
					Top:       curr.Low,
					Direction: GapUp,
					AgeBars:   -off,
					SizePct:   sizePct,
					Strength:  classifyGapStrength(sizePct),
				})
			}
		} else if curr.High < prev.Low {
			sizePct := (prev.Low - curr.High) / curr.High * 100
			if sizePct > thresholdPct && !highTouched(daily[i:], prev.Low) && prev.Low > currentPrice {
				candidates = append(candidates, Gap{
					Level:     prev.Low,
					Bottom:    curr.High,
					Top:       prev.Low,
					Direction: GapDown,
					AgeBars:   -off,
					SizePct:   sizePct,
					Strength:  classifyGapStrength(sizePct),
				})
			}
		}
	}
	if len(candidates) == 0 {
		return GapNone, math.NaN(), nil
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return math.Abs(candidates[a].Level-currentPrice) < math.Abs(candidates[b].Level-currentPrice)
	})
	closest := candidates[0]
	if closest.Direction == GapUp {
		return GapShortToFill, closest.Level, candidates
	}
	return GapLongToFill, closest.Level, candidates
}

// FindAllGaps builds the full inventory of unfilled gaps over the last
// lookbackDays daily candles, split into gaps above and below the
// current price. Inventory gaps use the band midpoint as their level;
// above-gaps are sorted ascending and below-gaps descending, so each
// list starts with the gap closest to price.
func FindAllGaps(daily []binance.Kline, currentPrice float64, lookbackDays int) (above, below []Gap) {
	if len(daily) < 3 || !Finite(currentPrice) {
		return nil, nil
	}
	window := daily
	if len(daily) > lookbackDays {
		window = daily[len(daily)-lookbackDays:]
	}
	for i := 1; i < len(window); i++ {
		prev, curr := window[i-1], window[i]
		if !candleFinite(prev) || !candleFinite(curr) {
			continue
		}
		var g Gap
		switch {
		case curr.Low > prev.High:
			if lowTouched(window[i:], prev.High) {
				continue
			}
			g = Gap{Bottom: prev.High, Top: curr.Low, Direction: GapUp}
		case curr.High < prev.Low:
			if highTouched(window[i:], prev.Low) {
				continue
			}
			g = Gap{Bottom: curr.High, Top: prev.Low, Direction: GapDown}
		default:
			continue
		}
		if g.Bottom <= 0 {
			continue
		}
		g.Level = (g.Bottom + g.Top) / 2
		g.AgeBars = len(window) - i
		g.SizePct = (g.Top - g.Bottom) / g.Bottom * 100
		g.Strength = classifyGapStrength(g.SizePct)

		if g.Level > currentPrice {
			above = append(above, g)
		} else if g.Level < currentPrice {
			below = append(below, g)
		}
	}
	sort.SliceStable(above, func(a, b int) bool { return above[a].Level < above[b].Level })
	sort.SliceStable(below, func(a, b int) bool { return below[a].Level > below[b].Level })
	return above, below
}

func classifyGapStrength(sizePct float64) GapStrength {
	switch {
	case sizePct > 2.0:
		return GapStrong
	case sizePct > 1.0:
		return GapMedium
	default:
		return GapWeak
	}
}

func candleFinite(k binance.Kline) bool {
	return Finite(k.Open) && Finite(k.High) && Finite(k.Low) && Finite(k.Close)
}

// lowTouched reports whether any candle's low reached down to level.
func lowTouched(klines []binance.Kline, level float64) bool {
	for _, k := range klines {
		if Finite(k.Low) && k.Low <= level {
			return true
		}
	}
	return false
}

// highTouched reports whether any candle's high reached up to level.
func highTouched(klines []binance.Kline, level float64) bool {
	for _, k := range klines {
		if Finite(k.High) && k.High >= level {
			return true
		}
	}
	return false
}
