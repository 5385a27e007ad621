package analysis

import (
	"math"

	"crypto-gap-scanner/internal/binance"
)

// MarketPhase is the primary structure classification used to scale
// signal confidence.
type MarketPhase string

const (
	PhasePureConsolidation    MarketPhase = "PURE_CONSOLIDATION"
	PhaseAccumulationInRange  MarketPhase = "ACCUMULATION_IN_RANGE"
	PhaseDistributionInRange  MarketPhase = "DISTRIBUTION_IN_RANGE"
	PhaseStrongAccumulation   MarketPhase = "STRONG_ACCUMULATION"
	PhasePossibleAccumulation MarketPhase = "POSSIBLE_ACCUMULATION"
	PhaseStrongDistribution   MarketPhase = "STRONG_DISTRIBUTION"
	PhasePossibleDistribution MarketPhase = "POSSIBLE_DISTRIBUTION"
	PhaseTrending             MarketPhase = "TRENDING"
)

// ConsolidationResult describes the recent trading range.
type ConsolidationResult struct {
	IsConsolidating bool    `json:"is_consolidating"`
	RangePct        float64 `json:"range_pct"`
	Resistance      float64 `json:"resistance"`
	Support         float64 `json:"support"`
	Position        string  `json:"position"` // NEAR_RESISTANCE, NEAR_SUPPORT, MID_RANGE
}

// WyckoffResult is the outcome of one accumulation or distribution
// check: the weighted evidence score and the signals that fired.
type WyckoffResult struct {
	Detected bool     `json:"detected"`
	Phase    string   `json:"phase"` // STRONG_*, POSSIBLE_*, NONE
	Score    float64  `json:"score"`
	Signals  []string `json:"signals"`
}

// StructureResult is the full market structure classification for one
// instrument. Multiplier scales the confidence of any signal taken in
// this phase.
type StructureResult struct {
	Phase          MarketPhase         `json:"phase"`
	Multiplier     float64             `json:"multiplier"`
	Recommendation string              `json:"recommendation"`
	Consolidation  ConsolidationResult `json:"consolidation"`
	Accumulation   WyckoffResult       `json:"accumulation"`
	Distribution   WyckoffResult       `json:"distribution"`
}

// DetectConsolidation reports whether the last lookback daily candles
// traded inside a range narrower than 5%, measured from the range low.
func DetectConsolidation(daily []binance.Kline, lookback int) ConsolidationResult {
	if lookback <= 0 || len(daily) < lookback {
		return ConsolidationResult{}
	}
	recent := daily[len(daily)-lookback:]
	highest, lowest := rangeExtremes(recent)
	if !Finite(highest) || !Finite(lowest) || lowest <= 0 {
		return ConsolidationResult{}
	}
	rangePct := (highest - lowest) / lowest * 100
	return ConsolidationResult{
		IsConsolidating: rangePct < 5.0,
		RangePct:        rangePct,
		Resistance:      highest,
		Support:         lowest,
	}
}

// DetectAccumulation scores Wyckoff accumulation evidence over the
// last lookback daily candles: price in the lower zone (weight 1),
// declining volume between the window halves (1), a base narrower than
// 8% over the last 20 candles (1.5) and a bullish RSI divergence
// sampled every second candle over the last ten (1.5). A score of 2 or
// more counts as detected, 3 or more as strong.
func DetectAccumulation(daily []binance.Kline, lookback int) WyckoffResult {
	ev, ok := structureEvidence(daily, lookback)
	if !ok {
		return WyckoffResult{Phase: "NONE"}
	}
	res := WyckoffResult{Phase: "NONE"}
	if ev.priceTrend < 0 || math.Abs(ev.priceTrend) < 0.05 {
		res.Score += 1
		res.Signals = append(res.Signals, "price in lower zone")
	}
	if ev.volumeDecreasing {
		res.Score += 1
		res.Signals = append(res.Signals, "declining volume")
	}
	if ev.narrowRecentRange {
		res.Score += 1.5
		res.Signals = append(res.Signals, "forming base")
	}
	if ev.divergence(true) {
		res.Score += 1.5
		res.Signals = append(res.Signals, "bullish RSI divergence")
	}
	switch {
	case res.Score >= 3.0:
		res.Phase = "STRONG_ACCUMULATION"
	case res.Score >= 2.0:
		res.Phase = "POSSIBLE_ACCUMULATION"
	}
	res.Detected = res.Score >= 2.0
	return res
}

// DetectDistribution mirrors DetectAccumulation for the top of a move:
// price in the upper zone, declining volume, a narrow top and a
// bearish RSI divergence.
func DetectDistribution(daily []binance.Kline, lookback int) WyckoffResult {
	ev, ok := structureEvidence(daily, lookback)
	if !ok {
		return WyckoffResult{Phase: "NONE"}
	}
	res := WyckoffResult{Phase: "NONE"}
	if ev.priceTrend > 0 || math.Abs(ev.priceTrend) < 0.05 {
		res.Score += 1
		res.Signals = append(res.Signals, "price in upper zone")
	}
	if ev.volumeDecreasing {
		res.Score += 1
		res.Signals = append(res.Signals, "declining volume")
	}
	if ev.narrowRecentRange {
		res.Score += 1.5
		res.Signals = append(res.Signals, "forming top")
	}
	if ev.divergence(false) {
		res.Score += 1.5
		res.Signals = append(res.Signals, "bearish RSI divergence")
	}
	switch {
	case res.Score >= 3.0:
		res.Phase = "STRONG_DISTRIBUTION"
	case res.Score >= 2.0:
		res.Phase = "POSSIBLE_DISTRIBUTION"
	}
	res.Detected = res.Score >= 2.0
	return res
}

// evidence shared by the accumulation and distribution checks.
type structureEvidenceSet struct {
	priceTrend        float64
	volumeDecreasing  bool
	narrowRecentRange bool
	rsiSamples        []float64
	priceSamples      []float64
}

func structureEvidence(daily []binance.Kline, lookback int) (structureEvidenceSet, bool) {
	if lookback < 20 || len(daily) < lookback {
		return structureEvidenceSet{}, false
	}
	recent := daily[len(daily)-lookback:]
	first := recent[0].Close
	last := recent[len(recent)-1].Close
	if !Finite(first) || first == 0 || !Finite(last) {
		return structureEvidenceSet{}, false
	}
	ev := structureEvidenceSet{priceTrend: (last - first) / first}

	half := lookback / 2
	firstHalf := mean(Volumes(recent[:half]))
	secondHalf := mean(Volumes(recent[half:]))
	ev.volumeDecreasing = Finite(firstHalf) && Finite(secondHalf) && secondHalf < firstHalf

	last20 := recent[len(recent)-20:]
	high, low := rangeExtremes(last20)
	if Finite(high) && Finite(low) && low > 0 {
		ev.narrowRecentRange = (high-low)/low*100 < 8.0
	}

	// Divergence samples: RSI recomputed on the series truncated at
	// each offset, paired with the close at that offset.
	for off := -10; off < 0; off += 2 {
		truncated := daily[:len(daily)+off]
		rsi, ok := RSI(truncated, 14)
		if !ok {
			continue
		}
		price, ok := SafeFloat(daily[len(daily)+off].Close)
		if !ok {
			continue
		}
		ev.rsiSamples = append(ev.rsiSamples, rsi)
		ev.priceSamples = append(ev.priceSamples, price)
	}
	return ev, true
}

// divergence reports an RSI/price divergence over the samples: bullish
// when RSI rose while price fell, bearish when RSI fell while price
// rose. Needs at least three samples.
func (ev structureEvidenceSet) divergence(bullish bool) bool {
	if len(ev.rsiSamples) < 3 || len(ev.priceSamples) < 3 {
		return false
	}
	rsiFirst, rsiLast := ev.rsiSamples[0], ev.rsiSamples[len(ev.rsiSamples)-1]
	pFirst, pLast := ev.priceSamples[0], ev.priceSamples[len(ev.priceSamples)-1]
	if bullish {
		return rsiLast > rsiFirst && pLast < pFirst
	}
	return rsiLast < rsiFirst && pLast > pFirst
}

// ClassifyMarketPhase combines consolidation, accumulation and
// distribution into the primary phase and its confidence multiplier.
//
// Consolidation wins: inside a range the stronger of the two Wyckoff
// reads refines the phase at multiplier 0.8, a tie is pure
// consolidation at 0.5. Outside a range an unopposed accumulation or
// distribution read takes its own phase at 1.2 (strong) or 1.1
// (possible); anything else is trending at 1.0.
func ClassifyMarketPhase(daily []binance.Kline, currentPrice float64) StructureResult {
	cons := DetectConsolidation(daily, 20)
	accum := DetectAccumulation(daily, 60)
	distrib := DetectDistribution(daily, 60)

	out := StructureResult{
		Consolidation: cons,
		Accumulation:  accum,
		Distribution:  distrib,
	}

	if cons.IsConsolidating {
		if Finite(currentPrice) && currentPrice > 0 {
			distToRes := (cons.Resistance - currentPrice) / currentPrice * 100
			distToSup := (currentPrice - cons.Support) / currentPrice * 100
			switch {
			case distToRes < 1.0:
				out.Consolidation.Position = "NEAR_RESISTANCE"
			case distToSup < 1.0:
				out.Consolidation.Position = "NEAR_SUPPORT"
			default:
				out.Consolidation.Position = "MID_RANGE"
			}
		}
		switch {
		case accum.Detected && accum.Score > distrib.Score:
			out.Phase = PhaseAccumulationInRange
			out.Multiplier = 0.8
			out.Recommendation = "consolidation with accumulation, wait for breakout"
		case distrib.Detected && distrib.Score > accum.Score:
			out.Phase = PhaseDistributionInRange
			out.Multiplier = 0.8
			out.Recommendation = "consolidation with distribution, wait for breakdown"
		default:
			out.Phase = PhasePureConsolidation
			out.Multiplier = 0.5
			out.Recommendation = "pure consolidation, stand aside"
		}
		return out
	}

	switch {
	case accum.Detected && !distrib.Detected:
		out.Phase = MarketPhase(accum.Phase)
		if accum.Score >= 3.0 {
			out.Multiplier = 1.2
			out.Recommendation = "strong accumulation, prepare long"
		} else {
			out.Multiplier = 1.1
			out.Recommendation = "possible accumulation, monitor"
		}
	case distrib.Detected && !accum.Detected:
		out.Phase = MarketPhase(distrib.Phase)
		if distrib.Score >= 3.0 {
			out.Multiplier = 1.2
			out.Recommendation = "strong distribution, prepare short"
		} else {
			out.Multiplier = 1.1
			out.Recommendation = "possible distribution, monitor"
		}
	default:
		out.Phase = PhaseTrending
		out.Multiplier = 1.0
		out.Recommendation = "clear trend, trade normally"
	}
	return out
}

func rangeExtremes(klines []binance.Kline) (high, low float64) {
	high, low = math.Inf(-1), math.Inf(1)
	for _, k := range klines {
		if Finite(k.High) && k.High > high {
			high = k.High
		}
		if Finite(k.Low) && k.Low < low {
			low = k.Low
		}
	}
	return high, low
}
