// Package positioning derives long/short crowd positioning for an
// instrument, either from Binance futures market data or, when no
// derivatives endpoint is reachable, estimated from price action
// alone. Both paths feed the same direction forecast and the
// liquidation confluence boost used by the decision engine.
package positioning

import (
	"fmt"
	"math"

	"crypto-gap-scanner/internal/analysis"
	"crypto-gap-scanner/internal/binance"
)

// MetricsSource identifies how the positioning metrics were obtained.
type MetricsSource string

const (
	SourceDerivatives MetricsSource = "derivatives"
	SourceEstimated   MetricsSource = "estimated"
)

// Metrics is the positioning snapshot for one instrument.
type Metrics struct {
	Source       MetricsSource `json:"source"`
	LSRatio      float64       `json:"ls_ratio"`
	RatioTrend   float64       `json:"ratio_trend"` // change of the L/S ratio, derivatives source only
	FundingRate  float64       `json:"funding_rate"`
	BuySellRatio float64       `json:"buy_sell_ratio"`
	OpenInterest float64       `json:"open_interest"`
	RSI          float64       `json:"rsi"`
	Momentum24h  float64       `json:"momentum_24h"`
	Momentum7d   float64       `json:"momentum_7d"`
	Volatility   float64       `json:"volatility"`
	VolumeRatio  float64       `json:"volume_ratio"`
	BiasText     string        `json:"bias_text"`
}

// EstimateFromPriceAction derives positioning metrics from an hourly
// candle series alone.
//
// The long/short ratio is mapped from RSI and 24h momentum: crowded
// longs (RSI above 65 in an up move) map to 1.5..2.0, crowded shorts
// to 0.5..0.67, anything else to a balanced 0.8..1.2 band. Funding is
// approximated from sustained momentum and the buy/sell ratio from a
// volume spike in the direction of the move.
func EstimateFromPriceAction(hourly []binance.Kline) (Metrics, error) {
	rsi, ok := analysis.RSI(hourly, 14)
	if !ok {
		return Metrics{}, fmt.Errorf("not enough hourly data to estimate positioning")
	}
	m := Metrics{Source: SourceEstimated, RSI: rsi}
	m.Momentum24h, _ = analysis.Momentum(hourly, 24)
	m.Momentum7d, _ = analysis.Momentum(hourly, 168)
	m.Volatility, _ = analysis.Volatility(hourly, 24)
	m.VolumeRatio = relativeVolume(hourly, 20)

	trend := m.Momentum24h
	switch {
	case rsi > 65 && trend > 0:
		m.LSRatio = 1.5 + (rsi-65)/35*0.5
		m.BiasText = "crowded longs"
	case rsi < 35 && trend < 0:
		m.LSRatio = 0.5 + (35-rsi)/35*0.17
		m.BiasText = "crowded shorts"
	default:
		m.LSRatio = 0.8 + rsi/100*0.4
		m.BiasText = "balanced"
	}

	switch {
	case m.Momentum24h > 3 && m.Momentum7d > 5:
		m.FundingRate = 0.015
	case m.Momentum24h < -3 && m.Momentum7d < -5:
		m.FundingRate = -0.015
	default:
		m.FundingRate = m.Momentum24h / 1000
	}

	switch {
	case m.VolumeRatio > 1.5 && trend > 0:
		m.BuySellRatio = 1.4
	case m.VolumeRatio > 1.5 && trend < 0:
		m.BuySellRatio = 0.7
	default:
		m.BuySellRatio = 1.0
	}
	return m, nil
}

// FromDerivatives builds positioning metrics from futures market data.
// Any nil or empty input is skipped with a neutral default. The ls
// buckets are ordered oldest first; the last one is the current ratio
// and the change from the bucket before it becomes the ratio trend.
func FromDerivatives(funding *binance.FundingRate, ls []binance.LongShortRatio, taker *binance.TakerVolumeRatio, oi *binance.OpenInterest) Metrics {
	m := Metrics{Source: SourceDerivatives, LSRatio: 1.0, BuySellRatio: 1.0}
	if funding != nil {
		m.FundingRate = funding.FundingRate
	}
	if n := len(ls); n > 0 {
		last := ls[n-1].LongShortRatio
		if analysis.Finite(last) && last > 0 {
			m.LSRatio = last
			if n > 1 {
				prev := ls[n-2].LongShortRatio
				if analysis.Finite(prev) && prev > 0 {
					m.RatioTrend = last - prev
				}
			}
		}
	}
	if taker != nil && analysis.Finite(taker.BuySellRatio) && taker.BuySellRatio > 0 {
		m.BuySellRatio = taker.BuySellRatio
	}
	if oi != nil {
		m.OpenInterest = oi.OpenInterest
	}
	switch {
	case m.LSRatio > 1.2:
		m.BiasText = "crowded longs"
	case m.LSRatio < 0.8:
		m.BiasText = "crowded shorts"
	default:
		m.BiasText = "balanced"
	}
	return m
}

// relativeVolume is the last volume over the rolling 20-bar average.
func relativeVolume(klines []binance.Kline, window int) float64 {
	if len(klines) < window {
		return 1.0
	}
	avg := 0.0
	for _, k := range klines[len(klines)-window:] {
		avg += k.Volume
	}
	avg /= float64(window)
	if avg <= 0 {
		return 1.0
	}
	return klines[len(klines)-1].Volume / avg
}

// LiquidationZone is an estimated price band where leveraged positions
// would be forced out.
type LiquidationZone struct {
	Price       float64 `json:"price"`
	DistancePct float64 `json:"distance_pct"`
	Type        string  `json:"type"` // LONG_LIQ_ZONE or SHORT_LIQ_ZONE
	Leverage    int     `json:"leverage"`
	Intensity   float64 `json:"intensity"`
	RangeLabel  string  `json:"range_label"`
	RiskLevel   string  `json:"risk_level"` // HIGH, MEDIUM, LOW
}

// defaultZoneRanges are the leverage distance bands: ±1% (100x) out to
// ±10% (10x).
var defaultZoneRanges = []float64{0.01, 0.02, 0.03, 0.05, 0.07, 0.10}

var zoneRangeLabels = map[float64]string{
	0.01: "VERY_NEAR",
	0.02: "NEAR",
	0.03: "MID",
	0.05: "FAR",
	0.07: "VERY_FAR",
	0.10: "EXTREME",
}

// EstimateLiquidationZones projects liquidation bands from the L/S
// ratio: crowded longs (ratio above 1.2) put long liquidation zones
// below price, crowded shorts (below 0.8) put short liquidation zones
// above. A balanced ratio yields no zones.
func EstimateLiquidationZones(currentPrice, lsRatio float64, ranges []float64) []LiquidationZone {
	if !analysis.Finite(currentPrice) || currentPrice <= 0 || !analysis.Finite(lsRatio) {
		return nil
	}
	if len(ranges) == 0 {
		ranges = defaultZoneRanges
	}
	maxRange := ranges[0]
	for _, r := range ranges {
		if r > maxRange {
			maxRange = r
		}
	}

	var zones []LiquidationZone
	if lsRatio > 1.2 {
		for _, pct := range ranges {
			zones = append(zones, buildZone(currentPrice, lsRatio, pct, maxRange, false))
		}
	}
	if lsRatio < 0.8 {
		for _, pct := range ranges {
			zones = append(zones, buildZone(currentPrice, lsRatio, pct, maxRange, true))
		}
	}
	return zones
}

func buildZone(price, lsRatio, pct, maxRange float64, shortSide bool) LiquidationZone {
	z := LiquidationZone{
		Leverage:   int(1 / pct),
		RangeLabel: zoneRangeLabels[pct],
	}
	if z.RangeLabel == "" {
		z.RangeLabel = fmt.Sprintf("%.0f%%", pct*100)
	}

	var baseIntensity float64
	if shortSide {
		z.Price = price * (1 + pct)
		z.DistancePct = pct * 100
		z.Type = "SHORT_LIQ_ZONE"
		baseIntensity = math.Min(1.0, (1-lsRatio)/2)
	} else {
		z.Price = price * (1 - pct)
		z.DistancePct = -pct * 100
		z.Type = "LONG_LIQ_ZONE"
		baseIntensity = math.Min(1.0, (lsRatio-1)/2)
	}
	proximityBonus := 1.0 - pct/maxRange
	z.Intensity = baseIntensity * (0.7 + 0.3*proximityBonus)

	distanceScore := 1.0 - math.Min(pct/0.10, 1.0)
	ratioScore := math.Min(math.Abs(lsRatio-1.0), 1.0)
	combined := distanceScore*0.6 + ratioScore*0.4
	switch {
	case combined > 0.7:
		z.RiskLevel = "HIGH"
	case combined > 0.4:
		z.RiskLevel = "MEDIUM"
	default:
		z.RiskLevel = "LOW"
	}
	return z
}

// DirectionForecast is the probable short-term direction implied by
// positioning.
type DirectionForecast struct {
	Direction    string   `json:"direction"` // BULLISH, BEARISH, NEUTRAL
	Probability  float64  `json:"probability"`
	BullishScore float64  `json:"bullish_score"`
	BearishScore float64  `json:"bearish_score"`
	Reasons      []string `json:"reasons"`
}

// PredictDirection scores the positioning metrics into a direction
// forecast. A crowded side scores against itself: too many longs is
// bearish fuel. Factor weights: L/S ratio 2.5, funding 2.0, taker
// buy/sell 1.5, plus a 1.0 factor that is the ratio trend for
// derivatives data or an RSI extreme for estimated data. Probability
// is 50% plus up to 30 points of scoring dominance.
func PredictDirection(m Metrics) DirectionForecast {
	var bull, bear float64
	var reasons []string

	switch {
	case m.LSRatio > 1.5:
		bear += 2.5
		reasons = append(reasons, fmt.Sprintf("longs crowded at %.2f:1", m.LSRatio))
	case m.LSRatio < 0.67:
		bull += 2.5
		reasons = append(reasons, fmt.Sprintf("shorts crowded at %.2f:1", 1/m.LSRatio))
	case m.LSRatio > 1.2:
		bear += 1.5
		reasons = append(reasons, fmt.Sprintf("long majority at %.2f:1", m.LSRatio))
	case m.LSRatio < 0.83:
		bull += 1.5
		reasons = append(reasons, fmt.Sprintf("short majority at %.2f:1", 1/m.LSRatio))
	}

	// Real funding prints are two orders of magnitude smaller than
	// the momentum-derived estimate, so the bands differ by source.
	strongFunding, weakFunding := 0.01, 0.005
	if m.Source == SourceDerivatives {
		strongFunding, weakFunding = 0.0001, 0.00005
	}
	switch {
	case m.FundingRate > strongFunding:
		bear += 2.0
		reasons = append(reasons, fmt.Sprintf("positive funding %.4f%%, longs pay", m.FundingRate*100))
	case m.FundingRate < -strongFunding:
		bull += 2.0
		reasons = append(reasons, fmt.Sprintf("negative funding %.4f%%, shorts pay", m.FundingRate*100))
	case m.FundingRate > weakFunding:
		bear += 1.0
		reasons = append(reasons, "slightly positive funding")
	case m.FundingRate < -weakFunding:
		bull += 1.0
		reasons = append(reasons, "slightly negative funding")
	}

	switch {
	case m.BuySellRatio > 1.3:
		bull += 1.5
		reasons = append(reasons, fmt.Sprintf("aggressive buying at %.2f:1", m.BuySellRatio))
	case m.BuySellRatio < 0.77:
		bear += 1.5
		reasons = append(reasons, fmt.Sprintf("aggressive selling at %.2f:1", 1/m.BuySellRatio))
	}

	if m.Source == SourceDerivatives {
		if m.RatioTrend > 0.1 {
			bear += 1.0
			reasons = append(reasons, "L/S ratio rising")
		} else if m.RatioTrend < -0.1 {
			bull += 1.0
			reasons = append(reasons, "L/S ratio falling")
		}
	} else {
		if m.RSI > 70 {
			bear += 1.0
			reasons = append(reasons, fmt.Sprintf("RSI overbought at %.1f", m.RSI))
		} else if m.RSI < 30 {
			bull += 1.0
			reasons = append(reasons, fmt.Sprintf("RSI oversold at %.1f", m.RSI))
		}
	}

	out := DirectionForecast{
		Direction:    "NEUTRAL",
		Probability:  50.0,
		BullishScore: bull,
		BearishScore: bear,
		Reasons:      reasons,
	}
	total := bull + bear
	if total == 0 {
		return out
	}
	if bull > bear {
		out.Direction = "BULLISH"
		out.Probability = 50 + bull/total*30
	} else {
		out.Direction = "BEARISH"
		out.Probability = 50 + bear/total*30
	}
	return out
}
