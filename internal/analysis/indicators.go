package analysis

import (
	"math"

	"crypto-gap-scanner/internal/binance"
)

// RSI status buckets used by the decision engine.
type RSIStatus string

const (
	RSIOversold    RSIStatus = "OVERSOLD"     // rsi < 30
	RSIOverbought  RSIStatus = "OVERBOUGHT"   // rsi > 70
	RSIBullishZone RSIStatus = "BULLISH_ZONE" // 30 <= rsi <= 40
	RSIBearishZone RSIStatus = "BEARISH_ZONE" // 60 <= rsi <= 70
	RSINeutral     RSIStatus = "NEUTRAL"
)

// MACD cross classification relative to the previous bar.
type MACDCross string

const (
	MACDBullishCross MACDCross = "BULLISH_CROSS"
	MACDBearishCross MACDCross = "BEARISH_CROSS"
	MACDBullish      MACDCross = "BULLISH"
	MACDBearish      MACDCross = "BEARISH"
	MACDNeutral      MACDCross = "NEUTRAL"
)

// EMA position of price relative to the long moving average.
type EMAStatus string

const (
	EMAAboveStrong EMAStatus = "ABOVE_STRONG" // more than 2% above
	EMAAbove       EMAStatus = "ABOVE"
	EMABelowStrong EMAStatus = "BELOW_STRONG" // more than 2% below
	EMABelow       EMAStatus = "BELOW"
	EMAUnknown     EMAStatus = "UNKNOWN"
)

// RSI computes the relative strength index over the closing prices
// using a simple rolling mean of gains and losses (not Wilder
// smoothing). It needs at least period+1 candles; otherwise, or when
// any close in the window is not finite, the second return is false.
// A window with zero average loss saturates at 100.
func RSI(klines []binance.Kline, period int) (float64, bool) {
	if period <= 0 || len(klines) < period+1 {
		return 0, false
	}
	window := klines[len(klines)-period-1:]
	var gains, losses float64
	for i := 1; i < len(window); i++ {
		prev, curr := window[i-1].Close, window[i].Close
		if !Finite(prev) || !Finite(curr) {
			return 0, false
		}
		delta := curr - prev
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		if avgGain == 0 {
			return 0, false
		}
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}

// ClassifyRSI maps an RSI value into its status bucket.
func ClassifyRSI(rsi float64) RSIStatus {
	switch {
	case rsi < 30:
		return RSIOversold
	case rsi > 70:
		return RSIOverbought
	case rsi >= 30 && rsi <= 40:
		return RSIBullishZone
	case rsi >= 60 && rsi <= 70:
		return RSIBearishZone
	default:
		return RSINeutral
	}
}

// EMA computes the exponential moving average of the closes, seeded
// with the first close and iterated over the whole series. Requires at
// least period candles.
func EMA(klines []binance.Kline, period int) (float64, bool) {
	if period <= 0 || len(klines) < period {
		return 0, false
	}
	series := emaSeries(Closes(klines), period)
	if series == nil {
		return 0, false
	}
	return series[len(series)-1], true
}

// emaSeries returns the full EMA series over values, or nil when any
// element is not finite.
func emaSeries(values []float64, period int) []float64 {
	if len(values) == 0 {
		return nil
	}
	alpha := 2.0 / (float64(period) + 1.0)
	out := make([]float64, len(values))
	if !Finite(values[0]) {
		return nil
	}
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		if !Finite(values[i]) {
			return nil
		}
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// MACDResult carries the current MACD line, signal line, histogram and
// the cross classification derived from the previous bar.
type MACDResult struct {
	Line      float64   `json:"line"`
	Signal    float64   `json:"signal"`
	Histogram float64   `json:"histogram"`
	Cross     MACDCross `json:"cross"`
	Valid     bool      `json:"valid"`
}

// MACD computes the moving average convergence divergence over the
// closes. It needs at least slow+signalPeriod candles; with fewer the
// result is invalid with a NEUTRAL cross.
//
// The cross is classified from the sign of (line - signal) on the
// previous and current bar: a sign flip is a fresh cross, an unchanged
// sign is a continuing trend.
func MACD(klines []binance.Kline, fast, slow, signalPeriod int) MACDResult {
	neutral := MACDResult{Cross: MACDNeutral}
	if fast <= 0 || slow <= fast || signalPeriod <= 0 {
		return neutral
	}
	if len(klines) < slow+signalPeriod {
		return neutral
	}
	closes := Closes(klines)
	fastEMA := emaSeries(closes, fast)
	slowEMA := emaSeries(closes, slow)
	if fastEMA == nil || slowEMA == nil {
		return neutral
	}
	line := make([]float64, len(closes))
	for i := range closes {
		line[i] = fastEMA[i] - slowEMA[i]
	}
	signal := emaSeries(line, signalPeriod)
	n := len(closes)
	curr := line[n-1] - signal[n-1]
	prev := line[n-2] - signal[n-2]

	var cross MACDCross
	switch {
	case prev <= 0 && curr > 0:
		cross = MACDBullishCross
	case prev >= 0 && curr < 0:
		cross = MACDBearishCross
	case curr > 0:
		cross = MACDBullish
	case curr < 0:
		cross = MACDBearish
	default:
		cross = MACDNeutral
	}
	return MACDResult{
		Line:      line[n-1],
		Signal:    signal[n-1],
		Histogram: curr,
		Cross:     cross,
		Valid:     true,
	}
}

// ATR computes the average true range as a simple rolling mean of the
// true range over the last period bars. Needs period+1 candles.
func ATR(klines []binance.Kline, period int) (float64, bool) {
	if period <= 0 || len(klines) < period+1 {
		return 0, false
	}
	window := klines[len(klines)-period-1:]
	var sum float64
	for i := 1; i < len(window); i++ {
		prevClose := window[i-1].Close
		high, low := window[i].High, window[i].Low
		if !Finite(prevClose) || !Finite(high) || !Finite(low) {
			return 0, false
		}
		tr := high - low
		if hc := math.Abs(high - prevClose); hc > tr {
			tr = hc
		}
		if lc := math.Abs(low - prevClose); lc > tr {
			tr = lc
		}
		sum += tr
	}
	return sum / float64(period), true
}

// HighVolume reports whether the most recent candle traded more than
// multiplier times the average volume of the preceding period-1
// candles. False when there is not enough history.
func HighVolume(klines []binance.Kline, period int, multiplier float64) bool {
	if period < 2 || len(klines) < period {
		return false
	}
	last := klines[len(klines)-1].Volume
	if !Finite(last) {
		return false
	}
	prior := Volumes(klines[len(klines)-period : len(klines)-1])
	avg := mean(prior)
	if !Finite(avg) || avg <= 0 {
		return false
	}
	return last > multiplier*avg
}

// Momentum returns the percent change of the close over the last bars
// candles, e.g. bars=24 on an hourly series gives 24h momentum.
func Momentum(klines []binance.Kline, bars int) (float64, bool) {
	if bars <= 0 || len(klines) < bars+1 {
		return 0, false
	}
	base := klines[len(klines)-1-bars].Close
	last := klines[len(klines)-1].Close
	if !Finite(base) || base == 0 || !Finite(last) {
		return 0, false
	}
	return (last - base) / base * 100, true
}

// Volatility returns the standard deviation of the close-to-close
// percent returns over the last window candles, in percent.
func Volatility(klines []binance.Kline, window int) (float64, bool) {
	if window < 2 || len(klines) < window+1 {
		return 0, false
	}
	closes := Closes(klines[len(klines)-window-1:])
	returns := PctChange(closes)
	sd := stdDev(returns)
	if !Finite(sd) {
		return 0, false
	}
	return sd * 100, true
}

// IndicatorSnapshot bundles the indicator readings the decision engine
// consumes for one instrument. Each reading carries its own validity
// flag; an invalid reading contributes nothing to a score.
type IndicatorSnapshot struct {
	RSI            float64    `json:"rsi"`
	RSIValid       bool       `json:"rsi_valid"`
	RSIStatus      RSIStatus  `json:"rsi_status"`
	MACD           MACDResult `json:"macd"`
	EMA200         float64    `json:"ema200"`
	EMA200Valid    bool       `json:"ema200_valid"`
	EMAStatus      EMAStatus  `json:"ema_status"`
	EMADistancePct float64    `json:"ema_distance_pct"`
}

// BuildSnapshot computes the standard indicator set: RSI(14) and
// MACD(12,26,9) on the hourly series, EMA(200) on the daily series,
// with price position relative to the EMA classified against a 2%
// strong-distance band.
func BuildSnapshot(hourly, daily []binance.Kline, lastPrice float64) IndicatorSnapshot {
	snap := IndicatorSnapshot{
		RSIStatus: RSINeutral,
		EMAStatus: EMAUnknown,
	}
	if rsi, ok := RSI(hourly, 14); ok {
		snap.RSI = rsi
		snap.RSIValid = true
		snap.RSIStatus = ClassifyRSI(rsi)
	}
	snap.MACD = MACD(hourly, 12, 26, 9)

	ema, ok := EMA(daily, 200)
	if !ok || ema == 0 || !Finite(lastPrice) {
		return snap
	}
	snap.EMA200 = ema
	snap.EMA200Valid = true
	snap.EMADistancePct = (lastPrice - ema) / ema * 100
	switch {
	case snap.EMADistancePct > 2:
		snap.EMAStatus = EMAAboveStrong
	case snap.EMADistancePct >= 0:
		snap.EMAStatus = EMAAbove
	case snap.EMADistancePct < -2:
		snap.EMAStatus = EMABelowStrong
	default:
		snap.EMAStatus = EMABelow
	}
	return snap
}
