package strategy

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"crypto-gap-scanner/internal/analysis"
	"crypto-gap-scanner/internal/binance"
	"crypto-gap-scanner/internal/positioning"
)

// MarketDataProvider fetches candle history for a symbol.
type MarketDataProvider interface {
	GetKlines(symbol, interval string, limit int) ([]binance.Kline, error)
}

// DerivativesProvider fetches futures positioning data. Optional: the
// analyzer degrades to price-action estimation without one.
type DerivativesProvider interface {
	GetFundingRate(symbol string) (*binance.FundingRate, error)
	GetLongShortRatioHistory(symbol, period string, limit int) ([]binance.LongShortRatio, error)
	GetTakerVolumeRatio(symbol, period string) (*binance.TakerVolumeRatio, error)
	GetOpenInterest(symbol string) (*binance.OpenInterest, error)
}

// LiquidationSource supplies recent liquidation events. Optional.
type LiquidationSource interface {
	Recent(symbol string) []binance.LiquidationEvent
}

// AnalyzerConfig bundles the analysis parameters.
type AnalyzerConfig struct {
	Scoring ScoringConfig

	IntradayInterval string // default 5m
	IntradayLimit    int    // default 576 (two days of 5m candles)
	HourlyLimit      int    // default 720
	DailyLimit       int    // default 365

	GapThresholdPct    float64 // recent gap size floor, default 0.3
	SimpleGapThreshold float64 // coarse close-vs-price threshold, default 0.5
	GapLookbackDays    int     // recent gap window, default 7
	InventoryLookback  int     // full gap inventory window, default 120
	LevelLookbackDays  int     // historical extreme window, default 100

	ConfluenceTolerance float64 // liquidation-vs-gap distance, default 0.4
	ClusterTolerance    float64 // liquidation cluster bucket width, default 0.5
}

// DefaultAnalyzerConfig returns the standard parameters.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		Scoring:             DefaultScoringConfig(),
		IntradayInterval:    "5m",
		IntradayLimit:       576,
		HourlyLimit:         720,
		DailyLimit:          365,
		GapThresholdPct:     0.3,
		SimpleGapThreshold:  0.5,
		GapLookbackDays:     7,
		InventoryLookback:   120,
		LevelLookbackDays:   100,
		ConfluenceTolerance: 0.4,
		ClusterTolerance:    0.5,
	}
}

// Analyzer produces one TradeSignal per instrument.
type Analyzer struct {
	market       MarketDataProvider
	derivatives  DerivativesProvider
	liquidations LiquidationSource
	cfg          AnalyzerConfig
}

// NewAnalyzer wires an analyzer. derivatives and liquidations may be
// nil; positioning then falls back to price-action estimation.
func NewAnalyzer(market MarketDataProvider, derivatives DerivativesProvider, liquidations LiquidationSource, cfg AnalyzerConfig) *Analyzer {
	if cfg.IntradayInterval == "" {
		cfg = DefaultAnalyzerConfig()
	}
	return &Analyzer{
		market:       market,
		derivatives:  derivatives,
		liquidations: liquidations,
		cfg:          cfg,
	}
}

// Analyze runs the full pipeline for one instrument. A failed or
// degenerate market data fetch aborts the instrument with an error;
// failures on the optional positioning inputs only cost their boost.
func (a *Analyzer) Analyze(name, symbol string) (*TradeSignal, error) {
	intraday, err := a.market.GetKlines(symbol, a.cfg.IntradayInterval, a.cfg.IntradayLimit)
	if err != nil {
		return nil, fmt.Errorf("error fetching intraday klines for %s: %w", symbol, err)
	}
	if len(intraday) < 3 {
		return nil, fmt.Errorf("insufficient intraday data for %s: %d candles", symbol, len(intraday))
	}
	hourly, err := a.market.GetKlines(symbol, "1h", a.cfg.HourlyLimit)
	if err != nil {
		return nil, fmt.Errorf("error fetching hourly klines for %s: %w", symbol, err)
	}
	daily, err := a.market.GetKlines(symbol, "1d", a.cfg.DailyLimit)
	if err != nil {
		return nil, fmt.Errorf("error fetching daily klines for %s: %w", symbol, err)
	}

	lastPrice, ok := analysis.LastClose(intraday)
	if !ok || lastPrice <= 0 {
		return nil, fmt.Errorf("invalid last price for %s", symbol)
	}
	pivots, err := analysis.PivotPoints(daily)
	if err != nil {
		return nil, fmt.Errorf("error computing pivots for %s: %w", symbol, err)
	}
	atr, ok := analysis.ATR(intraday, 14)
	if !ok || atr <= 0 {
		return nil, fmt.Errorf("insufficient intraday data for ATR on %s", symbol)
	}

	in := Inputs{
		Instrument: name,
		Symbol:     symbol,
		LastPrice:  lastPrice,
		ATR:        atr,
		HighVolume: analysis.HighVolume(intraday, 20, 1.5),
		Pivots:     pivots,
		Snapshot:   analysis.BuildSnapshot(hourly, daily, lastPrice),
		Structure:  analysis.ClassifyMarketPhase(daily, lastPrice),
	}
	in.GapSignal, in.GapLevel, in.RecentGaps = analysis.DetectRecentGaps(daily, lastPrice, a.cfg.GapThresholdPct, a.cfg.GapLookbackDays)
	in.SimpleGapSignal, _ = analysis.DetectActiveGap(daily, lastPrice, a.cfg.SimpleGapThreshold)
	in.GapsAbove, in.GapsBelow = analysis.FindAllGaps(daily, lastPrice, a.cfg.InventoryLookback)

	in.HistResistance, in.HistSupport = math.NaN(), math.NaN()
	if r, ok := analysis.HistoricalResistance(daily, lastPrice, a.cfg.LevelLookbackDays); ok {
		in.HistResistance = r
		in.StrongResistance = analysis.IsStrongLevel(lastPrice, r)
	}
	if s, ok := analysis.HistoricalSupport(daily, lastPrice, a.cfg.LevelLookbackDays); ok {
		in.HistSupport = s
		in.StrongSupport = analysis.IsStrongLevel(lastPrice, s)
	}

	metrics, forecast, zones := a.positioningView(symbol, hourly, lastPrice)
	in.Confluence = a.confluence(symbol, in.GapSignal, in.GapLevel)

	sig := a.cfg.Scoring.Evaluate(in)
	sig.Timestamp = time.Now().UTC()
	sig.Positioning = metrics
	sig.Forecast = forecast
	sig.LiqZones = zones
	sig.LiqClusters = a.clusters(symbol, lastPrice)

	log.Debug().
		Str("symbol", symbol).
		Str("decision", string(sig.Decision)).
		Float64("confidence_pct", sig.ConfidencePct).
		Str("gap_signal", string(sig.GapSignal)).
		Msg("instrument analyzed")
	return sig, nil
}

// positioningView resolves positioning metrics, preferring the
// derivatives API and falling back to price-action estimation. A
// derivatives failure is logged, not fatal.
func (a *Analyzer) positioningView(symbol string, hourly []binance.Kline, lastPrice float64) (*positioning.Metrics, *positioning.DirectionForecast, []positioning.LiquidationZone) {
	var m positioning.Metrics
	haveMetrics := false

	if a.derivatives != nil {
		funding, err := a.derivatives.GetFundingRate(symbol)
		if err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("funding rate unavailable, estimating positioning")
		} else {
			ls, lsErr := a.derivatives.GetLongShortRatioHistory(symbol, "5m", 2)
			taker, takerErr := a.derivatives.GetTakerVolumeRatio(symbol, "5m")
			oi, oiErr := a.derivatives.GetOpenInterest(symbol)
			if lsErr != nil {
				log.Warn().Err(lsErr).Str("symbol", symbol).Msg("long/short ratio unavailable")
				ls = nil
			}
			if takerErr != nil {
				taker = nil
			}
			if oiErr != nil {
				oi = nil
			}
			m = positioning.FromDerivatives(funding, ls, taker, oi)
			haveMetrics = true
		}
	}
	if !haveMetrics {
		est, err := positioning.EstimateFromPriceAction(hourly)
		if err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("positioning estimation failed")
			return nil, nil, nil
		}
		m = est
	}

	forecast := positioning.PredictDirection(m)
	zones := positioning.EstimateLiquidationZones(lastPrice, m.LSRatio, nil)
	return &m, &forecast, zones
}

// confluence matches recent liquidation flow against the gap target.
// Nil when no liquidation source is wired or there is no gap to check.
func (a *Analyzer) confluence(symbol string, signal analysis.GapSignal, gapLevel float64) *positioning.ConfluenceResult {
	if a.liquidations == nil || signal == analysis.GapNone {
		return nil
	}
	events := a.liquidations.Recent(symbol)
	res := positioning.GapConfluence(gapLevel, signal, events, a.cfg.ConfluenceTolerance)
	return &res
}

// clusters summarizes where recent liquidation volume concentrated,
// nearest first.
func (a *Analyzer) clusters(symbol string, lastPrice float64) []positioning.Cluster {
	if a.liquidations == nil {
		return nil
	}
	found := positioning.FindClusters(a.liquidations.Recent(symbol), a.cfg.ClusterTolerance)
	return positioning.NearestClusters(found, lastPrice, 5)
}
