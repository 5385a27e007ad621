// Package strategy turns the analysis layer's readings into scored,
// tradeable signals: it accumulates confidence from gap, pivot
// alignment, indicator, volume and liquidation-confluence evidence,
// scales it by market structure and derives validated entry, stop and
// take-profit levels.
package strategy

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"crypto-gap-scanner/internal/analysis"
	"crypto-gap-scanner/internal/positioning"
)

// Decision is the final trade call for one instrument.
type Decision string

const (
	NoOperar          Decision = "NO_OPERAR"
	ShortFuerte       Decision = "SHORT_FUERTE"
	ShortModerado     Decision = "SHORT_MODERADO"
	ShortPendiente    Decision = "SHORT_PENDIENTE"
	LongFuerte        Decision = "LONG_FUERTE"
	LongModerado      Decision = "LONG_MODERADO"
	LongPendiente     Decision = "LONG_PENDIENTE"
	ShortGapHistorico Decision = "SHORT_GAP_HISTORICO"
	LongGapHistorico  Decision = "LONG_GAP_HISTORICO"
	ShortResistencia  Decision = "SHORT_RESISTENCIA"
	LongSoporte       Decision = "LONG_SOPORTE"
)

// IsShort reports whether the decision opens a short position.
func (d Decision) IsShort() bool { return strings.HasPrefix(string(d), "SHORT") }

// IsLong reports whether the decision opens a long position.
func (d Decision) IsLong() bool { return strings.HasPrefix(string(d), "LONG") }

// Actionable reports whether the decision carries trade levels.
func (d Decision) Actionable() bool { return d.IsShort() || d.IsLong() }

// EntryType describes how the entry order should be placed.
type EntryType string

const (
	EntryMarket    EntryType = "MARKET"
	EntryLimitAtPP EntryType = "LIMIT_AT_PP"
	EntryNone      EntryType = "NONE"
)

// OptFloat is a price level that may be absent. It marshals as null
// when unset so JSON consumers never see NaN.
type OptFloat struct {
	Value float64
	Valid bool
}

// Opt wraps v, marking it absent when not finite.
func Opt(v float64) OptFloat {
	return OptFloat{Value: v, Valid: analysis.Finite(v)}
}

func (f OptFloat) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

func (f *OptFloat) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = OptFloat{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Opt(v)
	return nil
}

// Float returns the value, or NaN when absent.
func (f OptFloat) Float() float64 {
	if !f.Valid {
		return math.NaN()
	}
	return f.Value
}

// ScoreBreakdown itemizes how the confidence score was assembled.
type ScoreBreakdown struct {
	GapPoints           float64 `json:"gap_points"`
	AlignmentPoints     float64 `json:"alignment_points"`
	IndicatorPoints     float64 `json:"indicator_points"`
	VolumePoints        float64 `json:"volume_points"`
	ConfluencePoints    float64 `json:"confluence_points"`
	RawConfidence       float64 `json:"raw_confidence"`
	StructureMultiplier float64 `json:"structure_multiplier"`
	FinalConfidence     float64 `json:"final_confidence"`
	MaxScore            float64 `json:"max_score"`
}

// TradeSignal is the full analysis outcome for one instrument.
type TradeSignal struct {
	Instrument string    `json:"instrument"`
	Symbol     string    `json:"symbol"`
	Timestamp  time.Time `json:"timestamp"`

	Decision       Decision  `json:"decision"`
	DecisionReason string    `json:"decision_reason"`
	ConfidencePct  float64   `json:"confidence_pct"`
	EntryType      EntryType `json:"entry_type"`

	Entry      OptFloat `json:"entry"`
	StopLoss   OptFloat `json:"stop_loss"`
	TakeProfit [3]OptFloat `json:"take_profit"`

	LastPrice  float64  `json:"last_price"`
	ATR        float64  `json:"atr"`
	HighVolume bool     `json:"high_volume"`
	Pivots     analysis.PivotLevels `json:"pivots"`

	GapSignal  analysis.GapSignal `json:"gap_signal"`
	GapLevel   OptFloat           `json:"gap_level"`
	RecentGaps []analysis.Gap     `json:"recent_gaps,omitempty"`
	GapsAbove  []analysis.Gap     `json:"gaps_above,omitempty"`
	GapsBelow  []analysis.Gap     `json:"gaps_below,omitempty"`

	// Coarse daily-close gap read, kept alongside the strict signal
	// for context in reports.
	SimpleGapSignal analysis.GapSignal `json:"simple_gap_signal"`

	HistResistance OptFloat `json:"hist_resistance"`
	HistSupport    OptFloat `json:"hist_support"`

	Indicators analysis.IndicatorSnapshot `json:"indicators"`
	Structure  analysis.StructureResult   `json:"structure"`

	Positioning *positioning.Metrics           `json:"positioning,omitempty"`
	Forecast    *positioning.DirectionForecast `json:"forecast,omitempty"`
	Confluence  *positioning.ConfluenceResult  `json:"confluence,omitempty"`
	LiqZones    []positioning.LiquidationZone  `json:"liquidation_zones,omitempty"`
	LiqClusters []positioning.Cluster          `json:"liquidation_clusters,omitempty"`

	Breakdown ScoreBreakdown `json:"breakdown"`
}
