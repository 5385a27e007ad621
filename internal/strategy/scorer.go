package strategy

import (
	"fmt"
	"math"

	"crypto-gap-scanner/internal/analysis"
	"crypto-gap-scanner/internal/positioning"
)

// ScoringConfig holds the weights and thresholds of the decision
// engine. MaxScore is always derived from the weights in play so the
// reported percentage stays honest when weights change.
type ScoringConfig struct {
	GapBasePoints      float64 `json:"gap_base_points"`       // confirmed recent gap
	HistoricGapPoints  float64 `json:"historic_gap_points"`   // price at an old unfilled gap
	HistoricLevelPoints float64 `json:"historic_level_points"` // price at a historical extreme

	AlignmentBonus   float64 `json:"alignment_bonus"`   // price on the right side of PP
	MisalignPenalty  float64 `json:"misalign_penalty"`  // price on the wrong side of PP

	RSIExtremeWeight float64 `json:"rsi_extreme_weight"`
	RSIZoneWeight    float64 `json:"rsi_zone_weight"`
	MACDCrossWeight  float64 `json:"macd_cross_weight"`
	MACDTrendWeight  float64 `json:"macd_trend_weight"`
	EMAStrongWeight  float64 `json:"ema_strong_weight"`
	EMAWeakWeight    float64 `json:"ema_weak_weight"`
	ContraryPenalty  float64 `json:"contrary_penalty"` // deducted for an opposing RSI or MACD read

	VolumeBonus        float64 `json:"volume_bonus"`
	MaxConfluenceBoost float64 `json:"max_confluence_boost"`

	MinConfidenceAligned    float64 `json:"min_confidence_aligned"`
	MinConfidenceMisaligned float64 `json:"min_confidence_misaligned"`
	MinConfidenceHistoricGap   float64 `json:"min_confidence_historic_gap"`
	MinConfidenceHistoricLevel float64 `json:"min_confidence_historic_level"`
	StrongThreshold            float64 `json:"strong_threshold"`

	// HistoricGapProximityPct is how close price must be to an old
	// gap, as a fraction, before it is traded as a level.
	HistoricGapProximityPct float64 `json:"historic_gap_proximity_pct"`

	// RequireIndicatorSupport blocks gap trades whose indicator
	// subtotal went negative.
	RequireIndicatorSupport bool `json:"require_indicator_support"`
}

// DefaultScoringConfig returns the canonical weights.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		GapBasePoints:       2.0,
		HistoricGapPoints:   1.5,
		HistoricLevelPoints: 1.5,

		AlignmentBonus:  1.0,
		MisalignPenalty: 0.5,

		RSIExtremeWeight: 1.0,
		RSIZoneWeight:    0.5,
		MACDCrossWeight:  1.0,
		MACDTrendWeight:  0.5,
		EMAStrongWeight:  1.0,
		EMAWeakWeight:    0.5,
		ContraryPenalty:  0.5,

		VolumeBonus:        1.0,
		MaxConfluenceBoost: 2.0,

		MinConfidenceAligned:       2.0,
		MinConfidenceMisaligned:    3.0,
		MinConfidenceHistoricGap:   3.0,
		MinConfidenceHistoricLevel: 3.5,
		StrongThreshold:            4.5,

		HistoricGapProximityPct: 0.02,
		RequireIndicatorSupport: true,
	}
}

// Inputs is everything the scorer consumes for one instrument. It is
// assembled by the Analyzer but kept I/O-free so scoring stays
// deterministic and testable.
type Inputs struct {
	Instrument string
	Symbol     string

	LastPrice  float64
	ATR        float64
	HighVolume bool
	Pivots     analysis.PivotLevels

	GapSignal  analysis.GapSignal
	GapLevel   float64
	RecentGaps []analysis.Gap
	GapsAbove  []analysis.Gap
	GapsBelow  []analysis.Gap

	SimpleGapSignal analysis.GapSignal

	HistResistance   float64 // NaN when absent
	HistSupport      float64 // NaN when absent
	StrongResistance bool
	StrongSupport    bool

	Snapshot  analysis.IndicatorSnapshot
	Structure analysis.StructureResult

	Confluence *positioning.ConfluenceResult
}

// Evaluate runs the decision engine over one instrument's inputs.
//
// A confirmed recent gap is the primary setup; without one, price
// sitting at an old unfilled gap or a historical extreme can still
// produce a level trade. Confidence accumulates from the setup base,
// pivot alignment, indicators, volume and liquidation confluence, is
// gated by the per-setup minimum, then scaled by the market structure
// multiplier. Actionable signals always carry a full, strictly
// ordered SL/TP1/TP2/TP3 ladder.
func (cfg ScoringConfig) Evaluate(in Inputs) *TradeSignal {
	sig := &TradeSignal{
		Instrument:      in.Instrument,
		Symbol:          in.Symbol,
		Decision:        NoOperar,
		DecisionReason:  "no clear setup",
		EntryType:       EntryNone,
		LastPrice:       in.LastPrice,
		ATR:             in.ATR,
		HighVolume:      in.HighVolume,
		Pivots:          in.Pivots,
		GapSignal:       in.GapSignal,
		GapLevel:        Opt(in.GapLevel),
		RecentGaps:      in.RecentGaps,
		GapsAbove:       in.GapsAbove,
		GapsBelow:       in.GapsBelow,
		SimpleGapSignal: in.SimpleGapSignal,
		HistResistance:  Opt(in.HistResistance),
		HistSupport:     Opt(in.HistSupport),
		Indicators:      in.Snapshot,
		Structure:       in.Structure,
	}

	atr := in.ATR
	if !analysis.Finite(atr) || atr <= 0 {
		atr = in.LastPrice * 0.001
	}
	tolerance := atr * 0.5

	var entry, sl, tp1, tp2, tp3 float64
	entry, sl, tp1, tp2, tp3 = math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN()

	bd := &sig.Breakdown

	switch in.GapSignal {
	case analysis.GapShortToFill, analysis.GapLongToFill:
		short := in.GapSignal == analysis.GapShortToFill
		bd.GapPoints = cfg.GapBasePoints

		if short {
			sl = in.Pivots.R1
			if sl <= in.LastPrice {
				if analysis.Finite(in.HistResistance) && in.HistResistance > in.LastPrice {
					sl = in.HistResistance
				} else {
					sl = in.LastPrice + atr*1.5
				}
			}
			tp1 = in.GapLevel
			tp2 = in.Pivots.S1
			tp3 = thirdTargetBelow(in.GapsBelow, in.HistSupport, tp2, atr)
		} else {
			sl = in.Pivots.S1
			if sl >= in.LastPrice {
				if analysis.Finite(in.HistSupport) && in.HistSupport < in.LastPrice {
					sl = in.HistSupport
				} else {
					sl = in.LastPrice - atr*1.5
				}
			}
			tp1 = in.GapLevel
			tp2 = in.Pivots.R1
			tp3 = thirdTargetAbove(in.GapsAbove, in.HistResistance, tp2, atr)
		}

		aligned := (short && in.LastPrice > in.Pivots.PP) || (!short && in.LastPrice < in.Pivots.PP)
		if aligned {
			bd.AlignmentPoints = cfg.AlignmentBonus
		} else {
			bd.AlignmentPoints = -cfg.MisalignPenalty
		}

		bd.IndicatorPoints = cfg.scoreIndicators(in.Snapshot, short, true)
		if in.HighVolume {
			bd.VolumePoints = cfg.VolumeBonus
		}
		if in.Confluence != nil {
			bd.ConfluencePoints = in.Confluence.Boost
			sig.Confluence = in.Confluence
		}

		confidence := bd.GapPoints + bd.AlignmentPoints + bd.IndicatorPoints + bd.VolumePoints + bd.ConfluencePoints
		bd.RawConfidence = confidence
		bd.MaxScore = cfg.gapMaxScore(in.Confluence != nil)

		minConfidence := cfg.MinConfidenceMisaligned
		if aligned {
			minConfidence = cfg.MinConfidenceAligned
		}

		indicatorsOK := !cfg.RequireIndicatorSupport || bd.IndicatorPoints >= 0
		if confidence >= minConfidence && indicatorsOK {
			atPivot := math.Abs(in.LastPrice-in.Pivots.PP) < tolerance ||
				(short && in.LastPrice >= in.Pivots.PP) || (!short && in.LastPrice <= in.Pivots.PP)
			if atPivot {
				entry = in.LastPrice
				sig.EntryType = EntryMarket
				sig.DecisionReason = "immediate activation"
				switch {
				case short && confidence >= cfg.StrongThreshold:
					sig.Decision = ShortFuerte
				case short:
					sig.Decision = ShortModerado
				case confidence >= cfg.StrongThreshold:
					sig.Decision = LongFuerte
				default:
					sig.Decision = LongModerado
				}
			} else {
				entry = in.Pivots.PP
				sig.EntryType = EntryLimitAtPP
				sig.DecisionReason = "wait for pullback to pivot"
				if short {
					sig.Decision = ShortPendiente
				} else {
					sig.Decision = LongPendiente
				}
			}
		} else if !indicatorsOK {
			sig.DecisionReason = fmt.Sprintf("gap detected but indicators oppose it (%.1f)", bd.IndicatorPoints)
		} else {
			sig.DecisionReason = fmt.Sprintf("gap detected but confidence %.1f below %.1f", confidence, minConfidence)
		}

	default:
		confidence, used := cfg.scoreLevelSetups(in, sig, atr, &entry, &sl, &tp1, &tp2, &tp3)
		bd.RawConfidence = confidence
		if !used {
			bd.MaxScore = cfg.gapMaxScore(in.Confluence != nil)
		}
	}

	// Structure scales the final confidence but never the decision
	// itself, which was taken on raw evidence.
	bd.StructureMultiplier = in.Structure.Multiplier
	bd.FinalConfidence = bd.RawConfidence * in.Structure.Multiplier
	if bd.MaxScore > 0 {
		sig.ConfidencePct = math.Min(100, math.Max(0, bd.FinalConfidence/bd.MaxScore*100))
	}

	if sig.Decision.Actionable() {
		sl, tp1, tp2, tp3 = repairLevels(sig.Decision.IsShort(), entry, sl, tp1, tp2, tp3, atr)
		sig.Entry = Opt(entry)
		sig.StopLoss = Opt(sl)
		sig.TakeProfit = [3]OptFloat{Opt(tp1), Opt(tp2), Opt(tp3)}
	}
	return sig
}

// scoreLevelSetups handles the no-recent-gap setups: price at an old
// unfilled gap, then price at a strong historical extreme. Returns the
// accumulated confidence and whether any setup matched.
func (cfg ScoringConfig) scoreLevelSetups(in Inputs, sig *TradeSignal, atr float64, entry, sl, tp1, tp2, tp3 *float64) (float64, bool) {
	bd := &sig.Breakdown
	price := in.LastPrice

	nearGapAbove := len(in.GapsAbove) > 0 &&
		math.Abs(in.GapsAbove[0].Level-price)/price < cfg.HistoricGapProximityPct
	nearGapBelow := len(in.GapsBelow) > 0 &&
		math.Abs(in.GapsBelow[0].Level-price)/price < cfg.HistoricGapProximityPct

	switch {
	case nearGapAbove:
		bd.GapPoints = cfg.HistoricGapPoints
		*sl = in.GapsAbove[0].Top + atr*0.5
		if in.Pivots.PP < price {
			*tp1 = in.Pivots.PP
		} else {
			*tp1 = price - atr*2.0
		}
		*tp2 = in.Pivots.S1
		if len(in.GapsBelow) > 0 {
			*tp3 = in.GapsBelow[0].Level
		} else {
			*tp3 = in.HistSupport
		}
		bd.IndicatorPoints = levelIndicatorScore(in.Snapshot, true)
		confidence := bd.GapPoints + bd.IndicatorPoints
		bd.RawConfidence = confidence
		bd.MaxScore = cfg.HistoricGapPoints + 2.0
		if confidence >= cfg.MinConfidenceHistoricGap {
			*entry = price
			sig.Decision = ShortGapHistorico
			sig.EntryType = EntryMarket
			sig.DecisionReason = "price rejecting an old unfilled gap above"
		} else {
			sig.DecisionReason = fmt.Sprintf("old gap overhead but confidence %.1f below %.1f", confidence, cfg.MinConfidenceHistoricGap)
		}
		return confidence, true

	case nearGapBelow:
		bd.GapPoints = cfg.HistoricGapPoints
		*sl = in.GapsBelow[0].Bottom - atr*0.5
		if in.Pivots.PP > price {
			*tp1 = in.Pivots.PP
		} else {
			*tp1 = price + atr*2.0
		}
		*tp2 = in.Pivots.R1
		if len(in.GapsAbove) > 0 {
			*tp3 = in.GapsAbove[0].Level
		} else {
			*tp3 = in.HistResistance
		}
		bd.IndicatorPoints = levelIndicatorScore(in.Snapshot, false)
		confidence := bd.GapPoints + bd.IndicatorPoints
		bd.RawConfidence = confidence
		bd.MaxScore = cfg.HistoricGapPoints + 2.0
		if confidence >= cfg.MinConfidenceHistoricGap {
			*entry = price
			sig.Decision = LongGapHistorico
			sig.EntryType = EntryMarket
			sig.DecisionReason = "price bouncing off an old unfilled gap below"
		} else {
			sig.DecisionReason = fmt.Sprintf("old gap underfoot but confidence %.1f below %.1f", confidence, cfg.MinConfidenceHistoricGap)
		}
		return confidence, true

	case in.StrongResistance && price >= in.HistResistance:
		bd.GapPoints = cfg.HistoricLevelPoints
		*sl = in.HistResistance + atr
		*tp1 = in.Pivots.PP
		*tp2 = in.Pivots.S1
		if analysis.Finite(in.HistSupport) {
			*tp3 = in.HistSupport
		} else {
			*tp3 = in.Pivots.S1 - atr*2.0
		}
		bd.IndicatorPoints = levelIndicatorScore(in.Snapshot, true)
		if in.HighVolume {
			bd.VolumePoints = cfg.VolumeBonus
		}
		confidence := bd.GapPoints + bd.IndicatorPoints + bd.VolumePoints
		bd.RawConfidence = confidence
		bd.MaxScore = cfg.HistoricLevelPoints + 2.0 + cfg.VolumeBonus
		if confidence >= cfg.MinConfidenceHistoricLevel {
			*entry = price
			sig.Decision = ShortResistencia
			sig.EntryType = EntryMarket
			sig.DecisionReason = "price stalled at a historical resistance"
		} else {
			sig.DecisionReason = fmt.Sprintf("at historical resistance but confidence %.1f below %.1f", confidence, cfg.MinConfidenceHistoricLevel)
		}
		return confidence, true

	case in.StrongSupport && price <= in.HistSupport:
		bd.GapPoints = cfg.HistoricLevelPoints
		*sl = in.HistSupport - atr
		*tp1 = in.Pivots.PP
		*tp2 = in.Pivots.R1
		if analysis.Finite(in.HistResistance) {
			*tp3 = in.HistResistance
		} else {
			*tp3 = in.Pivots.R1 + atr*2.0
		}
		bd.IndicatorPoints = levelIndicatorScore(in.Snapshot, false)
		if in.HighVolume {
			bd.VolumePoints = cfg.VolumeBonus
		}
		confidence := bd.GapPoints + bd.IndicatorPoints + bd.VolumePoints
		bd.RawConfidence = confidence
		bd.MaxScore = cfg.HistoricLevelPoints + 2.0 + cfg.VolumeBonus
		if confidence >= cfg.MinConfidenceHistoricLevel {
			*entry = price
			sig.Decision = LongSoporte
			sig.EntryType = EntryMarket
			sig.DecisionReason = "price holding a historical support"
		} else {
			sig.DecisionReason = fmt.Sprintf("at historical support but confidence %.1f below %.1f", confidence, cfg.MinConfidenceHistoricLevel)
		}
		return confidence, true
	}
	return 0, false
}

// scoreIndicators totals the RSI, MACD and EMA contributions in one
// direction. Unavailable readings contribute nothing; a contrary RSI
// or MACD read deducts the penalty when penalize is set.
func (cfg ScoringConfig) scoreIndicators(s analysis.IndicatorSnapshot, short, penalize bool) float64 {
	var score float64

	if s.RSIValid {
		switch {
		case short && s.RSIStatus == analysis.RSIOverbought:
			score += cfg.RSIExtremeWeight
		case short && s.RSIStatus == analysis.RSIBearishZone:
			score += cfg.RSIZoneWeight
		case !short && s.RSIStatus == analysis.RSIOversold:
			score += cfg.RSIExtremeWeight
		case !short && s.RSIStatus == analysis.RSIBullishZone:
			score += cfg.RSIZoneWeight
		case penalize:
			score -= cfg.ContraryPenalty
		}
	}

	if s.MACD.Valid {
		switch {
		case short && s.MACD.Cross == analysis.MACDBearishCross:
			score += cfg.MACDCrossWeight
		case short && s.MACD.Cross == analysis.MACDBearish:
			score += cfg.MACDTrendWeight
		case !short && s.MACD.Cross == analysis.MACDBullishCross:
			score += cfg.MACDCrossWeight
		case !short && s.MACD.Cross == analysis.MACDBullish:
			score += cfg.MACDTrendWeight
		case penalize && s.MACD.Cross != analysis.MACDNeutral:
			score -= cfg.ContraryPenalty
		}
	}

	if s.EMA200Valid {
		switch {
		case short && s.EMAStatus == analysis.EMABelowStrong:
			score += cfg.EMAStrongWeight
		case short && s.EMAStatus == analysis.EMABelow:
			score += cfg.EMAWeakWeight
		case !short && s.EMAStatus == analysis.EMAAboveStrong:
			score += cfg.EMAStrongWeight
		case !short && s.EMAStatus == analysis.EMAAbove:
			score += cfg.EMAWeakWeight
		}
	}
	return score
}

// levelIndicatorScore is the simpler indicator read used by the level
// setups: one point per agreeing indicator, no penalties.
func levelIndicatorScore(s analysis.IndicatorSnapshot, short bool) float64 {
	var score float64
	if s.RSIValid {
		if short && (s.RSIStatus == analysis.RSIOverbought || s.RSIStatus == analysis.RSIBearishZone) {
			score += 1.0
		}
		if !short && (s.RSIStatus == analysis.RSIOversold || s.RSIStatus == analysis.RSIBullishZone) {
			score += 1.0
		}
	}
	if s.MACD.Valid {
		if short && (s.MACD.Cross == analysis.MACDBearishCross || s.MACD.Cross == analysis.MACDBearish) {
			score += 1.0
		}
		if !short && (s.MACD.Cross == analysis.MACDBullishCross || s.MACD.Cross == analysis.MACDBullish) {
			score += 1.0
		}
	}
	return score
}

// gapMaxScore is the ceiling of a gap-fill pass: every positive
// contribution in play at its maximum weight.
func (cfg ScoringConfig) gapMaxScore(withConfluence bool) float64 {
	max := cfg.GapBasePoints + cfg.AlignmentBonus + cfg.RSIExtremeWeight +
		cfg.MACDCrossWeight + cfg.EMAStrongWeight + cfg.VolumeBonus
	if withConfluence {
		max += cfg.MaxConfluenceBoost
	}
	return max
}

// thirdTargetBelow picks TP3 for a short: the nearest strong or medium
// gap under TP2, else the historical support under TP2, else an ATR
// extension.
func thirdTargetBelow(gapsBelow []analysis.Gap, histSupport, tp2, atr float64) float64 {
	for _, g := range gapsBelow {
		if (g.Strength == analysis.GapStrong || g.Strength == analysis.GapMedium) && g.Level < tp2 {
			return g.Level
		}
	}
	if analysis.Finite(histSupport) && histSupport < tp2 {
		return histSupport
	}
	return tp2 - atr*2.0
}

func thirdTargetAbove(gapsAbove []analysis.Gap, histResistance, tp2, atr float64) float64 {
	for _, g := range gapsAbove {
		if (g.Strength == analysis.GapStrong || g.Strength == analysis.GapMedium) && g.Level > tp2 {
			return g.Level
		}
	}
	if analysis.Finite(histResistance) && histResistance > tp2 {
		return histResistance
	}
	return tp2 + atr*2.0
}

// repairLevels enforces the strict level ordering of an actionable
// signal: for a short SL > entry > TP1 > TP2 > TP3, mirrored for a
// long. Any level that is absent or on the wrong side is rebuilt from
// ATR multiples off its anchor.
func repairLevels(short bool, entry, sl, tp1, tp2, tp3, atr float64) (float64, float64, float64, float64) {
	if !analysis.Finite(entry) {
		return sl, tp1, tp2, tp3
	}
	dir := 1.0
	if short {
		dir = -1.0
	}
	// With dir applied, every target must sit further along the trade
	// direction than its predecessor.
	if !analysis.Finite(sl) || (sl-entry)*dir >= 0 {
		sl = entry - dir*atr*1.5
	}
	if !analysis.Finite(tp1) || (tp1-entry)*dir <= 0 {
		tp1 = entry + dir*atr
	}
	if !analysis.Finite(tp2) || (tp2-entry)*dir <= 0 {
		tp2 = entry + dir*atr*2.0
	}
	if (tp2-tp1)*dir <= 0 {
		tp2 = tp1 + dir*atr
	}
	if !analysis.Finite(tp3) || (tp3-tp2)*dir <= 0 {
		tp3 = tp2 + dir*atr
	}
	return sl, tp1, tp2, tp3
}
