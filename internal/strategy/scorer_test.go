package strategy

import (
	"math"
	"testing"

	"crypto-gap-scanner/internal/analysis"
	"crypto-gap-scanner/internal/positioning"
)

func trendingStructure() analysis.StructureResult {
	return analysis.StructureResult{Phase: analysis.PhaseTrending, Multiplier: 1.0}
}

func bearishSnapshot() analysis.IndicatorSnapshot {
	return analysis.IndicatorSnapshot{
		RSI: 75, RSIValid: true, RSIStatus: analysis.RSIOverbought,
		MACD:   analysis.MACDResult{Valid: true, Cross: analysis.MACDBearishCross},
		EMA200: 110, EMA200Valid: true, EMAStatus: analysis.EMABelowStrong,
	}
}

func bullishSnapshot() analysis.IndicatorSnapshot {
	return analysis.IndicatorSnapshot{
		RSI: 25, RSIValid: true, RSIStatus: analysis.RSIOversold,
		MACD:   analysis.MACDResult{Valid: true, Cross: analysis.MACDBullishCross},
		EMA200: 95, EMA200Valid: true, EMAStatus: analysis.EMAAboveStrong,
	}
}

// TestEvaluateShortFuerte: a confirmed gap with full indicator and
// volume support on the right side of the pivot maxes the score.
func TestEvaluateShortFuerte(t *testing.T) {
	in := Inputs{
		Symbol:     "BTCUSDT",
		LastPrice:  105,
		ATR:        1,
		HighVolume: true,
		Pivots:     analysis.PivotLevels{PP: 100, R1: 110, S1: 90},
		GapSignal:  analysis.GapShortToFill,
		GapLevel:   103,
		HistResistance: math.NaN(), HistSupport: math.NaN(),
		Snapshot:  bearishSnapshot(),
		Structure: trendingStructure(),
	}

	sig := DefaultScoringConfig().Evaluate(in)

	if sig.Decision != ShortFuerte {
		t.Fatalf("Expected SHORT_FUERTE, got %s (%s)", sig.Decision, sig.DecisionReason)
	}
	if sig.EntryType != EntryMarket {
		t.Errorf("Expected MARKET entry, got %s", sig.EntryType)
	}
	if sig.Breakdown.RawConfidence != 7.0 {
		t.Errorf("Expected raw confidence 7.0, got %f", sig.Breakdown.RawConfidence)
	}
	if sig.Breakdown.MaxScore != 7.0 {
		t.Errorf("Expected max score 7.0, got %f", sig.Breakdown.MaxScore)
	}
	if sig.ConfidencePct != 100 {
		t.Errorf("Expected 100%%, got %f", sig.ConfidencePct)
	}
	if !sig.Entry.Valid || sig.Entry.Value != 105 {
		t.Errorf("Expected entry 105, got %+v", sig.Entry)
	}
	assertShortLadder(t, sig)
	if sig.TakeProfit[0].Value != 103 {
		t.Errorf("Expected TP1 at the gap level 103, got %f", sig.TakeProfit[0].Value)
	}
}

// assertShortLadder checks the strict SL > entry > TP1 > TP2 > TP3
// ordering of a short signal.
func assertShortLadder(t *testing.T, sig *TradeSignal) {
	t.Helper()
	e, sl := sig.Entry.Value, sig.StopLoss.Value
	tp1, tp2, tp3 := sig.TakeProfit[0].Value, sig.TakeProfit[1].Value, sig.TakeProfit[2].Value
	if !(sl > e && e > tp1 && tp1 > tp2 && tp2 > tp3) {
		t.Errorf("short ladder not strictly ordered: SL %f entry %f TP %f/%f/%f", sl, e, tp1, tp2, tp3)
	}
}

// TestEvaluateContraryIndicatorsBlock: opposing indicators push the
// subtotal negative, which vetoes the gap trade.
func TestEvaluateContraryIndicatorsBlock(t *testing.T) {
	in := Inputs{
		LastPrice: 105,
		ATR:       1,
		Pivots:    analysis.PivotLevels{PP: 100, R1: 110, S1: 90},
		GapSignal: analysis.GapShortToFill,
		GapLevel:  103,
		HistResistance: math.NaN(), HistSupport: math.NaN(),
		Snapshot: analysis.IndicatorSnapshot{
			RSI: 25, RSIValid: true, RSIStatus: analysis.RSIOversold,
			MACD:      analysis.MACDResult{Valid: true, Cross: analysis.MACDBullishCross},
			EMAStatus: analysis.EMAUnknown,
		},
		Structure: trendingStructure(),
	}

	sig := DefaultScoringConfig().Evaluate(in)
	if sig.Decision != NoOperar {
		t.Fatalf("Expected NO_OPERAR, got %s", sig.Decision)
	}
	if sig.Entry.Valid {
		t.Error("NO_OPERAR must not carry an entry")
	}
	if sig.StopLoss.Valid {
		t.Error("NO_OPERAR must not carry a stop loss")
	}
}

// TestEvaluateLongPendiente: price far above the pivot turns a long
// gap setup into a limit order waiting at PP.
func TestEvaluateLongPendiente(t *testing.T) {
	in := Inputs{
		LastPrice: 105,
		ATR:       1,
		Pivots:    analysis.PivotLevels{PP: 100, R1: 110, S1: 90},
		GapSignal: analysis.GapLongToFill,
		GapLevel:  107,
		HistResistance: math.NaN(), HistSupport: math.NaN(),
		Snapshot:  bullishSnapshot(),
		Structure: trendingStructure(),
	}

	sig := DefaultScoringConfig().Evaluate(in)

	if sig.Decision != LongPendiente {
		t.Fatalf("Expected LONG_PENDIENTE, got %s (%s)", sig.Decision, sig.DecisionReason)
	}
	if sig.EntryType != EntryLimitAtPP {
		t.Errorf("Expected LIMIT_AT_PP, got %s", sig.EntryType)
	}
	if sig.Entry.Value != 100 {
		t.Errorf("Expected entry at PP 100, got %f", sig.Entry.Value)
	}
	// Misaligned: 2.0 base - 0.5 + 3.0 indicators = 4.5.
	if sig.Breakdown.RawConfidence != 4.5 {
		t.Errorf("Expected raw confidence 4.5, got %f", sig.Breakdown.RawConfidence)
	}
	e := sig.Entry.Value
	if !(sig.StopLoss.Value < e && sig.TakeProfit[0].Value > e &&
		sig.TakeProfit[1].Value > sig.TakeProfit[0].Value &&
		sig.TakeProfit[2].Value > sig.TakeProfit[1].Value) {
		t.Errorf("long ladder not strictly ordered: SL %f entry %f TP %f/%f/%f",
			sig.StopLoss.Value, e, sig.TakeProfit[0].Value, sig.TakeProfit[1].Value, sig.TakeProfit[2].Value)
	}
}

// TestEvaluateStructureScalesConfidenceNotDecision: the phase
// multiplier changes the percentage, never the call.
func TestEvaluateStructureScalesConfidenceNotDecision(t *testing.T) {
	in := Inputs{
		LastPrice:  105,
		ATR:        1,
		HighVolume: true,
		Pivots:     analysis.PivotLevels{PP: 100, R1: 110, S1: 90},
		GapSignal:  analysis.GapShortToFill,
		GapLevel:   103,
		HistResistance: math.NaN(), HistSupport: math.NaN(),
		Snapshot: bearishSnapshot(),
		Structure: analysis.StructureResult{
			Phase:      analysis.PhasePureConsolidation,
			Multiplier: 0.5,
		},
	}

	sig := DefaultScoringConfig().Evaluate(in)
	if sig.Decision != ShortFuerte {
		t.Fatalf("Expected SHORT_FUERTE despite consolidation, got %s", sig.Decision)
	}
	if sig.Breakdown.FinalConfidence != 3.5 {
		t.Errorf("Expected final confidence 3.5, got %f", sig.Breakdown.FinalConfidence)
	}
	if sig.ConfidencePct != 50 {
		t.Errorf("Expected 50%%, got %f", sig.ConfidencePct)
	}
}

// TestEvaluateConfluenceRaisesCeiling: wiring a liquidation source
// adds its boost to both the score and the ceiling.
func TestEvaluateConfluenceRaisesCeiling(t *testing.T) {
	base := Inputs{
		LastPrice:  105,
		ATR:        1,
		HighVolume: true,
		Pivots:     analysis.PivotLevels{PP: 100, R1: 110, S1: 90},
		GapSignal:  analysis.GapShortToFill,
		GapLevel:   103,
		HistResistance: math.NaN(), HistSupport: math.NaN(),
		Snapshot:   bearishSnapshot(),
		Structure:  trendingStructure(),
		Confluence: &positioning.ConfluenceResult{HasConfluence: true, Boost: 2.0},
	}

	sig := DefaultScoringConfig().Evaluate(base)
	if sig.Breakdown.MaxScore != 9.0 {
		t.Errorf("Expected max score 9.0 with confluence, got %f", sig.Breakdown.MaxScore)
	}
	if sig.Breakdown.RawConfidence != 9.0 {
		t.Errorf("Expected raw confidence 9.0, got %f", sig.Breakdown.RawConfidence)
	}
	if sig.ConfidencePct != 100 {
		t.Errorf("Expected 100%%, got %f", sig.ConfidencePct)
	}

	base.Confluence = &positioning.ConfluenceResult{}
	sig = DefaultScoringConfig().Evaluate(base)
	if sig.Breakdown.MaxScore != 9.0 {
		t.Errorf("Expected ceiling 9.0 whenever a liquidation source is wired, got %f", sig.Breakdown.MaxScore)
	}
	if math.Abs(sig.Breakdown.RawConfidence-7.0) > 1e-9 {
		t.Errorf("Expected raw confidence 7.0 without boost, got %f", sig.Breakdown.RawConfidence)
	}
}

// TestEvaluateHistoricGapShort: with no recent gap, price pressing an
// old unfilled gap from below becomes a resistance short.
func TestEvaluateHistoricGapShort(t *testing.T) {
	in := Inputs{
		LastPrice: 100,
		ATR:       1,
		Pivots:    analysis.PivotLevels{PP: 99, R1: 103, S1: 95},
		GapSignal: analysis.GapNone,
		GapsAbove: []analysis.Gap{
			{Level: 101, Bottom: 100.5, Top: 101.5, Direction: analysis.GapUp, Strength: analysis.GapMedium},
		},
		HistResistance: math.NaN(), HistSupport: math.NaN(),
		Snapshot: analysis.IndicatorSnapshot{
			RSI: 75, RSIValid: true, RSIStatus: analysis.RSIOverbought,
			MACD:      analysis.MACDResult{Valid: true, Cross: analysis.MACDBearish},
			EMAStatus: analysis.EMAUnknown,
		},
		Structure: trendingStructure(),
	}

	sig := DefaultScoringConfig().Evaluate(in)

	if sig.Decision != ShortGapHistorico {
		t.Fatalf("Expected SHORT_GAP_HISTORICO, got %s (%s)", sig.Decision, sig.DecisionReason)
	}
	// 1.5 base + 1.0 RSI + 1.0 MACD against a 3.5 ceiling.
	if sig.Breakdown.RawConfidence != 3.5 || sig.Breakdown.MaxScore != 3.5 {
		t.Errorf("Expected 3.5/3.5, got %f/%f", sig.Breakdown.RawConfidence, sig.Breakdown.MaxScore)
	}
	if sig.StopLoss.Value != 102 {
		t.Errorf("Expected SL above the gap top at 102, got %f", sig.StopLoss.Value)
	}
	assertShortLadder(t, sig)
}

// TestEvaluateResistanceShort: a strong historical level with
// indicator and volume support trades without any gap.
func TestEvaluateResistanceShort(t *testing.T) {
	in := Inputs{
		LastPrice:        100.6,
		ATR:              1,
		HighVolume:       true,
		Pivots:           analysis.PivotLevels{PP: 99, R1: 103, S1: 95},
		GapSignal:        analysis.GapNone,
		HistResistance:   100.5,
		HistSupport:      math.NaN(),
		StrongResistance: true,
		Snapshot: analysis.IndicatorSnapshot{
			RSI: 65, RSIValid: true, RSIStatus: analysis.RSIBearishZone,
			MACD:      analysis.MACDResult{Valid: true, Cross: analysis.MACDBearish},
			EMAStatus: analysis.EMAUnknown,
		},
		Structure: trendingStructure(),
	}

	sig := DefaultScoringConfig().Evaluate(in)

	if sig.Decision != ShortResistencia {
		t.Fatalf("Expected SHORT_RESISTENCIA, got %s (%s)", sig.Decision, sig.DecisionReason)
	}
	// 1.5 base + 2.0 indicators + 1.0 volume against 4.5.
	if sig.Breakdown.RawConfidence != 4.5 || sig.Breakdown.MaxScore != 4.5 {
		t.Errorf("Expected 4.5/4.5, got %f/%f", sig.Breakdown.RawConfidence, sig.Breakdown.MaxScore)
	}
	assertShortLadder(t, sig)
}

// TestRepairLevelsRebuildsInvertedShort: every level on the wrong side
// is rebuilt from ATR multiples.
func TestRepairLevelsRebuildsInvertedShort(t *testing.T) {
	sl, tp1, tp2, tp3 := repairLevels(true, 100, 99, 101, 102, math.NaN(), 2)
	if sl != 103 {
		t.Errorf("Expected SL 103, got %f", sl)
	}
	if tp1 != 98 {
		t.Errorf("Expected TP1 98, got %f", tp1)
	}
	if tp2 != 96 {
		t.Errorf("Expected TP2 96, got %f", tp2)
	}
	if tp3 != 94 {
		t.Errorf("Expected TP3 94, got %f", tp3)
	}
}

// TestRepairLevelsKeepsValidLong: a correctly ordered ladder passes
// through untouched.
func TestRepairLevelsKeepsValidLong(t *testing.T) {
	sl, tp1, tp2, tp3 := repairLevels(false, 100, 97, 102, 104, 106, 2)
	if sl != 97 || tp1 != 102 || tp2 != 104 || tp3 != 106 {
		t.Errorf("Expected ladder unchanged, got SL %f TP %f/%f/%f", sl, tp1, tp2, tp3)
	}
}
