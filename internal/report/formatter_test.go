package report

import (
	"strings"
	"testing"
	"time"

	"crypto-gap-scanner/internal/analysis"
	"crypto-gap-scanner/internal/scanner"
	"crypto-gap-scanner/internal/strategy"
)

func sampleSignal() strategy.TradeSignal {
	return strategy.TradeSignal{
		Instrument:     "BTC",
		Symbol:         "BTCUSDT",
		Timestamp:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Decision:       strategy.ShortModerado,
		DecisionReason: "unfilled gap below with pivot alignment",
		ConfidencePct:  55,
		EntryType:      strategy.EntryMarket,
		Entry:          strategy.Opt(105),
		StopLoss:       strategy.Opt(108),
		TakeProfit:     [3]strategy.OptFloat{strategy.Opt(101), strategy.Opt(99), {}},
		LastPrice:      105,
		ATR:            2,
		HighVolume:     true,
		Pivots:         analysis.PivotLevels{PP: 103, R1: 108, S1: 99},
		GapSignal:      analysis.GapShortToFill,
		GapLevel:       strategy.Opt(101),
		SimpleGapSignal: analysis.GapShortToFill,
		Indicators: analysis.IndicatorSnapshot{
			RSI: 72, RSIValid: true, RSIStatus: analysis.RSIOverbought,
			MACD:   analysis.MACDResult{Cross: analysis.MACDBearishCross, Histogram: -0.5, Valid: true},
			EMA200: 90, EMA200Valid: true, EMAStatus: analysis.EMAAboveStrong, EMADistancePct: 16.7,
		},
		Structure: analysis.StructureResult{
			Phase: analysis.PhaseTrending, Multiplier: 1.0, Recommendation: "no structural bias",
		},
		Breakdown: strategy.ScoreBreakdown{
			GapPoints: 2, AlignmentPoints: 1, IndicatorPoints: 2, VolumePoints: 1,
			RawConfidence: 6, StructureMultiplier: 1.0, FinalConfidence: 6, MaxScore: 7,
		},
	}
}

func TestFormatSignalCoversPlanSections(t *testing.T) {
	sig := sampleSignal()
	out := FormatSignal(&sig)

	for _, want := range []string{
		"BTC (BTCUSDT)",
		"Decision: SHORT_MODERADO (55.0%)",
		"Entry  105.0000",
		"SL     108.0000",
		"TP1    101.0000",
		"gap fill",
		"Pivots: PP 103.0000",
		"SHORT_TO_FILL toward 101.0000",
		"RSI 72.0 (OVERBOUGHT)",
		"raw 6.0 x 1.00 structure = 6.0 of 7.0 max",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q\n%s", want, out)
		}
	}
}

func TestFormatSignalNoTradeOmitsLevels(t *testing.T) {
	sig := sampleSignal()
	sig.Decision = strategy.NoOperar
	sig.Entry = strategy.OptFloat{}
	sig.StopLoss = strategy.OptFloat{}
	sig.TakeProfit = [3]strategy.OptFloat{}

	out := FormatSignal(&sig)
	if strings.Contains(out, "Entry ") || strings.Contains(out, "SL ") {
		t.Errorf("NO_OPERAR report should carry no levels\n%s", out)
	}
}

func TestFormatScanResultIncludesErrorsAndInsights(t *testing.T) {
	sig := sampleSignal()
	res := &scanner.ScanResult{
		ScanID:         "abc-123",
		StartTime:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		EndTime:        time.Date(2026, 3, 1, 12, 0, 5, 0, time.UTC),
		Duration:       5 * time.Second,
		SymbolsScanned: 2,
		Signals:        []strategy.TradeSignal{sig},
		Errors:         []scanner.ScanError{{Instrument: "ETH", Symbol: "ETHUSDT", Message: "fetch failed"}},
		Correlations: &scanner.CorrelationReport{
			Insights: []analysis.CorrelationInsight{{Note: "BTC and ETH move together (0.92), avoid doubling exposure"}},
		},
	}

	out := FormatScanResult(res)
	for _, want := range []string{
		"SCAN abc-123",
		"ERROR ETH (ETHUSDT): fetch failed",
		"CORRELATIONS",
		"move together",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("scan report missing %q\n%s", want, out)
		}
	}
}
