// Package report renders scan results as plain-text trade plans for the
// console.
package report

import (
	"fmt"
	"strings"
	"time"

	"crypto-gap-scanner/internal/analysis"
	"crypto-gap-scanner/internal/scanner"
	"crypto-gap-scanner/internal/strategy"
)

// FormatScanResult renders a full scan cycle: a header, one block per
// instrument in confidence order, errors and the correlation insights.
func FormatScanResult(res *scanner.ScanResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "SCAN %s\n", res.ScanID)
	fmt.Fprintf(&b, "%s | %d instruments | %s\n",
		res.StartTime.Format("2006-01-02 15:04:05 MST"), res.SymbolsScanned, res.Duration.Round(time.Millisecond))
	b.WriteString(strings.Repeat("=", 64) + "\n")

	for i := range res.Signals {
		b.WriteString(FormatSignal(&res.Signals[i]))
		b.WriteString("\n")
	}

	for _, e := range res.Errors {
		fmt.Fprintf(&b, "ERROR %s (%s): %s\n", e.Instrument, e.Symbol, e.Message)
	}

	if res.Correlations != nil && len(res.Correlations.Insights) > 0 {
		b.WriteString("\nCORRELATIONS\n")
		for _, ins := range res.Correlations.Insights {
			fmt.Fprintf(&b, "  %s\n", ins.Note)
		}
	}

	return b.String()
}

// FormatSignal renders one instrument's trade plan.
func FormatSignal(sig *strategy.TradeSignal) string {
	var b strings.Builder

	fmt.Fprintf(&b, "--- %s (%s) ---\n", sig.Instrument, sig.Symbol)
	fmt.Fprintf(&b, "Price %.4f | ATR %.4f", sig.LastPrice, sig.ATR)
	if sig.HighVolume {
		b.WriteString(" | high volume")
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Decision: %s (%.1f%%)\n", sig.Decision, sig.ConfidencePct)
	if sig.DecisionReason != "" {
		fmt.Fprintf(&b, "  %s\n", sig.DecisionReason)
	}

	if sig.Decision.Actionable() {
		writeLevels(&b, sig)
	}

	writePivots(&b, sig)
	writeGaps(&b, sig)
	writeStructure(&b, sig)
	writeIndicators(&b, sig)
	writePositioning(&b, sig)
	writeBreakdown(&b, sig)

	return b.String()
}

func writeLevels(b *strings.Builder, sig *strategy.TradeSignal) {
	entry := "entry at market"
	if sig.EntryType == strategy.EntryLimitAtPP {
		entry = "limit order at the pivot point"
	}
	fmt.Fprintf(b, "Plan: %s\n", entry)

	if sig.Entry.Valid {
		fmt.Fprintf(b, "  Entry  %.4f\n", sig.Entry.Value)
	}
	if sig.StopLoss.Valid {
		fmt.Fprintf(b, "  SL     %.4f (%+.2f%%)\n", sig.StopLoss.Value, pctFrom(sig.Entry, sig.StopLoss))
	}
	roles := tpRoles(sig.Decision)
	for i, tp := range sig.TakeProfit {
		if tp.Valid {
			fmt.Fprintf(b, "  TP%d    %.4f (%+.2f%%) %s\n", i+1, tp.Value, pctFrom(sig.Entry, tp), roles[i])
		}
	}
}

func tpRoles(d strategy.Decision) [3]string {
	switch d {
	case strategy.ShortGapHistorico, strategy.LongGapHistorico,
		strategy.ShortResistencia, strategy.LongSoporte:
		return [3]string{"first target", "extended target", "next gap"}
	default:
		return [3]string{"gap fill", "pivot extension", "next gap"}
	}
}

func pctFrom(entry, level strategy.OptFloat) float64 {
	if !entry.Valid || !level.Valid || entry.Value == 0 {
		return 0
	}
	return (level.Value - entry.Value) / entry.Value * 100
}

func writePivots(b *strings.Builder, sig *strategy.TradeSignal) {
	p := sig.Pivots
	fmt.Fprintf(b, "Pivots: PP %.4f (%+.2f%%) | R1 %.4f | S1 %.4f\n",
		p.PP, distPct(sig.LastPrice, p.PP), p.R1, p.S1)

	if sig.HistResistance.Valid || sig.HistSupport.Valid {
		b.WriteString("Historic levels:")
		if sig.HistResistance.Valid {
			fmt.Fprintf(b, " resistance %.4f", sig.HistResistance.Value)
		}
		if sig.HistSupport.Valid {
			fmt.Fprintf(b, " support %.4f", sig.HistSupport.Value)
		}
		b.WriteString("\n")
	}
}

func distPct(price, level float64) float64 {
	if price == 0 {
		return 0
	}
	return (level - price) / price * 100
}

func writeGaps(b *strings.Builder, sig *strategy.TradeSignal) {
	if sig.GapSignal != analysis.GapNone && sig.GapLevel.Valid {
		fmt.Fprintf(b, "Gap: %s toward %.4f (%+.2f%%)\n",
			sig.GapSignal, sig.GapLevel.Value, distPct(sig.LastPrice, sig.GapLevel.Value))
	} else {
		b.WriteString("Gap: none active\n")
	}
	if sig.SimpleGapSignal != sig.GapSignal {
		fmt.Fprintf(b, "  daily-close read: %s\n", sig.SimpleGapSignal)
	}

	writeGapList(b, "unfilled above", sig.GapsAbove)
	writeGapList(b, "unfilled below", sig.GapsBelow)
}

func writeGapList(b *strings.Builder, label string, gaps []analysis.Gap) {
	if len(gaps) == 0 {
		return
	}
	fmt.Fprintf(b, "  %s:", label)
	for _, g := range gaps {
		fmt.Fprintf(b, " %.4f[%s]", g.Level, g.Strength)
	}
	b.WriteString("\n")
}

func writeStructure(b *strings.Builder, sig *strategy.TradeSignal) {
	st := sig.Structure
	fmt.Fprintf(b, "Structure: %s (x%.2f) | %s\n", st.Phase, st.Multiplier, st.Recommendation)
	if st.Consolidation.IsConsolidating {
		fmt.Fprintf(b, "  range %.2f%% between %.4f and %.4f, price %s\n",
			st.Consolidation.RangePct, st.Consolidation.Support, st.Consolidation.Resistance,
			strings.ToLower(strings.ReplaceAll(st.Consolidation.Position, "_", " ")))
	}
	for _, side := range []analysis.WyckoffResult{st.Accumulation, st.Distribution} {
		if side.Detected {
			fmt.Fprintf(b, "  %s (%.1f): %s\n", side.Phase, side.Score, strings.Join(side.Signals, "; "))
		}
	}
}

func writeIndicators(b *strings.Builder, sig *strategy.TradeSignal) {
	ind := sig.Indicators

	b.WriteString("Indicators:")
	if ind.RSIValid {
		fmt.Fprintf(b, " RSI %.1f (%s)", ind.RSI, ind.RSIStatus)
	} else {
		b.WriteString(" RSI n/a")
	}
	if ind.MACD.Valid {
		fmt.Fprintf(b, " | MACD %s (hist %+.4f)", ind.MACD.Cross, ind.MACD.Histogram)
	} else {
		b.WriteString(" | MACD n/a")
	}
	if ind.EMA200Valid {
		fmt.Fprintf(b, " | EMA200 %s (%+.2f%%)", ind.EMAStatus, ind.EMADistancePct)
	} else {
		b.WriteString(" | EMA200 n/a")
	}
	b.WriteString("\n")
}

func writePositioning(b *strings.Builder, sig *strategy.TradeSignal) {
	if sig.Positioning != nil {
		p := sig.Positioning
		fmt.Fprintf(b, "Positioning (%s): L/S %.2f | funding %+.4f%% | taker %.2f",
			p.Source, p.LSRatio, p.FundingRate*100, p.BuySellRatio)
		if p.BiasText != "" {
			fmt.Fprintf(b, " | %s", p.BiasText)
		}
		b.WriteString("\n")
	}

	if sig.Forecast != nil {
		f := sig.Forecast
		fmt.Fprintf(b, "Forecast: %s (%.0f%%)\n", f.Direction, f.Probability)
		for _, r := range f.Reasons {
			fmt.Fprintf(b, "  - %s\n", r)
		}
	}

	if sig.Confluence != nil && sig.Confluence.HasConfluence {
		c := sig.Confluence
		fmt.Fprintf(b, "Liquidation confluence: +%.1f (%s, $%.0fk over %d events)\n",
			c.Boost, c.DominantSide, c.TotalVolume/1000, c.Events)
		for _, d := range c.Details {
			fmt.Fprintf(b, "  - %s\n", d)
		}
	}

	if len(sig.LiqClusters) > 0 {
		b.WriteString("Liquidation clusters:")
		for _, cl := range sig.LiqClusters {
			fmt.Fprintf(b, " %.4f[$%.0fk %s %+.2f%%]", cl.Price, cl.VolumeUSD/1000, cl.Side, cl.DistancePct)
		}
		b.WriteString("\n")
	}

	if len(sig.LiqZones) > 0 {
		b.WriteString("Liquidation zones:")
		for _, z := range sig.LiqZones {
			fmt.Fprintf(b, " %.4f[%s %dx %s]", z.Price, z.Type, z.Leverage, z.RiskLevel)
		}
		b.WriteString("\n")
	}
}

func writeBreakdown(b *strings.Builder, sig *strategy.TradeSignal) {
	bd := sig.Breakdown
	fmt.Fprintf(b, "Score: gap %+.1f, alignment %+.1f, indicators %+.1f, volume %+.1f, confluence %+.1f\n",
		bd.GapPoints, bd.AlignmentPoints, bd.IndicatorPoints, bd.VolumePoints, bd.ConfluencePoints)
	fmt.Fprintf(b, "  raw %.1f x %.2f structure = %.1f of %.1f max\n",
		bd.RawConfidence, bd.StructureMultiplier, bd.FinalConfidence, bd.MaxScore)
}
