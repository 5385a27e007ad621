package scanner

import (
	"fmt"
	"testing"

	"crypto-gap-scanner/internal/binance"
	"crypto-gap-scanner/internal/strategy"
)

type fakeAnalyzer struct {
	confidence map[string]float64
	failing    map[string]bool
}

func (f *fakeAnalyzer) Analyze(name, symbol string) (*strategy.TradeSignal, error) {
	if f.failing[symbol] {
		return nil, fmt.Errorf("fetch failed for %s", symbol)
	}
	return &strategy.TradeSignal{
		Instrument:    name,
		Symbol:        symbol,
		Decision:      strategy.NoOperar,
		ConfidencePct: f.confidence[symbol],
	}, nil
}

type fakeHourlyMarket struct {
	closes map[string][]float64
	err    error
}

func (f *fakeHourlyMarket) GetKlines(symbol, interval string, limit int) ([]binance.Kline, error) {
	if f.err != nil {
		return nil, f.err
	}
	closes := f.closes[symbol]
	klines := make([]binance.Kline, len(closes))
	for i, c := range closes {
		klines[i] = binance.Kline{Open: c, High: c, Low: c, Close: c, Volume: 100}
	}
	return klines, nil
}

func testInstruments() []Instrument {
	return []Instrument{
		{Name: "BTC", Symbol: "BTCUSDT"},
		{Name: "ETH", Symbol: "ETHUSDT"},
		{Name: "SOL", Symbol: "SOLUSDT"},
	}
}

func TestScanSortsSignalsByConfidence(t *testing.T) {
	analyzer := &fakeAnalyzer{confidence: map[string]float64{
		"BTCUSDT": 40,
		"ETHUSDT": 90,
		"SOLUSDT": 65,
	}}
	sc := NewScanner(analyzer, nil, Config{Instruments: testInstruments(), WorkerCount: 2})

	result := sc.Scan()

	if result.ScanID == "" {
		t.Error("expected a scan id")
	}
	if result.SymbolsScanned != 3 {
		t.Errorf("SymbolsScanned = %d, want 3", result.SymbolsScanned)
	}
	if len(result.Signals) != 3 {
		t.Fatalf("expected 3 signals, got %d", len(result.Signals))
	}
	want := []string{"ETHUSDT", "SOLUSDT", "BTCUSDT"}
	for i, sym := range want {
		if result.Signals[i].Symbol != sym {
			t.Errorf("signal[%d] = %s, want %s", i, result.Signals[i].Symbol, sym)
		}
	}
	if len(result.Errors) != 0 {
		t.Errorf("unexpected errors: %+v", result.Errors)
	}
}

func TestScanRecordsPerInstrumentErrors(t *testing.T) {
	analyzer := &fakeAnalyzer{
		confidence: map[string]float64{"BTCUSDT": 50, "SOLUSDT": 30},
		failing:    map[string]bool{"ETHUSDT": true},
	}
	sc := NewScanner(analyzer, nil, Config{Instruments: testInstruments(), WorkerCount: 3})

	result := sc.Scan()

	if len(result.Signals) != 2 {
		t.Fatalf("expected 2 signals, got %d", len(result.Signals))
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 error, got %d", len(result.Errors))
	}
	if result.Errors[0].Symbol != "ETHUSDT" {
		t.Errorf("error symbol = %s, want ETHUSDT", result.Errors[0].Symbol)
	}
}

func TestGetLastResultAndSignalFor(t *testing.T) {
	analyzer := &fakeAnalyzer{confidence: map[string]float64{
		"BTCUSDT": 40, "ETHUSDT": 90, "SOLUSDT": 65,
	}}
	sc := NewScanner(analyzer, nil, Config{Instruments: testInstruments()})

	if sc.GetLastResult() != nil {
		t.Fatal("expected nil before first scan")
	}
	if _, ok := sc.SignalFor("BTCUSDT"); ok {
		t.Fatal("expected no signal before first scan")
	}

	sc.Scan()

	if sc.GetLastResult() == nil {
		t.Fatal("expected a result after scanning")
	}
	sig, ok := sc.SignalFor("SOLUSDT")
	if !ok {
		t.Fatal("expected a SOLUSDT signal")
	}
	if sig.ConfidencePct != 65 {
		t.Errorf("confidence = %.1f, want 65", sig.ConfidencePct)
	}
	if _, ok := sc.SignalFor("DOGEUSDT"); ok {
		t.Error("expected no signal for unscanned symbol")
	}
}

func TestCorrelationsSanitizedForJSON(t *testing.T) {
	// BTC and ETH move in lockstep; SOL is constant, so its pairs have an
	// undefined correlation that must come out as 0.
	closes := map[string][]float64{
		"BTCUSDT": {100, 101, 103, 102, 105, 104, 108},
		"ETHUSDT": {10, 10.1, 10.3, 10.2, 10.5, 10.4, 10.8},
		"SOLUSDT": {50, 50, 50, 50, 50, 50, 50},
	}
	analyzer := &fakeAnalyzer{confidence: map[string]float64{}}
	market := &fakeHourlyMarket{closes: closes}
	sc := NewScanner(analyzer, market, Config{Instruments: testInstruments()})

	result := sc.Scan()

	if result.Correlations == nil {
		t.Fatal("expected a correlation report")
	}
	m := result.Correlations.Matrix
	if v := m.At("BTC", "ETH"); v < 0.95 {
		t.Errorf("BTC/ETH correlation = %.3f, want near 1", v)
	}
	if v := m.At("BTC", "SOL"); v != 0 {
		t.Errorf("BTC/SOL correlation = %v, want sanitized 0", v)
	}

	foundHigh := false
	for _, ins := range result.Correlations.Insights {
		if ins.Kind == "HIGH" && ins.PairA == "BTC" && ins.PairB == "ETH" {
			foundHigh = true
		}
		if ins.PairA == "SOL" || ins.PairB == "SOL" {
			t.Errorf("undefined pair surfaced as insight: %+v", ins)
		}
	}
	if !foundHigh {
		t.Error("expected a HIGH insight for BTC/ETH")
	}
}

func TestCorrelationsSkippedOnFetchFailure(t *testing.T) {
	analyzer := &fakeAnalyzer{confidence: map[string]float64{}}
	market := &fakeHourlyMarket{err: fmt.Errorf("network down")}
	sc := NewScanner(analyzer, market, Config{Instruments: testInstruments()})

	result := sc.Scan()
	if result.Correlations != nil {
		t.Error("expected no correlation report when hourly fetch fails")
	}
}
