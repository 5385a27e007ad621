// Package scanner fans instrument analysis out over a worker pool and
// keeps the latest scan snapshot for the API and the console report.
package scanner

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"crypto-gap-scanner/internal/analysis"
	"crypto-gap-scanner/internal/strategy"
)

// InstrumentAnalyzer produces a trade signal for one instrument.
type InstrumentAnalyzer interface {
	Analyze(name, symbol string) (*strategy.TradeSignal, error)
}

// Scanner runs analysis cycles across the configured instruments.
type Scanner struct {
	analyzer InstrumentAnalyzer
	market   strategy.MarketDataProvider
	config   Config

	stopChan chan struct{}
	wg       sync.WaitGroup

	mu         sync.RWMutex
	lastResult *ScanResult
}

func NewScanner(analyzer InstrumentAnalyzer, market strategy.MarketDataProvider, cfg Config) *Scanner {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.HourlyLimit <= 0 {
		cfg.HourlyLimit = 168
	}
	return &Scanner{
		analyzer: analyzer,
		market:   market,
		config:   cfg,
		stopChan: make(chan struct{}),
	}
}

// Start begins the background scan loop.
func (sc *Scanner) Start() {
	sc.wg.Add(1)
	go sc.runScanLoop()
	log.Info().Int("instruments", len(sc.config.Instruments)).Dur("interval", sc.config.ScanInterval).Msg("scanner started")
}

func (sc *Scanner) runScanLoop() {
	defer sc.wg.Done()

	ticker := time.NewTicker(sc.config.ScanInterval)
	defer ticker.Stop()

	// Run immediately
	sc.Scan()

	for {
		select {
		case <-ticker.C:
			sc.Scan()
		case <-sc.stopChan:
			log.Info().Msg("scanner stopped")
			return
		}
	}
}

type workerResult struct {
	signal *strategy.TradeSignal
	err    *ScanError
}

// Scan executes a single cycle and returns its result. The result is also
// stored as the latest snapshot.
func (sc *Scanner) Scan() *ScanResult {
	startTime := time.Now()
	scanID := uuid.NewString()

	log.Info().Str("scan_id", scanID).Msg("scan cycle starting")

	instrumentChan := make(chan Instrument, len(sc.config.Instruments))
	resultChan := make(chan workerResult, len(sc.config.Instruments))

	var wg sync.WaitGroup
	for i := 0; i < sc.config.WorkerCount; i++ {
		wg.Add(1)
		go sc.worker(instrumentChan, resultChan, &wg)
	}

	for _, inst := range sc.config.Instruments {
		instrumentChan <- inst
	}
	close(instrumentChan)

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	var signals []strategy.TradeSignal
	var errors []ScanError
	for res := range resultChan {
		if res.err != nil {
			errors = append(errors, *res.err)
			continue
		}
		signals = append(signals, *res.signal)
	}

	// Strongest setups first.
	sort.Slice(signals, func(i, j int) bool {
		return signals[i].ConfidencePct > signals[j].ConfidencePct
	})

	result := &ScanResult{
		ScanID:         scanID,
		StartTime:      startTime,
		EndTime:        time.Now(),
		Duration:       time.Since(startTime),
		SymbolsScanned: len(sc.config.Instruments),
		Signals:        signals,
		Errors:         errors,
		Correlations:   sc.correlations(),
	}

	sc.mu.Lock()
	sc.lastResult = result
	sc.mu.Unlock()

	if sc.config.OnResult != nil {
		sc.config.OnResult(result)
	}

	log.Info().
		Str("scan_id", scanID).
		Dur("duration", result.Duration).
		Int("signals", len(signals)).
		Int("errors", len(errors)).
		Msg("scan cycle finished")

	return result
}

func (sc *Scanner) worker(instruments <-chan Instrument, results chan<- workerResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for inst := range instruments {
		signal, err := sc.analyzer.Analyze(inst.Name, inst.Symbol)
		if err != nil {
			log.Warn().Err(err).Str("symbol", inst.Symbol).Msg("instrument analysis failed")
			results <- workerResult{err: &ScanError{
				Instrument: inst.Name,
				Symbol:     inst.Symbol,
				Message:    err.Error(),
			}}
			continue
		}
		results <- workerResult{signal: signal}
	}
}

// correlations builds the pairwise return correlation matrix over the
// instrument set from hourly closes. Failures disable the report for the
// cycle rather than failing the scan.
func (sc *Scanner) correlations() *CorrelationReport {
	if len(sc.config.Instruments) < 2 || sc.market == nil {
		return nil
	}

	series := make([]analysis.ReturnSeries, 0, len(sc.config.Instruments))
	for _, inst := range sc.config.Instruments {
		klines, err := sc.market.GetKlines(inst.Symbol, "1h", sc.config.HourlyLimit)
		if err != nil {
			log.Warn().Err(err).Str("symbol", inst.Symbol).Msg("correlation fetch failed")
			return nil
		}
		series = append(series, analysis.BuildReturns(inst.Name, klines))
	}

	matrix := analysis.ComputeCorrelationMatrix(series)
	insights := analysis.CorrelationInsights(matrix)
	sanitizeMatrix(matrix)

	return &CorrelationReport{
		Matrix:   matrix,
		Insights: insights,
	}
}

// sanitizeMatrix zeroes undefined correlations (constant or short series).
// Insights are extracted before this runs; the zeroing is only so the
// matrix survives JSON encoding, which rejects NaN.
func sanitizeMatrix(m *analysis.CorrelationMatrix) {
	for i := range m.Values {
		for j := range m.Values[i] {
			if !analysis.Finite(m.Values[i][j]) {
				m.Values[i][j] = 0
			}
		}
	}
}

// GetLastResult returns the most recent scan result, or nil before the
// first cycle completes.
func (sc *Scanner) GetLastResult() *ScanResult {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.lastResult
}

// SignalFor returns the latest signal for a symbol.
func (sc *Scanner) SignalFor(symbol string) (*strategy.TradeSignal, bool) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	if sc.lastResult == nil {
		return nil, false
	}
	for i := range sc.lastResult.Signals {
		if sc.lastResult.Signals[i].Symbol == symbol {
			return &sc.lastResult.Signals[i], true
		}
	}
	return nil, false
}

// Stop gracefully shuts down the scan loop.
func (sc *Scanner) Stop() {
	close(sc.stopChan)
	sc.wg.Wait()
}
