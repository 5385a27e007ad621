package scanner

import (
	"time"

	"crypto-gap-scanner/internal/analysis"
	"crypto-gap-scanner/internal/strategy"
)

// Instrument is one market the scanner analyzes.
type Instrument struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

// ScanError records a per-instrument failure without aborting the cycle.
type ScanError struct {
	Instrument string `json:"instrument"`
	Symbol     string `json:"symbol"`
	Message    string `json:"message"`
}

// CorrelationReport carries the pairwise correlation matrix over the
// scanned instruments plus the notable pairs.
type CorrelationReport struct {
	Matrix   *analysis.CorrelationMatrix  `json:"matrix"`
	Insights []analysis.CorrelationInsight `json:"insights"`
}

// ScanResult aggregates one full scan cycle.
type ScanResult struct {
	ScanID         string                 `json:"scan_id"`
	StartTime      time.Time              `json:"start_time"`
	EndTime        time.Time              `json:"end_time"`
	Duration       time.Duration          `json:"duration"`
	SymbolsScanned int                    `json:"symbols_scanned"`
	Signals        []strategy.TradeSignal `json:"signals"`
	Errors         []ScanError            `json:"errors,omitempty"`
	Correlations   *CorrelationReport     `json:"correlations,omitempty"`
}

// Config holds scanner configuration.
type Config struct {
	Instruments  []Instrument
	ScanInterval time.Duration
	WorkerCount  int
	HourlyLimit  int // Candles per instrument for the correlation matrix

	// OnResult, when set, runs after every completed cycle with the
	// stored snapshot.
	OnResult func(*ScanResult)
}
