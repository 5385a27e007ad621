package analysis

import (
	"fmt"
	"math"

	"crypto-gap-scanner/internal/binance"
)

// ReturnSeries is one instrument's close-to-close return series, used
// as input to the correlation matrix.
type ReturnSeries struct {
	Name    string
	Returns []float64
}

// BuildReturns converts a candle series into fractional returns.
func BuildReturns(name string, klines []binance.Kline) ReturnSeries {
	return ReturnSeries{Name: name, Returns: PctChange(Closes(klines))}
}

// CorrelationMatrix is a symmetric Pearson correlation matrix over a
// fixed instrument ordering.
type CorrelationMatrix struct {
	Names  []string    `json:"names"`
	Values [][]float64 `json:"values"`
}

// At returns the correlation between instruments a and b, or NaN when
// either name is unknown.
func (m *CorrelationMatrix) At(a, b string) float64 {
	ia, ib := -1, -1
	for i, n := range m.Names {
		if n == a {
			ia = i
		}
		if n == b {
			ib = i
		}
	}
	if ia < 0 || ib < 0 {
		return math.NaN()
	}
	return m.Values[ia][ib]
}

// ComputeCorrelationMatrix builds the pairwise Pearson matrix over the
// given return series. Pairs are aligned on the tail of the shorter
// series; a pair with fewer than two overlapping returns, or with a
// constant series, yields NaN.
func ComputeCorrelationMatrix(series []ReturnSeries) *CorrelationMatrix {
	n := len(series)
	m := &CorrelationMatrix{
		Names:  make([]string, n),
		Values: make([][]float64, n),
	}
	for i := range series {
		m.Names[i] = series[i].Name
		m.Values[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		m.Values[i][i] = 1
		for j := i + 1; j < n; j++ {
			r := pearson(series[i].Returns, series[j].Returns)
			m.Values[i][j] = r
			m.Values[j][i] = r
		}
	}
	return m
}

// pearson computes the correlation coefficient over the overlapping
// tails of a and b.
func pearson(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n < 2 {
		return math.NaN()
	}
	a = a[len(a)-n:]
	b = b[len(b)-n:]

	var sumA, sumB float64
	count := 0
	for i := 0; i < n; i++ {
		if !Finite(a[i]) || !Finite(b[i]) {
			continue
		}
		sumA += a[i]
		sumB += b[i]
		count++
	}
	if count < 2 {
		return math.NaN()
	}
	meanA := sumA / float64(count)
	meanB := sumB / float64(count)

	var cov, varA, varB float64
	for i := 0; i < n; i++ {
		if !Finite(a[i]) || !Finite(b[i]) {
			continue
		}
		da, db := a[i]-meanA, b[i]-meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return math.NaN()
	}
	return cov / math.Sqrt(varA*varB)
}

// CorrelationInsight flags a notable pair in the matrix.
type CorrelationInsight struct {
	PairA string  `json:"pair_a"`
	PairB string  `json:"pair_b"`
	Value float64 `json:"value"`
	Kind  string  `json:"kind"` // HIGH or LOW
	Note  string  `json:"note"`
}

// CorrelationInsights extracts the pairs worth acting on: correlations
// above 0.85 (instruments move together, avoid doubling exposure) and
// below 0.3 (diversification candidates).
func CorrelationInsights(m *CorrelationMatrix) []CorrelationInsight {
	var out []CorrelationInsight
	for i := 0; i < len(m.Names); i++ {
		for j := i + 1; j < len(m.Names); j++ {
			v := m.Values[i][j]
			if !Finite(v) {
				continue
			}
			switch {
			case v > 0.85:
				out = append(out, CorrelationInsight{
					PairA: m.Names[i], PairB: m.Names[j], Value: v, Kind: "HIGH",
					Note: fmt.Sprintf("%s and %s move together (%.2f), avoid doubling exposure", m.Names[i], m.Names[j], v),
				})
			case v < 0.3:
				out = append(out, CorrelationInsight{
					PairA: m.Names[i], PairB: m.Names[j], Value: v, Kind: "LOW",
					Note: fmt.Sprintf("%s and %s are weakly correlated (%.2f), diversification candidate", m.Names[i], m.Names[j], v),
				})
			}
		}
	}
	return out
}
