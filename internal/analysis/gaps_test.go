package analysis

import (
	"testing"

	"crypto-gap-scanner/internal/binance"
)

// rangeCandle builds a candle from explicit OHLC values.
func rangeCandle(open, high, low, close float64) binance.Kline {
	return binance.Kline{Open: open, High: high, Low: low, Close: close, Volume: 100}
}

// TestDetectActiveGapDirections checks the coarse close-vs-price
// variant in both directions and inside the threshold band.
func TestDetectActiveGapDirections(t *testing.T) {
	daily := flatCandles(99, 100, 101) // reference close is the second-to-last: 100

	signal, level := DetectActiveGap(daily, 101, 0.5)
	if signal != GapShortToFill {
		t.Errorf("Expected SHORT_TO_FILL at +1%%, got %s", signal)
	}
	if level != 100 {
		t.Errorf("Expected level 100, got %f", level)
	}

	signal, _ = DetectActiveGap(daily, 99, 0.5)
	if signal != GapLongToFill {
		t.Errorf("Expected LONG_TO_FILL at -1%%, got %s", signal)
	}

	signal, _ = DetectActiveGap(daily, 100.2, 0.5)
	if signal != GapNone {
		t.Errorf("Expected NO_GAP inside the band, got %s", signal)
	}
}

// TestDetectRecentGapsShort checks a fresh unfilled gap up: the fill
// target is the high of the candle before the jump.
func TestDetectRecentGapsShort(t *testing.T) {
	daily := []binance.Kline{
		rangeCandle(100, 101, 99, 100),
		rangeCandle(100, 101, 99, 100),
		rangeCandle(100, 101, 99, 100),
		rangeCandle(100, 101, 99, 100), // high 101 = gap bottom
		rangeCandle(103, 105, 103, 104), // jumps: low 103 > prev high 101
		rangeCandle(104, 106, 103.5, 105),
	}

	signal, level, gaps := DetectRecentGaps(daily, 105, 0.3, 7)
	if signal != GapShortToFill {
		t.Fatalf("Expected SHORT_TO_FILL, got %s", signal)
	}
	if level != 101 {
		t.Errorf("Expected fill level 101, got %f", level)
	}
	if len(gaps) != 1 {
		t.Fatalf("Expected 1 gap, got %d", len(gaps))
	}
	if gaps[0].Direction != GapUp {
		t.Errorf("Expected GAP_UP, got %s", gaps[0].Direction)
	}
}

// TestDetectRecentGapsFilled checks that a later candle trading back
// through the gap boundary removes it.
func TestDetectRecentGapsFilled(t *testing.T) {
	daily := []binance.Kline{
		rangeCandle(100, 101, 99, 100),
		rangeCandle(100, 101, 99, 100),
		rangeCandle(100, 101, 99, 100),
		rangeCandle(100, 101, 99, 100),
		rangeCandle(103, 105, 103, 104),
		rangeCandle(104, 104.5, 100.5, 102), // low 100.5 <= 101: filled
	}

	signal, _, gaps := DetectRecentGaps(daily, 105, 0.3, 7)
	if signal != GapNone {
		t.Errorf("Expected NO_GAP after fill, got %s", signal)
	}
	if len(gaps) != 0 {
		t.Errorf("Expected no gaps, got %d", len(gaps))
	}
}

// TestDetectRecentGapsLong checks the mirror case: a gap down above
// the current price yields a long toward the previous low.
func TestDetectRecentGapsLong(t *testing.T) {
	daily := []binance.Kline{
		rangeCandle(100, 101, 99, 100),
		rangeCandle(100, 101, 99, 100),
		rangeCandle(100, 101, 99, 100),
		rangeCandle(100, 101, 99, 100), // low 99 = gap top
		rangeCandle(96, 97, 95, 96),    // high 97 < prev low 99
		rangeCandle(96, 97.5, 95, 96.5),
	}

	signal, level, _ := DetectRecentGaps(daily, 96.5, 0.3, 7)
	if signal != GapLongToFill {
		t.Fatalf("Expected LONG_TO_FILL, got %s", signal)
	}
	if level != 99 {
		t.Errorf("Expected fill level 99, got %f", level)
	}
}

// TestFindAllGapsInventory checks midpoint levels, strength buckets
// and the above/below split.
func TestFindAllGapsInventory(t *testing.T) {
	daily := []binance.Kline{
		rangeCandle(100, 101, 99, 100),
		rangeCandle(100, 101, 99, 100),
		rangeCandle(103, 105, 103, 104), // gap 101..103, mid 102, 1.98%
		rangeCandle(104, 106, 103.5, 105),
		rangeCandle(105, 106, 104, 105),
	}

	above, below := FindAllGaps(daily, 105, 120)
	if len(above) != 0 {
		t.Errorf("Expected no gaps above, got %d", len(above))
	}
	if len(below) != 1 {
		t.Fatalf("Expected 1 gap below, got %d", len(below))
	}
	g := below[0]
	if g.Level != 102 {
		t.Errorf("Expected midpoint level 102, got %f", g.Level)
	}
	if g.Strength != GapMedium {
		t.Errorf("Expected MEDIUM strength at 1.98%%, got %s", g.Strength)
	}

	// The same inventory from below the gap puts it in the above list.
	above, below = FindAllGaps(daily, 100.5, 120)
	if len(above) != 1 || len(below) != 0 {
		t.Errorf("Expected 1 above / 0 below, got %d / %d", len(above), len(below))
	}
}

// TestFindAllGapsFillRemoves checks that a candle trading back through
// the gap boundary removes it from the inventory.
func TestFindAllGapsFillRemoves(t *testing.T) {
	daily := []binance.Kline{
		rangeCandle(100, 101, 99, 100),
		rangeCandle(100, 101, 99, 100),
		rangeCandle(103, 105, 103, 104),
		rangeCandle(104, 104.5, 101, 102), // low reaches the gap bottom
	}

	above, below := FindAllGaps(daily, 105, 120)
	if len(above)+len(below) != 0 {
		t.Errorf("Expected empty inventory after fill, got %d gaps", len(above)+len(below))
	}
}

// TestFindAllGapsStrengthBuckets checks the STRONG bucket boundary.
func TestFindAllGapsStrengthBuckets(t *testing.T) {
	daily := []binance.Kline{
		rangeCandle(100, 100, 98, 100),
		rangeCandle(100, 100, 99, 100),
		rangeCandle(104, 105, 103, 104), // gap 100..103: 3%
		rangeCandle(104, 105, 103.5, 104),
	}

	_, below := FindAllGaps(daily, 105, 120)
	if len(below) != 1 {
		t.Fatalf("Expected 1 gap, got %d", len(below))
	}
	if below[0].Strength != GapStrong {
		t.Errorf("Expected STRONG strength at 3%%, got %s", below[0].Strength)
	}
}
