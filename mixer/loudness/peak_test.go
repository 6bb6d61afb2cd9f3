package loudness

import (
	"math"
	"testing"
)

func TestFindPeak(t *testing.T) {
	cases := []struct {
		name string
		buf  []float64
		want float64
	}{
		{"empty", nil, 0},
		{"positive peak", []float64{0.1, -0.2, 0.9, 0.3}, 0.9},
		{"negative peak", []float64{0.1, -0.95, 0.2}, 0.95},
		{"all zero", []float64{0, 0, 0}, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := FindPeak(c.buf); got != c.want {
				t.Fatalf("FindPeak(%v) = %v, want %v", c.buf, got, c.want)
			}
		})
	}
}

func TestPeakHistoryHoldsBeforeFalloff(t *testing.T) {
	var h PeakHistory
	h.Update(1.0, 0.1)
	h.Update(0.1, 0.1)
	if h.CurrentPeak != 1.0 {
		t.Fatalf("peak should still be held immediately after the hit: got %v", h.CurrentPeak)
	}
}

func TestPeakHistoryFallsOffAfterHold(t *testing.T) {
	var h PeakHistory
	h.Update(1.0, 0.01)
	// Advance well past holdSeconds with silence.
	for i := 0; i < 200; i++ {
		h.Update(0.0, 0.01)
	}
	if h.CurrentPeak >= 1.0 {
		t.Fatalf("peak should have fallen off after holdSeconds elapsed, got %v", h.CurrentPeak)
	}
	if h.CurrentPeak < 0 {
		t.Fatalf("peak should never go negative, got %v", h.CurrentPeak)
	}
}

func TestPeakHistoryHistoricNeverFallsOff(t *testing.T) {
	var h PeakHistory
	h.Update(0.8, 0.01)
	for i := 0; i < 200; i++ {
		h.Update(0.0, 0.01)
	}
	if h.HistoricPeak != 0.8 {
		t.Fatalf("HistoricPeak should never fall off, got %v", h.HistoricPeak)
	}
}

func TestPeakHistoryNewPeakResetsHold(t *testing.T) {
	var h PeakHistory
	h.Update(0.5, 0.6) // First peak; its hold starts now.
	h.Update(0.9, 0.01)
	if h.CurrentPeak != 0.9 {
		t.Fatalf("a new, higher peak should immediately become CurrentPeak, got %v", h.CurrentPeak)
	}
}

func TestPeakHistoryReset(t *testing.T) {
	var h PeakHistory
	h.Update(0.9, 0.01)
	h.Reset()
	if h.CurrentPeak != 0 || h.HistoricPeak != 0 || h.CurrentLevel != 0 {
		t.Fatalf("Reset() should zero all fields, got %+v", h)
	}
}

func TestDBToLinearRoundTrip(t *testing.T) {
	for _, db := range []float64{-60, -20, -6, 0, 6} {
		linear := dbToLinear(db)
		got := 20 * math.Log10(linear)
		if math.Abs(got-db) > 1e-9 {
			t.Fatalf("dbToLinear(%v) round trip mismatch: got %v dB back", db, got)
		}
	}
}
