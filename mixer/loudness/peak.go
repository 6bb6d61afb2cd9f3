/*
NAME
  peak.go

DESCRIPTION
  peak.go implements PeakHistory: a per-channel digital peak meter with a
  hold time followed by a dB/sec falloff, plus FindPeak, a plain
  peak-of-buffer scan. Constants and behaviour are carried over from
  Fons Adriaensen's zita-mu1 via original_source/audio_mixer.cpp's
  measure_bus_levels.

AUTHOR
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package loudness

import "math"

// holdSeconds is how long a new peak is held at full level before it
// starts to fall off.
const holdSeconds = 0.5

// falloffDBPerSec is the rate at which a held peak decays once
// holdSeconds has elapsed.
const falloffDBPerSec = 15.0

// PeakHistory tracks one channel's instantaneous level, a held/falling
// peak indicator, and the all-time historic peak since the last reset.
type PeakHistory struct {
	CurrentLevel float64 // Peak of the last frame processed (linear).
	HistoricPeak float64 // Highest peak since last reset; never falls off.
	CurrentPeak  float64 // Current value of the peak meter (with hold+falloff).

	lastPeak   float64
	ageSeconds float64
}

// Update folds in one frame's peak level (linear amplitude, already
// scaled by fader volume) captured over a block lasting blockSeconds.
func (h *PeakHistory) Update(peakLevel float64, blockSeconds float64) {
	h.HistoricPeak = math.Max(h.HistoricPeak, peakLevel)

	var current float64
	if h.ageSeconds < holdSeconds {
		current = h.lastPeak
	} else {
		current = h.lastPeak * dbToLinear(-falloffDBPerSec*(h.ageSeconds-holdSeconds))
	}

	if peakLevel > current {
		h.lastPeak = peakLevel
		h.ageSeconds = 0
		current = peakLevel
	} else {
		h.ageSeconds += blockSeconds
	}

	h.CurrentLevel = peakLevel
	h.CurrentPeak = current
}

// Reset clears the meter back to silence.
func (h *PeakHistory) Reset() {
	*h = PeakHistory{}
}

// FindPeak returns the largest absolute sample value in buf.
func FindPeak(buf []float64) float64 {
	var peak float64
	for _, s := range buf {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	return peak
}

func dbToLinear(db float64) float64 {
	return math.Pow(10, db/20.0)
}
