/*
NAME
  correlation.go

DESCRIPTION
  correlation.go implements Correlation: a running estimate of left/right
  stereo correlation, low-passed and decayed by two single-pole IIR
  filters so that recent samples dominate. Adapted from Fons Adriaensen's
  Zita-mu1, via original_source/correlation_measurer.cpp.

AUTHOR
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package loudness implements the per-bus and master metering blocks:
// stereo correlation, peak history and EBU R128 loudness.
package loudness

import "math"

// Correlation estimates Pearson correlation between the left and right
// channels of a stereo stream: +1 is mono, 0 is uncorrelated, negative
// values indicate inverted phase.
type Correlation struct {
	w1, w2 float64

	zl, zr             float64
	zll, zlr, zrr      float64
}

// NewCorrelation creates a Correlation running at sampleRate, low-passing
// the input at lowpassCutoffHz before correlating and weighting the
// running product/power estimates with an IIR falloff of
// falloffSeconds.
func NewCorrelation(sampleRate float64, lowpassCutoffHz, falloffSeconds float64) *Correlation {
	return &Correlation{
		w1: 2.0 * math.Pi * lowpassCutoffHz / sampleRate,
		w2: 1.0 / (falloffSeconds * sampleRate),
	}
}

// Reset clears all filter state back to silence.
func (c *Correlation) Reset() {
	c.zl, c.zr, c.zll, c.zlr, c.zrr = 0, 0, 0, 0, 0
}

// ProcessSamples folds n interleaved stereo frames into the running
// estimate.
func (c *Correlation) ProcessSamples(samples []float64, n int) {
	l, r := c.zl, c.zr
	ll, lr, rr := c.zll, c.zlr, c.zrr
	w1, w2 := c.w1, c.w2

	for i := 0; i < n; i++ {
		// The 1e-15 epsilon avoids the filters sticking at a denormal.
		l += w1*(samples[i*2+0]-l) + 1e-15
		r += w1*(samples[i*2+1]-r) + 1e-15
		lr += w2 * (l*r - lr)
		ll += w2 * (l*l - ll)
		rr += w2 * (r*r - rr)
	}

	c.zl, c.zr, c.zll, c.zlr, c.zrr = l, r, ll, lr, rr
}

// Correlation returns the current correlation estimate in [-1, 1].
func (c *Correlation) Correlation() float64 {
	// The 1e-12 epsilon avoids division by zero; zll and zrr are always
	// non-negative so this cannot flip the sign.
	return c.zlr / math.Sqrt(c.zll*c.zrr+1e-12)
}
