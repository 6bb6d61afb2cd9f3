/*
NAME
  kernel.go

DESCRIPTION
  kernel.go builds the windowed-sinc interpolation kernel used by the
  variable-ratio resampler inside Queue, the same windowed-sinc
  construction style codec/pcm.newLoHiFilter uses for its FIR filters,
  just evaluated at an arbitrary fractional offset instead of a fixed
  cutoff.

AUTHOR
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package resample

import (
	"math"

	"github.com/mjibson/go-dsp/window"
)

// kernelRadius is the number of taps on either side of the interpolation
// point, giving a kernel of 2*kernelRadius taps.
const kernelRadius = 16

// windowEnvelope is a fixed taper applied to the sinc kernel so that it
// decays to zero at its edges instead of ringing; computed once.
var windowEnvelope = window.FlatTop(2 * kernelRadius)

// sincKernel fills weights[0:2*kernelRadius] with the windowed-sinc
// interpolation weights for reading at fractional offset frac (0<=frac<1)
// from an integer sample index, normalized in place to sum to 1 so that
// the filter has unity DC gain regardless of frac.
func sincKernel(frac float64, weights []float64) {
	sum := 0.0
	for t := 0; t < 2*kernelRadius; t++ {
		// Tap t corresponds to input offset (t - kernelRadius + 1) from
		// the integer base index; the sample we want sits at "frac" past
		// the base index.
		x := float64(t-kernelRadius+1) - frac
		w := sinc(x) * windowEnvelope[t]
		weights[t] = w
		sum += w
	}
	if sum != 0 {
		inv := 1.0 / sum
		for t := range weights {
			weights[t] *= inv
		}
	}
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}
