/*
NAME
  r128.go

DESCRIPTION
  r128.go implements R128: a streaming EBU R 128 / ITU-R BS.1770 loudness
  meter producing momentary, short-term, integrated and loudness-range
  figures from K-weighted stereo audio. The gating and windowing follow
  BS.1770-4 and EBU Tech 3342; the K-weighting filter itself is built
  from the two-stage cascade (high shelf + high pass) that
  original_source/audio_mixer.cpp wires up via its Ebu_r128_proc
  dependency, reimplemented here on top of the bus EQ's own biquad
  filter instead of pulling in a third library for it.

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

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/ausocean/audiomixer/mixer/dsp"
)

const (
	absoluteGateLUFS = -70.0
	relativeGateLU   = -10.0
	lraGateLU        = -20.0
	lraLowPercentile  = 10.0
	lraHighPercentile = 95.0

	partialSeconds = 0.1 // Sub-block width accumulated before folding into a gating block.
	momentarySeconds = 0.4
	shortTermSeconds = 3.0
)

// partial is one 100ms sub-block's accumulated, K-weighted mean square
// energy per channel.
type partial struct {
	sumSqL, sumSqR float64
	n              int
}

func (p partial) meanSquare() float64 {
	if p.n == 0 {
		return 0
	}
	return (p.sumSqL + p.sumSqR) / float64(p.n)
}

// R128 accumulates K-weighted loudness statistics over an audio stream.
// It is not safe for concurrent use; callers serialize access.
type R128 struct {
	sampleRate float64

	preFilter   dsp.StereoFilter // High shelf, ~+4dB above ~1.5kHz (head effect).
	highpass    dsp.StereoFilter // High pass at ~38Hz (RLB weighting).

	partials []partial // Completed 100ms sub-blocks, oldest first.
	cur      partial   // Sub-block currently being accumulated.

	gatingBlocks []float64 // Loudness (LUFS) of each 400ms, 75%-overlapped block.

	integrating bool
}

// NewR128 constructs a meter for stereo audio at sampleRate.
func NewR128(sampleRate float64) *R128 {
	r := &R128{sampleRate: sampleRate}
	r.preFilter.Init(dsp.HighShelf, 1)
	r.highpass.Init(dsp.HighPass, 1)
	return r
}

// Reset clears all history and filter state.
func (r *R128) Reset() {
	r.preFilter.Init(dsp.HighShelf, 1)
	r.highpass.Init(dsp.HighPass, 1)
	r.partials = nil
	r.cur = partial{}
	r.gatingBlocks = nil
}

// IntegrStart begins (or restarts) accumulation for an integrated
// loudness measurement, without disturbing momentary/short-term state.
func (r *R128) IntegrStart() {
	r.integrating = true
	r.gatingBlocks = r.gatingBlocks[:0]
}

// Process folds n interleaved stereo frames into the meter.
func (r *R128) Process(samples []float64, n int) {
	weighted := make([]float64, n*2)
	copy(weighted, samples[:n*2])

	// Stage B: high shelf, +4dB above ~1.5kHz, approximating head diffraction.
	cutoff := 2 * math.Pi * 1500.0 / r.sampleRate
	r.preFilter.Render(weighted, n, cutoff, 0.7071, 4.0/40.0)
	// Stage A: high pass at ~38Hz, the RLB weighting curve.
	cutoffHP := 2 * math.Pi * 38.0 / r.sampleRate
	r.highpass.Render(weighted, n, cutoffHP, 0.5, 0)

	partialLen := int(partialSeconds * r.sampleRate)
	if partialLen < 1 {
		partialLen = 1
	}

	for i := 0; i < n; i++ {
		l, rr := weighted[i*2+0], weighted[i*2+1]
		r.cur.sumSqL += l * l
		r.cur.sumSqR += rr * rr
		r.cur.n++
		if r.cur.n >= partialLen {
			r.partials = append(r.partials, r.cur)
			r.cur = partial{}
			r.foldGatingBlock()
		}
	}
}

// foldGatingBlock computes one 400ms gating block once four 100ms
// partials are available, appending its loudness to gatingBlocks.
func (r *R128) foldGatingBlock() {
	const partialsPerBlock = int(momentarySeconds / partialSeconds)
	if len(r.partials) < partialsPerBlock {
		return
	}
	window := r.partials[len(r.partials)-partialsPerBlock:]
	loud := blockLoudness(window)
	if r.integrating {
		r.gatingBlocks = append(r.gatingBlocks, loud)
	}
}

func blockLoudness(window []partial) float64 {
	var sum float64
	var n int
	for _, p := range window {
		sum += p.sumSqL + p.sumSqR
		n += p.n
	}
	if n == 0 {
		return math.Inf(-1)
	}
	meanSq := sum / float64(n)
	return meanSquareToLUFS(meanSq)
}

func meanSquareToLUFS(meanSq float64) float64 {
	if meanSq <= 0 {
		return math.Inf(-1)
	}
	return -0.691 + 10*math.Log10(meanSq)
}

// Momentary returns the loudness of the most recently completed 400ms
// gating block, in LUFS.
func (r *R128) Momentary() float64 {
	const partialsPerBlock = int(momentarySeconds / partialSeconds)
	if len(r.partials) < partialsPerBlock {
		return math.Inf(-1)
	}
	return blockLoudness(r.partials[len(r.partials)-partialsPerBlock:])
}

// ShortTerm returns the loudness of the most recent 3 second window, in
// LUFS.
func (r *R128) ShortTerm() float64 {
	const partialsPerBlock = int(shortTermSeconds / partialSeconds)
	if len(r.partials) < partialsPerBlock {
		return math.Inf(-1)
	}
	return blockLoudness(r.partials[len(r.partials)-partialsPerBlock:])
}

// IntegratedLoudness applies BS.1770's two-stage gating to every 400ms
// block seen since IntegrStart and returns the result in LUFS.
func (r *R128) IntegratedLoudness() float64 {
	above := filterAbove(r.gatingBlocks, absoluteGateLUFS)
	if len(above) == 0 {
		return math.Inf(-1)
	}
	relativeGate := meanLUFS(above) + relativeGateLU
	gated := filterAbove(above, relativeGate)
	if len(gated) == 0 {
		return math.Inf(-1)
	}
	return meanLUFS(gated)
}

// LoudnessRange implements EBU Tech 3342's gated loudness range over the
// same accumulated gating blocks, treating each 400ms block as one
// sample of the distribution (a simplified version of a dedicated
// 3s/100ms short-term series, acceptable for a live on-screen meter).
func (r *R128) LoudnessRange() float64 {
	above := filterAbove(r.gatingBlocks, absoluteGateLUFS)
	if len(above) == 0 {
		return 0
	}
	relativeGate := meanLUFS(above) + lraGateLU
	gated := filterAbove(above, relativeGate)
	if len(gated) < 2 {
		return 0
	}
	sorted := append([]float64(nil), gated...)
	sort.Float64s(sorted)
	lo := stat.Quantile(lraLowPercentile/100.0, stat.LinInterp, sorted, nil)
	hi := stat.Quantile(lraHighPercentile/100.0, stat.LinInterp, sorted, nil)
	return hi - lo
}

func filterAbove(values []float64, threshold float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if v > threshold {
			out = append(out, v)
		}
	}
	return out
}

// meanLUFS averages a set of block loudnesses in the power domain, as
// BS.1770 requires (you cannot average dB values directly).
func meanLUFS(blocksLUFS []float64) float64 {
	power := make([]float64, len(blocksLUFS))
	for i, l := range blocksLUFS {
		power[i] = math.Pow(10, (l+0.691)/10)
	}
	return meanSquareToLUFS(stat.Mean(power, nil))
}
