/*
NAME
  queue.go

DESCRIPTION
  queue.go implements ResamplingQueue (exported as Queue): a per-device
  variable-rate resampler that absorbs irregularly-arriving input chunks
  and produces a steady stream of output frames locked to a reference
  clock, using a PLL-style loop filter to track queueing delay. Based on
  Fons Adriaensen's "Controlling adaptive resampling"
  (http://kokkinizita.linuxaudio.org/papers/adapt-resamp.pdf), as adapted
  by original_source/resampling_queue.cpp.

AUTHOR
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package resample implements the per-device resampling queue that
// decouples capture-card cadence from the mixer's output cadence.
package resample

import (
	"math"
	"time"
)

// RateAdjustmentPolicy controls whether a chunk of input/output
// influences the rate estimator.
type RateAdjustmentPolicy int

const (
	// AdjustRate is the normal production policy.
	AdjustRate RateAdjustmentPolicy = iota
	// DoNotAdjustRate is used when the timestamp attached to this chunk
	// is not trustworthy, e.g. synthetic silence.
	DoNotAdjustRate
)

// observation is one timestamped count of cumulative input frames
// received, equivalent to a0/a1 (t_a0/t_a1, k_a0/k_a1) in the paper.
type observation struct {
	ts          time.Time
	received    int64
	goodSample  bool
}

// Queue is a per-device resampling queue: ADJUST_RATE input from
// add_input_samples is absorbed into an internal buffer; output frames
// are produced from it by get_output_samples at exactly the requested
// count and rate, regardless of how the input actually arrived.
//
// A Queue is not safe for concurrent use; the mixer serializes access to
// each device's queue under its own mutex.
type Queue struct {
	cardNum                        uint32
	freqIn, freqOut                float64
	numChannels                    int
	ratio                          float64 // freqOut / freqIn.
	expectedDelay                  float64 // In output-rate samples.

	firstOutput bool

	a0, a1 observation

	currentEstimatedFreqIn float64

	totalConsumed float64 // In input frames, fractional.

	// Loop filter memory.
	z1, z2, z3 float64
	rcorr      float64

	// buf holds input frames not yet consumed by the resampler,
	// interleaved by channel. bufBase is the logical frame index (in the
	// same coordinate space as framePos) of buf's first frame; frames
	// before bufBase have already been read or were never received
	// (treated as the priming silence below).
	buf     []float64
	bufBase float64

	// framePos is the current fractional read position into the logical
	// input stream, in the same coordinate space as bufBase.
	framePos float64
}

// New constructs a Queue. cardNum is used only for diagnostics.
// expectedDelaySeconds is the target queueing delay the loop filter
// steers toward.
func New(cardNum uint32, freqIn, freqOut uint32, numChannels int, expectedDelaySeconds float64) *Queue {
	q := &Queue{
		cardNum:                uint32(cardNum),
		freqIn:                 float64(freqIn),
		freqOut:                float64(freqOut),
		numChannels:            numChannels,
		ratio:                  float64(freqOut) / float64(freqIn),
		expectedDelay:          expectedDelaySeconds * float64(freqOut),
		currentEstimatedFreqIn: float64(freqIn),
		rcorr:                  1.0,
		firstOutput:            true,
	}
	// Prime the resampler with kernelRadius frames of leading silence so
	// that the very first output frame can already be produced without
	// an extra startup delay (mirrors the original's vresampler priming).
	q.buf = make([]float64, kernelRadius*numChannels)
	q.bufBase = -float64(kernelRadius)
	q.framePos = 0
	return q
}

// AddInputSamples appends n input frames (interleaved, numChannels per
// frame) received at wall-clock ts. If policy is DoNotAdjustRate, this
// chunk does not influence the rate estimator.
func (q *Queue) AddInputSamples(ts time.Time, samples []float64, n int, policy RateAdjustmentPolicy) {
	if n == 0 {
		return
	}
	good := policy == AdjustRate
	if good && q.a1.goodSample {
		q.a0 = q.a1
	}
	q.a1.ts = ts
	q.a1.received += int64(n)
	q.a1.goodSample = good
	if q.a0.goodSample && q.a1.goodSample {
		dt := q.a1.ts.Sub(q.a0.ts).Seconds()
		if dt > 0 {
			freq := float64(q.a1.received-q.a0.received) / dt
			freq = math.Min(freq, 1.2*q.freqIn)
			freq = math.Max(freq, 0.8*q.freqIn)
			q.currentEstimatedFreqIn = freq
		}
	}
	q.buf = append(q.buf, samples[:n*q.numChannels]...)
}

// GetOutputSamples produces exactly n output frames into out (which must
// have capacity for n*numChannels samples), locked to freqOut. It
// returns false on underrun, in which case the remaining frames of out
// are zero-filled and the loop filter is reset.
func (q *Queue) GetOutputSamples(ts time.Time, out []float64, n int, policy RateAdjustmentPolicy) bool {
	if n <= 0 {
		return true
	}
	if q.a1.received == 0 {
		// No data has ever arrived; this is not an underrun, just silence.
		zero(out, n*q.numChannels)
		return true
	}

	if ts.IsZero() {
		policy = DoNotAdjustRate
	}

	if policy == AdjustRate && (q.a0.goodSample || q.a1.goodSample) {
		base := q.a1
		if !q.a1.goodSample {
			base = q.a0
		}
		inputReceived := float64(base.received) + q.currentEstimatedFreqIn*ts.Sub(base.ts).Seconds()
		inputConsumed := q.totalConsumed + float64(n)/(q.ratio*q.rcorr)

		actualDelay := inputReceived - inputConsumed
		actualDelay += float64(len(q.buf))/float64(q.numChannels) - (q.framePos - q.bufBase) // Samples still sitting in the buffer ahead of the read cursor.
		err := actualDelay - q.expectedDelay

		if q.firstOutput {
			if err < 0 {
				padFrames := int(math.Round(-err))
				q.padFront(padFrames)
				q.totalConsumed -= float64(padFrames)
				err += float64(padFrames)
			} else if err > 0 {
				available := int(q.framePos - q.bufBase)
				dropFrames := int(math.Round(err))
				if dropFrames > available {
					dropFrames = available
				}
				q.dropFront(dropFrames)
				q.totalConsumed += float64(dropFrames)
				err -= float64(dropFrames)
			}
		}
		q.firstOutput = false

		loopBandwidthHz := 0.2
		if q.totalConsumed >= 4*q.freqIn {
			loopBandwidthHz = 0.02
		}

		w := (2.0 * math.Pi) * loopBandwidthHz * float64(n) / q.freqOut
		w0 := 1.0 - math.Exp(-20.0*w)
		w1 := w * 1.5 / float64(n) / q.ratio
		w2 := w / 1.5

		q.z1 += w0 * (w1*err - q.z1)
		q.z2 += w0 * (q.z1 - q.z2)
		q.z3 += w2 * q.z2
		rcorr := 1.0 - q.z2 - q.z3
		if rcorr > 1.05 {
			rcorr = 1.05
		}
		if rcorr < 0.95 {
			rcorr = 0.95
		}
		q.rcorr = rcorr
	}

	inputStep := 1.0 / (q.ratio * q.rcorr)
	weights := make([]float64, 2*kernelRadius)

	for i := 0; i < n; i++ {
		idx := math.Floor(q.framePos)
		frac := q.framePos - idx
		localBase := int(idx - q.bufBase)
		need := localBase + kernelRadius
		if need > len(q.buf)/q.numChannels || localBase-kernelRadius+1 < 0 {
			// Not enough input to produce the rest of this block.
			zero(out[i*q.numChannels:], (n-i)*q.numChannels)
			q.z1, q.z2, q.z3 = 0, 0, 0
			return false
		}

		sincKernel(frac, weights)
		for ch := 0; ch < q.numChannels; ch++ {
			var acc float64
			for t := 0; t < 2*kernelRadius; t++ {
				frame := localBase - kernelRadius + 1 + t
				acc += weights[t] * q.buf[frame*q.numChannels+ch]
			}
			out[i*q.numChannels+ch] = acc
		}

		q.framePos += inputStep
	}

	q.totalConsumed += float64(n) * inputStep
	q.trim()
	return true
}

// padFront inserts padFrames zero frames at the head of the logical
// input stream, used to manufacture extra delay on the very first
// output block.
func (q *Queue) padFront(padFrames int) {
	if padFrames <= 0 {
		return
	}
	pad := make([]float64, padFrames*q.numChannels)
	q.buf = append(pad, q.buf...)
	q.bufBase -= float64(padFrames)
}

// dropFront discards dropFrames frames from the head of the logical
// input stream, used to remove excess delay on the very first output
// block.
func (q *Queue) dropFront(dropFrames int) {
	if dropFrames <= 0 {
		return
	}
	q.buf = q.buf[dropFrames*q.numChannels:]
	q.bufBase += float64(dropFrames)
}

// trim drops fully-consumed frames from the head of buf to bound memory,
// keeping only what the kernel might still need to look back at.
func (q *Queue) trim() {
	drop := int(math.Floor(q.framePos)) - int(q.bufBase) - kernelRadius
	if drop <= 0 {
		return
	}
	if drop*q.numChannels > len(q.buf) {
		drop = len(q.buf) / q.numChannels
	}
	q.buf = q.buf[drop*q.numChannels:]
	q.bufBase += float64(drop)
}

// Rcorr returns the resampler's current fractional rate correction,
// always in [0.95, 1.05].
func (q *Queue) Rcorr() float64 { return q.rcorr }

func zero(s []float64, n int) {
	for i := 0; i < n && i < len(s); i++ {
		s[i] = 0
	}
}
