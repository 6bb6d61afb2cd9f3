/*
NAME
  compressor.go

DESCRIPTION
  compressor.go implements StereoCompressor: a sample-accurate envelope
  follower shared across both channels (so stereo imaging is preserved)
  driving a simple downward-compression gain curve. Used for the bus
  gain-staging compressor, the bus compressor, and the master limiter.

AUTHOR
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package dsp

import "math"

// StereoCompressor is a feed-forward compressor with independent
// attack/release times and no lookahead. The envelope (peak) detector is
// shared between channels.
type StereoCompressor struct {
	sampleRate float64
	peakLevel  float64
	comprLevel float64
	scale      float64
}

// NewStereoCompressor creates a compressor running at the given sample
// rate, reset to its initial state.
func NewStereoCompressor(sampleRate float64) *StereoCompressor {
	c := &StereoCompressor{sampleRate: sampleRate}
	c.Reset()
	return c
}

// Reset returns the compressor to its power-on envelope state.
func (c *StereoCompressor) Reset() {
	c.peakLevel = 0.1
	c.comprLevel = 0.1
	c.scale = 0.0
}

// Level returns the last estimated envelope level (after attack/release).
func (c *StereoCompressor) Level() float64 { return c.comprLevel }

// Attenuation returns the last gain factor applied by the knee (e.g.
// 0.2 for 5x compression); does not include makeup gain.
func (c *StereoCompressor) Attenuation() float64 { return c.scale }

// Process compresses buf (interleaved stereo, num_samples frames) in
// place. Attack/release times are in seconds. A ratio above 63 is
// treated as an infinite (brick-wall) ratio.
func (c *StereoCompressor) Process(buf []float64, numSamples int, threshold, ratio, attackTime, releaseTime, makeupGain float64) {
	attackIncrement := math.Pow(2, 1.0/(attackTime*c.sampleRate+1))
	if attackTime == 0 {
		attackIncrement = 100000 // Instant attack.
	}
	releaseIncrement := math.Pow(2, -1.0/(releaseTime*c.sampleRate+1))
	peakIncrement := math.Pow(2, -1.0/(0.003*c.sampleRate+1))

	invRatioMinusOne := 1.0/ratio - 1.0
	if ratio > 63 {
		invRatioMinusOne = -1.0
	}
	invThreshold := 1.0 / threshold

	if invRatioMinusOne >= 0 {
		// Ratio <= 1: no compression, just makeup gain.
		for i := 0; i < numSamples*2; i++ {
			buf[i] *= makeupGain
		}
		return
	}

	peakLevel := c.peakLevel
	comprLevel := c.comprLevel

	for i := 0; i < numSamples; i++ {
		l := math.Abs(buf[i*2+0])
		r := math.Abs(buf[i*2+1])
		if l > peakLevel {
			peakLevel = l
		}
		if r > peakLevel {
			peakLevel = r
		}

		if peakLevel > comprLevel {
			comprLevel = math.Min(comprLevel*attackIncrement, peakLevel)
		} else {
			comprLevel = math.Max(comprLevel*releaseIncrement, 0.0001)
		}

		gain := compressorKnee(comprLevel, threshold, invThreshold, invRatioMinusOne, makeupGain)

		buf[i*2+0] *= gain
		buf[i*2+1] *= gain

		peakLevel = math.Max(peakLevel*peakIncrement, 0.0001)
	}

	c.scale = compressorKnee(comprLevel, threshold, invThreshold, invRatioMinusOne, 1.0)
	c.peakLevel = peakLevel
	c.comprLevel = comprLevel
}

// compressorKnee evaluates the compression curve: unity gain below
// threshold, (x/threshold)^(1/ratio - 1) above it, scaled by postgain.
func compressorKnee(x, threshold, invThreshold, invRatioMinusOne, postgain float64) float64 {
	if x > threshold {
		return postgain * math.Pow(x*invThreshold, invRatioMinusOne)
	}
	return postgain
}
