/*
NAME
  filter.go

DESCRIPTION
  filter.go implements a cascaded biquad IIR filter (low-pass, high-pass
  and shelf variants) using the coefficient formulas from the RBJ Audio
  EQ Cookbook, and a StereoFilter wrapper that runs one instance per
  channel. Used for the bus locut (high-pass) and EQ (shelf) stages.

AUTHOR
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package dsp implements the sample-accurate signal processing blocks
// used by the bus DSP chain: biquad filters and the stereo envelope
// compressor.
package dsp

import "math"

// Type selects the biquad's response shape.
type Type int

const (
	None Type = iota
	LowPass
	HighPass
	LowShelf
	HighShelf
)

// MaxOrder bounds how many cascaded biquad sections a Filter may run.
const MaxOrder int = 4

// Filter is a cascaded biquad IIR filter, applied in-place to a mono
// sample stream. It holds MaxOrder independent sets of feedback
// state so that an order-N filter behaves as N cascaded biquads sharing
// one coefficient set (matching original_source/filter.cpp).
type Filter struct {
	typ   Type
	order int

	omega     float64 // 2*pi*cutoff/sampleRate, in [0, pi).
	resonance float64
	gainA     float64 // 10^(dbGain/40), shelf/peaking gain.

	b0, b1, b2, a1, a2 float64

	feedback [MaxOrder]struct{ d0, d1 float64 }
}

// Init (re)configures the filter's type and cascade order, clearing its
// feedback state.
func (f *Filter) Init(typ Type, order int) {
	f.typ = typ
	f.order = order
	if typ == None {
		f.order = 0
	}
	if f.order == 0 {
		f.typ = None
	}
	for i := range f.feedback {
		f.feedback[i] = struct{ d0, d1 float64 }{}
	}
}

// Type reports the filter's current response shape.
func (f *Filter) Type() Type { return f.typ }

// update recomputes the biquad coefficients from omega/resonance/gainA,
// exactly following the RBJ cookbook formulas used in
// original_source/filter.cpp.
func (f *Filter) update() {
	cutoff := f.omega
	if cutoff > math.Pi {
		cutoff = math.Pi
	}
	if cutoff < 0.001 {
		cutoff = 0.001
	}
	sn, cs := math.Sin(cutoff), math.Cos(cutoff)

	resonance := f.resonance
	if resonance <= 0 {
		resonance = 0.001
	}
	realResonance := resonance
	switch f.order {
	case 0, 1:
	case 2:
		realResonance = math.Sqrt(resonance)
	case 3:
		realResonance = math.Cbrt(resonance)
	case 4:
		realResonance = math.Sqrt(math.Sqrt(resonance))
	default:
		realResonance = math.Pow(resonance, 1.0/float64(f.order))
	}

	alpha := sn / (2 * realResonance)
	a0 := 1 + alpha
	a1 := -2 * cs
	a2 := 1 - alpha
	var b0, b1, b2 float64
	A := f.gainA
	sqrtA := math.Sqrt(A)

	switch f.typ {
	case None:
		a0, b0 = 1, 1
		a1, a2, b1, b2 = 0, 0, 0, 0
	case LowPass:
		b0 = (1 - cs) * 0.5
		b1 = 1 - cs
		b2 = b0
	case HighPass:
		b0 = (1 + cs) * 0.5
		b1 = -(1 + cs)
		b2 = b0
	case LowShelf:
		b0 = A * ((A + 1) - (A-1)*cs + 2*sqrtA*alpha)
		b1 = 2 * A * ((A - 1) - (A+1)*cs)
		b2 = A * ((A + 1) - (A-1)*cs - 2*sqrtA*alpha)
		a0 = (A + 1) + (A-1)*cs + 2*sqrtA*alpha
		a1 = -2 * ((A - 1) + (A+1)*cs)
		a2 = (A + 1) + (A-1)*cs - 2*sqrtA*alpha
	case HighShelf:
		b0 = A * ((A + 1) + (A-1)*cs + 2*sqrtA*alpha)
		b1 = -2 * A * ((A - 1) + (A+1)*cs)
		b2 = A * ((A + 1) + (A-1)*cs - 2*sqrtA*alpha)
		a0 = (A + 1) - (A-1)*cs + 2*sqrtA*alpha
		a1 = 2 * ((A - 1) - (A+1)*cs)
		a2 = (A + 1) - (A-1)*cs - 2*sqrtA*alpha
	}

	invA0 := 1.0 / a0
	f.b0, f.b1, f.b2 = b0*invA0, b1*invA0, b2*invA0
	f.a1, f.a2 = a1*invA0, a2*invA0
}

// RenderChunk applies the filter in place to n mono samples with the
// given stride (2 for one channel of interleaved stereo), using the
// coefficients computed by the last update(). It runs the cascade
// f.order times.
func (f *Filter) RenderChunk(buf []float64, n, stride int) {
	for j := 0; j < f.order; j++ {
		d0, d1 := f.feedback[j].d0, f.feedback[j].d1
		idx := 0
		for i := 0; i < n; i++ {
			in := buf[idx]
			out := f.b0*in + d0
			buf[idx] = out
			d0 = f.b1*in - f.a1*out + d1
			d1 = f.b2*in - f.a2*out
			idx += stride
		}
		f.feedback[j].d0 = flushDenormal(d0)
		f.feedback[j].d1 = flushDenormal(d1)
	}
}

// Render sets cutoff/resonance/gain, recomputes coefficients and filters
// n mono samples in place with stride 1. cutoff is in [0,pi), resonance
// is the biquad's Q-like parameter, of which each of the order cascaded
// sections uses the order-th root (the bus locut passes 0.5 to an
// order-1 high-pass), dbGainDiv40 is db_gain/40 for shelf filters.
func (f *Filter) Render(buf []float64, n int, cutoff, resonance, dbGainDiv40 float64) {
	if f.order == 0 {
		return
	}
	f.omega = cutoff
	f.resonance = resonance
	f.gainA = math.Pow(10, dbGainDiv40)
	f.update()
	f.RenderChunk(buf, n, 1)
}

// flushDenormal zeroes values too small to matter, avoiding the
// performance cliff of denormalized floating point on the audio thread.
func flushDenormal(x float64) float64 {
	if math.Abs(x) < 1e-15 {
		return 0
	}
	return x
}

// StereoFilter runs one Filter per channel over interleaved stereo data.
type StereoFilter struct {
	ch [2]Filter
}

// Init (re)configures both channels' filter type and order.
func (s *StereoFilter) Init(typ Type, order int) {
	s.ch[0].Init(typ, order)
	s.ch[1].Init(typ, order)
}

// Type reports the filter's current response shape.
func (s *StereoFilter) Type() Type { return s.ch[0].typ }

// Render filters n interleaved stereo frames (2n float64s) in place.
func (s *StereoFilter) Render(inout []float64, n int, cutoff, resonance, dbGainDiv40 float64) {
	if s.ch[0].typ == None || s.ch[0].order == 0 {
		return
	}
	for i := range s.ch {
		s.ch[i].omega = cutoff
		s.ch[i].resonance = resonance
		s.ch[i].gainA = math.Pow(10, dbGainDiv40)
		s.ch[i].update()
		s.ch[i].RenderChunk(inout[i:], n, 2)
	}
}
