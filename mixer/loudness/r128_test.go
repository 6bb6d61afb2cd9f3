package loudness

import (
	"math"
	"testing"
)

func TestR128SilenceIsNegativeInfinity(t *testing.T) {
	r := NewR128(48000)
	r.IntegrStart()
	n := int(48000 * 0.5)
	silence := make([]float64, n*2)
	r.Process(silence, n)

	if !math.IsInf(r.Momentary(), -1) {
		t.Fatalf("Momentary() of silence should be -Inf, got %v", r.Momentary())
	}
	if !math.IsInf(r.IntegratedLoudness(), -1) {
		t.Fatalf("IntegratedLoudness() of silence should be -Inf (absolute-gated out), got %v", r.IntegratedLoudness())
	}
}

func TestR128LouderSignalReportsHigherMomentary(t *testing.T) {
	quiet := NewR128(48000)
	loud := NewR128(48000)
	n := int(48000 * 0.5)

	quietBuf := toneBuffer(n, 0.01)
	loudBuf := toneBuffer(n, 0.5)

	quiet.Process(quietBuf, n)
	loud.Process(loudBuf, n)

	if loud.Momentary() <= quiet.Momentary() {
		t.Fatalf("louder signal should report higher momentary loudness: loud=%v quiet=%v", loud.Momentary(), quiet.Momentary())
	}
}

func TestR128IntegratedLoudnessStableOnConstantTone(t *testing.T) {
	r := NewR128(48000)
	r.IntegrStart()
	n := int(48000 * 2.0)
	buf := toneBuffer(n, 0.2)
	r.Process(buf, n)

	integrated := r.IntegratedLoudness()
	if math.IsInf(integrated, -1) {
		t.Fatalf("a sustained tone above the absolute gate should produce a finite integrated loudness")
	}
	momentary := r.Momentary()
	if math.Abs(integrated-momentary) > 3.0 {
		t.Fatalf("integrated and momentary loudness of a constant tone should be close: integrated=%v momentary=%v", integrated, momentary)
	}
}

func TestR128LoudnessRangeZeroForConstantTone(t *testing.T) {
	r := NewR128(48000)
	r.IntegrStart()
	n := int(48000 * 2.0)
	buf := toneBuffer(n, 0.3)
	r.Process(buf, n)

	lra := r.LoudnessRange()
	if lra > 1.0 {
		t.Fatalf("a constant-level tone should have a near-zero loudness range, got %v", lra)
	}
}

func TestR128ResetClearsHistory(t *testing.T) {
	r := NewR128(48000)
	r.IntegrStart()
	n := int(48000 * 0.5)
	buf := toneBuffer(n, 0.3)
	r.Process(buf, n)
	if math.IsInf(r.Momentary(), -1) {
		t.Fatalf("expected a finite momentary reading before Reset")
	}

	r.Reset()
	if !math.IsInf(r.Momentary(), -1) {
		t.Fatalf("Momentary() after Reset() should be -Inf, got %v", r.Momentary())
	}
}

func toneBuffer(n int, amplitude float64) []float64 {
	buf := make([]float64, n*2)
	for i := 0; i < n; i++ {
		v := amplitude * math.Sin(2*math.Pi*1000.0*float64(i)/48000)
		buf[i*2+0] = v
		buf[i*2+1] = v
	}
	return buf
}
