package mixer

import (
	"math"
	"testing"
	"time"

	"github.com/ausocean/audiomixer/mixer/mapping"
	"github.com/ausocean/audiomixer/mixer/resample"
)

type discardLogger struct{}

func (discardLogger) Debug(msg string, args ...interface{})   {}
func (discardLogger) Info(msg string, args ...interface{})    {}
func (discardLogger) Warning(msg string, args ...interface{}) {}
func (discardLogger) Error(msg string, args ...interface{})   {}
func (discardLogger) Fatal(msg string, args ...interface{})   {}

func newTestMixer() *Mixer {
	return New(discardLogger{}, 48000, 100*time.Millisecond, nil)
}

func TestNewStartsWithNoBuses(t *testing.T) {
	m := newTestMixer()
	if n := m.NumBuses(); n != 0 {
		t.Fatalf("NumBuses() = %d, want 0 before any input mapping is set", n)
	}
}

func TestSetSimpleInputConfiguresOneBus(t *testing.T) {
	m := newTestMixer()
	m.SetSimpleInput(3)

	if n := m.NumBuses(); n != 1 {
		t.Fatalf("NumBuses() = %d, want 1", n)
	}
	if m.MappingMode() != Simple {
		t.Fatalf("MappingMode() = %v, want Simple", m.MappingMode())
	}
	idx, ok := m.SimpleInput()
	if !ok || idx != 3 {
		t.Fatalf("SimpleInput() = %v, %v; want 3, true", idx, ok)
	}
}

func TestSetInputMappingSwitchesToMultichannel(t *testing.T) {
	m := newTestMixer()
	m.SetSimpleInput(0)

	im := mapping.InputMapping{Buses: []mapping.Bus{
		{Name: "A", Device: mapping.DeviceSpec{Type: mapping.CaptureCard, Index: 0}, SourceChannel: [2]int32{0, 1}},
		{Name: "B", Device: mapping.DeviceSpec{Type: mapping.CaptureCard, Index: 1}, SourceChannel: [2]int32{0, 1}},
	}}
	m.SetInputMapping(im)

	if m.MappingMode() != Multichannel {
		t.Fatalf("MappingMode() = %v, want Multichannel", m.MappingMode())
	}
	if n := m.NumBuses(); n != 2 {
		t.Fatalf("NumBuses() = %d, want 2", n)
	}
	if _, ok := m.SimpleInput(); ok {
		t.Fatalf("SimpleInput() should report false once more than one bus is configured")
	}
}

// TestSetInputMappingPreservesBusStateByIndex checks that an edit which
// renames bus 0 and appends a second bus keeps bus 0's existing busState
// (fader, mute, etc) rather than resetting it, and that the newly added
// bus gets fresh default state.
func TestSetInputMappingPreservesBusStateByIndex(t *testing.T) {
	m := newTestMixer()
	m.SetSimpleInput(0)
	m.SetFaderVolumeDB(0, -6.0)
	m.SetMute(0, true)

	im := mapping.InputMapping{Buses: []mapping.Bus{
		{Name: "renamed", Device: mapping.DeviceSpec{Type: mapping.CaptureCard, Index: 0}, SourceChannel: [2]int32{0, 1}},
		{Name: "new", Device: mapping.DeviceSpec{Type: mapping.CaptureCard, Index: 1}, SourceChannel: [2]int32{0, 1}},
	}}
	m.SetInputMapping(im)

	if got := m.FaderVolumeDB(0); got != -6.0 {
		t.Fatalf("bus 0 FaderVolumeDB() = %v, want -6 (preserved across routing edit)", got)
	}
	if !m.Mute(0) {
		t.Fatalf("bus 0 should still be muted after a routing-only edit")
	}
	if m.Mute(1) {
		t.Fatalf("newly added bus 1 should start unmuted")
	}
	if got := m.FaderVolumeDB(1); got != 0 {
		t.Fatalf("newly added bus 1 FaderVolumeDB() = %v, want 0 (default)", got)
	}
}

func TestGetOutputOnSilentBusIsZero(t *testing.T) {
	m := newTestMixer()
	m.SetInputMapping(mapping.InputMapping{Buses: []mapping.Bus{
		{Name: "Silent", Device: mapping.DeviceSpec{Type: mapping.Silence}, SourceChannel: [2]int32{-1, -1}},
	}})
	m.SetLimiterEnabled(false)
	m.SetFinalMakeupGainDB(0) // Disables automatic loudness normalization for a deterministic result.

	out := m.GetOutput(time.Now(), 256, resample.DoNotAdjustRate)
	if len(out) != 256*2 {
		t.Fatalf("GetOutput() returned %d samples, want %d", len(out), 256*2)
	}
	for i, v := range out {
		if v != 0 {
			t.Fatalf("sample %d = %v, want 0 on an all-silence input mapping", i, v)
		}
	}
}

func TestGetOutputRoutesLiveAudioThroughToMaster(t *testing.T) {
	m := newTestMixer()
	spec := mapping.DeviceSpec{Type: mapping.CaptureCard, Index: 0}

	// Register the device (and its channel count) before the input
	// mapping routes to it, since SetSimpleInput's recomputeInterestingChannelsLocked
	// only records channels for devices it already knows about.
	if !m.AddAudio(spec, make([]float64, 480*2), 480, 2, 48000, time.Now(), resample.AdjustRate) {
		t.Fatalf("AddAudio() failed to acquire the audio lock")
	}

	m.SetLimiterEnabled(false)
	m.SetFinalMakeupGainDB(0)
	m.SetSimpleInput(0)
	m.SetLocutEnabled(0, false)
	m.SetCompressorEnabled(0, false)
	m.SetGainStagingDB(0, 0) // Disables automatic gain staging so the level isn't renormalized away.

	ts := time.Now()
	const block = 480
	period := time.Duration(block) * time.Second / 48000

	// Feed plenty of blocks so the per-device resampling queue clears its
	// startup delay before the assertions below.
	var out []float64
	for i := 0; i < 80; i++ {
		samples := make([]float64, block*2)
		for j := 0; j < block; j++ {
			samples[j*2+0] = 0.5
			samples[j*2+1] = -0.5
		}
		if !m.AddAudio(spec, samples, block, 2, 48000, ts, resample.AdjustRate) {
			t.Fatalf("AddAudio() failed to acquire the audio lock")
		}
		out = m.GetOutput(ts, block, resample.AdjustRate)
		ts = ts.Add(period)
	}

	var peak float64
	for i := 0; i < block; i++ {
		if a := math.Abs(out[i*2]); a > peak {
			peak = a
		}
	}
	if peak < 0.1 {
		t.Fatalf("expected steady-state output to carry audible signal, peak = %v", peak)
	}
}

func TestSilenceCardResetsResampler(t *testing.T) {
	m := newTestMixer()
	spec := mapping.DeviceSpec{Type: mapping.CaptureCard, Index: 0}
	samples := make([]float64, 480*2)
	if !m.AddAudio(spec, samples, 480, 2, 48000, time.Now(), resample.AdjustRate) {
		t.Fatalf("AddAudio() failed")
	}
	if !m.SilenceCard(spec, true) {
		t.Fatalf("SilenceCard(true) failed to acquire the audio lock")
	}
	before := m.devices[spec].queue
	if !m.SilenceCard(spec, false) {
		t.Fatalf("SilenceCard(false) failed to acquire the audio lock")
	}
	if m.devices[spec].queue == before {
		t.Fatalf("SilenceCard(false) should replace the device's resampling queue")
	}
}

func TestAddSilenceOnUnknownDeviceCreatesIt(t *testing.T) {
	m := newTestMixer()
	spec := mapping.DeviceSpec{Type: mapping.CaptureCard, Index: 9}
	if !m.AddSilence(spec, 480, 2, 2, time.Now()) {
		t.Fatalf("AddSilence() failed to acquire the audio lock")
	}
	if _, ok := m.devices[spec]; !ok {
		t.Fatalf("AddSilence() should create an audioDevice for an unknown spec")
	}
}

func TestBusSettingsAccessorsRoundTrip(t *testing.T) {
	m := newTestMixer()
	m.SetSimpleInput(0)

	m.SetEQ(0, mapping.EQBass, 3.0)
	if got := m.EQ(0, mapping.EQBass); got != 3.0 {
		t.Fatalf("EQ(EQBass) = %v, want 3.0", got)
	}

	m.SetLocutCutoffHz(90.0)
	if got := m.LocutCutoffHz(); got != 90.0 {
		t.Fatalf("LocutCutoffHz() = %v, want 90.0", got)
	}

	m.SetCompressorThresholdDBFS(0, -18.0)
	if got := m.CompressorThresholdDBFS(0); got != -18.0 {
		t.Fatalf("CompressorThresholdDBFS() = %v, want -18.0", got)
	}

	m.SetCompressorEnabled(0, false)
	if m.CompressorEnabled(0) {
		t.Fatalf("CompressorEnabled() should be false after SetCompressorEnabled(false)")
	}

	m.SetGainStagingDB(0, -2.0)
	if m.GainStagingAuto(0) {
		t.Fatalf("SetGainStagingDB should disable automatic gain staging")
	}
	if got := m.GainStagingDB(0); got != -2.0 {
		t.Fatalf("GainStagingDB() = %v, want -2.0", got)
	}

	m.SetFinalMakeupGainDB(-3.0)
	if m.FinalMakeupGainAuto() {
		t.Fatalf("SetFinalMakeupGainDB should disable automatic loudness normalization")
	}
	if got := m.FinalMakeupGainDB(); math.Abs(float64(got)-(-3.0)) > 1e-3 {
		t.Fatalf("FinalMakeupGainDB() = %v, want -3.0", got)
	}

	m.SetLimiterThresholdDBFS(-2.0)
	if got := m.LimiterThresholdDBFS(); got != -2.0 {
		t.Fatalf("LimiterThresholdDBFS() = %v, want -2.0", got)
	}

	m.SetLimiterEnabled(false)
	if m.LimiterEnabled() {
		t.Fatalf("LimiterEnabled() should be false after SetLimiterEnabled(false)")
	}

	m.ResetPeak(0)
}

func TestAudioLevelCallbackInvokedAfterGetOutput(t *testing.T) {
	m := newTestMixer()
	m.SetInputMapping(mapping.InputMapping{Buses: []mapping.Bus{
		{Name: "Silent", Device: mapping.DeviceSpec{Type: mapping.Silence}, SourceChannel: [2]int32{-1, -1}},
	}})

	var called bool
	m.SetAudioLevelCallback(func(levelLUFS, peakDB float64, busLevels []BusLevel, globalLevelLUFS, rangeLowLUFS, rangeHighLUFS, finalMakeupGainDB, correlation float64) {
		called = true
		if len(busLevels) != 1 {
			t.Fatalf("callback saw %d bus levels, want 1", len(busLevels))
		}
	})

	m.GetOutput(time.Now(), 256, resample.DoNotAdjustRate)
	if !called {
		t.Fatalf("AudioLevelCallback was not invoked by GetOutput")
	}
}
