/*
NAME
  bus.go

DESCRIPTION
  bus.go holds per-bus runtime DSP state (filters, compressors, fade
  memory, peak history) and the getters/setters for bus and
  master-level settings, carried over from the inline accessors on
  original_source/audio_mixer.h's AudioMixer class.

AUTHOR
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package mixer

import (
	"github.com/ausocean/audiomixer/mixer/dsp"
	"github.com/ausocean/audiomixer/mixer/loudness"
	"github.com/ausocean/audiomixer/mixer/mapping"
)

// busState is the DSP and metering state that persists across calls to
// GetOutput for a single bus; indexed in parallel with
// Mixer.inputMapping.Buses.
type busState struct {
	settings mapping.BusSettings

	locut dsp.StereoFilter
	eq    [mapping.NumEQBands]dsp.StereoFilter

	lastFaderVolumeDB float32
	lastEQLevelDB     [mapping.NumEQBands]float32

	levelCompressor *dsp.StereoCompressor
	compressor      *dsp.StereoCompressor

	lastGainStagingDB float32

	peak [2]loudness.PeakHistory
}

func newBusState() *busState {
	b := &busState{
		settings:        mapping.DefaultBusSettings(),
		levelCompressor: dsp.NewStereoCompressor(float64(defaultSampleRate)),
		compressor:      dsp.NewStereoCompressor(float64(defaultSampleRate)),
	}
	b.locut.Init(dsp.HighPass, 1)
	b.eq[mapping.EQBass].Init(dsp.LowShelf, 1)
	b.eq[mapping.EQTreble].Init(dsp.HighShelf, 1)
	return b
}

// BusLevel is a snapshot of one bus's metering, delivered through
// AudioLevelCallback.
type BusLevel struct {
	CurrentLevelDBFS [2]float64
	PeakLevelDBFS    [2]float64
	HistoricPeakDBFS float64
	GainStagingDB    float64
	CompressorAttenuationDB float64
}

// FaderVolumeDB returns bus's fader gain in dB.
func (m *Mixer) FaderVolumeDB(bus int) float32 {
	m.mappingMu.RLock()
	defer m.mappingMu.RUnlock()
	return m.buses[bus].settings.FaderVolumeDB
}

// SetFaderVolumeDB sets bus's fader gain in dB.
func (m *Mixer) SetFaderVolumeDB(bus int, db float32) {
	m.mappingMu.Lock()
	defer m.mappingMu.Unlock()
	m.buses[bus].settings.FaderVolumeDB = db
}

// Mute reports whether bus is muted.
func (m *Mixer) Mute(bus int) bool {
	m.mappingMu.RLock()
	defer m.mappingMu.RUnlock()
	return m.buses[bus].settings.Muted
}

// SetMute mutes or unmutes bus.
func (m *Mixer) SetMute(bus int, muted bool) {
	m.mappingMu.Lock()
	defer m.mappingMu.Unlock()
	m.buses[bus].settings.Muted = muted
}

// LocutCutoffHz returns the shared locut cutoff frequency.
func (m *Mixer) LocutCutoffHz() float32 {
	m.mappingMu.RLock()
	defer m.mappingMu.RUnlock()
	return m.locutCutoffHz
}

// SetLocutCutoffHz sets the shared locut cutoff frequency.
func (m *Mixer) SetLocutCutoffHz(hz float32) {
	m.mappingMu.Lock()
	defer m.mappingMu.Unlock()
	m.locutCutoffHz = hz
}

// LocutEnabled reports whether bus's locut filter is engaged.
func (m *Mixer) LocutEnabled(bus int) bool {
	m.mappingMu.RLock()
	defer m.mappingMu.RUnlock()
	return m.buses[bus].settings.LocutEnabled
}

// SetLocutEnabled enables or disables bus's locut filter.
func (m *Mixer) SetLocutEnabled(bus int, enabled bool) {
	m.mappingMu.Lock()
	defer m.mappingMu.Unlock()
	m.buses[bus].settings.LocutEnabled = enabled
}

// EQ returns bus's gain for band, in dB.
func (m *Mixer) EQ(bus int, band mapping.EQBand) float32 {
	m.mappingMu.RLock()
	defer m.mappingMu.RUnlock()
	return m.buses[bus].settings.EQLevelDB[band]
}

// SetEQ sets bus's gain for band, in dB.
func (m *Mixer) SetEQ(bus int, band mapping.EQBand, db float32) {
	m.mappingMu.Lock()
	defer m.mappingMu.Unlock()
	m.buses[bus].settings.EQLevelDB[band] = db
}

// LimiterThresholdDBFS returns the master limiter's threshold.
func (m *Mixer) LimiterThresholdDBFS() float32 {
	m.mappingMu.RLock()
	defer m.mappingMu.RUnlock()
	return m.limiterThresholdDBFS
}

// SetLimiterThresholdDBFS sets the master limiter's threshold.
func (m *Mixer) SetLimiterThresholdDBFS(dbfs float32) {
	m.mappingMu.Lock()
	defer m.mappingMu.Unlock()
	m.limiterThresholdDBFS = dbfs
}

// LimiterEnabled reports whether the master limiter is engaged.
func (m *Mixer) LimiterEnabled() bool {
	m.mappingMu.RLock()
	defer m.mappingMu.RUnlock()
	return m.limiterEnabled
}

// SetLimiterEnabled enables or disables the master limiter.
func (m *Mixer) SetLimiterEnabled(enabled bool) {
	m.mappingMu.Lock()
	defer m.mappingMu.Unlock()
	m.limiterEnabled = enabled
}

// CompressorThresholdDBFS returns bus's compressor threshold.
func (m *Mixer) CompressorThresholdDBFS(bus int) float32 {
	m.mappingMu.RLock()
	defer m.mappingMu.RUnlock()
	return m.buses[bus].settings.CompressorThresholdDBFS
}

// SetCompressorThresholdDBFS sets bus's compressor threshold.
func (m *Mixer) SetCompressorThresholdDBFS(bus int, dbfs float32) {
	m.mappingMu.Lock()
	defer m.mappingMu.Unlock()
	m.buses[bus].settings.CompressorThresholdDBFS = dbfs
}

// CompressorEnabled reports whether bus's compressor is engaged.
func (m *Mixer) CompressorEnabled(bus int) bool {
	m.mappingMu.RLock()
	defer m.mappingMu.RUnlock()
	return m.buses[bus].settings.CompressorEnabled
}

// SetCompressorEnabled enables or disables bus's compressor.
func (m *Mixer) SetCompressorEnabled(bus int, enabled bool) {
	m.mappingMu.Lock()
	defer m.mappingMu.Unlock()
	m.buses[bus].settings.CompressorEnabled = enabled
}

// GainStagingDB returns bus's current gain-staging gain, in dB.
func (m *Mixer) GainStagingDB(bus int) float32 {
	m.compressorMu.Lock()
	defer m.compressorMu.Unlock()
	return m.buses[bus].settings.GainStagingDB
}

// SetGainStagingDB sets bus's gain-staging gain manually, disabling
// automatic gain staging for that bus.
func (m *Mixer) SetGainStagingDB(bus int, db float32) {
	m.compressorMu.Lock()
	defer m.compressorMu.Unlock()
	m.buses[bus].settings.GainStagingAuto = false
	m.buses[bus].settings.GainStagingDB = db
}

// GainStagingAuto reports whether bus's gain staging is automatic.
func (m *Mixer) GainStagingAuto(bus int) bool {
	m.compressorMu.Lock()
	defer m.compressorMu.Unlock()
	return m.buses[bus].settings.GainStagingAuto
}

// SetGainStagingAuto enables or disables automatic gain staging for bus.
func (m *Mixer) SetGainStagingAuto(bus int, enabled bool) {
	m.compressorMu.Lock()
	defer m.compressorMu.Unlock()
	m.buses[bus].settings.GainStagingAuto = enabled
}

// FinalMakeupGainDB returns the current master makeup gain, in dB.
func (m *Mixer) FinalMakeupGainDB() float32 {
	m.compressorMu.Lock()
	defer m.compressorMu.Unlock()
	return toDB32(m.finalMakeupGain)
}

// SetFinalMakeupGainDB sets the master makeup gain manually, disabling
// automatic loudness normalization.
func (m *Mixer) SetFinalMakeupGainDB(db float32) {
	m.compressorMu.Lock()
	defer m.compressorMu.Unlock()
	m.finalMakeupGainAuto = false
	m.finalMakeupGain = fromDB32(db)
}

// FinalMakeupGainAuto reports whether master makeup gain is automatic.
func (m *Mixer) FinalMakeupGainAuto() bool {
	m.compressorMu.Lock()
	defer m.compressorMu.Unlock()
	return m.finalMakeupGainAuto
}

// SetFinalMakeupGainAuto enables or disables automatic loudness
// normalization.
func (m *Mixer) SetFinalMakeupGainAuto(enabled bool) {
	m.compressorMu.Lock()
	defer m.compressorMu.Unlock()
	m.finalMakeupGainAuto = enabled
}

// ResetPeak clears bus's peak history.
func (m *Mixer) ResetPeak(bus int) {
	m.audioMu.Lock()
	defer m.audioMu.Unlock()
	m.buses[bus].peak[0].Reset()
	m.buses[bus].peak[1].Reset()
}
