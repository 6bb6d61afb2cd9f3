/*
NAME
  devices.go

DESCRIPTION
  devices.go implements device registration, add_audio/add_silence and
  the interesting-channels bookkeeping that decides which capture
  devices get resampled at all, carried over from
  original_source/audio_mixer.cpp's add_audio/add_silence/silence_card
  and AudioDevice struct.

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
	"time"

	"github.com/ausocean/audiomixer/device/alsa"
	"github.com/ausocean/audiomixer/mixer/mapping"
	"github.com/ausocean/audiomixer/mixer/resample"
)

// audioDevice is the mixer-side state for one source device: its
// resampling queue, which channels are currently routed to a bus, and
// whether it has been put into forced-silence mode.
type audioDevice struct {
	queue               *resample.Queue
	numChannels         int
	sampleRate          int     // Native rate the queue was last built with.
	interestingChannels []int32 // Sorted, deduplicated.
	silenced            bool
	info                mapping.DeviceInfo
}

// deviceOrSilence returns the audioDevice for spec, or nil for SILENCE,
// which never has a real audioDevice.
func (m *Mixer) deviceOrSilence(spec mapping.DeviceSpec) *audioDevice {
	if spec.Type == mapping.Silence {
		return nil
	}
	return m.devices[spec]
}

// ensureDevice returns the audioDevice for spec, creating it (with a
// fresh resampling queue for numChannels and nativeRate) if spec has not
// been seen before. An existing device is returned unchanged, whatever
// numChannels is passed.
func (m *Mixer) ensureDevice(spec mapping.DeviceSpec, numChannels int, nativeRate int) *audioDevice {
	if dev, ok := m.devices[spec]; ok {
		return dev
	}
	dev := &audioDevice{
		numChannels: numChannels,
		sampleRate:  nativeRate,
		queue:       resample.New(spec.Index, uint32(nativeRate), uint32(m.sampleRate), numChannels, m.expectedDelay.Seconds()),
	}
	m.devices[spec] = dev
	return dev
}

// AddAudio feeds num_samples interleaved frames from device_spec into
// its resampling queue. It returns false if the audio lock could not be
// acquired within a short timeout, in which case the caller should
// simply retry.
func (m *Mixer) AddAudio(spec mapping.DeviceSpec, samples []float64, numSamples int, numChannels int, nativeRate int, ts time.Time, policy resample.RateAdjustmentPolicy) bool {
	if !m.audioMu.TryLockTimeout(audioLockTimeout) {
		return false
	}
	defer m.audioMu.Unlock()

	dev := m.ensureDevice(spec, numChannels, nativeRate)
	if dev.sampleRate != nativeRate {
		// The device's negotiated rate changed (e.g. replugged at a
		// different rate); the old queue's PLL state no longer applies.
		dev.queue = resample.New(spec.Index, uint32(nativeRate), uint32(m.sampleRate), dev.numChannels, m.expectedDelay.Seconds())
		dev.sampleRate = nativeRate
	}
	if !dev.silenced {
		dev.queue.AddInputSamples(ts, samples, numSamples, policy)
	}
	return true
}

// AddSilence feeds numFrames frames of silence into device_spec's queue,
// used when a device is known to have produced nothing for this period
// (e.g. a muted capture card) but still needs its delay tracked.
func (m *Mixer) AddSilence(spec mapping.DeviceSpec, samplesPerFrame, numFrames, numChannels int, ts time.Time) bool {
	if !m.audioMu.TryLockTimeout(audioLockTimeout) {
		return false
	}
	defer m.audioMu.Unlock()

	dev := m.ensureDevice(spec, numChannels, m.sampleRate)
	if dev.silenced {
		return true
	}
	zero := make([]float64, samplesPerFrame*numChannels)
	for i := 0; i < numFrames; i++ {
		dev.queue.AddInputSamples(ts, zero, samplesPerFrame, resample.DoNotAdjustRate)
	}
	return true
}

// SilenceCard forces device_spec to output silence (or releases it back
// to normal operation, resetting its resampler so stale audio can't
// leak through once unsilenced).
func (m *Mixer) SilenceCard(spec mapping.DeviceSpec, silence bool) bool {
	if !m.audioMu.TryLockTimeout(audioLockTimeout) {
		return false
	}
	defer m.audioMu.Unlock()

	dev, ok := m.devices[spec]
	if !ok {
		return true
	}
	dev.silenced = silence
	if !silence {
		dev.queue = resample.New(spec.Index, uint32(m.sampleRate), uint32(m.sampleRate), dev.numChannels, m.expectedDelay.Seconds())
		dev.sampleRate = m.sampleRate
	}
	return true
}

// ResetResampler discards device_spec's resampling queue, e.g. after a
// hotplug replug where old timing state would otherwise desync.
func (m *Mixer) ResetResampler(spec mapping.DeviceSpec) {
	m.audioMu.Lock()
	defer m.audioMu.Unlock()
	if dev, ok := m.devices[spec]; ok {
		dev.queue = resample.New(spec.Index, uint32(m.sampleRate), uint32(m.sampleRate), dev.numChannels, m.expectedDelay.Seconds())
		dev.sampleRate = m.sampleRate
	}
}

// recomputeInterestingChannelsLocked updates which channels of every
// active device are currently routed to a bus, given the current input
// mapping. Callers must hold both mappingMu and audioMu.
func (m *Mixer) recomputeInterestingChannelsLocked() {
	interesting := mapping.InterestingChannels(m.inputMapping)
	for spec, channels := range interesting {
		dev := m.devices[spec]
		if dev == nil {
			continue
		}
		dev.interestingChannels = dev.interestingChannels[:0]
		for ch := range channels {
			dev.interestingChannels = append(dev.interestingChannels, ch)
		}
		sortInt32(dev.interestingChannels)
	}
}

func sortInt32(s []int32) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// GetDevices returns the DeviceInfo for every device currently known to
// the mixer (from either its own table or the underlying ALSA pool).
// Listing the pool's devices marks each one held there; the mixer does
// not release them again.
func (m *Mixer) GetDevices() map[mapping.DeviceSpec]mapping.DeviceInfo {
	out := make(map[mapping.DeviceSpec]mapping.DeviceInfo)
	if m.pool != nil {
		for _, snap := range m.pool.GetDevices() {
			spec := mapping.DeviceSpec{Type: mapping.ALSAInput, Index: snap.Index}
			out[spec] = mapping.DeviceInfo{
				DisplayName: snap.Name,
				NumChannels: snap.NumChannels,
				ALSAName:    snap.Name,
				ALSAInfo:    snap.Info,
				ALSAAddress: snap.Address,
			}
		}
	}
	m.audioMu.Lock()
	for spec, dev := range m.devices {
		if spec.Type == mapping.CaptureCard {
			out[spec] = dev.info
		}
	}
	m.audioMu.Unlock()
	return out
}

// SetDisplayName updates the cached display name for a device, e.g.
// after the user renames a capture card input.
func (m *Mixer) SetDisplayName(spec mapping.DeviceSpec, name string) {
	m.audioMu.Lock()
	defer m.audioMu.Unlock()
	if dev, ok := m.devices[spec]; ok {
		dev.info.DisplayName = name
	}
}
