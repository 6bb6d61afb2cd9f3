/*
NAME
  mixer.go

DESCRIPTION
  mixer.go implements Mixer's construction and the get_output pipeline:
  pulling resampled audio from every active device, routing it into
  buses, running each bus's DSP chain, summing into the master bus, and
  running the master limiter and loudness normalization. Ported from
  original_source/audio_mixer.cpp's AudioMixer::get_output,
  AudioMixer::apply_eq and AudioMixer::add_bus_to_master.

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
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/ausocean/audiomixer/device/alsa"
	"github.com/ausocean/audiomixer/mixer/dsp"
	"github.com/ausocean/audiomixer/mixer/loudness"
	"github.com/ausocean/audiomixer/mixer/mapping"
	"github.com/ausocean/audiomixer/mixer/metrics"
	"github.com/ausocean/audiomixer/mixer/resample"
	"github.com/ausocean/utils/logging"
)

const (
	defaultSampleRate = 48000

	audioLockTimeout = 50 * time.Millisecond

	refLevelDBFS = -14.0 // Target level after gain staging.
	refLevelLUFS = -23.0 // Target integrated loudness for the master bus.

	filterGranularitySamples = 32 // Block size for fading filter coefficients; applyEQ does not fade EQ changes and does not read it.
)

// MappingMode mirrors the UI-level distinction between a single,
// locked-down bus (SIMPLE) and an arbitrary InputMapping (MULTICHANNEL);
// both run through exactly the same DSP path.
type MappingMode int

const (
	Simple MappingMode = iota
	Multichannel
)

// AudioLevelCallback is invoked once per GetOutput call with the latest
// metering snapshot.
type AudioLevelCallback func(levelLUFS, peakDB float64, busLevels []BusLevel, globalLevelLUFS, rangeLowLUFS, rangeHighLUFS, finalMakeupGainDB, correlation float64)

// Mixer is the top-level audio mixer: it owns every device's resampling
// queue, the per-bus DSP chain, and the master bus processing chain. All
// exported methods are safe for concurrent use.
type Mixer struct {
	l logging.Logger

	sampleRate    int
	expectedDelay time.Duration

	pool *alsa.Pool

	audioMu timedMutex // Guards devices and each device's resampling queue.
	devices map[mapping.DeviceSpec]*audioDevice

	mappingMu    sync.RWMutex // Guards inputMapping, buses, mappingMode and locut/limiter settings.
	inputMapping mapping.InputMapping
	mappingMode  MappingMode
	buses        []*busState

	locutCutoffHz        float32
	limiterThresholdDBFS float32
	limiterEnabled       bool

	compressorMu        sync.Mutex // Guards gain staging and final makeup gain, matching the C++ compressor_mutex.
	limiter             *dsp.StereoCompressor
	finalMakeupGain     float32
	finalMakeupGainAuto bool

	audioMeasureMu sync.Mutex
	r128           *loudness.R128
	correlation    *loudness.Correlation
	peak           float64

	audioLevelCallback AudioLevelCallback
}

// New constructs a Mixer with no buses configured; call SetInputMapping
// or SetSimpleInput before the first GetOutput.
func New(l logging.Logger, sampleRate int, expectedDelay time.Duration, pool *alsa.Pool) *Mixer {
	m := &Mixer{
		l:                    l,
		sampleRate:           sampleRate,
		expectedDelay:        expectedDelay,
		pool:                 pool,
		audioMu:              newTimedMutex(),
		devices:              make(map[mapping.DeviceSpec]*audioDevice),
		locutCutoffHz:        120.0,
		limiterThresholdDBFS: -4.0,
		limiterEnabled:       true,
		limiter:              dsp.NewStereoCompressor(float64(sampleRate)),
		finalMakeupGain:      1.0,
		finalMakeupGainAuto:  true,
		r128:                 loudness.NewR128(float64(sampleRate)),
		correlation:          loudness.NewCorrelation(float64(sampleRate), 1000.0, 0.150),
	}
	m.r128.IntegrStart()
	return m
}

// SetAudioLevelCallback installs the callback invoked after every
// GetOutput with the latest metering snapshot.
func (m *Mixer) SetAudioLevelCallback(cb AudioLevelCallback) {
	m.mappingMu.Lock()
	defer m.mappingMu.Unlock()
	m.audioLevelCallback = cb
}

// NumBuses returns the number of buses in the current input mapping.
func (m *Mixer) NumBuses() int {
	m.mappingMu.RLock()
	defer m.mappingMu.RUnlock()
	return len(m.buses)
}

// activeDevicesLocked returns every non-SILENCE device currently referenced by
// the input mapping. Callers must hold mappingMu for reading.
func (m *Mixer) activeDevicesLocked() []mapping.DeviceSpec {
	seen := make(map[mapping.DeviceSpec]bool)
	var out []mapping.DeviceSpec
	for _, b := range m.inputMapping.Buses {
		if b.Device.Type == mapping.Silence || seen[b.Device] {
			continue
		}
		seen[b.Device] = true
		out = append(out, b.Device)
	}
	return out
}

// GetOutput produces numSamples interleaved stereo frames of fully
// mixed, mastered audio at the mixer's sample rate.
func (m *Mixer) GetOutput(ts time.Time, numSamples int, policy resample.RateAdjustmentPolicy) []float64 {
	m.audioMu.Lock()
	defer m.audioMu.Unlock()

	m.mappingMu.RLock()
	devices := m.activeDevicesLocked()
	buses := append([]mapping.Bus(nil), m.inputMapping.Buses...)
	m.mappingMu.RUnlock()

	samplesCard := make(map[mapping.DeviceSpec][]float64, len(devices))
	for _, spec := range devices {
		dev := m.devices[spec]
		if dev == nil {
			continue
		}
		out := make([]float64, numSamples*len(dev.interestingChannels))
		if !dev.silenced && len(dev.interestingChannels) > 0 {
			if !dev.queue.GetOutputSamples(ts, out, numSamples, policy) {
				metrics.DeviceUnderrunsTotal.WithLabelValues(spec.Type.String() + ":" + strconv.FormatUint(uint64(spec.Index), 10)).Inc()
			}
		}
		samplesCard[spec] = out
	}

	samplesOut := make([]float64, numSamples*2)
	samplesBus := make([]float64, numSamples*2)

	m.mappingMu.Lock()
	for busIndex, bus := range buses {
		fillAudioBus(samplesCard, m.devices, bus, numSamples, samplesBus)

		bs := m.buses[busIndex]
		m.applyEQ(bs, samplesBus, numSamples)

		m.compressorMu.Lock()
		if bs.settings.GainStagingAuto {
			const threshold = 0.01 // -40 dBFS.
			const ratio = 20.0
			const attackTime = 0.5
			const releaseTime = 20.0
			makeupGain := fromDB(refLevelDBFS - (-40.0))
			bs.levelCompressor.Process(samplesBus, numSamples, threshold, ratio, attackTime, releaseTime, makeupGain)
			bs.settings.GainStagingDB = float32(toDB(bs.levelCompressor.Attenuation() * makeupGain))
		} else {
			applyGain(float64(bs.settings.GainStagingDB), float64(bs.lastGainStagingDB), samplesBus, numSamples)
		}
		bs.lastGainStagingDB = bs.settings.GainStagingDB
		metrics.BusGainStagingDB.WithLabelValues(bus.Name).Set(float64(bs.settings.GainStagingDB))

		if bs.settings.CompressorEnabled {
			threshold := fromDB(float64(bs.settings.CompressorThresholdDBFS))
			const ratio = 20.0
			const attackTime = 0.005
			const releaseTime = 0.040
			const makeupGain = 2.0 // +6dB.
			bs.compressor.Process(samplesBus, numSamples, threshold, ratio, attackTime, releaseTime, makeupGain)
			metrics.BusCompressorAttenuationDB.WithLabelValues(bus.Name).Set(-toDB(bs.compressor.Attenuation()))
		}
		m.compressorMu.Unlock()

		addBusToMaster(bs, busIndex, bus, samplesBus, samplesOut, numSamples)
		m.measureBusLevels(bs, bus, samplesBus, numSamples)
	}
	m.mappingMu.Unlock()

	m.compressorMu.Lock()
	if m.limiterEnabled {
		threshold := fromDB(float64(m.limiterThresholdDBFS))
		const ratio = 30.0
		const attackTime = 0.0
		const releaseTime = 0.020
		const makeupGain = 1.0
		m.limiter.Process(samplesOut, numSamples, threshold, ratio, attackTime, releaseTime, makeupGain)
		metrics.LimiterAttenuationDB.Set(-toDB(m.limiter.Attenuation()))
	}

	loudnessLU := m.r128.Momentary() - refLevelLUFS
	g := float64(m.finalMakeupGain)
	targetFactor := g // No loudness estimate yet (first gating block still filling): hold gain steady.
	var alpha float64
	if !math.IsInf(loudnessLU, 0) {
		targetFactor = g * fromDB(-loudnessLU)
		if math.Abs(loudnessLU) < 5.0 && m.finalMakeupGainAuto {
			const halfTimeSec = 30.0
			fcMul2PiDeltaT := 1.0 / (halfTimeSec * float64(m.sampleRate))
			alpha = fcMul2PiDeltaT / (fcMul2PiDeltaT + 1.0)
		}
	}
	for i := 0; i < numSamples; i++ {
		samplesOut[i*2+0] *= g
		samplesOut[i*2+1] *= g
		g += (targetFactor - g) * alpha
	}
	m.finalMakeupGain = float32(g)
	m.compressorMu.Unlock()

	m.updateMeters(samplesOut, numSamples)

	return samplesOut
}

// fillAudioBus assembles bus's stereo input from the already-resampled
// per-device buffers, following the channel routing in bus.SourceChannel.
func fillAudioBus(samplesCard map[mapping.DeviceSpec][]float64, devices map[mapping.DeviceSpec]*audioDevice, bus mapping.Bus, numSamples int, output []float64) {
	if bus.Device.Type == mapping.Silence {
		zero(output, numSamples*2)
		return
	}
	lsrc, lstride := findSampleSrc(samplesCard, devices, bus.Device, bus.SourceChannel[0])
	rsrc, rstride := findSampleSrc(samplesCard, devices, bus.Device, bus.SourceChannel[1])
	li, ri := 0, 0
	for i := 0; i < numSamples; i++ {
		output[i*2+0] = at(lsrc, li)
		output[i*2+1] = at(rsrc, ri)
		li += lstride
		ri += rstride
	}
}

func at(s []float64, i int) float64 {
	if s == nil {
		return 0
	}
	return s[i]
}

// findSampleSrc locates the interleaved-channel source for one leg of a
// bus's stereo pair, returning a nil slice (read as constant zero) for
// an unset channel.
func findSampleSrc(samplesCard map[mapping.DeviceSpec][]float64, devices map[mapping.DeviceSpec]*audioDevice, spec mapping.DeviceSpec, sourceChannel int32) ([]float64, int) {
	if sourceChannel < 0 {
		return nil, 0
	}
	dev := devices[spec]
	if dev == nil {
		return nil, 0
	}
	channelIndex := -1
	for i, ch := range dev.interestingChannels {
		if ch == sourceChannel {
			channelIndex = i
			break
		}
	}
	if channelIndex == -1 {
		return nil, 0
	}
	full := samplesCard[spec]
	return full[channelIndex:], len(dev.interestingChannels)
}

func zero(s []float64, n int) {
	for i := 0; i < n && i < len(s); i++ {
		s[i] = 0
	}
}

// applyGain multiplies samplesBus by fromDB(db), fading geometrically
// (linearly in dB) from fromDB(lastDB) across the block if db has
// changed appreciably since
// last call, avoiding zipper noise on fader/gain moves.
func applyGain(db, lastDB float64, samplesBus []float64, numSamples int) {
	if math.Abs(db-lastDB) < 1e-3 {
		gain := fromDB(db)
		for i := range samplesBus {
			samplesBus[i] *= gain
		}
		return
	}
	gain := fromDB(lastDB)
	gainInc := math.Pow(fromDB(db-lastDB), 1.0/float64(numSamples))
	for i := 0; i < numSamples; i++ {
		samplesBus[i*2+0] *= gain
		samplesBus[i*2+1] *= gain
		gain *= gainInc
	}
}
