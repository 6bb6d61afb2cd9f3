/*
NAME
  dspchain.go

DESCRIPTION
  dspchain.go implements the per-bus locut/EQ stage, the fader fade into
  the master bus, and the metering calls that close out GetOutput's
  per-bus loop: applyEQ, addBusToMaster and measureBusLevels, ported from
  original_source/audio_mixer.cpp's apply_filter_fade, apply_eq,
  add_bus_to_master and measure_bus_levels.

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

	"github.com/ausocean/audiomixer/mixer/loudness"
	"github.com/ausocean/audiomixer/mixer/mapping"
	"github.com/ausocean/audiomixer/mixer/metrics"
)

// eqBandFreqHz is the fixed corner frequency of the bass and treble
// shelves; the mid band has no filter of its own (see applyEQ).
var eqBandFreqHz = [mapping.NumEQBands]float64{
	mapping.EQBass:   200.0,
	mapping.EQTreble: 4700.0,
}

// applyEQ runs bus's locut (high-pass) and three-band EQ over samplesBus
// in place, matching apply_filter_fade/apply_eq: the mid band is applied
// as a plain gain (its biquad is never engaged), and the bass/treble
// shelves are applied relative to the mid gain rather than to unity, so
// the overall response is gain(mid) * shelf(bass-mid) * highshelf(treble-mid).
// A changed EQ gain takes effect in full from the first sample of the
// block; it is not interpolated from the previous gain.
func (m *Mixer) applyEQ(bs *busState, samplesBus []float64, numSamples int) {
	cutoff := 2 * math.Pi * float64(m.locutCutoffHz) / float64(m.sampleRate)
	if bs.settings.LocutEnabled {
		bs.locut.Render(samplesBus, numSamples, cutoff, 0.5, 0)
	}

	midDB := bs.settings.EQLevelDB[mapping.EQMid]
	bassDB := bs.settings.EQLevelDB[mapping.EQBass] - midDB
	trebleDB := bs.settings.EQLevelDB[mapping.EQTreble] - midDB

	if midDB != 0 || bs.lastEQLevelDB[mapping.EQMid] != 0 {
		gain := fromDB(float64(midDB))
		for i := 0; i < numSamples*2; i++ {
			samplesBus[i] *= gain
		}
		bs.lastEQLevelDB[mapping.EQMid] = midDB
	}

	if bassDB != 0 || bs.lastEQLevelDB[mapping.EQBass] != 0 {
		bandCutoff := 2 * math.Pi * eqBandFreqHz[mapping.EQBass] / float64(m.sampleRate)
		bs.eq[mapping.EQBass].Render(samplesBus, numSamples, bandCutoff, 0.7071, float64(bassDB)/40.0)
		bs.lastEQLevelDB[mapping.EQBass] = bassDB
	}

	if trebleDB != 0 || bs.lastEQLevelDB[mapping.EQTreble] != 0 {
		bandCutoff := 2 * math.Pi * eqBandFreqHz[mapping.EQTreble] / float64(m.sampleRate)
		bs.eq[mapping.EQTreble].Render(samplesBus, numSamples, bandCutoff, 0.7071, float64(trebleDB)/40.0)
		bs.lastEQLevelDB[mapping.EQTreble] = trebleDB
	}
}

// addBusToMaster applies bus's fader gain (fading smoothly if it has
// changed since the previous call, matching apply_gain's zipper-noise
// avoidance) and, unless muted, accumulates the result into samplesOut.
func addBusToMaster(bs *busState, busIndex int, bus mapping.Bus, samplesBus, samplesOut []float64, numSamples int) {
	db := float64(bs.settings.FaderVolumeDB)
	lastDB := float64(bs.lastFaderVolumeDB)
	if db != lastDB {
		applyGain(db, lastDB, samplesBus, numSamples)
	} else {
		gain := fromDB(db)
		for i := range samplesBus {
			samplesBus[i] *= gain
		}
	}
	bs.lastFaderVolumeDB = bs.settings.FaderVolumeDB

	if bs.settings.Muted {
		return
	}
	for i := 0; i < numSamples*2; i++ {
		samplesOut[i] += samplesBus[i]
	}
}

// measureBusLevels updates bus's peak meters from the post-DSP,
// post-fader samplesBus and publishes them to Prometheus.
func (m *Mixer) measureBusLevels(bs *busState, bus mapping.Bus, samplesBus []float64, numSamples int) {
	blockSeconds := float64(numSamples) / float64(m.sampleRate)
	for ch := 0; ch < 2; ch++ {
		peak := channelPeak(samplesBus, numSamples, ch)
		bs.peak[ch].Update(peak, blockSeconds)
		metrics.BusPeakLevelDBFS.WithLabelValues(bus.Name, channelLabel(ch)).Set(toDB(bs.peak[ch].CurrentPeak))
	}
	historic := math.Max(bs.peak[0].HistoricPeak, bs.peak[1].HistoricPeak)
	metrics.BusHistoricPeakDBFS.WithLabelValues(bus.Name).Set(toDB(historic))
}

func channelPeak(buf []float64, numSamples, ch int) float64 {
	var peak float64
	for i := 0; i < numSamples; i++ {
		if a := math.Abs(buf[i*2+ch]); a > peak {
			peak = a
		}
	}
	return peak
}

func channelLabel(ch int) string {
	if ch == 0 {
		return "left"
	}
	return "right"
}

// updateMeters folds the final mastered output into the R128 loudness
// meter and the correlation meter, and publishes both along with the
// master peak to Prometheus and to the installed AudioLevelCallback.
func (m *Mixer) updateMeters(samplesOut []float64, numSamples int) {
	m.audioMeasureMu.Lock()
	m.r128.Process(samplesOut, numSamples)
	m.correlation.ProcessSamples(samplesOut, numSamples)
	peak := loudness.FindPeak(samplesOut[:numSamples*2])
	if peak > m.peak {
		m.peak = peak
	} else {
		m.peak *= math.Pow(10, -15.0/20.0*float64(numSamples)/float64(m.sampleRate))
	}
	momentary := m.r128.Momentary()
	integrated := m.r128.IntegratedLoudness()
	lra := m.r128.LoudnessRange()
	corr := m.correlation.Correlation()
	peakDB := toDB(m.peak)
	m.audioMeasureMu.Unlock()

	metrics.AudioPeakDBFS.Set(peakDB)
	metrics.AudioLoudnessLUFS.Set(momentary)
	metrics.StereoCorrelation.Set(corr)

	m.mappingMu.RLock()
	cb := m.audioLevelCallback
	levels := make([]BusLevel, len(m.buses))
	for i, bs := range m.buses {
		levels[i] = BusLevel{
			CurrentLevelDBFS: [2]float64{toDB(bs.peak[0].CurrentLevel), toDB(bs.peak[1].CurrentLevel)},
			PeakLevelDBFS:    [2]float64{toDB(bs.peak[0].CurrentPeak), toDB(bs.peak[1].CurrentPeak)},
			HistoricPeakDBFS: toDB(math.Max(bs.peak[0].HistoricPeak, bs.peak[1].HistoricPeak)),
			GainStagingDB:    float64(bs.settings.GainStagingDB),
		}
	}
	m.mappingMu.RUnlock()

	if cb != nil {
		lraLo := integrated
		lraHi := integrated + lra
		makeupGain := m.FinalMakeupGainDB()
		cb(momentary, peakDB, levels, integrated, lraLo, lraHi, float64(makeupGain), corr)
	}
}
