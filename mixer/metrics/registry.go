/*
NAME
  registry.go

DESCRIPTION
  registry.go exports the mixer's Prometheus metrics: per-bus and master
  gauges mirroring the metric names original_source/audio_mixer.cpp
  registers with its own Metrics singleton (audio_peak_dbfs,
  bus_peak_level_dbfs, ...), built the way
  dmzoneill-ollama-proxy/pkg/metrics/metrics.go registers its own.

AUTHOR
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package metrics exposes the audio mixer's Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AudioPeakDBFS is the master output's sample peak, taken from the
	// samples as they are, without oversampling.
	AudioPeakDBFS = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "audiomixer_audio_peak_dbfs",
		Help: "Master output sample peak level in dBFS, not oversampled.",
	})

	// AudioLoudnessLUFS is the master output's momentary R128 loudness.
	AudioLoudnessLUFS = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "audiomixer_audio_loudness_lufs",
		Help: "Master output momentary loudness in LUFS.",
	})

	// BusPeakLevelDBFS is a bus's held peak level, per channel.
	BusPeakLevelDBFS = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "audiomixer_bus_peak_level_dbfs",
		Help: "Bus peak level in dBFS, with hold and falloff.",
	}, []string{"bus", "channel"})

	// BusHistoricPeakDBFS is a bus's all-time peak level since reset.
	BusHistoricPeakDBFS = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "audiomixer_bus_historic_peak_dbfs",
		Help: "Bus peak level in dBFS since the last reset, never falls off.",
	}, []string{"bus"})

	// BusGainStagingDB is the current gain-staging gain, automatic or
	// manual.
	BusGainStagingDB = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "audiomixer_bus_gain_staging_db",
		Help: "Current gain staging applied to a bus, in dB.",
	}, []string{"bus"})

	// BusCompressorAttenuationDB is the bus compressor's current gain
	// reduction.
	BusCompressorAttenuationDB = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "audiomixer_bus_compressor_attenuation_db",
		Help: "Current gain reduction applied by a bus's compressor, in dB.",
	}, []string{"bus"})

	// LimiterAttenuationDB is the master limiter's current gain
	// reduction.
	LimiterAttenuationDB = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "audiomixer_limiter_attenuation_db",
		Help: "Current gain reduction applied by the master limiter, in dB.",
	})

	// StereoCorrelation is the master output's L/R correlation estimate.
	StereoCorrelation = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "audiomixer_stereo_correlation",
		Help: "Master output L/R Pearson correlation estimate, in [-1, 1].",
	})

	// DeviceUnderrunsTotal counts resampler underrun events per device.
	DeviceUnderrunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "audiomixer_device_underruns_total",
		Help: "Total resampling queue underruns observed per device.",
	}, []string{"device"})
)
