/*
NAME
  audiomixer-bench - drives the audio mixer against real ALSA hardware
  and prints live level metering, as an operator-facing smoke test.

AUTHOR
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// audiomixer-bench opens the ALSA device pool, builds a SIMPLE input
// mapping against the pool index given by -card, and runs the mixer's
// GetOutput loop at real time, printing momentary loudness, peak and
// correlation on every callback. It also exposes /metrics for
// Prometheus scraping.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ausocean/audiomixer/device/alsa"
	"github.com/ausocean/audiomixer/mixer"
	"github.com/ausocean/audiomixer/mixer/config"
	"github.com/ausocean/audiomixer/mixer/mapping"
	"github.com/ausocean/audiomixer/mixer/resample"
	"github.com/ausocean/utils/logging"
)

const (
	progName     = "audiomixer-bench"
	logPath      = "/var/log/audiomixer/audiomixer.log"
	logMaxSize   = 10 // MB
	logMaxBackup = 10
	logMaxAge    = 30 // days

	metricsAddr = ":9110"

	periodSamples = 480 // 10ms blocks at 48kHz.
)

func main() {
	verbosity := flag.Int("verbosity", int(logging.Info), "logging verbosity")
	cardIndex := flag.Uint("card", 0, "ALSA card index to use as the SIMPLE input")
	sourceWAV := flag.String("source-wav", "", "play this WAV file into the mixer instead of an ALSA card, for running without hardware")
	seconds := flag.Duration("duration", 0, "how long to run before exiting; 0 runs forever")
	flag.Parse()

	fileLog := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    logMaxSize,
		MaxBackups: logMaxBackup,
		MaxAge:     logMaxAge,
	}
	log := logging.New(int8(*verbosity), fileLog, false)
	log.Info("starting " + progName)

	go func() {
		http.Handle("/metrics", promhttp.Handler())
		log.Warning("metrics server exited", "error", http.ListenAndServe(metricsAddr, nil))
	}()

	cfg := &config.Config{Logger: log}
	cfg.Validate()

	// m is constructed after pool, but pool's onSamples callback needs to
	// reach it; mxRef is filled in once m exists, which is safe here
	// because no samples arrive until pool.Init starts capture goroutines.
	var mxRef *mixer.Mixer
	pool := alsa.NewPool(log, int(cfg.SampleRate), int(cfg.Channels), func(index uint32, samples []float64, numFrames int, ts time.Time, sampleRate int) {
		spec := mapping.DeviceSpec{Type: mapping.CaptureCard, Index: index}
		mxRef.AddAudio(spec, samples, numFrames, int(cfg.Channels), sampleRate, ts, resample.AdjustRate)
	})

	m := mixer.New(log, int(cfg.SampleRate), cfg.ExpectedDelay, pool)
	mxRef = m
	m.SetAudioLevelCallback(func(levelLUFS, peakDB float64, _ []mixer.BusLevel, integrated, lraLo, lraHi, makeupGainDB, correlation float64) {
		fmt.Printf("momentary=%.1f LUFS peak=%.1f dBFS integrated=%.1f LUFS lra=[%.1f,%.1f] makeup=%.1fdB corr=%.2f\n",
			levelLUFS, peakDB, integrated, lraLo, lraHi, makeupGainDB, correlation)
	})

	if *sourceWAV != "" {
		spec := mapping.DeviceSpec{Type: mapping.CaptureCard, Index: uint32(*cardIndex)}
		m.SetSimpleInput(uint32(*cardIndex))
		stop := make(chan struct{})
		defer close(stop)
		go func() {
			if err := playWAVSource(m, spec, *sourceWAV, periodSamples, stop); err != nil {
				log.Error("wav source failed", "error", err.Error())
			}
		}()
	} else {
		if err := pool.Init(); err != nil {
			log.Fatal("pool init failed", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		m.SetSimpleInput(uint32(*cardIndex))
		pool.HoldDevice(uint32(*cardIndex))
		pool.ResetDevice(uint32(*cardIndex))
	}

	deadline := time.Now().Add(*seconds)
	period := time.Duration(periodSamples) * time.Second / time.Duration(cfg.SampleRate)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for ts := range ticker.C {
		m.GetOutput(ts, periodSamples, resample.AdjustRate)
		if *seconds > 0 && time.Now().After(deadline) {
			break
		}
	}
}
