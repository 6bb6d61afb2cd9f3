/*
NAME
  wavsource.go

DESCRIPTION
  wavsource.go lets audiomixer-bench drive the mixer from a WAV file
  instead of a live ALSA card, for running S2/S5-style scenarios without
  hardware. Decoding uses go-audio/wav and go-audio/audio.

AUTHOR
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/go-audio/wav"

	"github.com/ausocean/audiomixer/mixer"
	"github.com/ausocean/audiomixer/mixer/mapping"
	"github.com/ausocean/audiomixer/mixer/resample"
)

// loadWAVSamples decodes path into interleaved float64 samples in
// [-1, 1] plus the file's channel count and sample rate.
func loadWAVSamples(path string) (samples []float64, numChannels, sampleRate int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("audiomixer-bench: decode wav: %w", err)
	}

	peak := float64(int(1) << uint(buf.SourceBitDepth-1))
	samples = make([]float64, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float64(v) / peak
	}
	return samples, buf.Format.NumChannels, buf.Format.SampleRate, nil
}

// playWAVSource feeds wavPath's samples into m as deviceSpec, looping
// forever in period-sized chunks until stop is closed.
func playWAVSource(m *mixer.Mixer, deviceSpec mapping.DeviceSpec, wavPath string, periodSamples int, stop <-chan struct{}) error {
	samples, numChannels, sampleRate, err := loadWAVSamples(wavPath)
	if err != nil {
		return err
	}
	frameLen := numChannels
	numFrames := len(samples) / frameLen

	period := time.Duration(periodSamples) * time.Second / time.Duration(sampleRate)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	pos := 0
	for {
		select {
		case <-stop:
			return nil
		case ts := <-ticker.C:
			chunk := make([]float64, periodSamples*frameLen)
			for i := 0; i < periodSamples; i++ {
				src := ((pos + i) % numFrames) * frameLen
				copy(chunk[i*frameLen:(i+1)*frameLen], samples[src:src+frameLen])
			}
			pos = (pos + periodSamples) % numFrames
			m.AddAudio(deviceSpec, chunk, periodSamples, numChannels, sampleRate, ts, resample.AdjustRate)
		}
	}
}
