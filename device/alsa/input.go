/*
NAME
  input.go

DESCRIPTION
  input.go implements ALSAInput: capture from a single ALSA PCM device in
  its own goroutine, feeding samples to a callback as float64 interleaved
  frames with a wall-clock timestamp. The device negotiation sequence
  (NegotiateChannels/Rate/Format/PeriodSize/BufferSize, Prepare) and the
  read-error-triggers-reopen loop are carried over from alsa.go's
  open()/input(), generalized from a single fixed device to one picked by
  card title and device title and reporting back into ALSAPool instead of
  a ring buffer.

AUTHOR
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package alsa provides the ALSA device pool and hotplug-aware capture
// inputs backing the mixer's AudioDevice sources.
package alsa

import (
	"errors"
	"fmt"
	"sync"
	"time"

	yalsa "github.com/yobert/alsa"

	"github.com/ausocean/utils/logging"
)

// AudioCallback receives one chunk of captured audio: interleaved float64
// samples in [-1, 1], numFrames frames of numChannels each, the
// wall-clock time the chunk finished arriving, and the device's reported
// sample rate (which may differ slightly from the one requested).
type AudioCallback func(samples []float64, numFrames int, ts time.Time, sampleRate int)

// wantPeriod mirrors alsa.go's 50ms target period for low-ish latency
// capture.
const wantPeriod = 0.05

// Input runs ALSA capture from a single card/device pair in a dedicated
// goroutine, delivering chunks to a callback until stopped.
type Input struct {
	l logging.Logger

	cardName  string
	devTitle  string
	sampleRate int
	numChannels int

	callback AudioCallback

	mu      sync.Mutex
	running bool
	quit    chan struct{}
	done    chan struct{}

	dev *yalsa.Device
}

// NewInput constructs an Input for the ALSA device matching cardName and
// devTitle (as reported by yobert/alsa's Card.Devices), requesting
// sampleRate and numChannels (best-effort; the device may negotiate
// something else).
func NewInput(l logging.Logger, cardName, devTitle string, sampleRate, numChannels int, callback AudioCallback) *Input {
	return &Input{
		l:           l,
		cardName:    cardName,
		devTitle:    devTitle,
		sampleRate:  sampleRate,
		numChannels: numChannels,
		callback:    callback,
	}
}

// SampleRate returns the rate actually negotiated with the device. Not
// valid before a successful Start.
func (in *Input) SampleRate() int { return in.sampleRate }

// Start opens the device and begins the capture goroutine. It blocks
// until the device has been successfully opened and negotiated, or
// returns an error if it cannot be.
func (in *Input) Start() error {
	if err := in.open(); err != nil {
		return err
	}
	in.mu.Lock()
	in.running = true
	in.quit = make(chan struct{})
	in.done = make(chan struct{})
	in.mu.Unlock()
	go in.captureLoop()
	return nil
}

// Stop signals the capture goroutine to exit and waits for it to finish
// closing the device.
func (in *Input) Stop() {
	in.mu.Lock()
	if !in.running {
		in.mu.Unlock()
		return
	}
	in.running = false
	close(in.quit)
	done := in.done
	in.mu.Unlock()
	<-done
}

// open finds and negotiates the target ALSA device, following the same
// negotiation sequence as alsa.go's open().
func (in *Input) open() error {
	cards, err := yalsa.OpenCards()
	if err != nil {
		return fmt.Errorf("alsa: open cards: %w", err)
	}
	defer yalsa.CloseCards(cards)

	var dev *yalsa.Device
	for _, card := range cards {
		if card.Title != in.cardName {
			continue
		}
		devices, err := card.Devices()
		if err != nil {
			continue
		}
		for _, d := range devices {
			if d.Type != yalsa.PCM || !d.Record {
				continue
			}
			if d.Title == in.devTitle || in.devTitle == "" {
				dev = d
				break
			}
		}
	}
	if dev == nil {
		return errors.New("alsa: no matching device found")
	}

	if err := dev.Open(); err != nil {
		return fmt.Errorf("alsa: open device: %w", err)
	}

	channels, err := dev.NegotiateChannels(in.numChannels)
	if err != nil && in.numChannels == 1 {
		in.l.Info("device is unable to record in mono, trying stereo", "error", err)
		channels, err = dev.NegotiateChannels(2)
	}
	if err != nil {
		dev.Close()
		return fmt.Errorf("alsa: negotiate channels: %w", err)
	}

	rate, err := dev.NegotiateRate(in.sampleRate)
	if err != nil {
		dev.Close()
		return fmt.Errorf("alsa: negotiate rate: %w", err)
	}

	devFmt, err := dev.NegotiateFormat(yalsa.S16_LE)
	if err != nil {
		devFmt, err = dev.NegotiateFormat(yalsa.S32_LE)
	}
	if err != nil {
		dev.Close()
		return fmt.Errorf("alsa: negotiate format: %w", err)
	}
	bitdepth := 16
	if devFmt == yalsa.S32_LE {
		bitdepth = 32
	}

	bytesPerSecond := rate * channels * (bitdepth / 8)
	wantPeriodSize := int(float64(bytesPerSecond) * wantPeriod)
	periodSize, err := dev.NegotiatePeriodSize(nearestPowerOfTwo(wantPeriodSize))
	if err != nil {
		dev.Close()
		return fmt.Errorf("alsa: negotiate period size: %w", err)
	}
	if _, err := dev.NegotiateBufferSize(periodSize * 4); err != nil {
		dev.Close()
		return fmt.Errorf("alsa: negotiate buffer size: %w", err)
	}
	if err := dev.Prepare(); err != nil {
		dev.Close()
		return fmt.Errorf("alsa: prepare: %w", err)
	}

	in.dev = dev
	in.sampleRate = rate
	in.numChannels = channels
	return nil
}

// captureLoop reads from the device continuously, converting each chunk
// to float64 and delivering it to the callback. A read error triggers a
// single device reopen, matching alsa.go's input()/chunkingRead()
// behaviour. If that reopen fails, the goroutine logs the error and
// exits; the pool is not notified, so its entry keeps its RUNNING state
// and this Input.
func (in *Input) captureLoop() {
	defer close(in.done)
	defer func() {
		if in.dev != nil {
			in.dev.Close()
			in.dev = nil
		}
	}()

	buf := in.dev.NewBufferDuration(200 * time.Millisecond)
	for {
		select {
		case <-in.quit:
			return
		default:
		}

		err := in.dev.Read(buf.Data)
		if err != nil {
			in.l.Warning("alsa: read failed, reopening device", "error", err.Error())
			if in.dev != nil {
				in.dev.Close()
			}
			if err := in.open(); err != nil {
				in.l.Error("alsa: reopen failed", "error", err.Error())
				return
			}
			buf = in.dev.NewBufferDuration(200 * time.Millisecond)
			continue
		}

		if in.callback == nil {
			continue
		}
		samples, numFrames := decodeFrames(buf, in.numChannels)
		in.callback(samples, numFrames, time.Now(), in.sampleRate)
	}
}

// nearestPowerOfTwo returns the power of two closest to n, carried over
// unchanged from alsa.go's helper of the same name. A tie goes to the
// higher power; n <= 0 gives 1 and n == 1 gives 2.
func nearestPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}
	if n == 1 {
		return 2
	}
	lower := 1
	for lower*2 <= n {
		lower *= 2
	}
	upper := lower * 2
	if n-lower < upper-n {
		return lower
	}
	return upper
}
