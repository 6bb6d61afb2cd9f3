/*
NAME
  config.go

DESCRIPTION
  config.go defines Config, the flat set of tunables the mixer and
  device pool are constructed from, together with validation and
  defaulting in the style of revid/config.Config.

AUTHOR
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package config holds the audiomixer's configuration type.
package config

import (
	"time"

	"github.com/ausocean/utils/logging"
)

// Config holds every tunable needed to construct an ALSAPool and
// AudioMixer pair.
type Config struct {
	// SampleRate is the mixer's output sample rate in Hz. All devices are
	// resampled to this rate regardless of their native rate.
	SampleRate uint

	// Channels is the number of channels per bus; only 2 (stereo) is
	// currently supported.
	Channels uint

	// BitDepth is a capture bit depth setting. Validate defaults it, but
	// neither the device pool nor the mixer reads it: each capture Input
	// negotiates S16_LE itself and falls back to S32_LE.
	BitDepth uint

	// PeriodDuration is a capture period setting. Validate defaults it,
	// but neither the device pool nor the mixer reads it.
	PeriodDuration time.Duration

	// HotplugInterval is a device rescan interval setting. Validate
	// defaults it, but neither the device pool nor the mixer reads it: the
	// pool rescans when fsnotify reports a change under /dev/snd.
	HotplugInterval time.Duration

	// ExpectedDelay is the target end-to-end queueing delay each
	// resampling queue's PLL steers toward.
	ExpectedDelay time.Duration

	// MappingPath names a bus mapping file. Neither the device pool nor
	// the mixer reads it; mapping files are read and written only through
	// mapping.Load and mapping.Save.
	MappingPath string

	// Logger receives structured diagnostics from every mixer component.
	// Must be set.
	Logger logging.Logger

	// LogLevel is a logging verbosity setting; see the logging package
	// for valid values (logging.Debug, logging.Info, ...). Neither the
	// device pool nor the mixer reads it.
	LogLevel int8
}

// Validate checks Config for inconsistent settings, defaulting anything
// left unset and logging each default applied. It never returns an
// error; a Config with a nil Logger is itself a programmer error and
// will panic the first time a default needs to be logged.
func (c *Config) Validate() error {
	if c.SampleRate == 0 {
		c.LogInvalidField("SampleRate", uint(48000))
		c.SampleRate = 48000
	}
	if c.Channels == 0 {
		c.LogInvalidField("Channels", uint(2))
		c.Channels = 2
	}
	if c.BitDepth == 0 {
		c.LogInvalidField("BitDepth", uint(16))
		c.BitDepth = 16
	}
	if c.PeriodDuration <= 0 {
		c.LogInvalidField("PeriodDuration", 10*time.Millisecond)
		c.PeriodDuration = 10 * time.Millisecond
	}
	if c.HotplugInterval <= 0 {
		c.LogInvalidField("HotplugInterval", time.Second)
		c.HotplugInterval = time.Second
	}
	if c.ExpectedDelay <= 0 {
		c.LogInvalidField("ExpectedDelay", 100*time.Millisecond)
		c.ExpectedDelay = 100 * time.Millisecond
	}
	return nil
}

// LogInvalidField logs that a field was unset or invalid and records
// the default it was given instead.
func (c *Config) LogInvalidField(name string, def interface{}) {
	c.Logger.Info(name+" bad or unset, defaulting", name, def)
}
