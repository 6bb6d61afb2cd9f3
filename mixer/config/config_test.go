package config

import (
	"testing"
	"time"
)

type discardLogger struct{ infos int }

func (l *discardLogger) Debug(msg string, args ...interface{})   {}
func (l *discardLogger) Info(msg string, args ...interface{})    { l.infos++ }
func (l *discardLogger) Warning(msg string, args ...interface{}) {}
func (l *discardLogger) Error(msg string, args ...interface{})   {}
func (l *discardLogger) Fatal(msg string, args ...interface{})   {}

func TestValidateDefaultsZeroFields(t *testing.T) {
	l := &discardLogger{}
	c := &Config{Logger: l}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if c.SampleRate != 48000 {
		t.Fatalf("SampleRate default = %v, want 48000", c.SampleRate)
	}
	if c.Channels != 2 {
		t.Fatalf("Channels default = %v, want 2", c.Channels)
	}
	if c.BitDepth != 16 {
		t.Fatalf("BitDepth default = %v, want 16", c.BitDepth)
	}
	if c.PeriodDuration != 10*time.Millisecond {
		t.Fatalf("PeriodDuration default = %v, want 10ms", c.PeriodDuration)
	}
	if c.HotplugInterval != time.Second {
		t.Fatalf("HotplugInterval default = %v, want 1s", c.HotplugInterval)
	}
	if c.ExpectedDelay != 100*time.Millisecond {
		t.Fatalf("ExpectedDelay default = %v, want 100ms", c.ExpectedDelay)
	}
	if l.infos == 0 {
		t.Fatalf("expected each defaulted field to be logged")
	}
}

func TestValidatePreservesExplicitValues(t *testing.T) {
	l := &discardLogger{}
	c := &Config{
		Logger:          l,
		SampleRate:      96000,
		Channels:        1,
		BitDepth:        32,
		PeriodDuration:  5 * time.Millisecond,
		HotplugInterval: 2 * time.Second,
		ExpectedDelay:   50 * time.Millisecond,
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if c.SampleRate != 96000 || c.Channels != 1 || c.BitDepth != 32 {
		t.Fatalf("Validate() should not override explicitly set fields: %+v", c)
	}
	if l.infos != 0 {
		t.Fatalf("no defaulting should have been logged, got %d calls", l.infos)
	}
}
