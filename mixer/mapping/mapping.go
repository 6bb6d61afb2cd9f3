/*
NAME
  mapping.go

DESCRIPTION
  mapping.go defines the device identity and bus routing types shared
  between the ALSA device pool and the audio mixer: DeviceSpec,
  DeviceInfo, InputMapping and BusSettings.

AUTHOR
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package mapping defines the bus/device routing model used by the audio
// mixer: device identity (DeviceSpec), device description (DeviceInfo),
// and the user-editable input mapping (InputMapping, Bus, BusSettings).
package mapping

import (
	"fmt"
)

// MaxBuses is the largest number of buses an InputMapping may hold.
const MaxBuses = 256

// SourceType tags the kind of audio source a DeviceSpec refers to.
type SourceType int

const (
	Silence SourceType = iota
	CaptureCard
	ALSAInput
)

func (t SourceType) String() string {
	switch t {
	case Silence:
		return "SILENCE"
	case CaptureCard:
		return "CAPTURE_CARD"
	case ALSAInput:
		return "ALSA_INPUT"
	default:
		return fmt.Sprintf("SourceType(%d)", int(t))
	}
}

// DeviceSpec identifies an audio source: its type and, for CaptureCard
// and ALSAInput, an index into the owning pool's device registry. It is
// a value type (never a pointer) so that it can be used as a map key and
// stored directly in a Bus without aliasing pool-side state.
type DeviceSpec struct {
	Type  SourceType
	Index uint32
}

// Less gives DeviceSpec a total order, primarily so device snapshots can
// be sorted deterministically for display and for stable test output.
func (d DeviceSpec) Less(other DeviceSpec) bool {
	if d.Type != other.Type {
		return d.Type < other.Type
	}
	return d.Index < other.Index
}

// DeviceInfo describes a device for display and for matching on replug.
type DeviceInfo struct {
	DisplayName string
	NumChannels uint32

	// ALSA-only fields; zero value for non-ALSA devices.
	ALSAName    string
	ALSAInfo    string
	ALSAAddress string // Pool address: card title and device title joined by "/".
}

// Bus is one stereo routing entry in an InputMapping. SourceChannel is
// indexed [0]=left, [1]=right; -1 means "silence on this side".
type Bus struct {
	Name          string
	Device        DeviceSpec
	SourceChannel [2]int32
}

// InputMapping is an ordered list of buses. The zero value is the empty
// mapping (no buses).
type InputMapping struct {
	Buses []Bus
}

// NumBuses returns the number of buses in the mapping.
func (m InputMapping) NumBuses() int { return len(m.Buses) }

// Validate checks that the bus count stays within MaxBuses, and that
// for CaptureCard/ALSAInput devices, each non-silence
// source channel must be a valid index into the referenced device's
// channel count. numChannels maps a DeviceSpec to its channel count, as
// known by the caller (typically from a device snapshot).
func (m InputMapping) Validate(numChannels map[DeviceSpec]uint32) error {
	var errs MultiError
	if len(m.Buses) > MaxBuses {
		errs = append(errs, fmt.Errorf("mapping: %d buses exceeds MaxBuses (%d)", len(m.Buses), MaxBuses))
	}
	for i, b := range m.Buses {
		if b.Device.Type == Silence {
			continue
		}
		n, ok := numChannels[b.Device]
		if !ok {
			// Unknown devices are tolerated here; ALSAPool synthesizes
			// DEAD placeholders for them. Only range-check when we know
			// the channel count.
			continue
		}
		for side, ch := range b.SourceChannel {
			if ch < -1 || ch >= int32(n) {
				errs = append(errs, fmt.Errorf("mapping: bus %d (%q) side %d: channel %d out of range [-1,%d)", i, b.Name, side, ch, n))
			}
		}
	}
	if len(errs) != 0 {
		return errs
	}
	return nil
}

// EQBand names one of the three bands of a bus's EQ stage.
type EQBand int

const (
	EQBass EQBand = iota
	EQMid
	EQTreble
	NumEQBands
)

// BusSettings is the full set of per-bus DSP parameters, persisted and
// editable independently of the routing in Bus. The mixer keeps one
// BusSettings per bus index and carries it over unchanged when a new
// mapping with a bus at that index is set.
type BusSettings struct {
	FaderVolumeDB float32
	Muted         bool

	LocutEnabled bool
	EQLevelDB    [NumEQBands]float32

	GainStagingDB          float32
	GainStagingAuto        bool
	CompressorThresholdDBFS float32
	CompressorEnabled      bool
}

// DefaultBusSettings returns the power-on defaults used by both
// SIMPLE and MULTICHANNEL mapping construction.
func DefaultBusSettings() BusSettings {
	return BusSettings{
		FaderVolumeDB:           0.0,
		Muted:                   false,
		LocutEnabled:            true,
		GainStagingDB:           0.0,
		GainStagingAuto:         true,
		CompressorThresholdDBFS: -12.0,
		CompressorEnabled:       true,
	}
}

// MultiError aggregates several validation errors.
type MultiError []error

func (me MultiError) Error() string {
	if len(me) == 0 {
		panic("mapping: invalid use of MultiError")
	}
	return fmt.Sprintf("%v", []error(me))
}

// SimpleMapping builds the MappingMode SIMPLE mapping: exactly one bus
// named "Main", channels 0/1 of the given capture card. It carries no
// fader level; bus settings such as the fader stay adjustable as for any
// other mapping.
func SimpleMapping(cardIndex uint32) InputMapping {
	return InputMapping{
		Buses: []Bus{
			{
				Name:          "Main",
				Device:        DeviceSpec{Type: CaptureCard, Index: cardIndex},
				SourceChannel: [2]int32{0, 1},
			},
		},
	}
}

// AsSimple reports whether m is representable as a SIMPLE mapping, and
// if so, returns the capture card index it binds to.
func AsSimple(m InputMapping) (cardIndex uint32, ok bool) {
	if len(m.Buses) != 1 {
		return 0, false
	}
	b := m.Buses[0]
	if b.Device.Type != CaptureCard || b.SourceChannel != [2]int32{0, 1} {
		return 0, false
	}
	return b.Device.Index, true
}

// InterestingChannels computes, for every device referenced by m, the
// set of channel indices read by at least one bus. Silence devices and -1 source channels never
// contribute.
func InterestingChannels(m InputMapping) map[DeviceSpec]map[int32]bool {
	out := make(map[DeviceSpec]map[int32]bool)
	for _, b := range m.Buses {
		if b.Device.Type == Silence {
			continue
		}
		set := out[b.Device]
		if set == nil {
			set = make(map[int32]bool)
			out[b.Device] = set
		}
		for _, ch := range b.SourceChannel {
			if ch >= 0 {
				set[ch] = true
			}
		}
	}
	return out
}
