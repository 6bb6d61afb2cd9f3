/*
NAME
  persist.go

DESCRIPTION
  persist.go implements the on-disk format for an InputMapping: a device
  table plus a bus table, referencing devices by descriptor rather than
  by pool index, so that a saved mapping survives replug and reboot.

AUTHOR
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package mapping

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// DeadCardCreator synthesizes a DEAD, held pool entry for a device
// referenced by a saved mapping that can no longer be found, so that the
// bus structure survives the absence.
// ALSAPool implements this.
type DeadCardCreator interface {
	CreateDeadCard(name, info string, numChannels uint32) DeviceSpec
}

// Save writes mapping to w as a device table followed by a bus table, in
// a small text format modelled on protobuf's human-readable text
// encoding (one "message { field: value ... }" block per record). See
// DESIGN.md for why a hand-rolled codec is used here instead of
// generated protobuf code.
//
// devices must contain a DeviceInfo for every non-SILENCE DeviceSpec
// referenced by mapping; Save returns an error otherwise. A SILENCE
// device without an entry is written with an empty DeviceInfo.
func Save(w io.Writer, devices map[DeviceSpec]DeviceInfo, mapping InputMapping) error {
	bw := bufio.NewWriter(w)

	// Assign each referenced device a stable table index in first-seen
	// order, so the bus table can refer to it positionally.
	order := make([]DeviceSpec, 0, len(mapping.Buses))
	index := make(map[DeviceSpec]int)
	for _, b := range mapping.Buses {
		if _, ok := index[b.Device]; ok {
			continue
		}
		index[b.Device] = len(order)
		order = append(order, b.Device)
	}

	for i, spec := range order {
		info, ok := devices[spec]
		if !ok && spec.Type != Silence {
			return errors.Errorf("mapping: save: no DeviceInfo for device %v referenced by bus table", spec)
		}
		fmt.Fprintf(bw, "device {\n")
		fmt.Fprintf(bw, "  index: %d\n", i)
		fmt.Fprintf(bw, "  type: %s\n", spec.Type.String())
		fmt.Fprintf(bw, "  display_name: %s\n", quote(info.DisplayName))
		fmt.Fprintf(bw, "  num_channels: %d\n", info.NumChannels)
		if spec.Type == ALSAInput {
			fmt.Fprintf(bw, "  alsa_name: %s\n", quote(info.ALSAName))
			fmt.Fprintf(bw, "  alsa_info: %s\n", quote(info.ALSAInfo))
			fmt.Fprintf(bw, "  alsa_address: %s\n", quote(info.ALSAAddress))
		}
		fmt.Fprintf(bw, "}\n")
	}

	for _, b := range mapping.Buses {
		fmt.Fprintf(bw, "bus {\n")
		fmt.Fprintf(bw, "  name: %s\n", quote(b.Name))
		fmt.Fprintf(bw, "  device_index: %d\n", index[b.Device])
		fmt.Fprintf(bw, "  source_channel_left: %d\n", b.SourceChannel[0])
		fmt.Fprintf(bw, "  source_channel_right: %d\n", b.SourceChannel[1])
		fmt.Fprintf(bw, "}\n")
	}

	return bw.Flush()
}

// savedDevice is one parsed "device { ... }" block.
type savedDevice struct {
	spec SourceType
	info DeviceInfo
}

// Load parses the format written by Save. For each recorded device, it
// first tries an exact match against devices (type, name, info,
// channels, address); failing that, a relaxed match ignoring address;
// failing that, it synthesizes a DEAD card via create. The returned
// mapping's bus list always matches the saved one structurally, even if
// every device it references has vanished.
func Load(r io.Reader, devices map[DeviceSpec]DeviceInfo, create DeadCardCreator) (InputMapping, error) {
	blocks, err := parseBlocks(r)
	if err != nil {
		return InputMapping{}, errors.Wrap(err, "mapping: load")
	}

	tableIndex := make(map[int]DeviceSpec)
	for _, blk := range blocks {
		if blk.kind != "device" {
			continue
		}
		idx, err := strconv.Atoi(blk.fields["index"])
		if err != nil {
			return InputMapping{}, errors.Wrapf(err, "mapping: load: bad device index %q", blk.fields["index"])
		}
		typ, err := parseSourceType(blk.fields["type"])
		if err != nil {
			return InputMapping{}, err
		}
		numChannels, _ := strconv.Atoi(blk.fields["num_channels"])
		want := DeviceInfo{
			DisplayName: blk.fields["display_name"],
			NumChannels: uint32(numChannels),
			ALSAName:    blk.fields["alsa_name"],
			ALSAInfo:    blk.fields["alsa_info"],
			ALSAAddress: blk.fields["alsa_address"],
		}
		tableIndex[idx] = resolveDevice(typ, want, devices, create)
	}

	var mapping InputMapping
	for _, blk := range blocks {
		if blk.kind != "bus" {
			continue
		}
		devIdx, err := strconv.Atoi(blk.fields["device_index"])
		if err != nil {
			return InputMapping{}, errors.Wrapf(err, "mapping: load: bad bus device_index %q", blk.fields["device_index"])
		}
		left, _ := strconv.Atoi(blk.fields["source_channel_left"])
		right, _ := strconv.Atoi(blk.fields["source_channel_right"])
		mapping.Buses = append(mapping.Buses, Bus{
			Name:          blk.fields["name"],
			Device:        tableIndex[devIdx],
			SourceChannel: [2]int32{int32(left), int32(right)},
		})
	}

	return mapping, nil
}

// resolveDevice implements a match-or-synthesize policy: exact match,
// then relaxed match on name+info+channel count, then a synthesized
// DEAD card.
func resolveDevice(typ SourceType, want DeviceInfo, devices map[DeviceSpec]DeviceInfo, create DeadCardCreator) DeviceSpec {
	if typ == Silence {
		return DeviceSpec{Type: Silence}
	}
	for spec, info := range devices {
		if spec.Type != typ {
			continue
		}
		if info == want {
			return spec // Exact match, including ALSA address.
		}
	}
	for spec, info := range devices {
		if spec.Type != typ {
			continue
		}
		if info.DisplayName == want.DisplayName && info.ALSAName == want.ALSAName &&
			info.ALSAInfo == want.ALSAInfo && info.NumChannels == want.NumChannels {
			return spec // Relaxed match, ignoring address.
		}
	}
	return create.CreateDeadCard(want.ALSAName, want.ALSAInfo, want.NumChannels)
}

func parseSourceType(s string) (SourceType, error) {
	switch s {
	case "SILENCE":
		return Silence, nil
	case "CAPTURE_CARD":
		return CaptureCard, nil
	case "ALSA_INPUT":
		return ALSAInput, nil
	default:
		return 0, errors.Errorf("mapping: load: unknown device type %q", s)
	}
}

type block struct {
	kind   string
	fields map[string]string
}

// parseBlocks does a minimal, line-oriented parse of the "kind { k: v
// ... }" format written by Save. It is intentionally forgiving of
// whitespace and silent about unknown fields, since the format has no
// schema evolution story beyond "ignore what you don't recognize".
func parseBlocks(r io.Reader) ([]block, error) {
	sc := bufio.NewScanner(r)
	var blocks []block
	var cur *block
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		switch {
		case strings.HasSuffix(line, "{"):
			kind := strings.TrimSpace(strings.TrimSuffix(line, "{"))
			cur = &block{kind: kind, fields: make(map[string]string)}
		case line == "}":
			if cur != nil {
				blocks = append(blocks, *cur)
				cur = nil
			}
		default:
			if cur == nil {
				continue
			}
			k, v, ok := strings.Cut(line, ":")
			if !ok {
				continue
			}
			cur.fields[strings.TrimSpace(k)] = unquote(strings.TrimSpace(v))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return blocks, nil
}

func quote(s string) string {
	return strconv.Quote(s)
}

func unquote(s string) string {
	if v, err := strconv.Unquote(s); err == nil {
		return v
	}
	return s
}
