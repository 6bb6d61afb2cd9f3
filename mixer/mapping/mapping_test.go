package mapping

import "testing"

func TestSimpleMapping(t *testing.T) {
	m := SimpleMapping(3)
	if len(m.Buses) != 1 {
		t.Fatalf("SimpleMapping should have exactly one bus, got %d", len(m.Buses))
	}
	b := m.Buses[0]
	if b.Device != (DeviceSpec{Type: CaptureCard, Index: 3}) {
		t.Fatalf("SimpleMapping bus should route card 3, got %+v", b.Device)
	}
	if b.SourceChannel != [2]int32{0, 1} {
		t.Fatalf("SimpleMapping should route channels 0/1, got %v", b.SourceChannel)
	}
}

func TestAsSimpleRoundTrip(t *testing.T) {
	m := SimpleMapping(7)
	idx, ok := AsSimple(m)
	if !ok || idx != 7 {
		t.Fatalf("AsSimple(SimpleMapping(7)) = %v, %v; want 7, true", idx, ok)
	}
}

func TestAsSimpleRejectsMultiBus(t *testing.T) {
	m := InputMapping{Buses: []Bus{
		{Name: "A", Device: DeviceSpec{Type: CaptureCard, Index: 0}, SourceChannel: [2]int32{0, 1}},
		{Name: "B", Device: DeviceSpec{Type: CaptureCard, Index: 1}, SourceChannel: [2]int32{0, 1}},
	}}
	if _, ok := AsSimple(m); ok {
		t.Fatalf("a two-bus mapping should not be representable as SIMPLE")
	}
}

func TestAsSimpleRejectsNonDefaultChannels(t *testing.T) {
	m := InputMapping{Buses: []Bus{
		{Name: "A", Device: DeviceSpec{Type: CaptureCard, Index: 0}, SourceChannel: [2]int32{2, 3}},
	}}
	if _, ok := AsSimple(m); ok {
		t.Fatalf("a bus routing non-default channels should not be representable as SIMPLE")
	}
}

func TestValidateRejectsOutOfRangeChannel(t *testing.T) {
	spec := DeviceSpec{Type: CaptureCard, Index: 0}
	m := InputMapping{Buses: []Bus{
		{Name: "A", Device: spec, SourceChannel: [2]int32{0, 5}},
	}}
	err := m.Validate(map[DeviceSpec]uint32{spec: 2})
	if err == nil {
		t.Fatalf("expected an error for a channel index beyond the device's channel count")
	}
}

func TestValidateAcceptsSilenceChannel(t *testing.T) {
	spec := DeviceSpec{Type: CaptureCard, Index: 0}
	m := InputMapping{Buses: []Bus{
		{Name: "A", Device: spec, SourceChannel: [2]int32{-1, 0}},
	}}
	if err := m.Validate(map[DeviceSpec]uint32{spec: 2}); err != nil {
		t.Fatalf("SourceChannel -1 (silence) should always validate, got %v", err)
	}
}

func TestValidateRejectsTooManyBuses(t *testing.T) {
	var buses []Bus
	for i := 0; i < MaxBuses+1; i++ {
		buses = append(buses, Bus{Name: "x", Device: DeviceSpec{Type: Silence}})
	}
	m := InputMapping{Buses: buses}
	if err := m.Validate(nil); err == nil {
		t.Fatalf("expected an error when bus count exceeds MaxBuses")
	}
}

func TestValidateToleratesUnknownDevice(t *testing.T) {
	spec := DeviceSpec{Type: ALSAInput, Index: 99}
	m := InputMapping{Buses: []Bus{
		{Name: "A", Device: spec, SourceChannel: [2]int32{0, 1}},
	}}
	if err := m.Validate(map[DeviceSpec]uint32{}); err != nil {
		t.Fatalf("an unknown device should be tolerated (ALSAPool synthesizes DEAD cards), got %v", err)
	}
}

func TestInterestingChannels(t *testing.T) {
	spec := DeviceSpec{Type: CaptureCard, Index: 0}
	m := InputMapping{Buses: []Bus{
		{Name: "A", Device: spec, SourceChannel: [2]int32{0, 2}},
		{Name: "B", Device: spec, SourceChannel: [2]int32{-1, 3}},
		{Name: "C", Device: DeviceSpec{Type: Silence}, SourceChannel: [2]int32{0, 1}},
	}}
	got := InterestingChannels(m)
	set, ok := got[spec]
	if !ok {
		t.Fatalf("expected an entry for %v", spec)
	}
	want := map[int32]bool{0: true, 2: true, 3: true}
	if len(set) != len(want) {
		t.Fatalf("InterestingChannels() = %v, want %v", set, want)
	}
	for ch := range want {
		if !set[ch] {
			t.Fatalf("missing channel %d in %v", ch, set)
		}
	}
	if _, ok := got[DeviceSpec{Type: Silence}]; ok {
		t.Fatalf("SILENCE devices should never appear in InterestingChannels")
	}
}

func TestDeviceSpecLess(t *testing.T) {
	a := DeviceSpec{Type: CaptureCard, Index: 0}
	b := DeviceSpec{Type: CaptureCard, Index: 1}
	c := DeviceSpec{Type: ALSAInput, Index: 0}
	if !a.Less(b) {
		t.Fatalf("expected %v < %v by index", a, b)
	}
	if !b.Less(c) {
		t.Fatalf("expected %v < %v by type", b, c)
	}
	if c.Less(a) {
		t.Fatalf("did not expect %v < %v", c, a)
	}
}

func TestDefaultBusSettings(t *testing.T) {
	s := DefaultBusSettings()
	if s.Muted {
		t.Fatalf("default bus should not be muted")
	}
	if !s.LocutEnabled {
		t.Fatalf("default bus should have locut enabled")
	}
	if !s.GainStagingAuto {
		t.Fatalf("default bus should have automatic gain staging")
	}
	if !s.CompressorEnabled {
		t.Fatalf("default bus should have its compressor enabled")
	}
}
