package alsa

import (
	"testing"

	"github.com/ausocean/audiomixer/mixer/mapping"
)

type discardLogger struct{}

func (discardLogger) Debug(msg string, args ...interface{})   {}
func (discardLogger) Info(msg string, args ...interface{})    {}
func (discardLogger) Warning(msg string, args ...interface{}) {}
func (discardLogger) Error(msg string, args ...interface{})   {}
func (discardLogger) Fatal(msg string, args ...interface{})   {}

func newTestPool() *Pool {
	return NewPool(discardLogger{}, 48000, 2, nil)
}

func TestStateString(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{Empty, "EMPTY"},
		{Ready, "READY"},
		{Starting, "STARTING"},
		{Running, "RUNNING"},
		{Dead, "DEAD"},
		{State(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}

func TestEntryDisplayName(t *testing.T) {
	e := entry{name: "USB Mic", info: "USB Audio Device"}
	if got, want := e.displayName(), "USB Mic (USB Audio Device)"; got != want {
		t.Errorf("displayName() = %q, want %q", got, want)
	}
}

func TestFindFreeIndexLockedReusesMatchingDeadEntry(t *testing.T) {
	p := newTestPool()
	p.devices = []entry{
		{state: Running},
		{state: Dead, name: "Old Mic", info: "card 1", numChannels: 2},
	}
	idx := p.findFreeIndexLocked("", "Old Mic", "card 1", 2)
	if idx != 1 {
		t.Fatalf("findFreeIndexLocked() = %d, want 1 (matching DEAD entry)", idx)
	}
}

func TestFindFreeIndexLockedReusesEmptySlotBeforeAppending(t *testing.T) {
	p := newTestPool()
	p.devices = []entry{
		{state: Running},
		{state: Empty},
	}
	idx := p.findFreeIndexLocked("hw:0,0", "New Mic", "card 0", 2)
	if idx != 1 {
		t.Fatalf("findFreeIndexLocked() = %d, want 1 (reuse EMPTY slot)", idx)
	}
}

func TestFindFreeIndexLockedAppendsWhenNoneFree(t *testing.T) {
	p := newTestPool()
	p.devices = []entry{{state: Running}}
	idx := p.findFreeIndexLocked("hw:0,0", "New Mic", "card 0", 2)
	if idx != 1 {
		t.Fatalf("findFreeIndexLocked() = %d, want 1 (append)", idx)
	}
	if len(p.devices) != 2 {
		t.Fatalf("len(devices) = %d, want 2 after appending", len(p.devices))
	}
	if p.devices[1].state != Empty {
		t.Fatalf("newly appended entry state = %v, want Empty", p.devices[1].state)
	}
}

func TestCreateDeadCardSynthesizesHeldDeadEntry(t *testing.T) {
	p := newTestPool()
	spec := p.CreateDeadCard("Missing Mic", "card 3", 2)
	if spec.Type != mapping.ALSAInput {
		t.Fatalf("CreateDeadCard() spec.Type = %v, want ALSAInput", spec.Type)
	}
	e := p.devices[spec.Index]
	if e.state != Dead {
		t.Fatalf("synthesized entry state = %v, want Dead", e.state)
	}
	if !e.held {
		t.Fatalf("synthesized entry should be held")
	}
}

func TestHoldAndReleaseDevice(t *testing.T) {
	p := newTestPool()
	p.devices = []entry{{state: Ready}}

	p.HoldDevice(0)
	if !p.devices[0].held {
		t.Fatalf("HoldDevice(0) did not set held")
	}
	p.ReleaseDevice(0)
	if p.devices[0].held {
		t.Fatalf("ReleaseDevice(0) did not clear held")
	}

	// Out-of-range indices must be silently ignored.
	p.HoldDevice(5)
	p.ReleaseDevice(5)
}

func TestCardStateOutOfRangeIsDead(t *testing.T) {
	p := newTestPool()
	if got := p.CardState(0); got != Dead {
		t.Fatalf("CardState() on an empty pool = %v, want Dead", got)
	}
}

func TestCaptureFrequencyDefaultsToPoolRate(t *testing.T) {
	p := newTestPool()
	p.devices = []entry{{state: Empty}}
	if got := p.CaptureFrequency(0); got != 48000 {
		t.Fatalf("CaptureFrequency(EMPTY) = %d, want the pool's nominal rate 48000", got)
	}
	if got := p.CaptureFrequency(99); got != 48000 {
		t.Fatalf("CaptureFrequency(out of range) = %d, want 48000", got)
	}
}

func TestCaptureFrequencyReportsActualRateWhenRunning(t *testing.T) {
	p := newTestPool()
	p.devices = []entry{{state: Running, sampleRate: 44100, input: &Input{}}}
	if got := p.CaptureFrequency(0); got != 44100 {
		t.Fatalf("CaptureFrequency(RUNNING) = %d, want 44100", got)
	}
}

func TestGetDevicesMarksEveryEntryHeld(t *testing.T) {
	p := newTestPool()
	p.devices = []entry{
		{state: Ready, name: "Mic A", numChannels: 2},
		{state: Dead, name: "Mic B", numChannels: 1},
	}
	snaps := p.GetDevices()
	if len(snaps) != 2 {
		t.Fatalf("GetDevices() returned %d snapshots, want 2", len(snaps))
	}
	for i := range p.devices {
		if !p.devices[i].held {
			t.Fatalf("GetDevices() should mark entry %d held", i)
		}
	}
	if snaps[0].Name != "Mic A" || snaps[0].NumChannels != 2 {
		t.Fatalf("snapshot 0 mismatch: %+v", snaps[0])
	}
}

func TestUnplugDeviceHeldBecomesDead(t *testing.T) {
	p := newTestPool()
	p.devices = []entry{{state: Running, address: "hw:0,0", held: true}}
	p.unplugDevice("hw:0,0")
	if p.devices[0].state != Dead {
		t.Fatalf("held device after unplug = %v, want Dead", p.devices[0].state)
	}
}

func TestUnplugDeviceUnheldIsForgotten(t *testing.T) {
	p := newTestPool()
	p.devices = []entry{{state: Running, address: "hw:0,0", held: false, name: "Mic"}}
	p.unplugDevice("hw:0,0")
	if p.devices[0].state != Empty || p.devices[0].name != "" {
		t.Fatalf("unheld device after unplug = %+v, want zero entry", p.devices[0])
	}
}

func TestUnplugDeviceIgnoresUnknownAddress(t *testing.T) {
	p := newTestPool()
	p.devices = []entry{{state: Running, address: "hw:0,0", held: true}}
	p.unplugDevice("hw:9,9")
	if p.devices[0].state != Running {
		t.Fatalf("unplugDevice with a non-matching address should not alter any entry")
	}
}
