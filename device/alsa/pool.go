/*
NAME
  pool.go

DESCRIPTION
  pool.go implements ALSAPool: enumeration and hotplug tracking of every
  ALSA capture-capable device on the system, with a held/EMPTY/READY/
  STARTING/RUNNING/DEAD state machine per device so that a bus mapping
  survives a card being unplugged and replugged. Structure is carried
  over from original_source/alsa_pool.{h,cpp}; the Linux inotify watch on
  /dev/snd is reimplemented with fsnotify, the way
  yobert/alsa-using code in this tree otherwise avoids hand-rolled
  syscall wrappers.

AUTHOR
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package alsa

import (
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	yalsa "github.com/yobert/alsa"

	"github.com/ausocean/audiomixer/mixer/mapping"
	"github.com/ausocean/utils/logging"
)

// State is a pool entry's position in the EMPTY -> READY -> STARTING ->
// RUNNING -> DEAD lifecycle.
type State int

const (
	Empty State = iota
	Ready
	Starting
	Running
	Dead
)

func (s State) String() string {
	switch s {
	case Empty:
		return "EMPTY"
	case Ready:
		return "READY"
	case Starting:
		return "STARTING"
	case Running:
		return "RUNNING"
	case Dead:
		return "DEAD"
	default:
		return "UNKNOWN"
	}
}

// numRetries is how many times a newly-seen device is retried before
// being given up on, mirroring ALSAPool::num_retries.
const numRetries = 10

// entry is one slot in the pool: at most one real ALSA device, ever.
type entry struct {
	state       State
	address     string // Card title and device title joined by "/".
	name, info  string
	numChannels uint32
	held        bool
	input       *Input // Non-nil only while capture is running.
	sampleRate  int
}

func (e entry) displayName() string {
	return fmt.Sprintf("%s (%s)", e.name, e.info)
}

// DeviceSnapshot is a read-only view of one pool entry, returned by
// GetDevices.
type DeviceSnapshot struct {
	Index       uint32
	State       State
	Address     string
	Name, Info  string
	NumChannels uint32
}

// Pool tracks every ALSA capture device the system has ever shown us,
// across hotplug, so that bus mappings referencing them remain valid.
type Pool struct {
	l logging.Logger

	sampleRate  int
	numChannels int

	mu      sync.Mutex
	devices []entry

	onSamples func(index uint32, samples []float64, numFrames int, ts time.Time, sampleRate int)

	quit chan struct{}
	wg   sync.WaitGroup
}

// NewPool constructs an empty Pool. onSamples is invoked (from an
// internal goroutine, never concurrently for the same index) whenever a
// running device delivers a chunk of audio.
func NewPool(l logging.Logger, sampleRate, numChannels int, onSamples func(index uint32, samples []float64, numFrames int, ts time.Time, sampleRate int)) *Pool {
	return &Pool{
		l:           l,
		sampleRate:  sampleRate,
		numChannels: numChannels,
		onSamples:   onSamples,
		quit:        make(chan struct{}),
	}
}

// Init performs an initial enumeration and starts the hotplug watcher.
func (p *Pool) Init() error {
	p.enumerateDevices()
	p.wg.Add(1)
	go p.watchHotplug()
	return nil
}

// Close stops the hotplug watcher and every running capture goroutine.
func (p *Pool) Close() {
	close(p.quit)
	p.wg.Wait()
	p.mu.Lock()
	for i := range p.devices {
		if p.devices[i].input != nil {
			p.devices[i].input.Stop()
			p.devices[i].input = nil
		}
	}
	p.mu.Unlock()
}

// GetDevices returns a snapshot of every known device, implicitly
// marking each one held: a held device survives hotplug removal as a
// DEAD entry instead of being forgotten, so a UI enumerating devices
// gets stable indices. Call ReleaseDevice on every index you don't end
// up using.
func (p *Pool) GetDevices() []DeviceSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]DeviceSnapshot, len(p.devices))
	for i := range p.devices {
		p.devices[i].held = true
		out[i] = DeviceSnapshot{
			Index:       uint32(i),
			State:       p.devices[i].state,
			Address:     p.devices[i].address,
			Name:        p.devices[i].name,
			Info:        p.devices[i].info,
			NumChannels: p.devices[i].numChannels,
		}
	}
	return out
}

// HoldDevice marks index as in use by a bus mapping; an unplugged held
// device becomes DEAD instead of disappearing.
func (p *Pool) HoldDevice(index uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if int(index) < len(p.devices) {
		p.devices[index].held = true
	}
}

// ReleaseDevice clears the held flag; out-of-range indices are ignored.
func (p *Pool) ReleaseDevice(index uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if int(index) < len(p.devices) {
		p.devices[index].held = false
	}
}

// CardState returns the current state of index. The device must be
// held.
func (p *Pool) CardState(index uint32) State {
	p.mu.Lock()
	defer p.mu.Unlock()
	if int(index) >= len(p.devices) {
		return Dead
	}
	return p.devices[index].state
}

// CaptureFrequency returns the sample rate index is actually capturing
// at, or the pool's nominal output rate if the device has no open capture
// Input (always the case when it is EMPTY or DEAD).
func (p *Pool) CaptureFrequency(index uint32) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if int(index) >= len(p.devices) {
		return p.sampleRate
	}
	e := p.devices[index]
	if e.state == Empty || e.state == Dead || e.input == nil {
		return p.sampleRate
	}
	return e.sampleRate
}

// ResetDevice starts capture on index if it is held, or stops it if it
// is not held.
func (p *Pool) ResetDevice(index uint32) {
	p.mu.Lock()
	if int(index) >= len(p.devices) {
		p.mu.Unlock()
		return
	}
	e := &p.devices[index]
	if !e.held {
		if e.input != nil {
			e.input.Stop()
			e.input = nil
			e.state = Ready
		}
		p.mu.Unlock()
		return
	}
	if e.state != Ready {
		p.mu.Unlock()
		return
	}
	addr, name, info := e.address, e.name, e.info
	e.state = Starting
	p.mu.Unlock()

	p.startCapture(index, addr, name, info)
}

// CreateDeadCard synthesizes a held, DEAD entry for a device that a
// saved mapping references but that can't currently be found, so the
// bus structure survives its absence. Implements
// mapping.DeadCardCreator.
func (p *Pool) CreateDeadCard(name, info string, numChannels uint32) mapping.DeviceSpec {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := p.findFreeIndexLocked("", name, info, numChannels)
	p.devices[idx].state = Dead
	p.devices[idx].held = true
	return mapping.DeviceSpec{Type: mapping.ALSAInput, Index: uint32(idx)}
}

// findFreeIndexLocked returns the index of an EMPTY or matching DEAD
// slot, allocating a new one if none exists. Callers must hold p.mu.
func (p *Pool) findFreeIndexLocked(address, name, info string, numChannels uint32) int {
	for i, e := range p.devices {
		if e.state == Dead && e.name == name && e.info == info && e.numChannels == numChannels {
			return i
		}
	}
	for i, e := range p.devices {
		if e.state == Empty {
			return i
		}
	}
	p.devices = append(p.devices, entry{state: Empty})
	return len(p.devices) - 1
}

// enumerateDevices scans every ALSA card for capture-capable PCM
// devices not already tracked, registering new entries as READY.
func (p *Pool) enumerateDevices() {
	cards, err := yalsa.OpenCards()
	if err != nil {
		p.l.Error("alsa: enumerate: open cards failed", "error", err.Error())
		return
	}
	defer yalsa.CloseCards(cards)

	for _, card := range cards {
		devs, err := card.Devices()
		if err != nil {
			continue
		}
		for _, d := range devs {
			if d.Type != yalsa.PCM || !d.Record {
				continue
			}
			p.probeDeviceWithRetry(card.Title, d.Title)
		}
	}
}

// probeDeviceWithRetry tries to add device once, and if that fails for
// any reason, retries up to numRetries times in the background, one
// second apart.
func (p *Pool) probeDeviceWithRetry(cardTitle, devTitle string) {
	if p.registerIfNew(cardTitle, devTitle) {
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for i := 0; i < numRetries; i++ {
			select {
			case <-p.quit:
				return
			case <-time.After(time.Second):
			}
			if p.registerIfNew(cardTitle, devTitle) {
				return
			}
		}
		p.l.Warning("alsa: giving up probing device after retries", "card", cardTitle, "device", devTitle)
	}()
}

// registerIfNew adds cardTitle/devTitle as a new READY entry if it is
// not already tracked. A matching DEAD entry is reused instead, and
// capture is restarted on it if it is held. It returns true once the
// entry exists (whether just created, revived or already present).
func (p *Pool) registerIfNew(cardTitle, devTitle string) bool {
	address := cardTitle + "/" + devTitle

	p.mu.Lock()
	for _, e := range p.devices {
		if e.address == address && e.state != Empty && e.state != Dead {
			p.mu.Unlock()
			return true
		}
	}
	p.mu.Unlock()

	in := NewInput(p.l, cardTitle, devTitle, p.sampleRate, p.numChannels, nil)
	if err := in.Start(); err != nil {
		return false
	}
	in.Stop() // Probe only; ResetDevice starts real capture once held.

	p.mu.Lock()
	idx := p.findFreeIndexLocked(address, cardTitle, devTitle, uint32(p.numChannels))
	p.devices[idx].address = address
	p.devices[idx].name = cardTitle
	p.devices[idx].info = devTitle
	p.devices[idx].numChannels = uint32(p.numChannels)
	p.devices[idx].state = Ready
	held := p.devices[idx].held
	p.mu.Unlock()

	p.l.Info("alsa: device ready", "card", cardTitle, "device", devTitle, "index", idx)
	if held {
		p.ResetDevice(uint32(idx))
	}
	return true
}

// startCapture transitions index to RUNNING by starting its Input
// goroutine. If the Input fails to start, the entry is left in STARTING;
// startCapture does not retry, and ResetDevice only starts capture from
// READY.
func (p *Pool) startCapture(index uint32, address, cardTitle, devTitle string) {
	in := NewInput(p.l, cardTitle, devTitle, p.sampleRate, p.numChannels, func(samples []float64, numFrames int, ts time.Time, sampleRate int) {
		p.onSamples(index, samples, numFrames, ts, sampleRate)
	})
	if err := in.Start(); err != nil {
		p.l.Warning("alsa: start capture failed", "index", index, "error", err.Error())
		p.mu.Lock()
		if int(index) < len(p.devices) {
			p.devices[index].state = Starting
		}
		p.mu.Unlock()
		return
	}

	p.mu.Lock()
	if int(index) < len(p.devices) {
		p.devices[index].input = in
		p.devices[index].state = Running
		p.devices[index].sampleRate = in.SampleRate()
	}
	p.mu.Unlock()
}

// unplugDevice transitions a device that has just disappeared to DEAD
// (if held) or EMPTY (if not).
func (p *Pool) unplugDevice(address string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.devices {
		if p.devices[i].address != address {
			continue
		}
		if p.devices[i].input != nil {
			p.devices[i].input.Stop()
			p.devices[i].input = nil
		}
		if p.devices[i].held {
			p.devices[i].state = Dead
		} else {
			p.devices[i] = entry{}
		}
		p.l.Info("alsa: device unplugged", "address", address, "held", p.devices[i].held)
	}
}

// watchHotplug watches /dev/snd for card add/remove events, reconciling
// the pool's device table on every change. This replaces the original's
// direct inotify(7) syscalls with fsnotify, which wraps the same kernel
// facility.
func (p *Pool) watchHotplug() {
	defer p.wg.Done()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		p.l.Error("alsa: hotplug watcher unavailable", "error", err.Error())
		return
	}
	defer watcher.Close()

	if err := watcher.Add("/dev/snd"); err != nil {
		p.l.Error("alsa: failed to watch /dev/snd", "error", err.Error())
		return
	}

	debounce := time.NewTimer(0)
	<-debounce.C
	for {
		select {
		case <-p.quit:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			debounce.Reset(200 * time.Millisecond)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.l.Warning("alsa: hotplug watcher error", "error", err.Error())
		case <-debounce.C:
			p.reconcileHotplug()
		}
	}
}

// reconcileHotplug re-enumerates cards and marks any previously-seen,
// now-missing device as unplugged.
func (p *Pool) reconcileHotplug() {
	seen := make(map[string]bool)
	cards, err := yalsa.OpenCards()
	if err != nil {
		return
	}
	for _, card := range cards {
		devs, err := card.Devices()
		if err != nil {
			continue
		}
		for _, d := range devs {
			if d.Type != yalsa.PCM || !d.Record {
				continue
			}
			seen[card.Title+"/"+d.Title] = true
			p.probeDeviceWithRetry(card.Title, d.Title)
		}
	}
	yalsa.CloseCards(cards)

	p.mu.Lock()
	var missing []string
	for _, e := range p.devices {
		if e.state == Empty || e.state == Dead {
			continue
		}
		if !seen[e.address] {
			missing = append(missing, e.address)
		}
	}
	p.mu.Unlock()

	for _, addr := range missing {
		p.unplugDevice(addr)
	}
}
