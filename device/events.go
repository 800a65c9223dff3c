package device

import "divecomputer-go/sample"

// EventKind enumerates the device lifecycle events of spec §3/§4.3.
type EventKind uint32

const (
	EventWaitingForUser EventKind = 1 << iota
	EventProgress
	EventDevInfo
	EventClock
	EventVendor

	EventAll = EventWaitingForUser | EventProgress | EventDevInfo | EventClock | EventVendor
)

// Progress carries a monotonic {current, maximum} estimate (spec §4.3).
type Progress struct {
	Current uint64
	Maximum uint64
}

// DevInfo carries the identity block emitted once per session, before the
// first dive callback (spec §5 ordering rule).
type DevInfo struct {
	Model    string
	Firmware string
	Serial   uint32
}

// Clock carries the device/host time pair emitted after a successful
// clock-bearing transfer.
type Clock struct {
	SystemTime int64
	DeviceTime int64
}

// Event is the tagged union delivered to a Listener; exactly one field is
// meaningful, selected by Kind.
type Event struct {
	Kind     EventKind
	Progress Progress
	DevInfo  DevInfo
	Clock    Clock
	Vendor   sample.VendorValue
}

// Listener receives lifecycle events synchronously on the calling
// goroutine — spec §5 rules out an internal event loop, so dispatch here
// is a direct callback invocation rather than the channel/topic-trie
// publish used by the teacher's bus.Bus for its IoT event fan-out; only the
// idea of "subscribe to a mask of kinds" survives the transplant.
type Listener func(ev Event, userdata any)

// dispatcher holds at most one (mask, listener) pair, matching
// set_events(mask, callback, user) in spec §4.4 — one subscriber per
// device, not a general pub/sub bus.
type dispatcher struct {
	mask     EventKind
	listener Listener
	userdata any
}

func (d *dispatcher) set(mask EventKind, l Listener, userdata any) {
	d.mask, d.listener, d.userdata = mask, l, userdata
}

func (d *dispatcher) emit(ev Event) {
	if d.listener == nil || d.mask&ev.Kind == 0 {
		return
	}
	d.listener(ev, d.userdata)
}
