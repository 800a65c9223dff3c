// Package device implements the polymorphic device runtime of spec §4.4: a
// base giving fingerprint registration, event dispatch, cancellation,
// progress, and a generic dump-by-blocks helper, with each family filling
// in a capability table for the operations it actually supports.
package device

import (
	"time"

	"divecomputer-go/dccontext"
	"divecomputer-go/dcerr"
	"divecomputer-go/family"
	"divecomputer-go/iostream"
)

// DiveCallback receives one extracted dive blob plus its fingerprint bytes
// and decides whether iteration continues. Returning false stops foreach,
// exactly like the C original's boolean-returning callback.
type DiveCallback func(data []byte, fingerprint []byte) (cont bool)

// Ops is the capability table a family fills in. A nil field means the
// family does not support that operation; Device.* methods translate a nil
// Ops field into dcerr.Unsupported.
type Ops struct {
	Version  func(d *Base) ([]byte, error)
	Read     func(d *Base, address uint32, size int) ([]byte, error)
	WriteMem func(d *Base, address uint32, data []byte) error
	Dump     func(d *Base) ([]byte, error)
	Foreach  func(d *Base, cb DiveCallback) error
	Timesync func(d *Base, t time.Time) error
	Close    func(d *Base) error
}

// Device is the capability set exposed to callers (spec §4.4).
type Device interface {
	Family() family.Tag
	SetFingerprint(fp []byte) error
	SetEvents(mask EventKind, l Listener, userdata any) error
	SetCancel(fn dccontext.CancelFunc)
	Version(out []byte) (int, error)
	Read(address uint32, size int) ([]byte, error)
	Write(address uint32, data []byte) error
	Dump() ([]byte, error)
	Foreach(cb DiveCallback) error
	Timesync(t time.Time) error
	Close() error
}

// Base is embedded by every family-specific device and implements every
// Device method generically in terms of the family's Ops table and the
// fingerprint size it declares at construction.
type Base struct {
	family   family.Tag
	ctx      *dccontext.Context
	stream   iostream.Stream
	ops      Ops
	fpSize   int
	fp       []byte
	disp     dispatcher
	cancel   dccontext.CancelFunc
	closed   bool
	versionC []byte // cached identity/version block, filled at Open
}

// New constructs a Base. fpSize is the family's fixed fingerprint size (0
// if the family has no fingerprint concept); per spec §3's invariant, a
// fingerprint is either empty or exactly this size, never intermediate.
func New(f family.Tag, ctx *dccontext.Context, stream iostream.Stream, fpSize int, ops Ops) *Base {
	return &Base{family: f, ctx: ctx, stream: stream, fpSize: fpSize, ops: ops}
}

func (b *Base) Family() family.Tag { return b.family }

func (b *Base) Context() *dccontext.Context { return b.ctx }

func (b *Base) Stream() iostream.Stream { return b.stream }

func (b *Base) Cancel() dccontext.CancelFunc { return b.cancel }

func (b *Base) Closed() bool { return b.closed }

// Fingerprint returns the currently registered fingerprint bytes.
func (b *Base) Fingerprint() []byte { return b.fp }

func (b *Base) SetFingerprint(fp []byte) error {
	if b.closed {
		return dcerr.Wrap("SetFingerprint", dcerr.InvalidArgs, nil)
	}
	if len(fp) != 0 && len(fp) != b.fpSize {
		return dcerr.Wrapf("SetFingerprint", dcerr.InvalidArgs, "fingerprint must be 0 or %d bytes, got %d", b.fpSize, len(fp))
	}
	b.fp = append([]byte(nil), fp...)
	return nil
}

func (b *Base) SetEvents(mask EventKind, l Listener, userdata any) error {
	if b.closed {
		return dcerr.InvalidArgs
	}
	b.disp.set(mask, l, userdata)
	return nil
}

func (b *Base) SetCancel(fn dccontext.CancelFunc) { b.cancel = fn }

// Emit dispatches ev to the registered listener, if any. A closed device
// emits no further events (spec §3 invariant).
func (b *Base) Emit(ev Event) {
	if b.closed {
		return
	}
	b.disp.emit(ev)
}

func (b *Base) CheckCancelled() error {
	if dccontext.IsCancelled(b.cancel) {
		return dcerr.Cancelled
	}
	return nil
}

func (b *Base) Version(out []byte) (int, error) {
	if b.closed {
		return 0, dcerr.InvalidArgs
	}
	if b.ops.Version == nil {
		return 0, dcerr.Unsupported
	}
	if b.versionC == nil {
		v, err := b.ops.Version(b)
		if err != nil {
			return 0, err
		}
		b.versionC = v
	}
	n := copy(out, b.versionC)
	return n, nil
}

func (b *Base) Read(address uint32, size int) ([]byte, error) {
	if b.closed {
		return nil, dcerr.InvalidArgs
	}
	if b.ops.Read == nil {
		return nil, dcerr.Unsupported
	}
	return b.ops.Read(b, address, size)
}

func (b *Base) Write(address uint32, data []byte) error {
	if b.closed {
		return dcerr.InvalidArgs
	}
	if b.ops.WriteMem == nil {
		return dcerr.Unsupported
	}
	return b.ops.WriteMem(b, address, data)
}

func (b *Base) Dump() ([]byte, error) {
	if b.closed {
		return nil, dcerr.InvalidArgs
	}
	if b.ops.Dump != nil {
		return b.ops.Dump(b)
	}
	// There is no generic fallback: without its own Dump op a family gets
	// dcerr.Unsupported, even when it exposes Read. Families that dump block
	// by block call DumpByBlocks from their own Dump op.
	if b.ops.Read == nil {
		return nil, dcerr.Unsupported
	}
	return nil, dcerr.Unsupported
}

// DumpByBlocks is the shared generic helper of spec §4.4: repeatedly Read
// blockSize bytes (honouring cancellation and emitting Progress), assembling
// a full memsize-byte dump.
func DumpByBlocks(b *Base, memsize int, blockSize int, read func(address uint32, size int) ([]byte, error)) ([]byte, error) {
	if blockSize <= 0 {
		blockSize = memsize
	}
	out := make([]byte, 0, memsize)
	b.Emit(Event{Kind: EventProgress, Progress: Progress{Current: 0, Maximum: uint64(memsize)}})
	for addr := 0; addr < memsize; addr += blockSize {
		if err := b.CheckCancelled(); err != nil {
			return nil, err
		}
		n := blockSize
		if addr+n > memsize {
			n = memsize - addr
		}
		chunk, err := read(uint32(addr), n)
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
		b.Emit(Event{Kind: EventProgress, Progress: Progress{Current: uint64(len(out)), Maximum: uint64(memsize)}})
	}
	return out, nil
}

func (b *Base) Foreach(cb DiveCallback) error {
	if b.closed {
		return dcerr.InvalidArgs
	}
	if b.ops.Foreach == nil {
		return dcerr.Unsupported
	}
	return b.ops.Foreach(b, cb)
}

func (b *Base) Timesync(t time.Time) error {
	if b.closed {
		return dcerr.InvalidArgs
	}
	if b.ops.Timesync == nil {
		return dcerr.Unsupported
	}
	return b.ops.Timesync(b, t)
}

// Close is idempotent: the first call runs the family's Close hook and then
// closes the stream, even if the hook fails, and returns the first error
// either reported; later calls do nothing and return nil.
func (b *Base) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	var closeErr error
	if b.ops.Close != nil {
		closeErr = b.ops.Close(b)
	}
	if b.stream != nil {
		if err := b.stream.Close(); err != nil && closeErr == nil {
			closeErr = err
		}
	}
	return closeErr
}
