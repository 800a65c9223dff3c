// Package iostream implements the uniform byte-pipe abstraction of spec
// §4.1: configure/timeout/read/write with partial-result reporting, purge,
// drain, DTR/RTS, sleep, available-bytes query and an ioctl escape hatch.
package iostream

import (
	"time"

	"divecomputer-go/dccontext"
	"divecomputer-go/dcerr"
)

// Timeout selects one of the three read/write modes of spec §4.1.
type Timeout time.Duration

const (
	// Blocking waits until want bytes arrive or a transport error occurs.
	Blocking Timeout = -1
	// NonBlocking returns immediately with 0..want bytes.
	NonBlocking Timeout = 0
)

// Parity enumerates the parity modes configure() accepts.
type Parity int

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
)

// FlowControl enumerates the flow-control modes configure() accepts.
type FlowControl int

const (
	FlowNone FlowControl = iota
	FlowHardware
	FlowXonXoff
)

// Config is the parameter set accepted by Stream.Configure.
type Config struct {
	Baud        int
	DataBits    int
	Parity      Parity
	StopBits    int
	FlowControl FlowControl
}

// Direction selects which half of the pipe Purge discards.
type Direction int

const (
	PurgeInput Direction = 1 << iota
	PurgeOutput
	PurgeBoth = PurgeInput | PurgeOutput
)

// IOCtl is a well-typed escape-hatch request, per the design note that a
// transport ioctl should be a typed sum rather than an opaque byte buffer
// in a re-implementation. Exactly one field is populated per call.
type IOCtl struct {
	BLECharacteristic *BLECharacteristicIO
	USBControl        *USBControlTransfer
}

// BLECharacteristicIO reads or writes a GATT characteristic by UUID.
type BLECharacteristicIO struct {
	UUID  string
	Write bool
	Value []byte
}

// USBControlTransfer issues a USB control transfer.
type USBControlTransfer struct {
	RequestType uint8
	Request     uint8
	Value       uint16
	Index       uint16
	Data        []byte
	In          bool
}

// Stream is the capability set every transport backend implements. All
// operations classify failures into the dcerr taxonomy: io, timeout,
// unsupported, invalid_args.
type Stream interface {
	Configure(cfg Config) error
	SetTimeout(t Timeout) error

	// Read copies up to len(buf) bytes into buf and returns the count
	// actually read. Semantics depend on the stream's current timeout mode
	// (see spec §4.1).
	Read(buf []byte) (int, error)
	// Write writes up to len(buf) bytes and returns the count actually
	// written, mirroring Read's three timeout modes.
	Write(buf []byte) (int, error)

	Purge(dir Direction) error
	Drain() error

	SetDTR(level bool) error
	SetRTS(level bool) error

	Sleep(d time.Duration) error

	Available() (int, error)

	IOCtl(req IOCtl) ([]byte, error)

	Close() error
}

// Cancellable wraps Stream so that Sleep returns dcerr.Cancelled once the
// cancellation predicate reports true. Only Sleep checks the predicate; all
// other methods pass straight through to the wrapped Stream.
type Cancellable struct {
	Stream
	Cancel dccontext.CancelFunc
}

func (c *Cancellable) Sleep(d time.Duration) error {
	if dccontext.IsCancelled(c.Cancel) {
		return dcerr.Cancelled
	}
	return c.Stream.Sleep(d)
}
