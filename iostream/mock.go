package iostream

import (
	"time"

	"divecomputer-go/dcerr"
)

// Mock is an in-memory Stream used by family tests to script request/
// response byte sequences without a real transport. Grounded on the
// teacher's uartio.Worker read loop: a bounded wait against a deadline that
// accumulates data across multiple underlying reads.
type Mock struct {
	cfg     Config
	timeout Timeout

	// RX is the queue of bytes the simulated device will hand back to Read.
	RX []byte
	// TX records every byte handed to Write, in order.
	TX []byte

	// InjectTimeout, if set, makes the next Read return dcerr.Timeout
	// having delivered zero bytes — used to exercise the first-packet vs
	// after-first-packet timeout distinction of spec §7.
	InjectTimeout bool

	dtr, rts bool
	closed   bool
}

// NewMock returns a Mock preloaded with rx as the bytes available to Read.
func NewMock(rx []byte) *Mock {
	return &Mock{RX: append([]byte(nil), rx...)}
}

// Feed appends more bytes to the simulated device's output queue,
// supporting tests that script multiple request/response rounds.
func (m *Mock) Feed(b []byte) { m.RX = append(m.RX, b...) }

func (m *Mock) Configure(cfg Config) error {
	m.cfg = cfg
	return nil
}

func (m *Mock) SetTimeout(t Timeout) error {
	m.timeout = t
	return nil
}

func (m *Mock) Read(buf []byte) (int, error) {
	if m.closed {
		return 0, dcerr.IO
	}
	if m.InjectTimeout {
		m.InjectTimeout = false
		return 0, dcerr.Timeout
	}
	want := len(buf)
	switch {
	case m.timeout == NonBlocking:
		n := copy(buf, m.RX)
		m.RX = m.RX[n:]
		return n, nil
	case m.timeout == Blocking:
		if len(m.RX) < want {
			return 0, dcerr.IO
		}
		n := copy(buf, m.RX[:want])
		m.RX = m.RX[want:]
		return n, nil
	default: // bounded: deliver as much as is queued up to want, no real sleep
		n := copy(buf, m.RX)
		if n > want {
			n = want
		}
		m.RX = m.RX[n:]
		if n < want {
			return n, dcerr.Timeout
		}
		return n, nil
	}
}

func (m *Mock) Write(buf []byte) (int, error) {
	if m.closed {
		return 0, dcerr.IO
	}
	m.TX = append(m.TX, buf...)
	return len(buf), nil
}

func (m *Mock) Purge(dir Direction) error {
	if dir&PurgeInput != 0 {
		m.RX = nil
	}
	if dir&PurgeOutput != 0 {
		m.TX = nil
	}
	return nil
}

func (m *Mock) Drain() error { return nil }

func (m *Mock) SetDTR(level bool) error { m.dtr = level; return nil }
func (m *Mock) SetRTS(level bool) error { m.rts = level; return nil }

func (m *Mock) Sleep(d time.Duration) error { return nil }

func (m *Mock) Available() (int, error) { return len(m.RX), nil }

func (m *Mock) IOCtl(req IOCtl) ([]byte, error) { return nil, dcerr.Unsupported }

func (m *Mock) Close() error {
	m.closed = true
	return nil
}
