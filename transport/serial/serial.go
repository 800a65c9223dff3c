// Package serial implements the real serial transport backend for
// iostream.Stream, wrapping github.com/daedaluz/goserial's termios port —
// the teacher's own dependency, repurposed here from a generic port opener
// into the family wire-protocol transport named by spec §6's per-family
// baud/databits/parity/stopbits table.
//
// This package itself is outside the core component budget (spec §1 puts
// "platform-specific transport backends" out of scope, "specified only at
// their interfaces"); it exists to give iostream.Stream a concrete,
// dependency-grounded implementation to exercise against real hardware.
package serial

import (
	"time"

	goserial "github.com/daedaluz/goserial"

	"divecomputer-go/dcerr"
	"divecomputer-go/iostream"
)

// Stream adapts a goserial.Port to iostream.Stream.
type Stream struct {
	port    *goserial.Port
	timeout iostream.Timeout
}

// Open opens name (e.g. "/dev/ttyUSB0") and returns a Stream ready for
// Configure.
func Open(name string) (*Stream, error) {
	opts := goserial.NewOptions()
	port, err := goserial.Open(name, opts)
	if err != nil {
		return nil, dcerr.Wrap("serial.Open", dcerr.NoAccess, err)
	}
	return &Stream{port: port}, nil
}

func baudFlag(baud int) goserial.CFlag {
	switch baud {
	case 1200:
		return goserial.B1200
	case 2400:
		return goserial.B2400
	case 4800:
		return goserial.B4800
	case 9600:
		return goserial.B9600
	case 19200:
		return goserial.B19200
	case 38400:
		return goserial.B38400
	case 57600:
		return goserial.B57600
	case 115200:
		return goserial.B115200
	default:
		return goserial.B9600
	}
}

func (s *Stream) Configure(cfg iostream.Config) error {
	attrs, err := s.port.GetAttr()
	if err != nil {
		return dcerr.Wrap("serial.Configure", dcerr.IO, err)
	}
	attrs.MakeRaw()
	attrs.SetSpeed(baudFlag(cfg.Baud))

	attrs.Cflag &^= goserial.CSIZE
	switch cfg.DataBits {
	case 5:
		attrs.Cflag |= goserial.CS5
	case 6:
		attrs.Cflag |= goserial.CS6
	case 7:
		attrs.Cflag |= goserial.CS7
	default:
		attrs.Cflag |= goserial.CS8
	}

	switch cfg.Parity {
	case iostream.ParityEven:
		attrs.Cflag |= goserial.PARENB
		attrs.Cflag &^= goserial.PARODD
	case iostream.ParityOdd:
		attrs.Cflag |= goserial.PARENB | goserial.PARODD
	default:
		attrs.Cflag &^= goserial.PARENB
	}

	if cfg.StopBits == 2 {
		attrs.Cflag |= goserial.CSTOPB
	} else {
		attrs.Cflag &^= goserial.CSTOPB
	}

	switch cfg.FlowControl {
	case iostream.FlowHardware:
		attrs.Cflag |= goserial.CRTSCTS
	case iostream.FlowXonXoff:
		attrs.Iflag |= goserial.IXON | goserial.IXOFF
	}

	if err := s.port.SetAttr(goserial.TCSANOW, attrs); err != nil {
		return dcerr.Wrap("serial.Configure", dcerr.IO, err)
	}
	return nil
}

func (s *Stream) SetTimeout(t iostream.Timeout) error {
	s.timeout = t
	s.port.SetReadTimeout(time.Duration(t))
	return nil
}

func (s *Stream) Read(buf []byte) (int, error) {
	n, err := s.port.ReadTimeout(buf, time.Duration(s.timeout))
	if err != nil {
		return n, classify(err)
	}
	return n, nil
}

func (s *Stream) Write(buf []byte) (int, error) {
	n, err := s.port.Write(buf)
	if err != nil {
		return n, dcerr.Wrap("serial.Write", dcerr.IO, err)
	}
	return n, nil
}

func (s *Stream) Purge(dir iostream.Direction) error {
	var q goserial.Queue
	switch dir {
	case iostream.PurgeInput:
		q = goserial.TCIFLUSH
	case iostream.PurgeOutput:
		q = goserial.TCOFLUSH
	default:
		q = goserial.TCIOFLUSH
	}
	if err := s.port.Flush(q); err != nil {
		return dcerr.Wrap("serial.Purge", dcerr.IO, err)
	}
	return nil
}

func (s *Stream) Drain() error {
	if err := s.port.Drain(); err != nil {
		return dcerr.Wrap("serial.Drain", dcerr.IO, err)
	}
	return nil
}

func (s *Stream) SetDTR(level bool) error {
	return s.setLine(goserial.TIOCM_DTR, level)
}

func (s *Stream) SetRTS(level bool) error {
	return s.setLine(goserial.TIOCM_RTS, level)
}

func (s *Stream) setLine(line goserial.ModemLine, level bool) error {
	var err error
	if level {
		err = s.port.EnableModemLines(line)
	} else {
		err = s.port.DisableModemLines(line)
	}
	if err != nil {
		return dcerr.Wrap("serial.setLine", dcerr.IO, err)
	}
	return nil
}

func (s *Stream) Sleep(d time.Duration) error {
	time.Sleep(d)
	return nil
}

func (s *Stream) Available() (int, error) {
	// goserial exposes no direct FIONREAD wrapper; a zero-timeout probe
	// read would consume data, so this is reported unsupported rather than
	// faked.
	return 0, dcerr.Unsupported
}

func (s *Stream) IOCtl(req iostream.IOCtl) ([]byte, error) {
	return nil, dcerr.Unsupported
}

func (s *Stream) Close() error {
	return s.port.Close()
}

// timeouter is satisfied by the net.Error-style errors poll.WaitInput
// returns when its deadline expires (fdev's poll package follows the same
// convention as net and os.File deadlines).
type timeouter interface {
	Timeout() bool
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if te, ok := err.(timeouter); ok && te.Timeout() {
		return dcerr.Wrap("serial.Read", dcerr.Timeout, err)
	}
	return dcerr.Wrap("serial.Read", dcerr.IO, err)
}
