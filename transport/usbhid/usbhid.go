// Package usbhid implements the USB HID/bulk transport backend for
// iostream.Stream atop github.com/kevmo314/go-usb, grounded on that
// library's DeviceHandle.ControlTransfer signature (bmRequestType, bRequest,
// wValue, wIndex, data, timeoutMillis) and endpoint-address addressing.
// Families such as Atomics Cobalt and Oceanic's USB-dock models speak a
// fixed pair of bulk IN/OUT endpoints; this package treats them as a byte
// pipe the same way transport/serial treats a tty.
package usbhid

import (
	"time"

	gousb "github.com/kevmo314/go-usb"

	"divecomputer-go/dcerr"
	"divecomputer-go/iostream"
)

// Stream adapts one claimed USB interface's bulk IN/OUT endpoint pair to
// iostream.Stream.
type Stream struct {
	handle  *gousb.DeviceHandle
	iface   uint8
	epIn    uint8
	epOut   uint8
	timeout iostream.Timeout
}

// Open finds the first device matching (vendorID, productID), claims
// iface, and returns a Stream bound to the given bulk endpoint addresses.
func Open(vendorID, productID uint16, iface, epIn, epOut uint8) (*Stream, error) {
	handle, err := gousb.OpenDeviceWithVIDPID(vendorID, productID)
	if err != nil {
		return nil, dcerr.Wrap("usbhid.Open", dcerr.NoDevice, err)
	}
	if err := handle.ClaimInterface(iface); err != nil {
		return nil, dcerr.Wrap("usbhid.Open", dcerr.NoAccess, err)
	}
	return &Stream{handle: handle, iface: iface, epIn: epIn, epOut: epOut}, nil
}

func (s *Stream) Configure(cfg iostream.Config) error { return nil } // USB has no baud/parity

func (s *Stream) SetTimeout(t iostream.Timeout) error {
	s.timeout = t
	return nil
}

func (s *Stream) timeoutMillis() uint {
	switch {
	case s.timeout == iostream.Blocking:
		return 0 // blocking transfer, per go-usb's 0-means-no-timeout convention
	case s.timeout == iostream.NonBlocking:
		return 1
	default:
		return uint(time.Duration(s.timeout).Milliseconds())
	}
}

func (s *Stream) Read(buf []byte) (int, error) {
	n, err := s.handle.BulkTransfer(s.epIn|0x80, buf, s.timeoutMillis())
	if err != nil {
		return n, classify(err)
	}
	return n, nil
}

func (s *Stream) Write(buf []byte) (int, error) {
	n, err := s.handle.BulkTransfer(s.epOut&0x7f, buf, s.timeoutMillis())
	if err != nil {
		return n, classify(err)
	}
	return n, nil
}

func (s *Stream) Purge(dir iostream.Direction) error {
	var ep uint8
	switch dir {
	case iostream.PurgeInput:
		ep = s.epIn | 0x80
	case iostream.PurgeOutput:
		ep = s.epOut & 0x7f
	default:
		if err := s.handle.ClearHalt(s.epIn | 0x80); err != nil {
			return dcerr.Wrap("usbhid.Purge", dcerr.IO, err)
		}
		ep = s.epOut & 0x7f
	}
	if err := s.handle.ClearHalt(ep); err != nil {
		return dcerr.Wrap("usbhid.Purge", dcerr.IO, err)
	}
	return nil
}

func (s *Stream) Drain() error { return nil } // bulk transfers are synchronous per call

func (s *Stream) SetDTR(level bool) error { return dcerr.Unsupported }
func (s *Stream) SetRTS(level bool) error { return dcerr.Unsupported }

func (s *Stream) Sleep(d time.Duration) error {
	time.Sleep(d)
	return nil
}

func (s *Stream) Available() (int, error) {
	return 0, dcerr.Unsupported
}

func (s *Stream) IOCtl(req iostream.IOCtl) ([]byte, error) {
	if req.USBControl == nil {
		return nil, dcerr.Unsupported
	}
	c := req.USBControl
	buf := make([]byte, len(c.Data))
	copy(buf, c.Data)
	_, err := s.handle.ControlTransfer(c.RequestType, c.Request, c.Value, c.Index, buf, 5000)
	if err != nil {
		return nil, dcerr.Wrap("usbhid.IOCtl", dcerr.IO, err)
	}
	return buf, nil
}

func (s *Stream) Close() error {
	_ = s.handle.ReleaseInterface(s.iface)
	return s.handle.Close()
}

type timeouter interface {
	Timeout() bool
}

func classify(err error) error {
	if te, ok := err.(timeouter); ok && te.Timeout() {
		return dcerr.Wrap("usbhid", dcerr.Timeout, err)
	}
	return dcerr.Wrap("usbhid", dcerr.IO, err)
}
