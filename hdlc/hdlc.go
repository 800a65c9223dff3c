// Package hdlc implements the layered I/O stream of spec §4.2: a stream
// that wraps a base iostream.Stream and exposes packet semantics —
// FLAG | byte-stuffed payload | CRC | FLAG — with transparent
// resynchronization on CRC error.
package hdlc

import (
	"time"

	"divecomputer-go/dcerr"
	"divecomputer-go/iostream"
)

const (
	flagByte   byte = 0x7E
	escapeByte byte = 0x7D
	escapeXOR  byte = 0x20
)

// Stream frames payloads over an underlying iostream.Stream. It is itself
// not a general iostream.Stream (packet semantics, not byte semantics);
// callers use ReadFrame/WriteFrame.
type Stream struct {
	base    iostream.Stream
	inMTU   int
	outMTU  int
	scratch []byte
}

// New wraps base with HDLC framing. inMTU/outMTU bound the payload size of
// a single frame in either direction; 0 means "use DefaultMTU".
const DefaultMTU = 4096

func New(base iostream.Stream, inMTU, outMTU int) *Stream {
	if inMTU <= 0 {
		inMTU = DefaultMTU
	}
	if outMTU <= 0 {
		outMTU = DefaultMTU
	}
	return &Stream{base: base, inMTU: inMTU, outMTU: outMTU}
}

// crc16 is the CRC-CCITT variant conventionally used by HDLC framing.
func crc16(data []byte) uint16 {
	var crc uint16 = 0xFFFF
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

func stuff(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+2)
	for _, b := range payload {
		if b == flagByte || b == escapeByte {
			out = append(out, escapeByte, b^escapeXOR)
		} else {
			out = append(out, b)
		}
	}
	return out
}

// WriteFrame forms FLAG | stuffed(payload+crc) | FLAG and writes it in full,
// respecting outMTU.
func (s *Stream) WriteFrame(payload []byte) error {
	if len(payload) > s.outMTU {
		return dcerr.Wrapf("hdlc.WriteFrame", dcerr.InvalidArgs, "payload %d exceeds output MTU %d", len(payload), s.outMTU)
	}
	crc := crc16(payload)
	body := make([]byte, 0, len(payload)+2)
	body = append(body, payload...)
	body = append(body, byte(crc>>8), byte(crc))
	stuffed := stuff(body)

	frame := make([]byte, 0, len(stuffed)+2)
	frame = append(frame, flagByte)
	frame = append(frame, stuffed...)
	frame = append(frame, flagByte)

	off := 0
	for off < len(frame) {
		n, err := s.base.Write(frame[off:])
		if err != nil {
			return err
		}
		if n == 0 {
			return dcerr.IO
		}
		off += n
	}
	return s.base.Drain()
}

// ReadFrame scans for FLAG, un-stuffs until the next FLAG, validates the
// CRC, and returns the payload. On a CRC mismatch (or a frame too short to
// hold a CRC) the bad frame's bytes have already been dropped up to its
// closing FLAG, so it returns a protocol error for that frame with the
// stream positioned at the next frame — the caller may call ReadFrame again.
// A frame that overruns the input MTU is resynchronized by dropping bytes up
// to and including the next FLAG.
func (s *Stream) ReadFrame(deadline time.Duration) ([]byte, error) {
	if err := s.base.SetTimeout(iostream.Timeout(deadline)); err != nil {
		return nil, err
	}

	// Find opening flag.
	one := make([]byte, 1)
	for {
		n, err := s.base.Read(one)
		if err != nil {
			return nil, err
		}
		if n == 1 && one[0] == flagByte {
			break
		}
		if n == 0 {
			return nil, dcerr.Timeout
		}
	}

	var stuffed []byte
	escaping := false
	for {
		n, err := s.base.Read(one)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, dcerr.Timeout
		}
		b := one[0]
		if b == flagByte {
			break
		}
		if escaping {
			stuffed = append(stuffed, b^escapeXOR)
			escaping = false
			continue
		}
		if b == escapeByte {
			escaping = true
			continue
		}
		stuffed = append(stuffed, b)
		if len(stuffed) > s.inMTU+2 {
			return nil, s.resync(dcerr.Wrapf("hdlc.ReadFrame", dcerr.Protocol, "frame exceeds input MTU %d", s.inMTU))
		}
	}

	if len(stuffed) < 2 {
		return nil, dcerr.Wrapf("hdlc.ReadFrame", dcerr.Protocol, "short frame")
	}
	payload := stuffed[:len(stuffed)-2]
	got := uint16(stuffed[len(stuffed)-2])<<8 | uint16(stuffed[len(stuffed)-1])
	want := crc16(payload)
	if got != want {
		return nil, dcerr.Wrapf("hdlc.ReadFrame", dcerr.Protocol, "crc mismatch: got %04x want %04x", got, want)
	}
	return payload, nil
}

// resync discards bytes up to and including the next FLAG; ReadFrame uses it
// when a frame overruns the input MTU before its closing FLAG arrives.
// Returns origErr so callers can report the protocol error for the frame
// that failed while leaving the stream positioned to retry.
func (s *Stream) resync(origErr error) error {
	one := make([]byte, 1)
	for {
		n, err := s.base.Read(one)
		if err != nil || n == 0 {
			break
		}
		if one[0] == flagByte {
			break
		}
	}
	return origErr
}

func (s *Stream) Close() error { return s.base.Close() }
