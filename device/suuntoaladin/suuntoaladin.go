// Package suuntoaladin implements the Suunto Aladin family: the device
// dumps its entire memory unsolicited once the line is opened, every byte
// bit-reversed in transit, terminated by a 16-bit little-endian additive
// checksum over everything preceding it (spec §6 "Aladin" row, §8
// scenario 3).
package suuntoaladin

import (
	"bytes"
	"time"

	"divecomputer-go/dcerr"
	"divecomputer-go/descriptor"
	"divecomputer-go/device"
	"divecomputer-go/family"
	"divecomputer-go/iostream"
	"divecomputer-go/ringbuffer"
	"divecomputer-go/transport"
)

func init() {
	descriptor.Register(descriptor.Descriptor{Family: family.SuuntoAladin, VendorName: "Suunto", ProductName: "Aladin Pro", ModelID: 0x01, DefaultTransport: family.TransportSerial})
	descriptor.Register(descriptor.Descriptor{Family: family.SuuntoAladin, VendorName: "Suunto", ProductName: "Aladin Air X", ModelID: 0x02, DefaultTransport: family.TransportSerial})
}

const (
	dumpSize   = 2050 // 3x 0x55 sync + 1x 0x00 + 2044 body bytes + 2-byte checksum
	headerSize = 4
	fpSize     = 5
)

func DefaultConfig() iostream.Config {
	cfg, _ := transport.SerialProfile(family.SuuntoAladin)
	return cfg
}

// Device wraps device.Base with the Aladin unsolicited-dump protocol.
type Device struct {
	*device.Base
	header []byte // the 4-byte block preceding the profile, captured by dump
}

func Open(stream iostream.Stream) (*Device, error) {
	if err := stream.Configure(DefaultConfig()); err != nil {
		return nil, err
	}
	d := &Device{}
	d.Base = device.New(family.SuuntoAladin, nil, stream, fpSize, device.Ops{
		Dump:    d.dump,
		Foreach: d.foreach,
	})
	return d, nil
}

// reverseBits reverses the bit order within a single byte, undoing the
// transport's per-bit reversal.
func reverseBits(b byte) byte {
	var r byte
	for i := 0; i < 8; i++ {
		r <<= 1
		r |= b & 1
		b >>= 1
	}
	return r
}

// dump reads the full unsolicited transfer, bit-reverses every byte, and
// validates the trailing 16-bit additive checksum over the 2048 bytes that
// precede it (sync+header+body), per spec §8 scenario 3.
func (d *Device) dump(b *device.Base) ([]byte, error) {
	raw := make([]byte, dumpSize)
	if err := b.Stream().SetTimeout(iostream.Timeout(10 * time.Second)); err != nil {
		return nil, err
	}
	off := 0
	for off < len(raw) {
		if err := b.CheckCancelled(); err != nil {
			return nil, err
		}
		n, err := b.Stream().Read(raw[off:])
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, dcerr.Timeout
		}
		off += n
		b.Emit(device.Event{Kind: device.EventProgress, Progress: device.Progress{Current: uint64(off), Maximum: uint64(len(raw))}})
	}

	data := make([]byte, len(raw))
	for i, rb := range raw {
		data[i] = reverseBits(rb)
	}

	body := data[:2048]
	var sum uint16
	for _, bb := range body {
		sum += uint16(bb)
	}
	got := uint16(data[2048]) | uint16(data[2049])<<8
	if got != sum {
		return nil, dcerr.Wrapf("suuntoaladin.dump", dcerr.Protocol, "checksum mismatch: got %04x want %04x", got, sum)
	}
	d.header = append([]byte(nil), data[:headerSize]...)
	return data[headerSize:2048], nil
}

// foreach walks the dumped profile as a sequence of records laid out from
// the oldest to the newest (spec §4.4.2's first start-locating strategy,
// here applied forwards-to-backwards): each record's last two bytes
// (big-endian) hold its own total length, so the record ending at `end`
// starts at `end - length`.
func (d *Device) foreach(b *device.Base, cb device.DiveCallback) error {
	profile, err := d.dump(b)
	if err != nil {
		return err
	}
	// Emitted only once the unsolicited dump has actually landed, still
	// before the first dive callback (spec §5's ordering rule).
	serial := uint32(d.header[0])<<24 | uint32(d.header[1])<<16 | uint32(d.header[2])<<8 | uint32(d.header[3])
	b.Emit(device.Event{Kind: device.EventDevInfo, DevInfo: device.DevInfo{Serial: serial}})

	locate := ringbuffer.LogbookLocator(func(end int) (int, bool) {
		if end < 2 {
			return 0, false
		}
		length := int(profile[end-2])<<8 | int(profile[end-1])
		if length == 0 || length == 0xFFFF {
			return 0, false
		}
		return length, true
	})

	return ringbuffer.Walk(profile, len(profile), nil, ringbuffer.Layout{FingerprintOffset: -1}, locate, func(blob, _ []byte) bool {
		fp := blob
		if len(fp) > fpSize {
			fp = fp[:fpSize]
		}
		if len(b.Fingerprint()) > 0 && bytes.Equal(fp, b.Fingerprint()) {
			return false
		}
		return cb(blob, fp)
	})
}
