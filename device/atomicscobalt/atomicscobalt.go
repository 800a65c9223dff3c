// Package atomicscobalt implements the Atomics Cobalt family: the second
// concrete streaming-per-dive protocol named by spec §4.4.3 (alongside
// Suunto Vyper), distinguished by an explicit per-packet ACK/NAK handshake
// rather than Vyper's checksum-only retry, exercising internal/streamack's
// Exchange helper (Vyper only needs ReceiveDive).
package atomicscobalt

import (
	"bytes"
	"time"

	"divecomputer-go/dcerr"
	"divecomputer-go/descriptor"
	"divecomputer-go/device"
	"divecomputer-go/family"
	"divecomputer-go/internal/streamack"
	"divecomputer-go/iostream"
)

func init() {
	descriptor.Register(descriptor.Descriptor{Family: family.AtomicsCobalt, VendorName: "Atomics", ProductName: "Cobalt", ModelID: 0x01, DefaultTransport: family.TransportUSBHID})
}

const (
	packetSize = 64 // fixed wire packet: length byte + payload + trailing checksum

	cmdInitDive = 0xC1
	cmdNextDive = 0xC2

	ack = 0x4B
	nak = 0x4E

	maxRetries = 3
	fpSize     = 4
)

func DefaultConfig() iostream.Config {
	return iostream.Config{Baud: 0} // USB-HID transport; baud is not meaningful
}

type Device struct {
	*device.Base
}

func Open(stream iostream.Stream) (*Device, error) {
	if err := stream.Configure(DefaultConfig()); err != nil && dcerr.Of(err) != dcerr.Unsupported {
		return nil, err
	}

	d := &Device{}
	d.Base = device.New(family.AtomicsCobalt, nil, stream, fpSize, device.Ops{
		Foreach: d.foreach,
	})
	return d, nil
}

func checksum8(bytes ...byte) byte {
	var sum byte
	for _, b := range bytes {
		sum += b
	}
	return sum
}

func readFull(s iostream.Stream, buf []byte) (int, error) {
	off := 0
	for off < len(buf) {
		n, err := s.Read(buf[off:])
		if err != nil {
			return off, err
		}
		if n == 0 {
			return off, dcerr.Timeout
		}
		off += n
	}
	return len(buf), nil
}

// readRawPacket reads one fixed-size wire packet and splits it into
// {declared length, payload, trailing checksum} without validating it —
// validation is verifyPacket's job, invoked by streamack.Exchange so a bad
// checksum triggers a NAK/retry rather than an immediate error.
func (d *Device) readRawPacket() ([]byte, error) {
	raw := make([]byte, packetSize)
	if _, err := readFull(d.Stream(), raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func verifyPacket(raw []byte) error {
	length := int(raw[0])
	if length < 0 || length > packetSize-2 {
		return dcerr.Wrapf("atomicscobalt.verifyPacket", dcerr.Protocol, "implausible length byte %d", length)
	}
	want := checksum8(raw[:1+length]...)
	got := raw[packetSize-1]
	if got != want {
		return dcerr.Wrapf("atomicscobalt.verifyPacket", dcerr.Protocol, "checksum mismatch: got %02x want %02x", got, want)
	}
	return nil
}

func (d *Device) sendAck() error {
	_, err := d.Stream().Write([]byte{ack})
	return err
}

func (d *Device) sendNak() error {
	_, err := d.Stream().Write([]byte{nak})
	return err
}

// readDivePacket fetches one validated packet of the current dive transfer
// via streamack.Exchange (ack on success, NAK+retry on a bad checksum, any
// other error class propagated immediately, per spec §4.4.3's policy). A
// declared length of 0 marks the dive's terminating packet.
func (d *Device) readDivePacket() (streamack.Packet, error) {
	if err := d.Stream().SetTimeout(iostream.Timeout(5 * time.Second)); err != nil {
		return streamack.Packet{}, err
	}
	raw, err := streamack.Exchange(d.readRawPacket, verifyPacket, d.sendAck, d.sendNak, maxRetries)
	if err != nil {
		return streamack.Packet{}, err
	}
	length := int(raw[0])
	if length == 0 {
		return streamack.Packet{Final: true}, nil
	}
	return streamack.Packet{Data: raw[1 : 1+length]}, nil
}

func (d *Device) foreach(b *device.Base, cb device.DiveCallback) error {
	// Cobalt's USB-HID transfer protocol only speaks the init/next-dive
	// commands; there is no separate identity exchange to read a serial
	// from. Emitted with a zero serial so the ordering rule of spec §5
	// still holds: DEVINFO before the first dive.
	b.Emit(device.Event{Kind: device.EventDevInfo})
	first := true
	for {
		if err := b.CheckCancelled(); err != nil {
			return err
		}
		cmd := byte(cmdNextDive)
		if first {
			cmd = cmdInitDive
			first = false
		}
		if _, err := b.Stream().Write([]byte{cmd}); err != nil {
			return err
		}

		// The zero-length packet closes the current dive and keeps its data; as
		// the first reply to a command it means there are no more dives. A
		// timeout after at least one packet also ends the dive.
		var blob []byte
		for {
			pkt, err := d.readDivePacket()
			if err != nil {
				if dcerr.Of(err) == dcerr.Timeout && len(blob) > 0 {
					break
				}
				return err
			}
			if pkt.Final {
				break
			}
			blob = append(blob, pkt.Data...)
		}
		if len(blob) == 0 {
			return nil
		}

		fp := blob
		if len(fp) > fpSize {
			fp = fp[len(fp)-fpSize:]
		}
		if len(b.Fingerprint()) > 0 && bytes.Equal(fp, b.Fingerprint()) {
			return nil
		}
		if !cb(blob, fp) {
			return nil
		}
	}
}
