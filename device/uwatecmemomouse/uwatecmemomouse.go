// Package uwatecmemomouse implements the Uwatec Memomouse family: a
// bit-reversed, ACK/NAK-gated transfer framed in 126-byte outer carriers.
// The device sends its entire log stream unsolicited once greeted, twice
// over (forward, then reversed as a trailer); extraction must stop the
// instant a dive's first 18 header bytes repeat, since that marks the
// start of the trailing repeat rather than fresh data (spec §4.4.2 edge
// case, §8 scenario 4).
package uwatecmemomouse

import (
	"time"

	"divecomputer-go/dcerr"
	"divecomputer-go/descriptor"
	"divecomputer-go/device"
	"divecomputer-go/family"
	"divecomputer-go/iostream"
	"divecomputer-go/transport"
)

func init() {
	descriptor.Register(descriptor.Descriptor{Family: family.UwatecMemomouse, VendorName: "Uwatec", ProductName: "Memomouse", ModelID: 0x01, DefaultTransport: family.TransportSerial})
}

const (
	ack         = 0x60
	nak         = 0xA8
	carrierSize = 126
	headerSize  = 18
	fpSize      = headerSize
)

func DefaultConfig() iostream.Config {
	cfg, _ := transport.SerialProfile(family.UwatecMemomouse)
	return cfg
}

// Config exposes the greeting-wait ceiling as a resolved Open Question
// (spec §9): the source's NAK-every-300ms loop runs forever, here it is
// bounded and reported as dcerr.Timeout once exceeded.
type Config struct {
	GreetingTimeout time.Duration
}

func DefaultDeviceConfig() Config {
	return Config{GreetingTimeout: 30 * time.Second}
}

type Device struct {
	*device.Base
	cfg Config
}

func Open(stream iostream.Stream, cfg Config) (*Device, error) {
	if err := stream.Configure(DefaultConfig()); err != nil {
		return nil, err
	}
	if cfg.GreetingTimeout <= 0 {
		cfg = DefaultDeviceConfig()
	}
	d := &Device{cfg: cfg}
	d.Base = device.New(family.UwatecMemomouse, nil, stream, fpSize, device.Ops{
		Foreach: d.foreach,
	})
	return d, nil
}

func reverseBits(b byte) byte {
	var r byte
	for i := 0; i < 8; i++ {
		r <<= 1
		r |= b & 1
		b >>= 1
	}
	return r
}

// greet sends NAK every 300ms until the device replies ACK, bounded by
// cfg.GreetingTimeout (spec §9 resolution 3).
func (d *Device) greet(b *device.Base) error {
	deadline := time.Now().Add(d.cfg.GreetingTimeout)
	one := make([]byte, 1)
	for {
		if err := b.CheckCancelled(); err != nil {
			return err
		}
		if time.Now().After(deadline) {
			return dcerr.Wrapf("uwatecmemomouse.greet", dcerr.Timeout, "no ACK within %s", d.cfg.GreetingTimeout)
		}
		if _, err := b.Stream().Write([]byte{nak}); err != nil {
			return err
		}
		if err := b.Stream().SetTimeout(iostream.Timeout(300 * time.Millisecond)); err != nil {
			return err
		}
		n, err := b.Stream().Read(one)
		if err != nil && dcerr.Of(err) != dcerr.Timeout {
			return err
		}
		if n == 1 && one[0] == ack {
			return nil
		}
	}
}

// readCarriers reads outer 126-byte carriers until a short/empty one,
// bit-reversing every byte and concatenating into one logical buffer.
func (d *Device) readCarriers(b *device.Base) ([]byte, error) {
	var logical []byte
	carrier := make([]byte, carrierSize)
	if err := b.Stream().SetTimeout(iostream.Timeout(5 * time.Second)); err != nil {
		return nil, err
	}
	for {
		if err := b.CheckCancelled(); err != nil {
			return nil, err
		}
		off := 0
		for off < carrierSize {
			n, err := b.Stream().Read(carrier[off:])
			off += n
			if err != nil {
				if dcerr.Of(err) == dcerr.Timeout {
					if off == 0 {
						return logical, nil // normal end-of-stream
					}
					break // short final carrier
				}
				return nil, err
			}
		}
		if off == 0 {
			break
		}
		for _, rb := range carrier[:off] {
			logical = append(logical, reverseBits(rb))
		}
		if off < carrierSize {
			break
		}
	}
	return logical, nil
}

func (d *Device) foreach(b *device.Base, cb device.DiveCallback) error {
	if err := d.greet(b); err != nil {
		return err
	}
	// Memomouse's wire protocol has no identity/version query; the greeting
	// handshake is the only exchange the device answers before it starts
	// streaming its log unsolicited. Emitted with a zero serial so the
	// ordering rule of spec §5 still holds: DEVINFO before the first dive.
	b.Emit(device.Event{Kind: device.EventDevInfo})
	blob, err := d.readCarriers(b)
	if err != nil {
		return err
	}

	// Records arrive oldest-first on the wire; spec §3's foreach contract
	// delivers newest-first, so fresh (non-duplicate) records are collected
	// here and replayed in reverse once the trailing repeat is detected.
	seen := make(map[string]bool)
	var fresh [][]byte
	for len(blob) >= 2 {
		length := int(blob[0])<<8 | int(blob[1])
		blob = blob[2:]
		if length == 0 || length > len(blob) {
			break
		}
		record := blob[:length]
		blob = blob[length:]

		if len(record) < headerSize {
			return dcerr.Wrapf("uwatecmemomouse.foreach", dcerr.DataFormat, "record shorter than header: %d bytes", len(record))
		}
		header := string(record[:headerSize])
		if seen[header] {
			break // trailing reversed repeat reached
		}
		seen[header] = true
		fresh = append(fresh, record)
	}

	for i := len(fresh) - 1; i >= 0; i-- {
		record := fresh[i]
		if !cb(record, record[:headerSize]) {
			return nil
		}
	}
	return nil
}
