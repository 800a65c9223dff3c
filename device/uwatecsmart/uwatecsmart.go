// Package uwatecsmart implements the Uwatec Smart/Galileo family device: a
// simple request/response memory protocol plus the devtime/systime clock
// calibration pair that parser/uwatecgalileo needs to reconstruct wall-clock
// timestamps from the device's uptime ticks (spec §4.5.2), and a profile
// ring walked via dive-embedded previous-dive pointers (spec §4.4.2's third
// start-locating strategy).
package uwatecsmart

import (
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
	descriptor.Register(descriptor.Descriptor{Family: family.UwatecSmart, VendorName: "Uwatec", ProductName: "Smart Com", ModelID: 0x01, DefaultTransport: family.TransportIrDA})
	descriptor.Register(descriptor.Descriptor{Family: family.UwatecSmart, VendorName: "Uwatec", ProductName: "Galileo Sol", ModelID: 0x02, DefaultTransport: family.TransportIrDA})
}

const (
	cmdHandshake = 0x1B
	cmdVersion   = 0x10
	cmdRead      = 0x20
	cmdClock     = 0x1A

	fpSize         = 4
	headerSize     = 16
	prevPtrOffset  = 8 // within each dive's header, offset of the dive's own start offset (4 bytes, big-endian), which is also where the previous dive ends
)

func DefaultConfig() iostream.Config {
	cfg, _ := transport.SerialProfile(family.UwatecSmart)
	return cfg
}

// Config carries the profile ring's total size, which varies by model.
type Config struct {
	ProfileSize int
}

func DefaultDeviceConfig() Config {
	return Config{ProfileSize: 1 << 16}
}

type Device struct {
	*device.Base
	cfg Config

	devTicks, sysTicks int64
}

func Open(stream iostream.Stream, cfg Config) (*Device, error) {
	if err := stream.Configure(DefaultConfig()); err != nil {
		return nil, err
	}
	if cfg.ProfileSize <= 0 {
		cfg = DefaultDeviceConfig()
	}
	d := &Device{cfg: cfg}
	d.Base = device.New(family.UwatecSmart, nil, stream, fpSize, device.Ops{
		Version:  d.version,
		Read:     d.read,
		Timesync: d.timesync,
		Foreach:  d.foreach,
	})
	if err := d.handshake(d.Base); err != nil {
		return nil, err
	}
	return d, nil
}

// handshake exchanges a fixed greeting byte, then reads back the clock
// calibration pair the device reports at connect time: its own free-running
// uptime ticks alongside the host's view of wall time at the same instant,
// the devtime/systime pair parser/uwatecgalileo needs (spec §4.5.2).
func (d *Device) handshake(b *device.Base) error {
	if err := b.Stream().SetTimeout(iostream.Timeout(5 * time.Second)); err != nil {
		return err
	}
	if _, err := b.Stream().Write([]byte{cmdHandshake}); err != nil {
		return err
	}
	reply := make([]byte, 9)
	if _, err := readFull(b, reply); err != nil {
		return err
	}
	if reply[0] != cmdHandshake {
		return dcerr.Wrap("uwatecsmart.handshake", dcerr.Protocol, nil)
	}
	d.devTicks = int64(beU32(reply[1:5]))
	d.sysTicks = time.Now().Unix()
	return nil
}

func readFull(b *device.Base, buf []byte) (int, error) {
	off := 0
	for off < len(buf) {
		if err := b.CheckCancelled(); err != nil {
			return off, err
		}
		n, err := b.Stream().Read(buf[off:])
		off += n
		if err != nil {
			return off, err
		}
	}
	return off, nil
}

func beU32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func (d *Device) version(b *device.Base) ([]byte, error) {
	if _, err := b.Stream().Write([]byte{cmdVersion}); err != nil {
		return nil, err
	}
	reply := make([]byte, 17)
	if _, err := readFull(b, reply); err != nil {
		return nil, err
	}
	return reply[1:], nil
}

func (d *Device) read(b *device.Base, address uint32, size int) ([]byte, error) {
	req := []byte{cmdRead, byte(address >> 24), byte(address >> 16), byte(address >> 8), byte(address), byte(size >> 8), byte(size)}
	if _, err := b.Stream().Write(req); err != nil {
		return nil, err
	}
	reply := make([]byte, size+1)
	if _, err := readFull(b, reply); err != nil {
		return nil, err
	}
	if reply[0] != cmdRead {
		return nil, dcerr.Wrap("uwatecsmart.read", dcerr.Protocol, nil)
	}
	return reply[1:], nil
}

// timesync sets the device's free-running clock, reported in the same
// uptime-tick units the profile stores its timestamps in.
func (d *Device) timesync(b *device.Base, t time.Time) error {
	ticks := uint32(t.Unix())
	req := []byte{cmdClock, byte(ticks >> 24), byte(ticks >> 16), byte(ticks >> 8), byte(ticks)}
	if _, err := b.Stream().Write(req); err != nil {
		return err
	}
	ack := make([]byte, 1)
	if _, err := readFull(b, ack); err != nil {
		return err
	}
	if ack[0] != cmdClock {
		return dcerr.Wrap("uwatecsmart.timesync", dcerr.Protocol, nil)
	}
	b.Emit(device.Event{Kind: device.EventClock, Clock: device.Clock{SystemTime: t.Unix(), DeviceTime: int64(ticks)}})
	return nil
}

// DevTicks/SysTicks expose the calibration pair captured at handshake so
// callers can pass it to parser.SetClock for each extracted dive.
func (d *Device) DevTicks() int64 { return d.devTicks }
func (d *Device) SysTicks() int64 { return d.sysTicks }

// emitDevInfo reads the version block (the same one b.Version() caches) and
// reports its leading 4 bytes as the session serial, before the first dive
// callback (spec §5's ordering rule).
func (d *Device) emitDevInfo(b *device.Base) {
	data, err := d.version(b)
	if err != nil || len(data) < 4 {
		return
	}
	b.Emit(device.Event{Kind: device.EventDevInfo, DevInfo: device.DevInfo{Serial: beU32(data[:4])}})
}

func (d *Device) foreach(b *device.Base, cb device.DiveCallback) error {
	d.emitDevInfo(b)
	profile, err := d.read(b, 0, d.cfg.ProfileSize)
	if err != nil {
		return err
	}

	// Each dive's header (its last headerSize bytes) embeds its own start
	// offset within the ring, so the pointer chases backwards one dive at a
	// time without needing a separate logbook (spec §4.4.2's third
	// start-locating strategy). A stored value ≥ end is a corrupt/overwritten
	// pointer, not a legitimate start (offset 0 is a legitimate start for the
	// oldest dive in the ring).
	locate := ringbuffer.EmbeddedPointerLocator(func(ring []byte, end int) (int, bool) {
		if end < headerSize {
			return 0, false
		}
		hdr := ring[end-headerSize : end]
		ptr := int(beU32(hdr[prevPtrOffset : prevPtrOffset+4]))
		if ptr >= end {
			return 0, false
		}
		return ptr, true
	})

	return ringbuffer.Walk(profile, len(profile), b.Fingerprint(), ringbuffer.Layout{FingerprintOffset: 0}, locate, func(blob, _ []byte) bool {
		fp := blob
		if len(fp) > fpSize {
			fp = fp[:fpSize]
		}
		return cb(blob, fp)
	})
}
