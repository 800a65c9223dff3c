// Package oceanicatom2 implements the Oceanic Atom2 family device: a
// 0x34/0x10 probe handshake, 16-byte read packets, and a profile ring whose
// dive boundaries are recorded in a separate fixed-slot logbook ring (spec
// §4.4.1's common wire-protocol skeleton and §4.4.2's "per-dive length
// stored in a matching logbook entry" start-locating strategy).
package oceanicatom2

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
	descriptor.Register(descriptor.Descriptor{Family: family.OceanicAtom2, VendorName: "Oceanic", ProductName: "Atom 2.0", ModelID: 0x01, DefaultTransport: family.TransportSerial})
	descriptor.Register(descriptor.Descriptor{Family: family.OceanicAtom2, VendorName: "Oceanic", ProductName: "Veo 2.0", ModelID: 0x02, DefaultTransport: family.TransportSerial})
	descriptor.Register(descriptor.Descriptor{Family: family.OceanicAtom2, VendorName: "Aeris", ProductName: "Epic", ModelID: 0x03, DefaultTransport: family.TransportSerial})
}

const (
	probeByte    = 0x34
	readByte     = 0x10
	packetSize   = 16
	versionSize  = 16
	fpSize       = 4

	// Logbook ring: a fixed-slot table, each entry naming one dive's
	// {begin offset, length} within the profile ring (spec §4.4.2's first
	// start-locating strategy).
	logbookSlots      = 0x20
	logbookEntrySize  = 8
	logbookBaseAddr   = 0x0240
	profileBaseAddr   = 0x0400
)

func DefaultConfig() iostream.Config {
	cfg, _ := transport.SerialProfile(family.OceanicAtom2)
	return cfg
}

type Config struct {
	ProfileSize int // total bytes in the profile ring; model-dependent
}

func DefaultDeviceConfig() Config {
	return Config{ProfileSize: 0x10000}
}

type Device struct {
	*device.Base
	cfg Config
}

func Open(stream iostream.Stream, cfg Config) (*Device, error) {
	if err := stream.Configure(DefaultConfig()); err != nil {
		return nil, err
	}
	if cfg.ProfileSize <= 0 {
		cfg = DefaultDeviceConfig()
	}
	d := &Device{cfg: cfg}
	d.Base = device.New(family.OceanicAtom2, nil, stream, fpSize, device.Ops{
		Version: d.version,
		Read:    d.read,
		Dump:    d.dump,
		Foreach: d.foreach,
	})
	if err := d.probe(d.Base); err != nil {
		return nil, err
	}
	return d, nil
}

func checksum8(bytes ...byte) byte {
	var sum byte
	for _, b := range bytes {
		sum ^= b
	}
	return sum
}

// probe performs the handshake of spec §6's Atom2 row: write the probe
// byte, expect it echoed, then write the read-mode byte to put the device
// into packet-transfer mode.
func (d *Device) probe(b *device.Base) error {
	if err := b.Stream().SetTimeout(iostream.Timeout(3 * time.Second)); err != nil {
		return err
	}
	if _, err := b.Stream().Write([]byte{probeByte}); err != nil {
		return err
	}
	ack := make([]byte, 1)
	if n, err := b.Stream().Read(ack); err != nil || n != 1 || ack[0] != probeByte {
		if err == nil {
			err = dcerr.Wrap("oceanicatom2.probe", dcerr.Protocol, nil)
		}
		return err
	}
	if _, err := b.Stream().Write([]byte{readByte}); err != nil {
		return err
	}
	return nil
}

// exchange issues one read-packet request: {readByte, address (3 bytes
// big-endian), length, checksum} and returns the length-byte payload of the
// reply, after validating the checksum byte that follows it.
func (d *Device) exchange(b *device.Base, address uint32, length byte) ([]byte, error) {
	req := []byte{readByte, byte(address >> 16), byte(address >> 8), byte(address), length}
	req = append(req, checksum8(req...))
	if _, err := b.Stream().Write(req); err != nil {
		return nil, err
	}

	reply := make([]byte, int(length)+1)
	off := 0
	for off < len(reply) {
		if err := b.CheckCancelled(); err != nil {
			return nil, err
		}
		n, err := b.Stream().Read(reply[off:])
		off += n
		if err != nil {
			return nil, err
		}
	}
	body, trailer := reply[:len(reply)-1], reply[len(reply)-1]
	if checksum8(body...) != trailer {
		return nil, dcerr.Wrap("oceanicatom2.exchange", dcerr.Protocol, nil)
	}
	return body, nil
}

func (d *Device) version(b *device.Base) ([]byte, error) {
	return d.exchange(b, 0, versionSize)
}

func (d *Device) read(b *device.Base, address uint32, size int) ([]byte, error) {
	return device.DumpByBlocks(b, size, packetSize, func(addr uint32, n int) ([]byte, error) {
		return d.exchange(b, address+addr, byte(n))
	})
}

func (d *Device) dump(b *device.Base) ([]byte, error) {
	return d.read(b, 0, d.cfg.ProfileSize)
}

// logbookEntry reads one {begin, length} pair from the logbook ring.
func (d *Device) logbookEntry(b *device.Base, slot int) (begin, length int, err error) {
	raw, err := d.read(b, uint32(logbookBaseAddr+slot*logbookEntrySize), logbookEntrySize)
	if err != nil {
		return 0, 0, err
	}
	begin = int(raw[0])<<24 | int(raw[1])<<16 | int(raw[2])<<8 | int(raw[3])
	length = int(raw[4])<<24 | int(raw[5])<<16 | int(raw[6])<<8 | int(raw[7])
	return begin, length, nil
}

// emitDevInfo reads the 16-byte version block (the same one b.Version()
// caches) and reports its leading 4 bytes as the session serial, before the
// first dive callback (spec §5's ordering rule).
func (d *Device) emitDevInfo(b *device.Base) {
	data, err := d.version(b)
	if err != nil || len(data) < 4 {
		return
	}
	serial := uint32(data[0])<<24 | uint32(data[1])<<16 | uint32(data[2])<<8 | uint32(data[3])
	b.Emit(device.Event{Kind: device.EventDevInfo, DevInfo: device.DevInfo{Serial: serial}})
}

func (d *Device) foreach(b *device.Base, cb device.DiveCallback) error {
	d.emitDevInfo(b)
	profile, err := d.read(b, profileBaseAddr, d.cfg.ProfileSize)
	if err != nil {
		return err
	}

	slot := logbookSlots - 1
	locate := ringbuffer.LogbookLocator(func(end int) (int, bool) {
		if slot < 0 {
			return 0, false
		}
		_, length, err := d.logbookEntry(b, slot)
		slot--
		if err != nil || length <= 0 || length == 0xFFFFFFFF {
			return 0, false
		}
		return length, true
	})

	return ringbuffer.Walk(profile, len(profile), b.Fingerprint(), ringbuffer.Layout{FingerprintOffset: 0}, locate, func(blob, _ []byte) bool {
		fp := blob
		if len(fp) > fpSize {
			fp = fp[:fpSize]
		}
		return cb(blob, fp)
	})
}
