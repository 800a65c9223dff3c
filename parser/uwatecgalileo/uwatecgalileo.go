// Package uwatecgalileo implements the Uwatec Galileo/Smart family parser:
// a bitstream sample stream whose type codes are variable-length prefix
// codes, the length identified by counting leading 1-bits before the first
// 0-bit (spec §4.5.3's third sample-stream style, §8 scenario 6).
package uwatecgalileo

import (
	"time"

	"divecomputer-go/dcerr"
	"divecomputer-go/internal/bcd"
	"divecomputer-go/internal/bitstream"
	"divecomputer-go/parser"
	"divecomputer-go/sample"
)

// Header layout preceding the bitstream profile: bytes 0-1 depth
// calibration (big-endian, subtracted from every absolute-depth token),
// bytes 2-3 sample interval in seconds, bytes 4-5 the dive's device-uptime
// timestamp (big-endian), bytes 6-7 reserved/vendor.
const headerSize = 8

// typeEntry is one row of the per-family type-index table spec §4.5.3
// names: {absolute?, tank-index, ntypebits, ignore-type-flag, extra-bytes}.
// Built as const data per the spec's explicit instruction (§9: "family-
// specific static tables are const data; the spec defines their semantics,
// not their values").
type typeEntry struct {
	kind tokenKind
	// ignoreRemainder discards the type byte's leftover bits instead of
	// using them as the value's high bits, then reads exactly extraBytes
	// byte-aligned bytes as the value (spec §4.5.3's "ignore-type-flag").
	ignoreRemainder bool
	extraBytes      int
}

type tokenKind int

const (
	tokenPad tokenKind = iota
	tokenTime
	tokenDepthAbsolute
)

// galileoSol is the Galileo Sol model's type table, keyed by the leading-
// 1-bit count (spec §8 scenario 6): index 1 is a fill/pad token with no
// value bits, index 2 is TIME (a small multiplier of the sample interval
// carried in the type byte's leftover bits), index 4 is absolute DEPTH
// whose value is two raw byte-aligned bytes.
var galileoSol = map[int]typeEntry{
	1: {kind: tokenPad},
	2: {kind: tokenTime},
	4: {kind: tokenDepthAbsolute, ignoreRemainder: true, extraBytes: 2},
}

func New(modelID int, data []byte) *parser.Base {
	return parser.New(modelID, data, parser.Ops{
		Field:          field,
		DateTime:       dateTime,
		SamplesForeach: samplesForeach,
	})
}

func header(p *parser.Base) ([]byte, error) {
	data := p.Data()
	if len(data) < headerSize {
		return nil, dcerr.Wrapf("uwatecgalileo.header", dcerr.DataFormat, "blob too short: %d bytes", len(data))
	}
	return data[:headerSize], nil
}

// dateTime reconstructs wall time from the device-uptime timestamp stored
// in header bytes 4-5, using the devtime/systime
// calibration pair captured by device/uwatecsmart at connect time (spec
// §4.5.2's Smart/Galileo rule).
func dateTime(p *parser.Base) (time.Time, error) {
	devTicks, sysTicks := p.Clock()
	if devTicks == 0 && sysTicks == 0 {
		return time.Time{}, dcerr.Wrapf("uwatecgalileo.dateTime", dcerr.Unsupported, "clock not calibrated via SetClock")
	}
	h, err := header(p)
	if err != nil {
		return time.Time{}, err
	}
	timestamp := int64(uint16(h[4])<<8 | uint16(h[5]))
	return bcd.SmartWallTime(sysTicks, devTicks, timestamp), nil
}

func field(p *parser.Base, ft parser.FieldType, index int) (any, error) {
	if _, err := header(p); err != nil {
		return nil, err
	}
	switch ft {
	case parser.FieldGasMixCount:
		return 0, nil // Galileo Sol carries no multi-gas table
	default:
		return nil, dcerr.Unsupported
	}
}

func samplesForeach(p *parser.Base, sink sample.Sink) error {
	h, err := header(p)
	if err != nil {
		return err
	}
	depthCalibration := int(uint16(h[0])<<8 | uint16(h[1]))
	interval := int(h[2])<<8 | int(h[3])
	if interval <= 0 {
		interval = 4
	}

	data := p.Data()
	profile := data[headerSize:]
	r := bitstream.New(profile)

	var timeS int
	tempEmitted := false

	for r.Remaining() > 0 {
		count, err := r.ReadTypeCode()
		if err != nil {
			return dcerr.Wrap("uwatecgalileo.samplesForeach", dcerr.DataFormat, err)
		}
		entry, ok := galileoSol[count]
		if !ok {
			return dcerr.Wrapf("uwatecgalileo.samplesForeach", dcerr.DataFormat, "unknown type code %d", count)
		}

		switch entry.kind {
		case tokenPad:
			// No value bits; a fill token used to byte-align the stream's
			// tail once real samples are exhausted.
			r.AlignToByte()

		case tokenTime:
			v, err := r.ReadBitsValue(5)
			if err != nil {
				return dcerr.Wrap("uwatecgalileo.samplesForeach", dcerr.DataFormat, err)
			}
			timeS = int(v) * interval
			if err := sink(sample.Sample{Kind: sample.Time, TimeMS: uint32(timeS) * 1000}); err != nil {
				return err
			}

		case tokenDepthAbsolute:
			if entry.ignoreRemainder {
				r.AlignToByte()
			}
			var raw int
			for i := 0; i < entry.extraBytes; i++ {
				b, err := r.ReadByte()
				if err != nil {
					return dcerr.Wrap("uwatecgalileo.samplesForeach", dcerr.DataFormat, err)
				}
				raw = raw<<8 | int(b)
			}
			depthM := float64(raw-depthCalibration) / 50.0

			timeS += interval
			if err := sink(sample.Sample{Kind: sample.Time, TimeMS: uint32(timeS) * 1000}); err != nil {
				return err
			}
			if err := sink(sample.Sample{Kind: sample.Depth, DepthM: depthM}); err != nil {
				return err
			}

			// The two raw bytes immediately following DEPTH's payload
			// carry a signed temperature delta with no type-code prefix of
			// their own (spec §8 scenario 6's "first two unprefixed
			// bytes"), emitted once per dive.
			if !tempEmitted && r.Remaining() >= 2 {
				tHi, err := r.ReadByte()
				if err != nil {
					return dcerr.Wrap("uwatecgalileo.samplesForeach", dcerr.DataFormat, err)
				}
				tLo, err := r.ReadByte()
				if err != nil {
					return dcerr.Wrap("uwatecgalileo.samplesForeach", dcerr.DataFormat, err)
				}
				delta := int16(uint16(tHi)<<8 | uint16(tLo))
				tempEmitted = true
				if err := sink(sample.Sample{Kind: sample.Temperature, Temperature: float64(delta) / 10.0}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
