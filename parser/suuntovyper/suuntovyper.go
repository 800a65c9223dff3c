// Package suuntovyper implements the Suunto Vyper family parser: a fixed
// BCD date/time header followed by a variable-length tagged-record sample
// stream (spec §4.5.3's "variable-length tagged records" style).
package suuntovyper

import (
	"time"

	"divecomputer-go/dcerr"
	"divecomputer-go/internal/bcd"
	"divecomputer-go/parser"
	"divecomputer-go/sample"
)

// Header layout: byte 0 year-last-digit, 1 month (BCD), 2 day (BCD), 3 hour
// (BCD), 4 minute (BCD), 5 second (BCD), 6-7 max depth in decimeters
// (big-endian), 8-9 dive duration in seconds (big-endian), 10 sample
// interval in seconds, 11 reserved. Sample stream begins at byte 12.
const headerSize = 12

// Opcodes of the tagged-record sample stream.
const (
	opEnd           = 0x00
	opDeltaDepth    = 0x01
	opDeltaTemp     = 0x02
	opDeltaPressure = 0x03
	opAbsoluteDepth = 0x04
	opEvent         = 0x05
	opTimeSkip      = 0x06
)

// New wraps data (one raw dive blob extracted by device/suuntovyper) as a
// parser.Parser for the given model id.
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
		return nil, dcerr.Wrapf("suuntovyper.header", dcerr.DataFormat, "blob too short: %d bytes", len(data))
	}
	return data[:headerSize], nil
}

func dateTime(p *parser.Base) (time.Time, error) {
	h, err := header(p)
	if err != nil {
		return time.Time{}, err
	}
	year := bcd.GuessDecade(int(h[0]), time.Now())
	month := bcd.Decode(h[1])
	day := bcd.Decode(h[2])
	hour := bcd.Decode(h[3])
	minute := bcd.Decode(h[4])
	second := bcd.Decode(h[5])
	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 || second > 59 {
		return time.Time{}, dcerr.Wrapf("suuntovyper.dateTime", dcerr.DataFormat, "implausible BCD date/time")
	}
	return time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC), nil
}

func field(p *parser.Base, ft parser.FieldType, index int) (any, error) {
	h, err := header(p)
	if err != nil {
		return nil, err
	}
	switch ft {
	case parser.FieldMaxDepthM:
		dm := uint16(h[6])<<8 | uint16(h[7])
		return float64(dm) / 10.0, nil
	case parser.FieldDiveTimeS:
		s := uint16(h[8])<<8 | uint16(h[9])
		return int(s), nil
	case parser.FieldGasMixCount:
		return 0, nil // Vyper (base firmware) has no multi-gas table
	default:
		return nil, dcerr.Unsupported
	}
}

func samplesForeach(p *parser.Base, sink sample.Sink) error {
	h, err := header(p)
	if err != nil {
		return err
	}
	interval := int(h[10])
	if interval <= 0 {
		interval = 1
	}

	data := p.Data()
	stream := data[headerSize:]

	var timeS uint32
	var depthDM int
	var tempDeci int
	var pressureBar float64
	haveTemp, havePressure := false, false
	pendingSkip := 0

	emit := func(withDepth bool) error {
		if err := sink(sample.Sample{Kind: sample.Time, TimeMS: timeS * 1000}); err != nil {
			return err
		}
		if withDepth {
			if err := sink(sample.Sample{Kind: sample.Depth, DepthM: float64(depthDM) / 10.0}); err != nil {
				return err
			}
		}
		if haveTemp {
			if err := sink(sample.Sample{Kind: sample.Temperature, Temperature: float64(tempDeci) / 10.0}); err != nil {
				return err
			}
		}
		if havePressure {
			if err := sink(sample.Sample{Kind: sample.Pressure, Pressure: sample.PressureValue{Tank: 0, Bar: pressureBar}}); err != nil {
				return err
			}
		}
		timeS += uint32(interval + pendingSkip)
		pendingSkip = 0
		return nil
	}

	need := func(i, n int) error {
		if i+n > len(stream) {
			return dcerr.Wrapf("suuntovyper.samplesForeach", dcerr.DataFormat, "truncated record at offset %d", i)
		}
		return nil
	}

	for i := 0; i < len(stream); {
		op := stream[i]
		i++
		switch op {
		case opEnd:
			return nil
		case opDeltaDepth:
			if err := need(i, 1); err != nil {
				return err
			}
			depthDM += int(int8(stream[i]))
			i++
			if err := emit(true); err != nil {
				return err
			}
		case opAbsoluteDepth:
			if err := need(i, 2); err != nil {
				return err
			}
			depthDM = int(uint16(stream[i])<<8 | uint16(stream[i+1]))
			i += 2
			if err := emit(true); err != nil {
				return err
			}
		case opDeltaTemp:
			if err := need(i, 1); err != nil {
				return err
			}
			tempDeci += int(int8(stream[i]))
			i++
			haveTemp = true
		case opDeltaPressure:
			if err := need(i, 1); err != nil {
				return err
			}
			pressureBar += float64(int8(stream[i])) / 10.0
			i++
			havePressure = true
		case opTimeSkip:
			if err := need(i, 1); err != nil {
				return err
			}
			pendingSkip += int(stream[i])
			i++
		case opEvent:
			if err := need(i, 1); err != nil {
				return err
			}
			evType := sample.EventType(stream[i])
			i++
			if err := sink(sample.Sample{Kind: sample.Time, TimeMS: timeS * 1000}); err != nil {
				return err
			}
			if err := sink(sample.Sample{Kind: sample.EventKind, Event: sample.InnerEvent{Type: evType, TimeMS: timeS * 1000}}); err != nil {
				return err
			}
		default:
			return dcerr.Wrapf("suuntovyper.samplesForeach", dcerr.DataFormat, "unknown opcode 0x%02x at offset %d", op, i-1)
		}
	}
	return nil
}
