// Package uwatecmemomouse implements the Uwatec Memomouse family parser: a
// fixed header only, no sample stream, demonstrating the 12-hour/AM-PM BCD
// date/time reconstruction rule of spec §4.5.2 (the other header-only
// family, Suunto Aladin, uses the plain 24-hour form instead).
package uwatecmemomouse

import (
	"time"

	"divecomputer-go/dcerr"
	"divecomputer-go/internal/bcd"
	"divecomputer-go/parser"
)

// Header layout within the 18-byte record header extracted by
// device/uwatecmemomouse: byte 0 year-last-digit, 1 month (BCD), 2 day
// (BCD), 3 hour 1-12 (BCD), 4 minute (BCD), 5 second (BCD), 6 AM/PM flag
// (0=AM, 1=PM), 7-8 max depth in centimeters (big-endian), 9-10 dive
// duration in seconds (big-endian), remaining bytes reserved/vendor.
const headerSize = 18

// New wraps data (one raw record extracted by device/uwatecmemomouse) as a
// parser.Parser for the given model id.
func New(modelID int, data []byte) *parser.Base {
	return parser.New(modelID, data, parser.Ops{
		Field:    field,
		DateTime: dateTime,
		// No SamplesForeach: Memomouse carries only summary fields, no
		// profile stream (spec §4.5's header-only family).
	})
}

func header(p *parser.Base) ([]byte, error) {
	data := p.Data()
	if len(data) < headerSize {
		return nil, dcerr.Wrapf("uwatecmemomouse.header", dcerr.DataFormat, "record too short: %d bytes", len(data))
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
	hour := bcd.Hour12(bcd.Decode(h[3]), h[6] != 0)
	minute := bcd.Decode(h[4])
	second := bcd.Decode(h[5])
	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 || second > 59 {
		return time.Time{}, dcerr.Wrapf("uwatecmemomouse.dateTime", dcerr.DataFormat, "implausible BCD date/time")
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
		cm := uint16(h[7])<<8 | uint16(h[8])
		return float64(cm) / 100.0, nil
	case parser.FieldDiveTimeS:
		s := uint16(h[9])<<8 | uint16(h[10])
		return int(s), nil
	case parser.FieldGasMixCount:
		return 0, nil // Memomouse has no multi-gas table
	default:
		return nil, dcerr.Unsupported
	}
}
