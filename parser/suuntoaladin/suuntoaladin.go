// Package suuntoaladin implements the Suunto Aladin family parser: a
// header-only decode (no sample stream) over a fixed-layout record whose
// date/time fields are packed BCD on a 24-hour clock, unlike the Uwatec
// families' 12-hour AM/PM convention (spec §4.5.2).
package suuntoaladin

import (
	"time"

	"divecomputer-go/dcerr"
	"divecomputer-go/internal/bcd"
	"divecomputer-go/parser"
)

// Header layout: byte 0 sample interval in seconds, bytes 1-5 packed BCD
// {year-last-digit, month, day, hour, minute}, bytes 6-7 max depth in
// centimeters (big-endian), bytes 8-9 dive time in seconds (big-endian).
const headerSize = 10

func New(modelID int, data []byte) *parser.Base {
	return parser.New(modelID, data, parser.Ops{
		Field:    field,
		DateTime: dateTime,
	})
}

func header(p *parser.Base) ([]byte, error) {
	data := p.Data()
	if len(data) < headerSize {
		return nil, dcerr.Wrapf("suuntoaladin.header", dcerr.DataFormat, "blob too short: %d bytes", len(data))
	}
	return data[:headerSize], nil
}

func dateTime(p *parser.Base) (time.Time, error) {
	h, err := header(p)
	if err != nil {
		return time.Time{}, err
	}
	year := bcd.GuessDecade(bcd.Decode(h[1])%10, time.Now())
	month := bcd.Decode(h[2])
	day := bcd.Decode(h[3])
	hour := bcd.Decode(h[4])
	minute := bcd.Decode(h[5])
	return time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC), nil
}

func field(p *parser.Base, ft parser.FieldType, index int) (any, error) {
	h, err := header(p)
	if err != nil {
		return nil, err
	}
	switch ft {
	case parser.FieldMaxDepthM:
		cm := uint16(h[6])<<8 | uint16(h[7])
		return float64(cm) / 100.0, nil
	case parser.FieldDiveTimeS:
		s := uint16(h[8])<<8 | uint16(h[9])
		return int(s), nil
	case parser.FieldGasMixCount:
		return 0, nil
	default:
		return nil, dcerr.Unsupported
	}
}
