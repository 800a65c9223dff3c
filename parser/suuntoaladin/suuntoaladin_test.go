package suuntoaladin

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"divecomputer-go/dcerr"
	"divecomputer-go/parser"
	"divecomputer-go/sample"
)

func testBlob(now time.Time) []byte {
	h := make([]byte, headerSize)
	h[0] = 20                        // sample interval, unused by field/dateTime
	h[1] = byte(now.Year() % 10)     // last digit of the current year
	h[2] = 0x09                      // September, packed BCD
	h[3] = 0x17                      // 17th
	h[4] = 0x14                      // 14 (24-hour clock, no AM/PM)
	h[5] = 0x30                      // :30
	h[6], h[7] = 0x09, 0xC4          // 2500cm -> 25.0m
	h[8], h[9] = 0x07, 0x08          // 1800s
	return h
}

func TestDateTimeAndFields(t *testing.T) {
	now := time.Now()
	p := New(1, testBlob(now))

	dt, err := p.DateTime()
	require.NoError(t, err)
	require.Equal(t, time.Date(now.Year(), time.September, 17, 14, 30, 0, 0, time.UTC), dt)

	depth, err := p.Field(parser.FieldMaxDepthM, 0)
	require.NoError(t, err)
	require.Equal(t, 25.0, depth)

	dur, err := p.Field(parser.FieldDiveTimeS, 0)
	require.NoError(t, err)
	require.Equal(t, 1800, dur)
}

func TestSamplesForeachUnsupported(t *testing.T) {
	p := New(1, testBlob(time.Now()))
	err := p.SamplesForeach(func(s sample.Sample) error { return nil })
	require.ErrorIs(t, err, dcerr.Unsupported)
}
