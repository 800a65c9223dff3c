package uwatecmemomouse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"divecomputer-go/dcerr"
	"divecomputer-go/parser"
	"divecomputer-go/sample"
)

func testRecord() []byte {
	return []byte{
		0x05,       // year last digit -> decade-guessed
		0x07,       // month (BCD) = 7
		0x15,       // day (BCD) = 15
		0x02,       // hour 1-12 (BCD) = 2
		0x30,       // minute (BCD) = 30
		0x00,       // second (BCD) = 0
		0x01,       // PM flag -> 14:30
		0x09, 0xC4, // max depth = 2500 cm = 25.0 m
		0x07, 0x08, // dive duration = 1800 s
		0, 0, 0, 0, 0, 0, 0, // reserved/vendor (bytes 11-17)
	}
}

func TestDateTimeAndFields(t *testing.T) {
	p := New(1, testRecord())

	dt, err := p.DateTime()
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, time.July, 15, 14, 30, 0, 0, time.UTC), dt)

	depth, err := p.Field(parser.FieldMaxDepthM, 0)
	require.NoError(t, err)
	require.Equal(t, 25.0, depth)

	duration, err := p.Field(parser.FieldDiveTimeS, 0)
	require.NoError(t, err)
	require.Equal(t, 1800, duration)
}

func TestSamplesForeachUnsupported(t *testing.T) {
	p := New(1, testRecord())
	err := p.SamplesForeach(func(s sample.Sample) error { return nil })
	require.ErrorIs(t, err, dcerr.Unsupported)
}
