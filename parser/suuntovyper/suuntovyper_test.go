package suuntovyper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"divecomputer-go/parser"
	"divecomputer-go/sample"
)

func testBlob() []byte {
	header := []byte{
		0x05,       // year last digit -> decade-guessed
		0x07,       // month (BCD) = 7
		0x15,       // day (BCD) = 15
		0x10,       // hour (BCD) = 10
		0x30,       // minute (BCD) = 30
		0x00,       // second (BCD) = 0
		0x00, 0xFA, // max depth = 250 dm = 25.0 m
		0x07, 0x08, // dive duration = 1800 s
		10, // sample interval seconds
		0,  // reserved
	}
	stream := []byte{
		opDeltaTemp, 0xFB, // -0.5 degC
		opDeltaDepth, 50, // +5.0m from 0 -> 5.0m, completion
		opEvent, 0x02,
		opEnd,
	}
	return append(header, stream...)
}

func TestDateTimeAndFields(t *testing.T) {
	p := New(1, testBlob())

	dt, err := p.DateTime()
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, time.July, 15, 10, 30, 0, 0, time.UTC), dt)

	depth, err := p.Field(parser.FieldMaxDepthM, 0)
	require.NoError(t, err)
	require.Equal(t, 25.0, depth)

	duration, err := p.Field(parser.FieldDiveTimeS, 0)
	require.NoError(t, err)
	require.Equal(t, 1800, duration)
}

func TestSamplesForeach(t *testing.T) {
	p := New(1, testBlob())

	var kinds []sample.Kind
	err := p.SamplesForeach(func(s sample.Sample) error {
		kinds = append(kinds, s.Kind)
		if s.Kind == sample.Depth {
			require.Equal(t, 5.0, s.DepthM)
		}
		return nil
	})
	require.NoError(t, err)
	// TIME+DEPTH+TEMPERATURE for the completed delta-depth record, then
	// TIME+EVENT for the event record.
	require.Equal(t, []sample.Kind{sample.Time, sample.Depth, sample.Temperature, sample.Time, sample.EventKind}, kinds)
}

func TestSamplesForeachTruncated(t *testing.T) {
	blob := testBlob()
	blob = blob[:len(blob)-1] // drop the trailing opEnd so the stream ends on an opDeltaDepth with no operand
	p := New(1, append(blob, opDeltaDepth))

	err := p.SamplesForeach(func(s sample.Sample) error { return nil })
	require.Error(t, err)
}
