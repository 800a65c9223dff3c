package uwatecgalileo

import (
	"testing"

	"github.com/stretchr/testify/require"

	"divecomputer-go/sample"
)

func testBlob() []byte {
	header := make([]byte, headerSize)
	header[2], header[3] = 0x00, 0x04 // sample interval = 4s

	// spec §8 scenario 6's literal bitstream, padded with two 0x80 fill
	// tokens to exercise the leading-1-bit pad path to the buffer's end.
	profile := []byte{0xC2, 0xF1, 0x01, 0xF4, 0xF4, 0x04, 0x80, 0x80}
	return append(header, profile...)
}

// TestBitstreamDecode reproduces spec §8 scenario 6: TIME=8, then TIME=12
// with DEPTH=(0x01F4-depth_calibration)/50.0, then a TEMPERATURE sample
// derived from the two raw bytes following DEPTH's payload.
func TestBitstreamDecode(t *testing.T) {
	p := New(1, testBlob())

	var kinds []sample.Kind
	var times []uint32
	var depth float64
	var temp float64
	err := p.SamplesForeach(func(s sample.Sample) error {
		kinds = append(kinds, s.Kind)
		switch s.Kind {
		case sample.Time:
			times = append(times, s.TimeMS)
		case sample.Depth:
			depth = s.DepthM
		case sample.Temperature:
			temp = s.Temperature
		}
		return nil
	})
	require.NoError(t, err)

	require.Equal(t, []sample.Kind{sample.Time, sample.Time, sample.Depth, sample.Temperature}, kinds)
	require.Equal(t, []uint32{8000, 12000}, times)
	require.Equal(t, 10.0, depth) // (0x01F4 - 0) / 50.0

	raw := uint16(0xF404)
	delta := int16(raw)
	require.Equal(t, float64(delta)/10.0, temp)
}
