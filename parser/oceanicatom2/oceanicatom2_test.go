package oceanicatom2

import (
	"testing"

	"github.com/stretchr/testify/require"

	"divecomputer-go/sample"
)

func testBlob(tankChangeSlot []byte) []byte {
	header := make([]byte, headerSize)
	header[0], header[1] = 0x00, 0x1E // dive time = 30s (unused by this test)
	header[4] = 4                     // interval

	return append(header, tankChangeSlot...)
}

// TestTankChangeDecode reproduces spec §8 scenario 5 exactly: a 16-byte
// sample whose first byte is 0xAA emits a tank-change with no time advance.
func TestTankChangeDecode(t *testing.T) {
	slot := make([]byte, slotSize)
	slot[0] = tagTankChange
	slot[1] = 0x02 // (0x02 & 0x03) - 1 = tank 1
	slot[4] = 0x01
	slot[5] = 0x2C // (0x012C & 0x0FFF) * 2 = 0x258 = 600 psi

	p := New(0x01, testBlob(slot))

	var samples []sample.Sample
	err := p.SamplesForeach(func(s sample.Sample) error {
		samples = append(samples, s)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, samples, 1)
	require.Equal(t, sample.Pressure, samples[0].Kind)
	require.Equal(t, 1, samples[0].Pressure.Tank)
	require.InDelta(t, 600.0*0.0689476, samples[0].Pressure.Bar, 1e-9)
}

func TestEmptySlotSkipped(t *testing.T) {
	slot := make([]byte, slotSize) // all-zero -> empty
	p := New(0x01, testBlob(slot))

	var count int
	err := p.SamplesForeach(func(s sample.Sample) error {
		count++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 0, count)
}
