package uwatecmemomouse

import (
	"testing"

	"github.com/stretchr/testify/require"

	"divecomputer-go/iostream"
)

func record(header byte, payload ...byte) []byte {
	h := make([]byte, headerSize)
	for i := range h {
		h[i] = header
	}
	body := append(h, payload...)
	return append([]byte{byte(len(body) >> 8), byte(len(body))}, body...)
}

// TestDuplicateDetection reproduces spec §8 scenario 4: dives A,B,C,A',B'
// arrive oldest-first on the wire, A' repeats A's first 18 bytes; extract
// must deliver exactly 3 dives, newest-first (C, B, A).
func TestDuplicateDetection(t *testing.T) {
	var logical []byte
	logical = append(logical, record(0x11, 0xAA, 0xAA)...) // A
	logical = append(logical, record(0x22, 0xBB, 0xBB)...) // B
	logical = append(logical, record(0x33, 0xCC, 0xCC)...) // C
	logical = append(logical, record(0x11, 0xAD, 0xAD)...) // A' (duplicate header)
	logical = append(logical, record(0x22, 0xBD, 0xBD)...) // B' (never reached)

	wire := make([]byte, len(logical))
	for i, b := range logical {
		wire[i] = reverseBits(b)
	}

	rx := append([]byte{ack}, wire...)
	mock := iostream.NewMock(rx)
	dev, err := Open(mock, DefaultDeviceConfig())
	require.NoError(t, err)

	var headers []byte
	err = dev.Foreach(func(data, fingerprint []byte) bool {
		headers = append(headers, fingerprint[0])
		return true
	})
	require.NoError(t, err)
	require.Equal(t, []byte{0x33, 0x22, 0x11}, headers)
}
