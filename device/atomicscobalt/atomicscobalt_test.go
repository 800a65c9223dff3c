package atomicscobalt

import (
	"testing"

	"github.com/stretchr/testify/require"

	"divecomputer-go/iostream"
)

// packet builds one fixed-size wire packet: length byte, payload, zero
// padding, trailing checksum over the length byte plus payload.
func packet(payload []byte) []byte {
	raw := make([]byte, packetSize)
	raw[0] = byte(len(payload))
	copy(raw[1:], payload)
	raw[packetSize-1] = checksum8(raw[:1+len(payload)]...)
	return raw
}

func finalPacket() []byte {
	return packet(nil)
}

func TestForeachAckNakRetry(t *testing.T) {
	good1 := packet([]byte{0xAA, 0xBB})
	bad := packet([]byte{0xCC, 0xDD})
	bad[packetSize-1] ^= 0xFF // corrupt the checksum, forcing a NAK/retry
	good2 := packet([]byte{0xCC, 0xDD})

	var rx []byte
	rx = append(rx, good1...)
	rx = append(rx, bad...)
	rx = append(rx, good2...)
	rx = append(rx, finalPacket()...) // terminates the dive
	rx = append(rx, finalPacket()...) // terminates the download: no next dive

	mock := iostream.NewMock(rx)
	dev, err := Open(mock)
	require.NoError(t, err)

	var blobs [][]byte
	err = dev.Foreach(func(data, fingerprint []byte) bool {
		blobs = append(blobs, append([]byte(nil), data...))
		return true
	})
	require.NoError(t, err)
	require.Len(t, blobs, 1)
	require.Equal(t, []byte{0xAA, 0xBB, 0xCC, 0xDD}, blobs[0])

	// One NAK must have been sent in response to the corrupted packet.
	require.Contains(t, mock.TX, byte(nak))
	require.Contains(t, mock.TX, byte(ack))
}
