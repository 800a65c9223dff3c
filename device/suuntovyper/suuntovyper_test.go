package suuntovyper

import (
	"testing"

	"github.com/stretchr/testify/require"

	"divecomputer-go/iostream"
)

// buildVersionReply constructs the 9-byte reply Foreach's DEVINFO read
// expects for a 4-byte identity block, so tests that exercise Foreach don't
// need to hand-compute its checksum.
func buildVersionReply(serial [4]byte) []byte {
	body := []byte{0x00, 0x00, 0x04, serial[0], serial[1], serial[2], serial[3]}
	reply := append([]byte{cmdRead}, body...)
	return append(reply, checksum8(body...))
}

// buildDivePacket constructs one non-terminating streaming-dive-read packet
// (length byte, data, trailing checksum) for the given payload.
func buildDivePacket(data []byte) []byte {
	length := byte(len(data))
	withLen := append([]byte{length}, data...)
	return append(withLen, checksum8(withLen...))
}

// TestMemoryRead reproduces spec §8 scenario 1: request bytes
// 05 00 24 01 20 (opcode 5, address 0x0024, length 1), device reply
// 05 00 24 01 5A 7F must be accepted and yield the byte 0x5A.
func TestMemoryRead(t *testing.T) {
	mock := iostream.NewMock([]byte{0x05, 0x00, 0x24, 0x01, 0x5A, 0x7F})
	dev, err := Open(nil, mock, DefaultConfig())
	require.NoError(t, err)

	got, err := dev.Read(0x0024, 1)
	require.NoError(t, err)
	require.Equal(t, []byte{0x5A}, got)
	require.Equal(t, []byte{0x05, 0x00, 0x24, 0x01, 0x20}, mock.TX)
}

// TestDiveReadTerminator reproduces spec §8 scenario 2: a streaming
// dive-read where the device emits a packet with length byte 0 as the
// very first packet must cause Foreach to return success with zero
// callbacks (there is no dive at all).
func TestDiveReadTerminator(t *testing.T) {
	rx := append([]byte{}, buildVersionReply([4]byte{0, 0, 0, 0})...)
	rx = append(rx, 0x00)
	mock := iostream.NewMock(rx)
	dev, err := Open(nil, mock, DefaultConfig())
	require.NoError(t, err)

	calls := 0
	err = dev.Foreach(func(data, fingerprint []byte) bool {
		calls++
		return true
	})
	require.NoError(t, err)
	require.Equal(t, 0, calls)

	wantTX := append(buildRequest(cmdRead, 0x0000, 4), cmdInitDive, checksum8(cmdInitDive))
	require.Equal(t, wantTX, mock.TX)
}

// TestDiveReadDiscardsPartialOnTerminator confirms spec §8 scenario 2's
// stronger requirement: a zero-length packet arriving after real dive data
// has already been streamed must still discard everything accumulated for
// that dive, not deliver it as a short dive.
func TestDiveReadDiscardsPartialOnTerminator(t *testing.T) {
	rx := append([]byte{}, buildVersionReply([4]byte{0, 0, 0, 0})...)
	rx = append(rx, buildDivePacket([]byte{0xAA, 0xBB, 0xCC})...)
	rx = append(rx, 0x00)
	mock := iostream.NewMock(rx)
	dev, err := Open(nil, mock, DefaultConfig())
	require.NoError(t, err)

	calls := 0
	err = dev.Foreach(func(data, fingerprint []byte) bool {
		calls++
		return true
	})
	require.NoError(t, err)
	require.Equal(t, 0, calls, "a mid-dive terminator must discard the partial data, not deliver it")
}
