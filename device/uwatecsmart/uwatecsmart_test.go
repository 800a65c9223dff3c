package uwatecsmart

import (
	"testing"

	"github.com/stretchr/testify/require"

	"divecomputer-go/iostream"
)

// dive builds one headerSize-byte dive record whose embedded pointer names
// its own start offset within the ring (0 for the oldest dive).
func dive(tag byte, start int) []byte {
	h := make([]byte, headerSize)
	h[0] = tag
	h[prevPtrOffset] = byte(start >> 24)
	h[prevPtrOffset+1] = byte(start >> 16)
	h[prevPtrOffset+2] = byte(start >> 8)
	h[prevPtrOffset+3] = byte(start)
	return h
}

func TestForeachEmbeddedPointerChain(t *testing.T) {
	a := dive(0x11, 0)
	b := dive(0x22, len(a))
	c := dive(0x33, len(a)+len(b))
	profile := append(append(append([]byte{}, a...), b...), c...)

	readReply := func(cmd byte, body []byte) []byte {
		return append([]byte{cmd}, body...)
	}

	var rx []byte
	rx = append(rx, readReply(cmdHandshake, make([]byte, 8))...) // handshake
	rx = append(rx, readReply(cmdVersion, make([]byte, 16))...)  // foreach's DEVINFO read
	rx = append(rx, readReply(cmdRead, profile)...)              // single big read covering the whole ring

	mock := iostream.NewMock(rx)
	dev, err := Open(mock, Config{ProfileSize: len(profile)})
	require.NoError(t, err)

	var tags []byte
	err = dev.Foreach(func(data, fingerprint []byte) bool {
		tags = append(tags, data[0])
		return true
	})
	require.NoError(t, err)
	require.Equal(t, []byte{0x33, 0x22, 0x11}, tags)
}
