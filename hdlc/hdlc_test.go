package hdlc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"divecomputer-go/iostream"
)

// TestWriteFrameThenReadFrameRoundTrips confirms a payload containing bytes
// that must be escaped (the flag byte and the escape byte itself) survives
// a write into a mock stream and a subsequent read back out.
func TestWriteFrameThenReadFrameRoundTrips(t *testing.T) {
	payload := []byte{0x01, flagByte, 0x02, escapeByte, 0x03}

	writer := iostream.NewMock(nil)
	s := New(writer, 0, 0)
	require.NoError(t, s.WriteFrame(payload))

	reader := iostream.NewMock(writer.TX)
	s2 := New(reader, 0, 0)
	got, err := s2.ReadFrame(time.Second)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

// TestReadFrameCRCMismatchResyncs confirms a corrupted frame yields a
// protocol error for that frame, and that a second, valid frame immediately
// following it is still recoverable — the transparent resynchronization
// named by spec §4.2.
func TestReadFrameCRCMismatchResyncs(t *testing.T) {
	good := []byte{0x10, 0x20, 0x30}

	w := iostream.NewMock(nil)
	s := New(w, 0, 0)
	require.NoError(t, s.WriteFrame(good))
	validFrame := append([]byte(nil), w.TX...)

	corrupt := append([]byte(nil), validFrame...)
	corrupt[1] ^= 0xFF // flip the first payload byte, inside the frame body

	stream := iostream.NewMock(nil)
	stream.Feed(corrupt)
	stream.Feed(validFrame)
	r := New(stream, 0, 0)

	_, err := r.ReadFrame(time.Second)
	require.Error(t, err)

	got, err := r.ReadFrame(time.Second)
	require.NoError(t, err)
	require.Equal(t, good, got)
}

func TestWriteFrameRejectsOversizePayload(t *testing.T) {
	w := iostream.NewMock(nil)
	s := New(w, 0, 4)
	err := s.WriteFrame([]byte{1, 2, 3, 4, 5})
	require.Error(t, err)
}

func TestReadFrameTimeoutWaitingForFlag(t *testing.T) {
	stream := iostream.NewMock(nil)
	s := New(stream, 0, 0)
	_, err := s.ReadFrame(time.Millisecond)
	require.Error(t, err)
}
