package ringbuffer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestWalkLinearLogbook exercises the non-wrapping case: three records, each
// ending in its own 2-byte big-endian total length, laid out
// oldest-to-newest, walked newest-first via
// LogbookLocator, matching the forwards-to-backwards strategy used by the
// Suunto Aladin family.
func TestWalkLinearLogbook(t *testing.T) {
	ring := []byte{}
	ring = append(ring, []byte{0xAA, 0xAA, 0x00, 0x04}...)       // dive 1, len 4
	ring = append(ring, []byte{0xBB, 0xBB, 0xBB, 0x00, 0x05}...) // dive 2, len 5
	ring = append(ring, []byte{0xCC, 0x00, 0x03}...)             // dive 3, len 3

	locate := LogbookLocator(func(end int) (int, bool) {
		if end < 2 {
			return 0, false
		}
		length := int(ring[end-2])<<8 | int(ring[end-1])
		if length == 0 {
			return 0, false
		}
		return length, true
	})

	var got [][]byte
	err := Walk(ring, len(ring), nil, Layout{FingerprintOffset: -1}, locate, func(blob, _ []byte) bool {
		got = append(got, append([]byte(nil), blob...))
		return true
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, []byte{0xCC, 0x00, 0x03}, got[0])
	require.Equal(t, []byte{0xBB, 0xBB, 0xBB, 0x00, 0x05}, got[1])
	require.Equal(t, []byte{0xAA, 0xAA, 0x00, 0x04}, got[2])
}

// TestWalkWrapsRing confirms the two-memcopy reassembly when a dive
// straddles the ring boundary (start > end).
func TestWalkWrapsRing(t *testing.T) {
	ring := make([]byte, 10)
	// dive body occupies ring[8:10] + ring[0:2], size 4, placed at eop=2.
	copy(ring[8:], []byte{0x01, 0x02})
	copy(ring[0:2], []byte{0x03, 0x04})

	calls := 0
	locate := func(ring []byte, end int, remaining int) (int, bool) {
		if calls > 0 {
			return 0, true
		}
		return end - 4, false
	}
	err := Walk(ring, 2, nil, Layout{FingerprintOffset: -1}, locate, func(blob, _ []byte) bool {
		calls++
		require.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, blob)
		return true
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

// TestWalkStopsAtFingerprint confirms the internal fingerprint check (active
// only when Layout.FingerprintOffset >= 0) halts iteration on a match without
// invoking deliver for the matching dive.
func TestWalkStopsAtFingerprint(t *testing.T) {
	ring := []byte{}
	ring = append(ring, []byte{0xAA, 0x11, 0x22, 0x33}...) // fp = 11 22 33
	ring = append(ring, []byte{0xBB, 0x44, 0x55, 0x66}...)

	sizes := []int{4, 4}
	idx := 0
	locate := func(ring []byte, end int, remaining int) (int, bool) {
		if idx >= len(sizes) {
			return 0, true
		}
		n := sizes[idx]
		idx++
		return end - n, false
	}

	var got [][]byte
	err := Walk(ring, len(ring), []byte{0x44, 0x55, 0x66}, Layout{FingerprintOffset: 1}, locate, func(blob, _ []byte) bool {
		got = append(got, blob)
		return true
	})
	require.NoError(t, err)
	require.Len(t, got, 0)
}

// TestWalkBudgetExhausted confirms LogbookLocator's remaining-bytes check
// halts iteration once a dive's recorded length would exceed what's left in
// the ring — the ring-buffer sum invariant: total bytes delivered never
// exceeds len(ring).
func TestWalkBudgetExhausted(t *testing.T) {
	ring := make([]byte, 10)
	locate := LogbookLocator(func(end int) (int, bool) { return 6, true })

	var total int
	err := Walk(ring, len(ring), nil, Layout{FingerprintOffset: -1}, locate, func(blob, _ []byte) bool {
		total += len(blob)
		return true
	})
	require.NoError(t, err)
	require.Equal(t, 6, total)
	require.LessOrEqual(t, total, len(ring))
}

// TestWalkTerminalSentinel confirms a locator reporting terminal=true stops
// iteration without invoking deliver.
func TestWalkTerminalSentinel(t *testing.T) {
	ring := []byte{1, 2, 3, 4}
	called := false
	locate := func(ring []byte, end int, remaining int) (int, bool) { return 0, true }
	err := Walk(ring, len(ring), nil, Layout{FingerprintOffset: -1}, locate, func(blob, _ []byte) bool {
		called = true
		return true
	})
	require.NoError(t, err)
	require.False(t, called)
}

func TestLogbookLocatorSentinelLength(t *testing.T) {
	locate := LogbookLocator(func(end int) (int, bool) { return 0, false })
	start, terminal := locate(nil, 4, 100)
	require.True(t, terminal)
	require.Equal(t, 0, start)
}

func TestStartMarkerLocator(t *testing.T) {
	ring := []byte{0x00, 0x7E, 0x01, 0x02, 0x7E, 0x03}
	locate := StartMarkerLocator(func(ring []byte, pos int) bool { return ring[pos] == 0x7E })
	start, terminal := locate(ring, len(ring), len(ring))
	require.False(t, terminal)
	require.Equal(t, 4, start)
}
