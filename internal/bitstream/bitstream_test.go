package bitstream

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestReadTypeCode confirms the leading-1s-before-0 type code convention:
// 0b10110000 yields a 1-bit type code (single leading 1) with 6 bits
// remaining unread in the byte.
func TestReadTypeCode(t *testing.T) {
	r := New([]byte{0b10110000})
	code, err := r.ReadTypeCode()
	require.NoError(t, err)
	require.Equal(t, 1, code)
	require.Equal(t, 2, r.BitsConsumed())
}

// TestReadTypeCodeMultipleLeadingOnes confirms a 3-leading-1s code reads
// correctly across the terminating 0.
func TestReadTypeCodeMultipleLeadingOnes(t *testing.T) {
	r := New([]byte{0b11101111})
	code, err := r.ReadTypeCode()
	require.NoError(t, err)
	require.Equal(t, 3, code)
}

func TestReadBitsValue(t *testing.T) {
	r := New([]byte{0b10110000})
	_, err := r.ReadTypeCode() // consumes the leading "10"
	require.NoError(t, err)
	v, err := r.ReadBitsValue(4)
	require.NoError(t, err)
	require.Equal(t, uint32(0b1100), v)
}

// TestBitsConsumedInvariant exercises spec §8's bit-accounting invariant:
// total bits consumed must equal 8 times the number of whole bytes consumed
// once the reader lands exactly on a byte boundary.
func TestBitsConsumedInvariant(t *testing.T) {
	r := New([]byte{0xFF, 0x00, 0xAB})
	for i := 0; i < 24; i++ {
		_, err := r.ReadBitsValue(1)
		require.NoError(t, err)
	}
	require.Equal(t, 24, r.BitsConsumed())
	require.Equal(t, 3, r.BytesConsumed())
	require.Equal(t, 0, r.Remaining())
}

func TestAlignToByteAndReadByte(t *testing.T) {
	r := New([]byte{0b11000000, 0xAB})
	code, err := r.ReadTypeCode()
	require.NoError(t, err)
	require.Equal(t, 2, code)
	r.AlignToByte()
	require.Equal(t, 8, r.BitsConsumed())
	b, err := r.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte(0xAB), b)
}

func TestReadPastEndReturnsDataFormatError(t *testing.T) {
	r := New([]byte{0xFF})
	for i := 0; i < 8; i++ {
		_, err := r.ReadBitsValue(1)
		require.NoError(t, err)
	}
	_, err := r.ReadBitsValue(1)
	require.Error(t, err)
}

func TestSignExtend(t *testing.T) {
	require.Equal(t, int32(-1), SignExtend(0b1111, 4))
	require.Equal(t, int32(7), SignExtend(0b0111, 4))
	require.Equal(t, int32(-8), SignExtend(0b1000, 4))
}
