package transport

import (
	"testing"

	"github.com/stretchr/testify/require"

	"divecomputer-go/family"
	"divecomputer-go/iostream"
)

func TestSerialProfileKnownFamily(t *testing.T) {
	cfg, ok := SerialProfile(family.SuuntoVyper)
	require.True(t, ok)
	require.Equal(t, iostream.Config{Baud: 2400, DataBits: 8, Parity: iostream.ParityOdd, StopBits: 1}, cfg)
}

func TestSerialProfileUnknownFamily(t *testing.T) {
	_, ok := SerialProfile(family.AtomicsCobalt)
	require.False(t, ok)
}
