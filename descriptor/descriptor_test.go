package descriptor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"divecomputer-go/dcerr"
	"divecomputer-go/family"
)

// The family packages import descriptor, so none of them is linked into
// this test binary; the test registers its own fixtures.
func init() {
	Register(Descriptor{Family: family.SuuntoVyper, VendorName: "Suunto", ProductName: "Vyper", ModelID: 0x01, DefaultTransport: family.TransportSerial})
	Register(Descriptor{Family: family.SuuntoVyper, VendorName: "Suunto", ProductName: "Spyder", ModelID: 0x02, DefaultTransport: family.TransportSerial})
}

// TestLookupByNameAndProduct confirms case-insensitive lookup by the full
// "<vendor> <product>" name and by product name alone, against the
// fixtures registered above.
func TestLookupByNameAndProduct(t *testing.T) {
	d, err := Lookup("suunto vyper")
	require.NoError(t, err)
	require.Equal(t, "Suunto", d.VendorName)

	d2, err := Lookup("Vyper")
	require.NoError(t, err)
	require.Equal(t, d.ModelID, d2.ModelID)
}

func TestLookupUnknownReturnsNoDevice(t *testing.T) {
	_, err := Lookup("nonexistent dive computer 9000")
	require.ErrorIs(t, err, dcerr.NoDevice)
}

// TestIteratorIsSortedAndRestartable confirms NewIterator yields entries in
// stable name order and that Reset replays the same sequence.
func TestIteratorIsSortedAndRestartable(t *testing.T) {
	it := NewIterator()
	var first []string
	for {
		d, err := it.Next()
		if err != nil {
			break
		}
		first = append(first, d.Name())
	}
	require.NotEmpty(t, first)
	for i := 1; i < len(first); i++ {
		require.LessOrEqual(t, first[i-1], first[i])
	}

	it.Reset()
	var second []string
	for {
		d, err := it.Next()
		if err != nil {
			break
		}
		second = append(second, d.Name())
	}
	require.Equal(t, first, second)
}

func TestLookupModelFallsBackToFirstFamilyMember(t *testing.T) {
	d, err := LookupModel("suunto-vyper", 0x99) // no model 0x99 registered
	require.NoError(t, err)
	require.Equal(t, "suunto-vyper", string(d.Family))
}
