package download

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"divecomputer-go/dccontext"
	"divecomputer-go/device"
	"divecomputer-go/family"
)

// fakeDevice is a minimal device.Device stand-in letting Run's
// orchestration be tested without a real transport: dives and a serial
// number are scripted up front, SetFingerprint and SetEvents are recorded,
// and Foreach replays the scripted dives (newest first, matching every real
// family), emitting a DEVINFO event before the first one.
type fakeDevice struct {
	serial     uint32
	dives      [][2][]byte // {data, fingerprint} pairs, newest first
	fp         []byte
	listener   device.Listener
	listenerUD any
	mask       device.EventKind
	cancelled  bool
}

func (f *fakeDevice) Family() family.Tag { return family.SuuntoVyper }

func (f *fakeDevice) SetFingerprint(fp []byte) error {
	f.fp = append([]byte(nil), fp...)
	return nil
}

func (f *fakeDevice) SetEvents(mask device.EventKind, l device.Listener, userdata any) error {
	f.mask, f.listener, f.listenerUD = mask, l, userdata
	return nil
}

func (f *fakeDevice) SetCancel(dccontext.CancelFunc) {}
func (f *fakeDevice) Version([]byte) (int, error)    { return 0, nil }
func (f *fakeDevice) Read(uint32, int) ([]byte, error) {
	return nil, nil
}
func (f *fakeDevice) Write(uint32, []byte) error { return nil }
func (f *fakeDevice) Dump() ([]byte, error)       { return nil, nil }
func (f *fakeDevice) Timesync(time.Time) error    { return nil }
func (f *fakeDevice) Close() error                { return nil }

func (f *fakeDevice) emit(ev device.Event) {
	if f.listener != nil && f.mask&ev.Kind != 0 {
		f.listener(ev, f.listenerUD)
	}
}

func (f *fakeDevice) Foreach(cb device.DiveCallback) error {
	f.emit(device.Event{Kind: device.EventDevInfo, DevInfo: device.DevInfo{Serial: f.serial}})
	for _, d := range f.dives {
		if f.cancelled {
			return nil // callers check dcerr.Cancelled via a real Cancel predicate; fake just stops
		}
		if !cb(d[0], d[1]) {
			return nil
		}
	}
	return nil
}

// TestRunPersistsNewestFingerprint confirms Run captures the first (newest)
// dive's fingerprint and persists it to the cache after a clean run.
func TestRunPersistsNewestFingerprint(t *testing.T) {
	dir := t.TempDir()
	dev := &fakeDevice{
		serial: 0x1234,
		dives: [][2][]byte{
			{[]byte("dive3"), []byte{0x03}},
			{[]byte("dive2"), []byte{0x02}},
			{[]byte("dive1"), []byte{0x01}},
		},
	}

	var seen []string
	res, err := Run(nil, dev, Options{Cache: Cache{Dir: dir}, FamilyName: "suunto-vyper"}, func(data, fp []byte) bool {
		seen = append(seen, string(data))
		return true
	})
	require.NoError(t, err)
	require.Equal(t, 3, res.DiveCount)
	require.Equal(t, []byte{0x03}, res.Fingerprint)
	require.Equal(t, []string{"dive3", "dive2", "dive1"}, seen)

	stored, err := os.ReadFile(Cache{Dir: dir}.path("suunto-vyper", 0x1234))
	require.NoError(t, err)
	require.Equal(t, []byte{0x03}, stored)
}

// TestRunLoadsCachedFingerprintOnDevInfo confirms a previously cached
// fingerprint is picked up via the DEVINFO listener once the serial is
// known, overriding the initial nil fingerprint passed to SetFingerprint.
func TestRunLoadsCachedFingerprintOnDevInfo(t *testing.T) {
	dir := t.TempDir()
	cache := Cache{Dir: dir}
	require.NoError(t, cache.Store("suunto-vyper", 0x1234, []byte{0x02}))

	dev := &fakeDevice{
		serial: 0x1234,
		dives: [][2][]byte{
			{[]byte("dive3"), []byte{0x03}},
		},
	}

	_, err := Run(nil, dev, Options{Cache: cache, FamilyName: "suunto-vyper"}, func(data, fp []byte) bool { return true })
	require.NoError(t, err)
	require.Equal(t, []byte{0x02}, dev.fp)
}

// TestRunExplicitFingerprintOverridesCache confirms an explicit fingerprint
// passed via Options takes precedence over any cached value.
func TestRunExplicitFingerprintOverridesCache(t *testing.T) {
	dir := t.TempDir()
	cache := Cache{Dir: dir}
	require.NoError(t, cache.Store("suunto-vyper", 0x1234, []byte{0xFF}))

	dev := &fakeDevice{serial: 0x1234}
	_, err := Run(nil, dev, Options{Cache: cache, FamilyName: "suunto-vyper", Fingerprint: []byte{0xAB}}, func([]byte, []byte) bool { return true })
	require.NoError(t, err)
	require.Equal(t, []byte{0xAB}, dev.fp)
}

// TestCacheLoadMissReturnsNil confirms a never-before-seen family/serial
// pair has no cached fingerprint.
func TestCacheLoadMissReturnsNil(t *testing.T) {
	cache := Cache{Dir: t.TempDir()}
	require.Nil(t, cache.Load("suunto-vyper", 0x9999))
}

// TestStoreEmptyFingerprintIsNoop confirms Store silently does nothing for
// a nil/empty fingerprint, matching "cancellation arrived" callers that
// never invoke Store with dive data to persist.
func TestStoreEmptyFingerprintIsNoop(t *testing.T) {
	dir := t.TempDir()
	cache := Cache{Dir: dir}
	require.NoError(t, cache.Store("suunto-vyper", 0x1234, nil))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}
