// Package download implements the download pipeline of spec §4.7: the
// external-collaborator-facing orchestration that opens a device, loads a
// cached fingerprint, downloads new dives newest-first, and persists the
// newest fingerprint back to the cache on success.
package download

import (
	"os"
	"path/filepath"
	"strings"

	"divecomputer-go/dccontext"
	"divecomputer-go/dcerr"
	"divecomputer-go/device"
	"divecomputer-go/x/conv"
)

// Cache persists fingerprints at <cachedir>/<family-name>-<serial:08x>.bin,
// contents are the opaque fingerprint bytes with no header (spec §6).
type Cache struct {
	Dir string
}

func (c Cache) path(familyName string, serial uint32) string {
	hex := string(conv.U32Hex(make([]byte, 8), serial))
	return filepath.Join(c.Dir, familyName+"-"+strings.ToLower(hex)+".bin")
}

// Load returns the cached fingerprint for (familyName, serial), or nil if
// there is none yet.
func (c Cache) Load(familyName string, serial uint32) []byte {
	if c.Dir == "" {
		return nil
	}
	b, err := os.ReadFile(c.path(familyName, serial))
	if err != nil {
		return nil
	}
	return b
}

// Store persists fp for (familyName, serial). A nil/empty fp is a no-op,
// matching "if cancellation arrived, the fingerprint is NOT persisted" —
// callers simply don't call Store in that path.
func (c Cache) Store(familyName string, serial uint32, fp []byte) error {
	if c.Dir == "" || len(fp) == 0 {
		return nil
	}
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(c.path(familyName, serial), fp, 0o644)
}

// Options configures one Run invocation.
type Options struct {
	Cache      Cache
	FamilyName string
	// Fingerprint, if non-nil, overrides the cache lookup (spec §6's
	// -p/--fingerprint flag providing a hex fingerprint directly).
	Fingerprint []byte
}

// Result summarizes one completed (or cancelled) download.
type Result struct {
	Serial      uint32
	DiveCount   int
	Fingerprint []byte
	Cancelled   bool
}

// Run implements spec §4.7: it receives a fingerprint (explicit override or
// previously persisted for this family+serial), calls SetFingerprint on the
// device, registers a DEVINFO listener that overrides the fingerprint with
// the cached file's contents once the serial is known, then calls Foreach.
// The first dive's fingerprint is captured and, after successful
// completion, persisted. If cancellation arrived, it is not persisted.
func Run(ctx *dccontext.Context, d device.Device, opts Options, onDive func(data []byte, fingerprint []byte) bool) (Result, error) {
	initial := opts.Fingerprint
	if err := d.SetFingerprint(initial); err != nil {
		return Result{}, err
	}

	var serial uint32
	var sawDevInfo bool
	err := d.SetEvents(device.EventDevInfo|device.EventProgress, func(ev device.Event, _ any) {
		if ev.Kind == device.EventDevInfo {
			serial = ev.DevInfo.Serial
			sawDevInfo = true
			if cached := opts.Cache.Load(opts.FamilyName, serial); opts.Fingerprint == nil && cached != nil {
				_ = d.SetFingerprint(cached)
			}
		}
	}, nil)
	if err != nil {
		return Result{}, err
	}

	var newestFP []byte
	diveCount := 0
	iterErr := d.Foreach(func(data []byte, fingerprint []byte) bool {
		if diveCount == 0 {
			newestFP = append([]byte(nil), fingerprint...)
		}
		diveCount++
		return onDive(data, fingerprint)
	})

	result := Result{Serial: serial, DiveCount: diveCount, Fingerprint: newestFP}

	if iterErr != nil {
		if dcerr.Of(iterErr) == dcerr.Cancelled {
			result.Cancelled = true
			return result, nil
		}
		return result, iterErr
	}

	if sawDevInfo && len(newestFP) > 0 {
		if err := opts.Cache.Store(opts.FamilyName, serial, newestFP); err != nil {
			return result, err
		}
	}
	return result, nil
}
