// Package ringbuffer implements the shared ring-buffer log-extraction
// algorithm of spec §4.4.2: walk a family's circular profile region
// backwards, reconstructing one dive blob per iteration, honouring a
// caller-supplied fingerprint stop condition and a remaining-bytes budget.
//
// Grounded on x/shmring's modular ring-index arithmetic (distance invariant
// 0 ≤ (wr-rd) ≤ size), generalized here from a byte-stream ring to a
// dive-record ring: instead of tracking one read/write cursor pair, Walk
// tracks a single "end" cursor stepping backwards and a "remaining" budget
// that must never go negative, which is exactly shmring's size invariant
// viewed from the consumer side.
package ringbuffer

import "bytes"

// Layout carries the family-specific geometry named in spec §3's
// "Ring-buffer layout": {memsize, fingerprint_offset, serial_offset,
// profile_begin, profile_end, sample_size}. Walk only needs the pieces
// relevant to reconstruction; memsize/serial_offset live with the caller's
// header decode.
type Layout struct {
	// FingerprintOffset is the offset of the fingerprint bytes within a
	// reconstructed dive blob. A negative value means this family's
	// fingerprint is computed some other way and Walk should not attempt
	// the comparison itself.
	FingerprintOffset int
	// Reverse requests a post-reconstruction byte reversal, for families
	// that also reverse byte order during transmission (spec §4.4.2 step 3).
	Reverse bool
}

// Locator finds the start offset (within ring, 0<=start<=len(ring)) of the
// dive ending at `end` (exclusive, wrapping is the caller's concern via
// plain subtraction/modulo as each family's pointer scheme dictates).
// remaining is the byte budget left in the ring. terminal=true means a
// sentinel (all-ones length, null length, or marker byte) indicates the
// dive at this position is incomplete or overwritten; Walk stops
// successfully without invoking deliver for this attempt, per spec §4.4.2
// step 6.
type Locator func(ring []byte, end int, remaining int) (start int, terminal bool)

// Deliver receives one reconstructed dive blob and its fingerprint slice
// (nil if the layout has no fingerprint offset or the blob was too short
// to contain one) and reports whether iteration should continue.
type Deliver func(blob []byte, fingerprint []byte) (cont bool)

// Walk implements spec §4.4.2 steps 1-6 generically:
//  1. ring is the already-transferred bytes of [profile_begin, profile_end).
//  2. eop is the offset of one-past-the-end of the newest dive (spec
//     glossary: "eop").
//  3. For each dive, locate finds its start; Walk reconstructs the linear
//     blob, performing the two-memcopy wrap reassembly itself when the
//     dive straddles the ring boundary, then reverses it if layout.Reverse.
//  4. If the blob's fingerprint bytes equal `fingerprint`, iteration stops
//     immediately (all remaining dives are older and already known).
//  5. deliver is called with the blob and its fingerprint; its "stop"
//     return is honoured.
//  6. The budget (initialised to len(ring)) is decremented by each
//     delivered dive's size; Walk stops at zero or at a locator-reported
//     terminal sentinel.
func Walk(ring []byte, eop int, fingerprint []byte, layout Layout, locate Locator, deliver Deliver) error {
	size := len(ring)
	if size == 0 || locate == nil || deliver == nil {
		return nil
	}

	remaining := size
	// end stays in (0, size]: eop == size means the newest dive ends at the
	// ring's last byte, not at offset 0.
	end := normalize(eop-1, size) + 1
	visited := make(map[int]bool, 8)

	for remaining > 0 {
		if visited[end] {
			// Defensive: a corrupt pointer chain looping back on itself
			// must not hang iteration forever.
			break
		}
		visited[end] = true

		start, terminal := locate(ring, end, remaining)
		if terminal {
			break
		}
		start = normalize(start, size)

		blob := reconstruct(ring, start, end)
		if layout.Reverse {
			reverseInPlace(blob)
		}

		var fp []byte
		if layout.FingerprintOffset >= 0 && layout.FingerprintOffset+len(fingerprint) <= len(blob) {
			fp = blob[layout.FingerprintOffset : layout.FingerprintOffset+len(fingerprint)]
		}
		if len(fingerprint) > 0 && fp != nil && bytes.Equal(fp, fingerprint) {
			break
		}

		if !deliver(blob, fp) {
			break
		}

		remaining -= len(blob)
		end = start
	}
	return nil
}

func normalize(off, size int) int {
	off %= size
	if off < 0 {
		off += size
	}
	return off
}

// reconstruct copies ring[start:end] into a fresh linear buffer, performing
// the two-memcopy reassembly (tail then head) when start > end, i.e. the
// dive wraps the ring boundary.
func reconstruct(ring []byte, start, end int) []byte {
	size := len(ring)
	if start <= end {
		out := make([]byte, end-start)
		copy(out, ring[start:end])
		return out
	}
	out := make([]byte, size-start+end)
	n := copy(out, ring[start:size])
	copy(out[n:], ring[:end])
	return out
}

func reverseInPlace(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

// LogbookLocator builds a Locator for families with a fixed-size logbook
// ring of N slots, each naming its dive's length (spec §4.4.2's first
// start-locating strategy). entryAt returns the length recorded for the
// logbook slot that matches `end`, and ok=false for the sentinel cases
// (all-ones/null length) that mean the dive is incomplete or overwritten.
func LogbookLocator(entryAt func(end int) (length int, ok bool)) Locator {
	return func(ring []byte, end int, remaining int) (int, bool) {
		length, ok := entryAt(end)
		if !ok || length <= 0 || length > remaining {
			return 0, true
		}
		return end - length, false
	}
}

// StartMarkerLocator builds a Locator for families that scan backwards
// through the profile ring for a start marker byte (spec §4.4.2's second
// strategy). isMarker reports whether ring[pos] begins a new dive.
func StartMarkerLocator(isMarker func(ring []byte, pos int) bool) Locator {
	return func(ring []byte, end int, remaining int) (int, bool) {
		size := len(ring)
		pos := normalize(end-1, size)
		for steps := 0; steps < remaining; steps++ {
			if isMarker(ring, pos) {
				return pos, false
			}
			pos = normalize(pos-1, size)
		}
		return 0, true
	}
}

// EmbeddedPointerLocator builds a Locator for families whose dive data
// carries a pointer to its own start (spec §4.4.2's third strategy).
// prevOf receives the not-yet-reversed ring and the dive's end offset, reads
// whatever tail of the dive it needs (typically the fixed-size dive header)
// and returns the start offset of the dive ending at `end`; ok=false is
// reported as a terminal sentinel.
func EmbeddedPointerLocator(prevOf func(ring []byte, end int) (start int, ok bool)) Locator {
	return func(ring []byte, end int, remaining int) (int, bool) {
		start, ok := prevOf(ring, end)
		if !ok {
			return 0, true
		}
		return start, false
	}
}
