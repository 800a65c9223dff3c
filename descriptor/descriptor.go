// Package descriptor implements the static model catalog of spec §4.6: a
// restartable lazy iterator over a process-static registry, with
// case-insensitive lookup by name or by (family, model).
package descriptor

import (
	"sort"
	"strings"
	"sync"

	"divecomputer-go/dcerr"
	"divecomputer-go/family"
)

// Descriptor is the immutable record of spec §3: {family, vendor_name,
// product_name, model_id, default_transport}.
type Descriptor struct {
	Family           family.Tag
	VendorName       string
	ProductName      string
	ModelID          int
	DefaultTransport family.Transport
}

// Name returns "<vendor> <product>", the canonical lookup string.
func (d Descriptor) Name() string {
	return d.VendorName + " " + d.ProductName
}

var (
	once     sync.Once
	registry []Descriptor
	table    []Descriptor // registry, sorted by Name for deterministic iteration
)

// Register adds a descriptor to the static table. Intended to be called
// from family package init() functions, mirroring the teacher's
// RegisterBuilder pattern (services/hal/registry.go) generalized from
// "one builder per device type" to "one or more descriptors per family".
func Register(d Descriptor) {
	registry = append(registry, d)
	table = nil // invalidate the sorted snapshot
}

func ensureBuilt() {
	once.Do(func() {})
	if table == nil {
		table = append([]Descriptor(nil), registry...)
		sort.SliceStable(table, func(i, j int) bool {
			return table[i].Name() < table[j].Name()
		})
	}
}

// Iterator is a restartable, lazy cursor over the registry. It survives
// being copied by value; a yielded Descriptor has no lifetime tied to the
// Iterator (descriptors are plain values, so "retain" is simply keeping the
// copy, per spec §3's "Lifetime" note).
type Iterator struct {
	pos int
}

// NewIterator returns a fresh iterator positioned before the first entry.
func NewIterator() *Iterator {
	ensureBuilt()
	return &Iterator{}
}

// Next returns the next Descriptor, or dcerr.Done when exhausted.
func (it *Iterator) Next() (Descriptor, error) {
	ensureBuilt()
	if it.pos >= len(table) {
		return Descriptor{}, dcerr.Done
	}
	d := table[it.pos]
	it.pos++
	return d, nil
}

// Reset restarts the iterator from the beginning.
func (it *Iterator) Reset() { it.pos = 0 }

// Lookup finds a descriptor by "<vendor> <product>" or by "<product>"
// alone, case-insensitively. A lookup that exhausts the iterator yields
// dcerr.NoDevice.
func Lookup(name string) (Descriptor, error) {
	ensureBuilt()
	lower := strings.ToLower(strings.TrimSpace(name))
	for _, d := range table {
		if strings.ToLower(d.Name()) == lower || strings.ToLower(d.ProductName) == lower {
			return d, nil
		}
	}
	return Descriptor{}, dcerr.NoDevice
}

// LookupModel finds a descriptor by (family, model): an exact model id
// match wins; otherwise the first descriptor for the family is returned.
func LookupModel(f family.Tag, modelID int) (Descriptor, error) {
	ensureBuilt()
	var firstFamily *Descriptor
	for i := range table {
		d := &table[i]
		if d.Family != f {
			continue
		}
		if firstFamily == nil {
			firstFamily = d
		}
		if d.ModelID == modelID {
			return *d, nil
		}
	}
	if firstFamily != nil {
		return *firstFamily, nil
	}
	return Descriptor{}, dcerr.NoDevice
}

// All returns every registered descriptor (for listing/--help use).
func All() []Descriptor {
	ensureBuilt()
	out := make([]Descriptor, len(table))
	copy(out, table)
	return out
}
