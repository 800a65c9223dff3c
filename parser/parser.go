// Package parser implements the polymorphic parser runtime of spec §4.5: a
// stateless view over one raw dive blob that decodes header fields, a
// datetime, and a sample stream, once the model id and optional clock
// calibration are supplied.
package parser

import (
	"time"

	"divecomputer-go/dcerr"
	"divecomputer-go/sample"
)

// FieldType enumerates the header fields spec §4.5 names. Index is used
// for the indexed fields (gasmix[i], tank[i]); it is ignored otherwise.
type FieldType int

const (
	FieldDiveTimeS FieldType = iota
	FieldMaxDepthM
	FieldAvgDepthM
	FieldGasMixCount
	FieldGasMixAt
	FieldTankCount
	FieldTankAt
	FieldTemperatureSurface
	FieldTemperatureMinimum
	FieldTemperatureMaximum
	FieldAtmosphericBar
	FieldDiveMode
	FieldDecoModel
	FieldSalinity
)

// DiveMode enumerates spec §4.5's divemode values.
type DiveMode int

const (
	ModeFreedive DiveMode = iota
	ModeGauge
	ModeOC
	ModeCC
	ModeSCR
)

// Ops is the capability table a family parser fills in, mirroring
// device.Ops. A nil field yields dcerr.Unsupported.
type Ops struct {
	Field          func(p *Base, ft FieldType, index int) (any, error)
	DateTime       func(p *Base) (time.Time, error)
	SamplesForeach func(p *Base, sink sample.Sink) error
}

// Parser is the capability set exposed to callers (spec §4.5).
type Parser interface {
	ModelID() int
	SetClock(devTicks, sysTicks int64)
	SetAtmospheric(bar float64)
	SetDensity(kgM3 float64)
	DateTime() (time.Time, error)
	Field(ft FieldType, index int) (any, error)
	SamplesForeach(sink sample.Sink) error
}

// Base is embedded by every family parser. It is stateless with respect to
// the raw blob (field accessors never mutate it, per spec §3 invariant)
// but caches derived fields on first interrogation.
type Base struct {
	modelID int
	data    []byte
	ops     Ops

	devTicks, sysTicks int64
	atmosphericBar     float64
	densityKgM3        float64

	cache      map[cacheKey]any
	cachedTime *time.Time
}

type cacheKey struct {
	ft    FieldType
	index int
}

// New constructs a Base over data for the given model id. data is borrowed
// (never copied, never mutated).
func New(modelID int, data []byte, ops Ops) *Base {
	return &Base{
		modelID:        modelID,
		data:           data,
		ops:            ops,
		atmosphericBar: 1.01325,
		densityKgM3:    1025.0,
		cache:          map[cacheKey]any{},
	}
}

func (b *Base) ModelID() int { return b.modelID }

// Data returns the borrowed raw dive blob. Callers must not mutate it.
func (b *Base) Data() []byte { return b.data }

func (b *Base) SetClock(devTicks, sysTicks int64) {
	b.devTicks, b.sysTicks = devTicks, sysTicks
	b.cachedTime = nil
}

func (b *Base) Clock() (devTicks, sysTicks int64) { return b.devTicks, b.sysTicks }

func (b *Base) SetAtmospheric(bar float64) { b.atmosphericBar = bar }
func (b *Base) Atmospheric() float64       { return b.atmosphericBar }

func (b *Base) SetDensity(kgM3 float64) { b.densityKgM3 = kgM3 }
func (b *Base) Density() float64        { return b.densityKgM3 }

func (b *Base) DateTime() (time.Time, error) {
	if b.cachedTime != nil {
		return *b.cachedTime, nil
	}
	if b.ops.DateTime == nil {
		return time.Time{}, dcerr.Unsupported
	}
	t, err := b.ops.DateTime(b)
	if err != nil {
		return time.Time{}, err
	}
	b.cachedTime = &t
	return t, nil
}

func (b *Base) Field(ft FieldType, index int) (any, error) {
	key := cacheKey{ft, index}
	if v, ok := b.cache[key]; ok {
		return v, nil
	}
	if b.ops.Field == nil {
		return nil, dcerr.Unsupported
	}
	v, err := b.ops.Field(b, ft, index)
	if err != nil {
		return nil, err
	}
	b.cache[key] = v
	return v, nil
}

func (b *Base) SamplesForeach(sink sample.Sink) error {
	if b.ops.SamplesForeach == nil {
		return dcerr.Unsupported
	}
	return b.ops.SamplesForeach(b, sink)
}
