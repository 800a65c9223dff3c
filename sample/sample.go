// Package sample defines the canonical data model shared by every parser:
// the tagged Sample union, lifecycle Events, gas mixes and tanks (spec §3).
package sample

// Kind tags which field of Sample is populated.
type Kind int

const (
	Time Kind = iota
	Depth
	Temperature
	Pressure
	GasMixIndex
	EventKind
	RBT
	Heartbeat
	Bearing
	Setpoint
	PPO2
	CNS
	Deco
	Vendor
)

// EventType enumerates lifecycle markers embedded in the profile stream
// itself (not to be confused with the device runtime's Event in the
// device package).
type EventType int

const (
	EventNone EventType = iota
	EventDecoStop
	EventRBT
	EventAscent
	EventCeiling
	EventWorkload
	EventTransmitterLowBattery
	EventGasChange
	EventBookmark
	EventSurface
	EventSafetyStop
	EventGasChange2
	EventViolation
	EventBookmark2
)

type InnerEvent struct {
	Type    EventType
	TimeMS  uint32
	Flags   uint32
	Value   uint32
}

type PressureValue struct {
	Tank int
	Bar  float64
}

type PPO2Value struct {
	Sensor int
	Bar    float64
}

// DecoKind distinguishes NDL/deco/safety-stop style deco samples.
type DecoKind int

const (
	DecoNone DecoKind = iota
	DecoCalc
	DecoSafetyStop
	DecoDeepStop
)

type DecoValue struct {
	Kind    DecoKind
	DepthM  float64
	TimeS   uint32
	TTSS    uint32
}

type VendorValue struct {
	Type  int
	Bytes []byte
}

// Sample carries exactly one populated field, selected by Kind.
type Sample struct {
	Kind Kind

	TimeMS      uint32
	DepthM      float64
	Temperature float64
	Pressure    PressureValue
	GasMix      int
	Event       InnerEvent
	RBTMin      int
	HeartbeatBPM int
	BearingDeg  int
	SetpointBar float64
	PPO2        PPO2Value
	CNSFraction float64
	Deco        DecoValue
	Vendor      VendorValue
}

// Sink receives decoded samples. A Sink that returns an error stops the
// stream; parsers report this by propagating the error unchanged.
type Sink func(s Sample) error

// GasUsage tags a gas mix's role within a dive.
type GasUsage int

const (
	GasNone GasUsage = iota
	GasOC
	GasDiluent
	GasOxygen
)

// GasMix is spec §3's {oxygen, helium, nitrogen, usage_tag}. Invariant:
// Oxygen+Helium+Nitrogen must sum to 1.0. GasMix does not enforce this;
// Sum is provided for checking it.
type GasMix struct {
	Oxygen   float64
	Helium   float64
	Nitrogen float64
	Usage    GasUsage
}

// Sum returns Oxygen+Helium+Nitrogen for invariant checking.
func (g GasMix) Sum() float64 { return g.Oxygen + g.Helium + g.Nitrogen }

// TankUsage tags a tank's role.
type TankUsage int

const (
	TankNone TankUsage = iota
	TankOC
	TankDiluent
	TankOxygen
)

// VolumeSpec is libdivecomputer's tank-size convention: liters at the
// working pressure, rather than a single scalar (spec §3 names the field
// but not its shape; resolved per SPEC_FULL.md).
type VolumeSpec struct {
	Liters              float64
	WorkingPressureBar  float64
}

// Tank is spec §3's {gas_index_or_unknown, usage_tag, volume_spec,
// begin_pressure, end_pressure}. GasMixIndex of -1 means "unknown".
type Tank struct {
	GasMixIndex  int
	Usage        TankUsage
	Volume       VolumeSpec
	BeginBar     float64
	EndBar       float64
}
