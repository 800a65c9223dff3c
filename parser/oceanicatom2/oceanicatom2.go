// Package oceanicatom2 implements the Oceanic Atom2 family parser: a
// fixed-stride sample table (spec §4.5.3's "fixed-stride table" style),
// with byte-prefix tags 0xAA/0xBB switching slots between tank-change,
// surface-interval, and regular readings.
package oceanicatom2

import (
	"divecomputer-go/dcerr"
	"divecomputer-go/parser"
	"divecomputer-go/sample"
)

const (
	slotSize   = 16
	headerSize = 32

	tagTankChange     = 0xAA
	tagSurfaceInterval = 0xBB
)

// signConvention reproduces spec §9's explicit instruction not to
// generalise the Oceanic sub-models' sign flip into one formula: each
// model id gets its own entry, even though most share one of two values.
var signConvention = map[int]bool{
	0x01: false, // Atom 2.0: sign = (b0 & 0x80) >> 7
	0x02: false, // Veo 2.0: same as Atom 2.0
	0x03: true,  // Aeris Epic: sign = (~b0 & 0x80) >> 7, inverted
}

// New wraps data (one raw dive blob extracted by device/oceanicatom2) as a
// parser.Parser for the given model id.
func New(modelID int, data []byte) *parser.Base {
	return parser.New(modelID, data, parser.Ops{
		Field:          field,
		SamplesForeach: samplesForeach,
	})
}

func header(p *parser.Base) ([]byte, error) {
	data := p.Data()
	if len(data) < headerSize {
		return nil, dcerr.Wrapf("oceanicatom2.header", dcerr.DataFormat, "blob too short: %d bytes", len(data))
	}
	return data[:headerSize], nil
}

func field(p *parser.Base, ft parser.FieldType, index int) (any, error) {
	h, err := header(p)
	if err != nil {
		return nil, err
	}
	switch ft {
	case parser.FieldDiveTimeS:
		return int(uint16(h[0])<<8 | uint16(h[1])), nil
	case parser.FieldMaxDepthM:
		return float64(uint16(h[2])<<8|uint16(h[3])) / 4.0 * 0.3048, nil // quarter-feet -> meters
	case parser.FieldGasMixCount:
		return 0, nil
	default:
		return nil, dcerr.Unsupported
	}
}

func isEmptySlot(slot []byte) bool {
	allZero, allOnes := true, true
	for _, b := range slot {
		if b != 0x00 {
			allZero = false
		}
		if b != 0xFF {
			allOnes = false
		}
	}
	return allZero || allOnes
}

// decodeSign applies the per-model sign convention resolved by spec §9's
// Open Question: the flip is reproduced per model id, never generalised.
func decodeSign(modelID int, raw int8) int {
	if signConvention[modelID] {
		return -int(raw)
	}
	return int(raw)
}

func samplesForeach(p *parser.Base, sink sample.Sink) error {
	h, err := header(p)
	if err != nil {
		return err
	}
	interval := int(h[4])
	if interval <= 0 {
		interval = 4
	}

	data := p.Data()
	stream := data[headerSize:]
	if len(stream)%slotSize != 0 {
		return dcerr.Wrapf("oceanicatom2.samplesForeach", dcerr.DataFormat, "profile length %d is not a multiple of the slot size", len(stream))
	}

	var timeS uint32
	var tempDeci int

	for off := 0; off+slotSize <= len(stream); off += slotSize {
		slot := stream[off : off+slotSize]
		if isEmptySlot(slot) {
			continue
		}

		switch slot[0] {
		case tagTankChange:
			// spec §8 scenario 5: tank = (b1 & 0x03) - 1, pressure =
			// ((b4<<8|b5) & 0x0FFF) * 2 psi, no time advance.
			tank := int(slot[1]&0x03) - 1
			raw := (int(slot[4])<<8 | int(slot[5])) & 0x0FFF
			psi := float64(raw * 2)
			bar := psi * 0.0689476
			if err := sink(sample.Sample{Kind: sample.Pressure, Pressure: sample.PressureValue{Tank: tank, Bar: bar}}); err != nil {
				return err
			}

		case tagSurfaceInterval:
			// Surface interval markers carry no sample of their own and do
			// not advance the profile time counter.

		default:
			depthRaw := uint16(slot[0])<<8 | uint16(slot[1])
			depthM := float64(depthRaw) / 4.0 * 0.3048
			tempDeci += decodeSign(p.ModelID(), int8(slot[2]))

			if err := sink(sample.Sample{Kind: sample.Time, TimeMS: timeS * 1000}); err != nil {
				return err
			}
			if err := sink(sample.Sample{Kind: sample.Depth, DepthM: depthM}); err != nil {
				return err
			}
			if err := sink(sample.Sample{Kind: sample.Temperature, Temperature: float64(tempDeci) / 10.0}); err != nil {
				return err
			}
			timeS += uint32(interval)
		}
	}
	return nil
}
