// Package transport holds the per-family serial parameter table named by
// spec §6: baud, data bits, parity, and stop bits for every family whose
// default transport is a plain serial line. USB-HID and BLE families carry
// no line parameters here — they configure their transport through the
// device class itself.
package transport

import (
	"divecomputer-go/family"
	"divecomputer-go/iostream"
)

var serialProfiles = map[family.Tag]iostream.Config{
	family.SuuntoVyper:     {Baud: 2400, DataBits: 8, Parity: iostream.ParityOdd, StopBits: 1},
	family.SuuntoAladin:    {Baud: 19200, DataBits: 8, Parity: iostream.ParityNone, StopBits: 1},
	family.UwatecMemomouse: {Baud: 9600, DataBits: 8, Parity: iostream.ParityNone, StopBits: 1},
	family.UwatecSmart:     {Baud: 115200, DataBits: 8, Parity: iostream.ParityNone, StopBits: 1},
	family.OceanicAtom2:    {Baud: 38400, DataBits: 8, Parity: iostream.ParityNone, StopBits: 1},
}

// SerialProfile returns the serial line parameters for f, and ok=false for
// families with no entry (USB-HID/BLE transports, or an unknown tag) —
// callers fall back to their own default in that case.
func SerialProfile(f family.Tag) (iostream.Config, bool) {
	cfg, ok := serialProfiles[f]
	return cfg, ok
}
