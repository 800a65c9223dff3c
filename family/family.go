// Package family enumerates the dive-computer families dispatch is keyed
// on (spec §3 "Family tag"). All device and parser dispatch goes through
// Tag; there is no other identifying scheme.
package family

// Tag names a device family sharing one wire protocol and log layout.
type Tag string

const (
	SuuntoVyper      Tag = "suunto-vyper"
	SuuntoAladin     Tag = "suunto-aladin"
	UwatecMemomouse  Tag = "uwatec-memomouse"
	UwatecSmart      Tag = "uwatec-smart"
	OceanicAtom2     Tag = "oceanic-atom2"
	AtomicsCobalt    Tag = "atomics-cobalt"
)

// Transport enumerates the default transport a family's descriptor names
// (spec §6); callers may override it with --transport.
type Transport string

const (
	TransportSerial    Transport = "serial"
	TransportUSB       Transport = "usb"
	TransportUSBHID    Transport = "usbhid"
	TransportBluetooth Transport = "bluetooth"
	TransportBLE       Transport = "ble"
	TransportIrDA      Transport = "irda"
)
