// Package bcd centralizes the date/time reconstruction rules of spec
// §4.5.2: packed BCD decode, 12-hour AM/PM mapping, the last-digit-year
// decade guess, and the Smart/Galileo transmission-latency approximation.
// Shared because four of the implemented parser families need at least one
// of these rules.
package bcd

import "time"

// Decode converts one packed-BCD byte (high nibble = tens, low nibble =
// units) to its decimal value.
func Decode(b byte) int {
	return int(b>>4)*10 + int(b&0x0F)
}

// Hour12 maps a 12-hour-format hour (1-12) plus a PM flag to a 24-hour
// hour, per spec §4.5.2: "map hour modulo 12 and set AM/PM from a flag bit".
func Hour12(hour int, pm bool) int {
	h := hour % 12
	if pm {
		h += 12
	}
	return h
}

// GuessDecade reconstructs a full year from a device that stores only the
// last year digit, per spec §4.5.2's rule: choose the most recent decade
// whose year ≤ the system clock's year at decode time; if the single digit
// exceeds the system year's last digit, go back one decade.
func GuessDecade(lastDigit int, now time.Time) int {
	nowYear := now.Year()
	decade := (nowYear / 10) * 10
	year := decade + lastDigit
	if lastDigit > nowYear%10 {
		year -= 10
	}
	return year
}

// SmartWallTime computes the Smart/Galileo wall-clock approximation of
// spec §4.5.2: systime - (devtime - timestamp)/2, which approximates the
// one-way transmission latency by halving the round-trip offset between
// the device's uptime clock and the host's calibration sample.
//
// sysTicks and devTicks are the calibration pair captured by SetClock
// (host Unix time, device uptime ticks, both in the same tick unit as
// timestamp). timestamp is the in-profile device-uptime tick for this
// particular sample/dive.
func SmartWallTime(sysTicks, devTicks, timestamp int64) time.Time {
	offset := (devTicks - timestamp) / 2
	return time.Unix(sysTicks-offset, 0).UTC()
}
