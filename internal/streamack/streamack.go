// Package streamack implements the per-packet ack/nak helper shared by the
// streaming-per-dive families of spec §4.4.3 (Suunto Vyper, Atomics
// Cobalt): ack every good packet, NAK and re-request every corrupt packet
// (protocol class), report any other error class immediately, and tolerate
// the final packet being missing or short.
package streamack

import "divecomputer-go/dcerr"

// Packet is one unit of a per-dive streaming response.
type Packet struct {
	Data  []byte
	Final bool // true if this was the terminating (possibly short/empty) packet
}

// Exchange reads one packet, validating it with verify. On a dcerr.Protocol
// classification it calls nak and retries (up to maxRetries); on success it
// calls ack and returns the packet. Any other error class (io, timeout,
// cancelled) is returned immediately without ack/nak, per spec §7's policy
// that protocol is the only class retried.
func Exchange(read func() ([]byte, error), verify func([]byte) error, ack, nak func() error, maxRetries int) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		data, err := read()
		if err != nil {
			return nil, err
		}
		if verr := verify(data); verr != nil {
			lastErr = verr
			if dcerr.Of(verr) != dcerr.Protocol {
				return nil, verr
			}
			if nak != nil {
				if nerr := nak(); nerr != nil {
					return nil, nerr
				}
			}
			continue
		}
		if ack != nil {
			if aerr := ack(); aerr != nil {
				return nil, aerr
			}
		}
		return data, nil
	}
	// Retries exhausted: fall through as io, per spec §7 ("or fall through
	// as io after exhaustion").
	return nil, dcerr.Wrap("streamack.Exchange", dcerr.IO, lastErr)
}

// ReceiveDive drains packets via next until either the stream goes quiet
// (a timeout after at least one packet, the normal way a dive's data ends,
// per spec §4.4.2's edge case and §7's timeout policy) or a terminating
// packet arrives. A terminating packet always discards whatever has been
// accumulated for the current dive, rather than closing it out with the
// data collected so far: per spec §8 scenario 2, a length-0 packet is the
// device aborting the current dive (or, on the very first packet of a
// request, signalling there is no such dive at all), never a "here is the
// rest, now stop" marker. A timeout on the very first packet is returned as
// an error.
func ReceiveDive(next func() (Packet, error), isTerminal func(Packet) bool) ([]byte, error) {
	var blob []byte
	receivedAny := false
	for {
		pkt, err := next()
		if err != nil {
			if dcerr.Of(err) == dcerr.Timeout && receivedAny {
				return blob, nil
			}
			return nil, err
		}
		if pkt.Final || isTerminal(pkt) {
			return nil, nil
		}
		receivedAny = true
		blob = append(blob, pkt.Data...)
	}
}
