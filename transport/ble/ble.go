// Package ble implements a BLE GATT transport backend for iostream.Stream
// atop github.com/go-ble/ble, the library named by srgg-blecli's reference
// device stream in the retrieval corpus. Most dive computers that speak BLE
// expose one write characteristic and one notify characteristic that
// together behave like a byte pipe; this package buffers notifications into
// a local queue so Read can honour iostream's three timeout modes even
// though the underlying transport is push-based.
package ble

import (
	"context"
	"sync"
	"time"

	bledrv "github.com/go-ble/ble"

	"divecomputer-go/dcerr"
	"divecomputer-go/iostream"
)

// Stream adapts one BLE client's write/notify characteristic pair to
// iostream.Stream.
type Stream struct {
	client  bledrv.Client
	writeCh *bledrv.Characteristic
	notifCh *bledrv.Characteristic

	mu      sync.Mutex
	rxQueue []byte
	timeout iostream.Timeout
}

// Open connects to addr and subscribes to notifyUUID, buffering incoming
// notifications for Read. writeUUID is used by Write.
func Open(ctx context.Context, addr string, writeUUID, notifyUUID bledrv.UUID) (*Stream, error) {
	client, err := bledrv.Dial(ctx, bledrv.NewAddr(addr))
	if err != nil {
		return nil, dcerr.Wrap("ble.Open", dcerr.NoAccess, err)
	}
	profile, err := client.DiscoverProfile(true)
	if err != nil {
		return nil, dcerr.Wrap("ble.Open", dcerr.IO, err)
	}
	s := &Stream{client: client}
	for _, svc := range profile.Services {
		for _, ch := range svc.Characteristics {
			if ch.UUID.Equal(writeUUID) {
				s.writeCh = ch
			}
			if ch.UUID.Equal(notifyUUID) {
				s.notifCh = ch
			}
		}
	}
	if s.writeCh == nil || s.notifCh == nil {
		return nil, dcerr.Wrapf("ble.Open", dcerr.NoDevice, "characteristic not found")
	}
	if err := client.Subscribe(s.notifCh, false, s.onNotify); err != nil {
		return nil, dcerr.Wrap("ble.Open", dcerr.IO, err)
	}
	return s, nil
}

func (s *Stream) onNotify(data []byte) {
	s.mu.Lock()
	s.rxQueue = append(s.rxQueue, data...)
	s.mu.Unlock()
}

func (s *Stream) Configure(cfg iostream.Config) error { return nil } // BLE has no baud/parity

func (s *Stream) SetTimeout(t iostream.Timeout) error {
	s.timeout = t
	return nil
}

func (s *Stream) Read(buf []byte) (int, error) {
	deadline := time.Now().Add(time.Duration(s.timeout))
	for {
		s.mu.Lock()
		n := copy(buf, s.rxQueue)
		s.rxQueue = s.rxQueue[n:]
		s.mu.Unlock()
		if n > 0 || s.timeout == iostream.NonBlocking {
			return n, nil
		}
		if s.timeout != iostream.Blocking && time.Now().After(deadline) {
			return 0, dcerr.Timeout
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (s *Stream) Write(buf []byte) (int, error) {
	if err := s.client.WriteCharacteristic(s.writeCh, buf, true); err != nil {
		return 0, dcerr.Wrap("ble.Write", dcerr.IO, err)
	}
	return len(buf), nil
}

func (s *Stream) Purge(dir iostream.Direction) error {
	if dir&iostream.PurgeInput != 0 {
		s.mu.Lock()
		s.rxQueue = nil
		s.mu.Unlock()
	}
	return nil
}

func (s *Stream) Drain() error { return nil } // BLE writes are already confirmed per-call

func (s *Stream) SetDTR(level bool) error { return dcerr.Unsupported }
func (s *Stream) SetRTS(level bool) error { return dcerr.Unsupported }

func (s *Stream) Sleep(d time.Duration) error {
	time.Sleep(d)
	return nil
}

func (s *Stream) Available() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rxQueue), nil
}

func (s *Stream) IOCtl(req iostream.IOCtl) ([]byte, error) {
	if req.BLECharacteristic == nil {
		return nil, dcerr.Unsupported
	}
	c := req.BLECharacteristic
	if c.Write {
		return nil, s.client.WriteCharacteristic(s.writeCh, c.Value, true)
	}
	return nil, dcerr.Unsupported
}

func (s *Stream) Close() error {
	return s.client.CancelConnection()
}
