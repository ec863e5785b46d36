// Package mailbox implements the fixed 128-byte cross-reset handoff record
// used to carry a preshared key from the updater to the bootloader when the
// secondary image is encrypted and slot-pair fallback is disabled (so the
// bootloader has no other way to learn the key it needs for migration).
//
// The record lives in a dedicated RAM region that a linker script keeps
// un-zeroed across reset (".boot_mailbox" in the original firmware). Here
// that region is abstracted as a plain byte slice so host tests can exercise
// it without linker support; a real board wires Region to that RAM range.
package mailbox

import (
	"encoding/binary"

	"secureiap/config"
	"secureiap/status"
)

// Size is the fixed on-wire size of the mailbox record.
const Size = 128

const maxPSKSize = 32

const (
	offVersion   = 0
	offSignature = 4
	offPSKSize   = 8
	offPSK       = 12
	// offReserved = 44, 84 bytes through Size
)

// Mailbox is a Box wrapping a fixed 128-byte region, read/written verbatim.
type Mailbox struct {
	Region []byte // must be exactly Size bytes
}

// New wraps region, which MUST be exactly Size bytes (e.g. a slice over a
// linker-placed RAM array, or a plain make([]byte, Size) in host tests).
func New(region []byte) (*Mailbox, error) {
	if len(region) != Size {
		return nil, status.ErrInvalidLength
	}
	return &Mailbox{Region: region}, nil
}

// Set writes the PSK into the mailbox, stamping version and signature.
// psk must be at most maxPSKSize (32) bytes.
func (m *Mailbox) Set(psk []byte) error {
	if len(psk) > maxPSKSize {
		return status.ErrInvalidParameters
	}
	for i := range m.Region {
		m.Region[i] = 0
	}
	binary.LittleEndian.PutUint32(m.Region[offVersion:], uint32(config.MailboxVersion()))
	binary.LittleEndian.PutUint32(m.Region[offSignature:], config.MailboxSignature())
	binary.LittleEndian.PutUint32(m.Region[offPSKSize:], uint32(len(psk)))
	copy(m.Region[offPSK:offPSK+maxPSKSize], psk)
	return nil
}

// Check reports whether the region currently holds a validly-stamped
// mailbox (version and signature both match).
func (m *Mailbox) Check() bool {
	v := binary.LittleEndian.Uint32(m.Region[offVersion:])
	s := binary.LittleEndian.Uint32(m.Region[offSignature:])
	return v == uint32(config.MailboxVersion()) && s == config.MailboxSignature()
}

// Get returns the PSK currently stored. It does not clear the mailbox;
// callers that intend to consume it once MUST call Clear afterward
// regardless of whether Get/Check succeeded, so a stale or invalid
// mailbox can never be read twice.
func (m *Mailbox) Get() ([]byte, error) {
	if !m.Check() {
		return nil, status.ErrMailboxInvalid
	}
	n := binary.LittleEndian.Uint32(m.Region[offPSKSize:])
	if n > maxPSKSize {
		return nil, status.ErrMailboxInvalid
	}
	psk := make([]byte, n)
	copy(psk, m.Region[offPSK:offPSK+n])
	return psk, nil
}

// Clear zeroes the entire region. Called by the bootloader after reading
// the mailbox, whether or not the read succeeded, denying any later reader.
func (m *Mailbox) Clear() {
	for i := range m.Region {
		m.Region[i] = 0
	}
}
