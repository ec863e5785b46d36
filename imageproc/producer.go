// Package imageproc implements the output side of image processing: taking
// plaintext firmware bytes arriving from the update session and rebuilding
// a self-contained image (header + optional IV + payload + CRC32 trailer)
// in the output slot. The same producer serves both architectural modes:
// dual-bank targets the inactive bank directly with no re-encryption;
// single-bank targets secondary storage and may re-encrypt the payload
// with its own key, for the bootloader to decrypt during migration.
package imageproc

import (
	"secureiap/cipher"
	"secureiap/image"
	"secureiap/memory"
	"secureiap/status"
	"secureiap/verify"
)

// Producer rebuilds a self-contained image and streams it to a slot. If
// eng is non-nil the payload is encrypted in 16-byte blocks as it
// is written, with the final short block zero-padded; an IV is then also
// written immediately after the header.
type Producer struct {
	w       *memory.Writer
	vc      *verify.Context
	eng     *cipher.Engine
	iv      []byte
	header  image.Header
	pending []byte // holds up to BlockSize-1 unencrypted bytes awaiting a full cipher block
	started bool
}

// New creates a producer targeting slot. If eng is non-nil, the output
// payload is encrypted and iv (16 bytes) is written immediately after the
// header. The output trailer is always a CRC32 integrity check, matching
// the wire format's rule that a rebuilt (re-indexed) image is always
// integrity-checked regardless of what scheme protected the input.
func New(slot *memory.Slot, eng *cipher.Engine, iv []byte) (*Producer, error) {
	w, err := memory.NewWriter(slot)
	if err != nil {
		return nil, err
	}
	vc, err := verify.Init(verify.Settings{Mode: verify.ModeIntegrity, Integrity: verify.IntegrityCRC32})
	if err != nil {
		return nil, err
	}
	return &Producer{w: w, vc: vc, eng: eng, iv: iv}, nil
}

// Start writes the (already reindexed, already size-adjusted) header and,
// if encrypting, the IV. It resets the writer's staging state so a prior
// session's bytes can never leak into this one.
func (p *Producer) Start(h image.Header) error {
	p.header = h
	buf := image.Encode(&h)

	if err := p.vc.Process(h.CrcBytes()); err != nil {
		return err
	}
	if err := p.w.Write(buf[:], memory.ResetAndContinue); err != nil {
		return status.ErrMemoryDriverWriteFailed
	}

	if p.eng != nil {
		if len(p.iv) != cipher.BlockSize {
			return status.ErrInvalidParameters
		}
		if err := p.eng.SetIV(p.iv); err != nil {
			return err
		}
		if err := p.vc.Process(p.iv); err != nil {
			return err
		}
		if err := p.w.Write(p.iv, memory.Continue); err != nil {
			return status.ErrMemoryDriverWriteFailed
		}
	}
	p.started = true
	return nil
}

// Write streams plaintext. When encrypting, bytes are buffered until a full
// cipher block accumulates; Finish flushes and zero-pads the final partial
// block.
func (p *Producer) Write(plaintext []byte) error {
	if !p.started {
		return status.ErrInvalidState
	}
	if p.eng == nil {
		if err := p.vc.Process(plaintext); err != nil {
			return err
		}
		return p.w.Write(plaintext, memory.Continue)
	}

	p.pending = append(p.pending, plaintext...)
	for len(p.pending) >= cipher.BlockSize {
		block := p.pending[:cipher.BlockSize]
		if err := p.eng.EncryptData(block); err != nil {
			return err
		}
		if err := p.vc.Process(block); err != nil {
			return err
		}
		if err := p.w.Write(block, memory.Continue); err != nil {
			return status.ErrMemoryDriverWriteFailed
		}
		p.pending = p.pending[cipher.BlockSize:]
	}
	return nil
}

// Finish flushes the trailing partial block (padding+encrypting it if
// needed), then writes the CRC32 trailer.
func (p *Producer) Finish() error {
	if p.eng != nil && len(p.pending) > 0 {
		block := make([]byte, cipher.BlockSize)
		copy(block, p.pending)
		if err := p.eng.EncryptData(block); err != nil {
			return err
		}
		if err := p.vc.Process(block); err != nil {
			return err
		}
		if err := p.w.Write(block, memory.Continue); err != nil {
			return status.ErrMemoryDriverWriteFailed
		}
		p.pending = nil
	}

	trailer, err := p.vc.GenerateCheckData()
	if err != nil {
		return err
	}
	if err := p.w.Write(trailer, memory.Flush); err != nil {
		return status.ErrMemoryDriverWriteFailed
	}
	return nil
}
