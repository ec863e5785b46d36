package boot

import (
	"encoding/binary"

	"secureiap/cipher"
	"secureiap/image"
	"secureiap/memory"
	"secureiap/status"
)

// runApp re-verifies the image already in slot (the primary application
// slot) and jumps to it. The primary image is never encrypted: whatever
// protected it on the wire, migrate always rewraps it as a plaintext
// header+payload+CRC32 image before it ever lands in primary.
func (b *Bootloader) runApp(slot *memory.Slot) error {
	h, payloadOff, _, err := verifyImage(slot, false)
	if err != nil {
		b.log.Warn("boot: primary re-verify failed", "err", err)
		return err
	}

	entry := slot.Addr + payloadOff + h.DataPadding
	if err := sanityCheckEntry(slot, payloadOff, h); err != nil {
		b.log.Warn("boot: entry point sanity check failed", "err", err)
		return err
	}

	b.log.Info("boot: running application", "index", h.ImgIndex, "entry", entry)
	b.s.Jump(entry)
	return nil
}

// sanityCheckEntry rejects an obviously-erased or out-of-range reset
// vector before jumping to it: a freshly-erased flash region reads back
// as 0xFF, so an all-ones initial stack pointer or reset handler address
// means there is no real application here no matter what the header and
// trailer claimed.
func sanityCheckEntry(slot *memory.Slot, payloadOff uint32, h image.Header) error {
	var vt [8]byte
	if err := memory.Read(slot, payloadOff+h.DataPadding, vt[:]); err != nil {
		return err
	}
	sp := binary.LittleEndian.Uint32(vt[0:4])
	reset := binary.LittleEndian.Uint32(vt[4:8])
	if sp == 0xFFFFFFFF || reset == 0xFFFFFFFF {
		return status.ErrInvalidImageApp
	}
	if reset < slot.Addr || reset >= slot.Addr+slot.Size {
		return status.ErrInvalidImageApp
	}
	return nil
}

// updateApp re-verifies the selected secondary image, migrates it into
// primary, and resets. Per the boot state machine, any failure here is
// not propagated: the bootloader falls back to running whatever is
// already in primary rather than bricking on a bad secondary image.
func (b *Bootloader) updateApp(slot *memory.Slot) error {
	if err := b.doUpdateApp(slot); err != nil {
		b.log.Warn("boot: update migration failed, falling back to run", "err", err)
		primarySlot, perr := memory.GetSlotByCType(b.s.Primary, memory.CTypeApp)
		if perr != nil {
			return perr
		}
		return b.runApp(primarySlot)
	}
	return nil
}

func (b *Bootloader) doUpdateApp(slot *memory.Slot) error {
	h, payloadOff, iv, err := verifyImage(slot, b.s.SecondaryEncrypted)
	if err != nil {
		return err
	}

	var eng *cipher.Engine
	if b.s.SecondaryEncrypted {
		key := b.s.CipherKey
		if key == nil {
			if b.s.Mailbox == nil {
				return status.ErrMailboxInvalid
			}
			mboxKey, merr := b.s.Mailbox.Get()
			b.s.Mailbox.Clear()
			if merr != nil {
				return merr
			}
			key = mboxKey
		}
		eng, err = cipher.Init(key)
		if err != nil {
			return err
		}
	}

	primarySlot, err := memory.GetSlotByCType(b.s.Primary, memory.CTypeApp)
	if err != nil {
		return err
	}
	if err := migrate(slot, payloadOff, h, iv, primarySlot, eng); err != nil {
		return err
	}

	b.log.Info("boot: migrated update into primary", "index", h.ImgIndex)
	b.s.Reset()
	return nil
}

// fallback reverts primary to the older of the two secondary images: the
// one whose ImgIndex does not match primary's current image is the
// surviving backup, and the slot sharing primary's index is the now-stale
// copy of the image being reverted away from.
func (b *Bootloader) fallback() error {
	primarySlot, err := memory.GetSlotByCType(b.s.Primary, memory.CTypeApp)
	if err != nil {
		return err
	}
	primaryHeader, _, _, err := verifyImage(primarySlot, false)
	if err != nil {
		return err
	}

	cands := b.secondaryCandidates()
	if len(cands) != 2 {
		return status.ErrNoCandidate
	}

	var backup *memory.Slot
	var stale *memory.Slot
	var backupHeader image.Header
	var backupOff uint32
	var backupIV []byte
	for _, c := range cands {
		h, off, iv, verr := verifyImage(c, b.s.SecondaryEncrypted)
		if verr != nil {
			continue
		}
		if h.ImgIndex == primaryHeader.ImgIndex {
			stale = c
		} else if h.ImgIndex < primaryHeader.ImgIndex {
			backup = c
			backupHeader = h
			backupOff = off
			backupIV = iv
		}
	}
	if backup == nil || stale == nil {
		return status.ErrNoCandidate
	}

	var eng *cipher.Engine
	if b.s.SecondaryEncrypted {
		key := b.s.CipherKey
		if key == nil && b.s.Mailbox != nil {
			mboxKey, merr := b.s.Mailbox.Get()
			b.s.Mailbox.Clear()
			if merr == nil {
				key = mboxKey
			}
		}
		if key == nil {
			return status.ErrMailboxInvalid
		}
		eng, err = cipher.Init(key)
		if err != nil {
			return err
		}
	}

	if err := memory.Erase(stale, 0, stale.Size); err != nil {
		return err
	}
	if err := migrate(backup, backupOff, backupHeader, backupIV, primarySlot, eng); err != nil {
		return err
	}

	b.log.Info("boot: reverted to backup image", "index", backupHeader.ImgIndex)
	b.s.Reset()
	return nil
}
