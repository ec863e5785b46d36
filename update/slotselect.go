package update

import (
	"secureiap/image"
	"secureiap/memory"
	"secureiap/status"
)

// selectOutputSlot implements the dual-bank / single-bank(-with-fallback)
// output slot selection rule from the orchestrator design.
func selectOutputSlot(s *Settings) (*memory.Slot, error) {
	switch s.BankMode {
	case DualBank:
		if s.Primary == nil || len(s.Primary.Slots) < 2 {
			return nil, status.ErrInvalidParameters
		}
		return &s.Primary.Slots[1], nil

	case SingleBank:
		if s.Secondary == nil || len(s.Secondary.Slots) < 1 {
			return nil, status.ErrInvalidParameters
		}
		if !s.FallbackEnabled {
			return &s.Secondary.Slots[0], nil
		}
		if len(s.Secondary.Slots) < 2 {
			return nil, status.ErrInvalidParameters
		}
		return selectFallbackOutputSlot(s)

	default:
		return nil, status.ErrInvalidParameters
	}
}

// selectFallbackOutputSlot picks whichever of the two secondary slots does
// NOT currently hold the backup image of the running application: either
// the slot whose header cannot be parsed, or the slot whose imgIndex
// differs from the primary image's imgIndex.
func selectFallbackOutputSlot(s *Settings) (*memory.Slot, error) {
	primarySlot, err := memory.GetSlotByCType(s.Primary, memory.CTypeApp)
	if err != nil {
		return nil, err
	}
	var headerBuf [image.HeaderSize]byte
	if err := memory.Read(primarySlot, 0, headerBuf[:]); err != nil {
		return nil, err
	}
	primaryHeader, err := image.Decode(headerBuf[:])
	if err != nil {
		return nil, err
	}

	cand := &s.Secondary.Slots[0]
	if err := memory.Read(cand, 0, headerBuf[:]); err != nil {
		return nil, err
	}
	candHeader, err := image.Decode(headerBuf[:])
	if err != nil || candHeader.ImgIndex != primaryHeader.ImgIndex {
		return cand, nil
	}
	return &s.Secondary.Slots[1], nil
}

// nextImageIndex reads the current application header and returns its
// imgIndex + 1, the index assigned to the incoming update.
func nextImageIndex(s *Settings) (uint32, error) {
	primarySlot, err := memory.GetSlotByCType(s.Primary, memory.CTypeApp)
	if err != nil {
		return 0, err
	}
	var headerBuf [image.HeaderSize]byte
	if err := memory.Read(primarySlot, 0, headerBuf[:]); err != nil {
		return 0, err
	}
	h, err := image.Decode(headerBuf[:])
	if err != nil {
		return 0, err
	}
	return h.ImgIndex + 1, nil
}
