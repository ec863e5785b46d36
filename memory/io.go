package memory

import "secureiap/status"

// Read copies length bytes starting at offset inside the slot into buf.
func Read(s *Slot, offset uint32, buf []byte) error {
	m := s.memParent
	switch s.Kind {
	case SlotDirect:
		if err := m.Driver.Read(s.Addr+offset, buf); err != nil {
			return status.ErrMemoryDriverReadFailed
		}
		return nil
	case SlotFile:
		return status.ErrNotImplemented
	default:
		return status.ErrUnknownSlotType
	}
}

// Erase erases length bytes starting at offset inside the slot. For DIRECT
// slots this must cover whole sectors.
func Erase(s *Slot, offset uint32, length uint32) error {
	m := s.memParent
	switch s.Kind {
	case SlotDirect:
		if err := m.Driver.Erase(s.Addr+offset, length); err != nil {
			return status.ErrMemoryDriverEraseFailed
		}
		return nil
	case SlotFile:
		return status.ErrNotImplemented
	default:
		return status.ErrUnknownSlotType
	}
}

// EraseHeader scrubs the first headerSize bytes of the slot. Called whenever
// an update session fails after it has started writing to the output slot,
// so the bootloader's next scan cannot mistake the partial image for a
// valid one. Drivers erase whole sectors, so for DIRECT slots the erase
// covers the whole sector holding the slot's first byte when that sector is
// larger than headerSize.
func EraseHeader(s *Slot, headerSize uint32) error {
	length := headerSize
	if s.Kind == SlotDirect && s.memParent != nil {
		if next, err := s.memParent.Driver.NextSector(s.Addr); err == nil && next-s.Addr > length {
			length = next - s.Addr
		}
	}
	return Erase(s, 0, length)
}
