// Package memory models the typed regions ("slots") that live inside a
// flash or filesystem-backed region ("memory"), and the minimum-write
// buffered writer used to commit partial writes to flash.
package memory

import (
	"secureiap/flashdrv"
	"secureiap/status"
)

// Role distinguishes the memory currently running the application from the
// memory holding candidate/backup images.
type Role uint8

const (
	RolePrimary Role = iota
	RoleSecondary
)

// Kind is the backing storage type of a Memory.
type Kind uint8

const (
	KindFlash Kind = iota
	KindFS         // host-only: a directory of files, one per slot
)

// SlotType selects how a Slot addresses its data.
type SlotType uint8

const (
	SlotDirect SlotType = iota // addr/size inside a flash-backed memory
	SlotFile                   // path inside a filesystem-backed memory (host only)
)

// CType is a bitmask describing the role(s) a slot's content can serve.
// Queries match any slot whose mask contains all requested bits.
type CType uint16

const (
	CTypeApp CType = 1 << iota
	CTypeUpdate
	CTypeBackup
	CTypeBinary
	CTypeData
	CTypeConfiguration
	CTypeBoot
)

// Has reports whether c contains every bit set in want.
func (c CType) Has(want CType) bool { return c&want == want }

// Slot is an addressable region inside one Memory.
type Slot struct {
	Type CType
	Kind SlotType

	// DIRECT fields.
	Addr uint32
	Size uint32

	// FILE fields (host only).
	Path string

	memParent *Memory
}

// Memory owns a driver and a fixed list of slots.
type Memory struct {
	Role   Role
	Kind   Kind
	Driver flashdrv.Driver
	Slots  []Slot

	info flashdrv.Info
}

// Init initializes the driver, validates slot geometry and records each
// slot's parent memory. It MUST be called once before any slot operation.
func Init(memories []*Memory) error {
	for _, m := range memories {
		if m.Driver == nil {
			return status.ErrInvalidParameters
		}
		if err := m.Driver.Init(); err != nil {
			return status.ErrMemoryDriverInitFailed
		}
		info, err := m.Driver.GetInfo()
		if err != nil {
			return status.ErrMemoryDriverInitFailed
		}
		m.info = info
		if err := initSlots(m); err != nil {
			return err
		}
	}
	return nil
}

func initSlots(m *Memory) error {
	for i := range m.Slots {
		s := &m.Slots[i]
		s.memParent = m

		switch s.Kind {
		case SlotDirect:
			if m.Kind != KindFlash {
				return status.ErrUnknownSlotType
			}
			if s.Addr < m.info.Addr || s.Addr+s.Size > m.info.Addr+m.info.Size {
				return status.ErrInvalidAddress
			}
			ok, err := m.Driver.SectorAddr(s.Addr)
			if err != nil && err != status.ErrNotImplemented {
				return err
			}
			if err == nil && !ok {
				return status.ErrInvalidAddress
			}
		case SlotFile:
			if m.Kind != KindFS {
				return status.ErrUnknownSlotType
			}
			if s.Path == "" {
				return status.ErrInvalidParameters
			}
		default:
			return status.ErrUnknownSlotType
		}
	}

	// Full pairwise overlap check across every slot pair in this memory.
	// The original reference implementation only ever compared slot[0]
	// against slot[i+1]; that is not a general overlap check, so every
	// pair is compared here instead.
	for i := 0; i < len(m.Slots); i++ {
		for j := i + 1; j < len(m.Slots); j++ {
			if overlaps(&m.Slots[i], &m.Slots[j]) {
				return status.ErrSlotsOverlap
			}
		}
	}
	return nil
}

func overlaps(a, b *Slot) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case SlotDirect:
		return a.Addr < b.Addr+b.Size && b.Addr < a.Addr+a.Size
	case SlotFile:
		return a.Path == b.Path
	default:
		return true
	}
}

// Info returns the memory's driver geometry, as captured at Init.
func (m *Memory) Info() flashdrv.Info { return m.info }

// GetSlotByCType returns the first slot whose CType mask contains every bit
// of want.
func GetSlotByCType(m *Memory, want CType) (*Slot, error) {
	for i := range m.Slots {
		if m.Slots[i].Type.Has(want) {
			return &m.Slots[i], nil
		}
	}
	return nil, status.ErrNoCandidate
}

// GetMemoryByRole returns the first memory with the given role.
func GetMemoryByRole(memories []*Memory, role Role) (*Memory, error) {
	for _, m := range memories {
		if m.Role == role {
			return m, nil
		}
	}
	return nil, status.ErrInvalidParameters
}

// Parent returns the memory that owns this slot.
func (s *Slot) Parent() *Memory { return s.memParent }
