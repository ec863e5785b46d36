// Package flashdrv defines the capability-based interface every flash
// backend (real peripheral, RP2350 ROM driver, host simulator) implements.
// It mirrors the driver boundary of a sector-erasable, write-aligned NV
// storage device: callers never assume bank-swap or sector-query support is
// present, they probe Info().Flags and fall back to ErrNotImplemented.
package flashdrv

import "secureiap/status"

// Flag bits reported in Info.Flags.
const (
	// FlagDualBank indicates the device exposes two addressable banks and
	// supports SwapBanks.
	FlagDualBank uint32 = 1 << iota
	// FlagLaterSwap indicates a requested bank swap only becomes effective
	// after the next reset, rather than immediately.
	FlagLaterSwap
)

// Info describes the static geometry of a flash device.
type Info struct {
	Addr      uint32 // base address of the addressable region
	Size      uint32 // total addressable size in bytes
	WriteSize uint32 // minimum aligned write granularity
	ReadSize  uint32 // minimum aligned read granularity (1 if unconstrained)
	Bank1Addr uint32 // dual-bank only
	Bank2Addr uint32 // dual-bank only
	BankSize  uint32 // dual-bank only
	Flags     uint32
}

// Status reports the current condition of the device or of an address range
// inside it (e.g. erase-in-progress, write-protected).
type Status uint8

const (
	StatusOK Status = iota
	StatusBusy
	StatusError
	StatusWriteProtected
)

// Driver is the capability surface a flash backend implements. SectorAddr,
// NextSector and SwapBanks are optional: a backend that does not support
// bank swapping (most single-bank devices) returns status.ErrNotImplemented
// from SwapBanks rather than omitting the method.
type Driver interface {
	Init() error
	Deinit() error
	GetInfo() (Info, error)
	GetStatus(addr uint32) (Status, error)
	Read(addr uint32, buf []byte) error
	Write(addr uint32, data []byte) error
	Erase(addr uint32, length uint32) error

	// SectorAddr reports whether addr lies on a sector boundary.
	SectorAddr(addr uint32) (bool, error)
	// NextSector returns the address of the sector following addr.
	NextSector(addr uint32) (uint32, error)
	// SwapBanks flips which bank is mapped to the execution address.
	// Semantics depend on Info().Flags&FlagLaterSwap.
	SwapBanks() error
}

// Base embeds into a concrete driver to supply status.ErrNotImplemented
// defaults for the optional capability methods, so a simple single-bank
// driver need not define SwapBanks itself.
type Base struct{}

func (Base) SectorAddr(uint32) (bool, error)   { return false, status.ErrNotImplemented }
func (Base) NextSector(uint32) (uint32, error) { return 0, status.ErrNotImplemented }
func (Base) SwapBanks() error                  { return status.ErrNotImplemented }
