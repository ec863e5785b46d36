// Package flashsim provides an in-memory flashdrv.Driver used by tests and
// host tooling to exercise the memory, imageproc, update and boot packages
// without real flash hardware. It models a sector-erasable NV device: Erase
// sets a range to 0xFF (flash's erased state) and Write can only clear bits,
// matching real NOR flash semantics closely enough to catch alignment bugs.
package flashsim

import (
	"secureiap/flashdrv"
	"secureiap/status"
)

// Driver is a byte-slice-backed flashdrv.Driver. Optionally models a
// dual-bank device: when BankSize is non-zero, SwapBanks flips which half
// of mem is mapped at the low addresses, either immediately or, if
// LaterSwap is set, only after the next Init call (mimicking a device that
// only re-maps banks across a reset).
type Driver struct {
	flashdrv.Base

	mem []byte

	Addr       uint32
	SectorSize uint32
	WriteSize  uint32

	// BankSize non-zero enables dual-bank mode: mem is split into two
	// equal halves and accesses are redirected through swapped.
	BankSize  uint32
	LaterSwap bool

	swapped     bool
	pendingSwap bool
}

// New creates a single-bank simulator covering [addr, addr+size) with the
// given sector and minimum-write granularity. The backing buffer starts
// erased (all 0xFF), the reset state of NOR flash.
func New(addr, size, sectorSize, writeSize uint32) *Driver {
	mem := make([]byte, size)
	for i := range mem {
		mem[i] = 0xFF
	}
	return &Driver{mem: mem, Addr: addr, SectorSize: sectorSize, WriteSize: writeSize}
}

// NewDualBank creates a simulator covering two equal-sized banks back to
// back starting at addr, flagged FlagDualBank (and FlagLaterSwap if
// laterSwap is true).
func NewDualBank(addr, bankSize, sectorSize, writeSize uint32, laterSwap bool) *Driver {
	d := New(addr, bankSize*2, sectorSize, writeSize)
	d.BankSize = bankSize
	d.LaterSwap = laterSwap
	return d
}

func (d *Driver) Init() error {
	if d.pendingSwap {
		d.swapped = !d.swapped
		d.pendingSwap = false
	}
	return nil
}

func (d *Driver) Deinit() error { return nil }

func (d *Driver) GetInfo() (flashdrv.Info, error) {
	info := flashdrv.Info{
		Addr:      d.Addr,
		Size:      uint32(len(d.mem)),
		WriteSize: d.WriteSize,
		ReadSize:  1,
	}
	if d.BankSize != 0 {
		info.Flags |= flashdrv.FlagDualBank
		info.BankSize = d.BankSize
		info.Bank1Addr = d.Addr
		info.Bank2Addr = d.Addr + d.BankSize
		if d.LaterSwap {
			info.Flags |= flashdrv.FlagLaterSwap
		}
	}
	return info, nil
}

func (d *Driver) GetStatus(addr uint32) (flashdrv.Status, error) {
	if _, err := d.offset(addr, 1); err != nil {
		return flashdrv.StatusError, nil
	}
	return flashdrv.StatusOK, nil
}

func (d *Driver) Read(addr uint32, buf []byte) error {
	off, err := d.offset(addr, uint32(len(buf)))
	if err != nil {
		return err
	}
	copy(buf, d.mem[off:off+uint32(len(buf))])
	return nil
}

// Write ANDs data into the backing buffer, bit-for-bit: real NOR flash can
// only clear bits until the next erase, so writing twice to the same
// region without an intervening erase silently loses the bits the second
// write tried to set back to 1. Tests that rely on overwrite-without-erase
// would be testing a hardware behavior that does not exist.
func (d *Driver) Write(addr uint32, data []byte) error {
	off, err := d.offset(addr, uint32(len(data)))
	if err != nil {
		return err
	}
	if d.WriteSize != 0 && uint32(len(data))%d.WriteSize != 0 {
		return status.ErrInvalidLength
	}
	for i, b := range data {
		d.mem[off+uint32(i)] &= b
	}
	return nil
}

func (d *Driver) Erase(addr uint32, length uint32) error {
	off, err := d.offset(addr, length)
	if err != nil {
		return err
	}
	if d.SectorSize != 0 {
		if addr%d.SectorSize != 0 || length%d.SectorSize != 0 {
			return status.ErrInvalidAddress
		}
	}
	for i := off; i < off+length; i++ {
		d.mem[i] = 0xFF
	}
	return nil
}

func (d *Driver) SectorAddr(addr uint32) (bool, error) {
	if d.SectorSize == 0 {
		return false, status.ErrNotImplemented
	}
	return addr%d.SectorSize == 0, nil
}

func (d *Driver) NextSector(addr uint32) (uint32, error) {
	if d.SectorSize == 0 {
		return 0, status.ErrNotImplemented
	}
	return addr - addr%d.SectorSize + d.SectorSize, nil
}

func (d *Driver) SwapBanks() error {
	if d.BankSize == 0 {
		return status.ErrNotImplemented
	}
	if d.LaterSwap {
		d.pendingSwap = true
		return nil
	}
	d.swapped = !d.swapped
	return nil
}

// offset translates a device address into a byte offset in mem, redirecting
// through the active bank mapping when dual-bank mode is enabled.
func (d *Driver) offset(addr uint32, length uint32) (uint32, error) {
	if addr < d.Addr || addr+length > d.Addr+uint32(len(d.mem)) {
		return 0, status.ErrInvalidAddress
	}
	off := addr - d.Addr
	if d.BankSize != 0 && d.swapped {
		off = (off + d.BankSize) % (2 * d.BankSize)
	}
	return off, nil
}
