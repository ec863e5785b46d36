//go:build tinygo

// RP2350 ROM-based dual-bank flash driver: a flashdrv.Driver backed by the
// chip's native A/B partition support and TBYB (Try Before You Buy) reboot
// path, driven directly through ROM function pointers the way Pico SDK does.
package flashdrv

/*
#include <stdint.h>
#include <stdbool.h>
#include <stddef.h>

#define ROM_TABLE_CODE(c1, c2) ((c1) | ((c2) << 8))

#define ROM_FUNC_REBOOT                  ROM_TABLE_CODE('R', 'B')
#define ROM_FUNC_EXPLICIT_BUY            ROM_TABLE_CODE('E', 'B')
#define ROM_FUNC_GET_SYS_INFO            ROM_TABLE_CODE('G', 'S')
#define ROM_FUNC_CONNECT_INTERNAL_FLASH  ROM_TABLE_CODE('I', 'F')
#define ROM_FUNC_FLASH_EXIT_XIP          ROM_TABLE_CODE('E', 'X')
#define ROM_FUNC_FLASH_RANGE_ERASE       ROM_TABLE_CODE('R', 'E')
#define ROM_FUNC_FLASH_RANGE_PROGRAM     ROM_TABLE_CODE('R', 'P')
#define ROM_FUNC_FLASH_FLUSH_CACHE       ROM_TABLE_CODE('F', 'C')

#define BOOTROM_FUNC_TABLE_OFFSET   0x14
#define BOOTROM_WELL_KNOWN_PTR_SIZE 2
#define BOOTROM_TABLE_LOOKUP_OFFSET (BOOTROM_FUNC_TABLE_OFFSET + BOOTROM_WELL_KNOWN_PTR_SIZE)
#define RT_FLAG_FUNC_ARM_SEC    0x0004

#define REBOOT2_FLAG_REBOOT_TYPE_FLASH_UPDATE 0x4
#define REBOOT2_FLAG_NO_RETURN_ON_SUCCESS     0x100
#define SYS_INFO_BOOT_INFO 0x0040
#define XIP_BASE 0x10000000
#define FLASH_SECTOR_ERASE_CMD 0x20

typedef void *(*rom_table_lookup_fn)(uint32_t code, uint32_t mask);
typedef int (*rom_reboot_fn)(uint32_t flags, uint32_t delay_ms, uint32_t p0, uint32_t p1);
typedef int (*rom_explicit_buy_fn)(uint8_t *buffer, uint32_t buffer_size);
typedef int (*rom_get_sys_info_fn)(uint32_t *out_buffer, uint32_t out_buffer_word_size, uint32_t flags);
typedef void (*flash_connect_internal_fn)(void);
typedef void (*flash_exit_xip_fn)(void);
typedef void (*flash_range_erase_fn)(uint32_t addr, size_t count, uint32_t block_size, uint8_t block_cmd);
typedef void (*flash_range_program_fn)(uint32_t addr, const uint8_t *data, size_t count);
typedef void (*flash_flush_cache_fn)(void);

static void *rp2350_rom_lookup(uint32_t code) {
    rom_table_lookup_fn rom_table_lookup =
        (rom_table_lookup_fn)(uintptr_t)*(uint16_t*)(BOOTROM_TABLE_LOOKUP_OFFSET);
    return rom_table_lookup(code, RT_FLAG_FUNC_ARM_SEC);
}

static int rp2350_confirm_partition(void) {
    rom_explicit_buy_fn func = (rom_explicit_buy_fn) rp2350_rom_lookup(ROM_FUNC_EXPLICIT_BUY);
    if (!func) return -1;
    uint32_t workarea[64];
    return func((uint8_t*)workarea, sizeof(workarea));
}

static int rp2350_get_current_partition(void) {
    rom_get_sys_info_fn func = (rom_get_sys_info_fn) rp2350_rom_lookup(ROM_FUNC_GET_SYS_INFO);
    if (!func) return 0;
    uint32_t buffer[5];
    if (func(buffer, 5, SYS_INFO_BOOT_INFO) < 0) return 0;
    if (!(buffer[0] & SYS_INFO_BOOT_INFO)) return 0;
    uint8_t partition = (buffer[1] >> 16) & 0xFF;
    if (partition == 0xFF) return 0;
    return (int)partition;
}

static void rp2350_flash_write(uint32_t offset, const uint8_t *data, uint32_t len) {
    flash_connect_internal_fn connect = (flash_connect_internal_fn)rp2350_rom_lookup(ROM_FUNC_CONNECT_INTERNAL_FLASH);
    flash_exit_xip_fn exit_xip = (flash_exit_xip_fn)rp2350_rom_lookup(ROM_FUNC_FLASH_EXIT_XIP);
    flash_range_program_fn program = (flash_range_program_fn)rp2350_rom_lookup(ROM_FUNC_FLASH_RANGE_PROGRAM);
    flash_flush_cache_fn flush = (flash_flush_cache_fn)rp2350_rom_lookup(ROM_FUNC_FLASH_FLUSH_CACHE);
    if (!connect || !exit_xip || !program || !flush) return;
    uint32_t status;
    __asm__ volatile ("mrs %0, primask" : "=r" (status));
    __asm__ volatile ("cpsid i");
    connect(); exit_xip(); program(offset, data, len); flush();
    __asm__ volatile ("msr primask, %0" : : "r" (status));
}

static void rp2350_flash_erase(uint32_t offset, uint32_t count) {
    flash_connect_internal_fn connect = (flash_connect_internal_fn)rp2350_rom_lookup(ROM_FUNC_CONNECT_INTERNAL_FLASH);
    flash_exit_xip_fn exit_xip = (flash_exit_xip_fn)rp2350_rom_lookup(ROM_FUNC_FLASH_EXIT_XIP);
    flash_range_erase_fn erase = (flash_range_erase_fn)rp2350_rom_lookup(ROM_FUNC_FLASH_RANGE_ERASE);
    flash_flush_cache_fn flush = (flash_flush_cache_fn)rp2350_rom_lookup(ROM_FUNC_FLASH_FLUSH_CACHE);
    if (!connect || !exit_xip || !erase || !flush) return;
    uint32_t status;
    __asm__ volatile ("mrs %0, primask" : "=r" (status));
    __asm__ volatile ("cpsid i");
    connect(); exit_xip(); erase(offset, count, 4096, FLASH_SECTOR_ERASE_CMD); flush();
    __asm__ volatile ("msr primask, %0" : : "r" (status));
}

static int rp2350_reboot_to_partition(uint32_t xip_addr) {
    rom_reboot_fn func = (rom_reboot_fn) rp2350_rom_lookup(ROM_FUNC_REBOOT);
    if (!func) return -1;
    return func(REBOOT2_FLAG_REBOOT_TYPE_FLASH_UPDATE | REBOOT2_FLAG_NO_RETURN_ON_SUCCESS, 1000, xip_addr, 0);
}
*/
import "C"

import (
	"unsafe"

	"secureiap/status"
)

// RP2350 partition layout: PT (8KB) | partition A | partition B.
const (
	rp2350PartitionAOffset = 0x2000
	rp2350PartitionBOffset = 0x1F2000
	rp2350PartitionSize    = 0x1F0000
	rp2350SectorSize       = 4096
)

// RP2350 is a Driver over the chip's native A/B partition pair, addressed
// through the XIP window starting at Addr.
type RP2350 struct {
	Base
	Addr uint32 // XIP base this instance is mapped at, normally 0x10000000
}

func (d *RP2350) Init() error   { return nil }
func (d *RP2350) Deinit() error { return nil }

func (d *RP2350) GetInfo() (Info, error) {
	return Info{
		Addr:      d.Addr + rp2350PartitionAOffset,
		Size:      2 * rp2350PartitionSize,
		WriteSize: 256,
		ReadSize:  1,
		Bank1Addr: d.Addr + rp2350PartitionAOffset,
		Bank2Addr: d.Addr + rp2350PartitionBOffset,
		BankSize:  rp2350PartitionSize,
		Flags:     FlagDualBank | FlagLaterSwap, // RP2350's partition swap only takes effect after reboot
	}, nil
}

func (d *RP2350) GetStatus(uint32) (Status, error) { return StatusOK, nil }

func (d *RP2350) Read(addr uint32, buf []byte) error {
	xip := (*[1 << 30]byte)(unsafe.Pointer(uintptr(addr)))
	copy(buf, xip[:len(buf)])
	return nil
}

func (d *RP2350) Write(addr uint32, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	C.rp2350_flash_write(C.uint32_t(addr-d.Addr), (*C.uint8_t)(&data[0]), C.uint32_t(len(data)))
	return nil
}

func (d *RP2350) Erase(addr uint32, length uint32) error {
	if addr%rp2350SectorSize != 0 || length%rp2350SectorSize != 0 {
		return status.ErrInvalidAddress
	}
	C.rp2350_flash_erase(C.uint32_t(addr-d.Addr), C.uint32_t(length))
	return nil
}

func (d *RP2350) SectorAddr(addr uint32) (bool, error) {
	return addr%rp2350SectorSize == 0, nil
}

func (d *RP2350) NextSector(addr uint32) (uint32, error) {
	return addr - addr%rp2350SectorSize + rp2350SectorSize, nil
}

// SwapBanks requests the ROM reboot into the inactive partition. It never
// returns on success; FlagLaterSwap signals callers that the new mapping
// is only visible after this reboot, not immediately.
func (d *RP2350) SwapBanks() error {
	current := int(C.rp2350_get_current_partition())
	target := rp2350PartitionBOffset
	if current != 0 {
		target = rp2350PartitionAOffset
	}
	xip := uint32(C.uint32_t(0x10000000 + target))
	if C.rp2350_reboot_to_partition(C.uint32_t(xip)) != 0 {
		return status.ErrMemoryDriverSwapFailed
	}
	return nil // unreachable on real hardware; kept for interface symmetry
}

// ConfirmPartition performs the TBYB (Try Before You Buy) acknowledgement.
// It must be called within 16.7s of booting a just-swapped partition or the
// ROM automatically reverts to the previous one on the next reset.
func (d *RP2350) ConfirmPartition() error {
	if C.rp2350_confirm_partition() != 0 {
		return status.ErrAborted
	}
	return nil
}
