// Package image defines the on-flash/on-wire image header: a fixed 64-byte
// little-endian record describing one firmware image, followed by an
// optional padding run, an optional IV, the payload, and a trailer whose
// format is owned by the verify package.
package image

import (
	"encoding/binary"
	"hash/crc32"

	"secureiap/status"
)

// HeaderSize is the fixed on-disk size of Header.
const HeaderSize = 64

// Version is the only header version this implementation accepts.
// Packed as (major<<16)|(minor<<8)|patch.
const Version uint32 = 0x00010100 // 1.1.0

// Type enumerates the kind of payload a header describes.
type Type uint8

const (
	TypeNone Type = 0
	TypeApp  Type = 1
)

// Header field offsets, matching the wire layout byte-for-byte.
const (
	offHeadVers    = 0
	offImgIndex    = 4
	offImgType     = 8
	offDataPadding = 9
	offDataSize    = 13
	offDataVers    = 17
	offImgTime     = 21
	offReserved    = 29
	offHeadCrc     = 60
)

// Header is the decoded form of the 64-byte on-flash record.
type Header struct {
	HeadVers    uint32
	ImgIndex    uint32
	ImgType     Type
	DataPadding uint32
	DataSize    uint32
	DataVers    uint32
	ImgTime     uint64
	HeadCrc     [4]byte
}

// Semver packs a major.minor.patch triple the way HeadVers/DataVers do.
func Semver(major, minor, patch uint8) uint32 {
	return uint32(major)<<16 | uint32(minor)<<8 | uint32(patch)
}

// Encode serializes h into a HeaderSize-byte buffer, computing HeadCrc over
// everything preceding it.
func Encode(h *Header) [HeaderSize]byte {
	var buf [HeaderSize]byte
	binary.LittleEndian.PutUint32(buf[offHeadVers:], h.HeadVers)
	binary.LittleEndian.PutUint32(buf[offImgIndex:], h.ImgIndex)
	buf[offImgType] = byte(h.ImgType)
	binary.LittleEndian.PutUint32(buf[offDataPadding:], h.DataPadding)
	binary.LittleEndian.PutUint32(buf[offDataSize:], h.DataSize)
	binary.LittleEndian.PutUint32(buf[offDataVers:], h.DataVers)
	binary.LittleEndian.PutUint64(buf[offImgTime:], h.ImgTime)
	// buf[offReserved:offHeadCrc] stays zero.

	crc := crc32.ChecksumIEEE(buf[:offHeadCrc])
	binary.LittleEndian.PutUint32(buf[offHeadCrc:], crc)
	copy(h.HeadCrc[:], buf[offHeadCrc:HeaderSize])
	return buf
}

// Decode parses and validates a Header out of buf, which must be at least
// HeaderSize bytes. It fails status.ErrInvalidImageHeader on a CRC mismatch
// and status.ErrInvalidImageHeaderVersion on an unexpected HeadVers.
func Decode(buf []byte) (Header, error) {
	var h Header
	if len(buf) < HeaderSize {
		return h, status.ErrInvalidLength
	}

	crc := crc32.ChecksumIEEE(buf[:offHeadCrc])
	var wantCrc [4]byte
	binary.LittleEndian.PutUint32(wantCrc[:], crc)
	var gotCrc [4]byte
	copy(gotCrc[:], buf[offHeadCrc:HeaderSize])
	if wantCrc != gotCrc {
		return h, status.ErrInvalidImageHeader
	}

	h.HeadVers = binary.LittleEndian.Uint32(buf[offHeadVers:])
	if h.HeadVers != Version {
		return h, status.ErrInvalidImageHeaderVersion
	}
	h.ImgIndex = binary.LittleEndian.Uint32(buf[offImgIndex:])
	h.ImgType = Type(buf[offImgType])
	h.DataPadding = binary.LittleEndian.Uint32(buf[offDataPadding:])
	h.DataSize = binary.LittleEndian.Uint32(buf[offDataSize:])
	h.DataVers = binary.LittleEndian.Uint32(buf[offDataVers:])
	h.ImgTime = binary.LittleEndian.Uint64(buf[offImgTime:])
	copy(h.HeadCrc[:], gotCrc[:])
	return h, nil
}

// CrcBytes returns the 4-byte HeadCrc field, the only part of the header
// that is fed into the payload verification digest (not the whole header).
func (h *Header) CrcBytes() []byte { return h.HeadCrc[:] }
