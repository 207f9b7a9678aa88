package bptreedb

import "encoding/binary"

// This file is the endian codec: every byte-layout read/write in
// page.go, pagepool.go and commit.go goes through these functions, so no
// native endianness is ever assumed.

func getU16(b []byte, off int) uint16 {
	return binary.LittleEndian.Uint16(b[off:])
}

func putU16(b []byte, off int, v uint16) {
	binary.LittleEndian.PutUint16(b[off:], v)
}

func getU32(b []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(b[off:])
}

func putU32(b []byte, off int, v uint32) {
	binary.LittleEndian.PutUint32(b[off:], v)
}

func getU64(b []byte, off int) uint64 {
	return binary.LittleEndian.Uint64(b[off:])
}

func putU64(b []byte, off int, v uint64) {
	binary.LittleEndian.PutUint64(b[off:], v)
}
