package redo

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
)

// magic is distinct from the primary file's magic and carries the redo
// format's own version tag, so a redo file can never be mistaken for a
// primary file or for an incompatible redo format.
const magic = "ptypes-redo-v1\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00"

const magicLen = 31

func init() {
	if len(magic) != magicLen {
		panic(fmt.Sprintf("redo: magic length is %d, want %d", len(magic), magicLen))
	}
}

// headerSize is the size of the fixed header page at the start of the redo
// file. It mirrors the primary file's page-sized header slots.
const headerSize = 4096

// header is the on-disk redo-file header: magic, the byte offset of the
// first transaction (always headerSize), and a cached tail offset (the
// first byte past the last committed transaction).
type header struct {
	Magic   [magicLen]byte
	FirstTrx uint64
	Tail     uint64
}

func encodeHeader(h *header) []byte {
	buf := make([]byte, headerSize)
	copy(buf[:magicLen], h.Magic[:])
	binary.LittleEndian.PutUint64(buf[magicLen:], h.FirstTrx)
	binary.LittleEndian.PutUint64(buf[magicLen+8:], h.Tail)
	return buf
}

func decodeHeader(buf []byte) (*header, error) {
	if len(buf) < headerSize {
		return nil, fmt.Errorf("redo: header truncated")
	}
	var h header
	copy(h.Magic[:], buf[:magicLen])
	if string(h.Magic[:]) != magic {
		return nil, ErrCorruption
	}
	h.FirstTrx = binary.LittleEndian.Uint64(buf[magicLen:])
	h.Tail = binary.LittleEndian.Uint64(buf[magicLen+8:])
	return &h, nil
}

// checksumSize is the width of the transaction checksum field. The wire
// format pins this to MD5 (16 bytes); see DESIGN.md for why this module
// keeps MD5 here instead of the faster xxhash used elsewhere.
const checksumSize = md5.Size

// trxHeaderSize is length:uint64 + checksum:16 bytes.
const trxHeaderSize = 8 + checksumSize

func encodeTrxHeader(length uint64, checksum [checksumSize]byte) []byte {
	buf := make([]byte, trxHeaderSize)
	binary.LittleEndian.PutUint64(buf, length)
	copy(buf[8:], checksum[:])
	return buf
}

func decodeTrxHeader(buf []byte) (length uint64, checksum [checksumSize]byte) {
	length = binary.LittleEndian.Uint64(buf)
	copy(checksum[:], buf[8:])
	return
}

// recordHeaderSize is target_offset:uint64 + length:uint64.
const recordHeaderSize = 16

func encodeRecordHeader(buf []byte, targetOffset, length uint64) {
	binary.LittleEndian.PutUint64(buf, targetOffset)
	binary.LittleEndian.PutUint64(buf[8:], length)
}

func decodeRecordHeader(buf []byte) (targetOffset, length uint64) {
	return binary.LittleEndian.Uint64(buf), binary.LittleEndian.Uint64(buf[8:])
}
