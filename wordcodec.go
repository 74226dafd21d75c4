package ptypes

import (
	"encoding/binary"
	"math"
)

// Fixed-width word access into mapped bytes. Multi-byte integers are
// host-endian in spirit but encoded little-endian for portability of this
// implementation across the architectures the tests run on; the format is
// explicitly non-portable across engine versions regardless.

func getUint64(b []byte) uint64 { return binary.LittleEndian.Uint64(b) }
func putUint64(b []byte, v uint64) { binary.LittleEndian.PutUint64(b, v) }

func getUint32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }
func putUint32(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }

func getInt64(b []byte) int64  { return int64(getUint64(b)) }
func putInt64(b []byte, v int64) { putUint64(b, uint64(v)) }

func getFloat64(b []byte) float64   { return math.Float64frombits(getUint64(b)) }
func putFloat64(b []byte, v float64) { putUint64(b, math.Float64bits(v)) }

func getOffset(b []byte) Offset    { return Offset(getUint64(b)) }
func putOffset(b []byte, v Offset) { putUint64(b, uint64(v)) }
