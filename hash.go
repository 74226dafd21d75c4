package ptypes

import "github.com/cespare/xxhash/v2"

// hashBytes hashes the raw contents of a by-value slot or a byte string's
// bytes, using xxhash for fast non-cryptographic probing (unlike the redo
// log's checksum, which is pinned to MD5 in the wire format — see
// DESIGN.md).
func hashBytes(b []byte) uint64 {
	return xxhash.Sum64(b)
}

// hashOffset hashes a by-reference value's identity when the type isn't
// byte string (which hashes its contents instead).
func hashOffset(off Offset) uint64 {
	var buf [8]byte
	putUint64(buf[:], uint64(off))
	return xxhash.Sum64(buf[:])
}
