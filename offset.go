package ptypes

// Offset names a byte position within the primary mapped file, measured
// from its base. Zero denotes null; it is never a valid reference to a
// stored value.
type Offset uint64

// NullOffset is the reserved "no value" offset.
const NullOffset Offset = 0

func (o Offset) IsNull() bool { return o == NullOffset }
