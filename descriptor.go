package ptypes

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// descriptorKind tags the persisted shape of a type descriptor.
type descriptorKind byte

const (
	descInt descriptorKind = iota + 1
	descFloat
	descByteString
	descList
	descHashTable
	descDict
	descSkipList
	descStruct
	descNode
	descEdge
	descBuffer
)

// typeDescriptor is the reflective, self-describing record persisted for
// every user-visible type: a kind tag, the class name, and the names of
// referenced types; structures add their base names and field list, skip
// lists their order tag.
//
// It is encoded with msgpack, a length-prefixed, tagged, self-describing
// binary encoding, decodable without executing arbitrary code.
type typeDescriptor struct {
	Kind      descriptorKind
	ClassName string
	Params    []string          // referenced type names (element/key/value/node types)
	Bases     []string          // structure bases, persistent and volatile
	Fields    []fieldDescriptor // structure field list, in canonical order
	OrderTag  string            // skip list: named key/compare function tag
}

type fieldDescriptor struct {
	Name     string
	TypeName string
}

// descriptorFormatVersion is recorded ahead of the msgpack payload so the
// tag alphabet can gain members without breaking older files outright; a
// decoder that sees a version it doesn't recognize fails Corruption rather
// than guessing.
const descriptorFormatVersion = 1

func encodeDescriptor(d *typeDescriptor) ([]byte, error) {
	payload, err := msgpack.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("ptypes: encode descriptor %q: %w", d.ClassName, err)
	}
	buf := make([]byte, 1+len(payload))
	buf[0] = descriptorFormatVersion
	copy(buf[1:], payload)
	return buf, nil
}

func decodeDescriptor(b []byte) (*typeDescriptor, error) {
	if len(b) < 1 {
		return nil, newErr(KindCorruption, "open", fmt.Errorf("empty type descriptor"))
	}
	if b[0] != descriptorFormatVersion {
		return nil, newErr(KindCorruption, "open", fmt.Errorf("unsupported type descriptor format %d", b[0]))
	}
	var d typeDescriptor
	if err := msgpack.Unmarshal(b[1:], &d); err != nil {
		return nil, newErr(KindCorruption, "open", fmt.Errorf("decode type descriptor: %w", err))
	}
	return &d, nil
}
