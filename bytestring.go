package ptypes

import "bytes"

// ByteStringType is the single by-reference scalar type: a 32-bit length
// followed by raw bytes.
type ByteStringType struct{}

func (ByteStringType) Name() string      { return "ByteString" }
func (ByteStringType) ByReference() bool { return true }
func (ByteStringType) AssignSize() int  { return 8 } // sizeof(Offset)

// AllocSize is the size of a default (empty) byte string: just its length
// header. Non-empty strings are created explicitly via Storage.NewByteString.
func (ByteStringType) AllocSize() int { return 4 }

func (t ByteStringType) descriptor() *typeDescriptor {
	return &typeDescriptor{Kind: descByteString, ClassName: t.Name()}
}

var builtinByteString = ByteStringType{}

// ByteString is a proxy over a by-reference byte string value.
type ByteString struct{ *Proxy }

func (st *Storage) wrapByteString(off Offset) ByteString {
	return ByteString{st.newProxy(builtinByteString, off)}
}

// NewByteString allocates "4+n" bytes and writes length then bytes.
func (st *Storage) NewByteString(data []byte) (ByteString, error) {
	if err := st.assertOpen("NewByteString"); err != nil {
		return ByteString{}, err
	}
	off, err := st.file.allocate(4 + len(data))
	if err != nil {
		return ByteString{}, err
	}
	buf := make([]byte, 4+len(data))
	putUint32(buf, uint32(len(data)))
	copy(buf[4:], data)
	if err := st.writeThroughLog(off, buf); err != nil {
		return ByteString{}, err
	}
	return st.wrapByteString(off), nil
}

func (v ByteString) Len() (int, error) {
	if err := v.assertLive("ByteString.Len"); err != nil {
		return 0, err
	}
	return int(getUint32(v.bytes(4))), nil
}

func (v ByteString) Bytes() ([]byte, error) {
	if err := v.assertLive("ByteString.Bytes"); err != nil {
		return nil, err
	}
	n := int(getUint32(v.bytes(4)))
	return v.st.file.bytes(v.off+4, n), nil
}

func (v ByteString) String() string {
	b, err := v.Bytes()
	if err != nil {
		return ""
	}
	return string(b)
}

// Equal compares against another persistent ByteString or a plain []byte.
func (v ByteString) Equal(other any) (bool, error) {
	c, err := v.Compare(other)
	if err != nil {
		return false, err
	}
	return c == 0, nil
}

// Compare orders v lexicographically, by-compare with length tiebreak.
func (v ByteString) Compare(other any) (int, error) {
	a, err := v.Bytes()
	if err != nil {
		return 0, err
	}
	var b []byte
	switch o := other.(type) {
	case ByteString:
		b, err = o.Bytes()
		if err != nil {
			return 0, err
		}
	case []byte:
		b = o
	case string:
		b = []byte(o)
	default:
		return 0, errf(KindType, "ByteString.Compare", nil, "cannot compare ByteString to %T", other)
	}
	return bytes.Compare(a, b), nil
}
