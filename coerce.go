package ptypes

// assignSlot implements the common assignment contract for a single slot
// (a struct field, a container's inline value slot, a skip-list node's
// value slot) given any of: an existing persistent Proxy, nil (null, valid
// only by-reference), or a foreign Go scalar/[]byte/string for the field's
// by-value contents type or ByteString's contents.
func (st *Storage) assignSlot(slot Offset, t Type, v any) error {
	if v == nil {
		return st.writeField(slot, Field{Type: t}, nil)
	}
	if pw, ok := v.(proxyWrapper); ok {
		return st.writeField(slot, Field{Type: t}, pw.asProxy())
	}

	switch t.(type) {
	case IntType:
		n, ok := toInt64(v)
		if !ok {
			return errf(KindType, "assign", nil, "cannot assign %T to Int", v)
		}
		var buf [8]byte
		putInt64(buf[:], n)
		return st.writeThroughLog(slot, buf[:])
	case FloatType:
		f, ok := toFloat64(v)
		if !ok {
			return errf(KindType, "assign", nil, "cannot assign %T to Float", v)
		}
		var buf [8]byte
		putFloat64(buf[:], f)
		return st.writeThroughLog(slot, buf[:])
	case ByteStringType:
		b, ok := toBytes(v)
		if !ok {
			return errf(KindType, "assign", nil, "cannot assign %T to ByteString", v)
		}
		bs, err := st.NewByteString(b)
		if err != nil {
			return err
		}
		defer bs.Close()
		var buf [8]byte
		putOffset(buf[:], bs.off)
		return st.writeThroughLog(slot, buf[:])
	default:
		return errf(KindType, "assign", nil, "value of type %s must be assigned from an existing persistent value", t.Name())
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	default:
		return 0, false
	}
}

func toFloat64(v any) (float64, bool) {
	switch f := v.(type) {
	case float32:
		return float64(f), true
	case float64:
		return f, true
	default:
		return 0, false
	}
}

func toBytes(v any) ([]byte, bool) {
	switch b := v.(type) {
	case []byte:
		return b, true
	case string:
		return []byte(b), true
	default:
		return nil, false
	}
}
