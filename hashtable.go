package ptypes

// internalStringSetType is the hidden set-of-byte-string used to back the
// storage-owned string registry. Its "__"-prefixed name keeps it
// out of Schema.Type and out of the persisted type list.
var internalStringSetType = &HashTableType{name: "__StringSet", keyType: builtinByteString}

// HashTableType is an open-addressing hash table, by-reference. A nil
// valueType gives set semantics; isDefault selects the default-dict
// variant.
type HashTableType struct {
	name      string
	keyType   Type
	valueType Type
	isDefault bool
}

func (t *HashTableType) Name() string    { return t.name }
func (*HashTableType) ByReference() bool { return true }
func (*HashTableType) AssignSize() int   { return 8 }
func (*HashTableType) AllocSize() int    { return 32 }

func (t *HashTableType) entrySize() int {
	sz := entryHeaderSize + t.keyType.AssignSize()
	if t.valueType != nil {
		sz += t.valueType.AssignSize()
	}
	return sz
}

func (t *HashTableType) descriptor() *typeDescriptor {
	kind := descHashTable
	if t.isDefault {
		kind = descDict
	}
	valueName := ""
	if t.valueType != nil {
		valueName = t.valueType.Name()
	}
	return &typeDescriptor{Kind: kind, ClassName: t.name, Params: []string{t.keyType.Name(), valueName}}
}

// Header layout: capacity:8 used:8 mask:8 entriesOffset:8 = 32 bytes.
const (
	htCapacityOff = 0
	htUsedOff     = 8
	htMaskOff     = 16
	htEntriesOff  = 24

	// Entry layout: isUsed:1 (padded to 8) key value?
	entryHeaderSize = 8
)

// HashTable is a proxy over a hash table value.
type HashTable struct{ *Proxy }

func (st *Storage) wrapHashTable(t *HashTableType, off Offset) HashTable {
	return HashTable{st.newProxy(t, off)}
}

func smallestPow2GreaterThan(n int) int {
	p := 1
	for p <= n {
		p <<= 1
	}
	return p
}

// NewHashTable allocates a table sized to the smallest power of two
// strictly larger than 3/2*requested, defaulting requested to 1.
func (st *Storage) NewHashTable(t *HashTableType, requested int) (HashTable, error) {
	if err := st.assertOpen("NewHashTable"); err != nil {
		return HashTable{}, err
	}
	if requested < 1 {
		requested = 1
	}
	capacity := smallestPow2GreaterThan(requested * 3 / 2)
	entriesOff, err := st.file.allocate(capacity * t.entrySize())
	if err != nil {
		return HashTable{}, err
	}
	headerOff, err := st.file.allocate(32)
	if err != nil {
		return HashTable{}, err
	}
	buf := make([]byte, 32)
	putUint64(buf[htCapacityOff:], uint64(capacity))
	putUint64(buf[htUsedOff:], 0)
	putUint64(buf[htMaskOff:], uint64(capacity-1))
	putOffset(buf[htEntriesOff:], entriesOff)
	if err := st.writeThroughLog(headerOff, buf); err != nil {
		return HashTable{}, err
	}
	return st.wrapHashTable(t, headerOff), nil
}

func (v HashTable) htType() *HashTableType { return v.typ.(*HashTableType) }

func (v HashTable) header() (capacity int, used int, mask uint64, entries Offset, err error) {
	if err = v.assertLive("HashTable"); err != nil {
		return
	}
	buf := v.st.file.bytes(v.off, 32)
	capacity = int(getUint64(buf[htCapacityOff:]))
	used = int(getUint64(buf[htUsedOff:]))
	mask = getUint64(buf[htMaskOff:])
	entries = getOffset(buf[htEntriesOff:])
	return
}

func (v HashTable) entryOffset(entries Offset, i uint64) Offset {
	return entries + Offset(i)*Offset(v.htType().entrySize())
}

func (v HashTable) isUsed(entryOff Offset) bool {
	return v.st.file.bytes(entryOff, 1)[0] != 0
}

func (v HashTable) keySlot(entryOff Offset) Offset { return entryOff + entryHeaderSize }

func (v HashTable) valueSlot(entryOff Offset) Offset {
	return entryOff + entryHeaderSize + Offset(v.htType().keyType.AssignSize())
}

// keyHash hashes a key: by-value types hash their contents,
// byte string hashes its contents, other by-reference types hash their
// offset.
func (v HashTable) keyHash(key any) (uint64, error) {
	t := v.htType().keyType
	switch t.(type) {
	case ByteStringType:
		var b []byte
		switch k := key.(type) {
		case ByteString:
			bb, err := k.Bytes()
			if err != nil {
				return 0, err
			}
			b = bb
		case []byte:
			b = k
		case string:
			b = []byte(k)
		default:
			return 0, errf(KindType, "HashTable", nil, "cannot hash %T as ByteString key", key)
		}
		return hashBytes(b), nil
	default:
		if !t.ByReference() {
			var buf [8]byte
			switch kk := key.(type) {
			case Int:
				n, err := kk.Get()
				if err != nil {
					return 0, err
				}
				putInt64(buf[:], n)
			case int64:
				putInt64(buf[:], kk)
			case int:
				putInt64(buf[:], int64(kk))
			case Float:
				f, err := kk.Get()
				if err != nil {
					return 0, err
				}
				putFloat64(buf[:], f)
			case float64:
				putFloat64(buf[:], kk)
			default:
				return 0, errf(KindType, "HashTable", nil, "cannot hash %T as key", key)
			}
			return hashBytes(buf[:]), nil
		}
		p, ok := key.(*Proxy)
		if !ok {
			return 0, errf(KindType, "HashTable", nil, "cannot hash %T as by-reference key", key)
		}
		return hashOffset(p.off), nil
	}
}

// keyEquals compares the key already stored at entryOff against key.
func (v HashTable) keyEquals(entryOff Offset, key any) (bool, error) {
	t := v.htType().keyType
	existing, err := v.st.readSlot(v.keySlot(entryOff), t)
	if err != nil {
		return false, err
	}
	if existing != nil {
		defer existing.Close()
	}
	if _, ok := t.(ByteStringType); ok {
		return ByteString{existing}.Equal(key)
	}
	if !t.ByReference() {
		switch t.(type) {
		case IntType:
			a, err := Int{existing}.Get()
			if err != nil {
				return false, err
			}
			b, ok := toInt64(key)
			if !ok {
				if kk, ok := key.(Int); ok {
					b, err = kk.Get()
					if err != nil {
						return false, err
					}
				} else {
					return false, nil
				}
			}
			return a == b, nil
		case FloatType:
			a, err := Float{existing}.Get()
			if err != nil {
				return false, err
			}
			b, ok := toFloat64(key)
			if !ok {
				if kk, ok := key.(Float); ok {
					b, err = kk.Get()
					if err != nil {
						return false, err
					}
				} else {
					return false, nil
				}
			}
			return a == b, nil
		}
	}
	p, ok := key.(*Proxy)
	if !ok {
		return false, nil
	}
	return existing.off == p.off, nil
}

// probe runs the classical perturbed open-addressing probe sequence:
// i := (i<<2)+i+perturb+1; perturb >>= 5, seeded from hash(key).
// It returns the offset of the first slot that is either a match for key
// or unused (an insertion point).
func (v HashTable) probe(key any) (entryOff Offset, used bool, err error) {
	capacity, _, mask, entries, err := v.header()
	if err != nil {
		return 0, false, err
	}
	h, err := v.keyHash(key)
	if err != nil {
		return 0, false, err
	}
	i := h & mask
	perturb := h
	for n := 0; n < capacity; n++ {
		off := v.entryOffset(entries, i)
		if !v.isUsed(off) {
			return off, false, nil
		}
		eq, err := v.keyEquals(off, key)
		if err != nil {
			return 0, false, err
		}
		if eq {
			return off, true, nil
		}
		i = ((i << 2) + i + perturb + 1) & mask
		perturb >>= 5
	}
	return 0, false, errf(KindFull, "HashTable", nil, "probe exhausted capacity")
}

const hashTableMaxLoadFactorNum, hashTableMaxLoadFactorDen = 9, 10

// GetOrIntern probes to an empty slot; if unused, sets key (and value, if
// the value type is defined), and returns the persisted key proxy. If used,
// the provided value is ignored.
func (v HashTable) GetOrIntern(key any, value any) (*Proxy, error) {
	capacity, used, _, _, err := v.header()
	if err != nil {
		return nil, err
	}
	entryOff, isUsed, err := v.probe(key)
	if err != nil {
		return nil, err
	}
	if isUsed {
		return v.st.readSlot(v.keySlot(entryOff), v.htType().keyType)
	}
	if (used+1)*hashTableMaxLoadFactorDen > capacity*hashTableMaxLoadFactorNum {
		return nil, newErr(KindFull, "GetOrIntern", nil)
	}
	if err := v.st.assignSlot(v.keySlot(entryOff), v.htType().keyType, key); err != nil {
		return nil, err
	}
	if v.htType().valueType != nil && value != nil {
		if err := v.st.assignSlot(v.valueSlot(entryOff), v.htType().valueType, value); err != nil {
			return nil, err
		}
	}
	if err := v.markUsed(entryOff, used+1); err != nil {
		return nil, err
	}
	return v.st.readSlot(v.keySlot(entryOff), v.htType().keyType)
}

func (v HashTable) markUsed(entryOff Offset, newUsed int) error {
	flag := []byte{1, 0, 0, 0, 0, 0, 0, 0}
	if err := v.st.writeThroughLog(entryOff, flag); err != nil {
		return err
	}
	var buf [8]byte
	putUint64(buf[:], uint64(newUsed))
	return v.st.writeThroughLog(v.off+htUsedOff, buf[:])
}

// Index looks up key, failing KeyNotFound if absent, unless the table is a
// default dict, in which case an absent key is created with a fresh
// default value of the value type.
func (v HashTable) Index(key any) (*Proxy, error) {
	entryOff, isUsed, err := v.probe(key)
	if err != nil {
		return nil, err
	}
	if !isUsed {
		if !v.htType().isDefault {
			return nil, newErr(KindKeyNotFound, "Index", nil)
		}
		_, err := v.GetOrIntern(key, nil)
		if err != nil {
			return nil, err
		}
		entryOff, _, err = v.probe(key)
		if err != nil {
			return nil, err
		}
		if v.htType().valueType.ByReference() {
			off, err := v.st.createDefault(v.htType().valueType)
			if err != nil {
				return nil, err
			}
			var buf [8]byte
			putOffset(buf[:], off)
			if err := v.st.writeThroughLog(v.valueSlot(entryOff), buf[:]); err != nil {
				return nil, err
			}
		}
		// By-value value types need no default construction: the slot was
		// zeroed when the entry was allocated, and a zeroed Int/Float is
		// already the default value.
	}
	if v.htType().valueType == nil {
		return v.st.readSlot(v.keySlot(entryOff), v.htType().keyType)
	}
	return v.st.readSlot(v.valueSlot(entryOff), v.htType().valueType)
}

// Set assigns value to key's slot; key must already be present (use
// GetOrIntern to insert). Set semantics (nil value type) silently ignores
// value.
func (v HashTable) Set(key any, value any) error {
	entryOff, isUsed, err := v.probe(key)
	if err != nil {
		return err
	}
	if !isUsed {
		return newErr(KindKeyNotFound, "Set", nil)
	}
	if v.htType().valueType == nil {
		return nil
	}
	return v.st.assignSlot(v.valueSlot(entryOff), v.htType().valueType, value)
}

// IterKeys yields a proxy over each used slot's key.
func (v HashTable) IterKeys(yield func(*Proxy) bool) error {
	return v.iterate(func(entryOff Offset) (bool, error) {
		p, err := v.st.readSlot(v.keySlot(entryOff), v.htType().keyType)
		if err != nil {
			return false, err
		}
		return yield(p), nil
	})
}

// IterValues yields a proxy over each used slot's value; fails Type if the
// value type is empty (set semantics).
func (v HashTable) IterValues(yield func(*Proxy) bool) error {
	if v.htType().valueType == nil {
		return newErr(KindType, "IterValues", nil)
	}
	return v.iterate(func(entryOff Offset) (bool, error) {
		p, err := v.st.readSlot(v.valueSlot(entryOff), v.htType().valueType)
		if err != nil {
			return false, err
		}
		return yield(p), nil
	})
}

// IterItems yields each used slot's key and value; fails Type for set
// semantics.
func (v HashTable) IterItems(yield func(key, value *Proxy) bool) error {
	if v.htType().valueType == nil {
		return newErr(KindType, "IterItems", nil)
	}
	return v.iterate(func(entryOff Offset) (bool, error) {
		k, err := v.st.readSlot(v.keySlot(entryOff), v.htType().keyType)
		if err != nil {
			return false, err
		}
		val, err := v.st.readSlot(v.valueSlot(entryOff), v.htType().valueType)
		if err != nil {
			return false, err
		}
		return yield(k, val), nil
	})
}

func (v HashTable) iterate(visit func(entryOff Offset) (bool, error)) error {
	capacity, _, _, entries, err := v.header()
	if err != nil {
		return err
	}
	for i := 0; i < capacity; i++ {
		off := v.entryOffset(entries, uint64(i))
		if !v.isUsed(off) {
			continue
		}
		cont, err := visit(off)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
	return nil
}

// createDefault builds a fresh, zero-valued stand-alone instance of t for
// the default-dict behavior.
func (st *Storage) createDefault(t Type) (Offset, error) {
	switch tt := t.(type) {
	case ByteStringType:
		bs, err := st.NewByteString(nil)
		if err != nil {
			return 0, err
		}
		defer bs.Close()
		return bs.off, nil
	case *StructType:
		return st.file.allocate(tt.AllocSize())
	case *ListType:
		l, err := st.NewList(tt)
		if err != nil {
			return 0, err
		}
		defer l.Close()
		return l.off, nil
	case *HashTableType:
		h, err := st.NewHashTable(tt, 4)
		if err != nil {
			return 0, err
		}
		defer h.Close()
		return h.off, nil
	case *SkipListType:
		sl, err := st.NewSkipList(tt)
		if err != nil {
			return 0, err
		}
		defer sl.Close()
		return sl.off, nil
	case *NodeType:
		n, err := st.NewNode(tt)
		if err != nil {
			return 0, err
		}
		defer n.Close()
		return n.off, nil
	default:
		return 0, errf(KindValueErr, "default", nil, "type %s has no default value", t.Name())
	}
}
