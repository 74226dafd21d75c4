package ptypes

import (
	"bytes"
	"math/rand"
)

// OrderFunc compares the values stored at two skip-list node offsets. Skip
// lists key off a small *named* registry of pre-compiled comparators,
// referenced by a short tag persisted with the type, rather than
// executable code.
type OrderFunc func(st *Storage, a, b Offset) (int, error)

var orderFuncs = map[string]OrderFunc{}

// RegisterOrderFunc adds a named comparator to the package-level registry.
// Skip lists persist only the tag, never the function.
func RegisterOrderFunc(tag string, fn OrderFunc) { orderFuncs[tag] = fn }

func lookupOrderFunc(tag string) (OrderFunc, bool) {
	fn, ok := orderFuncs[tag]
	return fn, ok
}

func init() {
	RegisterOrderFunc("int-asc", func(st *Storage, a, b Offset) (int, error) {
		av := getInt64(st.file.bytes(a, 8))
		bv := getInt64(st.file.bytes(b, 8))
		return cmpInt64(av, bv), nil
	})
	RegisterOrderFunc("float-asc", func(st *Storage, a, b Offset) (int, error) {
		av := getFloat64(st.file.bytes(a, 8))
		bv := getFloat64(st.file.bytes(b, 8))
		return cmpFloat64(av, bv), nil
	})
	RegisterOrderFunc("bytestring-asc", func(st *Storage, a, b Offset) (int, error) {
		return bytes.Compare(readByteStringBytes(st, a), readByteStringBytes(st, b)), nil
	})
}

func readByteStringBytes(st *Storage, off Offset) []byte {
	n := int(getUint32(st.file.bytes(off, 4)))
	return st.file.bytes(off+4, n)
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpFloat64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// defaultOrderTag picks the built-in comparator for a value that is
// orderable on its own: by-value scalars and byte strings qualify;
// structures do not.
func defaultOrderTag(elem Type) (string, error) {
	switch elem.(type) {
	case IntType:
		return "int-asc", nil
	case FloatType:
		return "float-asc", nil
	case ByteStringType:
		return "bytestring-asc", nil
	default:
		return "", errf(KindType, "SkipList", nil, "type %s has no natural order; pass an order tag", elem.Name())
	}
}

const skipListMaxLevel = 32

// SkipListType is a by-reference ordered value carrying the offset of a
// sentinel head node and an element count.
type SkipListType struct {
	name     string
	elem     Type
	orderTag string // empty means "use elem's natural order"
}

func (t *SkipListType) Name() string    { return t.name }
func (*SkipListType) ByReference() bool { return true }
func (*SkipListType) AssignSize() int   { return 8 }
func (*SkipListType) AllocSize() int    { return 16 } // head offset + count

func (t *SkipListType) descriptor() *typeDescriptor {
	return &typeDescriptor{Kind: descSkipList, ClassName: t.name, Params: []string{t.elem.Name()}, OrderTag: t.orderTag}
}

func (t *SkipListType) compareFunc() (OrderFunc, error) {
	tag := t.orderTag
	if tag == "" {
		var err error
		tag, err = defaultOrderTag(t.elem)
		if err != nil {
			return nil, err
		}
	}
	fn, ok := lookupOrderFunc(tag)
	if !ok {
		return nil, errf(KindType, "SkipList", nil, "unknown order tag %q", tag)
	}
	return fn, nil
}

func (t *SkipListType) nodeHeaderSize() int { return 16 + t.elem.AssignSize() } // level, nextArrayOff, value

// Skip-list header: headOffset:8 count:8.
const (
	slHeadOff  = 0
	slCountOff = 8
)

// Node header: level:8 nextArrayOff:8 valueSlot.
const (
	nodeLevelOff    = 0
	nodeNextArrOff  = 8
	nodeValueOff    = 16
)

type SkipList struct{ *Proxy }

func (st *Storage) wrapSkipList(t *SkipListType, off Offset) SkipList {
	return SkipList{st.newProxy(t, off)}
}

// NewSkipList allocates an empty skip list with a level-1 sentinel head.
func (st *Storage) NewSkipList(t *SkipListType) (SkipList, error) {
	if err := st.assertOpen("NewSkipList"); err != nil {
		return SkipList{}, err
	}
	headOff, err := st.allocNode(t, 1)
	if err != nil {
		return SkipList{}, err
	}
	listOff, err := st.file.allocate(16)
	if err != nil {
		return SkipList{}, err
	}
	buf := make([]byte, 16)
	putOffset(buf[slHeadOff:], headOff)
	putUint64(buf[slCountOff:], 0)
	if err := st.writeThroughLog(listOff, buf); err != nil {
		return SkipList{}, err
	}
	return st.wrapSkipList(t, listOff), nil
}

func (st *Storage) allocNode(t *SkipListType, level int) (Offset, error) {
	nodeOff, err := st.file.allocate(t.nodeHeaderSize())
	if err != nil {
		return 0, err
	}
	nextArrOff, err := st.file.allocate(level * 8)
	if err != nil {
		return 0, err
	}
	buf := make([]byte, 16)
	putUint64(buf[nodeLevelOff:], uint64(level))
	putOffset(buf[nodeNextArrOff:], nextArrOff)
	if err := st.writeThroughLog(nodeOff, buf); err != nil {
		return 0, err
	}
	return nodeOff, nil
}

func (v SkipList) listType() *SkipListType { return v.typ.(*SkipListType) }

func (v SkipList) head() (Offset, error) {
	if err := v.assertLive("SkipList"); err != nil {
		return 0, err
	}
	return getOffset(v.st.file.bytes(v.off+slHeadOff, 8)), nil
}

func (v SkipList) Len() (int, error) {
	if err := v.assertLive("SkipList"); err != nil {
		return 0, err
	}
	return int(getUint64(v.st.file.bytes(v.off+slCountOff, 8))), nil
}

func (v SkipList) nodeLevel(off Offset) int {
	return int(getUint64(v.st.file.bytes(off+nodeLevelOff, 8)))
}

func (v SkipList) nodeNext(off Offset, level int) Offset {
	arrOff := getOffset(v.st.file.bytes(off+nodeNextArrOff, 8))
	return getOffset(v.st.file.bytes(arrOff+Offset((level-1)*8), 8))
}

func (v SkipList) setNodeNext(off Offset, level int, target Offset) error {
	arrOff := getOffset(v.st.file.bytes(off+nodeNextArrOff, 8))
	var buf [8]byte
	putOffset(buf[:], target)
	return v.st.writeThroughLog(arrOff+Offset((level-1)*8), buf[:])
}

func (v SkipList) nodeValueOffset(off Offset) Offset { return off + nodeValueOff }

func randomLevel() int {
	level := 1
	for level < skipListMaxLevel && rand.Float64() < 1.0/3.0 {
		level++
	}
	return level
}

// growHead extends the sentinel head's next-pointer array up to newLevel,
// padding with null pointers, when an insert picks a level higher than any
// seen before.
func (v SkipList) growHead(head Offset, newLevel int) error {
	oldLevel := v.nodeLevel(head)
	if newLevel <= oldLevel {
		return nil
	}
	oldArrOff := getOffset(v.st.file.bytes(head+nodeNextArrOff, 8))
	newArrOff, err := v.st.file.allocate(newLevel * 8)
	if err != nil {
		return err
	}
	old := v.st.file.bytes(oldArrOff, oldLevel*8)
	buf := make([]byte, newLevel*8)
	copy(buf, old)
	if err := v.st.writeThroughLog(newArrOff, buf); err != nil {
		return err
	}
	hdr := make([]byte, 16)
	putUint64(hdr[nodeLevelOff:], uint64(newLevel))
	putOffset(hdr[nodeNextArrOff:], newArrOff)
	return v.st.writeThroughLog(head, hdr)
}

// Insert picks a random level, finds the predecessor at each level (the
// "cut list"), and splices the new node in.
func (v SkipList) Insert(value any) error {
	cmp, err := v.listType().compareFunc()
	if err != nil {
		return err
	}
	head, err := v.head()
	if err != nil {
		return err
	}
	newLevel := randomLevel()
	if err := v.growHead(head, newLevel); err != nil {
		return err
	}
	headLevel := v.nodeLevel(head)

	t := v.listType()
	nodeOff, err := v.st.allocNode(t, newLevel)
	if err != nil {
		return err
	}
	if err := v.st.assignSlot(v.nodeValueOffset(nodeOff), t.elem, value); err != nil {
		return err
	}

	cur := head
	for level := headLevel; level >= 1; level-- {
		for {
			next := v.nodeNext(cur, level)
			if next.IsNull() {
				break
			}
			c, err := cmp(v.st, v.nodeValueOffset(next), v.nodeValueOffset(nodeOff))
			if err != nil {
				return err
			}
			if c >= 0 {
				break
			}
			cur = next
		}
		if level <= newLevel {
			next := v.nodeNext(cur, level)
			if err := v.setNodeNext(nodeOff, level, next); err != nil {
				return err
			}
			if err := v.setNodeNext(cur, level, nodeOff); err != nil {
				return err
			}
		}
	}

	var buf [8]byte
	n, err := v.Len()
	if err != nil {
		return err
	}
	putUint64(buf[:], uint64(n+1))
	return v.st.writeThroughLog(v.off+slCountOff, buf[:])
}

// Find traverses from the top level down searching for key, failing
// KeyNotFound if absent.
func (v SkipList) Find(key any) (*Proxy, error) {
	keyOff, cleanup, err := v.materializeKey(key)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	cmp, err := v.listType().compareFunc()
	if err != nil {
		return nil, err
	}
	head, err := v.head()
	if err != nil {
		return nil, err
	}
	cur := head
	for level := v.nodeLevel(head); level >= 1; level-- {
		for {
			next := v.nodeNext(cur, level)
			if next.IsNull() {
				break
			}
			c, err := cmp(v.st, v.nodeValueOffset(next), keyOff)
			if err != nil {
				return nil, err
			}
			if c >= 0 {
				break
			}
			cur = next
		}
	}
	candidate := v.nodeNext(cur, 1)
	if candidate.IsNull() {
		return nil, newErr(KindKeyNotFound, "Find", nil)
	}
	c, err := cmp(v.st, v.nodeValueOffset(candidate), keyOff)
	if err != nil {
		return nil, err
	}
	if c != 0 {
		return nil, newErr(KindKeyNotFound, "Find", nil)
	}
	return v.st.readSlot(v.nodeValueOffset(candidate), v.listType().elem)
}

// materializeKey stages a foreign key (plain int64/float64/[]byte) into a
// throwaway slot of the element's width so it can be compared with the
// same OrderFunc used for stored nodes. Each call bump-allocates that slot
// (a new ByteString for byte-string elements); the space is not reclaimed.
func (v SkipList) materializeKey(key any) (Offset, func(), error) {
	if p, ok := key.(*Proxy); ok {
		return p.off, func() {}, nil
	}
	t := v.listType().elem
	if !t.ByReference() {
		off, err := v.st.file.allocate(t.AssignSize())
		if err != nil {
			return 0, nil, err
		}
		if err := v.st.assignSlot(off, t, key); err != nil {
			return 0, nil, err
		}
		return off, func() {}, nil
	}
	bs, ok := t.(ByteStringType)
	if ok {
		b, ok2 := toBytes(key)
		if !ok2 {
			return 0, nil, errf(KindType, "SkipList", nil, "cannot compare %T against %s", key, bs.Name())
		}
		v2, err := v.st.NewByteString(b)
		if err != nil {
			return 0, nil, err
		}
		return v2.off, func() { v2.Close() }, nil
	}
	return 0, nil, errf(KindType, "SkipList", nil, "unsupported key %T", key)
}

// Iterate yields values in nondecreasing order (level 0, i.e. level 1 in
// this 1-based implementation).
func (v SkipList) Iterate(yield func(*Proxy) bool) error {
	return v.Range(nil, nil, yield)
}

// Range yields values from the first node with key >= from (or the head if
// from is null) up to the first node with key >= to, exclusive.
func (v SkipList) Range(from, to any, yield func(*Proxy) bool) error {
	cmp, err := v.listType().compareFunc()
	if err != nil {
		return err
	}
	head, err := v.head()
	if err != nil {
		return err
	}
	cur := head
	if from != nil {
		fromOff, cleanup, err := v.materializeKey(from)
		if err != nil {
			return err
		}
		defer cleanup()
		for level := v.nodeLevel(head); level >= 1; level-- {
			for {
				next := v.nodeNext(cur, level)
				if next.IsNull() {
					break
				}
				c, err := cmp(v.st, v.nodeValueOffset(next), fromOff)
				if err != nil {
					return err
				}
				if c >= 0 {
					break
				}
				cur = next
			}
		}
	}

	var toOff Offset
	var hasTo bool
	if to != nil {
		off, cleanup, err := v.materializeKey(to)
		if err != nil {
			return err
		}
		defer cleanup()
		toOff, hasTo = off, true
	}

	node := v.nodeNext(cur, 1)
	for !node.IsNull() {
		if hasTo {
			c, err := cmp(v.st, v.nodeValueOffset(node), toOff)
			if err != nil {
				return err
			}
			if c >= 0 {
				return nil
			}
		}
		p, err := v.st.readSlot(v.nodeValueOffset(node), v.listType().elem)
		if err != nil {
			return err
		}
		if !yield(p) {
			return nil
		}
		node = v.nodeNext(node, 1)
	}
	return nil
}
