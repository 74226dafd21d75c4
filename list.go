package ptypes

// internalTypeListType is the hidden list-of-byte-string used to persist
// the insertion-ordered list of serialized type descriptors.
var internalTypeListType = &ListType{name: "__TypeList", elem: builtinByteString}

// ListType is a singly-linked by-reference value: head and tail offsets;
// entries hold a next-offset and an inline value slot sized per element
// type.
type ListType struct {
	name string
	elem Type
}

func (t *ListType) Name() string    { return t.name }
func (*ListType) ByReference() bool { return true }
func (*ListType) AssignSize() int   { return 8 }
func (*ListType) AllocSize() int    { return 16 } // head offset + tail offset

func (t *ListType) entrySize() int { return 8 + t.elem.AssignSize() }

func (t *ListType) descriptor() *typeDescriptor {
	return &typeDescriptor{Kind: descList, ClassName: t.name, Params: []string{t.elem.Name()}}
}

const (
	listHeadOff = 0
	listTailOff = 8
)

// List is a proxy over a singly-linked list value.
type List struct{ *Proxy }

func (st *Storage) wrapList(t *ListType, off Offset) List {
	return List{st.newProxy(t, off)}
}

// NewList allocates an empty list header (head = tail = null).
func (st *Storage) NewList(t *ListType) (List, error) {
	if err := st.assertOpen("NewList"); err != nil {
		return List{}, err
	}
	off, err := st.file.allocate(t.AllocSize())
	if err != nil {
		return List{}, err
	}
	return st.wrapList(t, off), nil
}

func (v List) listType() *ListType { return v.typ.(*ListType) }

func (v List) head() (Offset, error) {
	if err := v.assertLive("List"); err != nil {
		return 0, err
	}
	return getOffset(v.st.file.bytes(v.off+listHeadOff, 8)), nil
}

func (v List) tail() (Offset, error) {
	if err := v.assertLive("List"); err != nil {
		return 0, err
	}
	return getOffset(v.st.file.bytes(v.off+listTailOff, 8)), nil
}

// newEntry allocates a {next, value} entry and writes value into its slot.
func (v List) newEntry(value any) (Offset, error) {
	t := v.listType()
	entryOff, err := v.st.file.allocate(t.entrySize())
	if err != nil {
		return 0, err
	}
	if err := v.st.assignSlot(entryOff+8, t.elem, value); err != nil {
		return 0, err
	}
	return entryOff, nil
}

// Prepend inserts value at the head in O(1).
func (v List) Prepend(value any) error {
	head, err := v.head()
	if err != nil {
		return err
	}
	entryOff, err := v.newEntry(value)
	if err != nil {
		return err
	}
	var nextBuf [8]byte
	putOffset(nextBuf[:], head)
	if err := v.st.writeThroughLog(entryOff, nextBuf[:]); err != nil {
		return err
	}
	var headBuf [8]byte
	putOffset(headBuf[:], entryOff)
	if err := v.st.writeThroughLog(v.off+listHeadOff, headBuf[:]); err != nil {
		return err
	}
	if head.IsNull() {
		var tailBuf [8]byte
		putOffset(tailBuf[:], entryOff)
		return v.st.writeThroughLog(v.off+listTailOff, tailBuf[:])
	}
	return nil
}

// Append inserts value at the tail in O(1) via the cached tail offset.
func (v List) Append(value any) error {
	entryOff, err := v.newEntry(value)
	if err != nil {
		return err
	}
	tail, err := v.tail()
	if err != nil {
		return err
	}
	var tailBuf [8]byte
	putOffset(tailBuf[:], entryOff)
	if tail.IsNull() {
		if err := v.st.writeThroughLog(v.off+listHeadOff, tailBuf[:]); err != nil {
			return err
		}
	} else {
		if err := v.st.writeThroughLog(tail, tailBuf[:]); err != nil {
			return err
		}
	}
	return v.st.writeThroughLog(v.off+listTailOff, tailBuf[:])
}

// Iterate yields proxies over element values in first-to-last order.
func (v List) Iterate(yield func(*Proxy) bool) error {
	t := v.listType()
	cur, err := v.head()
	if err != nil {
		return err
	}
	for !cur.IsNull() {
		p, err := v.st.readSlot(cur+8, t.elem)
		if err != nil {
			return err
		}
		if p == nil {
			p = v.st.newProxy(t.elem, 0)
		}
		if !yield(p) {
			return nil
		}
		cur = getOffset(v.st.file.bytes(cur, 8))
	}
	return nil
}
