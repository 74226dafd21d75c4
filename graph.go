package ptypes

// NodeType is a property-graph node, parameterized by its inline value
// type. It holds offsets to head-of-in-edge-kinds and
// head-of-out-edge-kinds singly-linked lists, plus an inline value slot.
type NodeType struct {
	name      string
	valueType Type
}

func (t *NodeType) Name() string    { return t.name }
func (*NodeType) ByReference() bool { return true }
func (*NodeType) AssignSize() int   { return 8 }
func (t *NodeType) AllocSize() int  { return 16 + t.valueType.AssignSize() }

func (t *NodeType) descriptor() *typeDescriptor {
	return &typeDescriptor{Kind: descNode, ClassName: t.name, Params: []string{t.valueType.Name()}}
}

// Node header: inKindsHead:8 outKindsHead:8 valueSlot.
const (
	nodeInKindsOff  = 0
	nodeOutKindsOff = 8
	nodeValueSlotOff = 16
)

type Node struct{ *Proxy }

func (st *Storage) wrapNode(t *NodeType, off Offset) Node {
	return Node{st.newProxy(t, off)}
}

// NewNode allocates a node with empty edge-kind lists and a default-zero
// value slot.
func (st *Storage) NewNode(t *NodeType) (Node, error) {
	if err := st.assertOpen("NewNode"); err != nil {
		return Node{}, err
	}
	off, err := st.file.allocate(t.AllocSize())
	if err != nil {
		return Node{}, err
	}
	return st.wrapNode(t, off), nil
}

func (v Node) nodeType() *NodeType { return v.typ.(*NodeType) }

func (v Node) Value() (*Proxy, error) {
	if err := v.assertLive("Node.Value"); err != nil {
		return nil, err
	}
	return v.st.readSlot(v.off+nodeValueSlotOff, v.nodeType().valueType)
}

func (v Node) SetValue(value any) error {
	if err := v.assertLive("Node.SetValue"); err != nil {
		return err
	}
	return v.st.assignSlot(v.off+nodeValueSlotOff, v.nodeType().valueType, value)
}

// kindsHeadOffset returns the slot offset holding the head of this node's
// in- or out- edge-kind list.
func (v Node) kindsHeadOffset(out bool) Offset {
	if out {
		return v.off + nodeOutKindsOff
	}
	return v.off + nodeInKindsOff
}

// Edge-kind list element: classNameOff:8 headOff:8 nextKindOff:8.
const (
	ekClassNameOff = 0
	ekHeadOff      = 8
	ekNextKindOff  = 16
	edgeKindElementSize = 24
)

// findOrCreateKindElement locates the edge-kind list element for kindName
// on this node's in/out list, creating one (prepended) if absent.
func (v Node) findOrCreateKindElement(kindName string, out bool) (Offset, error) {
	st := v.st
	headSlot := v.kindsHeadOffset(out)
	cur := getOffset(st.file.bytes(headSlot, 8))
	for !cur.IsNull() {
		nameOff := getOffset(st.file.bytes(cur+ekClassNameOff, 8))
		if string(readByteStringBytes(st, nameOff)) == kindName {
			return cur, nil
		}
		cur = getOffset(st.file.bytes(cur+ekNextKindOff, 8))
	}

	nameStr, err := st.InternString([]byte(kindName))
	if err != nil {
		return 0, err
	}
	defer nameStr.Close()
	elemOff, err := st.file.allocate(edgeKindElementSize)
	if err != nil {
		return 0, err
	}
	buf := make([]byte, edgeKindElementSize)
	putOffset(buf[ekClassNameOff:], nameStr.off)
	putOffset(buf[ekHeadOff:], 0)
	existingHead := getOffset(st.file.bytes(headSlot, 8))
	putOffset(buf[ekNextKindOff:], existingHead)
	if err := st.writeThroughLog(elemOff, buf); err != nil {
		return 0, err
	}
	var hbuf [8]byte
	putOffset(hbuf[:], elemOff)
	if err := st.writeThroughLog(headSlot, hbuf[:]); err != nil {
		return 0, err
	}
	return elemOff, nil
}

// findKindElement locates the kind element without creating one; returns
// the null offset if the node has no edges of that kind yet.
func (v Node) findKindElement(kindName string, out bool) Offset {
	st := v.st
	cur := getOffset(st.file.bytes(v.kindsHeadOffset(out), 8))
	for !cur.IsNull() {
		nameOff := getOffset(st.file.bytes(cur+ekClassNameOff, 8))
		if string(readByteStringBytes(st, nameOff)) == kindName {
			return cur
		}
		cur = getOffset(st.file.bytes(cur+ekNextKindOff, 8))
	}
	return 0
}

// EdgeType ties two node types to a directed edge carrying an inline
// value.
type EdgeType struct {
	name      string
	valueType Type
	fromType  *NodeType
	toType    *NodeType
}

func (t *EdgeType) Name() string    { return t.name }
func (*EdgeType) ByReference() bool { return true }
func (*EdgeType) AssignSize() int   { return 8 }
func (t *EdgeType) AllocSize() int  { return 32 + t.valueType.AssignSize() }

func (t *EdgeType) descriptor() *typeDescriptor {
	return &typeDescriptor{
		Kind:      descEdge,
		ClassName: t.name,
		Params:    []string{t.valueType.Name(), t.fromType.Name(), t.toType.Name()},
	}
}

// Edge header: from:8 to:8 nextOfFrom:8 nextOfTo:8 valueSlot.
const (
	edgeFromOff       = 0
	edgeToOff         = 8
	edgeNextOfFromOff = 16
	edgeNextOfToOff   = 24
	edgeValueOff      = 32
)

type Edge struct{ *Proxy }

func (st *Storage) wrapEdge(t *EdgeType, off Offset) Edge {
	return Edge{st.newProxy(t, off)}
}

// NewEdge ties from and to together with the edge's value, prepending it
// to from's out-edges-of-this-kind and to's in-edges-of-this-kind lists,
// both O(1). Constructing an edge with a mismatched node type fails
// Type.
func (st *Storage) NewEdge(t *EdgeType, from, to Node, value any) (Edge, error) {
	if err := st.assertOpen("NewEdge"); err != nil {
		return Edge{}, err
	}
	if from.nodeType() != t.fromType {
		return Edge{}, errf(KindType, "NewEdge", nil, "from node has type %s, want %s", from.nodeType().Name(), t.fromType.Name())
	}
	if to.nodeType() != t.toType {
		return Edge{}, errf(KindType, "NewEdge", nil, "to node has type %s, want %s", to.nodeType().Name(), t.toType.Name())
	}

	fromKind, err := from.findOrCreateKindElement(t.name, true)
	if err != nil {
		return Edge{}, err
	}
	toKind, err := to.findOrCreateKindElement(t.name, false)
	if err != nil {
		return Edge{}, err
	}

	edgeOff, err := st.file.allocate(t.AllocSize())
	if err != nil {
		return Edge{}, err
	}
	prevFromHead := getOffset(st.file.bytes(fromKind+ekHeadOff, 8))
	prevToHead := getOffset(st.file.bytes(toKind+ekHeadOff, 8))

	buf := make([]byte, 32)
	putOffset(buf[edgeFromOff:], from.off)
	putOffset(buf[edgeToOff:], to.off)
	putOffset(buf[edgeNextOfFromOff:], prevFromHead)
	putOffset(buf[edgeNextOfToOff:], prevToHead)
	if err := st.writeThroughLog(edgeOff, buf); err != nil {
		return Edge{}, err
	}
	if value != nil {
		if err := st.assignSlot(edgeOff+edgeValueOff, t.valueType, value); err != nil {
			return Edge{}, err
		}
	}

	var headBuf [8]byte
	putOffset(headBuf[:], edgeOff)
	if err := st.writeThroughLog(fromKind+ekHeadOff, headBuf[:]); err != nil {
		return Edge{}, err
	}
	if err := st.writeThroughLog(toKind+ekHeadOff, headBuf[:]); err != nil {
		return Edge{}, err
	}
	return st.wrapEdge(t, edgeOff), nil
}

func (v Edge) edgeType() *EdgeType { return v.typ.(*EdgeType) }

func (v Edge) From() Node {
	off := getOffset(v.st.file.bytes(v.off+edgeFromOff, 8))
	return v.st.wrapNode(v.edgeType().fromType, off)
}

func (v Edge) To() Node {
	off := getOffset(v.st.file.bytes(v.off+edgeToOff, 8))
	return v.st.wrapNode(v.edgeType().toType, off)
}

func (v Edge) Value() (*Proxy, error) {
	if err := v.assertLive("Edge.Value"); err != nil {
		return nil, err
	}
	return v.st.readSlot(v.off+edgeValueOff, v.edgeType().valueType)
}

// OutEdges yields out-edges of kind t, most-recently-inserted first.
func (v Node) OutEdges(t *EdgeType, yield func(Edge) bool) error {
	return v.edges(t, true, yield)
}

// InEdges yields in-edges of kind t, most-recently-inserted first.
func (v Node) InEdges(t *EdgeType, yield func(Edge) bool) error {
	return v.edges(t, false, yield)
}

func (v Node) edges(t *EdgeType, out bool, yield func(Edge) bool) error {
	if err := v.assertLive("Node.Edges"); err != nil {
		return err
	}
	kindElem := v.findKindElement(t.name, out)
	if kindElem.IsNull() {
		return nil
	}
	cur := getOffset(v.st.file.bytes(kindElem+ekHeadOff, 8))
	nextOff := edgeNextOfFromOff
	if !out {
		nextOff = edgeNextOfToOff
	}
	for !cur.IsNull() {
		e := v.st.wrapEdge(t, cur)
		if !yield(e) {
			return nil
		}
		cur = getOffset(v.st.file.bytes(cur+Offset(nextOff), 8))
	}
	return nil
}
