package ptypes

// IntType and FloatType are the two by-value scalar types. By-value
// types refuse stand-alone creation; an Int/Float only exists as
// the bytes of a containing slot (a struct field, a container's inline
// value slot, a skip-list node's value slot).
type IntType struct{}

func (IntType) Name() string     { return "Int" }
func (IntType) ByReference() bool { return false }
func (IntType) AssignSize() int  { return 8 }

func (t IntType) descriptor() *typeDescriptor {
	return &typeDescriptor{Kind: descInt, ClassName: t.Name()}
}

type FloatType struct{}

func (FloatType) Name() string     { return "Float" }
func (FloatType) ByReference() bool { return false }
func (FloatType) AssignSize() int  { return 8 }

func (t FloatType) descriptor() *typeDescriptor {
	return &typeDescriptor{Kind: descFloat, ClassName: t.Name()}
}

// Int is a proxy over an 8-byte slot holding a 64-bit signed integer.
type Int struct{ *Proxy }

func (st *Storage) wrapInt(off Offset) Int {
	return Int{st.newProxy(builtinInt, off)}
}

func (v Int) Get() (int64, error) {
	if err := v.assertLive("Int.Get"); err != nil {
		return 0, err
	}
	return getInt64(v.bytes(8)), nil
}

// Set overwrites the slot in place, routed through the redo log.
func (v Int) Set(n int64) error {
	if err := v.assertLive("Int.Set"); err != nil {
		return err
	}
	var buf [8]byte
	putInt64(buf[:], n)
	return v.st.writeThroughLog(v.off, buf[:])
}

func (v Int) Increment() error {
	n, err := v.Get()
	if err != nil {
		return err
	}
	return v.Set(n + 1)
}

func (v Int) Add(delta int64) error {
	n, err := v.Get()
	if err != nil {
		return err
	}
	return v.Set(n + delta)
}

func (v Int) SetBit(bit uint) error {
	n, err := v.Get()
	if err != nil {
		return err
	}
	return v.Set(n | (1 << bit))
}

func (v Int) ClearBit(bit uint) error {
	n, err := v.Get()
	if err != nil {
		return err
	}
	return v.Set(n &^ (1 << bit))
}

func (v Int) TestBit(bit uint) (bool, error) {
	n, err := v.Get()
	if err != nil {
		return false, err
	}
	return n&(1<<bit) != 0, nil
}

// Compare orders v against another Int, or a plain int64, using the usual
// numeric order.
func (v Int) Compare(other any) (int, error) {
	a, err := v.Get()
	if err != nil {
		return 0, err
	}
	var b int64
	switch o := other.(type) {
	case Int:
		b, err = o.Get()
		if err != nil {
			return 0, err
		}
	case int64:
		b = o
	case int:
		b = int64(o)
	default:
		return 0, errf(KindType, "Int.Compare", nil, "cannot compare Int to %T", other)
	}
	switch {
	case a < b:
		return -1, nil
	case a > b:
		return 1, nil
	default:
		return 0, nil
	}
}

// Float is a proxy over an 8-byte slot holding a 64-bit float.
type Float struct{ *Proxy }

func (st *Storage) wrapFloat(off Offset) Float {
	return Float{st.newProxy(builtinFloat, off)}
}

func (v Float) Get() (float64, error) {
	if err := v.assertLive("Float.Get"); err != nil {
		return 0, err
	}
	return getFloat64(v.bytes(8)), nil
}

func (v Float) Set(f float64) error {
	if err := v.assertLive("Float.Set"); err != nil {
		return err
	}
	var buf [8]byte
	putFloat64(buf[:], f)
	return v.st.writeThroughLog(v.off, buf[:])
}

func (v Float) Add(delta float64) error {
	f, err := v.Get()
	if err != nil {
		return err
	}
	return v.Set(f + delta)
}

func (v Float) Compare(other any) (int, error) {
	a, err := v.Get()
	if err != nil {
		return 0, err
	}
	var b float64
	switch o := other.(type) {
	case Float:
		b, err = o.Get()
		if err != nil {
			return 0, err
		}
	case float64:
		b = o
	default:
		return 0, errf(KindType, "Float.Compare", nil, "cannot compare Float to %T", other)
	}
	switch {
	case a < b:
		return -1, nil
	case a > b:
		return 1, nil
	default:
		return 0, nil
	}
}

var (
	builtinInt   = IntType{}
	builtinFloat = FloatType{}
)
