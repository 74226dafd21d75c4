package ptypes

import "sort"

// Field is a (name, type, offset-in-containing-structure) triple.
type Field struct {
	Name   string
	Type   Type
	Offset int // byte offset within the structure
}

// sortFieldsCanonically fixes field offsets in lexicographic name order,
// regardless of declaration order, so reopening a file reconstructs the
// same layout every time.
func sortFieldsCanonically(defs []FieldDef) []Field {
	sorted := append([]FieldDef(nil), defs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	fields := make([]Field, len(sorted))
	off := 0
	for i, d := range sorted {
		fields[i] = Field{Name: d.Name, Type: d.Type, Offset: off}
		off += d.Type.AssignSize()
	}
	return fields
}

// FieldDef is the declaration-order input to DefineStruct; Offset is
// assigned by sortFieldsCanonically.
type FieldDef struct {
	Name string
	Type Type
}

// readSlot reads a generic inline slot (container entry, skip-list node
// value) that isn't part of a named structure field.
func (st *Storage) readSlot(slot Offset, t Type) (*Proxy, error) {
	return st.readField(slot, Field{Type: t})
}

func fieldByName(fields []Field, name string) (Field, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// readField resolves a field read: by-value types yield a proxy over the
// slot itself; by-reference types read the stored offset and yield null or
// a proxy over the target.
func (st *Storage) readField(base Offset, f Field) (*Proxy, error) {
	slot := base + Offset(f.Offset)
	if !f.Type.ByReference() {
		return st.newProxy(f.Type, slot), nil
	}
	target := getOffset(st.file.bytes(slot, 8))
	if target.IsNull() {
		return nil, nil
	}
	return st.newProxy(f.Type, target), nil
}

// writeField implements the field assignment contract. src, if non-nil, is
// an existing persistent value (asserted to be a subtype of f.Type and to
// belong to st); a nil src is a null assignment, valid only for
// by-reference fields. Foreign by-value bytes go through writeFieldBytes.
func (st *Storage) writeField(base Offset, f Field, src *Proxy) error {
	slot := base + Offset(f.Offset)
	if src == nil {
		// null assignment: by-value foreign-zero is handled by callers
		// via writeFieldBytes; here null only makes sense by-reference.
		if !f.Type.ByReference() {
			return errf(KindValueErr, "writeField", nil, "by-value field %q cannot be assigned null", f.Name)
		}
		var zero [8]byte
		return st.writeThroughLog(slot, zero[:])
	}
	if err := assertSameStorage(st, src, "writeField"); err != nil {
		return err
	}
	if err := assertSubtype(src.typ, f.Type, "writeField"); err != nil {
		return err
	}
	if !f.Type.ByReference() {
		data := st.file.bytes(src.off, f.Type.AssignSize())
		return st.writeThroughLog(slot, data)
	}
	var buf [8]byte
	putOffset(buf[:], src.off)
	return st.writeThroughLog(slot, buf[:])
}

// writeFieldBytes assigns a by-value field directly from raw bytes (a
// foreign plain Go value already encoded by the caller).
func (st *Storage) writeFieldBytes(base Offset, f Field, data []byte) error {
	if f.Type.ByReference() {
		return errf(KindValueErr, "writeField", nil, "field %q is by-reference", f.Name)
	}
	slot := base + Offset(f.Offset)
	return st.writeThroughLog(slot, data)
}
