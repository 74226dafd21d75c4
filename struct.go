package ptypes

// VolatileBase names a non-persistent base class. DefineStruct takes
// volatile base names, which contribute no fields to the persisted layout;
// they are stored with the structure's descriptor and restored by name on
// reopen. This package does not resolve them or inspect their attributes.
type VolatileBase struct {
	Name string
}

// Resolver is the interface for looking up a VolatileBase by name. Open
// does not take or call a Resolver.
type Resolver interface {
	Resolve(name string) (*VolatileBase, bool)
}

// StructType is a composite by-reference value: a sequence of named
// fields whose offsets and widths are fixed at type-definition time and
// summed to the structure's allocation size.
type StructType struct {
	name          string
	bases         []*StructType
	volatileBases []string
	fields        []Field // canonical (lexicographically offset-sorted)
}

func (t *StructType) Name() string      { return t.name }
func (*StructType) ByReference() bool   { return true }
func (*StructType) AssignSize() int     { return 8 }
func (t *StructType) AllocSize() int {
	size := 0
	for _, f := range t.fields {
		size += f.Type.AssignSize()
	}
	return size
}
func (t *StructType) Fields() []Field { return append([]Field(nil), t.fields...) }

func (t *StructType) isSubtypeOf(other *StructType) bool {
	if t == other {
		return true
	}
	for _, b := range t.bases {
		if b.isSubtypeOf(other) {
			return true
		}
	}
	return false
}

func (t *StructType) descriptor() *typeDescriptor {
	baseNames := make([]string, 0, len(t.bases)+len(t.volatileBases))
	for _, b := range t.bases {
		baseNames = append(baseNames, b.name)
	}
	baseNames = append(baseNames, t.volatileBases...)
	fds := make([]fieldDescriptor, len(t.fields))
	for i, f := range t.fields {
		fds[i] = fieldDescriptor{Name: f.Name, TypeName: f.Type.Name()}
	}
	return &typeDescriptor{Kind: descStruct, ClassName: t.name, Bases: baseNames, Fields: fds}
}

// buildStructFields implements the inheritance rule: the derived
// layout is the concatenation of each base's canonical fields followed by
// the derived's own, re-canonicalized by the usual field sort rule. Redefining an
// inherited field is allowed iff the new type is the same as, a supertype
// of, or a subtype of the base's field type; subtype redefinition takes
// effect, same/supertype redefinitions are accepted and ignored, anything
// else fails Type.
func buildStructFields(bases []*StructType, own []FieldDef) ([]FieldDef, error) {
	merged := make([]FieldDef, 0, len(own)+4)
	index := make(map[string]int)
	for _, b := range bases {
		for _, f := range b.fields {
			if i, exists := index[f.Name]; exists {
				merged[i] = FieldDef{Name: f.Name, Type: f.Type}
				continue
			}
			index[f.Name] = len(merged)
			merged = append(merged, FieldDef{Name: f.Name, Type: f.Type})
		}
	}
	for _, f := range own {
		i, exists := index[f.Name]
		if !exists {
			index[f.Name] = len(merged)
			merged = append(merged, f)
			continue
		}
		existing := merged[i].Type
		resolved, err := resolveFieldRedefinition(existing, f.Type)
		if err != nil {
			return nil, err
		}
		merged[i] = FieldDef{Name: f.Name, Type: resolved}
	}
	return merged, nil
}

// Struct is a proxy over a structure value, giving named-field access on
// top of the positional Field/readField/writeField primitives.
type Struct struct{ *Proxy }

func (st *Storage) wrapStruct(t *StructType, off Offset) Struct {
	return Struct{st.newProxy(t, off)}
}

// NewStruct bump-allocates a zeroed instance of t: its storage is
// allocated and initialized in place.
func (st *Storage) NewStruct(t *StructType) (Struct, error) {
	if err := st.assertOpen("NewStruct"); err != nil {
		return Struct{}, err
	}
	off, err := st.file.allocate(t.AllocSize())
	if err != nil {
		return Struct{}, err
	}
	return st.wrapStruct(t, off), nil
}

func (v Struct) structType() *StructType { return v.typ.(*StructType) }

// Field reads the named field, returning a proxy over its value (or nil for
// a null by-reference field).
func (v Struct) Field(name string) (*Proxy, error) {
	if err := v.assertLive("Struct.Field"); err != nil {
		return nil, err
	}
	f, ok := fieldByName(v.structType().fields, name)
	if !ok {
		return nil, errf(KindValueErr, "Struct.Field", nil, "%s has no field %q", v.structType().name, name)
	}
	return v.st.readField(v.off, f)
}

// SetField assigns the named field per the usual assignment contract: src may
// be an existing persistent value, a typed wrapper (Int, ByteString, ...),
// nil (by-reference only), or a foreign Go scalar/[]byte/string.
func (v Struct) SetField(name string, value any) error {
	if err := v.assertLive("Struct.SetField"); err != nil {
		return err
	}
	f, ok := fieldByName(v.structType().fields, name)
	if !ok {
		return errf(KindValueErr, "Struct.SetField", nil, "%s has no field %q", v.structType().name, name)
	}
	return v.st.assignSlot(v.off+Offset(f.Offset), f.Type, value)
}

func resolveFieldRedefinition(base, derived Type) (Type, error) {
	if base == derived {
		return base, nil
	}
	bs, baseIsStruct := base.(*StructType)
	ds, derivedIsStruct := derived.(*StructType)
	if baseIsStruct && derivedIsStruct {
		if ds.isSubtypeOf(bs) {
			return derived, nil // subtype redefinition takes effect
		}
		if bs.isSubtypeOf(ds) {
			return base, nil // supertype redefinition: accepted, ignored
		}
	}
	return nil, errf(KindType, "define", nil,
		"field redefinition %s -> %s is neither a subtype nor a supertype", nameOrNil(base), nameOrNil(derived))
}
