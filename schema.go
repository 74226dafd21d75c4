package ptypes

// Type is a named persistent type: an assignment kind (by-value or
// by-reference) and an assignment size.
//
// Types whose Name begins with "__" are internal (the hidden
// list-of-byte-string / set-of-byte-string used to persist the type list
// and the string registry): they are registered but not returned by
// Schema.Type, and are not independently persisted.
type Type interface {
	Name() string
	ByReference() bool
	// AssignSize is the width written into a containing slot: the
	// value's own width for by-value types, sizeof(Offset) for
	// by-reference types.
	AssignSize() int
}

// sizedType is implemented by fixed-size by-reference types (structures,
// containers with a fixed header) whose AllocSize backs generic
// "create a default value of this type" paths (e.g. default dict).
type sizedType interface {
	Type
	AllocSize() int
}

// descriptorSource is implemented by every type the schema registry can
// persist a reflective descriptor for.
type descriptorSource interface {
	Type
	descriptor() *typeDescriptor
}

// Schema is the named set of persistent types belonging to a Storage:
// name -> Type, plus insertion order for reload. It is built incrementally
// by a SchemaBuilder and then sealed, rather than left open for mutation
// after population finishes.
type Schema struct {
	byName map[string]Type
	order  []Type
}

func newSchema() *Schema {
	return &Schema{byName: make(map[string]Type)}
}

// Type looks up a named, user-visible type. Internal ("__"-prefixed) types
// are registered but never returned here.
func (s *Schema) Type(name string) Type {
	if isInternalName(name) {
		return nil
	}
	return s.byName[name]
}

func (s *Schema) register(t Type) error {
	name := t.Name()
	if _, exists := s.byName[name]; exists {
		return errf(KindValueErr, "define", nil, "type %q already defined", name)
	}
	s.byName[name] = t
	s.order = append(s.order, t)
	return nil
}

func (s *Schema) mustType(name string) (Type, error) {
	t, ok := s.byName[name]
	if !ok {
		return nil, errf(KindCorruption, "open", nil, "unknown type %q in persisted type list", name)
	}
	return t, nil
}

func isInternalName(name string) bool {
	return len(name) >= 2 && name[0] == '_' && name[1] == '_'
}

// assertSameStorage enforces the field-assignment/container-insertion rule
// that a persistent value argument must belong to the same storage.
func assertSameStorage(st *Storage, p *Proxy, op string) error {
	if p != nil && p.st != st {
		return errf(KindType, op, nil, "value belongs to a different storage")
	}
	return nil
}

// assertSubtype enforces the field-assignment type-compatibility rule: the
// value's type must be want or a subtype of want. The only subtyping
// relation in this engine is struct inheritance; every other pairing
// requires identity.
func assertSubtype(have, want Type, op string) error {
	if have == want {
		return nil
	}
	if hs, ok := have.(*StructType); ok {
		if ws, ok := want.(*StructType); ok && hs.isSubtypeOf(ws) {
			return nil
		}
	}
	return errf(KindType, op, nil, "value of type %s is not assignable to %s", nameOrNil(have), nameOrNil(want))
}

func nameOrNil(t Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.Name()
}
