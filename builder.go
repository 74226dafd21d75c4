package ptypes

// SchemaBuilder is passed to the populate-schema callback. It carries the
// pre-registered built-in types plus every type the callback defines, and
// is sealed into an immutable Schema once population finishes; nothing can
// register a new type against it afterward.
type SchemaBuilder struct {
	schema *Schema
	sealed bool
}

func newSchemaBuilder() *SchemaBuilder {
	b := &SchemaBuilder{schema: newSchema()}
	// Built-ins are pre-registered so user callbacks can reference them
	// by value (Int(), Float(), ByteString()) without redefining them.
	// The hidden list-of-byte-string and set-of-byte-string used to
	// persist the type list and the string registry are registered too,
	// under reserved "__"-prefixed names: they are not exposed via
	// Schema.Type and are reconstructed as a side effect of opening their
	// owning container, never independently persisted.
	_ = b.schema.register(builtinInt)
	_ = b.schema.register(builtinFloat)
	_ = b.schema.register(builtinByteString)
	_ = b.schema.register(internalTypeListType)
	_ = b.schema.register(internalStringSetType)
	return b
}

func (b *SchemaBuilder) assertOpen() {
	if b.sealed {
		panic("ptypes: SchemaBuilder used after seal")
	}
}

func (b *SchemaBuilder) Int() Type        { return builtinInt }
func (b *SchemaBuilder) Float() Type      { return builtinFloat }
func (b *SchemaBuilder) ByteString() Type { return builtinByteString }

// DefineStruct registers a new structure type, merging bases' fields per
// the inheritance rule before sorting own+inherited fields canonically.
func (b *SchemaBuilder) DefineStruct(name string, bases []*StructType, volatileBases []string, own []FieldDef) (*StructType, error) {
	b.assertOpen()
	merged, err := buildStructFields(bases, own)
	if err != nil {
		return nil, err
	}
	st := &StructType{
		name:          name,
		bases:         append([]*StructType(nil), bases...),
		volatileBases: volatileBases,
		fields:        sortFieldsCanonically(merged),
	}
	if err := b.schema.register(st); err != nil {
		return nil, err
	}
	return st, nil
}

func (b *SchemaBuilder) DefineList(name string, elem Type) (*ListType, error) {
	b.assertOpen()
	t := &ListType{name: name, elem: elem}
	if err := b.schema.register(t); err != nil {
		return nil, err
	}
	return t, nil
}

// DefineHashTable registers a keyed hash table type. valueType may be nil
// for set semantics.
func (b *SchemaBuilder) DefineHashTable(name string, keyType, valueType Type) (*HashTableType, error) {
	b.assertOpen()
	t := &HashTableType{name: name, keyType: keyType, valueType: valueType}
	if err := b.schema.register(t); err != nil {
		return nil, err
	}
	return t, nil
}

func (b *SchemaBuilder) DefineSet(name string, keyType Type) (*HashTableType, error) {
	return b.DefineHashTable(name, keyType, nil)
}

// DefineDict registers a default-dict type: indexing an absent
// key creates and returns a freshly constructed value of valueType.
func (b *SchemaBuilder) DefineDict(name string, keyType, valueType Type) (*HashTableType, error) {
	b.assertOpen()
	t := &HashTableType{name: name, keyType: keyType, valueType: valueType, isDefault: true}
	if err := b.schema.register(t); err != nil {
		return nil, err
	}
	return t, nil
}

// DefineSkipList registers an ordered skip list type. orderTag names an
// entry in the package-level order-function registry (orderFuncs); empty
// means order by the element's own natural order.
func (b *SchemaBuilder) DefineSkipList(name string, elem Type, orderTag string) (*SkipListType, error) {
	b.assertOpen()
	if orderTag != "" {
		if _, ok := lookupOrderFunc(orderTag); !ok {
			return nil, errf(KindValueErr, "define", nil, "unknown skip list order tag %q", orderTag)
		}
	}
	t := &SkipListType{name: name, elem: elem, orderTag: orderTag}
	if err := b.schema.register(t); err != nil {
		return nil, err
	}
	return t, nil
}

func (b *SchemaBuilder) DefineNode(name string, valueType Type) (*NodeType, error) {
	b.assertOpen()
	t := &NodeType{name: name, valueType: valueType}
	if err := b.schema.register(t); err != nil {
		return nil, err
	}
	return t, nil
}

func (b *SchemaBuilder) DefineEdge(name string, valueType Type, fromType, toType *NodeType) (*EdgeType, error) {
	b.assertOpen()
	t := &EdgeType{name: name, valueType: valueType, fromType: fromType, toType: toType}
	if err := b.schema.register(t); err != nil {
		return nil, err
	}
	return t, nil
}

func (b *SchemaBuilder) DefineBuffer(name string) (*BufferType, error) {
	b.assertOpen()
	t := &BufferType{name: name}
	if err := b.schema.register(t); err != nil {
		return nil, err
	}
	return t, nil
}

// seal freezes the builder and returns the Schema it built.
func (b *SchemaBuilder) seal() *Schema {
	b.sealed = true
	return b.schema
}
