package ptypes

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/embedstore/ptypes/redo"
)

// Options configures Open: the create-time parameters (file size, string
// registry capacity, whether the redo log is enabled, and the schema
// population callback) plus a logger.
type Options struct {
	Logger *slog.Logger

	// FileSize is the requested primary-file size on create, rounded up to
	// the page size. Ignored on reopen. Zero means one page of allocation
	// region.
	FileSize int64

	// RegistrySize is the requested initial capacity of the string
	// registry on create. Ignored on reopen.
	RegistrySize int

	// Journal enables the redo log. When false, mutations are applied
	// directly to the mapping with no torn-write protection: every
	// mutation funnels through Storage.writeThroughLog, which becomes a
	// pass-through when Journal is false.
	Journal bool

	// PopulateSchema is invoked once, at create time, with a fresh
	// SchemaBuilder pre-loaded with the built-in types. It must define
	// every user-visible type this storage will ever use and return the
	// type of the root value. Required on create; ignored on reopen (the
	// schema is reconstructed from the persisted type list instead).
	PopulateSchema func(*SchemaBuilder) (Type, error)
}

// Storage is the runtime object binding a mapped file to a schema, a type
// list, a string registry, a root value, and the optional redo log. Its
// live-handle bookkeeping is adapted in proxy.go as proxies.
type Storage struct {
	mu sync.Mutex

	file    *file
	redoLog *redo.Log
	schema  *Schema
	logger  *slog.Logger

	stringRegistry HashTable
	typeList       List
	root           *Proxy
	rootType       Type

	revision uint64
	current  int // which header slot (0 or 1) is the live one

	proxies liveProxies
	closed  bool
}

func (st *Storage) redoPath() string { return st.file.path + ".redo" }

// isBuiltinType reports whether t is one of the three scalar/byte-string
// built-ins that reattach pre-registers unconditionally, so bootstrap knows
// not to also persist a redundant descriptor for them in the type list.
func isBuiltinType(t Type) bool {
	switch t.(type) {
	case IntType, FloatType, ByteStringType:
		return true
	default:
		return false
	}
}

// Open creates or reopens a storage at path.
func Open(path string, opt Options) (*Storage, error) {
	logger := opt.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	fl, created, err := openFile(path, opt.FileSize)
	if err != nil {
		return nil, err
	}

	st := &Storage{file: fl, logger: logger}

	if opt.Journal {
		rl, err := redo.Open(st.redoPath(), opt.FileSize, logger)
		if err != nil {
			fl.close()
			return nil, newErr(KindIoError, "open", err)
		}
		st.redoLog = rl
	}

	if created {
		if err := st.bootstrap(opt); err != nil {
			fl.close()
			return nil, err
		}
		logger.Debug("ptypes: created", "path", path)
		return st, nil
	}

	if st.redoLog != nil {
		if _, err := st.redoLog.Recover(func(rec redo.Record) error {
			copy(fl.data[rec.TargetOffset:], rec.Data)
			return nil
		}); err != nil {
			fl.close()
			return nil, newErr(KindIoError, "open", err)
		}
	}

	if err := st.reattach(); err != nil {
		fl.close()
		return nil, err
	}
	logger.Debug("ptypes: reopened", "path", path)
	return st, nil
}

// bootstrap runs the create-time sequence: define
// built-ins, invoke the user callback, persist the type list, create the
// root, commit the first clean header.
func (st *Storage) bootstrap(opt Options) error {
	if opt.PopulateSchema == nil {
		return errf(KindValueErr, "open", nil, "populate_schema is required on create")
	}

	builder := newSchemaBuilder()
	rootType, err := opt.PopulateSchema(builder)
	if err != nil {
		return err
	}
	if rootType == nil {
		return errf(KindValueErr, "open", nil, "populate_schema must return a root type")
	}
	st.schema = builder.seal()

	registrySize := opt.RegistrySize
	if registrySize <= 0 {
		registrySize = 8
	}
	reg, err := st.NewHashTable(internalStringSetType, registrySize)
	if err != nil {
		return err
	}
	st.stringRegistry = reg
	// The string registry and the type list are permanent roots, exempt
	// from the close quarantine like the root value.
	st.removeProxy(reg.Proxy)

	tlist, err := st.NewList(internalTypeListType)
	if err != nil {
		return err
	}
	st.typeList = tlist
	st.removeProxy(tlist.Proxy)
	for _, t := range st.schema.order {
		// Built-ins and internal types are implicit: reattach pre-registers
		// them the same way newSchemaBuilder does, so persisting their
		// descriptors would only make reopen try to re-register them.
		if isInternalName(t.Name()) || isBuiltinType(t) {
			continue
		}
		ds, ok := t.(descriptorSource)
		if !ok {
			return errf(KindValueErr, "open", nil, "type %q cannot be persisted", t.Name())
		}
		encoded, err := encodeDescriptor(ds.descriptor())
		if err != nil {
			return newErr(KindIoError, "open", err)
		}
		interned, err := st.InternString(encoded)
		if err != nil {
			return err
		}
		if err := st.typeList.Append(interned); err != nil {
			return err
		}
		interned.Close()
	}

	st.rootType = rootType
	rootOff, err := st.createDefault(rootType)
	if err != nil {
		return err
	}
	st.root = st.wrapRoot(rootType, rootOff)

	return st.commitHeader(statusClean)
}

// reattach reconstructs in-memory state from the most recent clean header
// on reopen: schema from the persisted type list, string registry, root.
func (st *Storage) reattach() error {
	slotA, errA := decodeHeaderSlot(st.file.bytes(0, headerSlotEncodedSize))
	slotB, errB := decodeHeaderSlot(st.file.bytes(Offset(pageSize), headerSlotEncodedSize))
	if errA != nil {
		slotA = nil
	}
	if errB != nil {
		slotB = nil
	}
	current, ok := pickCurrent(slotA, slotB)
	if !ok {
		return newErr(KindCorruption, "open", fmt.Errorf("no clean header slot"))
	}
	st.current = current
	slot := slotA
	if current == 1 {
		slot = slotB
	}
	st.revision = slot.Revision
	st.file.freeOffset = slot.FreeOffset

	st.schema = newSchema()
	// Built-ins are implicit in every persisted type list's referenced
	// names, so reattach seeds them the same way newSchemaBuilder does.
	_ = st.schema.register(builtinInt)
	_ = st.schema.register(builtinFloat)
	_ = st.schema.register(builtinByteString)
	_ = st.schema.register(internalTypeListType)
	_ = st.schema.register(internalStringSetType)

	st.stringRegistry = HashTable{st.wrapRoot(internalStringSetType, slot.StringRegistry)}
	st.typeList = List{st.wrapRoot(internalTypeListType, slot.TypeList)}

	var lastType Type
	var registerErr error
	iterErr := st.typeList.Iterate(func(p *Proxy) bool {
		defer p.Close()
		bs := ByteString{p}
		raw, rerr := bs.Bytes()
		if rerr != nil {
			registerErr = rerr
			return false
		}
		d, derr := decodeDescriptor(raw)
		if derr != nil {
			registerErr = derr
			return false
		}
		t, terr := materializeType(st.schema, d)
		if terr != nil {
			registerErr = terr
			return false
		}
		if rerr := st.schema.register(t); rerr != nil {
			registerErr = rerr
			return false
		}
		lastType = t
		return true
	})
	if iterErr != nil {
		return iterErr
	}
	if registerErr != nil {
		return registerErr
	}

	root, err := st.resolveRootType(slot.Root, lastType)
	if err != nil {
		return err
	}
	st.root = root
	return nil
}

// resolveRootType wraps the root offset using the "Root"-named type if the
// populate_schema callback registered one under that name, falling back to
// the last type in the persisted type list otherwise (documented in
// doc.go).
func (st *Storage) resolveRootType(off Offset, lastType Type) (*Proxy, error) {
	t := st.schema.Type("Root")
	if t == nil {
		t = lastType
	}
	if t == nil {
		return nil, newErr(KindCorruption, "open", fmt.Errorf("no types in persisted type list"))
	}
	st.rootType = t
	return st.wrapRoot(t, off), nil
}

// Root returns the storage's root value proxy. It is exempt from the
// close quarantine and must not be Close()'d by the caller.
func (st *Storage) Root() *Proxy { return st.root }

// Type looks up a user-visible named type.
func (st *Storage) Type(name string) Type { return st.schema.Type(name) }

func (st *Storage) assertOpen(op string) error {
	if st.closed {
		return newErr(KindClosed, op, fmt.Errorf("storage is closed"))
	}
	return nil
}

// writeThroughLog is the single primitive every mutation of mapped bytes
// funnels through: when
// journaling is enabled it records the redo record for [off, off+len(data))
// in an ad hoc single-record transaction and commits it before applying the
// write; when journaling is disabled it applies the write directly. Every
// codec and container mutation goes through this call; the only other
// writes into mapped bytes are commitHeader's header-slot writes and the
// redo replay Open performs on reopen. The allocator itself writes nothing.
// A redo log that cannot take the record is reported as Full.
func (st *Storage) writeThroughLog(off Offset, data []byte) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := st.assertOpen("write"); err != nil {
		return err
	}
	if st.redoLog != nil {
		trx, err := st.redoLog.Begin()
		if err != nil {
			return newErr(KindFull, "write", err)
		}
		if err := trx.Save(uint64(off), data); err != nil {
			trx.Discard()
			return newErr(KindFull, "write", err)
		}
		if err := trx.Commit(true); err != nil {
			return newErr(KindIoError, "write", err)
		}
	}
	copy(st.file.bytes(off, len(data)), data)
	return nil
}

// commitHeader writes the live header slot with the given status, flips
// st.current, and flushes twice: data first, then the header that marks
// it clean.
func (st *Storage) commitHeader(status byte) error {
	if err := st.file.flush(false); err != nil {
		return err
	}
	next := 1 - st.current
	slot := &headerSlot{
		Status:     status,
		Revision:   st.revision + 1,
		FreeOffset: st.file.freeOffset,
	}
	copy(slot.Magic[:], magic)
	if st.stringRegistry.Proxy != nil {
		slot.StringRegistry = st.stringRegistry.off
	}
	if st.typeList.Proxy != nil {
		slot.TypeList = st.typeList.off
	}
	if st.root != nil {
		slot.Root = st.root.off
	}
	encoded := encodeHeaderSlot(slot)
	var at Offset
	if next == 1 {
		at = Offset(pageSize)
	}
	copy(st.file.bytes(at, len(encoded)), encoded)
	if err := st.file.flush(false); err != nil {
		return err
	}
	st.current = next
	st.revision = slot.Revision
	return nil
}

// Flush synchronizes the mapping to disk. async requests a non-blocking
// flush.
func (st *Storage) Flush(async bool) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := st.assertOpen("flush"); err != nil {
		return err
	}
	return st.file.flush(async)
}

// Close verifies no non-root proxies are outstanding, flushes data, flips
// the live header to clean, flushes again, and unmaps.
func (st *Storage) Close() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := st.assertOpen("close"); err != nil {
		return err
	}

	st.proxies.mu.Lock()
	outstanding := len(st.proxies.live)
	st.proxies.mu.Unlock()
	if outstanding > 0 {
		return newErr(KindProxies, "close", fmt.Errorf("%s", st.DescribeOpenProxies()))
	}

	if err := st.commitHeader(statusClean); err != nil {
		return err
	}
	if st.redoLog != nil {
		if err := st.redoLog.Close(); err != nil {
			return newErr(KindIoError, "close", err)
		}
	}
	if err := st.file.close(); err != nil {
		return err
	}
	st.closed = true
	return nil
}

// materializeType reconstructs a Type from its persisted descriptor during
// reattach. Every type named in Params, and every persistent base named in
// Bases, must already be in the schema, which holds because the persisted
// type list is insertion-ordered. Names in Bases that are not types in the
// schema are volatile base names and are restored as such.
func materializeType(schema *Schema, d *typeDescriptor) (Type, error) {
	switch d.Kind {
	case descInt:
		return builtinInt, nil
	case descFloat:
		return builtinFloat, nil
	case descByteString:
		return builtinByteString, nil
	case descList:
		elem, err := schema.mustType(d.Params[0])
		if err != nil {
			return nil, err
		}
		return &ListType{name: d.ClassName, elem: elem}, nil
	case descHashTable, descDict:
		keyType, err := schema.mustType(d.Params[0])
		if err != nil {
			return nil, err
		}
		var valueType Type
		if len(d.Params) > 1 && d.Params[1] != "" {
			valueType, err = schema.mustType(d.Params[1])
			if err != nil {
				return nil, err
			}
		}
		return &HashTableType{name: d.ClassName, keyType: keyType, valueType: valueType, isDefault: d.Kind == descDict}, nil
	case descSkipList:
		elem, err := schema.mustType(d.Params[0])
		if err != nil {
			return nil, err
		}
		return &SkipListType{name: d.ClassName, elem: elem, orderTag: d.OrderTag}, nil
	case descStruct:
		var bases []*StructType
		var volatileBases []string
		for _, name := range d.Bases {
			bt, ok := schema.byName[name]
			if !ok {
				volatileBases = append(volatileBases, name)
				continue
			}
			bst, ok := bt.(*StructType)
			if !ok {
				return nil, newErr(KindCorruption, "open", fmt.Errorf("base %q is not a structure", name))
			}
			bases = append(bases, bst)
		}
		var own []FieldDef
		for _, fd := range d.Fields {
			ft, err := schema.mustType(fd.TypeName)
			if err != nil {
				return nil, err
			}
			own = append(own, FieldDef{Name: fd.Name, Type: ft})
		}
		merged, err := buildStructFields(bases, own)
		if err != nil {
			return nil, err
		}
		return &StructType{name: d.ClassName, bases: bases, volatileBases: volatileBases, fields: sortFieldsCanonically(merged)}, nil
	case descNode:
		var valueType Type
		if len(d.Params) > 0 && d.Params[0] != "" {
			var err error
			valueType, err = schema.mustType(d.Params[0])
			if err != nil {
				return nil, err
			}
		}
		return &NodeType{name: d.ClassName, valueType: valueType}, nil
	case descEdge:
		var valueType Type
		if len(d.Params) > 0 && d.Params[0] != "" {
			var err error
			valueType, err = schema.mustType(d.Params[0])
			if err != nil {
				return nil, err
			}
		}
		if len(d.Params) < 3 {
			return nil, newErr(KindCorruption, "open", fmt.Errorf("edge descriptor %q missing from/to node types", d.ClassName))
		}
		fromRaw, err := schema.mustType(d.Params[1])
		if err != nil {
			return nil, err
		}
		toRaw, err := schema.mustType(d.Params[2])
		if err != nil {
			return nil, err
		}
		fromType, ok := fromRaw.(*NodeType)
		if !ok {
			return nil, newErr(KindCorruption, "open", fmt.Errorf("edge descriptor %q: %q is not a node type", d.ClassName, d.Params[1]))
		}
		toType, ok := toRaw.(*NodeType)
		if !ok {
			return nil, newErr(KindCorruption, "open", fmt.Errorf("edge descriptor %q: %q is not a node type", d.ClassName, d.Params[2]))
		}
		return &EdgeType{name: d.ClassName, valueType: valueType, fromType: fromType, toType: toType}, nil
	case descBuffer:
		return &BufferType{name: d.ClassName}, nil
	default:
		return nil, newErr(KindCorruption, "open", fmt.Errorf("unknown descriptor kind %d for %q", d.Kind, d.ClassName))
	}
}
