/*
Package ptypes implements a single-process, memory-mapped persistent object
store: a schema of named types, backed directly by a mapped file, with no
separate serialization step between in-memory access and on-disk state.

A Storage binds a mapped file to a schema (a name to type map reconstructed
from a persisted, insertion-ordered type list), a string registry used for
interning, a root value, and an optional redo log guarding against torn
writes.

# Values

Every persistent value is either by-value (scalars: Int, Float) or
by-reference (everything else: ByteString, structures, and the container
and graph types). A Proxy is the transient (storage, type, offset) handle
through which a value's bytes are read and written; proxies are released
explicitly with Close, since Go has no destructors to do it implicitly.

# Containers and the property graph

On top of the allocator and the value codecs, this package builds a
singly-linked List, an open-addressing HashTable (including set and
default-dict variants), an ordered SkipList keyed by a named,
pre-registered compare function rather than embedded scripting, and a
directed property graph of Node and Edge values with per-kind,
most-recently-inserted-first incidence lists.

# Crash consistency

The primary file keeps two header slots; the "current" header is the clean
one with the highest revision. When journaling is enabled every mutation
of mapped bytes other than a header-slot commit is recorded in a redo log
before being applied, so a torn
shutdown can be recovered by replaying committed transactions and
discarding the rest.

A root type is conventionally named "Root" in the schema the
populate_schema callback builds; Open falls back to the last type in the
persisted type list when no such name is registered.
*/
package ptypes
