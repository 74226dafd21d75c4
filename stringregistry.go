package ptypes

// StringRegistry is a hash table whose key type is ByteString and whose
// value type is empty (set semantics); used both for user interning and,
// indirectly, for the persisted textual tag of a graph edge kind.
type StringRegistry struct{ HashTable }

// InternString returns the single persisted copy of data, creating it if
// absent: interning is idempotent and deduplicating.
func (st *Storage) InternString(data []byte) (ByteString, error) {
	if err := st.assertOpen("InternString"); err != nil {
		return ByteString{}, err
	}
	p, err := st.stringRegistry.GetOrIntern(data, nil)
	if err != nil {
		return ByteString{}, err
	}
	return ByteString{p}, nil
}

// StringRegistry exposes the storage-owned interning set directly, for
// callers that want to enumerate or probe it without going through
// InternString.
func (st *Storage) StringRegistry() StringRegistry {
	return StringRegistry{st.stringRegistry}
}
