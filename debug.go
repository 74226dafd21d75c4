package ptypes

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// Stats is a point-in-time snapshot of a storage's allocator and proxy
// bookkeeping.
type Stats struct {
	FileSize      int64
	HeaderRegion  int64
	Allocated     int64
	Free          int64
	OpenProxies   int
	RedoEnabled   bool
	HeaderRevision uint64
}

// Stats reports the current allocator high-water mark, file size, live
// proxy count, and redo-log state.
func (st *Storage) Stats() Stats {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.proxies.mu.Lock()
	openProxies := len(st.proxies.live)
	st.proxies.mu.Unlock()

	headerRegion := headerRegionEnd(pageSize)
	allocated := int64(st.file.freeOffset) - headerRegion
	return Stats{
		FileSize:       st.file.realSize,
		HeaderRegion:   headerRegion,
		Allocated:      allocated,
		Free:           st.file.realSize - int64(st.file.freeOffset),
		OpenProxies:    openProxies,
		RedoEnabled:    st.redoLog != nil,
		HeaderRevision: st.revision,
	}
}

// String renders Stats as a human-readable summary, with byte counts
// formatted via go-humanize rather than raw integers.
func (s Stats) String() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "file: %s (header %s, allocated %s, free %s)\n",
		humanize.Bytes(uint64(s.FileSize)), humanize.Bytes(uint64(s.HeaderRegion)),
		humanize.Bytes(uint64(s.Allocated)), humanize.Bytes(uint64(s.Free)))
	fmt.Fprintf(&buf, "header revision: %d\n", s.HeaderRevision)
	fmt.Fprintf(&buf, "open proxies: %d\n", s.OpenProxies)
	fmt.Fprintf(&buf, "redo log: %s\n", map[bool]string{true: "enabled", false: "disabled"}[s.RedoEnabled])
	return buf.String()
}
