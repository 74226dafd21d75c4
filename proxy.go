package ptypes

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

// Proxy is the transient runtime handle carrying (storage, type, offset)
// that resolves reads/writes against the mapping: each access resolves
// via the storage's current base address, so close/unmap renders handles
// inert rather than dangling.
//
// Proxy identity is (storage, offset); Go has no destructors, so a Proxy
// is explicitly released with Close, tracked by a live-handle registry
// adapted from open transactions to open proxies.
type Proxy struct {
	st     *Storage
	typ    Type
	off    Offset
	closed bool

	createdAt time.Time
	stack     string
}

func (st *Storage) newProxy(typ Type, off Offset) *Proxy {
	p := &Proxy{st: st, typ: typ, off: off, createdAt: time.Now()}
	st.addProxy(p)
	return p
}

// wrapRoot builds a Proxy for one of the three permanent roots without
// registering it in the live-proxy set; roots are always exempt from the
// close-quarantine check.
func (st *Storage) wrapRoot(typ Type, off Offset) *Proxy {
	return &Proxy{st: st, typ: typ, off: off}
}

func (p *Proxy) Storage() *Storage { return p.st }
func (p *Proxy) Type() Type        { return p.typ }
func (p *Proxy) Offset() Offset    { return p.off }
func (p *Proxy) IsNull() bool      { return p.off.IsNull() }

// asProxy satisfies proxyWrapper; every typed value wrapper (Int, Float,
// ByteString, List, HashTable, SkipList, Node, Edge, Buffer) embeds *Proxy
// anonymously and so inherits this method, letting assignSlot (coerce.go)
// unwrap any of them uniformly instead of requiring callers to pass a bare
// *Proxy.
func (p *Proxy) asProxy() *Proxy { return p }

// proxyWrapper is implemented by *Proxy and, by embedding, by every typed
// value wrapper in this package.
type proxyWrapper interface{ asProxy() *Proxy }

// IsSameAs reports whether two proxies refer to the same storage and
// offset (proxy identity).
func (p *Proxy) IsSameAs(other *Proxy) bool {
	if other == nil {
		return false
	}
	return p.st == other.st && p.off == other.off
}

// Close releases the proxy, removing it from its storage's live set. It is
// safe to call more than once.
func (p *Proxy) Close() {
	if p.closed {
		return
	}
	p.closed = true
	p.st.removeProxy(p)
}

func (p *Proxy) assertLive(op string) error {
	if p.closed {
		return newErr(KindClosed, op, fmt.Errorf("proxy released"))
	}
	return p.st.assertOpen(op)
}

func (p *Proxy) bytes(n int) []byte {
	return p.st.file.bytes(p.off, n)
}

// liveProxies tracks every outstanding non-root Proxy for a Storage, so
// Close can fail with Proxies rather than unmapping under a live handle.
type liveProxies struct {
	mu   sync.Mutex
	live []*Proxy
}

func (st *Storage) addProxy(p *Proxy) {
	st.proxies.mu.Lock()
	defer st.proxies.mu.Unlock()
	st.proxies.live = append(st.proxies.live, p)
}

func (st *Storage) removeProxy(p *Proxy) {
	st.proxies.mu.Lock()
	defer st.proxies.mu.Unlock()
	for i, q := range st.proxies.live {
		if q == p {
			n := len(st.proxies.live)
			st.proxies.live[i] = st.proxies.live[n-1]
			st.proxies.live[n-1] = nil
			st.proxies.live = st.proxies.live[:n-1]
			return
		}
	}
}

// DescribeOpenProxies renders a human-readable report of every outstanding
// proxy, for diagnosing a failed Close.
func (st *Storage) DescribeOpenProxies() string {
	st.proxies.mu.Lock()
	live := slices.Clone(st.proxies.live)
	st.proxies.mu.Unlock()

	if len(live) == 0 {
		return "NO OPEN PROXIES"
	}
	slices.SortFunc(live, func(a, b *Proxy) int { return a.createdAt.Compare(b.createdAt) })

	now := time.Now()
	var buf strings.Builder
	fmt.Fprintf(&buf, "%d OPEN PROXIES:\n", len(live))
	for _, p := range live {
		fmt.Fprintf(&buf, "\n---\n%s@%d open for %s\n", nameOrNil(p.typ), p.off, now.Sub(p.createdAt))
	}
	return buf.String()
}
