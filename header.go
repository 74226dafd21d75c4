package ptypes

import "fmt"

// Two fixed-size header slots live at the start of the primary file, each
// one page. The "current" slot is the clean one with the highest revision;
// the other is the shadow, overwritten by the next commit.
const (
	magic    = "ptypes-v1\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00"
	magicLen = 31

	statusClean byte = 'C'
	statusDirty byte = 'D'
)

func init() {
	if len(magic) != magicLen {
		panic(fmt.Sprintf("ptypes: magic length is %d, want %d", len(magic), magicLen))
	}
}

// headerRegionEnd is the byte offset where the allocation region begins:
// two header pages.
func headerRegionEnd(pageSize int) int64 { return 2 * int64(pageSize) }

type headerSlot struct {
	Magic                     [magicLen]byte
	Status                    byte
	Revision                  uint64
	LastAppliedRedoFileNumber uint64
	LastAppliedTrx            Offset
	FreeOffset                Offset
	StringRegistry            Offset
	TypeList                  Offset
	Root                      Offset
}

const headerSlotEncodedSize = magicLen + 1 + 8 + 8 + 8 + 8 + 8 + 8 + 8

func encodeHeaderSlot(h *headerSlot) []byte {
	buf := make([]byte, headerSlotEncodedSize)
	i := 0
	copy(buf[i:], h.Magic[:])
	i += magicLen
	buf[i] = h.Status
	i++
	putUint64(buf[i:], h.Revision)
	i += 8
	putUint64(buf[i:], h.LastAppliedRedoFileNumber)
	i += 8
	putOffset(buf[i:], h.LastAppliedTrx)
	i += 8
	putOffset(buf[i:], h.FreeOffset)
	i += 8
	putOffset(buf[i:], h.StringRegistry)
	i += 8
	putOffset(buf[i:], h.TypeList)
	i += 8
	putOffset(buf[i:], h.Root)
	return buf
}

func decodeHeaderSlot(buf []byte) (*headerSlot, error) {
	if len(buf) < headerSlotEncodedSize {
		return nil, fmt.Errorf("ptypes: header slot truncated")
	}
	var h headerSlot
	i := 0
	copy(h.Magic[:], buf[i:])
	i += magicLen
	h.Status = buf[i]
	i++
	h.Revision = getUint64(buf[i:])
	i += 8
	h.LastAppliedRedoFileNumber = getUint64(buf[i:])
	i += 8
	h.LastAppliedTrx = getOffset(buf[i:])
	i += 8
	h.FreeOffset = getOffset(buf[i:])
	i += 8
	h.StringRegistry = getOffset(buf[i:])
	i += 8
	h.TypeList = getOffset(buf[i:])
	i += 8
	h.Root = getOffset(buf[i:])
	if string(h.Magic[:]) != magic {
		return nil, newErr(KindCorruption, "open", fmt.Errorf("bad magic"))
	}
	return &h, nil
}

// pickCurrent returns the index (0 or 1) of the clean slot with the
// highest revision, and true if at least one slot is clean.
func pickCurrent(a, b *headerSlot) (current int, ok bool) {
	aClean := a != nil && a.Status == statusClean
	bClean := b != nil && b.Status == statusClean
	switch {
	case aClean && bClean:
		if b.Revision > a.Revision {
			return 1, true
		}
		return 0, true
	case aClean:
		return 0, true
	case bClean:
		return 1, true
	default:
		return 0, false
	}
}
