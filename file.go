package ptypes

import (
	"fmt"
	"os"

	"github.com/embedstore/ptypes/mmap"
)

const pageSize = 4096

// file owns the primary file descriptor and its mapping, and implements
// the bump allocator.
type file struct {
	path       string
	f          *os.File
	data       []byte
	realSize   int64
	freeOffset Offset
	closed     bool
}

// openFile opens path if it exists (mapping its current size, requestedSize
// ignored) or creates it (extending to ceil(requestedSize/page)*page plus
// two header pages). created reports which branch was taken.
func openFile(path string, requestedSize int64) (fl *file, created bool, err error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o666)
	if os.IsNotExist(err) {
		return createFile(path, requestedSize)
	} else if err != nil {
		return nil, false, newErr(KindIoError, "open", err)
	}

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, false, newErr(KindIoError, "open", err)
	}
	data, err := mmap.Map(f, int(st.Size()), mmap.Writable)
	if err != nil {
		f.Close()
		return nil, false, newErr(KindIoError, "open", err)
	}
	return &file{path: path, f: f, data: data, realSize: st.Size()}, false, nil
}

func createFile(path string, requestedSize int64) (*file, bool, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o666)
	if err != nil {
		return nil, false, newErr(KindIoError, "open", err)
	}
	region := roundUpPage(requestedSize)
	total := region + headerRegionEnd(pageSize)
	if err := f.Truncate(total); err != nil {
		f.Close()
		os.Remove(path)
		return nil, false, newErr(KindIoError, "open", err)
	}
	data, err := mmap.Map(f, int(total), mmap.Writable)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, false, newErr(KindIoError, "open", err)
	}
	fl := &file{path: path, f: f, data: data, realSize: total, freeOffset: Offset(headerRegionEnd(pageSize))}
	return fl, true, nil
}

func roundUpPage(size int64) int64 {
	if size <= 0 {
		size = pageSize
	}
	return ((size + pageSize - 1) / pageSize) * pageSize
}

// allocate advances freeOffset by n bytes (no alignment padding beyond the
// caller's own width discipline) and returns the pre-increment offset. The
// returned bytes are zero, per the OS's sparse-file guarantee on a freshly
// extended file.
func (fl *file) allocate(n int) (Offset, error) {
	if err := fl.assertLive(); err != nil {
		return 0, err
	}
	off := fl.freeOffset
	end := int64(off) + int64(n)
	if end > fl.realSize {
		return 0, newErr(KindFull, "allocate", nil)
	}
	fl.freeOffset = Offset(end)
	return off, nil
}

func (fl *file) bytes(off Offset, n int) []byte {
	return fl.data[off : int64(off)+int64(n)]
}

func (fl *file) flush(async bool) error {
	if err := fl.assertLive(); err != nil {
		return err
	}
	if err := mmap.Flush(fl.f, fl.data, async); err != nil {
		return newErr(KindIoError, "flush", err)
	}
	return nil
}

func (fl *file) close() error {
	if fl.closed {
		return newErr(KindClosed, "close", nil)
	}
	fl.closed = true
	if err := mmap.Unmap(fl.data); err != nil {
		return newErr(KindIoError, "close", err)
	}
	if err := fl.f.Close(); err != nil {
		return newErr(KindIoError, "close", err)
	}
	return nil
}

func (fl *file) assertLive() error {
	if fl.closed {
		return newErr(KindClosed, "", fmt.Errorf("storage is closed"))
	}
	return nil
}
