// Package redo implements the append-only, checksummed redo log described
// for the primary mmap'ed object store: before a byte-range update is
// applied to the primary file, it is recorded here as part of a
// transaction, so a torn shutdown can be detected and recovered from.
//
// The log is itself a second memory-mapped file. Its format is a single
// fixed-size header page followed by a sequence of transactions, each a
// {length, checksum} header followed by that many bytes of redo records
// ({target_offset, length, bytes}). A transaction is committed iff its
// checksum, recomputed over its payload, matches the one in its header.
package redo

import (
	"crypto/md5"
	"fmt"
	"hash"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/embedstore/ptypes/mmap"
)

const pageSize = 4096

// Log is a single redo log file.
type Log struct {
	mu sync.Mutex

	f    *os.File
	data []byte

	firstTrx uint64
	tail     uint64 // next free byte offset; mirrors the on-disk header.Tail

	active *Trx
	closed bool

	logger *slog.Logger
}

// Open creates or opens a redo log at path. size is a hint for the initial
// allocation when creating a new file (rounded up to the page size); it is
// ignored when reopening an existing file, matching the primary file's
// "requested size 0 means current size on reopen" rule.
func Open(path string, size int64, logger *slog.Logger) (*Log, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0o666)
	if os.IsNotExist(err) {
		return create(path, size, logger)
	} else if err != nil {
		return nil, fmt.Errorf("redo: open %s: %w", path, err)
	}

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("redo: stat %s: %w", path, err)
	}
	data, err := mmap.Map(f, int(st.Size()), mmap.Writable)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("redo: mmap %s: %w", path, err)
	}
	h, err := decodeHeader(data)
	if err != nil {
		mmap.Unmap(data)
		f.Close()
		return nil, err
	}
	l := &Log{f: f, data: data, firstTrx: h.FirstTrx, tail: h.Tail, logger: logger}
	logger.Debug("redo: opened", "path", path, "size", st.Size(), "tail", h.Tail)
	return l, nil
}

func create(path string, size int64, logger *slog.Logger) (*Log, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o666)
	if err != nil {
		return nil, fmt.Errorf("redo: create %s: %w", path, err)
	}
	total := roundUpPage(size) + headerSize
	if err := f.Truncate(total); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("redo: truncate %s: %w", path, err)
	}
	data, err := mmap.Map(f, int(total), mmap.Writable)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("redo: mmap %s: %w", path, err)
	}
	var h header
	copy(h.Magic[:], magic)
	h.FirstTrx = headerSize
	h.Tail = headerSize
	copy(data[:headerSize], encodeHeader(&h))
	if err := mmap.Flush(f, data[:headerSize], false); err != nil {
		mmap.Unmap(data)
		f.Close()
		return nil, fmt.Errorf("redo: flush header: %w", err)
	}
	l := &Log{f: f, data: data, firstTrx: h.FirstTrx, tail: h.Tail, logger: logger}
	logger.Debug("redo: created", "path", path, "size", total)
	return l, nil
}

func roundUpPage(size int64) int64 {
	if size <= 0 {
		size = pageSize
	}
	return ((size + pageSize - 1) / pageSize) * pageSize
}

// Close unmaps and closes the log file. It is an error to call Close while
// a transaction is open.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	if l.active != nil {
		return fmt.Errorf("redo: close with an open transaction")
	}
	l.closed = true
	if err := mmap.Unmap(l.data); err != nil {
		return err
	}
	return l.f.Close()
}

// Begin starts a new transaction. Only one transaction may be open at a
// time, matching the engine's single-writer discipline.
func (l *Log) Begin() (*Trx, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrClosed
	}
	if l.active != nil {
		return nil, fmt.Errorf("redo: transaction already open")
	}
	headerOff := l.tail
	if headerOff+trxHeaderSize > uint64(len(l.data)) {
		return nil, ErrFull
	}
	trx := &Trx{
		log:          l,
		headerOff:    headerOff,
		payloadStart: headerOff + trxHeaderSize,
		cursor:       headerOff + trxHeaderSize,
		hash:         md5.New(),
	}
	l.active = trx
	return trx, nil
}

// Trx is a single in-progress redo-log transaction.
type Trx struct {
	log          *Log
	headerOff    uint64
	payloadStart uint64
	cursor       uint64
	hash         hash.Hash
}

// Save appends a redo record recording that n bytes at targetOffset in the
// primary file are about to change to src. It fails with ErrFull if the
// record would cross the end of the mapped log.
func (trx *Trx) Save(targetOffset uint64, src []byte) error {
	l := trx.log
	need := recordHeaderSize + uint64(len(src))
	if trx.cursor+need > uint64(len(l.data)) {
		return ErrFull
	}
	rec := l.data[trx.cursor : trx.cursor+need]
	encodeRecordHeader(rec, targetOffset, uint64(len(src)))
	copy(rec[recordHeaderSize:], src)
	trx.hash.Write(rec)
	trx.cursor += need
	return nil
}

// Commit finalizes the transaction's checksum, writes its header, advances
// the log's cached tail, and flushes. If lazy is true the flush is
// asynchronous.
func (trx *Trx) Commit(lazy bool) error {
	l := trx.log
	payloadLen := trx.cursor - trx.payloadStart
	var sum [checksumSize]byte
	copy(sum[:], trx.hash.Sum(nil))

	hdr := encodeTrxHeader(payloadLen, sum)
	copy(l.data[trx.headerOff:trx.headerOff+trxHeaderSize], hdr)

	l.tail = trx.cursor
	var h header
	copy(h.Magic[:], magic)
	h.FirstTrx = l.firstTrx
	h.Tail = l.tail
	copy(l.data[:headerSize], encodeHeader(&h))

	// msync needs a page-aligned start address, so the flush starts at the
	// page holding the transaction header.
	ps := uint64(os.Getpagesize())
	start := trx.headerOff / ps * ps
	if err := mmap.Flush(l.f, l.data[start:trx.cursor], lazy); err != nil {
		return err
	}
	if err := mmap.Flush(l.f, l.data[:headerSize], lazy); err != nil {
		return err
	}
	l.active = nil
	l.logger.Debug("redo: committed", "payload", payloadLen, "tail", l.tail)
	return nil
}

// Discard abandons the transaction without writing a header, leaving the
// log's tail unchanged so the half-written bytes are overwritten by the
// next transaction.
func (trx *Trx) Discard() {
	trx.log.active = nil
}
