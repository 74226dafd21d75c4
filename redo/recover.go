package redo

import (
	"bytes"
	"crypto/md5"

	"github.com/embedstore/ptypes/mmap"
)

// Record is one decoded redo record: n bytes that were about to be (or
// were) written at TargetOffset in the primary file.
type Record struct {
	TargetOffset uint64
	Data         []byte
}

// Recover scans the log from its first transaction, verifying each
// transaction's checksum in turn. For every transaction that verifies, it
// invokes apply once per record it contains, in order. The first
// transaction whose checksum fails to verify (or whose header doesn't fit
// the remaining bytes) ends the scan; that transaction and everything
// after it is treated as torn and discarded. The log's cached tail is
// rewound to the first byte of the torn (or final, missing) transaction
// and flushed, so a subsequent Begin reuses that space.
//
// Recover must be called before any Begin on this Log.
func (l *Log) Recover(apply func(rec Record) error) (transactions int, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos := l.firstTrx
	for {
		if pos+trxHeaderSize > uint64(len(l.data)) {
			break
		}
		length, checksum := decodeTrxHeader(l.data[pos : pos+trxHeaderSize])
		payloadStart := pos + trxHeaderSize
		payloadEnd := payloadStart + length
		if payloadEnd > uint64(len(l.data)) || payloadEnd < payloadStart {
			break // torn: header claims more than the file can hold
		}
		payload := l.data[payloadStart:payloadEnd]
		sum := md5.Sum(payload)
		if !bytes.Equal(sum[:], checksum[:]) {
			break // torn or never-committed transaction
		}

		for off := uint64(0); off < length; {
			if off+recordHeaderSize > length {
				break
			}
			targetOffset, recLen := decodeRecordHeader(payload[off : off+recordHeaderSize])
			dataStart := off + recordHeaderSize
			dataEnd := dataStart + recLen
			if dataEnd > length {
				break
			}
			if apply != nil {
				if err := apply(Record{TargetOffset: targetOffset, Data: payload[dataStart:dataEnd]}); err != nil {
					return transactions, err
				}
			}
			off = dataEnd
		}

		transactions++
		pos = payloadEnd
	}

	l.tail = pos
	var h header
	copy(h.Magic[:], magic)
	h.FirstTrx = l.firstTrx
	h.Tail = l.tail
	copy(l.data[:headerSize], encodeHeader(&h))
	if err := mmap.Flush(l.f, l.data[:headerSize], false); err != nil {
		return transactions, err
	}
	l.logger.Info("redo: recovered", "transactions", transactions, "tail", l.tail)
	return transactions, nil
}
