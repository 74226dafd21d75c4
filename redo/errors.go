package redo

import "errors"

var (
	// ErrFull is returned by Save when the next record would cross the end
	// of the mapped redo file. Callers surface this to their users as Full.
	ErrFull = errors.New("redo: log full")

	// ErrCorruption is returned by Open when the redo file's magic doesn't
	// match, and by decode helpers on malformed headers.
	ErrCorruption = errors.New("redo: corrupted or incompatible log")

	// ErrClosed is returned by any operation on a Log after Close.
	ErrClosed = errors.New("redo: log closed")
)
