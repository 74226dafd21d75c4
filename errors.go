package ptypes

import "fmt"

// Kind is the error taxonomy a conforming operation fails with.
type Kind int

const (
	KindUnknown Kind = iota
	KindIoError
	KindFull
	KindRedoFull
	KindClosed
	KindProxies
	KindType
	KindKeyNotFound
	KindValueErr
	KindCorruption
)

func (k Kind) String() string {
	switch k {
	case KindIoError:
		return "IoError"
	case KindFull:
		return "Full"
	case KindRedoFull:
		return "RedoFull"
	case KindClosed:
		return "Closed"
	case KindProxies:
		return "Proxies"
	case KindType:
		return "Type"
	case KindKeyNotFound:
		return "KeyNotFound"
	case KindValueErr:
		return "ValueErr"
	case KindCorruption:
		return "Corruption"
	default:
		return "Unknown"
	}
}

// StorageError is the typed error every public operation fails with: a
// struct error with a wrapped cause and a formatted Error() string.
type StorageError struct {
	Kind Kind
	Op   string
	Err  error
	Msg  string
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Error() string {
	if e.Msg != "" {
		if e.Err != nil {
			return fmt.Sprintf("ptypes: %s: %s: %s: %v", e.Kind, e.Op, e.Msg, e.Err)
		}
		return fmt.Sprintf("ptypes: %s: %s: %s", e.Kind, e.Op, e.Msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("ptypes: %s: %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("ptypes: %s: %s", e.Kind, e.Op)
}

func errf(kind Kind, op string, err error, format string, args ...any) error {
	return &StorageError{Kind: kind, Op: op, Err: err, Msg: fmt.Sprintf(format, args...)}
}

func newErr(kind Kind, op string, err error) error {
	return &StorageError{Kind: kind, Op: op, Err: err}
}

// Is lets errors.Is match on Kind alone, e.g. errors.Is(err, Closed).
func (e *StorageError) Is(target error) bool {
	other, ok := target.(*StorageError)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

var (
	// Closed is a sentinel usable with errors.Is; it matches any
	// StorageError of KindClosed regardless of Op/Err/Msg.
	Closed   = &StorageError{Kind: KindClosed}
	Proxies  = &StorageError{Kind: KindProxies}
	Full     = &StorageError{Kind: KindFull}
	RedoFull = &StorageError{Kind: KindRedoFull}
)
