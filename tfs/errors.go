package tfs

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// ErrKind categorizes a failure the core can produce. Every failing
// public operation (§6) returns a non-nil error (the moral equivalent
// of the original's -1 return); that error is a *Error whose Kind
// callers and tests can distinguish with IsKind, the way
// dargueta/disko's DriverError carries an errno-like code underneath a
// plain `error`.
type ErrKind int

const (
	// KindInvalidInput covers empty counts, malformed paths,
	// out-of-range handles, wrong inode kind, and bad names.
	KindInvalidInput ErrKind = iota
	// KindNotFound covers failed path resolution and free inode slots.
	KindNotFound
	// KindExhausted covers full tables/bitmaps and a file already at
	// MaxBytes.
	KindExhausted
	// KindLockFailure covers a lock primitive reporting failure; it is
	// also used when the root inode does not receive inumber 0 and
	// when a block copy fails.
	KindLockFailure
)

func (k ErrKind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid input"
	case KindNotFound:
		return "not found"
	case KindExhausted:
		return "exhausted"
	case KindLockFailure:
		return "lock failure"
	default:
		return "unknown"
	}
}

// Error is the error type returned by every CORE operation that can
// fail. Partial reads/writes (§7 "Partial") are never reported as an
// Error: returning fewer bytes than requested is a normal, successful
// result.
type Error struct {
	Kind ErrKind
	Op   string
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("tfs: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("tfs: %s: %s: %s", e.Op, e.Kind, e.Msg)
}

func newError(op string, kind ErrKind, msg string) *Error {
	return &Error{Op: op, Kind: kind, Msg: msg}
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind ErrKind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}

// releaser accumulates the errors produced while unwinding a
// compensating action (§7's single-compensating-action rule on
// open(..., CREATE) and the directory-block rollback in
// InodeTable.create): any errors encountered while undoing the partial
// allocation are aggregated and logged rather than re-raised. The
// primary failure is not added here; the caller returns it.
type releaser struct {
	err *multierror.Error
}

func (r *releaser) add(err error) {
	if err != nil {
		r.err = multierror.Append(r.err, err)
	}
}

func (r *releaser) report(logger *logger, op string) {
	if r.err != nil {
		logger.Printf("%s: error(s) during rollback: %v", op, r.err.ErrorOrNil())
	}
}
