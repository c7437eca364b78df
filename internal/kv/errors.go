package kv

import "errors"

// Sentinel errors for backend operations.
var (
	ErrKeyNotFound = errors.New("kv: key not found")
	// ErrNoSpace signals that the backend refused a write for capacity
	// reasons (e.g. maxmemory with a noeviction policy).
	ErrNoSpace = errors.New("kv: out of space")
)

// Op constants map to backend command names for error context.
const (
	OpGet     = "GET"
	OpSet     = "SET"
	OpDel     = "DEL"
	OpExists  = "EXISTS"
	OpHSet    = "HSET"
	OpHGetAll = "HGETALL"
	OpPing    = "PING"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
