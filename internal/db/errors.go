package db

import "errors"

var (
	// ErrKeyNotFound is returned when a document or value is absent.
	ErrKeyNotFound = errors.New("db: key not found")
	// ErrIndexNotFound is returned when a search index does not exist.
	ErrIndexNotFound = errors.New("db: index not found")
	// ErrIndexExists is returned by CreateIndex for a name already in use.
	ErrIndexExists = errors.New("db: index already exists")
)

// Op names the backend command that failed.
type Op string

// Commands reported in Error.Op.
const (
	OpCreateIndex Op = "FT.CREATE"
	OpAlterIndex  Op = "FT.ALTER"
	OpDropIndex   Op = "FT.DROPINDEX"
	OpIndexInfo   Op = "FT.INFO"
	OpSearch      Op = "FT.SEARCH"
	OpAggregate   Op = "FT.AGGREGATE"
	OpJSONSet     Op = "JSON.SET"
	OpJSONGet     Op = "JSON.GET"
	OpHSet        Op = "HSET"
	OpHGetAll     Op = "HGETALL"
	OpGet         Op = "GET"
	OpSet         Op = "SET"
	OpDel         Op = "DEL"
	OpExists      Op = "EXISTS"
	OpScan        Op = "SCAN"
)

// Error is a backend failure tagged with the command and, for batched
// commands, the key it failed on.
type Error struct {
	Op  Op
	Key string
	Err error
}

func (e *Error) Error() string {
	if e.Key == "" {
		return string(e.Op) + ": " + e.Err.Error()
	}
	return string(e.Op) + " " + e.Key + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }
