package graphdoc

import (
	"errors"
	"fmt"

	"github.com/stealthrocket/graphdoc/document"
	"github.com/stealthrocket/graphdoc/types"
)

var (
	// ErrMalformed is returned when a document lacks a required structure:
	// a missing section, a map with a different number of keys and values,
	// array dimensions that do not match the data...
	ErrMalformed = document.ErrMalformed

	// ErrUnrepresentable is returned when a value encodes to text that XML
	// cannot carry unchanged, such as control characters or invalid UTF-8.
	ErrUnrepresentable = document.ErrUnrepresentable

	// ErrMaxDepth is returned when an object graph nests deeper than the
	// configured limit, typically because of a cycle through pointers that
	// do not have shared-object semantics.
	ErrMaxDepth = types.ErrMaxDepth

	// ErrAmbiguousIdentity is returned when a graph holds distinct types of
	// the same identity, such as types of the same name declared in
	// different functions of one package.
	ErrAmbiguousIdentity = types.ErrAmbiguousIdentity

	// ErrNotStruct is returned when the root of a graph is not a struct or
	// a non-nil pointer to a struct.
	ErrNotStruct = errors.New("root of an object graph must be a struct")
)

// WrongTypeError is returned when the root type declared by a document is
// not the requested type.
type WrongTypeError struct {
	Want string
	Got  string
}

func (e *WrongTypeError) Error() string {
	return fmt.Sprintf("document holds a %s, not a %s", e.Got, e.Want)
}

// DecodeError wraps errors occurring while reading a document, with the
// path of the element being read.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return "decoding document: " + e.Err.Error()
	}
	return fmt.Sprintf("decoding document at %s: %s", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Result is the outcome of reading a document into an existing value.
type Result int

const (
	ResultOK Result = iota
	ResultWrongType
	ResultError
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultWrongType:
		return "wrong type"
	default:
		return "error"
	}
}

// ResultOf classifies err.
func ResultOf(err error) Result {
	if err == nil {
		return ResultOK
	}
	var wrongType *WrongTypeError
	if errors.As(err, &wrongType) {
		return ResultWrongType
	}
	return ResultError
}
