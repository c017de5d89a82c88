// Package jerrors implements a flat error-kind enumeration, replacing the
// source's deep exception class hierarchy (see
// original_source/jubatus/core/storage/storage_exception.hpp) with a
// small sum type any storage or mixable operation can return.
package jerrors

import (
	"errors"
	"fmt"
)

// Kind identifies which error kind an Error carries.
type Kind string

const (
	// InvalidParameter marks a configuration validation failure; fatal at
	// construction (e.g. a zero hash_num).
	InvalidParameter Kind = "invalid_parameter"
	// LengthUnmatch marks a diff whose dimensions don't match the
	// installed model.
	LengthUnmatch Kind = "length_unmatch"
	// TypeUnmatch marks a column/value whose type doesn't match the
	// table's schema.
	TypeUnmatch Kind = "type_unmatch"
	// ArgumentUnmatch marks a malformed mixable argument.
	ArgumentUnmatch Kind = "argument_unmatch"
	// ArrayRange marks an out-of-range index into a fixed-size array
	// (e.g. a table/probe count).
	ArrayRange Kind = "array_range"
	// Serialization marks a malformed pack/unpack payload, including the
	// wrong top-level shape.
	Serialization Kind = "serialization_error"
	// NoWorker marks a routing decision that found no live backend.
	NoWorker Kind = "no_worker"
	// Storage is the catch-all for any other storage-level failure.
	Storage Kind = "storage_exception"
)

// sentinels hold one error value per kind; the Is(kind) helper below
// matches an error against its kind's sentinel.
var sentinels = map[Kind]error{
	InvalidParameter: errors.New(string(InvalidParameter)),
	LengthUnmatch:     errors.New(string(LengthUnmatch)),
	TypeUnmatch:       errors.New(string(TypeUnmatch)),
	ArgumentUnmatch:   errors.New(string(ArgumentUnmatch)),
	ArrayRange:        errors.New(string(ArrayRange)),
	Serialization:     errors.New(string(Serialization)),
	NoWorker:          errors.New(string(NoWorker)),
	Storage:           errors.New(string(Storage)),
}

// Error is the concrete error type returned by this module's operations.
// Op names the failing operation (e.g. "column_table.add"); Message is a
// human-readable detail; Err, if set, wraps an underlying cause.
type Error struct {
	Err     error
	Kind    Kind
	Op      string
	Message string
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return sentinels[e.Kind]
}

// Is matches e's kind sentinel, so errors.Is finds the kind even when
// Unwrap yields a wrapped cause.
func (e *Error) Is(target error) bool {
	return target == sentinels[e.Kind]
}

// Is reports whether err (or anything it wraps) is of the given kind.
func Is(err error, kind Kind) bool {
	sentinel, ok := sentinels[kind]
	if !ok {
		return false
	}
	return errors.Is(err, sentinel)
}

// New constructs an *Error for op with a formatted message.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an *Error that also chains an underlying cause.
func Wrap(kind Kind, op string, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...), Err: cause}
}
