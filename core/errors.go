package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures of the geotagging pipeline.
type ErrorKind string

const (
	// Run-level kinds; these fail the whole operation.
	KindValidation  ErrorKind = "validation"
	KindEncoding    ErrorKind = "encoding"
	KindEmptyResult ErrorKind = "empty_result"
	KindArchiveIO   ErrorKind = "archive_io"

	// Item-level kinds; recorded per image, the batch keeps going.
	KindDecode    ErrorKind = "decode"
	KindTransform ErrorKind = "transform"

	KindUnknown ErrorKind = "unknown"
)

// Error is the single error type returned by core packages.
type Error struct {
	Kind    ErrorKind
	Op      string // operation, e.g. "exifenc.Encode"
	Name    string // file or field the error is about, may be empty
	Message string
	Cause   error
}

func (e *Error) Error() string {
	subject := e.Op
	if e.Name != "" {
		subject += " " + e.Name
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", e.Kind, subject, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Kind, subject, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError builds an Error without an underlying cause.
func NewError(kind ErrorKind, op, name, message string) *Error {
	return &Error{Kind: kind, Op: op, Name: name, Message: message}
}

// WrapError attaches kind and context to err. A nil err yields nil.
func WrapError(kind ErrorKind, op, name, message string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Name: name, Message: message, Cause: err}
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind checks whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// IsItemKind reports whether kind is isolated to a single batch item.
func IsItemKind(kind ErrorKind) bool {
	return kind == KindDecode || kind == KindTransform
}
