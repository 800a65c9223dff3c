// Package dcerr defines the closed error taxonomy shared by every transport,
// device and parser in this module.
package dcerr

import "fmt"

// Code is a stable, comparable error identifier. It is a string newtype and
// implements error directly, so a bare Code can be returned, compared with
// ==, or wrapped in an *Error for additional context.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes. This set is closed: family and parser code must not
// invent new members, only return one of these (optionally wrapped).
const (
	Success     Code = "success"
	Done        Code = "done"
	Unsupported Code = "unsupported"
	InvalidArgs Code = "invalid_args"
	NoMemory    Code = "no_memory"
	NoDevice    Code = "no_device"
	NoAccess    Code = "no_access"
	IO          Code = "io"
	Timeout     Code = "timeout"
	Protocol    Code = "protocol"
	DataFormat  Code = "data_format"
	Cancelled   Code = "cancelled"
)

// Error wraps a Code with the operation that produced it and an optional
// cause, mirroring the structured error shape used across the retrieval
// corpus (Op/Code/Inner, with Unwrap/Is support for errors.Is).
type Error struct {
	Op  string
	C   Code
	Msg string
	Err error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.C)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Code() Code { return e.C }

func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if c, ok := target.(Code); ok {
		return e.C == c
	}
	if te, ok := target.(*Error); ok {
		return e.C == te.C
	}
	return false
}

// Wrap builds an *Error for op/code with an optional cause.
func Wrap(op string, c Code, cause error) *Error {
	return &Error{Op: op, C: c, Err: cause}
}

// Wrapf builds an *Error for op/code with a formatted message.
func Wrapf(op string, c Code, format string, args ...any) *Error {
	return &Error{Op: op, C: c, Msg: fmt.Sprintf(format, args...)}
}

// Of extracts the Code carried by err, defaulting to IO for any error that
// does not carry one of our codes (never silently maps to Success).
func Of(err error) Code {
	if err == nil {
		return Success
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return IO
}

// Is reports whether err ultimately carries code c.
func Is(err error, c Code) bool {
	return Of(err) == c
}
