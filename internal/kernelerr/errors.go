// Package kernelerr defines the enumerated return-code taxonomy shared
// across every core kernel component (§6). Components return a *Error
// wrapping one of these codes instead of ad hoc error strings, so callers
// across package boundaries can switch on Code.
package kernelerr

import (
	"errors"
	"fmt"
)

// Code is one member of the kernel-wide return-code taxonomy.
type Code int

const (
	NoErr Code = iota
	NullPointer
	UnauthorizedAction
	UnauthorizedInterruptLine
	AlreadyExist
	NoSuchIRQ
	NoMoreMemory
	IncorrectValue
	OutOfBound
	NotSupported
	NoSuchID
	Destroyed
	NotBlocked
	Blocked
	PageFault
	Canceled
)

var codeNames = map[Code]string{
	NoErr:                     "NO_ERR",
	NullPointer:               "NULL_POINTER",
	UnauthorizedAction:        "UNAUTHORIZED_ACTION",
	UnauthorizedInterruptLine: "UNAUTHORIZED_INTERRUPT_LINE",
	AlreadyExist:              "ALREADY_EXIST",
	NoSuchIRQ:                 "NO_SUCH_IRQ",
	NoMoreMemory:              "NO_MORE_MEMORY",
	IncorrectValue:            "INCORRECT_VALUE",
	OutOfBound:                "OUT_OF_BOUND",
	NotSupported:              "NOT_SUPPORTED",
	NoSuchID:                  "NO_SUCH_ID",
	Destroyed:                 "DESTROYED",
	NotBlocked:                "NOT_BLOCKED",
	Blocked:                   "BLOCKED",
	PageFault:                 "PAGE_FAULT",
	Canceled:                  "CANCELED",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("UNKNOWN_CODE(%d)", int(c))
}

// Error is the concrete error type returned at API boundaries throughout the
// core kernel subsystem.
type Error struct {
	Code   Code
	Module string
	Msg    string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %s", e.Module, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", e.Module, e.Code, e.Msg)
}

// New builds an *Error for the given module and code.
func New(module string, code Code) *Error {
	return &Error{Code: code, Module: module}
}

// Newf builds an *Error with a formatted message.
func Newf(module string, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Module: module, Msg: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the Code from err if it is (or wraps) a *Error, returning
// NoErr, false otherwise.
func CodeOf(err error) (Code, bool) {
	var ke *Error
	if err == nil {
		return NoErr, false
	}
	if !errors.As(err, &ke) {
		return NoErr, false
	}
	return ke.Code, true
}
