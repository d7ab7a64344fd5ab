// Copyright (c) 2023-2024, The BitcoinMW Developers
// Some code and concepts from:
// * Grin: https://github.com/mimblewimble/grin
// * Arti: https://gitlab.torproject.org/tpo/core/arti
// * BitcoinMW: https://github.com/bitcoinmw/bitcoinmw
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package corerr defines the error kinds shared across the slab allocator,
// its containers, and the event handler.
package corerr

import "fmt"

// Kind identifies the class of a core error, stable across platforms.
type Kind int

const (
	// Configuration indicates a constructor or Start() received an invalid
	// or unrecognized configuration option.
	Configuration Kind = iota
	// IllegalArgument indicates an argument violated a documented precondition.
	IllegalArgument
	// IllegalState indicates an operation was attempted in an invalid state,
	// e.g. a double-free or use of an uninitialized allocator.
	IllegalState
	// CapacityExceeded indicates a fixed-capacity structure is full.
	CapacityExceeded
	// ArrayIndexOutOfBounds indicates an id or index outside its valid range.
	ArrayIndexOutOfBounds
	// IO indicates a platform I/O call failed.
	IO
	// CorruptedData indicates deserialization found a value that could not
	// have been produced by a conforming Writer.
	CorruptedData
	// Parse indicates a pattern or input failed to parse.
	Parse
	// ThreadPanic indicates a task or worker panicked.
	ThreadPanic
	// Poison indicates a lock was observed to be poisoned.
	Poison
	// Alloc indicates a slab allocation failed.
	Alloc
)

// String returns the kind's name, e.g. "IllegalState".
func (k Kind) String() string {
	switch k {
	case Configuration:
		return "Configuration"
	case IllegalArgument:
		return "IllegalArgument"
	case IllegalState:
		return "IllegalState"
	case CapacityExceeded:
		return "CapacityExceeded"
	case ArrayIndexOutOfBounds:
		return "ArrayIndexOutOfBounds"
	case IO:
		return "IO"
	case CorruptedData:
		return "CorruptedData"
	case Parse:
		return "Parse"
	case ThreadPanic:
		return "ThreadPanic"
	case Poison:
		return "Poison"
	case Alloc:
		return "Alloc"
	default:
		return "Unknown"
	}
}

// Error is the error type produced by this module's packages. It carries a
// stable Kind alongside a human-readable message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped cause, if any, for use with errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New constructs an *Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an *Error of the given kind, wrapping cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Sentinel, for matching any error of a given kind via errors.Is(err, corerr.KindOnly(IllegalState)).
func KindOnly(kind Kind) *Error {
	return &Error{Kind: kind}
}
