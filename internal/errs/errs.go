// Package errs defines the closed error taxonomy used across flare.
//
// Every failure that reaches the user is an *Error carrying a Kind, a short
// human-readable message and the raw diagnostic text of the underlying cause.
// Breaking errors disable the feature or source that produced them;
// non-breaking errors are collected as warnings and never stop startup.
package errs

import (
	"errors"
	"fmt"
	"sync"
)

// Kind identifies the class of failure.
type Kind string

const (
	EnvVarMissing  Kind = "EnvVarMissing"
	FileRead       Kind = "FileRead"
	FileWrite      Kind = "FileWrite"
	FileParse      Kind = "FileParse"
	DirCreate      Kind = "DirCreate"
	DirRemove      Kind = "DirRemove"
	ResourceLookup Kind = "ResourceLookup"
	RegexCompile   Kind = "RegexCompile"
	CommandExec    Kind = "CommandExec"
	SocketConnect  Kind = "SocketConnect"
	SocketWrite    Kind = "SocketWrite"
	SocketRemove   Kind = "SocketRemove"
	Serialize      Kind = "Serialize"
	Deserialize    Kind = "Deserialize"
	Timeout        Kind = "Timeout"
	Network        Kind = "Network"
	InvalidSource  Kind = "InvalidSource"
)

// Severity controls how an error is surfaced.
type Severity int

const (
	// Breaking errors prevent the affected feature from functioning.
	Breaking Severity = iota
	// NonBreaking errors are shown as warnings.
	NonBreaking
)

func (s Severity) String() string {
	if s == NonBreaking {
		return "warning"
	}
	return "error"
}

// Error is a classified failure.
type Error struct {
	Kind     Kind     `json:"kind"`
	Message  string   `json:"message"`
	Raw      string   `json:"raw,omitempty"`
	Severity Severity `json:"-"`

	cause error
}

// New returns a breaking error of the given kind.
func New(kind Kind, message, raw string) *Error {
	return &Error{Kind: kind, Message: message, Raw: raw}
}

// Wrap classifies err. The raw diagnostic is err's text. A nil err yields nil.
func Wrap(kind Kind, message string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Raw: err.Error(), cause: err}
}

// Warning returns a copy of e marked non-breaking.
func (e *Error) Warning() *Error {
	c := *e
	c.Severity = NonBreaking
	return &c
}

func (e *Error) Error() string {
	if e.Raw == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.Raw)
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches any *Error with the same Kind, so callers can test for a class
// with errors.Is(err, errs.New(errs.Timeout, "", "")).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Diagnostics collects non-breaking errors raised while loading. It is safe for
// concurrent use.
type Diagnostics struct {
	mu    sync.Mutex
	items []*Error
}

// Add records e as a warning. Nil errors are ignored.
func (d *Diagnostics) Add(e *Error) {
	if e == nil {
		return
	}
	d.mu.Lock()
	d.items = append(d.items, e.Warning())
	d.mu.Unlock()
}

// All returns a copy of the recorded warnings in insertion order.
func (d *Diagnostics) All() []*Error {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Error, len(d.items))
	copy(out, d.items)
	return out
}

// Len returns the number of recorded warnings.
func (d *Diagnostics) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.items)
}
