// Package fault classifies the failures a wizard step can surface to the user.
package fault

import (
	"errors"
	"fmt"
)

// Kind identifies a class of wizard failure.
type Kind int

const (
	Unknown Kind = iota
	ContainerUnavailable
	EngineNotLoaded
	ArtifactFetchFailed
	InvalidJSON
	WidgetCreationFailed
	GenerationFailed
)

var kindNames = map[Kind]string{
	Unknown:              "unknown",
	ContainerUnavailable: "container unavailable",
	EngineNotLoaded:      "engine not loaded",
	ArtifactFetchFailed:  "artifact fetch failed",
	InvalidJSON:          "invalid json",
	WidgetCreationFailed: "widget creation failed",
	GenerationFailed:     "generation failed",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Recoverable reports whether the caller is expected to fall back to a
// default value and continue instead of surfacing the error.
func (k Kind) Recoverable() bool {
	return k == ArtifactFetchFailed
}

// Error wraps an underlying error with its kind and the operation that failed.
type Error struct {
	Kind Kind
	Op   string // e.g. "customize.bind", "preview.populate"
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error of the given kind.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf creates an Error whose cause is built from format and args.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or Unknown.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the text shown inline in the UI for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var fe *Error
	if !errors.As(err, &fe) {
		return err.Error()
	}
	switch fe.Kind {
	case ContainerUnavailable:
		return "The editor surface never became available. Resize the window or try again."
	case EngineNotLoaded:
		return "Document engine is not available."
	case InvalidJSON:
		if fe.Err != nil {
			return "Invalid JSON format: " + fe.Err.Error()
		}
		return "Invalid JSON format"
	case WidgetCreationFailed:
		return "Editor initialization failed. Try selecting a different template or reset the wizard."
	}
	if fe.Err != nil {
		return fe.Err.Error()
	}
	return fe.Kind.String()
}
