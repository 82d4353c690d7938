// Package builderr provides the structured error type used across an
// invocation. Every failure that terminates a build carries a Kind, the
// project it happened in and the subject (coordinate, file or block) that was
// being processed, so the CLI can print a precise diagnostic and pick an exit
// code.
package builderr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an invocation failure.
type Kind string

const (
	KindDeclaration          Kind = "DeclarationError"
	KindUnresolvedDependency Kind = "UnresolvedDependency"
	KindRepository           Kind = "RepositoryError"
	KindBuildSrcCompilation  Kind = "BuildSrcCompilationError"
	KindCacheIO              Kind = "CacheIOError"
	KindScript               Kind = "ScriptError"
	KindSettings             Kind = "SettingsError"
	KindTaskSelection        Kind = "TaskSelectionError"
)

// Error is a failure annotated with its kind and location.
type Error struct {
	Kind    Kind
	Project string // project path, e.g. ":" or ":child"; empty when not project scoped
	Subject string // coordinate, source file or block being processed
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Project != "" {
		fmt.Fprintf(&b, " in project '%s'", e.Project)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Subject != "" {
		fmt.Fprintf(&b, " [%s]", e.Subject)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap implements error unwrapping.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind. This lets callers
// write errors.Is(err, &builderr.Error{Kind: builderr.KindDeclaration}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Subject == "" || t.Subject == e.Subject)
}

// New creates an Error without a cause.
func New(kind Kind, subject, message string) *Error {
	return &Error{Kind: kind, Subject: subject, Message: message}
}

// Wrap creates an Error around an existing cause.
func Wrap(cause error, kind Kind, subject, message string) *Error {
	return &Error{Kind: kind, Subject: subject, Message: message, Cause: cause}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind, true
	}
	return "", false
}

// IsKind reports whether err's chain contains an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// AttachProject attributes err to a project when it is an *Error that has
// no project yet. Other errors are returned unchanged.
func AttachProject(err error, path string) error {
	var be *Error
	if errors.As(err, &be) && be.Project == "" {
		be.Project = path
	}
	return err
}

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	kind, ok := KindOf(err)
	if !ok {
		return 1
	}
	switch kind {
	case KindDeclaration, KindScript, KindSettings:
		return 7 // invalid build configuration
	case KindUnresolvedDependency, KindRepository:
		return 8 // external system
	case KindBuildSrcCompilation, KindCacheIO:
		return 11 // build or filesystem
	case KindTaskSelection:
		return 2 // invalid usage
	default:
		return 1
	}
}
