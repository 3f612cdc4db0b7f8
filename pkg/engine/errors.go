package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a resolution failure.
type ErrorKind string

const (
	// KindAllMasked means no unmasked candidate exists for an atom.
	KindAllMasked ErrorKind = "all_masked"

	// KindBlock means a block atom matched a pending entry.
	KindBlock ErrorKind = "block"

	// KindNoResolvableOption means every branch of a || ( ) group failed.
	KindNoResolvableOption ErrorKind = "no_resolvable_option"

	// KindCircularDependency means an atom led back to an entry whose
	// DEPEND expansion has not finished and no toggle suppressed it.
	KindCircularDependency ErrorKind = "circular_dependency"

	// KindStackTooDeep means the recursion ceiling was exceeded. It is never
	// absorbed by any-of retries.
	KindStackTooDeep ErrorKind = "stack_too_deep"

	// KindInternal indicates a bug in the caller or in the engine, such as
	// a plain-text leaf reaching package context.
	KindInternal ErrorKind = "internal"
)

// ResolutionError is the error type returned by DepList.
// nolint:revive // ResolutionError is intentionally named to distinguish from collaborator errors
type ResolutionError struct {
	// Kind is the error classification.
	Kind ErrorKind `json:"kind"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Atom is the atom being resolved or blocked, if applicable.
	Atom string `json:"atom,omitempty"`

	// Package is the merge list entry involved, if applicable.
	Package string `json:"package,omitempty"`

	// Span holds the entries forming a circular dependency.
	Span []Entry `json:"span,omitempty"`

	// Messages holds the per-branch failures of a || ( ) group.
	Messages []string `json:"messages,omitempty"`

	// Context lists where the error happened, outermost first.
	Context []string `json:"context,omitempty"`

	// Err is the underlying error, if any.
	Err error `json:"-"`
}

// Error implements the error interface. Only the message is returned so
// that aggregated any-of messages stay readable; see Backtrace for context.
func (e *ResolutionError) Error() string {
	return e.Message
}

// Unwrap returns the underlying error for error chain inspection.
func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is. Two resolution
// errors are equal when they have the same kind.
func (e *ResolutionError) Is(target error) bool {
	t, ok := target.(*ResolutionError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Backtrace renders the context frames followed by the message, one per line.
func (e *ResolutionError) Backtrace() string {
	if len(e.Context) == 0 {
		return e.Message
	}
	var sb strings.Builder
	for i, frame := range e.Context {
		sb.WriteString(strings.Repeat("  ", i))
		sb.WriteString(frame)
		sb.WriteByte('\n')
	}
	sb.WriteString(strings.Repeat("  ", len(e.Context)))
	sb.WriteString(e.Message)
	return sb.String()
}

// WithContext prepends a context frame.
func (e *ResolutionError) WithContext(frame string) *ResolutionError {
	e.Context = append([]string{frame}, e.Context...)
	return e
}

// WithPackage records the pending entry involved.
func (e *ResolutionError) WithPackage(pkg string) *ResolutionError {
	e.Package = pkg
	return e
}

// NewAllMaskedError creates an error for an atom with no usable candidate.
func NewAllMaskedError(atom string) *ResolutionError {
	return &ResolutionError{
		Kind:    KindAllMasked,
		Message: fmt.Sprintf("Error searching for '%s': no available versions", atom),
		Atom:    atom,
	}
}

// NewBlockError creates an error for a block against a pending entry. An
// empty current package is reported as such.
func NewBlockError(atom, blocking string, hasCurrent bool) *ResolutionError {
	msg := fmt.Sprintf("Block: '%s' blocked by pending package '%s'", atom, blocking)
	if !hasCurrent {
		msg += " (no current package)"
	}
	return &ResolutionError{
		Kind:    KindBlock,
		Message: msg,
		Atom:    atom,
		Package: blocking,
	}
}

// NewNoResolvableOptionError aggregates the failures of every any-of branch.
func NewNoResolvableOptionError(messages []string) *ResolutionError {
	msg := "No resolvable || ( ) option."
	if len(messages) > 0 {
		msg += " Failure messages are '" + strings.Join(messages, "', '") + "'"
	}
	return &ResolutionError{
		Kind:     KindNoResolvableOption,
		Message:  msg,
		Messages: messages,
	}
}

// NewCircularDependencyError creates an error for an unsuppressed cycle.
func NewCircularDependencyError(atom string, span []Entry) *ResolutionError {
	names := make([]string, len(span))
	for i, e := range span {
		names[i] = "'" + e.String() + "'"
	}
	return &ResolutionError{
		Kind:    KindCircularDependency,
		Message: "Circular dependency: " + strings.Join(names, " -> "),
		Atom:    atom,
		Span:    span,
	}
}

// NewStackTooDeepError creates the recursion ceiling error.
func NewStackTooDeepError(depth int) *ResolutionError {
	return &ResolutionError{
		Kind:    KindStackTooDeep,
		Message: fmt.Sprintf("DepList stack too deep (%d entries)", depth),
	}
}

// NewInternalError creates an internal consistency error.
func NewInternalError(message string, err error) *ResolutionError {
	return &ResolutionError{
		Kind:    KindInternal,
		Message: message,
		Err:     err,
	}
}

func kindOf(err error) (ErrorKind, bool) {
	var e *ResolutionError
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsAllMasked returns true if the error is an all-masked failure.
func IsAllMasked(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindAllMasked
}

// IsBlock returns true if the error is a block failure.
func IsBlock(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindBlock
}

// IsNoResolvableOption returns true if every any-of branch failed.
func IsNoResolvableOption(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindNoResolvableOption
}

// IsCircularDependency returns true if the error is an unsuppressed cycle.
func IsCircularDependency(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindCircularDependency
}

// IsStackTooDeep returns true if the recursion ceiling was exceeded.
func IsStackTooDeep(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindStackTooDeep
}

// IsInternal returns true if the error is an internal consistency failure.
func IsInternal(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindInternal
}

// Recoverable reports whether an any-of group may absorb err and try its
// next branch. Stack depth and internal failures are fatal, as is any error
// that did not come from the resolver itself (database, parser or context
// errors).
func Recoverable(err error) bool {
	k, ok := kindOf(err)
	if !ok {
		return false
	}
	return k != KindStackTooDeep && k != KindInternal
}

// KindOf returns the kind of a resolution error, or "" for other errors.
func KindOf(err error) ErrorKind {
	k, _ := kindOf(err)
	return k
}

func withContext(err error, frame string) error {
	var e *ResolutionError
	if errors.As(err, &e) {
		e.WithContext(frame)
	}
	return err
}
