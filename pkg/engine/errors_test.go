package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/deplist/deplist/pkg/depspec"
)

func TestResolutionError_Messages(t *testing.T) {
	span := []Entry{
		{Name: "app-misc/b", Version: depspec.MustParseVersion("1"), Slot: "0", Repository: "gentoo"},
		{Name: "app-misc/a", Version: depspec.MustParseVersion("2"), Slot: "0", Repository: "gentoo"},
	}

	tests := []struct {
		name string
		err  *ResolutionError
		want string
		kind ErrorKind
	}{
		{
			name: "all masked",
			err:  NewAllMaskedError("app-misc/a"),
			want: "Error searching for 'app-misc/a': no available versions",
			kind: KindAllMasked,
		},
		{
			name: "block with current",
			err:  NewBlockError("app-misc/b", "app-misc/b-1:0::gentoo", true),
			want: "Block: 'app-misc/b' blocked by pending package 'app-misc/b-1:0::gentoo'",
			kind: KindBlock,
		},
		{
			name: "block without current",
			err:  NewBlockError("app-misc/b", "app-misc/b-1:0::gentoo", false),
			want: "Block: 'app-misc/b' blocked by pending package 'app-misc/b-1:0::gentoo' (no current package)",
			kind: KindBlock,
		},
		{
			name: "no resolvable option",
			err:  NewNoResolvableOptionError([]string{"first", "second"}),
			want: "No resolvable || ( ) option. Failure messages are 'first', 'second'",
			kind: KindNoResolvableOption,
		},
		{
			name: "no resolvable option without messages",
			err:  NewNoResolvableOptionError(nil),
			want: "No resolvable || ( ) option.",
			kind: KindNoResolvableOption,
		},
		{
			name: "circular",
			err:  NewCircularDependencyError("app-misc/a", span),
			want: "Circular dependency: 'app-misc/b-1:0::gentoo' -> 'app-misc/a-2:0::gentoo'",
			kind: KindCircularDependency,
		},
		{
			name: "stack too deep",
			err:  NewStackTooDeepError(101),
			want: "DepList stack too deep (101 entries)",
			kind: KindStackTooDeep,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, tt.err.Error())
			}
			if KindOf(tt.err) != tt.kind {
				t.Errorf("Expected kind %s, got %s", tt.kind, KindOf(tt.err))
			}
		})
	}
}

func TestResolutionError_Is(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewAllMaskedError("app-misc/a"))

	if !errors.Is(err, &ResolutionError{Kind: KindAllMasked}) {
		t.Error("Expected errors.Is to match by kind")
	}
	if errors.Is(err, &ResolutionError{Kind: KindBlock}) {
		t.Error("Expected errors.Is not to match a different kind")
	}
	if !IsAllMasked(err) {
		t.Error("Expected IsAllMasked through wrapping")
	}
	if IsBlock(err) || IsInternal(err) || IsStackTooDeep(err) {
		t.Error("Expected other predicates to be false")
	}
}

func TestResolutionError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewInternalError("bad PROVIDE", cause)

	if !errors.Is(err, cause) {
		t.Error("Expected internal error to unwrap to its cause")
	}
}

func TestRecoverable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"all masked", NewAllMaskedError("a"), true},
		{"block", NewBlockError("a", "b", true), true},
		{"no option", NewNoResolvableOptionError(nil), true},
		{"circular", NewCircularDependencyError("a", nil), true},
		{"stack", NewStackTooDeepError(5), false},
		{"internal", NewInternalError("x", nil), false},
		{"foreign", errors.New("database is locked"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Recoverable(tt.err); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestResolutionError_Backtrace(t *testing.T) {
	err := NewAllMaskedError("app-misc/c")
	if err.Backtrace() != err.Message {
		t.Errorf("Expected bare message without context, got %q", err.Backtrace())
	}

	err.WithContext("When resolving package dependency 'app-misc/c':")
	err.WithContext("When adding DEPEND:")

	want := "When adding DEPEND:\n" +
		"  When resolving package dependency 'app-misc/c':\n" +
		"    Error searching for 'app-misc/c': no available versions"
	if err.Backtrace() != want {
		t.Errorf("Expected backtrace:\n%s\ngot:\n%s", want, err.Backtrace())
	}
	if err.Error() != err.Message {
		t.Errorf("Expected Error() to omit context, got %q", err.Error())
	}
}

func TestWithContext_ForeignError(t *testing.T) {
	cause := errors.New("boom")
	if got := withContext(cause, "frame"); got != cause {
		t.Errorf("Expected foreign error unchanged, got %v", got)
	}
	if KindOf(cause) != "" {
		t.Errorf("Expected empty kind, got %q", KindOf(cause))
	}
}
