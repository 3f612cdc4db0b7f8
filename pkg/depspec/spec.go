package depspec

import (
	"strings"
)

// Spec is a node of a dependency specification tree. The set of node types
// is closed: PackageAtom, BlockAtom, AllOf, AnyOf, Conditional and
// PlainText. Trees are immutable once built and may be shared freely.
type Spec interface {
	String() string
	isSpec()
}

// PackageAtom is a package-matching constraint.
type PackageAtom struct {
	// Package is the qualified category/package name.
	Package string

	// Op is the version operator, OpNone when unversioned.
	Op Operator

	// Version is the version operand. Zero when Op is OpNone.
	Version Version

	// Slot restricts matches to one slot when non-empty.
	Slot string

	// Repository restricts matches to one repository when non-empty.
	Repository string

	text string
}

// BlockAtom asserts that nothing matching Blocked is merged alongside the
// package that declares it.
type BlockAtom struct {
	Blocked *PackageAtom
}

// AllOf requires every child.
type AllOf struct {
	Children []Spec
}

// AnyOf requires at least one child (a "|| ( )" group).
type AnyOf struct {
	Children []Spec
}

// Conditional applies its children only when the USE flag Flag is enabled,
// or disabled when Inverse is set ("flag? ( )" and "!flag? ( )").
type Conditional struct {
	Flag     string
	Inverse  bool
	Children []Spec
}

// PlainText is an opaque word with no package semantics, found in LICENSE
// and RESTRICT style expressions.
type PlainText struct {
	Text string
}

func (*PackageAtom) isSpec() {}
func (*BlockAtom) isSpec()   {}
func (*AllOf) isSpec()       {}
func (*AnyOf) isSpec()       {}
func (*Conditional) isSpec() {}
func (*PlainText) isSpec()   {}

// String renders the blocker with its leading '!'.
func (b *BlockAtom) String() string {
	return "!" + b.Blocked.String()
}

// String renders the children separated by spaces, without parentheses.
// A nested AllOf is rendered in parentheses by its parent.
func (a *AllOf) String() string {
	return joinChildren(a.Children)
}

func (a *AnyOf) String() string {
	return "|| ( " + joinChildren(a.Children) + " )"
}

func (c *Conditional) String() string {
	prefix := c.Flag + "?"
	if c.Inverse {
		prefix = "!" + prefix
	}
	return prefix + " ( " + joinChildren(c.Children) + " )"
}

func (t *PlainText) String() string {
	return t.Text
}

func joinChildren(children []Spec) string {
	parts := make([]string, 0, len(children))
	for _, c := range children {
		if all, ok := c.(*AllOf); ok {
			parts = append(parts, "( "+all.String()+" )")
			continue
		}
		parts = append(parts, c.String())
	}
	return strings.Join(parts, " ")
}
