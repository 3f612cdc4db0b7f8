// Package depspec models dependency specifications: package atoms,
// versions and the trees produced by parsing DEPEND-style strings.
//
// # Trees
//
// A parsed expression is a tree of Spec nodes. The node set is closed:
//
//   - PackageAtom: a constraint such as >=dev-libs/openssl-3.0:0
//   - BlockAtom: !atom, the blocked package must not be merged alongside
//   - AllOf: every child must hold, written "( a b )" or at the top level
//   - AnyOf: "|| ( a b )", at least one child must hold
//   - Conditional: "flag? ( ... )" or "!flag? ( ... )"
//   - PlainText: opaque words in LICENSE or RESTRICT expressions
//
// Consumers dispatch with a type switch:
//
//	switch n := spec.(type) {
//	case *depspec.PackageAtom:
//	    ...
//	case *depspec.AnyOf:
//	    ...
//	}
//
// Trees are never modified after Parse returns them.
//
// # Versions
//
// Version implements the usual package version ordering: numeric
// components, an optional letter, _alpha/_beta/_pre/_rc/_p suffixes and a
// -rN revision, so that 1.0_rc1 < 1.0 < 1.0-r1 < 1.0_p1.
package depspec
