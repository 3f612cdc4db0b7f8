// Package engine resolves dependency specifications into an ordered merge
// list.
//
// # Overview
//
// A DepList walks dependency trees (see package depspec) and keeps a single
// ordered list of packages to merge. For every package atom it either finds
// an existing entry or asks the PackageDatabase for candidates, picks the
// best unmasked one and inserts it. New entries are inserted before the
// entry whose dependencies are being expanded, so a package's DEPEND always
// lands before it:
//
//	db := repository.NewDatabase(repo)
//	env, err := environment.New(environment.Config{Use: []string{"ssl"}})
//	if err != nil {
//	    return err
//	}
//	list := engine.New(db, env)
//	if err := list.AddString(ctx, "app-editors/vim"); err != nil {
//	    return err
//	}
//	for _, e := range list.Entries() {
//	    fmt.Println(e)
//	}
//
// # Collaborators
//
// The engine depends only on narrow interfaces:
//
//   - Parser: parses DEPEND, RDEPEND, PDEPEND and PROVIDE strings
//   - PackageDatabase: queries candidates and fetches their metadata
//   - Environment: answers USE flag queries and reports mask reasons
//   - MetricsRecorder: optional resolution metrics
//
// # Resolution Order
//
// Each entry carries three progress flags. HasPreDeps is set once DEPEND
// has been expanded, HasTryPreDeps once RDEPEND has, HasPostDeps once
// PDEPEND has. RDEPEND is expanded eagerly unless RdependPost is
// RdependAlways; under RdependAsNeeded a cycle through RDEPEND defers the
// expansion to the sweep that runs after every Add. PDEPEND is always
// expanded by the sweep, so post dependencies are appended after the
// entries that need them.
//
// # Any-of Groups
//
// A || ( ) group is first checked without modifying the merge list: if any
// viable option is already satisfied the group is a no-op. Otherwise the
// options are tried in order and the first that resolves wins. Failed
// options leave no trace. If all options fail the error aggregates their
// messages.
//
// # Cycles and Blocks
//
// An atom matching an entry whose DEPEND is still being expanded is a
// cycle. DropCircular suppresses all cycles. DropSelfCircular and the
// CycleTolerant list suppress only a package depending on itself.
//
// A block atom fails when a pending entry matches it, unless the entry is
// the blocking package itself or the blocking package PROVIDEs the blocked
// name.
//
// # Errors and Rollback
//
// Every failure is a *ResolutionError classified by ErrorKind. Use the
// helpers to inspect it:
//
//	if engine.IsAllMasked(err) {
//	    // nothing installable matches
//	}
//
// Add is atomic: on error the merge list is restored to its state before
// the call. StackTooDeep and internal errors are never absorbed by any-of
// retries.
//
// # Merge Graph
//
// Graph derives the dependency edges between merge list entries. The
// result can be rendered for Graphviz with ToDOT and checked with
// VerifyOrder and Cycles.
package engine
