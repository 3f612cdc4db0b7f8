// Package policy evaluates package mask policies written in Rego with the
// Open Policy Agent.
//
// Every policy is a Rego module whose "mask" set rule yields the reasons a
// candidate may not be installed. The engine ships four built-in policies:
//
//   - keywords: ACCEPT_KEYWORDS semantics, including "~arch", "*", "~*" and "**"
//   - license: ACCEPT_LICENSE semantics, including "*" and "-NAME"
//   - eapi: rejects EAPIs the installer does not support
//   - package-mask: reports package.mask matches computed by the caller
//
// Site policies are loaded from .rego files. A file policy is named after
// the last segment of its package path, so "package site.keywords" replaces
// the built-in keywords policy until the file goes away:
//
//	eng, err := policy.NewEngine(logger)
//	if err != nil {
//	    return err
//	}
//	if err := eng.LoadPolicies(ctx, []string{"/etc/deplist/policies"}); err != nil {
//	    return err
//	}
//	result, err := eng.Evaluate(ctx, &policy.Input{...})
//
// LoadPolicies swaps all file policies at once; a reload with a broken file
// keeps the previous set. Loader.Watch calls it when a file changes.
//
// A policy that fails at evaluation time is reported in Result.Warnings and
// does not mask anything.
package policy
