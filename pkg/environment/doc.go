// Package environment implements engine.Environment from a Config: USE
// flags with per-package overrides and an optional Starlark hook, and mask
// reasons from the policy engine.
package environment
