package policy

import (
	"github.com/deplist/deplist/pkg/engine"
)

// Policy is a Rego module producing mask reasons.
//
// A policy declares a package and a "mask" set rule. Each member is either
// a string message or an object with "kind" and "message" fields:
//
//	package deplist.masks.example
//
//	import rego.v1
//
//	mask contains {"kind": "policy", "message": "no live ebuilds"} if {
//		input.package.version == "9999"
//	}
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code.
	Rego string `json:"rego"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Source is the file the policy was loaded from, empty for built-ins.
	Source string `json:"source,omitempty"`
}

// Input is the document policies evaluate, available as input.
type Input struct {
	Package PackageInput `json:"package"`
	Config  ConfigInput  `json:"config"`
}

// PackageInput describes the candidate being checked.
type PackageInput struct {
	Name       string   `json:"name"`
	Version    string   `json:"version"`
	Repository string   `json:"repository"`
	Slot       string   `json:"slot"`
	Keywords   []string `json:"keywords"`
	EAPI       string   `json:"eapi"`

	// Licenses is the LICENSE expression with conditionals evaluated, as a
	// list of groups. Every group needs one accepted license.
	Licenses [][]string `json:"licenses"`

	// Masked is set when a package.mask atom matches and no
	// package.unmask atom does.
	Masked bool `json:"masked"`

	// MaskedBy is the package.mask atom that matched.
	MaskedBy string `json:"masked_by,omitempty"`
}

// ConfigInput carries the acceptance settings.
type ConfigInput struct {
	AcceptKeywords []string `json:"accept_keywords"`
	AcceptLicense  []string `json:"accept_license"`
	EAPIs          []string `json:"eapis"`
}

// Result is the outcome of evaluating all policies for one candidate.
type Result struct {
	Reasons engine.MaskReasons `json:"reasons"`

	// Warnings lists policies that failed to evaluate.
	Warnings []string `json:"warnings,omitempty"`
}

// normalized returns a copy with nil lists replaced by empty ones, so that
// policies see [] rather than null.
func (in *Input) normalized() *Input {
	out := *in
	if out.Package.Keywords == nil {
		out.Package.Keywords = []string{}
	}
	if out.Package.Licenses == nil {
		out.Package.Licenses = [][]string{}
	}
	if out.Config.AcceptKeywords == nil {
		out.Config.AcceptKeywords = []string{}
	}
	if out.Config.AcceptLicense == nil {
		out.Config.AcceptLicense = []string{}
	}
	if out.Config.EAPIs == nil {
		out.Config.EAPIs = []string{}
	}
	return &out
}
