package engine

import (
	"strings"

	"github.com/deplist/deplist/pkg/depspec"
)

// PackageID identifies one version of a package in one repository.
type PackageID struct {
	// Name is the qualified category/package name.
	Name string `json:"name"`

	// Version is the package version.
	Version depspec.Version `json:"version"`

	// Repository is the name of the originating repository.
	Repository string `json:"repository"`
}

// String renders the identity as name-version::repository.
func (p PackageID) String() string {
	s := p.Name + "-" + p.Version.String()
	if p.Repository != "" {
		s += "::" + p.Repository
	}
	return s
}

// Candidate is one match returned by a PackageDatabase query.
type Candidate struct {
	PackageID

	// Slot is the candidate's slot, as used for atom matching.
	Slot string `json:"slot"`

	// Installed is set when the candidate comes from the installed
	// package database rather than a source repository.
	Installed bool `json:"installed,omitempty"`
}

// VersionMetadata holds the metadata of one package version. Values are
// treated as immutable once returned by a PackageDatabase.
type VersionMetadata struct {
	Slot        string   `json:"slot" yaml:"slot"`
	Depend      string   `json:"depend,omitempty" yaml:"depend,omitempty"`
	RDepend     string   `json:"rdepend,omitempty" yaml:"rdepend,omitempty"`
	PDepend     string   `json:"pdepend,omitempty" yaml:"pdepend,omitempty"`
	Provide     string   `json:"provide,omitempty" yaml:"provide,omitempty"`
	Keywords    []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	License     string   `json:"license,omitempty" yaml:"license,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Homepage    string   `json:"homepage,omitempty" yaml:"homepage,omitempty"`
	EAPI        string   `json:"eapi,omitempty" yaml:"eapi,omitempty"`

	// Virtual is set on synthesized entries to the name of the package
	// whose PROVIDE created them.
	Virtual string `json:"virtual,omitempty" yaml:"-"`
}

// DependencyRole names one of the dependency variables of a package.
type DependencyRole string

const (
	// RoleDepend is DEPEND: build-time dependencies, merged before.
	RoleDepend DependencyRole = "DEPEND"

	// RoleRDepend is RDEPEND: run-time dependencies, merged before when
	// possible.
	RoleRDepend DependencyRole = "RDEPEND"

	// RolePDepend is PDEPEND: post dependencies, merged after.
	RolePDepend DependencyRole = "PDEPEND"
)

// Text returns the raw dependency string for role.
func (m *VersionMetadata) Text(role DependencyRole) string {
	if m == nil {
		return ""
	}
	switch role {
	case RoleDepend:
		return m.Depend
	case RoleRDepend:
		return m.RDepend
	case RolePDepend:
		return m.PDepend
	}
	return ""
}

// MaskKind is the reason category of a mask.
type MaskKind string

const (
	MaskKeyword MaskKind = "keyword"
	MaskLicense MaskKind = "license"
	MaskPackage MaskKind = "package_mask"
	MaskEAPI    MaskKind = "eapi"
	MaskPolicy  MaskKind = "policy"
)

// MaskReason explains why a candidate may not be used.
type MaskReason struct {
	Kind    MaskKind `json:"kind"`
	Message string   `json:"message"`
}

// MaskReasons is the set of reasons masking a candidate. An empty set means
// the candidate is usable.
type MaskReasons []MaskReason

// Any reports whether the candidate is masked.
func (m MaskReasons) Any() bool {
	return len(m) > 0
}

func (m MaskReasons) String() string {
	parts := make([]string, len(m))
	for i, r := range m {
		parts[i] = string(r.Kind) + ": " + r.Message
	}
	return strings.Join(parts, "; ")
}

// Entry is one package in the merge list.
type Entry struct {
	Name       string           `json:"name"`
	Version    depspec.Version  `json:"version"`
	Repository string           `json:"repository"`
	Slot       string           `json:"slot"`
	Metadata   *VersionMetadata `json:"-"`

	// HasPreDeps is set once DEPEND has been expanded.
	HasPreDeps bool `json:"has_predeps"`

	// HasTryPreDeps is set once RDEPEND has been expanded.
	HasTryPreDeps bool `json:"has_trypredeps"`

	// HasPostDeps is set once PDEPEND has been expanded.
	HasPostDeps bool `json:"has_postdeps"`

	// Synthetic marks virtual entries created from another entry's PROVIDE.
	Synthetic bool `json:"synthetic,omitempty"`
}

// ID returns the entry's package identity.
func (e Entry) ID() PackageID {
	return PackageID{Name: e.Name, Version: e.Version, Repository: e.Repository}
}

// String renders the entry as name-version:slot::repository.
func (e Entry) String() string {
	return e.Name + "-" + e.Version.String() + ":" + e.Slot + "::" + e.Repository
}

// Matches reports whether atom matches this entry.
func (e Entry) Matches(atom *depspec.PackageAtom) bool {
	return atom.Matches(e.Name, e.Version, e.Slot, e.Repository)
}

// Complete reports whether all three dependency roles have been expanded.
func (e Entry) Complete() bool {
	return e.HasPreDeps && e.HasTryPreDeps && e.HasPostDeps
}
