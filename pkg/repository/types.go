package repository

import (
	"github.com/deplist/deplist/pkg/engine"
)

// File is the on-disk form of a repository.
type File struct {
	// Name identifies the repository in atoms (::name) and output.
	Name string `json:"name" yaml:"name" validate:"required,reponame"`

	// Installed marks the repository as the set of installed packages.
	Installed bool `json:"installed,omitempty" yaml:"installed,omitempty"`

	// Packages lists one entry per package version.
	Packages []PackageSpec `json:"packages" yaml:"packages" validate:"dive"`
}

// PackageSpec describes one version of a package.
type PackageSpec struct {
	Name        string   `json:"name" yaml:"name" validate:"required,pkgname"`
	Version     string   `json:"version" yaml:"version" validate:"required"`
	Slot        string   `json:"slot,omitempty" yaml:"slot,omitempty"`
	Depend      string   `json:"depend,omitempty" yaml:"depend,omitempty"`
	RDepend     string   `json:"rdepend,omitempty" yaml:"rdepend,omitempty"`
	PDepend     string   `json:"pdepend,omitempty" yaml:"pdepend,omitempty"`
	Provide     string   `json:"provide,omitempty" yaml:"provide,omitempty"`
	Keywords    []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	License     string   `json:"license,omitempty" yaml:"license,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Homepage    string   `json:"homepage,omitempty" yaml:"homepage,omitempty"`
	EAPI        string   `json:"eapi,omitempty" yaml:"eapi,omitempty"`
}

// DefaultSlot is used for packages that do not declare one.
const DefaultSlot = "0"

// Metadata converts p to the resolver's metadata type.
func (p PackageSpec) Metadata() *engine.VersionMetadata {
	slot := p.Slot
	if slot == "" {
		slot = DefaultSlot
	}
	return &engine.VersionMetadata{
		Slot:        slot,
		Depend:      p.Depend,
		RDepend:     p.RDepend,
		PDepend:     p.PDepend,
		Provide:     p.Provide,
		Keywords:    append([]string(nil), p.Keywords...),
		License:     p.License,
		Description: p.Description,
		Homepage:    p.Homepage,
		EAPI:        p.EAPI,
	}
}

// SpecFromMetadata is the inverse of PackageSpec.Metadata.
func SpecFromMetadata(id engine.PackageID, md *engine.VersionMetadata) PackageSpec {
	return PackageSpec{
		Name:        id.Name,
		Version:     id.Version.String(),
		Slot:        md.Slot,
		Depend:      md.Depend,
		RDepend:     md.RDepend,
		PDepend:     md.PDepend,
		Provide:     md.Provide,
		Keywords:    append([]string(nil), md.Keywords...),
		License:     md.License,
		Description: md.Description,
		Homepage:    md.Homepage,
		EAPI:        md.EAPI,
	}
}
