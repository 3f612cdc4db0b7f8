package environment

import (
	"time"
)

// Config is the user's view of the system: enabled USE flags, accepted
// keywords and licenses, and package masks.
type Config struct {
	// Use lists global USE flags. A "-flag" entry disables a flag enabled
	// earlier in the list.
	Use []string `json:"use,omitempty" yaml:"use,omitempty"`

	// PackageUse adjusts flags for packages matching an atom. Entries are
	// applied in order, so the last matching entry wins.
	PackageUse []PackageUse `json:"package_use,omitempty" yaml:"package_use,omitempty" validate:"dive"`

	// AcceptKeywords is ACCEPT_KEYWORDS. Empty disables keyword masking.
	AcceptKeywords []string `json:"accept_keywords,omitempty" yaml:"accept_keywords,omitempty"`

	// AcceptLicense is ACCEPT_LICENSE. Empty disables license masking.
	AcceptLicense []string `json:"accept_license,omitempty" yaml:"accept_license,omitempty"`

	// EAPIs lists the supported EAPIs. Empty accepts any.
	EAPIs []string `json:"eapis,omitempty" yaml:"eapis,omitempty"`

	// Mask lists package.mask atoms.
	Mask []string `json:"mask,omitempty" yaml:"mask,omitempty"`

	// Unmask lists package.unmask atoms, overriding Mask.
	Unmask []string `json:"unmask,omitempty" yaml:"unmask,omitempty"`

	// Policies lists extra .rego files or directories.
	Policies []string `json:"policies,omitempty" yaml:"policies,omitempty"`

	// Hook is a Starlark script defining use(pkg, flags). See Hook.
	Hook string `json:"hook,omitempty" yaml:"hook,omitempty"`

	// HookTimeout bounds one hook call.
	HookTimeout time.Duration `json:"hook_timeout,omitempty" yaml:"hook_timeout,omitempty"`

	// CacheSize is the number of per-package flag sets kept.
	CacheSize int `json:"cache_size,omitempty" yaml:"cache_size,omitempty" validate:"gte=0"`
}

// PackageUse is one package.use line.
type PackageUse struct {
	Atom  string   `json:"atom" yaml:"atom" validate:"required"`
	Flags []string `json:"flags" yaml:"flags" validate:"required"`
}

// DefaultCacheSize is used when Config.CacheSize is zero.
const DefaultCacheSize = 4096

// DefaultHookTimeout is used when Config.HookTimeout is zero.
const DefaultHookTimeout = 5 * time.Second
