package environment

import (
	"context"
	"fmt"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/deplist/deplist/pkg/depspec"
	"github.com/deplist/deplist/pkg/engine"
	"github.com/deplist/deplist/pkg/policy"
)

type packageUse struct {
	atom  *depspec.PackageAtom
	flags []string
}

// Environment answers USE flag and mask questions for the resolver. It
// implements engine.Environment and is safe for concurrent use.
type Environment struct {
	config     Config
	logger     zerolog.Logger
	use        map[string]bool
	packageUse []packageUse
	mask       []*depspec.PackageAtom
	unmask     []*depspec.PackageAtom
	policies   *policy.Engine
	hook       *Hook
	cache      *lru.Cache[string, map[string]bool]
}

// Option configures an Environment.
type Option func(*Environment)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Environment) {
		e.logger = logger.With().Str("component", "environment").Logger()
	}
}

// WithPolicyEngine shares a policy engine instead of creating one.
func WithPolicyEngine(p *policy.Engine) Option {
	return func(e *Environment) {
		e.policies = p
	}
}

// New builds an Environment from cfg. Atoms, the hook and any extra
// policies are compiled here so that errors surface before resolution.
func New(cfg Config, opts ...Option) (*Environment, error) {
	e := &Environment{
		config: cfg,
		logger: zerolog.Nop(),
		use:    applyFlags(nil, cfg.Use),
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, pu := range cfg.PackageUse {
		atom, err := depspec.ParseAtom(pu.Atom)
		if err != nil {
			return nil, fmt.Errorf("invalid package_use atom: %w", err)
		}
		e.packageUse = append(e.packageUse, packageUse{atom: atom, flags: pu.Flags})
	}

	var err error
	if e.mask, err = parseAtoms(cfg.Mask); err != nil {
		return nil, fmt.Errorf("invalid mask atom: %w", err)
	}
	if e.unmask, err = parseAtoms(cfg.Unmask); err != nil {
		return nil, fmt.Errorf("invalid unmask atom: %w", err)
	}

	if strings.TrimSpace(cfg.Hook) != "" {
		if e.hook, err = NewHook(cfg.Hook, cfg.HookTimeout); err != nil {
			return nil, fmt.Errorf("invalid USE hook: %w", err)
		}
	}

	if e.policies == nil {
		if e.policies, err = policy.NewEngine(e.logger); err != nil {
			return nil, err
		}
	}
	if len(cfg.Policies) > 0 {
		if err := e.policies.LoadPolicies(context.Background(), cfg.Policies); err != nil {
			return nil, err
		}
	}

	size := cfg.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	if e.cache, err = lru.New[string, map[string]bool](size); err != nil {
		return nil, fmt.Errorf("failed to create flag cache: %w", err)
	}

	return e, nil
}

func parseAtoms(list []string) ([]*depspec.PackageAtom, error) {
	out := make([]*depspec.PackageAtom, 0, len(list))
	for _, s := range list {
		atom, err := depspec.ParseAtom(s)
		if err != nil {
			return nil, err
		}
		out = append(out, atom)
	}
	return out, nil
}

// applyFlags applies "flag" and "-flag" tokens in order to a copy of base.
func applyFlags(base map[string]bool, tokens []string) map[string]bool {
	out := make(map[string]bool, len(base)+len(tokens))
	for k, v := range base {
		out[k] = v
	}
	for _, t := range tokens {
		switch {
		case t == "-*":
			for k := range out {
				delete(out, k)
			}
		case strings.HasPrefix(t, "-"):
			delete(out, t[1:])
		case t != "":
			out[t] = true
		}
	}
	return out
}

// Config returns the configuration the environment was built from.
func (e *Environment) Config() Config {
	return e.config
}

// Policies returns the policy engine used for masking.
func (e *Environment) Policies() *policy.Engine {
	return e.policies
}

// QueryUse reports whether flag is enabled, globally when pkg is nil.
func (e *Environment) QueryUse(flag string, pkg *engine.PackageID) bool {
	if pkg == nil {
		return e.use[flag]
	}
	return e.Flags(context.Background(), *pkg)[flag]
}

// Flags returns the enabled flags for pkg. The result is shared and must
// not be modified.
func (e *Environment) Flags(ctx context.Context, pkg engine.PackageID) map[string]bool {
	key := pkg.String()
	if flags, ok := e.cache.Get(key); ok {
		return flags
	}

	flags := e.use
	for _, pu := range e.packageUse {
		// Slot restrictions are ignored: the identity carries no slot.
		if pu.atom.Matches(pkg.Name, pkg.Version, pu.atom.Slot, pkg.Repository) {
			flags = applyFlags(flags, pu.flags)
		}
	}

	if e.hook != nil {
		out, err := e.hook.Evaluate(ctx, pkg, sortedFlags(flags))
		if err != nil {
			e.logger.Error().Err(err).Str("package", key).Msg("USE hook failed, using configured flags")
		} else {
			flags = applyFlags(nil, out)
		}
	}

	e.cache.Add(key, flags)
	return flags
}

func sortedFlags(flags map[string]bool) []string {
	out := make([]string, 0, len(flags))
	for f, on := range flags {
		if on {
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}

// MaskReasons evaluates the mask policies for one candidate.
func (e *Environment) MaskReasons(ctx context.Context, id engine.PackageID, md *engine.VersionMetadata) (engine.MaskReasons, error) {
	if md == nil {
		md = &engine.VersionMetadata{}
	}

	licenses, err := e.licenseGroups(id, md.License)
	if err != nil {
		return nil, fmt.Errorf("invalid LICENSE for %s: %w", id, err)
	}

	input := &policy.Input{
		Package: policy.PackageInput{
			Name:       id.Name,
			Version:    id.Version.String(),
			Repository: id.Repository,
			Slot:       md.Slot,
			Keywords:   md.Keywords,
			EAPI:       md.EAPI,
			Licenses:   licenses,
		},
		Config: policy.ConfigInput{
			AcceptKeywords: e.config.AcceptKeywords,
			AcceptLicense:  e.config.AcceptLicense,
			EAPIs:          e.config.EAPIs,
		},
	}
	if by, masked := e.packageMasked(id, md.Slot); masked {
		input.Package.Masked = true
		input.Package.MaskedBy = by
	}

	result, err := e.policies.Evaluate(ctx, input)
	if err != nil {
		return nil, err
	}
	for _, w := range result.Warnings {
		e.logger.Warn().Str("package", id.String()).Msg(w)
	}
	return result.Reasons, nil
}

// packageMasked reports the first package.mask atom matching the candidate,
// unless a package.unmask atom matches too.
func (e *Environment) packageMasked(id engine.PackageID, slot string) (string, bool) {
	for _, a := range e.unmask {
		if a.Matches(id.Name, id.Version, slot, id.Repository) {
			return "", false
		}
	}
	for _, a := range e.mask {
		if a.Matches(id.Name, id.Version, slot, id.Repository) {
			return a.String(), true
		}
	}
	return "", false
}

// licenseGroups evaluates a LICENSE expression into groups of alternatives,
// all of which must be satisfied. Nested groups inside || ( ) are flattened
// into the alternatives.
func (e *Environment) licenseGroups(id engine.PackageID, text string) ([][]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	tree, err := depspec.Parse(text, depspec.LicenseClass)
	if err != nil {
		return nil, err
	}

	use := func(flag string) bool { return e.QueryUse(flag, &id) }
	var groups [][]string
	var collect func(children []depspec.Spec)
	collect = func(children []depspec.Spec) {
		for _, c := range children {
			switch n := c.(type) {
			case *depspec.PlainText:
				groups = append(groups, []string{n.Text})
			case *depspec.AllOf:
				collect(n.Children)
			case *depspec.Conditional:
				if use(n.Flag) != n.Inverse {
					collect(n.Children)
				}
			case *depspec.AnyOf:
				var alt []string
				depspec.Walk(n, func(s depspec.Spec) bool {
					switch m := s.(type) {
					case *depspec.Conditional:
						return use(m.Flag) != m.Inverse
					case *depspec.PlainText:
						alt = append(alt, m.Text)
					}
					return true
				})
				if len(alt) > 0 {
					groups = append(groups, alt)
				}
			}
		}
	}
	collect(tree.Children)
	return groups, nil
}
