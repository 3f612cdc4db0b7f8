package policy

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/rs/zerolog"

	"github.com/deplist/deplist/pkg/engine"
)

// Engine evaluates mask policies. It is safe for concurrent use.
//
// Policies live in two layers. The base layer holds the built-ins and
// anything registered with AddPolicy. The file layer holds the policies of
// the last successful LoadPolicies call and shadows base policies of the
// same name.
type Engine struct {
	mu     sync.RWMutex
	base   map[string]*compiledPolicy
	files  map[string]*compiledPolicy
	logger zerolog.Logger
}

type compiledPolicy struct {
	policy Policy
	query  rego.PreparedEvalQuery
}

// NewEngine creates a policy engine with the built-in policies loaded.
func NewEngine(logger zerolog.Logger) (*Engine, error) {
	e := &Engine{
		base:   make(map[string]*compiledPolicy),
		files:  make(map[string]*compiledPolicy),
		logger: logger.With().Str("component", "policy-engine").Logger(),
	}

	for _, p := range GetBuiltinPolicies() {
		cp, err := compile(context.Background(), p)
		if err != nil {
			return nil, fmt.Errorf("failed to compile built-in policy %s: %w", p.Name, err)
		}
		e.base[p.Name] = cp
	}
	return e, nil
}

// compile prepares the query for the module's mask rule.
func compile(ctx context.Context, p Policy) (*compiledPolicy, error) {
	module, err := ast.ParseModule(p.Name, p.Rego)
	if err != nil {
		return nil, fmt.Errorf("failed to parse policy: %w", err)
	}

	query, err := rego.New(
		rego.ParsedModule(module),
		rego.Query(module.Package.Path.String()+".mask"),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare query: %w", err)
	}
	return &compiledPolicy{policy: p, query: query}, nil
}

// lookup returns the effective policy named name. The caller holds mu.
func (e *Engine) lookup(name string) *compiledPolicy {
	if cp, ok := e.files[name]; ok {
		return cp
	}
	return e.base[name]
}

// names returns the effective policy names in evaluation order. The caller
// holds mu.
func (e *Engine) names() []string {
	names := make([]string, 0, len(e.base)+len(e.files))
	for name := range e.base {
		names = append(names, name)
	}
	for name := range e.files {
		if _, shadowed := e.base[name]; !shadowed {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Evaluate runs every enabled policy against input. A policy that fails to
// evaluate is reported as a warning and does not mask the candidate.
func (e *Engine) Evaluate(ctx context.Context, input *Input) (*Result, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	input = input.normalized()
	result := &Result{}
	for _, name := range e.names() {
		cp := e.lookup(name)
		if !cp.policy.Enabled {
			continue
		}

		reasons, err := cp.eval(ctx, input)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.logger.Error().Err(err).
				Str("policy", name).
				Str("package", input.Package.Name).
				Msg("Policy evaluation failed")
			result.Warnings = append(result.Warnings, fmt.Sprintf("Policy %s evaluation failed: %v", name, err))
			continue
		}
		result.Reasons = append(result.Reasons, reasons...)
	}
	return result, nil
}

func (cp *compiledPolicy) eval(ctx context.Context, input *Input) (engine.MaskReasons, error) {
	rs, err := cp.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("policy evaluation error: %w", err)
	}

	var reasons engine.MaskReasons
	for _, r := range rs {
		if len(r.Expressions) == 0 {
			continue
		}
		set, ok := r.Expressions[0].Value.([]interface{})
		if !ok {
			continue
		}
		for _, member := range set {
			reasons = append(reasons, maskReason(member))
		}
	}
	return reasons, nil
}

// maskReason converts one member of a mask set: a message string, or an
// object with optional "kind" and "message" fields.
func maskReason(v interface{}) engine.MaskReason {
	reason := engine.MaskReason{Kind: engine.MaskPolicy}
	switch m := v.(type) {
	case string:
		reason.Message = m
	case map[string]interface{}:
		if kind, ok := m["kind"].(string); ok && kind != "" {
			reason.Kind = engine.MaskKind(kind)
		}
		reason.Message, _ = m["message"].(string)
	default:
		reason.Message = fmt.Sprintf("%v", v)
	}
	return reason
}

// AddPolicy compiles p into the base layer, replacing a policy with the
// same name.
func (e *Engine) AddPolicy(ctx context.Context, p Policy) error {
	cp, err := compile(ctx, p)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.base[p.Name] = cp
	e.mu.Unlock()
	return nil
}

// LoadPolicies replaces the file layer with the .rego policies found under
// paths. If any file fails to load or compile the previous file layer is
// kept and the error is returned.
func (e *Engine) LoadPolicies(ctx context.Context, paths []string) error {
	policies, err := NewLoader(e.logger).LoadFromPaths(ctx, paths)
	if err != nil {
		return fmt.Errorf("failed to load policies: %w", err)
	}

	files := make(map[string]*compiledPolicy, len(policies))
	for _, p := range policies {
		if prev, dup := files[p.Name]; dup {
			return fmt.Errorf("policy %s is defined in both %s and %s", p.Name, prev.policy.Source, p.Source)
		}
		cp, err := compile(ctx, p)
		if err != nil {
			return fmt.Errorf("failed to compile policy %s from %s: %w", p.Name, p.Source, err)
		}
		files[p.Name] = cp
	}

	var overrides []string
	e.mu.Lock()
	e.files = files
	for name := range files {
		if _, ok := e.base[name]; ok {
			overrides = append(overrides, name)
		}
	}
	e.mu.Unlock()

	e.logger.Info().
		Int("count", len(files)).
		Strs("overrides", overrides).
		Msg("Site policies loaded")
	return nil
}

// GetPolicy returns the effective policy named name.
func (e *Engine) GetPolicy(name string) (*Policy, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	cp := e.lookup(name)
	if cp == nil {
		return nil, fmt.Errorf("policy not found: %s", name)
	}
	p := cp.policy
	return &p, nil
}

// ListPolicies returns the effective policies sorted by name.
func (e *Engine) ListPolicies() []Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := e.names()
	policies := make([]Policy, len(names))
	for i, name := range names {
		policies[i] = e.lookup(name).policy
	}
	return policies
}

// EnablePolicy enables a policy by name.
func (e *Engine) EnablePolicy(name string) error {
	return e.setEnabled(name, true)
}

// DisablePolicy disables a policy by name. A reload re-enables file
// policies.
func (e *Engine) DisablePolicy(name string) error {
	return e.setEnabled(name, false)
}

func (e *Engine) setEnabled(name string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cp := e.lookup(name)
	if cp == nil {
		return fmt.Errorf("policy not found: %s", name)
	}
	cp.policy.Enabled = enabled
	e.logger.Info().Str("policy", name).Bool("enabled", enabled).Msg("Policy toggled")
	return nil
}
