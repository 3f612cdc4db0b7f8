package config

import (
	"fmt"
	"sort"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// SchemaRegistry manages CUE schemas for validation. A schema registered
// as name must define the definition #name.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a new schema registry with built-in schemas.
func NewSchemaRegistry(ctx *cue.Context) *SchemaRegistry {
	if ctx == nil {
		ctx = cuecontext.New()
	}
	sr := &SchemaRegistry{
		ctx:     ctx,
		schemas: make(map[string]cue.Value),
	}

	if err := sr.RegisterSchema("Config", builtinConfigSchema); err != nil {
		panic(err)
	}

	return sr
}

// RegisterSchema compiles src and registers its #name definition.
func (sr *SchemaRegistry) RegisterSchema(name, src string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(src, cue.Filename(name+".cue"))
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}
	def := val.LookupPath(cue.ParsePath("#" + name))
	if !def.Exists() {
		return fmt.Errorf("schema %s does not define #%s", name, name)
	}

	sr.schemas[name] = def
	return nil
}

// GetSchema retrieves a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// Unify applies the named schema to val and checks that the result is
// concrete.
func (sr *SchemaRegistry) Unify(name string, val cue.Value) (cue.Value, error) {
	schema, ok := sr.GetSchema(name)
	if !ok {
		return cue.Value{}, fmt.Errorf("schema %s not found", name)
	}

	unified := schema.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return cue.Value{}, err
	}
	return unified, nil
}

// ValidateAgainstSchema validates Go data against a named schema.
func (sr *SchemaRegistry) ValidateAgainstSchema(name string, data interface{}) error {
	dataVal := sr.ctx.Encode(data)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	if _, err := sr.Unify(name, dataVal); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// ListSchemas returns all registered schema names, sorted.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Durations are nanoseconds in CUE files.
const builtinConfigSchema = `
#Config: {
	repositories: [...#Repository]

	database?: {
		path?:       string
		cache_size?: int & >=0
	}

	environment?: #Environment

	// Path to a Starlark file defining use(pkg, flags)
	use_hook?: string

	resolver?: #Resolver

	telemetry?: {...}
}

#Repository: {
	path:      string & !=""
	priority?: int
}

#Environment: {
	use?: [...string]
	package_use?: [...{
		atom:  string & !=""
		flags: [...string]
	}]
	accept_keywords?: [...string]
	accept_license?: [...string]
	eapis?: [...string]
	mask?: [...string]
	unmask?: [...string]
	policies?: [...string]
	hook?:         string
	hook_timeout?: int & >=0
	cache_size?:   int & >=0
}

#Resolver: {
	rdepend_post?:       "always" | "as_needed" | "as-needed" | "never"
	recursive_deps?:     bool
	drop_circular?:      bool
	drop_self_circular?: bool
	drop_all?:           bool
	ignore_installed?:   bool
	max_stack_depth?:    int & >=0
	cycle_tolerant?: [...string]
}
`
