package config

import (
	"fmt"

	"github.com/deplist/deplist/pkg/engine"
	"github.com/deplist/deplist/pkg/environment"
	"github.com/deplist/deplist/pkg/telemetry"
)

// Config is the deplist configuration file.
type Config struct {
	// Repositories lists repository files in precedence order. For equal
	// versions the lowest Priority wins, then the earlier entry.
	Repositories []RepositoryConfig `json:"repositories" yaml:"repositories" validate:"required,min=1,dive"`

	// Database configures the SQLite store used by import, history and
	// resolve --db.
	Database DatabaseConfig `json:"database" yaml:"database"`

	// Environment holds USE flags, masks and accepted keywords.
	Environment environment.Config `json:"environment" yaml:"environment"`

	// UseHook is a path to a Starlark USE hook. It is read into
	// Environment.Hook on load.
	UseHook string `json:"use_hook,omitempty" yaml:"use_hook,omitempty"`

	// Resolver holds the resolver toggles.
	Resolver ResolverConfig `json:"resolver" yaml:"resolver"`

	// Telemetry configures logging, tracing and metrics.
	Telemetry telemetry.Config `json:"telemetry" yaml:"telemetry"`

	// Source is the file the configuration was loaded from.
	Source string `json:"-" yaml:"-"`
}

// RepositoryConfig names one repository file.
type RepositoryConfig struct {
	// Path is the repository file, relative to the configuration file.
	Path string `json:"path" yaml:"path" validate:"required"`

	// Priority orders repositories with equal versions; lower wins.
	Priority int `json:"priority,omitempty" yaml:"priority,omitempty"`
}

// DatabaseConfig configures the SQLite store.
type DatabaseConfig struct {
	// Path is the database file, relative to the configuration file.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// CacheSize is the number of metadata records cached in memory.
	CacheSize int `json:"cache_size,omitempty" yaml:"cache_size,omitempty" validate:"gte=0"`
}

// ResolverConfig is the file form of engine.Options.
type ResolverConfig struct {
	RdependPost      string   `json:"rdepend_post,omitempty" yaml:"rdepend_post,omitempty" validate:"omitempty,oneof=always as_needed as-needed never"`
	RecursiveDeps    *bool    `json:"recursive_deps,omitempty" yaml:"recursive_deps,omitempty"`
	DropCircular     bool     `json:"drop_circular,omitempty" yaml:"drop_circular,omitempty"`
	DropSelfCircular bool     `json:"drop_self_circular,omitempty" yaml:"drop_self_circular,omitempty"`
	DropAll          bool     `json:"drop_all,omitempty" yaml:"drop_all,omitempty"`
	IgnoreInstalled  bool     `json:"ignore_installed,omitempty" yaml:"ignore_installed,omitempty"`
	MaxStackDepth    int      `json:"max_stack_depth,omitempty" yaml:"max_stack_depth,omitempty" validate:"gte=0"`
	CycleTolerant    []string `json:"cycle_tolerant,omitempty" yaml:"cycle_tolerant,omitempty" validate:"dive,required"`
}

// Options converts the section into resolver options. Unset fields keep
// the defaults of engine.DefaultOptions.
func (r ResolverConfig) Options() (engine.Options, error) {
	opts := engine.DefaultOptions()

	post, err := engine.ParseRdependPost(r.RdependPost)
	if err != nil {
		return opts, err
	}
	opts.RdependPost = post

	if r.RecursiveDeps != nil {
		opts.RecursiveDeps = *r.RecursiveDeps
	}
	opts.DropCircular = r.DropCircular
	opts.DropSelfCircular = r.DropSelfCircular
	opts.DropAll = r.DropAll
	opts.IgnoreInstalled = r.IgnoreInstalled
	if r.MaxStackDepth > 0 {
		opts.MaxStackDepth = r.MaxStackDepth
	}
	if r.CycleTolerant != nil {
		opts.CycleTolerant = append([]string(nil), r.CycleTolerant...)
	}
	return opts, nil
}

// ValidationError is one problem found while loading a configuration.
type ValidationError struct {
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.File != "" && e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationErrors collects the problems of one load.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d configuration errors:", len(e))
	for _, ve := range e {
		msg += "\n  " + ve.Error()
	}
	return msg
}

// Default returns a configuration with no repositories and default
// sections.
func Default() *Config {
	return &Config{
		Telemetry: *telemetry.DefaultConfig(),
	}
}
