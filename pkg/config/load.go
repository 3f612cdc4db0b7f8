package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Loader reads configuration files. YAML (and therefore JSON) and CUE are
// supported; CUE files are checked against the built-in #Config schema.
type Loader struct {
	logger    zerolog.Logger
	cue       *cue.Context
	schemas   *SchemaRegistry
	validator *validator.Validate
}

// NewLoader creates a new configuration loader.
func NewLoader(logger zerolog.Logger) *Loader {
	ctx := cuecontext.New()
	return &Loader{
		logger:    logger.With().Str("component", "config").Logger(),
		cue:       ctx,
		schemas:   NewSchemaRegistry(ctx),
		validator: validator.New(),
	}
}

// Load reads a configuration file with a discarded log.
func Load(path string) (*Config, error) {
	return NewLoader(zerolog.Nop()).Load(path)
}

// Load reads, validates and normalizes the configuration at path. Relative
// paths inside the file are resolved against its directory.
func (l *Loader) Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg, err := l.Parse(data, path)
	if err != nil {
		return nil, err
	}

	if err := l.finish(cfg, filepath.Dir(path)); err != nil {
		return nil, err
	}

	l.logger.Debug().
		Str("path", path).
		Int("repositories", len(cfg.Repositories)).
		Msg("loaded configuration")
	return cfg, nil
}

// Parse decodes and validates data. The format is chosen by the extension
// of filename. Paths are left as written.
func (l *Loader) Parse(data []byte, filename string) (*Config, error) {
	var (
		cfg *Config
		err error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml", ".json":
		cfg, err = l.parseYAML(data)
	case ".cue":
		cfg, err = l.parseCUE(data, filename)
	default:
		return nil, fmt.Errorf("unsupported config format %q", filepath.Ext(filename))
	}
	if err != nil {
		return nil, err
	}
	cfg.Source = filename

	if err := l.validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) parseYAML(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func (l *Loader) parseCUE(data []byte, filename string) (*Config, error) {
	val := l.cue.CompileBytes(data, cue.Filename(filename))
	if err := val.Err(); err != nil {
		return nil, convertCUEErrors(err)
	}

	unified, err := l.schemas.Unify("Config", val)
	if err != nil {
		return nil, convertCUEErrors(err)
	}

	cfg := Default()
	if err := unified.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// validate runs struct tag validation and the section checks.
func (l *Loader) validate(cfg *Config) error {
	if err := l.validator.Struct(cfg); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			out := make(ValidationErrors, 0, len(verrs))
			for _, fe := range verrs {
				out = append(out, ValidationError{
					Path:    fe.Namespace(),
					Message: fmt.Sprintf("failed on '%s' validation", fe.Tag()),
				})
			}
			return out
		}
		return fmt.Errorf("validation failed: %w", err)
	}

	if _, err := cfg.Resolver.Options(); err != nil {
		return ValidationError{Path: "resolver.rdepend_post", Message: err.Error()}
	}
	if err := cfg.Telemetry.Validate(); err != nil {
		return ValidationError{Path: "telemetry", Message: err.Error()}
	}
	return nil
}

// finish resolves relative paths against dir and reads the USE hook.
func (l *Loader) finish(cfg *Config, dir string) error {
	for i := range cfg.Repositories {
		cfg.Repositories[i].Path = resolvePath(dir, cfg.Repositories[i].Path)
	}
	if cfg.Database.Path != "" && cfg.Database.Path != ":memory:" {
		cfg.Database.Path = resolvePath(dir, cfg.Database.Path)
	}
	for i, p := range cfg.Environment.Policies {
		cfg.Environment.Policies[i] = resolvePath(dir, p)
	}

	if cfg.UseHook != "" {
		cfg.UseHook = resolvePath(dir, cfg.UseHook)
		if cfg.Environment.Hook != "" {
			return ValidationError{Path: "use_hook", Message: "use_hook and environment.hook are mutually exclusive"}
		}
		script, err := os.ReadFile(cfg.UseHook)
		if err != nil {
			return fmt.Errorf("failed to read USE hook: %w", err)
		}
		cfg.Environment.Hook = string(script)
	}
	return nil
}

func resolvePath(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// convertCUEErrors converts CUE errors to ValidationErrors.
func convertCUEErrors(err error) ValidationErrors {
	var out ValidationErrors
	for _, e := range cueerrors.Errors(err) {
		ve := ValidationError{
			Path:    strings.Join(e.Path(), "."),
			Message: cueerrors.Details(e, nil),
		}
		if pos := cueerrors.Positions(e); len(pos) > 0 {
			ve.File = pos[0].Filename()
			ve.Line = pos[0].Line()
			ve.Column = pos[0].Column()
		}
		out = append(out, ve)
	}
	if len(out) == 0 {
		out = append(out, ValidationError{Message: err.Error()})
	}
	return out
}
