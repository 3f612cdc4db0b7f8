package repository

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/deplist/deplist/pkg/depspec"
)

var repoNameRE = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_-]*$`)

// Loader reads repository files. YAML (and therefore JSON) and CUE are
// supported, chosen by file extension.
type Loader struct {
	logger    zerolog.Logger
	cue       *cue.Context
	validator *validator.Validate
}

// NewLoader creates a new repository loader.
func NewLoader(logger zerolog.Logger) *Loader {
	v := validator.New()
	_ = v.RegisterValidation("pkgname", func(fl validator.FieldLevel) bool {
		return depspec.ValidPackageName(fl.Field().String())
	})
	_ = v.RegisterValidation("reponame", func(fl validator.FieldLevel) bool {
		return repoNameRE.MatchString(fl.Field().String())
	})

	return &Loader{
		logger:    logger.With().Str("component", "repository-loader").Logger(),
		cue:       cuecontext.New(),
		validator: v,
	}
}

// LoadFile loads and validates a repository file.
func (l *Loader) LoadFile(path string) (*Repository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read repository %s: %w", path, err)
	}

	var f *File
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		f, err = l.ParseYAML(data)
	case ".cue":
		f, err = l.ParseCUE(data, path)
	default:
		return nil, fmt.Errorf("unsupported repository format: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load repository %s: %w", path, err)
	}

	repo, err := NewRepositoryFromFile(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load repository %s: %w", path, err)
	}

	l.logger.Debug().
		Str("path", path).
		Str("repository", repo.Name()).
		Int("packages", repo.Len()).
		Msg("Repository loaded")

	return repo, nil
}

// ParseYAML decodes and validates a repository in YAML form. Unknown
// fields are rejected.
func (l *Loader) ParseYAML(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := l.validate(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

// ParseCUE evaluates and validates a repository written in CUE. The file
// may use any CUE feature as long as it evaluates to a concrete File.
func (l *Loader) ParseCUE(data []byte, filename string) (*File, error) {
	val := l.cue.CompileBytes(data, cue.Filename(filename))
	if err := val.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile CUE: %s", cueerrors.Details(err, nil))
	}
	if err := val.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("CUE value is not concrete: %s", cueerrors.Details(err, nil))
	}

	var f File
	if err := val.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode CUE: %w", err)
	}
	if err := l.validate(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (l *Loader) validate(f *File) error {
	if err := l.validator.Struct(f); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}
