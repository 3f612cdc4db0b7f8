package policy

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/rs/zerolog"
)

// reloadDelay coalesces the bursts of events editors produce on save.
const reloadDelay = 300 * time.Millisecond

// Loader reads site policies from .rego files.
type Loader struct {
	logger zerolog.Logger
}

// NewLoader creates a policy loader.
func NewLoader(logger zerolog.Logger) *Loader {
	return &Loader{
		logger: logger.With().Str("component", "policy-loader").Logger(),
	}
}

// LoadFromPaths reads every .rego file named in paths, descending into
// directories. Any unreadable or invalid file fails the whole load.
func (l *Loader) LoadFromPaths(ctx context.Context, paths []string) ([]Policy, error) {
	var files []string
	for _, path := range paths {
		found, err := regoFiles(path)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}

	policies := make([]Policy, 0, len(files))
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		src, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read policy: %w", err)
		}
		p, err := ParsePolicy(file, string(src))
		if err != nil {
			return nil, err
		}
		l.logger.Debug().Str("path", file).Str("policy", p.Name).Msg("Policy file read")
		policies = append(policies, p)
	}
	return policies, nil
}

// regoFiles returns path itself, or the .rego files below it in lexical
// order.
func regoFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat policy path: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(p) == ".rego" {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", path, err)
	}
	return files, nil
}

// ParsePolicy parses a Rego module read from source. The policy is named
// after the last segment of its package path and described by the comment
// lines above the package clause. The module must define a mask rule.
func ParsePolicy(source, src string) (Policy, error) {
	module, err := ast.ParseModule(source, src)
	if err != nil {
		return Policy{}, err
	}

	path := module.Package.Path
	var name ast.String
	if len(path) > 1 {
		name, _ = path[len(path)-1].Value.(ast.String)
	}
	if name == "" {
		return Policy{}, fmt.Errorf("%s: package %s cannot name a policy", source, path)
	}

	hasMask := false
	for _, rule := range module.Rules {
		if rule.Head.Ref().String() == "mask" {
			hasMask = true
			break
		}
	}
	if !hasMask {
		return Policy{}, fmt.Errorf("%s: package %s defines no mask rule", source, path)
	}

	var desc []string
	for _, c := range module.Comments {
		if c.Location.Row >= module.Package.Location.Row {
			break
		}
		if text := strings.TrimSpace(string(c.Text)); text != "" {
			desc = append(desc, text)
		}
	}

	return Policy{
		Name:        string(name),
		Description: strings.Join(desc, " "),
		Rego:        src,
		Enabled:     true,
		Source:      source,
	}, nil
}

// Watch reloads e's site policies from paths whenever a .rego file below
// them is written, created, removed or renamed. A reload that fails keeps
// the policies already loaded. Watching stops when ctx is done.
func (l *Loader) Watch(ctx context.Context, e *Engine, paths []string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	for _, path := range paths {
		dir := path
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			dir = filepath.Dir(path)
		}
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	go l.processEvents(ctx, watcher, e, paths)
	return nil
}

func (l *Loader) processEvents(ctx context.Context, watcher *fsnotify.Watcher, e *Engine, paths []string) {
	defer func() { _ = watcher.Close() }()

	var reload <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Ext(event.Name) != ".rego" || event.Op == fsnotify.Chmod {
				continue
			}
			l.logger.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("Policy file changed")
			reload = time.After(reloadDelay)

		case <-reload:
			reload = nil
			if err := e.LoadPolicies(ctx, paths); err != nil {
				l.logger.Error().Err(err).Msg("Policy reload failed, keeping previous policies")
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			l.logger.Error().Err(err).Msg("Policy watcher error")
		}
	}
}
