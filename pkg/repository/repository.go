package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/deplist/deplist/pkg/depspec"
	"github.com/deplist/deplist/pkg/engine"
)

type version struct {
	version  depspec.Version
	metadata *engine.VersionMetadata
}

// Repository is a named set of package versions. It is safe for
// concurrent use.
type Repository struct {
	name      string
	installed bool

	mu       sync.RWMutex
	packages map[string][]version
}

// NewRepository creates an empty repository.
func NewRepository(name string, installed bool) *Repository {
	return &Repository{
		name:      name,
		installed: installed,
		packages:  make(map[string][]version),
	}
}

// NewRepositoryFromFile builds a repository from its decoded file form.
func NewRepositoryFromFile(f *File) (*Repository, error) {
	repo := NewRepository(f.Name, f.Installed)
	for _, p := range f.Packages {
		if err := repo.Add(p); err != nil {
			return nil, err
		}
	}
	return repo, nil
}

// Name returns the repository name.
func (r *Repository) Name() string { return r.name }

// Installed reports whether the repository holds installed packages.
func (r *Repository) Installed() bool { return r.installed }

// Add inserts a package version, replacing an existing entry for the same
// version.
func (r *Repository) Add(p PackageSpec) error {
	if !depspec.ValidPackageName(p.Name) {
		return fmt.Errorf("invalid package name %q", p.Name)
	}
	v, err := depspec.ParseVersion(p.Version)
	if err != nil {
		return fmt.Errorf("package %s: %w", p.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	versions := r.packages[p.Name]
	i := sort.Search(len(versions), func(i int) bool {
		return versions[i].version.Compare(v) >= 0
	})
	entry := version{version: v, metadata: p.Metadata()}
	if i < len(versions) && versions[i].version.Equal(v) {
		versions[i] = entry
		return nil
	}
	versions = append(versions, version{})
	copy(versions[i+1:], versions[i:])
	versions[i] = entry
	r.packages[p.Name] = versions
	return nil
}

// Packages returns every package version in name then version order.
func (r *Repository) Packages() []PackageSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.packages))
	for name := range r.packages {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []PackageSpec
	for _, name := range names {
		for _, v := range r.packages[name] {
			id := engine.PackageID{Name: name, Version: v.version, Repository: r.name}
			out = append(out, SpecFromMetadata(id, v.metadata))
		}
	}
	return out
}

// Len returns the number of package versions.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, versions := range r.packages {
		n += len(versions)
	}
	return n
}

// match appends the candidates matching atom in ascending version order.
func (r *Repository) match(atom *depspec.PackageAtom, out []engine.Candidate) []engine.Candidate {
	if atom.Repository != "" && atom.Repository != r.name {
		return out
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, v := range r.packages[atom.Package] {
		if !atom.Matches(atom.Package, v.version, v.metadata.Slot, r.name) {
			continue
		}
		out = append(out, engine.Candidate{
			PackageID: engine.PackageID{
				Name:       atom.Package,
				Version:    v.version,
				Repository: r.name,
			},
			Slot:      v.metadata.Slot,
			Installed: r.installed,
		})
	}
	return out
}

func (r *Repository) metadata(id engine.PackageID) (*engine.VersionMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, v := range r.packages[id.Name] {
		if v.version.Equal(id.Version) {
			return v.metadata, true
		}
	}
	return nil, false
}

// Database is an ordered set of repositories. It implements
// engine.PackageDatabase.
type Database struct {
	mu    sync.RWMutex
	repos []*Repository
}

// NewDatabase creates a database over repos, highest precedence first.
func NewDatabase(repos ...*Repository) *Database {
	return &Database{repos: repos}
}

// Repositories returns the repositories in precedence order.
func (db *Database) Repositories() []*Repository {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return append([]*Repository(nil), db.repos...)
}

// Replace swaps the repository with the same name as repo, or appends it.
// Queries already running keep the old set.
func (db *Database) Replace(repo *Repository) {
	db.mu.Lock()
	defer db.mu.Unlock()

	repos := append([]*Repository(nil), db.repos...)
	for i, r := range repos {
		if r.name == repo.name {
			repos[i] = repo
			db.repos = repos
			return
		}
	}
	db.repos = append(repos, repo)
}

// Query returns the candidates matching atom, least preferred first. For
// equal versions a candidate from a repository earlier in the database is
// preferred.
func (db *Database) Query(ctx context.Context, atom *depspec.PackageAtom) ([]engine.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	db.mu.RLock()
	repos := db.repos
	db.mu.RUnlock()

	var out []engine.Candidate
	for i := len(repos) - 1; i >= 0; i-- {
		out = repos[i].match(atom, out)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Version.Compare(out[j].Version) < 0
	})
	return out, nil
}

// FetchMetadata returns the metadata of one candidate.
func (db *Database) FetchMetadata(ctx context.Context, id engine.PackageID) (*engine.VersionMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	db.mu.RLock()
	repos := db.repos
	db.mu.RUnlock()

	for _, r := range repos {
		if r.name != id.Repository {
			continue
		}
		if md, ok := r.metadata(id); ok {
			return md, nil
		}
	}
	return nil, fmt.Errorf("package %s not found", id)
}
