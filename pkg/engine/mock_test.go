package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/deplist/deplist/pkg/depspec"
)

// versionComparer compares versions by their written form.
var versionComparer = cmp.Comparer(func(a, b depspec.Version) bool {
	return a.String() == b.String()
})

// Mock package database for testing
type mockDatabase struct {
	packages []mockPackage
	queries  int
	failWith error
}

type mockPackage struct {
	candidate Candidate
	metadata  *VersionMetadata
}

func newMockDatabase() *mockDatabase {
	return &mockDatabase{}
}

// add registers a package given as category/name-version.
func (m *mockDatabase) add(cpv string, md VersionMetadata) *mockDatabase {
	return m.addTo("test", false, cpv, md)
}

func (m *mockDatabase) addInstalled(cpv string, md VersionMetadata) *mockDatabase {
	return m.addTo("installed", true, cpv, md)
}

func (m *mockDatabase) addTo(repo string, installed bool, cpv string, md VersionMetadata) *mockDatabase {
	i := strings.LastIndex(cpv, "-")
	if strings.HasPrefix(cpv[i+1:], "r") {
		i = strings.LastIndex(cpv[:i], "-")
	}
	if md.Slot == "" {
		md.Slot = "0"
	}
	metadata := md
	m.packages = append(m.packages, mockPackage{
		candidate: Candidate{
			PackageID: PackageID{
				Name:       cpv[:i],
				Version:    depspec.MustParseVersion(cpv[i+1:]),
				Repository: repo,
			},
			Slot:      md.Slot,
			Installed: installed,
		},
		metadata: &metadata,
	})
	return m
}

func (m *mockDatabase) Query(ctx context.Context, atom *depspec.PackageAtom) ([]Candidate, error) {
	m.queries++
	if m.failWith != nil {
		return nil, m.failWith
	}
	var out []Candidate
	for _, p := range m.packages {
		c := p.candidate
		if atom.Matches(c.Name, c.Version, c.Slot, c.Repository) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Version.Compare(out[j].Version) < 0
	})
	return out, nil
}

func (m *mockDatabase) FetchMetadata(ctx context.Context, id PackageID) (*VersionMetadata, error) {
	for _, p := range m.packages {
		c := p.candidate
		if c.Name == id.Name && c.Version.Equal(id.Version) && c.Repository == id.Repository {
			return p.metadata, nil
		}
	}
	return nil, fmt.Errorf("no such package %s", id)
}

// Mock environment for testing
type mockEnvironment struct {
	use    map[string]bool
	masked map[string]bool

	// pkgUse overrides flags for one package name.
	pkgUse map[string]map[string]bool
}

func newMockEnvironment(flags ...string) *mockEnvironment {
	env := &mockEnvironment{
		use:    make(map[string]bool),
		masked: make(map[string]bool),
		pkgUse: make(map[string]map[string]bool),
	}
	for _, f := range flags {
		env.use[f] = true
	}
	return env
}

// mask masks a package given as category/name-version, or every version
// when given as category/name.
func (m *mockEnvironment) mask(pkg string) *mockEnvironment {
	m.masked[pkg] = true
	return m
}

func (m *mockEnvironment) QueryUse(flag string, pkg *PackageID) bool {
	if pkg != nil {
		if flags, ok := m.pkgUse[pkg.Name]; ok {
			if v, ok := flags[flag]; ok {
				return v
			}
		}
	}
	return m.use[flag]
}

func (m *mockEnvironment) MaskReasons(ctx context.Context, id PackageID, md *VersionMetadata) (MaskReasons, error) {
	if m.masked[id.Name] || m.masked[id.Name+"-"+id.Version.String()] {
		return MaskReasons{{Kind: MaskPackage, Message: "masked for testing"}}, nil
	}
	return nil, nil
}

// Mock metrics recorder for testing
type mockMetrics struct {
	mu          sync.Mutex
	resolutions map[string]int
	errors      map[string]int
	rollbacks   int
	maxDepth    int
	added       int
}

func newMockMetrics() *mockMetrics {
	return &mockMetrics{
		resolutions: make(map[string]int),
		errors:      make(map[string]int),
	}
}

func (m *mockMetrics) RecordResolution(outcome string, _ time.Duration, added int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolutions[outcome]++
	m.added += added
}

func (m *mockMetrics) RecordResolutionError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *mockMetrics) RecordRollback(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollbacks++
}

func (m *mockMetrics) ObserveStackDepth(depth int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if depth > m.maxDepth {
		m.maxDepth = depth
	}
}

// names returns the package names of entries in merge order.
func names(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

func indexOfName(entries []Entry, name string) int {
	for i, e := range entries {
		if e.Name == name {
			return i
		}
	}
	return -1
}
