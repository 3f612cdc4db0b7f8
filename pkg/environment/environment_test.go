package environment

import (
	"context"
	"strings"
	"testing"

	"github.com/deplist/deplist/pkg/depspec"
	"github.com/deplist/deplist/pkg/engine"
)

func newTestEnvironment(t *testing.T, cfg Config) *Environment {
	t.Helper()
	env, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create environment: %v", err)
	}
	return env
}

func pkgID(name, version string) *engine.PackageID {
	return &engine.PackageID{Name: name, Version: depspec.MustParseVersion(version), Repository: "gentoo"}
}

func TestQueryUse(t *testing.T) {
	env := newTestEnvironment(t, Config{
		Use: []string{"ssl", "nls", "-nls", "X"},
		PackageUse: []PackageUse{
			{Atom: "app-editors/vim", Flags: []string{"-X", "python"}},
			{Atom: ">=app-editors/vim-9", Flags: []string{"X"}},
			{Atom: "dev-lang/python", Flags: []string{"-*", "sqlite"}},
		},
	})

	tests := []struct {
		name string
		flag string
		pkg  *engine.PackageID
		want bool
	}{
		{"global enabled", "ssl", nil, true},
		{"global removed", "nls", nil, false},
		{"global unknown", "gtk", nil, false},
		{"package enables", "python", pkgID("app-editors/vim", "8.2"), true},
		{"package disables", "X", pkgID("app-editors/vim", "8.2"), false},
		{"last match wins", "X", pkgID("app-editors/vim", "9.0"), true},
		{"inherits global", "ssl", pkgID("app-editors/vim", "9.0"), true},
		{"reset all", "ssl", pkgID("dev-lang/python", "3.12"), false},
		{"after reset", "sqlite", pkgID("dev-lang/python", "3.12"), true},
		{"unrelated package", "python", pkgID("app-misc/a", "1"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := env.QueryUse(tt.flag, tt.pkg); got != tt.want {
				t.Errorf("Expected %s=%v, got %v", tt.flag, tt.want, got)
			}
		})
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"bad package_use", Config{PackageUse: []PackageUse{{Atom: "vim", Flags: []string{"X"}}}}, "package_use"},
		{"bad mask", Config{Mask: []string{">=app-misc/a"}}, "mask"},
		{"bad unmask", Config{Unmask: []string{"="}}, "unmask"},
		{"bad hook", Config{Hook: "x = "}, "hook"},
		{"hook without use", Config{Hook: "x = 1"}, "use(pkg, flags)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestMaskReasons(t *testing.T) {
	env := newTestEnvironment(t, Config{
		Use:            []string{"doc"},
		AcceptKeywords: []string{"amd64"},
		AcceptLicense:  []string{"*", "-EULA"},
		EAPIs:          []string{"7", "8"},
		Mask:           []string{"app-misc/masked", ">=app-misc/partial-2"},
		Unmask:         []string{"=app-misc/masked-1.5"},
	})
	ctx := context.Background()

	tests := []struct {
		name  string
		pkg   *engine.PackageID
		md    engine.VersionMetadata
		kinds []engine.MaskKind
	}{
		{"clean", pkgID("app-misc/a", "1"), engine.VersionMetadata{Keywords: []string{"amd64"}, License: "MIT", EAPI: "8"}, nil},
		{"testing keyword", pkgID("app-misc/a", "1"), engine.VersionMetadata{Keywords: []string{"~amd64"}}, []engine.MaskKind{engine.MaskKeyword}},
		{"rejected license", pkgID("app-misc/a", "1"), engine.VersionMetadata{Keywords: []string{"amd64"}, License: "EULA"}, []engine.MaskKind{engine.MaskLicense}},
		{"license choice", pkgID("app-misc/a", "1"), engine.VersionMetadata{Keywords: []string{"amd64"}, License: "|| ( EULA MIT )"}, nil},
		{"conditional license", pkgID("app-misc/a", "1"), engine.VersionMetadata{Keywords: []string{"amd64"}, License: "MIT doc? ( EULA )"}, []engine.MaskKind{engine.MaskLicense}},
		{"unsupported eapi", pkgID("app-misc/a", "1"), engine.VersionMetadata{Keywords: []string{"amd64"}, EAPI: "4"}, []engine.MaskKind{engine.MaskEAPI}},
		{"package mask", pkgID("app-misc/masked", "1"), engine.VersionMetadata{Keywords: []string{"amd64"}}, []engine.MaskKind{engine.MaskPackage}},
		{"package unmask", pkgID("app-misc/masked", "1.5"), engine.VersionMetadata{Keywords: []string{"amd64"}}, nil},
		{"versioned mask", pkgID("app-misc/partial", "2.1"), engine.VersionMetadata{Keywords: []string{"amd64"}}, []engine.MaskKind{engine.MaskPackage}},
		{"below versioned mask", pkgID("app-misc/partial", "1"), engine.VersionMetadata{Keywords: []string{"amd64"}}, nil},
		{"several", pkgID("app-misc/masked", "1"), engine.VersionMetadata{Keywords: []string{"~amd64"}, License: "EULA"}, []engine.MaskKind{engine.MaskKeyword, engine.MaskLicense, engine.MaskPackage}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md := tt.md
			reasons, err := env.MaskReasons(ctx, *tt.pkg, &md)
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			if len(reasons) != len(tt.kinds) {
				t.Fatalf("Expected kinds %v, got %v", tt.kinds, reasons)
			}
			for i, r := range reasons {
				if r.Kind != tt.kinds[i] {
					t.Errorf("Expected kinds %v, got %v", tt.kinds, reasons)
				}
			}
		})
	}
}

func TestMaskReasons_BadLicense(t *testing.T) {
	env := newTestEnvironment(t, Config{AcceptLicense: []string{"MIT"}})

	_, err := env.MaskReasons(context.Background(), *pkgID("app-misc/a", "1"), &engine.VersionMetadata{License: "|| ( MIT"})
	if err == nil {
		t.Error("Expected error for malformed LICENSE")
	}
}

func TestEnvironment_ResolvesWithEngine(t *testing.T) {
	env := newTestEnvironment(t, Config{Use: []string{"ssl"}, Mask: []string{"=app-misc/b-2"}})
	db := &fixedDatabase{
		metadata: map[string]*engine.VersionMetadata{
			"app-misc/a-1": {Slot: "0", Depend: "ssl? ( app-misc/b )"},
			"app-misc/b-1": {Slot: "0"},
			"app-misc/b-2": {Slot: "0"},
		},
	}

	list := engine.New(db, env)
	if err := list.AddString(context.Background(), "app-misc/a"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	entries := list.Entries()
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %v", entries)
	}
	if entries[0].Name != "app-misc/b" || entries[0].Version.String() != "1" {
		t.Errorf("Expected unmasked app-misc/b-1 first, got %s", entries[0])
	}
}

// Mock package database for testing
type fixedDatabase struct {
	metadata map[string]*engine.VersionMetadata
}

func (f *fixedDatabase) Query(_ context.Context, atom *depspec.PackageAtom) ([]engine.Candidate, error) {
	var out []engine.Candidate
	for _, v := range []string{"1", "2"} {
		md, ok := f.metadata[atom.Package+"-"+v]
		if !ok {
			continue
		}
		id := engine.PackageID{Name: atom.Package, Version: depspec.MustParseVersion(v), Repository: "gentoo"}
		if atom.Matches(id.Name, id.Version, md.Slot, id.Repository) {
			out = append(out, engine.Candidate{PackageID: id, Slot: md.Slot})
		}
	}
	return out, nil
}

func (f *fixedDatabase) FetchMetadata(_ context.Context, id engine.PackageID) (*engine.VersionMetadata, error) {
	return f.metadata[id.Name+"-"+id.Version.String()], nil
}
