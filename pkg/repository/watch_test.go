package repository

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/deplist/deplist/pkg/depspec"
)

func TestLoader_Watch(t *testing.T) {
	loader := NewLoader(zerolog.Nop())
	dir := t.TempDir()
	path := writeFile(t, dir, "gentoo.yaml", "name: gentoo\npackages:\n  - name: app-misc/a\n    version: \"1\"\n")

	repo, err := loader.LoadFile(path)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	db := NewDatabase(repo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Repository, 1)
	if err := loader.Watch(ctx, db, []string{path}, func(r *Repository) {
		select {
		case reloaded <- r:
		default:
		}
	}); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	writeFile(t, dir, "gentoo.yaml", "name: gentoo\npackages:\n  - name: app-misc/a\n    version: \"2\"\n")

	select {
	case r := <-reloaded:
		if r.Len() != 1 {
			t.Errorf("Expected 1 package after reload, got %d", r.Len())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for reload")
	}

	cands, _ := db.Query(ctx, depspec.MustParseAtom("app-misc/a"))
	if len(cands) != 1 || cands[0].Version.String() != "2" {
		t.Errorf("Expected database to serve reloaded version, got %v", candidateStrings(cands))
	}
}
