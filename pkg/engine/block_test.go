package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBlock_NoCurrentPackage(t *testing.T) {
	db := newMockDatabase().add("app-misc/x-1", VersionMetadata{})
	list := New(db, newMockEnvironment())

	err := list.AddString(context.Background(), "app-misc/x !app-misc/x")
	if !IsBlock(err) {
		t.Fatalf("Expected block error, got: %v", err)
	}
	want := "Block: 'app-misc/x' blocked by pending package 'app-misc/x-1:0::test' (no current package)"
	if err.Error() != want {
		t.Errorf("Expected %q, got %q", want, err.Error())
	}
	if list.Len() != 0 {
		t.Errorf("Expected empty merge list, got %d entries", list.Len())
	}
}

func TestBlock_PendingEntry(t *testing.T) {
	db := newMockDatabase().
		add("app-misc/a-1", VersionMetadata{Depend: "!app-misc/b"}).
		add("app-misc/b-1", VersionMetadata{})
	list := New(db, newMockEnvironment())
	ctx := context.Background()

	if err := list.AddString(ctx, "app-misc/b"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	err := list.AddString(ctx, "app-misc/a")
	if !IsBlock(err) {
		t.Fatalf("Expected block error, got: %v", err)
	}
	if strings.Contains(err.Error(), "no current package") {
		t.Errorf("Expected a block with a current package, got %q", err.Error())
	}
	if diff := cmp.Diff([]string{"app-misc/b"}, names(list.Entries())); diff != "" {
		t.Errorf("Merge list mismatch (-want +got):\n%s", diff)
	}
}

func TestBlock_NotPending(t *testing.T) {
	db := newMockDatabase().
		add("app-misc/a-1", VersionMetadata{Depend: "!app-misc/b !<app-misc/c-2"}).
		add("app-misc/c-2", VersionMetadata{})
	list := New(db, newMockEnvironment())
	ctx := context.Background()

	if err := list.AddString(ctx, "app-misc/c app-misc/a"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
}

func TestBlock_SelfBlockAllowed(t *testing.T) {
	db := newMockDatabase().add("app-misc/a-1", VersionMetadata{Depend: "!app-misc/a"})
	list := New(db, newMockEnvironment())

	if err := list.AddString(context.Background(), "app-misc/a"); err != nil {
		t.Fatalf("Expected self block to be allowed, got: %v", err)
	}
}

func TestBlock_ProvidedNameAllowed(t *testing.T) {
	db := newMockDatabase().
		add("app-editors/vim-9", VersionMetadata{Provide: "virtual/editor", RDepend: "!virtual/editor"})
	list := New(db, newMockEnvironment())

	if err := list.AddString(context.Background(), "app-editors/vim"); err != nil {
		t.Fatalf("Expected block on own PROVIDE to be allowed, got: %v", err)
	}
	want := []string{"app-editors/vim", "virtual/editor"}
	if diff := cmp.Diff(want, names(list.Entries())); diff != "" {
		t.Errorf("Merge list mismatch (-want +got):\n%s", diff)
	}
}

func TestBlock_InAnyOfCheck(t *testing.T) {
	db := newMockDatabase().
		add("app-misc/x-1", VersionMetadata{}).
		add("app-misc/y-1", VersionMetadata{})
	list := New(db, newMockEnvironment())
	ctx := context.Background()

	if err := list.AddString(ctx, "app-misc/x"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	// The first option is satisfied by x but fails its own block, so the
	// check pass must not accept it, and committing it fails too.
	if err := list.AddString(ctx, "|| ( ( app-misc/x !app-misc/x ) app-misc/y )"); err != nil {
		t.Fatalf("Expected fallback to app-misc/y, got: %v", err)
	}
	if diff := cmp.Diff([]string{"app-misc/x", "app-misc/y"}, names(list.Entries())); diff != "" {
		t.Errorf("Merge list mismatch (-want +got):\n%s", diff)
	}
}

func TestProvide_SyntheticEntries(t *testing.T) {
	db := newMockDatabase().
		add("mail-mta/postfix-3.8", VersionMetadata{
			Slot:    "0",
			Provide: "virtual/mta sasl? ( virtual/sasl ) virtual/mda",
		})
	list := New(db, newMockEnvironment("sasl"))

	if err := list.AddString(context.Background(), "mail-mta/postfix"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	entries := list.Entries()
	want := []string{"mail-mta/postfix", "virtual/mta", "virtual/sasl", "virtual/mda"}
	if diff := cmp.Diff(want, names(entries)); diff != "" {
		t.Fatalf("Merge list mismatch (-want +got):\n%s", diff)
	}

	v := entries[1]
	if !v.Synthetic {
		t.Error("Expected virtual entry to be synthetic")
	}
	if !v.Complete() {
		t.Error("Expected virtual entry to have all flags set")
	}
	if v.Version.String() != "3.8" || v.Repository != "test" || v.Slot != "0" {
		t.Errorf("Expected provider identity, got %s", v)
	}
	if v.Metadata.Virtual != "mail-mta/postfix" {
		t.Errorf("Expected Virtual=mail-mta/postfix, got %q", v.Metadata.Virtual)
	}
}

func TestProvide_ExistingNameNotDuplicated(t *testing.T) {
	db := newMockDatabase().
		add("virtual/mta-1", VersionMetadata{}).
		add("mail-mta/postfix-3.8", VersionMetadata{Provide: "virtual/mta"})
	list := New(db, newMockEnvironment())

	if err := list.AddString(context.Background(), "virtual/mta mail-mta/postfix"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	want := []string{"virtual/mta", "mail-mta/postfix"}
	if diff := cmp.Diff(want, names(list.Entries())); diff != "" {
		t.Errorf("Merge list mismatch (-want +got):\n%s", diff)
	}
}

func TestProvide_SatisfiesLaterAtom(t *testing.T) {
	db := newMockDatabase().
		add("app-misc/a-1", VersionMetadata{Depend: "virtual/editor"}).
		add("app-editors/vim-9", VersionMetadata{Provide: "virtual/editor"})
	list := New(db, newMockEnvironment())

	if err := list.AddString(context.Background(), "app-editors/vim app-misc/a"); err != nil {
		t.Fatalf("Expected virtual to satisfy DEPEND, got: %v", err)
	}
	want := []string{"app-editors/vim", "virtual/editor", "app-misc/a"}
	if diff := cmp.Diff(want, names(list.Entries())); diff != "" {
		t.Errorf("Merge list mismatch (-want +got):\n%s", diff)
	}
}
