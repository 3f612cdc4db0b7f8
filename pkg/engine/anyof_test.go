package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAnyOf_ShortCircuit(t *testing.T) {
	db := newMockDatabase().
		add("app-misc/x-1", VersionMetadata{}).
		add("app-misc/y-1", VersionMetadata{})
	list := New(db, newMockEnvironment())
	ctx := context.Background()

	if err := list.AddString(ctx, "app-misc/x"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	queries := db.queries

	if err := list.AddString(ctx, "|| ( app-misc/y app-misc/x )"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if diff := cmp.Diff([]string{"app-misc/x"}, names(list.Entries())); diff != "" {
		t.Errorf("Expected no new entries (-want +got):\n%s", diff)
	}
	if db.queries != queries {
		t.Errorf("Expected no database queries for a satisfied group, got %d", db.queries-queries)
	}
}

func TestAnyOf_PrefersFirstOption(t *testing.T) {
	db := newMockDatabase().
		add("app-misc/x-1", VersionMetadata{}).
		add("app-misc/y-1", VersionMetadata{})
	list := New(db, newMockEnvironment())

	if err := list.AddString(context.Background(), "|| ( app-misc/y app-misc/x )"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if diff := cmp.Diff([]string{"app-misc/y"}, names(list.Entries())); diff != "" {
		t.Errorf("Merge list mismatch (-want +got):\n%s", diff)
	}
}

func TestAnyOf_FallbackLeavesNoTrace(t *testing.T) {
	db := newMockDatabase().
		add("app-misc/a-1", VersionMetadata{Depend: "app-misc/c app-misc/d"}).
		add("app-misc/b-1", VersionMetadata{}).
		add("app-misc/c-1", VersionMetadata{}).
		add("app-misc/d-1", VersionMetadata{})
	env := newMockEnvironment().mask("app-misc/d")
	list := New(db, env)

	if err := list.AddString(context.Background(), "|| ( app-misc/a app-misc/b )"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if diff := cmp.Diff([]string{"app-misc/b"}, names(list.Entries())); diff != "" {
		t.Errorf("Expected only the fallback option (-want +got):\n%s", diff)
	}
}

func TestAnyOf_NoResolvableOption(t *testing.T) {
	list := New(newMockDatabase(), newMockEnvironment())

	err := list.AddString(context.Background(), "|| ( app-misc/a app-misc/b )")
	if !IsNoResolvableOption(err) {
		t.Fatalf("Expected no resolvable option error, got: %v", err)
	}

	want := "No resolvable || ( ) option. Failure messages are " +
		"'Error searching for 'app-misc/a': no available versions', " +
		"'Error searching for 'app-misc/b': no available versions'"
	if err.Error() != want {
		t.Errorf("Expected message:\n%s\ngot:\n%s", want, err.Error())
	}
	if list.Len() != 0 {
		t.Errorf("Expected empty merge list, got %d entries", list.Len())
	}
}

func TestAnyOf_ViableChildren(t *testing.T) {
	db := newMockDatabase().
		add("app-misc/a-1", VersionMetadata{}).
		add("app-misc/b-1", VersionMetadata{})
	ctx := context.Background()

	list := New(db, newMockEnvironment())
	if err := list.AddString(ctx, "|| ( foo? ( app-misc/a ) app-misc/b )"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if diff := cmp.Diff([]string{"app-misc/b"}, names(list.Entries())); diff != "" {
		t.Errorf("Disabled conditional should not be viable (-want +got):\n%s", diff)
	}

	list = New(db, newMockEnvironment("foo"))
	if err := list.AddString(ctx, "|| ( foo? ( app-misc/a ) app-misc/b )"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if diff := cmp.Diff([]string{"app-misc/a"}, names(list.Entries())); diff != "" {
		t.Errorf("Enabled conditional should win (-want +got):\n%s", diff)
	}
}

func TestAnyOf_EmptyIsNoop(t *testing.T) {
	db := newMockDatabase().
		add("app-misc/a-1", VersionMetadata{Depend: "|| ( foo? ( app-misc/x ) bar? ( app-misc/y ) )"})
	list := New(db, newMockEnvironment())

	if err := list.AddString(context.Background(), "|| ( ) app-misc/a"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if diff := cmp.Diff([]string{"app-misc/a"}, names(list.Entries())); diff != "" {
		t.Errorf("Merge list mismatch (-want +got):\n%s", diff)
	}
}

func TestAnyOf_NestedGroupSatisfied(t *testing.T) {
	db := newMockDatabase().
		add("app-misc/x-1", VersionMetadata{}).
		add("app-misc/y-1", VersionMetadata{}).
		add("app-misc/z-1", VersionMetadata{})
	list := New(db, newMockEnvironment())
	ctx := context.Background()

	if err := list.AddString(ctx, "app-misc/x app-misc/y"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := list.AddString(ctx, "|| ( app-misc/z ( app-misc/x || ( app-misc/z app-misc/y ) ) )"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if list.Len() != 2 {
		t.Errorf("Expected satisfied nested group to add nothing, got %v", names(list.Entries()))
	}
}

func TestAnyOf_CheckDoesNotRaiseOnCycle(t *testing.T) {
	// While a is expanding, the group's first option points back at a. The
	// check pass treats that as unsatisfied and the commit pass picks b.
	db := newMockDatabase().
		add("app-misc/a-1", VersionMetadata{Depend: "app-misc/c"}).
		add("app-misc/c-1", VersionMetadata{Depend: "|| ( app-misc/a app-misc/b )"}).
		add("app-misc/b-1", VersionMetadata{})
	list := New(db, newMockEnvironment())

	if err := list.AddString(context.Background(), "app-misc/a"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	want := []string{"app-misc/b", "app-misc/c", "app-misc/a"}
	if diff := cmp.Diff(want, names(list.Entries())); diff != "" {
		t.Errorf("Merge list mismatch (-want +got):\n%s", diff)
	}
}

func TestAnyOf_StackTooDeepPropagates(t *testing.T) {
	db := newMockDatabase().add("app-misc/b-1", VersionMetadata{})
	list := New(db, newMockEnvironment())
	list.SetMaxStackDepth(3)

	err := list.AddString(context.Background(), "|| ( ( ( ( app-misc/a ) ) ) app-misc/b )")
	if !IsStackTooDeep(err) {
		t.Fatalf("Expected stack too deep error to escape || ( ), got: %v", err)
	}
	if strings.Contains(err.Error(), "No resolvable") {
		t.Errorf("Stack error should not be aggregated: %s", err.Error())
	}
}
