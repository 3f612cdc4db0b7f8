package environment

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const testHook = `
DEFAULTS = ["ipv6"]

def use(pkg, flags):
    out = [f for f in flags if f != "X"] + DEFAULTS
    if pkg.category == "dev-lang":
        out.append("jit")
    if pkg.name == "app-misc/slow":
        for i in range(100000000):
            pass
    return out
`

func TestHook_Evaluate(t *testing.T) {
	hook, err := NewHook(testHook, time.Second)
	if err != nil {
		t.Fatalf("Failed to compile hook: %v", err)
	}

	flags, err := hook.Evaluate(context.Background(), *pkgID("dev-lang/python", "3.12"), []string{"X", "ssl"})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	want := []string{"ipv6", "jit", "ssl"}
	if strings.Join(flags, " ") != strings.Join(want, " ") {
		t.Errorf("Expected %v, got %v", want, flags)
	}
}

func TestHook_Timeout(t *testing.T) {
	hook, err := NewHook(testHook, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Failed to compile hook: %v", err)
	}

	_, err = hook.Evaluate(context.Background(), *pkgID("app-misc/slow", "1"), nil)
	if err == nil {
		t.Fatal("Expected timeout error")
	}
}

func TestHook_BadReturn(t *testing.T) {
	hook, err := NewHook("def use(pkg, flags):\n    return 1\n", 0)
	if err != nil {
		t.Fatalf("Failed to compile hook: %v", err)
	}
	if _, err := hook.Evaluate(context.Background(), *pkgID("app-misc/a", "1"), nil); err == nil {
		t.Error("Expected error for non-list result")
	}

	hook, _ = NewHook("def use(pkg, flags):\n    return [1]\n", 0)
	if _, err := hook.Evaluate(context.Background(), *pkgID("app-misc/a", "1"), nil); err == nil {
		t.Error("Expected error for non-string flag")
	}
}

func TestEnvironment_HookAndCache(t *testing.T) {
	env, err := New(Config{
		Use:  []string{"X", "ssl"},
		Hook: testHook,
		PackageUse: []PackageUse{
			{Atom: "app-misc/a", Flags: []string{"doc"}},
		},
		CacheSize: 2,
	}, WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("Failed to create environment: %v", err)
	}

	pkg := pkgID("app-misc/a", "1")
	if env.QueryUse("X", pkg) {
		t.Error("Expected hook to remove X")
	}
	if !env.QueryUse("doc", pkg) || !env.QueryUse("ipv6", pkg) {
		t.Error("Expected package.use and hook flags")
	}
	if !env.QueryUse("X", nil) {
		t.Error("Expected global query to bypass the hook")
	}
	if env.cache.Len() != 1 {
		t.Errorf("Expected 1 cached flag set, got %d", env.cache.Len())
	}

	env.QueryUse("X", pkgID("app-misc/b", "1"))
	env.QueryUse("X", pkgID("app-misc/c", "1"))
	if env.cache.Len() != 2 {
		t.Errorf("Expected cache bounded at 2, got %d", env.cache.Len())
	}
}

func TestEnvironment_HookFailureFallsBack(t *testing.T) {
	env, err := New(Config{
		Use:         []string{"ssl"},
		Hook:        testHook,
		HookTimeout: 20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Failed to create environment: %v", err)
	}

	if !env.QueryUse("ssl", pkgID("app-misc/slow", "1")) {
		t.Error("Expected configured flags when the hook fails")
	}
}
