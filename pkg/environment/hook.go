package environment

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/deplist/deplist/pkg/engine"
)

// Hook runs a user Starlark script that adjusts the USE flags of a package.
// The script must define
//
//	def use(pkg, flags):
//	    ...
//	    return flags
//
// where pkg has name, category, version and repository attributes and flags
// is the sorted list of enabled flags. The returned iterable of strings
// replaces the flag set.
type Hook struct {
	use     starlark.Callable
	timeout time.Duration
}

// NewHook compiles script. Top-level statements run once, here.
func NewHook(script string, timeout time.Duration) (*Hook, error) {
	if timeout <= 0 {
		timeout = DefaultHookTimeout
	}

	thread := newThread("deplist-hook-init")
	globals, err := starlark.ExecFile(thread, "hook.star", script, predeclared())
	if err != nil {
		return nil, fmt.Errorf("starlark execution failed: %w", err)
	}
	globals.Freeze()

	fn, ok := globals["use"].(starlark.Callable)
	if !ok {
		return nil, fmt.Errorf("hook must define a function use(pkg, flags)")
	}
	return &Hook{use: fn, timeout: timeout}, nil
}

func newThread(name string) *starlark.Thread {
	return &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, msg string) {
			// Suppress print output
		},
	}
}

func predeclared() starlark.StringDict {
	return starlark.StringDict{
		"struct": starlark.NewBuiltin("struct", starlarkstruct.Make),
	}
}

// Evaluate calls use(pkg, flags) and returns the resulting flags, sorted.
func (h *Hook) Evaluate(ctx context.Context, pkg engine.PackageID, flags []string) ([]string, error) {
	evalCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	thread := newThread("deplist-hook")

	type outcome struct {
		flags []string
		err   error
	}
	ch := make(chan outcome, 1)

	go func() {
		out, err := h.call(thread, pkg, flags)
		ch <- outcome{out, err}
	}()

	select {
	case <-evalCtx.Done():
		thread.Cancel("timeout")
		return nil, fmt.Errorf("starlark hook for %s: %w", pkg, evalCtx.Err())
	case o := <-ch:
		return o.flags, o.err
	}
}

func (h *Hook) call(thread *starlark.Thread, pkg engine.PackageID, flags []string) ([]string, error) {
	category, _, _ := strings.Cut(pkg.Name, "/")
	pkgValue := starlarkstruct.FromStringDict(starlarkstruct.Default, starlark.StringDict{
		"name":       starlark.String(pkg.Name),
		"category":   starlark.String(category),
		"version":    starlark.String(pkg.Version.String()),
		"repository": starlark.String(pkg.Repository),
	})

	list := make([]starlark.Value, len(flags))
	for i, f := range flags {
		list[i] = starlark.String(f)
	}

	result, err := starlark.Call(thread, h.use, starlark.Tuple{pkgValue, starlark.NewList(list)}, nil)
	if err != nil {
		return nil, fmt.Errorf("starlark hook for %s failed: %w", pkg, err)
	}
	return fromStarlarkFlags(result)
}

// fromStarlarkFlags converts an iterable of strings.
func fromStarlarkFlags(v starlark.Value) ([]string, error) {
	iterable, ok := v.(starlark.Iterable)
	if !ok {
		return nil, fmt.Errorf("hook must return a list of flags, got %s", v.Type())
	}

	iter := iterable.Iterate()
	defer iter.Done()

	var out []string
	var x starlark.Value
	for iter.Next(&x) {
		s, ok := x.(starlark.String)
		if !ok {
			return nil, fmt.Errorf("hook returned non-string flag %s", x.String())
		}
		out = append(out, string(s))
	}
	sort.Strings(out)
	return out, nil
}
