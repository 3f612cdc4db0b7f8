package engine

import (
	"context"
	"fmt"

	"github.com/deplist/deplist/pkg/depspec"
)

// visitBlock fails if any pending entry matches the blocked atom. A package
// may block itself, and may block a name it provides.
func (d *DepList) visitBlock(_ context.Context, b *depspec.BlockAtom) error {
	frame := fmt.Sprintf("When checking block '%s':", b)

	var provided []string
	providedLoaded := false

	for _, e := range d.list {
		if !e.Matches(b.Blocked) {
			continue
		}

		if d.current == nil {
			return d.blocked(NewBlockError(b.Blocked.String(), e.String(), false).WithContext(frame))
		}

		if e == d.current {
			d.qa("Package '%s' has suspicious block upon '%s'", d.current, b)
			continue
		}

		if !providedLoaded {
			names, err := d.providedNames(d.current)
			if err != nil {
				return err
			}
			provided, providedLoaded = names, true
		}
		if contains(provided, b.Blocked.Package) {
			continue
		}

		return d.blocked(NewBlockError(b.Blocked.String(), e.String(), true).WithContext(frame))
	}
	return nil
}

// blocked reports a firing block: fatal normally, "not satisfied" while
// checking any-of options.
func (d *DepList) blocked(err *ResolutionError) error {
	if d.checkOnly {
		d.matchFound = false
		return nil
	}
	return err
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
