package engine

import (
	"context"

	"github.com/deplist/deplist/pkg/depspec"
)

// visitAnyOf resolves a || ( ) group. A branch already satisfied by the
// merge list wins outright. Otherwise branches are committed in order and
// the first one that resolves wins.
func (d *DepList) visitAnyOf(ctx context.Context, a *depspec.AnyOf) error {
	viable := make([]depspec.Spec, 0, len(a.Children))
	for _, c := range a.Children {
		if cond, ok := c.(*depspec.Conditional); ok && !d.conditionHolds(cond) {
			continue
		}
		viable = append(viable, c)
	}

	if len(viable) == 0 {
		if d.current != nil {
			d.qa("Package '%s' has suspicious || ( ) block that resolves to empty", d.current)
		}
		return nil
	}

	for _, c := range viable {
		satisfied, err := d.satisfied(ctx, c)
		if err != nil {
			return err
		}
		if satisfied {
			return nil
		}
	}

	if d.checkOnly {
		d.matchFound = false
		return nil
	}

	var messages []string
	for _, c := range viable {
		err := d.addRaw(ctx, c)
		if err == nil {
			return nil
		}
		if !Recoverable(err) {
			return err
		}
		d.logger.Trace().Err(err).Str("option", c.String()).Msg("|| ( ) option failed")
		messages = append(messages, err.Error())
	}

	return NewNoResolvableOptionError(messages)
}

// satisfied traverses spec in check-only mode and reports whether the
// existing merge list already satisfies it. Nothing is inserted.
func (d *DepList) satisfied(ctx context.Context, spec depspec.Spec) (bool, error) {
	savedCheck, savedMatch := d.checkOnly, d.matchFound
	d.checkOnly, d.matchFound = true, true
	defer func() {
		d.checkOnly, d.matchFound = savedCheck, savedMatch
	}()

	if err := d.addRaw(ctx, spec); err != nil {
		return false, err
	}
	return d.matchFound, nil
}
