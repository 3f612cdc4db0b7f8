package engine

import (
	"context"
	"fmt"

	"github.com/deplist/deplist/pkg/depspec"
)

// visitPackage resolves one package atom, either against an existing entry
// or by inserting a new one and expanding its dependencies.
func (d *DepList) visitPackage(ctx context.Context, atom *depspec.PackageAtom) error {
	if found := d.find(atom); found != nil {
		if found.HasPreDeps || d.opts.DropAll {
			return nil
		}
		if d.cycleSuppressed(atom, found) {
			d.logger.Debug().
				Str("atom", atom.String()).
				Str("entry", found.String()).
				Msg("dropping circular dependency")
			return nil
		}
		if d.checkOnly {
			d.matchFound = false
			return nil
		}
		return NewCircularDependencyError(atom.String(), d.cycleSpan(found)).
			WithPackage(found.String()).
			WithContext(fmt.Sprintf("When resolving package dependency '%s':", atom))
	}

	if d.checkOnly {
		d.matchFound = false
		return nil
	}

	cand, metadata, err := d.selectCandidate(ctx, atom)
	if err != nil {
		return withContext(err, fmt.Sprintf("When resolving package dependency '%s':", atom))
	}

	entry := &Entry{
		Name:       cand.Name,
		Version:    cand.Version,
		Repository: cand.Repository,
		Slot:       metadata.Slot,
		Metadata:   metadata,
	}
	if entry.Slot == "" {
		entry.Slot = cand.Slot
	}
	d.insertBeforeCursor(entry)
	d.logger.Trace().Str("atom", atom.String()).Str("entry", entry.String()).Msg("added entry")

	if err := d.insertProvided(entry); err != nil {
		return withContext(err, fmt.Sprintf("When resolving package dependency '%s' -> '%s':", atom, entry))
	}

	if !d.opts.RecursiveDeps {
		entry.HasPreDeps = true
		entry.HasTryPreDeps = true
		entry.HasPostDeps = true
		return nil
	}
	if d.opts.DropAll {
		return nil
	}

	savedCursor, savedCurrent := d.cursor, d.current
	d.cursor, d.current = entry, entry
	defer func() {
		d.cursor, d.current = savedCursor, savedCurrent
	}()

	frame := fmt.Sprintf("When resolving package dependency '%s' -> '%s':", atom, entry)

	if err := d.addRole(ctx, entry, RoleDepend); err != nil {
		return withContext(err, frame)
	}
	entry.HasPreDeps = true

	if d.opts.RdependPost == RdependAlways {
		return nil
	}
	err = d.addRole(ctx, entry, RoleRDepend)
	switch {
	case err == nil:
		entry.HasTryPreDeps = true
	case IsCircularDependency(err) && d.opts.RdependPost == RdependAsNeeded:
		d.logger.Debug().
			Str("entry", entry.String()).
			Str("cycle", err.Error()).
			Msg("deferring RDEPEND until after merge")
	default:
		return withContext(err, frame)
	}
	return nil
}

// cycleSuppressed applies the toggles that turn a cycle into a no-op.
func (d *DepList) cycleSuppressed(atom *depspec.PackageAtom, found *Entry) bool {
	if d.opts.DropCircular {
		return true
	}
	if found != d.cursor {
		return false
	}
	return d.opts.DropSelfCircular || d.cycleTolerant(atom.Package)
}

// cycleSpan returns the entries from the cursor through found, which are
// the ancestors still being expanded.
func (d *DepList) cycleSpan(found *Entry) []Entry {
	fi := d.indexOf(found)
	ci := -1
	if d.cursor != nil {
		ci = d.indexOf(d.cursor)
	}
	if ci < 0 || ci > fi {
		return []Entry{*found}
	}
	span := make([]Entry, 0, fi-ci+1)
	for _, e := range d.list[ci : fi+1] {
		span = append(span, *e)
	}
	return span
}

// selectCandidate picks the highest-precedence usable candidate for atom.
func (d *DepList) selectCandidate(ctx context.Context, atom *depspec.PackageAtom) (Candidate, *VersionMetadata, error) {
	candidates, err := d.db.Query(ctx, atom)
	if err != nil {
		return Candidate{}, nil, fmt.Errorf("failed to query %s: %w", atom, err)
	}

	for i := len(candidates) - 1; i >= 0; i-- {
		c := candidates[i]
		if d.opts.IgnoreInstalled && c.Installed {
			continue
		}

		metadata, err := d.db.FetchMetadata(ctx, c.PackageID)
		if err != nil {
			return Candidate{}, nil, fmt.Errorf("failed to fetch metadata for %s: %w", c.PackageID, err)
		}

		reasons, err := d.env.MaskReasons(ctx, c.PackageID, metadata)
		if err != nil {
			return Candidate{}, nil, fmt.Errorf("failed to check masks for %s: %w", c.PackageID, err)
		}
		if reasons.Any() {
			d.logger.Debug().
				Str("candidate", c.PackageID.String()).
				Str("reasons", reasons.String()).
				Msg("skipping masked candidate")
			continue
		}
		return c, metadata, nil
	}

	return Candidate{}, nil, NewAllMaskedError(atom.String())
}
