package engine

import (
	"fmt"
	"strings"

	"github.com/deplist/deplist/pkg/depspec"
)

// providedNames flattens the PROVIDE of e with e as the USE context.
func (d *DepList) providedNames(e *Entry) ([]string, error) {
	if e.Metadata == nil || strings.TrimSpace(e.Metadata.Provide) == "" {
		return nil, nil
	}
	tree, err := d.parser.Parse(e.Metadata.Provide, depspec.ProvideClass)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PROVIDE of %s: %w", e, err)
	}
	names, err := depspec.ProvidedNames(tree, d.useFunc(e))
	if err != nil {
		return nil, NewInternalError(fmt.Sprintf("bad PROVIDE for %s", e), err)
	}
	return names, nil
}

// insertProvided inserts a synthetic entry after provider for every
// provided name not already in the merge list.
func (d *DepList) insertProvided(provider *Entry) error {
	names, err := d.providedNames(provider)
	if err != nil || len(names) == 0 {
		return err
	}

	pos := d.indexOf(provider) + 1
	for _, name := range names {
		if d.find(&depspec.PackageAtom{Package: name}) != nil {
			continue
		}
		virtual := &Entry{
			Name:       name,
			Version:    provider.Version,
			Repository: provider.Repository,
			Slot:       provider.Slot,
			Metadata: &VersionMetadata{
				Slot:    provider.Slot,
				Virtual: provider.Name,
			},
			HasPreDeps:    true,
			HasTryPreDeps: true,
			HasPostDeps:   true,
			Synthetic:     true,
		}
		d.insertAt(pos, virtual)
		pos++
		d.logger.Trace().Str("virtual", name).Str("provider", provider.String()).Msg("added virtual entry")
	}
	return nil
}
