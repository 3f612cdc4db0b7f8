package depspec

import "fmt"

// UseFunc answers whether a USE flag is enabled in the caller's context.
type UseFunc func(flag string) bool

// Flatten returns the leaves of spec in order, descending into AllOf nodes
// and into Conditional nodes whose guard holds under use. Any-of groups
// cannot be flattened without a choice and are rejected.
func Flatten(spec Spec, use UseFunc) ([]Spec, error) {
	var out []Spec
	if err := flatten(spec, use, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func flatten(spec Spec, use UseFunc, out *[]Spec) error {
	switch s := spec.(type) {
	case *AllOf:
		for _, c := range s.Children {
			if err := flatten(c, use, out); err != nil {
				return err
			}
		}
	case *Conditional:
		if use(s.Flag) != s.Inverse {
			for _, c := range s.Children {
				if err := flatten(c, use, out); err != nil {
					return err
				}
			}
		}
	case *AnyOf:
		return fmt.Errorf("cannot flatten %q: any-of group needs a choice", s.String())
	case *PackageAtom, *BlockAtom, *PlainText:
		*out = append(*out, s)
	default:
		return fmt.Errorf("unexpected node %T", spec)
	}
	return nil
}

// ProvidedNames flattens a PROVIDE tree into the package names it provides.
func ProvidedNames(spec Spec, use UseFunc) ([]string, error) {
	leaves, err := Flatten(spec, use)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(leaves))
	for _, l := range leaves {
		atom, ok := l.(*PackageAtom)
		if !ok {
			return nil, fmt.Errorf("unexpected %T %q in PROVIDE", l, l.String())
		}
		names = append(names, atom.Package)
	}
	return names, nil
}

// Walk calls fn for every node of spec in depth-first pre-order. Returning
// false from fn skips the node's children.
func Walk(spec Spec, fn func(Spec) bool) {
	if !fn(spec) {
		return
	}
	var children []Spec
	switch s := spec.(type) {
	case *AllOf:
		children = s.Children
	case *AnyOf:
		children = s.Children
	case *Conditional:
		children = s.Children
	}
	for _, c := range children {
		Walk(c, fn)
	}
}
