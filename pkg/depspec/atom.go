package depspec

import (
	"fmt"
	"regexp"
	"strings"
)

// Operator is the version comparison operator of a PackageAtom.
type Operator int

const (
	// OpNone means the atom carries no version restriction.
	OpNone Operator = iota
	// OpLess is <ver.
	OpLess
	// OpLessEqual is <=ver.
	OpLessEqual
	// OpEqual is =ver.
	OpEqual
	// OpEqualGlob is =ver*.
	OpEqualGlob
	// OpTilde is ~ver, any revision of ver.
	OpTilde
	// OpGreaterEqual is >=ver.
	OpGreaterEqual
	// OpGreater is >ver.
	OpGreater
)

var operatorPrefixes = []struct {
	prefix string
	op     Operator
}{
	{"<=", OpLessEqual},
	{">=", OpGreaterEqual},
	{"<", OpLess},
	{">", OpGreater},
	{"=", OpEqual},
	{"~", OpTilde},
}

// String returns the operator as written in front of an atom.
func (o Operator) String() string {
	switch o {
	case OpLess:
		return "<"
	case OpLessEqual:
		return "<="
	case OpEqual, OpEqualGlob:
		return "="
	case OpTilde:
		return "~"
	case OpGreaterEqual:
		return ">="
	case OpGreater:
		return ">"
	default:
		return ""
	}
}

var (
	qualifiedNameRE = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9+_.-]*/[A-Za-z0-9_][A-Za-z0-9+_-]*$`)
	nameVersionRE   = regexp.MustCompile(`^(.+?)-(\d+(?:\.\d+)*[a-z]?(?:_(?:alpha|beta|pre|rc|p)\d*)*(?:-r\d+)?)$`)
	slotRE          = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9+_.-]*$`)
)

// ValidPackageName reports whether name is a well-formed category/package name.
func ValidPackageName(name string) bool {
	return qualifiedNameRE.MatchString(name)
}

// ParseAtom parses a package atom of the form
//
//	[op]category/package[-version][*][:slot][::repository]
//
// A version requires an operator and an operator requires a version.
func ParseAtom(s string) (*PackageAtom, error) {
	return parseAtom(s, true)
}

// MustParseAtom is like ParseAtom but panics on error.
func MustParseAtom(s string) *PackageAtom {
	a, err := ParseAtom(s)
	if err != nil {
		panic(err)
	}
	return a
}

func parseAtom(s string, allowVersion bool) (*PackageAtom, error) {
	if s == "" {
		return nil, fmt.Errorf("empty package atom")
	}
	atom := &PackageAtom{text: s}
	rest := s

	for _, p := range operatorPrefixes {
		if strings.HasPrefix(rest, p.prefix) {
			atom.Op = p.op
			rest = rest[len(p.prefix):]
			break
		}
	}

	if i := strings.Index(rest, "::"); i >= 0 {
		atom.Repository = rest[i+2:]
		rest = rest[:i]
		if !slotRE.MatchString(atom.Repository) {
			return nil, fmt.Errorf("atom %q: invalid repository name %q", s, atom.Repository)
		}
	}
	if i := strings.Index(rest, ":"); i >= 0 {
		atom.Slot = rest[i+1:]
		rest = rest[:i]
		if !slotRE.MatchString(atom.Slot) {
			return nil, fmt.Errorf("atom %q: invalid slot %q", s, atom.Slot)
		}
	}

	glob := false
	if strings.HasSuffix(rest, "*") {
		glob = true
		rest = strings.TrimSuffix(rest, "*")
	}

	if atom.Op != OpNone {
		if !allowVersion {
			return nil, fmt.Errorf("atom %q: version operators are not allowed here", s)
		}
		m := nameVersionRE.FindStringSubmatch(rest)
		if m == nil {
			return nil, fmt.Errorf("atom %q: operator given but no valid version", s)
		}
		v, err := ParseVersion(m[2])
		if err != nil {
			return nil, fmt.Errorf("atom %q: %w", s, err)
		}
		atom.Package = m[1]
		atom.Version = v
		if glob {
			if atom.Op != OpEqual {
				return nil, fmt.Errorf("atom %q: '*' is only valid with '='", s)
			}
			atom.Op = OpEqualGlob
		}
	} else {
		if glob {
			return nil, fmt.Errorf("atom %q: '*' without '='", s)
		}
		if m := nameVersionRE.FindStringSubmatch(rest); m != nil && ValidPackageName(m[1]) {
			return nil, fmt.Errorf("atom %q: version given without an operator", s)
		}
		atom.Package = rest
	}

	if !ValidPackageName(atom.Package) {
		return nil, fmt.Errorf("atom %q: invalid package name %q", s, atom.Package)
	}
	return atom, nil
}

// Category returns the category half of the package name.
func (a *PackageAtom) Category() string {
	if i := strings.IndexByte(a.Package, '/'); i >= 0 {
		return a.Package[:i]
	}
	return ""
}

// Matches reports whether a package with the given identity satisfies the
// atom. An empty slot or repository on the atom matches anything.
func (a *PackageAtom) Matches(name string, version Version, slot, repository string) bool {
	if a.Package != name {
		return false
	}
	if a.Slot != "" && a.Slot != slot {
		return false
	}
	if a.Repository != "" && a.Repository != repository {
		return false
	}
	return a.MatchesVersion(version)
}

// MatchesVersion applies the version operator only.
func (a *PackageAtom) MatchesVersion(v Version) bool {
	if a.Op == OpNone {
		return true
	}
	if v.IsZero() {
		return false
	}
	switch a.Op {
	case OpLess:
		return v.Compare(a.Version) < 0
	case OpLessEqual:
		return v.Compare(a.Version) <= 0
	case OpEqual:
		return v.Compare(a.Version) == 0
	case OpEqualGlob:
		return a.Version.HasPrefix(v)
	case OpTilde:
		return v.WithoutRevision().Compare(a.Version.WithoutRevision()) == 0
	case OpGreaterEqual:
		return v.Compare(a.Version) >= 0
	case OpGreater:
		return v.Compare(a.Version) > 0
	}
	return false
}

// String returns the atom in its written form.
func (a *PackageAtom) String() string {
	if a.text != "" {
		return a.text
	}
	var sb strings.Builder
	sb.WriteString(a.Op.String())
	sb.WriteString(a.Package)
	if a.Op != OpNone {
		sb.WriteString("-" + a.Version.String())
		if a.Op == OpEqualGlob {
			sb.WriteByte('*')
		}
	}
	if a.Slot != "" {
		sb.WriteString(":" + a.Slot)
	}
	if a.Repository != "" {
		sb.WriteString("::" + a.Repository)
	}
	return sb.String()
}
