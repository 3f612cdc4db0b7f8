package depspec

import (
	"fmt"
	"regexp"
	"strings"
)

// SuffixType identifies a version suffix such as _alpha or _p.
type SuffixType int

const (
	// SuffixAlpha is the _alpha suffix.
	SuffixAlpha SuffixType = iota
	// SuffixBeta is the _beta suffix.
	SuffixBeta
	// SuffixPre is the _pre suffix.
	SuffixPre
	// SuffixRC is the _rc suffix.
	SuffixRC
	// SuffixP is the _p (patch) suffix. It sorts after the bare version.
	SuffixP
)

var suffixNames = map[string]SuffixType{
	"alpha": SuffixAlpha,
	"beta":  SuffixBeta,
	"pre":   SuffixPre,
	"rc":    SuffixRC,
	"p":     SuffixP,
}

func (s SuffixType) String() string {
	switch s {
	case SuffixAlpha:
		return "alpha"
	case SuffixBeta:
		return "beta"
	case SuffixPre:
		return "pre"
	case SuffixRC:
		return "rc"
	case SuffixP:
		return "p"
	default:
		return fmt.Sprintf("suffix(%d)", int(s))
	}
}

// VersionSuffix is one _suffixN part of a version.
type VersionSuffix struct {
	Type   SuffixType
	Number string
}

// Version is a parsed package version like 1.2.3b_alpha4_p2-r1.
// Numeric parts are kept as decimal strings so arbitrarily long components
// (dates, timestamps) compare correctly.
type Version struct {
	Components []string
	Letter     byte
	Suffixes   []VersionSuffix
	Revision   string

	text string
}

var versionRE = regexp.MustCompile(`^(\d+(?:\.\d+)*)([a-z])?((?:_(?:alpha|beta|pre|rc|p)\d*)*)(?:-r(\d+))?$`)
var suffixRE = regexp.MustCompile(`_(alpha|beta|pre|rc|p)(\d*)`)

// ParseVersion parses a version string.
func ParseVersion(s string) (Version, error) {
	m := versionRE.FindStringSubmatch(s)
	if m == nil {
		return Version{}, fmt.Errorf("invalid version %q", s)
	}
	v := Version{
		Components: strings.Split(m[1], "."),
		Revision:   m[4],
		text:       s,
	}
	if m[2] != "" {
		v.Letter = m[2][0]
	}
	for _, sm := range suffixRE.FindAllStringSubmatch(m[3], -1) {
		v.Suffixes = append(v.Suffixes, VersionSuffix{Type: suffixNames[sm[1]], Number: sm[2]})
	}
	return v, nil
}

// MustParseVersion is like ParseVersion but panics on malformed input.
// It is intended for tests and static tables.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the version as it was written.
func (v Version) String() string {
	if v.text != "" {
		return v.text
	}
	var sb strings.Builder
	sb.WriteString(strings.Join(v.Components, "."))
	if v.Letter != 0 {
		sb.WriteByte(v.Letter)
	}
	for _, s := range v.Suffixes {
		sb.WriteString("_" + s.Type.String() + s.Number)
	}
	if v.Revision != "" {
		sb.WriteString("-r" + v.Revision)
	}
	return sb.String()
}

// IsZero reports whether v is the zero Version.
func (v Version) IsZero() bool {
	return len(v.Components) == 0
}

// WithoutRevision returns v with its revision dropped, used by the ~ operator.
func (v Version) WithoutRevision() Version {
	out := v
	out.Revision = ""
	out.text = ""
	return out
}

// Compare returns -1, 0 or 1 as v sorts before, equal to or after o.
func (v Version) Compare(o Version) int {
	if c := compareNumeric(v.Components[0], o.Components[0]); c != 0 {
		return c
	}
	n := len(v.Components)
	if len(o.Components) < n {
		n = len(o.Components)
	}
	for i := 1; i < n; i++ {
		a, b := v.Components[i], o.Components[i]
		var c int
		if strings.HasPrefix(a, "0") || strings.HasPrefix(b, "0") {
			c = strings.Compare(strings.TrimRight(a, "0"), strings.TrimRight(b, "0"))
		} else {
			c = compareNumeric(a, b)
		}
		if c != 0 {
			return c
		}
	}
	if c := compareInt(len(v.Components), len(o.Components)); c != 0 {
		return c
	}
	if c := compareInt(int(v.Letter), int(o.Letter)); c != 0 {
		return c
	}

	n = len(v.Suffixes)
	if len(o.Suffixes) < n {
		n = len(o.Suffixes)
	}
	for i := 0; i < n; i++ {
		a, b := v.Suffixes[i], o.Suffixes[i]
		if a.Type != b.Type {
			return compareInt(int(a.Type), int(b.Type))
		}
		if c := compareNumeric(a.Number, b.Number); c != 0 {
			return c
		}
	}
	if len(v.Suffixes) > n {
		if v.Suffixes[n].Type == SuffixP {
			return 1
		}
		return -1
	}
	if len(o.Suffixes) > n {
		if o.Suffixes[n].Type == SuffixP {
			return -1
		}
		return 1
	}

	return compareNumeric(v.Revision, o.Revision)
}

// Equal reports whether v and o compare equal.
func (v Version) Equal(o Version) bool {
	return v.Compare(o) == 0
}

// HasPrefix implements the =ver* match. Matching is on the written form, so
// =1.2* matches both 1.2.3 and 1.20.
func (v Version) HasPrefix(o Version) bool {
	return strings.HasPrefix(o.String(), v.String())
}

// compareNumeric compares two unsigned decimal strings. Empty means zero.
func compareNumeric(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if c := compareInt(len(a), len(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// MarshalText implements encoding.TextMarshaler.
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Version) UnmarshalText(text []byte) error {
	parsed, err := ParseVersion(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
