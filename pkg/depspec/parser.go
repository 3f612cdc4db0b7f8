package depspec

import (
	"fmt"
	"strings"
)

// Class selects which node types a dependency expression may contain.
type Class int

const (
	// DependClass is used for DEPEND, RDEPEND and PDEPEND: atoms, blockers,
	// any-of groups and USE conditionals.
	DependClass Class = iota

	// ProvideClass is used for PROVIDE: unversioned atoms and USE
	// conditionals only.
	ProvideClass

	// LicenseClass is used for LICENSE: plain words, any-of groups and USE
	// conditionals.
	LicenseClass

	// RestrictClass is used for RESTRICT and similar: plain words and USE
	// conditionals.
	RestrictClass
)

// String returns the conventional variable name for the class.
func (c Class) String() string {
	switch c {
	case DependClass:
		return "DEPEND"
	case ProvideClass:
		return "PROVIDE"
	case LicenseClass:
		return "LICENSE"
	case RestrictClass:
		return "RESTRICT"
	default:
		return fmt.Sprintf("Class(%d)", int(c))
	}
}

// SyntaxError reports a malformed dependency expression.
type SyntaxError struct {
	Class   Class
	Token   int
	Message string
	Input   string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("error parsing %s %q at token %d: %s", e.Class, e.Input, e.Token, e.Message)
}

// Parser turns dependency strings into specification trees. It holds no
// state and may be shared.
type Parser struct{}

// NewParser returns a Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse parses text in the given class. The root is always an AllOf, which
// is empty for blank input.
func (p *Parser) Parse(text string, class Class) (*AllOf, error) {
	return Parse(text, class)
}

// Parse is the package-level form of Parser.Parse.
func Parse(text string, class Class) (*AllOf, error) {
	ps := &parseState{tokens: strings.Fields(text), class: class, input: text}
	children, err := ps.parseSequence(false)
	if err != nil {
		return nil, err
	}
	return &AllOf{Children: children}, nil
}

// MustParse is like Parse but panics on error.
func MustParse(text string, class Class) *AllOf {
	spec, err := Parse(text, class)
	if err != nil {
		panic(err)
	}
	return spec
}

type parseState struct {
	tokens []string
	pos    int
	class  Class
	input  string
}

func (ps *parseState) errorf(format string, args ...interface{}) error {
	return &SyntaxError{
		Class:   ps.class,
		Token:   ps.pos,
		Message: fmt.Sprintf(format, args...),
		Input:   ps.input,
	}
}

func (ps *parseState) next() (string, bool) {
	if ps.pos >= len(ps.tokens) {
		return "", false
	}
	tok := ps.tokens[ps.pos]
	ps.pos++
	return tok, true
}

// parseSequence reads items until end of input or, when nested, the
// closing parenthesis.
func (ps *parseState) parseSequence(nested bool) ([]Spec, error) {
	var out []Spec
	for {
		tok, ok := ps.next()
		if !ok {
			if nested {
				return nil, ps.errorf("missing ')'")
			}
			return out, nil
		}
		if tok == ")" {
			if !nested {
				return nil, ps.errorf("unexpected ')'")
			}
			return out, nil
		}
		item, err := ps.parseItem(tok)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
}

// parseGroup reads "( ... )" after an introducer such as "||" or "flag?".
func (ps *parseState) parseGroup(introducer string) ([]Spec, error) {
	tok, ok := ps.next()
	if !ok || tok != "(" {
		return nil, ps.errorf("expected '(' after %q", introducer)
	}
	return ps.parseSequence(true)
}

func (ps *parseState) parseItem(tok string) (Spec, error) {
	switch {
	case tok == "(":
		children, err := ps.parseSequence(true)
		if err != nil {
			return nil, err
		}
		return &AllOf{Children: children}, nil

	case tok == "||":
		if ps.class == ProvideClass || ps.class == RestrictClass {
			return nil, ps.errorf("'||' is not allowed in %s", ps.class)
		}
		children, err := ps.parseGroup(tok)
		if err != nil {
			return nil, err
		}
		return &AnyOf{Children: children}, nil

	case len(tok) > 1 && strings.HasSuffix(tok, "?"):
		flag := strings.TrimSuffix(tok, "?")
		inverse := strings.HasPrefix(flag, "!")
		flag = strings.TrimPrefix(flag, "!")
		if !validUseFlag(flag) {
			return nil, ps.errorf("invalid USE flag %q", flag)
		}
		children, err := ps.parseGroup(tok)
		if err != nil {
			return nil, err
		}
		return &Conditional{Flag: flag, Inverse: inverse, Children: children}, nil
	}

	switch ps.class {
	case LicenseClass, RestrictClass:
		return &PlainText{Text: tok}, nil
	case ProvideClass:
		if strings.HasPrefix(tok, "!") {
			return nil, ps.errorf("blockers are not allowed in %s", ps.class)
		}
		atom, err := parseAtom(tok, false)
		if err != nil {
			return nil, ps.errorf("%v", err)
		}
		return atom, nil
	}

	if strings.HasPrefix(tok, "!") {
		blocked := strings.TrimPrefix(tok, "!")
		if strings.HasPrefix(blocked, "!") {
			return nil, ps.errorf("hard blocks are not supported: %q", tok)
		}
		atom, err := parseAtom(blocked, true)
		if err != nil {
			return nil, ps.errorf("%v", err)
		}
		return &BlockAtom{Blocked: atom}, nil
	}
	atom, err := parseAtom(tok, true)
	if err != nil {
		return nil, ps.errorf("%v", err)
	}
	return atom, nil
}

func validUseFlag(flag string) bool {
	if flag == "" {
		return false
	}
	for i := 0; i < len(flag); i++ {
		c := flag[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case i > 0 && (c == '+' || c == '_' || c == '@' || c == '-'):
		default:
			return false
		}
	}
	return true
}
