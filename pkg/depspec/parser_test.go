package depspec

import (
	"errors"
	"testing"
)

func TestParse_Depend(t *testing.T) {
	spec, err := Parse("app-misc/a >=app-misc/b-2 !app-misc/c || ( app-misc/d app-misc/e ) ssl? ( dev-libs/openssl ) !nls? ( ( app-misc/f app-misc/g ) )", DependClass)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(spec.Children) != 6 {
		t.Fatalf("Expected 6 children, got %d", len(spec.Children))
	}

	if _, ok := spec.Children[0].(*PackageAtom); !ok {
		t.Errorf("Expected PackageAtom, got %T", spec.Children[0])
	}
	block, ok := spec.Children[2].(*BlockAtom)
	if !ok {
		t.Fatalf("Expected BlockAtom, got %T", spec.Children[2])
	}
	if block.Blocked.Package != "app-misc/c" {
		t.Errorf("Expected blocked app-misc/c, got %q", block.Blocked.Package)
	}
	anyOf, ok := spec.Children[3].(*AnyOf)
	if !ok {
		t.Fatalf("Expected AnyOf, got %T", spec.Children[3])
	}
	if len(anyOf.Children) != 2 {
		t.Errorf("Expected 2 options, got %d", len(anyOf.Children))
	}
	cond, ok := spec.Children[4].(*Conditional)
	if !ok {
		t.Fatalf("Expected Conditional, got %T", spec.Children[4])
	}
	if cond.Flag != "ssl" || cond.Inverse {
		t.Errorf("Expected ssl? conditional, got %s", cond.String())
	}
	inv := spec.Children[5].(*Conditional)
	if !inv.Inverse || inv.Flag != "nls" {
		t.Errorf("Expected !nls? conditional, got %s", inv.String())
	}
	if _, ok := inv.Children[0].(*AllOf); !ok {
		t.Errorf("Expected nested AllOf, got %T", inv.Children[0])
	}
}

func TestParse_RoundTrip(t *testing.T) {
	input := "app-misc/a || ( app-misc/b ( app-misc/c app-misc/d ) ) !x? ( !app-misc/e )"
	spec := MustParse(input, DependClass)
	if spec.String() != input {
		t.Errorf("Expected %q, got %q", input, spec.String())
	}
}

func TestParse_Empty(t *testing.T) {
	for _, input := range []string{"", "   ", "\n\t"} {
		spec, err := Parse(input, DependClass)
		if err != nil {
			t.Fatalf("Expected no error for %q, got: %v", input, err)
		}
		if len(spec.Children) != 0 {
			t.Errorf("Expected empty AllOf for %q, got %d children", input, len(spec.Children))
		}
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		input string
		class Class
	}{
		{"( app-misc/a", DependClass},
		{"app-misc/a )", DependClass},
		{"|| app-misc/a", DependClass},
		{"ssl? app-misc/a", DependClass},
		{"!!app-misc/a", DependClass},
		{"app-misc/a-1.0", DependClass},
		{"?( app-misc/a )", DependClass},
		{"|| ( virtual/a virtual/b )", ProvideClass},
		{">=virtual/a-1", ProvideClass},
		{"!virtual/a", ProvideClass},
		{"|| ( mirror fetch )", RestrictClass},
	}

	for _, tt := range tests {
		_, err := Parse(tt.input, tt.class)
		if err == nil {
			t.Errorf("Expected error parsing %s %q", tt.class, tt.input)
			continue
		}
		var se *SyntaxError
		if !errors.As(err, &se) {
			t.Errorf("Expected *SyntaxError for %q, got %T", tt.input, err)
		}
	}
}

func TestParse_License(t *testing.T) {
	spec, err := Parse("|| ( GPL-2 BSD ) doc? ( FDL-1.3 )", LicenseClass)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	anyOf := spec.Children[0].(*AnyOf)
	if text, ok := anyOf.Children[0].(*PlainText); !ok || text.Text != "GPL-2" {
		t.Errorf("Expected PlainText GPL-2, got %#v", anyOf.Children[0])
	}
}

func TestParse_Provide(t *testing.T) {
	spec, err := Parse("virtual/editor X? ( virtual/x11 )", ProvideClass)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	names, err := ProvidedNames(spec, func(string) bool { return true })
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(names) != 2 || names[0] != "virtual/editor" || names[1] != "virtual/x11" {
		t.Errorf("Expected [virtual/editor virtual/x11], got %v", names)
	}
}

func TestParser_SharedInstance(t *testing.T) {
	p := NewParser()
	a, err := p.Parse("app-misc/a", DependClass)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	b, err := p.Parse("app-misc/b", DependClass)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if a.String() == b.String() {
		t.Error("Expected independent results from a shared parser")
	}
}
