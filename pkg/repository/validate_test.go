package repository

import (
	"testing"
)

func TestValidate(t *testing.T) {
	repo := newTestRepository(t, "gentoo", false,
		PackageSpec{Name: "app-misc/good", Version: "1", Depend: "|| ( a/b c/d )", Provide: "virtual/x", License: "|| ( MIT GPL-2 )"},
		PackageSpec{Name: "app-misc/bad", Version: "1", Depend: "( a/b", Provide: "|| ( virtual/x )"},
	)

	problems := Validate(repo)
	if len(problems) != 2 {
		t.Fatalf("Expected 2 problems, got %d: %v", len(problems), problems)
	}
	if problems[0].Package != "app-misc/bad-1" || problems[0].Field != "DEPEND" {
		t.Errorf("Unexpected first problem: %s", problems[0])
	}
	if problems[1].Field != "PROVIDE" {
		t.Errorf("Expected PROVIDE problem, got %s", problems[1])
	}
	if problems[0].Err == nil || problems[0].Message == "" {
		t.Error("Expected problem to carry the parse error")
	}
}
