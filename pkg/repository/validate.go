package repository

import (
	"fmt"

	"github.com/deplist/deplist/pkg/depspec"
)

// Problem is a dependency string that failed to parse.
type Problem struct {
	Package string `json:"package"`
	Field   string `json:"field"`
	Err     error  `json:"-"`
	Message string `json:"message"`
}

func (p Problem) String() string {
	return fmt.Sprintf("%s: %s: %s", p.Package, p.Field, p.Message)
}

// Validate parses every dependency, PROVIDE and LICENSE string in repo and
// returns the ones that fail.
func Validate(repo *Repository) []Problem {
	var problems []Problem
	for _, p := range repo.Packages() {
		id := p.Name + "-" + p.Version
		fields := []struct {
			name  string
			text  string
			class depspec.Class
		}{
			{"DEPEND", p.Depend, depspec.DependClass},
			{"RDEPEND", p.RDepend, depspec.DependClass},
			{"PDEPEND", p.PDepend, depspec.DependClass},
			{"PROVIDE", p.Provide, depspec.ProvideClass},
			{"LICENSE", p.License, depspec.LicenseClass},
		}
		for _, f := range fields {
			if _, err := depspec.Parse(f.text, f.class); err != nil {
				problems = append(problems, Problem{
					Package: id,
					Field:   f.name,
					Err:     err,
					Message: err.Error(),
				})
			}
		}
	}
	return problems
}
