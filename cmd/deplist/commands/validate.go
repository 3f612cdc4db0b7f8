package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deplist/deplist/pkg/repository"
)

// validateReport is the JSON form of the validate command's result.
type validateReport struct {
	Repositories []repositoryReport `json:"repositories"`
	Policies     []string           `json:"policies"`
	Problems     int                `json:"problems"`
}

type repositoryReport struct {
	Name     string               `json:"name"`
	Path     string               `json:"path"`
	Packages int                  `json:"packages"`
	Problems []repository.Problem `json:"problems,omitempty"`
}

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and repositories",
		Long: `Validate the configuration file and every configured repository.

This command checks:
  - configuration syntax and schema (YAML, JSON or CUE)
  - repository files against the package schema
  - every DEPEND, RDEPEND, PDEPEND, PROVIDE and LICENSE string
  - environment atoms, the USE hook and mask policies`,
		Example: `  # Validate the default configuration
  deplist validate

  # Validate another configuration, JSON report
  deplist validate -c /etc/deplist/deplist.cue --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			env, err := a.newEnvironment()
			if err != nil {
				return err
			}

			report := validateReport{}
			for _, p := range env.Policies().ListPolicies() {
				report.Policies = append(report.Policies, p.Name)
			}

			loader := repository.NewLoader(a.logger)
			for _, rc := range a.orderedRepositories() {
				repo, err := loader.LoadFile(rc.Path)
				if err != nil {
					return err
				}
				problems := repository.Validate(repo)
				report.Repositories = append(report.Repositories, repositoryReport{
					Name:     repo.Name(),
					Path:     rc.Path,
					Packages: repo.Len(),
					Problems: problems,
				})
				report.Problems += len(problems)
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				if err := writeJSON(out, report); err != nil {
					return err
				}
			} else {
				for _, r := range report.Repositories {
					fmt.Fprintf(out, "%s (%s): %d package(s), %d problem(s)\n", r.Name, r.Path, r.Packages, len(r.Problems))
					for _, p := range r.Problems {
						fmt.Fprintf(out, "  %s\n", p)
					}
				}
				fmt.Fprintf(out, "%d polic(ies) loaded\n", len(report.Policies))
			}

			if report.Problems > 0 {
				return &exitError{code: 2, err: fmt.Errorf("%d problem(s) found", report.Problems)}
			}
			return nil
		},
	}

	return cmd
}
