package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newImportCommand() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import repositories into the SQLite database",
		Long: `Load every configured repository and store it in the SQLite database.

Each repository replaces its previous copy. The configured priority is
stored with it, so 'deplist resolve --db' ranks candidates the same way
as resolving from files.`,
		Example: `  # Import into the configured database
  deplist import

  # Import into a specific file
  deplist import --db-path /var/cache/deplist/packages.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			store, err := a.openStore(ctx, dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			_, repos, err := a.loadRepositories()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i, rc := range a.orderedRepositories() {
				repo := repos[i]
				n, err := store.ImportRepository(ctx, repo, rc.Priority)
				if err != nil {
					return fmt.Errorf("failed to import %s: %w", repo.Name(), err)
				}
				a.logger.Info().
					Str("repository", repo.Name()).
					Int("packages", n).
					Int("priority", rc.Priority).
					Msg("imported repository")
				if !jsonOutput {
					fmt.Fprintf(out, "Imported %s: %d package(s)\n", repo.Name(), n)
				}
			}

			if jsonOutput {
				records, err := store.ListRepositories(ctx)
				if err != nil {
					return err
				}
				return writeJSON(out, records)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db-path", "", "SQLite database path (overrides database.path)")

	return cmd
}
