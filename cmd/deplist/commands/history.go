package commands

import (
	"github.com/spf13/cobra"
)

func newHistoryCommand() *cobra.Command {
	var (
		dbPath string
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded resolutions",
		Long:  `List resolutions recorded with 'deplist resolve --record', newest first.`,
		Example: `  # Last 20 resolutions
  deplist history

  # Show one resolution with its merge list
  deplist history show 3f2a9c1e-...`,
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

			resolutions, err := store.ListResolutions(ctx, limit, offset)
			if err != nil {
				return err
			}
			return printResolutions(cmd.OutOrStdout(), resolutions)
		},
	}

	cmd.PersistentFlags().StringVar(&dbPath, "db-path", "", "SQLite database path (overrides database.path)")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of resolutions to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of resolutions to skip")

	cmd.AddCommand(&cobra.Command{
		Use:   "show ID",
		Short: "Show a recorded resolution",
		Args:  cobra.ExactArgs(1),
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

			res, err := store.GetResolution(ctx, args[0])
			if err != nil {
				return err
			}
			return printResolution(cmd.OutOrStdout(), res)
		},
	})

	return cmd
}
