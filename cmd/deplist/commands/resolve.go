package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/deplist/deplist/pkg/engine"
	"github.com/deplist/deplist/pkg/environment"
	"github.com/deplist/deplist/pkg/policy"
	"github.com/deplist/deplist/pkg/repository"
	"github.com/deplist/deplist/pkg/stores"
	"github.com/deplist/deplist/pkg/telemetry"
)

type resolveFlags struct {
	format   string
	useDB    bool
	dbPath   string
	record   bool
	watch    bool
	extraUse []string

	rdependPost      string
	recursiveDeps    bool
	dropCircular     bool
	dropSelfCircular bool
	dropAll          bool
	ignoreInstalled  bool
	maxStackDepth    int
	cycleTolerant    []string
}

func newResolveCommand() *cobra.Command {
	var f resolveFlags

	cmd := &cobra.Command{
		Use:   "resolve ATOM...",
		Short: "Resolve atoms into an ordered merge list",
		Long: `Resolve package atoms and everything they depend on into a merge list.

The arguments are joined into one dependency expression, so any-of groups
and USE conditionals may be given directly. Resolver toggles default to
the resolver section of the configuration file; flags override them.

On failure the full resolution context is printed and the exit code is 2.`,
		Example: `  # Resolve one package
  deplist resolve app-editors/vim

  # Several targets, Graphviz output
  deplist resolve --format dot app-editors/vim dev-vcs/git | dot -Tsvg > deps.svg

  # Tolerate every cycle, ignore installed packages
  deplist resolve --drop-circular --ignore-installed '>=dev-lang/python-3.12'

  # Resolve against the imported SQLite copy and record the result
  deplist resolve --db --record app-editors/vim

  # Re-resolve whenever a repository file changes
  deplist resolve --watch app-editors/vim`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd, args, &f)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.format, "format", "text", "output format: text, json or dot")
	flags.BoolVar(&f.useDB, "db", false, "resolve against the imported SQLite database instead of repository files")
	flags.StringVar(&f.dbPath, "db-path", "", "SQLite database path (overrides database.path)")
	flags.BoolVar(&f.record, "record", false, "record the resolution in the SQLite database")
	flags.BoolVar(&f.watch, "watch", false, "re-resolve when repository or policy files change")
	flags.StringSliceVar(&f.extraUse, "use", nil, "additional global USE flags (-flag disables)")

	flags.StringVar(&f.rdependPost, "rdepend-post", "", "when to expand RDEPEND: always, as_needed or never")
	flags.BoolVar(&f.recursiveDeps, "recursive-deps", true, "expand dependencies transitively")
	flags.BoolVar(&f.dropCircular, "drop-circular", false, "suppress every circular dependency")
	flags.BoolVar(&f.dropSelfCircular, "drop-self-circular", false, "suppress packages depending on themselves")
	flags.BoolVar(&f.dropAll, "drop-all", false, "skip all dependency expansion")
	flags.BoolVar(&f.ignoreInstalled, "ignore-installed", false, "never select installed packages")
	flags.IntVar(&f.maxStackDepth, "max-stack-depth", 0, "recursion ceiling")
	flags.StringSliceVar(&f.cycleTolerant, "cycle-tolerant", nil, "packages whose self-cycles are always tolerated")

	return cmd
}

// options merges the configured resolver section with explicit flags.
func (f *resolveFlags) options(cmd *cobra.Command, base engine.Options) (engine.Options, error) {
	opts := base
	flags := cmd.Flags()
	if flags.Changed("rdepend-post") {
		post, err := engine.ParseRdependPost(f.rdependPost)
		if err != nil {
			return opts, err
		}
		opts.RdependPost = post
	}
	if flags.Changed("recursive-deps") {
		opts.RecursiveDeps = f.recursiveDeps
	}
	if flags.Changed("drop-circular") {
		opts.DropCircular = f.dropCircular
	}
	if flags.Changed("drop-self-circular") {
		opts.DropSelfCircular = f.dropSelfCircular
	}
	if flags.Changed("drop-all") {
		opts.DropAll = f.dropAll
	}
	if flags.Changed("ignore-installed") {
		opts.IgnoreInstalled = f.ignoreInstalled
	}
	if flags.Changed("max-stack-depth") {
		opts.MaxStackDepth = f.maxStackDepth
	}
	if flags.Changed("cycle-tolerant") {
		opts.CycleTolerant = f.cycleTolerant
	}
	return opts, nil
}

func runResolve(cmd *cobra.Command, args []string, f *resolveFlags) error {
	switch f.format {
	case "text", "json", "dot":
	default:
		return fmt.Errorf("invalid format %q (want text, json or dot)", f.format)
	}
	if jsonOutput {
		f.format = "json"
	}
	if f.watch && f.useDB {
		return fmt.Errorf("--watch reloads repository files and cannot be combined with --db")
	}

	ctx := cmd.Context()
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(context.Background())
	ctx = a.tel.WithContext(ctx)

	base, err := a.cfg.Resolver.Options()
	if err != nil {
		return err
	}
	opts, err := f.options(cmd, base)
	if err != nil {
		return err
	}

	if len(f.extraUse) > 0 {
		a.cfg.Environment.Use = append(a.cfg.Environment.Use, f.extraUse...)
	}
	env, err := a.newEnvironment()
	if err != nil {
		return err
	}

	var store *stores.SQLiteStore
	if f.useDB || f.record {
		if store, err = a.openStore(ctx, f.dbPath); err != nil {
			return err
		}
		defer store.Close()
	}

	r := &resolver{
		app:     a,
		env:     env,
		opts:    opts,
		targets: args,
		format:  f.format,
		out:     cmd.OutOrStdout(),
		errOut:  cmd.ErrOrStderr(),
	}
	if f.record {
		r.store = store
	}

	if f.useDB {
		return r.run(ctx, store)
	}

	loader, repos, err := a.loadRepositories()
	if err != nil {
		return err
	}
	db := repository.NewDatabase(repos...)

	if !f.watch {
		return r.run(ctx, db)
	}
	return r.watch(ctx, loader, db)
}

// resolver runs one resolution and prints it.
type resolver struct {
	app     *app
	env     *environment.Environment
	opts    engine.Options
	targets []string
	format  string
	store   *stores.SQLiteStore
	out     io.Writer
	errOut  io.Writer

	mu sync.Mutex
}

func (r *resolver) run(ctx context.Context, db engine.PackageDatabase) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.NewString()
	logger := r.app.tel.Logger.ForResolution(id, r.targets)

	list := engine.New(db, r.env,
		engine.WithOptions(r.opts),
		engine.WithLogger(logger),
		engine.WithMetrics(r.app.tel.Metrics),
		engine.WithTracer(r.app.tel.Tracer.Tracer()),
	)

	op := telemetry.StartOperation(ctx, "deplist.resolve",
		telemetry.AttrResolutionID.String(id),
		telemetry.AttrTargets.StringSlice(r.targets),
	)
	err := list.AddString(op.Ctx, strings.Join(r.targets, " "))
	duration := op.Timer.Duration()
	op.SetResult(list.Len(), string(engine.KindOf(err)))
	op.End(err)

	if r.store != nil {
		res := stores.NewResolution(r.targets, r.opts, list.Entries(), err, duration)
		res.ID = id
		if recErr := r.store.RecordResolution(ctx, res); recErr != nil {
			logger.Error().Err(recErr).Msg("failed to record resolution")
		} else {
			logger.Info().Msg("recorded resolution")
		}
	}

	if err != nil {
		printResolutionError(r.errOut, err)
		return &exitError{code: 2, err: err}
	}

	r.warnCycles(list)
	return printMergeList(r.out, r.format, r.targets, list)
}

// warnCycles reports DEPEND cycles that were suppressed during resolution.
func (r *resolver) warnCycles(list *engine.DepList) {
	graph, err := list.Graph()
	if err != nil {
		r.app.logger.Warn().Err(err).Msg("failed to build merge graph")
		return
	}
	for _, cycle := range graph.Cycles() {
		r.app.logger.Warn().Str("cycle", graph.FormatCycle(cycle)).Msg("merge order contains a suppressed cycle")
	}
}

func (r *resolver) watch(ctx context.Context, loader *repository.Loader, db *repository.Database) error {
	logger := r.app.logger

	if err := r.app.tel.Metrics.StartMetricsServer(ctx, logger); err != nil {
		return err
	}

	// The first run may fail; the next file change retries.
	if err := r.run(ctx, db); err != nil && ExitCode(err) != 2 {
		return err
	}

	err := loader.Watch(ctx, db, r.app.repositoryPaths(), func(repo *repository.Repository) {
		r.app.tel.Metrics.RecordRepositoryReload(repo.Name())
		r.app.tel.Metrics.SetRepositoryPackages(repo.Name(), repo.Len())
		logger.Info().Str("repository", repo.Name()).Msg("repository changed, resolving again")
		_ = r.run(ctx, db)
	})
	if err != nil {
		return err
	}

	if paths := r.app.cfg.Environment.Policies; len(paths) > 0 {
		if err := policy.NewLoader(logger).Watch(ctx, r.env.Policies(), paths); err != nil {
			return err
		}
	}

	<-ctx.Done()
	return nil
}
