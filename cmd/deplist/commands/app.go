package commands

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/deplist/deplist/pkg/config"
	"github.com/deplist/deplist/pkg/environment"
	"github.com/deplist/deplist/pkg/repository"
	"github.com/deplist/deplist/pkg/stores"
	"github.com/deplist/deplist/pkg/telemetry"
)

// app holds what every command builds from the configuration file.
type app struct {
	cfg    *config.Config
	tel    *telemetry.Telemetry
	logger zerolog.Logger
}

func loadApp(ctx context.Context) (*app, error) {
	cfg, err := config.NewLoader(log.Logger).Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", configPath, err)
	}

	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	if buildVersion != "" {
		cfg.Telemetry.ServiceVersion = buildVersion
	}
	tel, err := telemetry.NewTelemetry(&cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	return &app{
		cfg:    cfg,
		tel:    tel,
		logger: *tel.Logger.Component("cli").Zerolog(),
	}, nil
}

func (a *app) close(ctx context.Context) {
	if err := a.tel.Shutdown(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("failed to shut down telemetry")
	}
}

// orderedRepositories returns the configured repositories by ascending
// priority, keeping file order for ties.
func (a *app) orderedRepositories() []config.RepositoryConfig {
	repos := append([]config.RepositoryConfig(nil), a.cfg.Repositories...)
	sort.SliceStable(repos, func(i, j int) bool {
		return repos[i].Priority < repos[j].Priority
	})
	return repos
}

func (a *app) repositoryPaths() []string {
	paths := make([]string, len(a.cfg.Repositories))
	for i, r := range a.cfg.Repositories {
		paths[i] = r.Path
	}
	return paths
}

// loadRepositories loads every configured repository file in precedence
// order.
func (a *app) loadRepositories() (*repository.Loader, []*repository.Repository, error) {
	loader := repository.NewLoader(a.logger)
	var repos []*repository.Repository
	for _, rc := range a.orderedRepositories() {
		repo, err := loader.LoadFile(rc.Path)
		if err != nil {
			return nil, nil, err
		}
		a.tel.Metrics.SetRepositoryPackages(repo.Name(), repo.Len())
		a.tel.Logger.WithRepository(repo.Name()).Zerolog().Debug().
			Int("packages", repo.Len()).
			Int("priority", rc.Priority).
			Msg("loaded repository")
		repos = append(repos, repo)
	}
	return loader, repos, nil
}

func (a *app) newEnvironment() (*environment.Environment, error) {
	env, err := environment.New(a.cfg.Environment, environment.WithLogger(a.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to build environment: %w", err)
	}
	return env, nil
}

// openStore opens and migrates the SQLite store. path overrides the
// configured database path.
func (a *app) openStore(ctx context.Context, path string) (*stores.SQLiteStore, error) {
	if path == "" {
		path = a.cfg.Database.Path
	}
	if path == "" {
		return nil, fmt.Errorf("no database configured (set database.path or --db-path)")
	}

	store, err := stores.NewSQLiteStore(stores.Config{
		Path:      path,
		CacheSize: a.cfg.Database.CacheSize,
	})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}
