// Package app assembles the dataset source, match store and query service
// shared by the REST and MCP binaries.
package app

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/fortuna/iplstats/internal/config"
	"github.com/fortuna/iplstats/internal/dataset"
	"github.com/fortuna/iplstats/internal/service"
	"github.com/fortuna/iplstats/internal/store"
	"github.com/fortuna/iplstats/internal/teams"
)

type App struct {
	Config *config.Config
	Teams  *teams.Directory
	Store  *store.MatchStore
	Stats  *service.StatsService

	db *store.Database
}

// New opens the configured dataset source. Nothing is read until the first query.
func New(cfg *config.Config) (*App, error) {
	directory, err := teams.LoadAliasFile(cfg.Teams.AliasesFile)
	if err != nil {
		return nil, err
	}
	if cfg.Teams.AliasesFile != "" {
		log.Printf("✓ Team aliases loaded from %s (%d codes)", cfg.Teams.AliasesFile, len(directory.Codes()))
	}

	a := &App{Config: cfg, Teams: directory}

	source, err := a.openSource()
	if err != nil {
		return nil, err
	}

	a.Store = store.NewMatchStore(source, cfg.Dataset.Cache)
	a.Stats = service.NewStatsService(a.Store, directory).WithMaxMatchLimit(cfg.Server.MaxMatchLimit)
	return a, nil
}

func (a *App) openSource() (dataset.Source, error) {
	cfg := a.Config.Dataset
	nulls := dataset.NewNullSet(cfg.NullValues)

	switch cfg.Source {
	case config.SourceCSV:
		return dataset.NewCSVSource(cfg.Path, a.Config.DelimiterRune(), nulls), nil

	case config.SourceSQL:
		db, err := store.NewDatabase(cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s dataset: %w", cfg.Driver, err)
		}
		log.Printf("✓ Connected to %s dataset", cfg.Driver)

		source, err := dataset.NewSQLSource(db.DB(), cfg.Table, nulls)
		if err != nil {
			db.Close()
			return nil, err
		}
		a.db = db
		return source, nil

	default:
		return nil, fmt.Errorf("unknown dataset source %q", cfg.Source)
	}
}

// Database returns the SQL connection, or nil for file sources
func (a *App) Database() *store.Database {
	return a.db
}

// Close releases the SQL connection if one was opened
func (a *App) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}
