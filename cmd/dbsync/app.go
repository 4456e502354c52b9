package main

import (
	"fmt"
	"strings"

	"github.com/dbascode/dbsync/internal/config"
	"github.com/dbascode/dbsync/internal/dbconn"
	"github.com/dbascode/dbsync/internal/gitrepo"
	"github.com/dbascode/dbsync/internal/ignorefile"
	"github.com/dbascode/dbsync/internal/logging"
	"github.com/dbascode/dbsync/internal/orchestrator"
)

// app bundles the wiring every subcommand needs. It is built fresh
// per invocation rather than stashed in a package-global struct, so
// no subcommand can accidentally share mutable state across runs.
type app struct {
	cfg   config.Config
	orch  *orchestrator.Orchestrator
	store *gitrepo.Store
}

func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if repoPath != "" && repoPath != "." {
		cfg.RepoPath = repoPath
	}

	logger := logging.New(logFormat, logLevel)

	store := gitrepo.New(cfg.RepoPath, cfg.Remote, cfg.DefaultBranch)

	matcher, err := ignorefile.Load(cfg.SyncIgnorePath)
	if err != nil {
		return nil, err
	}

	pool := dbconn.NewPool(func(dbName string) string {
		dsn, err := cfg.DSNFor(dbName)
		if err != nil {
			return ""
		}
		if strings.Contains(dsn, "%s") {
			return fmt.Sprintf(dsn, dbName)
		}
		return dsn
	})
	svc := dbconn.New(pool, cfg.DefaultSchema)

	orch := orchestrator.New(store, svc, matcher, cfg.DefaultSchema, cfg.DiffPrefix)
	orch.DefaultBranch = cfg.DefaultBranch
	orch.MaxConcurrency = cfg.Concurrency
	orch.Logger = logger

	return &app{cfg: cfg, orch: orch, store: store}, nil
}
