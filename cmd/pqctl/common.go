package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sqldef/powerquery/cache"
	"github.com/sqldef/powerquery/config"
	"github.com/sqldef/powerquery/connector"
	"github.com/sqldef/powerquery/connector/folderconn"
	"github.com/sqldef/powerquery/connector/odataconn"
	"github.com/sqldef/powerquery/connector/rangeconn"
	"github.com/sqldef/powerquery/connector/sqlconn"
	"github.com/sqldef/powerquery/engine"
	"github.com/sqldef/powerquery/query"
	"github.com/sqldef/powerquery/util"
)

func nowMillis() int64 { return time.Now().UnixMilli() }

func loadEngineConfig(path string) config.EngineConfig {
	cfg, err := config.LoadEngineConfig(path)
	if err != nil {
		fatal(err)
	}
	return cfg
}

func buildEngine(cfg config.EngineConfig, queries map[string]*query.Query) *engine.Engine {
	store, err := cache.NewMemoryStore(cfg.CacheSize)
	if err != nil {
		fatal(fmt.Errorf("pqctl: build cache store: %w", err))
	}
	return &engine.Engine{
		Connectors: map[string]connector.Connector{
			rangeconn.ID:  rangeconn.New(),
			sqlconn.ID:    sqlconn.New(),
			odataconn.ID:  odataconn.New(http.DefaultClient),
			folderconn.ID: folderconn.New(),
		},
		Queries:        queries,
		Cache:          cache.NewManager(store, nowMillis),
		FoldingEnabled: cfg.FoldingEnabled,
		Privacy:        cfg.PrivacyPolicy(),
	}
}

func loadQueryFile(path string) *query.Query {
	q, err := readQueryFile(path)
	if err != nil {
		fatal(err)
	}
	return q
}

func readQueryFile(path string) (*query.Query, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pqctl: read query file %q: %w", path, err)
	}
	var q query.Query
	if err := json.Unmarshal(buf, &q); err != nil {
		return nil, fmt.Errorf("pqctl: decode query file %q: %w", path, err)
	}
	return &q, nil
}

// loadQueryDir loads every *.json file in dir as a query.Query, indexed
// by its ID, so merge/append/QueryRef references resolve across files.
// Files are parsed with bounded concurrency since each is an independent
// disk read plus JSON decode, unlike refresh's dependency-ordered jobs.
func loadQueryDir(dir string) map[string]*query.Query {
	entries, err := os.ReadDir(dir)
	if err != nil {
		fatal(fmt.Errorf("pqctl: read query directory %q: %w", dir, err))
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}

	loaded, err := util.ConcurrentMapFuncWithError(paths, 8, readQueryFile)
	if err != nil {
		fatal(err)
	}
	queries := make(map[string]*query.Query, len(loaded))
	for _, q := range loaded {
		queries[q.ID] = q
	}
	return queries
}

func applyOverrides(queries map[string]*query.Query, overridesPath string) {
	if overridesPath == "" {
		return
	}
	reg, err := config.LoadRegisteredQueries(overridesPath)
	if err != nil {
		fatal(err)
	}
	for id, q := range queries {
		queries[id] = reg.Apply(q)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
