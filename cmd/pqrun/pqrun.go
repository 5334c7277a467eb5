// Command pqrun runs a single declarative query end to end and prints
// its result grid to stdout, mirroring cmd/psqldef's single-purpose,
// go-flags-parsed shape: one binary, one job, options read from flags
// plus an optional --config file.
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"

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

var version string

type options struct {
	File       string `short:"f" long:"file" description:"Read the query definition from the file, rather than stdin" value-name:"filename" default:"-"`
	Config     string `long:"config" description:"YAML file with engine settings: folding_enabled, cache_size, validation, privacy"`
	Queries    string `long:"queries" description:"TOML file with per-query refresh/cacheable overrides"`
	Limit      int    `long:"limit" description:"Stop after this many result rows (0 means unlimited)"`
	Bypass     bool   `long:"bypass-cache" description:"Skip the result cache entirely for this run"`
	Refresh    bool   `long:"refresh" description:"Force a cache refresh for this run"`
	ExplainFold bool  `long:"explain-fold" description:"Print the folding record to stderr instead of running locally-unfolded steps silently"`
	Help       bool   `long:"help" description:"Show this help"`
	Version    bool   `long:"version" description:"Show this version"`
}

func parseOptions(args []string) (*options, []string) {
	var opts options
	parser := flags.NewParser(&opts, flags.None)
	parser.Usage = "[option...]"
	rest, err := parser.ParseArgs(args)
	if err != nil {
		log.Fatal(err)
	}

	if opts.Help {
		parser.WriteHelp(os.Stdout)
		os.Exit(0)
	}
	if opts.Version {
		fmt.Println(version)
		os.Exit(0)
	}
	return &opts, rest
}

func readQuery(path string) (*query.Query, error) {
	var r io.Reader = os.Stdin
	if path != "-" && path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("pqrun: open query file %q: %w", path, err)
		}
		defer f.Close()
		r = f
	}

	var q query.Query
	dec := json.NewDecoder(r)
	if err := dec.Decode(&q); err != nil {
		return nil, fmt.Errorf("pqrun: decode query: %w", err)
	}
	return &q, nil
}

func buildEngine(cfg config.EngineConfig) (*engine.Engine, error) {
	store, err := cache.NewMemoryStore(cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("pqrun: build cache store: %w", err)
	}
	return &engine.Engine{
		Connectors: map[string]connector.Connector{
			rangeconn.ID:  rangeconn.New(),
			sqlconn.ID:    sqlconn.New(),
			odataconn.ID:  odataconn.New(http.DefaultClient),
			folderconn.ID: folderconn.New(),
		},
		Cache:          cache.NewManager(store, nowMillis),
		FoldingEnabled: cfg.FoldingEnabled,
		Privacy:        cfg.PrivacyPolicy(),
	}, nil
}

func writeGrid(w io.Writer, grid [][]string) error {
	cw := csv.NewWriter(w)
	for _, row := range grid {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func main() {
	util.InitSlog()
	opts, _ := parseOptions(os.Args[1:])

	cfg, err := config.LoadEngineConfig(opts.Config)
	if err != nil {
		log.Fatal(err)
	}

	q, err := readQuery(opts.File)
	if err != nil {
		log.Fatal(err)
	}
	if opts.Queries != "" {
		reg, err := config.LoadRegisteredQueries(opts.Queries)
		if err != nil {
			log.Fatal(err)
		}
		q = reg.Apply(q)
	}

	e, err := buildEngine(cfg)
	if err != nil {
		log.Fatal(err)
	}
	e.Queries = map[string]*query.Query{q.ID: q}

	runOpts := engine.Options{Validation: cfg.ValidationMode()}
	if opts.Limit > 0 {
		runOpts.Limit = &opts.Limit
	}
	switch {
	case opts.Refresh:
		runOpts.Cache = engine.CacheRefresh
	case opts.Bypass:
		runOpts.Cache = engine.CacheBypass
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	result, meta, err := e.Execute(ctx, q, runOpts)
	if err != nil {
		log.Fatal(err)
	}

	if opts.ExplainFold && meta.Folding != nil {
		slog.Info("fold plan", "type", meta.Folding.Type, "sql", meta.Folding.Sql, "odata", meta.Folding.Odata)
	}
	if err := writeGrid(os.Stdout, result.ToGrid(true)); err != nil {
		log.Fatal(err)
	}
}

func nowMillis() int64 { return time.Now().UnixMilli() }
