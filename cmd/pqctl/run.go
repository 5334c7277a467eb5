package main

import (
	"context"
	"encoding/csv"
	"os"

	"github.com/spf13/cobra"

	"github.com/sqldef/powerquery/engine"
	"github.com/sqldef/powerquery/query"
)

func runCmd() *cobra.Command {
	var configPath, overridesPath string
	var limit int
	var bypass, refresh bool

	cmd := &cobra.Command{
		Use:   "run <query.json>",
		Short: "Run a single query and print its result grid",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg := loadEngineConfig(configPath)
			q := loadQueryFile(args[0])
			queries := map[string]*query.Query{q.ID: q}
			applyOverrides(queries, overridesPath)
			q = queries[q.ID]

			e := buildEngine(cfg, queries)
			opts := engine.Options{Validation: cfg.ValidationMode()}
			if limit > 0 {
				opts.Limit = &limit
			}
			switch {
			case refresh:
				opts.Cache = engine.CacheRefresh
			case bypass:
				opts.Cache = engine.CacheBypass
			}

			result, _, err := e.Execute(context.Background(), q, opts)
			if err != nil {
				return err
			}
			w := csv.NewWriter(os.Stdout)
			for _, row := range result.ToGrid(true) {
				if err := w.Write(row); err != nil {
					return err
				}
			}
			w.Flush()
			return w.Error()
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "YAML file with engine settings")
	cmd.Flags().StringVar(&overridesPath, "queries", "", "TOML file with per-query refresh/cacheable overrides")
	cmd.Flags().IntVar(&limit, "limit", 0, "Stop after this many result rows (0 means unlimited)")
	cmd.Flags().BoolVar(&bypass, "bypass-cache", false, "Skip the result cache for this run")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Force a cache refresh for this run")

	return cmd
}
