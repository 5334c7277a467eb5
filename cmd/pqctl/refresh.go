package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sqldef/powerquery/engine"
	"github.com/sqldef/powerquery/progress"
	"github.com/sqldef/powerquery/refresh"
)

func refreshCmd() *cobra.Command {
	var configPath, overridesPath string
	var concurrency int

	cmd := &cobra.Command{
		Use:   "refresh <query-dir> [root-id...]",
		Short: "Refresh a set of registered queries in dependency order",
		Long: `Refresh loads every *.json query definition in query-dir, computes the
transitive dependency closure of the given root ids (or every loaded
query, if none are given), and runs them with a concurrency cap,
deduplicating any query shared by more than one root.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg := loadEngineConfig(configPath)
			queries := loadQueryDir(args[0])
			applyOverrides(queries, overridesPath)
			e := buildEngine(cfg, queries)

			roots := args[1:]
			if len(roots) == 0 {
				for id := range queries {
					roots = append(roots, id)
				}
			}

			o := &refresh.Orchestrator{
				Engine:      e,
				Queries:     queries,
				Concurrency: concurrency,
				Emitter:     progress.Func(logProgress),
			}

			results, err := o.Run(context.Background(), roots, engine.Options{Validation: cfg.ValidationMode()})
			if err != nil {
				return err
			}

			failed := 0
			for id, r := range results {
				switch r.Status {
				case refresh.StatusComplete:
					fmt.Fprintf(os.Stdout, "%s: complete (%d rows)\n", id, r.Table.RowCount())
				case refresh.StatusCancelled:
					fmt.Fprintf(os.Stdout, "%s: cancelled\n", id)
				case refresh.StatusError:
					failed++
					fmt.Fprintf(os.Stderr, "%s: error: %v\n", id, r.Err)
				}
			}
			if failed > 0 {
				return fmt.Errorf("pqctl: %d queries failed to refresh", failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "YAML file with engine settings")
	cmd.Flags().StringVar(&overridesPath, "queries", "", "TOML file with per-query refresh/cacheable overrides")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Maximum number of queries refreshed at once")

	return cmd
}

func logProgress(ev progress.Event) {
	fmt.Fprintf(os.Stderr, "[%s] query=%s step=%d operator=%s rows=%d\n", ev.Kind, ev.QueryID, ev.Step, ev.Operator, ev.Rows)
}
