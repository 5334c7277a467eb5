package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sqldef/powerquery/engine"
	"github.com/sqldef/powerquery/query"
)

func cacheClearCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cache-clear <query.json>",
		Short: "Evict a query's cached result, if any",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg := loadEngineConfig(configPath)
			q := loadQueryFile(args[0])
			e := buildEngine(cfg, map[string]*query.Query{q.ID: q})

			key, cacheable, err := e.CacheKey(context.Background(), q, engine.Options{})
			if err != nil {
				return err
			}
			if !cacheable {
				fmt.Fprintln(os.Stdout, "query is not cacheable; nothing to evict")
				return nil
			}
			if err := e.Cache.Delete(key); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "evicted %s\n", key)
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "YAML file with engine settings")
	return cmd
}
