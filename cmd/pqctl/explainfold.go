package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sqldef/powerquery/engine"
	"github.com/sqldef/powerquery/query"
)

func explainFoldCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "explain-fold <query.json>",
		Short: "Run a query bypassing the cache and print its folding plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg := loadEngineConfig(configPath)
			q := loadQueryFile(args[0])
			e := buildEngine(cfg, map[string]*query.Query{q.ID: q})

			_, meta, err := e.Execute(context.Background(), q, engine.Options{Cache: engine.CacheBypass})
			if err != nil {
				return err
			}
			if meta.Folding == nil {
				fmt.Fprintln(os.Stdout, "no steps folded; entire pipeline ran locally")
				return nil
			}
			fmt.Fprintf(os.Stdout, "fold type: %v\n", meta.Folding.Type)
			if meta.Folding.Sql != "" {
				fmt.Fprintf(os.Stdout, "sql: %s\nargs: %v\n", meta.Folding.Sql, meta.Folding.Args)
			}
			if meta.Folding.Odata != "" {
				fmt.Fprintf(os.Stdout, "odata: %s\n", meta.Folding.Odata)
			}
			for _, diag := range meta.Folding.Diagnostics {
				fmt.Fprintf(os.Stdout, "step %d: %s (blocked=%v)\n", diag.StepIndex, diag.Message, diag.Blocked)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "YAML file with engine settings")
	return cmd
}
