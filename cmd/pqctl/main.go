// Command pqctl is the multi-subcommand control surface for the engine:
// run a single query, refresh a set of registered queries in dependency
// order, run a query with the cache bypassed and print its folding plan, or evict a
// cached entry. Grounded on smf's cobra-based cmd/smf/main.go shape: one
// root command, one constructor-plus-RunE function per subcommand.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sqldef/powerquery/util"
)

func main() {
	util.InitSlog()

	rootCmd := &cobra.Command{
		Use:   "pqctl",
		Short: "Control surface for the Power Query engine",
	}

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(refreshCmd())
	rootCmd.AddCommand(explainFoldCmd())
	rootCmd.AddCommand(cacheClearCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
