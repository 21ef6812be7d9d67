package cmd

import (
	"fmt"
	"os"

	"discovery-sync/core/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "discovery-sync",
	Short: "Discovery Sync Service",
	Long: `Discovery Sync mirrors the inventory of a discovery appliance into a relational database.
It copies entity kinds, enrichment queries, relationships and retired hosts, and can run
on demand, on a schedule or behind an HTTP API.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		// Console encoding with the debug level keeps ISO8601 timestamps for CLI users
		cfg := &logger.Config{
			Level:  "debug",
			Format: "console",
		}

		l, logErr := logger.New(cfg)
		if logErr == nil {
			l.Error("command failed", zap.Error(err))
			_ = l.Sync()
		} else {
			fmt.Println(err)
		}
		os.Exit(1)
	}
}
