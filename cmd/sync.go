package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"discovery-sync/feature/orchestrator"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var syncKinds string

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync against the discovery appliance",
	Long: `Mirrors the configured kinds, enrichment queries, relationships and retired hosts once,
then exits. The exit code is non-zero when the run fails. Use --json to print the run report.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		jsonOutput, _ := cmd.Flags().GetBool("json")

		env, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer env.logger.Sync()

		svc := orchestrator.Build(env.cfg, env.db, env.client, env.store, env.logger)
		report, runErr := svc.Run(ctx, orchestrator.RunOptions{
			RunID: uuid.New().String(),
			Kinds: orchestrator.KindsOf(syncKinds),
		})

		if jsonOutput {
			out, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode report: %w", err)
			}
			fmt.Println(string(out))
		} else {
			printRunSummary(report)
		}

		if runErr != nil {
			return fmt.Errorf("sync run %s failed: %w", report.RunID, runErr)
		}
		env.logger.Info("Sync finished", zap.String("run_id", report.RunID))
		return nil
	},
}

func printRunSummary(report *orchestrator.Report) {
	fmt.Printf("Run %s %s in %.1fs\n", report.RunID, report.Status, report.DurationSeconds)
	for _, k := range report.Kinds {
		fmt.Printf("  %-24s fetched=%d written=%d failed=%d\n", k.Kind, k.Fetched, k.Upsert.Written, k.Upsert.Failed)
	}
	fmt.Printf("  %-24s %d\n", "relationships", report.Edges)
	if report.Retired != nil {
		fmt.Printf("  %-24s fetched=%d written=%d\n", "retired", report.Retired.Fetched, report.Retired.Upsert.Written)
	}
	for _, e := range report.Errors {
		fmt.Printf("  error: %s\n", e)
	}
}

func init() {
	RootCmd.AddCommand(syncCmd)
	syncCmd.Flags().StringVar(&syncKinds, "kinds", "", "Comma separated kinds to sync instead of the configured list")
	syncCmd.Flags().Bool("json", false, "Print the run report as JSON")
}
