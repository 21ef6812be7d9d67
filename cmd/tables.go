package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"discovery-sync/core/config"
	"discovery-sync/core/database"
	"discovery-sync/core/logger"
	"discovery-sync/core/utils"
	"discovery-sync/feature/tables"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

// tablesCmd represents the tables command
var tablesCmd = &cobra.Command{
	Use:   "tables [name]",
	Short: "Inspect the mirror tables",
	Long:  `Lists the mirror tables with their row counts, or describes one table with its columns and a sample of rows.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		jsonOutput, _ := cmd.Flags().GetBool("json")
		limit, _ := cmd.Flags().GetInt("limit")

		cfg, err := config.LoadConfig(".")
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logg, err := logger.New(&cfg.Log)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		defer logg.Sync()

		db, err := database.Connect(cfg.Database)
		if err != nil {
			return fmt.Errorf("database connection required: %w", err)
		}

		svc := tables.NewService(db, cfg.Database.Schema, logg)

		var result any
		if len(args) == 0 {
			summaries, err := svc.List(ctx)
			if err != nil {
				return err
			}
			if !jsonOutput {
				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "TABLE\tROWS")
				for _, s := range summaries {
					fmt.Fprintf(w, "%s\t%d\n", s.Name, s.Rows)
				}
				return w.Flush()
			}
			result = summaries
		} else {
			details, err := svc.Describe(ctx, args[0], limit)
			if err != nil {
				return err
			}
			if !jsonOutput {
				return printTableDetails(details)
			}
			result = details
		}

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}
		fmt.Println(string(out))
		return nil
	},
}

func printTableDetails(d *tables.Details) error {
	fmt.Printf("%s (%d rows)\n\n", d.Name, d.Rows)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for i, col := range d.Columns {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, col)
	}
	fmt.Fprintln(w)
	for _, row := range d.Sample {
		for i, col := range d.Columns {
			if i > 0 {
				fmt.Fprint(w, "\t")
			}
			if v := row[col]; v != nil {
				fmt.Fprint(w, utils.ToString(v))
			} else {
				fmt.Fprint(w, "NULL")
			}
		}
		fmt.Fprintln(w)
	}
	return w.Flush()
}

func init() {
	RootCmd.AddCommand(tablesCmd)
	tablesCmd.Flags().Int("limit", tables.DefaultSampleLimit, "Number of sample rows when describing a table")
	tablesCmd.Flags().Bool("json", false, "Print the output as JSON")
}
