package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/closure-tracker/internal/model"
	"github.com/sells-group/closure-tracker/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect stage run history",
	Long:  "Commands for listing, viewing, and summarizing scrape, extract and summarize runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stage runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "runs")
		if err != nil {
			return err
		}
		defer env.Close()

		stage, _ := cmd.Flags().GetString("stage")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := env.Store.ListRuns(ctx, store.RunFilter{
			Stage:  model.Stage(stage),
			Status: model.RunStatus(status),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "runs")
		if err != nil {
			return err
		}
		defer env.Close()

		run, err := env.Store.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-stage run statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "runs")
		if err != nil {
			return err
		}
		defer env.Close()

		stats, err := env.Store.Stats(ctx)
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}

		formatRunStats(os.Stdout, stats)
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("stage", "", "filter by stage (scrape, extract, summarize)")
	runsListCmd.Flags().String("status", "", "filter by run status (running, complete, failed)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsStatsCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a table of runs to out.
func formatRunsList(out io.Writer, runs []model.StageRun) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Stage", "Status", "New", "Total", "Created", "Duration", "Error"})

	for _, r := range runs {
		var newCount, total any = "", ""
		if r.Result != nil {
			newCount, total = r.Result.New, r.Result.Total
		}
		t.AppendRow(table.Row{
			truncateID(r.ID),
			r.Stage,
			r.Status,
			newCount,
			total,
			r.CreatedAt.Format("2006-01-02 15:04"),
			r.UpdatedAt.Sub(r.CreatedAt).Round(time.Second).String(),
			truncateText(r.Error, 40),
		})
	}
	t.Render()
}

// formatRunStats writes per-stage stats to out.
func formatRunStats(out io.Writer, stats []store.StageStats) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Stage", "Runs", "Complete", "Failed", "New Records", "Last Success"})

	for _, s := range stats {
		last := "never"
		if s.LastSuccess != nil {
			last = s.LastSuccess.Format("2006-01-02 15:04")
		}
		t.AppendRow(table.Row{s.Stage, s.Runs, s.Completed, s.Failed, s.NewRecords, last})
	}
	t.Render()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncateText(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
