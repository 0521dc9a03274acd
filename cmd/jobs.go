package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/campaign-cli/internal/model"
	"github.com/sells-group/campaign-cli/internal/monitoring"
	"github.com/sells-group/campaign-cli/internal/store"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect generation jobs",
	Long:  "Commands for listing, viewing, and summarizing campaign generation jobs.",
}

// -- jobs list --

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List generation jobs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		list, err := st.ListJobs(ctx, store.JobFilter{Status: model.JobStatus(status), Limit: limit})
		if err != nil {
			return eris.Wrap(err, "jobs list")
		}

		if len(list) == 0 {
			fmt.Fprintln(os.Stderr, "No jobs found.")
			return nil
		}

		formatJobsList(cmd.OutOrStdout(), list)
		return nil
	},
}

// -- jobs show --

var jobsShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show the full record of a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		job, err := st.GetJob(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "jobs show")
		}

		return writeJSON(cmd.OutOrStdout(), "", job)
	},
}

// -- jobs stats --

var jobsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate job statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		since, _ := cmd.Flags().GetDuration("since")
		snap, err := monitoring.NewCollector(st, 2*cfg.Pipeline.JobTimeout()).Collect(ctx, int(since.Hours()))
		if err != nil {
			return eris.Wrap(err, "jobs stats")
		}

		formatJobStats(cmd.OutOrStdout(), snap)
		return nil
	},
}

func init() {
	jobsListCmd.Flags().String("status", "", "filter by job status (pending, processing, completed, failed)")
	jobsListCmd.Flags().Int("limit", 50, "max number of jobs to display")

	jobsStatsCmd.Flags().Duration("since", 24*time.Hour, "time window for stats (e.g. 24h, 72h, 168h)")

	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsShowCmd)
	jobsCmd.AddCommand(jobsStatsCmd)
	rootCmd.AddCommand(jobsCmd)
}

// formatJobsList writes a tabular list of jobs to w.
func formatJobsList(out io.Writer, list []model.Job) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tPRODUCT\tSTATUS\tPROGRESS\tSTEP\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t-------\t------\t--------\t----\t-------")

	for _, j := range list {
		product := j.Request.ProductURL
		if len(product) > 30 {
			product = product[:27] + "..."
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d%%\t%s\t%s\n",
			truncateID(j.ID),
			product,
			j.Status,
			j.Progress,
			j.CurrentStep,
			j.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// formatJobStats writes aggregate stats to w.
func formatJobStats(out io.Writer, s *monitoring.MetricsSnapshot) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Window:\t%dh\n", s.LookbackHours)
	_, _ = fmt.Fprintf(w, "Total jobs:\t%d\n", s.JobsTotal)
	_, _ = fmt.Fprintf(w, "Pending:\t%d\n", s.JobsPending)
	_, _ = fmt.Fprintf(w, "Processing:\t%d\n", s.JobsProcessing)
	_, _ = fmt.Fprintf(w, "  Stuck:\t%d\n", s.JobsStuck)
	_, _ = fmt.Fprintf(w, "Completed:\t%d\n", s.JobsCompleted)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", s.JobsFailed)
	_, _ = fmt.Fprintf(w, "  Timed out:\t%d\n", s.JobsTimedOut)
	_, _ = fmt.Fprintf(w, "Failure rate:\t%.1f%%\n", s.FailRate*100)
	if s.AvgDurationSec > 0 {
		_, _ = fmt.Fprintf(w, "Avg duration:\t%.1fs\n", s.AvgDurationSec)
	}
	_, _ = fmt.Fprintf(w, "Creatives:\t%d (%d fallback)\n", s.Creatives, s.FallbackCreatives)
	_, _ = fmt.Fprintf(w, "Generation cost:\t$%.4f\n", s.GenerationCostUSD)
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
