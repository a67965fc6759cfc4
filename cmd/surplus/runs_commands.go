package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"surplus/internal/pipeline"
	"surplus/internal/runstore"
	"surplus/internal/services"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect recorded pipeline runs",
	}
	runsCmd.AddCommand(newRunsListCommand(ctx))
	runsCmd.AddCommand(newRunsShowCommand(ctx))
	runsCmd.AddCommand(newRunsLogCommand(ctx))
	runsCmd.AddCommand(newRunsPruneCommand(ctx))
	return runsCmd
}

func newRunsListCommand(ctx *commandContext) *cobra.Command {
	var (
		status       string
		pipelineName string
		limit        int
		jsonOutput   bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRunStore(func(store *runstore.Store) error {
				runs, err := store.List(cmd.Context(), runstore.ListOptions{
					Status:   pipeline.Status(status),
					Pipeline: pipelineName,
					Limit:    limit,
				})
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, runs)
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				colorize := shouldColorize(out)
				rows := make([][]string, 0, len(runs))
				for _, run := range runs {
					rows = append(rows, []string{
						shortID(run.RunID),
						run.Pipeline,
						run.Mode.String(),
						colorText(runStatusKind(run.Status), string(run.Status), colorize),
						strconv.Itoa(run.StageCount),
						formatTimestamp(run.StartedAt),
						formatDuration(run.Duration),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Run", "Pipeline", "Mode", "Status", "Stages", "Started", "Duration"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Only runs with this status (ok, partial, failed)")
	cmd.Flags().StringVar(&pipelineName, "pipeline", "", "Only runs of this pipeline")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to show (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print runs as JSON")
	return cmd
}

func newRunsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run and its stage results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRunStore(func(store *runstore.Store) error {
				run, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if run == nil {
					return services.Wrap(services.ErrNotFound, "cli", "runs show", fmt.Sprintf("no run matches %q", args[0]), nil)
				}
				if jsonOutput {
					return writeJSON(cmd, run)
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, line := range renderSectionHeader(fmt.Sprintf("Run %s (%s)", run.RunID, run.Pipeline), colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintln(out, renderStatusLine("Status", runStatusKind(run.Status), string(run.Status), colorize))
				fmt.Fprintln(out, renderStatusLine("Mode", statusInfo, run.Mode.String(), colorize))
				fmt.Fprintln(out, renderStatusLine("Started", statusInfo, formatTimestamp(run.StartedAt), colorize))
				fmt.Fprintln(out, renderStatusLine("Duration", statusInfo, formatDuration(run.Duration), colorize))
				if run.ArtifactID != "" {
					fmt.Fprintln(out, renderStatusLine("Report", statusInfo, run.ArtifactID, colorize))
				}
				if run.ArtifactError != "" {
					fmt.Fprintln(out, renderStatusLine("Report", statusWarn, run.ArtifactError, colorize))
				}
				if run.AuditFailures > 0 {
					fmt.Fprintln(out, renderStatusLine("Audit", statusWarn, fmt.Sprintf("%d entries not recorded", run.AuditFailures), colorize))
				}
				if run.Canceled {
					fmt.Fprintln(out, renderStatusLine("Canceled", statusWarn, "remaining stages skipped", colorize))
				}
				fmt.Fprintln(out)

				rows := make([][]string, 0, len(run.Stages))
				for _, st := range run.Stages {
					detail := st.ErrorDetail
					if st.ErrorKind != "" {
						detail = st.ErrorKind + ": " + detail
					}
					rows = append(rows, []string{
						strconv.Itoa(st.Position + 1),
						st.Name,
						colorText(stageStatusKind(st.Status), string(st.Status), colorize),
						strconv.Itoa(st.AttemptsUsed),
						formatDuration(st.Duration),
						yesNo(st.Required),
						truncate(detail, 60),
					})
				}
				if len(rows) > 0 {
					fmt.Fprintln(out, renderTable(
						[]string{"#", "Stage", "Status", "Attempts", "Duration", "Required", "Detail"},
						rows,
						[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
					))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the run as JSON")
	return cmd
}

func newRunsPruneCommand(ctx *commandContext) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete run history older than --days",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days <= 0 {
				return errors.New("--days must be positive")
			}
			cutoff := time.Now().AddDate(0, 0, -days)
			return ctx.withRunStore(func(store *runstore.Store) error {
				removed, err := store.Prune(cmd.Context(), cutoff)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d run(s) started before %s\n", removed, cutoff.Format("2006-01-02"))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&days, "days", 90, "Age in days beyond which runs are deleted")
	return cmd
}
