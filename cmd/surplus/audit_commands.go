package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"surplus/internal/audit"
)

func newAuditCommand(ctx *commandContext) *cobra.Command {
	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Query the audit log",
	}
	auditCmd.AddCommand(newAuditQueryCommand(ctx))
	return auditCmd
}

func newAuditQueryCommand(ctx *commandContext) *cobra.Command {
	var (
		filter     audit.Filter
		result     string
		since      time.Duration
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "List audit entries matching every given filter",
		RunE: func(cmd *cobra.Command, args []string) error {
			sink, err := ctx.auditSink()
			if err != nil {
				return err
			}
			filter.Result = audit.Result(strings.ToLower(strings.TrimSpace(result)))
			if since > 0 {
				filter.Since = time.Now().Add(-since)
			}
			entries, err := sink.Find(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, entries)
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No audit entries match")
				return nil
			}
			colorize := shouldColorize(out)
			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				rows = append(rows, []string{
					formatTimestamp(entry.Timestamp),
					entry.Action,
					entry.ObjectType + ":" + entry.ObjectID,
					colorText(auditResultKind(entry.Result), string(entry.Result), colorize),
					entry.Mode.String(),
					shortID(entry.RunID),
					truncate(detailSummary(entry.Details), 50),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Time", "Action", "Object", "Result", "Mode", "Run", "Details"},
				rows,
				nil,
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&filter.Action, "action", "", "Only entries with this action")
	cmd.Flags().StringVar(&filter.Actor, "actor", "", "Only entries recorded by this actor")
	cmd.Flags().StringVar(&result, "result", "", "Only entries with this result (ok, error, denied)")
	cmd.Flags().StringVar(&filter.ObjectType, "object-type", "", "Only entries for this object type (stage, pipeline)")
	cmd.Flags().StringVar(&filter.RunID, "run", "", "Only entries from this run id")
	cmd.Flags().DurationVar(&since, "since", 0, "Only entries newer than this age (e.g. 24h)")
	cmd.Flags().IntVarP(&filter.Limit, "limit", "n", 0, "Maximum entries to show (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print entries as JSON")
	return cmd
}

func detailSummary(details map[string]any) string {
	if len(details) == 0 {
		return ""
	}
	var parts []string
	for _, key := range []string{"attempt", "status", "error", "duration_ms"} {
		if value, ok := details[key]; ok {
			parts = append(parts, fmt.Sprintf("%s=%v", key, value))
		}
	}
	return strings.Join(parts, " ")
}
