package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"surplus/internal/logs"
	"surplus/internal/runstore"
	"surplus/internal/services"
)

func newRunsLogCommand(ctx *commandContext) *cobra.Command {
	var (
		filter logs.Filter
		lines  int
		follow bool
		raw    bool
	)

	cmd := &cobra.Command{
		Use:   "log <run-id>",
		Short: "Show the log written during one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			runID := args[0]
			// Resolve prefixes through history when it is available.
			err = ctx.withRunStore(func(store *runstore.Store) error {
				run, err := store.Get(cmd.Context(), args[0])
				if err == nil && run != nil {
					runID = run.RunID
				}
				return err
			})
			if errors.Is(err, services.ErrValidation) {
				return err
			}

			path := logs.RunLogPath(cfg.Paths.LogDir, runID)
			out := cmd.OutOrStdout()
			emit := func(batch []string) {
				for _, line := range batch {
					if raw {
						fmt.Fprintln(out, line)
						continue
					}
					if ev := logs.Parse(line); filter.Match(ev) {
						fmt.Fprintln(out, logs.Format(ev))
					}
				}
			}

			result, err := logs.Tail(cmd.Context(), path, logs.TailOptions{Offset: -1, Limit: lines})
			if err != nil {
				return err
			}
			if result.Offset == 0 && len(result.Lines) == 0 && !follow {
				return services.Wrap(services.ErrNotFound, "cli", "runs log", "no log for run "+runID, nil)
			}
			emit(result.Lines)

			offset := result.Offset
			for follow {
				next, err := logs.Tail(cmd.Context(), path, logs.TailOptions{Offset: offset, Follow: true, Wait: 2 * time.Second})
				if err != nil {
					if errors.Is(err, cmd.Context().Err()) {
						return nil
					}
					return err
				}
				emit(next.Lines)
				offset = next.Offset
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&filter.Stage, "stage", "", "Only lines logged by this stage")
	cmd.Flags().StringVar(&filter.EventType, "event", "", "Only lines with this event_type")
	cmd.Flags().StringVar(&filter.MinLevel, "level", "", "Minimum level to show (debug, info, warn, error)")
	cmd.Flags().IntVarP(&lines, "lines", "n", 200, "Number of trailing lines to read")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing lines as they are written")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the JSON lines unmodified")
	return cmd
}
