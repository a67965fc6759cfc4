package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"surplus/internal/logging"
	"surplus/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var pipelinePath string
	var strict bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate a pipeline manifest and report stage readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			built, err := buildPipeline(cfg, logging.NewNop(), buildOptions{manifestPath: pipelinePath, dryBuild: true})
			if err != nil {
				return err
			}
			defer built.Close()

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Pipeline "+built.manifest.Name, colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out, renderStatusLine("Mode", statusInfo, cfg.OperatingMode().String(), colorize))
			fmt.Fprintln(out, renderStatusLine("Network", statusInfo, cfg.Run.Network, colorize))
			fmt.Fprintln(out)

			registered := built.orch.Stages()
			rows := make([][]string, 0, len(registered))
			for i, st := range registered {
				retry := "-"
				if st.Retry.Enabled {
					retry = strconv.Itoa(st.Retry.MaxAttempts)
				}
				gated := yesNo(st.External)
				if st.External && !built.gate.IsAllowed(st.Name) {
					gated = colorText(statusWarn, "denied", colorize)
				}
				rows = append(rows, []string{st.Name, built.manifest.Stages[i].HandlerName(), yesNo(st.Required), gated, retry})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Stage", "Handler", "Required", "External", "Max Attempts"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
			))

			notReady := 0
			for _, line := range renderSectionHeader("Environment", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, result := range preflight.RunAll(cmd.Context(), cfg) {
				kind := statusOK
				if !result.Passed {
					kind = statusError
					notReady++
				}
				fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}
			fmt.Fprintln(out)

			for _, line := range renderSectionHeader("Stages", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, health := range built.orch.Health(cmd.Context()) {
				kind := statusOK
				if !health.Ready {
					kind = statusWarn
					notReady++
				}
				fmt.Fprintln(out, renderStatusLine(health.Name, kind, health.Detail, colorize))
			}
			if notReady > 0 {
				fmt.Fprintf(out, "%d check(s) not ready\n", notReady)
				if strict {
					return fmt.Errorf("%d check(s) not ready", notReady)
				}
			} else {
				fmt.Fprintln(out, "Pipeline valid")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&pipelinePath, "pipeline", "p", "", "Pipeline manifest (YAML)")
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when any check is not ready")
	_ = cmd.MarkFlagRequired("pipeline")
	return cmd
}
