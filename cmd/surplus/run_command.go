package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"surplus/internal/compliance"
	"surplus/internal/config"
	"surplus/internal/logging"
	"surplus/internal/notifications"
	"surplus/internal/pipeline"
	"surplus/internal/stage"
	"surplus/internal/stages"
)

// actionRunSummary gates the end-of-run webhook; like every external action it
// only fires in LIVE mode.
const actionRunSummary = "notify_run_summary"

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		pipelinePath string
		inputPath    string
		source       string
		mode         string
		noPersist    bool
		noHistory    bool
		jsonOutput   bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a pipeline against an input payload",
		Long: "Execute every stage of a pipeline manifest in order. The input payload is read from\n" +
			"--input (a JSON object, '-' for stdin) or built from --source.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(mode) != "" {
				parsed, err := compliance.ParseMode(mode)
				if err != nil {
					return err
				}
				cfg.Run.Mode = parsed.String()
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			payload, err := readPayload(cmd.InOrStdin(), inputPath, source)
			if err != nil {
				return err
			}

			built, err := buildPipeline(cfg, logger, buildOptions{
				manifestPath: pipelinePath,
				noPersist:    noPersist,
				noHistory:    noHistory,
			})
			if err != nil {
				return err
			}
			defer built.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			report, err := built.orch.Execute(runCtx, payload)
			if err != nil {
				return err
			}
			publishRunSummary(context.WithoutCancel(runCtx), built, report)
			logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, logging.RetentionTarget{
				Dir:     filepath.Join(cfg.Paths.LogDir, "runs"),
				Pattern: "*.log",
			})

			if jsonOutput {
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
			} else {
				renderRunReport(cmd.OutOrStdout(), report, shouldColorize(cmd.OutOrStdout()))
			}
			if report.Status == pipeline.StatusFailed {
				return fmt.Errorf("run %s failed", report.RunID)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&pipelinePath, "pipeline", "p", "", "Pipeline manifest (YAML)")
	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "Input payload JSON file ('-' reads stdin)")
	cmd.Flags().StringVarP(&source, "source", "s", "", "Shortcut for an input payload of {\"source\": VALUE}")
	cmd.Flags().StringVar(&mode, "mode", "", "Override run.mode (TEST, DRY_RUN, LIVE)")
	cmd.Flags().BoolVar(&noPersist, "no-persist", false, "Do not write the run report to the artifact store")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "Do not record the run in the history database")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the run report as JSON")
	_ = cmd.MarkFlagRequired("pipeline")
	return cmd
}

func readPayload(stdin io.Reader, inputPath, source string) (stage.Payload, error) {
	payload := stage.Payload{}
	inputPath = strings.TrimSpace(inputPath)
	if inputPath != "" {
		var data []byte
		var err error
		if inputPath == "-" {
			data, err = io.ReadAll(stdin)
		} else {
			var expanded string
			expanded, err = config.ExpandPath(inputPath)
			if err == nil {
				data, err = os.ReadFile(expanded)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("read input: %w", err)
		}
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.UseNumber()
		var raw map[string]any
		if err := decoder.Decode(&raw); err != nil {
			return nil, fmt.Errorf("input must be a JSON object: %w", err)
		}
		if raw == nil {
			return nil, fmt.Errorf("input must be a JSON object, got null")
		}
		payload = stage.Payload(normalizeNumbers(raw).(map[string]any))
	}
	if source = strings.TrimSpace(source); source != "" {
		payload[stages.KeySource] = source
	}
	return payload, nil
}

// normalizeNumbers turns json.Number into int64 when integral and float64
// otherwise, so integer ids and counts reach handlers without float rounding.
func normalizeNumbers(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		for key, item := range typed {
			typed[key] = normalizeNumbers(item)
		}
		return typed
	case []any:
		for i, item := range typed {
			typed[i] = normalizeNumbers(item)
		}
		return typed
	case json.Number:
		if n, err := strconv.ParseInt(typed.String(), 10, 64); err == nil {
			return n
		}
		f, _ := typed.Float64()
		return f
	default:
		return value
	}
}

func publishRunSummary(ctx context.Context, built *builtPipeline, report *pipeline.RunReport) {
	if !built.gate.IsAllowed(actionRunSummary) || !notifications.Enabled(built.notifier) {
		return
	}
	payload := notifications.Payload{
		"pipeline": report.Pipeline,
		"status":   string(report.Status),
		"duration": formatDuration(time.Duration(report.Duration)),
		"run_id":   report.RunID,
	}
	if err := built.notifier.Publish(ctx, notifications.EventRunCompleted, payload); err != nil {
		fmt.Fprintf(os.Stderr, "warning: run summary notification failed: %v\n", err)
	}
}

func renderRunReport(out io.Writer, report *pipeline.RunReport, colorize bool) {
	for _, line := range renderSectionHeader(fmt.Sprintf("Run %s (%s)", shortID(report.RunID), report.Pipeline), colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Status", runStatusKind(report.Status), string(report.Status), colorize))
	fmt.Fprintln(out, renderStatusLine("Mode", statusInfo, report.Mode.String(), colorize))
	fmt.Fprintln(out, renderStatusLine("Duration", statusInfo, formatDuration(time.Duration(report.Duration)), colorize))
	if report.ArtifactID != "" {
		fmt.Fprintln(out, renderStatusLine("Report", statusInfo, report.ArtifactID, colorize))
	}
	if report.Canceled {
		fmt.Fprintln(out, renderStatusLine("Canceled", statusWarn, "remaining stages skipped", colorize))
	}
	if report.Persistence.Failed() {
		fmt.Fprintln(out, renderStatusLine("Persistence", statusWarn, persistenceSummary(report.Persistence), colorize))
	}
	fmt.Fprintln(out)

	rows := make([][]string, 0, len(report.StageResults))
	for _, result := range report.StageResults {
		detail := result.ErrorDetail
		if result.Denied {
			detail = "denied: " + detail
		}
		rows = append(rows, []string{
			result.StageName,
			colorText(stageStatusKind(result.Status), string(result.Status), colorize),
			strconv.Itoa(result.AttemptsUsed),
			formatDuration(time.Duration(result.Duration)),
			yesNo(result.Required),
			truncate(detail, 60),
		})
	}
	if len(rows) == 0 {
		fmt.Fprintln(out, "No stages registered")
		return
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Stage", "Status", "Attempts", "Duration", "Required", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
	))
}

func persistenceSummary(p pipeline.Persistence) string {
	var parts []string
	if p.ArtifactError != "" {
		parts = append(parts, "report not stored: "+p.ArtifactError)
	}
	if p.AuditFailures > 0 {
		parts = append(parts, fmt.Sprintf("%d audit entries not recorded", p.AuditFailures))
	}
	if p.HistoryError != "" {
		parts = append(parts, "history not recorded: "+p.HistoryError)
	}
	return strings.Join(parts, "; ")
}
