package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"surplus/internal/audit"
	"surplus/internal/config"
	"surplus/internal/pipeline"
	"surplus/internal/runstore"
	"surplus/internal/services"
	"surplus/internal/testsupport"
)

type cliTestEnv struct {
	cfg          *config.Config
	configPath   string
	pipelinePath string
}

const testPipeline = `name: recovery
stages:
  - name: fetch
    required: true
  - name: extract
    required: true
    params:
      fields: [case_number, owner_name, surplus_amount]
  - name: normalize
    required: true
  - name: validate
    required: true
  - name: send_notification
    handler: notify
    external: true
`

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	opts = append([]testsupport.ConfigOption{testsupport.WithRequiredFields("case_number", "owner_name")}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	base := testsupport.BaseDir(cfg)

	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	configPath := filepath.Join(base, "config.toml")
	testsupport.WriteFile(t, configPath, data)

	pipelinePath := filepath.Join(base, "pipeline.yaml")
	testsupport.WriteFile(t, pipelinePath, []byte(testPipeline))

	testsupport.WriteFixture(t, cfg.Paths.FixturesDir, "case-001", map[string]any{
		"Case Number":    "2024-CV-001",
		"Owner Name":     "JANE   DOE",
		"Surplus Amount": "$1,250.50",
	})
	testsupport.WriteFixture(t, cfg.Paths.FixturesDir, "case-002", map[string]any{
		"Case Number": "2024-CV-002",
	})

	return &cliTestEnv{cfg: cfg, configPath: configPath, pipelinePath: pipelinePath}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestCLIRunRecordsHistoryAuditAndArtifact(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"run", "-p", env.pipelinePath, "-s", "case-001", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var report struct {
		RunID        string `json:"run_id"`
		Status       string `json:"status"`
		ArtifactID   string `json:"artifact_id"`
		StageResults []struct {
			StageName string `json:"stage_name"`
			Status    string `json:"status"`
			Denied    bool   `json:"denied"`
		} `json:"stage_results"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode report: %v\n%s", err, out)
	}
	if report.Status != "partial" {
		t.Fatalf("status = %s, want partial", report.Status)
	}
	if len(report.StageResults) != 5 || !report.StageResults[4].Denied {
		t.Fatalf("expected denied notification stage, got %+v", report.StageResults)
	}
	if report.ArtifactID == "" {
		t.Fatal("expected persisted report artifact id")
	}

	out, _, err = runCLI(t, []string{"runs", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("runs list: %v", err)
	}
	if !strings.Contains(out, report.RunID[:8]) || !strings.Contains(out, "partial") {
		t.Fatalf("runs list missing run: %q", out)
	}

	out, _, err = runCLI(t, []string{"runs", "show", report.RunID[:8]}, env.configPath)
	if err != nil {
		t.Fatalf("runs show: %v", err)
	}
	if !strings.Contains(out, report.RunID) || !strings.Contains(out, "send_notification") {
		t.Fatalf("unexpected runs show output: %q", out)
	}

	out, _, err = runCLI(t, []string{"runs", "log", report.RunID[:8], "--stage", "send_notification"}, env.configPath)
	if err != nil {
		t.Fatalf("runs log: %v", err)
	}
	if !strings.Contains(out, "[send_notification]") {
		t.Fatalf("run log missing denied stage line: %q", out)
	}

	out, _, err = runCLI(t, []string{"audit", "query", "--result", "denied", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("audit query: %v", err)
	}
	var entries []audit.Entry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode audit entries: %v", err)
	}
	if len(entries) != 1 || entries[0].ObjectID != "send_notification" || entries[0].RunID != report.RunID {
		t.Fatalf("unexpected denied entries %+v", entries)
	}

	out, _, err = runCLI(t, []string{"artifact", "get", report.ArtifactID}, env.configPath)
	if err != nil {
		t.Fatalf("artifact get: %v", err)
	}
	if !strings.Contains(out, `"run_id": "`+report.RunID+`"`) {
		t.Fatalf("artifact does not hold the run report: %q", out)
	}

	exportDir := t.TempDir()
	if _, _, err := runCLI(t, []string{"artifact", "get", report.ArtifactID, "-o", exportDir}, env.configPath); err != nil {
		t.Fatalf("artifact get -o: %v", err)
	}
	if _, err := os.Stat(filepath.Join(exportDir, "report-"+report.ArtifactID+".json")); err != nil {
		t.Fatalf("expected exported artifact: %v", err)
	}
}

func TestCLIRunsLogRejectsAmbiguousPrefix(t *testing.T) {
	env := setupCLITestEnv(t)
	store, err := runstore.Open(env.cfg)
	if err != nil {
		t.Fatalf("open run history: %v", err)
	}
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for _, id := range []string{"abcdef12-0000-4000-8000-000000000001", "abcdef12-0000-4000-8000-000000000002"} {
		report := &pipeline.RunReport{RunID: id, Pipeline: "recovery", Status: pipeline.StatusOK, StartedAt: started, FinishedAt: started}
		if err := store.RecordRun(context.Background(), report); err != nil {
			t.Fatalf("RecordRun: %v", err)
		}
	}
	store.Close()

	_, _, err = runCLI(t, []string{"runs", "log", "abcdef12"}, env.configPath)
	if !errors.Is(err, services.ErrValidation) || !strings.Contains(err.Error(), "ambiguous") {
		t.Fatalf("expected ambiguous prefix error, got %v", err)
	}
}

func TestCLIRunFailsOnRequiredStageError(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"run", "-p", env.pipelinePath, "-s", "case-002", "--no-persist"}, env.configPath)
	if err == nil {
		t.Fatal("expected failed run to return an error")
	}
	if !strings.Contains(out, "failed") || !strings.Contains(out, "skipped") {
		t.Fatalf("unexpected run output: %q", out)
	}

	out, _, err = runCLI(t, []string{"artifact", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("artifact list: %v", err)
	}
	if !strings.Contains(out, "No artifacts stored") {
		t.Fatalf("--no-persist still stored a report: %q", out)
	}
}

func TestCLIRunReadsInputFile(t *testing.T) {
	env := setupCLITestEnv(t)
	inputPath := filepath.Join(testsupport.BaseDir(env.cfg), "input.json")
	testsupport.WriteFile(t, inputPath, []byte(`{"source": "case-001", "batch": 7}`))

	out, _, err := runCLI(t, []string{"run", "-p", env.pipelinePath, "-i", inputPath, "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var report struct {
		Output map[string]any `json:"output"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Output["batch"] != float64(7) {
		t.Fatalf("input field not carried through: %+v", report.Output)
	}
}

func TestCLIRunRejectsUnknownMode(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"run", "-p", env.pipelinePath, "--mode", "YOLO"}, env.configPath); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestCLICheckCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"check", "-p", env.pipelinePath}, env.configPath)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !strings.Contains(out, "send_notification") || !strings.Contains(out, "denied") {
		t.Fatalf("unexpected check output: %q", out)
	}
	if !strings.Contains(out, "not ready") {
		t.Fatalf("notify without webhook should be reported not ready: %q", out)
	}

	badPath := filepath.Join(testsupport.BaseDir(env.cfg), "bad.yaml")
	testsupport.WriteFile(t, badPath, []byte("name: bad\nstages:\n  - name: x\n    handler: scrape\n"))
	if _, _, err := runCLI(t, []string{"check", "-p", badPath}, env.configPath); err == nil {
		t.Fatal("expected unknown handler to fail check")
	}
}

func TestCLIConfigCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	target := filepath.Join(t.TempDir(), "surplus.toml")
	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, "Wrote sample configuration") {
		t.Fatalf("unexpected init output: %q", out)
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting")
	}

	out, _, err = runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, env.cfg.Paths.ArtifactDir) || !strings.Contains(out, "[pipeline]") {
		t.Fatalf("unexpected config show output: %q", out)
	}

	out, _, err = runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(out, "Configuration valid") {
		t.Fatalf("unexpected validate output: %q", out)
	}
}

func TestReadPayloadNormalizesNumbers(t *testing.T) {
	payload, err := readPayload(strings.NewReader(`{"n": 3, "f": 1.5, "nested": {"k": [1, 2]}}`), "-", "src")
	if err != nil {
		t.Fatalf("readPayload: %v", err)
	}
	if payload["n"] != int64(3) || payload["f"] != 1.5 || payload["source"] != "src" {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if _, err := readPayload(strings.NewReader(`[1]`), "-", ""); err == nil {
		t.Fatal("expected non-object input to fail")
	}
}
