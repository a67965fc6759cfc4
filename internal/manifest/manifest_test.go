package manifest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"surplus/internal/pipeline"
	"surplus/internal/services"
	"surplus/internal/stage"
	"surplus/internal/testsupport"
)

type fakeResolver struct {
	calls  []string
	params map[string]map[string]any
	fail   string
}

func (r *fakeResolver) Resolve(handler string, params map[string]any) (stage.Handler, error) {
	if handler == r.fail {
		return nil, services.Wrap(services.ErrConfiguration, "test", "resolve", "unknown handler "+handler, nil)
	}
	r.calls = append(r.calls, handler)
	if r.params == nil {
		r.params = map[string]map[string]any{}
	}
	r.params[handler] = params
	return stage.HandlerFunc(func(_ context.Context, in stage.Payload) (stage.Payload, error) {
		return in, nil
	}), nil
}

type recordingRegistrar struct {
	stages []pipeline.Stage
}

func (r *recordingRegistrar) Register(st pipeline.Stage) error {
	r.stages = append(r.stages, st)
	return nil
}

func TestLoadRecoveryManifest(t *testing.T) {
	m, err := Load(filepath.Join("testdata", "recovery.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Name != "recovery" || len(m.Stages) != 5 {
		t.Fatalf("unexpected manifest %+v", m)
	}
	fetch := m.Stages[0]
	if !fetch.Required || !fetch.Retry.Enabled || fetch.Retry.MaxAttempts != 3 {
		t.Fatalf("unexpected fetch entry %+v", fetch)
	}
	notify := m.Stages[4]
	if notify.HandlerName() != "notify" || !notify.External || notify.Required {
		t.Fatalf("unexpected notify entry %+v", notify)
	}
	if m.Stages[2].HandlerName() != "normalize" {
		t.Fatalf("handler should default to stage name, got %q", m.Stages[2].HandlerName())
	}
}

func TestBuildRegistersInOrder(t *testing.T) {
	m, err := Load(filepath.Join("testdata", "recovery.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	resolver := &fakeResolver{}
	reg := &recordingRegistrar{}
	if err := m.Build(reg, resolver); err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := []string{"fetch", "extract", "normalize", "validate", "send_notification"}
	if len(reg.stages) != len(want) {
		t.Fatalf("registered %d stages, want %d", len(reg.stages), len(want))
	}
	for i, name := range want {
		if reg.stages[i].Name != name {
			t.Fatalf("stage %d = %s, want %s", i, reg.stages[i].Name, name)
		}
	}
	fields, ok := resolver.params["extract"]["fields"].([]any)
	if !ok || len(fields) != 5 {
		t.Fatalf("extract params not passed through: %#v", resolver.params["extract"])
	}
}

func TestBuildResolvesBeforeRegistering(t *testing.T) {
	m, err := Load(filepath.Join("testdata", "recovery.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	reg := &recordingRegistrar{}
	err = m.Build(reg, &fakeResolver{fail: "validate"})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if len(reg.stages) != 0 {
		t.Fatalf("expected no registrations after resolve failure, got %d", len(reg.stages))
	}
}

func TestParseRejectsInvalidManifests(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"missing name":   "stages:\n  - name: a\n",
		"unknown key":    "name: p\nstagez: []\n",
		"blank stage":    "name: p\nstages:\n  - handler: fetch\n",
		"duplicate":      "name: p\nstages:\n  - name: a\n  - name: a\n",
		"bad retry":      "name: p\nstages:\n  - name: a\n    retry:\n      enabled: true\n      max_attempts: 0\n",
		"malformed yaml": "name: [\n",
	}
	for label, doc := range cases {
		t.Run(label, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			if !errors.Is(err, services.ErrConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestBuildOntoOrchestrator(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := filepath.Join(testsupport.BaseDir(cfg), "pipeline.yaml")
	doc := "name: tiny\nstages:\n"
	for i := range 3 {
		doc += fmt.Sprintf("  - name: s%d\n    handler: pass\n    required: true\n", i)
	}
	testsupport.WriteFile(t, path, []byte(doc))

	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	gate := testsupport.MustNewGate(t, cfg)
	orch, err := pipeline.New(pipeline.Options{Name: m.Name, Gate: gate})
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	if err := m.Build(orch, &fakeResolver{}); err != nil {
		t.Fatalf("Build: %v", err)
	}
	report, err := orch.Execute(context.Background(), stage.Payload{"k": "v"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if report.Status != pipeline.StatusOK || len(report.StageResults) != 3 {
		t.Fatalf("unexpected report %+v", report)
	}
}
