package stages

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"surplus/internal/audit"
	"surplus/internal/manifest"
	"surplus/internal/pipeline"
	"surplus/internal/services"
	"surplus/internal/stage"
	"surplus/internal/testsupport"
)

func TestCatalogResolvesEveryHandler(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	catalog, err := NewCatalog(Deps{Config: cfg})
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	for _, name := range catalog.Names() {
		handler, err := catalog.Resolve(name, nil)
		if err != nil {
			t.Fatalf("Resolve(%s): %v", name, err)
		}
		if handler == nil {
			t.Fatalf("Resolve(%s) returned nil handler", name)
		}
	}
}

func TestCatalogRejectsBadParams(t *testing.T) {
	catalog, err := NewCatalog(Deps{Config: testsupport.NewConfig(t)})
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	cases := []struct {
		name    string
		handler string
		params  map[string]any
	}{
		{"unknown handler", "scrape", nil},
		{"threshold out of range", HandlerExtract, map[string]any{"threshold": 3.0}},
		{"threshold wrong type", HandlerExtract, map[string]any{"threshold": "high"}},
		{"bad format pattern", HandlerValidate, map[string]any{"field_formats": map[string]any{"zip": "("}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := catalog.Resolve(tc.handler, tc.params)
			if !errors.Is(err, services.ErrConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestCatalogValidateParamsOverrideConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithRequiredFields("case_number"))
	catalog, err := NewCatalog(Deps{Config: cfg})
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	handler, err := catalog.Resolve(HandlerValidate, map[string]any{"required_fields": []any{"owner_name"}})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, err := handler.Handle(context.Background(), stage.Payload{KeyFields: map[string]any{"owner_name": "Jane"}}); err != nil {
		t.Fatalf("expected manifest rules to replace configured ones: %v", err)
	}
}

func TestReferenceStagesRunEndToEnd(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithRequiredFields("case_number", "owner_name"))
	testsupport.WriteFixture(t, cfg.Paths.FixturesDir, "case-001", map[string]any{
		"Case Number":    "2024-CV-001",
		"Owner Name":     "JANE   DOE",
		"Surplus Amount": "1250.5",
	})
	catalog, err := NewCatalog(Deps{Config: cfg})
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	gate := testsupport.MustNewGate(t, cfg)
	orch, err := pipeline.New(pipeline.Options{Name: "recovery", Gate: gate, Audit: audit.NewMemorySink()})
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	defs := []struct {
		name     string
		params   map[string]any
		external bool
		required bool
	}{
		{HandlerFetch, nil, false, true},
		{HandlerExtract, map[string]any{"fields": []any{"case_number", "owner_name", "surplus_amount"}}, false, true},
		{HandlerNormalize, nil, false, true},
		{HandlerValidate, nil, false, true},
		{ActionSendNotification, nil, true, false},
	}
	for _, def := range defs {
		handlerName := def.name
		if def.name == ActionSendNotification {
			handlerName = HandlerNotify
		}
		handler, err := catalog.Resolve(handlerName, def.params)
		if err != nil {
			t.Fatalf("Resolve(%s): %v", handlerName, err)
		}
		if err := orch.Register(pipeline.Stage{Name: def.name, Handler: handler, Required: def.required, External: def.external}); err != nil {
			t.Fatalf("Register(%s): %v", def.name, err)
		}
	}

	report, err := orch.Execute(context.Background(), stage.Payload{KeySource: "case-001"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if report.Status != pipeline.StatusPartial {
		t.Fatalf("status = %s, want partial (notify denied in TEST mode)", report.Status)
	}
	notify, ok := report.StageResult(ActionSendNotification)
	if !ok || !notify.Denied {
		t.Fatalf("expected denied notify result, got %+v", notify)
	}
	fields := report.Output[KeyFields].(map[string]any)
	if fields["owner_name"] != "Jane Doe" || fields["surplus_amount"] != "$1,250.50" {
		t.Fatalf("unexpected normalized fields %+v", fields)
	}
}

func TestNotifyGatedWithoutExternalFlag(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithWebhook(server.URL))
	catalog, err := NewCatalog(Deps{Config: cfg})
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	m, err := manifest.Parse([]byte("name: notify-only\nstages:\n  - name: send_notification\n    handler: notify\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	orch, err := pipeline.New(pipeline.Options{Name: m.Name, Gate: testsupport.MustNewGate(t, cfg)})
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	if err := m.Build(orch, catalog); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if registered := orch.Stages(); !registered[0].External {
		t.Fatal("notify stage should register as external")
	}

	report, err := orch.Execute(context.Background(), stage.Payload{KeyFields: map[string]any{"case_number": "2024-CV-001"}})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	result, _ := report.StageResult(ActionSendNotification)
	if !result.Denied {
		t.Fatalf("expected notify to be denied in TEST mode, got %+v", result)
	}
	if n := atomic.LoadInt32(&hits); n != 0 {
		t.Fatalf("webhook received %d requests in TEST mode", n)
	}
}
