package services_test

import (
	"context"
	"testing"

	"surplus/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRunID(ctx, "run-123")
	ctx = services.WithPipeline(ctx, "county-intake")
	ctx = services.WithStage(ctx, "extract")
	ctx = services.WithAttempt(ctx, 2)

	if id, ok := services.RunIDFromContext(ctx); !ok || id != "run-123" {
		t.Fatalf("unexpected run id: %v %v", id, ok)
	}
	if name, ok := services.PipelineFromContext(ctx); !ok || name != "county-intake" {
		t.Fatalf("unexpected pipeline: %v %v", name, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "extract" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if attempt, ok := services.AttemptFromContext(ctx); !ok || attempt != 2 {
		t.Fatalf("unexpected attempt: %v %v", attempt, ok)
	}
}

func TestStageBlankPreservesContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
}

func TestAttemptZeroIgnored(t *testing.T) {
	ctx := services.WithAttempt(context.Background(), 0)
	if _, ok := services.AttemptFromContext(ctx); ok {
		t.Fatal("expected no attempt value")
	}
}
