package services_test

import (
	"context"
	"testing"

	"mangameta/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithTaskID(ctx, "a1b2c3d4")
	ctx = services.WithFile(ctx, "[123456]name.zip")
	ctx = services.WithStage(ctx, "rewrite")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.TaskIDFromContext(ctx); !ok || id != "a1b2c3d4" {
		t.Fatalf("unexpected task id: %v %v", id, ok)
	}
	if name, ok := services.FileFromContext(ctx); !ok || name != "[123456]name.zip" {
		t.Fatalf("unexpected file: %v %v", name, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "rewrite" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	ctx = services.WithTaskID(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
	if _, ok := services.TaskIDFromContext(ctx); ok {
		t.Fatal("expected no task id value")
	}
}
