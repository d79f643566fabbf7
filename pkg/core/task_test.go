package core

import (
	"context"
	"testing"
)

func TestTaskLifecycle(t *testing.T) {
	task := NewTask("find the answer", "agent-1")
	if task.ID == "" {
		t.Fatalf("expected generated task id")
	}
	if task.Status != TaskStatusPending {
		t.Fatalf("unexpected initial status: %s", task.Status)
	}

	task.Start()
	if task.Status != TaskStatusRunning || task.StartedAt.IsZero() {
		t.Fatalf("start not recorded: %+v", task)
	}

	task.Complete("42")
	if task.Status != TaskStatusCompleted || task.Result != "42" {
		t.Fatalf("complete not recorded: %+v", task)
	}
}

func TestTaskFailAndReject(t *testing.T) {
	task := NewTask("goal", "agent-1")
	task.Fail("upstream error")
	if task.Status != TaskStatusFailed || task.Error != "upstream error" {
		t.Fatalf("fail not recorded: %+v", task)
	}

	rejected := NewTask("goal", "agent-1")
	rejected.Reject("plan has no steps")
	if rejected.Status != TaskStatusRejected {
		t.Fatalf("reject not recorded: %+v", rejected)
	}
}

func TestRunIDContext(t *testing.T) {
	ctx := context.Background()
	if _, ok := RunID(ctx); ok {
		t.Fatalf("expected no run id on fresh context")
	}

	ctx, id := EnsureRunID(ctx)
	if id == "" {
		t.Fatalf("expected generated run id")
	}
	if got, ok := RunID(ctx); !ok || got != id {
		t.Fatalf("run id not stored: %q", got)
	}

	ctx2, id2 := EnsureRunID(ctx)
	if id2 != id {
		t.Fatalf("expected stable run id, got %q and %q", id, id2)
	}
	if ctx2 != ctx {
		t.Fatalf("expected unchanged context when run id present")
	}
}

func TestTaskContext(t *testing.T) {
	task := NewTask("goal", "agent-1")
	ctx := WithTask(context.Background(), task)
	got, ok := TaskFromContext(ctx)
	if !ok || got != task {
		t.Fatalf("task not retrievable from context")
	}
}
