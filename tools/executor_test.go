package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/richinex/bucketeer/bucket"
)

// slowTool blocks until its context is cancelled.
type slowTool struct{}

func (slowTool) Metadata() ToolMetadata {
	return ToolMetadata{Name: "slow", Description: "blocks forever"}
}

func (slowTool) Validate(args json.RawMessage) error { return nil }

func (slowTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	<-ctx.Done()
	return FailureResult(ctx.Err()), nil
}

// countingTool records how many times Execute ran.
type countingTool struct {
	calls int
	err   error
}

func (t *countingTool) Metadata() ToolMetadata {
	return ToolMetadata{Name: "counting", Description: "counts calls"}
}

func (t *countingTool) Validate(args json.RawMessage) error { return nil }

func (t *countingTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	t.calls++
	if t.err != nil {
		return FailureResult(t.err), nil
	}
	return SuccessResult("ok"), nil
}

func TestExecutorTimeoutBecomesFailedResult(t *testing.T) {
	executor := NewExecutor(ToolConfig{TimeoutSecs: 1})

	result, err := executor.Execute(context.Background(), slowTool{}, nil)
	if err != nil {
		t.Fatalf("timeout must surface as a failed result, got error %v", err)
	}
	if result.Success() {
		t.Fatal("expected a failed result")
	}
	if !errors.Is(result.Error, bucket.ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", result.Error)
	}
}

func TestExecutorRunsFailingToolOnce(t *testing.T) {
	tool := &countingTool{err: errors.New("bucket is on fire")}
	executor := NewDefaultExecutor()

	result, err := executor.Execute(context.Background(), tool, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Success() {
		t.Fatal("expected a failed result")
	}
	if tool.calls != 1 {
		t.Errorf("tool ran %d times, want exactly 1", tool.calls)
	}
}

func TestExecutorValidationFailureSkipsExecute(t *testing.T) {
	tool := NewListObjectsTool(newFakeStore("data"))
	executor := NewDefaultExecutor()

	result, err := executor.Execute(context.Background(), tool, json.RawMessage(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	if result.Success() {
		t.Fatal("expected a failed result for invalid arguments")
	}
	if !errors.Is(result.Error, ErrInvalidArguments) {
		t.Errorf("expected ErrInvalidArguments, got %v", result.Error)
	}
}
