// Tool Executor with timeout enforcement.
//
// Storage operations are not retried here: the S3 SDK already handles
// transient faults, and repeating a mutation (upload, delete) on an
// ambiguous failure could apply it twice. Each invocation runs exactly
// once under a per-call deadline.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/richinex/bucketeer/bucket"
)

// Executor runs tools with validation and a per-call timeout.
type Executor struct {
	config ToolConfig
}

// NewExecutor creates a new tool executor with the given configuration.
func NewExecutor(config ToolConfig) *Executor {
	return &Executor{config: config}
}

// NewDefaultExecutor creates an executor with default configuration.
func NewDefaultExecutor() *Executor {
	return &Executor{config: DefaultToolConfig()}
}

// Execute validates the arguments and runs the tool once under the
// configured deadline. Validation failures and timeouts surface as
// failed ToolResults, not errors: the reasoning loop folds them back
// into the conversation.
func (e *Executor) Execute(ctx context.Context, tool Tool, args json.RawMessage) (ToolResult, error) {
	if err := tool.Validate(args); err != nil {
		return FailureResult(err), nil
	}

	timeout := time.Duration(e.config.Timeout()) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := tool.Execute(ctx, args)
	if err != nil {
		return ToolResult{}, err
	}

	if !result.Success() && ctx.Err() == context.DeadlineExceeded {
		toolName := tool.Metadata().Name
		return FailureResult(fmt.Errorf("tool '%s': %w after %s", toolName, bucket.ErrTimeout, timeout)), nil
	}

	return result, nil
}
