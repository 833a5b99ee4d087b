// Reason + act loop for the storage assistant.
//
// The model is asked for a JSON decision each turn: either a tool to run
// or a final answer. Tool results, including failures, are folded back
// into the conversation as observations so the model can recover or
// report the problem.

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	jsonutil "github.com/richinex/bucketeer/internal/json"
	"github.com/richinex/bucketeer/llm"
	"github.com/richinex/bucketeer/tools"
)

// Agent executes storage tasks by reasoning over the registered tools.
type Agent struct {
	config       Config
	provider     llm.Provider
	toolRegistry *tools.Registry
	toolExecutor *tools.Executor
	verbose      bool
}

// New creates a new agent with the given configuration and provider.
func New(config Config, provider llm.Provider) *Agent {
	registry := tools.NewRegistry()
	for _, tool := range config.Tools {
		_ = registry.Register(tool) // duplicates are the caller's responsibility
	}
	return NewWithRegistry(config, provider, registry)
}

// NewWithRegistry creates an agent around a pre-built tool registry.
func NewWithRegistry(config Config, provider llm.Provider, registry *tools.Registry) *Agent {
	return &Agent{
		config:       config,
		provider:     provider,
		toolRegistry: registry,
		toolExecutor: tools.NewDefaultExecutor(),
	}
}

// WithToolConfig overrides the tool execution configuration.
func (a *Agent) WithToolConfig(config tools.ToolConfig) *Agent {
	a.toolExecutor = tools.NewExecutor(config)
	return a
}

// Verbose enables verbose output (shows LLM reasoning as it streams).
func (a *Agent) Verbose(enabled bool) *Agent {
	a.verbose = enabled
	return a
}

// Name returns the agent's name.
func (a *Agent) Name() string {
	return a.config.Name
}

// Registry returns the agent's tool registry.
func (a *Agent) Registry() *tools.Registry {
	return a.toolRegistry
}

// Execute runs a task from a fresh conversation.
func (a *Agent) Execute(ctx context.Context, task string) Response {
	return a.ExecuteWithHistory(ctx, task, nil)
}

// ExecuteWithHistory runs a task with prior conversation history, so
// follow-up requests can refer back to earlier turns.
func (a *Agent) ExecuteWithHistory(ctx context.Context, task string, history []llm.ChatMessage) Response {
	startTime := time.Now()
	maxIterations := a.config.Iterations()

	var steps []Step
	var toolCalls []ToolCall
	var totalUsage llm.TokenUsage
	var llmCalls int
	conversation := history

	// Shells persist history as user/assistant pairs only, so the system
	// prompt with the tool descriptions must be restored on every turn
	// that lacks one.
	if !hasSystemMessage(conversation) {
		conversation = append([]llm.ChatMessage{llm.SystemMessage(a.systemPrompt(maxIterations))}, conversation...)
	}

	conversation = append(conversation, llm.UserMessage(fmt.Sprintf("Task: %s", task)))

	for iteration := 0; iteration < maxIterations; iteration++ {
		if ctx.Err() != nil {
			return NewFailureResponse(
				fmt.Sprintf("execution cancelled: %v", ctx.Err()),
				steps,
				uint64(time.Since(startTime).Milliseconds()),
			)
		}

		remaining := maxIterations - iteration

		decision, usage, err := a.think(ctx, conversation)
		if err != nil {
			return NewFailureResponse(
				fmt.Sprintf("Failed to reason: %v", err),
				steps,
				uint64(time.Since(startTime).Milliseconds()),
			)
		}

		llmCalls++
		if usage != nil {
			totalUsage.PromptTokens += usage.PromptTokens
			totalUsage.CompletionTokens += usage.CompletionTokens
			totalUsage.TotalTokens += usage.TotalTokens
		}

		if decision.IsFinal {
			result := "Task completed"
			if decision.FinalAnswer != nil {
				result = *decision.FinalAnswer
			}

			steps = append(steps, Step{
				Iteration:   iteration,
				Thought:     decision.Thought,
				Observation: &result,
			})

			return NewSuccessResponse(
				result,
				steps,
				toolCalls,
				uint64(time.Since(startTime).Milliseconds()),
				&totalUsage,
				llmCalls,
			)
		}

		if decision.Action == nil {
			// A thought without an action or a final answer. Nudge the
			// model back into the protocol.
			observation := "No action specified"
			steps = append(steps, Step{
				Iteration:   iteration,
				Thought:     decision.Thought,
				Observation: &observation,
			})
			conversation = append(conversation, llm.UserMessage(
				"You did not choose an action. Either pick a tool or set is_final=true with a final_answer.",
			))
			continue
		}

		observation, toolCall, err := a.executeTool(ctx, decision.Action)
		if toolCall != nil {
			toolCalls = append(toolCalls, *toolCall)
		}

		observationMsg := observation
		if err != nil {
			observationMsg = fmt.Sprintf("Tool failed: %v", err)
		}

		assistantMsg := map[string]interface{}{
			"thought": decision.Thought,
			"action": map[string]interface{}{
				"tool":  decision.Action.Tool,
				"input": decision.Action.Input,
			},
			"is_final": false,
		}
		msgJSON, merr := json.Marshal(assistantMsg)
		if merr != nil {
			msgJSON = []byte(fmt.Sprintf(`{"thought": %q}`, decision.Thought))
		}
		conversation = append(conversation, llm.AssistantMessage(string(msgJSON)))

		urgency := ""
		if remaining <= 2 {
			urgency = fmt.Sprintf("\n\nWARNING: Only %d iterations remaining!", remaining-1)
		}

		conversation = append(conversation, llm.UserMessage(fmt.Sprintf(
			"Observation: %s%s\n\nIs the task complete? If yes, set is_final=true.",
			observationMsg, urgency,
		)))

		actionName := decision.Action.Tool
		steps = append(steps, Step{
			Iteration:   iteration,
			Thought:     decision.Thought,
			Action:      &actionName,
			Observation: &observationMsg,
		})
	}

	return NewLoopExceededResponse(
		steps,
		toolCalls,
		uint64(time.Since(startTime).Milliseconds()),
		&totalUsage,
		llmCalls,
	)
}

func hasSystemMessage(conversation []llm.ChatMessage) bool {
	for _, msg := range conversation {
		if msg.Role == "system" {
			return true
		}
	}
	return false
}

// systemPrompt assembles the system message with tool descriptions and
// the decision protocol.
func (a *Agent) systemPrompt(maxIterations int) string {
	return fmt.Sprintf(
		`%s

Available Tools:
%s

You have a maximum of %d iterations.
Respond in this JSON format:
{
  "thought": "your reasoning",
  "action": {"tool": "name", "input": {...}},
  "is_final": false,
  "final_answer": null
}

When complete: is_final=true, action=null, provide final_answer.`,
		a.config.SystemPrompt,
		a.toolRegistry.Description(),
		maxIterations,
	)
}

// think asks the LLM for the next decision.
// Uses streaming when verbose mode is enabled to show tokens in real-time.
func (a *Agent) think(ctx context.Context, conversation []llm.ChatMessage) (Decision, *llm.TokenUsage, error) {
	var response string
	var usage *llm.TokenUsage
	var err error

	if a.verbose {
		response, usage, err = a.thinkWithStreaming(ctx, conversation)
	} else {
		var resp llm.LLMResponse
		resp, err = a.provider.Chat(ctx, conversation)
		response, usage = resp.Content, resp.Usage
	}

	if err != nil {
		return Decision{}, nil, fmt.Errorf("LLM chat failed: %w", err)
	}

	extracted, err := jsonutil.Extract(response)
	if err != nil {
		// No JSON in the response. Treat it as a thought without action.
		return Decision{Thought: response}, usage, nil
	}

	var decision Decision
	if err := json.Unmarshal([]byte(extracted), &decision); err != nil {
		return Decision{Thought: response}, usage, nil
	}

	return decision, usage, nil
}

// streamResult holds the result of a streaming call.
type streamResult struct {
	usage *llm.TokenUsage
	err   error
}

// thinkWithStreaming shows tokens in real-time (verbose mode).
func (a *Agent) thinkWithStreaming(ctx context.Context, conversation []llm.ChatMessage) (string, *llm.TokenUsage, error) {
	chunks := make(chan string, 100)

	resultCh := make(chan streamResult, 1)
	go func() {
		defer close(chunks)
		usage, err := a.provider.StreamChat(ctx, conversation, chunks)
		resultCh <- streamResult{usage: usage, err: err}
	}()

	var response strings.Builder
	printedHeader := false

	for chunk := range chunks {
		if !printedHeader {
			fmt.Printf("\n[%s] ", a.config.Name)
			printedHeader = true
		}
		fmt.Print(chunk)
		os.Stdout.Sync()
		response.WriteString(chunk)
	}

	if printedHeader {
		fmt.Print("\n\n")
	}

	result := <-resultCh
	if result.err != nil {
		return "", nil, result.err
	}

	return response.String(), result.usage, nil
}

// executeTool runs a tool and returns the observation. A request for an
// unregistered tool is an invalid-arguments failure fed back to the
// model, not a fatal error.
func (a *Agent) executeTool(ctx context.Context, action *Action) (string, *ToolCall, error) {
	tool, exists := a.toolRegistry.Get(action.Tool)
	if !exists {
		return "", nil, fmt.Errorf("%w: unknown tool '%s', available tools: %s",
			tools.ErrInvalidArguments, action.Tool, strings.Join(a.toolRegistry.Names(), ", "))
	}

	startTime := time.Now()
	inputSize := len(action.Input)

	result, err := a.toolExecutor.Execute(ctx, tool, action.Input)
	if err != nil {
		return "", nil, fmt.Errorf("tool %q failed: %w", action.Tool, err)
	}

	toolCall := &ToolCall{
		Name:       action.Tool,
		InputSize:  inputSize,
		OutputSize: len(result.Output),
		DurationMs: uint64(time.Since(startTime).Milliseconds()),
		Success:    result.Success(),
	}

	if result.Success() {
		return result.Output, toolCall, nil
	}

	return "", toolCall, result.Error
}
