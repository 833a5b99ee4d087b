// Package agent provides the reasoning loop that turns natural language
// requests into storage operations.
//
// Contains all types used by the agent for decisions, actions, and responses.
package agent

import (
	"encoding/json"

	"github.com/richinex/bucketeer/llm"
	"github.com/richinex/bucketeer/model"
)

// Decision represents a decision made by the agent's LLM.
type Decision struct {
	Thought     string  `json:"thought"`
	Action      *Action `json:"action,omitempty"`
	IsFinal     bool    `json:"is_final"`
	FinalAnswer *string `json:"final_answer,omitempty"`
}

// UnmarshalJSON implements custom unmarshaling that accepts either a string or
// JSON value for FinalAnswer. Models sometimes answer with a structured value
// where a string was asked for.
func (d *Decision) UnmarshalJSON(data []byte) error {
	// Use an alias to avoid infinite recursion
	type DecisionAlias Decision
	aux := &struct {
		FinalAnswer json.RawMessage `json:"final_answer,omitempty"`
		*DecisionAlias
	}{
		DecisionAlias: (*DecisionAlias)(d),
	}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	if len(aux.FinalAnswer) > 0 {
		var s string
		if err := json.Unmarshal(aux.FinalAnswer, &s); err == nil {
			d.FinalAnswer = &s
			return nil
		}

		// Not a string, keep a pretty-printed rendering
		var v interface{}
		if err := json.Unmarshal(aux.FinalAnswer, &v); err == nil {
			pretty, err := json.MarshalIndent(v, "", "  ")
			if err == nil {
				s := string(pretty)
				d.FinalAnswer = &s
			}
		}
	}

	return nil
}

// Action represents an action to execute a tool.
type Action struct {
	Tool  string          `json:"tool"`
	Input json.RawMessage `json:"input"`
}

// Step is an alias for model.Step for agent reasoning steps.
type Step = model.Step

// ToolCall is an alias for model.ToolCall for tool call metadata.
type ToolCall = model.ToolCall

// Metadata contains metadata about agent execution.
type Metadata struct {
	ExecutionTimeMs uint64
	ToolCalls       []ToolCall
	TokenUsage      *llm.TokenUsage
	LLMCalls        int
}

// ResponseType indicates the type of agent response.
type ResponseType int

const (
	ResponseSuccess ResponseType = iota
	ResponseFailure
	ResponseLoopExceeded
)

// Response represents a response from an agent execution.
type Response struct {
	Type          ResponseType
	Result        string // For Success
	Error         string // For Failure
	PartialResult string // For LoopExceeded
	Steps         []Step
	Metadata      Metadata
}

// NewSuccessResponse creates a successful response.
func NewSuccessResponse(result string, steps []Step, toolCalls []ToolCall, executionTimeMs uint64, tokenUsage *llm.TokenUsage, llmCalls int) Response {
	return Response{
		Type:   ResponseSuccess,
		Result: result,
		Steps:  steps,
		Metadata: Metadata{
			ExecutionTimeMs: executionTimeMs,
			ToolCalls:       toolCalls,
			TokenUsage:      tokenUsage,
			LLMCalls:        llmCalls,
		},
	}
}

// NewFailureResponse creates a failure response.
func NewFailureResponse(err string, steps []Step, executionTimeMs uint64) Response {
	return Response{
		Type:  ResponseFailure,
		Error: err,
		Steps: steps,
		Metadata: Metadata{
			ExecutionTimeMs: executionTimeMs,
		},
	}
}

// NewLoopExceededResponse creates a response for an exhausted reasoning loop.
func NewLoopExceededResponse(steps []Step, toolCalls []ToolCall, executionTimeMs uint64, tokenUsage *llm.TokenUsage, llmCalls int) Response {
	return Response{
		Type:          ResponseLoopExceeded,
		PartialResult: "Reasoning loop limit reached before the task completed",
		Steps:         steps,
		Metadata: Metadata{
			ExecutionTimeMs: executionTimeMs,
			ToolCalls:       toolCalls,
			TokenUsage:      tokenUsage,
			LLMCalls:        llmCalls,
		},
	}
}

// IsSuccess checks if the response was successful.
func (r Response) IsSuccess() bool {
	return r.Type == ResponseSuccess
}
