package agent

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/richinex/bucketeer/llm"
	"github.com/richinex/bucketeer/tools"
)

// scriptedProvider replays canned responses in order.
type scriptedProvider struct {
	responses []string
	calls     int
	lastSent  []llm.ChatMessage
}

func (p *scriptedProvider) Name() string  { return "scripted" }
func (p *scriptedProvider) Model() string { return "scripted-1" }

func (p *scriptedProvider) Chat(ctx context.Context, messages []llm.ChatMessage) (llm.LLMResponse, error) {
	p.lastSent = messages
	response := p.responses[len(p.responses)-1]
	if p.calls < len(p.responses) {
		response = p.responses[p.calls]
	}
	p.calls++
	return llm.LLMResponse{
		Content: response,
		Usage:   &llm.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

func (p *scriptedProvider) StreamChat(ctx context.Context, messages []llm.ChatMessage, chunks chan<- string) (*llm.TokenUsage, error) {
	resp, err := p.Chat(ctx, messages)
	if err != nil {
		return nil, err
	}
	chunks <- resp.Content
	return resp.Usage, nil
}

// echoTool returns its "text" argument.
type echoTool struct{}

func (echoTool) Metadata() tools.ToolMetadata {
	return tools.ToolMetadata{
		Name:        "echo",
		Description: "Echoes the given text",
		Parameters: []tools.ToolParameter{
			{Name: "text", ParamType: "string", Description: "Text to echo", Required: true},
		},
	}
}

func (echoTool) Validate(args json.RawMessage) error { return nil }

func (echoTool) Execute(ctx context.Context, args json.RawMessage) (tools.ToolResult, error) {
	var a struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return tools.FailureResult(err), nil
	}
	return tools.SuccessResult(a.Text), nil
}

func newTestAgent(provider llm.Provider) *Agent {
	config := DefaultConfig()
	config.Tools = []tools.Tool{echoTool{}}
	config.MaxIterations = 5
	return New(config, provider)
}

func TestExecuteFinalAnswer(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"thought": "nothing to do", "is_final": true, "final_answer": "All done"}`,
	}}

	response := newTestAgent(provider).Execute(context.Background(), "say hi")
	if !response.IsSuccess() {
		t.Fatalf("expected success, got %v: %s", response.Type, response.Error)
	}
	if response.Result != "All done" {
		t.Errorf("unexpected result %q", response.Result)
	}
	if response.Metadata.LLMCalls != 1 {
		t.Errorf("expected 1 LLM call, got %d", response.Metadata.LLMCalls)
	}
}

func TestExecuteToolThenAnswer(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"thought": "use echo", "action": {"tool": "echo", "input": {"text": "hello"}}, "is_final": false}`,
		`{"thought": "done", "is_final": true, "final_answer": "The tool said hello"}`,
	}}

	response := newTestAgent(provider).Execute(context.Background(), "echo hello")
	if !response.IsSuccess() {
		t.Fatalf("expected success, got %v: %s", response.Type, response.Error)
	}
	if len(response.Metadata.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(response.Metadata.ToolCalls))
	}
	if !response.Metadata.ToolCalls[0].Success {
		t.Error("tool call should have succeeded")
	}
}

func TestUnknownToolFedBackAsObservation(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"thought": "try a tool that does not exist", "action": {"tool": "teleport", "input": {}}, "is_final": false}`,
		`{"thought": "that tool is unavailable", "is_final": true, "final_answer": "I cannot do that"}`,
	}}

	response := newTestAgent(provider).Execute(context.Background(), "teleport the bucket")
	if !response.IsSuccess() {
		t.Fatalf("unknown tool must not abort the loop, got %v: %s", response.Type, response.Error)
	}

	// The second model call must see the failure as an observation.
	var sawFailure bool
	for _, msg := range provider.lastSent {
		if strings.Contains(msg.Content, "unknown tool 'teleport'") {
			sawFailure = true
		}
	}
	if !sawFailure {
		t.Error("expected the unknown-tool failure in the conversation")
	}
}

func TestFollowUpTurnRestoresSystemPrompt(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"thought": "done", "is_final": true, "final_answer": "Again: hello"}`,
	}}

	// Shells persist only the user/assistant pair, not the system message.
	history := []llm.ChatMessage{
		llm.UserMessage("echo hello"),
		llm.AssistantMessage("The tool said hello"),
	}

	response := newTestAgent(provider).ExecuteWithHistory(context.Background(), "do it again", history)
	if !response.IsSuccess() {
		t.Fatalf("expected success, got %v: %s", response.Type, response.Error)
	}

	if len(provider.lastSent) == 0 || provider.lastSent[0].Role != "system" {
		t.Fatal("expected the conversation to start with a system message")
	}
	if !strings.Contains(provider.lastSent[0].Content, "echo") {
		t.Error("system message must describe the registered tools")
	}
	if !strings.Contains(provider.lastSent[0].Content, "is_final") {
		t.Error("system message must describe the decision format")
	}
	if provider.lastSent[1].Content != "echo hello" {
		t.Errorf("prior history must follow the system message, got %q", provider.lastSent[1].Content)
	}
}

func TestLoopExceeded(t *testing.T) {
	// The model never finishes.
	provider := &scriptedProvider{responses: []string{
		`{"thought": "echo again", "action": {"tool": "echo", "input": {"text": "more"}}, "is_final": false}`,
	}}

	response := newTestAgent(provider).Execute(context.Background(), "loop forever")
	if response.Type != ResponseLoopExceeded {
		t.Fatalf("expected loop exceeded, got %v", response.Type)
	}
	if response.Metadata.LLMCalls != 5 {
		t.Errorf("expected 5 LLM calls, got %d", response.Metadata.LLMCalls)
	}
	if len(response.Steps) != 5 {
		t.Errorf("expected 5 steps, got %d", len(response.Steps))
	}
}

func TestNonJSONResponseTreatedAsThought(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`I think I should use a tool here.`,
		`{"thought": "ok", "is_final": true, "final_answer": "Done"}`,
	}}

	response := newTestAgent(provider).Execute(context.Background(), "anything")
	if !response.IsSuccess() {
		t.Fatalf("expected success after recovery, got %v: %s", response.Type, response.Error)
	}
}

func TestDecisionFinalAnswerAcceptsObject(t *testing.T) {
	data := []byte(`{"thought": "t", "is_final": true, "final_answer": {"buckets": ["a", "b"]}}`)

	var d Decision
	if err := json.Unmarshal(data, &d); err != nil {
		t.Fatal(err)
	}
	if d.FinalAnswer == nil {
		t.Fatal("expected a final answer")
	}
	if !strings.Contains(*d.FinalAnswer, "buckets") {
		t.Errorf("unexpected final answer %q", *d.FinalAnswer)
	}
}

func TestExecuteCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := &scriptedProvider{responses: []string{
		`{"thought": "irrelevant", "is_final": true, "final_answer": "x"}`,
	}}

	response := newTestAgent(provider).Execute(ctx, "anything")
	if response.Type != ResponseFailure {
		t.Fatalf("expected failure for cancelled context, got %v", response.Type)
	}
}
