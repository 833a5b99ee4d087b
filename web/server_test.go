package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/richinex/bucketeer/agent"
	"github.com/richinex/bucketeer/llm"
)

// recallProvider answers with the number of user turns it has seen, so
// tests can tell whether history reached the model.
type recallProvider struct{}

func (recallProvider) Name() string  { return "recall" }
func (recallProvider) Model() string { return "recall-1" }

func (recallProvider) Chat(ctx context.Context, messages []llm.ChatMessage) (llm.LLMResponse, error) {
	var userTurns int
	for _, msg := range messages {
		if msg.Role == "user" {
			userTurns++
		}
	}
	answer := struct {
		Thought     string `json:"thought"`
		IsFinal     bool   `json:"is_final"`
		FinalAnswer string `json:"final_answer"`
	}{
		Thought:     "count turns",
		IsFinal:     true,
		FinalAnswer: strings.Repeat("turn ", userTurns),
	}
	data, _ := json.Marshal(answer)
	return llm.LLMResponse{Content: string(data)}, nil
}

func (p recallProvider) StreamChat(ctx context.Context, messages []llm.ChatMessage, chunks chan<- string) (*llm.TokenUsage, error) {
	resp, _ := p.Chat(ctx, messages)
	chunks <- resp.Content
	return nil, nil
}

func testFactory(t *testing.T) AgentFactory {
	t.Helper()
	return func(ctx context.Context, cfg SessionConfig) (*agent.Agent, error) {
		config := agent.DefaultConfig()
		config.MaxIterations = 3
		return agent.New(config, recallProvider{}), nil
	}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := NewServer(zaptest.NewLogger(t), testFactory(t), nil)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func startSession(t *testing.T, ts *httptest.Server, body string) *http.Cookie {
	t.Helper()

	resp, err := http.Post(ts.URL+"/api/session", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	for _, c := range resp.Cookies() {
		if c.Name == "bucketeer_session" {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func chat(t *testing.T, ts *httptest.Server, cookie *http.Cookie, message string) chatResponse {
	t.Helper()

	out, err := chatErr(ts, cookie, message)
	if err != nil {
		t.Fatal(err)
	}
	return out
}

// chatErr is the goroutine-safe variant for concurrent tests.
func chatErr(ts *httptest.Server, cookie *http.Cookie, message string) (chatResponse, error) {
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/chat",
		strings.NewReader(`{"message": `+quote(message)+`}`))
	if err != nil {
		return chatResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(cookie)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return chatResponse{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return chatResponse{}, fmt.Errorf("expected 200, got %d", resp.StatusCode)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return chatResponse{}, err
	}
	return out, nil
}

func quote(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}

func TestChatRequiresSession(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/chat", "application/json",
		strings.NewReader(`{"message": "hi"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a session, got %d", resp.StatusCode)
	}
}

func TestChatRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	cookie := startSession(t, ts, `{}`)

	out := chat(t, ts, cookie, "list my buckets")
	if out.Kind != "answer" {
		t.Fatalf("expected an answer, got %q: %s", out.Kind, out.Reply)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	ts := newTestServer(t)

	alice := startSession(t, ts, `{}`)
	bob := startSession(t, ts, `{}`)

	// Alice has two turns, Bob one, running concurrently. Each
	// transcript must only count its own turns.
	var aliceSecond, bobFirst chatResponse
	var aliceErr, bobErr error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if _, aliceErr = chatErr(ts, alice, "first question"); aliceErr != nil {
			return
		}
		aliceSecond, aliceErr = chatErr(ts, alice, "second question")
	}()
	go func() {
		defer wg.Done()
		bobFirst, bobErr = chatErr(ts, bob, "only question")
	}()
	wg.Wait()
	if aliceErr != nil {
		t.Fatal(aliceErr)
	}
	if bobErr != nil {
		t.Fatal(bobErr)
	}

	// One task turn plus one history turn for Alice's second request.
	if !strings.Contains(aliceSecond.Reply, "turn turn") {
		t.Errorf("alice's second reply should see two user turns: %q", aliceSecond.Reply)
	}
	if strings.Count(bobFirst.Reply, "turn") != 1 {
		t.Errorf("bob's transcript leaked turns: %q", bobFirst.Reply)
	}
}

func TestSessionCredentialsReachFactory(t *testing.T) {
	var got SessionConfig
	factory := func(ctx context.Context, cfg SessionConfig) (*agent.Agent, error) {
		got = cfg
		config := agent.DefaultConfig()
		config.MaxIterations = 3
		return agent.New(config, recallProvider{}), nil
	}
	server := NewServer(zaptest.NewLogger(t), factory, nil)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	startSession(t, ts, `{"access_key_id": "AKIATEST", "secret_access_key": "s3cr3t", "region": "eu-west-1", "llm_api_key": "sk-session-key"}`)

	if got.Bucket.AccessKeyID != "AKIATEST" {
		t.Errorf("access key not passed to factory: %q", got.Bucket.AccessKeyID)
	}
	if got.Bucket.Region != "eu-west-1" {
		t.Errorf("region not passed to factory: %q", got.Bucket.Region)
	}
	if got.LLMAPIKey != "sk-session-key" {
		t.Errorf("LLM API key not passed to factory: %q", got.LLMAPIKey)
	}
}

func TestNewCredentialsStartFreshSession(t *testing.T) {
	ts := newTestServer(t)

	first := startSession(t, ts, `{}`)
	chat(t, ts, first, "remember this")

	second := startSession(t, ts, `{"access_key_id": "AKIANEW", "secret_access_key": "s"}`)
	if second.Value == first.Value {
		t.Fatal("new credentials must produce a new session ID")
	}

	out := chat(t, ts, second, "what do you remember?")
	if strings.Count(out.Reply, "turn") != 1 {
		t.Errorf("fresh session should have an empty transcript: %q", out.Reply)
	}

	// The old cookie no longer resolves once replaced via re-submission
	// from the same browser; a direct request with it still works here
	// because these came from separate clients.
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/history", nil)
	req.AddCookie(second)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for history, got %d", resp.StatusCode)
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
