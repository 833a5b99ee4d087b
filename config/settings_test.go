package config

import (
	"os"
	"sort"
	"testing"
)

func TestNewValidProvider(t *testing.T) {
	settings, err := New("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.LLM.Provider != "openai" {
		t.Errorf("expected provider 'openai', got %q", settings.LLM.Provider)
	}
}

func TestNewWithAlias(t *testing.T) {
	settings, err := New("claude")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.LLM.Provider != "anthropic" {
		t.Errorf("expected provider 'anthropic' (normalized from 'claude'), got %q", settings.LLM.Provider)
	}
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New("unknown_provider")
	if err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestNewDefaults(t *testing.T) {
	t.Setenv("AGENT_MAX_ITERATIONS", "")
	t.Setenv("TOOL_TIMEOUT_SECS", "")
	t.Setenv("WEB_LISTEN_ADDR", "")
	t.Setenv("AWS_REGION", "")

	settings, err := New("gemini")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.Agent.MaxIterations != 10 {
		t.Errorf("expected default max iterations 10, got %d", settings.Agent.MaxIterations)
	}
	if settings.Agent.ToolTimeoutSecs != 30 {
		t.Errorf("expected default tool timeout 30, got %d", settings.Agent.ToolTimeoutSecs)
	}
	if settings.Web.ListenAddr != ":8080" {
		t.Errorf("expected default listen addr ':8080', got %q", settings.Web.ListenAddr)
	}
	if settings.S3.Region != "us-east-1" {
		t.Errorf("expected default region 'us-east-1', got %q", settings.S3.Region)
	}
}

func TestS3FromEnv(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIATEST")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
	t.Setenv("AWS_REGION", "eu-west-1")
	t.Setenv("S3_ENDPOINT", "http://localhost:9000")
	t.Setenv("S3_USE_PATH_STYLE", "true")

	settings, err := New("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.S3.AccessKeyID != "AKIATEST" {
		t.Errorf("unexpected access key %q", settings.S3.AccessKeyID)
	}
	if settings.S3.Region != "eu-west-1" {
		t.Errorf("unexpected region %q", settings.S3.Region)
	}
	if settings.S3.Endpoint != "http://localhost:9000" {
		t.Errorf("unexpected endpoint %q", settings.S3.Endpoint)
	}
	if !settings.S3.UsePathStyle {
		t.Error("expected path style to be enabled")
	}
}

func TestAPIKeyForValidProvider(t *testing.T) {
	original := os.Getenv("OPENAI_API_KEY")
	os.Setenv("OPENAI_API_KEY", "test-key")
	defer os.Setenv("OPENAI_API_KEY", original)

	key, err := APIKeyFor("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "test-key" {
		t.Errorf("expected 'test-key', got %q", key)
	}
}

func TestAPIKeyForMissing(t *testing.T) {
	original := os.Getenv("OPENAI_API_KEY")
	os.Unsetenv("OPENAI_API_KEY")
	defer os.Setenv("OPENAI_API_KEY", original)

	_, err := APIKeyFor("openai")
	if err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestSupportedProvidersSorted(t *testing.T) {
	names := SupportedProviders()
	if len(names) == 0 {
		t.Fatal("expected at least one provider")
	}
	if !sort.StringsAreSorted(names) {
		t.Errorf("provider names not sorted: %v", names)
	}
}

func TestNewWithInvalidEnvVar(t *testing.T) {
	t.Setenv("LLM_MAX_TOKENS", "not-a-number")

	_, err := New("openai")
	if err == nil {
		t.Error("expected error for invalid LLM_MAX_TOKENS")
	}
}
