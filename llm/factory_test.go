package llm

import (
	"testing"
)

func TestParseProviderType(t *testing.T) {
	cases := []struct {
		input string
		want  ProviderType
	}{
		{"openai", ProviderOpenAI},
		{"OpenAI", ProviderOpenAI},
		{"gpt", ProviderOpenAI},
		{"anthropic", ProviderAnthropic},
		{"claude", ProviderAnthropic},
		{"deepseek", ProviderDeepSeek},
		{"gemini", ProviderGemini},
		{"google", ProviderGemini},
	}

	for _, tc := range cases {
		got, err := ParseProviderType(tc.input)
		if err != nil {
			t.Errorf("ParseProviderType(%q) failed: %v", tc.input, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseProviderType(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}

	if _, err := ParseProviderType("mistral"); err == nil {
		t.Error("expected unknown provider to fail")
	}
}

func TestProviderTypeEnvVars(t *testing.T) {
	cases := map[ProviderType]string{
		ProviderOpenAI:    "OPENAI_API_KEY",
		ProviderAnthropic: "ANTHROPIC_API_KEY",
		ProviderDeepSeek:  "DEEPSEEK_API_KEY",
		ProviderGemini:    "GEMINI_API_KEY",
	}

	for pt, want := range cases {
		if got := pt.EnvVar(); got != want {
			t.Errorf("%v.EnvVar() = %q, want %q", pt, got, want)
		}
	}
}

func TestFromEnvMissingKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := ProviderOpenAI.FromEnv()
	if err == nil {
		t.Fatal("expected an error when the API key env var is unset")
	}
}

func TestBuilderDefaults(t *testing.T) {
	provider, err := ProviderOpenAI.APIKey("sk-test")
	if err != nil {
		t.Fatal(err)
	}
	if provider.Name() != "openai" {
		t.Errorf("unexpected provider name %q", provider.Name())
	}
	if provider.Model() != ModelOpenAIGPT52 {
		t.Errorf("expected default model %q, got %q", ModelOpenAIGPT52, provider.Model())
	}
}

func TestBuilderCustomModel(t *testing.T) {
	provider, err := ProviderAnthropic.Model(ModelAnthropicClaudeHaiku4).APIKey("sk-ant-test")
	if err != nil {
		t.Fatal(err)
	}
	if provider.Model() != ModelAnthropicClaudeHaiku4 {
		t.Errorf("expected model %q, got %q", ModelAnthropicClaudeHaiku4, provider.Model())
	}
}
