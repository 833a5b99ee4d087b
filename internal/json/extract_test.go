package json

import (
	"strings"
	"testing"
)

type decision struct {
	Thought string `json:"thought"`
	Tool    string `json:"tool"`
}

func TestDecodePureJSON(t *testing.T) {
	response := `{"thought": "list first", "tool": "list_buckets"}`
	result, err := Decode[decision](response)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Thought != "list first" {
		t.Errorf("expected thought 'list first', got '%s'", result.Thought)
	}
	if result.Tool != "list_buckets" {
		t.Errorf("expected tool 'list_buckets', got '%s'", result.Tool)
	}
}

func TestDecodeSurroundingText(t *testing.T) {
	response := `Sure, here is my decision: {"thought": "check", "tool": "get_metadata"} Let me know.`
	result, err := Decode[decision](response)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Tool != "get_metadata" {
		t.Errorf("expected tool 'get_metadata', got '%s'", result.Tool)
	}
}

func TestDecodeMarkdownFence(t *testing.T) {
	response := "```json\n{\"thought\": \"done\", \"tool\": \"\"}\n```"
	result, err := Decode[decision](response)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Thought != "done" {
		t.Errorf("expected thought 'done', got '%s'", result.Thought)
	}
}

func TestDecodeBareFence(t *testing.T) {
	response := "```\n{\"thought\": \"done\", \"tool\": \"delete_object\"}\n```"
	result, err := Decode[decision](response)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Tool != "delete_object" {
		t.Errorf("expected tool 'delete_object', got '%s'", result.Tool)
	}
}

func TestDecodeNestedBraces(t *testing.T) {
	response := `{"thought": "upload it", "tool": "upload_file", "input": {"bucket": "data"}}`
	payload, err := Extract(response)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload != response {
		t.Errorf("expected full payload back, got '%s'", payload)
	}
}

func TestDecodeNoJSON(t *testing.T) {
	response := "I am not sure what to do here."
	_, err := Decode[decision](response)
	if err == nil {
		t.Fatal("expected an error for a response without JSON")
	}
	if !strings.Contains(err.Error(), "no valid JSON") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestDecodeErrorPreviewTruncated(t *testing.T) {
	response := strings.Repeat("x", 500)
	_, err := Extract(response)
	if err == nil {
		t.Fatal("expected an error")
	}
	if len(err.Error()) > 200 {
		t.Errorf("error preview not truncated: %d chars", len(err.Error()))
	}
}
