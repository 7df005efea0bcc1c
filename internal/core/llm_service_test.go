package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestExtractAnswer(t *testing.T) {
	tests := []struct {
		name   string
		output []outputItem
		want   string
	}{
		{
			name: "message only",
			output: []outputItem{
				{Type: "message", Content: []contentPart{{Type: "output_text", Text: "hello"}}},
			},
			want: "hello",
		},
		{
			name: "reasoning before message",
			output: []outputItem{
				{Type: "reasoning", Content: nil},
				{Type: "message", Content: []contentPart{{Type: "output_text", Text: "the answer"}}},
			},
			want: "the answer",
		},
		{
			name: "first text part wins",
			output: []outputItem{
				{Type: "message", Content: []contentPart{
					{Type: "output_text", Text: ""},
					{Type: "output_text", Text: "second part"},
				}},
			},
			want: "second part",
		},
		{
			name:   "empty output falls back",
			output: nil,
			want:   fallbackAnswer,
		},
		{
			name: "no message items falls back",
			output: []outputItem{
				{Type: "reasoning"},
				{Type: "tool_call"},
			},
			want: fallbackAnswer,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractAnswer(tt.output); got != tt.want {
				t.Errorf("extractAnswer() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStoredPromptResponse(t *testing.T) {
	var gotReq responsesRequest
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/responses" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(responsesResponse{
			Output: []outputItem{
				{Type: "reasoning"},
				{Type: "message", Content: []contentPart{{Type: "output_text", Text: "drink more water"}}},
			},
		})
	}))
	defer srv.Close()

	svc := NewLLMService("pmpt_123", "4", "", 5*time.Second)
	svc.baseURL = srv.URL

	answer, err := svc.Respond(context.Background(), "sk-test", "how much water per day?")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if answer != "drink more water" {
		t.Errorf("answer = %q", answer)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("authorization header = %q", gotAuth)
	}
	if gotReq.Prompt.ID != "pmpt_123" || gotReq.Prompt.Version != "4" {
		t.Errorf("prompt reference = %+v", gotReq.Prompt)
	}
	if gotReq.Input != "how much water per day?" {
		t.Errorf("input = %q", gotReq.Input)
	}
}

func TestStoredPromptResponseUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"message": "bad key"}})
	}))
	defer srv.Close()

	svc := NewLLMService("pmpt_123", "", "", 5*time.Second)
	svc.baseURL = srv.URL

	_, err := svc.Respond(context.Background(), "sk-bad", "q")
	if !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
}

func TestStoredPromptResponseGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	svc := NewLLMService("pmpt_123", "", "", 5*time.Second)
	svc.baseURL = srv.URL

	_, err := svc.Respond(context.Background(), "sk-test", "q")
	if err == nil {
		t.Fatal("expected an error for a 500 response")
	}
	if errors.Is(err, ErrInvalidCredential) {
		t.Error("a server error is not a credential problem")
	}
}

func TestStoredPromptResponseBodyError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(responsesResponse{
			Error: &struct {
				Message string `json:"message"`
				Type    string `json:"type"`
			}{Message: "prompt not found", Type: "invalid_request_error"},
		})
	}))
	defer srv.Close()

	svc := NewLLMService("pmpt_missing", "", "", 5*time.Second)
	svc.baseURL = srv.URL

	_, err := svc.Respond(context.Background(), "sk-test", "q")
	if err == nil || !strings.Contains(err.Error(), "prompt not found") {
		t.Fatalf("expected the gateway error message to surface, got %v", err)
	}
}
