package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"healthmate.app/health-assistant/internal/logger"
)

const (
	defaultChatModel = openai.GPT4oMini
	openAIBaseURL    = "https://api.openai.com/v1"

	// CredentialPrefix is a client-side sanity check only. Real validation
	// is a live call against the gateway.
	CredentialPrefix = "sk-"

	fallbackAnswer = "I received your message but had trouble generating a response. Please try again."
)

// ErrInvalidCredential marks gateway failures caused by the user's key
// rather than the request itself.
var ErrInvalidCredential = errors.New("invalid gateway credential")

// LLMService is the thin pass-through to the external model service. Clients
// are built per call from the caller's own credential; there is no shared
// client handle.
type LLMService struct {
	promptID      string
	promptVersion string
	systemPrompt  string
	timeout       time.Duration
	httpClient    *http.Client
	baseURL       string
}

func NewLLMService(promptID, promptVersion, systemPrompt string, timeout time.Duration) *LLMService {
	return &LLMService{
		promptID:      promptID,
		promptVersion: promptVersion,
		systemPrompt:  systemPrompt,
		timeout:       timeout,
		httpClient:    &http.Client{},
		baseURL:       openAIBaseURL,
	}
}

// ValidateKey checks a credential by listing models with it, mirroring what
// a first real request would do. Accept only on success.
func (s *LLMService) ValidateKey(ctx context.Context, apiKey string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	client := openai.NewClient(apiKey)
	if _, err := client.ListModels(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	return nil
}

// Respond sends the composed prompt and returns the extracted answer text.
// With a stored prompt id configured it uses the responses endpoint, which
// carries the canned system prompt server-side; otherwise it falls back to a
// plain chat completion with the local system prompt.
func (s *LLMService) Respond(ctx context.Context, apiKey, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if s.promptID == "" {
		return s.chatCompletion(ctx, apiKey, prompt)
	}
	return s.storedPromptResponse(ctx, apiKey, prompt)
}

func (s *LLMService) chatCompletion(ctx context.Context, apiKey, prompt string) (string, error) {
	client := openai.NewClient(apiKey)
	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: defaultChatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: s.systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", classifyGatewayError(err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		logger.Log.Warn("Chat completion returned no usable choices")
		return fallbackAnswer, nil
	}
	return resp.Choices[0].Message.Content, nil
}

// Stored-prompt responses endpoint. Not covered by the client library, so
// the one call is made directly.

type promptRef struct {
	ID      string `json:"id"`
	Version string `json:"version,omitempty"`
}

type responsesRequest struct {
	Prompt promptRef `json:"prompt"`
	Input  string    `json:"input"`
}

type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// outputItem is one entry of the heterogeneous output array; Type
// discriminates message items from reasoning and tool metadata.
type outputItem struct {
	Type    string        `json:"type"`
	Content []contentPart `json:"content"`
}

type responsesResponse struct {
	Output []outputItem `json:"output"`
	Error  *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (s *LLMService) storedPromptResponse(ctx context.Context, apiKey, prompt string) (string, error) {
	body, err := json.Marshal(responsesRequest{
		Prompt: promptRef{ID: s.promptID, Version: s.promptVersion},
		Input:  prompt,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read gateway response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", fmt.Errorf("%w: gateway returned %d", ErrInvalidCredential, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		logger.Log.WithField("status", resp.StatusCode).Error("Gateway returned non-OK status")
		return "", fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	var parsed responsesResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode gateway response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("gateway error: %s", parsed.Error.Message)
	}

	return extractAnswer(parsed.Output), nil
}

// extractAnswer picks the first message item carrying text out of the output
// array. Reasoning items and anything unrecognized are skipped; if nothing
// usable is found the canned fallback is returned instead of a raw dump of
// the response.
func extractAnswer(output []outputItem) string {
	for _, item := range output {
		if item.Type != "message" {
			continue
		}
		for _, part := range item.Content {
			if part.Text != "" {
				return part.Text
			}
		}
	}
	logger.Log.Warn("No message item with text content in gateway output")
	return fallbackAnswer
}

func classifyGatewayError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && (apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden) {
		return fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	return fmt.Errorf("gateway request failed: %w", err)
}
