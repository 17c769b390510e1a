package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/glowos/glowd/internal/httpkit"
)

// OpenAIClient talks to any OpenAI-compatible chat completions API
// (Groq, Ollama's /v1 endpoint, OpenAI itself).
type OpenAIClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewOpenAIClient creates a client for an OpenAI-compatible endpoint.
// model is the default used by Ping.
func NewOpenAIClient(baseURL, apiKey, model string, timeout time.Duration) *OpenAIClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OpenAIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: httpkit.NewClient(httpkit.WithTimeout(timeout)),
	}
}

// chatRequest is the wire format for /chat/completions.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// ChatResponse is the wire response from /chat/completions.
type ChatResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Choice is one completion candidate in a ChatResponse.
type Choice struct {
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Text returns the first choice's content, or "".
func (r *ChatResponse) Text() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// Chat sends a chat completion request. When opts.JSONMode is set and
// the provider rejects response_format (HTTP 400), the request is
// retried once without it; callers parse defensively either way.
func (c *OpenAIClient) Chat(ctx context.Context, model string, messages []Message, opts Options) (*ChatResponse, error) {
	if model == "" {
		model = c.model
	}

	req := chatRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}
	if opts.JSONMode {
		req.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	resp, err := c.post(ctx, req)
	if err != nil && opts.JSONMode && isBadRequest(err) {
		// Provider doesn't support response_format; fall back to plain
		// prompting.
		req.ResponseFormat = nil
		resp, err = c.post(ctx, req)
	}
	return resp, err
}

// Ping sends a trivial single-token request with the default model.
func (c *OpenAIClient) Ping(ctx context.Context) error {
	_, err := c.Chat(ctx, c.model, []Message{{Role: "user", Content: "test"}}, Options{MaxTokens: 10})
	return err
}

// statusError preserves the HTTP status for retry decisions.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.status, e.body)
}

func isBadRequest(err error) bool {
	se, ok := err.(*statusError)
	return ok && se.status == http.StatusBadRequest
}

func (c *OpenAIClient) post(ctx context.Context, req chatRequest) (*ChatResponse, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{
			status: resp.StatusCode,
			body:   httpkit.ReadErrorBody(io.NopCloser(resp.Body), 2048),
		}
	}

	var out ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}
