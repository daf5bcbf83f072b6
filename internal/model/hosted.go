package model

// #region imports
import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// #endregion

// #region params

type hostedParams struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	MaxRetries  int
	Timeout     time.Duration
}

// #endregion

// #region handle

// hostedHandle talks to an OpenAI-style chat-completions endpoint.
type hostedHandle struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	maxRetries  int
	retryDelay  time.Duration
	client      *http.Client
}

func newHostedHandle(p hostedParams) (*hostedHandle, error) {
	if p.APIKey == "" {
		return nil, fmt.Errorf("%w: hosted backend requires an API key", ErrConfiguration)
	}
	if p.Model == "" {
		return nil, fmt.Errorf("%w: hosted backend requires a model name", ErrConfiguration)
	}
	return &hostedHandle{
		baseURL:     strings.TrimRight(p.BaseURL, "/"),
		apiKey:      p.APIKey,
		model:       p.Model,
		temperature: p.Temperature,
		maxTokens:   p.MaxTokens,
		maxRetries:  p.MaxRetries,
		retryDelay:  time.Second,
		client:      &http.Client{Timeout: p.Timeout},
	}, nil
}

// ModelName returns the configured model identifier.
func (h *hostedHandle) ModelName() string { return h.model }

// #endregion

// #region wire-types

type chatMessage struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	ToolCalls []chatToolCall `json:"tool_calls,omitempty"`
}

type chatToolCall struct {
	ID       string       `json:"id,omitempty"`
	Type     string       `json:"type,omitempty"`
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatChoice struct {
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatResponse struct {
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
}

// #endregion

// #region generate

// Generate posts the conversation to {base}/chat/completions. Transient
// failures (429, 5xx) are retried with doubling backoff up to the configured
// transport retry budget.
func (h *hostedHandle) Generate(ctx context.Context, msgs []Message) (Response, error) {
	payload, err := json.Marshal(chatRequest{
		Model:       h.model,
		Messages:    toChatMessages(msgs),
		Temperature: h.temperature,
		MaxTokens:   h.maxTokens,
		Stream:      false,
	})
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}

	var resp *http.Response
	delay := h.retryDelay
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			h.baseURL+"/chat/completions", bytes.NewReader(payload))
		if err != nil {
			return Response{}, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+h.apiKey)

		resp, err = h.client.Do(req)
		if err != nil {
			return Response{}, fmt.Errorf("%w: %s: %v", ErrConnection, h.baseURL, err)
		}

		if !retryableStatus(resp.StatusCode) || attempt >= h.maxRetries {
			break
		}
		resp.Body.Close()

		// Back off on 429/5xx, doubling the delay each time up to 30s.
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case <-time.After(delay):
		}
		if delay < 30*time.Second {
			delay *= 2
		}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Response{}, fmt.Errorf("%w: hosted api rejected credentials (http %d)", ErrConfiguration, resp.StatusCode)
	case retryableStatus(resp.StatusCode):
		return Response{}, fmt.Errorf("%w: hosted api http %d after %d retries", ErrConnection, resp.StatusCode, h.maxRetries)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Response{}, fmt.Errorf("hosted api http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return Response{}, fmt.Errorf("hosted api returned no choices")
	}

	modelName := out.Model
	if modelName == "" {
		modelName = h.model
	}
	return Response{
		Message: fromChatMessage(out.Choices[0].Message),
		Model:   modelName,
	}, nil
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// #endregion

// #region conversion

func toChatMessages(msgs []Message) []chatMessage {
	wire := make([]chatMessage, len(msgs))
	for i, m := range msgs {
		wire[i] = chatMessage{Role: m.Role, Content: m.Content}
		for _, tc := range m.ToolCalls {
			wire[i].ToolCalls = append(wire[i].ToolCalls, chatToolCall{
				Type:     "function",
				Function: chatFunction{Name: tc.Name, Arguments: tc.Arguments},
			})
		}
	}
	return wire
}

func fromChatMessage(m chatMessage) Message {
	msg := Message{Role: m.Role, Content: m.Content}
	for _, tc := range m.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, ToolCall{
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return msg
}

// #endregion

// #region probe

// ProbeHosted checks that a hosted endpoint is reachable and accepts the api
// key, using the standard model listing route.
func ProbeHosted(ctx context.Context, baseURL, apiKey string, timeout time.Duration) error {
	url := strings.TrimRight(baseURL, "/") + "/models"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: endpoint rejected the api key (http %d)", ErrConfiguration, resp.StatusCode)
	default:
		return fmt.Errorf("%w: endpoint returned http %d", ErrConnection, resp.StatusCode)
	}
}

// #endregion
