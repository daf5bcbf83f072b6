package model

// #region imports
import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// #endregion

// #region params

type ollamaParams struct {
	BaseURL     string
	Model       string
	Temperature float64
	NumCtx      int
	NumPredict  int
	Timeout     time.Duration
}

// #endregion

// #region handle

// ollamaHandle talks to a local Ollama runtime over its native chat API.
type ollamaHandle struct {
	baseURL     string
	model       string
	temperature float64
	numCtx      int
	numPredict  int
	client      *http.Client
}

func newOllamaHandle(p ollamaParams) (*ollamaHandle, error) {
	if p.Model == "" {
		return nil, fmt.Errorf("%w: local runtime requires a model name", ErrConfiguration)
	}
	baseURL := strings.TrimRight(p.BaseURL, "/")
	if err := verifyRuntime(baseURL, p.Model); err != nil {
		return nil, err
	}
	return &ollamaHandle{
		baseURL:     baseURL,
		model:       p.Model,
		temperature: p.Temperature,
		numCtx:      p.NumCtx,
		numPredict:  p.NumPredict,
		client:      &http.Client{Timeout: p.Timeout},
	}, nil
}

// verifyRuntime confirms the runtime answers /api/tags before any attempt
// depends on it. A missing model is only a warning since Ollama can pull
// models after startup.
func verifyRuntime(baseURL, model string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(baseURL + "/api/tags")
	if err != nil {
		return fmt.Errorf("%w: ollama unreachable at %s: %v", ErrConnection, baseURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: ollama at %s answered http %d", ErrConnection, baseURL, resp.StatusCode)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return fmt.Errorf("%w: decode ollama tags: %v", ErrConnection, err)
	}
	for _, m := range tags.Models {
		if m.Name == model {
			return nil
		}
	}
	log.Printf("[MODEL] warning: model %q not found in local runtime, pull it before running", model)
	return nil
}

// ModelName returns the configured model identifier.
func (h *ollamaHandle) ModelName() string { return h.model }

// #endregion

// #region wire-types

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
}

type ollamaFunction struct {
	Name string `json:"name"`
	// Ollama ships arguments as a JSON object, not a string.
	Arguments json.RawMessage `json:"arguments"`
}

type ollamaToolCall struct {
	Function ollamaFunction `json:"function"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumCtx      int     `json:"num_ctx,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

type tagsModel struct {
	Name    string `json:"name"`
	Size    int64  `json:"size"`
	Details struct {
		QuantizationLevel string `json:"quantization_level"`
	} `json:"details"`
}

type tagsResponse struct {
	Models []tagsModel `json:"models"`
}

// #endregion

// #region generate

// Generate posts the conversation to {base}/api/chat.
func (h *ollamaHandle) Generate(ctx context.Context, msgs []Message) (Response, error) {
	wire := make([]ollamaMessage, len(msgs))
	for i, m := range msgs {
		wire[i] = ollamaMessage{Role: m.Role, Content: m.Content}
	}
	payload, err := json.Marshal(ollamaChatRequest{
		Model:    h.model,
		Messages: wire,
		Stream:   false,
		Options: ollamaOptions{
			Temperature: h.temperature,
			NumCtx:      h.numCtx,
			NumPredict:  h.numPredict,
		},
	})
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		h.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %s: %v", ErrConnection, h.baseURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Response{}, fmt.Errorf("%w: ollama http %d: %s", ErrConnection, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}

	msg := Message{Role: out.Message.Role, Content: out.Message.Content}
	for _, tc := range out.Message.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, ToolCall{
			Name:      tc.Function.Name,
			Arguments: string(tc.Function.Arguments),
		})
	}
	modelName := out.Model
	if modelName == "" {
		modelName = h.model
	}
	return Response{Message: msg, Model: modelName}, nil
}

// #endregion

// #region listing

// LocalModel describes one model installed in the local runtime.
type LocalModel struct {
	Name         string
	SizeBytes    int64
	Quantization string
}

// HumanSize renders the model size in gigabytes.
func (m LocalModel) HumanSize() string {
	return fmt.Sprintf("%.2f GB", float64(m.SizeBytes)/1e9)
}

// ListLocalModels asks the runtime at baseURL for its installed models.
func ListLocalModels(ctx context.Context, baseURL string) ([]LocalModel, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: ollama unreachable at %s: %v", ErrConnection, baseURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: ollama at %s answered http %d", ErrConnection, baseURL, resp.StatusCode)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	models := make([]LocalModel, 0, len(tags.Models))
	for _, m := range tags.Models {
		models = append(models, LocalModel{
			Name:         m.Name,
			SizeBytes:    m.Size,
			Quantization: m.Details.QuantizationLevel,
		})
	}
	return models, nil
}

// #endregion
