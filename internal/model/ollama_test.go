package model

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// #region helpers

const testTagsJSON = `{"models":[
	{"name":"deepseek-r1:32b","size":19851337640,"details":{"quantization_level":"Q4_K_M"}},
	{"name":"qwen3:latest","size":5200000000,"details":{"quantization_level":"Q4_0"}}
]}`

// runtimeServer serves /api/tags with the fixed model list and /api/chat
// with the given handler.
func runtimeServer(t *testing.T, chat http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(testTagsJSON)); err != nil {
			t.Errorf("write tags: %v", err)
		}
	})
	if chat != nil {
		mux.HandleFunc("/api/chat", chat)
	}
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func testOllamaParams(url string) ollamaParams {
	return ollamaParams{
		BaseURL:     url,
		Model:       "deepseek-r1:32b",
		Temperature: 0.5,
		NumCtx:      8192,
		NumPredict:  4096,
		Timeout:     5 * time.Second,
	}
}

// #endregion helpers

// #region constructor-tests

func TestNewOllamaHandle_VerifiesRuntime(t *testing.T) {
	server := runtimeServer(t, nil)

	h, err := newOllamaHandle(testOllamaParams(server.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.ModelName() != "deepseek-r1:32b" {
		t.Errorf("expected model 'deepseek-r1:32b', got %q", h.ModelName())
	}
}

func TestNewOllamaHandle_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	server.Close()

	_, err := newOllamaHandle(testOllamaParams(server.URL))
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("expected connection error, got: %v", err)
	}
}

func TestNewOllamaHandle_ModelNotInstalled(t *testing.T) {
	server := runtimeServer(t, nil)

	p := testOllamaParams(server.URL)
	p.Model = "not-pulled:7b"
	h, err := newOllamaHandle(p)
	if err != nil {
		t.Fatalf("missing model should only warn, got: %v", err)
	}
	if h.ModelName() != "not-pulled:7b" {
		t.Errorf("expected model 'not-pulled:7b', got %q", h.ModelName())
	}
}

func TestNewOllamaHandle_RequiresModel(t *testing.T) {
	_, err := newOllamaHandle(ollamaParams{BaseURL: "http://127.0.0.1:11434"})
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected configuration error, got: %v", err)
	}
}

// #endregion constructor-tests

// #region generate-tests

func TestOllamaGenerate_Success(t *testing.T) {
	server := runtimeServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req ollamaChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "deepseek-r1:32b" {
			t.Errorf("expected model 'deepseek-r1:32b', got %q", req.Model)
		}
		if req.Stream {
			t.Error("expected stream false")
		}
		if req.Options.NumCtx != 8192 {
			t.Errorf("expected num_ctx 8192, got %d", req.Options.NumCtx)
		}
		if req.Options.NumPredict != 4096 {
			t.Errorf("expected num_predict 4096, got %d", req.Options.NumPredict)
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(`{"model":"deepseek-r1:32b","message":{"role":"assistant","content":"local answer"},"done":true}`)); err != nil {
			t.Errorf("write response: %v", err)
		}
	})

	h, err := newOllamaHandle(testOllamaParams(server.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp, err := h.Generate(context.Background(), []Message{{Role: RoleUser, Content: "solve it"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Message.Content != "local answer" {
		t.Errorf("expected content 'local answer', got %q", resp.Message.Content)
	}
	if resp.Model != "deepseek-r1:32b" {
		t.Errorf("expected model 'deepseek-r1:32b', got %q", resp.Model)
	}
}

func TestOllamaGenerate_ObjectArguments(t *testing.T) {
	server := runtimeServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		body := `{"model":"deepseek-r1:32b","message":{"role":"assistant","content":"",` +
			`"tool_calls":[{"function":{"name":"read_file","arguments":{"path":"main.go"}}}]},"done":true}`
		if _, err := w.Write([]byte(body)); err != nil {
			t.Errorf("write response: %v", err)
		}
	})

	h, err := newOllamaHandle(testOllamaParams(server.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp, err := h.Generate(context.Background(), []Message{{Role: RoleUser, Content: "go"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Message.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(resp.Message.ToolCalls))
	}
	tc := resp.Message.ToolCalls[0]
	if tc.Name != "read_file" {
		t.Errorf("expected tool 'read_file', got %q", tc.Name)
	}
	if tc.Arguments != `{"path":"main.go"}` {
		t.Errorf("expected object arguments normalized to string, got %q", tc.Arguments)
	}
	if !resp.Message.ActionProducing() {
		t.Error("message with tool calls should be action-producing")
	}
}

func TestOllamaGenerate_RuntimeError(t *testing.T) {
	server := runtimeServer(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model crashed", http.StatusInternalServerError)
	})

	h, err := newOllamaHandle(testOllamaParams(server.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = h.Generate(context.Background(), []Message{{Role: RoleUser, Content: "go"}})
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("expected connection error, got: %v", err)
	}
}

// #endregion generate-tests

// #region listing-tests

func TestListLocalModels(t *testing.T) {
	server := runtimeServer(t, nil)

	models, err := ListLocalModels(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(models))
	}
	if models[0].Name != "deepseek-r1:32b" {
		t.Errorf("expected 'deepseek-r1:32b', got %q", models[0].Name)
	}
	if models[0].Quantization != "Q4_K_M" {
		t.Errorf("expected quantization 'Q4_K_M', got %q", models[0].Quantization)
	}
	if got := models[0].HumanSize(); got != "19.85 GB" {
		t.Errorf("expected size '19.85 GB', got %q", got)
	}
	if got := models[1].HumanSize(); got != "5.20 GB" {
		t.Errorf("expected size '5.20 GB', got %q", got)
	}
}

func TestListLocalModels_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	server.Close()

	_, err := ListLocalModels(context.Background(), server.URL)
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("expected connection error, got: %v", err)
	}
}

// #endregion listing-tests
