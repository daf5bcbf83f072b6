package model

// #region imports
import (
	"fmt"
	"log"
	"time"

	"github.com/solvelab/tandem/internal/config"
)

// #endregion

// #region backend

// Backend selects a provider family. The selector string from configuration
// is parsed exactly once, at handle construction; no later code branches on
// the backend again.
type Backend int

const (
	// BackendHostedAPI is an OpenAI-style hosted chat-completions service.
	BackendHostedAPI Backend = iota
	// BackendLocalRuntime is a locally hosted Ollama server.
	BackendLocalRuntime
)

// ParseBackend maps a configuration selector to a Backend.
func ParseBackend(s string) (Backend, error) {
	switch s {
	case config.BackendAPI:
		return BackendHostedAPI, nil
	case config.BackendOllama:
		return BackendLocalRuntime, nil
	default:
		return 0, fmt.Errorf("%w: unknown backend %q", ErrConfiguration, s)
	}
}

// String returns the configuration selector for the backend.
func (b Backend) String() string {
	switch b {
	case BackendLocalRuntime:
		return config.BackendOllama
	default:
		return config.BackendAPI
	}
}

// #endregion

// #region main-handle

// NewMainHandle creates the main solver model for the configured backend.
func NewMainHandle(cfg *config.Config) (Handle, error) {
	backend, err := ParseBackend(cfg.Backend)
	if err != nil {
		return nil, err
	}

	switch backend {
	case BackendLocalRuntime:
		h, err := newOllamaHandle(ollamaParams{
			BaseURL:     cfg.Ollama.BaseURL,
			Model:       cfg.Ollama.MainModel,
			Temperature: cfg.Ollama.Temperature,
			NumCtx:      cfg.Ollama.NumCtx,
			NumPredict:  cfg.Ollama.NumPredict,
			Timeout:     time.Duration(cfg.Ollama.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		log.Printf("[MODEL] created ollama main model %s (num_ctx=%d num_predict=%d)",
			h.ModelName(), cfg.Ollama.NumCtx, cfg.Ollama.NumPredict)
		return h, nil

	default:
		h, err := newHostedHandle(hostedParams{
			BaseURL:     cfg.API.BaseURL,
			APIKey:      cfg.API.APIKey,
			Model:       cfg.API.Model,
			Temperature: cfg.API.Temperature,
			MaxTokens:   cfg.API.MaxTokens,
			MaxRetries:  cfg.API.MaxRetries,
			Timeout:     time.Duration(cfg.API.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		log.Printf("[MODEL] created hosted main model %s (max_tokens=%d max_retries=%d)",
			h.ModelName(), cfg.API.MaxTokens, cfg.API.MaxRetries)
		return h, nil
	}
}

// #endregion

// #region advisor-handle

// NewAdvisorHandle creates the advisor model for the configured backend.
// Hosted advisor credentials fall back to the main credentials when unset.
func NewAdvisorHandle(cfg *config.Config) (Handle, error) {
	backend, err := ParseBackend(cfg.Backend)
	if err != nil {
		return nil, err
	}

	switch backend {
	case BackendLocalRuntime:
		h, err := newOllamaHandle(ollamaParams{
			BaseURL:     cfg.Ollama.BaseURL,
			Model:       cfg.Ollama.AdvisorModel,
			Temperature: cfg.Ollama.AdvisorTemperature,
			NumCtx:      cfg.Ollama.NumCtx,
			NumPredict:  cfg.Ollama.NumPredict,
			Timeout:     time.Duration(cfg.Ollama.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		log.Printf("[MODEL] created ollama advisor model %s (temperature=%g)",
			h.ModelName(), cfg.Ollama.AdvisorTemperature)
		return h, nil

	default:
		key := cfg.API.AdvisorAPIKey
		if key == "" {
			key = cfg.API.APIKey
		}
		baseURL := cfg.API.AdvisorBaseURL
		if baseURL == "" {
			baseURL = cfg.API.BaseURL
		}
		h, err := newHostedHandle(hostedParams{
			BaseURL:     baseURL,
			APIKey:      key,
			Model:       cfg.API.AdvisorModel,
			Temperature: cfg.API.AdvisorTemperature,
			MaxTokens:   cfg.API.AdvisorMaxTokens,
			MaxRetries:  cfg.API.AdvisorMaxRetries,
			Timeout:     time.Duration(cfg.API.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		log.Printf("[MODEL] created hosted advisor model %s (temperature=%g)",
			h.ModelName(), cfg.API.AdvisorTemperature)
		return h, nil
	}
}

// #endregion
