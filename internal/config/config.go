package config

// #region imports
import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// #endregion

// #region backends

// Supported backend selectors. Parsed once into a model.Backend at handle
// construction; nothing downstream branches on these strings again.
const (
	BackendAPI    = "api"
	BackendOllama = "ollama"
)

// #endregion

// #region config-types

// Config is the complete tandem configuration. It is built exactly once
// (Load, Parse, or FromEnv), validated, and then treated as immutable:
// callers share it by pointer and never write to it.
type Config struct {
	Backend string        `yaml:"backend"`
	API     APIConfig     `yaml:"api"`
	Ollama  OllamaConfig  `yaml:"ollama"`
	Session SessionConfig `yaml:"session"`
}

// APIConfig configures the hosted OpenAI-style backend. The advisor may use
// a different provider than the main model; empty advisor credentials fall
// back to the main credentials.
type APIConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	AdvisorBaseURL string `yaml:"advisor_base_url"`
	AdvisorAPIKey  string `yaml:"advisor_api_key"`
	AdvisorModel   string `yaml:"advisor_model"`

	Temperature        float64 `yaml:"temperature"`
	AdvisorTemperature float64 `yaml:"advisor_temperature"`
	MaxTokens          int     `yaml:"max_tokens"`
	AdvisorMaxTokens   int     `yaml:"advisor_max_tokens"`
	TimeoutSeconds     int     `yaml:"timeout_seconds"`
	// Transport-level retry budget for a single generation call (429/5xx).
	MaxRetries        int `yaml:"max_retries"`
	AdvisorMaxRetries int `yaml:"advisor_max_retries"`
}

// OllamaConfig configures the local Ollama runtime backend.
type OllamaConfig struct {
	BaseURL      string `yaml:"base_url"`
	MainModel    string `yaml:"main_model"`
	AdvisorModel string `yaml:"advisor_model"`

	Temperature        float64 `yaml:"temperature"`
	AdvisorTemperature float64 `yaml:"advisor_temperature"`
	NumCtx             int     `yaml:"num_ctx"`
	NumPredict         int     `yaml:"num_predict"`
	TimeoutSeconds     int     `yaml:"timeout_seconds"`
}

// SessionConfig configures the solving session driver.
type SessionConfig struct {
	// MaxRetries is the number of retries after the first attempt
	// (4 retries = 5 total attempts).
	MaxRetries int `yaml:"max_retries"`
	// Journal is the SQLite journal path; empty disables journaling.
	Journal string `yaml:"journal"`
}

// #endregion

// #region load

// Load reads and parses a tandem.yaml file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Parse parses raw YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// #endregion

// #region validate

// Validate checks a Config for logical errors.
func Validate(cfg *Config) error {
	switch cfg.Backend {
	case BackendAPI, BackendOllama:
	default:
		return fmt.Errorf("backend must be %q or %q, got %q", BackendAPI, BackendOllama, cfg.Backend)
	}

	if cfg.Backend == BackendAPI && cfg.API.APIKey == "" {
		return fmt.Errorf("api backend requires api.api_key (or TANDEM_API_KEY / OPENAI_API_KEY)")
	}

	for name, temp := range map[string]float64{
		"api.temperature":            cfg.API.Temperature,
		"api.advisor_temperature":    cfg.API.AdvisorTemperature,
		"ollama.temperature":         cfg.Ollama.Temperature,
		"ollama.advisor_temperature": cfg.Ollama.AdvisorTemperature,
	} {
		if temp < 0 || temp > 2 {
			return fmt.Errorf("%s must be in [0, 2], got %g", name, temp)
		}
	}

	if cfg.Session.MaxRetries < 0 {
		return fmt.Errorf("session.max_retries must be >= 0, got %d", cfg.Session.MaxRetries)
	}

	return nil
}

// #endregion

// #region defaults

func applyDefaults(cfg *Config) {
	if cfg.Backend == "" {
		cfg.Backend = BackendAPI
	}

	// Hosted API defaults
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = "https://api.lkeap.cloud.tencent.com/v1"
	}
	if cfg.API.Model == "" {
		cfg.API.Model = "deepseek-v3.1-terminus"
	}
	if cfg.API.AdvisorBaseURL == "" {
		cfg.API.AdvisorBaseURL = "https://api.siliconflow.cn/v1"
	}
	if cfg.API.AdvisorModel == "" {
		cfg.API.AdvisorModel = "MiniMaxAI/MiniMax-M2"
	}
	if cfg.API.Temperature == 0 {
		cfg.API.Temperature = 0.5
	}
	if cfg.API.AdvisorTemperature == 0 {
		cfg.API.AdvisorTemperature = 0.7
	}
	if cfg.API.MaxTokens == 0 {
		cfg.API.MaxTokens = 12800
	}
	if cfg.API.AdvisorMaxTokens == 0 {
		cfg.API.AdvisorMaxTokens = 8192
	}
	if cfg.API.TimeoutSeconds == 0 {
		cfg.API.TimeoutSeconds = 600
	}
	if cfg.API.MaxRetries == 0 {
		cfg.API.MaxRetries = 20
	}
	if cfg.API.AdvisorMaxRetries == 0 {
		cfg.API.AdvisorMaxRetries = 10
	}

	// Ollama defaults
	if cfg.Ollama.BaseURL == "" {
		cfg.Ollama.BaseURL = "http://127.0.0.1:11434"
	}
	if cfg.Ollama.MainModel == "" {
		cfg.Ollama.MainModel = "deepseek-r1:32b"
	}
	if cfg.Ollama.AdvisorModel == "" {
		cfg.Ollama.AdvisorModel = "qwen3:latest"
	}
	if cfg.Ollama.Temperature == 0 {
		cfg.Ollama.Temperature = 0.5
	}
	if cfg.Ollama.AdvisorTemperature == 0 {
		cfg.Ollama.AdvisorTemperature = 0.7
	}
	if cfg.Ollama.NumCtx == 0 {
		cfg.Ollama.NumCtx = 8192
	}
	if cfg.Ollama.NumPredict == 0 {
		cfg.Ollama.NumPredict = 4096
	}
	if cfg.Ollama.TimeoutSeconds == 0 {
		cfg.Ollama.TimeoutSeconds = 300
	}

	// Session defaults: 4 retries = 5 total attempts
	if cfg.Session.MaxRetries == 0 {
		cfg.Session.MaxRetries = 4
	}
}

// #endregion
