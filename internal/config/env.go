package config

// #region imports
import (
	"fmt"
	"os"
	"strconv"
)

// #endregion

// #region from-env

// FromEnv builds a Config purely from environment variables. Recognized:
//
//	TANDEM_BACKEND                  api | ollama
//	TANDEM_API_KEY                  hosted API key (falls back to OPENAI_API_KEY)
//	TANDEM_API_BASE_URL             hosted API base URL
//	TANDEM_MODEL                    hosted main model name
//	TANDEM_ADVISOR_API_KEY          hosted advisor key
//	TANDEM_ADVISOR_BASE_URL         hosted advisor base URL
//	TANDEM_ADVISOR_MODEL            hosted advisor model name
//	TANDEM_OLLAMA_BASE_URL          Ollama endpoint
//	TANDEM_OLLAMA_MODEL             Ollama main model
//	TANDEM_OLLAMA_ADVISOR_MODEL     Ollama advisor model
//	TANDEM_OLLAMA_TEMPERATURE       Ollama main temperature
//	TANDEM_OLLAMA_NUM_CTX           Ollama context window
//	TANDEM_OLLAMA_NUM_PREDICT       Ollama max output tokens
//	TANDEM_OLLAMA_TIMEOUT           Ollama request timeout in seconds
//	TANDEM_MAX_RETRIES              session retries after the first attempt
//	TANDEM_JOURNAL                  journal SQLite path (empty = disabled)
//
// The result is validated and immutable, like a file-loaded Config.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Backend: os.Getenv("TANDEM_BACKEND"),
		API: APIConfig{
			BaseURL:        os.Getenv("TANDEM_API_BASE_URL"),
			APIKey:         envOr("TANDEM_API_KEY", os.Getenv("OPENAI_API_KEY")),
			Model:          os.Getenv("TANDEM_MODEL"),
			AdvisorBaseURL: os.Getenv("TANDEM_ADVISOR_BASE_URL"),
			AdvisorAPIKey:  os.Getenv("TANDEM_ADVISOR_API_KEY"),
			AdvisorModel:   os.Getenv("TANDEM_ADVISOR_MODEL"),
		},
		Ollama: OllamaConfig{
			BaseURL:      os.Getenv("TANDEM_OLLAMA_BASE_URL"),
			MainModel:    os.Getenv("TANDEM_OLLAMA_MODEL"),
			AdvisorModel: os.Getenv("TANDEM_OLLAMA_ADVISOR_MODEL"),
		},
		Session: SessionConfig{
			Journal: os.Getenv("TANDEM_JOURNAL"),
		},
	}

	var err error
	if cfg.Ollama.Temperature, err = envFloat("TANDEM_OLLAMA_TEMPERATURE", 0); err != nil {
		return nil, err
	}
	if cfg.Ollama.NumCtx, err = envInt("TANDEM_OLLAMA_NUM_CTX", 0); err != nil {
		return nil, err
	}
	if cfg.Ollama.NumPredict, err = envInt("TANDEM_OLLAMA_NUM_PREDICT", 0); err != nil {
		return nil, err
	}
	if cfg.Ollama.TimeoutSeconds, err = envInt("TANDEM_OLLAMA_TIMEOUT", 0); err != nil {
		return nil, err
	}
	if cfg.Session.MaxRetries, err = envInt("TANDEM_MAX_RETRIES", 0); err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrEnv loads from path when the file exists, otherwise from environment.
func LoadOrEnv(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return FromEnv()
}

// #endregion

// #region helpers

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

// #endregion
