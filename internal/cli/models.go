package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/solvelab/tandem/internal/config"
	"github.com/solvelab/tandem/internal/model"
)

var modelsFlags struct {
	configPath string
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Show the models available to the configured backend",
	Long: `Show the models available to the configured backend. The local backend
lists the Ollama model catalog; the hosted backend probes both endpoints
with the configured credentials.`,
	RunE: runModels,
}

func init() {
	modelsCmd.Flags().StringVar(&modelsFlags.configPath, "config", "", "path to a tandem config file (default: TANDEM_* environment)")
}

func runModels(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadOrEnv(modelsFlags.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	switch cfg.Backend {
	case config.BackendOllama:
		return listLocalModels(cmd, cfg)
	case config.BackendAPI:
		return probeHostedEndpoints(cmd, cfg)
	default:
		return fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

func listLocalModels(cmd *cobra.Command, cfg *config.Config) error {
	models, err := model.ListLocalModels(cmd.Context(), cfg.Ollama.BaseURL)
	if err != nil {
		return fmt.Errorf("list local models: %w", err)
	}

	fmt.Printf("%-40s %10s  %-8s %s\n", "NAME", "SIZE", "QUANT", "ROLE")
	for _, m := range models {
		fmt.Printf("%-40s %10s  %-8s %s\n", m.Name, m.HumanSize(), m.Quantization, localRole(cfg, m.Name))
	}
	return nil
}

// localRole marks catalog entries that the config pins to a tandem role.
func localRole(cfg *config.Config, name string) string {
	switch {
	case name == cfg.Ollama.MainModel && name == cfg.Ollama.AdvisorModel:
		return "main+advisor"
	case name == cfg.Ollama.MainModel:
		return "main"
	case name == cfg.Ollama.AdvisorModel:
		return "advisor"
	}
	return ""
}

func probeHostedEndpoints(cmd *cobra.Command, cfg *config.Config) error {
	advisorURL, advisorKey := cfg.API.AdvisorBaseURL, cfg.API.AdvisorAPIKey
	if advisorURL == "" {
		advisorURL = cfg.API.BaseURL
	}
	if advisorKey == "" {
		advisorKey = cfg.API.APIKey
	}

	probes := []struct {
		role    string
		model   string
		baseURL string
		apiKey  string
	}{
		{"main", cfg.API.Model, cfg.API.BaseURL, cfg.API.APIKey},
		{"advisor", cfg.API.AdvisorModel, advisorURL, advisorKey},
	}

	var failed bool
	for _, p := range probes {
		if err := model.ProbeHosted(cmd.Context(), p.baseURL, p.apiKey, 10*time.Second); err != nil {
			failed = true
			fmt.Printf("%-8s %s via %s: %v\n", p.role, p.model, p.baseURL, err)
			continue
		}
		fmt.Printf("%-8s %s via %s: ok\n", p.role, p.model, p.baseURL)
	}
	if failed {
		return errors.New("endpoint probe failed")
	}
	return nil
}
