package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "v0.2.0"

var rootCmd = &cobra.Command{
	Use:   "tandem",
	Short: "tandem runs a task through a two-model retry loop",
	Long: `tandem pairs a main model with an advisor model. The primary works the
task, the advisor critiques every failed attempt, roles swap between
retries, and each new attempt starts with a summary of what already failed.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = version
	rootCmd.AddCommand(solveCmd)
	rootCmd.AddCommand(modelsCmd)
}
