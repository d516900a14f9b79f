package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/kinship-net/kinship/internal/config"
	"github.com/kinship-net/kinship/internal/service"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "kinship",
	Short: "Local-first policy decision point for the family network",
	Long: "Decides whether an actor may perform a sharing or memory operation\n" +
		"against the space hierarchy, and which obligations (redaction, band\n" +
		"minimums, audit) accompany an allowed decision.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config YAML (default ~/.kinship/config.yaml)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openService wires the decision point from the configured paths.
// Callers must Close it.
func openService() (*service.Service, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return service.Open(cfg, service.Options{})
}
