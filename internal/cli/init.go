package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kinship-net/kinship/internal/config"
)

var initForce bool

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Bootstrap the kinship config directory",
	Long: "Creates ~/.kinship with a commented config.yaml, the inbox and\n" +
		"outbox directories for the daemon, and the logs directory for the\n" +
		"audit trail. Existing files are left alone unless --force is set.",
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := config.Dir()
	var created []string

	for _, sub := range []string{"", "inbox", "outbox", "logs"} {
		p := filepath.Join(dir, sub)
		if err := os.MkdirAll(p, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", p, err)
		}
	}

	cfgPath := config.DefaultPath()
	if configPath != "" {
		cfgPath = configPath
	}
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) || initForce {
		if err := os.WriteFile(cfgPath, []byte(config.DefaultConfigYAML()), 0o644); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		created = append(created, cfgPath)
	}

	if len(created) == 0 {
		fmt.Println("already initialized; use --force to overwrite the config")
		return nil
	}
	for _, p := range created {
		fmt.Printf("created %s\n", p)
	}
	fmt.Println("\nNext steps:")
	fmt.Println("  kinship role list               # see the seeded roles")
	fmt.Println("  kinship eval access memory.read --actor <id> --space <space>")
	fmt.Println("  kinship serve                   # run the decision daemon")
	return nil
}
