package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kinship-net/kinship/internal/audit"
	"github.com/kinship-net/kinship/internal/config"
	"github.com/kinship-net/kinship/internal/history"
)

var (
	auditLimit int
	auditActor string
	auditSince time.Duration
)

func init() {
	rootCmd.AddCommand(auditCmd)

	auditRecentCmd.Flags().IntVar(&auditLimit, "limit", 20, "Maximum number of decisions to show")
	auditRecentCmd.Flags().StringVar(&auditActor, "actor", "", "Only decisions by this principal")
	auditDeniesCmd.Flags().DurationVar(&auditSince, "since", 24*time.Hour, "Window to count denies over")

	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditRecentCmd)
	auditCmd.AddCommand(auditDeniesCmd)
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect and verify the decision audit trail",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify [path]",
	Short: "Verify the hash chain of the audit log",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) == 1 {
			path = args[0]
		} else {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			path = cfg.AuditLogPath
		}

		res := audit.Verify(path)
		if res.Valid {
			fmt.Printf("chain intact: %d entries\n", res.Lines)
			return nil
		}
		fmt.Printf("chain BROKEN at line %d: %s\n", res.ErrorLine, res.Error)
		os.Exit(1)
		return nil
	},
}

var auditRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Show recent decisions from the history database",
	RunE: func(cmd *cobra.Command, args []string) error {
		hist, err := openHistory()
		if err != nil {
			return err
		}
		defer hist.Close()

		var events []audit.Event
		if auditActor != "" {
			events, err = hist.ByActor(auditActor, auditLimit)
		} else {
			events, err = hist.Recent(auditLimit)
		}
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(events)
	},
}

var auditDeniesCmd = &cobra.Command{
	Use:   "denies",
	Short: "Count DENY decisions within a time window",
	RunE: func(cmd *cobra.Command, args []string) error {
		hist, err := openHistory()
		if err != nil {
			return err
		}
		defer hist.Close()

		n, err := hist.DenyCount(time.Now().Add(-auditSince))
		if err != nil {
			return err
		}
		fmt.Printf("%d denies in the last %s\n", n, auditSince)
		return nil
	},
}

func openHistory() (*history.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return history.Open(cfg.HistoryPath)
}
