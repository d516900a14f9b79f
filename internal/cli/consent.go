package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kinship-net/kinship/internal/model"
)

var (
	consentFrom    string
	consentTo      string
	consentPurpose string
	consentBy      string
	consentTTL     time.Duration
)

func init() {
	rootCmd.AddCommand(consentCmd)

	for _, c := range []*cobra.Command{consentGrantCmd, consentRevokeCmd, consentCheckCmd} {
		c.Flags().StringVar(&consentFrom, "from", "", "Source space (required)")
		c.Flags().StringVar(&consentTo, "to", "", "Target space (required)")
		c.Flags().StringVar(&consentPurpose, "purpose", "", "Consent purpose, e.g. extended_family_consent (required)")
		c.MarkFlagRequired("from")
		c.MarkFlagRequired("to")
		c.MarkFlagRequired("purpose")
	}
	consentGrantCmd.Flags().StringVar(&consentBy, "by", "", "Granting principal (required)")
	consentGrantCmd.Flags().DurationVar(&consentTTL, "ttl", 0, "Time until the consent expires (0 = never)")
	consentGrantCmd.MarkFlagRequired("by")

	consentCmd.AddCommand(consentGrantCmd)
	consentCmd.AddCommand(consentRevokeCmd)
	consentCmd.AddCommand(consentCheckCmd)
	consentCmd.AddCommand(consentListCmd)
}

var consentCmd = &cobra.Command{
	Use:   "consent",
	Short: "Manage the cross-space consent ledger",
}

var consentGrantCmd = &cobra.Command{
	Use:   "grant",
	Short: "Grant (or refresh) consent between two spaces",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		rec := model.ConsentRecord{
			FromSpace: consentFrom,
			ToSpace:   consentTo,
			Purpose:   consentPurpose,
			GrantedBy: consentBy,
		}
		if consentTTL > 0 {
			expires := time.Now().Add(consentTTL).UTC()
			rec.ExpiresAt = &expires
		}
		if err := svc.Consent.Grant(rec); err != nil {
			return err
		}
		fmt.Printf("consent granted: %s -> %s (%s)\n", consentFrom, consentTo, consentPurpose)
		return nil
	},
}

var consentRevokeCmd = &cobra.Command{
	Use:   "revoke",
	Short: "Revoke consent between two spaces",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		if err := svc.Consent.Revoke(consentFrom, consentTo, consentPurpose); err != nil {
			return err
		}
		fmt.Printf("consent revoked: %s -> %s (%s)\n", consentFrom, consentTo, consentPurpose)
		return nil
	},
}

var consentCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check whether unexpired consent exists",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		ok, err := svc.Consent.HasConsent(consentFrom, consentTo, consentPurpose)
		if err != nil {
			return err
		}
		if ok {
			fmt.Println("consent present")
			return nil
		}
		fmt.Println("no consent")
		os.Exit(2)
		return nil
	},
}

var consentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all consent records",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		recs, err := svc.Consent.List()
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	},
}
