package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kinship-net/kinship/internal/model"
)

var (
	roleName     string
	roleCaps     []string
	roleInherits []string
	roleDesc     string
)

func init() {
	rootCmd.AddCommand(roleCmd)

	roleDefineCmd.Flags().StringVar(&roleName, "name", "", "Role name (required)")
	roleDefineCmd.Flags().StringSliceVar(&roleCaps, "cap", nil, "Capability granted by the role (repeatable)")
	roleDefineCmd.Flags().StringSliceVar(&roleInherits, "inherits", nil, "Role to inherit from (repeatable)")
	roleDefineCmd.Flags().StringVar(&roleDesc, "desc", "", "Role description")
	roleDefineCmd.MarkFlagRequired("name")

	roleCmd.AddCommand(roleDefineCmd)
	roleCmd.AddCommand(roleRemoveCmd)
	roleCmd.AddCommand(roleListCmd)
	roleCmd.AddCommand(roleHierarchyCmd)
}

var roleCmd = &cobra.Command{
	Use:   "role",
	Short: "Manage role definitions",
}

var roleDefineCmd = &cobra.Command{
	Use:   "define",
	Short: "Define or replace a role",
	Long: "Stores a role with its capability set and inheritance edges.\n" +
		"Fails without touching the store if the edges would close a cycle.",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		if err := svc.RBAC.DefineRole(model.Role{
			Name:        roleName,
			Caps:        roleCaps,
			Inherits:    roleInherits,
			Description: roleDesc,
		}); err != nil {
			return err
		}
		fmt.Printf("role %q defined\n", roleName)
		return nil
	},
}

var roleRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a role and every binding that references it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		if err := svc.RBAC.RemoveRole(args[0]); err != nil {
			return err
		}
		fmt.Printf("role %q removed\n", args[0])
		return nil
	},
}

var roleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List defined roles",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		roles, err := svc.RBAC.Roles()
		if err != nil {
			return err
		}
		if len(roles) == 0 {
			fmt.Println("no roles defined")
			return nil
		}
		for _, r := range roles {
			fmt.Printf("%-20s caps=%v", r.Name, r.Caps)
			if len(r.Inherits) > 0 {
				fmt.Printf(" inherits=%v", r.Inherits)
			}
			fmt.Println()
		}
		return nil
	},
}

var roleHierarchyCmd = &cobra.Command{
	Use:   "hierarchy <name>",
	Short: "Show a role's inheritance in both directions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		h, err := svc.RBAC.RoleHierarchy(args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(h)
	},
}
