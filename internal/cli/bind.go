package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kinship-net/kinship/internal/model"
)

func init() {
	rootCmd.AddCommand(bindCmd)
	rootCmd.AddCommand(unbindCmd)
	rootCmd.AddCommand(capsCmd)

	capsCmd.Flags().Bool("space-view", false, "Project capabilities through the sharing policy's known set")
}

var bindCmd = &cobra.Command{
	Use:   "bind <principal> <role> <space>",
	Short: "Bind a role to a principal within a space",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		if err := svc.RBAC.Bind(model.Binding{
			PrincipalID: args[0],
			Role:        args[1],
			SpaceID:     args[2],
		}); err != nil {
			return err
		}
		fmt.Printf("bound %s as %s in %s\n", args[0], args[1], args[2])
		return nil
	},
}

var unbindCmd = &cobra.Command{
	Use:   "unbind <principal> <role> <space>",
	Short: "Remove a role binding",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		if err := svc.RBAC.Unbind(args[0], args[1], args[2]); err != nil {
			return err
		}
		fmt.Printf("unbound %s as %s in %s\n", args[0], args[1], args[2])
		return nil
	},
}

var capsCmd = &cobra.Command{
	Use:   "caps <principal> <space>",
	Short: "Resolve effective capabilities for a principal in a space",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		spaceView, _ := cmd.Flags().GetBool("space-view")
		if spaceView {
			sc, err := svc.Sharing.SpaceCapabilities(args[1], args[0])
			if err != nil {
				return err
			}
			fmt.Println(strings.Join(sc.Caps, "\n"))
			if sc.InterfamilyAdmin {
				fmt.Println("interfamily.admin")
			}
			return nil
		}

		caps, err := svc.RBAC.ListCaps(args[0], args[1])
		if err != nil {
			return err
		}
		if len(caps) == 0 {
			fmt.Println("no capabilities")
			return nil
		}
		fmt.Println(strings.Join(caps, "\n"))
		return nil
	},
}
