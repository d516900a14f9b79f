package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kinship-net/kinship/internal/model"
	"github.com/kinship-net/kinship/internal/rbac"
)

var (
	assignPrincipal string
	assignRole      string
	assignSpace     string
	assignStrategy  string
	assignJustify   string
	assignTTL       time.Duration
	assignBy        string
	assignReason    string
	assignStatus    string
)

func init() {
	rootCmd.AddCommand(assignCmd)

	assignRequestCmd.Flags().StringVar(&assignPrincipal, "principal", "", "Principal ID (required)")
	assignRequestCmd.Flags().StringVar(&assignRole, "role", "", "Role name (required)")
	assignRequestCmd.Flags().StringVar(&assignSpace, "space", "", "Space ID (required)")
	assignRequestCmd.Flags().StringVar(&assignStrategy, "strategy", string(model.StrategyApprovalRequired),
		"Strategy: immediate | approval_required | conditional | scheduled")
	assignRequestCmd.Flags().StringVar(&assignJustify, "justify", "", "Justification")
	assignRequestCmd.Flags().DurationVar(&assignTTL, "ttl", 0, "Time until the assignment expires (0 = never)")
	assignRequestCmd.MarkFlagRequired("principal")
	assignRequestCmd.MarkFlagRequired("role")
	assignRequestCmd.MarkFlagRequired("space")

	assignApproveCmd.Flags().StringVar(&assignBy, "by", "", "Approver ID (required)")
	assignApproveCmd.MarkFlagRequired("by")

	assignRejectCmd.Flags().StringVar(&assignBy, "by", "", "Approver ID (required)")
	assignRejectCmd.Flags().StringVar(&assignReason, "reason", "", "Rejection reason")
	assignRejectCmd.MarkFlagRequired("by")

	assignListCmd.Flags().StringVar(&assignStatus, "status", "", "Filter by status (pending|approved|rejected|expired|active)")

	assignCmd.AddCommand(assignRequestCmd)
	assignCmd.AddCommand(assignApproveCmd)
	assignCmd.AddCommand(assignRejectCmd)
	assignCmd.AddCommand(assignListCmd)
	assignCmd.AddCommand(assignCleanupCmd)
}

var assignCmd = &cobra.Command{
	Use:   "assign",
	Short: "Manage dynamic role assignments",
}

var assignRequestCmd = &cobra.Command{
	Use:   "request",
	Short: "Request a dynamic role assignment",
	Long: "Strategy immediate activates the assignment and creates its binding\n" +
		"in one atomic update; every other strategy leaves it pending until\n" +
		"approved or rejected.",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		req := rbac.AssignmentRequest{
			PrincipalID:   assignPrincipal,
			Role:          assignRole,
			SpaceID:       assignSpace,
			Strategy:      model.AssignmentStrategy(assignStrategy),
			Justification: assignJustify,
		}
		if assignTTL > 0 {
			expires := time.Now().Add(assignTTL).UTC()
			req.ExpiresAt = &expires
		}
		asn, err := svc.RBAC.RequestAssignment(req)
		if err != nil {
			return err
		}
		fmt.Printf("assignment %s: %s\n", asn.ID, asn.Status)
		return nil
	},
}

var assignApproveCmd = &cobra.Command{
	Use:   "approve <assignment-id>",
	Short: "Approve a pending assignment and create its binding",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		asn, err := svc.RBAC.ApproveAssignment(args[0], assignBy)
		if err != nil {
			return err
		}
		fmt.Printf("assignment %s approved by %s\n", asn.ID, assignBy)
		return nil
	},
}

var assignRejectCmd = &cobra.Command{
	Use:   "reject <assignment-id>",
	Short: "Reject a pending assignment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		asn, err := svc.RBAC.RejectAssignment(args[0], assignBy, assignReason)
		if err != nil {
			return err
		}
		fmt.Printf("assignment %s rejected\n", asn.ID)
		return nil
	},
}

var assignListCmd = &cobra.Command{
	Use:   "list",
	Short: "List assignments",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		asns, err := svc.RBAC.Assignments(model.AssignmentStatus(assignStatus))
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(asns)
	},
}

var assignCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Expire overdue assignments and remove their bindings",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		n, err := svc.RBAC.CleanupExpiredAssignments()
		if err != nil {
			return err
		}
		fmt.Printf("%d assignment(s) expired\n", n)
		return nil
	},
}
