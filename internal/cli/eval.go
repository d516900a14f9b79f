package cli

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kinship-net/kinship/internal/model"
)

var (
	evalActor   string
	evalFrom    string
	evalTo      string
	evalBand    string
	evalTags    []string
	evalSpace   string
	evalContext []string
)

func init() {
	rootCmd.AddCommand(evalCmd)

	evalShareCmd.Flags().StringVar(&evalActor, "actor", "", "Acting principal (required)")
	evalShareCmd.Flags().StringVar(&evalFrom, "from", "", "Source space (required)")
	evalShareCmd.Flags().StringVar(&evalTo, "to", "", "Target space (defaults to the source space)")
	evalShareCmd.Flags().StringVar(&evalBand, "band", "GREEN", "Sensitivity band of the content")
	evalShareCmd.Flags().StringSliceVar(&evalTags, "tag", nil, "Content tag (repeatable)")
	evalShareCmd.Flags().StringSliceVar(&evalContext, "ctx", nil, "Extra context attribute key=value (repeatable)")
	evalShareCmd.MarkFlagRequired("actor")
	evalShareCmd.MarkFlagRequired("from")

	evalAccessCmd.Flags().StringVar(&evalActor, "actor", "", "Acting principal (required)")
	evalAccessCmd.Flags().StringVar(&evalSpace, "space", "", "Space the operation targets (required)")
	evalAccessCmd.Flags().StringSliceVar(&evalContext, "ctx", nil, "Extra context attribute key=value (repeatable)")
	evalAccessCmd.MarkFlagRequired("actor")
	evalAccessCmd.MarkFlagRequired("space")

	evalCmd.AddCommand(evalShareCmd)
	evalCmd.AddCommand(evalAccessCmd)
}

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Evaluate a policy question and print the decision",
}

var evalShareCmd = &cobra.Command{
	Use:   "share <op>",
	Short: "Evaluate a sharing operation (REFER, PROJECT, DETACH, UNDO)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		req := model.ShareRequest{
			Op:      model.ShareOp(args[0]),
			ActorID: evalActor,
			From:    evalFrom,
			To:      evalTo,
			Band:    model.Band(evalBand),
			Tags:    evalTags,
		}
		dec, err := svc.EvaluateShare(req, parseKVs(evalContext))
		if err != nil {
			return err
		}
		return printDecision(dec)
	},
}

var evalAccessCmd = &cobra.Command{
	Use:   "access <operation>",
	Short: "Evaluate a plain capability check (e.g. memory.read)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		req := model.AccessRequest{
			ActorID:   evalActor,
			Operation: args[0],
			Space:     evalSpace,
			Context:   parseKVs(evalContext),
		}
		dec, err := svc.EvaluateAccess(req)
		if err != nil {
			return err
		}
		return printDecision(dec)
	},
}

func printDecision(dec model.PolicyDecision) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(dec); err != nil {
		return err
	}
	if dec.Decision == model.Deny {
		os.Exit(1)
	}
	return nil
}

// parseKVs turns repeated key=value flags into a context map. Values
// that parse as numbers or booleans are typed so ABAC comparisons work.
func parseKVs(pairs []string) map[string]any {
	if len(pairs) == 0 {
		return nil
	}
	ctx := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := cutKV(p)
		if !ok {
			continue
		}
		ctx[k] = typedValue(v)
	}
	return ctx
}

func cutKV(s string) (string, string, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '=' {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}

func typedValue(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
