package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/ledgersmith/ledgersmith/pkg/engine"
	"github.com/ledgersmith/ledgersmith/pkg/workflow"
	"github.com/spf13/cobra"
)

func newPolicyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect and manage approval policies",
		Long: `Inspect and manage the approval/automation policies that gate record
operations.

Each (verb, collection) pair carries one of three levels:
  manual     every operation requires an explicit approval
  validated  operations run after a cancellable countdown
  automated  operations run immediately

Delete policies can never be raised to automated, and any failure at the
automated level demotes the policy back to manual.`,
	}

	cmd.AddCommand(newPolicyListCommand())
	cmd.AddCommand(newPolicySetCommand())
	cmd.AddCommand(newPolicyResetCommand())

	return cmd
}

func newPolicyListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all approval policies",
		Example: `  ledgersmith policy list
  ledgersmith policy list --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			policies := a.policies.ListPolicies()
			if jsonOutput {
				encoded, _ := json.MarshalIndent(policies, "", "  ")
				fmt.Println(string(encoded))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "VERB\tCOLLECTION\tLEVEL\tOK\tFAILED\tLAST EXECUTED")
			for _, p := range policies {
				last := "-"
				if !p.LastExecutedAt.IsZero() {
					last = p.LastExecutedAt.Format("2006-01-02 15:04:05")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
					p.Key.Verb, p.Key.Collection, p.Level, p.SuccessCount, p.FailureCount, last)
			}
			return w.Flush()
		},
	}
}

func newPolicySetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <verb> <collection> <level>",
		Short: "Set the approval level for one policy",
		Long: `Set the approval level for one (verb, collection) policy.

Raising a delete policy to automated is silently clamped to validated:
destructive operations never run unattended.`,
		Example: `  # Let vendor creation run after a countdown
  ledgersmith policy set create core_company validated

  # Fully automate contract updates
  ledgersmith policy set update ast_contract automated`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			verb := engine.Verb(args[0])
			if err := verb.Validate(); err != nil {
				return err
			}

			key := workflow.PolicyKey{Verb: verb, Collection: args[1]}
			policy, err := a.policies.SetApprovalLevel(ctx, key, workflow.ApprovalLevel(args[2]))
			if err != nil {
				return err
			}

			fmt.Printf("Policy %s is now %s\n", policy.ID, policy.Level)
			return nil
		},
	}
}

func newPolicyResetCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "reset",
		Short:   "Reset every policy back to manual",
		Example: `  ledgersmith policy reset`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			if err := a.policies.ResetAllToManual(ctx); err != nil {
				return err
			}

			fmt.Println("All policies reset to manual")
			return nil
		},
	}
}
