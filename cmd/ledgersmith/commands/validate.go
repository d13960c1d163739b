package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ledgersmith/ledgersmith/pkg/engine"
	"github.com/spf13/cobra"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <batch-file>",
		Short: "Validate a batch file without executing it",
		Long: `Validate a batch file of entity operations without sending anything to
the record store.

This command checks:
  - Batch file syntax and operation shape
  - Verb and target presence
  - Required fields per entity kind
  - Record addressing for update and delete operations`,
		Example: `  # Validate a batch before running it
  ledgersmith validate ./batches/onboarding.json

  # Machine-readable validation report
  ledgersmith validate --json ./batches/onboarding.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open batch file: %w", err)
			}
			defer file.Close()

			operations, err := engine.ParseBatch(file)
			if err != nil {
				return err
			}

			result := engine.DryRun(operations)
			printDryRun(result)

			if !result.Valid {
				return fmt.Errorf("batch failed validation")
			}
			return nil
		},
	}

	return cmd
}

// printDryRun renders a dry-run validation report.
func printDryRun(result engine.DryRunResult) {
	if jsonOutput {
		encoded, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(encoded))
		return
	}

	if result.Valid {
		fmt.Printf("Batch is valid: %d operations\n", len(result.Results))
		return
	}

	for _, r := range result.Results {
		if r.Valid {
			continue
		}
		fmt.Printf("  %s:\n", r.OperationID)
		for _, msg := range r.Errors {
			fmt.Printf("    - %s\n", msg)
		}
	}
}
