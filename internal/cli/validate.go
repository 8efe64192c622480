package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quarrydata/quarry/internal/schema"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Config string
}

// NewValidateCommand creates the validate command: load, validate and plan
// a config without generating anything.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a schema config and report the table order",
		Long: `Load the config, run every load-time check (expressions, references,
distributions, cycles) and print the table generation order.

Example:
  quarry validate --config schema.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := loadPlan(opts.Config, schema.Overrides{})
			if err != nil {
				printError(cmd.ErrOrStderr(), "invalid: %v", err)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Table order: %s\n", strings.Join(p.Order, " -> "))
			printSuccess(cmd.OutOrStdout(), "Config is valid: %d table(s).", len(p.Order))
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to schema config (required)")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}
