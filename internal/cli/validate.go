package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rpgo/lifetime-planner/internal/calculation"
	"github.com/rpgo/lifetime-planner/internal/config"
)

// newValidateCmd creates the validate command
func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate SCENARIO",
		Short: "Check a scenario file and the tax data it needs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read file %s: %w", args[0], err)
			}
			sc, err := config.NewScenarioParser().Decode(data)
			if err != nil {
				return err
			}
			engine, _, err := a.buildEngine(cmd.Context())
			if err != nil {
				return err
			}
			if err := engine.Validate(cmd.Context(), sc); err != nil {
				var verr *calculation.ValidationError
				if errors.As(err, &verr) {
					out := cmd.ErrOrStderr()
					for _, fe := range verr.Errors {
						fmt.Fprintf(out, "  - %s\n", fe.Error())
					}
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scenario %q is valid\n", sc.Name)
			return nil
		},
	}
}
