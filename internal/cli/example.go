package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rpgo/lifetime-planner/internal/config"
)

// newExampleCmd creates the example command
func newExampleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "example [PATH]",
		Short: "Write an example scenario file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "scenario.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			force, _ := cmd.Flags().GetBool("force")
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			parser := config.NewScenarioParser()
			if err := parser.SaveToFile(parser.CreateExampleScenario(), path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote example scenario to %s\n", path)
			return nil
		},
	}
	cmd.Flags().Bool("force", false, "Overwrite an existing file")
	return cmd
}
