package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rpgo/lifetime-planner/internal/taxdata"
)

// newTaxDataCmd creates the taxdata command
func newTaxDataCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "taxdata",
		Short: "Manage tax bracket data",
	}

	dbPath := func(cmd *cobra.Command) (string, error) {
		path, _ := cmd.Flags().GetString("db")
		if path == "" {
			path = a.cfg.Tax.DBPath
		}
		if path == "" {
			return "", fmt.Errorf("no database: pass --db or set tax.db_path")
		}
		return path, nil
	}

	importCmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Validate a YAML tax table and store it, replacing that year",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := dbPath(cmd)
			if err != nil {
				return err
			}
			td, err := taxdata.LoadFile(args[0])
			if err != nil {
				return err
			}
			store, err := taxdata.Open(path)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Save(cmd.Context(), td); err != nil {
				return err
			}
			a.logger.Info("tax data imported", zap.Int("year", td.Year), zap.String("db", path))
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d tax data (%s)\n", td.Year, strings.Join(taxdata.States(td), ", "))
			return nil
		},
	}
	importCmd.Flags().String("db", "", "SQLite database path (default tax.db_path)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the years held in the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := dbPath(cmd)
			if err != nil {
				return err
			}
			store, err := taxdata.Open(path)
			if err != nil {
				return err
			}
			defer store.Close()
			years, err := store.Years(cmd.Context())
			if err != nil {
				return err
			}
			for _, y := range years {
				fmt.Fprintln(cmd.OutOrStdout(), y)
			}
			return nil
		},
	}
	listCmd.Flags().String("db", "", "SQLite database path (default tax.db_path)")

	cmd.AddCommand(importCmd, listCmd, &cobra.Command{
		Use:   "states",
		Short: "Show the tax year and states the engine would use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			td, err := loadTaxData(cmd.Context(), a.cfg.Tax, a.logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d: %s\n", td.Year, strings.Join(taxdata.States(td), ", "))
			return nil
		},
	})
	return cmd
}
