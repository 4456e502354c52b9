package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newStatusCmd is a read-only convenience wrapper around a dry-run
// syncDbToRepo.
func newStatusCmd() *cobra.Command {
	var dbName string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether a database's schema is in sync with the repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			desc, err := a.orch.SyncDbToRepo(cmd.Context(), dbName, true)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), desc)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbName, "db", "", "database to check")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}
