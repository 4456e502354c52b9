package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPullCmd() *cobra.Command {
	var dbName string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Sync a database's current schema into the repository's per-database overlay",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			desc, err := a.orch.SyncDbToRepo(cmd.Context(), dbName, dryRun)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), desc)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbName, "db", "", "database to read from")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "describe changes without committing")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}
