package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	var dbName string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the repository from a database's current schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			desc, err := a.orch.InitRepo(cmd.Context(), dbName)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), desc)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbName, "db", "", "database to initialize the repository from")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}
