package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dbascode/dbsync/internal/orchestrator"
)

func newPushCmd() *cobra.Command {
	var ref string
	var dbs string
	var dryRun bool
	var force bool
	var jsonOutput bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Apply a repository commit to one or more target databases",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			names := splitNames(dbs)
			results, err := a.orch.SyncRepoToDb(ctx, orchestrator.SyncRepoToDbRequest{
				Commitish: ref,
				DBNames:   names,
				DryRun:    dryRun,
				Force:     force,
			})
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}

			failed := 0
			for _, r := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s - %s\n", r.DBName, r.Status, r.Message)
				if r.Status == orchestrator.StatusFailed {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d target(s) failed", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&ref, "ref", "HEAD", "commit, tag, or branch to apply")
	cmd.Flags().StringVar(&dbs, "db", "", "comma-separated list of target databases")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "describe changes without applying")
	cmd.Flags().BoolVar(&force, "force", false, "bypass the out-of-sync guard")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "emit results as JSON")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "per-run timeout, e.g. 5m (0 disables)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func splitNames(csv string) []string {
	var out []string
	for _, s := range strings.Split(csv, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
