// Command dbsync exposes the Sync API of spec §6 as a small cobra CLI:
// init, pull, push, and status, each a thin wrapper over the
// orchestrator package.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	configPath string
	repoPath   string
	logFormat  string
	logLevel   string

	rootCtx    context.Context
	rootCancel context.CancelFunc
)

func main() {
	rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer rootCancel()

	if err := newRootCmd().ExecuteContext(rootCtx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dbsync",
		Short:         "Database-as-code synchronization engine for SQL Server schemas",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "dbsync.yaml", "path to dbsync.yaml")
	root.PersistentFlags().StringVar(&repoPath, "repo", ".", "path to the repository working tree")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")

	root.AddCommand(newInitCmd())
	root.AddCommand(newPullCmd())
	root.AddCommand(newPushCmd())
	root.AddCommand(newStatusCmd())

	return root
}
