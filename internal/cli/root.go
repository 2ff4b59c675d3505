package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// NewRootCmd builds the imapvault command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "imapvault",
		Short:         "imapvault backs up IMAP accounts and restores or mirrors them",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "Path to YAML config file (or set "+configEnvVar+")")
	root.PersistentFlags().String("log-level", "", "Override the configured log level")

	root.AddCommand(
		newBackupCmd(),
		newRestoreCmd(),
		newMigrateCmd(),
		newMirrorCmd(),
		newCheckCmd(),
		newListCmd(),
		newArchiveCmd(),
		newServeCmd(),
	)
	return root
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
