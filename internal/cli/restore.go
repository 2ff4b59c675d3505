package cli

import (
	"fmt"

	"github.com/aaronromeo/imapvault/internal/backup"
	"github.com/aaronromeo/imapvault/internal/store"
	"github.com/spf13/cobra"
)

func newRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <account> [folder...]",
		Short: "Upload a local backup back to its account",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd)
			if err != nil {
				return err
			}
			defer rt.close(cmd.Context())
			ctx := cmd.Context()

			client, acct, err := rt.connect(ctx, args[0])
			if err != nil {
				return err
			}
			logger := rt.logger.With("account", acct.Name)
			defer closeClient(logger, client)

			dir := rt.cfg.AccountDir(acct)
			folders := args[1:]
			if len(folders) == 0 {
				if folders, err = store.LiveFolders(dir); err != nil {
					return err
				}
			}
			for _, folder := range folders {
				if err := ctx.Err(); err != nil {
					return err
				}
				st := store.Open(dir, folder, store.WithLogger(logger))
				if err := st.CheckIntegrity(); err != nil {
					return err
				}
				target, n, err := backup.NewRestorer(client, st,
					backup.WithLogger(logger), backup.WithCounters(rt.counters)).Run(ctx)
				if err != nil {
					return fmt.Errorf("restoring %s: %w", folder, err)
				}
				fmt.Fprintf(rt.out, "Restored %d messages from %q to %q\n", n, folder, target)
			}
			return nil
		},
	}
}
