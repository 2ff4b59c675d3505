package cli

import (
	"fmt"

	"github.com/aaronromeo/imapvault/internal/backup"
	"github.com/aaronromeo/imapvault/internal/store"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate --from <account> --to <account> [folder...]",
		Short: "Copy the local backup of one account into another account",
		RunE: func(cmd *cobra.Command, args []string) error {
			from, _ := cmd.Flags().GetString("from")
			to, _ := cmd.Flags().GetString("to")
			reset, _ := cmd.Flags().GetBool("reset")

			rt, err := setup(cmd)
			if err != nil {
				return err
			}
			defer rt.close(cmd.Context())
			ctx := cmd.Context()

			source, ok := rt.cfg.Account(from)
			if !ok {
				return fmt.Errorf("unknown account %q", from)
			}
			client, dest, err := rt.connect(ctx, to)
			if err != nil {
				return err
			}
			logger := rt.logger.With("account", source.Name, "destination", dest.Name)
			defer closeClient(logger, client)

			dir := rt.cfg.AccountDir(source)
			folders := args
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
				n, err := backup.NewMigrator(st, client.Folder(folder),
					backup.WithLogger(logger), backup.WithCounters(rt.counters), backup.WithReset(reset)).Run(ctx)
				if err != nil {
					return fmt.Errorf("migrating %s: %w", folder, err)
				}
				fmt.Fprintf(rt.out, "Migrated %d of %d messages in %q\n", n, st.Len(), folder)
			}
			return nil
		},
	}
	cmd.Flags().String("from", "", "Account whose local backup is copied")
	cmd.Flags().String("to", "", "Account that receives the messages")
	cmd.Flags().Bool("reset", false, "Clear destination folders that already hold messages")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
