package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/aaronromeo/imapvault/internal/backup"
	"github.com/aaronromeo/imapvault/internal/config"
	"github.com/spf13/cobra"
)

func newBackupCmd() *cobra.Command {
	var every time.Duration
	cmd := &cobra.Command{
		Use:   "backup [account...]",
		Short: "Download new messages from the configured accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd)
			if err != nil {
				return err
			}
			defer rt.close(cmd.Context())
			fmt.Fprintln(rt.out, config.Summary(rt.cfg))

			accounts, err := rt.accounts(args)
			if err != nil {
				return err
			}
			jobs := make([]backup.Job, 0, len(accounts))
			for _, acct := range accounts {
				acct := acct
				jobs = append(jobs, job{name: acct.Name, run: func(ctx context.Context) error {
					return rt.backupAccount(ctx, acct)
				}})
			}
			return rt.runJobs(cmd.Context(), "backup", every, jobs)
		},
	}
	cmd.Flags().DurationVar(&every, "every", 0, "repeat at this interval until interrupted")
	return cmd
}

func (rt *runtime) backupAccount(ctx context.Context, acct config.Account) error {
	client, _, err := rt.connect(ctx, acct.Name)
	if err != nil {
		return err
	}
	logger := rt.logger.With("account", acct.Name)
	defer closeClient(logger, client)

	return backup.NewAccountBackup(acct.Name, client, rt.cfg.AccountDir(acct), acct.Folders,
		backup.WithLogger(logger),
		backup.WithCounters(rt.counters),
		backup.WithBatchSize(acct.BatchSize),
		backup.WithResetSeen(acct.ResetSeen),
		backup.WithRefreshFlags(acct.RefreshFlags),
		backup.WithMirrorMode(acct.MirrorMode),
		backup.WithReconnect(client.Reconnect),
	).Run(ctx)
}
