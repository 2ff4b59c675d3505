package cli

import (
	"errors"
	"fmt"
	"path"

	"github.com/aaronromeo/imapvault/internal/archive"
	"github.com/aaronromeo/imapvault/internal/config"
	"github.com/aaronromeo/imapvault/internal/store"
	"github.com/spf13/cobra"
)

// newArchiver builds the S3 archiver for one account. Tests replace it.
var newArchiver = func(settings archive.Settings, rt *runtime) (*archive.Archiver, error) {
	return archive.New(settings, archive.WithLogger(rt.logger))
}

func newArchiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive [account...]",
		Short: "Upload a snapshot of the local backups to S3",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd)
			if err != nil {
				return err
			}
			defer rt.close(cmd.Context())
			if rt.cfg.Archive == nil {
				return errors.New("archive is not configured")
			}
			creds, err := config.S3CredentialsFromEnv()
			if err != nil {
				return err
			}

			accounts, err := rt.accounts(args)
			if err != nil {
				return err
			}
			for _, acct := range accounts {
				dir := rt.cfg.AccountDir(acct)
				folders, err := store.LocalFolders(dir)
				if err != nil {
					return err
				}
				if len(folders) == 0 {
					rt.logger.Info("nothing to archive", "account", acct.Name)
					continue
				}
				archiver, err := newArchiver(archive.Settings{
					Endpoint:   rt.cfg.Archive.Endpoint,
					Region:     rt.cfg.Archive.Region,
					Bucket:     rt.cfg.Archive.Bucket,
					Key:        creds.Key,
					Secret:     creds.Secret,
					Prefix:     path.Join(rt.cfg.Archive.Prefix, acct.Name),
					Recipients: rt.cfg.Archive.Recipients,
				}, rt)
				if err != nil {
					return err
				}
				manifest, err := archiver.Archive(cmd.Context(), dir, folders)
				if err != nil {
					return fmt.Errorf("archiving %s: %w", acct.Name, err)
				}
				fmt.Fprintf(rt.out, "Archived %d folders of %s as snapshot %s\n", len(manifest.Folders), acct.Name, manifest.Snapshot)
			}
			return nil
		},
	}
}
