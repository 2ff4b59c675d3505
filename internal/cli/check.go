package cli

import (
	"fmt"

	"github.com/aaronromeo/imapvault/internal/store"
	"github.com/spf13/cobra"
)

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [account...]",
		Short: "Verify the integrity of local backups",
		RunE: func(cmd *cobra.Command, args []string) error {
			deleteCorrupt, _ := cmd.Flags().GetBool("delete-corrupt")

			rt, err := setup(cmd)
			if err != nil {
				return err
			}
			defer rt.close(cmd.Context())

			accounts, err := rt.accounts(args)
			if err != nil {
				return err
			}
			corrupt := 0
			for _, acct := range accounts {
				dir := rt.cfg.AccountDir(acct)
				folders, err := store.LocalFolders(dir)
				if err != nil {
					return err
				}
				for _, folder := range folders {
					st := store.Open(dir, folder, store.WithLogger(rt.logger))
					err := st.CheckIntegrity()
					if err == nil {
						fmt.Fprintf(rt.out, "ok       %s/%s (%d messages)\n", acct.Name, folder, st.Len())
						continue
					}
					if !deleteCorrupt {
						corrupt++
						fmt.Fprintf(rt.out, "CORRUPT  %s/%s: %v\n", acct.Name, folder, err)
						continue
					}
					if err := st.Delete(); err != nil {
						return err
					}
					fmt.Fprintf(rt.out, "deleted  %s/%s: %v\n", acct.Name, folder, err)
				}
			}
			if corrupt > 0 {
				return fmt.Errorf("%d corrupt folders; rerun with --delete-corrupt and back up again to download them", corrupt)
			}
			return nil
		},
	}
	cmd.Flags().Bool("delete-corrupt", false, "Delete corrupt folders so the next backup downloads them again")
	return cmd
}
