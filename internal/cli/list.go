package cli

import (
	"fmt"

	"github.com/aaronromeo/imapvault/internal/store"
	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [account...]",
		Short: "List backed up folders, or the folders on the server with --remote",
		RunE: func(cmd *cobra.Command, args []string) error {
			fromServer, _ := cmd.Flags().GetBool("remote")

			rt, err := setup(cmd)
			if err != nil {
				return err
			}
			defer rt.close(cmd.Context())

			accounts, err := rt.accounts(args)
			if err != nil {
				return err
			}
			for _, acct := range accounts {
				if fromServer {
					client, _, err := rt.connect(cmd.Context(), acct.Name)
					if err != nil {
						return err
					}
					folders, err := client.ListFolders(cmd.Context())
					closeClient(rt.logger, client)
					if err != nil {
						return err
					}
					for _, folder := range folders {
						fmt.Fprintf(rt.out, "%s\t%s\n", acct.Name, folder)
					}
					continue
				}

				dir := rt.cfg.AccountDir(acct)
				folders, err := store.LocalFolders(dir)
				if err != nil {
					return err
				}
				for _, folder := range folders {
					st := store.Open(dir, folder, store.WithLogger(rt.logger))
					validity, _ := st.UIDValidity()
					fmt.Fprintf(rt.out, "%s\t%s\t%d messages\tuid validity %d\n", acct.Name, folder, st.Len(), validity)
				}
			}
			return nil
		},
	}
	cmd.Flags().Bool("remote", false, "List the folders on the server instead")
	return cmd
}
