package cli

import (
	"github.com/aaronromeo/imapvault/internal/status"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a read-only status page for the local backups",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := setup(cmd)
			if err != nil {
				return err
			}
			defer rt.close(cmd.Context())

			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				addr = rt.cfg.Status.Addr
			}
			srv := status.New(rt.cfg.BackupDir, status.WithLogger(rt.logger))

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Listen(addr)
			}()
			select {
			case err := <-errCh:
				return err
			case <-cmd.Context().Done():
				rt.logger.Info("shutting down status server")
				return srv.Shutdown()
			}
		},
	}
	cmd.Flags().String("addr", "", "Listen address, overriding status.addr")
	return cmd
}
