package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/aaronromeo/imapvault/internal/backup"
	"github.com/aaronromeo/imapvault/internal/config"
	"github.com/aaronromeo/imapvault/internal/mirror"
	"github.com/aaronromeo/imapvault/internal/store"
	"github.com/spf13/cobra"
)

func newMirrorCmd() *cobra.Command {
	var every time.Duration
	cmd := &cobra.Command{
		Use:   "mirror [source-account...]",
		Short: "Make the mirror destinations match the local backups",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd)
			if err != nil {
				return err
			}
			defer rt.close(cmd.Context())

			wanted := map[string]bool{}
			for _, name := range args {
				wanted[name] = true
			}
			var jobs []backup.Job
			for _, m := range rt.cfg.Mirrors {
				if len(wanted) > 0 && !wanted[m.Source] {
					continue
				}
				m := m
				jobs = append(jobs, job{name: m.Source + "->" + m.Destination, run: func(ctx context.Context) error {
					return rt.runMirror(ctx, m)
				}})
			}
			if len(jobs) == 0 {
				return fmt.Errorf("no mirrors configured for %v", args)
			}
			return rt.runJobs(cmd.Context(), "mirror", every, jobs)
		},
	}
	cmd.Flags().DurationVar(&every, "every", 0, "repeat at this interval until interrupted")
	return cmd
}

func (rt *runtime) runMirror(ctx context.Context, m config.Mirror) error {
	source, _ := rt.cfg.Account(m.Source)
	client, dest, err := rt.connect(ctx, m.Destination)
	if err != nil {
		return err
	}
	logger := rt.logger.With("account", source.Name, "destination", dest.Name)
	defer closeClient(logger, client)

	dir := rt.cfg.AccountDir(source)
	folders := m.Folders
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
		if _, ok := st.UIDValidity(); !ok {
			logger.Warn("no local backup, skipping", "folder", folder)
			continue
		}
		if err := st.CheckIntegrity(); err != nil {
			return err
		}
		res, err := mirror.New(st, client.Folder(folder), dest.ID(),
			mirror.WithLogger(logger), mirror.WithCounters(rt.counters)).Run(ctx)
		if err != nil {
			return fmt.Errorf("mirroring %s: %w", folder, err)
		}
		fmt.Fprintf(rt.out, "%s -> %s %q: appended %d, deleted %d, flags updated %d, failed %d\n",
			source.Name, dest.Name, folder, res.Appended, res.Deleted, res.FlagsUpdated, res.Failed)
	}
	return nil
}
