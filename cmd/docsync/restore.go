package main

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/docsync/internal/buffer"
	"github.com/dshills/docsync/internal/session"
)

func newRestoreCmd(a *app) *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Reopen the last session and recover unsaved snapshots",
		Long: `Reopen every document of the last session. Documents with a snapshot come
back from the snapshot and are reported dirty; files changed on disk since
the session was recorded are reported modified; missing files come back
as placeholders. With --write the recovered content is saved over each
file and the snapshots are removed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sessionPath := a.cfg.SessionPath()

			s, err := session.Load(sessionPath)
			if err != nil {
				return err
			}
			res, rerr := session.Restore(ctx, a.fm, s)
			if rerr != nil {
				a.logger.Warn("session partly restored: %v", rerr)
			}
			a.fm.CheckFilesystemChanges(ctx, 0)

			if write {
				for _, id := range res.IDs {
					if err := a.writeBack(cmd, id); err != nil {
						return err
					}
				}
				if err := session.Save(sessionPath, session.Capture(a.fm, res.Active)); err != nil {
					return err
				}
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PATH\tSTATUS\tDIRTY\tSNAPSHOT")
			for _, id := range res.IDs {
				_ = a.fm.WithBuffer(id, func(b *buffer.Buffer) error {
					fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", b.FullPath(), b.Status(), b.Dirty(), orDash(filepath.Base(b.BackupPath())))
					return nil
				})
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%d restored, %d from snapshots, %d missing\n", len(res.IDs), res.FromBackup, res.Placeholders)
			return nil
		},
	}
	cmd.Flags().BoolVar(&write, "write", false, "Save recovered documents over their files")
	return cmd
}

// writeBack saves a dirty, file-backed buffer over its file.
func (a *app) writeBack(cmd *cobra.Command, id buffer.ID) error {
	var (
		path     string
		untitled bool
		dirty    bool
	)
	err := a.fm.WithBuffer(id, func(b *buffer.Buffer) error {
		path = b.FullPath()
		untitled = b.IsUntitled()
		dirty = b.Dirty() && b.Status() != buffer.StatusDeleted
		return nil
	})
	switch {
	case err != nil:
		return err
	case !dirty:
		return nil
	case untitled:
		a.logger.Info("%s is untitled; left in its snapshot", path)
		return nil
	}
	if err := a.fm.SaveBuffer(cmd.Context(), id, path, false); err != nil {
		return err
	}
	a.logger.Info("recovered %s", path)
	return nil
}
