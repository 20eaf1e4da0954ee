package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/docsync/internal/backup"
	"github.com/dshills/docsync/internal/buffer"
	"github.com/dshills/docsync/internal/filemanager"
	"github.com/dshills/docsync/internal/session"
	"github.com/dshills/docsync/internal/vfs"
)

func newEditCmd(a *app) *cobra.Command {
	var (
		text string
		save bool
	)
	cmd := &cobra.Command{
		Use:   "edit [FILE]",
		Short: "Append text to a document and snapshot it without saving",
		Long: `Reopen the last session, append text to FILE (or to a new untitled
document) and take a crash-recovery snapshot, as an editor's backup timer
would. The file itself is left untouched unless --save is given. Use
"docsync restore" to get the edit back.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sessionPath := a.cfg.SessionPath()

			s, err := session.Load(sessionPath)
			if err != nil {
				return err
			}
			if _, err := session.Restore(ctx, a.fm, s); err != nil {
				a.logger.Warn("session partly restored: %v", err)
			}

			var id buffer.ID
			if len(args) == 1 {
				id, err = a.openOrFind(cmd, args[0])
			} else {
				id, err = a.fm.NewEmptyDocument(ctx)
			}
			if err != nil {
				return err
			}

			if err := a.store.Append(a.bufferDoc(id), []byte(text)); err != nil {
				return err
			}

			if save {
				b, _ := a.fm.Buffer(id)
				if b.IsUntitled() {
					return fmt.Errorf("cannot save untitled document %s in place", b.FullPath())
				}
				if err := a.fm.SaveBuffer(ctx, id, b.FullPath(), false); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "saved %s\n", b.FullPath())
				return session.Save(sessionPath, session.Capture(a.fm, id))
			}

			snap := backup.New(a.fm, a.cfg.BackupDir(),
				backup.WithLogger(a.logger),
				backup.WithSessionSaver(session.Saver(a.fm, sessionPath, func() buffer.ID { return id })))
			outcome, err := snap.Snapshot(ctx, id)
			if err != nil {
				return err
			}
			b, _ := a.fm.Buffer(id)
			fmt.Fprintf(a.out, "%s: snapshot %s -> %s\n", b.FullPath(), outcome, b.BackupPath())
			return nil
		},
	}
	cmd.Flags().StringVar(&text, "append", "", "Text to append")
	cmd.Flags().BoolVar(&save, "save", false, "Save the document instead of snapshotting it")
	return cmd
}

// openOrFind returns the buffer already holding path, loading it if
// needed.
func (a *app) openOrFind(cmd *cobra.Command, path string) (buffer.ID, error) {
	if ids := a.fm.BuffersByPath(vfs.Canonical(path)); len(ids) > 0 {
		return ids[0], nil
	}
	return a.fm.LoadFile(cmd.Context(), path, filemanager.LoadOptions{})
}
