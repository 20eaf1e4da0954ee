package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/docsync/internal/backup"
	"github.com/dshills/docsync/internal/buffer"
	"github.com/dshills/docsync/internal/filemanager"
	"github.com/dshills/docsync/internal/session"
	"github.com/dshills/docsync/internal/watcher"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		duration   time.Duration
		withBackup bool
	)
	cmd := &cobra.Command{
		Use:   "watch FILE|PATTERN...",
		Short: "Report external changes to files as an open editor would",
		Long: `Load the files and watch their directories. Every external write, delete
or recreation is reconciled with the open buffer and reported. With
--backup (or backup.enabled) the last file is snapshotted on the backup
interval.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			var mu sync.Mutex
			a.fm.OnBufferChanged(func(b *buffer.Buffer, mask buffer.ChangeMask) {
				mu.Lock()
				defer mu.Unlock()
				fmt.Fprintf(a.out, "%s: %s (%s)\n", b.FullPath(), b.Status(), mask)
			})

			ids, err := loadArgs(cmd, a, args, filemanager.LoadOptions{})
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				return errors.New("nothing to watch")
			}

			m, err := watcher.NewMonitor(a.fm, a.logger,
				watcher.WithDebounceDelay(a.cfg.Watch.Debounce.Std()),
				watcher.WithIgnorePatterns(a.cfg.Watch.Ignore))
			if err != nil {
				return err
			}
			defer m.Close()
			m.Sync()
			a.logger.Info("watching %d files in %d directories", len(ids), len(m.Dirs()))

			if withBackup || a.cfg.Backup.Enabled {
				current := ids[len(ids)-1]
				snap := backup.New(a.fm, a.cfg.BackupDir(),
					backup.WithLogger(a.logger),
					backup.WithInterval(a.cfg.Backup.Interval.Std()),
					backup.WithSessionSaver(session.Saver(a.fm, a.cfg.SessionPath(), func() buffer.ID { return current })))
				snap.Start(func() (buffer.ID, bool) { return current, true })
				defer snap.Stop()
			}

			err = m.Run(ctx)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().DurationVar(&duration, "for", 0, "Stop after this long (default: until interrupted)")
	cmd.Flags().BoolVar(&withBackup, "backup", false, "Snapshot the last file periodically")
	return cmd
}
