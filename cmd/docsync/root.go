package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "docsync",
		Short: "Load, save and recover text documents the way an editor does",
		Long: `docsync drives the document lifecycle of a multi-view text editor from the
command line: encoding-aware loading and saving, file state tracking,
crash-recovery snapshots and session restore.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.setup()
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to configuration file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVarP(&a.assumeYes, "yes", "y", false, "Answer yes to confirmations when not on a terminal")

	root.AddCommand(
		newInspectCmd(a),
		newConvertCmd(a),
		newEditCmd(a),
		newRestoreCmd(a),
		newWatchCmd(a),
		newVersionCmd(a),
	)
	return root
}
