package main

import (
	"github.com/spf13/cobra"
)

var updateFlags archiveFlags

var updateCmd = &cobra.Command{
	Use:     "update <archive.zip> [paths...]",
	Aliases: []string{"u"},
	Short:   "Refresh an archive in place, rewriting only what changed",
	Long: `Refresh an existing archive against the current tree.

Unchanged entries are copied raw into the rewrite without recompressing.
Added and modified files run through the normal pipeline, and entries whose
files are gone (or newly ignored) are dropped. When nothing drifted the
archive is left untouched. A missing archive degrades to a plain create.

A file counts as modified when its size differs or its mtime is newer than
the archived one by more than the zip timestamp granularity (2s).`,
	Args:          cobra.MinimumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		sources := args[1:]
		if len(sources) == 0 {
			sources = []string{"."}
		}
		return runArchive(cmd, &updateFlags, args[0], sources, true)
	},
}

func init() {
	registerArchiveFlags(updateCmd, &updateFlags)
}
