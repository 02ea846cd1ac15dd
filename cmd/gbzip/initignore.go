package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Rounak-Paul/gbzip/internal/ignore"
)

const defaultZipignore = `# Add patterns to ignore files/directories in ZIP archives
# Example patterns:
# *.tmp
# build/
# .git/

`

var initForce bool

var initCmd = &cobra.Command{
	Use:           "init [dir]",
	Short:         "Write a starter " + ignore.IgnoreFileName,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(_ *cobra.Command, args []string) error {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		return runInit(os.Stdout, dir, initForce)
	},
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing "+ignore.IgnoreFileName)
}

func runInit(w io.Writer, dir string, force bool) error {
	path := filepath.Join(dir, ignore.IgnoreFileName)
	if _, err := os.Lstat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use -f to overwrite)", path)
	}
	if err := os.WriteFile(path, []byte(defaultZipignore), 0o644); err != nil {
		return &exitError{code: exitFS, err: err}
	}
	fmt.Fprintf(w, "created %s\n", path)
	return nil
}
