package engine

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/Rounak-Paul/gbzip/internal/event"
	"github.com/Rounak-Paul/gbzip/internal/ignore"
	"github.com/Rounak-Paul/gbzip/internal/stats"
)

// Collector walks source trees, applying ignore rules and appending the
// survivors to the queue. Walk order is lexicographic per directory, so the
// queue (and the final archive layout) is deterministic.
type Collector struct {
	Rules     *ignore.Ruleset
	Queue     *Queue
	Stats     *stats.Collector
	Events    chan<- event.Event
	Recursive bool
	JunkPaths bool

	// NoRuleFiles suppresses rule-file discovery, leaving only the
	// command-line overrides in effect.
	NoRuleFiles bool

	// SkipPath is the absolute path of the archive being written, so a
	// target inside a source tree never archives itself.
	SkipPath string
}

// AddSource appends one command-line path: directories are walked, plain
// files are archived under their basename without consulting the rules.
func (c *Collector) AddSource(ctx context.Context, src string) error {
	fi, err := os.Lstat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	if fi.IsDir() {
		return c.walkDir(ctx, src, "")
	}
	if !fi.Mode().IsRegular() {
		slog.Debug("skipping special file", "path", src)
		return nil
	}
	c.appendFile(src, path.Base(filepath.ToSlash(src)), fi)
	return nil
}

// walkDir processes one directory level. The directory's own rule file
// loads before any child is judged, so its rules govern the whole subtree
// from the level where it was found.
func (c *Collector) walkDir(ctx context.Context, dir, rel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.NoRuleFiles {
		if err := c.Rules.LoadNested(dir); err != nil {
			slog.Warn("ignore file unreadable", "dir", dir, "error", err)
		}
	}

	children, err := os.ReadDir(dir)
	if err != nil {
		c.Stats.AddFailed()
		slog.Warn("cannot read directory", "path", dir, "error", err)
		return nil
	}

	for _, de := range children {
		if err := ctx.Err(); err != nil {
			return err
		}

		name := de.Name()
		childPath := filepath.Join(dir, name)
		childRel := name
		if rel != "" {
			childRel = rel + "/" + name
		}
		c.Stats.AddScanned()

		if c.SkipPath != "" && samePath(childPath, c.SkipPath) {
			continue
		}
		if c.Rules.Ignored(childRel) {
			c.Stats.AddIgnored()
			emitEvent(c.Events, event.Event{Type: event.FileIgnored, Path: childRel})
			continue
		}

		switch {
		case de.IsDir():
			if !c.JunkPaths {
				info, err := de.Info()
				if err != nil {
					c.Stats.AddFailed()
					slog.Warn("cannot stat directory", "path", childPath, "error", err)
					continue
				}
				c.Queue.Append(&Entry{
					SourcePath:  childPath,
					ArchivePath: childRel + "/",
					ModTime:     info.ModTime(),
					IsDir:       true,
				})
			}
			if c.Recursive {
				if err := c.walkDir(ctx, childPath, childRel); err != nil {
					return err
				}
			}
		case de.Type().IsRegular():
			info, err := de.Info()
			if err != nil {
				c.Stats.AddFailed()
				slog.Warn("cannot stat file", "path", childPath, "error", err)
				continue
			}
			archivePath := childRel
			if c.JunkPaths {
				archivePath = name
			}
			c.appendFile(childPath, archivePath, info)
		default:
			// Symlinks, sockets, devices and pipes are not archived.
			slog.Debug("skipping special file", "path", childPath)
		}
	}
	return nil
}

func (c *Collector) appendFile(src, archivePath string, fi fs.FileInfo) {
	c.Queue.Append(&Entry{
		SourcePath:  src,
		ArchivePath: archivePath,
		Size:        fi.Size(),
		ModTime:     fi.ModTime(),
	})
}

func samePath(a, b string) bool {
	aa, err := filepath.Abs(a)
	if err != nil {
		return false
	}
	bb, err := filepath.Abs(b)
	if err != nil {
		return false
	}
	return aa == bb
}
