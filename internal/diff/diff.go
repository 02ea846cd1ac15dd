// Package diff classifies the drift between a directory tree and the
// archive built from it, driving incremental updates.
package diff

import "time"

// mtimeSlack absorbs the two-second granularity of legacy zip timestamps.
// A file counts as modified only when its mtime is newer than the archived
// one by more than this.
const mtimeSlack = 2 * time.Second

// Type classifies one change.
type Type int

const (
	Added Type = iota + 1
	Modified
	Deleted
)

func (t Type) String() string {
	switch t {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Change is one file whose disk and archive states disagree.
type Change struct {
	Path string
	Type Type
}

// Summary counts changes by type.
type Summary struct {
	Added    int
	Modified int
	Deleted  int
}

// Total returns the number of changes of any type.
func (s Summary) Total() int { return s.Added + s.Modified + s.Deleted }

// None reports whether the tree and the archive agree.
func (s Summary) None() bool { return s.Total() == 0 }

// File is the on-disk side of a comparison.
type File struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Archived is the in-archive side.
type Archived struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Compare matches disk files against archived entries by path. A file is
// modified when its size differs or its mtime is newer than the archived
// mtime plus slack. Changes come back in a stable order: disk files in
// input order, then deletions in archive order.
func Compare(disk []File, archived []Archived) ([]Change, Summary) {
	var changes []Change
	var sum Summary

	inArchive := make(map[string]Archived, len(archived))
	for _, a := range archived {
		inArchive[a.Path] = a
	}

	onDisk := make(map[string]struct{}, len(disk))
	for _, f := range disk {
		onDisk[f.Path] = struct{}{}

		a, ok := inArchive[f.Path]
		if !ok {
			changes = append(changes, Change{Path: f.Path, Type: Added})
			sum.Added++
			continue
		}
		if f.Size != a.Size || f.ModTime.After(a.ModTime.Add(mtimeSlack)) {
			changes = append(changes, Change{Path: f.Path, Type: Modified})
			sum.Modified++
		}
	}

	for _, a := range archived {
		if _, ok := onDisk[a.Path]; !ok {
			changes = append(changes, Change{Path: a.Path, Type: Deleted})
			sum.Deleted++
		}
	}

	return changes, sum
}
