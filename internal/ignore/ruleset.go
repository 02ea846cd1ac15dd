package ignore

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const (
	// maxPatterns softly caps how many rules one operation will hold.
	// Overflow lines are dropped with a single warning.
	maxPatterns = 10000

	// maxPathLength guards the decision input. Longer paths are never
	// matched and therefore never ignored.
	maxPathLength = 4096
)

// Ruleset is the ignore state for one archive operation: every rule loaded
// so far in load order, plus command-line override patterns evaluated after
// all of them. Rule files load hierarchically (global, then the base
// directory's own file, then nested files as the walk reaches them), so with
// last-match-wins evaluation deeper rules override shallower ones.
type Ruleset struct {
	baseDir   string
	patterns  []Pattern
	overrides []Pattern
	loaded    map[string]struct{}
	truncated bool
}

// New returns an empty Ruleset rooted at baseDir. Nested rule-file scopes
// are recorded relative to it.
func New(baseDir string) *Ruleset {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		abs = baseDir
	}
	return &Ruleset{
		baseDir: filepath.ToSlash(abs),
		loaded:  make(map[string]struct{}),
	}
}

// BaseDir returns the slash-normalized absolute base directory.
func (r *Ruleset) BaseDir() string { return r.baseDir }

// Len returns the number of loaded rules, excluding overrides.
func (r *Ruleset) Len() int { return len(r.patterns) }

// LoadedFiles returns how many rule-file paths have been consumed,
// including paths that turned out not to exist.
func (r *Ruleset) LoadedFiles() int { return len(r.loaded) }

// LoadFile reads one rule file under the given scope. A missing file is not
// an error. The canonical path is recorded up front, so loading the same
// file twice is a no-op.
func (r *Ruleset) LoadFile(path, scope string) error {
	canon := path
	if abs, err := filepath.Abs(path); err == nil {
		canon = filepath.ToSlash(abs)
	}
	if _, ok := r.loaded[canon]; ok {
		return nil
	}
	r.loaded[canon] = struct{}{}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open ignore file: %w", err)
	}
	defer f.Close()

	oversized := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		p, ok := ParseLine(line, scope)
		if !ok {
			if len(line) > maxPatternLength {
				oversized++
			}
			continue
		}
		if len(r.patterns) >= maxPatterns {
			if !r.truncated {
				r.truncated = true
				slog.Warn("ignore rule cap reached, dropping further patterns",
					"cap", maxPatterns, "file", path)
			}
			break
		}
		r.patterns = append(r.patterns, p)
	}
	if oversized > 0 {
		slog.Debug("dropped oversized ignore patterns", "file", path, "count", oversized)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read ignore file: %w", err)
	}
	return nil
}

// LoadNested loads dir's own rule file, scoping its patterns to that
// directory. Safe to call repeatedly and for the base directory itself.
func (r *Ruleset) LoadNested(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve ignore scope: %w", err)
	}
	scope, ok := r.relScope(filepath.ToSlash(abs))
	if !ok {
		return fmt.Errorf("ignore scope %s outside base %s", dir, r.baseDir)
	}
	return r.LoadFile(filepath.Join(dir, IgnoreFileName), scope)
}

// AddOverride appends a command-line pattern. Overrides are evaluated after
// every file rule, so they win ties regardless of when nested files load.
func (r *Ruleset) AddOverride(line string) error {
	p, ok := ParseLine(line, "")
	if !ok {
		return fmt.Errorf("invalid exclude pattern %q", line)
	}
	r.overrides = append(r.overrides, p)
	return nil
}

// Ignored reports whether the base-relative slash path is excluded. Every
// rule is consulted in order and the last match wins; negations flip the
// verdict back to included. Paths nothing matches are included.
func (r *Ruleset) Ignored(rel string) bool {
	rel = strings.TrimPrefix(rel, "./")
	if rel == "" || rel == "." || len(rel) > maxPathLength {
		return false
	}

	verdict := false
	for i := range r.patterns {
		if r.patterns[i].applies(rel) {
			verdict = !r.patterns[i].Negate
		}
	}
	for i := range r.overrides {
		if r.overrides[i].applies(rel) {
			verdict = !r.overrides[i].Negate
		}
	}
	return verdict
}

func (r *Ruleset) relScope(abs string) (string, bool) {
	if abs == r.baseDir {
		return "", true
	}
	if strings.HasPrefix(abs, r.baseDir+"/") {
		return abs[len(r.baseDir)+1:], true
	}
	return "", false
}
