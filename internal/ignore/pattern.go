package ignore

import (
	"path"
	"strings"
)

// IgnoreFileName is the rule file gbzip looks for in each directory it
// walks, and in the user's home directory for global rules.
const IgnoreFileName = ".zipignore"

// maxPatternLength mirrors the historical line limit. Longer bodies are
// dropped rather than truncated.
const maxPatternLength = 256

// Pattern is one parsed rule line.
type Pattern struct {
	// Pattern is the cleaned body: prefixes and the directory marker
	// stripped, trailing whitespace handled.
	Pattern string

	// Scope is the rule file's directory relative to the operation base,
	// slash-separated. Empty means the rule applies everywhere.
	Scope string

	// DirOnly marks rules written with a trailing /. They also exclude
	// everything below a matching directory.
	DirOnly bool

	// Negate re-includes paths matched by earlier rules.
	Negate bool

	// Anchored rules match from the scope root only; unanchored rules
	// also try the path's basename.
	Anchored bool
}

// ParseLine parses a single rule-file line. ok is false for blanks,
// comments, and lines that reduce to nothing.
//
// Leading whitespace is insignificant. Trailing whitespace is trimmed
// unless escaped: a backslash directly before the trailing run keeps one
// whitespace character. A leading ! negates; \! and \# start literal
// bodies. A trailing / marks the rule directory-only. A leading / anchors
// the rule to the scope root, as does any remaining internal /.
func ParseLine(line, scope string) (Pattern, bool) {
	line = strings.TrimLeft(line, " \t")
	line = trimTrailing(line)

	if line == "" || line[0] == '#' {
		return Pattern{}, false
	}

	p := Pattern{Scope: scope}

	switch {
	case line[0] == '!':
		p.Negate = true
		line = line[1:]
	case strings.HasPrefix(line, `\!`) || strings.HasPrefix(line, `\#`):
		line = line[1:]
	}

	if strings.HasSuffix(line, "/") {
		p.DirOnly = true
		line = strings.TrimSuffix(line, "/")
	}

	if strings.HasPrefix(line, "/") {
		p.Anchored = true
		line = strings.TrimPrefix(line, "/")
	} else if strings.Contains(line, "/") {
		p.Anchored = true
	}

	if line == "" || len(line) > maxPatternLength {
		return Pattern{}, false
	}

	p.Pattern = line
	return p, true
}

// trimTrailing removes trailing spaces and tabs. A backslash immediately
// before the trailing run escapes it, preserving one whitespace character.
func trimTrailing(s string) string {
	for len(s) > 0 {
		last := s[len(s)-1]
		if last != ' ' && last != '\t' {
			break
		}
		if len(s) >= 2 && s[len(s)-2] == '\\' {
			return s[:len(s)-2] + s[len(s)-1:]
		}
		s = s[:len(s)-1]
	}
	return s
}

// applies reports whether the rule matches the base-relative slash path,
// honoring scope containment, anchoring, the basename fallback for
// slash-free patterns, and directory-rule cascading to descendants.
func (p *Pattern) applies(rel string) bool {
	if p.Scope != "" {
		if rel == p.Scope {
			// A rule file never matches its own directory.
			return false
		}
		if !strings.HasPrefix(rel, p.Scope+"/") {
			return false
		}
		rel = rel[len(p.Scope)+1:]
	}

	if Match(p.Pattern, rel) {
		return true
	}
	if !p.Anchored && !strings.Contains(p.Pattern, "/") && Match(p.Pattern, path.Base(rel)) {
		return true
	}
	if p.DirOnly && strings.HasPrefix(rel, p.Pattern+"/") {
		return true
	}
	return false
}
