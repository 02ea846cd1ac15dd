package ignore

// MaxMatchDepth bounds the recursion used to resolve ** split points.
// Patterns that exceed it fail to match rather than recurse further.
const MaxMatchDepth = 100

// Match reports whether a slash-separated relative path matches a glob
// pattern. Supported syntax:
//
//	?      any single byte except /
//	*      any run of bytes not containing /
//	**     any run of bytes, crossing path separators
//	[a-z]  character class with ranges; [!x] or [^x] negates;
//	       ] first in the class is a literal member
//
// A pattern with no wildcards is an exact string comparison. An unmatched
// [ is a literal byte. Classes and single-byte wildcards never match /.
func Match(pattern, name string) bool {
	return matchDepth(pattern, name, 0)
}

//nolint:gocyclo // character-by-character matcher with explicit backtracking
func matchDepth(pattern, name string, depth int) bool {
	if depth > MaxMatchDepth {
		return false
	}

	var p, n int
	starP, starN := -1, -1

	for n < len(name) {
		if p < len(pattern) {
			switch c := pattern[p]; c {
			case '*':
				if p+1 < len(pattern) && pattern[p+1] == '*' {
					return matchDoubleStar(pattern, p, name, n, depth)
				}
				// Remember the star and try the zero-width match first.
				starP, starN = p, n
				p++
				continue
			case '?':
				if name[n] != '/' {
					p++
					n++
					continue
				}
			case '[':
				if ok, next, closed := matchClass(pattern, p, name[n]); closed {
					if ok {
						p = next
						n++
						continue
					}
				} else if name[n] == '[' {
					p++
					n++
					continue
				}
			default:
				if c == name[n] {
					p++
					n++
					continue
				}
			}
		}

		// Mismatch: re-extend the most recent * by one byte, as long as
		// that byte is not a separator.
		if starP >= 0 && name[starN] != '/' {
			starN++
			n = starN
			p = starP + 1
			continue
		}
		return false
	}

	// Input consumed; any pattern left must be stars matching nothing.
	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}

// matchDoubleStar resolves a ** at pattern[p] against name[n:] by trying
// each candidate split point. Each attempt recurses with depth+1.
func matchDoubleStar(pattern string, p int, name string, n, depth int) bool {
	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	rest := pattern[p:]
	if rest == "" {
		// Trailing ** swallows the remainder.
		return true
	}

	if rest[0] == '/' {
		// The a/**/z form: try zero segments first, then resume after
		// each separator.
		rest = rest[1:]
		if matchDepth(rest, name[n:], depth+1) {
			return true
		}
		for i := n; i < len(name); i++ {
			if name[i] == '/' && matchDepth(rest, name[i+1:], depth+1) {
				return true
			}
		}
		return false
	}

	// No separator after the stars: try every suffix.
	for i := n; i <= len(name); i++ {
		if matchDepth(rest, name[i:], depth+1) {
			return true
		}
	}
	return false
}

// matchClass evaluates the character class opening at pattern[start]
// against c. closed is false when the bracket never closes; the caller
// then treats [ as a literal byte.
func matchClass(pattern string, start int, c byte) (matched bool, next int, closed bool) {
	end := classEnd(pattern, start)
	if end < 0 {
		return false, 0, false
	}
	next = end + 1

	// A separator is never matched by a class, negated or not.
	if c == '/' {
		return false, next, true
	}

	i := start + 1
	negate := false
	if i < end && (pattern[i] == '!' || pattern[i] == '^') {
		negate = true
		i++
	}
	for i < end {
		if i+2 < end && pattern[i+1] == '-' {
			if pattern[i] <= c && c <= pattern[i+2] {
				matched = true
			}
			i += 3
			continue
		}
		if pattern[i] == c {
			matched = true
		}
		i++
	}
	if negate {
		matched = !matched
	}
	return matched, next, true
}

// classEnd returns the index of the ] closing the class that opens at
// start, or -1 when it never closes. A ] directly after [ or [! is a
// literal member, not the terminator.
func classEnd(pattern string, start int) int {
	i := start + 1
	if i < len(pattern) && (pattern[i] == '!' || pattern[i] == '^') {
		i++
	}
	if i < len(pattern) && pattern[i] == ']' {
		i++
	}
	for i < len(pattern) {
		if pattern[i] == ']' {
			return i
		}
		i++
	}
	return -1
}
