package ignore_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Rounak-Paul/gbzip/internal/ignore"
)

func TestMatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pattern string
		path    string
		want    bool
	}{
		// Exact matches.
		{"exact match", "main.c", "main.c", true},
		{"exact mismatch", "main.c", "main.h", false},
		{"exact is not prefix", "main", "main.c", false},
		{"empty pattern empty path", "", "", true},
		{"empty pattern nonempty path", "", "x", false},
		{"nonempty pattern empty path", "x", "", false},

		// Single star.
		{"star suffix", "*.log", "error.log", true},
		{"star suffix mismatch", "*.log", "error.logs", false},
		{"star does not cross separator", "*.txt", "nested/file.txt", false},
		{"star alone", "*", "anything", true},
		{"star alone empty path", "*", "", true},
		{"star alone does not cross", "*", "a/b", false},
		{"star in middle", "a*c", "abc", true},
		{"star zero width", "a*c", "ac", true},
		{"two stars backtrack", "a*b*c", "aXXbYYc", true},
		{"two stars backtrack mismatch", "a*b*c", "aXXbYY", false},
		{"star stops at separator", "a*b", "a/b", false},

		// Question mark.
		{"question single byte", "fil?.txt", "file.txt", true},
		{"question exactly one", "fil?.txt", "fil.txt", false},
		{"question not separator", "a?b", "a/b", false},

		// Double star.
		{"doublestar interior zero segments", "a/**/z", "a/z", true},
		{"doublestar interior one segment", "a/**/z", "a/b/z", true},
		{"doublestar interior many segments", "a/**/z", "a/b/c/d/z", true},
		{"doublestar interior mismatch", "a/**/z", "a/b/c/y", false},
		{"doublestar leading top level", "**/test", "test", true},
		{"doublestar leading one deep", "**/test", "a/test", true},
		{"doublestar leading two deep", "**/test", "a/b/test", true},
		{"doublestar leading mismatch", "**/test", "a/b/testing", false},
		{"doublestar trailing", "src/**", "src/a/b/c", true},
		{"doublestar trailing excludes root", "src/**", "src", false},
		{"doublestar alone", "**", "a/b/c", true},
		{"doublestar without separator", "a**c", "a/b/c", true},

		// Character classes.
		{"class member", "[abc].txt", "b.txt", true},
		{"class non-member", "[abc].txt", "d.txt", false},
		{"class range", "file[0-9]", "file7", true},
		{"class range miss", "file[0-9]", "filex", false},
		{"class negated", "[!abc].txt", "d.txt", true},
		{"class negated member", "[!abc].txt", "a.txt", false},
		{"class caret negated", "[^abc].txt", "d.txt", true},
		{"class mixed", "[0-9a-f][0-9a-f]", "a7", true},
		{"class literal bracket-close first", "[]]x", "]x", true},
		{"class trailing dash literal", "x[a-]", "x-", true},
		{"class never matches separator", "a[!b]c", "a/c", false},
		{"unmatched bracket is literal", "a[b", "a[b", true},
		{"unmatched bracket mismatch", "a[b", "acb", false},

		// Combinations.
		{"anchored style path", "src/*.c", "src/main.c", true},
		{"anchored style too deep", "src/*.c", "src/sub/main.c", false},
		{"doublestar then class", "**/[ab].txt", "x/y/a.txt", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ignore.Match(tt.pattern, tt.path),
				"Match(%q, %q)", tt.pattern, tt.path)
		})
	}
}

func TestMatchDepthBound(t *testing.T) {
	t.Parallel()

	// One ** per nesting level: the recursion depth tracks the number of
	// doublestars, so a pattern past the bound fails instead of matching.
	deepOK := strings.Repeat("**/", 50) + "x"
	assert.True(t, ignore.Match(deepOK, "a/x"))

	tooDeep := strings.Repeat("**/", ignore.MaxMatchDepth+2) + "x"
	assert.False(t, ignore.Match(tooDeep, "a/x"))

	// A deep path with a single ** stays well inside the bound.
	deepPath := strings.Repeat("d/", 300) + "x"
	assert.True(t, ignore.Match("**/x", deepPath))
}
