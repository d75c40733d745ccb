package filter

import (
	"fmt"
	"regexp"
	"strings"
)

// Pattern is a compiled rsync-style glob.
//
//	*.log      any basename ending in .log, at any depth
//	/build     "build" directly under the root
//	cache/     directories named cache only
//	docs/**    everything below docs
type Pattern struct {
	re      *regexp.Regexp
	raw     string
	dirOnly bool
}

// Compile parses a glob pattern.
func Compile(pattern string) (*Pattern, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("empty filter pattern")
	}
	p := &Pattern{raw: pattern}

	body := pattern
	if strings.HasSuffix(body, "/") {
		p.dirOnly = true
		body = strings.TrimSuffix(body, "/")
	}

	// A slash anywhere but the end anchors the pattern at the root.
	anchored := strings.Contains(body, "/")
	body = strings.TrimPrefix(body, "/")

	prefix := "(^|/)"
	if anchored {
		prefix = "^"
	}
	re, err := regexp.Compile(prefix + translate(body) + "$")
	if err != nil {
		return nil, fmt.Errorf("compile pattern %q: %w", pattern, err)
	}
	p.re = re
	return p, nil
}

// String returns the pattern as written.
func (p *Pattern) String() string { return p.raw }

// Match tests a slash-separated relative path.
func (p *Pattern) Match(relPath string, isDir bool) bool {
	if p.dirOnly && !isDir {
		return false
	}
	return p.re.MatchString(relPath)
}

// translate turns glob syntax into a regular expression body.
func translate(glob string) string {
	var b strings.Builder
	for i := 0; i < len(glob); i++ {
		switch c := glob[i]; c {
		case '*':
			if strings.HasPrefix(glob[i:], "**/") {
				b.WriteString("(.*/)?")
				i += 2
			} else if strings.HasPrefix(glob[i:], "**") {
				b.WriteString(".*")
				i++
			} else {
				b.WriteString("[^/]*")
			}
		case '?':
			b.WriteString("[^/]")
		case '[':
			end := strings.IndexByte(glob[i+1:], ']')
			if end < 0 {
				b.WriteString(`\[`)
				continue
			}
			class := glob[i+1 : i+1+end]
			if strings.HasPrefix(class, "!") {
				class = "^" + class[1:]
			}
			b.WriteString("[" + class + "]")
			i += end + 1
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	return b.String()
}
