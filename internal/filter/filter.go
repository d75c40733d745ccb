// Package filter decides which source entries take part in a copy run:
// ordered include/exclude glob rules plus file size bounds.
package filter

// Rule is a single include or exclude pattern.
type Rule struct {
	Pattern *Pattern
	Include bool
}

// Chain is an ordered rule list; the first matching rule wins and
// unmatched paths are included.
type Chain struct {
	rules   []Rule
	minSize int64
	maxSize int64
}

// NewChain creates an empty filter chain.
func NewChain() *Chain {
	return &Chain{}
}

// AddExclude appends an exclude rule.
func (c *Chain) AddExclude(pattern string) error {
	return c.add(pattern, false)
}

// AddInclude appends an include rule.
func (c *Chain) AddInclude(pattern string) error {
	return c.add(pattern, true)
}

func (c *Chain) add(pattern string, include bool) error {
	p, err := Compile(pattern)
	if err != nil {
		return err
	}
	c.rules = append(c.rules, Rule{Pattern: p, Include: include})
	return nil
}

// SetMinSize skips regular files smaller than n bytes.
func (c *Chain) SetMinSize(n int64) { c.minSize = n }

// SetMaxSize skips regular files larger than n bytes.
func (c *Chain) SetMaxSize(n int64) { c.maxSize = n }

// Empty reports whether the chain has no rules and no size bounds.
func (c *Chain) Empty() bool {
	return len(c.rules) == 0 && c.minSize == 0 && c.maxSize == 0
}

// Match reports whether relPath (slash separated, relative to the source
// root) should be visited. Size bounds apply to files only.
func (c *Chain) Match(relPath string, isDir bool, size int64) bool {
	if !isDir {
		if c.minSize > 0 && size < c.minSize {
			return false
		}
		if c.maxSize > 0 && size > c.maxSize {
			return false
		}
	}
	for _, r := range c.rules {
		if r.Pattern.Match(relPath, isDir) {
			return r.Include
		}
	}
	return true
}
