package filter

import (
	"errors"
	"fmt"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/puzpuzpuz/xsync/v3"
)

// ErrRegexTooLong is returned when a pattern exceeds the length cap.
var ErrRegexTooLong = errors.New("regex is too long")

// RegexCache compiles user patterns once and bounds every match by a timeout.
type RegexCache struct {
	compiled  *xsync.MapOf[string, *regexp2.Regexp]
	timeout   time.Duration
	maxLength int
}

// NewRegexCache creates a cache. Patterns longer than maxLength are rejected.
func NewRegexCache(timeout time.Duration, maxLength int) *RegexCache {
	return &RegexCache{
		compiled:  xsync.NewMapOf[string, *regexp2.Regexp](),
		timeout:   timeout,
		maxLength: maxLength,
	}
}

// Compile validates and caches a pattern.
func (c *RegexCache) Compile(pattern string) (*regexp2.Regexp, error) {
	if re, ok := c.compiled.Load(pattern); ok {
		return re, nil
	}

	if c.maxLength > 0 && len(pattern) > c.maxLength {
		return nil, fmt.Errorf("%w: %d > %d", ErrRegexTooLong, len(pattern), c.maxLength)
	}

	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return nil, err
	}
	re.MatchTimeout = c.timeout

	actual, _ := c.compiled.LoadOrStore(pattern, re)

	return actual, nil
}

// Match reports whether content matches pattern.
func (c *RegexCache) Match(pattern, content string) (bool, error) {
	re, err := c.Compile(pattern)
	if err != nil {
		return false, err
	}

	return re.MatchString(content)
}
