package artifact

import (
	"regexp"
	"strings"
)

// PlaceholderConfig tunes the non-placeholder predicate.
type PlaceholderConfig struct {
	// MinLength rejects shorter content that has no structure.
	MinLength int `json:"min_length" mapstructure:"min_length"`
	// SubstantialLength accepts longer content unconditionally.
	SubstantialLength int `json:"substantial_length" mapstructure:"substantial_length"`
	// MinHeadings accepts content with at least this many heading lines.
	MinHeadings int `json:"min_headings" mapstructure:"min_headings"`
}

// DefaultPlaceholderConfig returns the thresholds observed in production
// tool output.
func DefaultPlaceholderConfig() PlaceholderConfig {
	return PlaceholderConfig{MinLength: 30, SubstantialLength: 100, MinHeadings: 2}
}

var (
	strictPlaceholders = []*regexp.Regexp{
		regexp.MustCompile(`^\.\.\.\s*$`),
		regexp.MustCompile(`(?i)^(processing|success|complete|loading)\.?\s*$`),
		regexp.MustCompile(`(?i)^file created\s*$`),
		regexp.MustCompile(`(?i)^working with file: file\s*$`),
		regexp.MustCompile(`(?i)^[A-Za-z0-9_-]+\.(md|txt|json|csv|html|xml)\s*$`),
		regexp.MustCompile(`(?i)^create file\s*\n\d{1,2}:\d{2}:\d{2}\s+(am|pm)\s*\nworking with file: file\s*\nsuccess\s*\nfile created\s*$`),
	}
	headingLine = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s+\S`)
)

// IsPlaceholder reports whether content is an empty acknowledgement rather
// than a real document. Structure and length are checked before the status
// patterns so a real report that opens with a status-like line is kept.
func (c PlaceholderConfig) IsPlaceholder(content string) bool {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return true
	}
	if c.MinHeadings > 0 && len(headingLine.FindAllStringIndex(trimmed, -1)) >= c.MinHeadings {
		return false
	}
	if c.SubstantialLength > 0 && len(trimmed) > c.SubstantialLength {
		return false
	}
	for _, re := range strictPlaceholders {
		if re.MatchString(trimmed) {
			return true
		}
	}
	if len(trimmed) < c.MinLength {
		return true
	}

	lines := 0
	for _, l := range strings.Split(trimmed, "\n") {
		if strings.TrimSpace(l) != "" {
			lines++
		}
	}
	return lines <= 2 && len(trimmed) < 50
}

// IsPlaceholder applies the default thresholds.
func IsPlaceholder(content string) bool {
	return DefaultPlaceholderConfig().IsPlaceholder(content)
}
