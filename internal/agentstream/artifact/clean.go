package artifact

import (
	"regexp"
	"strings"

	"github.com/fintellect/nexus/internal/agentstream/event"
)

var (
	sandboxBlock = regexp.MustCompile(`(?s)<daytona-sandbox[^>]*>.*?</daytona-sandbox>`)
	blankRuns    = regexp.MustCompile(`\n{3,}`)
	toolBlocks   []*regexp.Regexp
)

func init() {
	for _, tag := range event.DefaultInlineTags {
		q := regexp.QuoteMeta(tag)
		toolBlocks = append(toolBlocks,
			regexp.MustCompile(`<`+q+`(?:\s[^>]*)?/>`),
			regexp.MustCompile(`(?s)<`+q+`(?:\s[^>]*)?>.*?</`+q+`>`),
		)
	}
}

// CleanDisplay strips tool markup from assistant text for terminal display.
// Committed message content is never cleaned.
func CleanDisplay(text string) string {
	out := sandboxBlock.ReplaceAllString(text, "")
	for _, re := range toolBlocks {
		out = re.ReplaceAllString(out, "")
	}
	out = blankRuns.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
