package event

import (
	"regexp"
	"strings"
)

// DefaultInlineTags are the XML tool tags an agent may write directly into its
// streamed text.
var DefaultInlineTags = []string{
	"create-file",
	"web-search",
	"str-replace",
	"read-file",
	"delete-file",
	"execute-command",
	"web-scrape",
	"file-create",
	"full-file-rewrite",
}

var attrPattern = regexp.MustCompile(`(\w+)=["']([^"']+)["']`)

// InlineToolCall is a complete XML tool block found in streamed text.
type InlineToolCall struct {
	// Tag is the XML tag, e.g. "create-file".
	Tag string
	// Name is the tool name derived from the tag, e.g. "create_file".
	Name    string
	Args    map[string]any
	Content string
	Block   string
}

// InlineToolScanner finds complete tool blocks in text that arrives in
// arbitrary fragments. Each block is reported once. Not safe for concurrent
// use.
type InlineToolScanner struct {
	tags     []string
	openTags map[string]*regexp.Regexp
	buf      strings.Builder
	floor    int
	reported map[int]struct{}
}

// NewInlineToolScanner watches for the given tags, or DefaultInlineTags when
// none are given.
func NewInlineToolScanner(tags ...string) *InlineToolScanner {
	if len(tags) == 0 {
		tags = DefaultInlineTags
	}
	s := &InlineToolScanner{
		tags:     tags,
		openTags: make(map[string]*regexp.Regexp, len(tags)),
		reported: map[int]struct{}{},
	}
	for _, t := range tags {
		s.openTags[t] = regexp.MustCompile(`^<` + regexp.QuoteMeta(t) + `(\s[^>]*)?>`)
	}
	return s
}

// Feed appends a text fragment and returns the blocks completed by it.
func (s *InlineToolScanner) Feed(fragment string) []InlineToolCall {
	if fragment == "" {
		return nil
	}
	s.buf.WriteString(fragment)
	content := s.buf.String()

	var (
		out      []InlineToolCall
		pos      = s.floor
		floorSet bool
	)
	for pos < len(content) {
		start, tag := s.nextTag(content, pos)
		if start < 0 {
			break
		}
		block, state := s.completeBlock(content, start, tag)
		switch state {
		case blockIncomplete:
			if !floorSet {
				s.floor = start
				floorSet = true
			}
			pos = start + 1
			continue
		case blockInvalid:
			pos = start + 1
			continue
		}
		if _, seen := s.reported[start]; !seen {
			s.reported[start] = struct{}{}
			out = append(out, parseInlineBlock(tag, block))
		}
		pos = start + len(block)
	}
	if !floorSet {
		s.floor = pos
	}
	return out
}

func (s *InlineToolScanner) nextTag(content string, pos int) (int, string) {
	best, bestTag := -1, ""
	for _, t := range s.tags {
		i := strings.Index(content[pos:], "<"+t)
		if i < 0 {
			continue
		}
		if best < 0 || pos+i < best {
			best, bestTag = pos+i, t
		}
	}
	return best, bestTag
}

type blockState int

const (
	blockComplete blockState = iota
	blockIncomplete
	blockInvalid
)

func (s *InlineToolScanner) completeBlock(content string, start int, tag string) (string, blockState) {
	rest := content[start:]
	open := s.openTags[tag].FindString(rest)
	if open == "" {
		// "<create-file" with the closing '>' not streamed yet.
		if !strings.Contains(rest, ">") {
			return "", blockIncomplete
		}
		return "", blockInvalid
	}
	if strings.HasSuffix(open, "/>") {
		return open, blockComplete
	}

	openPrefix, closeTag := "<"+tag, "</"+tag+">"
	depth := 1
	search := start + len(open)
	for depth > 0 && search < len(content) {
		nextEnd := strings.Index(content[search:], closeTag)
		if nextEnd < 0 {
			break
		}
		nextEnd += search
		nextStart := indexOpenTag(content[search:], openPrefix)
		if nextStart >= 0 && search+nextStart < nextEnd {
			depth++
			search += nextStart + len(openPrefix)
			continue
		}
		depth--
		search = nextEnd + len(closeTag)
		if depth == 0 {
			return content[start:search], blockComplete
		}
	}
	return "", blockIncomplete
}

// indexOpenTag finds prefix ("<tag") only where it opens that exact tag, so
// "<create-file" does not match "<create-filename".
func indexOpenTag(s, prefix string) int {
	off := 0
	for {
		i := strings.Index(s[off:], prefix)
		if i < 0 {
			return -1
		}
		end := off + i + len(prefix)
		if end < len(s) {
			switch s[end] {
			case ' ', '\t', '\n', '\r', '>', '/':
				return off + i
			}
		}
		off = end
	}
}

func parseInlineBlock(tag, block string) InlineToolCall {
	openEnd := strings.Index(block, ">")
	openTag := block[:openEnd+1]

	args := map[string]any{}
	for _, m := range attrPattern.FindAllStringSubmatch(openTag, -1) {
		args[m[1]] = m[2]
	}
	if fp, ok := args["file_path"]; ok {
		if _, has := args["path"]; !has {
			args["path"] = fp
		}
	} else if p, ok := args["path"]; ok {
		args["file_path"] = p
	}

	call := InlineToolCall{
		Tag:   tag,
		Name:  strings.ReplaceAll(tag, "-", "_"),
		Args:  args,
		Block: block,
	}
	if closeTag := "</" + tag + ">"; strings.HasSuffix(block, closeTag) {
		call.Content = strings.TrimSpace(block[openEnd+1 : len(block)-len(closeTag)])
		call.Args["content"] = call.Content
	}
	return call
}
