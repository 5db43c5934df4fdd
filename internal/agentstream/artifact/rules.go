package artifact

import (
	"regexp"
	"strings"

	"github.com/fintellect/nexus/internal/agentstream/toolcall"
	"github.com/fintellect/nexus/pkg/utils/json"
)

// Input is the normalized view of a tool call that rules run against.
type Input struct {
	ToolName string
	Args     map[string]any
	// Result is the result payload, with JSON strings already decoded.
	Result any
	// Text is every textual rendering of args and result, newline joined.
	Text string
}

// NewInput prepares a record for rule evaluation.
func NewInput(r *toolcall.Record) Input {
	in := Input{ToolName: r.ToolName, Args: r.Args, Result: decodeJSONString(r.Result)}

	var parts []string
	if s := toolcall.Stringify(r.Args); s != "" && s != "null" {
		parts = append(parts, s)
	}
	for _, k := range []string{"content", "file_contents", "fileContent"} {
		if s, ok := r.Args[k].(string); ok && s != "" {
			parts = append(parts, s)
		}
	}
	if s := toolcall.Stringify(r.Result); s != "" {
		parts = append(parts, s)
	}
	if r.Content != "" {
		parts = append(parts, r.Content)
	}
	in.Text = strings.Join(parts, "\n")
	return in
}

func decodeJSONString(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "{") {
		return v
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(t), &m); err != nil {
		return v
	}
	return m
}

// PathRule derives a file path, or "" when it does not apply.
type PathRule struct {
	Name string
	Eval func(in Input) string
}

// ContentRule derives file content given the resolved path.
type ContentRule struct {
	Name string
	Eval func(in Input, path string) string
}

// DefaultPathRules are tried in order; the first non-empty result wins.
func DefaultPathRules() []PathRule {
	return []PathRule{
		{Name: "structured", Eval: structuredPath},
		{Name: "json", Eval: regexRule(jsonPathPatterns)},
		{Name: "xml-attribute", Eval: regexRule(xmlPathPatterns)},
		{Name: "generic", Eval: regexRule(genericPathPatterns)},
		{Name: "extension", Eval: regexRule(extensionPathPatterns)},
	}
}

// DefaultContentRules are tried in order; the first non-empty result wins.
func DefaultContentRules() []ContentRule {
	return []ContentRule{
		{Name: "structured", Eval: structuredContent},
		{Name: "tag-pair", Eval: tagPairContent},
		{Name: "fenced", Eval: fencedContent},
		{Name: "json-escaped", Eval: jsonEscapedContent},
		{Name: "after-path", Eval: afterPathContent},
		{Name: "result-text", Eval: resultTextContent},
	}
}

var (
	jsonPathPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)"file_path"\s*:\s*"([^"]+)"`),
		regexp.MustCompile(`(?i)"filepath"\s*:\s*"([^"]+)"`),
		regexp.MustCompile(`(?i)"path"\s*:\s*"([^"]+)"`),
	}
	xmlPathPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<(?:create-file|full-file-rewrite|str-replace|read-file|file-create)[^>]*?\bfile_path=["']([^"']+)["']`),
		regexp.MustCompile(`(?i)\bfile_path=["']([^"']+)["']`),
		regexp.MustCompile(`(?i)\bpath=["']([^"']+)["']`),
	}
	genericPathPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(workspace[/\\][^\s"'<>]+)`),
		regexp.MustCompile(`(?i)(?:created|saved)\s+(?:file\s+)?(?:at\s+)?([^\s,]+\.\w+)`),
		regexp.MustCompile(`(?:^|[\s"'(=])((?:\.{1,2}/|/)?(?:[\w-]+/)+[\w.-]+\.\w+)`),
	}
	extensionPathPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)([\w./-]+\.(?:md|txt|js|jsx|ts|tsx|html|css|json|py|java|cpp|c|go|yaml|yml|xml|sql|sh|bat|csv))\b`),
	}
)

func regexRule(patterns []*regexp.Regexp) func(Input) string {
	return func(in Input) string {
		for _, re := range patterns {
			for _, m := range re.FindAllStringSubmatch(in.Text, -1) {
				if p := cleanPath(m[1]); p != "" {
					return p
				}
			}
		}
		return ""
	}
}

// cleanPath trims punctuation around a candidate and rejects URLs.
func cleanPath(p string) string {
	p = strings.TrimLeft(strings.TrimSpace(p), `"'(;[{<`)
	p = strings.TrimRight(p, `"'.,;:)]}>`)
	if p == "" || strings.Contains(p, "://") || strings.HasPrefix(p, "//") {
		return ""
	}
	return p
}

func structuredPath(in Input) string {
	if m, ok := in.Result.(map[string]any); ok {
		if nested, ok := m["result"].(map[string]any); ok {
			if p := pick(nested, "filePath", "file_path", "path"); p != "" {
				return cleanPath(p)
			}
		}
		if p := pick(m, "filePath", "file_path", "path"); p != "" {
			return cleanPath(p)
		}
	}
	return cleanPath(pick(in.Args, "file_path", "filePath", "path", "target_file"))
}

func structuredContent(in Input, _ string) string {
	if m, ok := in.Result.(map[string]any); ok {
		switch nested := m["result"].(type) {
		case map[string]any:
			if c := pick(nested, "content", "fileContent"); c != "" {
				return c
			}
		}
		if c := pick(m, "content", "fileContent", "file_contents"); c != "" {
			return c
		}
		if s, ok := m["result"].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return pick(in.Args, "content", "file_contents", "fileContent")
}

var tagPairPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<create-file[^>]*>(.*?)</create-file>`),
	regexp.MustCompile(`(?is)<full-file-rewrite[^>]*>(.*?)</full-file-rewrite>`),
	regexp.MustCompile(`(?is)<file-create[^>]*>(.*?)</file-create>`),
	regexp.MustCompile(`(?is)<file-content[^>]*>(.*?)</file-content>`),
}

func tagPairContent(in Input, _ string) string {
	return firstSubmatch(tagPairPatterns, in.Text)
}

var fencedPattern = []*regexp.Regexp{regexp.MustCompile("(?s)```(?:[\\w+-]*\\n)?(.*?)```")}

func fencedContent(in Input, _ string) string {
	return firstSubmatch(fencedPattern, in.Text)
}

var jsonContentPattern = regexp.MustCompile(`(?i)"content"\s*:\s*"((?:[^"\\]|\\.)*)"`)

func jsonEscapedContent(in Input, _ string) string {
	m := jsonContentPattern.FindStringSubmatch(in.Text)
	if m == nil {
		return ""
	}
	var s string
	if err := json.Unmarshal([]byte(`"`+m[1]+`"`), &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// afterPathContent takes the lines following the one that names the path,
// when there are more than three of them.
func afterPathContent(in Input, path string) string {
	if path == "" {
		return ""
	}
	i := strings.Index(in.Text, path)
	if i < 0 {
		return ""
	}
	lines := strings.Split(in.Text[i+len(path):], "\n")
	if len(lines) <= 1 {
		return ""
	}
	lines = lines[1:]
	if len(lines) <= 3 {
		return ""
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func resultTextContent(in Input, path string) string {
	s, ok := in.Result.(string)
	if !ok || path == "" || len(strings.TrimSpace(s)) <= 50 {
		return ""
	}
	return strings.TrimSpace(s)
}

func firstSubmatch(patterns []*regexp.Regexp, text string) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(text); m != nil {
			if s := strings.TrimSpace(m[1]); s != "" {
				return s
			}
		}
	}
	return ""
}

func pick(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}
