// Package toolcall holds the ToolCallRecord shared by the tracker and the
// artifact extractor.
package toolcall

import (
	"fmt"
	"strings"
	"time"

	"github.com/fintellect/nexus/internal/agentstream/event"
	"github.com/fintellect/nexus/pkg/utils/json"
)

// Record is one tool invocation. It is provisional from tool-started until a
// matching tool-completed finalizes it.
type Record struct {
	ID        string         `json:"id"`
	MessageID string         `json:"message_id"`
	ToolName  string         `json:"tool_name"`
	ToolIndex int            `json:"tool_index"`
	Args      map[string]any `json:"args,omitempty"`
	Result    any            `json:"result,omitempty"`

	Status  event.ToolStatus `json:"status"`
	Success bool             `json:"success"`
	Error   string           `json:"error,omitempty"`

	// Content is a human readable summary shown in the tool panel.
	Content string `json:"content,omitempty"`

	Timestamp   time.Time  `json:"timestamp"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Seq is the position at which the record entered the ledger.
	Seq int `json:"seq"`
}

// Provisional reports whether no completion has been applied yet.
func (r *Record) Provisional() bool {
	return r.CompletedAt == nil
}

// Key identifies the invocation slot within a message.
func (r *Record) Key() string {
	return fmt.Sprintf("%s#%d", r.MessageID, r.ToolIndex)
}

// Clone returns a copy that shares no maps, slices or pointers with r.
func (r Record) Clone() Record {
	out := r
	if r.Args != nil {
		out.Args = cloneValue(r.Args).(map[string]any)
	}
	out.Result = cloneValue(r.Result)
	if r.CompletedAt != nil {
		at := *r.CompletedAt
		out.CompletedAt = &at
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, x := range t {
			m[k] = cloneValue(x)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, x := range t {
			s[i] = cloneValue(x)
		}
		return s
	case []byte:
		return append([]byte(nil), t...)
	}
	return v
}

// IsFileTool reports whether a tool name denotes a file-producing tool.
func IsFileTool(name string) bool {
	n := strings.ToLower(name)
	return strings.Contains(n, "file") || strings.Contains(n, "create") || strings.Contains(n, "write")
}

// ResultText renders the result payload as text: strings as-is, everything
// else as JSON.
func (r *Record) ResultText() string {
	return Stringify(r.Result)
}

// Stringify renders any payload as text.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return json.MarshalString(t)
	}
}

// Summarize builds the panel summary for a tool call.
func Summarize(name string, args map[string]any, result any, errMsg string) string {
	if errMsg != "" {
		return "Error: " + errMsg
	}
	lower := strings.ToLower(name)
	switch {
	case IsFileTool(lower):
		path := firstString(args, "file_path", "path", "filePath")
		if path == "" {
			path = "Unknown file"
		}
		body := firstString(args, "content")
		if body == "" {
			body = "N/A"
		}
		return fmt.Sprintf("File: %s\nContent: %s", path, body)
	case strings.Contains(lower, "search"):
		q := firstString(args, "query")
		if q == "" {
			q = "N/A"
		}
		return "Query: " + q
	}
	if s := Stringify(result); s != "" {
		return s
	}
	return Stringify(args)
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
