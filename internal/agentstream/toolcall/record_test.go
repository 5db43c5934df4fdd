package toolcall

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsFileTool(t *testing.T) {
	for _, name := range []string{"create_file", "full-file-rewrite", "write_report", "CreateChart", "read_file"} {
		assert.True(t, IsFileTool(name), name)
	}
	for _, name := range []string{"web_search", "execute_command", ""} {
		assert.False(t, IsFileTool(name), name)
	}
}

func TestProvisionalAndKey(t *testing.T) {
	r := &Record{MessageID: "m1", ToolIndex: 3}
	assert.True(t, r.Provisional())
	assert.Equal(t, "m1#3", r.Key())

	now := time.Now()
	r.CompletedAt = &now
	assert.False(t, r.Provisional())
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "", Stringify(nil))
	assert.Equal(t, "plain", Stringify("plain"))
	assert.Equal(t, `{"a":1}`, Stringify(map[string]any{"a": 1}))
	assert.Equal(t, "raw", (&Record{Result: []byte("raw")}).ResultText())
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, "File: a.md\nContent: # A", Summarize("create_file", map[string]any{"path": "a.md", "content": "# A"}, nil, ""))
	assert.Equal(t, "File: Unknown file\nContent: N/A", Summarize("create_file", nil, nil, ""))
	assert.Equal(t, "Query: rates", Summarize("web_search", map[string]any{"query": "rates"}, nil, ""))
	assert.Equal(t, "Error: boom", Summarize("web_search", nil, nil, "boom"))
	assert.Equal(t, "ok", Summarize("execute_command", nil, "ok", ""))
}

func TestCloneIsIndependent(t *testing.T) {
	at := time.Now()
	r := Record{
		Args:        map[string]any{"nested": map[string]any{"k": "v"}, "list": []any{"a"}},
		Result:      map[string]any{"ok": true},
		CompletedAt: &at,
	}
	c := r.Clone()

	c.Args["nested"].(map[string]any)["k"] = "changed"
	c.Args["list"].([]any)[0] = "b"
	c.Result.(map[string]any)["ok"] = false
	*c.CompletedAt = at.Add(time.Hour)

	assert.Equal(t, "v", r.Args["nested"].(map[string]any)["k"])
	assert.Equal(t, "a", r.Args["list"].([]any)[0])
	assert.Equal(t, true, r.Result.(map[string]any)["ok"])
	assert.Equal(t, at, *r.CompletedAt)
}
