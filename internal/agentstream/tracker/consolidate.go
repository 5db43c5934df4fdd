package tracker

import (
	"strings"

	"github.com/fintellect/nexus/internal/agentstream/toolcall"
)

// Sentinel is a result payload that marks a void operation.
type Sentinel struct {
	Text string `json:"text" mapstructure:"text"`
	// Exact requires the whole payload to equal Text instead of containing it.
	Exact bool `json:"exact" mapstructure:"exact"`
}

// DefaultSentinels are the "no information extracted" payloads emitted by
// the tool backend.
func DefaultSentinels() []Sentinel {
	return []Sentinel{
		{Text: "No File Information"},
		{Text: "Could not extract file details from the operation", Exact: true},
	}
}

// Consolidator builds the display view of a ledger. It holds no state, so
// Consolidate is a pure function of its input.
type Consolidator struct {
	// ResolvePath returns the resource key of a file tool record.
	ResolvePath func(r *toolcall.Record) string
	Sentinels   []Sentinel
	// NonFileKey returns a duplicate key for non-file tools. Nil, or an empty
	// key, keeps every record.
	NonFileKey func(r *toolcall.Record) string
}

// Consolidate collapses the ledger for display:
//   - records sharing a message and tool index keep only the most recently
//     completed one, at the position of the first;
//   - records whose result matches a sentinel are dropped;
//   - file tools sharing tool name and resolved path keep the first;
//   - non-file tools sharing a NonFileKey keep the first.
func (c Consolidator) Consolidate(ledger []toolcall.Record) []toolcall.Record {
	winners := c.pickWinners(ledger)

	out := make([]toolcall.Record, 0, len(winners))
	seen := map[string]struct{}{}
	for i := range winners {
		r := &winners[i]
		if c.isVoid(r) {
			continue
		}

		var key string
		if toolcall.IsFileTool(r.ToolName) {
			path := "unknown"
			if c.ResolvePath != nil {
				path = c.ResolvePath(r)
			}
			key = "file:" + r.ToolName + "_" + path
		} else if c.NonFileKey != nil {
			if k := c.NonFileKey(r); k != "" {
				key = "tool:" + k
			}
		}
		if key != "" {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}
		out = append(out, *r)
	}
	return out
}

func (c Consolidator) pickWinners(ledger []toolcall.Record) []toolcall.Record {
	first := map[string]int{}
	var order []string
	best := map[string]toolcall.Record{}

	for _, r := range ledger {
		k := r.Key()
		cur, ok := best[k]
		if !ok {
			first[k] = len(order)
			order = append(order, k)
			best[k] = r
			continue
		}
		if newer(r, cur) {
			best[k] = r
		}
	}

	out := make([]toolcall.Record, len(order))
	for k, pos := range first {
		out[pos] = best[k]
	}
	return out
}

// newer reports whether a beats b: completed beats provisional, later
// completion beats earlier, later arrival breaks the remaining ties.
func newer(a, b toolcall.Record) bool {
	switch {
	case a.Provisional() && !b.Provisional():
		return false
	case !a.Provisional() && b.Provisional():
		return true
	case !a.Provisional() && !a.CompletedAt.Equal(*b.CompletedAt):
		return a.CompletedAt.After(*b.CompletedAt)
	}
	return a.Seq > b.Seq
}

func (c Consolidator) isVoid(r *toolcall.Record) bool {
	text := r.ResultText()
	if text == "" {
		return false
	}
	for _, s := range c.Sentinels {
		if s.Exact && strings.TrimSpace(text) == s.Text {
			return true
		}
		if !s.Exact && strings.Contains(text, s.Text) {
			return true
		}
	}
	return false
}

// QueryKey is a NonFileKey that treats calls of the same tool with the same
// query, url or command as duplicates.
func QueryKey(r *toolcall.Record) string {
	for _, k := range []string{"query", "url", "command"} {
		if v, ok := r.Args[k].(string); ok && strings.TrimSpace(v) != "" {
			return r.ToolName + "_" + strings.ToLower(strings.TrimSpace(v))
		}
	}
	return ""
}
