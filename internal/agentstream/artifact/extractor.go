// Package artifact derives display-only file artifacts from tool-call
// records. Paths and contents are found by ordered rule lists where the first
// non-empty match wins.
package artifact

import (
	"sort"
	"time"

	"github.com/fintellect/nexus/internal/agentstream/event"
	"github.com/fintellect/nexus/internal/agentstream/toolcall"
)

// Artifact is a file-like object recovered from a tool call.
type Artifact struct {
	Path      string           `json:"path"`
	Content   string           `json:"content"`
	Language  string           `json:"language"`
	Status    event.ToolStatus `json:"status"`
	UpdatedAt time.Time        `json:"updated_at"`
	// Source is the record the artifact was recovered from.
	Source toolcall.Record `json:"source"`
}

// Extractor evaluates path and content rules against records.
type Extractor struct {
	PathRules    []PathRule
	ContentRules []ContentRule
	Placeholder  PlaceholderConfig
}

// NewExtractor returns an extractor with the default rule cascades.
func NewExtractor(cfg PlaceholderConfig) *Extractor {
	return &Extractor{
		PathRules:    DefaultPathRules(),
		ContentRules: DefaultContentRules(),
		Placeholder:  cfg,
	}
}

// Path returns the first path produced by the path rules, or "".
func (e *Extractor) Path(r *toolcall.Record) string {
	return e.path(NewInput(r))
}

func (e *Extractor) path(in Input) string {
	for _, rule := range e.PathRules {
		if p := rule.Eval(in); p != "" {
			return p
		}
	}
	return ""
}

// Content returns the first content produced by the content rules, or "".
func (e *Extractor) Content(r *toolcall.Record, path string) string {
	return e.content(NewInput(r), path)
}

func (e *Extractor) content(in Input, path string) string {
	for _, rule := range e.ContentRules {
		if c := rule.Eval(in, path); c != "" {
			return c
		}
	}
	return ""
}

// ResolvePath implements the resource key used when consolidating file
// tools: the extracted path, else the first line of the summary.
func (e *Extractor) ResolvePath(r *toolcall.Record) string {
	if p := e.Path(r); p != "" {
		return p
	}
	for i, c := range r.Content {
		if c == '\n' {
			return r.Content[:i]
		}
	}
	if r.Content != "" {
		return r.Content
	}
	return "unknown"
}

// Extract recomputes the artifact list from records. Only file tools are
// considered; a path seen more than once keeps its most recent record and
// content failing the placeholder predicate yields nothing. The result is
// ordered most recent first.
func (e *Extractor) Extract(records []toolcall.Record) []Artifact {
	byPath := map[string]int{}
	var out []Artifact

	for i := range records {
		r := &records[i]
		if !toolcall.IsFileTool(r.ToolName) {
			continue
		}
		in := NewInput(r)
		path := e.path(in)
		if path == "" {
			continue
		}
		content := e.content(in, path)
		if e.Placeholder.IsPlaceholder(content) {
			continue
		}

		a := Artifact{
			Path:      path,
			Content:   content,
			Language:  Language(path),
			Status:    r.Status,
			UpdatedAt: updatedAt(r),
			Source:    *r,
		}
		if j, ok := byPath[path]; ok {
			if !a.UpdatedAt.Before(out[j].UpdatedAt) {
				out[j] = a
			}
			continue
		}
		byPath[path] = len(out)
		out = append(out, a)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].Source.Seq > out[j].Source.Seq
	})
	return out
}

func updatedAt(r *toolcall.Record) time.Time {
	if r.CompletedAt != nil {
		return *r.CompletedAt
	}
	return r.Timestamp
}
