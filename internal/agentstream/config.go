// Package agentstream is the agent-turn streaming and reconciliation engine:
// it consumes an agent's event stream for the open conversation, tracks the
// turn and its tool calls, commits the final assistant message once, and
// derives the file artifacts shown alongside the chat.
package agentstream

import (
	"time"

	"github.com/fintellect/nexus/internal/agentstream/artifact"
	"github.com/fintellect/nexus/internal/agentstream/event"
	"github.com/fintellect/nexus/internal/agentstream/session"
	"github.com/fintellect/nexus/internal/agentstream/store"
	"github.com/fintellect/nexus/internal/agentstream/toolcall"
	"github.com/fintellect/nexus/internal/agentstream/tracker"
	"github.com/fintellect/nexus/internal/agentstream/turn"
)

const moduleName = "agentstream"

// Config holds the engine configuration.
// Follows K8S-style: Config → Complete() → New(ctx, deps).
type Config struct {
	// Placeholder tunes the predicate that keeps stub content out of artifacts.
	Placeholder artifact.PlaceholderConfig `json:"placeholder" mapstructure:"placeholder"`

	// Sentinels are the "no file information" texts dropped during consolidation.
	Sentinels []tracker.Sentinel `json:"sentinels,omitempty" mapstructure:"sentinels"`

	// DisableInlineTools turns off detection of XML tool blocks in streamed text.
	DisableInlineTools bool `json:"disable_inline_tools,omitempty" mapstructure:"disable_inline_tools"`

	// InlineTags overrides the detected XML tool tags. Default: event.DefaultInlineTags.
	InlineTags []string `json:"inline_tags,omitempty" mapstructure:"inline_tags"`

	// PersistTimeout bounds each store call. Default: 30s.
	PersistTimeout time.Duration `json:"persist_timeout,omitempty" mapstructure:"persist_timeout"`

	// SubmitTimeout bounds the companion submit request. Default: 30s.
	SubmitTimeout time.Duration `json:"submit_timeout,omitempty" mapstructure:"submit_timeout"`

	// NonFileKey derives a de-duplication key for non-file tool calls; nil
	// keeps every non-file call. tracker.QueryKey is a ready-made choice.
	NonFileKey func(r *toolcall.Record) string `json:"-" mapstructure:"-"`
}

// CompletedConfig is the validated and completed configuration.
type CompletedConfig struct {
	*Config
}

// Complete fills defaults.
func (c *Config) Complete() CompletedConfig {
	def := artifact.DefaultPlaceholderConfig()
	if c.Placeholder.MinLength <= 0 {
		c.Placeholder.MinLength = def.MinLength
	}
	if c.Placeholder.SubstantialLength <= 0 {
		c.Placeholder.SubstantialLength = def.SubstantialLength
	}
	if c.Placeholder.MinHeadings <= 0 {
		c.Placeholder.MinHeadings = def.MinHeadings
	}
	if c.Sentinels == nil {
		c.Sentinels = tracker.DefaultSentinels()
	}
	if len(c.InlineTags) == 0 {
		c.InlineTags = event.DefaultInlineTags
	}
	if c.PersistTimeout <= 0 {
		c.PersistTimeout = 30 * time.Second
	}
	if c.SubmitTimeout <= 0 {
		c.SubmitTimeout = 30 * time.Second
	}
	return CompletedConfig{c}
}

// Observer receives UI notifications. Every callback is optional and runs on
// the goroutine that produced it; callbacks must not block.
type Observer struct {
	OnDelta         func(conversationID, delta string)
	OnToolStarted   func(conversationID string, rec toolcall.Record)
	OnToolCompleted func(conversationID string, rec toolcall.Record)
	OnStateChange   func(conversationID string, from, to event.Status)
	OnCommitted     func(conversationID string, res turn.CommitResult)
	OnInfo          func(conversationID string, ev event.StreamEvent)
}

// Dependencies holds the collaborators of the engine.
type Dependencies struct {
	Store     store.Store
	Dialer    session.Dialer
	Submitter session.Submitter
	// Notifier receives user-visible error reports. Optional.
	Notifier turn.Notifier
	Observer Observer
}
