package event

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fintellect/nexus/internal/agentstream/errno"
	"github.com/fintellect/nexus/pkg/logger"
	"github.com/fintellect/nexus/pkg/utils/json"
)

const moduleName = "agentstream.event"

// wireKinds maps every accepted wire type to its Kind. The legacy "status"
// envelope is handled separately.
var wireKinds = map[string]Kind{
	"connected":        KindConnected,
	"assistant_chunk":  KindTextDelta,
	"text_delta":       KindTextDelta,
	"text-delta":       KindTextDelta,
	"chunk":            KindTextDelta,
	"tool_started":     KindToolStarted,
	"tool-started":     KindToolStarted,
	"tool_completed":   KindToolCompleted,
	"tool-completed":   KindToolCompleted,
	"message_complete": KindDone,
	"done":             KindDone,
	"completed":        KindDone,
	"status_change":    KindStatusChange,
	"status-change":    KindStatusChange,
	"error":            KindError,
	"ping":             KindInfo,
}

// Parser normalizes raw payloads. The zero value is ready to use.
type Parser struct {
	// Now stamps ReceivedAt; defaults to time.Now.
	Now func() time.Time
}

// Parse converts one raw payload into a StreamEvent. sseName is the SSE
// "event:" field and is used only when the payload carries no type.
func (p *Parser) Parse(sseName string, data []byte) (StreamEvent, error) {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return StreamEvent{}, errno.Protocol(err, "payload is not a JSON object")
	}
	if fields == nil {
		return StreamEvent{}, errno.Protocol(nil, "payload is null")
	}

	typ := str(fields, "type")
	if typ == "" {
		typ = sseName
	}
	if typ == "" || typ == "message" {
		return StreamEvent{}, errno.Protocol(nil, "event has no type")
	}

	ev := StreamEvent{
		Type:       typ,
		MessageID:  str(fields, "messageId", "message_id"),
		TurnID:     str(fields, "turnId", "turn_id"),
		ReceivedAt: p.now(),
	}

	if typ == "status" {
		return p.parseLegacyStatus(ev, fields)
	}

	kind, ok := wireKinds[typ]
	if !ok {
		logger.DebugX(moduleName, "[EventParser] unrecognized event kind", "type", typ)
		ev.Kind = KindInfo
		ev.Content = str(fields, "message", "content")
		return ev, nil
	}
	ev.Kind = kind

	switch kind {
	case KindConnected, KindInfo:
		ev.Content = str(fields, "message", "content")
	case KindTextDelta:
		delta, ok := firstString(fields, "content", "delta", "text")
		if !ok {
			return StreamEvent{}, errno.Protocol(nil, "%s event without text", typ)
		}
		ev.Delta = delta
	case KindDone:
		ev.Content = str(fields, "content")
	case KindToolStarted, KindToolCompleted:
		tool, err := parseTool(kind, fields)
		if err != nil {
			return StreamEvent{}, err
		}
		ev.Tool = tool
	case KindStatusChange:
		status, err := ParseStatus(str(fields, "status", "content"))
		if err != nil {
			return StreamEvent{}, err
		}
		ev.Status = status
	case KindError:
		ev.Error = &ErrorPayload{
			Message: str(fields, "message", "content", "error"),
			Code:    str(fields, "code"),
		}
		if ev.Error.Message == "" {
			ev.Error.Message = "unknown stream error"
		}
	}
	return ev, nil
}

// parseLegacyStatus handles {"type":"status","content":"{\"status_type\":...}"}.
func (p *Parser) parseLegacyStatus(ev StreamEvent, fields map[string]any) (StreamEvent, error) {
	var inner map[string]any
	switch c := fields["content"].(type) {
	case string:
		if err := json.Unmarshal([]byte(c), &inner); err != nil {
			return StreamEvent{}, errno.Protocol(err, "status content is not JSON")
		}
	case map[string]any:
		inner = c
	default:
		if s := str(fields, "status"); s != "" {
			status, err := ParseStatus(s)
			if err != nil {
				return StreamEvent{}, err
			}
			ev.Kind = KindStatusChange
			ev.Status = status
			return ev, nil
		}
		return StreamEvent{}, errno.Protocol(nil, "status event without content")
	}

	if ev.MessageID == "" {
		ev.MessageID = str(inner, "message_id", "messageId")
	}
	name := str(inner, "function_name", "xml_tag_name")
	index := intField(inner, "tool_index")
	args, _ := inner["arguments"].(map[string]any)

	switch statusType := str(inner, "status_type"); statusType {
	case "tool_started":
		if name == "" {
			return StreamEvent{}, errno.Protocol(nil, "tool_started status without a tool name")
		}
		ev.Kind = KindToolStarted
		ev.Tool = &ToolPayload{Name: name, Index: index, Args: args, Status: ToolPending}
	case "tool_completed":
		ev.Kind = KindToolCompleted
		ev.Tool = &ToolPayload{Name: name, Index: index, Args: args, Result: inner, Status: ToolSuccess}
	case "tool_failed", "tool_error":
		ev.Kind = KindToolCompleted
		ev.Tool = &ToolPayload{Name: name, Index: index, Args: args, Status: ToolError, Error: str(inner, "message")}
	default:
		logger.DebugX(moduleName, "[EventParser] unrecognized status_type", "status_type", statusType)
		ev.Kind = KindInfo
		ev.Content = str(inner, "message")
	}
	return ev, nil
}

func parseTool(kind Kind, fields map[string]any) (*ToolPayload, error) {
	name := str(fields, "toolName", "tool_name", "name")
	if name == "" && kind == KindToolStarted {
		return nil, errno.Protocol(nil, "tool_started event without a tool name")
	}
	tool := &ToolPayload{
		Name:  name,
		Index: intField(fields, "toolIndex", "tool_index"),
		Error: str(fields, "error"),
	}
	if args, ok := fields["args"].(map[string]any); ok {
		tool.Args = args
	} else if args, ok := fields["arguments"].(map[string]any); ok {
		tool.Args = args
	}

	if kind == KindToolStarted {
		tool.Status = ToolPending
		return tool, nil
	}

	tool.Result = fields["result"]
	switch strings.ToLower(str(fields, "status")) {
	case "success", "succeeded", "ok", "completed":
		tool.Status = ToolSuccess
	case "error", "failed", "failure":
		tool.Status = ToolError
	case "":
		tool.Status = ToolSuccess
		if tool.Error != "" {
			tool.Status = ToolError
		}
	default:
		return nil, errno.Protocol(nil, "unknown tool status %q", str(fields, "status"))
	}
	return tool, nil
}

// ParseStatus accepts the spellings used on the wire for turn states.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "idle":
		return StatusIdle, nil
	case "connecting":
		return StatusConnecting, nil
	case "streaming":
		return StatusStreaming, nil
	case "processing-tool", "processing_tool", "processing", "tool":
		return StatusProcessingTool, nil
	case "completed", "complete", "done":
		return StatusCompleted, nil
	case "error", "failed":
		return StatusError, nil
	}
	return "", errno.Protocol(nil, "unknown status %q", s)
}

func (p *Parser) now() time.Time {
	if p != nil && p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func firstString(m map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := m[k].(string); ok {
			return v, true
		}
	}
	return "", false
}

func str(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64, int, int64:
			return fmt.Sprint(v)
		}
	}
	return ""
}

func intField(m map[string]any, keys ...string) int {
	for _, k := range keys {
		switch v := m[k].(type) {
		case float64:
			return int(v)
		case int:
			return v
		case int64:
			return int(v)
		case string:
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
	}
	return 0
}
