// Package chat implements the streaming conversation loop: one
// websocket session per client, an intent cascade in front of the
// fast paths, and a chat-completion fallback for everything else.
package chat

import "github.com/taskpilot/assistant-api/internal/llm"

// Frame types
const (
	FrameStream           = "stream"
	FrameToolCalls        = "tool_calls"
	FrameAnalysisComplete = "analysis_complete"
	FrameError            = "error"
)

// Frame is one outbound message unit. Exactly one variant is active:
// Content for stream, analysis_complete and error frames, ToolCalls
// for tool_calls frames.
type Frame struct {
	Type      string     `json:"type"`
	Content   string     `json:"content,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall is a partial tool-call fragment. Arguments is a streamed
// partial JSON string; the client concatenates fragments sharing an
// index to reconstruct the full call.
type ToolCall struct {
	Index    *int         `json:"index,omitempty"`
	ID       string       `json:"id,omitempty"`
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// ToolFunction carries the function name and its argument fragment
type ToolFunction struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments"`
}

// StreamFrame wraps a token or a serialized fast-path payload
func StreamFrame(content string) Frame {
	return Frame{Type: FrameStream, Content: content}
}

// AnalysisFrame wraps a completed analysis response
func AnalysisFrame(content string) Frame {
	return Frame{Type: FrameAnalysisComplete, Content: content}
}

// ErrorFrame wraps a user-visible error message
func ErrorFrame(content string) Frame {
	return Frame{Type: FrameError, Content: content}
}

// ToolCallsFrame converts completion-stream fragments to the wire
// shape, forwarding them as received without buffering or merging.
func ToolCallsFrame(fragments []llm.ToolCallFragment) Frame {
	calls := make([]ToolCall, 0, len(fragments))
	for _, f := range fragments {
		callType := f.Type
		if callType == "" {
			callType = "function"
		}
		calls = append(calls, ToolCall{
			Index: f.Index,
			ID:    f.ID,
			Type:  callType,
			Function: ToolFunction{
				Name:      f.Function.Name,
				Arguments: f.Function.Arguments,
			},
		})
	}
	return Frame{Type: FrameToolCalls, ToolCalls: calls}
}
